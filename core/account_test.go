package core

import (
	"crypto/ed25519"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeySeed(t *testing.T) {
	exchange := common.HexToAddress("0x2e76EBd1c7c0C8e7c2B875b6d505a260C525d25B")

	seed := KeySeed(exchange, 4)
	assert.Equal(t, "Sign this message to access Loopring Exchange: 0x2e76EBd1c7c0C8e7c2B875b6d505a260C525d25B with key nonce: 4", seed)
	assert.Equal(t, seed, KeySeed(exchange, 4))
	assert.NotEqual(t, seed, KeySeed(exchange, 5))
}

func TestSigningKeyDestroy(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	acc := &AccountInfo{AccountID: 7, Nonce: 2}
	key := NewSigningKey(acc, "seed", priv, PublicKey{X: "0x1", Y: "0x2"})
	assert.Equal(t, uint32(7), key.AccountID)
	assert.NotNil(t, key.Sign([]byte("msg")))

	key.Destroy()
	assert.True(t, key.Destroyed())
	assert.Nil(t, key.Sign([]byte("msg")))

	var nilKey *SigningKey
	assert.True(t, nilKey.Destroyed())
	nilKey.Destroy()
}

func TestCheckPairing(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	acc := &AccountInfo{AccountID: 7, Nonce: 2}
	key := NewSigningKey(acc, "seed", priv, PublicKey{})
	cred := &APICredential{AccountID: 7, Key: "k"}

	assert.NoError(t, CheckPairing(acc, key, cred))
	assert.NoError(t, CheckPairing(acc, key, nil))

	moved := &AccountInfo{AccountID: 7, Nonce: 3}
	assert.ErrorIs(t, CheckPairing(moved, key, cred), ErrStaleCredential)

	assert.ErrorIs(t, CheckPairing(acc, key, &APICredential{AccountID: 8}), ErrStaleCredential)
	assert.ErrorIs(t, CheckPairing(acc, nil, cred), ErrStaleCredential)
}
