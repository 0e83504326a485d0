package rpc

import (
	"context"
	"math/big"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/layer-3/ledgerlink/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeySignerRecovers(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := NewKeySigner(key, core.WalletTypeUnknown)

	msg := []byte("hello exchange")
	sig, err := signer.SignMessage(context.Background(), msg)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.LessOrEqual(t, sig[64], byte(1))

	addr, err := RecoverAddress(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), addr)

	sig[64] += 27
	addr, err = RecoverAddress(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), addr)
}

func TestNewKeySignerFromHex(t *testing.T) {
	s, err := NewKeySignerFromHex("0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318", core.WalletTypeMetaMask)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"), s.Address())
	assert.Equal(t, core.WalletTypeMetaMask, s.WalletType())

	_, err = NewKeySignerFromHex("zz", core.WalletTypeUnknown)
	assert.Error(t, err)
}

type rejectErr struct{}

func (rejectErr) Error() string  { return "user rejected the request" }
func (rejectErr) ErrorCode() int { return codeUserRejected }

type personalService struct {
	signer *KeySigner
	reject bool
}

func (p *personalService) Sign(ctx context.Context, data hexutil.Bytes, addr common.Address) (hexutil.Bytes, error) {
	if p.reject {
		return nil, rejectErr{}
	}
	sig, err := p.signer.SignMessage(ctx, data)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

type ethService struct{}

func (ethService) ChainId() *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(5))
}

func newRPCServer(t *testing.T, svc *personalService) *gethrpc.Server {
	t.Helper()
	server := gethrpc.NewServer()
	require.NoError(t, server.RegisterName("personal", svc))
	require.NoError(t, server.RegisterName("eth", ethService{}))
	t.Cleanup(server.Stop)
	return server
}

func TestRemoteSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	local := NewKeySigner(key, core.WalletTypeMetaMask)

	server := newRPCServer(t, &personalService{signer: local})
	remote := NewRemoteSigner(gethrpc.DialInProc(server), local.Address(), core.WalletTypeMetaMask)
	defer remote.Close()

	msg := []byte("key seed")
	sig, err := remote.SignMessage(context.Background(), msg)
	require.NoError(t, err)

	addr, err := RecoverAddress(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, local.Address(), addr)
}

func TestRemoteSignerRejected(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	server := newRPCServer(t, &personalService{signer: NewKeySigner(key, core.WalletTypeMetaMask), reject: true})
	remote := NewRemoteSigner(gethrpc.DialInProc(server), crypto.PubkeyToAddress(key.PublicKey), core.WalletTypeMetaMask)
	defer remote.Close()

	_, err = remote.SignMessage(context.Background(), []byte("seed"))
	assert.ErrorIs(t, err, core.ErrSignatureRejected)
	assert.Equal(t, core.KindSignature, core.KindOf(err))
}

func TestVerifyChainID(t *testing.T) {
	server := newRPCServer(t, &personalService{})
	httpSrv := httptest.NewServer(server)
	defer httpSrv.Close()

	require.NoError(t, VerifyChainID(context.Background(), httpSrv.URL, 5))
	assert.Error(t, VerifyChainID(context.Background(), httpSrv.URL, 1))
}
