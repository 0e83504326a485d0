package vault

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryVaultStableAddress(t *testing.T) {
	v := NewMemoryVault()
	ctx := context.Background()

	a, err := v.LoadOrCreate(ctx, "Alice@Example.com")
	require.NoError(t, err)
	b, err := v.LoadOrCreate(ctx, " alice@example.com ")
	require.NoError(t, err)
	c, err := v.LoadOrCreate(ctx, "bob@example.com")
	require.NoError(t, err)

	assert.Equal(t, crypto.PubkeyToAddress(a.PublicKey), crypto.PubkeyToAddress(b.PublicKey))
	assert.NotEqual(t, crypto.PubkeyToAddress(a.PublicKey), crypto.PubkeyToAddress(c.PublicKey))
}
