package identity

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/ledgerlink/adapters/rpc"
	"github.com/layer-3/ledgerlink/adapters/store"
	"github.com/layer-3/ledgerlink/adapters/tokenizer"
	"github.com/layer-3/ledgerlink/adapters/vault"
	"github.com/layer-3/ledgerlink/core"
	"github.com/layer-3/ledgerlink/internal/logging"
	"github.com/layer-3/ledgerlink/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	logouts []string
	err     error
}

func (r *recordingPublisher) PublishLogout(ctx context.Context, address, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logouts = append(r.logouts, sessionID)
	return r.err
}

func (r *recordingPublisher) PublishOperation(ctx context.Context, event ports.OperationEvent) error {
	return nil
}

func newProvider(t *testing.T, pub *recordingPublisher) *CustodialProvider {
	t.Helper()
	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	return NewCustodialProvider(
		tokenizer.NewJWTTokenizer(signKey),
		store.NewMemoryStore(),
		vault.NewMemoryVault(),
		pub,
		logging.Nop(),
		time.Hour,
		core.WalletTypeUnknown,
	)
}

func TestLoginStableAddress(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t, &recordingPublisher{})

	session, token, err := p.LoginWithEmail(ctx, "Alice@Example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Address)
	assert.True(t, common.IsHexAddress(session.Address))
	assert.Equal(t, "alice@example.com", session.Email)

	for i := 0; i < 3; i++ {
		meta, err := p.GetMetadata(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, session.Address, meta.PublicAddress)
		assert.Equal(t, "alice@example.com", meta.Email)
		assert.Equal(t, "did:ethr:"+session.Address, meta.Issuer)
	}

	again, _, err := p.LoginWithEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, session.Address, again.Address)
	assert.NotEqual(t, session.ID, again.ID)
}

func TestLoginRejectsInvalidEmail(t *testing.T) {
	p := newProvider(t, &recordingPublisher{})
	for _, email := range []string{"", "not-an-email", "Alice <alice@example.com>"} {
		_, _, err := p.LoginWithEmail(context.Background(), email)
		assert.ErrorIs(t, err, core.ErrInvalidEmail, email)
	}
}

func TestLogoutThenCheck(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("broker down")}
	p := newProvider(t, pub)

	session, token, err := p.LoginWithEmail(ctx, "bob@example.com")
	require.NoError(t, err)

	ok, err := p.IsLoggedIn(ctx, token)
	require.NoError(t, err)
	assert.True(t, ok)

	// A failing event broker does not fail the logout
	require.NoError(t, p.Logout(ctx, token))
	assert.Equal(t, []string{session.ID}, pub.logouts)

	ok, err = p.IsLoggedIn(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = p.GetMetadata(ctx, token)
	assert.ErrorIs(t, err, core.ErrTokenInvalidated)
}

func TestIsLoggedInGarbageToken(t *testing.T) {
	p := newProvider(t, &recordingPublisher{})
	ok, err := p.IsLoggedIn(context.Background(), "garbage")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionExpiry(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t, &recordingPublisher{})
	_, token, err := p.LoginWithEmail(ctx, "carol@example.com")
	require.NoError(t, err)

	p.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = p.Session(ctx, token)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestEmbeddedSigner(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t, &recordingPublisher{})
	session, token, err := p.LoginWithEmail(ctx, "dave@example.com")
	require.NoError(t, err)

	signer, err := p.Signer(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(session.Address), signer.Address())

	msg := []byte("seed")
	sig, err := signer.SignMessage(ctx, msg)
	require.NoError(t, err)
	addr, err := rpc.RecoverAddress(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), addr)
}
