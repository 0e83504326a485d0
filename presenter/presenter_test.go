package presenter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/ledgerlink/core"
	"github.com/layer-3/ledgerlink/internal/logging"
	"github.com/layer-3/ledgerlink/ports"
	"github.com/layer-3/ledgerlink/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userAddr = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"

type stubSigner struct{}

func (stubSigner) Address() common.Address                             { return common.HexToAddress(userAddr) }
func (stubSigner) WalletType() core.WalletType                         { return core.WalletTypeUnknown }
func (stubSigner) SignMessage(context.Context, []byte) ([]byte, error) { return nil, nil }

type stubSessions struct {
	loggedIn  bool
	logins    int
	expiresAt time.Time
}

func (s *stubSessions) Login(ctx context.Context, email string) (*core.Session, string, error) {
	if email == "bad" {
		return nil, "", core.ErrInvalidEmail
	}
	s.loggedIn = true
	s.logins++
	return &core.Session{ID: fmt.Sprintf("s%d", s.logins), Email: email, Address: userAddr, ExpiresAt: s.expiresAt}, "token", nil
}

func (s *stubSessions) Check(ctx context.Context, token string) (bool, error) {
	return s.loggedIn && token == "token", nil
}

func (s *stubSessions) Metadata(ctx context.Context, token string) (*core.UserMetadata, error) {
	if !s.loggedIn {
		return nil, core.ErrTokenInvalidated
	}
	return &core.UserMetadata{Email: "alice@example.com", PublicAddress: userAddr}, nil
}

func (s *stubSessions) Logout(ctx context.Context, token string) error {
	s.loggedIn = false
	return nil
}

func (s *stubSessions) Resolve(ctx context.Context, token string) (*core.Session, ports.Signer, error) {
	if !s.loggedIn {
		return nil, nil, core.ErrTokenInvalidated
	}
	return &core.Session{ID: "s1", Address: userAddr}, stubSigner{}, nil
}

type stubOperations struct {
	mu       sync.Mutex
	sendErr  error
	sent     []service.SendParams
	retried  []string
	retryErr error
}

func transferOutcome(op string) *service.Outcome {
	return &service.Outcome{
		OperationID: "op-1",
		Op:          op,
		Transfer:    &service.TransferResult{Result: &core.TxResult{Hash: "0xabc"}},
	}
}

func (s *stubOperations) Deposit(ctx context.Context, session *core.Session) (*service.Outcome, error) {
	return transferOutcome(service.OpDeposit), nil
}

func (s *stubOperations) ActivateAccount(ctx context.Context, session *core.Session, signer ports.Signer) (*service.Outcome, error) {
	return &service.Outcome{Op: service.OpActivate, Activation: &service.ActivationResult{}}, nil
}

func (s *stubOperations) GetInfo(ctx context.Context, session *core.Session, signer ports.Signer) (*service.Outcome, error) {
	return &service.Outcome{Op: service.OpInfo, Info: &service.InfoResult{}}, nil
}

func (s *stubOperations) Send(ctx context.Context, session *core.Session, signer ports.Signer, params service.SendParams) (*service.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, params)
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return transferOutcome(service.OpSend), nil
}

func (s *stubOperations) Retry(ctx context.Context, session *core.Session, operationID string) (*service.Outcome, error) {
	s.retried = append(s.retried, operationID)
	if s.retryErr != nil {
		return nil, s.retryErr
	}
	return transferOutcome(service.OpSend), nil
}

func loggedIn(t *testing.T) (*Presenter, *stubSessions, *stubOperations) {
	t.Helper()
	sessions := &stubSessions{}
	ops := &stubOperations{}
	p := New(sessions, ops, logging.Nop())

	_, token, err := p.Login(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, "token", token)
	return p, sessions, ops
}

func TestLoginMounts(t *testing.T) {
	p, _, _ := loggedIn(t)

	st := p.State()
	assert.True(t, st.LoggedIn)
	assert.Equal(t, userAddr, st.PublicAddress)
	require.NotNil(t, st.Metadata)
	assert.Equal(t, TxIdle, st.SendingTransaction)
	assert.Nil(t, st.Error)
}

func TestLoginFailureSurfacesError(t *testing.T) {
	p := New(&stubSessions{}, &stubOperations{}, logging.Nop())

	_, _, err := p.Login(context.Background(), "bad")
	require.Error(t, err)

	st := p.State()
	assert.False(t, st.LoggedIn)
	require.NotNil(t, st.Error)
	assert.Equal(t, core.KindInvalidRequest, st.Error.Kind)
}

func TestLogoutThenMount(t *testing.T) {
	p, _, _ := loggedIn(t)
	ctx := context.Background()

	require.NoError(t, p.Logout(ctx))

	st := p.Mount(ctx)
	assert.False(t, st.LoggedIn)
	assert.Empty(t, st.PublicAddress)
	assert.Nil(t, st.Metadata)
}

func TestRejectedSendIsNotSuccess(t *testing.T) {
	p, _, ops := loggedIn(t)
	ops.sendErr = core.NewOpError(service.OpSend, "submit", "op-9", core.ErrExchangeRejected)

	_, err := p.Send(context.Background(), SendInput{})
	require.Error(t, err)

	st := p.State()
	assert.Equal(t, TxFailed, st.SendingTransaction)
	assert.Nil(t, st.LastResult)
	require.NotNil(t, st.Error)
	assert.Equal(t, core.KindRejected, st.Error.Kind)
	assert.Equal(t, "submit", st.Error.Step)
	assert.Equal(t, "op-9", st.Error.OperationID)
	assert.True(t, st.Error.Retryable)
}

func TestSendSuccess(t *testing.T) {
	p, _, ops := loggedIn(t)

	_, err := p.Send(context.Background(), SendInput{})
	require.NoError(t, err)

	st := p.State()
	assert.Equal(t, TxSent, st.SendingTransaction)
	require.NotNil(t, st.LastResult)
	assert.Equal(t, "0xabc", st.LastResult.Transfer.Result.Hash)
	require.Len(t, ops.sent, 1)
	assert.Empty(t, ops.sent[0].Destination)
}

func TestSendUsesDestinationForm(t *testing.T) {
	p, _, ops := loggedIn(t)
	_, err := p.Send(context.Background(), SendInput{
		Destination: " 0x00000000000000000000000000000000000000bb ",
		AccountID:   44,
		Amount:      "12.5",
	})
	require.NoError(t, err)

	require.Len(t, ops.sent, 1)
	assert.Equal(t, "0x00000000000000000000000000000000000000bb", ops.sent[0].Destination)
	assert.Equal(t, uint32(44), ops.sent[0].AccountID)
	assert.Equal(t, "12.5", ops.sent[0].Amount.String())
}

func TestConcurrentSendsKeepTheirDestination(t *testing.T) {
	p, _, ops := loggedIn(t)

	const n = 64
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := p.Send(context.Background(), SendInput{
				Destination: fmt.Sprintf("0x%040x", i),
				AccountID:   uint32(i),
				Amount:      fmt.Sprint(i),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Len(t, ops.sent, n)
	seen := make(map[uint32]bool, n)
	for _, params := range ops.sent {
		assert.Equal(t, fmt.Sprintf("0x%040x", params.AccountID), params.Destination)
		assert.Equal(t, fmt.Sprint(params.AccountID), params.Amount.String())
		seen[params.AccountID] = true
	}
	assert.Len(t, seen, n)
}

func TestSendRejectsBadForm(t *testing.T) {
	p, _, ops := loggedIn(t)
	_, err := p.Send(context.Background(), SendInput{Amount: "lots"})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	assert.Empty(t, ops.sent)
	assert.Equal(t, core.KindInvalidRequest, p.State().Error.Kind)
	assert.False(t, p.State().Error.Retryable)
}

func TestRetryAfterFailure(t *testing.T) {
	p, _, ops := loggedIn(t)
	ctx := context.Background()
	ops.sendErr = core.NewOpError(service.OpSend, "submit", "op-9", core.ErrTransport)

	_, err := p.Send(ctx, SendInput{})
	require.Error(t, err)

	out, err := p.Retry(ctx, "op-9")
	require.NoError(t, err)
	assert.Equal(t, []string{"op-9"}, ops.retried)
	assert.NotNil(t, out)
	assert.Equal(t, TxSent, p.State().SendingTransaction)
	assert.Nil(t, p.State().Error)
}

func TestOperationAfterLogout(t *testing.T) {
	p, sessions, _ := loggedIn(t)
	sessions.loggedIn = false

	_, err := p.Deposit(context.Background())
	require.Error(t, err)

	st := p.State()
	assert.False(t, st.LoggedIn)
	assert.Equal(t, core.KindAuth, st.Error.Kind)
	assert.Equal(t, TxFailed, st.SendingTransaction)
}

func TestNewErrorView(t *testing.T) {
	assert.Nil(t, NewErrorView(nil))

	view := NewErrorView(errors.New("boom"))
	assert.Equal(t, core.KindInternal, view.Kind)
	assert.False(t, view.Retryable)

	view = NewErrorView(core.NewOpError(service.OpDeposit, "lock", "op-1", core.ErrAccountBusy))
	assert.Equal(t, core.KindBusy, view.Kind)
	assert.True(t, view.Retryable)
	assert.Equal(t, service.OpDeposit, view.Op)
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	sessions := &stubSessions{}
	r := NewRegistry(sessions, &stubOperations{}, logging.Nop())

	p, token, err := r.Login(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	session := &core.Session{ID: "s1", Address: userAddr}
	assert.Same(t, p, r.Get(ctx, session, token))

	require.NoError(t, r.Logout(ctx, session, token))
	assert.Zero(t, r.Len())
	assert.False(t, p.State().LoggedIn)
}

func TestRegistryDropsExpiredSessions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sessions := &stubSessions{expiresAt: now.Add(time.Hour)}
	r := NewRegistry(sessions, &stubOperations{}, logging.Nop())
	r.now = func() time.Time { return now }

	_, _, err := r.Login(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	now = now.Add(2 * time.Hour)
	sessions.expiresAt = now.Add(time.Hour)

	_, _, err = r.Login(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	now = now.Add(2 * time.Hour)
	r.Get(ctx, &core.Session{ID: "s3", Address: userAddr, ExpiresAt: now.Add(time.Hour)}, "token")
	assert.Equal(t, 1, r.Len())
}
