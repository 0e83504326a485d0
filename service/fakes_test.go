package service

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/ledgerlink/adapters/lock"
	"github.com/layer-3/ledgerlink/adapters/metrics"
	"github.com/layer-3/ledgerlink/adapters/rpc"
	"github.com/layer-3/ledgerlink/core"
	"github.com/layer-3/ledgerlink/internal/logging"
	"github.com/layer-3/ledgerlink/ports"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testExchange = common.HexToAddress("0x2e76EBd1c7c0C8e7c2B875b6d505a260C525d25B")

// fakeExchange serves accounts from memory and records what it was asked to do
type fakeExchange struct {
	mu       sync.Mutex
	accounts map[common.Address]*core.AccountInfo
	quote    *core.FeeQuote
	history  []core.Transaction
	failOnce map[string]error
	failAt   map[string]failure
	calls    map[string]int
	keys     []*core.SigningKey
	seeds    []string
	block    chan struct{}

	transfers []*core.TransferRequest
	updates   []*core.AccountUpdateRequest
	types     []core.TxType
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		accounts: make(map[common.Address]*core.AccountInfo),
		quote:    &core.FeeQuote{Fees: map[string]core.TokenFee{}},
		failOnce: make(map[string]error),
		failAt:   make(map[string]failure),
		calls:    make(map[string]int),
	}
}

func (f *fakeExchange) addAccount(owner common.Address, id, nonce uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[owner] = &core.AccountInfo{Owner: owner, AccountID: id, Nonce: nonce}
}

func (f *fakeExchange) failNext(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOnce[method] = err
}

type failure struct {
	call int
	err  error
}

// failCall makes the n-th call of method fail
func (f *fakeExchange) failCall(method string, n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAt[method] = failure{call: n, err: err}
}

func (f *fakeExchange) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeExchange) enter(method string) error {
	f.mu.Lock()
	f.calls[method]++
	err := f.failOnce[method]
	delete(f.failOnce, method)
	if fail, ok := f.failAt[method]; ok && fail.call == f.calls[method] {
		err = fail.err
	}
	block := f.block
	f.mu.Unlock()

	if block != nil && method == "GetExchangeInfo" {
		<-block
	}
	return err
}

func (f *fakeExchange) GetAccount(ctx context.Context, owner common.Address) (*core.AccountInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.enter("GetAccount"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[owner]
	if !ok {
		return nil, core.ErrAccountNotFound
	}
	cp := *acc
	return &cp, nil
}

func (f *fakeExchange) newKey(acc *core.AccountInfo, seed string) *core.SigningKey {
	pub, priv, _ := ed25519.GenerateKey(nil)
	key := core.NewSigningKey(acc, seed, priv, core.PublicKey{
		X: "0x" + hex.EncodeToString(pub[:16]),
		Y: "0x" + hex.EncodeToString(pub[16:]),
	})
	f.mu.Lock()
	f.keys = append(f.keys, key)
	f.seeds = append(f.seeds, seed)
	f.mu.Unlock()
	return key
}

func (f *fakeExchange) DeriveSigningKey(ctx context.Context, acc *core.AccountInfo, signer ports.Signer) (*core.SigningKey, error) {
	if err := f.enter("DeriveSigningKey"); err != nil {
		return nil, err
	}
	if signer.Address() != acc.Owner {
		return nil, core.ErrSignatureRejected
	}
	return f.newKey(acc, core.KeySeed(testExchange, acc.Nonce)), nil
}

func (f *fakeExchange) GenerateKeyPair(ctx context.Context, acc *core.AccountInfo, seed string, signer ports.Signer) (*core.SigningKey, error) {
	if err := f.enter("GenerateKeyPair"); err != nil {
		return nil, err
	}
	return f.newKey(acc, seed), nil
}

func (f *fakeExchange) GetAPICredential(ctx context.Context, accountID uint32, key *core.SigningKey) (*core.APICredential, error) {
	if err := f.enter("GetAPICredential"); err != nil {
		return nil, err
	}
	return &core.APICredential{AccountID: accountID, Key: "api-key"}, nil
}

func (f *fakeExchange) GetNextStorageID(ctx context.Context, accountID, sellTokenID uint32, cred *core.APICredential) (*core.StorageID, error) {
	if err := f.enter("GetNextStorageID"); err != nil {
		return nil, err
	}
	return &core.StorageID{OrderID: 1, OffchainID: 7}, nil
}

func (f *fakeExchange) GetFeeQuote(ctx context.Context, accountID uint32, reqType core.FeeRequestType, cred *core.APICredential) (*core.FeeQuote, error) {
	if err := f.enter("GetFeeQuote"); err != nil {
		return nil, err
	}
	if reqType != core.FeeRequestTransferAndUpdateAccount {
		return nil, core.ErrExchangeRejected
	}
	return f.quote, nil
}

func (f *fakeExchange) SubmitTransfer(ctx context.Context, req *core.TransferRequest, key *core.SigningKey, cred *core.APICredential, signer ports.Signer) (*core.TxResult, error) {
	if err := f.enter("SubmitTransfer"); err != nil {
		return nil, err
	}
	if key.Destroyed() {
		return nil, core.ErrStaleCredential
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = append(f.transfers, req)
	return &core.TxResult{Hash: "0xtransfer", Status: "processing"}, nil
}

func (f *fakeExchange) SubmitAccountUpdate(ctx context.Context, req *core.AccountUpdateRequest, key *core.SigningKey, signer ports.Signer) (*core.TxResult, error) {
	if err := f.enter("SubmitAccountUpdate"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, req)
	if acc, ok := f.accounts[req.Owner]; ok {
		acc.PublicKey = req.PublicKey
		acc.Nonce++
	}
	return &core.TxResult{Hash: "0xupdate", Status: "processing"}, nil
}

func (f *fakeExchange) GetTransactionHistory(ctx context.Context, accountID uint32, types []core.TxType, cred *core.APICredential) ([]core.Transaction, error) {
	if err := f.enter("GetTransactionHistory"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = types
	return f.history, nil
}

func (f *fakeExchange) GetExchangeInfo(ctx context.Context) (*core.ExchangeInfo, error) {
	if err := f.enter("GetExchangeInfo"); err != nil {
		return nil, err
	}
	return &core.ExchangeInfo{ChainID: 5, ExchangeAddress: testExchange}, nil
}

func (f *fakeExchange) GetActiveFeeInfo(ctx context.Context, accountID uint32) (*core.FeeQuote, error) {
	if err := f.enter("GetActiveFeeInfo"); err != nil {
		return nil, err
	}
	return f.quote, nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []ports.OperationEvent
}

func (r *recordingEvents) PublishLogout(ctx context.Context, address, sessionID string) error {
	return nil
}

func (r *recordingEvents) PublishOperation(ctx context.Context, event ports.OperationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEvents) last() ports.OperationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type harness struct {
	orch    *Orchestrator
	ex      *fakeExchange
	events  *recordingEvents
	locker  ports.Locker
	user    *rpc.KeySigner
	funding *rpc.KeySigner
	peer    common.Address
	session *core.Session
	clock   *time.Time
}

func newSigner(t *testing.T) *rpc.KeySigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return rpc.NewKeySigner(key, core.WalletTypeUnknown)
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		ex:      newFakeExchange(),
		events:  &recordingEvents{},
		locker:  lock.NewMemoryLocker(),
		user:    newSigner(t),
		funding: newSigner(t),
		peer:    common.HexToAddress("0x00000000000000000000000000000000000000aa"),
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	h.clock = &now

	h.ex.addAccount(h.user.Address(), 11, 3)
	h.ex.addAccount(h.funding.Address(), 22, 9)

	h.orch = NewOrchestrator(h.ex, h.locker, h.events, metrics.Nop{}, logging.Nop(), Settings{
		ExchangeAddress:  testExchange,
		TokenSymbol:      "LRC",
		TokenID:          1,
		DefaultFee:       decimal.RequireFromString("9400000000000000000"),
		TradeValue:       decimal.RequireFromString("1000000000000000000"),
		ValidityWindow:   30 * 24 * time.Hour,
		OperationTimeout: 5 * time.Second,
		LockWait:         50 * time.Millisecond,
		OperationTTL:     time.Minute,
		Funding:          h.funding,
		PeerAddress:      h.peer,
		PeerAccountID:    33,
	})
	clock := func() time.Time { return *h.clock }
	h.orch.now = clock
	h.orch.ops.now = clock

	h.session = &core.Session{
		ID:      "session-1",
		Email:   "user@example.com",
		Address: strings.ToLower(h.user.Address().Hex()),
	}
	return h
}
