package presenter

import (
	"context"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/ledgerlink/core"
	"github.com/layer-3/ledgerlink/internal/logging"
	"github.com/layer-3/ledgerlink/ports"
	"github.com/layer-3/ledgerlink/service"
	"github.com/shopspring/decimal"
)

// Sessions is the session lifecycle the presenter drives
type Sessions interface {
	Login(ctx context.Context, email string) (*core.Session, string, error)
	Check(ctx context.Context, token string) (bool, error)
	Metadata(ctx context.Context, token string) (*core.UserMetadata, error)
	Logout(ctx context.Context, token string) error
	Resolve(ctx context.Context, token string) (*core.Session, ports.Signer, error)
}

// Operations are the orchestrator operations behind the panel buttons
type Operations interface {
	Deposit(ctx context.Context, session *core.Session) (*service.Outcome, error)
	ActivateAccount(ctx context.Context, session *core.Session, signer ports.Signer) (*service.Outcome, error)
	GetInfo(ctx context.Context, session *core.Session, signer ports.Signer) (*service.Outcome, error)
	Send(ctx context.Context, session *core.Session, signer ports.Signer, params service.SendParams) (*service.Outcome, error)
	Retry(ctx context.Context, session *core.Session, operationID string) (*service.Outcome, error)
}

// TxStatus tracks the last transfer the user submitted
type TxStatus string

const (
	TxIdle    TxStatus = "idle"
	TxPending TxStatus = "pending"
	TxSent    TxStatus = "sent"
	TxFailed  TxStatus = "failed"
)

// State is everything the front-end renders
type State struct {
	Email                string             `json:"email"`
	LoggedIn             bool               `json:"logged_in"`
	PublicAddress        string             `json:"public_address"`
	DestinationAddress   string             `json:"destination_address"`
	DestinationAccountID uint32             `json:"destination_account_id"`
	SendAmount           string             `json:"send_amount"`
	Metadata             *core.UserMetadata `json:"metadata,omitempty"`
	SendingTransaction   TxStatus           `json:"sending_transaction"`
	LastResult           *service.Outcome   `json:"last_result,omitempty"`
	Error                *ErrorView         `json:"error,omitempty"`
}

// SendInput is the destination form
type SendInput struct {
	Destination string `json:"destination"`
	AccountID   uint32 `json:"account_id"`
	Amount      string `json:"amount"`
}

// Presenter holds the presentation state of one session
type Presenter struct {
	sessions Sessions
	ops      Operations
	logger   logging.Logger

	mu    sync.Mutex
	token string
	state State
}

// New creates a presenter for a logged-out user
func New(sessions Sessions, ops Operations, logger logging.Logger) *Presenter {
	return &Presenter{
		sessions: sessions,
		ops:      ops,
		logger:   logger,
		state:    State{SendingTransaction: TxIdle},
	}
}

// State returns a copy of the current state
func (p *Presenter) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Mount re-queries the identity provider for the session and its metadata
func (p *Presenter) Mount(ctx context.Context) State {
	p.mu.Lock()
	token := p.token
	p.mu.Unlock()

	loggedIn := false
	var meta *core.UserMetadata
	var err error
	if token != "" {
		loggedIn, err = p.sessions.Check(ctx, token)
		if err == nil && loggedIn {
			meta, err = p.sessions.Metadata(ctx, token)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.logger.Warn(ctx, "failed to refresh session", "error", err)
		p.state.Error = NewErrorView(err)
		loggedIn = false
	}
	p.state.LoggedIn = loggedIn
	if loggedIn && meta != nil {
		p.state.Metadata = meta
		p.state.PublicAddress = meta.PublicAddress
		p.state.Email = meta.Email
	} else {
		p.state.Metadata = nil
		p.state.PublicAddress = ""
	}
	return p.state
}

// Login starts a session for email and returns its bearer token
func (p *Presenter) Login(ctx context.Context, email string) (*core.Session, string, error) {
	p.mu.Lock()
	p.state.Email = email
	p.mu.Unlock()

	session, token, err := p.sessions.Login(ctx, email)
	if err != nil {
		p.setError(err)
		return nil, "", err
	}

	p.mu.Lock()
	p.token = token
	p.state.Error = nil
	p.mu.Unlock()

	p.Mount(ctx)
	return session, token, nil
}

// Logout ends the session and resets the state
func (p *Presenter) Logout(ctx context.Context) error {
	p.mu.Lock()
	token := p.token
	p.mu.Unlock()

	if err := p.sessions.Logout(ctx, token); err != nil {
		p.setError(err)
		return err
	}

	p.mu.Lock()
	p.state = State{Email: p.state.Email, SendingTransaction: TxIdle}
	p.mu.Unlock()

	p.Mount(ctx)

	p.mu.Lock()
	p.token = ""
	p.mu.Unlock()
	return nil
}

// Deposit funds the user's exchange account
func (p *Presenter) Deposit(ctx context.Context) (*service.Outcome, error) {
	return p.run(ctx, true, func(ctx context.Context, session *core.Session, signer ports.Signer) (*service.Outcome, error) {
		return p.ops.Deposit(ctx, session)
	})
}

// Activate registers a trading key for the user's exchange account
func (p *Presenter) Activate(ctx context.Context) (*service.Outcome, error) {
	return p.run(ctx, false, func(ctx context.Context, session *core.Session, signer ports.Signer) (*service.Outcome, error) {
		return p.ops.ActivateAccount(ctx, session, signer)
	})
}

// GetInfo loads exchange info, the account and its history
func (p *Presenter) GetInfo(ctx context.Context) (*service.Outcome, error) {
	return p.run(ctx, false, func(ctx context.Context, session *core.Session, signer ports.Signer) (*service.Outcome, error) {
		return p.ops.GetInfo(ctx, session, signer)
	})
}

// Send stores in as the destination form and transfers to it. Empty fields
// fall back to the configured peer.
func (p *Presenter) Send(ctx context.Context, in SendInput) (*service.Outcome, error) {
	params, err := p.sendParams(in)
	if err != nil {
		p.setError(err)
		return nil, err
	}

	return p.run(ctx, true, func(ctx context.Context, session *core.Session, signer ports.Signer) (*service.Outcome, error) {
		return p.ops.Send(ctx, session, signer, params)
	})
}

// sendParams validates in and records it as the form; the returned params
// belong to this request alone
func (p *Presenter) sendParams(in SendInput) (service.SendParams, error) {
	dest := strings.TrimSpace(in.Destination)
	rawAmount := strings.TrimSpace(in.Amount)

	p.mu.Lock()
	p.state.DestinationAddress = dest
	p.state.DestinationAccountID = in.AccountID
	p.state.SendAmount = rawAmount
	p.mu.Unlock()

	params := service.SendParams{Destination: dest, AccountID: in.AccountID}
	if dest != "" && !common.IsHexAddress(dest) {
		return params, core.NewOpError(service.OpSend, "validate", "", core.ErrInvalidAddress)
	}
	if rawAmount != "" {
		amount, err := decimal.NewFromString(rawAmount)
		if err != nil || !amount.IsPositive() {
			return params, core.NewOpError(service.OpSend, "validate", "", core.ErrInvalidAmount)
		}
		params.Amount = amount
	}
	return params, nil
}

// Retry resumes a failed operation from the step that failed
func (p *Presenter) Retry(ctx context.Context, operationID string) (*service.Outcome, error) {
	p.mu.Lock()
	transfer := p.state.Error != nil && p.state.Error.OperationID == operationID &&
		(p.state.Error.Op == service.OpSend || p.state.Error.Op == service.OpDeposit)
	p.mu.Unlock()

	return p.run(ctx, transfer, func(ctx context.Context, session *core.Session, signer ports.Signer) (*service.Outcome, error) {
		return p.ops.Retry(ctx, session, operationID)
	})
}

type operationFunc func(ctx context.Context, session *core.Session, signer ports.Signer) (*service.Outcome, error)

// run resolves the session and runs fn. The transaction flag only becomes
// sent once the exchange accepted the transfer.
func (p *Presenter) run(ctx context.Context, transfer bool, fn operationFunc) (*service.Outcome, error) {
	p.mu.Lock()
	token := p.token
	if transfer {
		p.state.SendingTransaction = TxPending
	}
	p.state.Error = nil
	p.mu.Unlock()

	session, signer, err := p.sessions.Resolve(ctx, token)
	if err != nil {
		p.fail(transfer, err)
		p.Mount(ctx)
		return nil, err
	}

	out, err := fn(ctx, session, signer)
	if err != nil {
		p.fail(transfer, err)
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.LastResult = out
	if transfer && out != nil && out.Transfer != nil && out.Transfer.Result != nil {
		p.state.SendingTransaction = TxSent
	} else if transfer {
		p.state.SendingTransaction = TxFailed
	}
	return out, nil
}

func (p *Presenter) fail(transfer bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if transfer {
		p.state.SendingTransaction = TxFailed
	}
	p.state.Error = NewErrorView(err)
}

func (p *Presenter) setError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Error = NewErrorView(err)
}
