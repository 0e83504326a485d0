package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/layer-3/ledgerlink/core"
	"github.com/layer-3/ledgerlink/internal/logging"
	"github.com/layer-3/ledgerlink/ports"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Settings are the exchange parameters every request is built from
type Settings struct {
	ExchangeAddress common.Address
	TokenSymbol     string
	TokenID         uint32
	DefaultFee      decimal.Decimal
	TradeValue      decimal.Decimal
	ValidityWindow  time.Duration

	OperationTimeout time.Duration
	// LockWait bounds the wait for a busy account; zero waits up to OperationTimeout
	LockWait     time.Duration
	OperationTTL time.Duration

	// Funding pays for deposits; nil disables Deposit
	Funding ports.Signer
	// PeerAddress and PeerAccountID are the default Send destination
	PeerAddress   common.Address
	PeerAccountID uint32
}

// Outcome is the result of a completed operation
type Outcome struct {
	OperationID string            `json:"operation_id"`
	Op          string            `json:"op"`
	Transfer    *TransferResult   `json:"transfer,omitempty"`
	Activation  *ActivationResult `json:"activation,omitempty"`
	Info        *InfoResult       `json:"info,omitempty"`
}

// Orchestrator sequences exchange calls for the user-facing operations
type Orchestrator struct {
	exchange ports.Exchange
	locker   ports.Locker
	eventPub ports.EventPublisher
	metrics  ports.Metrics
	logger   logging.Logger
	settings Settings

	ops   *operations
	group singleflight.Group
	now   func() time.Time
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(
	exchange ports.Exchange,
	locker ports.Locker,
	eventPub ports.EventPublisher,
	metrics ports.Metrics,
	logger logging.Logger,
	settings Settings,
) *Orchestrator {
	if settings.OperationTimeout <= 0 {
		settings.OperationTimeout = 2 * time.Minute
	}
	if settings.OperationTTL <= 0 {
		settings.OperationTTL = 15 * time.Minute
	}
	return &Orchestrator{
		exchange: exchange,
		locker:   locker,
		eventPub: eventPub,
		metrics:  metrics,
		logger:   logger,
		settings: settings,
		ops:      newOperations(settings.OperationTTL, time.Now),
		now:      time.Now,
	}
}

func (o *Orchestrator) newOperation(kind, owner, account string, steps []step, cleanup func()) *operation {
	return &operation{
		id:      uuid.New().String(),
		kind:    kind,
		owner:   strings.ToLower(owner),
		account: strings.ToLower(account),
		steps:   steps,
		created: o.now(),
		cleanup: cleanup,
	}
}

// acquire takes the account lock, reporting ErrAccountBusy if the wait runs out
func (o *Orchestrator) acquire(ctx context.Context, account string) (func(), error) {
	if account == "" {
		return func() {}, nil
	}

	lockCtx := ctx
	if o.settings.LockWait > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, o.settings.LockWait)
		defer cancel()
	}

	release, err := o.locker.Lock(lockCtx, account)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, core.ErrAccountBusy
		}
		return nil, err
	}
	return release, nil
}

// execute runs op from its next step under the account lock. On failure the
// operation is kept for Retry; on success its key material is destroyed.
func (o *Orchestrator) execute(ctx context.Context, op *operation) (*Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, o.settings.OperationTimeout)
	defer cancel()

	start := o.now()
	log := o.logger.With("op", op.kind, "operation_id", op.id, "account", op.account)

	release, err := o.acquire(ctx, op.account)
	if err != nil {
		return nil, o.fail(ctx, log, op, "lock", err, start)
	}
	defer release()

	if op.done {
		return nil, core.NewOpError(op.kind, "", op.id, core.ErrOperationDone)
	}

	log.Debug(ctx, "operation started", "step", op.currentStep())

	for op.next < len(op.steps) {
		s := op.steps[op.next]
		if err := s.run(ctx); err != nil {
			return nil, o.fail(ctx, log, op, s.name, err, start)
		}
		op.next++
	}

	op.finish()
	d := o.now().Sub(start)
	o.metrics.ObserveOperation(op.kind, "", d)
	log.Info(ctx, "operation completed", "duration", d)

	event := ports.OperationEvent{OperationID: op.id, Op: op.kind, Account: op.account, Duration: d}
	if op.outcome != nil && op.outcome.Transfer != nil && op.outcome.Transfer.Result != nil {
		event.TxHash = op.outcome.Transfer.Result.Hash
	}
	if op.outcome != nil && op.outcome.Activation != nil && op.outcome.Activation.Result != nil {
		event.TxHash = op.outcome.Activation.Result.Hash
	}
	o.publish(ctx, log, event)

	return op.outcome, nil
}

func (o *Orchestrator) fail(ctx context.Context, log logging.Logger, op *operation, stepName string, err error, start time.Time) error {
	opErr := core.NewOpError(op.kind, stepName, op.id, err)
	d := o.now().Sub(start)

	o.ops.put(op)
	o.metrics.ObserveOperation(op.kind, opErr.Kind, d)
	log.Warn(ctx, "operation failed", "step", stepName, "kind", opErr.Kind, "error", err)

	// The caller's context may already be done; the event still goes out
	o.publish(context.WithoutCancel(ctx), log, ports.OperationEvent{
		OperationID: op.id,
		Op:          op.kind,
		Account:     op.account,
		Step:        stepName,
		Kind:        opErr.Kind,
		Error:       err.Error(),
		Duration:    d,
	})

	return opErr
}

func (o *Orchestrator) publish(ctx context.Context, log logging.Logger, event ports.OperationEvent) {
	if err := o.eventPub.PublishOperation(ctx, event); err != nil {
		log.Warn(ctx, "failed to publish operation event", "error", err)
	}
}

// Retry resumes a failed operation from the step that failed. Only the
// session owning the operation may retry it.
func (o *Orchestrator) Retry(ctx context.Context, session *core.Session, operationID string) (*Outcome, error) {
	if session == nil {
		return nil, core.ErrSessionInvalid
	}

	op, err := o.ops.get(operationID, strings.ToLower(session.Address))
	if err != nil {
		return nil, core.NewOpError("retry", "", operationID, err)
	}
	if !o.ops.take(op) {
		return nil, core.NewOpError(op.kind, "", op.id, core.ErrAccountBusy)
	}

	o.logger.Info(ctx, "retrying operation", "op", op.kind, "operation_id", op.id, "step", op.currentStep())
	return o.execute(ctx, op)
}

// PendingOperations reports how many failed operations can still be retried
func (o *Orchestrator) PendingOperations() int {
	return o.ops.Len()
}
