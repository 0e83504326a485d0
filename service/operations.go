package service

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/ledgerlink/core"
)

const (
	OpTransfer = "transfer"
	OpDeposit  = "deposit"
	OpSend     = "send"
	OpActivate = "activate"
	OpInfo     = "info"
)

type step struct {
	name string
	run  func(ctx context.Context) error
}

// operation is one run of a linear pipeline. Steps that succeeded are not
// re-run when the operation is retried.
type operation struct {
	id      string
	kind    string
	owner   string // address allowed to retry
	account string // lock key, empty for read-only operations
	steps   []step
	next    int
	done    bool
	created time.Time
	cleanup func()
	outcome *Outcome
}

func (op *operation) currentStep() string {
	if op.next < len(op.steps) {
		return op.steps[op.next].name
	}
	return ""
}

func (op *operation) finish() {
	op.done = true
	if op.cleanup != nil {
		op.cleanup()
	}
}

// operations keeps failed operations around for retry until they expire
type operations struct {
	mu   sync.Mutex
	byID map[string]*operation
	ttl  time.Duration
	now  func() time.Time
}

func newOperations(ttl time.Duration, now func() time.Time) *operations {
	return &operations{
		byID: make(map[string]*operation),
		ttl:  ttl,
		now:  now,
	}
}

func (o *operations) put(op *operation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.byID[op.id] = op
	o.sweepLocked()
}

func (o *operations) get(id, owner string) (*operation, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	op, ok := o.byID[id]
	if !ok || op.owner != owner {
		return nil, core.ErrOperationNotFound
	}
	if o.now().Sub(op.created) > o.ttl {
		delete(o.byID, id)
		op.finish()
		return nil, core.ErrOperationExpired
	}
	return op, nil
}

// take removes op from the registry so exactly one retry can run it
func (o *operations) take(op *operation) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.byID[op.id] != op {
		return false
	}
	delete(o.byID, op.id)
	return true
}

func (o *operations) sweepLocked() {
	now := o.now()
	for id, op := range o.byID {
		if now.Sub(op.created) > o.ttl {
			delete(o.byID, id)
			op.finish()
		}
	}
}

// Len reports how many operations are waiting for retry
func (o *operations) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.byID)
}
