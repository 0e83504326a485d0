package presenter

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/ledgerlink/core"
	"github.com/layer-3/ledgerlink/internal/logging"
)

type registered struct {
	presenter *Presenter
	expiresAt time.Time
}

// Registry keeps one presenter per live session. Presenters of expired
// sessions are dropped on the next Login or Get.
type Registry struct {
	sessions Sessions
	ops      Operations
	logger   logging.Logger

	mu         sync.Mutex
	presenters map[string]registered
	now        func() time.Time
}

// NewRegistry creates an empty registry
func NewRegistry(sessions Sessions, ops Operations, logger logging.Logger) *Registry {
	return &Registry{
		sessions:   sessions,
		ops:        ops,
		logger:     logger,
		presenters: make(map[string]registered),
		now:        time.Now,
	}
}

// Login starts a session and registers its presenter
func (r *Registry) Login(ctx context.Context, email string) (*Presenter, string, error) {
	p := New(r.sessions, r.ops, r.logger)
	session, token, err := p.Login(ctx, email)
	if err != nil {
		return nil, "", err
	}

	r.mu.Lock()
	r.sweepLocked()
	r.presenters[session.ID] = registered{presenter: p, expiresAt: session.ExpiresAt}
	r.mu.Unlock()

	return p, token, nil
}

// Get returns the presenter of session, mounting a new one for a token the
// registry has not seen yet
func (r *Registry) Get(ctx context.Context, session *core.Session, token string) *Presenter {
	r.mu.Lock()
	r.sweepLocked()
	entry, ok := r.presenters[session.ID]
	if !ok {
		entry = registered{presenter: New(r.sessions, r.ops, r.logger), expiresAt: session.ExpiresAt}
		entry.presenter.token = token
		r.presenters[session.ID] = entry
	}
	r.mu.Unlock()

	if !ok {
		entry.presenter.Mount(ctx)
	}
	return entry.presenter
}

// Logout ends the session and drops its presenter
func (r *Registry) Logout(ctx context.Context, session *core.Session, token string) error {
	p := r.Get(ctx, session, token)
	if err := p.Logout(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.presenters, session.ID)
	r.mu.Unlock()
	return nil
}

// Len reports how many sessions have a presenter
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.presenters)
}

func (r *Registry) sweepLocked() {
	now := r.now()
	for id, entry := range r.presenters {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(r.presenters, id)
		}
	}
}
