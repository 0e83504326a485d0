package lock

import (
	"context"
	"strings"
	"sync"

	"github.com/layer-3/ledgerlink/ports"
)

// MemoryLocker serializes operations per key within one process
type MemoryLocker struct {
	mu    sync.Mutex
	byKey map[string]*entry
}

type entry struct {
	held chan struct{}
	refs int
}

// NewMemoryLocker creates a new in-process locker
func NewMemoryLocker() ports.Locker {
	return &MemoryLocker{byKey: make(map[string]*entry)}
}

// Lock blocks until key is held or ctx is done
func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	key = strings.ToLower(key)

	l.mu.Lock()
	e, ok := l.byKey[key]
	if !ok {
		e = &entry{held: make(chan struct{}, 1)}
		l.byKey[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.held <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.held
			l.unref(key, e)
		})
	}, nil
}

func (l *MemoryLocker) unref(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.byKey, key)
	}
}
