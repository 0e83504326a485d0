package ports

import (
	"context"
	"crypto/ecdsa"
	"time"
)

// Store interface for session invalidation
type Store interface {
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)
}

// KeyVault holds custodial keys, one per email identity
type KeyVault interface {
	// LoadOrCreate returns the key for email, creating it on first use
	LoadOrCreate(ctx context.Context, email string) (*ecdsa.PrivateKey, error)
}

// Locker serializes operations per account
type Locker interface {
	// Lock blocks until key is held or ctx is done. The returned func releases it.
	Lock(ctx context.Context, key string) (func(), error)
}
