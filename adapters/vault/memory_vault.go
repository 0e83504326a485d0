package vault

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/ledgerlink/ports"
)

// MemoryVault keeps custodial secp256k1 keys in process memory
type MemoryVault struct {
	mu   sync.Mutex
	keys map[string]*ecdsa.PrivateKey
}

// NewMemoryVault creates an empty vault
func NewMemoryVault() ports.KeyVault {
	return &MemoryVault{keys: make(map[string]*ecdsa.PrivateKey)}
}

// LoadOrCreate returns the key for email, generating one on first login
func (v *MemoryVault) LoadOrCreate(ctx context.Context, email string) (*ecdsa.PrivateKey, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	v.mu.Lock()
	defer v.mu.Unlock()

	if key, ok := v.keys[email]; ok {
		return key, nil
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate custodial key: %w", err)
	}
	v.keys[email] = key

	return key, nil
}
