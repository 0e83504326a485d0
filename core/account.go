package core

import (
	"crypto/ed25519"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// keyMessage is the template the exchange expects users to sign when deriving their trading key
const keyMessage = "Sign this message to access Loopring Exchange: ${exchangeAddress} with key nonce: ${nonce}"

// KeySeed substitutes the exchange address and account nonce into the key derivation template.
func KeySeed(exchange common.Address, nonce uint32) string {
	seed := strings.Replace(keyMessage, "${exchangeAddress}", exchange.Hex(), 1)
	return strings.Replace(seed, "${nonce}", strconv.FormatUint(uint64(nonce), 10), 1)
}

// PublicKey is an exchange trading public key
type PublicKey struct {
	X string `json:"x"`
	Y string `json:"y"`
}

// AccountInfo is the exchange's view of an off-chain account
type AccountInfo struct {
	Owner     common.Address `json:"owner"`
	AccountID uint32         `json:"account_id"`
	Nonce     uint32         `json:"nonce"`
	KeyNonce  uint32         `json:"key_nonce"`
	KeySeed   string         `json:"key_seed,omitempty"`
	Frozen    bool           `json:"frozen"`
	PublicKey PublicKey      `json:"public_key"`
}

// SigningKey is an exchange trading key derived for a single operation.
// It is bound to the account and nonce it was derived from.
type SigningKey struct {
	AccountID uint32
	Nonce     uint32
	Seed      string
	PublicKey PublicKey

	private ed25519.PrivateKey
}

// NewSigningKey wraps derived key material for the given account
func NewSigningKey(acc *AccountInfo, seed string, priv ed25519.PrivateKey, pub PublicKey) *SigningKey {
	return &SigningKey{
		AccountID: acc.AccountID,
		Nonce:     acc.Nonce,
		Seed:      seed,
		PublicKey: pub,
		private:   priv,
	}
}

// Sign signs msg with the trading key. It returns nil once the key is destroyed.
func (k *SigningKey) Sign(msg []byte) []byte {
	if k == nil || len(k.private) == 0 {
		return nil
	}
	return ed25519.Sign(k.private, msg)
}

// Destroy zeroes the private key material
func (k *SigningKey) Destroy() {
	if k == nil {
		return
	}
	for i := range k.private {
		k.private[i] = 0
	}
	k.private = nil
}

// Destroyed reports whether the key can no longer sign
func (k *SigningKey) Destroyed() bool {
	return k == nil || len(k.private) == 0
}

// APICredential authorizes exchange API calls for one account
type APICredential struct {
	AccountID uint32
	Key       string
}

// StorageID is the exchange's per-account uniqueness token
type StorageID struct {
	OrderID    uint32 `json:"order_id"`
	OffchainID uint32 `json:"offchain_id"`
}

// ExchangeInfo is exchange-wide metadata
type ExchangeInfo struct {
	ChainID         int64          `json:"chain_id"`
	ExchangeAddress common.Address `json:"exchange_address"`
	DepositAddress  common.Address `json:"deposit_address"`
	OnchainFees     []TokenFee     `json:"onchain_fees,omitempty"`
}

// CheckPairing fails with ErrStaleCredential unless key and cred were derived from acc.
func CheckPairing(acc *AccountInfo, key *SigningKey, cred *APICredential) error {
	if acc == nil || key == nil {
		return ErrStaleCredential
	}
	if key.AccountID != acc.AccountID || key.Nonce != acc.Nonce {
		return ErrStaleCredential
	}
	if cred != nil && cred.AccountID != acc.AccountID {
		return ErrStaleCredential
	}
	return nil
}
