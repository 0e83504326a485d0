package rpc

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/ledgerlink/core"
	"github.com/layer-3/ledgerlink/ports"
)

// KeySigner signs with a directly-held secp256k1 key
type KeySigner struct {
	key        *ecdsa.PrivateKey
	address    common.Address
	walletType core.WalletType
}

var _ ports.Signer = (*KeySigner)(nil)

// NewKeySigner creates a signer for key using the given wallet convention
func NewKeySigner(key *ecdsa.PrivateKey, walletType core.WalletType) *KeySigner {
	return &KeySigner{
		key:        key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
		walletType: walletType,
	}
}

// NewKeySignerFromHex parses a hex private key, with or without 0x prefix
func NewKeySignerFromHex(hexKey string, walletType core.WalletType) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewKeySigner(key, walletType), nil
}

func (s *KeySigner) Address() common.Address {
	return s.address
}

func (s *KeySigner) WalletType() core.WalletType {
	return s.walletType
}

// SignMessage produces an EIP-191 personal_sign signature with a 0/1 recovery byte
func (s *KeySigner) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(accounts.TextHash(msg), s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSignatureRejected, err)
	}
	return sig, nil
}

// RecoverAddress returns the address that produced an EIP-191 signature over msg.
// Both 0/1 and 27/28 recovery bytes are accepted.
func RecoverAddress(msg, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes: %w", crypto.SignatureLength, core.ErrSignatureRejected)
	}

	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(msg), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", core.ErrSignatureRejected, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
