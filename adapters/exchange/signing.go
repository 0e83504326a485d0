package exchange

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"net/url"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/ledgerlink/core"
	"github.com/layer-3/ledgerlink/ports"
)

// signatureBase builds the string the exchange expects request signatures over:
// METHOD&urlencode(url)&urlencode(params), where params is the sorted query for
// GET/DELETE and the raw JSON body otherwise.
func signatureBase(method, fullURL, params string) string {
	return method + "&" + url.QueryEscape(fullURL) + "&" + url.QueryEscape(params)
}

// eddsaSign signs the keccak256 hash of data with the trading key
func eddsaSign(key *core.SigningKey, data []byte) (string, error) {
	sig := key.Sign(crypto.Keccak256(data))
	if sig == nil {
		return "", fmt.Errorf("signing key already used: %w", core.ErrStaleCredential)
	}
	return hexutil.Encode(sig), nil
}

// ecdsaSign asks the wallet to sign the keccak256 hash of data
func ecdsaSign(ctx context.Context, signer ports.Signer, data []byte) (string, error) {
	sig, err := signer.SignMessage(ctx, crypto.Keccak256(data))
	if err != nil {
		return "", err
	}
	return hexutil.Encode(normalizeSignature(sig, signer.WalletType())), nil
}

// normalizeSignature applies the recovery byte convention of the wallet type
func normalizeSignature(sig []byte, walletType core.WalletType) []byte {
	out := make([]byte, len(sig))
	copy(out, sig)
	if len(out) != crypto.SignatureLength {
		return out
	}

	v := out[crypto.RecoveryIDOffset]
	switch walletType {
	case core.WalletTypeMetaMask:
		if v < 27 {
			out[crypto.RecoveryIDOffset] = v + 27
		}
	default:
		if v >= 27 {
			out[crypto.RecoveryIDOffset] = v - 27
		}
	}
	return out
}

// deriveKey turns a wallet signature of seed into a trading key. The same
// wallet, seed and wallet type always yield the same key.
func deriveKey(ctx context.Context, acc *core.AccountInfo, seed string, signer ports.Signer) (*core.SigningKey, error) {
	if signer.Address() != acc.Owner {
		return nil, fmt.Errorf("signer %s does not own account %d: %w", signer.Address().Hex(), acc.AccountID, core.ErrSignatureRejected)
	}

	sig, err := signer.SignMessage(ctx, []byte(seed))
	if err != nil {
		return nil, fmt.Errorf("failed to sign key seed: %w", err)
	}
	sig = normalizeSignature(sig, signer.WalletType())

	priv := ed25519.NewKeyFromSeed(crypto.Keccak256(sig))
	pub := priv.Public().(ed25519.PublicKey)

	return core.NewSigningKey(acc, seed, priv, core.PublicKey{
		X: hexutil.Encode(pub[:ed25519.PublicKeySize/2]),
		Y: hexutil.Encode(pub[ed25519.PublicKeySize/2:]),
	}), nil
}

// VerifyTradingSignature checks an eddsa signature produced by a trading key with the given public key
func VerifyTradingSignature(pub core.PublicKey, data []byte, sigHex string) bool {
	x, err := hexutil.Decode(pub.X)
	if err != nil {
		return false
	}
	y, err := hexutil.Decode(pub.Y)
	if err != nil {
		return false
	}
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return false
	}
	key := append(x, y...)
	if len(key) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(key), crypto.Keccak256(data), sig)
}
