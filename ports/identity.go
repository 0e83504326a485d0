package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/ledgerlink/core"
)

// IdentityProvider issues sessions and custodial addresses for email identities
type IdentityProvider interface {
	LoginWithEmail(ctx context.Context, email string) (*core.Session, string, error)
	IsLoggedIn(ctx context.Context, token string) (bool, error)
	Logout(ctx context.Context, token string) error
	GetMetadata(ctx context.Context, token string) (*core.UserMetadata, error)

	// Session resolves a token into the session it was issued for
	Session(ctx context.Context, token string) (*core.Session, error)

	// Signer returns the provider's embedded signer for the session's address
	Signer(ctx context.Context, token string) (Signer, error)
}

// Signer is the chain RPC surface the exchange client needs: an address and message signatures
type Signer interface {
	Address() common.Address
	WalletType() core.WalletType
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)
}
