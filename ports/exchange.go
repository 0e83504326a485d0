package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/ledgerlink/core"
)

// Exchange is the off-chain account API of the exchange
type Exchange interface {
	GetAccount(ctx context.Context, owner common.Address) (*core.AccountInfo, error)

	// DeriveSigningKey derives the account's current trading key with the account's own key seed
	DeriveSigningKey(ctx context.Context, acc *core.AccountInfo, signer Signer) (*core.SigningKey, error)

	// GenerateKeyPair derives a trading key from an explicit seed
	GenerateKeyPair(ctx context.Context, acc *core.AccountInfo, seed string, signer Signer) (*core.SigningKey, error)

	GetAPICredential(ctx context.Context, accountID uint32, key *core.SigningKey) (*core.APICredential, error)
	GetNextStorageID(ctx context.Context, accountID, sellTokenID uint32, cred *core.APICredential) (*core.StorageID, error)
	GetFeeQuote(ctx context.Context, accountID uint32, reqType core.FeeRequestType, cred *core.APICredential) (*core.FeeQuote, error)
	SubmitTransfer(ctx context.Context, req *core.TransferRequest, key *core.SigningKey, cred *core.APICredential, signer Signer) (*core.TxResult, error)
	SubmitAccountUpdate(ctx context.Context, req *core.AccountUpdateRequest, key *core.SigningKey, signer Signer) (*core.TxResult, error)
	GetTransactionHistory(ctx context.Context, accountID uint32, types []core.TxType, cred *core.APICredential) ([]core.Transaction, error)
	GetExchangeInfo(ctx context.Context) (*core.ExchangeInfo, error)
	GetActiveFeeInfo(ctx context.Context, accountID uint32) (*core.FeeQuote, error)
}
