package exchange

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/ledgerlink/core"
	"github.com/shopspring/decimal"
)

// Wire types mirror the exchange's /api/v3 JSON shapes

type resultInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type errorBody struct {
	ResultInfo *resultInfo `json:"resultInfo"`
}

type publicKeyDTO struct {
	X string `json:"x"`
	Y string `json:"y"`
}

type accountDTO struct {
	AccountID uint32         `json:"accountId"`
	Owner     common.Address `json:"owner"`
	Frozen    bool           `json:"frozen"`
	PublicKey publicKeyDTO   `json:"publicKey"`
	Tags      string         `json:"tags"`
	Nonce     uint32         `json:"nonce"`
	KeyNonce  uint32         `json:"keyNonce"`
	KeySeed   string         `json:"keySeed"`
}

func (a accountDTO) toCore() *core.AccountInfo {
	return &core.AccountInfo{
		Owner:     a.Owner,
		AccountID: a.AccountID,
		Nonce:     a.Nonce,
		KeyNonce:  a.KeyNonce,
		KeySeed:   a.KeySeed,
		Frozen:    a.Frozen,
		PublicKey: core.PublicKey{X: a.PublicKey.X, Y: a.PublicKey.Y},
	}
}

type apiKeyDTO struct {
	APIKey string `json:"apiKey"`
}

type storageIDDTO struct {
	OrderID    uint32 `json:"orderId"`
	OffchainID uint32 `json:"offchainId"`
}

type tokenFeeDTO struct {
	Token    string              `json:"token"`
	Fee      decimal.NullDecimal `json:"fee"`
	Discount float64             `json:"discount"`
}

type feeQuoteDTO struct {
	GasPrice decimal.Decimal `json:"gasPrice"`
	Fees     []tokenFeeDTO   `json:"fees"`
}

func (f feeQuoteDTO) toCore() *core.FeeQuote {
	q := &core.FeeQuote{
		GasPrice: f.GasPrice,
		Fees:     make(map[string]core.TokenFee, len(f.Fees)),
	}
	for _, fee := range f.Fees {
		// a listed token without a fee value counts as not quoted
		if !fee.Fee.Valid {
			continue
		}
		q.Fees[fee.Token] = core.TokenFee{Token: fee.Token, Fee: fee.Fee.Decimal, Discount: fee.Discount}
	}
	return q
}

type tokenVolumeDTO struct {
	TokenID uint32 `json:"tokenId"`
	Volume  string `json:"volume"`
}

func volumeDTO(v core.TokenVolume) tokenVolumeDTO {
	return tokenVolumeDTO{TokenID: v.TokenID, Volume: v.Volume.String()}
}

type transferDTO struct {
	Exchange              common.Address `json:"exchange"`
	PayerAddr             common.Address `json:"payerAddr"`
	PayerID               uint32         `json:"payerId"`
	PayeeAddr             common.Address `json:"payeeAddr"`
	PayeeID               uint32         `json:"payeeId"`
	StorageID             uint32         `json:"storageId"`
	Token                 tokenVolumeDTO `json:"token"`
	MaxFee                tokenVolumeDTO `json:"maxFee"`
	ValidUntil            int64          `json:"validUntil"`
	PayPayeeUpdateAccount bool           `json:"payPayeeUpdateAccount"`
	Memo                  string         `json:"memo,omitempty"`
	EddsaSignature        string         `json:"eddsaSignature,omitempty"`
	EcdsaSignature        string         `json:"ecdsaSignature,omitempty"`
}

func newTransferDTO(r *core.TransferRequest) transferDTO {
	return transferDTO{
		Exchange:              r.Exchange,
		PayerAddr:             r.PayerAddr,
		PayerID:               r.PayerID,
		PayeeAddr:             r.PayeeAddr,
		PayeeID:               r.PayeeID,
		StorageID:             r.StorageID,
		Token:                 volumeDTO(r.Token),
		MaxFee:                volumeDTO(r.MaxFee),
		ValidUntil:            r.ValidUntil,
		PayPayeeUpdateAccount: r.PayPayeeUpdateAccount,
		Memo:                  r.Memo,
	}
}

type accountUpdateDTO struct {
	Exchange       common.Address `json:"exchange"`
	Owner          common.Address `json:"owner"`
	AccountID      uint32         `json:"accountId"`
	PublicKey      publicKeyDTO   `json:"publicKey"`
	MaxFee         tokenVolumeDTO `json:"maxFee"`
	KeySeed        string         `json:"keySeed"`
	ValidUntil     int64          `json:"validUntil"`
	Nonce          uint32         `json:"nonce"`
	EddsaSignature string         `json:"eddsaSignature,omitempty"`
	EcdsaSignature string         `json:"ecdsaSignature,omitempty"`
}

func newAccountUpdateDTO(r *core.AccountUpdateRequest) accountUpdateDTO {
	return accountUpdateDTO{
		Exchange:   r.Exchange,
		Owner:      r.Owner,
		AccountID:  r.AccountID,
		PublicKey:  publicKeyDTO{X: r.PublicKey.X, Y: r.PublicKey.Y},
		MaxFee:     volumeDTO(r.MaxFee),
		KeySeed:    r.KeySeed,
		ValidUntil: r.ValidUntil,
		Nonce:      r.Nonce,
	}
}

type txResultDTO struct {
	Hash         string `json:"hash"`
	Status       string `json:"status"`
	IsIdempotent bool   `json:"isIdempotent"`
}

type transactionDTO struct {
	ID              int64           `json:"id"`
	TxType          string          `json:"txType"`
	Hash            string          `json:"hash"`
	Symbol          string          `json:"symbol"`
	Amount          decimal.Decimal `json:"amount"`
	SenderAddress   string          `json:"senderAddress"`
	ReceiverAddress string          `json:"receiverAddress"`
	Status          string          `json:"status"`
	CreatedAt       int64           `json:"createdAt"`
}

type transactionsDTO struct {
	TotalNum     int              `json:"totalNum"`
	Transactions []transactionDTO `json:"transactions"`
}

func (t transactionDTO) toCore() core.Transaction {
	return core.Transaction{
		ID:        t.ID,
		Hash:      t.Hash,
		Type:      core.TxType(t.TxType),
		Symbol:    t.Symbol,
		Amount:    t.Amount,
		Sender:    t.SenderAddress,
		Receiver:  t.ReceiverAddress,
		Status:    t.Status,
		CreatedAt: time.UnixMilli(t.CreatedAt).UTC(),
	}
}

type exchangeInfoDTO struct {
	ChainID         int64          `json:"chainId"`
	ExchangeAddress common.Address `json:"exchangeAddress"`
	DepositAddress  common.Address `json:"depositAddress"`
	OnchainFees     []tokenFeeDTO  `json:"onchainFees"`
}

func (e exchangeInfoDTO) toCore() *core.ExchangeInfo {
	info := &core.ExchangeInfo{
		ChainID:         e.ChainID,
		ExchangeAddress: e.ExchangeAddress,
		DepositAddress:  e.DepositAddress,
	}
	for _, fee := range e.OnchainFees {
		info.OnchainFees = append(info.OnchainFees, core.TokenFee{Token: fee.Token, Fee: fee.Fee.Decimal, Discount: fee.Discount})
	}
	return info
}

// APIError is an error reported by the exchange
type APIError struct {
	Status  int
	Code    int
	Message string
	kind    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange error (http %d, code %d): %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.kind
}
