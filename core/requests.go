package core

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// FeeRequestType selects which off-chain request a fee quote is for
type FeeRequestType int

const (
	FeeRequestOrder                    FeeRequestType = 0
	FeeRequestOffchainWithdrawal       FeeRequestType = 1
	FeeRequestUpdateAccount            FeeRequestType = 2
	FeeRequestTransfer                 FeeRequestType = 3
	FeeRequestTransferAndUpdateAccount FeeRequestType = 15
)

// TxType filters the user transaction history
type TxType string

const (
	TxTypeDeposit            TxType = "deposit"
	TxTypeTransfer           TxType = "transfer"
	TxTypeOffchainWithdrawal TxType = "offchain_withdrawal"
)

// WalletType names the signing convention of an RPC provider
type WalletType string

const (
	WalletTypeUnknown  WalletType = "Unknown"
	WalletTypeMetaMask WalletType = "MetaMask"
)

// Valid reports whether t is a recognized wallet type
func (t WalletType) Valid() bool {
	return t == WalletTypeUnknown || t == WalletTypeMetaMask
}

// TokenVolume is an amount of a token in its smallest unit
type TokenVolume struct {
	TokenID uint32          `json:"token_id"`
	Volume  decimal.Decimal `json:"volume"`
}

// TokenFee is the quoted fee for one token
type TokenFee struct {
	Token    string          `json:"token"`
	Fee      decimal.Decimal `json:"fee"`
	Discount float64         `json:"discount,omitempty"`
}

// FeeQuote is a fee quote keyed by token symbol
type FeeQuote struct {
	GasPrice decimal.Decimal     `json:"gas_price"`
	Fees     map[string]TokenFee `json:"fees"`
}

// FeeFor returns the quoted fee for symbol, or fallback when the quote omits it.
func (q *FeeQuote) FeeFor(symbol string, fallback decimal.Decimal) decimal.Decimal {
	if q == nil {
		return fallback
	}
	fee, ok := q.Fees[symbol]
	if !ok {
		return fallback
	}
	return fee.Fee
}

// TransferRequest is an off-chain internal transfer
type TransferRequest struct {
	Exchange              common.Address `json:"exchange"`
	PayerAddr             common.Address `json:"payer_addr"`
	PayerID               uint32         `json:"payer_id"`
	PayeeAddr             common.Address `json:"payee_addr"`
	PayeeID               uint32         `json:"payee_id"`
	StorageID             uint32         `json:"storage_id"`
	Token                 TokenVolume    `json:"token"`
	MaxFee                TokenVolume    `json:"max_fee"`
	ValidUntil            int64          `json:"valid_until"`
	PayPayeeUpdateAccount bool           `json:"pay_payee_update_account"`
	Memo                  string         `json:"memo,omitempty"`
}

// AccountUpdateRequest activates an account or resets its trading key
type AccountUpdateRequest struct {
	Exchange   common.Address `json:"exchange"`
	Owner      common.Address `json:"owner"`
	AccountID  uint32         `json:"account_id"`
	PublicKey  PublicKey      `json:"public_key"`
	MaxFee     TokenVolume    `json:"max_fee"`
	KeySeed    string         `json:"key_seed"`
	ValidUntil int64          `json:"valid_until"`
	Nonce      uint32         `json:"nonce"`
}

// TxResult is the exchange's answer to a submitted request
type TxResult struct {
	Hash       string `json:"hash"`
	Status     string `json:"status"`
	Idempotent bool   `json:"is_idempotent"`
}

// Transaction is one entry of the user transaction history
type Transaction struct {
	ID        int64           `json:"id"`
	Hash      string          `json:"hash"`
	Type      TxType          `json:"tx_type"`
	Symbol    string          `json:"symbol"`
	Amount    decimal.Decimal `json:"amount"`
	Sender    string          `json:"sender_address,omitempty"`
	Receiver  string          `json:"receiver_address,omitempty"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// Deadline returns the validity deadline, in unix seconds, for a request created at now.
func Deadline(now time.Time, window time.Duration) int64 {
	return now.Add(window).Unix()
}
