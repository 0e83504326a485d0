package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/ledgerlink/core"
	"github.com/layer-3/ledgerlink/ports"
	"github.com/shopspring/decimal"
)

// ErrNoFunding is returned by Deposit when no funding account is configured
var ErrNoFunding = errors.New("no funding account configured")

// TransferParams describes an internal transfer between two exchange accounts
type TransferParams struct {
	Signer    ports.Signer
	PayeeAddr common.Address
	PayeeID   uint32
	Amount    decimal.Decimal
	Memo      string

	// Op labels the operation in logs, metrics and events; defaults to "transfer"
	Op string
	// Owner may retry the operation; defaults to the payer address
	Owner string
}

// SendParams is a user-initiated transfer. Zero values fall back to the configured peer.
type SendParams struct {
	Destination string
	AccountID   uint32
	Amount      decimal.Decimal
}

// TransferResult is what the exchange accepted
type TransferResult struct {
	Payer     common.Address  `json:"payer"`
	PayerID   uint32          `json:"payer_id"`
	Payee     common.Address  `json:"payee"`
	PayeeID   uint32          `json:"payee_id"`
	Amount    decimal.Decimal `json:"amount"`
	Fee       decimal.Decimal `json:"fee"`
	StorageID uint32          `json:"storage_id"`
	Result    *core.TxResult  `json:"result"`
}

type transferState struct {
	acc   *core.AccountInfo
	key   *core.SigningKey
	cred  *core.APICredential
	sid   *core.StorageID
	quote *core.FeeQuote
	fee   decimal.Decimal
	req   *core.TransferRequest
}

// Transfer runs the internal transfer pipeline for params.Signer's account.
// The payer fields of the request always come from the account fetched by
// this operation.
func (o *Orchestrator) Transfer(ctx context.Context, params TransferParams) (*Outcome, error) {
	kind := params.Op
	if kind == "" {
		kind = OpTransfer
	}
	if err := o.validateTransfer(params); err != nil {
		return nil, core.NewOpError(kind, "validate", "", err)
	}

	signer := params.Signer
	payer := signer.Address()
	owner := params.Owner
	if owner == "" {
		owner = payer.Hex()
	}

	st := &transferState{}
	outcome := &Outcome{Op: kind}

	steps := []step{
		{name: "get_account", run: func(ctx context.Context) error {
			acc, err := o.exchange.GetAccount(ctx, payer)
			if err != nil {
				return fmt.Errorf("get account %s: %w", payer.Hex(), err)
			}
			st.acc = acc
			return nil
		}},
		{name: "derive_key", run: func(ctx context.Context) error {
			key, err := o.exchange.DeriveSigningKey(ctx, st.acc, signer)
			if err != nil {
				return fmt.Errorf("derive signing key: %w", err)
			}
			st.key = key
			return nil
		}},
		{name: "get_api_key", run: func(ctx context.Context) error {
			cred, err := o.exchange.GetAPICredential(ctx, st.acc.AccountID, st.key)
			if err != nil {
				return fmt.Errorf("get api key: %w", err)
			}
			st.cred = cred
			return nil
		}},
		{name: "get_storage_id", run: func(ctx context.Context) error {
			sid, err := o.exchange.GetNextStorageID(ctx, st.acc.AccountID, o.settings.TokenID, st.cred)
			if err != nil {
				return fmt.Errorf("get storage id: %w", err)
			}
			st.sid = sid
			return nil
		}},
		{name: "get_fee", run: func(ctx context.Context) error {
			quote, err := o.exchange.GetFeeQuote(ctx, st.acc.AccountID, core.FeeRequestTransferAndUpdateAccount, st.cred)
			if err != nil {
				return fmt.Errorf("get fee quote: %w", err)
			}
			st.quote = quote
			st.fee = quote.FeeFor(o.settings.TokenSymbol, o.settings.DefaultFee)
			return nil
		}},
		{name: "build_request", run: func(ctx context.Context) error {
			st.req = &core.TransferRequest{
				Exchange:              o.settings.ExchangeAddress,
				PayerAddr:             st.acc.Owner,
				PayerID:               st.acc.AccountID,
				PayeeAddr:             params.PayeeAddr,
				PayeeID:               params.PayeeID,
				StorageID:             st.sid.OffchainID,
				Token:                 core.TokenVolume{TokenID: o.settings.TokenID, Volume: params.Amount},
				MaxFee:                core.TokenVolume{TokenID: o.settings.TokenID, Volume: st.fee},
				ValidUntil:            core.Deadline(o.now(), o.settings.ValidityWindow),
				PayPayeeUpdateAccount: true,
				Memo:                  params.Memo,
			}
			return nil
		}},
		{name: "submit", run: func(ctx context.Context) error {
			if err := core.CheckPairing(st.acc, st.key, st.cred); err != nil {
				return err
			}
			res, err := o.exchange.SubmitTransfer(ctx, st.req, st.key, st.cred, signer)
			if err != nil {
				return fmt.Errorf("submit transfer: %w", err)
			}
			outcome.Transfer = &TransferResult{
				Payer:     st.req.PayerAddr,
				PayerID:   st.req.PayerID,
				Payee:     st.req.PayeeAddr,
				PayeeID:   st.req.PayeeID,
				Amount:    st.req.Token.Volume,
				Fee:       st.req.MaxFee.Volume,
				StorageID: st.req.StorageID,
				Result:    res,
			}
			return nil
		}},
	}

	op := o.newOperation(kind, owner, payer.Hex(), steps, func() { st.key.Destroy() })
	op.outcome = outcome
	outcome.OperationID = op.id

	return o.execute(ctx, op)
}

func (o *Orchestrator) validateTransfer(params TransferParams) error {
	if params.Signer == nil {
		return core.ErrSessionInvalid
	}
	if params.PayeeAddr == (common.Address{}) {
		return core.ErrInvalidAddress
	}
	if !params.Amount.IsPositive() {
		return core.ErrInvalidAmount
	}
	return nil
}

// Deposit funds the session's account from the funding account
func (o *Orchestrator) Deposit(ctx context.Context, session *core.Session) (*Outcome, error) {
	if session == nil {
		return nil, core.NewOpError(OpDeposit, "validate", "", core.ErrSessionInvalid)
	}
	if o.settings.Funding == nil {
		return nil, core.NewOpError(OpDeposit, "validate", "", ErrNoFunding)
	}
	if !common.IsHexAddress(session.Address) {
		return nil, core.NewOpError(OpDeposit, "validate", "", core.ErrInvalidAddress)
	}

	return o.Transfer(ctx, TransferParams{
		Signer:    o.settings.Funding,
		PayeeAddr: common.HexToAddress(session.Address),
		PayeeID:   0,
		Amount:    o.settings.TradeValue.Mul(decimal.NewFromInt(2)),
		Op:        OpDeposit,
		Owner:     session.Address,
	})
}

// Send transfers from the session's account to the destination in params
func (o *Orchestrator) Send(ctx context.Context, session *core.Session, signer ports.Signer, params SendParams) (*Outcome, error) {
	if session == nil || signer == nil {
		return nil, core.NewOpError(OpSend, "validate", "", core.ErrSessionInvalid)
	}
	if !strings.EqualFold(signer.Address().Hex(), session.Address) {
		return nil, core.NewOpError(OpSend, "validate", "", core.ErrSessionInvalid)
	}

	payee := o.settings.PeerAddress
	payeeID := o.settings.PeerAccountID
	if params.Destination != "" {
		if !common.IsHexAddress(params.Destination) {
			return nil, core.NewOpError(OpSend, "validate", "", core.ErrInvalidAddress)
		}
		payee = common.HexToAddress(params.Destination)
		payeeID = params.AccountID
	}

	amount := params.Amount
	if amount.IsZero() {
		amount = o.settings.TradeValue.Div(decimal.NewFromInt(10))
	}

	return o.Transfer(ctx, TransferParams{
		Signer:    signer,
		PayeeAddr: payee,
		PayeeID:   payeeID,
		Amount:    amount,
		Op:        OpSend,
		Owner:     session.Address,
	})
}
