package service

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/ledgerlink/core"
	"github.com/layer-3/ledgerlink/ports"
	"github.com/shopspring/decimal"
)

// ActivationResult is the outcome of an account update
type ActivationResult struct {
	AccountID uint32            `json:"account_id"`
	PublicKey core.PublicKey    `json:"public_key"`
	Fee       decimal.Decimal   `json:"fee"`
	Result    *core.TxResult    `json:"result"`
	Account   *core.AccountInfo `json:"account,omitempty"`
}

// ActivateAccount registers a freshly derived trading key for the session's account
func (o *Orchestrator) ActivateAccount(ctx context.Context, session *core.Session, signer ports.Signer) (*Outcome, error) {
	if session == nil || signer == nil {
		return nil, core.NewOpError(OpActivate, "validate", "", core.ErrSessionInvalid)
	}
	owner := signer.Address()
	if owner != common.HexToAddress(session.Address) {
		return nil, core.NewOpError(OpActivate, "validate", "", core.ErrSessionInvalid)
	}

	var (
		acc  *core.AccountInfo
		seed string
		key  *core.SigningKey
		fee  decimal.Decimal
	)
	outcome := &Outcome{Op: OpActivate}

	steps := []step{
		{name: "get_account", run: func(ctx context.Context) error {
			a, err := o.exchange.GetAccount(ctx, owner)
			if err != nil {
				return fmt.Errorf("get account %s: %w", owner.Hex(), err)
			}
			acc = a
			return nil
		}},
		{name: "key_seed", run: func(ctx context.Context) error {
			seed = core.KeySeed(o.settings.ExchangeAddress, acc.Nonce)
			return nil
		}},
		{name: "derive_key", run: func(ctx context.Context) error {
			k, err := o.exchange.GenerateKeyPair(ctx, acc, seed, signer)
			if err != nil {
				return fmt.Errorf("generate key pair: %w", err)
			}
			key = k
			return nil
		}},
		{name: "get_fee", run: func(ctx context.Context) error {
			quote, err := o.exchange.GetActiveFeeInfo(ctx, acc.AccountID)
			if err != nil {
				return fmt.Errorf("get active fee info: %w", err)
			}
			fee = quote.FeeFor(o.settings.TokenSymbol, o.settings.DefaultFee)
			return nil
		}},
		{name: "submit", run: func(ctx context.Context) error {
			if err := core.CheckPairing(acc, key, nil); err != nil {
				return err
			}
			req := &core.AccountUpdateRequest{
				Exchange:   o.settings.ExchangeAddress,
				Owner:      acc.Owner,
				AccountID:  acc.AccountID,
				PublicKey:  key.PublicKey,
				MaxFee:     core.TokenVolume{TokenID: o.settings.TokenID, Volume: fee},
				KeySeed:    seed,
				ValidUntil: core.Deadline(o.now(), o.settings.ValidityWindow),
				Nonce:      acc.Nonce,
			}
			res, err := o.exchange.SubmitAccountUpdate(ctx, req, key, signer)
			if err != nil {
				return fmt.Errorf("submit account update: %w", err)
			}
			outcome.Activation = &ActivationResult{
				AccountID: acc.AccountID,
				PublicKey: key.PublicKey,
				Fee:       fee,
				Result:    res,
			}
			return nil
		}},
		// display only; the update is already accepted
		{name: "refresh_account", run: func(ctx context.Context) error {
			a, err := o.exchange.GetAccount(ctx, owner)
			if err != nil {
				return fmt.Errorf("refresh account: %w", err)
			}
			outcome.Activation.Account = a
			return nil
		}},
	}

	op := o.newOperation(OpActivate, session.Address, owner.Hex(), steps, func() { key.Destroy() })
	op.outcome = outcome
	outcome.OperationID = op.id

	return o.execute(ctx, op)
}
