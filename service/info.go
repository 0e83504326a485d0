package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/ledgerlink/core"
	"github.com/layer-3/ledgerlink/ports"
)

// historyTypes are the transaction types shown to the user
var historyTypes = []core.TxType{
	core.TxTypeDeposit,
	core.TxTypeTransfer,
	core.TxTypeOffchainWithdrawal,
}

// InfoResult is a read-only snapshot of the exchange and the user's account
type InfoResult struct {
	Exchange     *core.ExchangeInfo `json:"exchange"`
	Account      *core.AccountInfo  `json:"account"`
	Transactions []core.Transaction `json:"transactions"`
}

// GetInfo fetches exchange info, the session's account and its transaction
// history. Concurrent calls for the same account share one exchange round trip.
func (o *Orchestrator) GetInfo(ctx context.Context, session *core.Session, signer ports.Signer) (*Outcome, error) {
	if session == nil || signer == nil {
		return nil, core.NewOpError(OpInfo, "validate", "", core.ErrSessionInvalid)
	}
	owner := signer.Address()
	if owner != common.HexToAddress(session.Address) {
		return nil, core.NewOpError(OpInfo, "validate", "", core.ErrSessionInvalid)
	}

	// The shared call outlives any single caller; each caller stops waiting
	// on its own context.
	detached := context.WithoutCancel(ctx)
	ch := o.group.DoChan(strings.ToLower(owner.Hex()), func() (interface{}, error) {
		return o.info(detached, session, owner, signer)
	})

	select {
	case <-ctx.Done():
		return nil, core.NewOpError(OpInfo, "wait", "", ctx.Err())
	case res := <-ch:
		if res.Shared {
			o.logger.Debug(ctx, "info request shared", "account", owner.Hex())
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Outcome), nil
	}
}

func (o *Orchestrator) info(ctx context.Context, session *core.Session, owner common.Address, signer ports.Signer) (*Outcome, error) {
	var (
		acc  *core.AccountInfo
		key  *core.SigningKey
		cred *core.APICredential
	)
	res := &InfoResult{}
	outcome := &Outcome{Op: OpInfo, Info: res}

	steps := []step{
		{name: "exchange_info", run: func(ctx context.Context) error {
			info, err := o.exchange.GetExchangeInfo(ctx)
			if err != nil {
				return fmt.Errorf("get exchange info: %w", err)
			}
			res.Exchange = info
			return nil
		}},
		{name: "get_account", run: func(ctx context.Context) error {
			a, err := o.exchange.GetAccount(ctx, owner)
			if err != nil {
				return fmt.Errorf("get account %s: %w", owner.Hex(), err)
			}
			acc = a
			res.Account = a
			return nil
		}},
		{name: "derive_key", run: func(ctx context.Context) error {
			k, err := o.exchange.DeriveSigningKey(ctx, acc, signer)
			if err != nil {
				return fmt.Errorf("derive signing key: %w", err)
			}
			key = k
			return nil
		}},
		{name: "get_api_key", run: func(ctx context.Context) error {
			c, err := o.exchange.GetAPICredential(ctx, acc.AccountID, key)
			if err != nil {
				return fmt.Errorf("get api key: %w", err)
			}
			cred = c
			return nil
		}},
		{name: "history", run: func(ctx context.Context) error {
			txs, err := o.exchange.GetTransactionHistory(ctx, acc.AccountID, historyTypes, cred)
			if err != nil {
				return fmt.Errorf("get transaction history: %w", err)
			}
			res.Transactions = txs
			return nil
		}},
	}

	op := o.newOperation(OpInfo, session.Address, "", steps, func() { key.Destroy() })
	op.outcome = outcome
	outcome.OperationID = op.id

	return o.execute(ctx, op)
}
