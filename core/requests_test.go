package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFeeFor(t *testing.T) {
	fallback := decimal.RequireFromString("9400000000000000000")
	quote := &FeeQuote{Fees: map[string]TokenFee{
		"LRC": {Token: "LRC", Fee: decimal.NewFromInt(12)},
	}}

	assert.Equal(t, "12", quote.FeeFor("LRC", fallback).String())
	assert.Equal(t, "9400000000000000000", quote.FeeFor("ETH", fallback).String())

	var none *FeeQuote
	assert.True(t, none.FeeFor("LRC", fallback).Equal(fallback))
}

func TestDeadline(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	assert.Equal(t, int64(1_700_000_000+3600), Deadline(now, time.Hour))
}

func TestWalletTypeValid(t *testing.T) {
	assert.True(t, WalletTypeMetaMask.Valid())
	assert.True(t, WalletTypeUnknown.Valid())
	assert.False(t, WalletType("Ledger").Valid())
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	s := &Session{ExpiresAt: now}
	assert.False(t, s.Expired(now.Add(-time.Second)))
	assert.True(t, s.Expired(now.Add(time.Second)))
	assert.False(t, (&Session{}).Expired(now))
}
