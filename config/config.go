// Package config loads runtime configuration for ledgerlink.
//
// Sources, later ones taking precedence:
//
//  1. Built-in defaults (see Defaults).
//  2. Optional YAML file named by LEDGERLINK_CONFIG or the -config flag.
//  3. Environment variables (LEDGERLINK_*, plus REDIS_URL).
//
// Validate reports every field that is missing or malformed.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/ledgerlink/core"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Account is a known exchange account
type Account struct {
	// Address is the account owner
	Address string `yaml:"address"`
	// AccountID is the exchange account id
	AccountID uint32 `yaml:"account_id"`
	// PrivateKey is set only for accounts this service signs for directly
	PrivateKey string `yaml:"private_key"`
}

// Exchange describes the exchange deployment requests are built for
type Exchange struct {
	// URL is the REST API base URL
	URL string `yaml:"url"`
	// Address is the exchange contract address put into every request
	Address string `yaml:"address"`
	// ChainID is the chain the exchange is deployed on
	ChainID int64 `yaml:"chain_id"`
	// WalletType selects the signing convention for key derivation (Unknown, MetaMask)
	WalletType core.WalletType `yaml:"wallet_type"`
	// ValidityWindow is how long submitted requests stay valid
	ValidityWindow time.Duration `yaml:"validity_window"`
	// TokenSymbol and TokenID name the token transfers and fees are paid in
	TokenSymbol string `yaml:"token_symbol"`
	TokenID     uint32 `yaml:"token_id"`
	// DefaultFee is used when a fee quote omits TokenSymbol
	DefaultFee string `yaml:"default_fee"`
	// TradeValue is the base amount: deposits move twice it, sends a tenth
	TradeValue string `yaml:"trade_value"`
	// RateLimit caps outgoing requests per second; Burst is the bucket size
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
	// Timeout bounds a single HTTP round trip
	Timeout time.Duration `yaml:"timeout"`
}

// Config holds runtime settings for the ledgerlink service
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`
	// RedisURL enables the Redis session store, account lock and event stream when set
	RedisURL string `yaml:"redis_url"`
	// RPCURL is an optional chain node checked against Exchange.ChainID at startup
	RPCURL string `yaml:"rpc_url"`

	SessionTTL time.Duration `yaml:"session_ttl"`
	// OperationTimeout bounds a whole orchestrator operation
	OperationTimeout time.Duration `yaml:"operation_timeout"`
	// LockWait is how long an operation waits for another one on the same account
	LockWait time.Duration `yaml:"lock_wait"`
	// OperationTTL is how long a failed operation can be retried
	OperationTTL time.Duration `yaml:"operation_ttl"`

	Exchange Exchange `yaml:"exchange"`
	// Funding is the account deposits are paid from
	Funding Account `yaml:"funding"`
	// Peer is the default destination of sends
	Peer Account `yaml:"peer"`
}

// Defaults returns a Config targeting the Goerli test deployment
func Defaults() *Config {
	return &Config{
		ListenAddr:       ":9000",
		LogLevel:         "info",
		SessionTTL:       24 * time.Hour,
		OperationTimeout: 2 * time.Minute,
		LockWait:         2 * time.Second,
		OperationTTL:     15 * time.Minute,
		Exchange: Exchange{
			URL:            "https://uat2.loopring.io",
			Address:        "0x2e76EBd1c7c0C8e7c2B875b6d505a260C525d25B",
			ChainID:        5,
			WalletType:     core.WalletTypeUnknown,
			ValidityWindow: 30 * 24 * time.Hour,
			TokenSymbol:    "LRC",
			TokenID:        1,
			DefaultFee:     "9400000000000000000",
			TradeValue:     "1000000000000000000",
			RateLimit:      5,
			Burst:          5,
			Timeout:        15 * time.Second,
		},
	}
}

// Load builds a Config from defaults, the optional YAML file at path, and the environment
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("LEDGERLINK_CONFIG")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
		return nil
	}
	u32 := func(key string, dst *uint32) error {
		if v, ok := lookup(key); ok {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = uint32(n)
		}
		return nil
	}

	str("LEDGERLINK_LISTEN_ADDR", &c.ListenAddr)
	str("LEDGERLINK_LOG_LEVEL", &c.LogLevel)
	str("REDIS_URL", &c.RedisURL)
	str("LEDGERLINK_RPC_URL", &c.RPCURL)
	str("LEDGERLINK_EXCHANGE_URL", &c.Exchange.URL)
	str("LEDGERLINK_EXCHANGE_ADDRESS", &c.Exchange.Address)
	str("LEDGERLINK_FUNDING_ADDRESS", &c.Funding.Address)
	str("LEDGERLINK_FUNDING_PRIVATE_KEY", &c.Funding.PrivateKey)
	str("LEDGERLINK_PEER_ADDRESS", &c.Peer.Address)
	str("LEDGERLINK_TOKEN_SYMBOL", &c.Exchange.TokenSymbol)
	str("LEDGERLINK_DEFAULT_FEE", &c.Exchange.DefaultFee)
	str("LEDGERLINK_TRADE_VALUE", &c.Exchange.TradeValue)

	if v, ok := lookup("LEDGERLINK_WALLET_TYPE"); ok {
		c.Exchange.WalletType = core.WalletType(v)
	}
	if v, ok := lookup("LEDGERLINK_CHAIN_ID"); ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("LEDGERLINK_CHAIN_ID: %w", err)
		}
		c.Exchange.ChainID = id
	}

	return errors.Join(
		dur("LEDGERLINK_SESSION_TTL", &c.SessionTTL),
		dur("LEDGERLINK_OPERATION_TIMEOUT", &c.OperationTimeout),
		dur("LEDGERLINK_VALIDITY_WINDOW", &c.Exchange.ValidityWindow),
		dur("LEDGERLINK_LOCK_WAIT", &c.LockWait),
		dur("LEDGERLINK_OPERATION_TTL", &c.OperationTTL),
		u32("LEDGERLINK_TOKEN_ID", &c.Exchange.TokenID),
		u32("LEDGERLINK_FUNDING_ACCOUNT_ID", &c.Funding.AccountID),
		u32("LEDGERLINK_PEER_ACCOUNT_ID", &c.Peer.AccountID),
	)
}

// Validate checks every field and reports all problems at once
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.ListenAddr == "" {
		fail("listen_addr is required")
	}
	if u, err := url.Parse(c.Exchange.URL); err != nil || u.Scheme == "" || u.Host == "" {
		fail("exchange.url must be an absolute URL")
	}
	if !common.IsHexAddress(c.Exchange.Address) {
		fail("exchange.address must be a hex address")
	}
	if c.Exchange.ChainID <= 0 {
		fail("exchange.chain_id must be positive")
	}
	if !c.Exchange.WalletType.Valid() {
		fail("exchange.wallet_type %q is not one of Unknown, MetaMask", c.Exchange.WalletType)
	}
	if c.Exchange.ValidityWindow <= 0 {
		fail("exchange.validity_window must be positive")
	}
	if c.Exchange.TokenSymbol == "" {
		fail("exchange.token_symbol is required")
	}
	if d, err := decimal.NewFromString(c.Exchange.DefaultFee); err != nil || d.IsNegative() {
		fail("exchange.default_fee must be a non-negative integer amount")
	}
	if d, err := decimal.NewFromString(c.Exchange.TradeValue); err != nil || !d.IsPositive() {
		fail("exchange.trade_value must be a positive amount")
	}
	if c.Exchange.RateLimit < 0 {
		fail("exchange.rate_limit must not be negative")
	}
	if c.SessionTTL <= 0 {
		fail("session_ttl must be positive")
	}
	if c.OperationTimeout <= 0 {
		fail("operation_timeout must be positive")
	}
	if c.LockWait < 0 {
		fail("lock_wait must not be negative")
	}
	if c.OperationTTL <= 0 {
		fail("operation_ttl must be positive")
	}
	if c.Funding.Address != "" && !common.IsHexAddress(c.Funding.Address) {
		fail("funding.address must be a hex address")
	}
	if c.Peer.Address != "" && !common.IsHexAddress(c.Peer.Address) {
		fail("peer.address must be a hex address")
	}
	if c.RedisURL != "" && !strings.HasPrefix(c.RedisURL, "redis://") && !strings.HasPrefix(c.RedisURL, "rediss://") {
		fail("redis_url must use the redis:// or rediss:// scheme")
	}

	return errors.Join(errs...)
}

// DefaultFeeAmount returns the parsed fallback fee
func (e Exchange) DefaultFeeAmount() decimal.Decimal {
	return decimal.RequireFromString(e.DefaultFee)
}

// TradeAmount returns the parsed base trade value
func (e Exchange) TradeAmount() decimal.Decimal {
	return decimal.RequireFromString(e.TradeValue)
}

// ExchangeAddress returns the exchange contract address
func (e Exchange) ExchangeAddress() common.Address {
	return common.HexToAddress(e.Address)
}
