package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/ledgerlink/adapters/metrics"
	"github.com/layer-3/ledgerlink/core"
	"github.com/layer-3/ledgerlink/ports"
	"golang.org/x/time/rate"
)

const (
	headerAPIKey = "X-API-KEY"
	headerAPISig = "X-API-SIG"

	codeAccountNotFound = 101002
)

// Config configures the exchange client
type Config struct {
	BaseURL         string
	ExchangeAddress common.Address
	RateLimit       float64 // requests per second, 0 disables limiting
	Burst           int
	Timeout         time.Duration
	HTTPClient      *http.Client
	Metrics         ports.Metrics
}

// Client talks to the exchange's /api/v3 REST API
type Client struct {
	baseURL  string
	exchange common.Address
	http     *http.Client
	limiter  *rate.Limiter
	metrics  ports.Metrics
}

var _ ports.Exchange = (*Client)(nil)

// NewClient creates a new exchange client
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	m := cfg.Metrics
	if m == nil {
		m = metrics.Nop{}
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		exchange: cfg.ExchangeAddress,
		http:     httpClient,
		limiter:  limiter,
		metrics:  m,
	}
}

type call struct {
	endpoint string
	method   string
	path     string
	query    url.Values
	body     []byte
	headers  map[string]string
}

func (c *call) fullURL(base string) string {
	return base + c.path
}

// signingParams returns what the request signature covers
func (c *call) signingParams() string {
	if c.method == http.MethodGet || c.method == http.MethodDelete {
		return c.query.Encode()
	}
	return string(c.body)
}

func (c *Client) do(ctx context.Context, req *call, out any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveExchangeCall(req.endpoint, err, time.Since(start))
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransport, err)
	}

	target := req.fullURL(c.baseURL)
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %v", core.ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", core.ErrTransport, err)
	}

	if apiErr := classify(req.endpoint, resp.StatusCode, raw); apiErr != nil {
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: malformed %s response: %v", core.ErrTransport, req.endpoint, err)
	}
	return nil
}

// classify maps an exchange response to the error taxonomy; nil means success
func classify(endpoint string, status int, raw []byte) error {
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)

	if eb.ResultInfo != nil && eb.ResultInfo.Code != 0 {
		apiErr := &APIError{Status: status, Code: eb.ResultInfo.Code, Message: eb.ResultInfo.Message}
		switch {
		case eb.ResultInfo.Code == codeAccountNotFound:
			apiErr.kind = core.ErrAccountNotFound
		case status == http.StatusTooManyRequests:
			apiErr.kind = core.ErrRateLimited
		default:
			apiErr.kind = core.ErrExchangeRejected
		}
		return apiErr
	}

	if status < 300 {
		return nil
	}

	apiErr := &APIError{Status: status, Message: strings.TrimSpace(string(raw))}
	switch {
	case status == http.StatusTooManyRequests:
		apiErr.kind = core.ErrRateLimited
	case status == http.StatusNotFound && endpoint == "account":
		apiErr.kind = core.ErrAccountNotFound
	case status >= 500:
		apiErr.kind = core.ErrTransport
	default:
		apiErr.kind = core.ErrExchangeRejected
	}
	return apiErr
}

func u32(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}

// GetAccount fetches the off-chain account owned by owner
func (c *Client) GetAccount(ctx context.Context, owner common.Address) (*core.AccountInfo, error) {
	var dto accountDTO
	err := c.do(ctx, &call{
		endpoint: "account",
		method:   http.MethodGet,
		path:     "/api/v3/account",
		query:    url.Values{"owner": {owner.Hex()}},
	}, &dto)
	if err != nil {
		return nil, err
	}
	return dto.toCore(), nil
}

// DeriveSigningKey derives the account's current trading key. Accounts that
// carry no key seed fall back to the template seed for the previous nonce.
func (c *Client) DeriveSigningKey(ctx context.Context, acc *core.AccountInfo, signer ports.Signer) (*core.SigningKey, error) {
	seed := acc.KeySeed
	if seed == "" {
		nonce := acc.Nonce
		if nonce > 0 {
			nonce--
		}
		seed = core.KeySeed(c.exchange, nonce)
	}
	return deriveKey(ctx, acc, seed, signer)
}

// GenerateKeyPair derives a trading key from an explicit seed
func (c *Client) GenerateKeyPair(ctx context.Context, acc *core.AccountInfo, seed string, signer ports.Signer) (*core.SigningKey, error) {
	return deriveKey(ctx, acc, seed, signer)
}

// GetAPICredential obtains an API key, proving possession of the trading key
func (c *Client) GetAPICredential(ctx context.Context, accountID uint32, key *core.SigningKey) (*core.APICredential, error) {
	if key.AccountID != accountID {
		return nil, core.ErrStaleCredential
	}

	req := &call{
		endpoint: "apiKey",
		method:   http.MethodGet,
		path:     "/api/v3/apiKey",
		query:    url.Values{"accountId": {u32(accountID)}},
	}
	sig, err := eddsaSign(key, []byte(signatureBase(req.method, req.fullURL(c.baseURL), req.signingParams())))
	if err != nil {
		return nil, err
	}
	req.headers = map[string]string{headerAPISig: sig}

	var dto apiKeyDTO
	if err := c.do(ctx, req, &dto); err != nil {
		return nil, err
	}
	return &core.APICredential{AccountID: accountID, Key: dto.APIKey}, nil
}

// GetNextStorageID fetches a fresh uniqueness token for (accountID, sellTokenID)
func (c *Client) GetNextStorageID(ctx context.Context, accountID, sellTokenID uint32, cred *core.APICredential) (*core.StorageID, error) {
	var dto storageIDDTO
	err := c.do(ctx, &call{
		endpoint: "storageId",
		method:   http.MethodGet,
		path:     "/api/v3/storageId",
		query:    url.Values{"accountId": {u32(accountID)}, "sellTokenId": {u32(sellTokenID)}},
		headers:  map[string]string{headerAPIKey: cred.Key},
	}, &dto)
	if err != nil {
		return nil, err
	}
	return &core.StorageID{OrderID: dto.OrderID, OffchainID: dto.OffchainID}, nil
}

// GetFeeQuote fetches the off-chain fee for a request type
func (c *Client) GetFeeQuote(ctx context.Context, accountID uint32, reqType core.FeeRequestType, cred *core.APICredential) (*core.FeeQuote, error) {
	var dto feeQuoteDTO
	err := c.do(ctx, &call{
		endpoint: "offchainFee",
		method:   http.MethodGet,
		path:     "/api/v3/user/offchainFee",
		query:    url.Values{"accountId": {u32(accountID)}, "requestType": {strconv.Itoa(int(reqType))}},
		headers:  map[string]string{headerAPIKey: cred.Key},
	}, &dto)
	if err != nil {
		return nil, err
	}
	return dto.toCore(), nil
}

// SubmitTransfer submits a signed internal transfer
func (c *Client) SubmitTransfer(ctx context.Context, req *core.TransferRequest, key *core.SigningKey, cred *core.APICredential, signer ports.Signer) (*core.TxResult, error) {
	if key.AccountID != req.PayerID || cred.AccountID != req.PayerID {
		return nil, core.ErrStaleCredential
	}

	dto := newTransferDTO(req)
	unsigned, err := json.Marshal(dto)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transfer: %w", err)
	}
	if dto.EddsaSignature, err = eddsaSign(key, unsigned); err != nil {
		return nil, err
	}
	if signer != nil {
		if dto.EcdsaSignature, err = ecdsaSign(ctx, signer, unsigned); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(dto)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transfer: %w", err)
	}

	headers := map[string]string{headerAPIKey: cred.Key}
	if dto.EcdsaSignature != "" {
		headers[headerAPISig] = dto.EcdsaSignature
	}

	var res txResultDTO
	err = c.do(ctx, &call{
		endpoint: "transfer",
		method:   http.MethodPost,
		path:     "/api/v3/transfer",
		body:     body,
		headers:  headers,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &core.TxResult{Hash: res.Hash, Status: res.Status, Idempotent: res.IsIdempotent}, nil
}

// SubmitAccountUpdate registers the trading public key of an account
func (c *Client) SubmitAccountUpdate(ctx context.Context, req *core.AccountUpdateRequest, key *core.SigningKey, signer ports.Signer) (*core.TxResult, error) {
	if key.AccountID != req.AccountID || key.PublicKey != req.PublicKey {
		return nil, core.ErrStaleCredential
	}

	dto := newAccountUpdateDTO(req)
	unsigned, err := json.Marshal(dto)
	if err != nil {
		return nil, fmt.Errorf("failed to encode account update: %w", err)
	}
	if dto.EddsaSignature, err = eddsaSign(key, unsigned); err != nil {
		return nil, err
	}
	if dto.EcdsaSignature, err = ecdsaSign(ctx, signer, unsigned); err != nil {
		return nil, err
	}

	body, err := json.Marshal(dto)
	if err != nil {
		return nil, fmt.Errorf("failed to encode account update: %w", err)
	}

	var res txResultDTO
	err = c.do(ctx, &call{
		endpoint: "updateAccount",
		method:   http.MethodPost,
		path:     "/api/v3/account",
		body:     body,
		headers:  map[string]string{headerAPISig: dto.EcdsaSignature},
	}, &res)
	if err != nil {
		return nil, err
	}
	return &core.TxResult{Hash: res.Hash, Status: res.Status, Idempotent: res.IsIdempotent}, nil
}

// GetTransactionHistory lists the account's transactions of the given types
func (c *Client) GetTransactionHistory(ctx context.Context, accountID uint32, types []core.TxType, cred *core.APICredential) ([]core.Transaction, error) {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}

	query := url.Values{"accountId": {u32(accountID)}}
	if len(names) > 0 {
		query.Set("types", strings.Join(names, ","))
	}

	var dto transactionsDTO
	err := c.do(ctx, &call{
		endpoint: "transactions",
		method:   http.MethodGet,
		path:     "/api/v3/user/transactions",
		query:    query,
		headers:  map[string]string{headerAPIKey: cred.Key},
	}, &dto)
	if err != nil {
		return nil, err
	}

	txs := make([]core.Transaction, 0, len(dto.Transactions))
	for _, t := range dto.Transactions {
		txs = append(txs, t.toCore())
	}
	return txs, nil
}

// GetExchangeInfo fetches exchange-wide metadata
func (c *Client) GetExchangeInfo(ctx context.Context) (*core.ExchangeInfo, error) {
	var dto exchangeInfoDTO
	err := c.do(ctx, &call{
		endpoint: "exchangeInfo",
		method:   http.MethodGet,
		path:     "/api/v3/exchange/info",
	}, &dto)
	if err != nil {
		return nil, err
	}
	return dto.toCore(), nil
}

// GetActiveFeeInfo fetches the account activation fee
func (c *Client) GetActiveFeeInfo(ctx context.Context, accountID uint32) (*core.FeeQuote, error) {
	var dto feeQuoteDTO
	err := c.do(ctx, &call{
		endpoint: "activeFeeInfo",
		method:   http.MethodGet,
		path:     "/api/v3/user/activeFeeInfo",
		query:    url.Values{"accountId": {u32(accountID)}},
	}, &dto)
	if err != nil {
		return nil, err
	}
	return dto.toCore(), nil
}
