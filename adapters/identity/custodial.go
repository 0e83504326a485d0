package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/layer-3/ledgerlink/adapters/rpc"
	"github.com/layer-3/ledgerlink/adapters/tokenizer"
	"github.com/layer-3/ledgerlink/core"
	"github.com/layer-3/ledgerlink/internal/logging"
	"github.com/layer-3/ledgerlink/ports"
)

// CustodialProvider is an email identity provider that holds one custodial key per email
type CustodialProvider struct {
	tokenizer  ports.Tokenizer
	store      ports.Store
	vault      ports.KeyVault
	eventPub   ports.EventPublisher
	logger     logging.Logger
	sessionTTL time.Duration
	walletType core.WalletType
	now        func() time.Time
}

var _ ports.IdentityProvider = (*CustodialProvider)(nil)

// NewCustodialProvider creates a new custodial identity provider
func NewCustodialProvider(
	tokenizer ports.Tokenizer,
	store ports.Store,
	vault ports.KeyVault,
	eventPub ports.EventPublisher,
	logger logging.Logger,
	sessionTTL time.Duration,
	walletType core.WalletType,
) *CustodialProvider {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &CustodialProvider{
		tokenizer:  tokenizer,
		store:      store,
		vault:      vault,
		eventPub:   eventPub,
		logger:     logger,
		sessionTTL: sessionTTL,
		walletType: walletType,
		now:        time.Now,
	}
}

// LoginWithEmail establishes a session for email and returns its bearer token
func (p *CustodialProvider) LoginWithEmail(ctx context.Context, email string) (*core.Session, string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Name != "" {
		return nil, "", core.ErrInvalidEmail
	}
	normalized := strings.ToLower(addr.Address)

	key, err := p.vault.LoadOrCreate(ctx, normalized)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load custodial key: %w", err)
	}

	now := p.now()
	session := &core.Session{
		ID:        uuid.New().String(),
		Email:     normalized,
		Address:   crypto.PubkeyToAddress(key.PublicKey).Hex(),
		IssuedAt:  now,
		ExpiresAt: now.Add(p.sessionTTL),
	}

	token, err := p.tokenizer.SessionToToken(session)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session token: %w", err)
	}

	p.logger.Info(ctx, "user logged in", "session_id", session.ID, "address", session.Address)
	return session, token, nil
}

// Session resolves a token into a live session
func (p *CustodialProvider) Session(ctx context.Context, token string) (*core.Session, error) {
	session, err := p.tokenizer.TokenToSession(token)
	if err != nil {
		return nil, err
	}

	if session.Expired(p.now()) {
		return nil, core.ErrTokenExpired
	}

	invalidated, err := p.store.IsTokenInvalidated(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check session invalidation: %w", err)
	}
	if invalidated {
		return nil, core.ErrTokenInvalidated
	}

	return session, nil
}

// IsLoggedIn reports whether token belongs to a live session
func (p *CustodialProvider) IsLoggedIn(ctx context.Context, token string) (bool, error) {
	_, err := p.Session(ctx, token)
	if err == nil {
		return true, nil
	}
	if core.KindOf(err) == core.KindAuth || errors.Is(err, core.ErrInvalidAddress) {
		return false, nil
	}
	return false, err
}

// Logout invalidates the session behind token
func (p *CustodialProvider) Logout(ctx context.Context, token string) error {
	session, err := p.tokenizer.TokenToSession(token)
	if err != nil {
		if errors.Is(err, core.ErrTokenExpired) {
			// An expired session cannot be presented again anyway
			return nil
		}
		return err
	}

	remaining := session.ExpiresAt.Sub(p.now())
	if remaining <= 0 {
		remaining = time.Minute
	}

	if err := p.store.InvalidateToken(ctx, session.ID, remaining); err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}

	// The session is already invalidated in the store, which is the critical part
	if err := p.eventPub.PublishLogout(ctx, session.Address, session.ID); err != nil {
		p.logger.Warn(ctx, "failed to publish logout event", "session_id", session.ID, "error", err)
	}

	p.logger.Info(ctx, "user logged out", "session_id", session.ID)
	return nil
}

// GetMetadata returns the identity behind a live session
func (p *CustodialProvider) GetMetadata(ctx context.Context, token string) (*core.UserMetadata, error) {
	session, err := p.Session(ctx, token)
	if err != nil {
		return nil, err
	}

	return &core.UserMetadata{
		Issuer:        tokenizer.IssuerPrefix + session.Address,
		Email:         session.Email,
		PublicAddress: session.Address,
	}, nil
}

// Signer returns the embedded signer holding the session's custodial key
func (p *CustodialProvider) Signer(ctx context.Context, token string) (ports.Signer, error) {
	session, err := p.Session(ctx, token)
	if err != nil {
		return nil, err
	}

	key, err := p.vault.LoadOrCreate(ctx, session.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to load custodial key: %w", err)
	}

	signer := rpc.NewKeySigner(key, p.walletType)
	if signer.Address() != common.HexToAddress(session.Address) {
		return nil, core.ErrSessionInvalid
	}
	return signer, nil
}
