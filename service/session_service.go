package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/layer-3/ledgerlink/core"
	"github.com/layer-3/ledgerlink/internal/logging"
	"github.com/layer-3/ledgerlink/ports"
)

// SessionService handles the explicit session lifecycle on top of the identity provider
type SessionService struct {
	identity ports.IdentityProvider
	logger   logging.Logger
}

// NewSessionService creates a new session service
func NewSessionService(identity ports.IdentityProvider, logger logging.Logger) *SessionService {
	return &SessionService{
		identity: identity,
		logger:   logger,
	}
}

// Login starts a session for email and returns it with its bearer token
func (s *SessionService) Login(ctx context.Context, email string) (*core.Session, string, error) {
	session, token, err := s.identity.LoginWithEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("login: %w", err)
	}
	return session, token, nil
}

// Check reports whether token still belongs to a live session
func (s *SessionService) Check(ctx context.Context, token string) (bool, error) {
	return s.identity.IsLoggedIn(ctx, token)
}

// Metadata re-queries the identity provider for the session's user
func (s *SessionService) Metadata(ctx context.Context, token string) (*core.UserMetadata, error) {
	meta, err := s.identity.GetMetadata(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("get metadata: %w", err)
	}
	return meta, nil
}

// Resolve returns the session behind token together with its signer
func (s *SessionService) Resolve(ctx context.Context, token string) (*core.Session, ports.Signer, error) {
	session, err := s.identity.Session(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	signer, err := s.identity.Signer(ctx, token)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve signer: %w", err)
	}
	if !strings.EqualFold(signer.Address().Hex(), session.Address) {
		s.logger.Warn(ctx, "signer does not match session", "session_id", session.ID, "signer", signer.Address().Hex())
		return nil, nil, core.ErrSessionInvalid
	}

	return session, signer, nil
}

// Logout ends the session behind token
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if err := s.identity.Logout(ctx, token); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}
