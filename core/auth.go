package core

import "time"

// Session represents an authenticated email identity and its custodial address
type Session struct {
	ID        string    // Unique session identifier
	Email     string    // Email identity the session was issued for
	Address   string    // Custodial Ethereum address of the user
	IssuedAt  time.Time // When the session was created
	ExpiresAt time.Time // When the session expires
}

// Expired reports whether the session is past its expiry at t
func (s *Session) Expired(t time.Time) bool {
	return !s.ExpiresAt.IsZero() && t.After(s.ExpiresAt)
}

// UserMetadata is what the identity provider reports about a logged-in user
type UserMetadata struct {
	Issuer        string `json:"issuer"`
	Email         string `json:"email"`
	PublicAddress string `json:"public_address"`
}
