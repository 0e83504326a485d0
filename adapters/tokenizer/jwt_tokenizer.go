package tokenizer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/ledgerlink/core"
	"github.com/layer-3/ledgerlink/ports"
)

const AudienceSession = "ledgerlink:session"

// IssuerPrefix prefixes the custodial address in the iss claim
const IssuerPrefix = "did:ethr:"

// JWTTokenizer implements the Tokenizer interface using JWT
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey) ports.Tokenizer {
	return &JWTTokenizer{signKey: signKey}
}

// SessionToToken converts a Session to a JWT token
func (j *JWTTokenizer) SessionToToken(session *core.Session) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    IssuerPrefix + session.Address,
			Subject:   session.Address,
			ID:        session.ID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
		Email: session.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signedToken, nil
}

// TokenToSession parses a session token and returns the session it carries
func (j *JWTTokenizer) TokenToSession(tokenStr string) (*core.Session, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	}, jwt.WithAudience(AudienceSession))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, fmt.Errorf("failed to parse token: %w", core.ErrInvalidToken)
	}

	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type: %w", core.ErrInvalidToken)
	}

	if !common.IsHexAddress(claims.Subject) {
		return nil, core.ErrInvalidAddress
	}

	session := &core.Session{
		ID:      claims.ID,
		Email:   claims.Email,
		Address: claims.Subject,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}

	return session, nil
}
