package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims combines standard claims with the email identity
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}
