package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/ledgerlink/core"
	"github.com/layer-3/ledgerlink/ports"
)

const (
	ctxSession = "session"
	ctxToken   = "sessionToken"
)

// SessionResolver resolves bearer tokens into live sessions
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*core.Session, ports.Signer, error)
}

// AuthMiddleware creates middleware that validates session tokens
func AuthMiddleware(sessions SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")

		// Check if the Authorization header is present and in correct format
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
			return
		}

		session, _, err := sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			switch core.KindOf(err) {
			case core.KindAuth:
				msg := "Invalid session"
				if errors.Is(err, core.ErrTokenExpired) {
					msg = "Session expired"
				}
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve session"})
			}
			return
		}

		c.Set(ctxSession, session)
		c.Set(ctxToken, token)

		c.Next()
	}
}

func sessionFrom(c *gin.Context) (*core.Session, string, bool) {
	s, ok := c.Get(ctxSession)
	if !ok {
		return nil, "", false
	}
	session, ok := s.(*core.Session)
	return session, c.GetString(ctxToken), ok
}
