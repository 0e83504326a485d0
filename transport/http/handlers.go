package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/ledgerlink/core"
	"github.com/layer-3/ledgerlink/presenter"
	"github.com/layer-3/ledgerlink/service"
)

// Handlers contains the HTTP handlers of the session and operation endpoints
type Handlers struct {
	sessions presenter.Sessions
	registry *presenter.Registry
}

// NewHandlers creates new handlers
func NewHandlers(sessions presenter.Sessions, registry *presenter.Registry) *Handlers {
	return &Handlers{
		sessions: sessions,
		registry: registry,
	}
}

// statusFor maps an error kind to the HTTP status it is reported with
func statusFor(kind core.ErrorKind) int {
	switch kind {
	case core.KindAuth:
		return http.StatusUnauthorized
	case core.KindAccountNotFound:
		return http.StatusNotFound
	case core.KindSignature, core.KindRejected:
		return http.StatusUnprocessableEntity
	case core.KindRateLimited:
		return http.StatusTooManyRequests
	case core.KindTransport:
		return http.StatusBadGateway
	case core.KindBusy:
		return http.StatusConflict
	case core.KindInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error, state *presenter.State) {
	view := presenter.NewErrorView(err)
	body := gin.H{"error": view}
	if state != nil {
		body["state"] = state
	}
	c.JSON(statusFor(view.Kind), body)
}

// Login handles the login request
func (h *Handlers) Login(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	p, token, err := h.registry.Login(c.Request.Context(), req.Email)
	if err != nil {
		writeError(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"token_type": "Bearer",
		"state":      p.State(),
	})
}

// Logout handles session logout
func (h *Handlers) Logout(c *gin.Context) {
	session, token, ok := sessionFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session not found in context"})
		return
	}

	if err := h.registry.Logout(c.Request.Context(), session, token); err != nil {
		writeError(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns the identity provider's metadata for the authenticated user
func (h *Handlers) Me(c *gin.Context) {
	_, token, ok := sessionFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session not found in context"})
		return
	}

	meta, err := h.sessions.Metadata(c.Request.Context(), token)
	if err != nil {
		writeError(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, meta)
}

// State returns the presentation state after re-querying the session
func (h *Handlers) State(c *gin.Context) {
	p, ok := h.presenter(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, p.Mount(c.Request.Context()))
}

// Deposit funds the user's exchange account
func (h *Handlers) Deposit(c *gin.Context) {
	h.operation(c, (*presenter.Presenter).Deposit)
}

// Activate registers a trading key for the user's exchange account
func (h *Handlers) Activate(c *gin.Context) {
	h.operation(c, (*presenter.Presenter).Activate)
}

// Info returns exchange info, the account and its transaction history
func (h *Handlers) Info(c *gin.Context) {
	h.operation(c, (*presenter.Presenter).GetInfo)
}

// Send transfers to the destination in the request body, or to the configured peer
func (h *Handlers) Send(c *gin.Context) {
	p, ok := h.presenter(c)
	if !ok {
		return
	}

	var req presenter.SendInput
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	out, err := p.Send(c.Request.Context(), req)
	respond(c, p, out, err)
}

// Retry resumes a failed operation from the step that failed
func (h *Handlers) Retry(c *gin.Context) {
	p, ok := h.presenter(c)
	if !ok {
		return
	}

	out, err := p.Retry(c.Request.Context(), c.Param("id"))
	respond(c, p, out, err)
}

func (h *Handlers) operation(c *gin.Context, run func(*presenter.Presenter, context.Context) (*service.Outcome, error)) {
	p, ok := h.presenter(c)
	if !ok {
		return
	}

	out, err := run(p, c.Request.Context())
	respond(c, p, out, err)
}

func (h *Handlers) presenter(c *gin.Context) (*presenter.Presenter, bool) {
	session, token, ok := sessionFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session not found in context"})
		return nil, false
	}
	return h.registry.Get(c.Request.Context(), session, token), true
}

func respond(c *gin.Context, p *presenter.Presenter, out *service.Outcome, err error) {
	state := p.State()
	if err != nil {
		writeError(c, err, &state)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"operation": out,
		"state":     state,
	})
}
