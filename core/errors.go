package core

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrTokenExpired      = errors.New("token has expired")
	ErrTokenInvalidated  = errors.New("token has been invalidated")
	ErrInvalidToken      = errors.New("invalid token")
	ErrSessionInvalid    = errors.New("session is invalid")
	ErrInvalidEmail      = errors.New("invalid email")
	ErrInvalidAddress    = errors.New("invalid ethereum address")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrAccountNotFound   = errors.New("account not found on exchange")
	ErrSignatureRejected = errors.New("signature rejected")
	ErrExchangeRejected  = errors.New("request rejected by exchange")
	ErrRateLimited       = errors.New("rate limited by exchange")
	ErrTransport         = errors.New("exchange unreachable")
	ErrAccountBusy       = errors.New("another operation is running for this account")
	ErrOperationNotFound = errors.New("operation not found")
	ErrOperationExpired  = errors.New("operation has expired")
	ErrOperationDone     = errors.New("operation already completed")
	ErrStaleCredential   = errors.New("signing key or credential does not match account state")
)

// ErrorKind is the user-facing category of a failure
type ErrorKind string

const (
	KindAuth            ErrorKind = "auth"
	KindAccountNotFound ErrorKind = "account_not_found"
	KindSignature       ErrorKind = "signature"
	KindRejected        ErrorKind = "rejected"
	KindRateLimited     ErrorKind = "rate_limited"
	KindTransport       ErrorKind = "transport"
	KindBusy            ErrorKind = "busy"
	KindInvalidRequest  ErrorKind = "invalid_request"
	KindInternal        ErrorKind = "internal"
)

// KindOf classifies err into an ErrorKind
func KindOf(err error) ErrorKind {
	var opErr *OpError
	if errors.As(err, &opErr) && opErr.Kind != "" {
		return opErr.Kind
	}

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTokenExpired), errors.Is(err, ErrTokenInvalidated),
		errors.Is(err, ErrInvalidToken), errors.Is(err, ErrSessionInvalid):
		return KindAuth
	case errors.Is(err, ErrAccountNotFound):
		return KindAccountNotFound
	case errors.Is(err, ErrSignatureRejected):
		return KindSignature
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrExchangeRejected), errors.Is(err, ErrStaleCredential):
		return KindRejected
	case errors.Is(err, ErrTransport), errors.Is(err, context.DeadlineExceeded):
		return KindTransport
	case errors.Is(err, ErrAccountBusy):
		return KindBusy
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrInvalidAddress), errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrOperationNotFound), errors.Is(err, ErrOperationExpired), errors.Is(err, ErrOperationDone):
		return KindInvalidRequest
	default:
		return KindInternal
	}
}

// Retryable reports whether a failure of this kind may succeed when the failed step is retried
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindSignature, KindRateLimited, KindTransport, KindBusy, KindRejected, KindAccountNotFound:
		return true
	default:
		return false
	}
}

// OpError is returned by orchestrator operations. It names the step that failed
// and the operation that can be retried from that step.
type OpError struct {
	Op          string
	Step        string
	OperationID string
	Kind        ErrorKind
	Err         error
}

// NewOpError wraps err, classifying it
func NewOpError(op, step, operationID string, err error) *OpError {
	return &OpError{
		Op:          op,
		Step:        step,
		OperationID: operationID,
		Kind:        KindOf(err),
		Err:         err,
	}
}

func (e *OpError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Step, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
