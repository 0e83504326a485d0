package presenter

import (
	"errors"

	"github.com/layer-3/ledgerlink/core"
)

// ErrorView is a failure as the user sees it
type ErrorView struct {
	Kind        core.ErrorKind `json:"kind"`
	Message     string         `json:"message"`
	Op          string         `json:"op,omitempty"`
	Step        string         `json:"step,omitempty"`
	OperationID string         `json:"operation_id,omitempty"`
	Retryable   bool           `json:"retryable"`
}

var messages = map[core.ErrorKind]string{
	core.KindAuth:            "Your session has ended. Please log in again.",
	core.KindAccountNotFound: "No exchange account exists for this address yet.",
	core.KindSignature:       "The signature request was rejected.",
	core.KindRejected:        "The exchange rejected the request.",
	core.KindRateLimited:     "Too many requests. Please wait a moment and retry.",
	core.KindTransport:       "The exchange could not be reached.",
	core.KindBusy:            "Another operation is still running for this account.",
	core.KindInvalidRequest:  "The request is invalid.",
	core.KindInternal:        "Something went wrong.",
}

// NewErrorView classifies err for display. It returns nil for a nil error.
func NewErrorView(err error) *ErrorView {
	if err == nil {
		return nil
	}

	kind := core.KindOf(err)
	view := &ErrorView{
		Kind:    kind,
		Message: messages[kind],
	}
	if view.Message == "" {
		view.Message = messages[core.KindInternal]
	}

	var opErr *core.OpError
	if errors.As(err, &opErr) {
		view.Op = opErr.Op
		view.Step = opErr.Step
		view.OperationID = opErr.OperationID
		// Only operations that reached a step can be resumed
		view.Retryable = kind.Retryable() && opErr.OperationID != ""
	}
	return view
}
