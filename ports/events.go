package ports

import (
	"context"
	"time"

	"github.com/layer-3/ledgerlink/core"
)

// OperationEvent describes the outcome of an orchestrator operation
type OperationEvent struct {
	OperationID string         `json:"operation_id"`
	Op          string         `json:"op"`
	Account     string         `json:"account"`
	Step        string         `json:"step,omitempty"`
	Kind        core.ErrorKind `json:"kind,omitempty"`
	Error       string         `json:"error,omitempty"`
	TxHash      string         `json:"tx_hash,omitempty"`
	Duration    time.Duration  `json:"duration"`
}

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishLogout(ctx context.Context, address string, sessionID string) error
	PublishOperation(ctx context.Context, event OperationEvent) error
}

// Metrics records operation and exchange call outcomes
type Metrics interface {
	ObserveOperation(op string, kind core.ErrorKind, d time.Duration)
	ObserveExchangeCall(endpoint string, err error, d time.Duration)
}
