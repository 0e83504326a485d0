package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/ledgerlink/ports"
)

const (
	TopicLogout             = "ledgerlink.logout"
	TopicOperationCompleted = "ledgerlink.operation.completed"
	TopicOperationFailed    = "ledgerlink.operation.failed"
)

// LogoutEvent represents a logout event
type LogoutEvent struct {
	Address   string `json:"address"`
	SessionID string `json:"session_id"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, address string, sessionID string) error {
	return p.publish(ctx, TopicLogout, sessionID, LogoutEvent{
		Address:   address,
		SessionID: sessionID,
	})
}

// PublishOperation publishes the outcome of an orchestrator operation
func (p *WatermillPublisher) PublishOperation(ctx context.Context, event ports.OperationEvent) error {
	topic := TopicOperationCompleted
	if event.Error != "" {
		topic = TopicOperationFailed
	}
	return p.publish(ctx, topic, watermill.NewUUID(), event)
}

func (p *WatermillPublisher) publish(ctx context.Context, topic, id string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(id, payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
