package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	"bankcore/internal/models"
)

// Publisher is the interface implemented by types that can publish events.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	Close()
}

// Event is the message body published for every notification.
type Event struct {
	Destination string              `json:"destination"`
	Purpose     models.Purpose      `json:"purpose"`
	Payload     models.Notification `json:"payload"`
	Timestamp   time.Time           `json:"timestamp"`
}

// EventNotifier hands notifications to a message broker for a delivery worker
// to pick up. Routing keys are notification.<purpose>.
type EventNotifier struct {
	publisher Publisher
	exchange  string
}

func NewEventNotifier(publisher Publisher, exchange string) *EventNotifier {
	if publisher == nil {
		panic("publisher is required")
	}
	if exchange == "" {
		exchange = "bankcore_events"
	}
	return &EventNotifier{publisher: publisher, exchange: exchange}
}

func (n *EventNotifier) Notify(ctx context.Context, destination string, purpose models.Purpose, payload models.Notification) error {
	routingKey := "notification." + string(purpose)
	if err := n.publisher.Publish(ctx, n.exchange, routingKey, Event{
		Destination: destination,
		Purpose:     purpose,
		Payload:     payload,
		Timestamp:   time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	return nil
}

// Close releases the underlying publisher.
func (n *EventNotifier) Close() {
	n.publisher.Close()
}

// PublisherFallback is a minimal no-op publisher used when RabbitMQ is unavailable at startup.
type PublisherFallback struct{}

func (p *PublisherFallback) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	log.Printf("No broker, skipped publish to %s/%s", exchange, routingKey)
	return nil
}

func (p *PublisherFallback) Close() {}
