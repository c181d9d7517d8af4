package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"stock-ledger-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing stock lifecycle events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func stockEventKey(productID int64, size string) string {
	return fmt.Sprintf("stock-%d-%s", productID, size)
}

// PublishStockReserved publishes StockReserved event
func (ep *EventPublisher) PublishStockReserved(ctx context.Context, event *models.StockReservedEvent) error {
	if len(event.Items) == 0 {
		return nil
	}
	key := stockEventKey(event.Items[0].ProductID, event.Items[0].Size)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishStockCommitted publishes StockCommitted event
func (ep *EventPublisher) PublishStockCommitted(ctx context.Context, event *models.StockCommittedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishStockReleased publishes StockReleased event
func (ep *EventPublisher) PublishStockReleased(ctx context.Context, event *models.StockReleasedEvent) error {
	if len(event.Items) == 0 {
		return nil
	}
	key := stockEventKey(event.Items[0].ProductID, event.Items[0].Size)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishStockRestocked publishes StockRestocked event
func (ep *EventPublisher) PublishStockRestocked(ctx context.Context, event *models.StockRestockedEvent) error {
	return ep.producer.PublishEvent(ctx, stockEventKey(event.ProductID, event.Size), event)
}

// PublishLowStock publishes LowStock event
func (ep *EventPublisher) PublishLowStock(ctx context.Context, event *models.LowStockEvent) error {
	return ep.producer.PublishEvent(ctx, stockEventKey(event.ProductID, event.Size), event)
}

// EventHandler routes incoming events to registered callbacks
type EventHandler struct {
	onStockChangeObserved func(context.Context, *models.StockChangeObservedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnStockChangeObserved registers a handler for externally observed
// stock notifications
func (eh *EventHandler) OnStockChangeObserved(handler func(context.Context, *models.StockChangeObservedEvent) error) {
	eh.onStockChangeObserved = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeStockChangeObserved:
		if eh.onStockChangeObserved != nil {
			var event models.StockChangeObservedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal StockChangeObserved event: %w", err)
			}
			return eh.onStockChangeObserved(ctx, &event)
		}

	default:
		// Events produced by this service come back on the same topic;
		// nothing to do for them.
		log.Printf("Ignoring event type: %s", baseEvent.EventType)
	}

	return nil
}
