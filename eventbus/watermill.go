// Package eventbus bridges engine events onto a watermill publisher so
// external consumers can observe executions over a message transport.
package eventbus

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	flowengine "github.com/queryflow/flowengine"
)

const (
	// Topic is the watermill topic execution events are published to
	Topic = "flowengine.events"

	// EventTypeMetadataKey carries the engine event type in message metadata
	EventTypeMetadataKey = "event_type"

	// ExecutionIDMetadataKey carries the execution ID in message metadata
	ExecutionIDMetadataKey = "execution_id"
)

// Bridge forwards events from an in-process bus to a watermill publisher.
// Delivery to the publisher happens inline with event emission; publish
// failures are logged and never fail the execution.
type Bridge struct {
	publisher message.Publisher
	logger    zerolog.Logger

	mu            sync.Mutex
	subscriptions map[flowengine.EventType]int
	bus           *flowengine.Bus
}

// BridgeOption configures a Bridge
type BridgeOption func(*Bridge)

// WithBridgeLogger sets the logger used for publish failures
func WithBridgeLogger(logger zerolog.Logger) BridgeOption {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// NewBridge creates a bridge that publishes selected engine events to pub
func NewBridge(pub message.Publisher, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		publisher:     pub,
		logger:        zerolog.New(os.Stderr).With().Timestamp().Logger(),
		subscriptions: make(map[flowengine.EventType]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach subscribes the bridge to the given event types on the bus.
// Calling Attach a second time replaces the previous attachment.
func (b *Bridge) Attach(bus *flowengine.Bus, types ...flowengine.EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.detachLocked()
	b.bus = bus

	if len(types) == 0 {
		types = []flowengine.EventType{
			flowengine.EventLog,
			flowengine.EventStepCompleted,
			flowengine.EventExecutionStarted,
			flowengine.EventExecutionCompleted,
			flowengine.EventExecutionFailed,
			flowengine.EventExecutionCancelled,
		}
	}

	for _, eventType := range types {
		id := bus.On(eventType, func(event flowengine.Event) {
			if err := b.publish(event); err != nil {
				b.logger.Error().
					Err(err).
					Str("event_type", string(event.Type)).
					Str("execution_id", event.ExecutionID).
					Msg("Failed to publish event")
			}
		})
		b.subscriptions[eventType] = id
	}
}

// Detach removes the bridge's listeners from the bus
func (b *Bridge) Detach() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.detachLocked()
}

func (b *Bridge) detachLocked() {
	if b.bus == nil {
		return
	}
	for eventType, id := range b.subscriptions {
		b.bus.Off(eventType, id)
		delete(b.subscriptions, eventType)
	}
	b.bus = nil
}

func (b *Bridge) publish(event flowengine.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+watermill.NewULID(), payload)
	msg.Metadata.Set(EventTypeMetadataKey, string(event.Type))
	msg.Metadata.Set(ExecutionIDMetadataKey, event.ExecutionID)

	return b.publisher.Publish(Topic, msg)
}

// Close detaches from the bus and closes the underlying publisher
func (b *Bridge) Close() error {
	b.Detach()
	return b.publisher.Close()
}

// DecodeEvent unmarshals a bridged message back into an engine event
func DecodeEvent(msg *message.Message) (flowengine.Event, error) {
	var event flowengine.Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return flowengine.Event{}, err
	}
	return event, nil
}
