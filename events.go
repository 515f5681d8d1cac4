package flowengine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventType identifies a class of engine events
type EventType string

const (
	// EventLog carries every ExecutionLog as it is created
	EventLog EventType = "log"
	// EventStepCompleted carries every settled StepResult, including retries
	EventStepCompleted EventType = "step_completed"

	// Execution lifecycle events
	EventExecutionStarted   EventType = "execution_started"
	EventExecutionCompleted EventType = "execution_completed"
	EventExecutionFailed    EventType = "execution_failed"
	EventExecutionCancelled EventType = "execution_cancelled"
)

// Event is the payload delivered to bus listeners
type Event struct {
	ID          string        `json:"id"`
	Type        EventType     `json:"type"`
	Timestamp   time.Time     `json:"timestamp"`
	ExecutionID string        `json:"executionId"`
	WorkflowID  string        `json:"workflowId,omitempty"`
	StepID      string        `json:"stepId,omitempty"`
	Log         *ExecutionLog `json:"log,omitempty"`
	Result      *StepResult   `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// NewEvent creates an event with a fresh id and timestamp
func NewEvent(eventType EventType, executionID, workflowID string) Event {
	return Event{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now(),
		ExecutionID: executionID,
		WorkflowID:  workflowID,
	}
}

// Listener receives events synchronously on the emitting goroutine
type Listener func(Event)

type subscription struct {
	id       int
	listener Listener
}

// Bus is an in-process publish/subscribe channel for engine events.
// Delivery is synchronous and in registration order per event type. A
// panicking listener is recovered and logged; it never reaches the emitter
// and does not prevent the remaining listeners from running.
type Bus struct {
	mu        sync.Mutex
	nextID    int
	listeners map[EventType][]subscription
	logger    zerolog.Logger
}

// BusOption configures the event bus
type BusOption func(*Bus)

// WithBusLogger sets the logger used to report listener panics
func WithBusLogger(logger zerolog.Logger) BusOption {
	return func(b *Bus) {
		b.logger = logger
	}
}

// NewBus creates an event bus
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		listeners: make(map[EventType][]subscription),
		logger:    zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// On registers a listener for an event type and returns a subscription id
// usable with Off
func (b *Bus) On(eventType EventType, listener Listener) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.listeners[eventType] = append(b.listeners[eventType], subscription{
		id:       b.nextID,
		listener: listener,
	})

	return b.nextID
}

// Off removes a previously registered listener
func (b *Bus) Off(eventType EventType, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.listeners[eventType]
	for i, sub := range subs {
		if sub.id == id {
			b.listeners[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Emit delivers an event to all listeners registered for its type, in
// registration order, on the calling goroutine
func (b *Bus) Emit(event Event) {
	b.mu.Lock()
	subs := make([]subscription, len(b.listeners[event.Type]))
	copy(subs, b.listeners[event.Type])
	b.mu.Unlock()

	for _, sub := range subs {
		b.deliver(sub, event)
	}
}

func (b *Bus) deliver(sub subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Interface("panic", r).
				Str("event_type", string(event.Type)).
				Str("execution_id", event.ExecutionID).
				Msg("Event listener panicked")
		}
	}()

	sub.listener(event)
}
