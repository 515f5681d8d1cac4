package flowengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliveryOrder(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.On(EventLog, func(e Event) {
		order = append(order, "first")
	})
	bus.On(EventLog, func(e Event) {
		order = append(order, "second")
	})
	bus.On(EventLog, func(e Event) {
		order = append(order, "third")
	})

	bus.Emit(NewEvent(EventLog, "exec-1", "wf-1"))

	// Synchronous delivery in registration order
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestBus_SynchronousDelivery(t *testing.T) {
	bus := NewBus()

	delivered := false
	bus.On(EventStepCompleted, func(e Event) {
		delivered = true
	})

	bus.Emit(NewEvent(EventStepCompleted, "exec-1", "wf-1"))

	// Emit returns only after every listener has run
	assert.True(t, delivered)
}

func TestBus_TypeIsolation(t *testing.T) {
	bus := NewBus()

	var logCount, stepCount int
	bus.On(EventLog, func(e Event) { logCount++ })
	bus.On(EventStepCompleted, func(e Event) { stepCount++ })

	bus.Emit(NewEvent(EventLog, "exec-1", "wf-1"))
	bus.Emit(NewEvent(EventLog, "exec-1", "wf-1"))
	bus.Emit(NewEvent(EventStepCompleted, "exec-1", "wf-1"))

	assert.Equal(t, 2, logCount)
	assert.Equal(t, 1, stepCount)
}

func TestBus_Off(t *testing.T) {
	bus := NewBus()

	var count int
	id := bus.On(EventLog, func(e Event) { count++ })

	bus.Emit(NewEvent(EventLog, "exec-1", "wf-1"))
	bus.Off(EventLog, id)
	bus.Emit(NewEvent(EventLog, "exec-1", "wf-1"))

	assert.Equal(t, 1, count)
}

func TestBus_PanickingListenerIsIsolated(t *testing.T) {
	bus := NewBus()

	var survived bool
	bus.On(EventLog, func(e Event) {
		panic("listener bug")
	})
	bus.On(EventLog, func(e Event) {
		survived = true
	})

	require.NotPanics(t, func() {
		bus.Emit(NewEvent(EventLog, "exec-1", "wf-1"))
	})

	// The panic neither reaches the emitter nor starves later listeners
	assert.True(t, survived)
}

func TestBus_EmitWithoutListeners(t *testing.T) {
	bus := NewBus()

	require.NotPanics(t, func() {
		bus.Emit(NewEvent(EventExecutionCompleted, "exec-1", "wf-1"))
	})
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(EventStepCompleted, "exec-1", "wf-1")

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, EventStepCompleted, event.Type)
	assert.Equal(t, "exec-1", event.ExecutionID)
	assert.Equal(t, "wf-1", event.WorkflowID)
	assert.False(t, event.Timestamp.IsZero())
}
