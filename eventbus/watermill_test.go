package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	flowengine "github.com/queryflow/flowengine"
)

func newTestPubSub(t *testing.T) (*gochannel.GoChannel, <-chan *message.Message) {
	t.Helper()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { pubSub.Close() })

	messages, err := pubSub.Subscribe(context.Background(), Topic)
	require.NoError(t, err)

	return pubSub, messages
}

func receiveMessage(t *testing.T, messages <-chan *message.Message) *message.Message {
	t.Helper()

	select {
	case msg := <-messages:
		msg.Ack()
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bridged message")
		return nil
	}
}

func TestBridge_PublishesBusEvents(t *testing.T) {
	pubSub, messages := newTestPubSub(t)

	bus := flowengine.NewBus()
	bridge := NewBridge(pubSub)
	defer bridge.Detach()

	bridge.Attach(bus, flowengine.EventStepCompleted)

	event := flowengine.NewEvent(flowengine.EventStepCompleted, "exec-1", "wf-1")
	event.StepID = "step-1"
	event.Result = &flowengine.StepResult{
		StepID: "step-1",
		Status: flowengine.StepStatusCompleted,
	}
	bus.Emit(event)

	msg := receiveMessage(t, messages)

	assert.Equal(t, string(flowengine.EventStepCompleted), msg.Metadata.Get(EventTypeMetadataKey))
	assert.Equal(t, "exec-1", msg.Metadata.Get(ExecutionIDMetadataKey))

	decoded, err := DecodeEvent(msg)
	require.NoError(t, err)
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, "step-1", decoded.StepID)
	require.NotNil(t, decoded.Result)
	assert.Equal(t, flowengine.StepStatusCompleted, decoded.Result.Status)
}

func TestBridge_OnlyForwardsAttachedTypes(t *testing.T) {
	pubSub, messages := newTestPubSub(t)

	bus := flowengine.NewBus()
	bridge := NewBridge(pubSub)
	defer bridge.Detach()

	bridge.Attach(bus, flowengine.EventExecutionCompleted)

	bus.Emit(flowengine.NewEvent(flowengine.EventLog, "exec-1", "wf-1"))
	bus.Emit(flowengine.NewEvent(flowengine.EventExecutionCompleted, "exec-1", "wf-1"))

	msg := receiveMessage(t, messages)
	assert.Equal(t, string(flowengine.EventExecutionCompleted), msg.Metadata.Get(EventTypeMetadataKey))

	select {
	case extra := <-messages:
		t.Fatalf("unexpected extra message: %s", extra.Metadata.Get(EventTypeMetadataKey))
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBridge_DefaultAttachCoversLifecycle(t *testing.T) {
	pubSub, messages := newTestPubSub(t)

	bus := flowengine.NewBus()
	bridge := NewBridge(pubSub)
	defer bridge.Detach()

	bridge.Attach(bus)

	bus.Emit(flowengine.NewEvent(flowengine.EventExecutionStarted, "exec-1", "wf-1"))
	bus.Emit(flowengine.NewEvent(flowengine.EventStepCompleted, "exec-1", "wf-1"))
	bus.Emit(flowengine.NewEvent(flowengine.EventExecutionCancelled, "exec-1", "wf-1"))

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		msg := receiveMessage(t, messages)
		seen[msg.Metadata.Get(EventTypeMetadataKey)] = true
	}

	assert.True(t, seen[string(flowengine.EventExecutionStarted)])
	assert.True(t, seen[string(flowengine.EventStepCompleted)])
	assert.True(t, seen[string(flowengine.EventExecutionCancelled)])
}

func TestBridge_DetachStopsForwarding(t *testing.T) {
	pubSub, messages := newTestPubSub(t)

	bus := flowengine.NewBus()
	bridge := NewBridge(pubSub)

	bridge.Attach(bus, flowengine.EventLog)
	bridge.Detach()

	bus.Emit(flowengine.NewEvent(flowengine.EventLog, "exec-1", "wf-1"))

	select {
	case msg := <-messages:
		t.Fatalf("message forwarded after detach: %s", msg.Metadata.Get(EventTypeMetadataKey))
	case <-time.After(50 * time.Millisecond):
	}
}
