package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	flowengine "github.com/queryflow/flowengine"
	"github.com/queryflow/flowengine/store"
)

// fastConfig keeps retry waits out of the test runtime
var fastConfig = flowengine.ExecutionConfig{
	MaxRetries:        3,
	RetryDelay:        time.Millisecond,
	RetryBackoff:      flowengine.BackoffNone,
	ContinueOnFailure: true,
}

func createTestEngine(t *testing.T, opts ...EngineOption) (*Engine, *flowengine.Registry, flowengine.ExecutionStore) {
	t.Helper()

	memStore := store.NewMemoryStore()
	registry := flowengine.NewRegistry()

	base := []EngineOption{
		WithLogger(zerolog.Nop()),
		WithConfig(fastConfig),
	}
	eng := NewEngine(memStore, registry, append(base, opts...)...)

	return eng, registry, memStore
}

func testDefinition(steps ...flowengine.WorkflowStep) *flowengine.WorkflowDefinition {
	return &flowengine.WorkflowDefinition{
		ID:      "wf-test",
		Name:    "Test Workflow",
		Trigger: flowengine.TriggerManual,
		Enabled: true,
		Steps:   steps,
	}
}

func enabledStep(id, stepType string, order int) flowengine.WorkflowStep {
	return flowengine.WorkflowStep{
		ID:      id,
		Type:    stepType,
		Name:    id,
		Enabled: true,
		Order:   order,
	}
}

func TestEngine_ExecuteWorkflow_Success(t *testing.T) {
	eng, registry, _ := createTestEngine(t)

	require.NoError(t, registry.Register("noop", func(ctx *flowengine.StepContext, step flowengine.WorkflowStep) (any, error) {
		return step.ID + "-output", nil
	}))

	def := testDefinition(
		enabledStep("first", "noop", 0),
		enabledStep("second", "noop", 1),
		enabledStep("third", "noop", 2),
	)

	result := eng.ExecuteWorkflow(context.Background(), def, nil)

	require.NotNil(t, result)
	assert.Equal(t, flowengine.RunStatusCompleted, result.Status)
	assert.Nil(t, result.Error)

	// One settled result per step, in declared order
	require.Len(t, result.Steps, 3)
	assert.Equal(t, "first", result.Steps[0].StepID)
	assert.Equal(t, "second", result.Steps[1].StepID)
	assert.Equal(t, "third", result.Steps[2].StepID)
	for _, step := range result.Steps {
		assert.Equal(t, flowengine.StepStatusCompleted, step.Status)
		assert.Equal(t, step.StepID+"-output", step.Output)
		require.NotNil(t, step.CompletedAt)
		assert.GreaterOrEqual(t, step.DurationMs, int64(0))
	}

	require.NotNil(t, result.Metrics)
	assert.Equal(t, 3, result.Metrics.TotalSteps)
	assert.Equal(t, 3, result.Metrics.CompletedSteps)
}

func TestEngine_ExecuteWorkflow_PersistsRecord(t *testing.T) {
	eng, registry, _ := createTestEngine(t)

	require.NoError(t, registry.Register("noop", func(ctx *flowengine.StepContext, step flowengine.WorkflowStep) (any, error) {
		return nil, nil
	}))

	def := testDefinition(enabledStep("only", "noop", 0))
	caller := &flowengine.Caller{UserID: "user-1", Source: "api"}

	result := eng.ExecuteWorkflow(context.Background(), def, caller,
		flowengine.WithTags(map[string]string{"env": "test"}))

	record, err := eng.GetExecution(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, flowengine.RunStatusCompleted, record.Status)
	assert.Equal(t, def.ID, record.WorkflowID)
	assert.Equal(t, def.Name, record.WorkflowName)
	assert.Equal(t, "user-1", record.Caller.UserID)
	assert.Equal(t, "test", record.Tags["env"])
	require.NotNil(t, record.CompletedAt)
	require.Len(t, record.Steps, 1)
	require.NotNil(t, record.Metrics)
}

func TestEngine_ExecuteWorkflow_DisabledStepSkipped(t *testing.T) {
	eng, registry, _ := createTestEngine(t)

	var invoked int32
	require.NoError(t, registry.Register("counted", func(ctx *flowengine.StepContext, step flowengine.WorkflowStep) (any, error) {
		atomic.AddInt32(&invoked, 1)
		return nil, nil
	}))

	disabled := enabledStep("middle", "counted", 1)
	disabled.Enabled = false

	def := testDefinition(
		enabledStep("first", "counted", 0),
		disabled,
		enabledStep("last", "counted", 2),
	)

	result := eng.ExecuteWorkflow(context.Background(), def, nil)

	assert.Equal(t, flowengine.RunStatusCompleted, result.Status)
	require.Len(t, result.Steps, 3)
	assert.Equal(t, flowengine.StepStatusSkipped, result.Steps[1].Status)
	assert.Zero(t, result.Steps[1].DurationMs)

	// The disabled step's handler is never invoked
	assert.Equal(t, int32(2), atomic.LoadInt32(&invoked))
}

func TestEngine_ExecuteWorkflow_UnknownStepType(t *testing.T) {
	eng, registry, _ := createTestEngine(t, WithConfig(flowengine.ExecutionConfig{
		MaxRetries:        0,
		RetryDelay:        time.Millisecond,
		RetryBackoff:      flowengine.BackoffNone,
		ContinueOnFailure: true,
	}))

	require.NoError(t, registry.Register("noop", func(ctx *flowengine.StepContext, step flowengine.WorkflowStep) (any, error) {
		return nil, nil
	}))

	def := testDefinition(
		enabledStep("known", "noop", 0),
		enabledStep("mystery", "not_registered", 1),
		enabledStep("after", "noop", 2),
	)

	result := eng.ExecuteWorkflow(context.Background(), def, nil)

	// The unresolvable step fails; the run itself still completes
	assert.Equal(t, flowengine.RunStatusCompleted, result.Status)
	require.Len(t, result.Steps, 3)
	assert.Equal(t, flowengine.StepStatusFailed, result.Steps[1].Status)
	require.NotNil(t, result.Steps[1].Error)
	assert.Equal(t, flowengine.ErrCodeUnknownStepType, result.Steps[1].Error.Code)
	assert.Equal(t, flowengine.StepStatusCompleted, result.Steps[2].Status)
}

func TestEngine_ExecuteWorkflow_HandlerPanicSettlesAsFailure(t *testing.T) {
	eng, registry, _ := createTestEngine(t, WithConfig(flowengine.ExecutionConfig{
		MaxRetries:        0,
		RetryDelay:        time.Millisecond,
		RetryBackoff:      flowengine.BackoffNone,
		ContinueOnFailure: true,
	}))

	require.NoError(t, registry.Register("bomb", func(ctx *flowengine.StepContext, step flowengine.WorkflowStep) (any, error) {
		panic("handler bug")
	}))

	def := testDefinition(enabledStep("boom", "bomb", 0))

	var result *flowengine.ExecutionResult
	require.NotPanics(t, func() {
		result = eng.ExecuteWorkflow(context.Background(), def, nil)
	})

	require.Len(t, result.Steps, 1)
	assert.Equal(t, flowengine.StepStatusFailed, result.Steps[0].Status)
	require.NotNil(t, result.Steps[0].Error)
	assert.Equal(t, flowengine.ErrCodePanic, result.Steps[0].Error.Code)
}

func TestEngine_ExecuteWorkflow_RejectsInvalidDefinition(t *testing.T) {
	eng, _, memStore := createTestEngine(t)

	def := testDefinition() // no steps

	result := eng.ExecuteWorkflow(context.Background(), def, nil)

	require.NotNil(t, result)
	assert.Equal(t, flowengine.RunStatusFailed, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, flowengine.ErrCodeValidation, result.Error.Code)
	assert.Empty(t, result.Steps)

	// A rejected definition never reaches the store
	records, err := memStore.ListExecutions(context.Background(), flowengine.ExecutionFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestEngine_ExecuteWorkflow_RejectsDisabledWorkflow(t *testing.T) {
	eng, registry, _ := createTestEngine(t)

	require.NoError(t, registry.Register("noop", func(ctx *flowengine.StepContext, step flowengine.WorkflowStep) (any, error) {
		return nil, nil
	}))

	def := testDefinition(enabledStep("only", "noop", 0))
	def.Enabled = false

	result := eng.ExecuteWorkflow(context.Background(), def, nil)

	assert.Equal(t, flowengine.RunStatusFailed, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, flowengine.ErrCodeValidation, result.Error.Code)
}

func TestEngine_ExecuteWorkflow_CleansUpActiveTable(t *testing.T) {
	eng, registry, _ := createTestEngine(t)

	require.NoError(t, registry.Register("noop", func(ctx *flowengine.StepContext, step flowengine.WorkflowStep) (any, error) {
		assert.True(t, eng.IsActive(ctx.ExecutionID))
		return nil, nil
	}))

	def := testDefinition(enabledStep("only", "noop", 0))

	result := eng.ExecuteWorkflow(context.Background(), def, nil)

	assert.Equal(t, flowengine.RunStatusCompleted, result.Status)
	assert.Empty(t, eng.ActiveExecutions())
	assert.False(t, eng.IsActive(result.ExecutionID))
}

func TestEngine_ExecuteWorkflow_VariablesFlowBetweenSteps(t *testing.T) {
	eng, registry, _ := createTestEngine(t)

	require.NoError(t, registry.Register("writer", func(ctx *flowengine.StepContext, step flowengine.WorkflowStep) (any, error) {
		ctx.SetVar("token", "abc123")
		return "written", nil
	}))
	require.NoError(t, registry.Register("reader", func(ctx *flowengine.StepContext, step flowengine.WorkflowStep) (any, error) {
		v, ok := ctx.Var("token")
		if !ok {
			return nil, errors.New("token not set by earlier step")
		}
		prior, ok := ctx.Output("write")
		if !ok {
			return nil, errors.New("earlier step output not visible")
		}
		return map[string]any{"token": v, "prior": prior}, nil
	}))

	def := testDefinition(
		enabledStep("write", "writer", 0),
		enabledStep("read", "reader", 1),
	)

	result := eng.ExecuteWorkflow(context.Background(), def, nil,
		flowengine.WithVariable("seed", 7))

	require.Len(t, result.Steps, 2)
	require.Equal(t, flowengine.StepStatusCompleted, result.Steps[1].Status)
	output := result.Steps[1].Output.(map[string]any)
	assert.Equal(t, "abc123", output["token"])
	assert.Equal(t, "written", output["prior"])
}

func TestEngine_CancelExecution(t *testing.T) {
	eng, registry, _ := createTestEngine(t)

	var thirdRan int32
	require.NoError(t, registry.Register("noop", func(ctx *flowengine.StepContext, step flowengine.WorkflowStep) (any, error) {
		return nil, nil
	}))
	require.NoError(t, registry.Register("canceller", func(ctx *flowengine.StepContext, step flowengine.WorkflowStep) (any, error) {
		return nil, eng.CancelExecution(context.Background(), ctx.ExecutionID)
	}))
	require.NoError(t, registry.Register("counted", func(ctx *flowengine.StepContext, step flowengine.WorkflowStep) (any, error) {
		atomic.AddInt32(&thirdRan, 1)
		return nil, nil
	}))

	def := testDefinition(
		enabledStep("first", "noop", 0),
		enabledStep("stop", "canceller", 1),
		enabledStep("never", "counted", 2),
	)

	result := eng.ExecuteWorkflow(context.Background(), def, nil)

	assert.Equal(t, flowengine.RunStatusCancelled, result.Status)
	// The cancelling step itself settles; the step after it does not run
	assert.Len(t, result.Steps, 2)
	assert.Zero(t, atomic.LoadInt32(&thirdRan))
	assert.Empty(t, eng.ActiveExecutions())
}

func TestEngine_CancelExecution_UnknownExecution(t *testing.T) {
	eng, _, _ := createTestEngine(t)

	err := eng.CancelExecution(context.Background(), "no-such-execution")
	require.Error(t, err)
	assert.True(t, flowengine.IsNotFound(err))
}

func TestEngine_ListExecutions(t *testing.T) {
	eng, registry, _ := createTestEngine(t)

	require.NoError(t, registry.Register("noop", func(ctx *flowengine.StepContext, step flowengine.WorkflowStep) (any, error) {
		return nil, nil
	}))

	def := testDefinition(enabledStep("only", "noop", 0))

	first := eng.ExecuteWorkflow(context.Background(), def, nil)
	second := eng.ExecuteWorkflow(context.Background(), def, nil)

	records, err := eng.ListExecutions(context.Background(), flowengine.ExecutionFilter{
		WorkflowID: def.ID,
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	ids := []string{records[0].ExecutionID, records[1].ExecutionID}
	assert.Contains(t, ids, first.ExecutionID)
	assert.Contains(t, ids, second.ExecutionID)

	completed := flowengine.RunStatusCompleted
	records, err = eng.ListExecutions(context.Background(), flowengine.ExecutionFilter{
		WorkflowID: def.ID,
		Status:     &completed,
		Limit:      1,
	})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestEngine_EventOrdering(t *testing.T) {
	eng, registry, _ := createTestEngine(t)

	require.NoError(t, registry.Register("noop", func(ctx *flowengine.StepContext, step flowengine.WorkflowStep) (any, error) {
		return nil, nil
	}))

	var sequence []string
	eng.Bus().On(flowengine.EventExecutionStarted, func(e flowengine.Event) {
		sequence = append(sequence, "started")
	})
	eng.Bus().On(flowengine.EventStepCompleted, func(e flowengine.Event) {
		sequence = append(sequence, "step:"+e.StepID)
	})
	eng.Bus().On(flowengine.EventExecutionCompleted, func(e flowengine.Event) {
		sequence = append(sequence, "completed")
	})

	def := testDefinition(
		enabledStep("a", "noop", 0),
		enabledStep("b", "noop", 1),
	)

	eng.ExecuteWorkflow(context.Background(), def, nil)

	assert.Equal(t, []string{"started", "step:a", "step:b", "completed"}, sequence)
}

func TestEngine_LogEventsCarryEntries(t *testing.T) {
	eng, registry, _ := createTestEngine(t)

	require.NoError(t, registry.Register("chatty", func(ctx *flowengine.StepContext, step flowengine.WorkflowStep) (any, error) {
		ctx.Log(flowengine.LogLevelInfo, "doing work", map[string]any{"progress": 1})
		return nil, nil
	}))

	var entries []flowengine.ExecutionLog
	eng.Bus().On(flowengine.EventLog, func(e flowengine.Event) {
		require.NotNil(t, e.Log)
		entries = append(entries, *e.Log)
	})

	def := testDefinition(enabledStep("only", "chatty", 0))
	eng.ExecuteWorkflow(context.Background(), def, nil)

	// Runner start/finish entries plus the handler's own entry
	require.NotEmpty(t, entries)
	var sawHandlerEntry bool
	for _, entry := range entries {
		if entry.Message == "doing work" {
			sawHandlerEntry = true
			assert.Equal(t, "only", entry.StepID)
		}
	}
	assert.True(t, sawHandlerEntry)
}
