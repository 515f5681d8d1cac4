package flowengine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ExecutionContext is the mutable state of one in-flight workflow run. It is
// exclusively owned by that run and destroyed when the run finishes; it is
// never persisted beyond process lifetime.
type ExecutionContext struct {
	WorkflowID  string
	ExecutionID string
	StartedAt   time.Time
	MaxRetries  int

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.RWMutex
	variables   map[string]any
	stepOutputs map[string]any
	currentStep string
	retryCount  int
	logs        []ExecutionLog
}

// NewExecutionContext allocates the state for a single run. The returned
// context carries a cancellation signal derived from parent; cancelling it is
// advisory only, handlers are expected to poll Done.
func NewExecutionContext(parent context.Context, workflowID, executionID string, maxRetries int) *ExecutionContext {
	ctx, cancel := context.WithCancel(parent)

	return &ExecutionContext{
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		StartedAt:   time.Now(),
		MaxRetries:  maxRetries,
		ctx:         ctx,
		cancel:      cancel,
		variables:   make(map[string]any),
		stepOutputs: make(map[string]any),
	}
}

// Context returns the run's cancellable context
func (c *ExecutionContext) Context() context.Context {
	return c.ctx
}

// Done exposes the run's cancellation signal for cooperative handlers
func (c *ExecutionContext) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Cancel signals cancellation. A handler already mid-flight is not preempted.
func (c *ExecutionContext) Cancel() {
	c.cancel()
}

// Cancelled reports whether the run has been cancelled
func (c *ExecutionContext) Cancelled() bool {
	return c.ctx.Err() != nil
}

// SetVariable stores a named value writable by step handlers
func (c *ExecutionContext) SetVariable(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variables[key] = value
}

// Variable retrieves a named value
func (c *ExecutionContext) Variable(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.variables[key]
	return v, ok
}

// Variables returns a copy of all variables
func (c *ExecutionContext) Variables() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	vars := make(map[string]any, len(c.variables))
	for k, v := range c.variables {
		vars[k] = v
	}
	return vars
}

// SetStepOutput records a settled step's output payload. Outputs only ever
// grow within one run; a retry overwrites its own step id, never another's.
func (c *ExecutionContext) SetStepOutput(stepID string, output any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stepOutputs[stepID] = output
}

// StepOutput retrieves the output payload of a previously settled step
func (c *ExecutionContext) StepOutput(stepID string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.stepOutputs[stepID]
	return v, ok
}

// StepOutputs returns a copy of all settled step outputs
func (c *ExecutionContext) StepOutputs() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	outputs := make(map[string]any, len(c.stepOutputs))
	for k, v := range c.stepOutputs {
		outputs[k] = v
	}
	return outputs
}

// SetCurrentStep records the step presently executing ("" when idle)
func (c *ExecutionContext) SetCurrentStep(stepID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentStep = stepID
}

// CurrentStep returns the id of the step presently executing
func (c *ExecutionContext) CurrentStep() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentStep
}

// SetRetryCount updates the attempt counter for the step being retried
func (c *ExecutionContext) SetRetryCount(count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retryCount = count
}

// RetryCount returns the attempt counter for the step being retried
func (c *ExecutionContext) RetryCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.retryCount
}

// AppendLog records an execution log entry on the run
func (c *ExecutionContext) AppendLog(entry ExecutionLog) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, entry)
}

// Logs returns a copy of the run's accumulated log entries
func (c *ExecutionContext) Logs() []ExecutionLog {
	c.mu.RLock()
	defer c.mu.RUnlock()

	logs := make([]ExecutionLog, len(c.logs))
	copy(logs, c.logs)
	return logs
}

// LogSink receives every ExecutionLog as it is created
type LogSink func(ExecutionLog)

// StepContext is what a step handler receives. It embeds the run's
// cancellable context and provides access to run variables, prior step
// outputs and structured logging.
type StepContext struct {
	context.Context

	ExecutionID string
	WorkflowID  string
	StepID      string
	Attempt     int

	// Logger is enriched with run and step fields
	Logger zerolog.Logger

	exec *ExecutionContext
	sink LogSink
}

// NewStepContext builds the handler-facing view of one step attempt
func NewStepContext(exec *ExecutionContext, stepID string, attempt int, logger zerolog.Logger, sink LogSink) *StepContext {
	return &StepContext{
		Context:     exec.Context(),
		ExecutionID: exec.ExecutionID,
		WorkflowID:  exec.WorkflowID,
		StepID:      stepID,
		Attempt:     attempt,
		Logger:      logger,
		exec:        exec,
		sink:        sink,
	}
}

// SetVar writes a run variable
func (sc *StepContext) SetVar(key string, value any) {
	sc.exec.SetVariable(key, value)
}

// Var reads a run variable
func (sc *StepContext) Var(key string) (any, bool) {
	return sc.exec.Variable(key)
}

// Vars returns a copy of all run variables
func (sc *StepContext) Vars() map[string]any {
	return sc.exec.Variables()
}

// Output reads the settled output of an earlier step in this run
func (sc *StepContext) Output(stepID string) (any, bool) {
	return sc.exec.StepOutput(stepID)
}

// Log emits an ExecutionLog attributed to this step. The entry is appended to
// the run, delivered to the configured sink, and mirrored to the logger.
func (sc *StepContext) Log(level LogLevel, message string, data map[string]any) {
	entry := ExecutionLog{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		StepID:    sc.StepID,
		Data:      data,
	}

	sc.exec.AppendLog(entry)
	if sc.sink != nil {
		sc.sink(entry)
	}

	switch level {
	case LogLevelError:
		sc.Logger.Error().Fields(data).Msg(message)
	case LogLevelWarning:
		sc.Logger.Warn().Fields(data).Msg(message)
	case LogLevelDebug:
		sc.Logger.Debug().Fields(data).Msg(message)
	default:
		sc.Logger.Info().Fields(data).Msg(message)
	}
}
