package engine

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	flowengine "github.com/queryflow/flowengine"
)

// Engine orchestrates workflow execution: it owns the active-execution
// table, drives the step sequencer, and keeps the persisted record in sync
// with the run's outcome.
type Engine struct {
	store    flowengine.ExecutionStore
	registry *flowengine.Registry
	bus      *flowengine.Bus
	logger   zerolog.Logger
	config   flowengine.ExecutionConfig

	mu     sync.RWMutex
	active map[string]*flowengine.ExecutionContext
}

// EngineOption configures the workflow engine
type EngineOption func(*Engine)

// WithLogger sets a custom logger for the engine
func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithBus sets the event bus used for log and step-completion events
func WithBus(bus *flowengine.Bus) EngineOption {
	return func(e *Engine) {
		e.bus = bus
	}
}

// WithConfig sets the default execution configuration
func WithConfig(config flowengine.ExecutionConfig) EngineOption {
	return func(e *Engine) {
		e.config = config
	}
}

// NewEngine creates a new workflow engine with optional configuration.
// If no logger is provided, a default stdout logger with Info level is used.
// If no bus is provided, a private one is created.
func NewEngine(store flowengine.ExecutionStore, registry *flowengine.Registry, opts ...EngineOption) *Engine {
	defaultLogger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger().
		Level(zerolog.InfoLevel)

	eng := &Engine{
		store:    store,
		registry: registry,
		logger:   defaultLogger,
		config:   flowengine.DefaultExecutionConfig,
		active:   make(map[string]*flowengine.ExecutionContext),
	}

	for _, opt := range opts {
		opt(eng)
	}

	if eng.bus == nil {
		eng.bus = flowengine.NewBus(flowengine.WithBusLogger(eng.logger))
	}

	return eng
}

// Bus returns the event bus listeners should subscribe on
func (e *Engine) Bus() *flowengine.Bus {
	return e.bus
}

// ExecuteWorkflow runs a workflow definition as a single tracked execution.
// Steps execute strictly sequentially on the calling goroutine; concurrent
// calls for different definitions are independent. The returned result is
// always well-formed: per-step failures are encoded in the step results and
// engine-level faults in Status/Error, never as a panic.
func (e *Engine) ExecuteWorkflow(
	ctx context.Context,
	def *flowengine.WorkflowDefinition,
	caller *flowengine.Caller,
	opts ...flowengine.RunOption,
) *flowengine.ExecutionResult {
	options := flowengine.NewRunOptions(e.config, opts...)

	executionID := uuid.New().String()
	startedAt := time.Now()

	if err := def.Validate(); err != nil {
		return e.rejectedResult(executionID, def.ID, startedAt, flowengine.ToWorkflowError(err))
	}
	if !def.Enabled {
		return e.rejectedResult(executionID, def.ID, startedAt,
			flowengine.NewWorkflowError(flowengine.ErrCodeValidation, fmt.Sprintf("workflow %s is disabled", def.ID)))
	}

	execCtx := flowengine.NewExecutionContext(ctx, def.ID, executionID, options.Config.MaxRetries)
	for key, value := range options.Variables {
		execCtx.SetVariable(key, value)
	}

	e.track(execCtx)
	defer e.untrack(executionID)
	defer execCtx.Cancel()

	runLogger := flowengine.ExecutionLogger(e.logger, executionID, def.ID)

	record := &flowengine.ExecutionRecord{
		ExecutionID:  executionID,
		WorkflowID:   def.ID,
		WorkflowName: def.Name,
		Status:       flowengine.RunStatusRunning,
		CreatedAt:    startedAt,
		StartedAt:    execCtx.StartedAt,
		UpdatedAt:    startedAt,
		Caller:       caller,
		Tags:         options.Tags,
	}
	if options.TTL > 0 {
		record.TTL = time.Now().Add(options.TTL).Unix()
	}

	if err := e.store.CreateExecution(ctx, record); err != nil {
		flowengine.LogPersistenceError(runLogger, executionID, "create_execution", err)
		return e.failedResult(execCtx, def, nil, flowengine.NewWorkflowError(flowengine.ErrCodePersistence, err.Error()))
	}

	flowengine.LogExecutionStarted(runLogger, executionID, def.ID)
	e.bus.Emit(flowengine.NewEvent(flowengine.EventExecutionStarted, executionID, def.ID))

	results, runErr := e.runGuarded(execCtx, def, options.Config, runLogger)
	if runErr != nil {
		e.persistFailure(ctx, record, runErr, runLogger)
		flowengine.LogExecutionFailed(runLogger, executionID, runErr)
		failed := flowengine.NewEvent(flowengine.EventExecutionFailed, executionID, def.ID)
		failed.Error = runErr.Error()
		e.bus.Emit(failed)

		return e.failedResult(execCtx, def, nil, flowengine.ToWorkflowError(runErr))
	}

	completedAt := time.Now()
	metrics := flowengine.CalculateMetrics(execCtx.StartedAt, completedAt, results)

	status := flowengine.RunStatusCompleted
	if execCtx.Cancelled() {
		status = flowengine.RunStatusCancelled
	}

	record.Status = status
	record.CompletedAt = &completedAt
	record.UpdatedAt = completedAt
	record.Steps = results
	record.Metrics = &metrics

	if err := e.store.UpdateExecution(ctx, record); err != nil {
		flowengine.LogPersistenceError(runLogger, executionID, "update_execution", err)
		e.persistFailure(ctx, record, err, runLogger)

		return e.failedResult(execCtx, def, results, flowengine.NewWorkflowError(flowengine.ErrCodePersistence, err.Error()))
	}

	if status == flowengine.RunStatusCompleted {
		flowengine.LogExecutionCompleted(runLogger, executionID, completedAt.Sub(execCtx.StartedAt))
		e.bus.Emit(flowengine.NewEvent(flowengine.EventExecutionCompleted, executionID, def.ID))
	}

	return &flowengine.ExecutionResult{
		ExecutionID: executionID,
		WorkflowID:  def.ID,
		Status:      status,
		Steps:       results,
		Metrics:     &metrics,
		StartedAt:   execCtx.StartedAt,
		CompletedAt: completedAt,
	}
}

// runGuarded runs the sequencer and converts an escaping panic into an
// engine-level error. Per-step failures never surface here; they are data in
// the returned results.
func (e *Engine) runGuarded(
	execCtx *flowengine.ExecutionContext,
	def *flowengine.WorkflowDefinition,
	config flowengine.ExecutionConfig,
	runLogger zerolog.Logger,
) (results []flowengine.StepResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = flowengine.NewWorkflowError(flowengine.ErrCodePanic, fmt.Sprintf("execution panicked: %v", r))
		}
	}()

	results = e.runSteps(execCtx, def, config, runLogger)

	return results, nil
}

// CancelExecution stops tracking a run and marks its record cancelled.
// Cancellation is advisory: a handler already mid-flight is not interrupted
// and is expected to poll the step context's Done channel.
func (e *Engine) CancelExecution(ctx context.Context, executionID string) error {
	e.mu.Lock()
	execCtx, exists := e.active[executionID]
	if exists {
		delete(e.active, executionID)
	}
	e.mu.Unlock()

	if !exists {
		return flowengine.NewWorkflowError(flowengine.ErrCodeNotFound,
			fmt.Sprintf("execution %s is not active", executionID))
	}

	execCtx.Cancel()

	if err := e.store.UpdateExecutionStatus(ctx, executionID, flowengine.RunStatusCancelled, nil); err != nil {
		flowengine.LogPersistenceError(e.logger, executionID, "cancel_execution", err)
		return fmt.Errorf("failed to mark execution %s cancelled: %w", executionID, err)
	}

	flowengine.LogExecutionCancelled(e.logger, executionID)
	e.bus.Emit(flowengine.NewEvent(flowengine.EventExecutionCancelled, executionID, execCtx.WorkflowID))

	return nil
}

// GetExecution retrieves a persisted execution record
func (e *Engine) GetExecution(ctx context.Context, executionID string) (*flowengine.ExecutionRecord, error) {
	return e.store.GetExecution(ctx, executionID)
}

// ListExecutions lists persisted execution records with filtering
func (e *Engine) ListExecutions(ctx context.Context, filter flowengine.ExecutionFilter) ([]*flowengine.ExecutionRecord, error) {
	return e.store.ListExecutions(ctx, filter)
}

// ActiveExecutions returns the ids of runs currently tracked by the engine
func (e *Engine) ActiveExecutions() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := make([]string, 0, len(e.active))
	for id := range e.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

// IsActive reports whether an execution is currently tracked
func (e *Engine) IsActive(executionID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, exists := e.active[executionID]
	return exists
}

func (e *Engine) track(execCtx *flowengine.ExecutionContext) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active[execCtx.ExecutionID] = execCtx
}

func (e *Engine) untrack(executionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.active, executionID)
}

// persistFailure marks the record failed, tolerating persistence being the
// thing that is broken
func (e *Engine) persistFailure(ctx context.Context, record *flowengine.ExecutionRecord, cause error, runLogger zerolog.Logger) {
	if err := e.store.UpdateExecutionStatus(ctx, record.ExecutionID, flowengine.RunStatusFailed, flowengine.ToWorkflowError(cause)); err != nil {
		flowengine.LogPersistenceError(runLogger, record.ExecutionID, "mark_failed", err)
	}
}

// rejectedResult is returned when a definition never makes it to a tracked run
func (e *Engine) rejectedResult(executionID, workflowID string, startedAt time.Time, execErr *flowengine.WorkflowError) *flowengine.ExecutionResult {
	e.logger.Error().
		Str("execution_id", executionID).
		Str("workflow_id", workflowID).
		Err(execErr).
		Msg("Workflow rejected")

	return &flowengine.ExecutionResult{
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		Status:      flowengine.RunStatusFailed,
		Steps:       []flowengine.StepResult{},
		Error:       execErr,
		StartedAt:   startedAt,
		CompletedAt: time.Now(),
	}
}

func (e *Engine) failedResult(
	execCtx *flowengine.ExecutionContext,
	def *flowengine.WorkflowDefinition,
	steps []flowengine.StepResult,
	execErr *flowengine.WorkflowError,
) *flowengine.ExecutionResult {
	if steps == nil {
		steps = []flowengine.StepResult{}
	}

	return &flowengine.ExecutionResult{
		ExecutionID: execCtx.ExecutionID,
		WorkflowID:  def.ID,
		Status:      flowengine.RunStatusFailed,
		Steps:       steps,
		Error:       execErr,
		StartedAt:   execCtx.StartedAt,
		CompletedAt: time.Now(),
	}
}

// emitLog publishes an execution log entry on the bus
func (e *Engine) emitLog(execCtx *flowengine.ExecutionContext, entry flowengine.ExecutionLog) {
	event := flowengine.NewEvent(flowengine.EventLog, execCtx.ExecutionID, execCtx.WorkflowID)
	event.StepID = entry.StepID
	event.Log = &entry
	e.bus.Emit(event)
}

// emitStepCompleted publishes a settled step result on the bus
func (e *Engine) emitStepCompleted(execCtx *flowengine.ExecutionContext, result flowengine.StepResult) {
	event := flowengine.NewEvent(flowengine.EventStepCompleted, execCtx.ExecutionID, execCtx.WorkflowID)
	event.StepID = result.StepID
	event.Result = &result
	e.bus.Emit(event)
}
