package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	flowengine "github.com/queryflow/flowengine"
)

// runStep executes a single step attempt against its registered handler.
// It never returns an error outward: a missing handler, a handler error and
// a handler panic all settle as a failed StepResult so the sequencer can
// apply retry policy uniformly.
func (e *Engine) runStep(
	execCtx *flowengine.ExecutionContext,
	step flowengine.WorkflowStep,
	attempt int,
	runLogger zerolog.Logger,
) flowengine.StepResult {
	stepLogger := flowengine.StepLogger(runLogger, step.ID, step.Name, attempt)

	var attemptLogs []flowengine.ExecutionLog

	// sink receives entries created through the step context
	sink := func(entry flowengine.ExecutionLog) {
		attemptLogs = append(attemptLogs, entry)
		e.emitLog(execCtx, entry)
	}

	// record creates entries on the runner's own behalf
	record := func(level flowengine.LogLevel, message string, data map[string]any) {
		entry := flowengine.ExecutionLog{
			ID:        uuid.New().String(),
			Timestamp: time.Now(),
			Level:     level,
			Message:   message,
			StepID:    step.ID,
			Data:      data,
		}
		execCtx.AppendLog(entry)
		sink(entry)
	}

	startedAt := time.Now()
	result := flowengine.StepResult{
		StepID:     step.ID,
		Status:     flowengine.StepStatusRunning,
		StartedAt:  startedAt,
		RetryCount: attempt,
	}

	settle := func(status flowengine.StepStatus) flowengine.StepResult {
		completedAt := time.Now()
		result.Status = status
		result.CompletedAt = &completedAt
		result.DurationMs = completedAt.Sub(startedAt).Milliseconds()
		result.Logs = attemptLogs
		return result
	}

	handler, err := e.registry.Resolve(step.Type)
	if err != nil {
		stepLogger.Error().Err(err).Str("step_type", step.Type).Msg("No handler registered for step type")
		record(flowengine.LogLevelError, fmt.Sprintf("Step %q failed: %s", step.Name, err.Error()), nil)
		result.Error = flowengine.ToStepError(err, attempt)
		return settle(flowengine.StepStatusFailed)
	}

	record(flowengine.LogLevelInfo, fmt.Sprintf("Executing step %q (%s)", step.Name, step.Type), nil)
	stepLogger.Info().Str("step_type", step.Type).Msg("Executing step")

	stepCtx := flowengine.NewStepContext(execCtx, step.ID, attempt, stepLogger, sink)

	var output any
	var handlerErr error

	// Execute handler with panic recovery
	func() {
		defer func() {
			if r := recover(); r != nil {
				handlerErr = flowengine.NewStepError(flowengine.ErrCodePanic,
					fmt.Sprintf("step panicked: %v", r), attempt)
				stepLogger.Error().Interface("panic", r).Msg("Step panicked")
			}
		}()

		output, handlerErr = handler(stepCtx, step)
	}()

	if handlerErr != nil {
		stepLogger.Error().
			Err(handlerErr).
			Int("attempt", attempt).
			Msg("Step execution failed")
		record(flowengine.LogLevelError, fmt.Sprintf("Step %q failed: %s", step.Name, handlerErr.Error()), nil)
		result.Error = flowengine.ToStepError(handlerErr, attempt)
		return settle(flowengine.StepStatusFailed)
	}

	result.Output = output
	record(flowengine.LogLevelSuccess, fmt.Sprintf("Step %q completed", step.Name), nil)
	stepLogger.Info().
		Int64("duration_ms", time.Since(startedAt).Milliseconds()).
		Msg("Step completed")

	return settle(flowengine.StepStatusCompleted)
}

// skipStep settles a step as skipped with zero duration; its handler is
// never invoked
func (e *Engine) skipStep(
	execCtx *flowengine.ExecutionContext,
	step flowengine.WorkflowStep,
	reason string,
	runLogger zerolog.Logger,
) flowengine.StepResult {
	now := time.Now()

	entry := flowengine.ExecutionLog{
		ID:        uuid.New().String(),
		Timestamp: now,
		Level:     flowengine.LogLevelInfo,
		Message:   fmt.Sprintf("Step %q skipped: %s", step.Name, reason),
		StepID:    step.ID,
	}
	execCtx.AppendLog(entry)
	e.emitLog(execCtx, entry)

	flowengine.LogStepSkipped(runLogger, execCtx.ExecutionID, step.ID)

	return flowengine.StepResult{
		StepID:      step.ID,
		Status:      flowengine.StepStatusSkipped,
		StartedAt:   now,
		CompletedAt: &now,
		DurationMs:  0,
		Logs:        []flowengine.ExecutionLog{entry},
	}
}
