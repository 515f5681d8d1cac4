package flowengine

import (
	"time"

	"github.com/rs/zerolog"
)

// Structured log event names
const (
	// Execution-level events
	LogEventExecutionStarted   = "execution_started"
	LogEventExecutionCompleted = "execution_completed"
	LogEventExecutionFailed    = "execution_failed"
	LogEventExecutionCancelled = "execution_cancelled"

	// Step-level events
	LogEventStepStarted   = "step_started"
	LogEventStepRetrying  = "step_retrying"
	LogEventStepCompleted = "step_completed"
	LogEventStepFailed    = "step_failed"
	LogEventStepSkipped   = "step_skipped"

	// Persistence events
	LogEventPersistenceError = "persistence_error"
)

// LogExecutionStarted logs when a workflow run starts
func LogExecutionStarted(logger zerolog.Logger, executionID, workflowID string) {
	logger.Info().
		Str("event", LogEventExecutionStarted).
		Str("execution_id", executionID).
		Str("workflow_id", workflowID).
		Msg("Execution started")
}

// LogExecutionCompleted logs successful run completion
func LogExecutionCompleted(logger zerolog.Logger, executionID string, duration time.Duration) {
	logger.Info().
		Str("event", LogEventExecutionCompleted).
		Str("execution_id", executionID).
		Dur("duration", duration).
		Msg("Execution completed")
}

// LogExecutionFailed logs an engine-level failure
func LogExecutionFailed(logger zerolog.Logger, executionID string, err error) {
	logger.Error().
		Str("event", LogEventExecutionFailed).
		Str("execution_id", executionID).
		Err(err).
		Msg("Execution failed")
}

// LogExecutionCancelled logs run cancellation
func LogExecutionCancelled(logger zerolog.Logger, executionID string) {
	logger.Warn().
		Str("event", LogEventExecutionCancelled).
		Str("execution_id", executionID).
		Msg("Execution cancelled")
}

// LogStepRetrying logs when a step is about to be retried
func LogStepRetrying(logger zerolog.Logger, executionID, stepID string, attempt int, delay time.Duration) {
	logger.Warn().
		Str("event", LogEventStepRetrying).
		Str("execution_id", executionID).
		Str("step_id", stepID).
		Int("attempt", attempt).
		Dur("delay", delay).
		Msg("Step retrying")
}

// LogStepSkipped logs when a disabled step is recorded without running
func LogStepSkipped(logger zerolog.Logger, executionID, stepID string) {
	logger.Info().
		Str("event", LogEventStepSkipped).
		Str("execution_id", executionID).
		Str("step_id", stepID).
		Msg("Step skipped")
}

// LogPersistenceError logs errors during persistence operations
func LogPersistenceError(logger zerolog.Logger, executionID, operation string, err error) {
	logger.Error().
		Str("event", LogEventPersistenceError).
		Str("execution_id", executionID).
		Str("operation", operation).
		Err(err).
		Msg("Persistence error")
}

// ExecutionLogger creates a logger enriched with run context
func ExecutionLogger(baseLogger zerolog.Logger, executionID, workflowID string) zerolog.Logger {
	return baseLogger.With().
		Str("execution_id", executionID).
		Str("workflow_id", workflowID).
		Logger()
}

// StepLogger creates a logger enriched with step context
func StepLogger(executionLogger zerolog.Logger, stepID, stepName string, attempt int) zerolog.Logger {
	return executionLogger.With().
		Str("step_id", stepID).
		Str("step_name", stepName).
		Int("attempt", attempt).
		Logger()
}
