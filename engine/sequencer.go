package engine

import (
	"time"

	"github.com/rs/zerolog"

	flowengine "github.com/queryflow/flowengine"
)

// runSteps drives one run from the first step to the last. Steps execute in
// declared order (stable for ties); disabled steps settle as skipped without
// a handler invocation. A failed step is retried up to the run's retry bound
// with backoff, each retry replacing the previous result in the returned
// list while the failed attempts are kept in the result's Attempts history.
// The loop proceeds past a finally-failed step unless the run was configured
// with ContinueOnFailure=false, in which case the remaining steps settle as
// skipped.
func (e *Engine) runSteps(
	execCtx *flowengine.ExecutionContext,
	def *flowengine.WorkflowDefinition,
	config flowengine.ExecutionConfig,
	runLogger zerolog.Logger,
) []flowengine.StepResult {
	steps := def.OrderedSteps()
	results := make([]flowengine.StepResult, 0, len(steps))

	halted := false

	for _, step := range steps {
		if execCtx.Cancelled() {
			runLogger.Warn().Str("step_id", step.ID).Msg("Execution cancelled, remaining steps not run")
			break
		}

		if !step.Enabled || halted {
			reason := "step disabled"
			if step.Enabled {
				reason = "earlier step failed"
			}

			result := e.skipStep(execCtx, step, reason, runLogger)
			results = append(results, result)
			e.emitStepCompleted(execCtx, result)

			continue
		}

		execCtx.SetCurrentStep(step.ID)
		execCtx.SetRetryCount(0)

		result := e.runStep(execCtx, step, 0, runLogger)
		results = append(results, result)
		execCtx.SetStepOutput(step.ID, result.Output)
		e.emitStepCompleted(execCtx, result)

		// Retry pass: each outcome replaces the step's entry in results,
		// with the superseded attempt preserved on the replacement.
		for result.Status == flowengine.StepStatusFailed && execCtx.RetryCount() < execCtx.MaxRetries {
			if execCtx.Cancelled() {
				break
			}

			attempt := execCtx.RetryCount() + 1
			execCtx.SetRetryCount(attempt)

			delay := flowengine.CalculateBackoff(config.RetryDelay, attempt, config.RetryBackoff)
			flowengine.LogStepRetrying(runLogger, execCtx.ExecutionID, step.ID, attempt, delay)

			if !e.wait(execCtx, delay) {
				break
			}

			attempts := append(result.Attempts, asAttempt(result))

			retried := e.runStep(execCtx, step, attempt, runLogger)
			retried.Attempts = attempts

			results[len(results)-1] = retried
			execCtx.SetStepOutput(step.ID, retried.Output)
			e.emitStepCompleted(execCtx, retried)

			result = retried
		}

		if result.Status == flowengine.StepStatusFailed && !config.ContinueOnFailure {
			runLogger.Error().
				Str("step_id", step.ID).
				Msg("Step failed and run is configured to stop on failure")
			halted = true
		}
	}

	execCtx.SetCurrentStep("")

	return results
}

// wait blocks for the backoff delay; returns false if the run was cancelled
// while waiting
func (e *Engine) wait(execCtx *flowengine.ExecutionContext, delay time.Duration) bool {
	if delay <= 0 {
		return !execCtx.Cancelled()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-execCtx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// asAttempt strips a settled result down to its audit-trail form
func asAttempt(result flowengine.StepResult) flowengine.StepAttempt {
	return flowengine.StepAttempt{
		Attempt:     result.RetryCount,
		Status:      result.Status,
		StartedAt:   result.StartedAt,
		CompletedAt: result.CompletedAt,
		Error:       result.Error,
		DurationMs:  result.DurationMs,
	}
}
