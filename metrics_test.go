package flowengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func settledResult(stepID string, status StepStatus, durationMs int64) StepResult {
	startedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	completedAt := startedAt.Add(time.Duration(durationMs) * time.Millisecond)

	return StepResult{
		StepID:      stepID,
		Status:      status,
		StartedAt:   startedAt,
		CompletedAt: &completedAt,
		DurationMs:  durationMs,
	}
}

func TestCalculateMetrics_Counts(t *testing.T) {
	startedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	completedAt := startedAt.Add(10 * time.Second)

	results := []StepResult{
		settledResult("a", StepStatusCompleted, 100),
		settledResult("b", StepStatusCompleted, 200),
		settledResult("c", StepStatusFailed, 50),
		settledResult("d", StepStatusSkipped, 0),
	}

	metrics := CalculateMetrics(startedAt, completedAt, results)

	assert.Equal(t, 4, metrics.TotalSteps)
	assert.Equal(t, 2, metrics.CompletedSteps)
	assert.Equal(t, 1, metrics.FailedSteps)
	assert.Equal(t, 1, metrics.SkippedSteps)
	assert.Equal(t, int64(10000), metrics.TotalDurationMs)
	assert.Equal(t, int64(2500), metrics.AverageStepDurationMs)
	assert.Equal(t, int64(350), metrics.Resources.CPUTimeMs)
}

func TestCalculateMetrics_Idempotent(t *testing.T) {
	startedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	completedAt := startedAt.Add(3 * time.Second)

	results := []StepResult{
		settledResult("a", StepStatusCompleted, 120),
		settledResult("b", StepStatusFailed, 80),
	}
	results[0].Output = map[string]any{"rows": 42}

	first := CalculateMetrics(startedAt, completedAt, results)
	second := CalculateMetrics(startedAt, completedAt, results)

	// Same inputs, same outputs, even about resource estimates
	assert.Equal(t, first, second)
}

func TestCalculateMetrics_NoSteps(t *testing.T) {
	startedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	completedAt := startedAt.Add(time.Second)

	metrics := CalculateMetrics(startedAt, completedAt, nil)

	assert.Equal(t, 0, metrics.TotalSteps)
	assert.Equal(t, int64(0), metrics.AverageStepDurationMs)
	assert.Equal(t, int64(1000), metrics.TotalDurationMs)
}

func TestCalculateMetrics_NegativeDurationClamped(t *testing.T) {
	startedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	completedAt := startedAt.Add(-time.Second)

	metrics := CalculateMetrics(startedAt, completedAt, nil)

	assert.Equal(t, int64(0), metrics.TotalDurationMs)
}

func TestCalculateMetrics_ResourceEstimateGrowsWithOutput(t *testing.T) {
	startedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	completedAt := startedAt.Add(time.Second)

	small := settledResult("a", StepStatusCompleted, 10)
	small.Output = "ok"

	large := settledResult("a", StepStatusCompleted, 10)
	large.Output = map[string]any{"payload": "a much larger output body than the small one"}

	smallMetrics := CalculateMetrics(startedAt, completedAt, []StepResult{small})
	largeMetrics := CalculateMetrics(startedAt, completedAt, []StepResult{large})

	assert.Greater(t, largeMetrics.Resources.EstimatedMemoryBytes, smallMetrics.Resources.EstimatedMemoryBytes)
	assert.GreaterOrEqual(t, smallMetrics.Resources.EstimatedMemoryBytes, int64(0))
}
