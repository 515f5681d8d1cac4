package flowengine

import (
	"encoding/json"
	"time"
)

// ResourceUsage is a deterministic estimate of what a run consumed. The
// values are approximations derived from the result set, not precise
// measurements; both are always non-negative.
type ResourceUsage struct {
	// EstimatedMemoryBytes is the serialized size of all step outputs and logs
	EstimatedMemoryBytes int64 `json:"estimatedMemoryBytes" dynamodbav:"estimated_memory_bytes"`
	// CPUTimeMs is the sum of settled step durations
	CPUTimeMs int64 `json:"cpuTimeMs" dynamodbav:"cpu_time_ms"`
}

// ExecutionMetrics is a derived, read-only summary of a completed run. It is
// recomputable from the step results at any time and is never authoritative
// state.
type ExecutionMetrics struct {
	TotalSteps     int `json:"totalSteps"     dynamodbav:"total_steps"`
	CompletedSteps int `json:"completedSteps" dynamodbav:"completed_steps"`
	FailedSteps    int `json:"failedSteps"    dynamodbav:"failed_steps"`
	SkippedSteps   int `json:"skippedSteps"   dynamodbav:"skipped_steps"`

	TotalDurationMs       int64 `json:"totalDurationMs"       dynamodbav:"total_duration_ms"`
	AverageStepDurationMs int64 `json:"averageStepDurationMs" dynamodbav:"average_step_duration_ms"`

	Resources ResourceUsage `json:"resources" dynamodbav:"resources"`
}

// CalculateMetrics derives metrics from a run's settled results. It is a pure
// function of its arguments: the same inputs always yield the same output.
func CalculateMetrics(startedAt, completedAt time.Time, results []StepResult) ExecutionMetrics {
	metrics := ExecutionMetrics{
		TotalSteps: len(results),
	}

	for _, result := range results {
		switch result.Status {
		case StepStatusCompleted:
			metrics.CompletedSteps++
		case StepStatusFailed:
			metrics.FailedSteps++
		case StepStatusSkipped:
			metrics.SkippedSteps++
		}

		metrics.Resources.CPUTimeMs += result.DurationMs
		metrics.Resources.EstimatedMemoryBytes += estimateSize(result)
	}

	total := completedAt.Sub(startedAt)
	if total < 0 {
		total = 0
	}
	metrics.TotalDurationMs = total.Milliseconds()

	if metrics.TotalSteps > 0 {
		metrics.AverageStepDurationMs = metrics.TotalDurationMs / int64(metrics.TotalSteps)
	}

	return metrics
}

// estimateSize approximates the memory footprint of one result via its
// serialized form. Unmarshalable outputs count as zero.
func estimateSize(result StepResult) int64 {
	var size int64

	if result.Output != nil {
		if data, err := json.Marshal(result.Output); err == nil {
			size += int64(len(data))
		}
	}

	for _, entry := range result.Logs {
		size += int64(len(entry.Message))
		if entry.Data != nil {
			if data, err := json.Marshal(entry.Data); err == nil {
				size += int64(len(data))
			}
		}
	}

	return size
}
