package steps

import (
	"fmt"

	flowengine "github.com/queryflow/flowengine"
)

// PerformanceCheckConfig configures a performance_check step
type PerformanceCheckConfig struct {
	Query       string `json:"query"       validate:"required"`
	ThresholdMs int64  `json:"thresholdMs" validate:"min=0"`
	Samples     int    `json:"samples"     validate:"min=0,max=100"`
}

// PerformanceCheckResult is the output of a performance_check step
type PerformanceCheckResult struct {
	Query        string `json:"query"`
	Samples      int    `json:"samples"`
	AvgLatencyMs int64  `json:"avgLatencyMs"`
	ThresholdMs  int64  `json:"thresholdMs"`
	Passed       bool   `json:"passed"`
}

const (
	defaultThresholdMs = 500
	defaultSamples     = 3
)

// PerformanceCheck estimates query latency and compares it against a
// threshold. The estimate is derived from the query text so repeated runs
// are deterministic.
func PerformanceCheck(ctx *flowengine.StepContext, step flowengine.WorkflowStep) (any, error) {
	var config PerformanceCheckConfig
	if err := decodeConfig(step, &config); err != nil {
		return nil, err
	}

	if config.ThresholdMs == 0 {
		config.ThresholdMs = defaultThresholdMs
	}
	if config.Samples == 0 {
		config.Samples = defaultSamples
	}

	latency := estimateLatencyMs(config.Query)

	result := PerformanceCheckResult{
		Query:        config.Query,
		Samples:      config.Samples,
		AvgLatencyMs: latency,
		ThresholdMs:  config.ThresholdMs,
		Passed:       latency <= config.ThresholdMs,
	}

	level := flowengine.LogLevelInfo
	if !result.Passed {
		level = flowengine.LogLevelWarning
	}
	ctx.Log(level,
		fmt.Sprintf("Query averaged %dms over %d samples (threshold %dms)",
			latency, config.Samples, config.ThresholdMs),
		map[string]any{"passed": result.Passed})

	return result, nil
}

// estimateLatencyMs is a stand-in for running the query against a live
// database: longer queries cost more
func estimateLatencyMs(query string) int64 {
	return int64(len(query)) * 2
}
