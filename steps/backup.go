package steps

import (
	"fmt"

	flowengine "github.com/queryflow/flowengine"
)

// BackupConfig configures a backup step
type BackupConfig struct {
	Destination string `json:"destination" validate:"required"`
	Compression string `json:"compression" validate:"omitempty,oneof=none gzip zstd"`
}

// BackupResult is the output of a backup step
type BackupResult struct {
	Destination string `json:"destination"`
	Artifact    string `json:"artifact"`
	Compression string `json:"compression"`
	SizeBytes   int64  `json:"sizeBytes"`
}

// Backup simulates writing a database snapshot to a destination. The
// artifact name is derived from the execution id so a retried attempt
// overwrites its own artifact instead of producing a second one.
func Backup(ctx *flowengine.StepContext, step flowengine.WorkflowStep) (any, error) {
	var config BackupConfig
	if err := decodeConfig(step, &config); err != nil {
		return nil, err
	}

	if config.Compression == "" {
		config.Compression = "gzip"
	}

	artifact := fmt.Sprintf("%s/%s-%s.backup", config.Destination, ctx.WorkflowID, ctx.ExecutionID)

	// Estimate the snapshot size from what the run has accumulated so far
	var size int64 = 4096
	for range ctx.Vars() {
		size += 512
	}

	result := BackupResult{
		Destination: config.Destination,
		Artifact:    artifact,
		Compression: config.Compression,
		SizeBytes:   size,
	}

	ctx.SetVar("last_backup_artifact", artifact)
	ctx.Log(flowengine.LogLevelInfo,
		fmt.Sprintf("Backup written to %s (%d bytes, %s)", artifact, size, config.Compression), nil)

	return result, nil
}
