package steps

import (
	"fmt"

	flowengine "github.com/queryflow/flowengine"
)

// NotificationConfig configures a notification step
type NotificationConfig struct {
	Channel string `json:"channel" validate:"required,oneof=email slack webhook"`
	Target  string `json:"target"  validate:"required"`
	Message string `json:"message"`
}

// NotificationResult is the output of a notification step
type NotificationResult struct {
	Channel   string `json:"channel"`
	Target    string `json:"target"`
	Message   string `json:"message"`
	Delivered bool   `json:"delivered"`
}

// Notification simulates delivering a message about the run. When no message
// is configured a summary is built from the run's variables.
func Notification(ctx *flowengine.StepContext, step flowengine.WorkflowStep) (any, error) {
	var config NotificationConfig
	if err := decodeConfig(step, &config); err != nil {
		return nil, err
	}

	message := config.Message
	if message == "" {
		message = fmt.Sprintf("Workflow %s execution %s update", ctx.WorkflowID, ctx.ExecutionID)
		if artifact, ok := ctx.Var("last_backup_artifact"); ok {
			message = fmt.Sprintf("%s (backup: %v)", message, artifact)
		}
	}

	result := NotificationResult{
		Channel:   config.Channel,
		Target:    config.Target,
		Message:   message,
		Delivered: true,
	}

	ctx.Log(flowengine.LogLevelInfo,
		fmt.Sprintf("Notification sent via %s to %s", config.Channel, config.Target), nil)

	return result, nil
}
