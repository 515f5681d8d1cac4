package flowengine

import (
	"time"
)

// RunStatus represents the current state of a workflow execution
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusCancelled RunStatus = "CANCELLED"
)

// IsTerminal returns true if the status is a final state
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// String returns the string representation
func (s RunStatus) String() string {
	return string(s)
}

// StepStatus represents the current state of a step execution
type StepStatus string

const (
	StepStatusPending   StepStatus = "PENDING"
	StepStatusRunning   StepStatus = "RUNNING"
	StepStatusCompleted StepStatus = "COMPLETED"
	StepStatusFailed    StepStatus = "FAILED"
	StepStatusSkipped   StepStatus = "SKIPPED"
)

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	return s == StepStatusCompleted || s == StepStatusFailed || s == StepStatusSkipped
}

// String returns the string representation
func (s StepStatus) String() string {
	return string(s)
}

// TriggerKind identifies what kind of event may start a workflow
type TriggerKind string

const (
	TriggerManual         TriggerKind = "manual"
	TriggerSchemaChange   TriggerKind = "schema_change"
	TriggerDataChange     TriggerKind = "data_change"
	TriggerQueryExecution TriggerKind = "query_execution"
	TriggerScheduled      TriggerKind = "scheduled"
	TriggerEventDriven    TriggerKind = "event_driven"
)

// String returns the string representation
func (t TriggerKind) String() string {
	return string(t)
}

// WorkflowStep is one typed, configurable unit of work within a definition
type WorkflowStep struct {
	ID          string         `json:"id"          dynamodbav:"id"          validate:"required"`
	Type        string         `json:"type"        dynamodbav:"type"        validate:"required"`
	Name        string         `json:"name"        dynamodbav:"name"        validate:"required"`
	Description string         `json:"description,omitempty" dynamodbav:"description,omitempty"`
	Config      map[string]any `json:"config,omitempty"      dynamodbav:"config,omitempty"`
	Enabled     bool           `json:"enabled"     dynamodbav:"enabled"`
	Order       int            `json:"order"       dynamodbav:"order"       validate:"min=0"`
}

// WorkflowDefinition is the immutable description of an automatable task.
// Definitions are authored elsewhere; the engine takes one by value per run
// and never re-reads it mid-execution.
type WorkflowDefinition struct {
	ID          string         `json:"id"          dynamodbav:"id"          validate:"required"`
	Name        string         `json:"name"        dynamodbav:"name"        validate:"required,min=3"`
	Description string         `json:"description,omitempty" dynamodbav:"description,omitempty"`
	Trigger     TriggerKind    `json:"trigger"     dynamodbav:"trigger"     validate:"required"`
	Steps       []WorkflowStep `json:"steps"       dynamodbav:"steps"       validate:"required,min=1,dive"`
	Enabled     bool           `json:"enabled"     dynamodbav:"enabled"`
	CreatedAt   time.Time      `json:"createdAt,omitempty" dynamodbav:"created_at,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt,omitempty" dynamodbav:"updated_at,omitempty"`
}

// Caller captures the identity that requested an execution
type Caller struct {
	UserID   string            `json:"userId,omitempty"   dynamodbav:"user_id,omitempty"`
	Source   string            `json:"source,omitempty"   dynamodbav:"source,omitempty"` // "api", "schedule", "event"
	Metadata map[string]string `json:"metadata,omitempty" dynamodbav:"metadata,omitempty"`
}

// LogLevel classifies an ExecutionLog entry
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
	LogLevelSuccess LogLevel = "success"
	LogLevelDebug   LogLevel = "debug"
)

// ExecutionLog is an immutable timestamped record emitted during execution.
// Entries are append-only and never mutated after creation.
type ExecutionLog struct {
	ID        string         `json:"id"        dynamodbav:"id"`
	Timestamp time.Time      `json:"timestamp" dynamodbav:"timestamp"`
	Level     LogLevel       `json:"level"     dynamodbav:"level"`
	Message   string         `json:"message"   dynamodbav:"message"`
	StepID    string         `json:"stepId,omitempty" dynamodbav:"step_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"   dynamodbav:"data,omitempty"`
}

// StepAttempt records one prior, non-authoritative attempt of a retried step.
// The authoritative outcome lives in the StepResult that replaced it.
type StepAttempt struct {
	Attempt     int        `json:"attempt"     dynamodbav:"attempt"`
	Status      StepStatus `json:"status"      dynamodbav:"status"`
	StartedAt   time.Time  `json:"startedAt"   dynamodbav:"started_at"`
	CompletedAt *time.Time `json:"completedAt,omitempty" dynamodbav:"completed_at,omitempty"`
	Error       *StepError `json:"error,omitempty"       dynamodbav:"error,omitempty"`
	DurationMs  int64      `json:"durationMs"  dynamodbav:"duration_ms"`
}

// StepResult is the settled outcome of one step. A retried step produces a
// replacement StepResult; earlier failed attempts are preserved in Attempts.
type StepResult struct {
	StepID      string         `json:"stepId"      dynamodbav:"step_id"`
	Status      StepStatus     `json:"status"      dynamodbav:"status"`
	StartedAt   time.Time      `json:"startedAt"   dynamodbav:"started_at"`
	CompletedAt *time.Time     `json:"completedAt,omitempty" dynamodbav:"completed_at,omitempty"`
	DurationMs  int64          `json:"durationMs"  dynamodbav:"duration_ms"`
	Output      any            `json:"output,omitempty"      dynamodbav:"output,omitempty"`
	Error       *StepError     `json:"error,omitempty"       dynamodbav:"error,omitempty"`
	RetryCount  int            `json:"retryCount"  dynamodbav:"retry_count"`
	Logs        []ExecutionLog `json:"logs,omitempty"        dynamodbav:"logs,omitempty"`
	Attempts    []StepAttempt  `json:"attempts,omitempty"    dynamodbav:"attempts,omitempty"`
}

// ExecutionRecord is the persisted representation of a single workflow run
type ExecutionRecord struct {
	// Identity
	ExecutionID  string `json:"executionId"  dynamodbav:"execution_id"`
	WorkflowID   string `json:"workflowId"   dynamodbav:"workflow_id"`
	WorkflowName string `json:"workflowName" dynamodbav:"workflow_name"`

	// Status
	Status RunStatus `json:"status" dynamodbav:"status"`

	// Timing
	CreatedAt   time.Time  `json:"createdAt" dynamodbav:"created_at"`
	StartedAt   time.Time  `json:"startedAt" dynamodbav:"started_at"`
	CompletedAt *time.Time `json:"completedAt,omitempty" dynamodbav:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt" dynamodbav:"updated_at"`

	// Outcome
	Steps   []StepResult      `json:"steps,omitempty"   dynamodbav:"steps,omitempty"`
	Metrics *ExecutionMetrics `json:"metrics,omitempty" dynamodbav:"metrics,omitempty"`
	Error   *WorkflowError    `json:"error,omitempty"   dynamodbav:"error,omitempty"`

	// Metadata
	Caller *Caller           `json:"caller,omitempty" dynamodbav:"caller,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"   dynamodbav:"tags,omitempty"`

	// DynamoDB TTL
	TTL int64 `json:"-" dynamodbav:"ttl,omitempty"`
}

// ExecutionResult is what a caller receives from ExecuteWorkflow. It is always
// well-formed; outcome is communicated through Status and Error, never a panic.
type ExecutionResult struct {
	ExecutionID string            `json:"executionId"`
	WorkflowID  string            `json:"workflowId"`
	Status      RunStatus         `json:"status"`
	Steps       []StepResult      `json:"steps"`
	Metrics     *ExecutionMetrics `json:"metrics,omitempty"`
	Error       *WorkflowError    `json:"error,omitempty"`
	StartedAt   time.Time         `json:"startedAt"`
	CompletedAt time.Time         `json:"completedAt"`
}
