package flowengine

import (
	"errors"
	"fmt"
	"time"
)

// Error codes
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeUnknownStepType = "UNKNOWN_STEP_TYPE"
	ErrCodeExecutionFailed = "EXECUTION_FAILED"
	ErrCodeCancelled       = "CANCELLED"
	ErrCodePanic           = "PANIC"
	ErrCodePersistence     = "PERSISTENCE_ERROR"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)

// WorkflowError represents an error during workflow execution
type WorkflowError struct {
	Message   string         `json:"message" dynamodbav:"message"`
	Code      string         `json:"code"    dynamodbav:"code"`
	Step      string         `json:"step,omitempty"    dynamodbav:"step,omitempty"`
	Timestamp time.Time      `json:"timestamp"         dynamodbav:"timestamp"`
	Details   map[string]any `json:"details,omitempty" dynamodbav:"details,omitempty"`
}

// Error implements the error interface
func (e *WorkflowError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("[%s] %s (step: %s)", e.Code, e.Message, e.Step)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// NewWorkflowError creates a new workflow error
func NewWorkflowError(code, message string) *WorkflowError {
	return &WorkflowError{
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

// NewWorkflowErrorWithStep creates a new workflow error with step context
func NewWorkflowErrorWithStep(code, message, step string) *WorkflowError {
	return &WorkflowError{
		Message:   message,
		Code:      code,
		Step:      step,
		Timestamp: time.Now(),
	}
}

// WithDetails adds details to the error
func (e *WorkflowError) WithDetails(details map[string]any) *WorkflowError {
	e.Details = details
	return e
}

// StepError represents an error during step execution
type StepError struct {
	Message   string         `json:"message" dynamodbav:"message"`
	Code      string         `json:"code"    dynamodbav:"code"`
	Timestamp time.Time      `json:"timestamp"         dynamodbav:"timestamp"`
	Attempt   int            `json:"attempt"           dynamodbav:"attempt"`
	Details   map[string]any `json:"details,omitempty" dynamodbav:"details,omitempty"`
}

// Error implements the error interface
func (e *StepError) Error() string {
	return fmt.Sprintf("[%s] %s (attempt: %d)", e.Code, e.Message, e.Attempt)
}

// NewStepError creates a new step error
func NewStepError(code, message string, attempt int) *StepError {
	return &StepError{
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
		Attempt:   attempt,
	}
}

// WithDetails adds details to the error
func (e *StepError) WithDetails(details map[string]any) *StepError {
	e.Details = details
	return e
}

// ToWorkflowError converts an arbitrary error to a WorkflowError
func ToWorkflowError(err error) *WorkflowError {
	if err == nil {
		return nil
	}

	var we *WorkflowError
	if errors.As(err, &we) {
		return we
	}

	return &WorkflowError{
		Message:   err.Error(),
		Code:      ErrCodeInternalError,
		Timestamp: time.Now(),
	}
}

// ToStepError converts an arbitrary error to a StepError for the given attempt
func ToStepError(err error, attempt int) *StepError {
	if err == nil {
		return nil
	}

	var se *StepError
	if errors.As(err, &se) {
		return se
	}

	return &StepError{
		Message:   err.Error(),
		Code:      ErrCodeExecutionFailed,
		Timestamp: time.Now(),
		Attempt:   attempt,
	}
}

// NewUnknownStepTypeError creates the error returned when a step type has no
// registered handler
func NewUnknownStepTypeError(stepType string) *StepError {
	return &StepError{
		Message:   fmt.Sprintf("unknown step type: %s", stepType),
		Code:      ErrCodeUnknownStepType,
		Timestamp: time.Now(),
	}
}

// IsUnknownStepType checks if an error is an unknown step type error
func IsUnknownStepType(err error) bool {
	var se *StepError
	if errors.As(err, &se) {
		return se.Code == ErrCodeUnknownStepType
	}
	return false
}

// IsNotFound checks if an error carries the NOT_FOUND code
func IsNotFound(err error) bool {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Code == ErrCodeNotFound
	}
	var se *StepError
	if errors.As(err, &se) {
		return se.Code == ErrCodeNotFound
	}
	return false
}
