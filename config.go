package flowengine

import "time"

// BackoffStrategy defines retry backoff behavior
type BackoffStrategy string

const (
	BackoffLinear      BackoffStrategy = "LINEAR"
	BackoffExponential BackoffStrategy = "EXPONENTIAL"
	BackoffNone        BackoffStrategy = "NONE"
)

// ExecutionConfig holds run-level execution parameters
type ExecutionConfig struct {
	// Retry policy
	MaxRetries   int
	RetryDelay   time.Duration
	RetryBackoff BackoffStrategy

	// Failure behavior: when true a finally-failed step does not stop the
	// remaining steps from running
	ContinueOnFailure bool
}

// DefaultExecutionConfig provides sensible defaults
var DefaultExecutionConfig = ExecutionConfig{
	MaxRetries:        3,
	RetryDelay:        1000 * time.Millisecond,
	RetryBackoff:      BackoffLinear,
	ContinueOnFailure: true,
}

// RunOption allows functional configuration of a single execution
type RunOption func(*RunOptions)

// RunOptions holds per-run overrides and metadata
type RunOptions struct {
	Config    ExecutionConfig
	Tags      map[string]string
	TTL       time.Duration
	Variables map[string]any
}

// NewRunOptions builds RunOptions from the engine defaults plus overrides
func NewRunOptions(base ExecutionConfig, opts ...RunOption) *RunOptions {
	options := &RunOptions{Config: base}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// WithMaxRetries sets the per-step retry bound for this run
func WithMaxRetries(max int) RunOption {
	return func(opts *RunOptions) {
		opts.Config.MaxRetries = max
	}
}

// WithRetryDelay sets the base retry delay for this run
func WithRetryDelay(d time.Duration) RunOption {
	return func(opts *RunOptions) {
		opts.Config.RetryDelay = d
	}
}

// WithBackoff sets the retry backoff strategy for this run
func WithBackoff(strategy BackoffStrategy) RunOption {
	return func(opts *RunOptions) {
		opts.Config.RetryBackoff = strategy
	}
}

// WithContinueOnFailure controls whether the run proceeds past a step that
// has exhausted its retries
func WithContinueOnFailure(continueOnFailure bool) RunOption {
	return func(opts *RunOptions) {
		opts.Config.ContinueOnFailure = continueOnFailure
	}
}

// WithTags sets custom tags for the execution record
func WithTags(tags map[string]string) RunOption {
	return func(opts *RunOptions) {
		opts.Tags = tags
	}
}

// WithVariable seeds a single run variable before the first step executes
func WithVariable(key string, value any) RunOption {
	return func(opts *RunOptions) {
		if opts.Variables == nil {
			opts.Variables = map[string]any{}
		}
		opts.Variables[key] = value
	}
}

// WithVariables seeds multiple run variables before the first step executes
func WithVariables(vars map[string]any) RunOption {
	return func(opts *RunOptions) {
		if opts.Variables == nil {
			opts.Variables = map[string]any{}
		}
		for key, value := range vars {
			opts.Variables[key] = value
		}
	}
}

// WithTTL sets the record TTL for stores that support expiry
func WithTTL(ttl time.Duration) RunOption {
	return func(opts *RunOptions) {
		opts.TTL = ttl
	}
}
