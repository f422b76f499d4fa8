package errors

import "maps"

// ErrorCategory represents the broad category of an error for classification and routing.
type ErrorCategory string

const (
	// CategoryConfig represents user-facing configuration and input errors.
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryAuth       ErrorCategory = "auth"

	// CategoryNetwork represents external system integration errors.
	CategoryNetwork  ErrorCategory = "network"
	CategoryGit      ErrorCategory = "git"
	CategoryProvider ErrorCategory = "provider"

	// CategoryBuild represents build and processing errors.
	CategoryBuild      ErrorCategory = "build"
	CategoryAnalysis   ErrorCategory = "analysis"
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryEventStore ErrorCategory = "eventstore"

	// CategoryRepair marks a repair session that ended in a failed terminal state.
	CategoryRepair ErrorCategory = "repair"

	// CategoryRuntime represents runtime and infrastructure errors.
	CategoryRuntime  ErrorCategory = "runtime"
	CategoryInternal ErrorCategory = "internal"
)

// Process exit codes reported for each category.
const (
	ExitCodeFailure  = 1  // repair session failed, or an unclassified error
	ExitCodeUsage    = 2  // invalid arguments or input
	ExitCodeAuth     = 5  // missing or rejected credentials
	ExitCodeConfig   = 7  // unusable configuration
	ExitCodeExternal = 8  // git remote, network or fix backend failure
	ExitCodeInternal = 10 // bug
	ExitCodeBuild    = 11 // build command, analysis, filesystem or journal failure
	ExitCodeRuntime  = 12 // interrupted or failing runtime environment
	ExitCodeCanceled = 130
)

// ExitCode maps the category to the exit code the CLI reports.
func (c ErrorCategory) ExitCode() int {
	switch c {
	case CategoryRepair:
		return ExitCodeFailure
	case CategoryValidation:
		return ExitCodeUsage
	case CategoryAuth:
		return ExitCodeAuth
	case CategoryConfig:
		return ExitCodeConfig
	case CategoryNetwork, CategoryGit, CategoryProvider:
		return ExitCodeExternal
	case CategoryBuild, CategoryAnalysis, CategoryFileSystem, CategoryEventStore:
		return ExitCodeBuild
	case CategoryRuntime:
		return ExitCodeRuntime
	case CategoryInternal:
		return ExitCodeInternal
	default:
		return ExitCodeFailure
	}
}

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution completely
	SeverityError   ErrorSeverity = "error"   // Fails the current operation
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// RetryStrategy indicates how an error should be handled in retry scenarios.
type RetryStrategy string

const (
	RetryNever      RetryStrategy = "never"      // Permanent failure, don't retry
	RetryImmediate  RetryStrategy = "immediate"  // Retry immediately
	RetryBackoff    RetryStrategy = "backoff"    // Retry after the configured delay
	RetryRateLimit  RetryStrategy = "rate_limit" // Retry after rate limit window
	RetryUserAction RetryStrategy = "user"       // Requires user intervention
)

// ErrorContext provides structured context for errors.
type ErrorContext map[string]any

// Set adds or updates a context value.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// Get retrieves a context value.
func (c ErrorContext) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	value, exists := c[key]
	return value, exists
}

// GetString retrieves a string context value.
func (c ErrorContext) GetString(key string) (string, bool) {
	if value, exists := c.Get(key); exists {
		if str, ok := value.(string); ok {
			return str, true
		}
	}
	return "", false
}

// Merge returns a new context holding the values of both; other wins on conflicts.
func (c ErrorContext) Merge(other ErrorContext) ErrorContext {
	result := make(ErrorContext, len(c)+len(other))
	maps.Copy(result, c)
	maps.Copy(result, other)
	return result
}
