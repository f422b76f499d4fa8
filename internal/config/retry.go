package config

import (
	"strings"
	"time"
)

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// NormalizeRetryBackoff converts arbitrary user input (case-insensitive) into a typed mode, returning empty string for unknown.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(RetryBackoffFixed):
		return RetryBackoffFixed
	case string(RetryBackoffLinear):
		return RetryBackoffLinear
	case string(RetryBackoffExponential):
		return RetryBackoffExponential
	default:
		return ""
	}
}

// RetryConfig is a reusable backoff block.
type RetryConfig struct {
	Backoff      RetryBackoffMode `yaml:"backoff,omitempty"`
	InitialDelay string           `yaml:"initial_delay,omitempty"`
	MaxDelay     string           `yaml:"max_delay,omitempty"`
	MaxRetries   int              `yaml:"max_retries,omitempty"`
}

// InitialDelayDuration parses InitialDelay (0 when unset or invalid).
func (r RetryConfig) InitialDelayDuration() time.Duration { return parseDuration(r.InitialDelay) }

// MaxDelayDuration parses MaxDelay (0 when unset or invalid).
func (r RetryConfig) MaxDelayDuration() time.Duration { return parseDuration(r.MaxDelay) }
