// Package retry holds the pause policy shared by the fix backend chain and
// the git clone retries.
package retry

import (
	"context"
	"time"

	"git.home.luguber.info/inful/selfheal/internal/config"
	"git.home.luguber.info/inful/selfheal/internal/foundation/errors"
)

// Default pause between fix backends.
const (
	DefaultDelay      = 2 * time.Second
	DefaultMaxRetries = 2
)

// Policy describes how long to pause before each retry. The zero value is
// not usable; build policies with NewPolicy or FromConfig.
type Policy struct {
	Mode       config.RetryBackoffMode
	Initial    time.Duration // pause before the first retry
	Max        time.Duration // upper bound for growing modes
	MaxRetries int           // retries after the first failure
}

// DefaultPolicy pauses a fixed DefaultDelay between attempts.
func DefaultPolicy() Policy {
	return Policy{
		Mode:       config.RetryBackoffFixed,
		Initial:    DefaultDelay,
		Max:        DefaultDelay,
		MaxRetries: DefaultMaxRetries,
	}
}

// NewPolicy overlays the given fields on DefaultPolicy. Zero durations,
// negative retry counts and unknown modes keep the default. Max is raised
// to Initial when smaller.
func NewPolicy(mode config.RetryBackoffMode, initial, maxDelay time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if m := config.NormalizeRetryBackoff(string(mode)); m != "" {
		p.Mode = m
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDelay > 0 {
		p.Max = maxDelay
	}
	p.Max = max(p.Max, p.Initial)
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	return p
}

// FromConfig builds a policy from a providers.retry block.
func FromConfig(rc config.RetryConfig) Policy {
	return NewPolicy(rc.Backoff, rc.InitialDelayDuration(), rc.MaxDelayDuration(), rc.MaxRetries)
}

// Delay returns the pause before retry n (1-based). Non-positive n yields 0.
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case config.RetryBackoffFixed:
		return p.Initial
	case config.RetryBackoffExponential:
		if n > 32 {
			return p.Max
		}
		d = p.Initial << (n - 1)
	default:
		d = p.Initial * time.Duration(n)
	}
	if d <= 0 || d > p.Max {
		return p.Max
	}
	return d
}

// Validate reports policies that cannot be applied.
func (p Policy) Validate() error {
	switch {
	case p.Initial <= 0:
		return errors.ConfigError("retry initial delay must be positive").WithContext("initial", p.Initial.String()).Build()
	case p.Max <= 0:
		return errors.ConfigError("retry max delay must be positive").WithContext("max", p.Max.String()).Build()
	case p.MaxRetries < 0:
		return errors.ConfigError("retry count cannot be negative").WithContext("max_retries", p.MaxRetries).Build()
	}
	return nil
}

// Wait blocks for d or until ctx is done, whichever comes first.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
