package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"git.home.luguber.info/inful/selfheal/internal/logfields"
	"git.home.luguber.info/inful/selfheal/internal/retry"
)

const (
	transientTypeRateLimit      = "rate_limit"
	transientTypeNetworkTimeout = "network_timeout"
)

// Adaptive delay multipliers keyed by transient error type.
const (
	multRateLimit      = 3.0
	multNetworkTimeout = 1.0
)

// withRetry runs fn until it succeeds, fails permanently, or the policy's
// retry budget is spent.
func withRetry(ctx context.Context, pol retry.Policy, wait func(context.Context, time.Duration) error, op, target string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= pol.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("Retrying git operation", slog.String("operation", op), logfields.URL(target), logfields.Attempt(attempt))
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if isPermanentGitError(err) {
			slog.Error("Permanent git error", slog.String("operation", op), logfields.URL(target), logfields.Error(err))
			return err
		}
		if attempt == pol.MaxRetries {
			break
		}
		delay := pol.Delay(attempt + 1)
		switch classifyTransientType(err) {
		case transientTypeRateLimit:
			delay = time.Duration(float64(delay) * multRateLimit)
		case transientTypeNetworkTimeout:
			delay = time.Duration(float64(delay) * multNetworkTimeout)
		}
		if werr := wait(ctx, delay); werr != nil {
			return fmt.Errorf("git %s interrupted: %w", op, lastErr)
		}
	}
	return fmt.Errorf("git %s failed after retries: %w", op, lastErr)
}

func isPermanentGitError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch {
	case errors.As(err, new(*AuthError)), errors.As(err, new(*NotFoundError)),
		errors.As(err, new(*UnsupportedProtocolError)), errors.As(err, new(*RejectedError)):
		return true
	case errors.As(err, new(*RateLimitError)), errors.As(err, new(*NetworkTimeoutError)):
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "auth") || strings.Contains(msg, "permission") || strings.Contains(msg, "denied") {
		return true
	}
	if strings.Contains(msg, "not found") || strings.Contains(msg, "no such remote") || strings.Contains(msg, "invalid reference") {
		return true
	}
	if strings.Contains(msg, "unsupported protocol") {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return !nerr.Timeout()
	}
	return false
}

// classifyTransientType returns a short string key for known transient typed errors; empty if unknown.
func classifyTransientType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.As(err, new(*RateLimitError)):
		return transientTypeRateLimit
	case errors.As(err, new(*NetworkTimeoutError)):
		return transientTypeNetworkTimeout
	}
	return ""
}
