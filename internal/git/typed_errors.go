package git

import (
	"fmt"
	"strings"
)

// Typed git errors enabling structured classification without string parsing upstream.
type AuthError struct {
	Op, URL string
	Err     error
}

func (e *AuthError) Error() string { return fmt.Sprintf("%s auth error for %s: %v", e.Op, e.URL, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Op, URL string
	Err     error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found %s: %v", e.Op, e.URL, e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

type UnsupportedProtocolError struct {
	Op, URL string
	Err     error
}

func (e *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("%s unsupported protocol %s: %v", e.Op, e.URL, e.Err)
}
func (e *UnsupportedProtocolError) Unwrap() error { return e.Err }

type RateLimitError struct {
	Op, URL string
	Err     error
}

func (e *RateLimitError) Error() string { return fmt.Sprintf("%s rate limited %s: %v", e.Op, e.URL, e.Err) }
func (e *RateLimitError) Unwrap() error { return e.Err }

type NetworkTimeoutError struct {
	Op, URL string
	Err     error
}

func (e *NetworkTimeoutError) Error() string {
	return fmt.Sprintf("%s network timeout %s: %v", e.Op, e.URL, e.Err)
}
func (e *NetworkTimeoutError) Unwrap() error { return e.Err }

// RejectedError reports a push refused by the remote (protected branch,
// non-fast-forward, hook failure).
type RejectedError struct {
	Op, URL, Branch string
	Err             error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected %s@%s: %v", e.Op, e.URL, e.Branch, e.Err)
}
func (e *RejectedError) Unwrap() error { return e.Err }

// classifyRemoteError wraps clone/push failures into typed variants when possible.
func classifyRemoteError(op, url string, err error) error {
	if typed, ok := typedRemoteError(op, url, err); ok {
		return typed
	}
	return err
}

// typedRemoteError reports whether err matched a known failure pattern.
func typedRemoteError(op, url string, err error) (error, bool) {
	if err == nil {
		return nil, false
	}
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "auth fail") ||
		strings.Contains(l, "invalid username or password") || strings.Contains(l, "authorization failed"):
		return &AuthError{Op: op, URL: url, Err: err}, true
	case strings.Contains(l, "repository not found") || strings.Contains(l, "repository does not exist") ||
		strings.Contains(l, "not found"):
		return &NotFoundError{Op: op, URL: url, Err: err}, true
	case strings.Contains(l, "unsupported protocol") || strings.Contains(l, "protocol not supported"):
		return &UnsupportedProtocolError{Op: op, URL: url, Err: err}, true
	case strings.Contains(l, "rate limit") || strings.Contains(l, "too many requests"):
		return &RateLimitError{Op: op, URL: url, Err: err}, true
	case strings.Contains(l, "timeout") || strings.Contains(l, "i/o timeout"):
		return &NetworkTimeoutError{Op: op, URL: url, Err: err}, true
	}
	return err, false
}
