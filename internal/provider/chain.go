package provider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	ferrors "git.home.luguber.info/inful/selfheal/internal/foundation/errors"
	"git.home.luguber.info/inful/selfheal/internal/logfields"
	"git.home.luguber.info/inful/selfheal/internal/metrics"
	"git.home.luguber.info/inful/selfheal/internal/retry"
)

// DefaultLogWindow is the trailing number of log runes sent per request.
const DefaultLogWindow = 2000

// ErrEmptyResponse is returned when a backend answers with nothing usable.
var ErrEmptyResponse = errors.New("backend returned an empty response")

// Fix is a successful chain result.
type Fix struct {
	Content  string
	Provider string
}

// Chain tries backends in order until one produces a fix.
type Chain struct {
	backends       []Backend
	logWindow      int
	requestTimeout time.Duration
	policy         retry.Policy
	wait           func(context.Context, time.Duration) error
	recorder       metrics.Recorder
}

// ChainOption customizes a Chain.
type ChainOption func(*Chain)

// WithLogWindow sets the trailing log window in runes.
func WithLogWindow(n int) ChainOption {
	return func(c *Chain) {
		if n > 0 {
			c.logWindow = n
		}
	}
}

// WithRequestTimeout bounds each backend request.
func WithRequestTimeout(d time.Duration) ChainOption {
	return func(c *Chain) { c.requestTimeout = d }
}

// WithRetryPolicy sets the pause policy between backends.
func WithRetryPolicy(p retry.Policy) ChainOption {
	return func(c *Chain) { c.policy = p }
}

// WithWait replaces the pause implementation (tests).
func WithWait(fn func(context.Context, time.Duration) error) ChainOption {
	return func(c *Chain) {
		if fn != nil {
			c.wait = fn
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r metrics.Recorder) ChainOption {
	return func(c *Chain) { c.recorder = metrics.OrNoop(r) }
}

// NewChain returns a chain over backends in the given order.
func NewChain(backends []Backend, opts ...ChainOption) *Chain {
	c := &Chain{
		backends:  backends,
		logWindow: DefaultLogWindow,
		policy:    retry.DefaultPolicy(),
		wait:      retry.Wait,
		recorder:  metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backends returns the configured backend names in order.
func (c *Chain) Backends() []string {
	out := make([]string, len(c.backends))
	for i, b := range c.backends {
		out[i] = b.Name()
	}
	return out
}

// GenerateFix asks each backend in turn for replacement content of
// targetFile. It returns false only when every backend failed or ctx ended.
func (c *Chain) GenerateFix(ctx context.Context, errorLog, targetFile, currentContent string) (Fix, bool) {
	req := Request{
		ErrorLog:   TailRunes(errorLog, c.logWindow),
		TargetFile: targetFile,
		Content:    currentContent,
	}

	for i, b := range c.backends {
		if ctx.Err() != nil {
			return Fix{}, false
		}
		slog.Info("Requesting fix", logfields.Provider(b.Name()), logfields.File(targetFile))

		start := time.Now()
		content, err := c.attempt(ctx, b, req)
		elapsed := time.Since(start)

		if err == nil {
			c.recorder.ObserveBackendAttempt(b.Name(), elapsed, metrics.ResultSuccess)
			slog.Info("Backend produced a fix",
				logfields.Provider(b.Name()),
				logfields.Bytes(len(content)),
				logfields.DurationMS(float64(elapsed.Milliseconds())))
			return Fix{Content: content, Provider: b.Name()}, true
		}

		result := metrics.ResultFailed
		if ctx.Err() != nil {
			result = metrics.ResultCanceled
		}
		c.recorder.ObserveBackendAttempt(b.Name(), elapsed, result)
		if ferrors.HasCategory(err, ferrors.CategoryAuth) {
			slog.Warn("Backend rejected its credentials, trying next", logfields.Provider(b.Name()), logfields.Error(err))
		} else {
			slog.Warn("Backend failed, trying next", logfields.Provider(b.Name()), logfields.Error(err))
		}

		if i < len(c.backends)-1 {
			if werr := c.wait(ctx, c.policy.Delay(i+1)); werr != nil {
				return Fix{}, false
			}
		}
	}
	return Fix{}, false
}

func (c *Chain) attempt(ctx context.Context, b Backend, req Request) (string, error) {
	reqCtx := ctx
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}
	raw, err := b.AttemptFix(reqCtx, req)
	if err != nil {
		return "", err
	}
	content := CleanResponse(raw)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
