package retry

import (
	"context"
	"testing"
	"time"

	"git.home.luguber.info/inful/selfheal/internal/config"
)

// TestDefaultPolicy verifies the baseline default values.
func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.Mode != config.RetryBackoffFixed {
		t.Fatalf("expected fixed default mode got %s", p.Mode)
	}
	if p.Initial != 2*time.Second {
		t.Fatalf("expected initial 2s got %v", p.Initial)
	}
	if p.Delay(1) != p.Delay(4) {
		t.Fatalf("fixed policy should not grow: %v vs %v", p.Delay(1), p.Delay(4))
	}
}

// TestNewPolicyOverrides checks override precedence and max raised to initial.
func TestNewPolicyOverrides(t *testing.T) {
	p := NewPolicy(config.RetryBackoffLinear, 5*time.Second, 2*time.Second, 5)
	if p.Initial != 5*time.Second {
		t.Fatalf("expected initial 5s got %v", p.Initial)
	}
	if p.Max != 5*time.Second {
		t.Fatalf("expected max raised to 5s got %v", p.Max)
	}
	if p.Mode != config.RetryBackoffLinear {
		t.Fatalf("expected linear mode got %s", p.Mode)
	}
	if p.MaxRetries != 5 {
		t.Fatalf("expected maxRetries 5 got %d", p.MaxRetries)
	}
}

// TestDelayModes ensures fixed, linear, exponential behave and respect cap.
func TestDelayModes(t *testing.T) {
	fixed := NewPolicy(config.RetryBackoffFixed, 100*time.Millisecond, 500*time.Millisecond, 3)
	for i := 1; i <= 3; i++ {
		if d := fixed.Delay(i); d != 100*time.Millisecond {
			t.Fatalf("fixed attempt %d expected 100ms got %v", i, d)
		}
	}

	linear := NewPolicy(config.RetryBackoffLinear, 100*time.Millisecond, 250*time.Millisecond, 5)
	cases := []struct {
		attempt int
		want    time.Duration
	}{{1, 100 * time.Millisecond}, {2, 200 * time.Millisecond}, {3, 250 * time.Millisecond}, {4, 250 * time.Millisecond}}
	for _, c := range cases {
		if got := linear.Delay(c.attempt); got != c.want {
			t.Fatalf("linear attempt %d expected %v got %v", c.attempt, c.want, got)
		}
	}

	exp := NewPolicy(config.RetryBackoffExponential, 50*time.Millisecond, 160*time.Millisecond, 5)
	expCases := []struct {
		attempt int
		want    time.Duration
	}{{1, 50 * time.Millisecond}, {2, 100 * time.Millisecond}, {3, 160 * time.Millisecond}, {4, 160 * time.Millisecond}}
	for _, c := range expCases {
		if got := exp.Delay(c.attempt); got != c.want {
			t.Fatalf("exp attempt %d expected %v got %v", c.attempt, c.want, got)
		}
	}
}

// TestDelayEdgeCases ensures non-positive attempts yield zero.
func TestDelayEdgeCases(t *testing.T) {
	p := NewPolicy(config.RetryBackoffLinear, 10*time.Millisecond, 20*time.Millisecond, 1)
	if d := p.Delay(0); d != 0 {
		t.Fatalf("attempt 0 expected 0 got %v", d)
	}
	if d := p.Delay(-1); d != 0 {
		t.Fatalf("attempt -1 expected 0 got %v", d)
	}
}

// TestValidate covers validation error paths.
func TestValidate(t *testing.T) {
	if err := (Policy{Initial: 0, Max: time.Second}).Validate(); err == nil {
		t.Fatalf("expected error for zero initial")
	}
	if err := (Policy{Initial: time.Second, Max: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero max")
	}
	if err := (Policy{Initial: time.Second, Max: time.Second, MaxRetries: -1}).Validate(); err == nil {
		t.Fatalf("expected error for negative retries")
	}
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

// TestUnknownModeFallsBack leaves mode default when unknown string supplied.
func TestUnknownModeFallsBack(t *testing.T) {
	p := NewPolicy("weird", 250*time.Millisecond, 500*time.Millisecond, 1)
	if p.Mode != config.RetryBackoffFixed {
		t.Fatalf("unknown mode should fall back to fixed got %s", p.Mode)
	}
}

// TestFromConfig parses duration strings from the config block.
func TestFromConfig(t *testing.T) {
	p := FromConfig(config.RetryConfig{Backoff: "LINEAR", InitialDelay: "10ms", MaxDelay: "30ms", MaxRetries: 1})
	if p.Mode != config.RetryBackoffLinear || p.Initial != 10*time.Millisecond || p.Max != 30*time.Millisecond {
		t.Fatalf("unexpected policy %+v", p)
	}
}

// TestWaitHonoursContext returns early when the context is canceled.
func TestWaitHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := Wait(ctx, time.Minute); err == nil {
		t.Fatalf("expected context error")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("Wait ignored cancellation")
	}
	if err := Wait(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
