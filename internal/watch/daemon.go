// Package watch runs repair sessions on a schedule and whenever the
// deployment error mailbox changes, never more than one at a time.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/selfheal/internal/logfields"
	"git.home.luguber.info/inful/selfheal/internal/mailbox"
	"git.home.luguber.info/inful/selfheal/internal/repair"
)

// SessionFunc runs one repair session.
type SessionFunc func(ctx context.Context, trigger repair.Trigger) (*repair.Session, error)

// Options configures the daemon.
type Options struct {
	Interval       time.Duration // 0 disables scheduled sessions
	Mailbox        *mailbox.Mailbox
	TriggerMailbox bool
	Debounce       time.Duration
	MetricsAddr    string       // empty disables the HTTP listener
	MetricsPath    string       // defaults to /metrics
	Metrics        http.Handler // nil serves only /healthz
}

// Daemon schedules sessions.
type Daemon struct {
	opts    Options
	run     SessionFunc
	mu      sync.Mutex
	pending atomic.Bool
	runs    atomic.Int64
	last    atomic.Pointer[repair.Session]
}

// New returns a daemon running sessions through run.
func New(opts Options, run SessionFunc) (*Daemon, error) {
	if run == nil {
		return nil, errors.New("session function is required")
	}
	if opts.Interval <= 0 && !opts.TriggerMailbox {
		return nil, errors.New("nothing to watch: set an interval or enable the mailbox trigger")
	}
	if opts.TriggerMailbox && opts.Mailbox == nil {
		return nil, errors.New("mailbox trigger enabled without a mailbox")
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	return &Daemon{opts: opts, run: run}, nil
}

// Run blocks until ctx ends, running sessions as triggers arrive.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	if d.opts.Interval > 0 {
		s, err := gocron.NewScheduler()
		if err != nil {
			return fmt.Errorf("failed to create gocron scheduler: %w", err)
		}
		_, err = s.NewJob(
			gocron.DurationJob(d.opts.Interval),
			gocron.NewTask(func() { d.Trigger(ctx, repair.TriggerScheduled) }),
			gocron.WithName("repair-session"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			_ = s.Shutdown()
			return fmt.Errorf("failed to schedule repair session: %w", err)
		}
		slog.Info("Starting scheduler", slog.Duration("interval", d.opts.Interval))
		s.Start()
		defer func() {
			slog.Info("Stopping scheduler")
			if err := s.Shutdown(); err != nil {
				slog.Warn("Scheduler shutdown failed", logfields.Error(err))
			}
		}()
	}

	if d.opts.TriggerMailbox {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := d.opts.Mailbox.Watch(ctx, d.opts.Debounce, func() { d.Trigger(ctx, repair.TriggerMailbox) })
			if err != nil {
				errCh <- fmt.Errorf("mailbox watch: %w", err)
			}
		}()
	}

	var srv *http.Server
	if d.opts.MetricsAddr != "" {
		srv = &http.Server{
			Addr:              d.opts.MetricsAddr,
			Handler:           d.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			slog.Info("Serving metrics", slog.String("addr", d.opts.MetricsAddr), logfields.Path(d.opts.MetricsPath))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	cancel()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}
	wg.Wait()

	// An in-flight session holds mu until it returns.
	d.mu.Lock()
	defer d.mu.Unlock()
	return runErr
}

// Trigger runs a session unless one is already running. A mailbox trigger
// that arrives during a session queues exactly one follow-up session.
func (d *Daemon) Trigger(ctx context.Context, trigger repair.Trigger) bool {
	if !d.mu.TryLock() {
		if trigger == repair.TriggerMailbox {
			d.pending.Store(true)
		}
		slog.Info("Session already running, trigger deferred", slog.String("trigger", string(trigger)))
		return false
	}
	defer d.mu.Unlock()

	for {
		if ctx.Err() != nil {
			return true
		}
		d.runOnce(ctx, trigger)
		if !d.pending.Swap(false) {
			return true
		}
		trigger = repair.TriggerMailbox
	}
}

func (d *Daemon) runOnce(ctx context.Context, trigger repair.Trigger) {
	d.runs.Add(1)
	s, err := d.run(ctx, trigger)
	if s != nil {
		d.last.Store(s)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Repair session failed", slog.String("trigger", string(trigger)), logfields.Error(err))
	}
}

// Runs returns the number of sessions started.
func (d *Daemon) Runs() int64 { return d.runs.Load() }

// LastSession returns the most recently finished session, if any.
func (d *Daemon) LastSession() *repair.Session { return d.last.Load() }

// Handler serves metrics and a health endpoint reporting the last session.
func (d *Daemon) Handler() http.Handler {
	mux := http.NewServeMux()
	if d.opts.Metrics != nil {
		mux.Handle(d.opts.MetricsPath, d.opts.Metrics)
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if s := d.LastSession(); s != nil {
			_, _ = fmt.Fprintf(w, "ok last_state=%s last_session=%s\n", s.State, s.ID)
			return
		}
		_, _ = fmt.Fprintln(w, "ok")
	})
	return mux
}
