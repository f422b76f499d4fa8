package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/selfheal/internal/config"
	ferrors "git.home.luguber.info/inful/selfheal/internal/foundation/errors"
	"git.home.luguber.info/inful/selfheal/internal/logfields"
	"git.home.luguber.info/inful/selfheal/internal/mailbox"
	"git.home.luguber.info/inful/selfheal/internal/metrics"
	"git.home.luguber.info/inful/selfheal/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Root        string `short:"r" help:"Workspace root (overrides workspace.root)"`
	Interval    string `help:"Session interval, e.g. 15m (overrides watch.interval)"`
	MetricsAddr string `name:"metrics-addr" help:"Metrics listen address (overrides watch.metrics_addr)"`
	NoMailbox   bool   `name:"no-mailbox" help:"Do not start sessions when the mailbox changes"`
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if w.Root != "" {
		cfg.Workspace.Root = w.Root
	}
	if w.Interval != "" {
		cfg.Watch.Interval = w.Interval
	}
	if w.MetricsAddr != "" {
		cfg.Watch.MetricsAddr = w.MetricsAddr
	}
	if w.NoMailbox {
		cfg.Watch.TriggerMailbox = false
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return RunWatch(ctx, cfg)
}

// RunWatch runs the watch daemon until ctx ends.
func RunWatch(ctx context.Context, cfg *config.Config) error {
	if cfg.Watch.Interval != "" && cfg.Watch.IntervalDuration() <= 0 {
		return ferrors.ValidationError("invalid watch.interval").
			WithContext("interval", cfg.Watch.Interval).
			Build()
	}

	opts := watch.Options{
		Interval:       cfg.Watch.IntervalDuration(),
		Mailbox:        mailbox.New(cfg.Mailbox.Path),
		TriggerMailbox: cfg.Watch.TriggerMailbox,
		Debounce:       mailbox.DefaultDebounce,
	}
	var rec metrics.Recorder
	if cfg.Metrics.Enabled {
		reg := prom.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		rec = metrics.NewPrometheusRecorder(reg)
		opts.MetricsAddr = cfg.Watch.MetricsAddr
		opts.MetricsPath = cfg.Metrics.Path
		opts.Metrics = metrics.HTTPHandler(reg)
	}

	co, err := prepareCheckout(ctx, cfg, cfg.Workspace.Clone, false)
	if err != nil {
		return err
	}
	defer co.Cleanup()

	env, err := newSessionEnv(cfg, co.Root, rec)
	if err != nil {
		return err
	}
	defer env.Close()
	if err := env.Setup(ctx); err != nil {
		return err
	}

	d, err := watch.New(opts, env.Run)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid watch configuration").Build()
	}

	slog.Info("Watching workspace",
		logfields.Path(co.Root),
		slog.String("interval", cfg.Watch.Interval),
		slog.Bool("mailbox_trigger", cfg.Watch.TriggerMailbox),
		logfields.File(cfg.Mailbox.Path))
	if err := d.Run(ctx); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "watch daemon stopped").Build()
	}
	slog.Info("Watch stopped", slog.Int64("sessions", d.Runs()))
	return nil
}
