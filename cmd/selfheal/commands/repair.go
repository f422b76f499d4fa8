package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/selfheal/internal/config"
	"git.home.luguber.info/inful/selfheal/internal/logfields"
	"git.home.luguber.info/inful/selfheal/internal/repair"
)

// RepairCmd implements the 'repair' command.
type RepairCmd struct {
	Root       string `short:"r" help:"Workspace root (overrides workspace.root)"`
	Clone      bool   `help:"Clone REPO_URL into workspace.clone_dir before the session"`
	Ephemeral  bool   `help:"Clone into a temporary directory removed after the session (implies --clone)"`
	MaxRetries int    `name:"max-retries" help:"Override repair.max_retries"`
	NoPublish  bool   `name:"no-publish" help:"Keep fixes in the working tree without committing or pushing"`
}

func (r *RepairCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	r.apply(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return RunRepair(ctx, g, cfg, r.Clone || r.Ephemeral || cfg.Workspace.Clone, r.Ephemeral)
}

func (r *RepairCmd) apply(cfg *config.Config) {
	if r.Root != "" {
		cfg.Workspace.Root = r.Root
	}
	if r.MaxRetries > 0 {
		cfg.Repair.MaxRetries = r.MaxRetries
	}
	if r.NoPublish {
		disabled := false
		cfg.Publish.Enabled = &disabled
	}
}

// RunRepair prepares the workspace, runs one manual session and prints its
// outcome. The returned error carries the session's exit code.
func RunRepair(ctx context.Context, g *Global, cfg *config.Config, clone, ephemeral bool) error {
	co, err := prepareCheckout(ctx, cfg, clone, ephemeral)
	if err != nil {
		return err
	}
	defer co.Cleanup()

	env, err := newSessionEnv(cfg, co.Root, nil)
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.Setup(ctx); err != nil {
		return err
	}

	slog.Info("Starting repair session", logfields.Path(co.Root), logfields.Command(cfg.Build.Command))
	s, err := env.Run(ctx, repair.TriggerManual)
	if s != nil {
		g.printf("%s\n", s.Message())
		return s.Err()
	}
	return err
}
