package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/selfheal/internal/config"
	"git.home.luguber.info/inful/selfheal/internal/eventstore"
	ferrors "git.home.luguber.info/inful/selfheal/internal/foundation/errors"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit   int    `short:"n" help:"Number of sessions to show" default:"20"`
	Session string `help:"Show a single session by ID"`
	JSON    bool   `name:"json" help:"Print JSON instead of a table"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	return RunHistory(context.Background(), g, cfg, h)
}

// RunHistory prints the sessions recorded in the journal, newest first.
func RunHistory(ctx context.Context, g *Global, cfg *config.Config, h *HistoryCmd) error {
	if !cfg.History.Enabled {
		return ferrors.ConfigError("session history is disabled").
			WithHint("set history.enabled: true in the configuration file").
			Build()
	}
	store, err := eventstore.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	proj := eventstore.NewSessionHistoryProjection(store, h.Limit)
	if err := proj.Rebuild(ctx); err != nil {
		return err
	}

	var sessions []eventstore.SessionSummary
	if h.Session != "" {
		s, ok := proj.GetSession(h.Session)
		if !ok {
			return ferrors.ValidationError("session not found").WithContext("session_id", h.Session).Build()
		}
		sessions = []eventstore.SessionSummary{s}
	} else {
		sessions = proj.GetHistory()
		if active, ok := proj.GetActiveSession(); ok {
			sessions = append([]eventstore.SessionSummary{active}, sessions...)
		}
	}

	if h.JSON {
		enc := json.NewEncoder(g.out())
		enc.SetIndent("", "  ")
		return enc.Encode(sessions)
	}
	if len(sessions) == 0 {
		g.printf("No sessions recorded in %s\n", cfg.History.Path)
		return nil
	}

	tw := tabwriter.NewWriter(g.out(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SESSION\tSTARTED\tTRIGGER\tSTATUS\tBUILDS\tFIXES\tDURATION\tBRANCH\tFILES")
	for _, s := range sessions {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			s.SessionID,
			s.StartedAt.Local().Format(time.DateTime),
			orDash(s.Trigger),
			s.Status,
			s.BuildRuns,
			s.Attempts(),
			s.Duration.Round(time.Millisecond),
			orDash(s.Branch),
			orDash(strings.Join(s.Files, ",")))
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
