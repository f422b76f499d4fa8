package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/selfheal/internal/mailbox"
	"git.home.luguber.info/inful/selfheal/internal/mcpbridge"
	"git.home.luguber.info/inful/selfheal/internal/version"
)

// MCPCmd implements the 'mcp' command. Logs go to stderr; stdout carries
// the protocol.
type MCPCmd struct {
	Path string `short:"p" help:"Mailbox file (overrides mailbox.path)"`
}

func (m *MCPCmd) Run(_ *Global, root *CLI) error {
	path := m.Path
	if path == "" {
		cfg, err := root.LoadConfig()
		if err != nil {
			return err
		}
		path = cfg.Mailbox.Path
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := mcpbridge.NewServer(mailbox.New(path), version.Resolved())
	if err := srv.Run(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
