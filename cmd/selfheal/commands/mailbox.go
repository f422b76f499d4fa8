package commands

import (
	"strings"

	ferrors "git.home.luguber.info/inful/selfheal/internal/foundation/errors"
	"git.home.luguber.info/inful/selfheal/internal/mailbox"
)

// MailboxCmd groups the mailbox subcommands.
type MailboxCmd struct {
	Path string `short:"p" help:"Mailbox file (overrides mailbox.path)"`

	Read  MailboxReadCmd  `cmd:"" help:"Print the collected error logs"`
	Clear MailboxClearCmd `cmd:"" help:"Empty the mailbox"`
	Post  MailboxPostCmd  `cmd:"" help:"Append an error log entry"`
}

func (m *MailboxCmd) open(root *CLI) (*mailbox.Mailbox, error) {
	if m.Path != "" {
		return mailbox.New(m.Path), nil
	}
	cfg, err := root.LoadConfig()
	if err != nil {
		return nil, err
	}
	return mailbox.New(cfg.Mailbox.Path), nil
}

// MailboxReadCmd implements 'mailbox read'.
type MailboxReadCmd struct{}

func (c *MailboxReadCmd) Run(g *Global, root *CLI) error {
	mb, err := root.Mailbox.open(root)
	if err != nil {
		return err
	}
	g.printf("%s\n", mb.ReadReport())
	return nil
}

// MailboxClearCmd implements 'mailbox clear'.
type MailboxClearCmd struct{}

func (c *MailboxClearCmd) Run(g *Global, root *CLI) error {
	mb, err := root.Mailbox.open(root)
	if err != nil {
		return err
	}
	g.printf("%s\n", mb.ClearReport())
	return nil
}

// MailboxPostCmd implements 'mailbox post'.
type MailboxPostCmd struct {
	Message []string `arg:"" help:"Log entry to append"`
}

func (c *MailboxPostCmd) Run(g *Global, root *CLI) error {
	mb, err := root.Mailbox.open(root)
	if err != nil {
		return err
	}
	entry := strings.Join(c.Message, " ")
	if strings.TrimSpace(entry) == "" {
		return ferrors.ValidationError("mailbox entry is empty").Build()
	}
	if err := mb.Post(entry); err != nil {
		return ferrors.FileSystemError("append to mailbox").
			WithCause(err).
			WithContext("path", mb.Path()).
			Build()
	}
	g.printf("Posted to %s\n", mb.Path())
	return nil
}
