// Package notify publishes repair session outcomes to NATS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/selfheal/internal/config"
	"git.home.luguber.info/inful/selfheal/internal/logfields"
)

const flushTimeout = 5 * time.Second

// SessionEvent is the message published when a session finishes.
type SessionEvent struct {
	SessionID    string    `json:"session_id"`
	State        string    `json:"state"`
	Reason       string    `json:"reason,omitempty"`
	Message      string    `json:"message"`
	ExitCode     int       `json:"exit_code"`
	Attempts     int       `json:"attempts"`
	BuildRuns    int       `json:"build_runs"`
	Files        []string  `json:"files,omitempty"`
	Branch       string    `json:"branch,omitempty"`
	Commit       string    `json:"commit,omitempty"`
	PublishError string    `json:"publish_error,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

// conn is the subset of *nats.Conn the notifier uses.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSNotifier publishes session events on a core NATS subject.
type NATSNotifier struct {
	conn    conn
	subject string
}

// NewNATSNotifier connects to the configured NATS server.
func NewNATSNotifier(cfg config.NotifyConfig) (*NATSNotifier, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("notifications are disabled")
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name("selfheal"),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("NATS notifier connected", logfields.URL(cfg.URL), slog.String("subject", cfg.Subject))
	return newNotifier(nc, cfg.Subject), nil
}

func newNotifier(c conn, subject string) *NATSNotifier {
	if subject == "" {
		subject = config.DefaultNotifySubject
	}
	return &NATSNotifier{conn: c, subject: subject}
}

// Subject returns the subject events are published on.
func (n *NATSNotifier) Subject() string { return n.subject }

// PublishSession publishes ev and waits for the server to acknowledge the flush.
func (n *NATSNotifier) PublishSession(ctx context.Context, ev SessionEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	fctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := n.conn.FlushWithContext(fctx); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}
	slog.Debug("Published session event", logfields.SessionID(ev.SessionID), logfields.State(ev.State))
	return nil
}

// Close closes the NATS connection.
func (n *NATSNotifier) Close() error {
	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}
