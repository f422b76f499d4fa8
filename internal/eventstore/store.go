package eventstore

import (
	"context"
	"time"
)

// Store defines the interface for persisting and retrieving session events.
type Store interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, sessionID, eventType string, payload []byte, metadata map[string]string) error

	// GetBySession retrieves all events for a specific repair session.
	GetBySession(ctx context.Context, sessionID string) ([]Event, error)

	// GetRange retrieves events within a time range.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// Close closes the store and releases resources.
	Close() error
}

// AppendEvent stores a typed event.
func AppendEvent(ctx context.Context, s Store, e Event) error {
	return s.Append(ctx, e.SessionID(), e.Type(), e.Payload(), e.Metadata())
}
