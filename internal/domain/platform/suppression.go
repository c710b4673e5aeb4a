package platform

import (
	"context"
	"time"
)

// EchoSuppressor remembers listings the engine itself just wrote to, so the
// next detection run does not re-ingest our own propagation as a remote
// change. Entries expire on their own; the TTL should cover one polling
// interval.
type EchoSuppressor interface {
	// Suppress marks a listing as recently written by us
	Suppress(ctx context.Context, code Code, externalID string, ttl time.Duration) error

	// IsSuppressed reports whether a listing is inside its suppression window
	IsSuppressed(ctx context.Context, code Code, externalID string) (bool, error)

	// Close releases the underlying store
	Close() error
}
