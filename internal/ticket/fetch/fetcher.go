// Package fetch implements the Ticket Fetcher (spec.md §4.4, C4): an
// agent-mediated fetcher that prompts the AI oracle and parses JSON out of
// free text, and a direct-HTTP fetcher with per-platform handlers, retry,
// and backoff.
package fetch

import (
	"context"
	"time"

	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
)

// Fetcher is the common contract both fetcher variants satisfy.
type Fetcher interface {
	// Fetch retrieves raw provider JSON for id on platform. timeout<=0
	// means "use the fetcher's default".
	Fetch(ctx context.Context, id string, platform model.Platform, timeout time.Duration) (map[string]any, error)

	// SupportsPlatform reports whether this fetcher can serve platform.
	SupportsPlatform(platform model.Platform) bool

	// Name identifies the fetcher for diagnostics.
	Name() string

	// Close releases resources. Idempotent.
	Close() error
}
