// Package provider implements the Platform Provider contract (spec.md
// §4.2, C2): one implementation per platform providing input
// recognition/parsing, raw-JSON normalization, and a structured prompt
// template for the agent-mediated fetcher.
package provider

import (
	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
)

// Provider is the per-platform contract. Implementations must be pure with
// respect to Normalize: missing/null fields become empty strings, empty
// lists, or Unknown enums rather than raising.
type Provider interface {
	// Platform is the constant platform this provider serves.
	Platform() model.Platform

	// CanHandle recognises URL and bare-id forms for this platform.
	// Ambiguous forms (e.g. PROJ-123 matching both Jira and Linear) return
	// true; disambiguation is resolved upstream by the registry/detector.
	CanHandle(input string) bool

	// ParseInput returns the normalized id, uppercased where platform
	// convention requires it. Unrecognized forms return TicketIdFormat.
	ParseInput(input string) (string, error)

	// Normalize is a pure transformation from raw provider JSON to a
	// GenericTicket.
	Normalize(raw map[string]any, id string) (model.GenericTicket, error)

	// PromptTemplate returns a structured prompt with a single
	// "{ticket_id}" placeholder for the agent-mediated fetcher.
	PromptTemplate() string
}

// Constructible is implemented by providers whose constructor accepts
// registry-injected dependencies (UserInteraction + config). Providers that
// don't implement it are constructed nullary by the registry.
type Constructible interface {
	Configure(ui UserInteraction, cfg map[string]any)
}

// UserInteraction abstracts CLI vs non-interactive prompting, injected by
// the Provider Registry (spec.md §4.3).
type UserInteraction interface {
	// Confirm asks a yes/no question; nonInteractiveDefault is used when no
	// human is attached to answer.
	Confirm(prompt string, nonInteractiveDefault bool) bool
	// Select asks the user to choose among options; returns the chosen
	// index, or -1 if non-interactive and no default is configured.
	Select(prompt string, options []string) int
}

// NonInteractiveUI is a UserInteraction that never blocks: every Confirm
// returns its default and every Select returns -1.
type NonInteractiveUI struct{}

func (NonInteractiveUI) Confirm(_ string, def bool) bool       { return def }
func (NonInteractiveUI) Select(_ string, _ []string) int        { return -1 }
