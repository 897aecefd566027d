// Package oracle defines the AI Backend contract (spec.md §1 Non-goal (a),
// GLOSSARY "Oracle / AI Backend"): an opaque capability that can run a
// prompt and return text. Executing the AI itself is explicitly out of
// scope; this package only specifies the call contract and a handful of
// concrete implementations that shell out to external CLIs, grounded on
// the teacher's internal/llm.ProviderAdapter registration pattern
// (internal/llm/client.go) adapted down to the single synchronous method
// the rest of this system needs.
package oracle

import "context"

// Backend is the synchronous oracle contract. Fetchers and the workflow
// runner call RunPrintQuiet from a goroutine when invoked from async
// contexts (spec.md §9: "offload via an executor").
type Backend interface {
	// Name identifies the backend for diagnostics and for the
	// agent-integration capability check (spec.md §4.4.1).
	Name() string

	// RunPrintQuiet sends prompt to the backend and returns its raw text
	// response. model selects the backend's model identifier; an empty
	// model means "backend default".
	RunPrintQuiet(ctx context.Context, prompt string, model string) (string, error)
}

// StreamingBackend is implemented by backends that can additionally stream
// output line-by-line, used by the Task Scheduler (spec.md §4.10) to emit
// TaskOutput events as they arrive.
type StreamingBackend interface {
	Backend
	// StreamPrintQuiet invokes the backend and calls onLine for every line
	// of output as it is produced, then returns the full text.
	StreamPrintQuiet(ctx context.Context, prompt string, model string, onLine func(line string)) (string, error)
}

// Kind is the closed set of backend kinds named in spec.md §6
// (AI_BACKEND config key).
type Kind string

const (
	KindAuggie Kind = "auggie"
	KindClaude Kind = "claude"
	KindCursor Kind = "cursor"
	KindAider  Kind = "aider"
	KindManual Kind = "manual"
)

// IsAgentCapable reports whether a backend kind is one of the
// agent-mediated-fetch-capable set (Auggie/Claude/Cursor), matching the
// Ticket Service factory's compatibility matrix (spec.md §4.5).
func (k Kind) IsAgentCapable() bool {
	switch k {
	case KindAuggie, KindClaude, KindCursor:
		return true
	default:
		return false
	}
}
