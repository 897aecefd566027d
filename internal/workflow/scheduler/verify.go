package scheduler

import (
	"context"

	"github.com/kilroy-tickets/kilroy/internal/workflow/tasklist"
)

// Verifier runs project-specific post-task checks. Verification is opt-in
// per spec.md §4.10 step 6; NoopVerifier is the default and always passes.
type Verifier interface {
	Verify(ctx context.Context, task tasklist.Task) error
}

// NoopVerifier is the placeholder verifier wired by default; projects that
// want verification supply their own Verifier to Config.
type NoopVerifier struct{}

func (NoopVerifier) Verify(ctx context.Context, task tasklist.Task) error { return nil }
