package scheduler

import (
	"testing"

	"github.com/kilroy-tickets/kilroy/internal/workflow/tasklist"
)

func TestCheckWaveDisjointness_FlagsOverlappingMention(t *testing.T) {
	wave := []tasklist.Task{
		{Name: "Add handler in internal/api/routes.go"},
		{Name: "Fix bug in internal/api/routes.go"},
	}
	violations := checkWaveDisjointness(wave, nil)
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %d: %v", len(violations), violations)
	}
	if violations[0].File != "internal/api/routes.go" {
		t.Errorf("unexpected file: %s", violations[0].File)
	}
}

func TestCheckWaveDisjointness_NoOverlapIsClean(t *testing.T) {
	wave := []tasklist.Task{
		{Name: "Add handler in internal/api/routes.go"},
		{Name: "Update internal/db/schema.sql"},
	}
	if v := checkWaveDisjointness(wave, nil); len(v) != 0 {
		t.Fatalf("expected no violations, got %v", v)
	}
}

func TestCheckWaveDisjointness_IgnoreGlobExcludesMatch(t *testing.T) {
	wave := []tasklist.Task{
		{Name: "Regenerate internal/gen/schema.pb.go"},
		{Name: "Also touches internal/gen/schema.pb.go"},
	}
	violations := checkWaveDisjointness(wave, []string{"internal/gen/**"})
	if len(violations) != 0 {
		t.Fatalf("expected ignore glob to suppress violation, got %v", violations)
	}
}

func TestCheckWaveDisjointness_SingleTaskWaveIsNoop(t *testing.T) {
	wave := []tasklist.Task{{Name: "Solo task touching internal/x.go"}}
	if v := checkWaveDisjointness(wave, nil); v != nil {
		t.Fatalf("expected nil, got %v", v)
	}
}
