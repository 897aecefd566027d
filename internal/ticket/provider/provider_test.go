package provider

import (
	"testing"

	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
)

func TestJiraParseInputURLAndBare(t *testing.T) {
	p := NewJiraProvider()
	if !p.CanHandle("PROJ-123") {
		t.Fatalf("expected bare key to be handled")
	}
	id, err := p.ParseInput("https://acme.atlassian.net/browse/proj-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "PROJ-123" {
		t.Fatalf("expected uppercased key, got %q", id)
	}
}

func TestLinearAndJiraAmbiguousBareIDsBothHandle(t *testing.T) {
	jira := NewJiraProvider()
	linear := NewLinearProvider()
	if !jira.CanHandle("PROJ-123") || !linear.CanHandle("PROJ-123") {
		t.Fatalf("PROJ-123 form should be ambiguous between Jira and Linear")
	}
}

func TestGitHubEnterpriseHostConfiguration(t *testing.T) {
	p := NewGitHubProvider()
	p.Configure(NonInteractiveUI{}, map[string]any{"github_enterprise_hosts": "git.internal.example.com"})

	if !p.CanHandle("https://git.internal.example.com/acme/widgets/issues/42") {
		t.Fatalf("expected configured enterprise host to be recognised")
	}
	if p.CanHandle("https://unknown.example.com/acme/widgets/issues/42") {
		t.Fatalf("expected unconfigured host to be rejected")
	}
	if !p.CanHandle("https://github.com/acme/widgets/issues/42") {
		t.Fatalf("github.com must always be recognised")
	}
}

func TestTrelloClosedOverridesListName(t *testing.T) {
	raw := map[string]any{
		"shortLink": "abcd1234",
		"name":      "Card",
		"closed":    true,
		"list":      map[string]any{"name": "Doing"},
	}
	p := NewTrelloProvider()
	ticket, err := p.Normalize(raw, "abcd1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ticket.Status() != model.StatusClosed {
		t.Fatalf("expected closed override regardless of list, got %v", ticket.Status())
	}
}

func TestLinearPrefersStateTypeOverName(t *testing.T) {
	raw := map[string]any{
		"identifier": "TEAM-1",
		"title":      "T",
		"state":      map[string]any{"name": "My Custom Name", "type": "completed"},
	}
	p := NewLinearProvider()
	ticket, err := p.Normalize(raw, "TEAM-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ticket.Status() != model.StatusDone {
		t.Fatalf("expected state.type to win, got %v", ticket.Status())
	}
}

func TestGitHubCombinesStateReasonAndLabels(t *testing.T) {
	raw := map[string]any{
		"number": float64(7),
		"state":  "open",
		"labels": []any{map[string]any{"name": "in progress"}},
	}
	p := NewGitHubProvider()
	ticket, err := p.Normalize(raw, "7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ticket.Status() != model.StatusInProgress {
		t.Fatalf("expected label to drive in_progress status, got %v", ticket.Status())
	}
}
