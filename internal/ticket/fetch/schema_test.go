package fetch

import "testing"

func TestValidateAgentTicketShape_AcceptsMinimalDoc(t *testing.T) {
	doc := map[string]any{"id": "PROJ-1", "title": "Fix the thing"}
	if err := validateAgentTicketShape(doc); err != nil {
		t.Fatalf("expected valid doc to pass, got %v", err)
	}
}

func TestValidateAgentTicketShape_RejectsMissingID(t *testing.T) {
	doc := map[string]any{"title": "Fix the thing"}
	if err := validateAgentTicketShape(doc); err == nil {
		t.Fatal("expected missing id to fail validation")
	}
}

func TestValidateAgentTicketShape_RejectsWrongType(t *testing.T) {
	doc := map[string]any{"id": "PROJ-1", "title": "Fix", "labels": "not-an-array"}
	if err := validateAgentTicketShape(doc); err == nil {
		t.Fatal("expected wrong-typed labels field to fail validation")
	}
}
