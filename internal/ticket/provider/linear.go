package provider

import (
	"regexp"
	"strings"

	"github.com/kilroy-tickets/kilroy/internal/ticket/ferrors"
	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
)

var linearKeyRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*-\d+$`)

// LinearProvider implements Provider for Linear.
type LinearProvider struct {
	ui  UserInteraction
	cfg map[string]any
}

func NewLinearProvider() *LinearProvider { return &LinearProvider{} }

func (p *LinearProvider) Configure(ui UserInteraction, cfg map[string]any) {
	p.ui, p.cfg = ui, cfg
}

func (p *LinearProvider) Platform() model.Platform { return model.Linear }

func (p *LinearProvider) CanHandle(input string) bool {
	input = strings.TrimSpace(input)
	if u, ok := parseURL(input); ok {
		return strings.Contains(strings.ToLower(u.Host), "linear.app")
	}
	return linearKeyRE.MatchString(input)
}

func (p *LinearProvider) ParseInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if u, ok := parseURL(input); ok {
		// https://linear.app/team/issue/TEAM-123/slug
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		for i, part := range parts {
			if part == "issue" && i+1 < len(parts) && linearKeyRE.MatchString(parts[i+1]) {
				return trimmedUpper(parts[i+1]), nil
			}
		}
		return "", &ferrors.TicketIdFormat{Platform: model.Linear, ID: input, ExpectedFormat: "https://linear.app/<team>/issue/TEAM-123/..."}
	}
	if linearKeyRE.MatchString(input) {
		return trimmedUpper(input), nil
	}
	return "", &ferrors.TicketIdFormat{Platform: model.Linear, ID: input, ExpectedFormat: "TEAM-123"}
}

func (p *LinearProvider) Normalize(raw map[string]any, id string) (model.GenericTicket, error) {
	identifier := getString(raw, "identifier")
	if identifier == "" {
		identifier = id
	}
	// Linear prefers state.type (5 fixed workflow types) over state.name
	// (customizable), per spec.md §4.2.
	status := linearStatusToGeneric(getString(raw, "state", "type"))
	if status == model.StatusUnknown {
		status = linearStatusToGeneric(getString(raw, "state", "name"))
	}
	var assignee *string
	if a := getString(raw, "assignee", "name"); a != "" {
		assignee = &a
	}
	return model.NewGenericTicket(model.TicketInput{
		ID:          identifier,
		Platform:    model.Linear,
		URL:         getString(raw, "url"),
		Title:       getString(raw, "title"),
		Description: getString(raw, "description"),
		Status:      status,
		Type:        model.TypeUnknown, // Linear has no native ticket-type taxonomy.
		Assignee:    assignee,
		Labels:      linearLabels(raw),
		PlatformMetadata: map[string]any{
			"linear_state": getAny(raw, "state"),
		},
	}), nil
}

func linearLabels(raw map[string]any) []string {
	nodes, ok := getAny(raw, "labels", "nodes").([]any)
	if !ok {
		return getStringSlice(raw, "labels")
	}
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if nm, ok := n.(map[string]any); ok {
			if name := getString(nm, "name"); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

// linearStatusMap covers Linear's 5 fixed workflow state types.
var linearStatusMap = map[string]model.TicketStatus{
	"backlog":    model.StatusOpen,
	"unstarted":  model.StatusOpen,
	"started":    model.StatusInProgress,
	"completed":  model.StatusDone,
	"cancelled":  model.StatusClosed,
	// Common customizable state.name fallbacks.
	"todo":        model.StatusOpen,
	"in progress": model.StatusInProgress,
	"in review":   model.StatusReview,
	"blocked":     model.StatusBlocked,
	"done":        model.StatusDone,
	"closed":      model.StatusClosed,
}

func linearStatusToGeneric(name string) model.TicketStatus {
	return statusTypeLookup(linearStatusMap, name, model.StatusUnknown)
}

func (p *LinearProvider) PromptTemplate() string {
	return `Fetch the Linear issue "{ticket_id}" and respond with ONLY a JSON object shaped like:
{
  "identifier": "<TEAM-123>",
  "url": "<issue URL>",
  "title": "<title>",
  "description": "<description>",
  "state": {"name": "<workflow state name>", "type": "<backlog|unstarted|started|completed|cancelled>"},
  "assignee": {"name": "<name>"},
  "labels": {"nodes": [{"name": "<label>"}]}
}
Ticket: {ticket_id}`
}
