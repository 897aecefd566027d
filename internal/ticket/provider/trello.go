package provider

import (
	"regexp"
	"strings"

	"github.com/kilroy-tickets/kilroy/internal/ticket/ferrors"
	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
)

var trelloShortIDRE = regexp.MustCompile(`^[A-Za-z0-9]{8}$`)

// TrelloProvider implements Provider for Trello cards.
type TrelloProvider struct {
	ui  UserInteraction
	cfg map[string]any
}

func NewTrelloProvider() *TrelloProvider { return &TrelloProvider{} }

func (p *TrelloProvider) Configure(ui UserInteraction, cfg map[string]any) {
	p.ui, p.cfg = ui, cfg
}

func (p *TrelloProvider) Platform() model.Platform { return model.Trello }

func (p *TrelloProvider) CanHandle(input string) bool {
	input = strings.TrimSpace(input)
	if u, ok := parseURL(input); ok {
		return strings.Contains(strings.ToLower(u.Host), "trello.com")
	}
	return trelloShortIDRE.MatchString(input)
}

func (p *TrelloProvider) ParseInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if u, ok := parseURL(input); ok {
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		for i, part := range parts {
			if part == "c" && i+1 < len(parts) {
				return parts[i+1], nil
			}
		}
		return "", &ferrors.TicketIdFormat{Platform: model.Trello, ID: input, ExpectedFormat: "https://trello.com/c/<shortid>/..."}
	}
	if trelloShortIDRE.MatchString(input) {
		return input, nil
	}
	return "", &ferrors.TicketIdFormat{Platform: model.Trello, ID: input, ExpectedFormat: "<8-char short id>"}
}

func (p *TrelloProvider) Normalize(raw map[string]any, id string) (model.GenericTicket, error) {
	cardID := getString(raw, "shortLink")
	if cardID == "" {
		cardID = id
	}
	listName := getString(raw, "list", "name")
	closed, _ := getAny(raw, "closed").(bool)
	status := trelloStatus(listName, closed)
	return model.NewGenericTicket(model.TicketInput{
		ID:          cardID,
		Platform:    model.Trello,
		URL:         getString(raw, "url"),
		Title:       getString(raw, "name"),
		Description: getString(raw, "desc"),
		Status:      status,
		Type:        model.TypeUnknown,
		Labels:      trelloLabelNames(raw),
	}), nil
}

func trelloLabelNames(raw map[string]any) []string {
	arr, _ := getAny(raw, "labels").([]any)
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if m, ok := e.(map[string]any); ok {
			if name := getString(m, "name"); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

var trelloListStatusMap = map[string]model.TicketStatus{
	"to do":       model.StatusOpen,
	"backlog":     model.StatusOpen,
	"doing":       model.StatusInProgress,
	"in progress": model.StatusInProgress,
	"review":      model.StatusReview,
	"in review":   model.StatusReview,
	"blocked":     model.StatusBlocked,
	"done":        model.StatusDone,
}

// trelloStatus infers status from the card's list name, with a
// closed-override: a closed (archived) card always maps to Closed
// regardless of list, per spec.md §4.2.
func trelloStatus(listName string, closed bool) model.TicketStatus {
	if closed {
		return model.StatusClosed
	}
	return statusTypeLookup(trelloListStatusMap, listName, model.StatusUnknown)
}

func (p *TrelloProvider) PromptTemplate() string {
	return `Fetch the Trello card "{ticket_id}" and respond with ONLY a JSON object shaped like:
{
  "shortLink": "<8-char id>",
  "name": "<title>",
  "desc": "<description>",
  "url": "<url>",
  "closed": false,
  "list": {"name": "<list name>"},
  "labels": [{"name": "<label>"}]
}
Ticket: {ticket_id}`
}
