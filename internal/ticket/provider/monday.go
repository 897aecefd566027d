package provider

import (
	"regexp"
	"strings"

	"github.com/kilroy-tickets/kilroy/internal/ticket/ferrors"
	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
)

var mondayItemIDRE = regexp.MustCompile(`^\d{6,}$`)

// MondayProvider implements Provider for monday.com items.
type MondayProvider struct {
	ui  UserInteraction
	cfg map[string]any
}

func NewMondayProvider() *MondayProvider { return &MondayProvider{} }

func (p *MondayProvider) Configure(ui UserInteraction, cfg map[string]any) {
	p.ui, p.cfg = ui, cfg
}

func (p *MondayProvider) Platform() model.Platform { return model.Monday }

func (p *MondayProvider) CanHandle(input string) bool {
	input = strings.TrimSpace(input)
	if u, ok := parseURL(input); ok {
		return strings.Contains(strings.ToLower(u.Host), "monday.com")
	}
	return mondayItemIDRE.MatchString(input)
}

func (p *MondayProvider) ParseInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if u, ok := parseURL(input); ok {
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		for i, part := range parts {
			if strings.EqualFold(part, "pulses") && i+1 < len(parts) && mondayItemIDRE.MatchString(parts[i+1]) {
				return parts[i+1], nil
			}
		}
		return "", &ferrors.TicketIdFormat{Platform: model.Monday, ID: input, ExpectedFormat: "https://<org>.monday.com/boards/<board>/pulses/<id>"}
	}
	if mondayItemIDRE.MatchString(input) {
		return input, nil
	}
	return "", &ferrors.TicketIdFormat{Platform: model.Monday, ID: input, ExpectedFormat: "<numeric item id>"}
}

func (p *MondayProvider) Normalize(raw map[string]any, id string) (model.GenericTicket, error) {
	itemID := getString(raw, "id")
	if itemID == "" {
		itemID = id
	}
	status := mondayStatusToGeneric(mondayColumnValue(raw, "status"))
	return model.NewGenericTicket(model.TicketInput{
		ID:          itemID,
		Platform:    model.Monday,
		URL:         getString(raw, "url"),
		Title:       getString(raw, "name"),
		Description: mondayColumnValue(raw, "description"),
		Status:      status,
		Type:        model.TypeUnknown,
		Labels:      mondayLabels(raw),
	}), nil
}

func mondayColumnValue(raw map[string]any, columnID string) string {
	cols, _ := getAny(raw, "column_values").([]any)
	for _, c := range cols {
		cm, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if getString(cm, "id") == columnID {
			if text := getString(cm, "text"); text != "" {
				return text
			}
		}
	}
	return ""
}

func mondayLabels(raw map[string]any) []string {
	groups, _ := getAny(raw, "group", "title").(string)
	if groups == "" {
		return nil
	}
	return []string{groups}
}

var mondayStatusMap = map[string]model.TicketStatus{
	"not started": model.StatusOpen,
	"working on it": model.StatusInProgress,
	"in progress":   model.StatusInProgress,
	"stuck":         model.StatusBlocked,
	"review":        model.StatusReview,
	"done":          model.StatusDone,
	"closed":        model.StatusClosed,
}

func mondayStatusToGeneric(name string) model.TicketStatus {
	return statusTypeLookup(mondayStatusMap, name, model.StatusUnknown)
}

func (p *MondayProvider) PromptTemplate() string {
	return `Fetch the monday.com item "{ticket_id}" and respond with ONLY a JSON object shaped like:
{
  "id": "<item id>",
  "name": "<title>",
  "url": "<url>",
  "group": {"title": "<group name>"},
  "column_values": [{"id": "status", "text": "<status label>"}, {"id": "description", "text": "<description>"}]
}
Ticket: {ticket_id}`
}
