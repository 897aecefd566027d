package provider

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kilroy-tickets/kilroy/internal/ticket/ferrors"
	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
)

// jiraKeyRE matches a bare Jira issue key: PROJECT-123. This is
// intentionally the same shape Linear bare ids use (spec.md §4.2:
// ambiguous forms return true from CanHandle for both).
var jiraKeyRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*-\d+$`)

// JiraProvider implements Provider for Atlassian Jira (Cloud and
// self-hosted).
type JiraProvider struct {
	ui  UserInteraction
	cfg map[string]any
}

func NewJiraProvider() *JiraProvider { return &JiraProvider{} }

func (p *JiraProvider) Configure(ui UserInteraction, cfg map[string]any) {
	p.ui, p.cfg = ui, cfg
}

func (p *JiraProvider) Platform() model.Platform { return model.Jira }

func (p *JiraProvider) CanHandle(input string) bool {
	input = strings.TrimSpace(input)
	if u, ok := parseURL(input); ok {
		host := strings.ToLower(u.Host)
		if strings.Contains(host, "atlassian.net") {
			return true
		}
		// Self-hosted Jira: path form /browse/KEY-123.
		if strings.Contains(u.Path, "/browse/") {
			return true
		}
		return false
	}
	return jiraKeyRE.MatchString(input)
}

func (p *JiraProvider) ParseInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if u, ok := parseURL(input); ok {
		if idx := strings.Index(u.Path, "/browse/"); idx >= 0 {
			key := strings.TrimPrefix(u.Path[idx:], "/browse/")
			key = strings.Trim(key, "/")
			if jiraKeyRE.MatchString(key) {
				return trimmedUpper(key), nil
			}
		}
		return "", &ferrors.TicketIdFormat{Platform: model.Jira, ID: input, ExpectedFormat: "https://<site>.atlassian.net/browse/KEY-123"}
	}
	if jiraKeyRE.MatchString(input) {
		return trimmedUpper(input), nil
	}
	return "", &ferrors.TicketIdFormat{Platform: model.Jira, ID: input, ExpectedFormat: "KEY-123"}
}

func (p *JiraProvider) Normalize(raw map[string]any, id string) (model.GenericTicket, error) {
	fields, _ := getAny(raw, "fields").(map[string]any)
	key := getString(raw, "key")
	if key == "" {
		key = id
	}
	status := jiraStatusToGeneric(getString(fields, "status", "name"))
	ttype := jiraTypeToGeneric(getString(fields, "issuetype", "name"))
	var assignee *string
	if a := getString(fields, "assignee", "displayName"); a != "" {
		assignee = &a
	}
	return model.NewGenericTicket(model.TicketInput{
		ID:          key,
		Platform:    model.Jira,
		URL:         jiraSelfURL(raw),
		Title:       getString(fields, "summary"),
		Description: jiraDescription(fields),
		Status:      status,
		Type:        ttype,
		Assignee:    assignee,
		Labels:      getStringSlice(fields, "labels"),
		PlatformMetadata: map[string]any{
			"jira_fields": fields,
		},
	}), nil
}

func jiraSelfURL(raw map[string]any) string {
	return getString(raw, "self")
}

// jiraDescription tolerates both plain-string (classic) and Atlassian
// Document Format (ADF) description shapes; ADF is flattened to its text
// runs since the rest of the system only needs plain text.
func jiraDescription(fields map[string]any) string {
	if s := getString(fields, "description"); s != "" {
		return s
	}
	adf, ok := getAny(fields, "description").(map[string]any)
	if !ok {
		return ""
	}
	var sb strings.Builder
	flattenADF(adf, &sb)
	return strings.TrimSpace(sb.String())
}

func flattenADF(node map[string]any, sb *strings.Builder) {
	if text := getString(node, "text"); text != "" {
		sb.WriteString(text)
		sb.WriteString(" ")
	}
	content, _ := getAny(node, "content").([]any)
	for _, c := range content {
		if cm, ok := c.(map[string]any); ok {
			flattenADF(cm, sb)
		}
	}
}

var jiraStatusMap = map[string]model.TicketStatus{
	"to do":       model.StatusOpen,
	"open":        model.StatusOpen,
	"backlog":     model.StatusOpen,
	"in progress": model.StatusInProgress,
	"in review":   model.StatusReview,
	"code review": model.StatusReview,
	"blocked":     model.StatusBlocked,
	"done":        model.StatusDone,
	"resolved":    model.StatusDone,
	"closed":      model.StatusClosed,
}

func jiraStatusToGeneric(name string) model.TicketStatus {
	return statusTypeLookup(jiraStatusMap, name, model.StatusUnknown)
}

var jiraTypeMap = map[string]model.TicketType{
	"bug":         model.TypeBug,
	"story":       model.TypeFeature,
	"new feature": model.TypeFeature,
	"task":        model.TypeTask,
	"sub-task":    model.TypeTask,
	"maintenance": model.TypeMaintenance,
	"chore":       model.TypeMaintenance,
}

func jiraTypeToGeneric(name string) model.TicketType {
	return statusTypeLookup(jiraTypeMap, name, model.TypeUnknown)
}

func (p *JiraProvider) PromptTemplate() string {
	return fmt.Sprintf(`Fetch the Jira issue "{ticket_id}" and respond with ONLY a JSON object shaped like:
{
  "key": "<issue key>",
  "self": "<API self URL>",
  "fields": {
    "summary": "<title>",
    "description": "<plain text or ADF>",
    "status": {"name": "<status name>"},
    "issuetype": {"name": "<type name>"},
    "assignee": {"displayName": "<name>"},
    "labels": ["<label>", ...]
  }
}
Ticket: {ticket_id}`)
}
