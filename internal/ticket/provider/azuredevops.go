package provider

import (
	"regexp"
	"strings"

	"github.com/kilroy-tickets/kilroy/internal/ticket/ferrors"
	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
)

var azureWorkItemRE = regexp.MustCompile(`^\d+$`)

// AzureDevOpsProvider implements Provider for Azure DevOps work items.
type AzureDevOpsProvider struct {
	ui  UserInteraction
	cfg map[string]any
}

func NewAzureDevOpsProvider() *AzureDevOpsProvider { return &AzureDevOpsProvider{} }

func (p *AzureDevOpsProvider) Configure(ui UserInteraction, cfg map[string]any) {
	p.ui, p.cfg = ui, cfg
}

func (p *AzureDevOpsProvider) Platform() model.Platform { return model.AzureDevOps }

func (p *AzureDevOpsProvider) CanHandle(input string) bool {
	input = strings.TrimSpace(input)
	if u, ok := parseURL(input); ok {
		host := strings.ToLower(u.Host)
		return strings.Contains(host, "dev.azure.com") || strings.Contains(host, "visualstudio.com")
	}
	return azureWorkItemRE.MatchString(input)
}

func (p *AzureDevOpsProvider) ParseInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if u, ok := parseURL(input); ok {
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		for i, part := range parts {
			if strings.EqualFold(part, "_workitems") && i+2 < len(parts) {
				candidate := parts[i+2]
				if azureWorkItemRE.MatchString(candidate) {
					return candidate, nil
				}
			}
		}
		if id := u.Query().Get("id"); azureWorkItemRE.MatchString(id) {
			return id, nil
		}
		return "", &ferrors.TicketIdFormat{Platform: model.AzureDevOps, ID: input, ExpectedFormat: "https://dev.azure.com/<org>/<project>/_workitems/edit/<id>"}
	}
	if azureWorkItemRE.MatchString(input) {
		return input, nil
	}
	return "", &ferrors.TicketIdFormat{Platform: model.AzureDevOps, ID: input, ExpectedFormat: "<numeric work item id>"}
}

func (p *AzureDevOpsProvider) Normalize(raw map[string]any, id string) (model.GenericTicket, error) {
	fields, _ := getAny(raw, "fields").(map[string]any)
	idStr := asFloatString(getAny(raw, "id"))
	if idStr == "" {
		idStr = id
	}
	status := azureStatusToGeneric(getString(fields, "System.State"))
	ttype := azureTypeToGeneric(getString(fields, "System.WorkItemType"))
	var assignee *string
	if a := getString(fields, "System.AssignedTo", "displayName"); a != "" {
		assignee = &a
	}
	var labels []string
	if tags := getString(fields, "System.Tags"); tags != "" {
		for _, t := range strings.Split(tags, ";") {
			if t = strings.TrimSpace(t); t != "" {
				labels = append(labels, t)
			}
		}
	}
	return model.NewGenericTicket(model.TicketInput{
		ID:          idStr,
		Platform:    model.AzureDevOps,
		URL:         getString(raw, "_links", "html", "href"),
		Title:       getString(fields, "System.Title"),
		Description: getString(fields, "System.Description"),
		Status:      status,
		Type:        ttype,
		Assignee:    assignee,
		Labels:      labels,
	}), nil
}

var azureStatusMap = map[string]model.TicketStatus{
	"new":         model.StatusOpen,
	"to do":       model.StatusOpen,
	"active":      model.StatusInProgress,
	"in progress": model.StatusInProgress,
	"review":      model.StatusReview,
	"blocked":     model.StatusBlocked,
	"resolved":    model.StatusDone,
	"closed":      model.StatusClosed,
	"done":        model.StatusDone,
	"removed":     model.StatusClosed,
}

func azureStatusToGeneric(name string) model.TicketStatus {
	return statusTypeLookup(azureStatusMap, name, model.StatusUnknown)
}

var azureTypeMap = map[string]model.TicketType{
	"bug":            model.TypeBug,
	"user story":     model.TypeFeature,
	"feature":        model.TypeFeature,
	"task":           model.TypeTask,
	"issue":          model.TypeTask,
	"maintenance":    model.TypeMaintenance,
}

func azureTypeToGeneric(name string) model.TicketType {
	return statusTypeLookup(azureTypeMap, name, model.TypeUnknown)
}

func (p *AzureDevOpsProvider) PromptTemplate() string {
	return `Fetch the Azure DevOps work item "{ticket_id}" and respond with ONLY a JSON object shaped like:
{
  "id": <n>,
  "_links": {"html": {"href": "<url>"}},
  "fields": {
    "System.Title": "<title>",
    "System.Description": "<description>",
    "System.State": "<state>",
    "System.WorkItemType": "<type>",
    "System.AssignedTo": {"displayName": "<name>"},
    "System.Tags": "<tag1; tag2>"
  }
}
Ticket: {ticket_id}`
}
