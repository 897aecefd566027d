package provider

import (
	"regexp"
	"strings"

	"github.com/kilroy-tickets/kilroy/internal/ticket/ferrors"
	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
)

var (
	githubURLRE = regexp.MustCompile(`^/([^/]+)/([^/]+)/(issues|pull)/(\d+)$`)
	githubBareRE = regexp.MustCompile(`^(?:([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+))?#(\d+)$`)
)

// GitHubProvider implements Provider for GitHub issues/PRs. It recognises
// github.com unconditionally and additional enterprise hosts iff
// configured, per spec.md §4.2.
type GitHubProvider struct {
	ui          UserInteraction
	cfg         map[string]any
	extraHosts  []string
}

func NewGitHubProvider() *GitHubProvider { return &GitHubProvider{} }

func (p *GitHubProvider) Configure(ui UserInteraction, cfg map[string]any) {
	p.ui, p.cfg = ui, cfg
	if cfg != nil {
		if raw, ok := cfg["github_enterprise_hosts"].(string); ok {
			p.extraHosts = parseHostList(raw)
		}
	}
}

func (p *GitHubProvider) Platform() model.Platform { return model.GitHub }

func (p *GitHubProvider) hostAllowed(host string) bool {
	host = strings.ToLower(host)
	if host == "github.com" || host == "www.github.com" {
		return true
	}
	return hostMatchesList(host, p.extraHosts)
}

func (p *GitHubProvider) CanHandle(input string) bool {
	input = strings.TrimSpace(input)
	if u, ok := parseURL(input); ok {
		return p.hostAllowed(u.Host) && githubURLRE.MatchString(u.Path)
	}
	return githubBareRE.MatchString(input)
}

func (p *GitHubProvider) ParseInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if u, ok := parseURL(input); ok {
		if !p.hostAllowed(u.Host) {
			return "", &ferrors.TicketIdFormat{Platform: model.GitHub, ID: input, ExpectedFormat: "https://github.com/<owner>/<repo>/issues/<n>"}
		}
		m := githubURLRE.FindStringSubmatch(u.Path)
		if m == nil {
			return "", &ferrors.TicketIdFormat{Platform: model.GitHub, ID: input, ExpectedFormat: "https://github.com/<owner>/<repo>/issues/<n>"}
		}
		return m[1] + "/" + m[2] + "#" + m[4], nil
	}
	m := githubBareRE.FindStringSubmatch(input)
	if m == nil {
		return "", &ferrors.TicketIdFormat{Platform: model.GitHub, ID: input, ExpectedFormat: "owner/repo#123 or #123 (with a default repo configured)"}
	}
	if m[1] == "" {
		// Bare "#123" form is passed through as-is. The direct-HTTP fetcher
		// does not resolve it to a repository and rejects it with
		// TicketIdFormat.
		return "#" + m[3], nil
	}
	return m[1] + "/" + m[2] + "#" + m[3], nil
}

func (p *GitHubProvider) Normalize(raw map[string]any, id string) (model.GenericTicket, error) {
	num := getAny(raw, "number")
	numStr := asFloatString(num)
	if numStr == "" {
		numStr = id
	}
	status := githubCombinedStatus(raw)
	ttype := githubType(raw)
	var assignee *string
	if a := getString(raw, "assignee", "login"); a != "" {
		assignee = &a
	} else if assignees := getStringSliceOfLogins(raw, "assignees"); len(assignees) > 0 {
		assignee = &assignees[0]
	}
	return model.NewGenericTicket(model.TicketInput{
		ID:          numStr,
		Platform:    model.GitHub,
		URL:         getString(raw, "html_url"),
		Title:       getString(raw, "title"),
		Description: getString(raw, "body"),
		Status:      status,
		Type:        ttype,
		Assignee:    assignee,
		Labels:      githubLabelNames(raw),
		PlatformMetadata: map[string]any{
			"state_reason": getString(raw, "state_reason"),
		},
	}), nil
}

func getStringSliceOfLogins(raw map[string]any, key string) []string {
	arr, _ := getAny(raw, key).([]any)
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if m, ok := e.(map[string]any); ok {
			if login := getString(m, "login"); login != "" {
				out = append(out, login)
			}
		}
	}
	return out
}

func githubLabelNames(raw map[string]any) []string {
	arr, _ := getAny(raw, "labels").([]any)
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		switch v := e.(type) {
		case string:
			out = append(out, v)
		case map[string]any:
			if name := getString(v, "name"); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

// githubCombinedStatus maps state + state_reason + labels (spec.md §4.2).
// GitHub's native model is open/closed with no "in progress"/"review"
// concept, so labels and state_reason are consulted to enrich it.
func githubCombinedStatus(raw map[string]any) model.TicketStatus {
	state := strings.ToLower(getString(raw, "state"))
	reason := strings.ToLower(getString(raw, "state_reason"))
	labels := githubLabelNames(raw)

	if state == "closed" {
		if reason == "not_planned" {
			return model.StatusClosed
		}
		return model.StatusDone
	}
	for _, l := range labels {
		switch strings.ToLower(l) {
		case "in progress", "in-progress", "wip":
			return model.StatusInProgress
		case "in review", "review", "needs review":
			return model.StatusReview
		case "blocked":
			return model.StatusBlocked
		}
	}
	if state == "open" {
		return model.StatusOpen
	}
	return model.StatusUnknown
}

func githubType(raw map[string]any) model.TicketType {
	if _, isPR := getAny(raw, "pull_request").(map[string]any); isPR {
		return model.TypeFeature
	}
	for _, l := range githubLabelNames(raw) {
		switch strings.ToLower(l) {
		case "bug":
			return model.TypeBug
		case "enhancement", "feature":
			return model.TypeFeature
		case "chore", "maintenance":
			return model.TypeMaintenance
		case "task":
			return model.TypeTask
		}
	}
	return model.TypeUnknown
}

func (p *GitHubProvider) PromptTemplate() string {
	return `Fetch the GitHub issue or pull request "{ticket_id}" and respond with ONLY a JSON object shaped like:
{
  "number": <n>,
  "html_url": "<url>",
  "title": "<title>",
  "body": "<description>",
  "state": "open|closed",
  "state_reason": "completed|not_planned|",
  "labels": [{"name": "<label>"}],
  "assignee": {"login": "<user>"},
  "pull_request": {}
}
Ticket: {ticket_id}`
}
