package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kilroy-tickets/kilroy/internal/ticket/auth"
	"github.com/kilroy-tickets/kilroy/internal/ticket/ferrors"
	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
)

// RetryPolicy controls the direct-HTTP fetcher's retry/backoff behaviour,
// grounded on the teacher's backoff.go jittered-exponential approach
// (spec.md §4.4.2): base_delay * 2^attempt, plus a uniform jitter of up to
// 10% of base_delay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy is 3 attempts with a 500ms base delay, each delay capped
// at 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 30 * time.Second}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << attempt
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(p.BaseDelay) / 10 + 1))
	return d + jitter
}

// platformHandler is the per-platform HTTP request/response contract. A
// handler is registered once per platform in DirectFetcher.handlers.
type platformHandler interface {
	// buildRequest constructs the outbound request for id using creds.
	buildRequest(ctx context.Context, id string, creds auth.Credentials) (*http.Request, error)
	// parseBody extracts raw provider JSON from a successful response body,
	// raising PlatformApi/PlatformNotFound on logical (non-transport)
	// failures (e.g. GraphQL errors[], a not-found entity).
	parseBody(platform model.Platform, body []byte) (map[string]any, error)
}

// DirectFetcher is the direct-HTTP Ticket Fetcher (spec.md §4.4.2): a
// connection-pooled client, per-platform handlers, retry with jittered
// backoff honoring Retry-After, and a circuit breaker per platform.
type DirectFetcher struct {
	authRaw  map[string]string
	handlers map[model.Platform]platformHandler
	policy   RetryPolicy

	mu      sync.Mutex
	client  *http.Client
	breaker map[model.Platform]*gobreaker.CircuitBreaker[map[string]any]
}

// NewDirectFetcher builds a direct-HTTP fetcher over the standard
// six-platform handler set. authRaw is the flat cascading-config map passed
// through to auth.Load per platform per call.
func NewDirectFetcher(authRaw map[string]string, policy RetryPolicy) *DirectFetcher {
	return &DirectFetcher{
		authRaw: authRaw,
		policy:  policy,
		handlers: map[model.Platform]platformHandler{
			model.Jira:        jiraHandler{},
			model.Linear:      linearHandler{},
			model.GitHub:      githubHandler{},
			model.AzureDevOps: azureHandler{},
			model.Monday:      mondayHandler{},
			model.Trello:      trelloHandler{},
		},
	}
}

func (f *DirectFetcher) Name() string { return "direct-http" }

func (f *DirectFetcher) SupportsPlatform(p model.Platform) bool {
	_, ok := f.handlers[p]
	return ok
}

// httpClient lazily constructs a single pooled client, checked and built
// under the mutex so concurrent first callers don't race on construction.
func (f *DirectFetcher) httpClient() *http.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client == nil {
		f.client = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return f.client
}

func (f *DirectFetcher) breakerFor(p model.Platform) *gobreaker.CircuitBreaker[map[string]any] {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.breaker == nil {
		f.breaker = map[model.Platform]*gobreaker.CircuitBreaker[map[string]any]{}
	}
	if b, ok := f.breaker[p]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker[map[string]any](gobreaker.Settings{
		Name:        string(p),
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	f.breaker[p] = b
	return b
}

func (f *DirectFetcher) Fetch(ctx context.Context, id string, platform model.Platform, timeout time.Duration) (map[string]any, error) {
	handler, ok := f.handlers[platform]
	if !ok {
		return nil, &ferrors.PlatformNotSupported{Platform: platform, FetcherName: f.Name()}
	}

	creds, err := auth.Load(platform, f.authRaw)
	if err != nil {
		return nil, ferrors.ToAgentIntegration(f.Name(), err)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	breaker := f.breakerFor(platform)
	policy := f.policy
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(policy.delay(attempt - 1)):
			case <-runCtx.Done():
				return nil, ferrors.ToAgentFetch(f.Name(), runCtx.Err())
			}
		}

		result, err := breaker.Execute(func() (map[string]any, error) {
			return f.doOnce(runCtx, handler, platform, id, creds)
		})
		if err == nil {
			return result, nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ferrors.ToAgentFetch(f.Name(), err)
		}

		var httpErr *ferrors.HTTPError
		if errors.As(err, &httpErr) {
			if !httpErr.Retryable() {
				return nil, ferrors.ToAgentFetch(f.Name(), err)
			}
			if ra := httpErr.RetryAfter(); ra != nil {
				select {
				case <-time.After(*ra):
				case <-runCtx.Done():
					return nil, ferrors.ToAgentFetch(f.Name(), runCtx.Err())
				}
			}
			continue
		}

		var pnf *ferrors.PlatformNotFound
		var pa *ferrors.PlatformApi
		var tf *ferrors.TicketIdFormat
		var cv *ferrors.CredentialValidation
		if errors.As(err, &pnf) || errors.As(err, &pa) {
			return nil, ferrors.ToAgentFetch(f.Name(), err)
		}
		if errors.As(err, &tf) || errors.As(err, &cv) {
			return nil, ferrors.ToAgentIntegration(f.Name(), err)
		}

		// Network/timeout errors are retried; anything else is terminal.
		if runCtx.Err() != nil {
			return nil, ferrors.ToAgentFetch(f.Name(), runCtx.Err())
		}
		var netErr net.Error
		if !errors.As(err, &netErr) {
			return nil, ferrors.ToAgentFetch(f.Name(), err)
		}
	}
	return nil, ferrors.ToAgentFetch(f.Name(), lastErr)
}

func (f *DirectFetcher) doOnce(ctx context.Context, handler platformHandler, platform model.Platform, id string, creds auth.Credentials) (map[string]any, error) {
	req, err := handler.buildRequest(ctx, id, creds)
	if err != nil {
		return nil, err
	}
	resp, err := f.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, &ferrors.PlatformNotFound{Platform: platform, ID: id}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var retryAfter *time.Duration
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			retryAfter = ferrors.ParseRetryAfter(ra, time.Now())
		}
		return nil, ferrors.ClassifyHTTPStatus(string(platform), resp.StatusCode, strings.TrimSpace(string(body)), retryAfter)
	}

	return handler.parseBody(platform, body)
}

func (f *DirectFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client != nil {
		f.client.CloseIdleConnections()
	}
	return nil
}

// parseGraphQLEnvelope validates the GraphQL {errors, data} response shape;
// the Linear handler uses it (monday.com's handler parses its own body).
func parseGraphQLEnvelope(platform model.Platform, body []byte, entityPath ...string) (map[string]any, error) {
	var env struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%s: malformed GraphQL response: %w", platform, err)
	}
	if len(env.Errors) > 0 {
		msgs := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, &ferrors.PlatformApi{Platform: platform, Messages: msgs}
	}
	var cur any = env.Data
	for _, key := range entityPath {
		m, ok := cur.(map[string]any)
		if !ok {
			cur = nil
			break
		}
		cur, ok = m[key]
		if !ok {
			cur = nil
			break
		}
	}
	entity, ok := cur.(map[string]any)
	if !ok || entity == nil {
		return nil, &ferrors.PlatformNotFound{Platform: platform}
	}
	return entity, nil
}

// --- Jira ---

type jiraHandler struct{}

func (jiraHandler) buildRequest(ctx context.Context, id string, creds auth.Credentials) (*http.Request, error) {
	base, _ := creds.Get("url")
	email, _ := creds.Get("email")
	token, _ := creds.Get("token")
	u := strings.TrimSuffix(base, "/") + "/rest/api/2/issue/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(email, token)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (jiraHandler) parseBody(platform model.Platform, body []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%s: malformed response: %w", platform, err)
	}
	return m, nil
}

// --- Linear ---

type linearHandler struct{}

const linearIssueQuery = `query($id: String!) { issue(id: $id) { identifier url title description state { name type } assignee { name } labels { nodes { name } } } }`

func (linearHandler) buildRequest(ctx context.Context, id string, creds auth.Credentials) (*http.Request, error) {
	apiKey, _ := creds.Get("api_key")
	payload, err := json.Marshal(map[string]any{
		"query":     linearIssueQuery,
		"variables": map[string]any{"id": id},
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.linear.app/graphql", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", apiKey)
	return req, nil
}

func (linearHandler) parseBody(platform model.Platform, body []byte) (map[string]any, error) {
	return parseGraphQLEnvelope(platform, body, "issue")
}

// --- GitHub ---

type githubHandler struct{}

func (githubHandler) buildRequest(ctx context.Context, id string, creds auth.Credentials) (*http.Request, error) {
	owner, repo, number, err := splitGitHubID(id)
	if err != nil {
		return nil, err
	}
	token, _ := creds.Get("token")
	apiBase := "https://api.github.com"
	if host, ok := creds.Get("enterprise_host"); ok && host != "" {
		apiBase = "https://" + strings.TrimSuffix(host, "/") + "/api/v3"
	}
	u := fmt.Sprintf("%s/repos/%s/%s/issues/%s", apiBase, owner, repo, number)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	return req, nil
}

func splitGitHubID(id string) (owner, repo, number string, err error) {
	parts := strings.SplitN(id, "#", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", "", &ferrors.TicketIdFormat{Platform: model.GitHub, ID: id, ExpectedFormat: "owner/repo#123"}
	}
	ownerRepo := strings.SplitN(parts[0], "/", 2)
	if len(ownerRepo) != 2 || ownerRepo[0] == "" || ownerRepo[1] == "" {
		return "", "", "", &ferrors.TicketIdFormat{Platform: model.GitHub, ID: id, ExpectedFormat: "owner/repo#123 (no default repo configured)"}
	}
	return ownerRepo[0], ownerRepo[1], parts[1], nil
}

func (githubHandler) parseBody(platform model.Platform, body []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%s: malformed response: %w", platform, err)
	}
	return m, nil
}

// --- Azure DevOps ---

type azureHandler struct{}

func (azureHandler) buildRequest(ctx context.Context, id string, creds auth.Credentials) (*http.Request, error) {
	org, _ := creds.Get("organization")
	project, _ := creds.Get("project")
	token, _ := creds.Get("token")
	u := fmt.Sprintf("https://dev.azure.com/%s/%s/_apis/wit/workitems/%s?api-version=7.0",
		url.PathEscape(org), url.PathEscape(project), url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth("", token)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (azureHandler) parseBody(platform model.Platform, body []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%s: malformed response: %w", platform, err)
	}
	return m, nil
}

// --- monday.com ---

type mondayHandler struct{}

const mondayItemQuery = `query($id: [ID!]) { items(ids: $id) { id name url group { title } column_values { id text } } }`

func (mondayHandler) buildRequest(ctx context.Context, id string, creds auth.Credentials) (*http.Request, error) {
	apiKey, _ := creds.Get("api_key")
	payload, err := json.Marshal(map[string]any{
		"query":     mondayItemQuery,
		"variables": map[string]any{"id": []string{id}},
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.monday.com/v2", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", apiKey)
	return req, nil
}

func (mondayHandler) parseBody(platform model.Platform, body []byte) (map[string]any, error) {
	var env struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
		Data struct {
			Items []map[string]any `json:"items"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%s: malformed GraphQL response: %w", platform, err)
	}
	if len(env.Errors) > 0 {
		msgs := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, &ferrors.PlatformApi{Platform: platform, Messages: msgs}
	}
	if len(env.Data.Items) == 0 {
		return nil, &ferrors.PlatformNotFound{Platform: platform}
	}
	return env.Data.Items[0], nil
}

// --- Trello ---

type trelloHandler struct{}

func (trelloHandler) buildRequest(ctx context.Context, id string, creds auth.Credentials) (*http.Request, error) {
	key, _ := creds.Get("key")
	token, _ := creds.Get("token")
	q := url.Values{}
	q.Set("key", key)
	q.Set("token", token)
	q.Set("fields", "name,desc,url,closed,shortLink")
	q.Set("list", "true")
	q.Set("labels", "true")
	u := "https://api.trello.com/1/cards/" + url.PathEscape(id) + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (trelloHandler) parseBody(platform model.Platform, body []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%s: malformed response: %w", platform, err)
	}
	return m, nil
}
