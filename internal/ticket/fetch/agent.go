package fetch

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/kilroy-tickets/kilroy/internal/oracle"
	"github.com/kilroy-tickets/kilroy/internal/ticket/ferrors"
	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
	"github.com/kilroy-tickets/kilroy/internal/ticket/provider"
)

// agentCapablePlatforms is the fixed set of platforms the agent-mediated
// fetcher can serve (spec.md §4.4.1).
var agentCapablePlatforms = map[model.Platform]bool{
	model.Jira:   true,
	model.Linear: true,
	model.GitHub: true,
}

// AgentIntegrationConfig returns whether agent-integration is enabled for a
// platform, injected from the config layer (AGENT_INTEGRATION_<PLATFORM>).
type AgentIntegrationConfig interface {
	AgentIntegrationEnabled(p model.Platform) (enabled bool, configured bool)
}

// AgentFetcher is the agent-mediated Ticket Fetcher (spec.md §4.4.1).
type AgentFetcher struct {
	backend  oracle.Backend
	model    string
	registry ProviderLookup
	cfg      AgentIntegrationConfig
	closed   bool
}

// ProviderLookup is the minimal slice of the Provider Registry the fetcher
// needs: resolving a platform to its prompt template.
type ProviderLookup interface {
	GetProvider(p model.Platform) (provider.Provider, error)
}

// NewAgentFetcher builds an agent-mediated fetcher. cfg may be nil, in
// which case support is advertised purely from the fixed platform set.
func NewAgentFetcher(backend oracle.Backend, model string, registry ProviderLookup, cfg AgentIntegrationConfig) *AgentFetcher {
	return &AgentFetcher{backend: backend, model: model, registry: registry, cfg: cfg}
}

func (f *AgentFetcher) Name() string { return "agent:" + f.backend.Name() }

func (f *AgentFetcher) SupportsPlatform(p model.Platform) bool {
	if !agentCapablePlatforms[p] {
		return false
	}
	if f.cfg == nil {
		return true
	}
	enabled, configured := f.cfg.AgentIntegrationEnabled(p)
	if !configured {
		return true
	}
	return enabled
}

func (f *AgentFetcher) Fetch(ctx context.Context, id string, platform model.Platform, timeout time.Duration) (map[string]any, error) {
	if !f.SupportsPlatform(platform) {
		return nil, &ferrors.PlatformNotSupported{Platform: platform, FetcherName: f.Name()}
	}
	prov, err := f.registry.GetProvider(platform)
	if err != nil {
		return nil, &ferrors.AgentIntegration{AgentName: f.backend.Name(), Inner: err}
	}
	prompt := strings.ReplaceAll(prov.PromptTemplate(), "{ticket_id}", id)

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Invoked on a worker goroutine to preserve async semantics at call
	// sites that are themselves cooperative-async (spec.md §5), even
	// though RunPrintQuiet itself is a synchronous call.
	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		text, err := f.backend.RunPrintQuiet(runCtx, prompt, f.model)
		ch <- result{text, err}
	}()

	var res result
	select {
	case res = <-ch:
	case <-runCtx.Done():
		return nil, &ferrors.AgentFetch{AgentName: f.backend.Name(), Inner: runCtx.Err()}
	}
	if res.err != nil {
		return nil, &ferrors.AgentFetch{AgentName: f.backend.Name(), Inner: res.err}
	}

	raw, err := ExtractJSON(res.text)
	if err != nil {
		return nil, &ferrors.AgentResponseParse{AgentName: f.backend.Name(), RawResponse: res.text, Inner: err}
	}
	if err := validateAgentTicketShape(raw); err != nil {
		return nil, &ferrors.AgentResponseParse{AgentName: f.backend.Name(), RawResponse: res.text, Inner: err}
	}
	return raw, nil
}

func (f *AgentFetcher) Close() error {
	f.closed = true
	return nil
}

var (
	fencedJSONBlockRE   = regexp.MustCompile("(?s)```json\\s*\\n(.*?)```")
	fencedAnyBlockRE    = regexp.MustCompile("(?s)```\\s*\\n(.*?)```")
)

// ExtractJSON implements the parse discipline of spec.md §4.4.1:
//  1. bare JSON if the trimmed output parses as-is
//  2. else a fenced code block, preferring a json-tagged block
//  3. else the first balanced {...} substring
//
// Empty/whitespace-only output, or failure after extraction, is reported by
// the caller as AgentResponseParse; this function returns a plain error.
func ExtractJSON(text string) (map[string]any, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, errEmptyResponse
	}

	if m, err := tryParseObject(trimmed); err == nil {
		return m, nil
	}

	if match := fencedJSONBlockRE.FindStringSubmatch(text); match != nil {
		if m, err := tryParseObject(strings.TrimSpace(match[1])); err == nil {
			return m, nil
		}
	}
	if match := fencedAnyBlockRE.FindStringSubmatch(text); match != nil {
		if m, err := tryParseObject(strings.TrimSpace(match[1])); err == nil {
			return m, nil
		}
	}

	if candidate, ok := firstBalancedObject(text); ok {
		if m, err := tryParseObject(candidate); err == nil {
			return m, nil
		}
	}

	return nil, errNoJSONFound
}

func tryParseObject(s string) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// firstBalancedObject scans for the first balanced {...} substring,
// respecting quoted strings so braces inside string values don't
// prematurely close the match.
func firstBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

type parseErr string

func (e parseErr) Error() string { return string(e) }

const (
	errEmptyResponse = parseErr("empty agent response")
	errNoJSONFound   = parseErr("no JSON object found in agent response")
)
