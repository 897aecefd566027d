// Package service implements the Ticket Service (spec.md §4.5, C5): the
// orchestration layer that sits above the registry, cache, and fetchers —
// resolve input to a provider, consult the cache, fetch and normalize on a
// miss, then populate the cache for next time.
package service

import (
	"context"
	"time"

	"github.com/kilroy-tickets/kilroy/internal/oracle"
	"github.com/kilroy-tickets/kilroy/internal/ticket/auth"
	"github.com/kilroy-tickets/kilroy/internal/ticket/cache"
	"github.com/kilroy-tickets/kilroy/internal/ticket/fetch"
	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
	"github.com/kilroy-tickets/kilroy/internal/ticket/provider"
)

// Registry is the slice of the Provider Registry the service depends on.
type Registry interface {
	GetProvider(p model.Platform) (provider.Provider, error)
	GetProviderForInput(input string) (provider.Provider, error)
}

// GetTicketInput is the request payload for GetTicket.
type GetTicketInput struct {
	// Input is a raw user-supplied ticket reference: a URL or bare id.
	Input string
	// Platform, if non-empty, skips detection and forces this platform.
	Platform model.Platform
	// SkipCache bypasses the cache read (a fresh fetch is still written
	// back to the cache unless the service has no cache configured).
	SkipCache bool
	// TTL overrides the cache's default TTL for the resulting cache entry.
	// Zero means "use the cache's default".
	TTL time.Duration
	// FetchTimeout bounds a single fetcher call. Zero means "fetcher
	// default".
	FetchTimeout time.Duration
}

// Service is the Ticket Service. Construct with New; it owns the fallback
// fetcher's lifecycle and must be Closed when the caller is done.
type Service struct {
	registry Registry
	cache    cache.Cache
	primary  fetch.Fetcher
	fallback fetch.Fetcher
	closed   bool
}

// New builds a Service with an explicit primary/fallback fetcher pair, per
// the backend compatibility matrix resolved by NewForBackend.
func New(registry Registry, c cache.Cache, primary, fallback fetch.Fetcher) *Service {
	return &Service{registry: registry, cache: c, primary: primary, fallback: fallback}
}

// NewForBackend builds a Service choosing primary/fallback fetchers from the
// backend-compatibility matrix of spec.md §4.5: agent-capable backends
// (Auggie/Claude/Cursor) fetch via the agent first, falling back to
// direct-HTTP when credentials are available; all other backends
// (Manual/Aider) go direct-HTTP only.
func NewForBackend(registry Registry, c cache.Cache, backend oracle.Backend, kind oracle.Kind, model string, authRaw map[string]string) *Service {
	direct := fetch.NewDirectFetcher(authRaw, fetch.DefaultRetryPolicy())

	if !kind.IsAgentCapable() || backend == nil {
		return New(registry, c, direct, nil)
	}

	agentFetcher := fetch.NewAgentFetcher(backend, model, registryAdapter{registry}, nil)
	var fallback fetch.Fetcher
	if anyCredentialsConfigured(authRaw) {
		fallback = direct
	}
	return New(registry, c, agentFetcher, fallback)
}

// registryAdapter narrows Registry to fetch.ProviderLookup.
type registryAdapter struct{ Registry }

func anyCredentialsConfigured(raw map[string]string) bool {
	for _, p := range model.AllPlatforms() {
		if auth.HasFallbackConfigured(p, raw) {
			return true
		}
	}
	return false
}

// GetTicket resolves input to a ticket: cache hit short-circuits fetch;
// a miss fetches via the primary fetcher, falling back to the secondary
// fetcher on failure, normalizes via the resolved provider, and writes the
// result back to the cache.
func (s *Service) GetTicket(ctx context.Context, in GetTicketInput) (model.GenericTicket, error) {
	prov, err := s.resolveProvider(in)
	if err != nil {
		return model.GenericTicket{}, err
	}
	id, err := prov.ParseInput(in.Input)
	if err != nil {
		return model.GenericTicket{}, err
	}
	key := model.NewCacheKey(prov.Platform(), id)

	if s.cache != nil && !in.SkipCache {
		if cached, ok := s.cache.Get(key); ok {
			return cached, nil
		}
	}

	raw, err := s.fetchRaw(ctx, id, prov.Platform(), in.FetchTimeout)
	if err != nil {
		return model.GenericTicket{}, err
	}

	ticket, err := prov.Normalize(raw, id)
	if err != nil {
		return model.GenericTicket{}, err
	}

	if s.cache != nil {
		s.cache.Set(ticket, in.TTL, "")
	}
	return ticket, nil
}

func (s *Service) resolveProvider(in GetTicketInput) (provider.Provider, error) {
	if in.Platform != "" && in.Platform != model.UnknownPlatform {
		return s.registry.GetProvider(in.Platform)
	}
	return s.registry.GetProviderForInput(in.Input)
}

// fetchRaw tries the primary fetcher, then the fallback if present and the
// platform is supported there, returning the primary's error if neither
// succeeds (the fallback's error is discarded in favor of the fetch chain's
// first, usually more diagnostic, failure).
func (s *Service) fetchRaw(ctx context.Context, id string, platform model.Platform, timeout time.Duration) (map[string]any, error) {
	primaryErr := errNoPrimary
	if s.primary != nil && s.primary.SupportsPlatform(platform) {
		raw, err := s.primary.Fetch(ctx, id, platform, timeout)
		if err == nil {
			return raw, nil
		}
		primaryErr = err
	}
	if s.fallback != nil && s.fallback.SupportsPlatform(platform) {
		raw, err := s.fallback.Fetch(ctx, id, platform, timeout)
		if err == nil {
			return raw, nil
		}
		if primaryErr == errNoPrimary {
			return nil, err
		}
	}
	return nil, primaryErr
}

// Close releases the fetchers' resources. Idempotent; the fallback fetcher
// is only closed once even when it aliases a fetcher also used elsewhere.
func (s *Service) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var firstErr error
	closed := map[fetch.Fetcher]bool{}
	for _, f := range []fetch.Fetcher{s.primary, s.fallback} {
		if f == nil || closed[f] {
			continue
		}
		closed[f] = true
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type serviceErr string

func (e serviceErr) Error() string { return string(e) }

const errNoPrimary = serviceErr("no fetcher configured for this platform")
