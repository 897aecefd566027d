package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilroy-tickets/kilroy/internal/ticket/cache"
	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
	"github.com/kilroy-tickets/kilroy/internal/ticket/provider"
)

type fakeRegistry struct {
	providers map[model.Platform]provider.Provider
}

func (r fakeRegistry) GetProvider(p model.Platform) (provider.Provider, error) {
	return r.providers[p], nil
}

func (r fakeRegistry) GetProviderForInput(input string) (provider.Provider, error) {
	return r.providers[model.Jira], nil
}

type fakeProvider struct {
	platform model.Platform
}

func (p fakeProvider) Platform() model.Platform           { return p.platform }
func (p fakeProvider) CanHandle(input string) bool         { return true }
func (p fakeProvider) ParseInput(input string) (string, error) { return input, nil }
func (p fakeProvider) Normalize(raw map[string]any, id string) (model.GenericTicket, error) {
	return model.NewGenericTicket(model.TicketInput{ID: id, Platform: p.platform, Title: raw["title"].(string)}), nil
}
func (p fakeProvider) PromptTemplate() string { return "" }

type fakeFetcher struct {
	name      string
	supports  map[model.Platform]bool
	raw       map[string]any
	err       error
	callCount int
}

func (f *fakeFetcher) Fetch(ctx context.Context, id string, platform model.Platform, timeout time.Duration) (map[string]any, error) {
	f.callCount++
	if f.err != nil {
		return nil, f.err
	}
	return f.raw, nil
}
func (f *fakeFetcher) SupportsPlatform(p model.Platform) bool { return f.supports[p] }
func (f *fakeFetcher) Name() string                           { return f.name }
func (f *fakeFetcher) Close() error                           { return nil }

func TestGetTicket_CacheHit(t *testing.T) {
	reg := fakeRegistry{providers: map[model.Platform]provider.Provider{model.Jira: fakeProvider{model.Jira}}}
	c := cache.NewMemoryCache(10, time.Hour)
	existing := model.NewGenericTicket(model.TicketInput{ID: "KEY-1", Platform: model.Jira, Title: "cached"})
	c.Set(existing, 0, "")

	primary := &fakeFetcher{name: "primary", supports: map[model.Platform]bool{model.Jira: true}}
	svc := New(reg, c, primary, nil)

	got, err := svc.GetTicket(context.Background(), GetTicketInput{Input: "KEY-1", Platform: model.Jira})
	require.NoError(t, err)
	assert.Equal(t, "cached", got.Title())
	assert.Equal(t, 0, primary.callCount, "cache hit must not call the fetcher")
}

func TestGetTicket_FallsBackOnPrimaryFailure(t *testing.T) {
	reg := fakeRegistry{providers: map[model.Platform]provider.Provider{model.Jira: fakeProvider{model.Jira}}}
	c := cache.NewMemoryCache(10, time.Hour)

	primary := &fakeFetcher{name: "primary", supports: map[model.Platform]bool{model.Jira: true}, err: assertErr{"boom"}}
	fallback := &fakeFetcher{name: "fallback", supports: map[model.Platform]bool{model.Jira: true}, raw: map[string]any{"title": "from fallback"}}
	svc := New(reg, c, primary, fallback)

	got, err := svc.GetTicket(context.Background(), GetTicketInput{Input: "KEY-2", Platform: model.Jira})
	require.NoError(t, err)
	assert.Equal(t, "from fallback", got.Title())
	assert.Equal(t, 1, primary.callCount)
	assert.Equal(t, 1, fallback.callCount)
}

func TestGetTicket_SkipCacheForcesRefetch(t *testing.T) {
	reg := fakeRegistry{providers: map[model.Platform]provider.Provider{model.Jira: fakeProvider{model.Jira}}}
	c := cache.NewMemoryCache(10, time.Hour)
	c.Set(model.NewGenericTicket(model.TicketInput{ID: "KEY-3", Platform: model.Jira, Title: "stale"}), 0, "")

	primary := &fakeFetcher{name: "primary", supports: map[model.Platform]bool{model.Jira: true}, raw: map[string]any{"title": "fresh"}}
	svc := New(reg, c, primary, nil)

	got, err := svc.GetTicket(context.Background(), GetTicketInput{Input: "KEY-3", Platform: model.Jira, SkipCache: true})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.Title())
	assert.Equal(t, 1, primary.callCount)
}

func TestService_Close_IsIdempotentAndDedupesAliasedFetchers(t *testing.T) {
	shared := &fakeFetcher{name: "shared"}
	svc := New(fakeRegistry{}, nil, shared, shared)
	require.NoError(t, svc.Close())
	require.NoError(t, svc.Close())
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
