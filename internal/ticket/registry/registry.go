// Package registry implements the Provider Registry (spec.md §4.3, C3):
// a platform-enum-keyed singleton lookup with lazy instantiation and
// dependency injection for UserInteraction and config. Grounded on the
// teacher's registry/singleton conventions (internal/llm.Client.Register,
// a map-of-adapters guarded by a mutex with idempotent registration).
package registry

import (
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/kilroy-tickets/kilroy/internal/ticket/ferrors"
	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
	"github.com/kilroy-tickets/kilroy/internal/ticket/provider"
)

// Factory constructs a new provider instance.
type Factory func() provider.Provider

// Registry is the thread-safe platform -> provider singleton map.
type Registry struct {
	mu         sync.Mutex
	factories  map[model.Platform]Factory
	factoryTyp map[model.Platform]reflect.Type
	instances  map[model.Platform]provider.Provider
	ui         provider.UserInteraction
	cfg        map[string]any
	log        *zap.SugaredLogger
}

// New builds an empty registry. UI defaults to NonInteractiveUI until
// SetUserInteraction is called.
func New(log *zap.SugaredLogger) *Registry {
	return &Registry{
		factories:  map[model.Platform]Factory{},
		factoryTyp: map[model.Platform]reflect.Type{},
		instances:  map[model.Platform]provider.Provider{},
		ui:         provider.NonInteractiveUI{},
		log:        log,
	}
}

// SetUserInteraction and SetConfig wire dependency injection context used
// when constructing Constructible providers.
func (r *Registry) SetUserInteraction(ui provider.UserInteraction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ui = ui
}

func (r *Registry) SetConfig(cfg map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
}

// Register adds a factory for platform p. Re-registering the same
// concrete provider type is a no-op; registering a different type for an
// already-registered platform replaces it, clears any cached instance, and
// logs a warning (spec.md §4.3).
func (r *Registry) Register(p model.Platform, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sample := f()
	typ := reflect.TypeOf(sample)

	if existingTyp, ok := r.factoryTyp[p]; ok {
		if existingTyp == typ {
			return // duplicate registration of the same class: no-op.
		}
		if r.log != nil {
			r.log.Warnw("replacing provider registration", "platform", p, "old_type", existingTyp, "new_type", typ)
		}
		delete(r.instances, p)
	}
	r.factories[p] = f
	r.factoryTyp[p] = typ
}

// GetProvider returns the singleton provider for platform p, constructing
// it lazily on first call. Concurrent callers observe the same instance;
// a constructor that returns a provider is cached, happens-before visible
// to subsequent calls.
func (r *Registry) GetProvider(p model.Platform) (provider.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getProviderLocked(p)
}

func (r *Registry) getProviderLocked(p model.Platform) (provider.Provider, error) {
	if inst, ok := r.instances[p]; ok {
		return inst, nil
	}
	f, ok := r.factories[p]
	if !ok {
		return nil, &ferrors.PlatformNotSupported{Platform: p, Registered: r.registeredLocked()}
	}
	inst := f()
	if c, ok := inst.(provider.Constructible); ok {
		c.Configure(r.ui, r.cfg)
	}
	r.instances[p] = inst
	return inst, nil
}

func (r *Registry) registeredLocked() []model.Platform {
	out := make([]model.Platform, 0, len(r.factories))
	for _, p := range model.AllPlatforms() {
		if _, ok := r.factories[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// GetProviderForInput runs the Platform Detector over input and dispatches
// to the matching provider. A PlatformNotSupported error lists the
// registered platforms when detection fails; an ambiguous input resolves
// to one platform inside Detect and is not an error.
func (r *Registry) GetProviderForInput(input string) (provider.Provider, error) {
	r.mu.Lock()
	candidates := r.registeredLocked()
	providers := make(map[model.Platform]provider.Provider, len(candidates))
	for _, p := range candidates {
		inst, err := r.getProviderLocked(p)
		if err == nil {
			providers[p] = inst
		}
	}
	r.mu.Unlock()

	detected, err := Detect(input, providers)
	if err != nil {
		return nil, &ferrors.PlatformNotSupported{Platform: model.UnknownPlatform, Registered: candidates}
	}
	return r.GetProvider(detected)
}

// ResetInstances clears cached instances and injected context without
// removing registrations (needed between CLI invocations within one
// process).
func (r *Registry) ResetInstances() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = map[model.Platform]provider.Provider{}
	r.ui = provider.NonInteractiveUI{}
	r.cfg = nil
}

// Clear removes both registrations and instances. Reserved for tests.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = map[model.Platform]Factory{}
	r.factoryTyp = map[model.Platform]reflect.Type{}
	r.instances = map[model.Platform]provider.Provider{}
}

// RegisterBuiltins registers the standard provider set. Called once from
// main, avoiding constructor-time side effects (spec.md §9 design note:
// explicit registration replaces decorator-style auto-registration).
func RegisterBuiltins(r *Registry) {
	r.Register(model.Jira, func() provider.Provider { return provider.NewJiraProvider() })
	r.Register(model.Linear, func() provider.Provider { return provider.NewLinearProvider() })
	r.Register(model.GitHub, func() provider.Provider { return provider.NewGitHubProvider() })
	r.Register(model.AzureDevOps, func() provider.Provider { return provider.NewAzureDevOpsProvider() })
	r.Register(model.Monday, func() provider.Provider { return provider.NewMondayProvider() })
	r.Register(model.Trello, func() provider.Provider { return provider.NewTrelloProvider() })
}
