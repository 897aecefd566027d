package cache

import (
	"sync"

	"go.uber.org/zap"
)

// Kind selects which Cache variant the global singleton wraps.
type Kind int

const (
	KindMemory Kind = iota
	KindFile
)

var (
	globalMu   sync.Mutex
	globalInst Cache
	globalKind Kind
	globalSet  bool
)

// GetGlobalCache returns the process-wide cache singleton, constructing it
// with build on first call. A later call requesting a different kind logs a
// warning and returns the existing instance; ClearGlobalCache must be
// called first to reinitialise (spec.md §4.1).
func GetGlobalCache(kind Kind, build func() Cache, log *zap.SugaredLogger) Cache {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalSet {
		if globalKind != kind && log != nil {
			log.Warnw("global ticket cache already initialized with a different kind; returning existing instance",
				"requested_kind", kind, "existing_kind", globalKind)
		}
		return globalInst
	}

	globalInst = build()
	globalKind = kind
	globalSet = true
	return globalInst
}

// SetGlobalCache injects a cache instance directly, for test use.
func SetGlobalCache(kind Kind, c Cache) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalInst = c
	globalKind = kind
	globalSet = true
}

// ClearGlobalCache drops the singleton so the next GetGlobalCache call
// reinitialises it.
func ClearGlobalCache() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalInst = nil
	globalSet = false
}
