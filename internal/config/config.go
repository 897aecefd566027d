package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kilroy-tickets/kilroy/internal/ticket/ferrors"
)

// Backend is the AI_BACKEND enum of spec.md §6.
type Backend string

const (
	BackendAuggie Backend = "auggie"
	BackendClaude Backend = "claude"
	BackendCursor Backend = "cursor"
	BackendAider  Backend = "aider"
	BackendManual Backend = "manual"
)

// FetchStrategy is the FETCH_STRATEGY_* enum of spec.md §6.
type FetchStrategy string

const (
	StrategyAgent  FetchStrategy = "agent"
	StrategyDirect FetchStrategy = "direct"
	StrategyAuto   FetchStrategy = "auto"
)

const (
	defaultCacheDurationHours = 24
	maxCacheDurationHours     = 24 * 30
	defaultFetchTimeoutSecs   = 30
	maxFetchTimeoutSecs       = 300
	defaultFetchMaxRetries    = 3
	maxFetchMaxRetries        = 10
	defaultRetryDelaySecs     = 2
	maxRetryDelaySecs         = 60
	defaultMaxParallelTasks   = 3
	maxMaxParallelTasks       = 5
)

// Typed is the validated, defaulted view over the raw cascaded config map,
// mirroring the two-pass apply-defaults-then-validate shape of the
// teacher's RunConfigFile loader.
type Typed struct {
	DefaultModel        string `validate:"-"`
	PlanningModel        string `validate:"-"`
	ImplementationModel string `validate:"-"`
	Backend             Backend `validate:"omitempty,oneof=auggie claude cursor aider manual"`

	FetchCacheDurationHours int `validate:"gte=0,lte=720"`
	FetchTimeoutSeconds     int `validate:"gt=0,lte=300"`
	FetchMaxRetries         int `validate:"gte=0,lte=10"`
	FetchRetryDelaySeconds  int `validate:"gte=0,lte=60"`

	AutoOpenFiles     bool
	PreferredEditor   string
	SkipClarification bool
	SquashAtEnd       bool

	ParallelExecutionEnabled bool
	MaxParallelTasks         int `validate:"gte=1,lte=5"`
	FailFast                 bool

	CheckFileDisjointness bool

	raw map[string]string
}

var modelExtractRE = regexp.MustCompile(`\[([^\]]+)\]\s*$`)

// extractModelID strips a "Display Name [id]" annotation down to "id";
// a bare value with no bracket suffix is returned unchanged.
func extractModelID(v string) string {
	if m := modelExtractRE.FindStringSubmatch(v); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(v)
}

func boolOf(raw map[string]string, key string, def bool) bool {
	v, ok := raw[key]
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return def
	}
}

func intOf(raw map[string]string, key string, def int) int {
	v, ok := raw[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// New builds a Typed view from a raw cascaded map (as returned by Load),
// applying defaults for every recognised key, then validating the capped
// numeric fields. A ConfigValidation error aggregates every failing
// field's message.
func New(raw map[string]string) (Typed, error) {
	t := Typed{
		DefaultModel:        extractModelID(raw["DEFAULT_MODEL"]),
		PlanningModel:       extractModelID(raw["PLANNING_MODEL"]),
		ImplementationModel: extractModelID(raw["IMPLEMENTATION_MODEL"]),
		Backend:             Backend(strings.ToLower(strings.TrimSpace(raw["AI_BACKEND"]))),

		FetchCacheDurationHours: intOf(raw, "FETCH_CACHE_DURATION_HOURS", defaultCacheDurationHours),
		FetchTimeoutSeconds:     intOf(raw, "FETCH_TIMEOUT_SECONDS", defaultFetchTimeoutSecs),
		FetchMaxRetries:         intOf(raw, "FETCH_MAX_RETRIES", defaultFetchMaxRetries),
		FetchRetryDelaySeconds:  intOf(raw, "FETCH_RETRY_DELAY_SECONDS", defaultRetryDelaySecs),

		AutoOpenFiles:     boolOf(raw, "AUTO_OPEN_FILES", false),
		PreferredEditor:   strings.TrimSpace(raw["PREFERRED_EDITOR"]),
		SkipClarification: boolOf(raw, "SKIP_CLARIFICATION", false),
		SquashAtEnd:       boolOf(raw, "SQUASH_AT_END", false),

		ParallelExecutionEnabled: boolOf(raw, "PARALLEL_EXECUTION_ENABLED", false),
		MaxParallelTasks:         intOf(raw, "MAX_PARALLEL_TASKS", defaultMaxParallelTasks),
		FailFast:                 boolOf(raw, "FAIL_FAST", false),

		CheckFileDisjointness: boolOf(raw, "CHECK_FILE_DISJOINTNESS", false),

		raw: raw,
	}
	if t.Backend == "" {
		t.Backend = BackendClaude
	}
	clampCapped(&t)

	if err := validator.New().Struct(t); err != nil {
		var messages []string
		for _, fe := range err.(validator.ValidationErrors) {
			messages = append(messages, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
		}
		return Typed{}, &ferrors.ConfigValidation{Messages: messages}
	}
	return t, nil
}

// clampCapped silently clamps out-of-range performance knobs rather than
// failing, matching spec.md §6's "(≥0, capped)" phrasing, and this includes
// the parallel task count; only an invalid backend enum surfaces as
// ConfigValidation.
func clampCapped(t *Typed) {
	t.FetchCacheDurationHours = clamp(t.FetchCacheDurationHours, 0, maxCacheDurationHours)
	t.FetchTimeoutSeconds = clamp(t.FetchTimeoutSeconds, 1, maxFetchTimeoutSecs)
	t.FetchMaxRetries = clamp(t.FetchMaxRetries, 0, maxFetchMaxRetries)
	t.FetchRetryDelaySeconds = clamp(t.FetchRetryDelaySeconds, 0, maxRetryDelaySecs)
	if t.MaxParallelTasks < 1 {
		t.MaxParallelTasks = defaultMaxParallelTasks
	}
	if t.MaxParallelTasks > maxMaxParallelTasks {
		t.MaxParallelTasks = maxMaxParallelTasks
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AgentIntegrationEnabled reports AGENT_INTEGRATION_<PLATFORM>, default true
// when unset (spec.md §4.2 fetch strategy resolution assumes agent
// integration is available unless explicitly disabled).
func (t Typed) AgentIntegrationEnabled(platform string) bool {
	key := "AGENT_INTEGRATION_" + strings.ToUpper(platform)
	return boolOf(t.raw, key, true)
}

// FetchStrategyFor resolves FETCH_STRATEGY_<PLATFORM>, falling back to
// FETCH_STRATEGY_DEFAULT, then "auto".
func (t Typed) FetchStrategyFor(platform string) FetchStrategy {
	key := "FETCH_STRATEGY_" + strings.ToUpper(platform)
	if v, ok := t.raw[key]; ok && strings.TrimSpace(v) != "" {
		return FetchStrategy(strings.ToLower(strings.TrimSpace(v)))
	}
	if v, ok := t.raw["FETCH_STRATEGY_DEFAULT"]; ok && strings.TrimSpace(v) != "" {
		return FetchStrategy(strings.ToLower(strings.TrimSpace(v)))
	}
	return StrategyAuto
}

// Raw returns the underlying cascaded map, for callers (like internal/auth)
// that need the full FALLBACK_<PLATFORM>_<FIELD> key space.
func (t Typed) Raw() map[string]string {
	return t.raw
}

// DisjointnessIgnoreGlobs splits DISJOINTNESS_IGNORE_GLOBS on commas, for
// callers that opt into the file-mention pre-scan via CheckFileDisjointness.
func (t Typed) DisjointnessIgnoreGlobs() []string {
	v := strings.TrimSpace(t.raw["DISJOINTNESS_IGNORE_GLOBS"])
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	globs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			globs = append(globs, p)
		}
	}
	return globs
}

// LogEnabled and LogFile implement the <NAME>_LOG / <NAME>_LOG_FILE
// environment convention of spec.md §6.
func (t Typed) LogEnabled() bool {
	return boolOf(t.raw, strings.ToUpper(productName)+"_LOG", false)
}

func (t Typed) LogFile() string {
	return strings.TrimSpace(t.raw[strings.ToUpper(productName)+"_LOG_FILE"])
}

// ProviderBaseURL resolves the JIRA_BASE_URL / GITHUB_BASE_URL provider
// default env vars of spec.md §6.
func (t Typed) ProviderBaseURL(platform string) string {
	return strings.TrimSpace(t.raw[strings.ToUpper(platform)+"_BASE_URL"])
}

// recognisedKeys lists the fixed (non-templated) keys honored by the
// cascade's environment-override layer.
func recognisedKeys() []string {
	return []string{
		"DEFAULT_MODEL", "PLANNING_MODEL", "IMPLEMENTATION_MODEL",
		"AI_BACKEND",
		"FETCH_STRATEGY_DEFAULT",
		"FETCH_CACHE_DURATION_HOURS", "FETCH_TIMEOUT_SECONDS",
		"FETCH_MAX_RETRIES", "FETCH_RETRY_DELAY_SECONDS",
		"AUTO_OPEN_FILES", "PREFERRED_EDITOR", "SKIP_CLARIFICATION", "SQUASH_AT_END",
		"PARALLEL_EXECUTION_ENABLED", "MAX_PARALLEL_TASKS", "FAIL_FAST",
		"CHECK_FILE_DISJOINTNESS", "DISJOINTNESS_IGNORE_GLOBS",
		strings.ToUpper(productName) + "_LOG", strings.ToUpper(productName) + "_LOG_FILE",
		"JIRA_BASE_URL", "GITHUB_BASE_URL",
	}
}
