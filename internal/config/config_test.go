package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseFile_QuotingAndComments(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".kilroy", `
# a comment
DEFAULT_MODEL="Claude Sonnet [claude-sonnet-4]"
PREFERRED_EDITOR='vim --literal'
AI_BACKEND=claude

BARE=hello world
`)
	raw, err := ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if raw["DEFAULT_MODEL"] != "Claude Sonnet [claude-sonnet-4]" {
		t.Fatalf("got %q", raw["DEFAULT_MODEL"])
	}
	if raw["PREFERRED_EDITOR"] != "vim --literal" {
		t.Fatalf("got %q", raw["PREFERRED_EDITOR"])
	}
	if raw["AI_BACKEND"] != "claude" {
		t.Fatalf("got %q", raw["AI_BACKEND"])
	}
	if raw["BARE"] != "hello world" {
		t.Fatalf("got %q", raw["BARE"])
	}
}

func TestParseFile_DoubleQuoteEscapes(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".kilroy", `VAL="a \"quoted\" value with \\backslash"`)
	raw, err := ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := `a "quoted" value with \backslash`
	if raw["VAL"] != want {
		t.Fatalf("got %q, want %q", raw["VAL"], want)
	}
}

func TestParseFile_MissingFileReturnsEmpty(t *testing.T) {
	raw, err := ParseFile(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 0 {
		t.Fatalf("expected empty map, got %v", raw)
	}
}

func TestFindLocalPath_WalksUpToGit(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, root, ".kilroy", "AI_BACKEND=manual\n")
	sub := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	got := FindLocalPath(sub)
	want := filepath.Join(root, ".kilroy")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFindLocalPath_StopsAtGitWithNoLocalFile(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(root, "a")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	if got := FindLocalPath(sub); got != "" {
		t.Fatalf("expected no local file found, got %q", got)
	}
}

func TestNew_ModelIDExtraction(t *testing.T) {
	typed, err := New(map[string]string{"DEFAULT_MODEL": "Claude Sonnet [claude-sonnet-4]"})
	if err != nil {
		t.Fatal(err)
	}
	if typed.DefaultModel != "claude-sonnet-4" {
		t.Fatalf("got %q", typed.DefaultModel)
	}
}

func TestNew_DefaultsApplied(t *testing.T) {
	typed, err := New(map[string]string{})
	if err != nil {
		t.Fatal(err)
	}
	if typed.Backend != BackendClaude {
		t.Fatalf("got %q", typed.Backend)
	}
	if typed.MaxParallelTasks != defaultMaxParallelTasks {
		t.Fatalf("got %d", typed.MaxParallelTasks)
	}
	if typed.FetchTimeoutSeconds != defaultFetchTimeoutSecs {
		t.Fatalf("got %d", typed.FetchTimeoutSeconds)
	}
}

func TestNew_ClampsOutOfRangeKnobs(t *testing.T) {
	typed, err := New(map[string]string{
		"FETCH_CACHE_DURATION_HOURS": "99999",
		"FETCH_MAX_RETRIES":          "-5",
		"MAX_PARALLEL_TASKS":         "50",
	})
	if err != nil {
		t.Fatal(err)
	}
	if typed.FetchCacheDurationHours != maxCacheDurationHours {
		t.Fatalf("got %d", typed.FetchCacheDurationHours)
	}
	if typed.MaxParallelTasks != maxMaxParallelTasks {
		t.Fatalf("got %d", typed.MaxParallelTasks)
	}
}

func TestNew_InvalidBackendFailsValidation(t *testing.T) {
	_, err := New(map[string]string{"AI_BACKEND": "not-a-real-backend"})
	if err == nil {
		t.Fatal("expected a validation error")
	}
}

func TestFetchStrategyFor_PerPlatformOverridesDefault(t *testing.T) {
	typed, err := New(map[string]string{
		"FETCH_STRATEGY_DEFAULT": "agent",
		"FETCH_STRATEGY_JIRA":    "direct",
	})
	if err != nil {
		t.Fatal(err)
	}
	if typed.FetchStrategyFor("jira") != StrategyDirect {
		t.Fatalf("got %q", typed.FetchStrategyFor("jira"))
	}
	if typed.FetchStrategyFor("github") != StrategyAgent {
		t.Fatalf("got %q", typed.FetchStrategyFor("github"))
	}
}

func TestAgentIntegrationEnabled_DefaultsTrue(t *testing.T) {
	typed, err := New(map[string]string{"AGENT_INTEGRATION_GITHUB": "false"})
	if err != nil {
		t.Fatal(err)
	}
	if typed.AgentIntegrationEnabled("github") {
		t.Fatal("expected false override to be honored")
	}
	if !typed.AgentIntegrationEnabled("jira") {
		t.Fatal("expected default true when unset")
	}
}

func TestLoad_EnvOverridesLocalOverridesGlobal(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeFile(t, home, ".kilroy-config", "AI_BACKEND=aider\nFETCH_TIMEOUT_SECONDS=10\n")

	repo := t.TempDir()
	if err := os.Mkdir(filepath.Join(repo, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, repo, ".kilroy", "AI_BACKEND=cursor\n")

	t.Setenv("FETCH_TIMEOUT_SECONDS", "99")

	raw, err := Load(repo)
	if err != nil {
		t.Fatal(err)
	}
	if raw["AI_BACKEND"] != "cursor" {
		t.Fatalf("local should override global, got %q", raw["AI_BACKEND"])
	}
	if raw["FETCH_TIMEOUT_SECONDS"] != "99" {
		t.Fatalf("env should override both files, got %q", raw["FETCH_TIMEOUT_SECONDS"])
	}
}
