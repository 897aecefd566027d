package config

import (
	"os"
	"path/filepath"
)

const productName = "kilroy"

// GlobalPath returns ~/.kilroy-config, or "" if the home directory cannot
// be determined.
func GlobalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "."+productName+"-config")
}

// FindLocalPath walks up from startDir looking for a .kilroy file,
// stopping once a .git directory is found (inclusive: a .kilroy sitting
// next to .git is still honored) or the filesystem root is reached.
func FindLocalPath(startDir string) string {
	dir := startDir
	for {
		candidate := filepath.Join(dir, "."+productName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return ""
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Load builds the merged raw config map: global file, then local file
// (overriding), then environment variables for any recognised key
// (overriding both). cwd is the directory to start the local-file walk
// from.
func Load(cwd string) (map[string]string, error) {
	merged := map[string]string{}

	if gp := GlobalPath(); gp != "" {
		global, err := ParseFile(gp)
		if err != nil {
			return nil, err
		}
		for k, v := range global {
			merged[k] = v
		}
	}

	if lp := FindLocalPath(cwd); lp != "" {
		local, err := ParseFile(lp)
		if err != nil {
			return nil, err
		}
		for k, v := range local {
			merged[k] = v
		}
	}

	for _, key := range recognisedKeys() {
		if v, ok := os.LookupEnv(key); ok {
			merged[key] = v
		}
	}
	applyPrefixedEnvOverrides(merged)

	return merged, nil
}

// applyPrefixedEnvOverrides copies AGENT_INTEGRATION_<PLATFORM>,
// FETCH_STRATEGY_<PLATFORM>, and FALLBACK_<PLATFORM>_<FIELD> environment
// variables into the merged map: these have an unbounded key space so they
// cannot be enumerated by recognisedKeys.
func applyPrefixedEnvOverrides(merged map[string]string) {
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				key := kv[:i]
				val := kv[i+1:]
				if hasRecognisedPrefix(key) {
					merged[key] = val
				}
				break
			}
		}
	}
}

func hasRecognisedPrefix(key string) bool {
	prefixes := []string{"AGENT_INTEGRATION_", "FETCH_STRATEGY_", "FALLBACK_"}
	for _, p := range prefixes {
		if len(key) > len(p) && key[:len(p)] == p {
			return true
		}
	}
	return false
}
