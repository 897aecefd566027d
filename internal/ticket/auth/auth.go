// Package auth implements the Auth Store (spec.md §4.6, C6): per-platform
// credential bundles derived from cascading configuration, with required-key
// validation, ${VAR} placeholder expansion, and key-alias canonicalization.
package auth

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/kilroy-tickets/kilroy/internal/ticket/ferrors"
	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
)

// Credentials is an immutable mapping from lowercase keys to values. It
// must never be logged.
type Credentials struct {
	values map[string]string
}

// Get returns a credential value and whether it is present.
func (c Credentials) Get(key string) (string, bool) {
	v, ok := c.values[strings.ToLower(key)]
	return v, ok
}

// requiredKeys is the per-platform required-field set (spec.md §3).
var requiredKeys = map[model.Platform][]string{
	model.Jira:        {"url", "email", "token"},
	model.Linear:      {"api_key"},
	model.GitHub:      {"token"},
	model.AzureDevOps: {"organization", "project", "token"},
	model.Monday:      {"api_key"},
	model.Trello:      {"key", "token"},
}

// RequiredKeys returns the required credential keys for a platform.
func RequiredKeys(p model.Platform) []string {
	out := append([]string(nil), requiredKeys[p]...)
	return out
}

// keyAliases canonicalizes provider-specific alternate spellings before
// validation. Preserved exactly as specified; spec.md §9 explicitly warns
// against extending this mapping without a requirement.
var keyAliases = map[model.Platform]map[string]string{
	model.AzureDevOps: {"org": "organization"},
	model.Jira:        {"base_url": "url"},
	model.Trello:      {"api_token": "token"},
}

func canonicalizeKey(p model.Platform, key string) string {
	key = strings.ToLower(key)
	if aliases, ok := keyAliases[p]; ok {
		if canon, ok := aliases[key]; ok {
			return canon
		}
	}
	return key
}

var envPlaceholderRE = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandPlaceholders expands ${VAR} occurrences via os.LookupEnv. In strict
// mode, a missing env var in a required field raises EnvVarExpansion;
// missing in an optional field is preserved literally (spec.md §4.6).
func expandPlaceholders(value string, strict bool, context string) (string, error) {
	var firstErr error
	out := envPlaceholderRE.ReplaceAllStringFunc(value, func(match string) string {
		name := envPlaceholderRE.FindStringSubmatch(match)[1]
		v, ok := os.LookupEnv(name)
		if !ok {
			if strict && firstErr == nil {
				firstErr = &ferrors.EnvVarExpansion{Var: name, Context: context}
			}
			return match // preserved literally when not strict or not required.
		}
		return v
	})
	if strict && firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// Load builds a Credentials bundle for platform p from a flat key-value
// map already produced by the cascading config loader (env > local file >
// global file > defaults), using the FALLBACK_<PLATFORM>_<FIELD> key
// convention of spec.md §6.
func Load(p model.Platform, raw map[string]string) (Credentials, error) {
	prefix := "fallback_" + strings.ToLower(string(p)) + "_"
	values := map[string]string{}
	for k, v := range raw {
		lk := strings.ToLower(k)
		if !strings.HasPrefix(lk, prefix) {
			continue
		}
		field := canonicalizeKey(p, strings.TrimPrefix(lk, prefix))
		values[field] = v
	}

	req := requiredKeys[p]
	var missing []string
	for _, key := range req {
		v, ok := values[key]
		if !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, key)
			continue
		}
		expanded, err := expandPlaceholders(v, true, fmt.Sprintf("%s.%s", p, key))
		if err != nil {
			return Credentials{}, err
		}
		values[key] = expanded
	}
	if len(missing) > 0 {
		return Credentials{}, &ferrors.CredentialValidation{Platform: p, MissingKeys: missing}
	}

	// Optional fields: expand non-strictly, preserving unexpandable
	// placeholders literally.
	for key, v := range values {
		isRequired := false
		for _, r := range req {
			if r == key {
				isRequired = true
				break
			}
		}
		if isRequired {
			continue
		}
		expanded, _ := expandPlaceholders(v, false, fmt.Sprintf("%s.%s", p, key))
		values[key] = expanded
	}

	return Credentials{values: values}, nil
}

// HasFallbackConfigured is a cheap, non-decrypting check: true iff at
// least one required key for the platform has a non-empty value. It does
// not invoke environment expansion.
func HasFallbackConfigured(p model.Platform, raw map[string]string) bool {
	prefix := "fallback_" + strings.ToLower(string(p)) + "_"
	req := requiredKeys[p]
	if len(req) == 0 {
		return false
	}
	canon := map[string]string{}
	for k, v := range raw {
		lk := strings.ToLower(k)
		if !strings.HasPrefix(lk, prefix) {
			continue
		}
		field := canonicalizeKey(p, strings.TrimPrefix(lk, prefix))
		canon[field] = v
	}
	for _, key := range req {
		if strings.TrimSpace(canon[key]) != "" {
			return true
		}
	}
	return false
}

// SafeLoadError replaces unknown/unexpected errors with a generic message
// to prevent credential-value leakage through error text, per spec.md §7.
func SafeLoadError(err error) error {
	if err == nil {
		return nil
	}
	switch err.(type) {
	case *ferrors.CredentialValidation, *ferrors.EnvVarExpansion:
		return err
	default:
		return fmt.Errorf("failed to load credentials")
	}
}
