package registry

import (
	"fmt"
	"strings"

	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
	"github.com/kilroy-tickets/kilroy/internal/ticket/provider"
)

// Detect runs a small heuristic over URL patterns, short-link shapes, and
// bare-id patterns to pick a single platform among the registered
// providers (spec.md §4.3). URL forms are unambiguous and always win; a
// bare-id form that multiple providers CanHandle (e.g. Jira vs Linear's
// PROJECT-123 shape) is resolved by preferring Jira, matching the spec's
// directive that such ambiguity is "resolved upstream" rather than left to
// the providers themselves.
func Detect(input string, providers map[model.Platform]provider.Provider) (model.Platform, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return model.UnknownPlatform, fmt.Errorf("empty input")
	}

	if strings.Contains(input, "://") {
		for _, p := range model.AllPlatforms() {
			prov, ok := providers[p]
			if ok && prov.CanHandle(input) {
				return p, nil
			}
		}
		return model.UnknownPlatform, fmt.Errorf("no provider recognises URL %q", input)
	}

	var matches []model.Platform
	for _, p := range model.AllPlatforms() {
		prov, ok := providers[p]
		if ok && prov.CanHandle(input) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return model.UnknownPlatform, fmt.Errorf("no provider recognises input %q", input)
	case 1:
		return matches[0], nil
	default:
		// Ambiguous bare-id form. Jira-style "PROJECT-123" keys are the
		// most common convention; prefer it deterministically.
		for _, p := range matches {
			if p == model.Jira {
				return p, nil
			}
		}
		return matches[0], nil
	}
}
