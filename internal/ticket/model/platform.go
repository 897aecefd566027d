// Package model holds the normalized data types shared across the ticket
// acquisition pipeline: platforms, statuses, types, and the GenericTicket
// itself (spec §3).
package model

import "strings"

// Platform is the closed enumeration of supported ticket trackers.
type Platform string

const (
	Jira         Platform = "jira"
	Linear       Platform = "linear"
	GitHub       Platform = "github"
	AzureDevOps  Platform = "azuredevops"
	Monday       Platform = "monday"
	Trello       Platform = "trello"
	UnknownPlatform Platform = ""
)

// allPlatforms is the stable enumeration order used for listings and
// error messages ("supported platforms are: ...").
var allPlatforms = []Platform{Jira, Linear, GitHub, AzureDevOps, Monday, Trello}

// AllPlatforms returns the closed set of platforms in stable order.
func AllPlatforms() []Platform {
	out := make([]Platform, len(allPlatforms))
	copy(out, allPlatforms)
	return out
}

// ParsePlatform performs case-insensitive lookup into the closed enum.
func ParsePlatform(s string) (Platform, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for _, p := range allPlatforms {
		if string(p) == norm {
			return p, true
		}
	}
	return UnknownPlatform, false
}

// String renders the stable textual name used in cache-key serialization.
func (p Platform) String() string {
	return string(p)
}

// Valid reports whether p is a member of the closed enumeration.
func (p Platform) Valid() bool {
	_, ok := ParsePlatform(string(p))
	return ok
}
