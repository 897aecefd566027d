// Package ferrors implements the ticket-fetch error taxonomy of spec.md §7.
// The shape — a small interface plus concrete structs carrying a code and
// context fields — mirrors the teacher's internal/llm.Error hierarchy
// (internal/llm/errors.go): a unified interface at the subsystem boundary,
// with handler-internal error kinds mapped into it before they escape.
package ferrors

import (
	"errors"
	"fmt"

	"github.com/kilroy-tickets/kilroy/internal/ticket/model"
)

// ExitCode mirrors spec.md §6: every domain error has an associated exit code.
type ExitCode int

const (
	ExitOK                   ExitCode = 0
	ExitGeneral              ExitCode = 1
	ExitBackendNotInstalled  ExitCode = 2
	ExitPlatformNotConfigured ExitCode = 3
	ExitUserCancelled        ExitCode = 4
	ExitGitError             ExitCode = 5
)

// TicketFetch is the abstract base every fetcher error satisfies.
type TicketFetch interface {
	error
	ExitCode() ExitCode
}

// PlatformNotSupported means a specific fetcher (or the registry) cannot
// handle the given platform.
type PlatformNotSupported struct {
	Platform    model.Platform
	FetcherName string
	Registered  []model.Platform // set when raised by the registry
}

func (e *PlatformNotSupported) Error() string {
	if e.FetcherName != "" {
		return fmt.Sprintf("fetcher %q does not support platform %q", e.FetcherName, e.Platform)
	}
	msg := fmt.Sprintf("no provider registered for platform %q", e.Platform)
	if len(e.Registered) > 0 {
		msg += "; supported platforms are:"
		for _, p := range e.Registered {
			msg += " " + string(p)
		}
	}
	return msg
}
func (e *PlatformNotSupported) ExitCode() ExitCode { return ExitPlatformNotConfigured }

// AgentIntegration means the agent/backend oracle is misconfigured or
// unavailable. CredentialValidation and TicketIdFormat are mapped into this
// at the DirectAPIFetcher boundary per spec.md §7.
type AgentIntegration struct {
	AgentName string
	Inner     error
}

func (e *AgentIntegration) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("%s: agent integration error: %v", e.AgentName, e.Inner)
	}
	return fmt.Sprintf("%s: agent integration error", e.AgentName)
}
func (e *AgentIntegration) Unwrap() error        { return e.Inner }
func (e *AgentIntegration) ExitCode() ExitCode    { return ExitPlatformNotConfigured }

// AgentFetch means the fetch operation failed: network, platform API, or a
// semantic not-found. PlatformApi and PlatformNotFound are mapped into this.
type AgentFetch struct {
	AgentName string
	Inner     error
}

func (e *AgentFetch) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("%s: fetch failed: %v", e.AgentName, e.Inner)
	}
	return fmt.Sprintf("%s: fetch failed", e.AgentName)
}
func (e *AgentFetch) Unwrap() error     { return e.Inner }
func (e *AgentFetch) ExitCode() ExitCode { return ExitGeneral }

// AgentResponseParse means the agent's free-text response could not be
// parsed into the expected JSON shape.
type AgentResponseParse struct {
	AgentName   string
	RawResponse string
	Inner       error
}

func (e *AgentResponseParse) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("%s: could not parse agent response: %v", e.AgentName, e.Inner)
	}
	return fmt.Sprintf("%s: could not parse agent response", e.AgentName)
}
func (e *AgentResponseParse) Unwrap() error     { return e.Inner }
func (e *AgentResponseParse) ExitCode() ExitCode { return ExitGeneral }

// PlatformApi is a handler-internal error: the platform returned a logical
// error (GraphQL errors, validation failures). Converted to AgentFetch at
// the DirectAPIFetcher boundary; never observed past it.
type PlatformApi struct {
	Platform model.Platform
	Messages []string
}

func (e *PlatformApi) Error() string {
	return fmt.Sprintf("%s API returned errors: %v", e.Platform, e.Messages)
}

// PlatformNotFound is a handler-internal error: the platform said the
// ticket does not exist. Converted to AgentFetch at the fetcher boundary.
type PlatformNotFound struct {
	Platform model.Platform
	ID       string
}

func (e *PlatformNotFound) Error() string {
	return fmt.Sprintf("%s ticket %q not found", e.Platform, e.ID)
}

// CredentialValidation means the auth bundle is missing required keys.
// Converted to AgentIntegration at the fetcher boundary.
type CredentialValidation struct {
	Platform    model.Platform
	MissingKeys []string
}

func (e *CredentialValidation) Error() string {
	return fmt.Sprintf("%s: missing required credentials: %v", e.Platform, e.MissingKeys)
}

// TicketIdFormat means the input could not be parsed into a platform id.
// Converted to AgentIntegration at the fetcher boundary.
type TicketIdFormat struct {
	Platform       model.Platform
	ID             string
	ExpectedFormat string
}

func (e *TicketIdFormat) Error() string {
	return fmt.Sprintf("%s: %q does not match expected format %q", e.Platform, e.ID, e.ExpectedFormat)
}

// EnvVarExpansion means a strict-mode ${VAR} placeholder had no value.
type EnvVarExpansion struct {
	Var     string
	Context string
}

func (e *EnvVarExpansion) Error() string {
	return fmt.Sprintf("environment variable %q is not set (%s)", e.Var, e.Context)
}

// ConfigValidation aggregates one or more configuration errors.
type ConfigValidation struct {
	Messages []string
}

func (e *ConfigValidation) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Messages)
}

// UserCancelled means the user aborted an interactive prompt.
type UserCancelled struct{}

func (e *UserCancelled) Error() string     { return "cancelled by user" }
func (e *UserCancelled) ExitCode() ExitCode { return ExitUserCancelled }

// ToAgentIntegration maps a handler-internal CredentialValidation or
// TicketIdFormat error into the unified AgentIntegration kind, per the
// DirectAPIFetcher boundary propagation policy (spec.md §7).
func ToAgentIntegration(agentName string, err error) error {
	if err == nil {
		return nil
	}
	var cv *CredentialValidation
	var tf *TicketIdFormat
	if errors.As(err, &cv) || errors.As(err, &tf) {
		return &AgentIntegration{AgentName: agentName, Inner: err}
	}
	return err
}

// ToAgentFetch maps a handler-internal PlatformApi or PlatformNotFound error
// into the unified AgentFetch kind.
func ToAgentFetch(agentName string, err error) error {
	if err == nil {
		return nil
	}
	var pa *PlatformApi
	var pnf *PlatformNotFound
	if errors.As(err, &pa) || errors.As(err, &pnf) {
		return &AgentFetch{AgentName: agentName, Inner: err}
	}
	return err
}

// ExitCodeFor extracts the exit code for any domain error, defaulting to
// ExitGeneral when the error does not implement TicketFetch.
func ExitCodeFor(err error) ExitCode {
	if err == nil {
		return ExitOK
	}
	var tf TicketFetch
	if errors.As(err, &tf) {
		return tf.ExitCode()
	}
	return ExitGeneral
}
