package fetch

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// agentTicketSchemaJSON constrains the shape an AI backend must emit when
// asked to normalize a ticket into JSON (spec.md §4.4.1): an id and title
// are mandatory, everything else is free-form platform metadata.
const agentTicketSchemaJSON = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["id", "title"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"title": {"type": "string", "minLength": 1},
		"description": {"type": "string"},
		"status": {"type": "string"},
		"type": {"type": "string"},
		"url": {"type": "string"},
		"assignee": {"type": ["string", "null"]},
		"labels": {"type": "array", "items": {"type": "string"}}
	}
}`

var (
	agentTicketSchemaOnce sync.Once
	agentTicketSchema     *jsonschema.Schema
	agentTicketSchemaErr  error
)

func compiledAgentTicketSchema() (*jsonschema.Schema, error) {
	agentTicketSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("agent-ticket.json", strings.NewReader(agentTicketSchemaJSON)); err != nil {
			agentTicketSchemaErr = err
			return
		}
		agentTicketSchema, agentTicketSchemaErr = compiler.Compile("agent-ticket.json")
	})
	return agentTicketSchema, agentTicketSchemaErr
}

// validateAgentTicketShape rejects an agent's normalized-JSON response
// early, before it is threaded into model.TicketInput, when it is missing
// the mandatory id/title fields or has the wrong types for the fields it
// does carry.
func validateAgentTicketShape(doc map[string]any) error {
	schema, err := compiledAgentTicketSchema()
	if err != nil {
		return fmt.Errorf("compile agent ticket schema: %w", err)
	}
	if err := schema.ValidateInterface(doc); err != nil {
		return fmt.Errorf("agent ticket shape: %w", err)
	}
	return nil
}
