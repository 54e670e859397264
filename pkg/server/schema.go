package server

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// messageSchema validates the inbound agent message before the engine
// sees it. The schema is the wire contract with the dispatch fabric:
// unknown fields are rejected so schema drift surfaces as a 400, not as
// silently ignored input.
const messageSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "sender", "recipients", "intent"],
  "additionalProperties": false,
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "sender": {"type": "string", "minLength": 1},
    "recipients": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string", "minLength": 1}
    },
    "intent": {"type": "string", "minLength": 1},
    "payload": {"type": "string"},
    "timestamp": {"type": "string", "format": "date-time"}
  }
}`

// compileMessageSchema compiles the agent message schema once at startup.
func compileMessageSchema() (*jsonschema.Schema, error) {
	schema, err := jsonschema.CompileString("agent_message.schema.json", messageSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to compile message schema: %w", err)
	}
	return schema, nil
}
