package command

import (
	"encoding/json"
	"fmt"
	"strings"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/command-request-v1.json
var commandRequestSchemaJSON string

// Validator checks incoming command request payloads against the embedded
// schema before anything reaches the queue.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource("command-request-v1.json",
		strings.NewReader(commandRequestSchemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	schema, err := compiler.Compile("command-request-v1.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// ValidateRequest validates a raw command request body.
func (v *Validator) ValidateRequest(data []byte) error {
	var payload interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := v.schema.Validate(payload); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return nil
}
