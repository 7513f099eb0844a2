package httpapi

import (
	"encoding/json"
	"errors"
	"strings"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"
)

// Request bodies are validated against fixed JSON schemas before any
// business logic runs, so handlers only ever see well-formed shapes.
const (
	registerSchemaJSON = `{
		"type": "object",
		"properties": {
			"email": {"type": "string", "minLength": 3, "maxLength": 254},
			"name": {"type": "string", "maxLength": 200}
		},
		"required": ["email"],
		"additionalProperties": false
	}`

	askSchemaJSON = `{
		"type": "object",
		"properties": {
			"prompt": {"type": "string", "minLength": 1}
		},
		"required": ["prompt"],
		"additionalProperties": false
	}`
)

var (
	registerSchema = mustCompileSchema("register.json", registerSchemaJSON)
	askSchema      = mustCompileSchema("ask.json", askSchemaJSON)
)

func mustCompileSchema(name, schemaJSON string) *santhosh.Schema {
	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft7
	if err := compiler.AddResource(name, strings.NewReader(schemaJSON)); err != nil {
		panic(err)
	}
	return compiler.MustCompile(name)
}

// validateBody checks raw JSON against a pre-compiled schema and returns
// a single human-readable message on failure.
func validateBody(sch *santhosh.Schema, raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return errors.New("invalid json body")
	}
	if err := sch.Validate(v); err != nil {
		var ve *santhosh.ValidationError
		if errors.As(err, &ve) {
			msgs := collectValidationErrors(ve)
			if len(msgs) > 0 {
				return errors.New(msgs[0])
			}
		}
		return errors.New("request does not match schema")
	}
	return nil
}

func collectValidationErrors(ve *santhosh.ValidationError) []string {
	var msgs []string
	for _, cause := range ve.Causes {
		msgs = append(msgs, collectValidationErrors(cause)...)
	}
	if len(ve.Causes) == 0 {
		msgs = append(msgs, ve.Error())
	}
	return msgs
}
