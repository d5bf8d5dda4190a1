package httpapi

import (
	"errors"
	"strings"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"
)

// Shape guard for the validate endpoint: a flat object whose only keys are the
// three known fields, each carrying any JSON scalar. Presence is meaningful,
// so the schema marks nothing required; unknown keys are rejected here rather
// than silently ignored.
const validatePayloadSchema = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"email":    {"type": ["string", "null", "number", "integer", "boolean"]},
		"password": {"type": ["string", "null", "number", "integer", "boolean"]},
		"phone":    {"type": ["string", "null", "number", "integer", "boolean"]}
	}
}`

var payloadSchema = mustCompilePayloadSchema()

func mustCompilePayloadSchema() *santhosh.Schema {
	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft7
	if err := compiler.AddResource("validate.json", strings.NewReader(validatePayloadSchema)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("validate.json")
}

func validatePayloadShape(shape any) error {
	if err := payloadSchema.Validate(shape); err != nil {
		var ve *santhosh.ValidationError
		if errors.As(err, &ve) {
			return errors.New("invalid request shape: " + leafCause(ve).Message)
		}
		return errors.New("invalid request shape")
	}
	return nil
}

func leafCause(ve *santhosh.ValidationError) *santhosh.ValidationError {
	if len(ve.Causes) == 0 {
		return ve
	}
	return leafCause(ve.Causes[0])
}
