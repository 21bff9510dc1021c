package pipeline

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Completion output is untrusted: every payload is checked against a
// compiled JSON Schema before it is decoded into a domain type. A schema
// failure is returned as an error so the retry wrapper re-issues the whole
// completion call.

const questionSchemaFragment = `{
	"type": "object",
	"required": ["question", "options", "answerIndex"],
	"properties": {
		"question": {"type": "string", "minLength": 1},
		"options": {
			"type": "array",
			"minItems": 4,
			"maxItems": 4,
			"items": {"type": "string", "minLength": 1}
		},
		"answerIndex": {"type": "integer", "minimum": 0, "maximum": 3}
	}
}`

var (
	enrichmentSchema = mustCompileSchema(`{
		"type": "object",
		"required": ["title", "summary", "importance"],
		"properties": {
			"title": {"type": "string", "minLength": 1},
			"summary": {
				"type": "array",
				"minItems": 2,
				"maxItems": 3,
				"items": {"type": "string", "minLength": 1}
			},
			"importance": {"type": "integer", "minimum": 1, "maximum": 5}
		}
	}`)

	topicQuizSchema = mustCompileSchema(`{
		"type": "object",
		"required": ["questions"],
		"properties": {
			"questions": {
				"type": "array",
				"minItems": 2,
				"maxItems": 4,
				"items": ` + questionSchemaFragment + `
			}
		}
	}`)

	flatQuizSchema = mustCompileSchema(`{
		"type": "object",
		"required": ["title", "questions"],
		"properties": {
			"title": {"type": "string", "minLength": 1},
			"questions": {
				"type": "array",
				"minItems": 5,
				"maxItems": 10,
				"items": ` + questionSchemaFragment + `
			}
		}
	}`)
)

func mustCompileSchema(raw string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("pipeline: invalid schema: %v", err))
	}
	return schema
}

// validateAgainst checks a raw JSON document against a compiled schema and
// folds all violations into a single error.
func validateAgainst(schema *gojsonschema.Schema, document string) error {
	result, err := schema.Validate(gojsonschema.NewStringLoader(document))
	if err != nil {
		return fmt.Errorf("validating completion output: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var reasons []string
	for _, desc := range result.Errors() {
		reasons = append(reasons, desc.String())
	}
	return fmt.Errorf("completion output failed schema validation: %s", strings.Join(reasons, "; "))
}

// stripCodeFence removes a surrounding markdown code fence, with or without
// a language tag, from a completion payload. Models wrap JSON in fences
// often enough that this runs on every payload.
func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		first := strings.TrimSpace(trimmed[:idx])
		// A language tag ("json") occupies the rest of the fence line.
		if first == "" || !strings.ContainsAny(first, "{[") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
