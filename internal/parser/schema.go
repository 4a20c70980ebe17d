package parser

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildGuideJSONSchema returns the JSON-Schema (draft 2020-12 subset) the
// model's guide response must match. It is sent with the prompt and also used
// to validate the response locally.
func BuildGuideJSONSchema() map[string]any {
	question := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":        map[string]any{"type": "string", "minLength": 1},
			"number":    map[string]any{"type": "string", "minLength": 1},
			"text":      map[string]any{"type": "string", "minLength": 1},
			"max_score": map[string]any{"type": "number", "minimum": 0.0},
			"sub_questions": map[string]any{
				"type":  "array",
				"items": map[string]any{"$ref": "#/$defs/question"},
			},
		},
		"required": []string{"id", "number", "text", "max_score"},
	}

	return map[string]any{
		"type": "object",
		"$defs": map[string]any{
			"question": question,
		},
		"properties": map[string]any{
			"questions": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items":    map[string]any{"$ref": "#/$defs/question"},
			},
			"total_marks": map[string]any{"type": "number", "minimum": 0.0},
			"metadata": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"num_questions":         map[string]any{"type": "integer"},
					"num_sub_questions":     map[string]any{"type": "integer"},
					"extraction_confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
					"extraction_method":     map[string]any{"type": "string"},
					"processing_notes":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
			},
		},
		"required": []string{"questions", "total_marks"},
	}
}

// BuildAnswerJSONSchema returns the schema for an answer-extraction response.
func BuildAnswerJSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"answers": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"question_ref": map[string]any{"type": "string"},
						"text":         map[string]any{"type": "string"},
					},
					"required": []string{"question_ref", "text"},
				},
			},
			"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
		},
		"required": []string{"answers"},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
