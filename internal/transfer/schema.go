package transfer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var statusSchemaDoc = map[string]any{
	"type":     "object",
	"required": []any{"status"},
	"properties": map[string]any{
		"uuid":          map[string]any{"type": "string"},
		"status":        map[string]any{"type": "string"},
		"error_message": map[string]any{"type": []any{"string", "null"}},
		"result": map[string]any{
			"type": []any{"object", "null"},
			"properties": map[string]any{
				"bullet_points": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":     "object",
						"required": []any{"point"},
						"properties": map[string]any{
							"point": map[string]any{"type": "string"},
						},
					},
				},
				"quiz_questions": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":     "object",
						"required": []any{"question", "option_a", "option_b", "option_c", "option_d", "correct_answer"},
					},
				},
				"flashcards": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":     "object",
						"required": []any{"front", "back"},
					},
				},
			},
		},
	},
}

var statusSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	b, err := json.Marshal(statusSchemaDoc)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("status.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("status.json")
})

// validateStatusBody checks a status response before it is decoded.
func validateStatusBody(data []byte) error {
	schema, err := statusSchema()
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
