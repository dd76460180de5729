package storage

import (
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// stateSchemaJSON describes the current (3.0) state payload. Import uses it
// as the strict gate; the load path stays tolerant and repairs instead.
const stateSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["boards"],
  "properties": {
    "boards": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name", "tasks"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string", "minLength": 1, "maxLength": 50},
          "description": {"type": "string", "maxLength": 200},
          "color": {"type": "string", "pattern": "^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$"},
          "tasks": {"type": "array", "items": {"$ref": "#/$defs/task"}},
          "archivedTasks": {"type": "array", "items": {"$ref": "#/$defs/task"}},
          "isDefault": {"type": "boolean"},
          "isArchived": {"type": "boolean"},
          "createdDate": {"type": "string"},
          "lastModified": {"type": "integer"}
        }
      }
    },
    "currentBoardId": {"type": "string"},
    "filter": {"type": "string", "enum": ["all", "todo", "doing", "done"]}
  },
  "$defs": {
    "task": {
      "type": "object",
      "required": ["id", "text", "status"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "text": {"type": "string", "minLength": 1, "maxLength": 200},
        "status": {"type": "string", "enum": ["todo", "doing", "done"]},
        "createdDate": {"type": "string"},
        "lastModified": {"type": "integer"},
        "completedDate": {"type": "string"},
        "archived": {"type": "boolean"},
        "archivedDate": {"type": "string"}
      }
    }
  }
}`

var (
	stateSchemaOnce sync.Once
	stateSchema     *jsonschema.Schema
	stateSchemaErr  error
)

func compiledStateSchema() (*jsonschema.Schema, error) {
	stateSchemaOnce.Do(func() {
		stateSchema, stateSchemaErr = jsonschema.CompileString("state.schema.json", stateSchemaJSON)
	})
	return stateSchema, stateSchemaErr
}

// validateStateShape checks a generic current-schema payload. When the
// compiled schema is unavailable it falls back to minimal structural checks
// rather than accepting everything.
func validateStateShape(data any) error {
	schema, err := compiledStateSchema()
	if err != nil {
		return validateStateMinimal(data)
	}
	if err := schema.Validate(data); err != nil {
		return fmt.Errorf("state payload: %w", err)
	}
	return nil
}

func validateStateMinimal(data any) error {
	obj, ok := data.(map[string]any)
	if !ok {
		return fmt.Errorf("state payload: expected an object")
	}
	boards, ok := obj["boards"].([]any)
	if !ok {
		return fmt.Errorf("state payload: missing boards array")
	}
	for i, item := range boards {
		board, ok := item.(map[string]any)
		if !ok {
			return fmt.Errorf("boards[%d]: expected an object", i)
		}
		if id, _ := board["id"].(string); id == "" {
			return fmt.Errorf("boards[%d].id: missing required field", i)
		}
		if name, _ := board["name"].(string); name == "" {
			return fmt.Errorf("boards[%d].name: missing required field", i)
		}
	}
	return nil
}
