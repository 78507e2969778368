package taskdef

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Rendered definitions are checked against this schema before they reach
// the API, so a bad template value fails with a pointed message instead of
// an opaque registration error.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["family", "containerDefinitions"],
  "properties": {
    "family": {
      "type": "string",
      "minLength": 1,
      "pattern": "^[a-zA-Z0-9_-]+$"
    },
    "taskRoleArn": {"type": "string", "minLength": 1},
    "executionRoleArn": {"type": "string", "minLength": 1},
    "networkMode": {
      "type": "string",
      "enum": ["bridge", "host", "awsvpc", "none"]
    },
    "cpu": {"type": "string"},
    "memory": {"type": "string"},
    "containerDefinitions": {
      "type": "array",
      "minItems": 2,
      "items": {
        "type": "object",
        "required": ["name", "image"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "image": {"type": "string", "minLength": 1},
          "essential": {"type": "boolean"},
          "memoryReservation": {"type": "integer", "minimum": 1},
          "environment": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name", "value"],
              "properties": {
                "name": {"type": "string"},
                "value": {"type": "string"}
              }
            }
          }
        }
      }
    }
  }
}`

// ValidateDocument checks one rendered task definition against the schema.
func ValidateDocument(rendered []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(documentSchema),
		gojsonschema.NewBytesLoader(rendered),
	)
	if err != nil {
		return fmt.Errorf("taskdef: validate rendered definition: %w", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return fmt.Errorf("taskdef: rendered definition invalid: %s", strings.Join(problems, "; "))
}
