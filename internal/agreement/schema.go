package agreement

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

const datePattern = `^[0-9]{4}-[0-9]{2}-[0-9]{2}$`
const uuidPattern = `^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`

var createSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"required": ["lead_id", "contract_type", "signed_at"],
	"properties": {
		"lead_id":       {"type": "string", "pattern": "` + uuidPattern + `"},
		"contract_type": {"type": "string", "minLength": 1},
		"signed_at":     {"type": "string", "pattern": "` + datePattern + `"},
		"property_id":   {"type": "string", "pattern": "` + uuidPattern + `"}
	}
}`)

var updateSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"minProperties": 1,
	"properties": {
		"contract_type":       {"type": "string", "minLength": 1},
		"signed_at":           {"type": "string", "pattern": "` + datePattern + `"},
		"reins_registered_at": {"type": "string", "pattern": "` + datePattern + `"},
		"status":              {"type": "string", "enum": ["active", "suspended", "closed"]}
	}
}`)

// validateSchema checks doc against schema and reports the first violation
func validateSchema(schema gojsonschema.JSONLoader, doc interface{}) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}

	first := result.Errors()[0]
	field := first.Field()
	if first.Type() == "required" {
		if p, ok := first.Details()["property"].(string); ok {
			field = p
		}
	}
	return &ValidationError{Field: field, Message: first.Description()}
}
