package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// JSONSchema defines the structure for generated schemas (template params,
// tool integration). Definition validation itself runs against the embedded
// popup schema below.
type JSONSchema struct {
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties bool                `json:"additionalProperties,omitempty"`
}

type Property struct {
	Type        string      `json:"type"`
	Description string      `json:"description,omitempty"`
	Default     interface{} `json:"default,omitempty"`
	Minimum     *float64    `json:"minimum,omitempty"`
	Maximum     *float64    `json:"maximum,omitempty"`
	Enum        []string    `json:"enum,omitempty"`
	Pattern     *string     `json:"pattern,omitempty"`
	MinLength   *int        `json:"minLength,omitempty"`
	MaxLength   *int        `json:"maxLength,omitempty"`
	Items       *Property   `json:"items,omitempty"` // For array validation
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// definitionSchemaJSON is the structural schema for the compact popup
// definition form. Elements are discriminated by which kind key is present;
// extra keys stay legal because select/multi carry option children as
// direct keys on the element object.
const definitionSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "popup definition",
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "elements": {
      "type": "array",
      "items": {"$ref": "#/definitions/element"}
    }
  },
  "required": ["elements"],
  "definitions": {
    "element": {
      "type": "object",
      "oneOf": [
        {
          "required": ["text"],
          "properties": {
            "text": {"type": "string"},
            "id": {"type": "string"},
            "when": {"type": "string"}
          }
        },
        {
          "required": ["markdown"],
          "properties": {
            "markdown": {"type": "string"},
            "id": {"type": "string"},
            "when": {"type": "string"}
          }
        },
        {
          "required": ["slider", "min", "max"],
          "properties": {
            "slider": {"type": "string"},
            "id": {"type": "string"},
            "min": {"type": "number"},
            "max": {"type": "number"},
            "default": {"type": "number"},
            "when": {"type": "string"}
          }
        },
        {
          "required": ["check"],
          "properties": {
            "check": {"type": "string"},
            "id": {"type": "string"},
            "default": {"type": "boolean"},
            "reveals": {"$ref": "#/definitions/children"},
            "when": {"type": "string"}
          }
        },
        {
          "required": ["input"],
          "properties": {
            "input": {"type": "string"},
            "id": {"type": "string"},
            "placeholder": {"type": "string"},
            "rows": {"type": "integer", "minimum": 1},
            "default": {"type": "string"},
            "when": {"type": "string"}
          }
        },
        {
          "required": ["multi", "options"],
          "properties": {
            "multi": {"type": "string"},
            "id": {"type": "string"},
            "options": {"$ref": "#/definitions/options"},
            "reveals": {"$ref": "#/definitions/children"},
            "when": {"type": "string"}
          }
        },
        {
          "required": ["select", "options"],
          "properties": {
            "select": {"type": "string"},
            "id": {"type": "string"},
            "options": {"$ref": "#/definitions/options"},
            "default": {"type": "string"},
            "reveals": {"$ref": "#/definitions/children"},
            "when": {"type": "string"}
          }
        },
        {
          "required": ["group", "elements"],
          "properties": {
            "group": {"type": "string"},
            "id": {"type": "string"},
            "elements": {"$ref": "#/definitions/children"},
            "when": {"type": "string"}
          }
        }
      ]
    },
    "children": {
      "oneOf": [
        {"type": "array", "items": {"$ref": "#/definitions/element"}},
        {"$ref": "#/definitions/element"},
        {"type": "string"}
      ]
    },
    "options": {
      "oneOf": [
        {"type": "string"},
        {
          "type": "array",
          "minItems": 1,
          "items": {
            "oneOf": [
              {"type": "string"},
              {
                "type": "object",
                "required": ["value"],
                "properties": {
                  "value": {"type": "string"},
                  "description": {"type": "string"},
                  "because": {"type": "string"}
                }
              }
            ]
          }
        }
      ]
    }
  }
}`

var (
	definitionSchemaOnce sync.Once
	definitionSchema     *gojsonschema.Schema
	definitionSchemaErr  error
)

func compiledDefinitionSchema() (*gojsonschema.Schema, error) {
	definitionSchemaOnce.Do(func() {
		definitionSchema, definitionSchemaErr = gojsonschema.NewSchema(
			gojsonschema.NewStringLoader(definitionSchemaJSON))
	})
	return definitionSchema, definitionSchemaErr
}

// ValidateDefinition validates raw popup definition JSON against the
// embedded schema with detailed errors.
func ValidateDefinition(raw []byte) *ValidationResult {
	schema, err := compiledDefinitionSchema()
	if err != nil {
		return schemaFailure(err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "(root)",
				Message: err.Error(),
				Code:    "INVALID_JSON",
			}},
		}
	}

	return fromSchemaResult(result)
}

// ValidateDefinitionValue validates an already-decoded definition value.
func ValidateDefinitionValue(doc interface{}) *ValidationResult {
	schema, err := compiledDefinitionSchema()
	if err != nil {
		return schemaFailure(err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "(root)",
				Message: err.Error(),
				Code:    "INVALID_DOCUMENT",
			}},
		}
	}

	return fromSchemaResult(result)
}

// ValidateInput validates input against a generated JSON schema with
// detailed errors. Used for template parameter checking.
func ValidateInput(input map[string]interface{}, schema JSONSchema) *ValidationResult {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return schemaFailure(err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(input))
	if err != nil {
		return schemaFailure(err)
	}

	return fromSchemaResult(result)
}

func fromSchemaResult(result *gojsonschema.Result) *ValidationResult {
	if result.Valid() {
		return &ValidationResult{Valid: true}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return &ValidationResult{Valid: false, Errors: errs}
}

func schemaFailure(err error) *ValidationResult {
	return &ValidationResult{
		Valid: false,
		Errors: []ValidationError{{
			Field:   "(schema)",
			Message: err.Error(),
			Code:    "SCHEMA_ERROR",
		}},
	}
}

// ValidateTemplateName validates a registry template name: alphanumeric or
// underscore, starting with a letter.
func ValidateTemplateName(name string) error {
	namingPattern := regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)
	if !namingPattern.MatchString(name) {
		return fmt.Errorf("template name %q is not valid: use only letters, numbers, and underscores, starting with a letter", name)
	}
	return nil
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// GetErrorsForField returns errors for a specific field
func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") || strings.HasPrefix(err.Field, field+"[") {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}
