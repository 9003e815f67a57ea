// pkg/registry/schema.go
package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"popup-client/internal/common/validation"
)

// ParamType enumerates the value types a template parameter may declare.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
	ParamArray   ParamType = "array"
)

func (p ParamType) Valid() bool {
	switch p {
	case ParamString, ParamNumber, ParamBoolean, ParamArray:
		return true
	}
	return false
}

// Template is one [[template]] entry from the registry file.
type Template struct {
	Name        string                   `toml:"name" json:"name"`
	Description string                   `toml:"description" json:"description"`
	File        string                   `toml:"file" json:"file"`
	Params      map[string]TemplateParam `toml:"params" json:"params,omitempty"`
	Examples    []string                 `toml:"examples" json:"examples,omitempty"`
	Notes       string                   `toml:"notes" json:"notes,omitempty"`
}

// TemplateParam declares one named parameter of a template.
type TemplateParam struct {
	Type        ParamType   `toml:"type" json:"type"`
	Description string      `toml:"description" json:"description,omitempty"`
	Required    bool        `toml:"required" json:"required,omitempty"`
	Default     interface{} `toml:"default" json:"default,omitempty"`
}

// Coerce converts a raw command-line value into the parameter's declared
// type. Arrays accept either a JSON array or a comma-separated list.
func (p TemplateParam) Coerce(raw string) (interface{}, error) {
	switch p.Type {
	case ParamString:
		return raw, nil
	case ParamNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("expected a number, got %q", raw)
		}
		return n, nil
	case ParamBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("expected a boolean, got %q", raw)
		}
		return b, nil
	case ParamArray:
		if strings.HasPrefix(strings.TrimSpace(raw), "[") {
			var arr []interface{}
			if err := json.Unmarshal([]byte(raw), &arr); err != nil {
				return nil, fmt.Errorf("expected a JSON array: %w", err)
			}
			return arr, nil
		}
		parts := strings.Split(raw, ",")
		arr := make([]interface{}, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				arr = append(arr, trimmed)
			}
		}
		return arr, nil
	}
	return nil, fmt.Errorf("unknown parameter type %q", p.Type)
}

// ParamSchema builds a JSON schema describing the template's parameters,
// the shape tool integrations advertise for input validation.
func (t *Template) ParamSchema() validation.JSONSchema {
	properties := make(map[string]validation.Property, len(t.Params))
	var required []string

	for name, param := range t.Params {
		properties[name] = validation.Property{
			Type:        string(param.Type),
			Description: param.Description,
			Default:     param.Default,
		}
		if param.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)

	return validation.JSONSchema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

// ValidateParams checks a parameter map against the template's schema.
func (t *Template) ValidateParams(params map[string]interface{}) *validation.ValidationResult {
	return validation.ValidateInput(params, t.ParamSchema())
}
