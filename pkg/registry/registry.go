// pkg/registry/registry.go
//
// Package registry loads reusable popup definition templates from a TOML
// file. Each [[template]] entry points at a JSON definition file with
// {{param}} placeholders; Instantiate fills the placeholders and parses
// the result into a popup.Definition.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"popup-client/internal/common/validation"
	"popup-client/internal/popup"
)

// LoadedTemplate is a registry entry together with its file content and
// the placeholder names found in it.
type LoadedTemplate struct {
	Template
	Content   string
	Variables []string
}

// Registry holds the templates loaded at startup, in file order.
type Registry struct {
	templates []*LoadedTemplate
	byName    map[string]*LoadedTemplate
}

type registryFile struct {
	Templates []Template `toml:"template"`
}

// Load reads the registry file and every template it references. A missing
// registry file is not an error: it yields an empty registry, the same as
// running without templates configured.
//
// The TOML is decoded with go-toml directly because parameter names are
// case-sensitive map keys, which viper's config layer would lowercase.
func Load(path string) (*Registry, error) {
	reg := &Registry{byName: make(map[string]*LoadedTemplate)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return reg, nil
		}
		return nil, err
	}

	var file registryFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	baseDir := filepath.Dir(path)
	for _, tpl := range file.Templates {
		if err := validation.ValidateTemplateName(tpl.Name); err != nil {
			return nil, err
		}
		if _, dup := reg.byName[tpl.Name]; dup {
			return nil, fmt.Errorf("duplicate template %q", tpl.Name)
		}
		for paramName, param := range tpl.Params {
			if !param.Type.Valid() {
				return nil, fmt.Errorf("template %q parameter %q has unknown type %q",
					tpl.Name, paramName, param.Type)
			}
		}

		content, err := os.ReadFile(filepath.Join(baseDir, tpl.File))
		if err != nil {
			return nil, fmt.Errorf("load template %s: %w", tpl.File, err)
		}

		loaded := &LoadedTemplate{
			Template:  tpl,
			Content:   string(content),
			Variables: extractVariables(string(content)),
		}
		for _, variable := range loaded.Variables {
			if _, ok := tpl.Params[variable]; !ok {
				return nil, fmt.Errorf("template %q references {{%s}} but defines no such parameter",
					tpl.Name, variable)
			}
		}

		reg.templates = append(reg.templates, loaded)
		reg.byName[tpl.Name] = loaded
	}

	return reg, nil
}

// List returns all templates in registry file order.
func (r *Registry) List() []*LoadedTemplate {
	return r.templates
}

// Len returns the number of loaded templates.
func (r *Registry) Len() int {
	return len(r.templates)
}

// Lookup finds a template by name.
func (r *Registry) Lookup(name string) (*LoadedTemplate, bool) {
	tpl, ok := r.byName[name]
	return tpl, ok
}

// Instantiate renders the named template with the given parameters and
// parses the result into a definition.
func (r *Registry) Instantiate(name string, params map[string]interface{}) (*popup.Definition, error) {
	tpl, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown template %q", name)
	}
	return tpl.Instantiate(params)
}

// Instantiate renders the template and parses the result.
func (t *LoadedTemplate) Instantiate(params map[string]interface{}) (*popup.Definition, error) {
	rendered, err := t.Render(params)
	if err != nil {
		return nil, err
	}
	def, err := popup.ParseDefinition([]byte(rendered))
	if err != nil {
		return nil, fmt.Errorf("template %q produced an invalid definition: %w", t.Name, err)
	}
	return def, nil
}

// Render substitutes parameters into the template content. Values resolve
// provided first, then the declared default; a required parameter with
// neither is an error, and an optional one renders as the empty string.
// String values insert as-is, everything else inserts as compact JSON.
func (t *LoadedTemplate) Render(params map[string]interface{}) (string, error) {
	filled := make(map[string]interface{}, len(t.Params))
	for name, param := range t.Params {
		if value, ok := params[name]; ok {
			filled[name] = value
			continue
		}
		if param.Default != nil {
			filled[name] = param.Default
			continue
		}
		if param.Required {
			return "", fmt.Errorf("required parameter %q not provided", name)
		}
	}

	var out strings.Builder
	for _, seg := range splitTemplate(t.Content) {
		if seg.name == "" {
			out.WriteString(seg.text)
			continue
		}
		if value, ok := filled[seg.name]; ok {
			out.WriteString(renderValue(value))
		}
	}
	return out.String(), nil
}

// segment is one run of template content: either literal text or a
// {{name}} placeholder.
type segment struct {
	text string
	name string
}

// splitTemplate breaks template content into literal runs and placeholders.
// Block directives ({{#...}} and {{/...}}), empty braces, and an
// unterminated {{ stay literal so they survive rendering untouched.
func splitTemplate(content string) []segment {
	var segments []segment
	var literal strings.Builder

	flush := func() {
		if literal.Len() > 0 {
			segments = append(segments, segment{text: literal.String()})
			literal.Reset()
		}
	}

	for i := 0; i < len(content); {
		if !strings.HasPrefix(content[i:], "{{") {
			literal.WriteByte(content[i])
			i++
			continue
		}

		end := strings.Index(content[i+2:], "}}")
		if end < 0 {
			literal.WriteString(content[i:])
			break
		}

		raw := content[i : i+2+end+2]
		trimmed := strings.TrimSpace(content[i+2 : i+2+end])
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "/") {
			literal.WriteString(raw)
		} else {
			flush()
			segments = append(segments, segment{text: raw, name: strings.Fields(trimmed)[0]})
		}
		i += 2 + end + 2
	}
	flush()

	return segments
}

// extractVariables lists the distinct placeholder names in template
// content, in first-appearance order.
func extractVariables(content string) []string {
	var vars []string
	seen := make(map[string]bool)
	for _, seg := range splitTemplate(content) {
		if seg.name == "" || seen[seg.name] {
			continue
		}
		seen[seg.name] = true
		vars = append(vars, seg.name)
	}
	return vars
}

func renderValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(b)
	}
}
