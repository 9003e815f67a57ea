// cmd/tools/template-manager/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"popup-client/internal/common/validation"
	"popup-client/pkg/registry"
)

// paramSpec is one -param declaration for a scaffolded template.
type paramSpec struct {
	Name        string
	Type        registry.ParamType
	Description string
}

type paramSpecs []paramSpec

func (p *paramSpecs) String() string {
	names := make([]string, 0, len(*p))
	for _, spec := range *p {
		names = append(names, spec.Name)
	}
	return strings.Join(names, ",")
}

func (p *paramSpecs) Set(value string) error {
	parts := strings.SplitN(value, ":", 3)
	if len(parts) < 2 || parts[0] == "" {
		return fmt.Errorf("expected name:type[:description], got %q", value)
	}
	spec := paramSpec{Name: parts[0], Type: registry.ParamType(parts[1])}
	if !spec.Type.Valid() {
		return fmt.Errorf("unknown parameter type %q", parts[1])
	}
	if len(parts) == 3 {
		spec.Description = parts[2]
	}
	*p = append(*p, spec)
	return nil
}

// registryEntryTemplate is the TOML block appended for a new template.
// Scaffolded params start out required so every placeholder renders.
const registryEntryTemplate = `
[[template]]
name = "{{ .Name }}"
description = "{{ .Description }}"
file = "{{ .File }}"
{{ range .Params }}
[template.params.{{ .Name }}]
type = "{{ .Type }}"
required = true
{{- if .Description }}
description = "{{ .Description }}"
{{- end }}
{{ end -}}
`

type entryData struct {
	Name        string
	Description string
	File        string
	Params      paramSpecs
}

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	renderCmd := flag.NewFlagSet("render", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)

	// Add command flags
	addName := addCmd.String("name", "", "Template name (letters, numbers, underscores)")
	addDescription := addCmd.String("description", "", "Template description")
	addFile := addCmd.String("file", "", "Template file name (defaults to <name>.json)")
	addParams := paramSpecs{}
	addCmd.Var(&addParams, "param", "Parameter as name:type[:description] (repeatable)")
	addRegistry := addCmd.String("registry", "templates/popup.toml", "Path to registry file")

	// Validate command flags
	validateRegistryPath := validateCmd.String("registry", "templates/popup.toml", "Path to registry file")

	// Render command flags
	renderTemplate := renderCmd.String("template", "", "Template to instantiate")
	renderParams := map[string]string{}
	renderCmd.Var(keyValueFlag(renderParams), "param", "Parameter as key=value (repeatable)")
	renderRegistry := renderCmd.String("registry", "templates/popup.toml", "Path to registry file")

	// List command flags
	listRegistry := listCmd.String("registry", "templates/popup.toml", "Path to registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *addName == "" || *addDescription == "" {
			fmt.Println("Error: name and description are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		if err := addTemplate(*addRegistry, *addName, *addDescription, *addFile, addParams); err != nil {
			fmt.Printf("Error adding template: %v\n", err)
			os.Exit(1)
		}

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateRegistry(*validateRegistryPath); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}

	case "render":
		renderCmd.Parse(os.Args[2:])
		if *renderTemplate == "" {
			fmt.Println("Error: template is required for render.")
			renderCmd.Usage()
			os.Exit(1)
		}
		if err := renderEntry(*renderRegistry, *renderTemplate, renderParams); err != nil {
			fmt.Printf("Error rendering template: %v\n", err)
			os.Exit(1)
		}

	case "list":
		listCmd.Parse(os.Args[2:])
		if err := listTemplates(*listRegistry); err != nil {
			fmt.Printf("Error listing templates: %v\n", err)
			os.Exit(1)
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

// addTemplate scaffolds a definition file and appends its registry entry.
func addTemplate(registryPath, name, description, file string, params paramSpecs) error {
	if err := validation.ValidateTemplateName(name); err != nil {
		return err
	}

	reg, err := registry.Load(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if _, exists := reg.Lookup(name); exists {
		return fmt.Errorf("template %q already exists", name)
	}

	if file == "" {
		file = name + ".json"
	}
	templatePath := filepath.Join(filepath.Dir(registryPath), file)
	if _, err := os.Stat(templatePath); err == nil {
		return fmt.Errorf("template file %s already exists", templatePath)
	}

	if err := os.MkdirAll(filepath.Dir(templatePath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(templatePath, []byte(scaffoldDefinition(name, params)), 0o644); err != nil {
		return fmt.Errorf("failed to write template file: %w", err)
	}
	fmt.Printf("✓ Generated %s\n", templatePath)

	tmpl, err := template.New("entry").Parse(registryEntryTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse entry template: %w", err)
	}

	registryFile, err := os.OpenFile(registryPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open registry: %w", err)
	}
	defer registryFile.Close()

	entry := entryData{Name: name, Description: description, File: file, Params: params}
	if err := tmpl.Execute(registryFile, entry); err != nil {
		return fmt.Errorf("failed to write registry entry: %w", err)
	}
	fmt.Printf("✓ Registered %s in %s\n", name, registryPath)

	// Reload to prove the generated entry holds together.
	if _, err := registry.Load(registryPath); err != nil {
		return fmt.Errorf("generated entry does not load back: %w", err)
	}

	fmt.Printf("\n✅ Template scaffold generated successfully\n")
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("  1. Edit %s to shape the popup\n", templatePath)
	fmt.Printf("  2. Relax required flags or add defaults in %s\n", registryPath)
	fmt.Printf("  3. Check the result: template-manager render -template %s %s\n", name, sampleParamArgs(params))
	return nil
}

// scaffoldDefinition builds a starter popup where every declared parameter
// becomes an editable element, so the template loads and renders as-is.
func scaffoldDefinition(name string, params paramSpecs) string {
	elements := make([]string, 0, len(params)+1)
	for _, param := range params {
		label := prettify(param.Name)
		switch param.Type {
		case registry.ParamNumber:
			elements = append(elements,
				fmt.Sprintf(`{"slider": %q, "min": 0, "max": 100, "default": {{%s}}}`, label, param.Name))
		case registry.ParamBoolean:
			elements = append(elements,
				fmt.Sprintf(`{"check": %q, "default": {{%s}}}`, label, param.Name))
		case registry.ParamArray:
			elements = append(elements,
				fmt.Sprintf(`{"multi": %q, "options": {{%s}}}`, label, param.Name))
		default:
			elements = append(elements,
				fmt.Sprintf(`{"input": %q, "default": "{{%s}}"}`, label, param.Name))
		}
	}
	if len(elements) == 0 {
		elements = append(elements, `{"text": "Describe this popup"}`)
	}

	var b strings.Builder
	b.WriteString("{\n")
	fmt.Fprintf(&b, "  \"title\": %q,\n", prettify(name))
	b.WriteString("  \"elements\": [\n")
	for i, element := range elements {
		b.WriteString("    " + element)
		if i < len(elements)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("  ]\n}\n")
	return b.String()
}

// validateRegistry loads the registry and instantiates every template with
// sample values, catching entries whose rendered JSON no longer parses.
func validateRegistry(registryPath string) error {
	reg, err := registry.Load(registryPath)
	if err != nil {
		return err
	}

	if reg.Len() == 0 {
		return fmt.Errorf("registry contains no templates")
	}

	for _, tpl := range reg.List() {
		if _, err := tpl.Instantiate(sampleParams(tpl)); err != nil {
			return err
		}
		fmt.Printf("✓ %s\n", tpl.Name)
	}

	fmt.Printf("Registry validation passed. Found %d templates.\n", reg.Len())
	return nil
}

func renderEntry(registryPath, name string, rawParams map[string]string) error {
	reg, err := registry.Load(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	tpl, ok := reg.Lookup(name)
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}

	params := make(map[string]interface{}, len(rawParams))
	for key, raw := range rawParams {
		param, ok := tpl.Params[key]
		if !ok {
			return fmt.Errorf("template %q has no parameter %q", name, key)
		}
		value, err := param.Coerce(raw)
		if err != nil {
			return fmt.Errorf("parameter %q: %w", key, err)
		}
		params[key] = value
	}

	def, err := tpl.Instantiate(params)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func listTemplates(registryPath string) error {
	reg, err := registry.Load(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	if reg.Len() == 0 {
		fmt.Printf("No templates found in %s\n", registryPath)
		return nil
	}

	fmt.Printf("Found %d templates in %s:\n\n", reg.Len(), registryPath)
	for _, tpl := range reg.List() {
		fmt.Printf("%s - %s (%s)\n", tpl.Name, tpl.Description, tpl.File)
		names := make([]string, 0, len(tpl.Params))
		for name := range tpl.Params {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			param := tpl.Params[name]
			line := fmt.Sprintf("  %s: %s", name, param.Type)
			if param.Required {
				line += " (required)"
			}
			if param.Description != "" {
				line += " - " + param.Description
			}
			fmt.Println(line)
		}
	}
	return nil
}

// sampleParams fills every declared parameter with a representative value.
func sampleParams(tpl *registry.LoadedTemplate) map[string]interface{} {
	params := make(map[string]interface{}, len(tpl.Params))
	for name, param := range tpl.Params {
		if param.Default != nil {
			continue
		}
		params[name] = sampleValue(param.Type)
	}
	return params
}

func sampleValue(paramType registry.ParamType) interface{} {
	switch paramType {
	case registry.ParamNumber:
		return float64(42)
	case registry.ParamBoolean:
		return true
	case registry.ParamArray:
		return []interface{}{"sample"}
	default:
		return "sample"
	}
}

func sampleParamArgs(params paramSpecs) string {
	args := make([]string, 0, len(params))
	for _, param := range params {
		args = append(args, fmt.Sprintf("-param %s=...", param.Name))
	}
	return strings.Join(args, " ")
}

// prettify turns a snake_case template or parameter name into a label.
func prettify(name string) string {
	words := strings.Split(name, "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

// keyValueFlag adapts a string map to flag.Value for repeated key=value flags.
type keyValueFlag map[string]string

func (k keyValueFlag) String() string {
	pairs := make([]string, 0, len(k))
	for key, value := range k {
		pairs = append(pairs, key+"="+value)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func (k keyValueFlag) Set(value string) error {
	key, val, found := strings.Cut(value, "=")
	if !found || key == "" {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	k[key] = val
	return nil
}

func help() {
	fmt.Print(`
Usage: template-manager <command> [flags]

Commands:
  add      Scaffold a template file and append its registry entry
  validate Load the registry and test-render every template
  render   Instantiate a template with parameters and print the result
  list     List the templates in the registry
  help     Show this help message

Examples:
  template-manager add -name confirm_action -description "Yes/no confirmation" -param title:string:"Popup title" -param proceed:boolean
  template-manager validate -registry templates/popup.toml
  template-manager render -template confirm_action -param title="Delete everything?"
  template-manager list

Use 'template-manager <command> -h' for more information about a command.

`)
}
