// cmd/popup-cli/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"

	"popup-client/internal/common/config"
	"popup-client/internal/common/logger"
	"popup-client/internal/common/validation"
	"popup-client/internal/popup"
	"popup-client/internal/requester"
	"popup-client/pkg/registry"
)

// paramFlags collects repeated -param key=value flags.
type paramFlags map[string]string

func (p paramFlags) String() string {
	pairs := make([]string, 0, len(p))
	for k, v := range p {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func (p paramFlags) Set(value string) error {
	key, val, found := strings.Cut(value, "=")
	if !found || key == "" {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	p[key] = val
	return nil
}

func main() {
	showCmd := flag.NewFlagSet("show", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	renderCmd := flag.NewFlagSet("render", flag.ExitOnError)
	templatesCmd := flag.NewFlagSet("templates", flag.ExitOnError)
	stateCmd := flag.NewFlagSet("state", flag.ExitOnError)

	// Show command flags
	showFile := showCmd.String("file", "", "Definition JSON file (use - for stdin)")
	showTemplate := showCmd.String("template", "", "Registry template to instantiate instead of -file")
	showParams := paramFlags{}
	showCmd.Var(showParams, "param", "Template parameter as key=value (repeatable)")
	showTimeout := showCmd.Int("timeout", 0, "Popup timeout in milliseconds (0 uses the configured default)")
	showValidate := showCmd.Bool("validate", false, "Schema-validate the definition before sending")
	showRegistry := showCmd.String("registry", "", "Registry TOML path (defaults to the configured path)")

	// Validate command flags
	validateFile := validateCmd.String("file", "", "Definition JSON file (use - for stdin)")

	// Render command flags
	renderTemplate := renderCmd.String("template", "", "Registry template to instantiate")
	renderParams := paramFlags{}
	renderCmd.Var(renderParams, "param", "Template parameter as key=value (repeatable)")
	renderRegistry := renderCmd.String("registry", "", "Registry TOML path (defaults to the configured path)")

	// Templates command flags
	templatesRegistry := templatesCmd.String("registry", "", "Registry TOML path (defaults to the configured path)")

	// State command flags
	stateFile := stateCmd.String("file", "", "Definition JSON file (use - for stdin)")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fail("config load failed: %v", err)
	}

	switch os.Args[1] {
	case "show":
		showCmd.Parse(os.Args[2:])
		runShow(cfg, *showFile, *showTemplate, showParams, *showTimeout, *showValidate, registryPath(cfg, *showRegistry))

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if *validateFile == "" {
			fail("validate requires -file")
		}
		runValidate(*validateFile)

	case "render":
		renderCmd.Parse(os.Args[2:])
		if *renderTemplate == "" {
			fail("render requires -template")
		}
		runRender(*renderTemplate, renderParams, registryPath(cfg, *renderRegistry))

	case "templates":
		templatesCmd.Parse(os.Args[2:])
		runTemplates(registryPath(cfg, *templatesRegistry))

	case "state":
		stateCmd.Parse(os.Args[2:])
		if *stateFile == "" {
			fail("state requires -file")
		}
		runState(*stateFile)

	case "help":
		fallthrough
	default:
		help()
	}
}

// runShow sends a popup definition and prints the result envelope.
func runShow(cfg *config.Config, file, template string, params paramFlags, timeoutMs int, validate bool, registryPath string) {
	def := resolveDefinition(file, template, params, validate, registryPath)

	reqCfg := requesterConfig(cfg)
	log := logger.NewStructured(cfg.Logging.Level, "console").WithFields(map[string]interface{}{
		"correlation_id": uuid.New().String(),
	})

	req := requester.New(reqCfg, log)

	var result requester.Result
	if timeoutMs > 0 {
		result = req.ShowPopupWithTimeout(context.Background(), def, timeoutMs)
	} else {
		result = req.ShowPopup(context.Background(), def)
	}

	printJSON(result)
	if result.Status() == requester.StatusError {
		os.Exit(1)
	}
}

func runValidate(file string) {
	raw := readDefinition(file)

	result := validation.ValidateDefinition(raw)
	if !result.Valid {
		fmt.Fprintln(os.Stderr, "Definition failed schema validation:")
		for _, msg := range result.GetErrorMessages() {
			fmt.Fprintf(os.Stderr, "  - %s\n", msg)
		}
		os.Exit(1)
	}

	if _, err := popup.ParseDefinition(raw); err != nil {
		fail("definition does not decode: %v", err)
	}

	fmt.Println("Definition is valid.")
}

func runRender(template string, params paramFlags, registryPath string) {
	reg, err := registry.Load(registryPath)
	if err != nil {
		fail("registry load failed: %v", err)
	}

	def, err := instantiate(reg, template, params)
	if err != nil {
		fail("%v", err)
	}

	printJSON(def)
}

func runTemplates(registryPath string) {
	reg, err := registry.Load(registryPath)
	if err != nil {
		fail("registry load failed: %v", err)
	}

	if reg.Len() == 0 {
		fmt.Printf("No templates found in %s\n", registryPath)
		return
	}

	for _, tpl := range reg.List() {
		fmt.Printf("%s - %s\n", tpl.Name, tpl.Description)
		if len(tpl.Params) > 0 {
			names := make([]string, 0, len(tpl.Params))
			for name := range tpl.Params {
				names = append(names, name)
			}
			sort.Strings(names)
			decls := make([]string, 0, len(names))
			for _, name := range names {
				param := tpl.Params[name]
				decl := fmt.Sprintf("%s (%s", name, param.Type)
				if param.Required {
					decl += ", required"
				}
				decl += ")"
				decls = append(decls, decl)
			}
			fmt.Printf("  params: %s\n", strings.Join(decls, ", "))
		}
		for _, example := range tpl.Examples {
			fmt.Printf("  example: %s\n", example)
		}
		if tpl.Notes != "" {
			fmt.Printf("  notes: %s\n", tpl.Notes)
		}
	}
}

// runState prints the initial state, value map, and visible element IDs
// for a definition, the way the popup would first draw it.
func runState(file string) {
	raw := readDefinition(file)

	def, err := popup.ParseDefinition(raw)
	if err != nil {
		fail("definition does not decode: %v", err)
	}

	state := popup.NewState(def)
	values := state.ValueMap(def)
	printJSON(map[string]interface{}{
		"state":  state,
		"values": values,
		"active": def.ActiveIDs(values),
	})
}

// resolveDefinition produces the definition to send: either a registry
// template instantiation or a JSON file/stdin read.
func resolveDefinition(file, template string, params paramFlags, validate bool, registryPath string) *popup.Definition {
	if template != "" {
		reg, err := registry.Load(registryPath)
		if err != nil {
			fail("registry load failed: %v", err)
		}
		def, err := instantiate(reg, template, params)
		if err != nil {
			fail("%v", err)
		}
		return def
	}

	if file == "" {
		fail("show requires -file or -template")
	}

	raw := readDefinition(file)
	if validate {
		result := validation.ValidateDefinition(raw)
		if !result.Valid {
			fmt.Fprintln(os.Stderr, "Definition failed schema validation:")
			for _, msg := range result.GetErrorMessages() {
				fmt.Fprintf(os.Stderr, "  - %s\n", msg)
			}
			os.Exit(1)
		}
	}

	def, err := popup.ParseDefinition(raw)
	if err != nil {
		fail("definition does not decode: %v", err)
	}
	return def
}

// instantiate coerces raw key=value params through the template's declared
// types and renders the definition.
func instantiate(reg *registry.Registry, name string, params paramFlags) (*popup.Definition, error) {
	tpl, ok := reg.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown template %q", name)
	}

	coerced := make(map[string]interface{}, len(params))
	for key, raw := range params {
		param, ok := tpl.Params[key]
		if !ok {
			return nil, fmt.Errorf("template %q has no parameter %q", name, key)
		}
		value, err := param.Coerce(raw)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", key, err)
		}
		coerced[key] = value
	}

	return tpl.Instantiate(coerced)
}

// requesterConfig merges the environment with the config file: bare env
// vars win, the popup config section fills the gaps.
func requesterConfig(cfg *config.Config) requester.Config {
	reqCfg := requester.FromEnv()
	if reqCfg.Host == "" {
		reqCfg.Host = cfg.Popup.Host
	}
	if reqCfg.AuthToken == "" {
		reqCfg.AuthToken = cfg.Popup.AuthToken
	}
	if cfg.Popup.DefaultTimeoutMs > 0 {
		reqCfg.TimeoutMs = cfg.Popup.DefaultTimeoutMs
	}
	return reqCfg
}

func readDefinition(file string) []byte {
	if file == "-" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			fail("reading stdin: %v", err)
		}
		return raw
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		fail("reading definition: %v", err)
	}
	return raw
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fail("encoding output: %v", err)
	}
	fmt.Println(string(data))
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func registryPath(cfg *config.Config, override string) string {
	if override != "" {
		return override
	}
	return cfg.Registry.Path
}

func help() {
	fmt.Print(`
Usage: popup-cli <command> [flags]

Commands:
  show      Send a popup definition and print the result envelope
  validate  Schema-validate a definition file
  render    Instantiate a registry template and print the definition
  templates List the templates in the registry
  state     Print the initial state and value map for a definition
  help      Show this help message

Examples:
  popup-cli show -file popup.json -timeout 30000
  cat popup.json | popup-cli show -file - -validate
  popup-cli show -template confirm_action -param title="Delete everything?"
  popup-cli render -template quick_settings -param volume=30
  popup-cli templates
  popup-cli state -file popup.json

The popup server address and token come from HOST and POPUP_AUTH_TOKEN
(a .env file next to the binary or the project root is honored), with
the popup section of configs/config.yaml as a fallback.

Use 'popup-cli <command> -h' for more information about a command.

`)
}
