package popup

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func parseElement(t *testing.T, src string) Element {
	t.Helper()
	var el Element
	require.NoError(t, json.Unmarshal([]byte(src), &el))
	return el
}

func encodeToMap(t *testing.T, el Element) map[string]interface{} {
	t.Helper()
	data, err := json.Marshal(el)
	require.NoError(t, err)
	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &obj))
	return obj
}

// ==========================
// ID Derivation Tests
// ==========================

func TestSnakeCaseID(t *testing.T) {
	tests := []struct {
		label    string
		expected string
	}{
		{"Volume", "volume"},
		{"CPU Usage", "cpu_usage"},
		{"HTTPServer", "http_server"},
		{"getHTTPResponse", "get_http_response"},
		{"EnableDebug", "enable_debug"},
		{"What's the cause?", "whats_the_cause"},
		{"Debug Level (1-10)", "debug_level_1_10"},
		{"my-option", "my_option"},
		{"  Spaced  Out  ", "spaced_out"},
		{"already_snake", "already_snake"},
		{"", ""},
		{"???", ""},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.expected, SnakeCaseID(tt.label))
		})
	}
}

// ==========================
// Decode Tests
// ==========================

func TestElement_DecodeKinds(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		validate func(t *testing.T, el Element)
	}{
		{
			name: "text",
			src:  `{"text": "Hello"}`,
			validate: func(t *testing.T, el Element) {
				assert.Equal(t, KindText, el.Kind)
				assert.Equal(t, "Hello", el.Label)
				assert.Empty(t, el.ID)
			},
		},
		{
			name: "markdown",
			src:  `{"markdown": "# Title", "id": "heading"}`,
			validate: func(t *testing.T, el Element) {
				assert.Equal(t, KindMarkdown, el.Kind)
				assert.Equal(t, "# Title", el.Label)
				assert.Equal(t, "heading", el.ID)
			},
		},
		{
			name: "slider with default",
			src:  `{"slider": "Volume", "min": 0, "max": 100, "default": 75}`,
			validate: func(t *testing.T, el Element) {
				assert.Equal(t, KindSlider, el.Kind)
				assert.Equal(t, "volume", el.ID)
				assert.Equal(t, 0.0, el.Min)
				assert.Equal(t, 100.0, el.Max)
				require.NotNil(t, el.DefaultNumber)
				assert.Equal(t, 75.0, *el.DefaultNumber)
			},
		},
		{
			name: "slider without default",
			src:  `{"slider": "Volume", "min": 0, "max": 100}`,
			validate: func(t *testing.T, el Element) {
				assert.Nil(t, el.DefaultNumber)
			},
		},
		{
			name: "check with reveals",
			src:  `{"check": "Enable Debug", "default": true, "reveals": [{"input": "Log Path"}]}`,
			validate: func(t *testing.T, el Element) {
				assert.Equal(t, KindCheck, el.Kind)
				assert.Equal(t, "enable_debug", el.ID)
				assert.True(t, el.DefaultBool)
				require.Len(t, el.Reveals, 1)
				assert.Equal(t, KindInput, el.Reveals[0].Kind)
				assert.Equal(t, "log_path", el.Reveals[0].ID)
			},
		},
		{
			name: "check non-bool default is ignored",
			src:  `{"check": "Flag", "default": "yes"}`,
			validate: func(t *testing.T, el Element) {
				assert.False(t, el.DefaultBool)
			},
		},
		{
			name: "input",
			src:  `{"input": "Notes", "placeholder": "type here", "rows": 4, "default": "n/a"}`,
			validate: func(t *testing.T, el Element) {
				assert.Equal(t, KindInput, el.Kind)
				assert.Equal(t, "notes", el.ID)
				assert.Equal(t, "type here", el.Placeholder)
				assert.Equal(t, 4, el.Rows)
				assert.Equal(t, "n/a", el.DefaultText)
			},
		},
		{
			name: "select with default",
			src:  `{"select": "Theme", "options": ["Light", "Dark"], "default": "Dark"}`,
			validate: func(t *testing.T, el Element) {
				assert.Equal(t, KindSelect, el.Kind)
				assert.Equal(t, "theme", el.ID)
				require.Len(t, el.Options, 2)
				assert.Equal(t, "Dark", el.DefaultOption)
			},
		},
		{
			name: "multi",
			src:  `{"multi": "Features", "options": ["Logs", "Metrics", "Traces"]}`,
			validate: func(t *testing.T, el Element) {
				assert.Equal(t, KindMulti, el.Kind)
				assert.Equal(t, "features", el.ID)
				require.Len(t, el.Options, 3)
				assert.Equal(t, "Metrics", el.Options[1].Value)
			},
		},
		{
			name: "group",
			src:  `{"group": "Advanced", "elements": [{"check": "Verbose"}], "when": "@enable_debug"}`,
			validate: func(t *testing.T, el Element) {
				assert.Equal(t, KindGroup, el.Kind)
				assert.Equal(t, "Advanced", el.Label)
				assert.Equal(t, "@enable_debug", el.When)
				require.Len(t, el.Children, 1)
				assert.Equal(t, KindCheck, el.Children[0].Kind)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, parseElement(t, tt.src))
		})
	}
}

func TestElement_DecodeOptions(t *testing.T) {
	t.Run("comma separated string", func(t *testing.T) {
		el := parseElement(t, `{"multi": "Features", "options": " Logs, Metrics ,, Traces "}`)
		require.Len(t, el.Options, 3)
		assert.Equal(t, "Logs", el.Options[0].Value)
		assert.Equal(t, "Metrics", el.Options[1].Value)
		assert.Equal(t, "Traces", el.Options[2].Value)
	})

	t.Run("object options with description", func(t *testing.T) {
		el := parseElement(t, `{"select": "Mode", "options": [
			{"value": "fast", "description": "Skips validation"},
			{"value": "safe", "because": "Runs every check"},
			"manual"
		]}`)
		require.Len(t, el.Options, 3)
		assert.Equal(t, Option{Value: "fast", Description: "Skips validation"}, el.Options[0])
		assert.Equal(t, Option{Value: "safe", Description: "Runs every check"}, el.Options[1])
		assert.Equal(t, Option{Value: "manual"}, el.Options[2])
	})

	t.Run("option children by option key", func(t *testing.T) {
		el := parseElement(t, `{
			"select": "Database",
			"options": ["postgres", "sqlite"],
			"postgres": [{"input": "Connection String"}],
			"sqlite": {"input": "File Path"}
		}`)
		require.Len(t, el.OptionChildren, 2)
		require.Len(t, el.OptionChildren["postgres"], 1)
		assert.Equal(t, "connection_string", el.OptionChildren["postgres"][0].ID)
		require.Len(t, el.OptionChildren["sqlite"], 1)
		assert.Equal(t, "file_path", el.OptionChildren["sqlite"][0].ID)
	})

	t.Run("unrelated keys are not option children", func(t *testing.T) {
		el := parseElement(t, `{"multi": "Tags", "options": ["a", "b"], "zzz": [1, 2]}`)
		assert.Empty(t, el.OptionChildren)
	})
}

func TestElement_DecodeChildren(t *testing.T) {
	t.Run("bare string becomes text element", func(t *testing.T) {
		el := parseElement(t, `{"check": "Expert mode", "reveals": "Careful with this."}`)
		require.Len(t, el.Reveals, 1)
		assert.Equal(t, KindText, el.Reveals[0].Kind)
		assert.Equal(t, "Careful with this.", el.Reveals[0].Label)
	})

	t.Run("single object becomes one-element list", func(t *testing.T) {
		el := parseElement(t, `{"check": "Advanced", "reveals": {"slider": "Level", "min": 1, "max": 10}}`)
		require.Len(t, el.Reveals, 1)
		assert.Equal(t, KindSlider, el.Reveals[0].Kind)
	})
}

func TestElement_DecodeErrors(t *testing.T) {
	tests := []struct {
		name        string
		src         string
		expectedErr string
	}{
		{"unknown kind", `{"mystery": "x"}`, "unknown element type"},
		{"non-string label", `{"text": 42}`, "text must be a string"},
		{"slider missing min", `{"slider": "Volume", "max": 10}`, "missing min"},
		{"slider missing max", `{"slider": "Volume", "min": 0}`, "missing max"},
		{"select missing options", `{"select": "Theme"}`, "missing options"},
		{"multi missing options", `{"multi": "Tags"}`, "missing options"},
		{"group missing elements", `{"group": "Advanced"}`, "missing elements"},
		{"bad options type", `{"multi": "Tags", "options": 7}`, "options must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var el Element
			err := json.Unmarshal([]byte(tt.src), &el)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

// ==========================
// Encode Tests
// ==========================

func TestElement_EncodeOmitsDerivableID(t *testing.T) {
	el := parseElement(t, `{"slider": "Volume", "min": 0, "max": 100}`)
	obj := encodeToMap(t, el)

	assert.Equal(t, "Volume", obj["slider"])
	assert.NotContains(t, obj, "id")
	assert.NotContains(t, obj, "default")

	el.ID = "loudness"
	obj = encodeToMap(t, el)
	assert.Equal(t, "loudness", obj["id"])
}

func TestElement_EncodeCheckDefault(t *testing.T) {
	off := encodeToMap(t, Element{Kind: KindCheck, Label: "Flag", ID: "flag"})
	assert.NotContains(t, off, "default")
	assert.NotContains(t, off, "reveals")

	on := encodeToMap(t, Element{Kind: KindCheck, Label: "Flag", ID: "flag", DefaultBool: true})
	assert.Equal(t, true, on["default"])
}

func TestElement_EncodeOptions(t *testing.T) {
	el := Element{
		Kind:  KindSelect,
		Label: "Mode",
		ID:    "mode",
		Options: []Option{
			{Value: "fast"},
			{Value: "safe", Description: "Runs every check"},
		},
		DefaultOption: "safe",
	}
	obj := encodeToMap(t, el)

	options, ok := obj["options"].([]interface{})
	require.True(t, ok)
	require.Len(t, options, 2)
	assert.Equal(t, "fast", options[0])
	assert.Equal(t, map[string]interface{}{"value": "safe", "description": "Runs every check"}, options[1])
	assert.Equal(t, "safe", obj["default"])
}

func TestElement_RoundTrip(t *testing.T) {
	src := `{
		"title": "Deploy settings",
		"elements": [
			{"markdown": "## Review before shipping"},
			{"slider": "Replica Count", "min": 1, "max": 12, "default": 3},
			{"check": "Enable Canary", "reveals": [
				{"slider": "Canary Percent", "min": 1, "max": 50}
			]},
			{"input": "Release Notes", "placeholder": "what changed", "rows": 3},
			{"select": "Region", "options": ["us-east", "eu-west"], "default": "eu-west",
				"us-east": [{"check": "Use Local Cache"}]},
			{"multi": "Alert Channels", "options": "email, slack, pager"},
			{"group": "Rollback", "when": "@enable_canary", "elements": [
				{"check": "Auto Rollback", "default": true}
			]}
		]
	}`

	first, err := ParseDefinition([]byte(src))
	require.NoError(t, err)

	encoded, err := json.Marshal(first)
	require.NoError(t, err)

	second, err := ParseDefinition(encoded)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
