package popup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func evalCondition(t *testing.T, src string, values map[string]interface{}) bool {
	t.Helper()
	expr, err := ParseCondition(src)
	require.NoError(t, err, "condition %q should parse", src)
	return Evaluate(expr, values)
}

// ==========================
// Parser Tests
// ==========================

func TestParseCondition_Shapes(t *testing.T) {
	t.Run("bare identifier is a string literal", func(t *testing.T) {
		expr, err := ParseCondition("dark")
		require.NoError(t, err)
		assert.Equal(t, StringExpr{Value: "dark"}, expr)
	})

	t.Run("quoted strings", func(t *testing.T) {
		expr, err := ParseCondition(`"two words"`)
		require.NoError(t, err)
		assert.Equal(t, StringExpr{Value: "two words"}, expr)

		expr, err = ParseCondition(`'single'`)
		require.NoError(t, err)
		assert.Equal(t, StringExpr{Value: "single"}, expr)
	})

	t.Run("or binds looser than and", func(t *testing.T) {
		expr, err := ParseCondition("@a || @b && @c")
		require.NoError(t, err)

		or, ok := expr.(OrExpr)
		require.True(t, ok)
		require.Len(t, or.Exprs, 2)
		assert.Equal(t, RefExpr{ID: "a"}, or.Exprs[0])

		and, ok := or.Exprs[1].(AndExpr)
		require.True(t, ok)
		assert.Equal(t, RefExpr{ID: "b"}, and.Exprs[0])
		assert.Equal(t, RefExpr{ID: "c"}, and.Exprs[1])
	})

	t.Run("parentheses group", func(t *testing.T) {
		expr, err := ParseCondition("(@a || @b) && @c")
		require.NoError(t, err)

		and, ok := expr.(AndExpr)
		require.True(t, ok)
		_, ok = and.Exprs[0].(OrExpr)
		assert.True(t, ok)
	})

	t.Run("comparison", func(t *testing.T) {
		expr, err := ParseCondition("@volume >= 50")
		require.NoError(t, err)
		assert.Equal(t, CompareExpr{
			Op:    OpGreaterEq,
			Left:  RefExpr{ID: "volume"},
			Right: NumberExpr{Value: 50},
		}, expr)
	})

	t.Run("negative number", func(t *testing.T) {
		expr, err := ParseCondition("@delta > -1.5")
		require.NoError(t, err)
		cmp := expr.(CompareExpr)
		assert.Equal(t, NumberExpr{Value: -1.5}, cmp.Right)
	})

	t.Run("function calls", func(t *testing.T) {
		expr, err := ParseCondition("count(@features)")
		require.NoError(t, err)
		assert.Equal(t, CountExpr{Arg: RefExpr{ID: "features"}}, expr)

		expr, err = ParseCondition("selected(@theme, Dark)")
		require.NoError(t, err)
		assert.Equal(t, SelectedExpr{
			Ref:   RefExpr{ID: "theme"},
			Value: StringExpr{Value: "Dark"},
		}, expr)

		expr, err = ParseCondition("any(@a, @b, @c)")
		require.NoError(t, err)
		assert.Len(t, expr.(AnyExpr).Exprs, 3)

		expr, err = ParseCondition("all(@a, @b)")
		require.NoError(t, err)
		assert.Len(t, expr.(AllExpr).Exprs, 2)
	})
}

func TestParseCondition_Errors(t *testing.T) {
	tests := []struct {
		name        string
		src         string
		expectedErr string
	}{
		{"empty input", "", "unexpected end"},
		{"bare at sign", "@", "expected identifier after '@'"},
		{"trailing garbage", "@a @b", "unexpected trailing input"},
		{"unterminated string", `"open`, "unterminated string"},
		{"unbalanced paren", "(@a && @b", "expected ')'"},
		{"unknown function", "pick(@a)", `unknown function "pick"`},
		{"count arity", "count(@a, @b)", "count() takes exactly 1 argument"},
		{"selected arity", "selected(@a)", "selected() takes exactly 2 arguments"},
		{"any arity", "any()", "any() takes at least 1 argument"},
		{"lone operator", "&&", "unexpected character"},
		{"lone minus", "-", "malformed number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCondition(tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
			assert.Contains(t, err.Error(), "offset")
		})
	}
}

// ==========================
// Evaluator Tests
// ==========================

func TestEvaluate_Truthiness(t *testing.T) {
	values := map[string]interface{}{
		"on":        true,
		"off":       false,
		"zero":      0.0,
		"volume":    55.0,
		"name":      "ada",
		"blank":     "",
		"tags":      []string{"a"},
		"none":      []string{},
		"selection": []interface{}{"x", "y"},
	}

	tests := []struct {
		src      string
		expected bool
	}{
		{"@on", true},
		{"@off", false},
		{"@zero", false},
		{"@volume", true},
		{"@name", true},
		{"@blank", false},
		{"@tags", true},
		{"@none", false},
		{"@selection", true},
		{"@missing", false},
		{"!@off", true},
		{"!!@on", true},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.expected, evalCondition(t, tt.src, values))
		})
	}
}

func TestEvaluate_Comparisons(t *testing.T) {
	values := map[string]interface{}{
		"volume": 55.0,
		"level":  3,
		"theme":  "dark",
		"third":  0.30000000000000004,
	}

	tests := []struct {
		src      string
		expected bool
	}{
		{"@volume == 55", true},
		{"@volume != 55", false},
		{"@volume > 50", true},
		{"@volume < 50", false},
		{"@volume >= 55", true},
		{"@volume <= 54", false},
		{"@level == 3", true},
		{"@third == 0.3", true}, // float noise within epsilon
		{"@theme == dark", true},
		{"@theme == 'dark'", true},
		{"@theme != light", true},
		{"@theme > apple", true},
		{"@theme < zebra", true},
		{"@theme == 55", false},  // mixed types never equal
		{"@theme != 55", true},   //
		{"@missing == dark", false},
		{"@missing != dark", true},
		{"55 == @volume", true},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.expected, evalCondition(t, tt.src, values))
		})
	}
}

func TestEvaluate_Logic(t *testing.T) {
	values := map[string]interface{}{"a": true, "b": false, "c": true}

	tests := []struct {
		src      string
		expected bool
	}{
		{"@a && @c", true},
		{"@a && @b", false},
		{"@a || @b", true},
		{"@b || @b", false},
		{"@b || @a && @c", true},
		{"(@a || @b) && @c", true},
		{"!(@a && @b)", true},
		{"any(@b, @c)", true},
		{"any(@b, @b)", false},
		{"all(@a, @c)", true},
		{"all(@a, @b)", false},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.expected, evalCondition(t, tt.src, values))
		})
	}
}

func TestEvaluate_Count(t *testing.T) {
	values := map[string]interface{}{
		"agree":    true,
		"decline":  false,
		"features": []string{"logs", "metrics"},
		"blanks":   []string{"", ""},
		"mixed":    []interface{}{true, false, "x", "", 2.0, 0.0},
		"flags":    []bool{true, false, true},
		"volume":   55.0,
		"zero":     0.0,
	}

	tests := []struct {
		src      string
		expected bool
	}{
		{"count(@agree)", true},
		{"count(@decline)", false},
		{"count(@features)", true},
		{"count(@blanks)", false},
		{"count(@missing)", false},
		{"count(@features) == 2", true},
		{"count(@mixed) == 3", true},
		{"count(@flags) == 2", true},
		{"count(@volume)", true},
		{"count(@zero)", false},
		{"count(@features) >= 1 && count(@features) <= 2", true},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.expected, evalCondition(t, tt.src, values))
		})
	}
}

func TestEvaluate_Selected(t *testing.T) {
	values := map[string]interface{}{
		"theme":    "dark",
		"channels": []string{"email", "pager"},
		"agree":    true,
		"decline":  false,
		"raw":      []interface{}{"slack"},
	}

	tests := []struct {
		src      string
		expected bool
	}{
		{"selected(@theme, dark)", true},
		{"selected(@theme, light)", false},
		{"selected(@channels, pager)", true},
		{"selected(@channels, slack)", false},
		{"selected(@raw, slack)", true},
		{"selected(@agree, agree)", true},   // checks match their own ID
		{"selected(@agree, other)", false},
		{"selected(@decline, decline)", false},
		{"selected(@missing, x)", false},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.expected, evalCondition(t, tt.src, values))
		})
	}
}

// ==========================
// Benchmark Tests
// ==========================

func BenchmarkParseCondition(b *testing.B) {
	src := `(@enable_canary && count(@alert_channels) >= 2) || selected(@region, "eu-west")`
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ParseCondition(src)
	}
}

func BenchmarkEvaluate(b *testing.B) {
	expr, err := ParseCondition("@enable_canary && count(@alert_channels) >= 2")
	if err != nil {
		b.Fatal(err)
	}
	values := map[string]interface{}{
		"enable_canary":  true,
		"alert_channels": []string{"email", "slack"},
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Evaluate(expr, values)
	}
}
