// internal/popup/element.go
package popup

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Kind identifies the element type. On the wire the kind doubles as the
// JSON key carrying the label, e.g. {"slider": "Volume", "min": 0, "max": 100}.
type Kind string

const (
	KindText     Kind = "text"
	KindMarkdown Kind = "markdown"
	KindSlider   Kind = "slider"
	KindCheck    Kind = "check"
	KindInput    Kind = "input"
	KindMulti    Kind = "multi"
	KindSelect   Kind = "select"
	KindGroup    Kind = "group"
)

// Option is one choice of a multi or select element. Options without a
// description encode as plain strings.
type Option struct {
	Value       string
	Description string
}

// Element is a single popup building block, discriminated by Kind. Only the
// fields matching the kind are meaningful.
type Element struct {
	Kind  Kind
	Label string
	ID    string // derived from the label when absent on the wire
	When  string // visibility condition

	// slider
	Min           float64
	Max           float64
	DefaultNumber *float64

	// check
	DefaultBool bool

	// input
	Placeholder string
	Rows        int
	DefaultText string

	// select
	DefaultOption string

	// multi / select
	Options        []Option
	OptionChildren map[string][]Element

	// check / multi / select
	Reveals []Element

	// group
	Children []Element
}

// OptionIndex returns the position of the option with the given value, or -1.
func (e *Element) OptionIndex(value string) int {
	for i, opt := range e.Options {
		if opt.Value == value {
			return i
		}
	}
	return -1
}

// Stateful reports whether the element contributes a value to popup state.
func (e *Element) Stateful() bool {
	switch e.Kind {
	case KindSlider, KindCheck, KindInput, KindMulti, KindSelect:
		return true
	}
	return false
}

// SnakeCaseID derives an element ID from its label: lowercase with
// underscores at word boundaries, where boundaries are separators and
// lower-to-upper or acronym-to-word case changes. Punctuation drops out.
func SnakeCaseID(label string) string {
	var b strings.Builder
	prevSeparator := true
	prevUpper := false

	runes := []rune(label)
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			shouldUnderscore := unicode.IsUpper(r) &&
				b.Len() > 0 &&
				!prevSeparator &&
				(!prevUpper || (i+1 < len(runes) && unicode.IsLower(runes[i+1])))

			if shouldUnderscore {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevSeparator = false
			prevUpper = unicode.IsUpper(r)
		case r == ' ' || r == '-' || r == '_':
			if b.Len() > 0 && !prevSeparator {
				b.WriteByte('_')
			}
			prevSeparator = true
			prevUpper = false
		default:
			prevUpper = false
		}
	}

	return strings.TrimRight(b.String(), "_")
}

// ==========================
// Wire encoding
// ==========================

// MarshalJSON emits the compact form. The element ID is omitted when it
// matches what SnakeCaseID would derive, so round trips stay lossless.
func (e Element) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("element has no kind")
	}

	obj := map[string]interface{}{
		string(e.Kind): e.Label,
	}

	switch e.Kind {
	case KindText, KindMarkdown:
		if e.ID != "" {
			obj["id"] = e.ID
		}

	case KindSlider:
		if e.ID != "" && e.ID != SnakeCaseID(e.Label) {
			obj["id"] = e.ID
		}
		obj["min"] = e.Min
		obj["max"] = e.Max
		if e.DefaultNumber != nil {
			obj["default"] = *e.DefaultNumber
		}

	case KindCheck:
		if e.ID != "" && e.ID != SnakeCaseID(e.Label) {
			obj["id"] = e.ID
		}
		if e.DefaultBool {
			obj["default"] = true
		}
		if len(e.Reveals) > 0 {
			obj["reveals"] = e.Reveals
		}

	case KindInput:
		if e.ID != "" && e.ID != SnakeCaseID(e.Label) {
			obj["id"] = e.ID
		}
		if e.Placeholder != "" {
			obj["placeholder"] = e.Placeholder
		}
		if e.Rows > 0 {
			obj["rows"] = e.Rows
		}
		if e.DefaultText != "" {
			obj["default"] = e.DefaultText
		}

	case KindMulti, KindSelect:
		if e.ID != "" && e.ID != SnakeCaseID(e.Label) {
			obj["id"] = e.ID
		}
		obj["options"] = encodeOptions(e.Options)
		if e.Kind == KindSelect && e.DefaultOption != "" {
			obj["default"] = e.DefaultOption
		}
		for option, children := range e.OptionChildren {
			obj[option] = children
		}
		if len(e.Reveals) > 0 {
			obj["reveals"] = e.Reveals
		}

	case KindGroup:
		if e.ID != "" {
			obj["id"] = e.ID
		}
		obj["elements"] = e.Children

	default:
		return nil, fmt.Errorf("unknown element kind %q", e.Kind)
	}

	if e.When != "" {
		obj["when"] = e.When
	}

	return json.Marshal(obj)
}

func encodeOptions(options []Option) []interface{} {
	out := make([]interface{}, len(options))
	for i, opt := range options {
		if opt.Description == "" {
			out[i] = opt.Value
			continue
		}
		out[i] = map[string]string{
			"value":       opt.Value,
			"description": opt.Description,
		}
	}
	return out
}

// UnmarshalJSON decodes the compact form. Kind detection checks the kind
// keys in a fixed order; leftover keys matching an option value become that
// option's children.
func (e *Element) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	if raw, ok := obj["text"]; ok {
		label, err := decodeLabel(raw, "text")
		if err != nil {
			return err
		}
		*e = Element{Kind: KindText, Label: label, ID: stringField(obj, "id"), When: stringField(obj, "when")}
		return nil
	}

	if raw, ok := obj["markdown"]; ok {
		label, err := decodeLabel(raw, "markdown")
		if err != nil {
			return err
		}
		*e = Element{Kind: KindMarkdown, Label: label, ID: stringField(obj, "id"), When: stringField(obj, "when")}
		return nil
	}

	if raw, ok := obj["slider"]; ok {
		label, err := decodeLabel(raw, "slider")
		if err != nil {
			return err
		}
		min, ok := numberField(obj, "min")
		if !ok {
			return fmt.Errorf("slider %q missing min", label)
		}
		max, ok := numberField(obj, "max")
		if !ok {
			return fmt.Errorf("slider %q missing max", label)
		}
		el := Element{
			Kind:  KindSlider,
			Label: label,
			ID:    idField(obj, label),
			When:  stringField(obj, "when"),
			Min:   min,
			Max:   max,
		}
		if def, ok := numberField(obj, "default"); ok {
			el.DefaultNumber = &def
		}
		*e = el
		return nil
	}

	if raw, ok := obj["check"]; ok {
		label, err := decodeLabel(raw, "check")
		if err != nil {
			return err
		}
		reveals, err := childrenField(obj, "reveals")
		if err != nil {
			return err
		}
		*e = Element{
			Kind:        KindCheck,
			Label:       label,
			ID:          idField(obj, label),
			When:        stringField(obj, "when"),
			DefaultBool: boolField(obj, "default"),
			Reveals:     reveals,
		}
		return nil
	}

	if raw, ok := obj["input"]; ok {
		label, err := decodeLabel(raw, "input")
		if err != nil {
			return err
		}
		el := Element{
			Kind:        KindInput,
			Label:       label,
			ID:          idField(obj, label),
			When:        stringField(obj, "when"),
			Placeholder: stringField(obj, "placeholder"),
			DefaultText: stringField(obj, "default"),
		}
		if rows, ok := numberField(obj, "rows"); ok && rows > 0 {
			el.Rows = int(rows)
		}
		*e = el
		return nil
	}

	if raw, ok := obj["select"]; ok {
		label, err := decodeLabel(raw, "select")
		if err != nil {
			return err
		}
		options, reveals, optionChildren, err := optionFields(obj, "select", label)
		if err != nil {
			return err
		}
		*e = Element{
			Kind:           KindSelect,
			Label:          label,
			ID:             idField(obj, label),
			When:           stringField(obj, "when"),
			Options:        options,
			DefaultOption:  stringField(obj, "default"),
			OptionChildren: optionChildren,
			Reveals:        reveals,
		}
		return nil
	}

	if raw, ok := obj["multi"]; ok {
		label, err := decodeLabel(raw, "multi")
		if err != nil {
			return err
		}
		options, reveals, optionChildren, err := optionFields(obj, "multi", label)
		if err != nil {
			return err
		}
		*e = Element{
			Kind:           KindMulti,
			Label:          label,
			ID:             idField(obj, label),
			When:           stringField(obj, "when"),
			Options:        options,
			OptionChildren: optionChildren,
			Reveals:        reveals,
		}
		return nil
	}

	if raw, ok := obj["group"]; ok {
		label, err := decodeLabel(raw, "group")
		if err != nil {
			return err
		}
		rawElems, ok := obj["elements"]
		if !ok {
			return fmt.Errorf("group %q missing elements", label)
		}
		children, err := decodeChildren(rawElems)
		if err != nil {
			return err
		}
		*e = Element{
			Kind:     KindGroup,
			Label:    label,
			ID:       stringField(obj, "id"),
			When:     stringField(obj, "when"),
			Children: children,
		}
		return nil
	}

	return errors.New("unknown element type")
}

// optionFields decodes the shared select/multi fields: options, reveals,
// and the option-as-key children among the remaining object keys. Keys the
// element itself consumes never count as option children.
func optionFields(obj map[string]json.RawMessage, kindKey, label string) ([]Option, []Element, map[string][]Element, error) {
	rawOpts, ok := obj["options"]
	if !ok {
		return nil, nil, nil, fmt.Errorf("element %q missing options", label)
	}
	options, err := decodeOptions(rawOpts)
	if err != nil {
		return nil, nil, nil, err
	}

	reveals, err := childrenField(obj, "reveals")
	if err != nil {
		return nil, nil, nil, err
	}

	consumed := map[string]bool{
		kindKey: true, "id": true, "when": true,
		"options": true, "default": true, "reveals": true,
	}

	var optionChildren map[string][]Element
	for key, raw := range obj {
		if consumed[key] {
			continue
		}
		matched := false
		for _, opt := range options {
			if opt.Value == key {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		children, err := decodeChildren(raw)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("children of option %q: %w", key, err)
		}
		if optionChildren == nil {
			optionChildren = make(map[string][]Element)
		}
		optionChildren[key] = children
	}

	return options, reveals, optionChildren, nil
}

func decodeLabel(raw json.RawMessage, kind string) (string, error) {
	var label string
	if err := json.Unmarshal(raw, &label); err != nil {
		return "", fmt.Errorf("%s must be a string", kind)
	}
	return label, nil
}

// idField returns the explicit id or derives one from the label.
func idField(obj map[string]json.RawMessage, label string) string {
	if id := stringField(obj, "id"); id != "" {
		return id
	}
	return SnakeCaseID(label)
}

// stringField returns the field as a string, or "" when absent or not a string.
func stringField(obj map[string]json.RawMessage, key string) string {
	raw, ok := obj[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func numberField(obj map[string]json.RawMessage, key string) (float64, bool) {
	raw, ok := obj[key]
	if !ok {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

func boolField(obj map[string]json.RawMessage, key string) bool {
	raw, ok := obj[key]
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false
	}
	return b
}

func childrenField(obj map[string]json.RawMessage, key string) ([]Element, error) {
	raw, ok := obj[key]
	if !ok {
		return nil, nil
	}
	return decodeChildren(raw)
}

// decodeOptions accepts a list of strings/objects or a comma-separated
// string. Object options accept "because" as an alias of "description".
func decodeOptions(raw json.RawMessage) ([]Option, error) {
	switch firstByte(raw) {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		var options []Option
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				options = append(options, Option{Value: part})
			}
		}
		return options, nil

	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		options := make([]Option, 0, len(items))
		for _, item := range items {
			if firstByte(item) == '"' {
				var s string
				if err := json.Unmarshal(item, &s); err != nil {
					return nil, err
				}
				options = append(options, Option{Value: s})
				continue
			}
			var obj struct {
				Value       string `json:"value"`
				Description string `json:"description"`
				Because     string `json:"because"`
			}
			if err := json.Unmarshal(item, &obj); err != nil {
				return nil, fmt.Errorf("invalid option %s", string(item))
			}
			if obj.Description == "" {
				obj.Description = obj.Because
			}
			options = append(options, Option{Value: obj.Value, Description: obj.Description})
		}
		return options, nil
	}

	return nil, errors.New("options must be a list or comma-separated string")
}

// decodeChildren accepts a list of elements, a single element object, or a
// bare string that becomes a text element.
func decodeChildren(raw json.RawMessage) ([]Element, error) {
	switch firstByte(raw) {
	case '[':
		var list []Element
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return list, nil
	case '{':
		var single Element
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, err
		}
		return []Element{single}, nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return []Element{{Kind: KindText, Label: s}}, nil
	}
	return nil, errors.New("children must be an array, object, or string")
}

func firstByte(raw json.RawMessage) byte {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return b
	}
	return 0
}
