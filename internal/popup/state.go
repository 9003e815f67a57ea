// internal/popup/state.go
package popup

import (
	"encoding/json"
	"errors"
)

// Result statuses as they appear on the wire.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusTimeout   = "timeout"
)

// State holds the live value of every stateful element, keyed by element ID.
// Sliders hold float64, checks bool, inputs string, selects an int option
// index, and multis a []bool with one flag per option.
type State map[string]interface{}

// NewState builds the initial state for a definition: slider defaults (or
// the midpoint), check defaults, input defaults, the matching select option
// (or the first), and all-unselected multis.
func NewState(def *Definition) State {
	s := make(State)
	s.initElements(def.Elements)
	return s
}

func (s State) initElements(elements []Element) {
	for i := range elements {
		el := &elements[i]
		switch el.Kind {
		case KindSlider:
			value := (el.Min + el.Max) / 2
			if el.DefaultNumber != nil {
				value = *el.DefaultNumber
			}
			s[el.ID] = value

		case KindCheck:
			s[el.ID] = el.DefaultBool
			s.initElements(el.Reveals)

		case KindInput:
			s[el.ID] = el.DefaultText

		case KindMulti:
			s[el.ID] = make([]bool, len(el.Options))
			for _, children := range el.OptionChildren {
				s.initElements(children)
			}
			s.initElements(el.Reveals)

		case KindSelect:
			index := 0
			if el.DefaultOption != "" {
				if at := el.OptionIndex(el.DefaultOption); at >= 0 {
					index = at
				}
			}
			s[el.ID] = index
			for _, children := range el.OptionChildren {
				s.initElements(children)
			}
			s.initElements(el.Reveals)

		case KindGroup:
			s.initElements(el.Children)
		}
	}
}

// ValueMap renders the state for consumers: multis become the list of
// selected option texts, selects become the chosen option's text (or nil
// when the index is out of range), everything else passes through.
func (s State) ValueMap(def *Definition) map[string]interface{} {
	out := make(map[string]interface{}, len(s))
	for id, value := range s {
		switch v := value.(type) {
		case []bool:
			el := def.FindElement(id)
			if el == nil || el.Kind != KindMulti {
				out[id] = v
				continue
			}
			selected := make([]string, 0, len(v))
			for i, on := range v {
				if on && i < len(el.Options) {
					selected = append(selected, el.Options[i].Value)
				}
			}
			out[id] = selected

		case int:
			el := def.FindElement(id)
			if el == nil || el.Kind != KindSelect {
				out[id] = v
				continue
			}
			if v >= 0 && v < len(el.Options) {
				out[id] = el.Options[v].Value
			} else {
				out[id] = nil
			}

		default:
			out[id] = value
		}
	}
	return out
}

// ActiveIDs returns the IDs of stateful elements currently visible given
// the rendered values: "when" conditions must hold, check reveals need the
// check on, and option children need their option selected. Conditions
// that fail to parse leave the element visible.
func (d *Definition) ActiveIDs(values map[string]interface{}) []string {
	var ids []string
	collectActive(d.Elements, values, &ids)
	return ids
}

func collectActive(elements []Element, values map[string]interface{}, ids *[]string) {
	for i := range elements {
		el := &elements[i]
		if el.When != "" {
			expr, err := ParseCondition(el.When)
			if err == nil && !Evaluate(expr, values) {
				continue
			}
		}

		if el.Stateful() {
			*ids = append(*ids, el.ID)
		}

		switch el.Kind {
		case KindGroup:
			collectActive(el.Children, values, ids)

		case KindCheck:
			if on, _ := values[el.ID].(bool); on {
				collectActive(el.Reveals, values, ids)
			}

		case KindSelect, KindMulti:
			for option, children := range el.OptionChildren {
				if optionActive(values[el.ID], option) {
					collectActive(children, values, ids)
				}
			}
			collectActive(el.Reveals, values, ids)
		}
	}
}

func optionActive(value interface{}, option string) bool {
	switch v := value.(type) {
	case string:
		return v == option
	case []string:
		for _, s := range v {
			if s == option {
				return true
			}
		}
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && s == option {
				return true
			}
		}
	}
	return false
}

// ==========================
// Result envelope
// ==========================

// PopupResult is the server's answer to a popup. Completed results carry
// the value map flattened beside status plus the clicked button; timeouts
// carry a message; cancellations carry status alone.
type PopupResult struct {
	Status  string
	Values  map[string]interface{}
	Button  string
	Message string
}

// CompletedResult builds a completed envelope. An empty button encodes as
// "cancel", matching what a window close reports.
func CompletedResult(values map[string]interface{}, button string) PopupResult {
	return PopupResult{Status: StatusCompleted, Values: values, Button: button}
}

func CancelledResult() PopupResult {
	return PopupResult{Status: StatusCancelled}
}

func TimeoutResult(message string) PopupResult {
	return PopupResult{Status: StatusTimeout, Message: message}
}

func (r PopupResult) MarshalJSON() ([]byte, error) {
	switch r.Status {
	case StatusCompleted:
		obj := make(map[string]interface{}, len(r.Values)+2)
		for k, v := range r.Values {
			obj[k] = v
		}
		obj["status"] = r.Status
		button := r.Button
		if button == "" {
			button = "cancel"
		}
		obj["button"] = button
		return json.Marshal(obj)

	case StatusTimeout:
		return json.Marshal(map[string]interface{}{
			"status":  r.Status,
			"message": r.Message,
		})

	case StatusCancelled:
		return json.Marshal(map[string]interface{}{"status": r.Status})
	}

	return nil, errors.New("result has no status")
}

func (r *PopupResult) UnmarshalJSON(data []byte) error {
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	status, _ := obj["status"].(string)
	if status == "" {
		return errors.New("result missing status")
	}

	*r = PopupResult{Status: status}
	switch status {
	case StatusCompleted:
		button, ok := obj["button"].(string)
		if !ok || button == "" {
			button = "cancel"
		}
		r.Button = button
		delete(obj, "status")
		delete(obj, "button")
		r.Values = obj

	case StatusTimeout:
		r.Message, _ = obj["message"].(string)
	}

	return nil
}
