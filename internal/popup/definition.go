// internal/popup/definition.go

// Package popup implements the popup definition model: the compact JSON
// element encoding, default state derivation, result envelopes, and the
// condition language used by "when" expressions.
package popup

import (
	"encoding/json"
	"errors"
)

// Definition is a complete popup: a window title plus the element tree.
type Definition struct {
	Title    string    `json:"title"`
	Elements []Element `json:"elements"`
}

// ParseDefinition decodes a definition from its compact JSON form. The
// title may be omitted; the elements list may not.
func ParseDefinition(raw []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, err
	}
	if def.Elements == nil {
		return nil, errors.New("definition missing elements")
	}
	return &def, nil
}

// FindElement looks up an element by ID anywhere in the tree, including
// group children, reveals, and option children.
func (d *Definition) FindElement(id string) *Element {
	if id == "" {
		return nil
	}
	return findInElements(d.Elements, id)
}

func findInElements(elements []Element, id string) *Element {
	for i := range elements {
		el := &elements[i]
		if el.ID == id {
			return el
		}
		if found := findInElements(el.Children, id); found != nil {
			return found
		}
		if found := findInElements(el.Reveals, id); found != nil {
			return found
		}
		for _, children := range el.OptionChildren {
			if found := findInElements(children, id); found != nil {
				return found
			}
		}
	}
	return nil
}

// Walk calls fn for every element in the tree, parents before children.
// Traversal stops early when fn returns false.
func (d *Definition) Walk(fn func(el *Element) bool) {
	walkElements(d.Elements, fn)
}

func walkElements(elements []Element, fn func(el *Element) bool) bool {
	for i := range elements {
		el := &elements[i]
		if !fn(el) {
			return false
		}
		if !walkElements(el.Children, fn) {
			return false
		}
		if !walkElements(el.Reveals, fn) {
			return false
		}
		for _, children := range el.OptionChildren {
			if !walkElements(children, fn) {
				return false
			}
		}
	}
	return true
}
