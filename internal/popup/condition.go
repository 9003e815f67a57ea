// internal/popup/condition.go
package popup

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// CompareOp is a comparison operator in a condition expression.
type CompareOp int

const (
	OpEqual CompareOp = iota
	OpNotEqual
	OpGreater
	OpLess
	OpGreaterEq
	OpLessEq
)

func (op CompareOp) String() string {
	switch op {
	case OpEqual:
		return "=="
	case OpNotEqual:
		return "!="
	case OpGreater:
		return ">"
	case OpLess:
		return "<"
	case OpGreaterEq:
		return ">="
	case OpLessEq:
		return "<="
	}
	return "?"
}

// Expr is a parsed condition node.
type Expr interface{ exprNode() }

// OrExpr is true when any operand is true.
type OrExpr struct{ Exprs []Expr }

// AndExpr is true when every operand is true.
type AndExpr struct{ Exprs []Expr }

// NotExpr negates its operand's truthiness.
type NotExpr struct{ Expr Expr }

// CompareExpr compares two values: numerically when both sides are numbers,
// lexicographically when both are strings, equality-only otherwise.
type CompareExpr struct {
	Op          CompareOp
	Left, Right Expr
}

// RefExpr resolves an element's current value, written @id.
type RefExpr struct{ ID string }

// NumberExpr is a numeric literal.
type NumberExpr struct{ Value float64 }

// StringExpr is a string literal; bare identifiers parse as strings.
type StringExpr struct{ Value string }

// CountExpr is count(@id): the number of selections an element holds.
type CountExpr struct{ Arg Expr }

// SelectedExpr is selected(@id, value): whether a specific option is chosen.
type SelectedExpr struct{ Ref, Value Expr }

// AnyExpr is any(...): true when at least one argument is true.
type AnyExpr struct{ Exprs []Expr }

// AllExpr is all(...): true when every argument is true.
type AllExpr struct{ Exprs []Expr }

func (OrExpr) exprNode()       {}
func (AndExpr) exprNode()      {}
func (NotExpr) exprNode()      {}
func (CompareExpr) exprNode()  {}
func (RefExpr) exprNode()      {}
func (NumberExpr) exprNode()   {}
func (StringExpr) exprNode()   {}
func (CountExpr) exprNode()    {}
func (SelectedExpr) exprNode() {}
func (AnyExpr) exprNode()      {}
func (AllExpr) exprNode()      {}

// ==========================
// Parser
// ==========================

// ParseCondition parses a "when" expression. Precedence from loosest to
// tightest: ||, &&, comparison; ! binds to a single value and parentheses
// group. Errors report the byte offset of the problem.
func ParseCondition(input string) (Expr, error) {
	p := &condParser{input: input}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return nil, condErrorf(p.pos, "unexpected trailing input %q", p.input[p.pos:])
	}
	return expr, nil
}

type condParser struct {
	input string
	pos   int
}

func condErrorf(pos int, format string, args ...interface{}) error {
	return fmt.Errorf("condition offset %d: %s", pos, fmt.Sprintf(format, args...))
}

func (p *condParser) parseOr() (Expr, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	exprs := []Expr{first}
	for p.consume("||") {
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, next)
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}
	return OrExpr{Exprs: exprs}, nil
}

func (p *condParser) parseAnd() (Expr, error) {
	first, err := p.parseComp()
	if err != nil {
		return nil, err
	}
	exprs := []Expr{first}
	for p.consume("&&") {
		next, err := p.parseComp()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, next)
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}
	return AndExpr{Exprs: exprs}, nil
}

func (p *condParser) parseComp() (Expr, error) {
	left, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	op, ok := p.consumeCompareOp()
	if !ok {
		return left, nil
	}
	right, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return CompareExpr{Op: op, Left: left, Right: right}, nil
}

func (p *condParser) parseValue() (Expr, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return nil, condErrorf(p.pos, "unexpected end of expression")
	}

	switch c := p.input[p.pos]; {
	case c == '(':
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.pos >= len(p.input) || p.input[p.pos] != ')' {
			return nil, condErrorf(p.pos, "expected ')'")
		}
		p.pos++
		return inner, nil

	case c == '!':
		p.pos++
		inner, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return NotExpr{Expr: inner}, nil

	case c == '@':
		at := p.pos
		p.pos++
		id := p.lexIdent()
		if id == "" {
			return nil, condErrorf(at, "expected identifier after '@'")
		}
		return RefExpr{ID: id}, nil

	case c == '"' || c == '\'':
		return p.lexString()

	case c == '-' || (c >= '0' && c <= '9'):
		return p.lexNumber()
	}

	ident := p.lexIdent()
	if ident == "" {
		r, _ := utf8.DecodeRuneInString(p.input[p.pos:])
		return nil, condErrorf(p.pos, "unexpected character %q", r)
	}
	if p.pos < len(p.input) && p.input[p.pos] == '(' {
		return p.parseCall(ident)
	}
	return StringExpr{Value: ident}, nil
}

func (p *condParser) parseCall(name string) (Expr, error) {
	callAt := p.pos
	p.pos++ // consume '('

	var args []Expr
	p.skipSpace()
	if p.pos < len(p.input) && p.input[p.pos] == ')' {
		p.pos++
	} else {
		for {
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			p.skipSpace()
			if p.pos < len(p.input) && p.input[p.pos] == ',' {
				p.pos++
				continue
			}
			break
		}
		if p.pos >= len(p.input) || p.input[p.pos] != ')' {
			return nil, condErrorf(p.pos, "expected ')' after arguments to %s", name)
		}
		p.pos++
	}

	switch name {
	case "count":
		if len(args) != 1 {
			return nil, condErrorf(callAt, "count() takes exactly 1 argument, got %d", len(args))
		}
		return CountExpr{Arg: args[0]}, nil
	case "selected":
		if len(args) != 2 {
			return nil, condErrorf(callAt, "selected() takes exactly 2 arguments, got %d", len(args))
		}
		return SelectedExpr{Ref: args[0], Value: args[1]}, nil
	case "any":
		if len(args) == 0 {
			return nil, condErrorf(callAt, "any() takes at least 1 argument")
		}
		return AnyExpr{Exprs: args}, nil
	case "all":
		if len(args) == 0 {
			return nil, condErrorf(callAt, "all() takes at least 1 argument")
		}
		return AllExpr{Exprs: args}, nil
	}
	return nil, condErrorf(callAt, "unknown function %q", name)
}

// consume eats the token when it appears next, skipping leading whitespace.
func (p *condParser) consume(token string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.input[p.pos:], token) {
		p.pos += len(token)
		return true
	}
	return false
}

func (p *condParser) consumeCompareOp() (CompareOp, bool) {
	p.skipSpace()
	rest := p.input[p.pos:]
	switch {
	case strings.HasPrefix(rest, "=="):
		p.pos += 2
		return OpEqual, true
	case strings.HasPrefix(rest, "!="):
		p.pos += 2
		return OpNotEqual, true
	case strings.HasPrefix(rest, ">="):
		p.pos += 2
		return OpGreaterEq, true
	case strings.HasPrefix(rest, "<="):
		p.pos += 2
		return OpLessEq, true
	case strings.HasPrefix(rest, ">"):
		p.pos++
		return OpGreater, true
	case strings.HasPrefix(rest, "<"):
		p.pos++
		return OpLess, true
	}
	return 0, false
}

func (p *condParser) lexIdent() string {
	start := p.pos
	for p.pos < len(p.input) {
		r, size := utf8.DecodeRuneInString(p.input[p.pos:])
		if r == '_' || unicode.IsLetter(r) || (p.pos > start && unicode.IsDigit(r)) {
			p.pos += size
			continue
		}
		break
	}
	return p.input[start:p.pos]
}

func (p *condParser) lexString() (Expr, error) {
	quote := p.input[p.pos]
	start := p.pos
	p.pos++
	for p.pos < len(p.input) {
		if p.input[p.pos] == quote {
			value := p.input[start+1 : p.pos]
			p.pos++
			return StringExpr{Value: value}, nil
		}
		p.pos++
	}
	return nil, condErrorf(start, "unterminated string")
}

func (p *condParser) lexNumber() (Expr, error) {
	start := p.pos
	if p.input[p.pos] == '-' {
		p.pos++
	}
	digits := 0
	for p.pos < len(p.input) && p.input[p.pos] >= '0' && p.input[p.pos] <= '9' {
		p.pos++
		digits++
	}
	if p.pos < len(p.input) && p.input[p.pos] == '.' {
		p.pos++
		for p.pos < len(p.input) && p.input[p.pos] >= '0' && p.input[p.pos] <= '9' {
			p.pos++
			digits++
		}
	}
	if digits == 0 {
		return nil, condErrorf(start, "malformed number")
	}
	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return nil, condErrorf(start, "malformed number %q", p.input[start:p.pos])
	}
	return NumberExpr{Value: value}, nil
}

func (p *condParser) skipSpace() {
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

// ==========================
// Evaluator
// ==========================

// Evaluate applies an expression to rendered popup values. Missing
// references, type mismatches, and malformed calls evaluate to false;
// evaluation never fails.
func Evaluate(expr Expr, values map[string]interface{}) bool {
	switch e := expr.(type) {
	case OrExpr:
		for _, sub := range e.Exprs {
			if Evaluate(sub, values) {
				return true
			}
		}
		return false

	case AndExpr:
		for _, sub := range e.Exprs {
			if !Evaluate(sub, values) {
				return false
			}
		}
		return true

	case NotExpr:
		return !Evaluate(e.Expr, values)

	case CompareExpr:
		return compareValues(evalValue(e.Left, values), e.Op, evalValue(e.Right, values))

	case RefExpr:
		return isTruthy(values[e.ID])

	case NumberExpr:
		return e.Value != 0

	case StringExpr:
		return e.Value != ""

	case CountExpr:
		if ref, ok := e.Arg.(RefExpr); ok {
			return countSelections(values, ref.ID) > 0
		}
		return false

	case SelectedExpr:
		ref, ok := e.Ref.(RefExpr)
		if !ok {
			return false
		}
		return isSelected(values, ref.ID, evalString(e.Value, values))

	case AnyExpr:
		for _, sub := range e.Exprs {
			if Evaluate(sub, values) {
				return true
			}
		}
		return false

	case AllExpr:
		for _, sub := range e.Exprs {
			if !Evaluate(sub, values) {
				return false
			}
		}
		return true
	}
	return false
}

// evalValue reduces an expression to a comparable value: refs resolve from
// the value map, count() yields a number, anything else yields nil.
func evalValue(expr Expr, values map[string]interface{}) interface{} {
	switch e := expr.(type) {
	case RefExpr:
		return values[e.ID]
	case NumberExpr:
		return e.Value
	case StringExpr:
		return e.Value
	case CountExpr:
		if ref, ok := e.Arg.(RefExpr); ok {
			return float64(countSelections(values, ref.ID))
		}
		return float64(0)
	}
	return nil
}

func evalString(expr Expr, values map[string]interface{}) string {
	switch e := expr.(type) {
	case StringExpr:
		return e.Value
	case NumberExpr:
		return strconv.FormatFloat(e.Value, 'f', -1, 64)
	case RefExpr:
		if s, ok := values[e.ID].(string); ok {
			return s
		}
	}
	return ""
}

const numberEpsilon = 1e-9

func compareValues(left interface{}, op CompareOp, right interface{}) bool {
	if lf, lok := asNumber(left); lok {
		if rf, rok := asNumber(right); rok {
			switch op {
			case OpEqual:
				return math.Abs(lf-rf) < numberEpsilon
			case OpNotEqual:
				return math.Abs(lf-rf) >= numberEpsilon
			case OpGreater:
				return lf > rf
			case OpLess:
				return lf < rf
			case OpGreaterEq:
				return lf >= rf
			case OpLessEq:
				return lf <= rf
			}
		}
	}

	if ls, ok := left.(string); ok {
		if rs, ok := right.(string); ok {
			switch op {
			case OpEqual:
				return ls == rs
			case OpNotEqual:
				return ls != rs
			case OpGreater:
				return ls > rs
			case OpLess:
				return ls < rs
			case OpGreaterEq:
				return ls >= rs
			case OpLessEq:
				return ls <= rs
			}
		}
	}

	switch op {
	case OpEqual:
		return reflect.DeepEqual(left, right)
	case OpNotEqual:
		return !reflect.DeepEqual(left, right)
	}
	return false
}

func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// isTruthy mirrors the GUI's visibility rules: false, zero, empty strings,
// empty collections, and null are all false.
func isTruthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []interface{}:
		return len(t) > 0
	case []string:
		return len(t) > 0
	case []bool:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	}
	if f, ok := asNumber(v); ok {
		return f != 0
	}
	return false
}

// countSelections counts how many selections an element value holds: a
// bool counts itself, arrays count their truthy entries, positive numbers
// count one.
func countSelections(values map[string]interface{}, id string) int {
	value, ok := values[id]
	if !ok {
		return 0
	}
	switch v := value.(type) {
	case bool:
		if v {
			return 1
		}
		return 0
	case []bool:
		n := 0
		for _, on := range v {
			if on {
				n++
			}
		}
		return n
	case []string:
		n := 0
		for _, s := range v {
			if s != "" {
				n++
			}
		}
		return n
	case []interface{}:
		n := 0
		for _, item := range v {
			if countsAsSelected(item) {
				n++
			}
		}
		return n
	}
	if f, ok := asNumber(value); ok && f > 0 {
		return 1
	}
	return 0
}

func countsAsSelected(item interface{}) bool {
	switch t := item.(type) {
	case bool:
		return t
	case string:
		return t != ""
	}
	if f, ok := asNumber(item); ok {
		return f > 0
	}
	return false
}

// isSelected reports whether a specific option is chosen: checks match on
// their own ID when on, selects match the chosen text, multis search their
// selection list.
func isSelected(values map[string]interface{}, id, option string) bool {
	value, ok := values[id]
	if !ok {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v && id == option
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
