// Package tools defines the typed tool descriptors agents can call and the
// registry that holds them.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParamType is the JSON type of a tool parameter.
type ParamType string

// Parameter types.
const (
	String  ParamType = "string"
	Integer ParamType = "integer"
	Number  ParamType = "number"
	Boolean ParamType = "boolean"
	Array   ParamType = "array"
)

// Param declares one tool argument.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Enum        []string
	// Items is the element type of an Array param; String when empty.
	Items ParamType
}

// Tool is a named, described, typed callable.
//
// When StopAfterCall is true the agent ends its turn with the tool's output
// instead of handing it back to the model.
type Tool interface {
	Name() string
	Description() string
	Params() []Param
	StopAfterCall() bool
	Call(ctx context.Context, args Args) (string, error)
}

// Args are validated tool arguments keyed by parameter name.
type Args map[string]any

// String returns the string argument name, or "".
func (a Args) String(name string) string {
	if v, ok := a[name].(string); ok {
		return v
	}
	return ""
}

// Int returns the integer argument name, or def when absent.
func (a Args) Int(name string, def int) int {
	switch v := a[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Float returns the numeric argument name, or def when absent.
func (a Args) Float(name string, def float64) float64 {
	switch v := a[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// Bool returns the boolean argument name, or false.
func (a Args) Bool(name string) bool {
	v, _ := a[name].(bool)
	return v
}

// Strings returns the array argument name as strings, or nil.
func (a Args) Strings(name string) []string {
	v, _ := a[name].([]any)
	out := make([]string, 0, len(v))
	for _, e := range v {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Floats returns the numeric array argument name, or nil.
func (a Args) Floats(name string) []float64 {
	v, _ := a[name].([]any)
	out := make([]float64, 0, len(v))
	for _, e := range v {
		if f, ok := e.(float64); ok {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ArgumentError reports arguments that do not match a tool's params.
type ArgumentError struct {
	Tool  string
	Param string
	Msg   string
}

func (e *ArgumentError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("tool %s: %s", e.Tool, e.Msg)
	}
	return fmt.Sprintf("tool %s: argument %q %s", e.Tool, e.Param, e.Msg)
}

// ParseArgs decodes raw JSON arguments and checks them against params.
// Numbers given as strings are coerced, since models often quote them.
func ParseArgs(tool string, params []Param, raw []byte) (Args, error) {
	in := map[string]any{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, &ArgumentError{Tool: tool, Msg: "arguments are not a JSON object: " + err.Error()}
		}
	}

	out := make(Args, len(params))
	for _, p := range params {
		v, ok := in[p.Name]
		if !ok || v == nil {
			if p.Required {
				return nil, &ArgumentError{Tool: tool, Param: p.Name, Msg: "is required"}
			}
			continue
		}
		cv, err := coerce(p, v)
		if err != nil {
			return nil, &ArgumentError{Tool: tool, Param: p.Name, Msg: err.Error()}
		}
		out[p.Name] = cv
	}
	return out, nil
}

func coerce(p Param, v any) (any, error) {
	switch p.Type {
	case String:
		s, ok := v.(string)
		if !ok {
			switch n := v.(type) {
			case float64:
				s = strconv.FormatFloat(n, 'f', -1, 64)
			default:
				return nil, fmt.Errorf("must be a string")
			}
		}
		if len(p.Enum) > 0 && !contains(p.Enum, s) {
			return nil, fmt.Errorf("must be one of %v", p.Enum)
		}
		return s, nil
	case Integer:
		f, err := number(v)
		if err != nil {
			return nil, err
		}
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("must be an integer")
		}
		return int(f), nil
	case Number:
		return number(v)
	case Boolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			pb, err := strconv.ParseBool(b)
			if err != nil {
				return nil, fmt.Errorf("must be a boolean")
			}
			return pb, nil
		}
		return nil, fmt.Errorf("must be a boolean")
	case Array:
		return list(p, v)
	default:
		return v, nil
	}
}

// list coerces each element to p.Items. A comma-separated string is
// accepted in place of an array.
func list(p Param, v any) ([]any, error) {
	var in []any
	switch l := v.(type) {
	case []any:
		in = l
	case string:
		for _, part := range strings.Split(l, ",") {
			if part = strings.TrimSpace(part); part != "" {
				in = append(in, part)
			}
		}
	default:
		return nil, fmt.Errorf("must be an array")
	}
	elem := Param{Type: itemType(p), Enum: p.Enum}
	out := make([]any, 0, len(in))
	for i, e := range in {
		ce, err := coerce(elem, e)
		if err != nil {
			return nil, fmt.Errorf("element %d %w", i, err)
		}
		out = append(out, ce)
	}
	return out, nil
}

func itemType(p Param) ParamType {
	if p.Items == "" {
		return String
	}
	return p.Items
}

func number(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("must be a number")
		}
		return f, nil
	}
	return 0, fmt.Errorf("must be a number")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Schema renders params as a JSON schema object.
func Schema(params []Param) map[string]any {
	props := make(map[string]any, len(params))
	required := make([]string, 0, len(params))
	for _, p := range params {
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		switch {
		case p.Type == Array:
			items := map[string]any{"type": string(itemType(p))}
			if len(p.Enum) > 0 {
				items["enum"] = p.Enum
			}
			prop["items"] = items
		case len(p.Enum) > 0:
			prop["enum"] = p.Enum
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Func adapts a function to Tool.
type Func struct {
	ToolName        string
	ToolDescription string
	Parameters      []Param
	Stop            bool
	Fn              func(ctx context.Context, args Args) (string, error)
}

var _ Tool = Func{}

func (f Func) Name() string        { return f.ToolName }
func (f Func) Description() string { return f.ToolDescription }
func (f Func) Params() []Param     { return f.Parameters }
func (f Func) StopAfterCall() bool { return f.Stop }

// Call implements Tool.
func (f Func) Call(ctx context.Context, args Args) (string, error) {
	return f.Fn(ctx, args)
}
