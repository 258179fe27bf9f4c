// Package params validates and coerces raw MCP tool arguments.
// Agent-generated input is noisy: booleans arrive as "true" or "1",
// numbers as strings, and maps as JSON text. Coercion is lenient on
// form but strict on meaning, and validation collects every field
// error before reporting so the caller can fix all of them at once.
package params

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ValidationError aggregates one message per offending field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, f := range names {
		parts = append(parts, f+": "+e.Fields[f])
	}
	return "invalid arguments: " + strings.Join(parts, "; ")
}

// Args wraps a raw argument map and records coercion failures.
type Args struct {
	raw  map[string]any
	errs map[string]string
}

// Parse wraps raw arguments for typed extraction.
func Parse(raw map[string]any) *Args {
	if raw == nil {
		raw = map[string]any{}
	}
	return &Args{raw: raw, errs: map[string]string{}}
}

// Err returns the aggregated ValidationError, or nil when every
// extraction succeeded.
func (a *Args) Err() error {
	if len(a.errs) == 0 {
		return nil
	}
	return &ValidationError{Fields: a.errs}
}

func (a *Args) fail(key, msg string) {
	if _, dup := a.errs[key]; !dup {
		a.errs[key] = msg
	}
}

// Has reports whether the argument was provided at all.
func (a *Args) Has(key string) bool {
	v, ok := a.raw[key]
	return ok && v != nil
}

// String returns a string argument or the default when absent.
func (a *Args) String(key, def string) string {
	v, ok := a.raw[key]
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok {
		a.fail(key, fmt.Sprintf("expected string, got %T", v))
		return def
	}
	return s
}

// RequiredString returns a non-empty string argument.
func (a *Args) RequiredString(key string) string {
	v, ok := a.raw[key]
	if !ok || v == nil {
		a.fail(key, "required")
		return ""
	}
	s, ok := v.(string)
	if !ok {
		a.fail(key, fmt.Sprintf("expected string, got %T", v))
		return ""
	}
	if strings.TrimSpace(s) == "" {
		a.fail(key, "must not be empty")
	}
	return s
}

// Int accepts native numbers and numeric strings.
func (a *Args) Int(key string, def int) int {
	v, ok := a.raw[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		if n != float64(int(n)) {
			a.fail(key, "expected integer, got fraction")
			return def
		}
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
	}
	a.fail(key, fmt.Sprintf("expected integer, got %v", v))
	return def
}

// Float accepts native numbers and numeric strings.
func (a *Args) Float(key string, def float64) float64 {
	v, ok := a.raw[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f
		}
	}
	a.fail(key, fmt.Sprintf("expected number, got %v", v))
	return def
}

// Bool accepts native booleans and the usual textual spellings:
// true/false, 1/0, yes/no (case-insensitive).
func (a *Args) Bool(key string, def bool) bool {
	p := a.BoolPtr(key)
	if p == nil {
		return def
	}
	return *p
}

// BoolPtr is Bool with absence preserved, for tri-state flags.
func (a *Args) BoolPtr(key string) *bool {
	v, ok := a.raw[key]
	if !ok || v == nil {
		return nil
	}
	switch b := v.(type) {
	case bool:
		return &b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes":
			t := true
			return &t
		case "false", "0", "no":
			f := false
			return &f
		}
	case float64:
		if b == 1 {
			t := true
			return &t
		}
		if b == 0 {
			f := false
			return &f
		}
	}
	a.fail(key, fmt.Sprintf("expected boolean, got %v", v))
	return nil
}

// StringMap accepts an object with scalar values, or JSON text of one.
func (a *Args) StringMap(key string) map[string]string {
	v, ok := a.raw[key]
	if !ok || v == nil {
		return nil
	}
	if s, isStr := v.(string); isStr {
		if strings.TrimSpace(s) == "" {
			return nil
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			a.fail(key, "expected object or JSON object text")
			return nil
		}
		v = decoded
	}
	m, ok := v.(map[string]any)
	if !ok {
		a.fail(key, fmt.Sprintf("expected object, got %T", v))
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		switch s := val.(type) {
		case string:
			out[k] = s
		case float64:
			out[k] = strconv.FormatFloat(s, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(s)
		default:
			a.fail(key, fmt.Sprintf("value for %q must be a scalar", k))
		}
	}
	return out
}

// AnyMap accepts an object, or JSON text of one.
func (a *Args) AnyMap(key string) map[string]any {
	v, ok := a.raw[key]
	if !ok || v == nil {
		return nil
	}
	if s, isStr := v.(string); isStr {
		if strings.TrimSpace(s) == "" {
			return nil
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			a.fail(key, "expected object or JSON object text")
			return nil
		}
		return decoded
	}
	m, ok := v.(map[string]any)
	if !ok {
		a.fail(key, fmt.Sprintf("expected object, got %T", v))
		return nil
	}
	return m
}

// StringSlice accepts an array of strings, or JSON text of one.
func (a *Args) StringSlice(key string) []string {
	v, ok := a.raw[key]
	if !ok || v == nil {
		return nil
	}
	if s, isStr := v.(string); isStr {
		if strings.TrimSpace(s) == "" {
			return nil
		}
		var decoded []any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			a.fail(key, "expected array or JSON array text")
			return nil
		}
		v = decoded
	}
	list, ok := v.([]any)
	if !ok {
		if ss, isSlice := v.([]string); isSlice {
			return ss
		}
		a.fail(key, fmt.Sprintf("expected array, got %T", v))
		return nil
	}
	out := make([]string, 0, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			a.fail(key, fmt.Sprintf("element %d must be a string", i))
			continue
		}
		out = append(out, s)
	}
	return out
}

// Enum returns a string argument constrained to allowed values.
func (a *Args) Enum(key, def string, allowed ...string) string {
	s := a.String(key, def)
	if s == def {
		return s
	}
	for _, v := range allowed {
		if s == v {
			return s
		}
	}
	a.fail(key, fmt.Sprintf("must be one of %s", strings.Join(allowed, ", ")))
	return def
}
