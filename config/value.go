package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is the result of a lookup. The zero Value is the "no value" result: Exists returns false and the accessors
// return zero values, so call sites can chain defaults with Or.
type Value struct {
	raw    interface{}
	exists bool
	source string
}

func newValue(raw interface{}, source string) Value {
	return Value{raw: raw, exists: true, source: source}
}

func (v Value) Exists() bool {
	return v.exists
}

// Source names the source the value was found in, empty if there was none.
func (v Value) Source() string {
	return v.source
}

// Raw returns the value as decoded from its source: a string, float64, bool, map or slice.
func (v Value) Raw() interface{} {
	return v.raw
}

func (v Value) String() string {
	switch raw := v.raw.(type) {
	case nil:
		return ""
	case string:
		return raw
	case float64:
		return strconv.FormatFloat(raw, 'f', -1, 64)
	default:
		return fmt.Sprint(raw)
	}
}

func (v Value) Float() float64 {
	switch raw := v.raw.(type) {
	case float64:
		return raw
	case bool:
		if raw {
			return 1
		}
		return 0
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		return f
	}
	return 0
}

func (v Value) Int() int {
	return int(v.Float())
}

func (v Value) Bool() bool {
	switch raw := v.raw.(type) {
	case bool:
		return raw
	case float64:
		return raw != 0
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(raw))
		return b
	}
	return false
}

// Or returns the value as a string, or `fallback` if there is no value.
func (v Value) Or(fallback string) string {
	if !v.exists {
		return fallback
	}
	return v.String()
}
