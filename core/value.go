package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueKind discriminates the canonical result shapes a tool dispatch can
// produce: an integer, a float, a string, or an ordered list of scalars.
type ValueKind int

const (
	KindInt ValueKind = iota
	KindFloat
	KindString
	KindList
)

func (k ValueKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Value is the canonical normalized result type. Tool boundaries return
// heterogeneous shapes (objects with content fields, raw strings, lists);
// everything is folded into a Value before it reaches the decision engine.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Str   string
	List  []Value
}

func IntValue(v int64) Value      { return Value{Kind: KindInt, Int: v} }
func FloatValue(v float64) Value  { return Value{Kind: KindFloat, Float: v} }
func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func ListValue(vs []Value) Value  { return Value{Kind: KindList, List: vs} }

// Coerce converts a raw value from a tool or provider reply into a Value.
//
// Coercion rules: numeric-looking strings become an int when they parse
// exactly as an integer, else a float, else stay a string. JSON numbers with
// an integral value become ints. Lists coerce element-wise; anything else is
// rendered as a string.
func Coerce(raw interface{}) Value {
	switch v := raw.(type) {
	case nil:
		return StringValue("")
	case Value:
		return v
	case int:
		return IntValue(int64(v))
	case int64:
		return IntValue(v)
	case float32:
		return coerceFloat(float64(v))
	case float64:
		return coerceFloat(v)
	case bool:
		return StringValue(strconv.FormatBool(v))
	case string:
		return coerceString(v)
	case []interface{}:
		list := make([]Value, 0, len(v))
		for _, elem := range v {
			list = append(list, Coerce(elem))
		}
		return ListValue(list)
	case []string:
		list := make([]Value, 0, len(v))
		for _, elem := range v {
			list = append(list, coerceString(elem))
		}
		return ListValue(list)
	case []float64:
		list := make([]Value, 0, len(v))
		for _, elem := range v {
			list = append(list, coerceFloat(elem))
		}
		return ListValue(list)
	default:
		// Last resort: structured shapes are flattened to their JSON text.
		if bytes, err := json.Marshal(v); err == nil {
			return StringValue(string(bytes))
		}
		return StringValue(fmt.Sprintf("%v", v))
	}
}

func coerceFloat(f float64) Value {
	if f == float64(int64(f)) {
		return IntValue(int64(f))
	}
	return FloatValue(f)
}

func coerceString(s string) Value {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return StringValue(s)
	}
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return IntValue(i)
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return FloatValue(f)
	}
	return StringValue(s)
}

// String renders the value as it is re-injected into prompts.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindString:
		return v.Str
	case KindList:
		parts := make([]string, len(v.List))
		for i, elem := range v.List {
			parts[i] = elem.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return ""
	}
}

// Equal reports deep equality between two values.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindInt:
		return v.Int == other.Int
	case KindFloat:
		return v.Float == other.Float
	case KindString:
		return v.Str == other.Str
	case KindList:
		if len(v.List) != len(other.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(other.List[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
