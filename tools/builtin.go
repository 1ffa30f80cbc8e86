package tools

import (
	"context"
	"fmt"
	"math"
)

// RegisterBuiltins installs the standard arithmetic and string tools on the
// registry. The handlers intentionally return heterogeneous shapes (ints,
// floats, lists, formatted strings); normalizing them is the dispatcher's
// job, not theirs.
func RegisterBuiltins(r *Registry) {
	binary := func(name, description string, fn func(a, b float64) (interface{}, error)) {
		r.Register(Definition{
			Name:        name,
			Description: description,
			InputSchema: ObjectSchema(map[string]interface{}{
				"a": NumberProperty("First operand"),
				"b": NumberProperty("Second operand"),
			}, "a", "b"),
		}, func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			a, err := numberArg(args, "a")
			if err != nil {
				return nil, err
			}
			b, err := numberArg(args, "b")
			if err != nil {
				return nil, err
			}
			return fn(a, b)
		})
	}

	binary("add", "Add two numbers", func(a, b float64) (interface{}, error) {
		return a + b, nil
	})
	binary("subtract", "Subtract the second number from the first", func(a, b float64) (interface{}, error) {
		return a - b, nil
	})
	binary("multiply", "Multiply two numbers", func(a, b float64) (interface{}, error) {
		return a * b, nil
	})
	binary("divide", "Divide the first number by the second", func(a, b float64) (interface{}, error) {
		if b == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return a / b, nil
	})
	binary("power", "Raise the first number to the power of the second", func(a, b float64) (interface{}, error) {
		return math.Pow(a, b), nil
	})
	binary("remainder", "Remainder of dividing the first number by the second", func(a, b float64) (interface{}, error) {
		if b == 0 {
			return nil, fmt.Errorf("remainder by zero")
		}
		return math.Mod(a, b), nil
	})

	r.Register(Definition{
		Name:        "strings_to_chars_to_int",
		Description: "Return the ASCII values of the characters in a word",
		InputSchema: ObjectSchema(map[string]interface{}{
			"string": StringProperty("Word to convert"),
		}, "string"),
	}, func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		word, ok := args["string"].(string)
		if !ok {
			return nil, fmt.Errorf("argument %q must be a string", "string")
		}
		values := make([]interface{}, 0, len(word))
		for _, r := range word {
			values = append(values, int(r))
		}
		return values, nil
	})

	r.Register(Definition{
		Name:        "int_list_to_exponential_sum",
		Description: "Sum of exponentials of the numbers in a list",
		InputSchema: ObjectSchema(map[string]interface{}{
			"numbers": ArrayProperty("Numbers to exponentiate", NumberProperty("")),
		}, "numbers"),
	}, func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		raw, ok := args["numbers"].([]interface{})
		if !ok {
			return nil, fmt.Errorf("argument %q must be a list of numbers", "numbers")
		}
		var sum float64
		for i, elem := range raw {
			n, ok := toNumber(elem)
			if !ok {
				return nil, fmt.Errorf("element %d is not a number", i)
			}
			sum += math.Exp(n)
		}
		return sum, nil
	})
}

// OperatorSymbols maps builtin arithmetic tool names to their operator
// tokens. The decision engine uses this for result substitution.
var OperatorSymbols = map[string]string{
	"add":       "+",
	"subtract":  "-",
	"multiply":  "*",
	"divide":    "/",
	"power":     "**",
	"remainder": "%",
}

func numberArg(args map[string]interface{}, key string) (float64, error) {
	raw, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", key)
	}
	n, ok := toNumber(raw)
	if !ok {
		return 0, fmt.Errorf("argument %q must be a number, got %T", key, raw)
	}
	return n, nil
}

func toNumber(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
