package decision

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/emberworks/loopagent/core"
	"github.com/emberworks/loopagent/tools"
)

// operatorPattern matches an arithmetic operator with digits on both sides.
// Requiring digits keeps hyphens and slashes in prose from counting as
// pending work.
var operatorPattern = regexp.MustCompile(`[\d)]\s*(\*\*|[-+*/%])\s*[\d(]`)

// Converged reports whether the expression has no arithmetic work left.
func Converged(remaining string) bool {
	return !operatorPattern.MatchString(remaining)
}

// SubstituteResult folds one computed step back into the remaining
// expression: for an arithmetic tool it replaces the textual "a op b" with
// the result. Non-arithmetic tools and absent patterns leave the
// expression unchanged.
func SubstituteResult(remaining, toolName string, args map[string]interface{}, result core.Value) string {
	op, ok := tools.OperatorSymbols[toolName]
	if !ok || remaining == "" {
		return remaining
	}

	a, aok := operand(args["a"])
	b, bok := operand(args["b"])
	if !aok || !bok {
		return remaining
	}

	for _, pattern := range []string{
		fmt.Sprintf("%s %s %s", a, op, b),
		fmt.Sprintf("%s%s%s", a, op, b),
		fmt.Sprintf("%s %s%s", a, op, b),
		fmt.Sprintf("%s%s %s", a, op, b),
	} {
		if strings.Contains(remaining, pattern) {
			return strings.Replace(remaining, pattern, result.String(), 1)
		}
	}
	return remaining
}

// operand renders a numeric argument the way it would appear in the
// expression text.
func operand(raw interface{}) (string, bool) {
	if raw == nil {
		return "", false
	}
	v := core.Coerce(raw)
	if v.Kind != core.KindInt && v.Kind != core.KindFloat {
		return "", false
	}
	return v.String(), true
}
