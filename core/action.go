package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ActionType tags the variants of the Action union. The values match the
// line protocol the model is instructed to emit.
type ActionType string

const (
	ActionReasoning   ActionType = "REASONING"
	ActionToolCall    ActionType = "FUNCTION_CALL"
	ActionFinalAnswer ActionType = "FINAL_ANSWER"
	ActionError       ActionType = "ERROR"
)

// Action is one structured line from a model reply, decoded into a tagged
// union. Exactly one ToolCall or FinalAnswer advances a step; Reasoning and
// Error lines never execute tools on their own.
type Action struct {
	Type ActionType

	// Reasoning fields.
	Thought  string
	Category string

	// ToolCall fields.
	ToolName  string
	Arguments map[string]interface{}

	// FinalAnswer field.
	Value Value

	// Error field.
	Message string
}

// Actionable reports whether this action terminates a step: a tool call, a
// final answer, or a declared error. Reasoning lines are advisory context.
func (a Action) Actionable() bool {
	switch a.Type {
	case ActionToolCall, ActionFinalAnswer, ActionError:
		return true
	default:
		return false
	}
}

// Describe renders the action as "name(k=v, ...)" for audit history.
func (a Action) Describe() string {
	if a.Type != ActionToolCall {
		return string(a.Type)
	}
	parts := make([]string, 0, len(a.Arguments))
	for _, k := range sortedKeys(a.Arguments) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, a.Arguments[k]))
	}
	return fmt.Sprintf("%s(%s)", a.ToolName, strings.Join(parts, ", "))
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

// Per-variant wire structs. Decoding is strict: unknown fields or a missing
// required field fail the decode for that line, so a malformed line is
// dropped instead of producing a half-filled action.

type reasoningLine struct {
	Type     string `json:"type"`
	Category string `json:"reasoning_type"`
	Thought  string `json:"thought"`
}

type toolCallLine struct {
	Type string                 `json:"type"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

type finalAnswerLine struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

type errorLine struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ParseActionLine decodes a single reply line into an Action.
func ParseActionLine(line string) (Action, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Action{}, fmt.Errorf("empty line")
	}

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(line), &probe); err != nil {
		return Action{}, fmt.Errorf("not a JSON object: %w", err)
	}

	switch ActionType(probe.Type) {
	case ActionReasoning:
		var l reasoningLine
		if err := strictDecode(line, &l); err != nil {
			return Action{}, err
		}
		if l.Thought == "" {
			return Action{}, fmt.Errorf("reasoning line missing thought")
		}
		return Action{Type: ActionReasoning, Thought: l.Thought, Category: l.Category}, nil

	case ActionToolCall:
		var l toolCallLine
		if err := strictDecode(line, &l); err != nil {
			return Action{}, err
		}
		if l.Name == "" {
			return Action{}, fmt.Errorf("function call line missing name")
		}
		args := l.Args
		if args == nil {
			args = map[string]interface{}{}
		}
		return Action{Type: ActionToolCall, ToolName: l.Name, Arguments: args}, nil

	case ActionFinalAnswer:
		var l finalAnswerLine
		if err := strictDecode(line, &l); err != nil {
			return Action{}, err
		}
		if l.Value == nil {
			return Action{}, fmt.Errorf("final answer line missing value")
		}
		return Action{Type: ActionFinalAnswer, Value: Coerce(l.Value)}, nil

	case ActionError:
		var l errorLine
		if err := strictDecode(line, &l); err != nil {
			return Action{}, err
		}
		if l.Message == "" {
			return Action{}, fmt.Errorf("error line missing message")
		}
		return Action{Type: ActionError, Message: l.Message}, nil

	default:
		return Action{}, fmt.Errorf("unknown action type %q", probe.Type)
	}
}

func strictDecode(line string, dst interface{}) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(line)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("strict decode: %w", err)
	}
	return nil
}
