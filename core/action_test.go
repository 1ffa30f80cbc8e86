package core

import (
	"strings"
	"testing"
)

func TestParseActionLine_Reasoning(t *testing.T) {
	a, err := ParseActionLine(`{"type": "REASONING", "reasoning_type": "arithmetic", "thought": "I need to add two numbers."}`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if a.Type != ActionReasoning {
		t.Errorf("expected REASONING, got %s", a.Type)
	}
	if a.Category != "arithmetic" {
		t.Errorf("expected category arithmetic, got %q", a.Category)
	}
	if a.Actionable() {
		t.Error("reasoning must not be actionable")
	}
}

func TestParseActionLine_ToolCall(t *testing.T) {
	a, err := ParseActionLine(`{"type": "FUNCTION_CALL", "name": "add", "args": {"a": 15, "b": 5}}`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if a.Type != ActionToolCall || a.ToolName != "add" {
		t.Fatalf("unexpected action: %+v", a)
	}
	if a.Arguments["a"].(float64) != 15 {
		t.Errorf("argument a = %v", a.Arguments["a"])
	}
	if !a.Actionable() {
		t.Error("tool call must be actionable")
	}
	if got := a.Describe(); got != "add(a=15, b=5)" {
		t.Errorf("Describe() = %q", got)
	}
}

func TestParseActionLine_ToolCallNoArgs(t *testing.T) {
	a, err := ParseActionLine(`{"type": "FUNCTION_CALL", "name": "open_canvas", "args": {}}`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if a.Arguments == nil || len(a.Arguments) != 0 {
		t.Errorf("expected empty args map, got %v", a.Arguments)
	}
}

func TestParseActionLine_FinalAnswer(t *testing.T) {
	a, err := ParseActionLine(`{"type": "FINAL_ANSWER", "value": 20}`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if a.Type != ActionFinalAnswer {
		t.Fatalf("unexpected action: %+v", a)
	}
	if !a.Value.Equal(IntValue(20)) {
		t.Errorf("value = %+v", a.Value)
	}
}

func TestParseActionLine_Error(t *testing.T) {
	a, err := ParseActionLine(`{"type": "ERROR", "message": "ambiguous request"}`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if a.Type != ActionError || a.Message != "ambiguous request" {
		t.Fatalf("unexpected action: %+v", a)
	}
}

func TestParseActionLine_Rejects(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{"prose", "let me think about that"},
		{"unknown type", `{"type": "VERIFY", "value": 1}`},
		{"missing thought", `{"type": "REASONING", "reasoning_type": "logic"}`},
		{"missing name", `{"type": "FUNCTION_CALL", "args": {}}`},
		{"missing value", `{"type": "FINAL_ANSWER"}`},
		{"missing message", `{"type": "ERROR"}`},
		{"unknown field", `{"type": "FUNCTION_CALL", "name": "add", "args": {}, "bonus": 1}`},
		{"empty", "   "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseActionLine(tc.line); err == nil {
				t.Errorf("expected decode failure for %q", tc.line)
			}
		})
	}
}

func TestCoerce(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		want Value
	}{
		{"exact int string", "20", IntValue(20)},
		{"float string", "3.5", FloatValue(3.5)},
		{"plain string", "hello world", StringValue("hello world")},
		{"integral float", 20.0, IntValue(20)},
		{"fractional float", 2.25, FloatValue(2.25)},
		{"int", 7, IntValue(7)},
		{"negative int string", "-9", IntValue(-9)},
		{"list", []interface{}{"1", "2.5", "x"}, ListValue([]Value{IntValue(1), FloatValue(2.5), StringValue("x")})},
		{"nil", nil, StringValue("")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Coerce(tc.in)
			if !got.Equal(tc.want) {
				t.Errorf("Coerce(%v) = %+v, want %+v", tc.in, got, tc.want)
			}
		})
	}
}

func TestValueString(t *testing.T) {
	v := ListValue([]Value{IntValue(73), IntValue(78)})
	if got := v.String(); got != "[73, 78]" {
		t.Errorf("String() = %q", got)
	}
	if got := FloatValue(3.5).String(); got != "3.5" {
		t.Errorf("String() = %q", got)
	}
	if got := IntValue(20).String(); strings.Contains(got, ".") {
		t.Errorf("int rendering carries a decimal point: %q", got)
	}
}

func TestSessionState(t *testing.T) {
	s := NewSessionState("session-1", "15 + 5")
	if s.Remaining != "15 + 5" {
		t.Errorf("Remaining = %q", s.Remaining)
	}
	action := Action{Type: ActionToolCall, ToolName: "add", Arguments: map[string]interface{}{"a": 15.0, "b": 5.0}}
	s.NextIteration()
	step := s.AddStep(action, IntValue(20))
	if step.Iteration != 1 {
		t.Errorf("step iteration = %d", step.Iteration)
	}
	if s.LastResult == nil || !s.LastResult.Equal(IntValue(20)) {
		t.Errorf("LastResult = %+v", s.LastResult)
	}
	if len(s.History) != 1 || len(s.Responses) != 1 {
		t.Errorf("history/responses not recorded: %d/%d", len(s.History), len(s.Responses))
	}
}
