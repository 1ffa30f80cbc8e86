package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/emberworks/loopagent/core"
	"github.com/emberworks/loopagent/dispatch"
	"github.com/emberworks/loopagent/llm"
	"github.com/emberworks/loopagent/memory"
	"github.com/emberworks/loopagent/memory/embedder/mock"
	"github.com/emberworks/loopagent/retry"
	"github.com/emberworks/loopagent/tools"
)

const perceptionReply = `{"intent": "compute", "entities": ["15", "5"], "tool_hint": "add", "content_type": "computational", "recency_hint": "timeless", "specificity": "narrow"}`

// scriptProvider answers the perception prompt with a canned extraction and
// pops decision replies from a queue.
type scriptProvider struct {
	replies []string
	calls   int
}

func (p *scriptProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "extracts structured facts") {
		return perceptionReply, nil
	}
	p.calls++
	if len(p.replies) == 0 {
		return "", nil
	}
	reply := p.replies[0]
	if len(p.replies) > 1 {
		p.replies = p.replies[1:]
	}
	return reply, nil
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, Multiplier: 2.0}
}

func newTestOrchestrator(t *testing.T, provider llm.Provider, opts ...Option) (*Orchestrator, *memory.Store) {
	t.Helper()
	store, err := memory.Open(mock.New())
	if err != nil {
		t.Fatalf("Open store failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry := tools.NewRegistry()
	tools.RegisterBuiltins(registry)

	opts = append([]Option{WithRetryPolicy(fastPolicy()), WithCallTimeout(time.Second)}, opts...)
	return New(provider, store, dispatch.New(registry), opts...), store
}

func TestRun_ConvergesByArithmetic(t *testing.T) {
	provider := &scriptProvider{replies: []string{
		`{"type": "REASONING", "reasoning_type": "arithmetic", "thought": "add the numbers"}
{"type": "FUNCTION_CALL", "name": "add", "args": {"a": 15, "b": 5}}`,
	}}
	o, store := newTestOrchestrator(t, provider)

	outcome, err := o.Run(context.Background(), Input{Task: "15 + 5", MaxSteps: 5})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Kind != OutcomeFinalAnswer {
		t.Fatalf("outcome = %s (%s)", outcome.Kind, outcome.Reason)
	}
	if outcome.Answer == nil || outcome.Answer.Kind != core.KindInt || outcome.Answer.Int != 20 {
		t.Errorf("answer = %+v, want int 20", outcome.Answer)
	}
	if outcome.Iterations != 1 {
		t.Errorf("iterations = %d, want 1", outcome.Iterations)
	}
	if len(outcome.History) != 1 {
		t.Errorf("history length = %d, want 1", len(outcome.History))
	}
	if store.Len() == 0 {
		t.Error("tool result was not recorded to memory")
	}
}

func TestRun_FinalAnswerFromModel(t *testing.T) {
	provider := &scriptProvider{replies: []string{
		`{"type": "FUNCTION_CALL", "name": "add", "args": {"a": 15, "b": 5}}`,
		`{"type": "FINAL_ANSWER", "value": 20}`,
	}}
	o, _ := newTestOrchestrator(t, provider)

	outcome, err := o.Run(context.Background(), Input{Task: "What is 15 + 5?", MaxSteps: 5})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Kind != OutcomeFinalAnswer {
		t.Fatalf("outcome = %s (%s)", outcome.Kind, outcome.Reason)
	}
	if outcome.Answer.Int != 20 {
		t.Errorf("answer = %s", outcome.Answer.String())
	}
	if outcome.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", outcome.Iterations)
	}
}

func TestRun_MaxStepsReached(t *testing.T) {
	provider := &scriptProvider{replies: []string{
		`{"type": "REASONING", "reasoning_type": "logic", "thought": "still thinking"}`,
	}}
	o, _ := newTestOrchestrator(t, provider)

	outcome, err := o.Run(context.Background(), Input{Task: "an unsolvable riddle", MaxSteps: 2})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Kind != OutcomeMaxStepsReached {
		t.Fatalf("outcome = %s", outcome.Kind)
	}
	if outcome.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", outcome.Iterations)
	}
}

func TestRun_UnknownToolRecordsAndContinues(t *testing.T) {
	provider := &scriptProvider{replies: []string{
		`{"type": "FUNCTION_CALL", "name": "launch_rocket", "args": {}}`,
		`{"type": "FINAL_ANSWER", "value": 42}`,
	}}
	o, _ := newTestOrchestrator(t, provider)

	outcome, err := o.Run(context.Background(), Input{Task: "do something", MaxSteps: 3})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Kind != OutcomeFinalAnswer {
		t.Fatalf("outcome = %s (%s)", outcome.Kind, outcome.Reason)
	}
	if len(outcome.History) != 1 {
		t.Fatalf("history length = %d, want the recorded failure", len(outcome.History))
	}
	if !strings.Contains(outcome.History[0].Result.String(), "unknown tool") {
		t.Errorf("failure step = %q", outcome.History[0].Result.String())
	}
}

func TestAct_FailedDispatchLeavesLastResultAlone(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOrchestrator(t, &scriptProvider{})
	if err := o.dispatcher.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	state := core.NewSessionState("session-test", "do something")
	state.NextIteration()

	unknown := core.Action{Type: core.ActionToolCall, ToolName: "launch_rocket", Arguments: map[string]interface{}{}}
	if _, done := o.act(ctx, state, unknown); done {
		t.Fatal("unknown tool ended the run")
	}
	if state.LastResult != nil {
		t.Fatalf("failed dispatch mutated LastResult: %v", *state.LastResult)
	}

	add := core.Action{Type: core.ActionToolCall, ToolName: "add", Arguments: map[string]interface{}{"a": 15.0, "b": 5.0}}
	state.NextIteration()
	o.act(ctx, state, add)
	if state.LastResult == nil || state.LastResult.Int != 20 {
		t.Fatalf("successful dispatch did not set LastResult: %v", state.LastResult)
	}

	state.NextIteration()
	if _, done := o.act(ctx, state, unknown); done {
		t.Fatal("unknown tool ended the run")
	}
	if state.LastResult == nil || state.LastResult.Int != 20 {
		t.Errorf("failed dispatch overwrote LastResult: %v", state.LastResult)
	}
}

func TestRun_StopOnToolError(t *testing.T) {
	provider := &scriptProvider{replies: []string{
		`{"type": "FUNCTION_CALL", "name": "launch_rocket", "args": {}}`,
	}}
	o, _ := newTestOrchestrator(t, provider, WithStopOnToolError())

	outcome, err := o.Run(context.Background(), Input{Task: "do something", MaxSteps: 3})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Kind != OutcomeRunFailed {
		t.Fatalf("outcome = %s", outcome.Kind)
	}
	if !strings.Contains(outcome.Reason, "launch_rocket") {
		t.Errorf("reason = %q", outcome.Reason)
	}
}

func TestRun_ModelDeclaredError(t *testing.T) {
	provider := &scriptProvider{replies: []string{
		`{"type": "ERROR", "message": "the task is impossible"}`,
	}}
	o, _ := newTestOrchestrator(t, provider)

	outcome, err := o.Run(context.Background(), Input{Task: "square the circle", MaxSteps: 3})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Kind != OutcomeRunFailed {
		t.Fatalf("outcome = %s", outcome.Kind)
	}
	if !strings.Contains(outcome.Reason, "impossible") {
		t.Errorf("reason = %q", outcome.Reason)
	}
}

func TestRun_ProviderExhaustionFailsRun(t *testing.T) {
	provider := llm.ProviderFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", &llm.ProviderError{Provider: "test", Message: "overloaded", StatusCode: 529, Retryable: true}
	})
	o, _ := newTestOrchestrator(t, provider)

	outcome, err := o.Run(context.Background(), Input{Task: "15 + 5", MaxSteps: 3})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if outcome.Kind != OutcomeRunFailed {
		t.Fatalf("outcome = %s", outcome.Kind)
	}
	if !strings.Contains(outcome.Reason, "decision failed") {
		t.Errorf("reason = %q", outcome.Reason)
	}
}

func TestRun_NoToolCallsWritesNoMemory(t *testing.T) {
	provider := &scriptProvider{replies: []string{
		`{"type": "FINAL_ANSWER", "value": "done"}`,
	}}
	o, store := newTestOrchestrator(t, provider)

	if _, err := o.Run(context.Background(), Input{Task: "anything", MaxSteps: 1}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// A final answer without tool calls writes nothing; the store stays empty.
	if store.Len() != 0 {
		t.Errorf("store has %d records", store.Len())
	}
}
