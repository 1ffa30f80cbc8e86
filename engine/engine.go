// Package engine runs the bounded agent loop: perceive the task, retrieve
// memory, ask the model for an action, dispatch tools, and check for
// convergence, for at most a fixed number of steps.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/emberworks/loopagent/core"
	"github.com/emberworks/loopagent/decision"
	"github.com/emberworks/loopagent/dispatch"
	"github.com/emberworks/loopagent/llm"
	"github.com/emberworks/loopagent/memory"
	"github.com/emberworks/loopagent/perception"
	"github.com/emberworks/loopagent/retry"
	"github.com/emberworks/loopagent/tools"
)

// Phase names the orchestrator's position in the loop, for logs.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhasePerceiving Phase = "perceiving"
	PhaseRetrieving Phase = "retrieving"
	PhaseDeciding   Phase = "deciding"
	PhaseActing     Phase = "acting"
	PhaseRecording  Phase = "recording"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// OutcomeKind classifies how a run ended.
type OutcomeKind string

const (
	OutcomeFinalAnswer     OutcomeKind = "final_answer"
	OutcomeMaxStepsReached OutcomeKind = "max_steps_reached"
	OutcomeRunFailed       OutcomeKind = "run_failed"
)

// Input starts one run.
type Input struct {
	Task      string
	SessionID string // empty generates session-<unix>
	MaxSteps  int    // zero takes the orchestrator default
}

// Outcome is the result of one run. Answer is set only for a final answer;
// Reason explains the other two kinds. History is always populated.
type Outcome struct {
	Kind       OutcomeKind
	Answer     *core.Value
	Reason     string
	History    []core.ComputationStep
	Iterations int
}

// Orchestrator owns the loop. It is safe to reuse across runs; each run
// gets its own session state.
type Orchestrator struct {
	provider   llm.Provider
	perceptor  *perception.Extractor
	store      *memory.Store
	dispatcher *dispatch.Dispatcher

	policy          retry.Policy
	callTimeout     time.Duration
	maxSteps        int
	topK            int
	stopOnToolError bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxSteps sets the default iteration ceiling.
func WithMaxSteps(n int) Option {
	return func(o *Orchestrator) { o.maxSteps = n }
}

// WithCallTimeout bounds each external call (completion, embedding,
// dispatch).
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.callTimeout = d }
}

// WithRetryPolicy overrides the retry policy for external calls.
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithTopK sets how many memories feed each decision prompt.
func WithTopK(k int) Option {
	return func(o *Orchestrator) { o.topK = k }
}

// WithStopOnToolError makes an unknown or failing tool end the run instead
// of recording the failure and continuing.
func WithStopOnToolError() Option {
	return func(o *Orchestrator) { o.stopOnToolError = true }
}

// New assembles an orchestrator. The store may be nil to run without
// memory.
func New(provider llm.Provider, store *memory.Store, dispatcher *dispatch.Dispatcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:    provider,
		perceptor:   perception.New(provider),
		store:       store,
		dispatcher:  dispatcher,
		policy:      retry.DefaultPolicy(),
		callTimeout: 10 * time.Second,
		maxSteps:    5,
		topK:        3,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the loop until a final answer, the step ceiling, or an
// unrecoverable failure. The error return is reserved for context
// cancellation; provider and tool failures are reported in the Outcome.
func (o *Orchestrator) Run(ctx context.Context, in Input) (Outcome, error) {
	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = fmt.Sprintf("session-%d", time.Now().Unix())
	}
	maxSteps := in.MaxSteps
	if maxSteps <= 0 {
		maxSteps = o.maxSteps
	}

	state := core.NewSessionState(sessionID, in.Task)
	log.Printf("[ENGINE] %s: starting run, task=%q maxSteps=%d", sessionID, in.Task, maxSteps)

	if err := o.dispatcher.Refresh(ctx); err != nil {
		return o.fail(state, fmt.Sprintf("tool catalog unavailable: %v", err)), ctx.Err()
	}

	o.logPhase(sessionID, PhasePerceiving)
	perceived := o.perceive(ctx, in.Task)

	for state.Iteration < maxSteps {
		if err := ctx.Err(); err != nil {
			return o.fail(state, "run cancelled"), err
		}
		state.NextIteration()

		o.logPhase(sessionID, PhaseRetrieving)
		memories := o.retrieve(ctx, state)

		o.logPhase(sessionID, PhaseDeciding)
		prompt := decision.BuildPrompt(decision.PromptInput{
			Goal:       state.CurrentGoal,
			Remaining:  state.Remaining,
			Iteration:  state.Iteration,
			MaxSteps:   maxSteps,
			History:    state.History,
			Memories:   memories,
			Perception: perceived,
			Catalog:    o.dispatcher.Catalog(),
		})

		reply, err := retry.Do(ctx, o.policy, func(ctx context.Context) (string, error) {
			callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
			defer cancel()
			return o.provider.Complete(callCtx, prompt)
		})
		if err != nil {
			var exhausted *retry.ExhaustedError
			if errors.As(err, &exhausted) {
				err = fmt.Errorf("%w: %v", llm.ErrProviderUnavailable, err)
			}
			return o.fail(state, fmt.Sprintf("decision failed: %v", err)), ctx.Err()
		}

		action, ok := decision.SelectAction(decision.ParseReply(reply))
		if !ok {
			log.Printf("[ENGINE] %s: iteration %d produced no actionable line", sessionID, state.Iteration)
			continue
		}

		switch action.Type {
		case core.ActionFinalAnswer:
			log.Printf("[ENGINE] %s: final answer %s after %d iterations", sessionID, action.Value.String(), state.Iteration)
			o.logPhase(sessionID, PhaseDone)
			answer := action.Value
			return Outcome{
				Kind:       OutcomeFinalAnswer,
				Answer:     &answer,
				History:    state.History,
				Iterations: state.Iteration,
			}, nil

		case core.ActionError:
			return o.fail(state, "model declared an error: "+action.Message), nil

		case core.ActionToolCall:
			outcome, done := o.act(ctx, state, action)
			if done {
				return outcome, nil
			}
		}
	}

	log.Printf("[ENGINE] %s: step ceiling %d reached", sessionID, maxSteps)
	return Outcome{
		Kind:       OutcomeMaxStepsReached,
		Reason:     fmt.Sprintf("no final answer after %d iterations", maxSteps),
		History:    state.History,
		Iterations: state.Iteration,
	}, nil
}

// act dispatches one tool call and folds the result into the session. The
// bool reports whether the run is finished.
func (o *Orchestrator) act(ctx context.Context, state *core.SessionState, action core.Action) (Outcome, bool) {
	o.logPhase(state.SessionID, PhaseActing)

	result, err := retry.Do(ctx, o.policy, func(ctx context.Context) (core.Value, error) {
		callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
		defer cancel()
		return o.dispatcher.Dispatch(callCtx, action.ToolName, action.Arguments)
	})
	if err != nil {
		log.Printf("[ENGINE] %s: tool %s failed: %v", state.SessionID, action.ToolName, err)
		if o.stopOnToolError {
			return o.fail(state, fmt.Sprintf("tool %s failed: %v", action.ToolName, err)), true
		}
		// Record the failure for later prompts without touching LastResult.
		state.History = append(state.History, core.ComputationStep{
			Iteration:         state.Iteration,
			ActionDescription: action.Describe(),
			Arguments:         action.Arguments,
			Result:            core.StringValue(toolErrorText(action.ToolName, err)),
			Timestamp:         time.Now(),
		})
		return Outcome{}, false
	}

	state.AddStep(action, result)
	state.Remaining = decision.SubstituteResult(state.Remaining, action.ToolName, action.Arguments, result)

	o.logPhase(state.SessionID, PhaseRecording)
	o.record(ctx, state, action, result)

	if decision.Converged(state.Remaining) && state.LastResult != nil && state.Remaining == state.LastResult.String() {
		log.Printf("[ENGINE] %s: converged to %s after %d iterations", state.SessionID, state.Remaining, state.Iteration)
		o.logPhase(state.SessionID, PhaseDone)
		answer := *state.LastResult
		return Outcome{
			Kind:       OutcomeFinalAnswer,
			Answer:     &answer,
			History:    state.History,
			Iterations: state.Iteration,
		}, true
	}
	return Outcome{}, false
}

// perceive extracts structure from the task once per run. Degradation is
// handled inside the extractor.
func (o *Orchestrator) perceive(ctx context.Context, task string) perception.Record {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	return o.perceptor.Extract(callCtx, task)
}

// retrieve fetches memories for the current goal. Failures are non-fatal;
// the decision just gets no memories.
func (o *Orchestrator) retrieve(ctx context.Context, state *core.SessionState) []memory.Record {
	if o.store == nil || o.topK <= 0 {
		return nil
	}
	memories, err := retry.Do(ctx, o.policy, func(ctx context.Context) ([]memory.Record, error) {
		callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
		defer cancel()
		return o.store.Retrieve(callCtx, state.CurrentGoal, o.topK)
	})
	if err != nil {
		log.Printf("[ENGINE] %s: memory retrieval failed, continuing without: %v", state.SessionID, err)
		return nil
	}
	return memories
}

// record writes the tool result to memory. Failures are non-fatal.
func (o *Orchestrator) record(ctx context.Context, state *core.SessionState, action core.Action, result core.Value) {
	if o.store == nil {
		return
	}
	text := fmt.Sprintf("Tool call: %s with %v, got: %s", action.ToolName, action.Arguments, result.String())
	_, err := retry.Do(ctx, o.policy, func(ctx context.Context) (memory.Record, error) {
		callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
		defer cancel()
		return o.store.Add(callCtx, memory.Record{
			Text:        text,
			Kind:        memory.KindToolOutput,
			ToolName:    action.ToolName,
			SourceQuery: state.CurrentGoal,
			Tags:        []string{action.ToolName},
			SessionID:   state.SessionID,
		})
	})
	if err != nil {
		log.Printf("[ENGINE] %s: memory write failed, continuing: %v", state.SessionID, err)
	}
}

func (o *Orchestrator) fail(state *core.SessionState, reason string) Outcome {
	o.logPhase(state.SessionID, PhaseFailed)
	log.Printf("[ENGINE] %s: run failed: %s", state.SessionID, reason)
	return Outcome{
		Kind:       OutcomeRunFailed,
		Reason:     reason,
		History:    state.History,
		Iterations: state.Iteration,
	}
}

func (o *Orchestrator) logPhase(sessionID string, phase Phase) {
	log.Printf("[ENGINE] %s: phase=%s", sessionID, phase)
}

func toolErrorText(name string, err error) string {
	if errors.Is(err, tools.ErrUnknownTool) {
		return "error: unknown tool " + name
	}
	return "error: " + err.Error()
}
