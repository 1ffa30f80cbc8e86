package core

import (
	"fmt"
	"time"
)

// ComputationStep is the audit record appended after each successful tool
// dispatch. The ordered step list forms the textual history re-injected into
// later prompts.
type ComputationStep struct {
	Iteration         int                    `json:"iteration"`
	ActionDescription string                 `json:"action_description"`
	Arguments         map[string]interface{} `json:"arguments"`
	Result            Value                  `json:"result"`
	Timestamp         time.Time              `json:"timestamp"`
}

// Format renders the step for prompt injection.
func (s ComputationStep) Format(number int) string {
	return fmt.Sprintf("Step %d:\n  Operation: %s\n  Result: %s",
		number, s.ActionDescription, s.Result.String())
}

// SessionState is the mutable state of exactly one orchestrator run. It is
// created at run start, owned exclusively by that run, and discarded when the
// run ends; memory records written during the run outlive it.
type SessionState struct {
	SessionID   string
	Iteration   int
	CurrentGoal string

	// Remaining is the task text with completed step results substituted in.
	Remaining string

	// LastResult is the most recent normalized tool result, nil before the
	// first successful dispatch.
	LastResult *Value

	History   []ComputationStep
	Responses []string
}

// NewSessionState initializes state for a fresh run.
func NewSessionState(sessionID, goal string) *SessionState {
	return &SessionState{
		SessionID:   sessionID,
		CurrentGoal: goal,
		Remaining:   goal,
	}
}

// AddStep appends a computation step and records its result as the most
// recent one.
func (s *SessionState) AddStep(action Action, result Value) ComputationStep {
	step := ComputationStep{
		Iteration:         s.Iteration,
		ActionDescription: action.Describe(),
		Arguments:         action.Arguments,
		Result:            result,
		Timestamp:         time.Now(),
	}
	s.History = append(s.History, step)
	r := result
	s.LastResult = &r
	s.Responses = append(s.Responses, fmt.Sprintf("Iteration %d result: %s", s.Iteration, result.String()))
	return step
}

// NextIteration advances the monotonic iteration counter.
func (s *SessionState) NextIteration() {
	s.Iteration++
}
