// Package decision turns loop state into an LLM prompt and the LLM's reply
// into typed actions.
package decision

import (
	"fmt"
	"log"
	"strings"

	"github.com/emberworks/loopagent/core"
	"github.com/emberworks/loopagent/memory"
	"github.com/emberworks/loopagent/perception"
	"github.com/emberworks/loopagent/tools"
)

// PromptInput is everything the decision prompt is composed from.
type PromptInput struct {
	Goal       string
	Remaining  string
	Iteration  int
	MaxSteps   int
	History    []core.ComputationStep
	Memories   []memory.Record
	Perception perception.Record
	Catalog    []tools.Definition
}

const header = `You are an agent solving problems step by step. You have access to tools and must respond with structured actions.

Available tools:
%s

Respond with one action per line. Each line is a single JSON object in one of these forms:
{"type": "REASONING", "reasoning_type": "arithmetic|lookup|logic|string", "thought": "..."}
{"type": "FUNCTION_CALL", "name": "tool_name", "args": {"param": value}}
{"type": "FINAL_ANSWER", "value": ...}
{"type": "ERROR", "message": "..."}

Emit a REASONING line before each FUNCTION_CALL. Emit FINAL_ANSWER only when the task is fully solved. Do not output anything except these JSON lines.`

// BuildPrompt renders the decision prompt for one iteration.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, header, tools.DescribeCatalog(in.Catalog))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Task: %s\n", in.Goal)
	fmt.Fprintf(&b, "Iteration: %d of %d\n", in.Iteration, in.MaxSteps)

	if p := in.Perception; p.Intent != "" || p.ToolHint != "" || len(p.Entities) > 0 {
		b.WriteString("\nWhat I understand about the task:\n")
		if p.Intent != "" {
			fmt.Fprintf(&b, "- Intent: %s\n", p.Intent)
		}
		if len(p.Entities) > 0 {
			fmt.Fprintf(&b, "- Entities: %s\n", strings.Join(p.Entities, ", "))
		}
		if p.ToolHint != "" {
			fmt.Fprintf(&b, "- Suggested tool: %s\n", p.ToolHint)
		}
	}

	if len(in.Memories) > 0 {
		b.WriteString("\nRelevant memories:\n")
		for _, rec := range in.Memories {
			fmt.Fprintf(&b, "- %s\n", rec.Text)
		}
	}

	if len(in.History) > 0 {
		b.WriteString("\nWork so far:\n")
		for i, step := range in.History {
			b.WriteString(step.Format(i+1) + "\n")
		}
	}

	if in.Remaining != "" {
		fmt.Fprintf(&b, "\nRemaining expression: %s\n", in.Remaining)
	}

	b.WriteString("\nWhat is the next action?")
	return b.String()
}

// ParseReply splits the model output into lines and parses each into an
// action. Unparseable lines are logged and discarded; a reply with no
// parseable line yields an empty slice.
func ParseReply(reply string) []core.Action {
	var actions []core.Action
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		action, err := core.ParseActionLine(line)
		if err != nil {
			log.Printf("[DECISION] Discarding unparseable line %q: %v", line, err)
			continue
		}
		actions = append(actions, action)
	}
	return actions
}

// SelectAction returns the first actionable entry, a tool call, final
// answer, or error. Reasoning lines are context, not actions.
func SelectAction(actions []core.Action) (core.Action, bool) {
	for _, action := range actions {
		if action.Actionable() {
			return action, true
		}
	}
	return core.Action{}, false
}
