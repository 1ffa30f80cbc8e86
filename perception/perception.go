// Package perception extracts structured signals from raw user input with
// an LLM. Extraction is strictly best effort: any provider or parse
// failure degrades to a record holding only the raw input, never an error.
package perception

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/emberworks/loopagent/llm"
)

// Record is the structured reading of one user input. Every field except
// RawInput may be empty when extraction degraded.
type Record struct {
	RawInput    string   `json:"user_input"`
	Intent      string   `json:"intent,omitempty"`
	Entities    []string `json:"entities,omitempty"`
	ToolHint    string   `json:"tool_hint,omitempty"`
	ContentType string   `json:"content_type,omitempty"`
	RecencyHint string   `json:"recency_hint,omitempty"`
	Specificity string   `json:"specificity,omitempty"`
}

const extractionPrompt = `You are an AI that extracts structured facts from user input.

Input: "%s"

Return a JSON object with keys:
- intent: brief phrase about what the user wants
- entities: a list of strings for keywords or values (e.g., ["INDIA", "ASCII"])
- tool_hint: name of a tool that might be useful, if any
- content_type: one of "factual", "computational", "conversational"
- recency_hint: one of "recent", "historical", "timeless"
- specificity: one of "broad", "narrow"

Output only the JSON object on a single line. Do NOT wrap it in ` + "```json or other formatting." + `
`

// Extractor runs perception through an LLM provider.
type Extractor struct {
	provider llm.Provider
}

// New creates an extractor.
func New(provider llm.Provider) *Extractor {
	return &Extractor{provider: provider}
}

// Extract asks the provider for structured signals. On any failure the raw
// input is preserved and the degradation is logged; Extract never fails.
func (e *Extractor) Extract(ctx context.Context, input string) Record {
	fallback := Record{RawInput: input}

	reply, err := e.provider.Complete(ctx, fmt.Sprintf(extractionPrompt, input))
	if err != nil {
		log.Printf("[PERCEPTION] Extraction failed, using raw input: %v", err)
		return fallback
	}

	rec, err := parseReply(reply)
	if err != nil {
		log.Printf("[PERCEPTION] Unparseable extraction %q, using raw input: %v", firstLine(reply), err)
		return fallback
	}
	rec.RawInput = input
	log.Printf("[PERCEPTION] Intent=%q ToolHint=%q Entities=%v", rec.Intent, rec.ToolHint, rec.Entities)
	return rec
}

// parseReply decodes the model's JSON, tolerating markdown fences and an
// entities value emitted as a map instead of a list.
func parseReply(reply string) (Record, error) {
	cleaned := stripFences(reply)

	var loose struct {
		Intent      string      `json:"intent"`
		Entities    interface{} `json:"entities"`
		ToolHint    string      `json:"tool_hint"`
		ContentType string      `json:"content_type"`
		RecencyHint string      `json:"recency_hint"`
		Specificity string      `json:"specificity"`
	}
	if err := json.Unmarshal([]byte(cleaned), &loose); err != nil {
		return Record{}, err
	}

	return Record{
		Intent:      loose.Intent,
		Entities:    entityList(loose.Entities),
		ToolHint:    loose.ToolHint,
		ContentType: loose.ContentType,
		RecencyHint: loose.RecencyHint,
		Specificity: loose.Specificity,
	}, nil
}

// entityList flattens entities into strings. Models sometimes return a map
// of category to value; the values are kept, the categories dropped.
func entityList(raw interface{}) []string {
	switch v := raw.(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, stringify(item))
		}
		return out
	case map[string]interface{}:
		// Sorted keys keep the flattened list stable across runs.
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			out = append(out, stringify(v[k]))
		}
		return out
	case nil:
		return nil
	default:
		return []string{stringify(v)}
	}
}

func stringify(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
