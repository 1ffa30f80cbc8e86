// Package tools defines the tool-invocation boundary: listing tools and
// calling one by name with structured arguments. The in-process Registry is
// the default Invoker; tools/remote provides the same contract over a
// websocket tool host.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
)

// ErrUnknownTool is returned when a call names a tool absent from the
// catalog. It is never retried.
var ErrUnknownTool = errors.New("unknown tool")

// Definition describes one callable tool.
type Definition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// Invoker is the tool-invocation boundary.
type Invoker interface {
	// ListTools returns the current tool catalog in a stable order.
	ListTools(ctx context.Context) ([]Definition, error)

	// CallTool invokes a tool by name. The result shape is tool-specific;
	// the dispatcher normalizes it.
	CallTool(ctx context.Context, name string, args map[string]interface{}) (interface{}, error)
}

// Handler executes a tool call.
type Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Tool pairs a definition with its handler.
type Tool struct {
	Definition Definition
	Handler    Handler
}

// Registry is an in-process tool catalog implementing Invoker.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool.
func (r *Registry) Register(def Definition, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = Tool{Definition: def, Handler: handler}
}

// Get returns a registered tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// ListTools implements Invoker. The catalog is sorted by name so prompt
// injection is deterministic.
func (r *Registry) ListTools(ctx context.Context) ([]Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

// CallTool implements Invoker.
func (r *Registry) CallTool(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	log.Printf("[TOOLS] Calling %s with %v", name, args)
	return tool.Handler(ctx, args)
}

// DescribeCatalog renders definitions as a numbered list for prompt
// injection.
func DescribeCatalog(defs []Definition) string {
	out := ""
	for i, def := range defs {
		params := "no parameters"
		if props, ok := def.InputSchema["properties"].(map[string]interface{}); ok && len(props) > 0 {
			names := make([]string, 0, len(props))
			for name, raw := range props {
				typ := "unknown"
				if info, ok := raw.(map[string]interface{}); ok {
					if t, ok := info["type"].(string); ok {
						typ = t
					}
				}
				names = append(names, fmt.Sprintf("%s: %s", name, typ))
			}
			sort.Strings(names)
			params = ""
			for j, n := range names {
				if j > 0 {
					params += ", "
				}
				params += n
			}
		}
		out += fmt.Sprintf("%d. %s(%s) - %s\n", i+1, def.Name, params, def.Description)
	}
	return out
}
