// Package dispatch executes decided tool calls and normalizes their
// heterogeneous results into canonical values.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/emberworks/loopagent/core"
	"github.com/emberworks/loopagent/tools"
)

// Dispatcher routes tool calls through an invoker and coerces whatever
// comes back into a core.Value. The catalog is cached between refreshes;
// dispatch itself is fail-closed on names the catalog does not list.
type Dispatcher struct {
	invoker tools.Invoker

	mu      sync.RWMutex
	catalog []tools.Definition
	known   map[string]bool
}

// New wraps an invoker. Call Refresh before the first Dispatch.
func New(invoker tools.Invoker) *Dispatcher {
	return &Dispatcher{invoker: invoker, known: map[string]bool{}}
}

// Refresh reloads the tool catalog from the invoker.
func (d *Dispatcher) Refresh(ctx context.Context) error {
	defs, err := d.invoker.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}

	known := make(map[string]bool, len(defs))
	for _, def := range defs {
		known[def.Name] = true
	}

	d.mu.Lock()
	d.catalog = defs
	d.known = known
	d.mu.Unlock()

	log.Printf("[DISPATCH] Catalog refreshed, %d tools", len(defs))
	return nil
}

// Catalog returns the cached tool definitions.
func (d *Dispatcher) Catalog() []tools.Definition {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.catalog
}

// Dispatch invokes name with args and normalizes the result. A name absent
// from the catalog fails immediately with tools.ErrUnknownTool; nothing is
// sent to the invoker.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]interface{}) (core.Value, error) {
	d.mu.RLock()
	known := d.known[name]
	d.mu.RUnlock()

	if !known {
		return core.Value{}, fmt.Errorf("%w: %s", tools.ErrUnknownTool, name)
	}

	raw, err := d.invoker.CallTool(ctx, name, args)
	if err != nil {
		return core.Value{}, fmt.Errorf("tool %s: %w", name, err)
	}

	value := core.Coerce(raw)
	log.Printf("[DISPATCH] %s -> %s", name, value.String())
	return value, nil
}
