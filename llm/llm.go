// Package llm defines the language-generation boundary: prompt in, text out.
// Concrete providers live in subpackages; the orchestration core only ever
// sees this interface plus the error taxonomy in errors.go.
package llm

import "context"

// Provider is the language-generation boundary. Complete blocks until the
// provider replies, the context expires, or the provider fails. Callers own
// timeout and retry policy.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, prompt string) (string, error)

func (f ProviderFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
