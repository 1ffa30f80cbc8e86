// Package ollama embeds text through a local Ollama server's embeddings
// endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/emberworks/loopagent/retry"
)

const (
	// DefaultURL is the standard local Ollama embeddings endpoint.
	DefaultURL = "http://localhost:11434/api/embeddings"

	// DefaultModel is a small general-purpose embedding model.
	DefaultModel = "nomic-embed-text"
)

// Embedder calls an Ollama server for embeddings.
type Embedder struct {
	url    string
	model  string
	client *http.Client
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithURL overrides the embeddings endpoint.
func WithURL(url string) Option {
	return func(e *Embedder) { e.url = url }
}

// WithModel overrides the embedding model.
func WithModel(model string) Option {
	return func(e *Embedder) { e.model = model }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Embedder) { e.client = client }
}

// New creates an Ollama-backed embedder.
func New(opts ...Option) *Embedder {
	e := &Embedder{
		url:    DefaultURL,
		model:  DefaultModel,
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed posts the text to the embeddings endpoint.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		// Network-level failures are worth retrying.
		return nil, retry.Transient(fmt.Errorf("ollama embeddings: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := fmt.Errorf("ollama embeddings: status %d: %s", resp.StatusCode, msg)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, retry.Transient(statusErr)
		}
		return nil, statusErr
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("ollama embeddings: decode: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("ollama embeddings: empty vector for model %s", e.model)
	}
	return parsed.Embedding, nil
}
