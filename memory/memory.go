package memory

import (
	"context"
	"errors"
	"time"
)

// Kind classifies a memory record.
type Kind string

const (
	KindPreference Kind = "preference"
	KindToolOutput Kind = "tool_output"
	KindFact       Kind = "fact"
	KindQuery      Kind = "query"
	KindSystem     Kind = "system"
)

// Record is one immutable memory entry. The embedding is held in the
// similarity index, not serialized with the metadata.
type Record struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Kind        Kind      `json:"kind"`
	CreatedAt   time.Time `json:"created_at"`
	ToolName    string    `json:"tool_name,omitempty"`
	SourceQuery string    `json:"source_query,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`

	Embedding []float32 `json:"-"`
}

// Embedder converts text to a fixed-length vector. All embedders used with
// one Store must agree on vector length; the store pins the dimension to
// whatever the first added record produced.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

var (
	// ErrEmbeddingUnavailable reports that the embedding provider failed.
	// An Add that returns it has not modified the store.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrDimensionMismatch reports a vector whose length disagrees with
	// the store's pinned dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Similarity rescales a squared Euclidean distance into a descending score,
// 100/(1+d). It is a monotonic convenience for display, not a probability.
func Similarity(distance float32) float64 {
	return 100 / (1 + float64(distance))
}
