package memory

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"
)

// Store is an append-only memory store with similarity retrieval. All
// methods are safe for concurrent use; writes are serialized, retrievals
// may proceed in parallel.
type Store struct {
	mu       sync.RWMutex
	embedder Embedder
	records  []Record
	index    *flatIndex

	dir   string
	cache *ristretto.Cache
}

// Option configures a Store.
type Option func(*Store)

// WithDir enables persistence under dir. The store loads any existing
// layout on open and rewrites it after every successful add.
func WithDir(dir string) Option {
	return func(s *Store) { s.dir = dir }
}

// Open creates a store around an embedder. With WithDir, a previously
// persisted layout is reloaded; a corrupt or missing layout logs a warning
// and cold-starts empty.
func Open(embedder Embedder, opts ...Option) (*Store, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 24,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("embed cache: %w", err)
	}

	s := &Store{embedder: embedder, cache: cache}
	for _, opt := range opts {
		opt(s)
	}

	if s.dir != "" {
		if err := s.load(); err != nil {
			log.Printf("[MEMORY] Cold start, persisted layout unusable: %v", err)
			s.records = nil
			s.index = nil
		}
	}
	return s, nil
}

// Close releases the embed cache.
func (s *Store) Close() error {
	s.cache.Close()
	return nil
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// embed runs the embedder through the cache. Identical text never hits the
// provider twice.
func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := s.cache.Get(text); ok {
		return cached.([]float32), nil
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		// Keep the embedder's error in the chain so its retry
		// classification survives.
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}
	s.cache.Set(text, vec, int64(len(vec)*4))
	return vec, nil
}

// Add embeds rec.Text and appends the record. A zero ID gets a generated
// one and a zero CreatedAt gets the current time. On any error the store
// is unchanged.
func (s *Store) Add(ctx context.Context, rec Record) (Record, error) {
	vec, err := s.embed(ctx, rec.Text)
	if err != nil {
		return Record{}, err
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.Embedding = vec

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		s.index = newFlatIndex(len(vec))
	}
	if err := s.index.add(vec); err != nil {
		return Record{}, err
	}
	s.records = append(s.records, rec)

	if s.dir != "" {
		if err := s.persist(); err != nil {
			s.index.vectors = s.index.vectors[:len(s.index.vectors)-1]
			s.records = s.records[:len(s.records)-1]
			return Record{}, fmt.Errorf("persist: %w", err)
		}
	}

	log.Printf("[MEMORY] Stored %s record %s (%d total)", rec.Kind, rec.ID, len(s.records))
	return rec, nil
}

// RetrieveOption narrows a retrieval.
type RetrieveOption func(*retrieveFilter)

type retrieveFilter struct {
	kind    *Kind
	tags    []string
	session *string
}

// WithKind keeps only records of the given kind.
func WithKind(kind Kind) RetrieveOption {
	return func(f *retrieveFilter) { f.kind = &kind }
}

// WithTags keeps only records carrying at least one of the given tags.
func WithTags(tags ...string) RetrieveOption {
	return func(f *retrieveFilter) { f.tags = tags }
}

// WithSession keeps only records from the given session.
func WithSession(id string) RetrieveOption {
	return func(f *retrieveFilter) { f.session = &id }
}

func (f *retrieveFilter) match(rec Record) bool {
	if f.kind != nil && rec.Kind != *f.kind {
		return false
	}
	if len(f.tags) > 0 {
		found := false
		for _, want := range f.tags {
			for _, have := range rec.Tags {
				if have == want {
					found = true
					break
				}
			}
		}
		if !found {
			return false
		}
	}
	if f.session != nil && rec.SessionID != *f.session {
		return false
	}
	return true
}

// Retrieve returns up to topK records nearest to query, ascending by
// distance. The index is over-fetched at twice topK so filters do not
// starve the result. An empty store returns an empty slice, never an error.
func (s *Store) Retrieve(ctx context.Context, query string, topK int, opts ...RetrieveOption) ([]Record, error) {
	if topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return nil, nil
	}

	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	var filter retrieveFilter
	for _, opt := range opts {
		opt(&filter)
	}

	hits, err := s.index.search(vec, topK*2)
	if err != nil {
		return nil, err
	}

	results := make([]Record, 0, topK)
	for _, h := range hits {
		rec := s.records[h.pos]
		if !filter.match(rec) {
			continue
		}
		results = append(results, rec)
		if len(results) == topK {
			break
		}
	}
	log.Printf("[MEMORY] Retrieved %d/%d records for query", len(results), len(s.records))
	return results, nil
}
