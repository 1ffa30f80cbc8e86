package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

const hashCacheFile = "hashcache.json"

// IngestOptions controls document chunking. Zero values take defaults:
// 256-word chunks with a 40-word overlap, stored as facts.
type IngestOptions struct {
	ChunkSize    int
	ChunkOverlap int
	Kind         Kind
	Tags         []string
	SessionID    string
}

// IngestDocument splits a document into overlapping chunks and stores each
// as a record tagged with sourceID. An unchanged document (same content
// hash as the last ingest) is skipped. Returns the number of chunks added.
func (s *Store) IngestDocument(ctx context.Context, sourceID, text string, opts IngestOptions) (int, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 256
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = 40
	}
	if opts.Kind == "" {
		opts.Kind = KindFact
	}

	sum := sha256.Sum256([]byte(text))
	hash := hex.EncodeToString(sum[:])

	hashes := s.loadHashCache()
	if hashes[sourceID] == hash {
		log.Printf("[MEMORY] Document %s unchanged, skipping ingest", sourceID)
		return 0, nil
	}

	chunks := chunkWords(text, opts.ChunkSize, opts.ChunkOverlap)
	added := 0
	for _, chunk := range chunks {
		_, err := s.Add(ctx, Record{
			Text:      chunk,
			Kind:      opts.Kind,
			Tags:      append(append([]string{}, opts.Tags...), sourceID),
			SessionID: opts.SessionID,
		})
		if err != nil {
			return added, fmt.Errorf("ingest %s: %w", sourceID, err)
		}
		added++
	}

	hashes[sourceID] = hash
	if err := s.saveHashCache(hashes); err != nil {
		log.Printf("[MEMORY] Hash cache write failed: %v", err)
	}
	log.Printf("[MEMORY] Ingested %s as %d chunks", sourceID, added)
	return added, nil
}

// chunkWords splits text into word windows of the given size, stepping by
// size-overlap so adjacent chunks share context.
func chunkWords(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := size - overlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

func (s *Store) loadHashCache() map[string]string {
	hashes := map[string]string{}
	if s.dir == "" {
		return hashes
	}
	data, err := os.ReadFile(filepath.Join(s.dir, hashCacheFile))
	if err != nil {
		return hashes
	}
	if err := json.Unmarshal(data, &hashes); err != nil {
		return map[string]string{}
	}
	return hashes
}

func (s *Store) saveHashCache(hashes map[string]string) error {
	if s.dir == "" {
		return nil
	}
	data, err := json.MarshalIndent(hashes, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(s.dir, hashCacheFile), data)
}
