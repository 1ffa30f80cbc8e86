package memory_test

import (
	"context"
	"strings"
	"testing"

	"github.com/emberworks/loopagent/memory"
)

func TestIngestDocument_Chunks(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	doc := strings.Repeat("word ", 100)
	added, err := store.IngestDocument(ctx, "doc-1", doc, memory.IngestOptions{
		ChunkSize:    40,
		ChunkOverlap: 10,
	})
	if err != nil {
		t.Fatalf("IngestDocument failed: %v", err)
	}
	// 100 words, windows of 40 stepping by 30: offsets 0, 30, 60.
	if added != 3 {
		t.Errorf("added %d chunks, want 3", added)
	}
	if store.Len() != 3 {
		t.Errorf("store holds %d records, want 3", store.Len())
	}

	results, err := store.Retrieve(ctx, "word", 10, memory.WithTags("doc-1"))
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("got %d tagged chunks, want 3", len(results))
	}
}

func TestIngestDocument_SkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, memory.WithDir(t.TempDir()))

	doc := "the quick brown fox jumps over the lazy dog"
	if _, err := store.IngestDocument(ctx, "doc-1", doc, memory.IngestOptions{}); err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	before := store.Len()

	added, err := store.IngestDocument(ctx, "doc-1", doc, memory.IngestOptions{})
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}
	if added != 0 {
		t.Errorf("unchanged document added %d chunks", added)
	}
	if store.Len() != before {
		t.Errorf("store grew on unchanged re-ingest")
	}

	added, err = store.IngestDocument(ctx, "doc-1", doc+" again", memory.IngestOptions{})
	if err != nil {
		t.Fatalf("changed ingest failed: %v", err)
	}
	if added == 0 {
		t.Error("changed document was skipped")
	}
}
