// Package memory provides an append-only, similarity-indexed store for
// agent memory.
//
// Each record carries a fixed-length embedding; retrieval is nearest
// neighbor over squared Euclidean distance with post-filtering by kind,
// tags, and session. Records are immutable once added and are never
// evicted.
//
// Architecture:
//   - Store: append-only record list plus a flat similarity index
//   - Embedder: text-to-vector conversion (mock for tests, ollama over
//     HTTP, ONNX MiniLM behind the onnx build tag)
//   - Persistence: index file + metadata sidecar + change-detection cache;
//     a corrupt or missing layout cold-starts as an empty store
//
// Integration:
//   - the orchestrator writes a record after every tool result
//   - retrieval feeds the decision prompt before each step
package memory
