package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/emberworks/loopagent/retry"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Embedder {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(WithURL(server.URL), WithModel("test-model"))
}

func TestEmbed(t *testing.T) {
	e := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Model != "test-model" || req.Prompt != "hello" {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	})

	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("vector length = %d", len(vec))
	}
}

func TestEmbed_ServerErrorIsTransient(t *testing.T) {
	e := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	})

	_, err := e.Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error for status 503")
	}
	if !retry.IsTransient(err) {
		t.Error("status 503 must be retryable")
	}
}

func TestEmbed_ClientErrorIsNotTransient(t *testing.T) {
	e := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown model", http.StatusBadRequest)
	})

	_, err := e.Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error for status 400")
	}
	if retry.IsTransient(err) {
		t.Error("status 400 must not be retryable")
	}
}

func TestEmbed_EmptyVector(t *testing.T) {
	e := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{})
	})

	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for empty embedding")
	}
}
