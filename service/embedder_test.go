package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/config"
)

func testEmbeddingConfig(baseURL string) *config.EmbeddingConfig {
	return &config.EmbeddingConfig{
		BaseURL:        baseURL,
		APIKey:         "test-key",
		Model:          "all-MiniLM-L6-v2",
		Dimensions:     3,
		BatchSize:      2,
		MaxRetries:     3,
		TimeoutSeconds: 5,
	}
}

func embeddingFor(i int) []float32 {
	return []float32{float32(i), 0.5, -0.5}
}

func TestEmbedTextsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("Expected path /embeddings, got %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Expected Authorization 'Bearer test-key', got %q", auth)
		}

		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.Model != "all-MiniLM-L6-v2" {
			t.Errorf("Expected model all-MiniLM-L6-v2, got %s", req.Model)
		}

		// Return entries out of order to prove the client reorders by index.
		resp := map[string]interface{}{
			"model": req.Model,
			"data": []map[string]interface{}{
				{"index": 1, "embedding": embeddingFor(1)},
				{"index": 0, "embedding": embeddingFor(0)},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	svc := NewEmbeddingService(testEmbeddingConfig(server.URL))
	vectors, err := svc.EmbedTexts(context.Background(), []string{"first chunk", "second chunk"})
	if err != nil {
		t.Fatalf("EmbedTexts failed: %v", err)
	}

	if len(vectors) != 2 {
		t.Fatalf("Expected 2 vectors, got %d", len(vectors))
	}
	if vectors[0][0] != 0 || vectors[1][0] != 1 {
		t.Errorf("Vectors not reordered by index: got %v, %v", vectors[0], vectors[1])
	}
	for i, vec := range vectors {
		if len(vec) != 3 {
			t.Errorf("Vector %d: expected 3 dimensions, got %d", i, len(vec))
		}
	}
}

func TestEmbedTextsBatches(t *testing.T) {
	var batchSizes []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		batchSizes = append(batchSizes, len(req.Input))

		data := make([]map[string]interface{}, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]interface{}{"index": i, "embedding": embeddingFor(i)}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"model": req.Model, "data": data})
	}))
	defer server.Close()

	svc := NewEmbeddingService(testEmbeddingConfig(server.URL))
	texts := []string{"a", "b", "c", "d", "e"}
	vectors, err := svc.EmbedTexts(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedTexts failed: %v", err)
	}

	if len(vectors) != 5 {
		t.Errorf("Expected 5 vectors, got %d", len(vectors))
	}
	if len(batchSizes) != 3 {
		t.Fatalf("Expected 3 batches, got %d", len(batchSizes))
	}
	if batchSizes[0] != 2 || batchSizes[1] != 2 || batchSizes[2] != 1 {
		t.Errorf("Expected batch sizes [2 2 1], got %v", batchSizes)
	}
}

func TestEmbedTextsRetriesTransient(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "all-MiniLM-L6-v2",
			"data": []map[string]interface{}{
				{"index": 0, "embedding": embeddingFor(0)},
			},
		})
	}))
	defer server.Close()

	svc := NewEmbeddingService(testEmbeddingConfig(server.URL))
	svc.retryDelay = time.Millisecond

	vectors, err := svc.EmbedTexts(context.Background(), []string{"one"})
	if err != nil {
		t.Fatalf("Expected retry to succeed, got error: %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
	if len(vectors) != 1 {
		t.Errorf("Expected 1 vector, got %d", len(vectors))
	}
}

func TestEmbedTextsExhaustsRetries(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testEmbeddingConfig(server.URL)
	cfg.MaxRetries = 2
	svc := NewEmbeddingService(cfg)
	svc.retryDelay = time.Millisecond

	_, err := svc.EmbedTexts(context.Background(), []string{"one"})
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if !IsTransient(err) {
		t.Errorf("Expected transient error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
}

func TestEmbedTextsDimensionMismatch(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "all-MiniLM-L6-v2",
			"data": []map[string]interface{}{
				{"index": 0, "embedding": []float32{1, 2, 3, 4, 5}},
			},
		})
	}))
	defer server.Close()

	svc := NewEmbeddingService(testEmbeddingConfig(server.URL))
	_, err := svc.EmbedTexts(context.Background(), []string{"one"})
	if err == nil {
		t.Fatal("Expected error for wrong dimensions")
	}
	if !IsStructural(err) {
		t.Errorf("Expected structural error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected no retries for structural error, got %d calls", calls)
	}
}

func TestEmbedTextsClientErrorNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "input too long"}`))
	}))
	defer server.Close()

	svc := NewEmbeddingService(testEmbeddingConfig(server.URL))
	_, err := svc.EmbedTexts(context.Background(), []string{"one"})
	if err == nil {
		t.Fatal("Expected error for 400 response")
	}
	if !IsStructural(err) {
		t.Errorf("Expected structural error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestEmbedTextsEmpty(t *testing.T) {
	svc := NewEmbeddingService(testEmbeddingConfig("http://unused"))
	vectors, err := svc.EmbedTexts(context.Background(), nil)
	if err != nil {
		t.Fatalf("Expected no error for empty input, got %v", err)
	}
	if vectors != nil {
		t.Errorf("Expected nil vectors for empty input, got %v", vectors)
	}
}

func TestEmbedQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Input) != 1 {
			t.Errorf("Expected 1 input, got %d", len(req.Input))
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"model": req.Model,
			"data": []map[string]interface{}{
				{"index": 0, "embedding": embeddingFor(7)},
			},
		})
	}))
	defer server.Close()

	svc := NewEmbeddingService(testEmbeddingConfig(server.URL))
	vec, err := svc.EmbedQuery(context.Background(), "what is the scope 1 total?")
	if err != nil {
		t.Fatalf("EmbedQuery failed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("Expected 3 dimensions, got %d", len(vec))
	}
	if vec[0] != 7 {
		t.Errorf("Expected first component 7, got %v", vec[0])
	}

	if svc.Dimensions() != 3 {
		t.Errorf("Expected Dimensions 3, got %d", svc.Dimensions())
	}
	if svc.ModelName() != "all-MiniLM-L6-v2" {
		t.Errorf("Expected model all-MiniLM-L6-v2, got %s", svc.ModelName())
	}
}
