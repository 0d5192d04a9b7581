package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/config"
)

// Embedder turns text into fixed-dimension vectors
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	ModelName() string
}

// EmbeddingService calls the embedding-model HTTP endpoint. Requests are
// batched; transient failures (network, 429, 5xx) are retried per batch with
// a growing delay, anything else fails the batch immediately.
type EmbeddingService struct {
	config     *config.EmbeddingConfig
	httpClient *http.Client
	retryDelay time.Duration
}

func NewEmbeddingService(cfg *config.EmbeddingConfig) *EmbeddingService {
	return &EmbeddingService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		retryDelay: 2 * time.Second,
	}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
}

// EmbedTexts embeds all texts in request batches, preserving order
func (s *EmbeddingService) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.config.BatchSize {
		end := start + s.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := s.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

// EmbedQuery embeds a single query string
func (s *EmbeddingService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *EmbeddingService) Dimensions() int {
	return s.config.Dimensions
}

func (s *EmbeddingService) ModelName() string {
	return s.config.Model
}

func (s *EmbeddingService) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error

	for attempt := 1; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 1 {
			slog.Warn("retrying embedding batch",
				"attempt", attempt,
				"batch_size", len(texts),
				"error", lastErr,
			)
			if err := sleepContext(ctx, s.retryDelay*time.Duration(attempt-1)); err != nil {
				return nil, TransientErr("embedding", err)
			}
		}

		vectors, err := s.doEmbed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

func (s *EmbeddingService) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := embeddingRequest{
		Model: s.config.Model,
		Input: texts,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.BaseURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, TransientErr("embedding", fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, TransientErr("embedding", fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, TransientErr("embedding", fmt.Errorf("service returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, StructuralErr("embedding", fmt.Errorf("service rejected request with %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}

	var result embeddingResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, StructuralErr("embedding", fmt.Errorf("failed to parse response: %w", err))
	}

	if len(result.Data) != len(texts) {
		return nil, StructuralErr("embedding", fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Data)))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, StructuralErr("embedding", fmt.Errorf("embedding index %d out of range", d.Index))
		}
		if len(d.Embedding) != s.config.Dimensions {
			return nil, StructuralErr("embedding", fmt.Errorf("expected %d dimensions, got %d", s.config.Dimensions, len(d.Embedding)))
		}
		vectors[d.Index] = d.Embedding
	}
	for i := range vectors {
		if vectors[i] == nil {
			return nil, StructuralErr("embedding", fmt.Errorf("missing embedding for input %d", i))
		}
	}

	return vectors, nil
}

// sleepContext waits for d unless the context ends first
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
