package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/config"
)

// TextGenerator produces a completion for a prompt
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GenerativeService calls a Gemini-style generateContent endpoint
type GenerativeService struct {
	config     *config.GenerativeConfig
	httpClient *http.Client
	retryDelay time.Duration
}

func NewGenerativeService(cfg *config.GenerativeConfig) *GenerativeService {
	return &GenerativeService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		retryDelay: 2 * time.Second,
	}
}

type generateRequest struct {
	Contents         []generateContent `json:"contents"`
	GenerationConfig generationParams  `json:"generationConfig"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generatePart struct {
	Text string `json:"text"`
}

type generationParams struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate sends the prompt and returns the model's text. Transient failures
// are retried up to MaxRetries with a growing delay.
func (s *GenerativeService) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 1 {
			slog.Warn("retrying generation request",
				"attempt", attempt,
				"error", lastErr,
			)
			if err := sleepContext(ctx, s.retryDelay*time.Duration(attempt-1)); err != nil {
				return "", TransientErr("generation", err)
			}
		}

		text, err := s.doGenerate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		if !IsTransient(err) {
			return "", err
		}
		lastErr = err
	}

	return "", lastErr
}

func (s *GenerativeService) doGenerate(ctx context.Context, prompt string) (string, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimSuffix(s.config.APIURL, "/"), s.config.Model, s.config.APIKey)

	reqBody := generateRequest{
		Contents: []generateContent{
			{Parts: []generatePart{{Text: prompt}}},
		},
		GenerationConfig: generationParams{
			Temperature: s.config.Temperature,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", TransientErr("generation", fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", TransientErr("generation", fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", TransientErr("generation", fmt.Errorf("service returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return "", StructuralErr("generation", fmt.Errorf("service rejected request with %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}

	var result generateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", StructuralErr("generation", fmt.Errorf("failed to parse response: %w", err))
	}

	if len(result.Candidates) == 0 {
		return "", StructuralErr("generation", fmt.Errorf("model returned no candidates"))
	}

	var text strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	out := strings.TrimSpace(text.String())
	if out == "" {
		return "", StructuralErr("generation", fmt.Errorf("model returned empty text"))
	}

	return out, nil
}
