package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/hearth/internal/domain"
)

// OllamaEmbedder calls a local Ollama server's /api/embed endpoint.
type OllamaEmbedder struct {
	client     *resty.Client
	model      string
	dimensions int
}

// NewOllamaEmbedder creates an embedder for a local model such as all-minilm.
func NewOllamaEmbedder(baseURL, model string, dimensions int, timeout time.Duration) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = ollamaDefaultBaseURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &OllamaEmbedder{client: client, model: model, dimensions: dimensions}
}

func (e *OllamaEmbedder) Name() string    { return "ollama" }
func (e *OllamaEmbedder) Model() string   { return e.model }
func (e *OllamaEmbedder) Dimensions() int { return e.dimensions }

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed generates an embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) (vec []float32, err error) {
	if err := validateEmbedInput(text); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { observeEmbedding(ctx, e.Name(), e.model, start, err) }()

	var resp ollamaEmbedResponse
	httpResp, err := e.client.R().
		SetContext(ctx).
		SetBody(ollamaEmbedRequest{Model: e.model, Input: text}).
		SetResult(&resp).
		SetError(&resp).
		Post("/api/embed")
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %v: %w", err, domain.ErrEmbeddingFailure)
	}
	if httpResp.IsError() {
		msg := resp.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", httpResp.StatusCode())
		}
		return nil, fmt.Errorf("ollama embed: %s: %w", msg, domain.ErrEmbeddingFailure)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("ollama embed: empty response: %w", domain.ErrEmbeddingFailure)
	}

	vec = resp.Embeddings[0]
	if err := checkEmbedding(vec, e.dimensions); err != nil {
		return nil, err
	}
	return vec, nil
}
