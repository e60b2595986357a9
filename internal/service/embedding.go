package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/hearth/internal/config"
	"github.com/timmy/hearth/internal/domain"
	"github.com/timmy/hearth/internal/logger"
	"github.com/timmy/hearth/internal/metrics"
)

const (
	jinaEndpoint          = "https://api.jina.ai/v1/embeddings"
	ollamaDefaultBaseURL  = "http://localhost:11434"
	defaultEmbedTimeout   = 30 * time.Second
	jinaTaskTextMatching  = "text-matching"
	embeddingStatusOK     = "success"
	embeddingStatusFailed = "error"
)

// EmbeddingProvider turns text into a fixed-dimension vector.
// Documents, tags and queries must be embedded by the same provider.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
	Model() string
	Dimensions() int
}

// NewEmbeddingProvider builds the provider named by cfg.Provider.
func NewEmbeddingProvider(cfg *config.EmbeddingConfig) (EmbeddingProvider, error) {
	if err := cfg.ValidateWithAPIKey(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultEmbedTimeout
	}

	switch cfg.Provider {
	case "jina":
		return NewJinaEmbedder(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Dimensions, timeout), nil
	case "openai":
		return NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Dimensions), nil
	case "ollama":
		return NewOllamaEmbedder(cfg.BaseURL, cfg.Model, cfg.Dimensions, timeout), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// checkEmbedding validates a provider response against the configured dimension.
func checkEmbedding(vec []float32, dimensions int) error {
	if len(vec) == 0 {
		return fmt.Errorf("no embedding returned: %w", domain.ErrEmbeddingFailure)
	}
	if dimensions > 0 && len(vec) != dimensions {
		return fmt.Errorf("embedding has %d dimensions, expected %d: %w",
			len(vec), dimensions, domain.ErrEmbeddingFailure)
	}
	return nil
}

func validateEmbedInput(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("empty input text: %w", domain.ErrEmbeddingFailure)
	}
	return nil
}

func observeEmbedding(ctx context.Context, provider, model string, start time.Time, err error) {
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(provider, model, embeddingStatusFailed).Inc()
		logger.With(logger.Fields{
			logger.FieldProvider:   provider,
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
		}).Warn(ctx, "Embedding request failed: model=%s, error=%v", model, err)
		return
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues(provider, model, embeddingStatusOK).Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(provider, model).Observe(time.Since(start).Seconds())
}

// JinaEmbedder calls the Jina embeddings API.
type JinaEmbedder struct {
	client     *resty.Client
	endpoint   string
	model      string
	dimensions int
}

// NewJinaEmbedder creates a Jina embedder. An empty endpoint uses the public API.
func NewJinaEmbedder(apiKey, endpoint, model string, dimensions int, timeout time.Duration) *JinaEmbedder {
	if endpoint == "" {
		endpoint = jinaEndpoint
	}
	client := resty.New().SetTimeout(timeout)
	client.SetHeader("Authorization", "Bearer "+apiKey)
	client.SetHeader("Content-Type", "application/json")

	return &JinaEmbedder{
		client:     client,
		endpoint:   endpoint,
		model:      model,
		dimensions: dimensions,
	}
}

func (e *JinaEmbedder) Name() string    { return "jina" }
func (e *JinaEmbedder) Model() string   { return e.model }
func (e *JinaEmbedder) Dimensions() int { return e.dimensions }

type jinaRequest struct {
	Model         string   `json:"model"`
	Task          string   `json:"task,omitempty"`
	Dimensions    int      `json:"dimensions,omitempty"`
	Input         []string `json:"input"`
	EmbeddingType string   `json:"embedding_type,omitempty"`
}

type jinaResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Detail string `json:"detail,omitempty"`
}

// Embed generates an embedding for a single text.
// Queries and passages share the text-matching task so tag and document
// vectors stay comparable.
func (e *JinaEmbedder) Embed(ctx context.Context, text string) (vec []float32, err error) {
	if err := validateEmbedInput(text); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { observeEmbedding(ctx, e.Name(), e.model, start, err) }()

	req := jinaRequest{
		Model:         e.model,
		Task:          jinaTaskTextMatching,
		Dimensions:    e.dimensions,
		Input:         []string{text},
		EmbeddingType: "float",
	}

	var resp jinaResponse
	httpResp, err := e.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(e.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to call Jina API: %v: %w", err, domain.ErrEmbeddingFailure)
	}
	if httpResp.StatusCode() != http.StatusOK {
		if resp.Detail != "" {
			return nil, fmt.Errorf("Jina API error: %s: %w", resp.Detail, domain.ErrEmbeddingFailure)
		}
		return nil, fmt.Errorf("Jina API error: status %d: %w", httpResp.StatusCode(), domain.ErrEmbeddingFailure)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("Jina API returned no data: %w", domain.ErrEmbeddingFailure)
	}

	vec = resp.Data[0].Embedding
	if err := checkEmbedding(vec, e.dimensions); err != nil {
		return nil, err
	}
	return vec, nil
}
