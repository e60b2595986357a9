package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/hearth/internal/domain"
	"github.com/timmy/hearth/internal/logger"
	"github.com/timmy/hearth/internal/metrics"
	"github.com/timmy/hearth/internal/prompts"
)

const (
	perplexityEndpoint     = "https://api.perplexity.ai/chat/completions"
	perplexityDefaultModel = "llama-3.1-sonar-large-128k-online"
	defaultExternalTimeout = 30 * time.Second
)

// ExternalQuery is a provider request restricted to allowed domains.
type ExternalQuery struct {
	Query   string
	Domains []string
}

// ExternalSearchProvider performs a live web search and returns the raw
// assistant content, which is expected to hold a JSON array of results.
type ExternalSearchProvider interface {
	Search(ctx context.Context, q ExternalQuery) (string, error)
}

// PerplexityConfig holds configuration for the Perplexity provider.
type PerplexityConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// PerplexityProvider calls Perplexity's OpenAI-compatible chat completions API.
// It never retries; one failed call is one failed search.
type PerplexityProvider struct {
	client      *resty.Client
	endpoint    string
	model       string
	temperature float64
	maxTokens   int
}

// NewPerplexityProvider creates a new Perplexity provider.
// Parameters:
//   - cfg: provider configuration; zero values fall back to the public endpoint,
//     the online sonar model and a 30s timeout.
//
// Returns:
//   - *PerplexityProvider: initialized client wrapper.
func NewPerplexityProvider(cfg *PerplexityConfig) *PerplexityProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultExternalTimeout
	}
	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = perplexityEndpoint
	} else if !strings.HasSuffix(endpoint, "/chat/completions") {
		endpoint = strings.TrimRight(endpoint, "/") + "/chat/completions"
	}
	model := cfg.Model
	if model == "" {
		model = perplexityDefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeout)

	return &PerplexityProvider{
		client:      client,
		endpoint:    endpoint,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Search sends one chat completion and returns the assistant content.
// Every failure wraps domain.ErrExternalProvider.
func (p *PerplexityProvider) Search(ctx context.Context, q ExternalQuery) (string, error) {
	req := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompts.ResearchSystemPrompt},
			{Role: "user", Content: prompts.ResearchUserPrompt(q.Query, q.Domains)},
		},
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	}

	start := time.Now()
	var resp chatResponse
	httpResp, err := p.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(p.endpoint)
	if err != nil {
		status := "transport_error"
		if isTimeout(err) {
			status = "timeout"
		}
		metrics.ExternalRequestsTotal.WithLabelValues(status).Inc()
		return "", fmt.Errorf("failed to call Perplexity API: %v: %w", err, domain.ErrExternalProvider)
	}

	if httpResp.StatusCode() != http.StatusOK {
		metrics.ExternalRequestsTotal.WithLabelValues("http_error").Inc()
		errorMsg := fmt.Sprintf("HTTP %d", httpResp.StatusCode())
		if resp.Error != nil {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		} else if body := httpResp.String(); body != "" {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), body)
		}
		return "", fmt.Errorf("Perplexity API returned error: %s: %w", errorMsg, domain.ErrExternalProvider)
	}

	if len(resp.Choices) == 0 {
		metrics.ExternalRequestsTotal.WithLabelValues("parse_error").Inc()
		return "", fmt.Errorf("no choices in Perplexity response: %w", domain.ErrExternalProvider)
	}

	metrics.ExternalRequestsTotal.WithLabelValues("ok").Inc()
	content := resp.Choices[0].Message.Content
	logger.With(logger.Fields{
		logger.FieldProvider:   "perplexity",
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldSize:       len(content),
	}).Debug(ctx, "External provider responded: model=%s", p.model)
	return content, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
