package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/timmy/hearth/internal/domain"
)

func TestPerplexityProviderSearch(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer pplx-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"[]"}}]}`))
	}))
	defer server.Close()

	p := NewPerplexityProvider(&PerplexityConfig{APIKey: "pplx-key", BaseURL: server.URL, Timeout: time.Second})
	content, err := p.Search(context.Background(), ExternalQuery{Query: "improved cookstoves", Domains: []string{"who.int", "nasa.gov"}})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if content != "[]" {
		t.Fatalf("Search() = %q", content)
	}
	if got.Model != perplexityDefaultModel || got.MaxTokens != 1024 {
		t.Fatalf("request = %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("messages = %+v", got.Messages)
	}
	user := got.Messages[1].Content
	if !strings.Contains(user, "improved cookstoves") || !strings.Contains(user, "site:who.int site:nasa.gov") {
		t.Fatalf("user prompt = %q", user)
	}
}

func TestPerplexityProviderErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
		}},
		{"unauthorized plain text", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("bad key"))
		}},
		{"no choices", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			p := NewPerplexityProvider(&PerplexityConfig{APIKey: "k", BaseURL: server.URL + "/", Timeout: 50 * time.Millisecond})
			_, err := p.Search(context.Background(), ExternalQuery{Query: "q"})
			if !errors.Is(err, domain.ErrExternalProvider) {
				t.Fatalf("Search() error = %v, want ErrExternalProvider", err)
			}
		})
	}
}

func TestIsTimeout(t *testing.T) {
	if !isTimeout(context.DeadlineExceeded) {
		t.Fatal("isTimeout(DeadlineExceeded) = false")
	}
	if isTimeout(errors.New("connection refused")) {
		t.Fatal("isTimeout(plain error) = true")
	}
}
