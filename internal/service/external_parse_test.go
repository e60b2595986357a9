package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/timmy/hearth/internal/domain"
)

func TestParseExternalItems(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantURLs []string
	}{
		{
			name:     "fenced json",
			content:  "```json\n[{\"title\":\"A\",\"url\":\"https://who.int/a\",\"summary\":\"s\"}]\n```",
			wantURLs: []string{"https://who.int/a"},
		},
		{
			name:     "fence without language",
			content:  "```\n[{\"title\":\"A\",\"url\":\"https://who.int/a\",\"summary\":\"s\"}]\n```",
			wantURLs: []string{"https://who.int/a"},
		},
		{
			name:     "bare array",
			content:  `[{"title":"A","url":"https://who.int/a","summary":"s"},{"title":"B","url":"http://nasa.gov/b","summary":""}]`,
			wantURLs: []string{"https://who.int/a", "http://nasa.gov/b"},
		},
		{
			name:     "prose around array",
			content:  `Here you go: [{"title":"A","url":"https://who.int/a","summary":"s"}] Hope it helps.`,
			wantURLs: []string{"https://who.int/a"},
		},
		{
			name: "invalid shapes dropped",
			content: `[
				{"title":"","url":"https://who.int/empty-title","summary":"s"},
				{"title":"No URL","summary":"s"},
				{"title":"Relative","url":"/relative","summary":"s"},
				{"title":"FTP","url":"ftp://who.int/x","summary":"s"},
				{"title":"Numeric summary","url":"https://who.int/n","summary":3},
				{"title":"No summary","url":"https://who.int/m"},
				"just a string",
				42,
				{"title":"Good","url":"https://who.int/good","summary":"ok"}
			]`,
			wantURLs: []string{"https://who.int/good"},
		},
		{
			name: "duplicate urls keep first",
			content: `[
				{"title":"First","url":"https://who.int/a","summary":"1"},
				{"title":"Second","url":"https://who.int/a","summary":"2"}
			]`,
			wantURLs: []string{"https://who.int/a"},
		},
		{
			name:     "empty array",
			content:  "[]",
			wantURLs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := ParseExternalItems(tt.content)
			if err != nil {
				t.Fatalf("ParseExternalItems() error = %v", err)
			}
			if len(items) != len(tt.wantURLs) {
				t.Fatalf("ParseExternalItems() = %d items, want %d: %+v", len(items), len(tt.wantURLs), items)
			}
			for i, item := range items {
				if item.URL != tt.wantURLs[i] {
					t.Errorf("items[%d].URL = %q, want %q", i, item.URL, tt.wantURLs[i])
				}
			}
		})
	}
}

func TestParseExternalItemsKeepsFirstDuplicate(t *testing.T) {
	items, err := ParseExternalItems(`[{"title":"First","url":"https://who.int/a","summary":"1"},{"title":"Second","url":"https://who.int/a","summary":"2"}]`)
	if err != nil {
		t.Fatalf("ParseExternalItems() error = %v", err)
	}
	if items[0].Title != "First" {
		t.Fatalf("Title = %q, want First", items[0].Title)
	}
}

func TestParseExternalItemsRejectsNonArray(t *testing.T) {
	for _, content := range []string{
		`{"title":"A","url":"https://who.int/a","summary":"s"}`,
		"I could not find anything relevant.",
		"```json\nnot json\n```",
		"",
	} {
		_, err := ParseExternalItems(content)
		if !errors.Is(err, domain.ErrExternalProvider) {
			t.Errorf("ParseExternalItems(%q) error = %v, want ErrExternalProvider", content, err)
		}
	}
}

func TestParseExternalItemsTruncatesSummary(t *testing.T) {
	long := strings.Repeat("word ", 250)
	items, err := ParseExternalItems(`[{"title":"A","url":"https://who.int/a","summary":"` + long + `"}]`)
	if err != nil {
		t.Fatalf("ParseExternalItems() error = %v", err)
	}
	if n := len(strings.Fields(items[0].Summary)); n != maxSummaryWords {
		t.Fatalf("summary words = %d, want %d", n, maxSummaryWords)
	}
}

func TestRelevanceScore(t *testing.T) {
	whitelist := []string{"cleancooking.org", "who.int"}
	tests := []struct {
		url  string
		want float64
	}{
		{"https://who.int/news/item/1", RelevanceTrusted},
		{"https://www.who.int/a", RelevanceTrusted},
		{"https://apps.who.int/a", RelevanceTrusted},
		{"https://www.nasa.gov/x", RelevanceTrusted},
		{"https://dl.acm.org/doi/1", RelevanceTrusted},
		{"https://cs.stanford.edu/paper", RelevanceTrusted},
		{"https://www.sciencedirect.com/science/article/1", RelevanceModerate},
		{"https://researchgate.net/publication/1", RelevanceModerate},
		{"https://cleancooking.org/reports/1", RelevanceModerate},
		{"https://medium.com/@someone/post", RelevanceLow},
		{"https://someone.wordpress.com/post", RelevanceLow},
		{"https://example.com/a", RelevanceDefault},
		{"https://notwho.int/a", RelevanceDefault},
		{"https://who.int.evil.com/a", RelevanceDefault},
		{"not a url", RelevanceDefault},
	}
	for _, tt := range tests {
		if got := RelevanceScore(tt.url, whitelist); got != tt.want {
			t.Errorf("RelevanceScore(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
