package service

import (
	"strconv"
	"strings"

	"github.com/timmy/hearth/internal/domain"
)

const maxSummaryWords = 200

func normalizeWhitespace(text string) string {
	if text == "" {
		return ""
	}
	return strings.Join(strings.Fields(text), " ")
}

// truncateWords keeps at most n whitespace-separated words of text.
func truncateWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

// buildDocumentEmbeddingText renders the fields that feed a document embedding.
// Empty fields are omitted so sparse documents do not embed label noise.
func buildDocumentEmbeddingText(title, summary string, year *int, tags []string) string {
	segments := make([]string, 0, 4)
	if title = normalizeWhitespace(title); title != "" {
		segments = append(segments, "Title: "+title)
	}
	if summary = normalizeWhitespace(summary); summary != "" {
		segments = append(segments, "Summary: "+summary)
	}
	if year != nil {
		segments = append(segments, "Year: "+strconv.Itoa(*year))
	}
	if tags = dedupeStrings(tags); len(tags) > 0 {
		segments = append(segments, "Tags: "+strings.Join(tags, ", "))
	}
	return strings.Join(segments, "\n")
}

var categoryKeywords = []struct {
	category domain.TagCategory
	words    []string
}{
	{domain.TagCategoryRegion, []string{"uganda", "kenya", "africa", "asia", "europe"}},
	{domain.TagCategoryTechnology, []string{"lpg", "electric", "biomass", "solar"}},
	{domain.TagCategoryTopic, []string{"adoption", "barriers", "implementation", "research"}},
}

// GuessTagCategory infers a category for a free-form tag name from keywords.
func GuessTagCategory(name string) domain.TagCategory {
	lower := strings.ToLower(name)
	for _, ck := range categoryKeywords {
		for _, w := range ck.words {
			if strings.Contains(lower, w) {
				return ck.category
			}
		}
	}
	return domain.TagCategoryUnknown
}

func dedupeStrings(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
