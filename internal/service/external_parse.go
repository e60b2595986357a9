package service

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/timmy/hearth/internal/domain"
)

var fencedBlock = regexp.MustCompile("```(?:json|JSON)?\\s*([\\s\\S]*?)\\s*```")

// ExternalItem is one validated result from the external provider.
type ExternalItem struct {
	Title   string
	URL     string
	Summary string
}

// extractJSON strips a fenced code block when present. Unfenced content with
// surrounding prose is narrowed to its outermost brackets.
func extractJSON(content string) string {
	if m := fencedBlock.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "[") {
		return trimmed
	}
	start, end := strings.Index(trimmed, "["), strings.LastIndex(trimmed, "]")
	if start >= 0 && end > start {
		return trimmed[start : end+1]
	}
	return trimmed
}

// ParseExternalItems decodes provider content into validated items.
// The payload must be a JSON array; elements that are not objects with a
// non-empty string title, an absolute http(s) url and a string summary are
// dropped, as are repeated urls. Summaries are cut to 200 words.
func ParseExternalItems(content string) ([]ExternalItem, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(extractJSON(content)), &raw); err != nil {
		return nil, fmt.Errorf("external payload is not a JSON array: %v: %w", err, domain.ErrExternalProvider)
	}

	items := make([]ExternalItem, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, elem := range raw {
		item, ok := decodeExternalItem(elem)
		if !ok {
			continue
		}
		if _, dup := seen[item.URL]; dup {
			continue
		}
		seen[item.URL] = struct{}{}
		items = append(items, item)
	}
	return items, nil
}

func decodeExternalItem(elem json.RawMessage) (ExternalItem, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(elem, &fields); err != nil {
		return ExternalItem{}, false
	}
	title, ok := stringField(fields, "title")
	if !ok || strings.TrimSpace(title) == "" {
		return ExternalItem{}, false
	}
	rawURL, ok := stringField(fields, "url")
	if !ok || !isAbsoluteHTTPURL(rawURL) {
		return ExternalItem{}, false
	}
	summary, ok := stringField(fields, "summary")
	if !ok {
		return ExternalItem{}, false
	}
	return ExternalItem{
		Title:   normalizeWhitespace(title),
		URL:     strings.TrimSpace(rawURL),
		Summary: truncateWords(summary, maxSummaryWords),
	}, true
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func isAbsoluteHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Relevance tiers for external results.
const (
	RelevanceTrusted  = 0.9
	RelevanceModerate = 0.7
	RelevanceLow      = 0.5
	RelevanceDefault  = 0.5
)

var (
	trustedDomains  = []string{"who.int", "nasa.gov", "acm.org", "edu"}
	moderateDomains = []string{"sciencedirect.com", "researchgate.net", "jstor.org"}
	lowDomains      = []string{"medium.com", "wordpress.com", "blogspot.com"}
)

// RelevanceScore rates a url by the trust tier of its host. Tiers are checked
// trusted, moderate (including whitelist), then low; the first match wins.
func RelevanceScore(rawURL string, whitelist []string) float64 {
	host := hostOf(rawURL)
	switch {
	case hostMatchesAny(host, trustedDomains):
		return RelevanceTrusted
	case hostMatchesAny(host, moderateDomains), hostMatchesAny(host, whitelist):
		return RelevanceModerate
	case hostMatchesAny(host, lowDomains):
		return RelevanceLow
	default:
		return RelevanceDefault
	}
}

func hostOf(rawURL string) string {
	host := ""
	if u, err := url.Parse(strings.TrimSpace(rawURL)); err == nil {
		host = u.Hostname()
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	return strings.TrimPrefix(host, "www.")
}

// hostMatchesAny reports whether host is one of domains or a subdomain of one.
func hostMatchesAny(host string, domains []string) bool {
	if host == "" {
		return false
	}
	for _, d := range domains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
