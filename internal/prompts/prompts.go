package prompts

import (
	"fmt"
	"strings"
)

// ============================================================================
// External Research Search Prompts
// ============================================================================

// ResearchSystemPrompt fixes the assistant role and the JSON-only reply format.
const ResearchSystemPrompt = `You are a research assistant specializing in clean cooking research. ` +
	`Only return results from reputable sources and format the response as a valid JSON array. ` +
	`Respond with ONLY the requested JSON array, no additional text or formatting.`

// researchUserTemplate asks for whitelisted sources shaped as {title, url, summary}.
const researchUserTemplate = `Find research papers and articles about: %s. ` +
	`Only include results from these domains: %s. ` +
	`Return the results as a JSON array with each item having fields: ` +
	`'title' (string), 'url' (string), and 'summary' (string of max 200 words). ` +
	`Do not include any markdown formatting or additional explanations.`

// ResearchUserPrompt renders the user turn for query restricted to domains.
func ResearchUserPrompt(query string, domains []string) string {
	filters := make([]string, 0, len(domains))
	for _, d := range domains {
		filters = append(filters, "site:"+d)
	}
	return fmt.Sprintf(researchUserTemplate, strings.TrimSpace(query), strings.Join(filters, " "))
}
