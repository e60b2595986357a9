package domain

// Result origins.
const (
	SourceInternal = "internal"
	SourceExternal = "external"
)

// SearchResult is a hit from the local corpus.
type SearchResult struct {
	DocumentID     uint     `json:"document_id"`
	Title          string   `json:"title"`
	Summary        string   `json:"summary"`
	SourceURL      string   `json:"source_url"`
	RelevanceScore float64  `json:"relevance_score"`
	Tags           []TagRef `json:"tags"`
	Source         string   `json:"source"`
}

// ExternalSearchResult is a hit from the external provider.
type ExternalSearchResult struct {
	Title          string   `json:"title"`
	Summary        string   `json:"summary"`
	SourceURL      string   `json:"source_url"`
	RelevanceScore float64  `json:"relevance_score"`
	Tags           []TagRef `json:"tags"`
	Source         string   `json:"source"`
	Autosaved      bool     `json:"autosaved"`
}

// BranchStatus describes how one search branch finished.
type BranchStatus string

const (
	BranchOK       BranchStatus = "ok"
	BranchDegraded BranchStatus = "degraded"
	BranchSkipped  BranchStatus = "skipped"
)

// BranchOutcome records a branch's status and, when degraded, why.
type BranchOutcome struct {
	Status BranchStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// CombinedSearchResponse is the merged, deduplicated answer to a query.
type CombinedSearchResponse struct {
	Query           string                 `json:"query"`
	InternalResults []SearchResult         `json:"internal_results"`
	ExternalResults []ExternalSearchResult `json:"external_results"`
	Internal        BranchOutcome          `json:"internal_status"`
	External        BranchOutcome          `json:"external_status"`
	DurationMs      int64                  `json:"duration_ms"`
}
