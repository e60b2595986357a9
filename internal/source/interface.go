package source

import "context"

// DocumentItem is one document record offered by a data source.
type DocumentItem struct {
	SourceID      string   // Unique ID within the source
	Title         string
	Summary       string
	SourceURL     string
	YearPublished *int
	ResourceType  string
	Tags          []string
}

// Source defines the interface for document data sources.
type Source interface {
	// GetSourceID returns the unique identifier for this source.
	GetSourceID() string

	// GetDisplayName returns a human-readable name for this source.
	GetDisplayName() string

	// FetchBatch fetches a batch of items starting from the given cursor.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - cursor: pagination cursor or empty for first page.
	//   - limit: maximum number of items to fetch.
	// Returns:
	//   - items: batch of document items.
	//   - nextCursor: cursor for the next batch or empty if done.
	//   - err: non-nil if fetching fails.
	FetchBatch(ctx context.Context, cursor string, limit int) (items []DocumentItem, nextCursor string, err error)
}
