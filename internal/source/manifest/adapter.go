// Package manifest reads documents from a JSON Lines manifest stored on local
// disk or in object storage.
package manifest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/timmy/hearth/internal/logger"
	"github.com/timmy/hearth/internal/source"
	"github.com/timmy/hearth/internal/storage"
)

// Item is one line of a manifest.
type Item struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Summary       string   `json:"summary"`
	SourceURL     string   `json:"source_url"`
	YearPublished *int     `json:"year_published,omitempty"`
	ResourceType  string   `json:"resource_type,omitempty"`
	Tags          []string `json:"tags"`
}

type opener func(ctx context.Context) (io.ReadCloser, error)

// Adapter implements source.Source over a manifest.
type Adapter struct {
	sourceID string
	display  string
	open     opener
	items    []source.DocumentItem
	loaded   bool
}

// NewFileAdapter reads the manifest at path.
func NewFileAdapter(path string) *Adapter {
	return &Adapter{
		sourceID: "file:" + path,
		display:  fmt.Sprintf("Manifest (%s)", path),
		open: func(context.Context) (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// NewStorageAdapter reads the manifest stored under key.
func NewStorageAdapter(store storage.ObjectStorage, key string) *Adapter {
	return &Adapter{
		sourceID: "s3:" + key,
		display:  fmt.Sprintf("Object storage manifest (%s)", key),
		open: func(ctx context.Context) (io.ReadCloser, error) {
			return store.Download(ctx, key)
		},
	}
}

// GetSourceID returns the unique identifier for this source.
func (a *Adapter) GetSourceID() string {
	return a.sourceID
}

// GetDisplayName returns a human-readable name for this source.
func (a *Adapter) GetDisplayName() string {
	return a.display
}

// FetchBatch returns up to limit items after cursor, which is an item offset.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]source.DocumentItem, string, error) {
	if !a.loaded {
		if err := a.load(ctx); err != nil {
			return nil, "", fmt.Errorf("failed to load manifest: %w", err)
		}
		a.loaded = true
	}

	startIndex := 0
	if cursor != "" {
		var err error
		startIndex, err = strconv.Atoi(cursor)
		if err != nil || startIndex < 0 {
			return nil, "", fmt.Errorf("invalid cursor %q", cursor)
		}
	}
	if startIndex >= len(a.items) {
		return []source.DocumentItem{}, "", nil
	}

	endIndex := startIndex + limit
	if limit <= 0 || endIndex > len(a.items) {
		endIndex = len(a.items)
	}

	nextCursor := ""
	if endIndex < len(a.items) {
		nextCursor = strconv.Itoa(endIndex)
	}
	return a.items[startIndex:endIndex], nextCursor, nil
}

// Count returns the number of usable items in the manifest.
func (a *Adapter) Count(ctx context.Context) (int, error) {
	if !a.loaded {
		if err := a.load(ctx); err != nil {
			return 0, err
		}
		a.loaded = true
	}
	return len(a.items), nil
}

func (a *Adapter) load(ctx context.Context) error {
	rc, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()

	a.items = []source.DocumentItem{}
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var item Item
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			logger.CtxWarn(ctx, "Skipping malformed manifest line %d: %v", lineNo, err)
			continue
		}
		if strings.TrimSpace(item.Title) == "" {
			logger.CtxWarn(ctx, "Skipping manifest line %d: missing title", lineNo)
			continue
		}

		id := item.ID
		if id == "" {
			id = strconv.Itoa(lineNo)
		}
		a.items = append(a.items, source.DocumentItem{
			SourceID:      id,
			Title:         item.Title,
			Summary:       item.Summary,
			SourceURL:     item.SourceURL,
			YearPublished: item.YearPublished,
			ResourceType:  item.ResourceType,
			Tags:          item.Tags,
		})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading manifest: %w", err)
	}
	return nil
}

// Encode writes items as JSON Lines.
func Encode(w io.Writer, items []Item) error {
	enc := json.NewEncoder(w)
	for i := range items {
		if err := enc.Encode(&items[i]); err != nil {
			return err
		}
	}
	return nil
}
