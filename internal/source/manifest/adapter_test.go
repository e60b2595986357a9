package manifest

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.jsonl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestFileAdapterPaginates(t *testing.T) {
	path := writeManifest(t, `{"id":"a","title":"LPG in Kenya","tags":["Kenya","LPG"]}
not json
{"id":"b","title":""}

{"title":"Solar cookers","year_published":2021}
{"id":"c","title":"Biogas","source_url":"https://who.int/biogas"}
`)
	a := NewFileAdapter(path)
	ctx := context.Background()

	n, err := a.Count(ctx)
	if err != nil || n != 3 {
		t.Fatalf("Count() = %d, %v; want 3", n, err)
	}

	first, cursor, err := a.FetchBatch(ctx, "", 2)
	if err != nil {
		t.Fatalf("FetchBatch() error = %v", err)
	}
	if len(first) != 2 || cursor != "2" {
		t.Fatalf("first batch = %d items, cursor %q", len(first), cursor)
	}
	if first[1].SourceID != "5" || first[1].YearPublished == nil || *first[1].YearPublished != 2021 {
		t.Fatalf("line-number id not assigned: %+v", first[1])
	}

	rest, cursor, err := a.FetchBatch(ctx, cursor, 2)
	if err != nil || len(rest) != 1 || cursor != "" {
		t.Fatalf("second batch = %+v, %q, %v", rest, cursor, err)
	}
	if rest[0].SourceURL != "https://who.int/biogas" {
		t.Fatalf("SourceURL = %q", rest[0].SourceURL)
	}

	if _, _, err := a.FetchBatch(ctx, "x", 2); err == nil {
		t.Fatal("FetchBatch() accepted a bad cursor")
	}
}

func TestFileAdapterMissingFile(t *testing.T) {
	a := NewFileAdapter(filepath.Join(t.TempDir(), "missing.jsonl"))
	if _, _, err := a.FetchBatch(context.Background(), "", 10); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}

func TestEncodeRoundTripsThroughAdapter(t *testing.T) {
	year := 2019
	var buf bytes.Buffer
	if err := Encode(&buf, []Item{{ID: "1", Title: "Clean cooking", YearPublished: &year}}); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	a := NewFileAdapter(writeManifest(t, buf.String()))
	items, _, err := a.FetchBatch(context.Background(), "", 10)
	if err != nil || len(items) != 1 || items[0].Title != "Clean cooking" {
		t.Fatalf("FetchBatch() = %+v, %v", items, err)
	}
}
