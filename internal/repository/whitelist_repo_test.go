package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/timmy/hearth/internal/domain"
)

func TestNormalizeDomain(t *testing.T) {
	tests := map[string]string{
		"WHO.int":                  "who.int",
		"https://www.mdpi.com/x/y": "mdpi.com",
		" worldbank.org. ":         "worldbank.org",
	}
	for in, want := range tests {
		if got := NormalizeDomain(in); got != want {
			t.Errorf("NormalizeDomain(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWhitelistSeedAddRemove(t *testing.T) {
	ctx := context.Background()
	wl := NewWhitelistRepository(newTestDB(t))

	n, err := wl.Seed(ctx, []string{"who.int", "mdpi.com", "not a domain"})
	if err != nil || n != 2 {
		t.Fatalf("Seed() = %d, %v", n, err)
	}
	// Second seed is a no-op once the table has rows.
	if n, _ := wl.Seed(ctx, []string{"seforall.org"}); n != 0 {
		t.Fatalf("re-Seed() added %d", n)
	}

	if _, err := wl.Add(ctx, "WHO.int"); err != nil {
		t.Fatalf("Add(duplicate) error = %v", err)
	}
	if _, err := wl.Add(ctx, "localhost"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("Add(invalid) error = %v", err)
	}

	domains, _ := wl.ListDomains(ctx)
	if len(domains) != 2 || domains[0] != "mdpi.com" || domains[1] != "who.int" {
		t.Fatalf("ListDomains() = %v", domains)
	}

	if err := wl.Remove(ctx, "mdpi.com"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := wl.Remove(ctx, "mdpi.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Remove(missing) error = %v", err)
	}
}

func TestPointIDDeterministic(t *testing.T) {
	if PointID(7) != PointID(7) {
		t.Fatal("PointID not deterministic")
	}
	if PointID(7) == PointID(8) {
		t.Fatal("PointID collision")
	}
}
