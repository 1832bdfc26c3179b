package dedup

import (
	"fmt"
	"testing"

	"github.com/taycommerce/abyat-crawler/internal/catalog"
)

func keys(batch []catalog.Product) []string {
	out := make([]string, len(batch))
	for i, p := range batch {
		out[i] = p.URLKey
	}
	return out
}

func TestAssignURLKeysNoCollisions(t *testing.T) {
	t.Parallel()

	batch := []catalog.Product{
		{SKU: "TAY-1", URLKey: "tay-1-mirror"},
		{SKU: "TAY-2", URLKey: "tay-2-frame"},
	}
	got := AssignURLKeys(batch)
	if got[0].URLKey != "tay-1-mirror" || got[1].URLKey != "tay-2-frame" {
		t.Fatalf("keys changed without collision: %v", keys(got))
	}
}

func TestAssignURLKeysSuffixesInInputOrder(t *testing.T) {
	t.Parallel()

	const base = "TAY-123-chair"
	batch := make([]catalog.Product, 4)
	for i := range batch {
		batch[i] = catalog.Product{SKU: fmt.Sprintf("TAY-%d", i), URLKey: base}
	}
	got := AssignURLKeys(batch)

	want := []string{base, base + "-1", base + "-2", base + "-3"}
	for i, k := range keys(got) {
		if k != want[i] {
			t.Errorf("key[%d] = %q, want %q", i, k, want[i])
		}
	}
}

func TestAssignURLKeysSuffixBuildsFromBaseKey(t *testing.T) {
	t.Parallel()

	// A record whose proposed key already matches a suffixed form must not
	// cause the colliding record to stack suffixes ("-1-1").
	batch := []catalog.Product{
		{URLKey: "tay-9-art"},
		{URLKey: "tay-9-art-1"},
		{URLKey: "tay-9-art"},
	}
	got := keys(AssignURLKeys(batch))
	want := []string{"tay-9-art", "tay-9-art-1", "tay-9-art-2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("keys = %v, want %v", got, want)
		}
	}
}

func TestAssignURLKeysAllDistinct(t *testing.T) {
	t.Parallel()

	batch := make([]catalog.Product, 50)
	for i := range batch {
		batch[i] = catalog.Product{URLKey: "same-key"}
	}
	seen := make(map[string]struct{})
	for _, k := range keys(AssignURLKeys(batch)) {
		if _, dup := seen[k]; dup {
			t.Fatalf("duplicate key %q in output", k)
		}
		seen[k] = struct{}{}
	}
	if len(seen) != len(batch) {
		t.Fatalf("expected %d distinct keys, got %d", len(batch), len(seen))
	}
}

func TestAssignURLKeysDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	batch := []catalog.Product{{URLKey: "k"}, {URLKey: "k"}}
	_ = AssignURLKeys(batch)
	if batch[1].URLKey != "k" {
		t.Fatalf("input batch mutated: %q", batch[1].URLKey)
	}
}
