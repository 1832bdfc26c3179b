package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/taycommerce/abyat-crawler/internal/catalog"
	memorystore "github.com/taycommerce/abyat-crawler/internal/store/memory"
)

// reportStore stubs InsertBatch so tests can shape the batch report exactly.
type reportStore struct {
	catalog.ProductStore
	report catalog.BatchReport
	err    error
}

func (s *reportStore) InsertBatch(context.Context, []catalog.Product) (catalog.BatchReport, error) {
	return s.report, s.err
}

func record(sku string) catalog.Product {
	return catalog.Product{SKU: sku, Name: "Product " + sku, URLKey: "key-" + sku}
}

func TestIngestEmptyBatch(t *testing.T) {
	t.Parallel()

	result, err := Ingest(context.Background(), memorystore.New(), nil)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if s := result.Summary(); s.TotalProcessed != 0 {
		t.Fatalf("summary = %+v, want empty", s)
	}
}

func TestIngestAllSuccessful(t *testing.T) {
	t.Parallel()

	batch := []catalog.Product{record("TAY-1"), record("TAY-2"), record("TAY-3")}
	result, err := Ingest(context.Background(), memorystore.New(), batch)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(result.Successful) != 3 || len(result.Duplicates) != 0 || len(result.Errors) != 0 {
		t.Fatalf("partitions: %+v", result.Summary())
	}
	for i, p := range result.Successful {
		if p.SKU != batch[i].SKU {
			t.Fatalf("order not preserved: %v", result.Successful)
		}
	}
}

func TestIngestClassifiesMixedResult(t *testing.T) {
	t.Parallel()

	store := memorystore.New()
	ctx := context.Background()

	// Pre-existing record so record 2 of 3 collides on sku at save time.
	if _, err := store.InsertBatch(ctx, []catalog.Product{record("TAY-2")}); err != nil {
		t.Fatalf("seed error = %v", err)
	}

	bad := record("TAY-3")
	bad.Name = "" // fails validation, not uniqueness
	batch := []catalog.Product{record("TAY-1"), record("TAY-2"), bad, record("TAY-4")}

	result, err := Ingest(ctx, store, batch)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if got := result.Summary(); got.TotalProcessed != len(batch) {
		t.Fatalf("summary does not cover input: %+v", got)
	}
	if len(result.Successful) != 2 || result.Successful[0].SKU != "TAY-1" || result.Successful[1].SKU != "TAY-4" {
		t.Fatalf("successful = %+v", result.Successful)
	}
	if len(result.Duplicates) != 1 {
		t.Fatalf("duplicates = %+v", result.Duplicates)
	}
	dup := result.Duplicates[0]
	if dup.Product.SKU != "TAY-2" || dup.Field != "sku" || dup.Value != "TAY-2" {
		t.Fatalf("duplicate cause: %+v", dup)
	}
	if len(result.Errors) != 1 || result.Errors[0].Product.SKU != "TAY-3" {
		t.Fatalf("errors = %+v", result.Errors)
	}
}

func TestIngestDuplicateWithinBatchAfterDedupBoundary(t *testing.T) {
	t.Parallel()

	// A key renamed by the batch pass can still collide with storage; it must
	// be reported as a duplicate, not renamed again.
	store := memorystore.New()
	ctx := context.Background()
	seed := record("TAY-9")
	seed.URLKey = "tay-1-chair-1"
	if _, err := store.InsertBatch(ctx, []catalog.Product{seed}); err != nil {
		t.Fatalf("seed error = %v", err)
	}

	renamed := record("TAY-1")
	renamed.URLKey = "tay-1-chair-1"
	result, err := Ingest(ctx, store, []catalog.Product{renamed})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(result.Duplicates) != 1 || result.Duplicates[0].Field != "url_key" {
		t.Fatalf("expected url_key duplicate, got %+v", result)
	}
}

func TestIngestInfrastructureFailurePropagates(t *testing.T) {
	t.Parallel()

	stub := &reportStore{err: errors.New("store unreachable")}
	_, err := Ingest(context.Background(), stub, []catalog.Product{record("TAY-1")})
	if err == nil || !errors.Is(err, stub.err) {
		t.Fatalf("expected wrapped infrastructure error, got %v", err)
	}
}

func TestIngestUnreportedIndexBecomesError(t *testing.T) {
	t.Parallel()

	stub := &reportStore{report: catalog.BatchReport{Inserted: []int{0}}}
	result, err := Ingest(context.Background(), stub, []catalog.Product{record("TAY-1"), record("TAY-2")})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(result.Successful) != 1 || len(result.Errors) != 1 {
		t.Fatalf("partitions: %+v", result.Summary())
	}
}

func TestIngestPartitionInvariant(t *testing.T) {
	t.Parallel()

	store := memorystore.New()
	ctx := context.Background()
	var batch []catalog.Product
	for i := 0; i < 20; i++ {
		p := record(fmt.Sprintf("TAY-%d", i%10)) // second half all duplicates
		p.URLKey = fmt.Sprintf("key-%d", i)
		batch = append(batch, p)
	}
	result, err := Ingest(ctx, store, batch)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	s := result.Summary()
	if s.TotalProcessed != len(batch) {
		t.Fatalf("|successful|+|duplicates|+|errors| = %d, want %d", s.TotalProcessed, len(batch))
	}
	if s.SuccessfulCount != 10 || s.DuplicateCount != 10 {
		t.Fatalf("summary = %+v", s)
	}
}
