package memory

import (
	"context"
	"testing"

	"github.com/taycommerce/abyat-crawler/internal/catalog"
)

func product(sku, name, urlKey string) catalog.Product {
	return catalog.Product{
		SKU:         sku,
		Name:        name,
		URLKey:      urlKey,
		Store:       catalog.DefaultStore,
		Categories1: "أثاث وغرف",
		Price:       "100",
		IsInStock:   1,
	}
}

func TestInsertBatchReportsDuplicatesAndErrors(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	first, err := s.InsertBatch(ctx, []catalog.Product{product("TAY-1", "Mirror", "tay-1-mirror")})
	if err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}
	if len(first.Inserted) != 1 || len(first.Failures) != 0 {
		t.Fatalf("unexpected first report: %+v", first)
	}

	batch := []catalog.Product{
		product("TAY-2", "Frame", "tay-2-frame"),
		product("TAY-1", "Mirror again", "tay-1-mirror-x"), // sku collision
		product("TAY-3", "", "tay-3-art"),                  // validation error
		product("TAY-4", "Art", "tay-2-frame"),             // url_key collision within store
	}
	report, err := s.InsertBatch(ctx, batch)
	if err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}
	if len(report.Inserted) != 1 || report.Inserted[0] != 0 {
		t.Fatalf("inserted = %v, want [0]", report.Inserted)
	}
	if len(report.Failures) != 3 {
		t.Fatalf("failures = %+v, want 3 entries", report.Failures)
	}
	if f := report.Failures[0]; !f.Duplicate || f.Field != "sku" || f.Value != "TAY-1" {
		t.Errorf("sku collision misreported: %+v", f)
	}
	if f := report.Failures[1]; f.Duplicate || f.Index != 2 {
		t.Errorf("validation failure misreported: %+v", f)
	}
	if f := report.Failures[2]; !f.Duplicate || f.Field != "url_key" || f.Value != "tay-2-frame" {
		t.Errorf("url_key collision misreported: %+v", f)
	}

	count, err := s.Count(ctx)
	if err != nil || count != 2 {
		t.Fatalf("Count() = %d, %v; want 2", count, err)
	}
}

func TestSkuStorePairUniqueness(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	a := product("TAY-1", "Mirror", "k1")
	b := product("TAY-1", "Mirror B", "k2")
	b.Store = "other"

	if _, err := s.InsertBatch(ctx, []catalog.Product{a}); err != nil {
		t.Fatalf("seed insert error = %v", err)
	}
	report, err := s.InsertBatch(ctx, []catalog.Product{b})
	if err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}
	// Same sku under a different store still violates the sku index itself.
	if len(report.Failures) != 1 || !report.Failures[0].Duplicate {
		t.Fatalf("expected duplicate failure, got %+v", report)
	}
}

func TestClearAll(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	if _, err := s.InsertBatch(ctx, []catalog.Product{product("TAY-1", "Mirror", "k1")}); err != nil {
		t.Fatalf("insert error = %v", err)
	}
	if err := s.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll() error = %v", err)
	}
	count, _ := s.Count(ctx)
	if count != 0 {
		t.Fatalf("Count() after clear = %d", count)
	}
	// The cleared keys must be reusable.
	report, err := s.InsertBatch(ctx, []catalog.Product{product("TAY-1", "Mirror", "k1")})
	if err != nil || len(report.Inserted) != 1 {
		t.Fatalf("reinsert after clear failed: %+v, %v", report, err)
	}
}

func TestListFiltersAndPaginates(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	batch := []catalog.Product{
		product("TAY-1", "Gold Mirror", "k1"),
		product("TAY-2", "Wood Frame", "k2"),
		product("TAY-3", "Wall Clock", "k3"),
	}
	batch[1].Price = "250"
	batch[2].Price = "999"
	batch[2].IsInStock = 0
	if _, err := s.InsertBatch(ctx, batch); err != nil {
		t.Fatalf("insert error = %v", err)
	}

	got, total, err := s.List(ctx, catalog.ProductQuery{Search: "mirror"})
	if err != nil || total != 1 || got[0].SKU != "TAY-1" {
		t.Fatalf("search: got %v total=%d err=%v", got, total, err)
	}

	got, total, err = s.List(ctx, catalog.ProductQuery{PriceMin: "200", PriceMax: "500"})
	if err != nil || total != 1 || got[0].SKU != "TAY-2" {
		t.Fatalf("price range: got %v total=%d err=%v", got, total, err)
	}

	got, total, err = s.List(ctx, catalog.ProductQuery{InStock: true})
	if err != nil || total != 2 {
		t.Fatalf("in stock: got %v total=%d err=%v", got, total, err)
	}

	got, total, err = s.List(ctx, catalog.ProductQuery{Page: 2, Limit: 2, SortBy: "sku"})
	if err != nil || total != 3 || len(got) != 1 || got[0].SKU != "TAY-3" {
		t.Fatalf("pagination: got %v total=%d err=%v", got, total, err)
	}

	got, _, err = s.List(ctx, catalog.ProductQuery{SortBy: "price", SortDesc: true})
	if err != nil || got[0].SKU != "TAY-3" {
		t.Fatalf("sort desc: got %v err=%v", got, err)
	}
}

func TestCRUDRoundTrip(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	if _, err := s.InsertBatch(ctx, []catalog.Product{product("TAY-1", "Mirror", "k1")}); err != nil {
		t.Fatalf("insert error = %v", err)
	}

	got, err := s.GetBySKU(ctx, "TAY-1")
	if err != nil || got.Name != "Mirror" {
		t.Fatalf("GetBySKU() = %+v, %v", got, err)
	}

	updated, err := s.UpdateBySKU(ctx, "TAY-1", map[string]any{"name": "Framed Mirror", "qty": 7})
	if err != nil {
		t.Fatalf("UpdateBySKU() error = %v", err)
	}
	if updated.Name != "Framed Mirror" || updated.Qty != 7 {
		t.Fatalf("update not applied: %+v", updated)
	}
	if updated.SKU != "TAY-1" {
		t.Fatalf("sku changed on update: %q", updated.SKU)
	}

	if err := s.DeleteBySKU(ctx, "TAY-1"); err != nil {
		t.Fatalf("DeleteBySKU() error = %v", err)
	}
	if _, err := s.GetBySKU(ctx, "TAY-1"); err != catalog.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteBySKU(ctx, "TAY-1"); err != catalog.ErrNotFound {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestStatsAndCategories(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	batch := []catalog.Product{
		product("TAY-1", "Mirror", "k1"),
		product("TAY-2", "Frame", "k2"),
	}
	batch[0].Price = "100"
	batch[1].Price = "300"
	batch[1].IsInStock = 0
	batch[1].Categories1 = "ديكور"
	if _, err := s.InsertBatch(ctx, batch); err != nil {
		t.Fatalf("insert error = %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalProducts != 2 || stats.InStock != 1 || stats.OutOfStock != 1 {
		t.Fatalf("stats counts: %+v", stats)
	}
	if stats.AveragePrice != 200 {
		t.Fatalf("average price = %v, want 200", stats.AveragePrice)
	}

	cats, err := s.Categories(ctx)
	if err != nil || len(cats) != 2 {
		t.Fatalf("Categories() = %v, %v", cats, err)
	}
}
