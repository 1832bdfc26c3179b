package catalog

import (
	"context"
	"time"
)

// ProductStore persists and queries product records. InsertBatch runs
// unordered: a failing record never prevents later records from committing,
// and every input index is reported exactly once in the BatchReport.
// Uniqueness violations on sku, url_key or (sku, store) surface as duplicate
// failures; only total store failure returns an error.
type ProductStore interface {
	ClearAll(ctx context.Context) error
	InsertBatch(ctx context.Context, products []Product) (BatchReport, error)
	Count(ctx context.Context) (int64, error)
	List(ctx context.Context, query ProductQuery) ([]Product, int64, error)
	GetBySKU(ctx context.Context, sku string) (Product, error)
	UpdateBySKU(ctx context.Context, sku string, fields map[string]any) (Product, error)
	DeleteBySKU(ctx context.Context, sku string) error
	Categories(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (Stats, error)
	All(ctx context.Context) ([]Product, error)
	Close(ctx context.Context) error
}

// PageSession is one browser (or HTTP) session held for the length of a
// crawl run. LoadPage blocks until the readiness marker is present or the
// timeout elapses, and returns the rendered document HTML.
type PageSession interface {
	LoadPage(ctx context.Context, url string, marker string, timeout time.Duration) (string, error)
	Close()
}

// Fetcher opens page sessions.
type Fetcher interface {
	NewSession(ctx context.Context) (PageSession, error)
}

// BlobStore archives raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes run-completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
