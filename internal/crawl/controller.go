// Package crawl drives the page-by-page catalog traversal.
package crawl

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taycommerce/abyat-crawler/internal/catalog"
	"github.com/taycommerce/abyat-crawler/internal/dedup"
	"github.com/taycommerce/abyat-crawler/internal/extract"
	"github.com/taycommerce/abyat-crawler/internal/ingest"
	"github.com/taycommerce/abyat-crawler/internal/metrics"
)

// Config controls the traversal loop.
type Config struct {
	Marker          string
	PageLoadTimeout time.Duration
	PageDelay       time.Duration
	StartPage       int
	ArchivePrefix   string
}

// Controller owns the single-crawl-at-a-time invariant and runs the
// fetch → extract → filter → dedup → ingest cycle for each page.
type Controller struct {
	fetcher   catalog.Fetcher
	store     catalog.ProductStore
	extractor *extract.Extractor
	blobs     catalog.BlobStore // optional raw-page archive
	publisher catalog.Publisher // optional completion events
	clock     catalog.Clock
	pageURL   func(page int) string
	cfg       Config
	logger    *zap.Logger

	// base is the lifecycle context detached starts run under, so a crawl
	// outlives the HTTP request that triggered it but not the process.
	base context.Context

	running  atomic.Bool
	stopFlag atomic.Bool

	mu      sync.RWMutex
	page    int
	lastRun *catalog.RunSummary
}

// New constructs a Controller. blobs and publisher may be nil.
func New(
	base context.Context,
	fetcher catalog.Fetcher,
	store catalog.ProductStore,
	extractor *extract.Extractor,
	blobs catalog.BlobStore,
	publisher catalog.Publisher,
	clock catalog.Clock,
	pageURL func(page int) string,
	cfg Config,
	logger *zap.Logger,
) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StartPage <= 0 {
		cfg.StartPage = 1
	}
	if cfg.PageLoadTimeout <= 0 {
		cfg.PageLoadTimeout = 5 * time.Minute
	}
	return &Controller{
		fetcher:   fetcher,
		store:     store,
		extractor: extractor,
		blobs:     blobs,
		publisher: publisher,
		clock:     clock,
		pageURL:   pageURL,
		cfg:       cfg,
		logger:    logger,
		base:      base,
	}
}

// Start begins a crawl in the background and returns immediately. It returns
// catalog.ErrCrawlInProgress when a run is already active; the check-and-set
// is atomic, so concurrent start requests admit exactly one run.
func (c *Controller) Start(startPage int) error {
	if !c.running.CompareAndSwap(false, true) {
		return catalog.ErrCrawlInProgress
	}
	go func() {
		if _, err := c.run(c.base, startPage); err != nil {
			c.logger.Error("crawl failed", zap.Error(err))
		}
	}()
	return nil
}

// Run executes a crawl synchronously, honoring the same single-run guard.
func (c *Controller) Run(ctx context.Context, startPage int) (catalog.RunSummary, error) {
	if !c.running.CompareAndSwap(false, true) {
		return catalog.RunSummary{}, catalog.ErrCrawlInProgress
	}
	return c.run(ctx, startPage)
}

// Stop requests that the crawl end after the in-flight page cycle. It does
// not interrupt the current page.
func (c *Controller) Stop() {
	if c.running.Load() {
		c.stopFlag.Store(true)
	}
}

// Running reports whether a crawl is active.
func (c *Controller) Running() bool {
	return c.running.Load()
}

// LastRun returns the most recent run summary, if any.
func (c *Controller) LastRun() *catalog.RunSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastRun == nil {
		return nil
	}
	cp := *c.lastRun
	return &cp
}

// run executes the whole traversal. The guard flag is already held; every
// exit path releases it, tears the session down and records the summary.
func (c *Controller) run(ctx context.Context, startPage int) (summary catalog.RunSummary, err error) {
	if startPage <= 0 {
		startPage = c.cfg.StartPage
	}
	summary = catalog.RunSummary{
		RunID:     uuid.NewString(),
		StartPage: startPage,
		StartedAt: c.clock.Now().UTC(),
	}
	logger := c.logger.With(zap.String("run_id", summary.RunID))
	logger.Info("crawl started", zap.Int("start_page", startPage))

	defer func() {
		summary.FinishedAt = c.clock.Now().UTC()
		summary.Duration = summary.FinishedAt.Sub(summary.StartedAt)
		status := "succeeded"
		if err != nil {
			summary.Failed = true
			summary.ErrorText = err.Error()
			status = "failed"
		}
		metrics.RunFinished(status, summary.Duration, summary.Successful)
		c.publishSummary(summary, logger)

		c.mu.Lock()
		cp := summary
		c.lastRun = &cp
		c.page = 0
		c.mu.Unlock()

		c.stopFlag.Store(false)
		c.running.Store(false)
		logger.Info("crawl finished",
			zap.String("status", status),
			zap.Int("pages", summary.PagesSeen),
			zap.Int("successful", summary.Successful),
			zap.Int("duplicates", summary.Duplicates),
			zap.Int("errors", summary.Errors),
			zap.Int("rejected", summary.Rejected),
			zap.Duration("duration", summary.Duration),
		)
	}()

	session, err := c.fetcher.NewSession(ctx)
	if err != nil {
		return summary, fmt.Errorf("open fetch session: %w", err)
	}
	defer session.Close()

	// Full-refresh semantics: every prior crawl's data is discarded before
	// the new traversal writes anything.
	if err = c.store.ClearAll(ctx); err != nil {
		return summary, fmt.Errorf("clear product store: %w", err)
	}

	page := startPage
	for {
		c.setPage(page)
		hasNext, pageErr := c.processPage(ctx, session, page, &summary, logger)
		if pageErr != nil {
			err = pageErr
			return summary, err
		}
		if !hasNext {
			return summary, nil
		}
		if c.stopFlag.Load() {
			logger.Info("stop requested, ending crawl after current page", zap.Int("page", page))
			return summary, nil
		}
		if waitErr := c.interPageDelay(ctx); waitErr != nil {
			err = waitErr
			return summary, err
		}
		page++
	}
}

// processPage runs one full page cycle. Per-record duplicates and errors are
// absorbed into the summary; only navigation/extraction failures and
// store-level failures come back as errors.
func (c *Controller) processPage(
	ctx context.Context,
	session catalog.PageSession,
	page int,
	summary *catalog.RunSummary,
	logger *zap.Logger,
) (bool, error) {
	url := c.pageURL(page)
	logger.Info("loading page", zap.Int("page", page), zap.String("url", url))

	loadStart := c.clock.Now()
	html, err := session.LoadPage(ctx, url, c.cfg.Marker, c.cfg.PageLoadTimeout)
	if err != nil {
		return false, fmt.Errorf("load page %d: %w", page, err)
	}
	metrics.PageLoadObserved(c.clock.Now().Sub(loadStart))

	result, err := c.extractor.Page(html)
	if err != nil {
		return false, fmt.Errorf("extract page %d: %w", page, err)
	}

	accepted := extract.FilterAccepted(result.Candidates)
	rejected := len(result.Candidates) - len(accepted)
	batch := dedup.AssignURLKeys(accepted)

	bulk, err := ingest.Ingest(ctx, c.store, batch)
	if err != nil {
		return false, fmt.Errorf("ingest page %d: %w", page, err)
	}
	s := bulk.Summary()
	logger.Info("bulk insert completed",
		zap.Int("page", page),
		zap.Int("total_processed", s.TotalProcessed),
		zap.Int("successful", s.SuccessfulCount),
		zap.Int("duplicates", s.DuplicateCount),
		zap.Int("errors", s.ErrorCount),
		zap.Int("rejected", rejected),
	)

	summary.PagesSeen++
	summary.Successful += s.SuccessfulCount
	summary.Duplicates += s.DuplicateCount
	summary.Errors += s.ErrorCount
	summary.Rejected += rejected
	metrics.PageProcessed()
	metrics.RecordsProcessed(s.SuccessfulCount, s.DuplicateCount, s.ErrorCount, rejected)

	c.archivePage(ctx, summary.RunID, page, html, logger)

	return result.HasNextPage, nil
}

func (c *Controller) interPageDelay(ctx context.Context) error {
	if c.cfg.PageDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(c.cfg.PageDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("inter-page delay interrupted: %w", ctx.Err())
	}
}

// archivePage stores the raw rendered HTML for auditing. Failures are logged
// and never affect the crawl.
func (c *Controller) archivePage(ctx context.Context, runID string, page int, html string, logger *zap.Logger) {
	if c.blobs == nil {
		return
	}
	path := fmt.Sprintf("%s/%s/page-%04d.html", c.cfg.ArchivePrefix, runID, page)
	uri, err := c.blobs.PutObject(ctx, path, "text/html; charset=utf-8", []byte(html))
	if err != nil {
		logger.Warn("archive page failed", zap.Int("page", page), zap.Error(err))
		return
	}
	logger.Debug("page archived", zap.Int("page", page), zap.String("uri", uri))
}

func (c *Controller) publishSummary(summary catalog.RunSummary, logger *zap.Logger) {
	if c.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := c.publisher.Publish(pubCtx, summary); err != nil {
		logger.Warn("publish run summary failed", zap.Error(err))
	}
}

func (c *Controller) setPage(page int) {
	c.mu.Lock()
	c.page = page
	c.mu.Unlock()
}

// CurrentPage returns the page index of the active run (0 when idle).
func (c *Controller) CurrentPage() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.page
}
