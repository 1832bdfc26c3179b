// Package metrics exposes Prometheus collectors for the catalog crawler.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	crawlPagesTotal       prometheus.Counter
	crawlProductsTotal    *prometheus.CounterVec
	crawlRunsTotal        *prometheus.CounterVec
	crawlDurationSeconds  prometheus.Histogram
	crawlPageLoadSeconds  prometheus.Histogram
	storedProductsGauge   prometheus.Gauge

	once sync.Once
)

// Init registers the collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		crawlPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "catalog_crawl_pages_total",
			Help: "Total number of catalog pages processed.",
		})
		crawlProductsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_crawl_products_total",
			Help: "Total records processed, labeled by outcome.",
		}, []string{"outcome"})
		crawlRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_crawl_runs_total",
			Help: "Total crawl runs, labeled by status.",
		}, []string{"status"})
		crawlDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalog_crawl_duration_seconds",
			Help:    "Histogram of whole-run crawl durations.",
			Buckets: []float64{30, 60, 120, 300, 600, 1800, 3600},
		})
		crawlPageLoadSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalog_crawl_page_load_seconds",
			Help:    "Histogram of per-page load latencies.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		})
		storedProductsGauge = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_stored_products",
			Help: "Products persisted by the most recent crawl run.",
		})
	})
}

// PageProcessed counts one completed page cycle.
func PageProcessed() {
	Init()
	crawlPagesTotal.Inc()
}

// PageLoadObserved records how long one page took to render.
func PageLoadObserved(d time.Duration) {
	Init()
	crawlPageLoadSeconds.Observe(d.Seconds())
}

// RecordsProcessed counts batch outcomes by partition.
func RecordsProcessed(successful, duplicates, errored, rejected int) {
	Init()
	crawlProductsTotal.WithLabelValues("successful").Add(float64(successful))
	crawlProductsTotal.WithLabelValues("duplicate").Add(float64(duplicates))
	crawlProductsTotal.WithLabelValues("error").Add(float64(errored))
	crawlProductsTotal.WithLabelValues("rejected").Add(float64(rejected))
}

// RunFinished records a whole run's status and duration.
func RunFinished(status string, d time.Duration, stored int) {
	Init()
	crawlRunsTotal.WithLabelValues(status).Inc()
	crawlDurationSeconds.Observe(d.Seconds())
	storedProductsGauge.Set(float64(stored))
}
