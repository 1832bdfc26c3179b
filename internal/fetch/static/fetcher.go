// Package static fetches catalog pages over plain HTTP using Colly. It only
// sees server-rendered markup, so it suits mirrors and test fixtures rather
// than the script-heavy live site.
package static

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/taycommerce/abyat-crawler/internal/catalog"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
}

// Fetcher implements catalog.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher with a pooled transport shared by all sessions.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// NewSession returns a session backed by a collector clone. There is no
// browser to tear down; Close is a no-op.
func (f *Fetcher) NewSession(_ context.Context) (catalog.PageSession, error) {
	return &session{collector: f.baseCollector.Clone()}, nil
}

type session struct {
	collector *colly.Collector
}

// LoadPage issues a GET and verifies the marker appears in the returned
// document. A missing marker means the page did not render its catalog grid,
// which a static fetch cannot recover from.
func (s *session) LoadPage(ctx context.Context, url, marker string, timeout time.Duration) (string, error) {
	collector := s.collector.Clone()
	if timeout > 0 {
		collector.SetRequestTimeout(timeout)
	}

	var (
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := s.visit(ctx, collector, url); err != nil {
		return "", err
	}
	if fetchErr != nil {
		return "", fmt.Errorf("fetch %s: %w", url, fetchErr)
	}

	html := string(body)
	if marker != "" {
		if err := checkMarker(html, marker); err != nil {
			return "", fmt.Errorf("fetch %s: %w", url, err)
		}
	}
	return html, nil
}

func (s *session) visit(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", url, err)
		}
		return nil
	}
}

func (s *session) Close() {}

func checkMarker(html, marker string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if doc.Find(marker).Length() == 0 {
		return fmt.Errorf("marker %q not found in page", marker)
	}
	return nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
