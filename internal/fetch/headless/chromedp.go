// Package headless fetches catalog pages with a real browser so that
// script-rendered markup is present before extraction.
package headless

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/taycommerce/abyat-crawler/internal/catalog"
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	UserAgent       string
	WindowWidth     int
	WindowHeight    int
	DefaultTimeout  time.Duration
	ExtraChromeArgs map[string]any
}

// Fetcher implements catalog.Fetcher using chromedp and headless Chrome.
// Each session owns its own browser process, torn down on Close.
type Fetcher struct {
	cfg Config
}

// NewChromedp creates a headless fetcher backed by chromedp.
func NewChromedp(cfg Config) *Fetcher {
	if cfg.WindowWidth <= 0 {
		cfg.WindowWidth = 1366
	}
	if cfg.WindowHeight <= 0 {
		cfg.WindowHeight = 900
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 5 * time.Minute
	}
	return &Fetcher{cfg: cfg}
}

// NewSession launches a browser and returns a session bound to one tab. The
// tab persists across LoadPage calls so the site sees one continuous visit.
func (f *Fetcher) NewSession(ctx context.Context) (catalog.PageSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(f.cfg.WindowWidth, f.cfg.WindowHeight),
	)
	for name, value := range f.cfg.ExtraChromeArgs {
		opts = append(opts, chromedp.Flag(name, value))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(taskCtx, f.setupAction()); err != nil {
		taskCancel()
		allocCancel()
		return nil, fmt.Errorf("start headless browser: %w", err)
	}

	return &session{
		fetcher:     f,
		taskCtx:     taskCtx,
		taskCancel:  taskCancel,
		allocCancel: allocCancel,
	}, nil
}

func (f *Fetcher) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

type session struct {
	fetcher     *Fetcher
	taskCtx     context.Context
	taskCancel  context.CancelFunc
	allocCancel context.CancelFunc
}

// LoadPage navigates the tab to url, waits for marker to be present in the
// DOM and returns the rendered document. The wait treats the marker's
// absence within timeout as a navigation failure.
func (s *session) LoadPage(ctx context.Context, url, marker string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = s.fetcher.cfg.DefaultTimeout
	}
	if marker == "" {
		marker = "body"
	}

	runCtx, cancel := context.WithTimeout(s.taskCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitReady(marker, chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return "", fmt.Errorf("chromedp run %s: %w", url, err)
	}
	return html, nil
}

// Close shuts the tab and the browser process down.
func (s *session) Close() {
	s.taskCancel()
	s.allocCancel()
}
