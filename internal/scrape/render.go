package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// DefaultRenderTimeoutSec bounds a headless render when the caller does not
// set one.
const DefaultRenderTimeoutSec = 30

// RenderOptions defines parameters for a Chromium-based page render.
type RenderOptions struct {
	// URL to load, e.g. "https://aikatsu-academy.com/schedule/".
	URL string

	// WaitSelector, when non-empty, is a CSS selector the render waits on
	// before reading the document. Defaults to the schedule slide container.
	WaitSelector string

	// Timeout bounds the entire render operation. If zero, a sane default
	// (DefaultRenderTimeoutSec) is used.
	Timeout time.Duration
}

// RenderHTML launches a headless Chromium instance via chromedp, navigates
// to opts.URL, waits for the schedule markup to materialize, and returns the
// rendered document HTML.
//
// The plain HTTP fetcher is sufficient when the site serves the schedule
// server-side; this path exists for markup that is only built client-side.
func RenderHTML(parentCtx context.Context, opts RenderOptions) (string, error) {
	if opts.URL == "" {
		return "", fmt.Errorf("render: URL is required")
	}
	if opts.WaitSelector == "" {
		opts.WaitSelector = ".js-schedule-body .swiper-slide"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRenderTimeoutSec * time.Second
	}

	// Create a new chromedp context.
	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	// Apply timeout to the entire render sequence.
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var html string
	tasks := chromedp.Tasks{
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(opts.WaitSelector, chromedp.ByQuery),
		// Small extra delay to allow final DOM mutations.
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return "", fmt.Errorf("render: chromedp run failed: %w", err)
	}

	return html, nil
}
