package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// RenderedPage is a device page as a browser rendered it
type RenderedPage struct {
	URL        string
	StatusCode int64
	MimeType   string
	HTML       string
}

// RenderPage loads url in headless Chrome and returns the DOM after scripts
// ran. Some firmware builds fill the power breakdown slots from JavaScript,
// which a plain GET does not show.
func RenderPage(ctx context.Context, url string, visible bool, timeout time.Duration) (*RenderedPage, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !visible),
		chromedp.Flag("no-sandbox", true),            // Required for running as root on Linux
		chromedp.Flag("disable-gpu", true),           // Recommended for headless Linux
		chromedp.Flag("disable-dev-shm-usage", true), // Avoid /dev/shm issues on Linux
	)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	if timeout > 0 {
		browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
		defer cancel()
	}

	page := &RenderedPage{URL: url}
	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *network.EventResponseReceived:
			// only the document itself, not images or scripts
			if ev.Type == network.ResourceTypeDocument && ev.Response.URL == url {
				page.StatusCode = ev.Response.Status
				page.MimeType = ev.Response.MimeType
			}
		}
	})

	if err := chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", url, err)
	}

	return page, nil
}
