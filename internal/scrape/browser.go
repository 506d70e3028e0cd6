package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// PageRequest describes one page load.
type PageRequest struct {
	URL      string
	Script   string        // evaluated after navigation, may be empty
	Wait     time.Duration // settle time before reading the DOM
	Selector string
}

// Browser loads pages and returns the outer HTML of a selector.
type Browser interface {
	OuterHTML(ctx context.Context, req PageRequest) (string, error)
	Close() error
}

// Launcher starts a Browser.
type Launcher func(ctx context.Context) (Browser, error)

// ChromeOptions configures the headless Chrome session.
type ChromeOptions struct {
	Headless  bool
	UserAgent string
}

// ChromeBrowser drives a local Chrome through the DevTools protocol.
// Each OuterHTML call runs in its own tab.
type ChromeBrowser struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// ChromeLauncher returns a Launcher for ChromeBrowser.
func ChromeLauncher(opts ChromeOptions) Launcher {
	return func(ctx context.Context) (Browser, error) {
		return NewChromeBrowser(ctx, opts)
	}
}

// NewChromeBrowser starts Chrome. The session lives until Close, independent
// of ctx, which only bounds start-up.
func NewChromeBrowser(ctx context.Context, opts ChromeOptions) (*ChromeBrowser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		browserCancel()
		allocCancel()
	}

	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()

	select {
	case err := <-started:
		if err != nil {
			cancel()
			return nil, fmt.Errorf("start chrome: %w", err)
		}
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}

	return &ChromeBrowser{ctx: browserCtx, cancel: cancel}, nil
}

// OuterHTML opens a tab, navigates, runs the optional script, waits and reads
// the selector. The tab is closed on return or when ctx ends.
func (b *ChromeBrowser) OuterHTML(ctx context.Context, req PageRequest) (string, error) {
	tabCtx, closeTab := chromedp.NewContext(b.ctx)
	defer closeTab()
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	actions := []chromedp.Action{chromedp.Navigate(req.URL)}
	if req.Script != "" {
		actions = append(actions, chromedp.Evaluate(req.Script, nil))
	}
	if req.Wait > 0 {
		actions = append(actions, chromedp.Sleep(req.Wait))
	}

	var html string
	actions = append(actions, chromedp.OuterHTML(req.Selector, &html, chromedp.ByQuery))

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("load %s: %w", req.URL, ctx.Err())
		}
		return "", fmt.Errorf("load %s: %w", req.URL, err)
	}
	return html, nil
}

// Close shuts Chrome down.
func (b *ChromeBrowser) Close() error {
	b.cancel()
	return nil
}
