package adapter

import (
	"context"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/m-mizutani/goerr/v2"
)

// Page is the minimal navigation surface source adapters rely on. Each
// method operates on the tab scoped to one WithPage call.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	Text(ctx context.Context, selector string) (string, error)
	HTML(ctx context.Context, selector string) (string, error)
}

// Browser drives one stateful browser session. The session must be acquired
// exclusively for the duration of a fetch: WithPage serializes callers and
// closes the tab on every exit path, so the next fetch starts from a clean
// state. Adapters that run concurrently must each own their own Browser.
type Browser interface {
	WithPage(ctx context.Context, fn func(ctx context.Context, page Page) error) error
	Close() error
}

// ChromeBrowser implements Browser on a headless Chrome session via the
// DevTools protocol.
type ChromeBrowser struct {
	mu         sync.Mutex
	allocCtx   context.Context
	browserCtx context.Context
	cancels    []context.CancelFunc
}

type BrowserOption func(*browserConfig)

type browserConfig struct {
	headless bool
	execPath string
}

func WithHeadless(headless bool) BrowserOption {
	return func(c *browserConfig) {
		c.headless = headless
	}
}

func WithExecPath(path string) BrowserOption {
	return func(c *browserConfig) {
		c.execPath = path
	}
}

func NewBrowser(ctx context.Context, opts ...BrowserOption) (*ChromeBrowser, error) {
	cfg := &browserConfig{headless: true}
	for _, opt := range opts {
		opt(cfg)
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", cfg.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(cfg.execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser process eagerly so the first fetch does not pay for it
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, goerr.Wrap(err, "failed to start browser session")
	}

	return &ChromeBrowser{
		allocCtx:   allocCtx,
		browserCtx: browserCtx,
		cancels:    []context.CancelFunc{browserCancel, allocCancel},
	}, nil
}

func (b *ChromeBrowser) WithPage(ctx context.Context, fn func(ctx context.Context, page Page) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// A fresh tab per fetch; the deferred cancel closes it on every exit
	// path, including panics and caller cancellation
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		var dcancel context.CancelFunc
		tabCtx, dcancel = context.WithDeadline(tabCtx, deadline)
		defer dcancel()
	}

	return fn(tabCtx, chromePage{})
}

func (b *ChromeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, cancel := range b.cancels {
		cancel()
	}
	return nil
}

type chromePage struct{}

func (chromePage) Navigate(ctx context.Context, url string) error {
	if err := chromedp.Run(ctx, chromedp.Navigate(url)); err != nil {
		return goerr.Wrap(err, "failed to navigate", goerr.V("url", url))
	}
	return nil
}

func (chromePage) WaitVisible(ctx context.Context, selector string) error {
	if err := chromedp.Run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return goerr.Wrap(err, "element did not become visible", goerr.V("selector", selector))
	}
	return nil
}

func (chromePage) Text(ctx context.Context, selector string) (string, error) {
	var text string
	if err := chromedp.Run(ctx, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return "", goerr.Wrap(err, "failed to extract text", goerr.V("selector", selector))
	}
	return text, nil
}

func (chromePage) HTML(ctx context.Context, selector string) (string, error) {
	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML(selector, &html, chromedp.ByQuery)); err != nil {
		return "", goerr.Wrap(err, "failed to extract html", goerr.V("selector", selector))
	}
	return html, nil
}
