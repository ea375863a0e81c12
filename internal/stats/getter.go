package stats

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// MaxPageBytes caps the size of a retrieved page.
const MaxPageBytes = 16 * 1024 * 1024

// Page is a retrieved document.
type Page struct {
	StatusCode int
	Body       []byte
	// Truncated is set when the document exceeded the size cap and Body
	// holds only its first bytes.
	Truncated bool
}

// PageGetter retrieves one page. Transport failures are returned as errors;
// HTTP statuses are reported on the Page.
type PageGetter interface {
	Get(ctx context.Context, url string) (*Page, error)
}

// HTTPGetter fetches pages over plain HTTP, spacing requests by a minimum
// interval so the site is not hammered.
type HTTPGetter struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	maxBytes  int64
}

// NewHTTPGetter returns an HTTPGetter. A zero interval disables rate limiting.
func NewHTTPGetter(timeout, interval time.Duration, userAgent string) *HTTPGetter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &HTTPGetter{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter:   rate.NewLimiter(limit, 1),
		userAgent: userAgent,
		maxBytes:  MaxPageBytes,
	}
}

// Get implements PageGetter.
func (g *HTTPGetter) Get(ctx context.Context, url string) (*Page, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, g.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	page := &Page{StatusCode: resp.StatusCode, Body: body}
	if int64(len(body)) > g.maxBytes {
		page.Body, page.Truncated = body[:g.maxBytes], true
	}
	return page, nil
}

// BrowserGetter renders pages in headless Chrome. It is slower than
// HTTPGetter but gets through pages that need JavaScript.
type BrowserGetter struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	timeout  time.Duration
	limiter  *rate.Limiter
}

// NewBrowserGetter starts a Chrome allocator. Call Close to release it.
func NewBrowserGetter(timeout, interval time.Duration, userAgent string) *BrowserGetter {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &BrowserGetter{
		allocCtx: allocCtx,
		cancel:   cancel,
		timeout:  timeout,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// Close stops the browser.
func (b *BrowserGetter) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}

// Get implements PageGetter.
func (b *BrowserGetter) Get(ctx context.Context, url string) (*Page, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	browserCtx, cancel := chromedp.NewContext(b.allocCtx)
	defer cancel()
	if b.timeout > 0 {
		browserCtx, cancel = context.WithTimeout(browserCtx, b.timeout)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	resp, err := chromedp.RunResponse(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(`body`, chromedp.ByQuery),
		chromedp.OuterHTML(`html`, &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp: %w", err)
	}
	status := http.StatusOK
	if resp != nil && resp.Status != 0 {
		status = int(resp.Status)
	}
	page := &Page{StatusCode: status, Body: []byte(html)}
	if len(page.Body) > MaxPageBytes {
		page.Body, page.Truncated = page.Body[:MaxPageBytes], true
	}
	return page, nil
}
