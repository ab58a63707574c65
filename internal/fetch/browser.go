package fetch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// Renderer loads pages in a headless browser and returns the rendered DOM.
// It exists for boards that assemble their rows with JavaScript, where the
// raw HTTP body contains no usable structure.
//
// A Renderer serializes its renders; headless Chrome sessions are expensive
// and the call sites treat this as a last resort, not a throughput path.
type Renderer struct {
	mu        sync.Mutex
	flags     []chromedp.ExecAllocatorOption
	waitDelay time.Duration
	timeout   time.Duration
}

// NewRenderer builds a Renderer from browser option strings of the
// "--flag" or "--flag=value" form. Unknown strings are passed through to
// Chrome untouched.
func NewRenderer(options []string, waitDelay, timeout time.Duration) *Renderer {
	if waitDelay <= 0 {
		waitDelay = 2 * time.Second
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	flags := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for _, opt := range options {
		name := strings.TrimPrefix(opt, "--")
		value := "true"
		if i := strings.Index(name, "="); i >= 0 {
			name, value = name[:i], name[i+1:]
		}
		if value == "true" {
			flags = append(flags, chromedp.Flag(name, true))
		} else {
			flags = append(flags, chromedp.Flag(name, value))
		}
	}
	return &Renderer{flags: flags, waitDelay: waitDelay, timeout: timeout}
}

// Render navigates to url, waits for the body plus a settle delay, and
// returns the rendered document HTML.
func (r *Renderer) Render(ctx context.Context, url string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.flags...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(r.waitDelay),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", url, err)
	}
	return html, nil
}
