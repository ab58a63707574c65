// Package fetch retrieves board pages: a plain HTTP fetcher with charset
// normalization for the common case, and a headless-browser renderer for
// script-built boards.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"
)

// maxBodySize caps how much of a response we are willing to read. Board
// pages are small; anything past this is either an error page or abuse.
const maxBodySize = 10 << 20

// Doer is satisfied by *http.Client. Taking the interface keeps the fetcher
// testable without a live server.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher retrieves pages over plain HTTP.
type Fetcher struct {
	client    Doer
	userAgent string
}

// NewFetcher builds a Fetcher. A nil client gets a default with the given
// timeout; a zero timeout falls back to 15 seconds.
func NewFetcher(client Doer, userAgent string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	return &Fetcher{client: client, userAgent: userAgent}
}

// Get fetches url and returns the body decoded to UTF-8. Korean university
// boards still serve EUC-KR; the charset sniffer handles both the
// Content-Type header and meta tags.
func (f *Fetcher) Get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	limited := io.LimitReader(resp.Body, maxBodySize)
	reader, err := charset.NewReader(limited, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("failed to detect charset for %s: %w", url, err)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read body from %s: %w", url, err)
	}
	return string(body), nil
}
