// Package noticeboard harvests notice-board postings from heterogeneous
// university sites. Extraction runs a cascade: template match, heuristic
// pattern detection, common selector patterns, and finally a rendered-DOM
// pass through a headless browser.
package noticeboard

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/daehakro/noticeboard/internal/config"
	"github.com/daehakro/noticeboard/internal/fetch"
	"github.com/daehakro/noticeboard/internal/pattern"
	"github.com/daehakro/noticeboard/internal/selectors"
	"github.com/daehakro/noticeboard/internal/templates"
	"github.com/daehakro/noticeboard/internal/textutil"
)

// failAllMethods is the error message for a crawl where every cascade
// strategy came up empty.
const failAllMethods = "모든 크롤링 방법 실패"

// renderedConfidence is the relaxed detection threshold used on the
// browser-rendered DOM.
const renderedConfidence = 0.5

// Renderer produces a rendered HTML snapshot of a page. Satisfied by
// *fetch.Renderer.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Crawler is the extraction engine. Safe for concurrent Extract calls; the
// statistics counters are the only shared mutable state.
type Crawler struct {
	cfg      *config.Config
	log      *slog.Logger
	fetcher  *fetch.Fetcher
	renderer Renderer
	registry *templates.Registry
	detector *pattern.Detector

	mu    sync.Mutex
	stats map[string]int
}

// Option customizes a Crawler at construction.
type Option func(*Crawler)

// WithHTTPClient replaces the default HTTP client, mainly for tests.
func WithHTTPClient(client fetch.Doer) Option {
	return func(c *Crawler) {
		c.fetcher = fetch.NewFetcher(client, c.cfg.Crawler.UserAgent,
			time.Duration(c.cfg.Crawler.Timeout)*time.Second)
	}
}

// WithRenderer replaces the headless-browser adapter.
func WithRenderer(r Renderer) Option {
	return func(c *Crawler) { c.renderer = r }
}

// New builds a Crawler from cfg. A nil logger means slog.Default(). The
// template catalogue comes from cfg.TemplatesFile when set, otherwise the
// embedded defaults.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Crawler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		registry *templates.Registry
		err      error
	)
	if cfg.TemplatesFile != "" {
		registry, err = templates.NewRegistryFromFile(cfg.TemplatesFile, cfg.Detection.MinNotices, logger)
	} else {
		registry, err = templates.NewRegistry(cfg.Detection.MinNotices, logger)
	}
	if err != nil {
		return nil, err
	}

	detector, err := pattern.NewDetector(
		cfg.Patterns.DatePatterns,
		cfg.Patterns.NoticeKeywords,
		cfg.Detection.MinNotices,
		cfg.Detection.SimilarityThreshold,
		logger,
	)
	if err != nil {
		return nil, err
	}

	c := &Crawler{
		cfg:      cfg,
		log:      logger,
		fetcher:  fetch.NewFetcher(nil, cfg.Crawler.UserAgent, time.Duration(cfg.Crawler.Timeout)*time.Second),
		registry: registry,
		detector: detector,
		stats: map[string]int{
			string(MethodTemplate):   0,
			string(MethodAutoDetect): 0,
			string(MethodCustom):     0,
			string(MethodBrowser):    0,
			"failed":                 0,
		},
	}
	if cfg.Fallback.UseSelenium {
		c.renderer = fetch.NewRenderer(cfg.Selenium.ChromeOptions,
			2*time.Second, time.Duration(cfg.SeleniumTimeout)*time.Second)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Extract crawls one board page. It never returns an error; every fault is
// folded into CrawlResult. A failed initial fetch does not abort the crawl,
// the browser fallback still gets its turn.
func (c *Crawler) Extract(ctx context.Context, pageURL, siteName string) CrawlResult {
	log := c.log.With("site", siteName, "url", pageURL)
	log.Info("crawl started")

	var (
		doc     *goquery.Document
		rawHTML string
	)
	if body, err := c.fetcher.Get(ctx, pageURL); err != nil {
		log.Warn("page fetch failed", "error", err)
	} else if d, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err != nil {
		log.Warn("page parse failed", "error", err)
	} else {
		doc, rawHTML = d, body
	}

	if doc != nil {
		if tpl, kind, ok := c.registry.Match(doc, rawHTML, pageURL); ok {
			if notices := c.collect(doc, tpl.Selectors, pageURL); len(notices) >= c.cfg.Detection.MinNotices {
				log.Info("template matched", "template", tpl.Name, "kind", kind, "notices", len(notices))
				return c.succeed(MethodTemplate, notices)
			}
		}

		if res := c.detector.Detect(doc); res.Confidence >= c.cfg.Detection.MinConfidence {
			if notices := c.collect(doc, res.Selectors, pageURL); len(notices) >= c.cfg.Detection.MinNotices {
				log.Info("pattern detection succeeded", "confidence", res.Confidence, "notices", len(notices))
				return c.succeed(MethodAutoDetect, notices)
			}
		}

		for _, set := range commonPatterns() {
			if notices := c.collect(doc, set, pageURL); len(notices) >= c.cfg.Detection.MinNotices {
				log.Info("common pattern succeeded", "item", set.Item, "notices", len(notices))
				return c.succeed(MethodCustom, notices)
			}
		}
	}

	if c.renderer != nil {
		if notices, ok := c.renderedFallback(ctx, pageURL, log); ok {
			log.Info("browser fallback succeeded", "notices", len(notices))
			return c.succeed(MethodBrowser, notices)
		}
	}

	log.Warn("all crawl methods failed")
	c.mu.Lock()
	c.stats["failed"]++
	c.mu.Unlock()
	return CrawlResult{Success: false, Notices: []Notice{}, Error: failAllMethods, Timestamp: time.Now()}
}

// renderedFallback fetches the browser-rendered DOM and re-runs pattern
// detection against it at the relaxed threshold. The configured fallback
// selectors are probed for diagnostics only; detection decides.
func (c *Crawler) renderedFallback(ctx context.Context, pageURL string, log *slog.Logger) ([]Notice, bool) {
	body, err := c.renderer.Render(ctx, pageURL)
	if err != nil {
		log.Warn("browser render failed", "error", err)
		return nil, false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		log.Warn("rendered DOM parse failed", "error", err)
		return nil, false
	}

	for _, sel := range c.cfg.Fallback.SeleniumSelectors {
		if n := doc.Find(sel).Length(); n >= c.cfg.Detection.MinNotices {
			log.Debug("rendered DOM selector hit", "selector", sel, "count", n)
			break
		}
	}

	res := c.detector.Detect(doc)
	if res.Confidence < renderedConfidence {
		return nil, false
	}
	notices := c.collect(doc, res.Selectors, pageURL)
	if len(notices) < c.cfg.Detection.MinNotices {
		return nil, false
	}
	return notices, true
}

// collect executes a selector set and applies row validation: title length
// bounds after cleanup, calendar-valid dates, absolute links, exact-title
// dedup, output cap. DOM order is preserved.
func (c *Crawler) collect(doc *goquery.Document, set selectors.Set, baseURL string) []Notice {
	rows := selectors.Collect(doc, set)
	seen := make(map[string]struct{}, len(rows))
	var notices []Notice

	for _, row := range rows {
		titleLen := utf8.RuneCountInString(row.Title)
		if titleLen < c.cfg.Detection.MinTitleLength || titleLen > c.cfg.Detection.MaxTitleLength {
			continue
		}
		if _, dup := seen[row.Title]; dup {
			continue
		}
		seen[row.Title] = struct{}{}

		n := Notice{Title: row.Title}
		if row.DateText != "" {
			if d, ok := textutil.ParseDate(row.DateText); ok {
				n.Date = &d
			}
		}
		if row.Href != "" {
			if abs := textutil.NormalizeURL(row.Href, baseURL); abs != "" && textutil.IsValidURL(abs) {
				n.Link = &abs
			}
		}
		notices = append(notices, n)
		if len(notices) >= c.cfg.Validation.MaxNoticesPerUniversity {
			break
		}
	}
	return notices
}

func (c *Crawler) succeed(method Method, notices []Notice) CrawlResult {
	c.mu.Lock()
	c.stats[string(method)]++
	c.mu.Unlock()
	return CrawlResult{Success: true, Notices: notices, Method: method, Timestamp: time.Now()}
}

// Stats returns a copy of the per-method success counters plus "failed".
func (c *Crawler) Stats() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.stats))
	for k, v := range c.stats {
		out[k] = v
	}
	return out
}

// commonPatterns is the cascade's third step: a fixed list of selector sets
// seen across many hand-built boards, tried when both the catalogue and
// detection come up short.
func commonPatterns() []selectors.Set {
	return []selectors.Set{
		{
			Item:  "tbody tr",
			Title: "td:nth-child(2) a, td:nth-child(3) a",
			Date:  "td:last-child, td:nth-last-child(2)",
			Link:  "a",
		},
		{
			Item:  "ul.board-list li, .notice-list li",
			Title: ".title, .subject",
			Date:  ".date, .regdate",
			Link:  "a",
		},
		{
			Item:  ".board-item, .notice-item",
			Title: ".title a, .subject a",
			Date:  ".date, .time",
			Link:  "a",
		},
	}
}
