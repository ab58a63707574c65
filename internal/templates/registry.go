// Package templates manages the catalogue of known board layouts: selector
// sets keyed by site domain or by vendor-platform fingerprint, with a
// built-in generic fallback tier.
package templates

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/weppos/publicsuffix-go/publicsuffix"

	"github.com/daehakro/noticeboard/internal/selectors"
	"github.com/daehakro/noticeboard/internal/textutil"
)

//go:embed templates_data.json
var embeddedFS embed.FS

// MatchKind identifies which tier of the registry produced a match.
type MatchKind string

const (
	KindDomain  MatchKind = "domain"
	KindSystem  MatchKind = "system"
	KindGeneric MatchKind = "generic"
)

// Template is a named, pre-curated selector set. Indicators is only populated
// for vendor-system templates; a system matches when at least half of its
// indicators appear in the lowercased page HTML or URL.
type Template struct {
	Name       string        `json:"name"`
	Indicators []string      `json:"indicators,omitempty"`
	Selectors  selectors.Set `json:"selectors"`
}

type registryFile struct {
	Systems map[string]Template `json:"systems"`
	Domains map[string]Template `json:"domains"`
	Custom  map[string]Template `json:"custom"`
}

// Registry is the process-scoped template catalogue. Reads are lock-free
// outside of reloads; mutation takes the write lock.
type Registry struct {
	mu       sync.RWMutex
	systems  map[string]Template
	domains  map[string]Template
	custom   map[string]Template
	minItems int
	log      *slog.Logger
}

// NewRegistry loads the embedded default catalogue. minItems is the minimum
// item count a candidate template must select to validate (the engine's
// detection.min_notices).
func NewRegistry(minItems int, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := embeddedFS.ReadFile("templates_data.json")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded templates: %w", err)
	}
	r := &Registry{minItems: minItems, log: logger}
	if err := r.loadBytes(data); err != nil {
		return nil, err
	}
	return r, nil
}

// NewRegistryFromFile loads the catalogue from a templates file on disk.
func NewRegistryFromFile(path string, minItems int, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates file: %w", err)
	}
	r := &Registry{minItems: minItems, log: logger}
	if err := r.loadBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse templates file %q: %w", path, err)
	}
	return r, nil
}

func (r *Registry) loadBytes(data []byte) error {
	var f registryFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.systems = f.Systems
	r.domains = f.Domains
	r.custom = f.Custom
	if r.systems == nil {
		r.systems = map[string]Template{}
	}
	if r.domains == nil {
		r.domains = map[string]Template{}
	}
	if r.custom == nil {
		r.custom = map[string]Template{}
	}
	return nil
}

// Match finds a validated template for the page: domain tier first, then
// vendor-system fingerprints, then the built-in generic sets. A candidate is
// returned only after its item selector proves out against the document.
func (r *Registry) Match(doc *goquery.Document, rawHTML, pageURL string) (Template, MatchKind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if tpl, ok := r.matchDomain(pageURL); ok && r.Validate(doc, tpl.Selectors) {
		return tpl, KindDomain, true
	}
	if tpl, ok := r.matchSystem(rawHTML, pageURL); ok && r.Validate(doc, tpl.Selectors) {
		return tpl, KindSystem, true
	}
	for _, set := range GenericSets() {
		if r.Validate(doc, set) {
			return Template{Name: "generic", Selectors: set}, KindGeneric, true
		}
	}
	return Template{}, "", false
}

func (r *Registry) matchDomain(pageURL string) (Template, bool) {
	host := textutil.Domain(pageURL)
	if host == "" {
		return Template{}, false
	}
	if tpl, ok := r.domains[host]; ok {
		return tpl, true
	}
	// Suffix match: www.snu.ac.kr belongs to the snu.ac.kr template.
	for domain, tpl := range r.domains {
		if strings.HasSuffix(host, "."+domain) {
			return tpl, true
		}
	}
	// Registrable-domain comparison: a catalogue key that is itself a
	// subdomain (admission.korea.ac.kr) still matches sibling hosts under
	// the same registered name, which plain suffix matching cannot reach.
	hostReg, err := publicsuffix.Domain(host)
	if err != nil {
		return Template{}, false
	}
	for domain, tpl := range r.domains {
		if keyReg, err := publicsuffix.Domain(domain); err == nil && keyReg == hostReg {
			return tpl, true
		}
	}
	return Template{}, false
}

func (r *Registry) matchSystem(rawHTML, pageURL string) (Template, bool) {
	htmlLower := strings.ToLower(rawHTML)
	urlLower := strings.ToLower(pageURL)

	for id, tpl := range r.systems {
		if len(tpl.Indicators) == 0 {
			continue
		}
		hits := 0
		for _, indicator := range tpl.Indicators {
			needle := strings.ToLower(indicator)
			if strings.Contains(htmlLower, needle) || strings.Contains(urlLower, needle) {
				hits++
			}
		}
		if float64(hits) >= float64(len(tpl.Indicators))*0.5 {
			r.log.Debug("system fingerprint matched", "system", id, "hits", hits)
			return tpl, true
		}
	}
	return Template{}, false
}

// Validate runs the set's item selector against doc and requires at least
// three items, of which at least half of the first five carry a >5-char
// title or a link href.
func (r *Registry) Validate(doc *goquery.Document, set selectors.Set) bool {
	if set.IsZero() {
		return false
	}
	items := selectors.Items(doc, set)
	if items.Length() < 3 {
		return false
	}

	sample := items.Length()
	if sample > 5 {
		sample = 5
	}
	valid := 0
	items.Slice(0, sample).Each(func(_ int, item *goquery.Selection) {
		if set.Title != "" {
			titleElem := item.Find(set.Title).First()
			if titleElem.Length() > 0 && utf8.RuneCountInString(textutil.CleanText(titleElem.Text())) > 5 {
				valid++
				return
			}
		}
		linkSel := set.Link
		if linkSel == "" {
			linkSel = "a"
		}
		if href, ok := item.Find(linkSel).First().Attr("href"); ok && href != "" {
			valid++
		}
	})
	return float64(valid) >= float64(sample)*0.5
}

// AddCustom appends a site-specific template under the write lock.
// Persistence is a separate, explicit SaveFile call.
func (r *Registry) AddCustom(name string, set selectors.Set) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom[name] = Template{Name: name, Selectors: set}
	r.log.Info("custom template added", "name", name)
}

// SaveFile writes the full catalogue to path as JSON.
func (r *Registry) SaveFile(path string) error {
	r.mu.RLock()
	f := registryFile{Systems: r.systems, Domains: r.domains, Custom: r.custom}
	data, err := json.MarshalIndent(f, "", "  ")
	r.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode templates: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create templates dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write templates file: %w", err)
	}
	return nil
}

// LoadFile replaces the catalogue with the contents of path.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read templates file: %w", err)
	}
	if err := r.loadBytes(data); err != nil {
		return fmt.Errorf("failed to parse templates file %q: %w", path, err)
	}
	return nil
}

// Stats returns the catalogue sizes per tier.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string]int{
		"system_templates": len(r.systems),
		"domain_templates": len(r.domains),
		"custom_templates": len(r.custom),
		"total":            len(r.systems) + len(r.domains) + len(r.custom),
	}
}

// GenericSets is the built-in fallback tier: table boards, ul/li boards and
// div-row boards, tried in that order.
func GenericSets() []selectors.Set {
	return []selectors.Set{
		{
			Item:  "table tbody tr, .board-table tr",
			Title: "td:nth-child(2) a, td.title a, td.subject a",
			Date:  "td:last-child, td.date, td:nth-last-child(2)",
			Link:  "a",
		},
		{
			Item:  "ul.board-list li, .notice-list li, .list-group-item",
			Title: ".title a, .subject a, a",
			Date:  ".date, .regdate, .time",
			Link:  "a",
		},
		{
			Item:  ".board-item, .notice-item, .item, .row",
			Title: ".title a, .subject a, h3 a, h4 a",
			Date:  ".date, .regdate, .time, span:last-child",
			Link:  "a",
		},
	}
}
