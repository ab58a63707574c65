// Package textutil holds the shared text, date and URL normalization helpers
// used by the extraction pipeline.
package textutil

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	// Entity replacement covers the handful of entities that survive into
	// extracted board text. Anything more exotic is left as-is.
	entityReplacer = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
	)
)

// CleanText decodes common HTML entities, collapses runs of whitespace into a
// single space and trims the result.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = entityReplacer.Replace(text)
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Date grammars accepted by ParseDate, tried in order. The two-digit year
// form assumes the 2000s; the month-day forms assume the current year.
var dateGrammars = []struct {
	re    *regexp.Regexp
	build func(m []string, now time.Time) string
}{
	{
		regexp.MustCompile(`(\d{4})[-./](\d{1,2})[-./](\d{1,2})`),
		func(m []string, _ time.Time) string { return pad(m[1], m[2], m[3]) },
	},
	{
		regexp.MustCompile(`(\d{2})[-./](\d{1,2})[-./](\d{1,2})`),
		func(m []string, _ time.Time) string { return pad("20"+m[1], m[2], m[3]) },
	},
	{
		regexp.MustCompile(`(\d{4})년\s*(\d{1,2})월\s*(\d{1,2})일`),
		func(m []string, _ time.Time) string { return pad(m[1], m[2], m[3]) },
	},
	{
		regexp.MustCompile(`^(\d{1,2})[-./](\d{1,2})$`),
		func(m []string, now time.Time) string { return pad(strconv.Itoa(now.Year()), m[1], m[2]) },
	},
	{
		regexp.MustCompile(`(\d{1,2})월\s*(\d{1,2})일`),
		func(m []string, now time.Time) string { return pad(strconv.Itoa(now.Year()), m[1], m[2]) },
	},
}

func pad(y, m, d string) string {
	mi, _ := strconv.Atoi(m)
	di, _ := strconv.Atoi(d)
	return fmt.Sprintf("%s-%02d-%02d", y, mi, di)
}

// ParseDate normalizes a date string into zero-padded YYYY-MM-DD. The result
// must round-trip through the calendar; impossible dates yield ok=false.
func ParseDate(s string) (string, bool) {
	s = CleanText(s)
	if s == "" {
		return "", false
	}
	now := time.Now()
	for _, g := range dateGrammars {
		m := g.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		formatted := g.build(m, now)
		if _, err := time.Parse("2006-01-02", formatted); err != nil {
			continue
		}
		return formatted, true
	}
	return "", false
}

// IsValidDate reports whether s is a zero-padded, calendar-valid YYYY-MM-DD.
func IsValidDate(s string) bool {
	t, err := time.Parse("2006-01-02", s)
	return err == nil && t.Format("2006-01-02") == s
}

// NormalizeURL resolves raw against base. Absolute http(s) URLs pass through
// untouched; relative references are resolved; anything unresolvable returns
// an empty string.
func NormalizeURL(raw, base string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	if base == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(ref).String()
}

// IsValidURL reports whether s is an absolute URL with an http(s) scheme.
func IsValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Domain extracts the lowercased hostname from a URL, or "" on failure.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Similarity is a word-set Jaccard score in [0,1] between two texts.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	wordsA := toSet(strings.Fields(strings.ToLower(a)))
	wordsB := toSet(strings.Fields(strings.ToLower(b)))
	if len(wordsA) == 0 && len(wordsB) == 0 {
		return 1
	}
	inter := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			inter++
		}
	}
	union := len(wordsA) + len(wordsB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
