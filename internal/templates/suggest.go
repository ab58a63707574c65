package templates

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/daehakro/noticeboard/internal/selectors"
)

// Suggestion is a proposed template for a board the catalogue does not cover
// yet, derived from the page structure alone.
type Suggestion struct {
	Selectors  selectors.Set
	Confidence float64
}

// Suggest inspects tables and list elements with at least five rows and
// proposes the most plausible selector set, or ok=false when the page has no
// recognizable board structure.
func Suggest(doc *goquery.Document) (Suggestion, bool) {
	var best Suggestion

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tbody tr")
		if rows.Length() == 0 {
			rows = table.Find("tr")
		}
		if rows.Length() < 5 {
			return
		}
		if s, ok := suggestFromTable(table, rows); ok && s.Confidence > best.Confidence {
			best = s
		}
	})

	doc.Find("ul, ol, .list, .board").Each(func(_ int, list *goquery.Selection) {
		items := list.Find("li, .item, .row")
		if items.Length() < 5 {
			return
		}
		if s, ok := suggestFromList(list); ok && s.Confidence > best.Confidence {
			best = s
		}
	})

	return best, best.Confidence > 0
}

func suggestFromTable(table, rows *goquery.Selection) (Suggestion, bool) {
	// Skip a header row when present.
	dataRows := rows
	if rows.First().Find("th").Length() > 0 {
		dataRows = rows.Slice(1, rows.Length())
	}
	if dataRows.Length() < 3 {
		return Suggestion{}, false
	}

	cells := dataRows.First().Find("td")
	if cells.Length() < 2 {
		return Suggestion{}, false
	}

	// The title column is usually the one with the longest text.
	titleCol := 0
	maxLen := 0
	cells.Each(func(i int, cell *goquery.Selection) {
		if l := utf8.RuneCountInString(strings.TrimSpace(cell.Text())); l > maxLen {
			maxLen = l
			titleCol = i
		}
	})
	dateCol := cells.Length() - 1

	return Suggestion{
		Selectors: selectors.Set{
			Item:  elementSelector(table) + " tbody tr",
			Title: fmt.Sprintf("td:nth-child(%d) a, td:nth-child(%d)", titleCol+1, titleCol+1),
			Date:  fmt.Sprintf("td:nth-child(%d)", dateCol+1),
			Link:  "a",
		},
		Confidence: 0.8,
	}, true
}

func suggestFromList(list *goquery.Selection) (Suggestion, bool) {
	if list.Find("li").First().Find("a").Length() == 0 {
		return Suggestion{}, false
	}
	return Suggestion{
		Selectors: selectors.Set{
			Item:  elementSelector(list) + " li",
			Title: "a, .title, .subject",
			Date:  ".date, .regdate, .time, span:last-child",
			Link:  "a",
		},
		Confidence: 0.7,
	}, true
}

// elementSelector builds a selector for one element: id wins, then
// tag.classes, then the bare tag.
func elementSelector(s *goquery.Selection) string {
	if id, ok := s.Attr("id"); ok && id != "" {
		return "#" + id
	}
	tag := goquery.NodeName(s)
	if class, ok := s.Attr("class"); ok {
		if fields := strings.Fields(class); len(fields) > 0 {
			return tag + "." + strings.Join(fields, ".")
		}
	}
	return tag
}
