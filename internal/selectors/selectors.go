// Package selectors defines the selector quadruple shared by the template
// registry, the pattern detector and the extraction engine, along with the
// raw row collection that executes a quadruple against a parsed document.
package selectors

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/daehakro/noticeboard/internal/textutil"
)

// Set is a group of DOM-query expressions describing one board layout.
// Container may be empty, meaning the document root.
type Set struct {
	Container string `json:"container,omitempty"`
	Item      string `json:"list"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	Link      string `json:"link"`
}

// IsZero reports whether the set carries no usable item selector.
func (s Set) IsZero() bool {
	return s.Item == ""
}

// Row is one board row as found in the DOM, before validation. Title is
// whitespace- and entity-normalized; DateText and Href are raw.
type Row struct {
	Title    string
	DateText string
	Href     string
}

// Items resolves the set's item elements within its container (or the whole
// document when the container selector is empty or matches nothing).
func Items(doc *goquery.Document, set Set) *goquery.Selection {
	if set.Container != "" {
		if container := doc.Find(set.Container).First(); container.Length() > 0 {
			return container.Find(set.Item)
		}
		return doc.Find(set.Item).Slice(0, 0)
	}
	return doc.Find(set.Item)
}

// Collect executes the set against doc and returns one Row per item element,
// in DOM order. Rows with no title text are still returned; validation is the
// caller's concern.
func Collect(doc *goquery.Document, set Set) []Row {
	var rows []Row
	Items(doc, set).Each(func(_ int, item *goquery.Selection) {
		row := Row{}

		titleElem := item.Find(set.Title).First()
		if titleElem.Length() > 0 {
			row.Title = textutil.CleanText(titleElem.Text())
		}

		if set.Date != "" {
			if dateElem := item.Find(set.Date).First(); dateElem.Length() > 0 {
				row.DateText = textutil.CleanText(dateElem.Text())
			}
		}

		row.Href = findHref(item, titleElem, set.Link)
		rows = append(rows, row)
	})
	return rows
}

// findHref resolves the row link: the link selector's own href, an anchor
// inside it, an anchor inside the title element, or any anchor in the item.
func findHref(item, titleElem *goquery.Selection, linkSel string) string {
	if linkSel != "" {
		if elem := item.Find(linkSel).First(); elem.Length() > 0 {
			if href, ok := elem.Attr("href"); ok && href != "" {
				return href
			}
			if href, ok := elem.Find("a").First().Attr("href"); ok && href != "" {
				return href
			}
		}
	}
	if titleElem != nil && titleElem.Length() > 0 {
		if href, ok := titleElem.Attr("href"); ok && href != "" {
			return href
		}
		if href, ok := titleElem.Find("a").First().Attr("href"); ok && href != "" {
			return href
		}
	}
	if href, ok := item.Find("a").First().Attr("href"); ok {
		return href
	}
	return ""
}
