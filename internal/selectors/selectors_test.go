package selectors

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

const tableBoard = `<html><body>
<div id="content">
<table class="board_list"><tbody>
<tr><td>1</td><td><a href="/view?id=1">신입생 모집요강 안내</a></td><td>2024-03-02</td></tr>
<tr><td>2</td><td><a href="/view?id=2">장학금 신청 공지</a></td><td>2024-03-05</td></tr>
<tr><td>3</td><td><a href="/view?id=3">수강신청 일정 안내</a></td><td>2024-03-07</td></tr>
</tbody></table>
</div>
</body></html>`

func TestItemsWithContainer(t *testing.T) {
	doc := parseDoc(t, tableBoard)
	set := Set{Container: "#content", Item: "tbody tr"}
	assert.Equal(t, 3, Items(doc, set).Length())
}

func TestItemsContainerMissing(t *testing.T) {
	doc := parseDoc(t, tableBoard)
	set := Set{Container: "#nothing-here", Item: "tbody tr"}
	assert.Equal(t, 0, Items(doc, set).Length())
}

func TestItemsNoContainer(t *testing.T) {
	doc := parseDoc(t, tableBoard)
	set := Set{Item: "tbody tr"}
	assert.Equal(t, 3, Items(doc, set).Length())
}

func TestCollectRowsInOrder(t *testing.T) {
	doc := parseDoc(t, tableBoard)
	set := Set{
		Item:  "tbody tr",
		Title: "td:nth-child(2) a",
		Date:  "td:last-child",
		Link:  "a",
	}
	rows := Collect(doc, set)
	require.Len(t, rows, 3)

	assert.Equal(t, "신입생 모집요강 안내", rows[0].Title)
	assert.Equal(t, "2024-03-02", rows[0].DateText)
	assert.Equal(t, "/view?id=1", rows[0].Href)
	assert.Equal(t, "장학금 신청 공지", rows[1].Title)
	assert.Equal(t, "수강신청 일정 안내", rows[2].Title)
}

func TestCollectHrefFallsBackToTitleAnchor(t *testing.T) {
	html := `<ul>
<li><span class="subject"><a href="/n/1">첫번째 공지사항입니다</a></span></li>
<li><span class="subject"><a href="/n/2">두번째 공지사항입니다</a></span></li>
</ul>`
	doc := parseDoc(t, html)
	set := Set{Item: "li", Title: ".subject", Link: ".no-such-link"}
	rows := Collect(doc, set)
	require.Len(t, rows, 2)
	assert.Equal(t, "/n/1", rows[0].Href)
	assert.Equal(t, "/n/2", rows[1].Href)
}

func TestIsZero(t *testing.T) {
	assert.True(t, Set{}.IsZero())
	assert.False(t, Set{Item: "tr"}.IsZero())
}
