package templates

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daehakro/noticeboard/internal/selectors"
)

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

const snuBoard = `<html><body>
<table><tbody>
<tr><td>1</td><td><a href="/notice/1">2024학년도 신입생 모집요강</a></td><td>2024-03-02</td></tr>
<tr><td>2</td><td><a href="/notice/2">대학원 입학전형 일정 안내</a></td><td>2024-03-05</td></tr>
<tr><td>3</td><td><a href="/notice/3">교내 장학금 신청 공지</a></td><td>2024-03-07</td></tr>
<tr><td>4</td><td><a href="/notice/4">수강신청 변경 기간 안내</a></td><td>2024-03-09</td></tr>
</tbody></table>
</body></html>`

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(3, nil)
	require.NoError(t, err)
	return r
}

func TestMatchDomainExact(t *testing.T) {
	r := newTestRegistry(t)
	doc := parseDoc(t, snuBoard)

	tpl, kind, ok := r.Match(doc, snuBoard, "https://snu.ac.kr/notice/list.do")
	require.True(t, ok)
	assert.Equal(t, KindDomain, kind)
	assert.Equal(t, "서울대학교", tpl.Name)
}

func TestMatchDomainSubdomain(t *testing.T) {
	r := newTestRegistry(t)
	doc := parseDoc(t, snuBoard)

	_, kind, ok := r.Match(doc, snuBoard, "https://admission.snu.ac.kr/board")
	require.True(t, ok)
	assert.Equal(t, KindDomain, kind)
}

func TestMatchDomainRegistrable(t *testing.T) {
	// The catalogue key is itself a subdomain; a sibling host under the same
	// registered name matches neither exactly nor by suffix, only by
	// registrable-domain comparison.
	r := newTestRegistry(t)
	catalogue := `{"systems":{},"domains":{"admission.korea.ac.kr":{"name":"고려대학교 입학처",` +
		`"selectors":{"list":"tbody tr","title":"td:nth-child(2) a","date":"td:last-child","link":"a"}}},"custom":{}}`
	require.NoError(t, r.loadBytes([]byte(catalogue)))
	doc := parseDoc(t, snuBoard)

	tpl, kind, ok := r.Match(doc, snuBoard, "https://www.korea.ac.kr/board/list.do")
	require.True(t, ok)
	assert.Equal(t, KindDomain, kind)
	assert.Equal(t, "고려대학교 입학처", tpl.Name)

	// A host under a different registered name must not borrow the template.
	_, kind, ok = r.Match(doc, snuBoard, "https://www.yonsei.ac.kr/board/list.do")
	if ok {
		assert.NotEqual(t, KindDomain, kind)
	}
}

func TestMatchSystemIndicators(t *testing.T) {
	html := `<html><body>
<!-- powered by acapia.co.kr -->
<table class="board_list"><tbody>
<tr><td class="title"><a href="/v/1">입학설명회 개최 안내</a></td><td class="date">2024-04-01</td></tr>
<tr><td class="title"><a href="/v/2">원서접수 기간 연장 공지</a></td><td class="date">2024-04-02</td></tr>
<tr><td class="title"><a href="/v/3">합격자 발표 일정 안내</a></td><td class="date">2024-04-03</td></tr>
</tbody></table>
</body></html>`
	r := newTestRegistry(t)
	doc := parseDoc(t, html)

	tpl, kind, ok := r.Match(doc, html, "https://unknown-university.example.com/board")
	require.True(t, ok)
	assert.Equal(t, KindSystem, kind)
	assert.Equal(t, "acapia", tpl.Name)
}

func TestMatchFallsBackToGeneric(t *testing.T) {
	html := `<html><body>
<table><tbody>
<tr><td>1</td><td><a href="/b/1">동계 계절학기 수강신청 안내</a></td><td>2024-12-01</td></tr>
<tr><td>2</td><td><a href="/b/2">기숙사 입사 신청 공지</a></td><td>2024-12-02</td></tr>
<tr><td>3</td><td><a href="/b/3">졸업사정 결과 발표</a></td><td>2024-12-03</td></tr>
</tbody></table>
</body></html>`
	r := newTestRegistry(t)
	doc := parseDoc(t, html)

	tpl, kind, ok := r.Match(doc, html, "https://nobody-knows-this.example.org/")
	require.True(t, ok)
	assert.Equal(t, KindGeneric, kind)
	assert.Equal(t, "generic", tpl.Name)
}

func TestMatchRejectsSparsePage(t *testing.T) {
	html := `<html><body><p>점검 중입니다.</p></body></html>`
	r := newTestRegistry(t)
	doc := parseDoc(t, html)

	_, _, ok := r.Match(doc, html, "https://snu.ac.kr/notice")
	assert.False(t, ok, "a template must not match a page its selectors cannot prove out on")
}

func TestValidateRequiresThreeItems(t *testing.T) {
	html := `<table><tbody>
<tr><td><a href="/1">첫번째 공지사항 제목</a></td></tr>
<tr><td><a href="/2">두번째 공지사항 제목</a></td></tr>
</tbody></table>`
	r := newTestRegistry(t)
	doc := parseDoc(t, html)

	set := selectors.Set{Item: "tbody tr", Title: "a", Link: "a"}
	assert.False(t, r.Validate(doc, set))
}

func TestAddCustomAndSaveLoadRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	set := selectors.Set{Item: ".custom-board li", Title: ".tit", Date: ".dt", Link: "a"}
	r.AddCustom("한밭대학교", set)

	path := filepath.Join(t.TempDir(), "templates.json")
	require.NoError(t, r.SaveFile(path))

	loaded, err := NewRegistryFromFile(path, 3, nil)
	require.NoError(t, err)
	stats := loaded.Stats()
	assert.Equal(t, 1, stats["custom_templates"])
	assert.Equal(t, r.Stats()["total"], stats["total"])
}

func TestGenericSetsExactOrder(t *testing.T) {
	sets := GenericSets()
	require.Len(t, sets, 3)
	assert.Equal(t, "table tbody tr, .board-table tr", sets[0].Item)
	assert.Equal(t, "ul.board-list li, .notice-list li, .list-group-item", sets[1].Item)
	assert.Equal(t, ".board-item, .notice-item, .item, .row", sets[2].Item)
}

func TestEmbeddedCatalogueLints(t *testing.T) {
	data, err := embeddedFS.ReadFile("templates_data.json")
	require.NoError(t, err)
	assert.NoError(t, Lint(data))
}

func TestLintRejectsBareTagSelector(t *testing.T) {
	bad := `{"systems":{},"domains":{"x.ac.kr":{"name":"x","selectors":{"list":"tr","title":"a","date":".d","link":"a"}}},"custom":{}}`
	assert.Error(t, Lint([]byte(bad)))
}

func TestLintRejectsEmptyItemSelector(t *testing.T) {
	bad := `{"systems":{},"domains":{"x.ac.kr":{"name":"x","selectors":{"list":"","title":"a","date":".d","link":"a"}}},"custom":{}}`
	assert.Error(t, Lint([]byte(bad)))
}

func TestSuggestTableBoard(t *testing.T) {
	html := `<html><body>
<table id="boardTable"><tbody>
<tr><th>번호</th><th>제목</th><th>날짜</th></tr>
<tr><td>5</td><td><a href="/v/5">2024학년도 편입학 모집요강 안내</a></td><td>2024-05-01</td></tr>
<tr><td>4</td><td><a href="/v/4">교환학생 프로그램 설명회 개최</a></td><td>2024-05-02</td></tr>
<tr><td>3</td><td><a href="/v/3">국가장학금 2차 신청 공지</a></td><td>2024-05-03</td></tr>
<tr><td>2</td><td><a href="/v/2">하계 집중강의 수강신청 안내</a></td><td>2024-05-04</td></tr>
<tr><td>1</td><td><a href="/v/1">도서관 운영시간 변경 공지</a></td><td>2024-05-05</td></tr>
</tbody></table>
</body></html>`
	doc := parseDoc(t, html)

	s, ok := Suggest(doc)
	require.True(t, ok)
	assert.Equal(t, 0.8, s.Confidence)
	assert.Equal(t, "#boardTable tbody tr", s.Selectors.Item)
	assert.Contains(t, s.Selectors.Title, "td:nth-child(2)")
	assert.Equal(t, "td:nth-child(3)", s.Selectors.Date)
}

func TestSuggestNothingOnPlainPage(t *testing.T) {
	doc := parseDoc(t, `<html><body><p>본문만 있는 페이지</p></body></html>`)
	_, ok := Suggest(doc)
	assert.False(t, ok)
}
