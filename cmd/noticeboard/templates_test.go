package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const suggestableBoard = `<html><body>
<table id="noticeTbl"><tbody>
<tr><th>번호</th><th>제목</th><th>날짜</th></tr>
<tr><td>5</td><td><a href="/v/5">편입학 모집요강 발표 안내</a></td><td>2024-05-01</td></tr>
<tr><td>4</td><td><a href="/v/4">교환학생 설명회 개최 공지</a></td><td>2024-05-02</td></tr>
<tr><td>3</td><td><a href="/v/3">국가장학금 2차 신청 안내</a></td><td>2024-05-03</td></tr>
<tr><td>2</td><td><a href="/v/2">하계 집중강의 수강신청 공지</a></td><td>2024-05-04</td></tr>
<tr><td>1</td><td><a href="/v/1">도서관 운영시간 변경 안내</a></td><td>2024-05-05</td></tr>
</tbody></table>
</body></html>`

func TestTemplatesSuggestCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(suggestableBoard))
	}))
	t.Cleanup(srv.Close)

	cmd := newTemplatesSuggestCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{srv.URL})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "#noticeTbl tbody tr")
	assert.Contains(t, out.String(), `"confidence": 0.8`)
}

func TestTemplatesSuggestCommandNoStructure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><body><p>본문만 있는 페이지</p></body></html>`))
	}))
	t.Cleanup(srv.Close)

	cmd := newTemplatesSuggestCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{srv.URL})

	assert.Error(t, cmd.Execute())
}
