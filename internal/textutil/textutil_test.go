package textutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  hello   world  ", "hello world"},
		{"2024년&nbsp;신입생 모집", "2024년 신입생 모집"},
		{"A &amp; B &lt;C&gt; &quot;D&quot;", `A & B <C> "D"`},
		{"줄\n바꿈\t탭", "줄 바꿈 탭"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanText(tt.in), "input %q", tt.in)
	}
}

func TestParseDate(t *testing.T) {
	year := time.Now().Year()
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-03-15", "2024-03-15", true},
		{"2024.3.5", "2024-03-05", true},
		{"2024/12/01", "2024-12-01", true},
		{"24-03-15", "2024-03-15", true},
		{"2024년 3월 15일", "2024-03-15", true},
		{"2024년3월15일", "2024-03-15", true},
		{"03-15", fmt.Sprintf("%d-03-15", year), true},
		{"3.5", fmt.Sprintf("%d-03-05", year), true},
		{"3월 15일", fmt.Sprintf("%d-03-15", year), true},
		{"등록일: 2024-03-15", "2024-03-15", true},
		{"2024-13-40", "", false},
		{"2024-02-30", "", false},
		{"없음", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseDate(tt.in)
		require.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestParseDateRoundTrip(t *testing.T) {
	got, ok := ParseDate("2024.1.9")
	require.True(t, ok)
	assert.True(t, IsValidDate(got))
}

func TestNormalizeURL(t *testing.T) {
	base := "https://www.example.ac.kr/board/notice.do?page=1"
	tests := []struct {
		raw  string
		want string
	}{
		{"https://other.ac.kr/view/1", "https://other.ac.kr/view/1"},
		{"/board/view.do?id=10", "https://www.example.ac.kr/board/view.do?id=10"},
		{"view.do?id=10", "https://www.example.ac.kr/board/view.do?id=10"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeURL(tt.raw, base), "raw %q", tt.raw)
	}
}

func TestIsValidURL(t *testing.T) {
	assert.True(t, IsValidURL("http://example.ac.kr/notice"))
	assert.True(t, IsValidURL("https://example.ac.kr"))
	assert.False(t, IsValidURL("ftp://example.ac.kr"))
	assert.False(t, IsValidURL("/relative/path"))
	assert.False(t, IsValidURL("javascript:void(0)"))
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "www.snu.ac.kr", Domain("https://WWW.SNU.AC.KR/notice?x=1"))
	assert.Equal(t, "", Domain("://bad"))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("신입생 모집 공고", "신입생 모집 공고"))
	assert.Equal(t, 0.0, Similarity("", "무엇이든"))
	got := Similarity("신입생 모집", "신입생 안내")
	assert.InDelta(t, 1.0/3.0, got, 1e-9)
}
