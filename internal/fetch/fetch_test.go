package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

func TestGetSendsHeaders(t *testing.T) {
	var gotUA, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := NewFetcher(nil, "test-agent/1.0", 5*time.Second)
	body, err := f.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, body, "ok")
	assert.Equal(t, "test-agent/1.0", gotUA)
	assert.Contains(t, gotLang, "ko-KR")
}

func TestGetNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(nil, "", 5*time.Second)
	_, err := f.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestGetDecodesEUCKR(t *testing.T) {
	const page = `<html><body><table><tr><td>신입생 모집 공고</td></tr></table></body></html>`
	encoded, _, err := transform.String(korean.EUCKR.NewEncoder(), page)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=euc-kr")
		w.Write([]byte(encoded))
	}))
	defer srv.Close()

	f := NewFetcher(nil, "", 5*time.Second)
	body, err := f.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, body, "신입생 모집 공고")
}

func TestGetHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := NewFetcher(nil, "", 10*time.Second)
	_, err := f.Get(ctx, srv.URL)
	assert.Error(t, err)
}
