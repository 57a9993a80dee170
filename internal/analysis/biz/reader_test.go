package biz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/lk2023060901/competitor-scout-backend/internal/pkg/logger"
	wstypes "github.com/lk2023060901/competitor-scout-backend/internal/websearch/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPage = `<!DOCTYPE html>
<html>
<head><title>Competitor Overview</title></head>
<body>
<article>
<h1>Competitor Overview</h1>
<p>TutorBot is an adaptive learning platform that offers personalized lessons,
automated grading and detailed progress tracking for students of all ages.
It has been adopted by hundreds of schools across the country and continues
to add new subject areas every semester.</p>
</article>
</body>
</html>`

func testReader(maxChars int) *PageReader {
	return NewPageReader(ReaderConfig{
		Concurrency:  2,
		FetchTimeout: 2 * time.Second,
		MaxPageBytes: 1 << 20,
		MaxPageChars: maxChars,
	}, logger.Nop())
}

func TestPageReader_ReadAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(testPage))
	}))
	defer srv.Close()

	outcomes := []queryOutcome{
		{
			Query: "q1",
			Results: []*wstypes.SearchResult{
				{URL: srv.URL + "/page"},
				{URL: srv.URL + "/page"}, // duplicate, fetched once
			},
		},
		{
			Query: "q2",
			Results: []*wstypes.SearchResult{
				{URL: "http://127.0.0.1:1/unreachable"},
			},
		},
	}

	pages := testReader(4000).ReadAll(context.Background(), outcomes)
	require.Len(t, pages, 2)

	ok := pages[srv.URL+"/page"]
	require.NotNil(t, ok)
	assert.Empty(t, ok.FetchErr)
	assert.Contains(t, ok.Text, "adaptive learning platform")

	failed := pages["http://127.0.0.1:1/unreachable"]
	require.NotNil(t, failed)
	assert.NotEmpty(t, failed.FetchErr)
	assert.Empty(t, failed.Text)
}

func TestPageReader_TruncatesLongPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(testPage))
	}))
	defer srv.Close()

	outcomes := []queryOutcome{
		{Query: "q", Results: []*wstypes.SearchResult{{URL: srv.URL}}},
	}

	pages := testReader(50).ReadAll(context.Background(), outcomes)
	require.Len(t, pages, 1)
	page := pages[srv.URL]
	assert.Empty(t, page.FetchErr)
	assert.LessOrEqual(t, len(page.Text), 50)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "hello", truncateRunes("hello", 10))
	assert.Equal(t, "hello", truncateRunes("hello world", 5))

	// multi-byte runes are never split mid-sequence
	got := truncateRunes("héllo wörld 世界", 13)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "héllo wörld 世", got)
	assert.Len(t, []rune(got), 13)
}

func TestPageReader_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	outcomes := []queryOutcome{
		{Query: "q", Results: []*wstypes.SearchResult{{URL: srv.URL}}},
	}

	pages := testReader(4000).ReadAll(context.Background(), outcomes)
	require.Len(t, pages, 1)
	assert.NotEmpty(t, pages[srv.URL].FetchErr)
}
