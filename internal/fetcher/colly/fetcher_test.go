package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/realtime-news-scraper/internal/scraper"
)

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Timeout: -time.Second})
	require.Error(t, err)
	_, err = New(Config{MaxIdleConns: -1})
	require.Error(t, err)
	_, err = New(Config{MaxBodyBytes: -1})
	require.Error(t, err)

	f, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, scraper.DefaultFetchTimeout, f.cfg.Timeout)
	assert.Equal(t, defaultMaxIdleConns, f.cfg.MaxIdleConns)
	assert.Equal(t, defaultMaxBodyBytes, f.cfg.MaxBodyBytes)
}

func TestFetchReturnsDocument(t *testing.T) {
	t.Parallel()

	gotUA := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA <- r.UserAgent()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>A</title></head><body><p>Market up</p></body></html>`))
	}))
	defer srv.Close()

	f, err := New(Config{UserAgent: "news-scraper-test"})
	require.NoError(t, err)

	page, err := f.Fetch(context.Background(), srv.URL+"/news")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/news", page.URL)
	assert.Equal(t, srv.URL+"/news", page.FinalURL)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, string(page.Body), "<p>Market up</p>")
	assert.Equal(t, "news-scraper-test", <-gotUA)
}

func TestFetchRevisitsSameURL(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`<p>again</p>`))
	}))
	defer srv.Close()

	f, err := New(Config{})
	require.NoError(t, err)
	for range 3 {
		_, err := f.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetchKeepsErrorPages(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`<title>Not Found</title><p>Gone</p>`))
	}))
	defer srv.Close()

	f, err := New(Config{})
	require.NoError(t, err)

	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, page.StatusCode)
	assert.Contains(t, string(page.Body), "Gone")
}

func TestFetchFollowsRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<p>moved</p>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f, err := New(Config{})
	require.NoError(t, err)

	page, err := f.Fetch(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/old", page.URL)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, string(page.Body), "moved")
}

func TestFetchHonoursContextDeadline(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f, err := New(Config{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = f.Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchRejectsInvalidURLs(t *testing.T) {
	t.Parallel()

	f, err := New(Config{})
	require.NoError(t, err)

	for _, raw := range []string{"", "not a url", "ftp://a.test/file", "mailto:x@a.test", "http://", "http://[::1"} {
		_, err := f.Fetch(context.Background(), raw)
		assert.ErrorIs(t, err, scraper.ErrInvalidURL, raw)
	}
}

func TestFetchConnectionRefused(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	f, err := New(Config{})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), addr)
	require.Error(t, err)
	assert.NotErrorIs(t, err, scraper.ErrInvalidURL)
}

func TestFetchDecodesUndeclaredCharset(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><head><meta charset=\"windows-1252\"></head><body><p>caf\xe9</p></body></html>"))
	}))
	defer srv.Close()

	f, err := New(Config{})
	require.NoError(t, err)

	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	text, _ := scraper.Extract(page.Body)
	assert.Equal(t, "café", text)
}

func TestFetchReportsDecodeFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<p>\xff\xfe broken</p>"))
	}))
	defer srv.Close()

	f, err := New(Config{})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, scraper.ErrDecode)
}

func TestDecodeBody(t *testing.T) {
	t.Parallel()

	body, err := decodeBody([]byte("<p>plain</p>"), "text/html")
	require.NoError(t, err)
	assert.Equal(t, "<p>plain</p>", string(body))

	body, err = decodeBody([]byte("<p>na\xefve</p>"), "text/html; charset=iso-8859-1")
	require.NoError(t, err)
	assert.Equal(t, "<p>naïve</p>", string(body))

	_, err = decodeBody([]byte("\xc3\x28"), "text/html; charset=utf-8")
	assert.ErrorIs(t, err, scraper.ErrDecode)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	var (
		page     scraper.Page
		fetchErr error
	)
	hooks := &stubHooks{}
	configureCollectorHooks(hooks, &page, &fetchErr)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Body:       []byte("body"),
		Headers:    &http.Header{"Content-Type": {"text/html"}},
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com/final")},
	})
	assert.Equal(t, http.StatusCreated, page.StatusCode)
	assert.Equal(t, "body", string(page.Body))
	assert.Equal(t, "text/html", page.ContentType)
	assert.Equal(t, "https://example.com/final", page.FinalURL)

	hooks.onError(nil, errors.New("boom"))
	require.EqualError(t, fetchErr, "boom")
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
