package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrapeAndExtractOneResultPerURL(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.pages["https://a.test/news"] = `<html><head><title>A</title></head><body><p>Market up</p></body></html>`
	fetcher.pages["https://a.test/other"] = `<p>First</p><p>Second</p>`
	obs := newRecordingObserver()

	e := NewEngine(nil, nil, fetcher, Config{}, nil, WithObserver(obs))
	results, err := e.ScrapeAndExtract(context.Background(), []string{
		"https://a.test/news",
		"https://a.test/other",
		"https://a.test/news",
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	news := results["https://a.test/news"]
	assert.True(t, news.OK())
	assert.Equal(t, "https://a.test/news", news.URL)
	assert.Equal(t, "Market up", news.Text)
	assert.Equal(t, "A", news.Title)

	other := results["https://a.test/other"]
	assert.Equal(t, "First Second", other.Text)
	assert.Equal(t, NoTitleFound, other.Title)

	assert.Equal(t, 1, fetcher.callCount("https://a.test/news"))
	assert.Len(t, obs.fetched, 2)
	assert.Positive(t, obs.bytes)
}

func TestScrapeAndExtractEmptyInput(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil, nil, newFakeFetcher(), Config{}, nil)
	results, err := e.ScrapeAndExtract(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestScrapeAndExtractWithoutFetcher(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil, newFakeRenderer(), nil, Config{}, nil)
	_, err := e.ScrapeAndExtract(context.Background(), []string{"https://a.test"})
	assert.ErrorIs(t, err, ErrNoFetcher)
}

func TestScrapeAndExtractTimesOutHangingFetch(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.hang["https://slow.test"] = true
	fetcher.pages["https://fast.test"] = `<p>Quick</p>`

	e := NewEngine(nil, nil, fetcher, Config{FetchTimeout: 50 * time.Millisecond}, nil)

	start := time.Now()
	results, err := e.ScrapeAndExtract(context.Background(), []string{"https://slow.test", "https://fast.test"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	require.Len(t, results, 2)

	slow := results["https://slow.test"]
	assert.False(t, slow.OK())
	assert.True(t, strings.HasPrefix(slow.Text, ErrorPrefix), slow.Text)
	assert.Equal(t, NoTitleFound, slow.Title)
	require.NotNil(t, slow.Err)
	assert.Equal(t, KindTimeout, slow.Err.Kind)
	assert.ErrorIs(t, slow.Err, context.DeadlineExceeded)

	fast := results["https://fast.test"]
	assert.True(t, fast.OK())
	assert.Equal(t, "Quick", fast.Text)
}

func TestScrapeAndExtractIsolatesFailures(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.pages["https://ok.test"] = `<title>Fine</title><p>Body</p>`
	fetcher.errs["https://refused.test"] = &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}
	fetcher.errs["https://bad.test"] = fmt.Errorf("parse: %w", ErrInvalidURL)

	e := NewEngine(nil, nil, fetcher, Config{}, nil)
	results, err := e.ScrapeAndExtract(context.Background(), []string{
		"https://ok.test", "https://refused.test", "https://bad.test",
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, Result{URL: "https://ok.test", Text: "Body", Title: "Fine"}, results["https://ok.test"])

	refused := results["https://refused.test"]
	require.NotNil(t, refused.Err)
	assert.Equal(t, KindConnectFailed, refused.Err.Kind)
	assert.Equal(t, "https://refused.test", refused.Err.URL)
	assert.Equal(t, ErrorPrefix+refused.Err.Error(), refused.Text)
	assert.Equal(t, NoTitleFound, refused.Title)

	bad := results["https://bad.test"]
	require.NotNil(t, bad.Err)
	assert.Equal(t, KindInvalidURL, bad.Err.Kind)
}

func TestScrapeAndExtractRecoversFetcherPanic(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil, nil, panickingFetcher{}, Config{}, nil)
	results, err := e.ScrapeAndExtract(context.Background(), []string{"https://a.test"})
	require.NoError(t, err)

	res := results["https://a.test"]
	require.NotNil(t, res.Err)
	assert.Equal(t, KindOther, res.Err.Kind)
	assert.Contains(t, res.Text, "fetcher panic")
}

func TestScrapeAndExtractRespectsParallelLimit(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.delay = 20 * time.Millisecond
	urls := make([]string, 0, 8)
	for i := range 8 {
		u := fmt.Sprintf("https://a.test/%d", i)
		fetcher.pages[u] = "<p>x</p>"
		urls = append(urls, u)
	}

	e := NewEngine(nil, nil, fetcher, Config{MaxParallelFetches: 3}, nil)
	results, err := e.ScrapeAndExtract(context.Background(), urls)
	require.NoError(t, err)
	assert.Len(t, results, 8)
	assert.LessOrEqual(t, fetcher.peak, 3)
}

func TestScrapeAndExtractCanceledContext(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.hang["https://a.test"] = true
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEngine(nil, nil, fetcher, Config{}, nil)
	results, err := e.ScrapeAndExtract(ctx, []string{"https://a.test"})
	require.NoError(t, err)

	res := results["https://a.test"]
	require.NotNil(t, res.Err)
	assert.Equal(t, KindCanceled, res.Err.Kind)
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindOther},
		{"invalid url", fmt.Errorf("wrap: %w", ErrInvalidURL), KindInvalidURL},
		{"decode", fmt.Errorf("wrap: %w", ErrDecode), KindDecode},
		{"deadline", fmt.Errorf("wrap: %w", context.DeadlineExceeded), KindTimeout},
		{"canceled", context.Canceled, KindCanceled},
		{"net timeout", timeoutErr{}, KindTimeout},
		{"reset", &net.OpError{Op: "read", Err: os.NewSyscallError("read", syscall.ECONNRESET)}, KindConnectionReset},
		{"unexpected eof", io.ErrUnexpectedEOF, KindConnectionReset},
		{"refused", os.NewSyscallError("connect", syscall.ECONNREFUSED), KindConnectFailed},
		{"dns", &net.DNSError{Err: "no such host", Name: "nope.invalid", IsNotFound: true}, KindConnectFailed},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("network unreachable")}, KindConnectFailed},
		{"other", errors.New("boom"), KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, classifyError(tt.err))
		})
	}
}

func TestNewFetchErrorForcesTimeoutOnExpiredTask(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	fe := newFetchError(ctx, "https://a.test", errors.New("read tcp: use of closed connection"))
	assert.Equal(t, KindTimeout, fe.Kind)
	assert.Equal(t, "timeout: read tcp: use of closed connection", fe.Error())
}

type panickingFetcher struct{}

func (panickingFetcher) Fetch(context.Context, string) (Page, error) {
	panic("fetcher exploded")
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }
