package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

var (
	// ErrInvalidURL marks a URL that cannot be requested (bad syntax, missing
	// host, or a scheme other than http/https).
	ErrInvalidURL = errors.New("invalid url")
	// ErrDecode marks a response body that could not be decoded to UTF-8.
	ErrDecode = errors.New("decode response body")
	// ErrNoFetcher is returned by ScrapeAndExtract when the engine was built
	// without a DocumentFetcher.
	ErrNoFetcher = errors.New("no document fetcher configured")
	// ErrNoRenderer is returned by FetchAllLinks when the engine was built
	// without a LinkRenderer.
	ErrNoRenderer = errors.New("no link renderer configured")
)

// ErrorKind classifies an isolated per-URL failure.
type ErrorKind string

// Failure kinds reported on FetchError.
const (
	KindTimeout         ErrorKind = "timeout"
	KindInvalidURL      ErrorKind = "invalid_url"
	KindConnectionReset ErrorKind = "connection_reset"
	KindConnectFailed   ErrorKind = "connect_failed"
	KindDecode          ErrorKind = "decode"
	KindCanceled        ErrorKind = "canceled"
	KindOther           ErrorKind = "other"
)

// FetchError describes why a single URL produced no document.
type FetchError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// newFetchError wraps err for rawURL. ctx is the task context: an expired task
// deadline is always reported as a timeout, whatever the fetcher returned.
func newFetchError(ctx context.Context, rawURL string, err error) *FetchError {
	kind := classifyError(err)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &FetchError{Kind: kind, URL: rawURL, Err: err}
}

func classifyError(err error) ErrorKind {
	var (
		netErr net.Error
		dnsErr *net.DNSError
		opErr  *net.OpError
	)
	switch {
	case err == nil:
		return KindOther
	case errors.Is(err, ErrInvalidURL):
		return KindInvalidURL
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return KindConnectionReset
	case errors.Is(err, syscall.ECONNREFUSED), errors.As(err, &dnsErr):
		return KindConnectFailed
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return KindConnectFailed
	default:
		return KindOther
	}
}

func failedResult(fe *FetchError) Result {
	return Result{
		URL:   fe.URL,
		Text:  ErrorPrefix + fe.Error(),
		Title: NoTitleFound,
		Err:   fe,
	}
}
