// Package collyfetcher implements scraper.DocumentFetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/gocolly/colly/v2"
	"golang.org/x/net/html/charset"

	"github.com/JakeFAU/realtime-news-scraper/internal/scraper"
)

const (
	defaultTimeout      = scraper.DefaultFetchTimeout
	defaultMaxIdleConns = 100
	defaultMaxBodyBytes = 10 << 20
)

// Config controls collector behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxIdleConns int
	// MaxBodyBytes caps the bytes read per response; 0 selects the default.
	MaxBodyBytes int
}

// Fetcher implements scraper.DocumentFetcher. Every request runs on a clone of
// one base collector, so all of them share one pooled transport.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) (*Fetcher, error) {
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0, got %s", cfg.Timeout)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle conns must be >= 0, got %d", cfg.MaxIdleConns)
	}
	if cfg.MaxBodyBytes < 0 {
		return nil, fmt.Errorf("max body bytes must be >= 0, got %d", cfg.MaxBodyBytes)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = defaultMaxIdleConns
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	opts := []colly.CollectorOption{
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
		colly.MaxBodySize(cfg.MaxBodyBytes),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.UserAgent))
	}
	c := colly.NewCollector(opts...)
	c.WithTransport(newHTTPTransport(cfg.MaxIdleConns))
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{cfg: cfg, baseCollector: c}, nil
}

// Fetch executes a single HTTP GET and returns the body decoded to UTF-8.
// Error pages are returned like any other document.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (scraper.Page, error) {
	if err := validateURL(rawURL); err != nil {
		return scraper.Page{}, err
	}

	var (
		page     scraper.Page
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	configureCollectorHooks(collector, &page, &fetchErr)

	if err := runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return scraper.Page{}, err
	}

	body, err := decodeBody(page.Body, page.ContentType)
	if err != nil {
		return scraper.Page{}, fmt.Errorf("%s: %w", rawURL, err)
	}
	page.URL = rawURL
	page.Body = body
	return page, nil
}

func configureCollectorHooks(hooks collectorHooks, page *scraper.Page, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*page = scraper.Page{
			FinalURL:    r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        append([]byte(nil), r.Body...),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, rawURL string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", scraper.ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q in %q", scraper.ErrInvalidURL, u.Scheme, rawURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host in %q", scraper.ErrInvalidURL, rawURL)
	}
	return nil
}

// decodeBody returns body as UTF-8. Colly already converts responses whose
// Content-Type names a charset, so only undeclared or mislabelled bodies reach
// the sniffing path. Bytes that are invalid in the resolved encoding fail.
func decodeBody(body []byte, contentType string) ([]byte, error) {
	if utf8.Valid(body) {
		return body, nil
	}
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" {
		return nil, fmt.Errorf("%w: invalid utf-8", scraper.ErrDecode)
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", scraper.ErrDecode, name, err)
	}
	if !utf8.Valid(decoded) {
		return nil, fmt.Errorf("%w: %s produced invalid utf-8", scraper.ErrDecode, name)
	}
	return decoded, nil
}

func newHTTPTransport(maxIdleConns int) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxIdleConns,
		IdleConnTimeout:       90 * time.Second,
	}
}
