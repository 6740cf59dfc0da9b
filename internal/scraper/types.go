package scraper

import (
	"context"
	"time"
)

const (
	// NoTitleFound is the title reported for documents without a <title> element.
	NoTitleFound = "No Title Found"
	// ErrorPrefix starts the text of every failed Result.
	ErrorPrefix = "Error: "

	// DefaultFetchTimeout bounds a single document fetch.
	DefaultFetchTimeout = 10 * time.Second
	// DefaultRenderTimeout bounds a single link-discovery render.
	DefaultRenderTimeout = 45 * time.Second
)

// LinkRenderer loads a URL in a full browser context and returns the href
// targets of every anchor in the rendered document. Values are returned as-is:
// relative, duplicated and empty links are all preserved.
type LinkRenderer interface {
	RenderLinks(ctx context.Context, rawURL string) ([]string, error)
}

// DocumentFetcher retrieves the raw document for a URL. Implementations must be
// safe for concurrent use and should honour ctx cancellation.
type DocumentFetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// Observer receives per-task outcomes. It is how metrics are reported without
// the engine depending on a metrics backend.
type Observer interface {
	ObserveDiscovery(site string, links int, err error)
	ObserveFetch(result Result, bytes int, elapsed time.Duration)
}

// Page is a fetched document. Body is UTF-8.
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Result is the outcome for one requested URL. Failed results carry Err and a
// Text of the form "Error: <description>" so consumers that only look at text
// keep working.
type Result struct {
	URL   string      `json:"sourceUrl"`
	Text  string      `json:"text"`
	Title string      `json:"title"`
	Err   *FetchError `json:"-"`
}

// OK reports whether the document was fetched and extracted.
func (r Result) OK() bool {
	return r.Err == nil
}

// Config tunes the engine's concurrency and timeouts. Zero values pick defaults;
// zero parallelism means one goroutine per URL with no cap.
type Config struct {
	FetchTimeout       time.Duration
	RenderTimeout      time.Duration
	MaxParallelFetches int
	MaxParallelRenders int
}

func (c Config) withDefaults() Config {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.RenderTimeout <= 0 {
		c.RenderTimeout = DefaultRenderTimeout
	}
	if c.MaxParallelFetches < 0 {
		c.MaxParallelFetches = 0
	}
	if c.MaxParallelRenders < 0 {
		c.MaxParallelRenders = 0
	}
	return c
}

type nopObserver struct{}

func (nopObserver) ObserveDiscovery(string, int, error) {}

func (nopObserver) ObserveFetch(Result, int, time.Duration) {}
