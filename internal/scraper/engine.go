package scraper

import (
	"sync"

	"go.uber.org/zap"
)

// Engine owns the target sites of one invocation and the links discovered for
// them. It is safe for concurrent use.
type Engine struct {
	targetURLs []string
	renderer   LinkRenderer
	fetcher    DocumentFetcher
	cfg        Config
	logger     *zap.Logger
	observer   Observer

	mu             sync.Mutex
	collectedLinks map[string][]string
}

// Option customises an Engine.
type Option func(*Engine)

// WithObserver reports task outcomes to o.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// NewEngine builds an engine for targetURLs. Either collaborator may be nil when
// the caller only needs one phase; the matching entry point then fails with
// ErrNoRenderer or ErrNoFetcher. No I/O happens until an entry point runs.
func NewEngine(
	targetURLs []string,
	renderer LinkRenderer,
	fetcher DocumentFetcher,
	cfg Config,
	logger *zap.Logger,
	opts ...Option,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		targetURLs:     cloneLinks(targetURLs),
		renderer:       renderer,
		fetcher:        fetcher,
		cfg:            cfg.withDefaults(),
		logger:         logger,
		observer:       nopObserver{},
		collectedLinks: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TargetURLs returns the sites the engine was built for, in order.
func (e *Engine) TargetURLs() []string {
	return cloneLinks(e.targetURLs)
}

// Links returns a copy of the links stored for site.
func (e *Engine) Links(site string) ([]string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	links, ok := e.collectedLinks[site]
	if !ok {
		return nil, false
	}
	return cloneLinks(links), true
}

// SetLinks replaces the links stored for site.
func (e *Engine) SetLinks(site string, links []string) {
	cp := cloneLinks(links)
	e.mu.Lock()
	e.collectedLinks[site] = cp
	e.mu.Unlock()
}

// CollectedLinks returns a snapshot of the whole link map.
func (e *Engine) CollectedLinks() map[string][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string][]string, len(e.collectedLinks))
	for site, links := range e.collectedLinks {
		out[site] = cloneLinks(links)
	}
	return out
}

// FilterLinks rewrites the links stored for site with fn. fn must be pure; it
// runs under the map lock so the read and the replace are one step. It reports
// false when site has no entry.
func (e *Engine) FilterLinks(site string, fn func([]string) []string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	links, ok := e.collectedLinks[site]
	if !ok {
		return false
	}
	e.collectedLinks[site] = cloneLinks(fn(cloneLinks(links)))
	return true
}

func (e *Engine) dropLinks(site string) {
	e.mu.Lock()
	delete(e.collectedLinks, site)
	e.mu.Unlock()
}

// cloneLinks copies in; the result is never nil.
func cloneLinks(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
