package scraper

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeRenderer struct {
	mu       sync.Mutex
	links    map[string][]string
	errs     map[string]error
	block    map[string]bool
	panics   map[string]bool
	calls    map[string]int
	inFlight int
	peak     int
	delay    time.Duration
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		links:  make(map[string][]string),
		errs:   make(map[string]error),
		block:  make(map[string]bool),
		panics: make(map[string]bool),
		calls:  make(map[string]int),
	}
}

func (r *fakeRenderer) RenderLinks(ctx context.Context, rawURL string) ([]string, error) {
	r.mu.Lock()
	r.calls[rawURL]++
	r.inFlight++
	if r.inFlight > r.peak {
		r.peak = r.inFlight
	}
	links, err := r.links[rawURL], r.errs[rawURL]
	block, panics, delay := r.block[rawURL], r.panics[rawURL], r.delay
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inFlight--
		r.mu.Unlock()
	}()

	if panics {
		panic("renderer exploded")
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return append([]string(nil), links...), nil
}

func (r *fakeRenderer) callCount(rawURL string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[rawURL]
}

type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	errs   map[string]error
	hang   map[string]bool
	calls  map[string]int
	delay  time.Duration
	active int
	peak   int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages: make(map[string]string),
		errs:  make(map[string]error),
		hang:  make(map[string]bool),
		calls: make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	f.mu.Lock()
	f.calls[rawURL]++
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
	body, ok := f.pages[rawURL]
	err, hang, delay := f.errs[rawURL], f.hang[rawURL], f.delay
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if hang {
		// Ignores ctx on purpose: the engine must still give up on it.
		time.Sleep(time.Hour)
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return Page{}, err
	}
	if !ok {
		return Page{}, errors.New("unexpected url " + rawURL)
	}
	return Page{URL: rawURL, StatusCode: 200, Body: []byte(body)}, nil
}

func (f *fakeFetcher) callCount(rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[rawURL]
}

type recordingObserver struct {
	mu         sync.Mutex
	discovered map[string]int
	discErrs   map[string]error
	fetched    []Result
	bytes      int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		discovered: make(map[string]int),
		discErrs:   make(map[string]error),
	}
}

func (o *recordingObserver) ObserveDiscovery(site string, links int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.discovered[site] = links
	if err != nil {
		o.discErrs[site] = err
	}
}

func (o *recordingObserver) ObserveFetch(result Result, bytes int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fetched = append(o.fetched, result)
	o.bytes += bytes
}
