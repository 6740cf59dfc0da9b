package scraper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ScrapeAndExtract fetches every URL concurrently and reduces each document to
// plain text and a title. Duplicate URLs are fetched once. It blocks until every
// fetch has finished and always returns exactly one Result per unique URL;
// per-URL failures are reported in the Result, never as the returned error.
func (e *Engine) ScrapeAndExtract(ctx context.Context, urls []string) (map[string]Result, error) {
	if e.fetcher == nil {
		return nil, ErrNoFetcher
	}

	unique := uniqueURLs(urls)
	results := make(chan Result, len(unique))

	var g errgroup.Group
	if e.cfg.MaxParallelFetches > 0 {
		g.SetLimit(e.cfg.MaxParallelFetches)
	}
	for _, rawURL := range unique {
		g.Go(func() error {
			results <- e.fetchAndExtract(ctx, rawURL)
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	out := make(map[string]Result, len(unique))
	for res := range results {
		out[res.URL] = res
	}
	return out, nil
}

func (e *Engine) fetchAndExtract(ctx context.Context, rawURL string) Result {
	taskCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	page, err := e.fetch(taskCtx, rawURL)
	elapsed := time.Since(start)
	if err != nil {
		res := failedResult(newFetchError(taskCtx, rawURL, err))
		e.logger.Warn("fetch failed",
			zap.String("url", rawURL),
			zap.String("kind", string(res.Err.Kind)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		e.observer.ObserveFetch(res, 0, elapsed)
		return res
	}

	text, title := Extract(page.Body)
	res := Result{URL: rawURL, Text: text, Title: title}
	e.logger.Debug("document extracted",
		zap.String("url", rawURL),
		zap.Int("status", page.StatusCode),
		zap.Int("bytes", len(page.Body)),
		zap.Duration("elapsed", elapsed),
	)
	e.observer.ObserveFetch(res, len(page.Body), elapsed)
	return res
}

// fetch runs the fetcher but returns as soon as ctx expires, abandoning a
// fetcher that does not honour cancellation.
func (e *Engine) fetch(ctx context.Context, rawURL string) (Page, error) {
	type outcome struct {
		page Page
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("fetcher panic: %v", r)}
			}
		}()
		page, err := e.fetcher.Fetch(ctx, rawURL)
		done <- outcome{page: page, err: err}
	}()

	select {
	case <-ctx.Done():
		return Page{}, fmt.Errorf("fetch %s: %w", rawURL, ctx.Err())
	case out := <-done:
		return out.page, out.err
	}
}

func uniqueURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
