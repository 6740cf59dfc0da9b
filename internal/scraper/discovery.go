package scraper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FetchAllLinks renders every target site concurrently and stores the links
// found on each. It blocks until every render has finished. A failed render
// leaves its site without an entry and never affects the others; the only error
// returned is ErrNoRenderer or the cancellation of ctx.
func (e *Engine) FetchAllLinks(ctx context.Context) error {
	if e.renderer == nil {
		return ErrNoRenderer
	}

	// Tasks report failures through logs and the observer, so the group is
	// never canceled by a sibling.
	var g errgroup.Group
	if e.cfg.MaxParallelRenders > 0 {
		g.SetLimit(e.cfg.MaxParallelRenders)
	}
	for _, site := range e.targetURLs {
		g.Go(func() error {
			e.discover(ctx, site)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("link discovery interrupted: %w", err)
	}
	return nil
}

func (e *Engine) discover(ctx context.Context, site string) {
	logger := e.logger.With(zap.String("site", site))

	taskCtx, cancel := context.WithTimeout(ctx, e.cfg.RenderTimeout)
	defer cancel()

	start := time.Now()
	links, err := e.renderLinks(taskCtx, site)
	if err != nil {
		e.dropLinks(site)
		logger.Warn("link discovery failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		e.observer.ObserveDiscovery(site, 0, err)
		return
	}

	e.SetLinks(site, links)
	logger.Info("links discovered",
		zap.Int("links", len(links)),
		zap.Duration("elapsed", time.Since(start)),
	)
	e.observer.ObserveDiscovery(site, len(links), nil)
}

func (e *Engine) renderLinks(ctx context.Context, site string) (links []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("renderer panic: %v", r)
		}
	}()
	links, err = e.renderer.RenderLinks(ctx, site)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", site, err)
	}
	return links, nil
}
