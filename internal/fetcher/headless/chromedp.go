// Package headless renders pages in headless Chrome and reports the anchors
// of the rendered DOM.
package headless

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/realtime-news-scraper/internal/scraper"
)

// ErrDisabled indicates rendering has been disabled via configuration.
var ErrDisabled = errors.New("headless rendering disabled")

// Config controls the behavior of the renderer.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	// ExecPath overrides the Chrome binary chromedp looks up.
	ExecPath string
	// SettleDelay is waited after the body is ready so late scripts can add links.
	SettleDelay time.Duration
	// BlockImages stops the browser from loading images.
	BlockImages bool
}

// Renderer implements scraper.LinkRenderer with chromedp. Every call launches
// its own browser process, released when the call returns.
type Renderer struct {
	cfg       Config
	limiter   chan struct{}
	allocOpts []chromedp.ExecAllocatorOption
}

// NewChromedp creates a renderer backed by chromedp. No browser starts until
// RenderLinks is called.
func NewChromedp(cfg Config) (*Renderer, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout < 0 {
		return nil, fmt.Errorf("navigation timeout must be >= 0")
	}
	if cfg.NavigationTimeout == 0 {
		cfg.NavigationTimeout = scraper.DefaultRenderTimeout
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.BlockImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	return &Renderer{
		cfg:       cfg,
		limiter:   limiter,
		allocOpts: opts,
	}, nil
}

// RenderLinks navigates to rawURL and returns the href of every anchor in the
// rendered DOM, in document order and unnormalised.
func (r *Renderer) RenderLinks(ctx context.Context, rawURL string) ([]string, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	defer r.release()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, r.allocOpts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	taskCtx, cancel := context.WithTimeout(browserCtx, r.cfg.NavigationTimeout)
	defer cancel()

	html, err := r.render(taskCtx, rawURL)
	if err != nil {
		return nil, err
	}
	links, err := scraper.ExtractLinks(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("extract links from %s: %w", rawURL, err)
	}
	return links, nil
}

func (r *Renderer) render(ctx context.Context, rawURL string) (string, error) {
	var html string
	actions := []chromedp.Action{
		r.userAgentAction(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if r.cfg.SettleDelay > 0 {
		actions = append(actions, chromedp.Sleep(r.cfg.SettleDelay))
	}
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, nil
}

func (r *Renderer) userAgentAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if r.cfg.UserAgent == "" {
			return nil
		}
		if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		return nil
	})
}

func (r *Renderer) acquire(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	select {
	case r.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (r *Renderer) release() {
	if r.limiter == nil {
		return
	}
	select {
	case <-r.limiter:
	default:
	}
}
