package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-news-scraper/internal/config"
	collyfetcher "github.com/JakeFAU/realtime-news-scraper/internal/fetcher/colly"
	"github.com/JakeFAU/realtime-news-scraper/internal/fetcher/headless"
	"github.com/JakeFAU/realtime-news-scraper/internal/metrics"
	"github.com/JakeFAU/realtime-news-scraper/internal/scraper"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func engineConfig(cfg config.Config) scraper.Config {
	return scraper.Config{
		FetchTimeout:       cfg.FetchTimeout(),
		RenderTimeout:      cfg.RenderTimeout(),
		MaxParallelFetches: cfg.Scraper.MaxParallelFetches,
		MaxParallelRenders: cfg.Scraper.MaxParallelRenders,
	}
}

func buildRenderer(cfg config.Config, logger *zap.Logger) (scraper.LinkRenderer, error) {
	if !cfg.Headless.Enabled {
		logger.Warn("headless rendering disabled; every site will fail discovery")
		return headless.NewNoop(), nil
	}
	renderer, err := headless.NewChromedp(headless.Config{
		MaxParallel:       cfg.Headless.MaxParallel,
		UserAgent:         cfg.HTTP.UserAgent,
		NavigationTimeout: cfg.RenderTimeout(),
		ExecPath:          cfg.Headless.ExecPath,
		SettleDelay:       time.Duration(cfg.Headless.SettleDelayMs) * time.Millisecond,
		BlockImages:       cfg.Headless.BlockImages,
	})
	if err != nil {
		return nil, fmt.Errorf("headless renderer init failed: %w", err)
	}
	logger.Info("using headless renderer", zap.Int("max_parallel", cfg.Headless.MaxParallel))
	return renderer, nil
}

func buildFetcher(cfg config.Config, logger *zap.Logger) (scraper.DocumentFetcher, error) {
	fetcher, err := collyfetcher.New(collyfetcher.Config{
		UserAgent:    cfg.HTTP.UserAgent,
		Timeout:      cfg.FetchTimeout(),
		MaxIdleConns: cfg.HTTP.MaxIdleConns,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("document fetcher init failed: %w", err)
	}
	logger.Info("using colly fetcher", zap.Duration("timeout", cfg.FetchTimeout()))
	return fetcher, nil
}

// buildEngine wires the collaborators a command needs; a phase that is not
// requested gets a nil collaborator.
func buildEngine(cfg config.Config, targets []string, logger *zap.Logger, withRenderer, withFetcher bool) (*scraper.Engine, error) {
	var (
		renderer scraper.LinkRenderer
		fetcher  scraper.DocumentFetcher
		err      error
	)
	if withRenderer {
		if renderer, err = buildRenderer(cfg, logger); err != nil {
			return nil, err
		}
	}
	if withFetcher {
		if fetcher, err = buildFetcher(cfg, logger); err != nil {
			return nil, err
		}
	}
	return scraper.NewEngine(
		targets,
		renderer,
		fetcher,
		engineConfig(cfg),
		logger.Named("engine"),
		scraper.WithObserver(metrics.NewObserver()),
	), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
