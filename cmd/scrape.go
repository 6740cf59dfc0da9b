package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/realtime-news-scraper/internal/clock/system"
	"github.com/JakeFAU/realtime-news-scraper/internal/config"
	"github.com/JakeFAU/realtime-news-scraper/internal/id/uuid"
	"github.com/JakeFAU/realtime-news-scraper/internal/pipeline"
	memorypublisher "github.com/JakeFAU/realtime-news-scraper/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/realtime-news-scraper/internal/publisher/pubsub"
	"github.com/JakeFAU/realtime-news-scraper/internal/server"
	"github.com/JakeFAU/realtime-news-scraper/internal/storage"
	pgstore "github.com/JakeFAU/realtime-news-scraper/internal/storage/postgres"
	"github.com/JakeFAU/realtime-news-scraper/internal/telemetry"
)

func newScrapeCmd() *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Discover, fetch and persist articles for every configured site",
		Long: `Runs link discovery for every configured site, filters the links,
fetches and extracts every article, then writes one JSON document per site to
the configured storage backend. With --every the run repeats until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			return runScrape(cmd, e, every)
		},
	}
	cmd.Flags().DurationVar(&every, "every", 0, "repeat the run at this interval (0 runs once)")
	return cmd
}

// sinks bundles the persistence collaborators and their cleanup.
type sinks struct {
	deps    pipeline.Deps
	closers []func()
}

func (s *sinks) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func buildSinks(ctx context.Context, cfg config.Config, logger *zap.Logger) (*sinks, error) {
	s := &sinks{deps: pipeline.Deps{IDs: uuid.New(), Clock: system.New()}}

	blob, closeBlob, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	s.deps.Blob = blob
	s.closers = append(s.closers, func() {
		if err := closeBlob(); err != nil {
			logger.Warn("blob store close failed", zap.Error(err))
		}
	})
	logger.Info("storage backend ready", zap.String("backend", cfg.Storage.Backend))

	if cfg.DB.DSN != "" {
		store, err := pgstore.NewArticleStore(ctx, pgstore.Config{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: int32(cfg.DB.MaxConns),
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("article store init failed: %w", err)
		}
		s.deps.Records = store
		s.closers = append(s.closers, store.Close)
		logger.Info("article store initialized", zap.String("table", cfg.DB.Table))
	} else {
		logger.Info("no db.dsn configured, skipping article store")
	}

	switch {
	case cfg.PubSub.TopicName == "":
		logger.Info("no pubsub.topic_name configured, notifications disabled")
	case cfg.PubSub.ProjectID == "":
		logger.Warn("no pubsub.project_id configured, using in-memory publisher")
		s.deps.Publisher = memorypublisher.New()
	default:
		pub, err := gcppublisher.Open(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
		}
		s.deps.Publisher = pub
		s.closers = append(s.closers, func() {
			if err := pub.Close(); err != nil {
				logger.Warn("pubsub publisher close failed", zap.Error(err))
			}
		})
		logger.Info("Pub/Sub publisher initialized",
			zap.String("project", cfg.PubSub.ProjectID),
			zap.String("topic", cfg.PubSub.TopicName),
		)
	}
	return s, nil
}

func runScrape(cmd *cobra.Command, e *env, every time.Duration) error {
	ctx := cmd.Context()
	cfg, logger := e.cfg, e.logger

	sites, err := pipeline.SitesFromConfig(cfg.Sites)
	if err != nil {
		return err
	}
	shutdownTracing, err := telemetry.InitTracerProvider(ctx, "newsscraper")
	if err != nil {
		return fmt.Errorf("tracer init failed: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	engine, err := buildEngine(cfg, cfg.SiteURLs(), logger, true, true)
	if err != nil {
		return err
	}
	sk, err := buildSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sk.Close()

	p, err := pipeline.New(engine, sites, sk.deps, pipeline.Config{
		Prefix:      cfg.Storage.Prefix,
		ContentType: cfg.Storage.ContentType,
		Topic:       cfg.PubSub.TopicName,
	}, logger.Named("pipeline"))
	if err != nil {
		return fmt.Errorf("pipeline init failed: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()
	if cfg.Server.Port > 0 {
		srv := server.New(p, logger.Named("server"))
		g.Go(func() error {
			return srv.ListenAndServe(runCtx, cfg.Server.Port)
		})
	}

	g.Go(func() error {
		defer stopServer()
		return scrapeLoop(runCtx, cmd, p, every, logger)
	})
	return g.Wait()
}

func scrapeLoop(ctx context.Context, cmd *cobra.Command, p *pipeline.Pipeline, every time.Duration, logger *zap.Logger) error {
	for {
		summary, err := p.Run(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info("scrape interrupted")
				return nil
			}
			return fmt.Errorf("run scrape: %w", err)
		}
		if err := writeJSON(cmd.OutOrStdout(), summary); err != nil {
			return err
		}
		if every <= 0 {
			return nil
		}

		timer := time.NewTimer(every)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}
