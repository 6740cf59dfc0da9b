// Package pipeline runs one complete scrape: link discovery, per-site
// filtering, fetch-and-extract, then persistence and notification of each
// site's articles.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/realtime-news-scraper/internal/clock/system"
	"github.com/JakeFAU/realtime-news-scraper/internal/id/uuid"
	"github.com/JakeFAU/realtime-news-scraper/internal/metrics"
	"github.com/JakeFAU/realtime-news-scraper/internal/scraper"
)

const (
	defaultPrefix      = "news"
	defaultContentType = "application/json"
	objectTimeLayout   = "20060102150405"
	tracerName         = "github.com/JakeFAU/realtime-news-scraper/internal/pipeline"
)

// Run statuses reported by Summary.Status and the runs metric.
const (
	StatusSuccess  = "success"
	StatusPartial  = "partial"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("a run is already in progress")

// BlobStore persists run output.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// RecordStore persists a site's records row by row.
type RecordStore interface {
	StoreArticles(ctx context.Context, batch Batch) error
}

// Publisher sends run notifications.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// IDGenerator creates run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock supplies run timestamps.
type Clock interface {
	Now() time.Time
}

// Site is one target page and the filter applied to its discovered links.
type Site struct {
	Name   string
	URL    string
	Filter func([]string) []string
}

// Deps holds the pipeline's collaborators. Blob is required; Records and
// Publisher are optional.
type Deps struct {
	Blob      BlobStore
	Records   RecordStore
	Publisher Publisher
	IDs       IDGenerator
	Clock     Clock
}

// Config controls object naming and notifications.
type Config struct {
	Prefix      string
	ContentType string
	Topic       string
}

// Notification is published once per persisted site.
type Notification struct {
	RunID      string    `json:"run_id"`
	Site       string    `json:"site"`
	SiteName   string    `json:"site_name"`
	BlobURI    string    `json:"blob_uri"`
	Records    int       `json:"records"`
	Failures   int       `json:"failures"`
	FinishedAt time.Time `json:"finished_at"`
}

// Pipeline ties an engine to its sinks. Only one run may be active at a time.
type Pipeline struct {
	engine *scraper.Engine
	sites  []Site
	deps   Deps
	cfg    Config
	logger *zap.Logger

	running atomic.Bool
}

// New validates the wiring and returns a Pipeline.
func New(engine *scraper.Engine, sites []Site, deps Deps, cfg Config, logger *zap.Logger) (*Pipeline, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if deps.Blob == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if len(sites) == 0 {
		return nil, fmt.Errorf("at least one site is required")
	}
	if deps.IDs == nil {
		deps.IDs = uuid.New()
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.ContentType == "" {
		cfg.ContentType = defaultContentType
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Pipeline{
		engine: engine,
		sites:  append([]Site(nil), sites...),
		deps:   deps,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Running reports whether a run is in progress.
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// Run performs one scrape. Per-site persistence failures are reported in the
// Summary and never stop other sites; the returned error is reserved for
// failures that stop the whole run.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	if !p.running.CompareAndSwap(false, true) {
		return Summary{}, ErrRunInProgress
	}
	defer p.running.Store(false)

	runID, err := p.deps.IDs.NewID()
	if err != nil {
		metrics.ObserveRun(StatusFailed)
		return Summary{}, fmt.Errorf("generate run id: %w", err)
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.run")
	span.SetAttributes(attribute.String("run.id", runID))
	defer span.End()

	started := p.deps.Clock.Now()
	summary := Summary{RunID: runID, StartedAt: started}
	logger := p.logger.With(zap.String("run_id", runID))
	logger.Info("run started", zap.Int("sites", len(p.sites)))

	if err := p.engine.FetchAllLinks(ctx); err != nil {
		summary.FinishedAt = p.deps.Clock.Now()
		metrics.ObserveRun(runStatus(ctx, StatusFailed))
		span.SetStatus(codes.Error, err.Error())
		return summary, fmt.Errorf("discover links: %w", err)
	}

	for _, site := range p.sites {
		if site.Filter == nil {
			continue
		}
		if p.engine.FilterLinks(site.URL, site.Filter) {
			links, _ := p.engine.Links(site.URL)
			logger.Debug("links filtered", zap.String("site", site.Name), zap.Int("links", len(links)))
		}
	}

	summary.Sites = make([]SiteSummary, len(p.sites))
	var g errgroup.Group
	for i, site := range p.sites {
		g.Go(func() error {
			summary.Sites[i] = p.runSite(ctx, runID, started, site, logger)
			return nil
		})
	}
	_ = g.Wait()
	summary.FinishedAt = p.deps.Clock.Now()

	status := runStatus(ctx, summary.Status())
	metrics.ObserveRun(status)
	span.SetAttributes(attribute.String("run.status", status))
	logger.Info("run finished",
		zap.String("status", status),
		zap.Duration("elapsed", summary.FinishedAt.Sub(started)),
	)
	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("run interrupted: %w", err)
	}
	return summary, nil
}

func (p *Pipeline) runSite(ctx context.Context, runID string, started time.Time, site Site, logger *zap.Logger) SiteSummary {
	out := SiteSummary{Name: site.Name, URL: site.URL}
	logger = logger.With(zap.String("site", site.Name))

	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.site")
	span.SetAttributes(attribute.String("site.name", site.Name), attribute.String("site.url", site.URL))
	defer func() {
		span.SetAttributes(attribute.Int("site.records", out.Records), attribute.Int("site.failures", out.Failures))
		if len(out.Errors) > 0 {
			span.SetStatus(codes.Error, out.Errors[0])
		}
		span.End()
	}()

	links, ok := p.engine.Links(site.URL)
	if !ok {
		out.Errors = append(out.Errors, "no links discovered")
		logger.Warn("skipping site without links")
		return out
	}
	out.Discovered = true
	out.Links = len(links)

	results, err := p.engine.ScrapeAndExtract(ctx, links)
	if err != nil {
		out.Errors = append(out.Errors, fmt.Sprintf("scrape: %v", err))
		logger.Error("scrape failed", zap.Error(err))
		return out
	}
	batch := Batch{
		RunID:      runID,
		Site:       site.URL,
		FinishedAt: p.deps.Clock.Now(),
		Records:    NewRecords(resultValues(results)),
	}
	out.Records = len(batch.Records)
	out.Failures = batch.Failures()

	uri, err := p.putBatch(ctx, ObjectPath(p.cfg.Prefix, started, site.Name), batch)
	metrics.ObservePersist("blob", err)
	if err != nil {
		out.Errors = append(out.Errors, fmt.Sprintf("blob: %v", err))
		logger.Error("blob write failed", zap.Error(err))
	} else {
		out.BlobURI = uri
		logger.Info("site persisted",
			zap.String("uri", uri),
			zap.Int("records", out.Records),
			zap.Int("failures", out.Failures),
		)
	}

	if p.deps.Records != nil {
		err := p.deps.Records.StoreArticles(ctx, batch)
		metrics.ObservePersist("db", err)
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("db: %v", err))
			logger.Error("record store write failed", zap.Error(err))
		}
	}

	if p.deps.Publisher != nil && p.cfg.Topic != "" && out.BlobURI != "" {
		note := Notification{
			RunID:      runID,
			Site:       site.URL,
			SiteName:   site.Name,
			BlobURI:    out.BlobURI,
			Records:    out.Records,
			Failures:   out.Failures,
			FinishedAt: batch.FinishedAt,
		}
		id, err := p.deps.Publisher.Publish(ctx, p.cfg.Topic, note)
		metrics.ObservePersist("publish", err)
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("publish: %v", err))
			logger.Error("publish failed", zap.Error(err))
		} else {
			logger.Debug("notification published", zap.String("message_id", id))
		}
	}
	return out
}

func (p *Pipeline) putBatch(ctx context.Context, objectPath string, batch Batch) (string, error) {
	body, err := json.Marshal(batch.Records)
	if err != nil {
		return "", fmt.Errorf("marshal records: %w", err)
	}
	uri, err := p.deps.Blob.PutObject(ctx, objectPath, p.cfg.ContentType, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("put %s: %w", objectPath, err)
	}
	return uri, nil
}

// ObjectPath names a site's output object: <prefix>/<YYYYMMDDHHMMSS>_<site>.json.
func ObjectPath(prefix string, at time.Time, siteName string) string {
	name := fmt.Sprintf("%s_%s.json", at.UTC().Format(objectTimeLayout), siteName)
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

func resultValues(results map[string]scraper.Result) []scraper.Result {
	out := make([]scraper.Result, 0, len(results))
	for _, res := range results {
		out = append(out, res)
	}
	return out
}

func runStatus(ctx context.Context, status string) string {
	if ctx.Err() != nil {
		return StatusCanceled
	}
	return status
}
