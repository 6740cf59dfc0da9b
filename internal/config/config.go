// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/realtime-news-scraper/internal/filter"
)

// Storage backends accepted by storage.backend.
const (
	StorageMemory = "memory"
	StorageLocal  = "local"
	StorageGCS    = "gcs"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Sites    []SiteConfig   `mapstructure:"sites"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SiteConfig names a top-level news page and how its links are filtered.
type SiteConfig struct {
	Name   string       `mapstructure:"name"`
	URL    string       `mapstructure:"url"`
	Filter filter.Rules `mapstructure:"filter"`
}

// ScraperConfig bounds engine concurrency. Zero means unbounded.
type ScraperConfig struct {
	MaxParallelFetches int `mapstructure:"max_parallel_fetches"`
	MaxParallelRenders int `mapstructure:"max_parallel_renders"`
}

// HTTPConfig configures the pooled document client.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	MaxIdleConns   int    `mapstructure:"max_idle_conns"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`
}

// HeadlessConfig configures the rendering subsystem used for link discovery.
type HeadlessConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	MaxParallel   int    `mapstructure:"max_parallel"`
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
	SettleDelayMs int    `mapstructure:"settle_delay_ms"`
	ExecPath      string `mapstructure:"exec_path"`
	BlockImages   bool   `mapstructure:"block_images"`
}

// StorageConfig selects the blob backend for run output.
type StorageConfig struct {
	Backend     string `mapstructure:"backend"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	BaseDir     string `mapstructure:"base_dir"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// DBConfig controls access to the relational database. An empty DSN disables it.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for run notifications. An empty topic disables them.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the admin HTTP server. Port 0 disables it.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sites", defaultSites())
	v.SetDefault("scraper.max_parallel_fetches", 0)
	v.SetDefault("scraper.max_parallel_renders", 0)
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.user_agent", "realtime-news-scraper/0.1")
	v.SetDefault("http.max_idle_conns", 100)
	v.SetDefault("http.max_body_bytes", 10<<20)
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("headless.settle_delay_ms", 500)
	v.SetDefault("headless.block_images", true)
	v.SetDefault("storage.backend", StorageLocal)
	v.SetDefault("storage.base_dir", "data")
	v.SetDefault("storage.prefix", "news")
	v.SetDefault("storage.content_type", "application/json")
	v.SetDefault("db.table", "articles")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("server.port", 0)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

func defaultSites() []map[string]any {
	return []map[string]any{
		{
			"name": "finance_yahoo_news",
			"url":  "https://finance.yahoo.com/news/",
			"filter": map[string]any{
				"base_url":       "https://finance.yahoo.com",
				"allow_prefixes": []string{"https://finance.yahoo.com/news/"},
				"block_list": []string{
					"/",
					"/news/",
					"https://finance.yahoo.com/",
					"https://finance.yahoo.com/news/",
					"https://finance.yahoo.com/news/rssindex",
					"/topic/stock-market-news/",
					"/topic/earnings/",
					"/videos/",
				},
			},
		},
		{
			"name": "marketwatch_latest_news",
			"url":  "https://www.marketwatch.com/latest-news?mod=top_nav",
			"filter": map[string]any{
				"allow_prefixes": []string{"https://www.marketwatch.com/story"},
			},
		},
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if len(c.Sites) == 0 {
		return fmt.Errorf("sites must list at least one site")
	}
	names := make(map[string]struct{}, len(c.Sites))
	urls := make(map[string]struct{}, len(c.Sites))
	for i, site := range c.Sites {
		if err := site.validate(); err != nil {
			return fmt.Errorf("sites[%d]: %w", i, err)
		}
		if _, dup := names[site.Name]; dup {
			return fmt.Errorf("sites[%d]: duplicate site name %q", i, site.Name)
		}
		if _, dup := urls[site.URL]; dup {
			return fmt.Errorf("sites[%d]: duplicate site url %q", i, site.URL)
		}
		names[site.Name] = struct{}{}
		urls[site.URL] = struct{}{}
	}
	if c.Scraper.MaxParallelFetches < 0 || c.Scraper.MaxParallelRenders < 0 {
		return fmt.Errorf("scraper.max_parallel_* must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxIdleConns < 0 || c.HTTP.MaxBodyBytes < 0 {
		return fmt.Errorf("http.max_idle_conns and http.max_body_bytes must be >= 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Headless.NavTimeoutSec < 0 {
		return fmt.Errorf("headless.nav_timeout_seconds must be >= 0")
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if c.DB.DSN != "" && c.DB.Table == "" {
		return fmt.Errorf("db.table must be set when db.dsn is set")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535")
	}
	if c.Logging.Level != "" {
		if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
			return fmt.Errorf("logging.level: %w", err)
		}
	}
	return nil
}

func (s SiteConfig) validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("name must be set")
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		return fmt.Errorf("url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url %q must be an absolute http(s) url", s.URL)
	}
	if _, err := filter.New(s.Filter); err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	return nil
}

func (s StorageConfig) validate() error {
	switch s.Backend {
	case StorageMemory:
	case StorageLocal:
		if s.BaseDir == "" {
			return fmt.Errorf("storage.base_dir must be set for the local backend")
		}
	case StorageGCS:
		if s.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of memory, local, gcs", s.Backend)
	}
	return nil
}

// SiteURLs returns the configured site URLs in order.
func (c Config) SiteURLs() []string {
	urls := make([]string, 0, len(c.Sites))
	for _, site := range c.Sites {
		urls = append(urls, site.URL)
	}
	return urls
}

// FetchTimeout is the per-document budget.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RenderTimeout is the per-site discovery budget.
func (c Config) RenderTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}
