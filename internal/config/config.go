// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Store     StoreConfig     `mapstructure:"store"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Publisher PublisherConfig `mapstructure:"publisher"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// CatalogConfig locates the catalog being crawled.
type CatalogConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	CategoryPath string `mapstructure:"category_path"`
	Marker       string `mapstructure:"marker"`
	UserAgent    string `mapstructure:"user_agent"`
}

// PageURL builds the catalog URL for a given page index.
func (c CatalogConfig) PageURL(page int) string {
	return fmt.Sprintf("%s%s?page=%d", c.BaseURL, c.CategoryPath, page)
}

// CrawlConfig governs the traversal loop.
type CrawlConfig struct {
	StartPage           int `mapstructure:"start_page"`
	PageLoadTimeoutSecs int `mapstructure:"page_load_timeout_seconds"`
	PageDelaySecs       int `mapstructure:"page_delay_seconds"`
}

// PageLoadTimeout returns the bounded wait for a page's readiness marker.
func (c CrawlConfig) PageLoadTimeout() time.Duration {
	return time.Duration(c.PageLoadTimeoutSecs) * time.Second
}

// PageDelay returns the fixed inter-page delay.
func (c CrawlConfig) PageDelay() time.Duration {
	return time.Duration(c.PageDelaySecs) * time.Second
}

// FetcherConfig selects how pages are rendered.
type FetcherConfig struct {
	Kind string `mapstructure:"kind"` // headless | static
}

// StoreConfig selects and configures the product store backend.
type StoreConfig struct {
	Kind     string         `mapstructure:"kind"` // mongo | postgres | memory
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ArchiveConfig controls raw page-HTML archiving.
type ArchiveConfig struct {
	Kind    string `mapstructure:"kind"` // none | local | gcs
	Prefix  string `mapstructure:"prefix"`
	BaseDir string `mapstructure:"base_dir"`
	Bucket  string `mapstructure:"gcs_bucket"`
}

// PublisherConfig controls run-completion event publishing.
type PublisherConfig struct {
	Kind      string `mapstructure:"kind"` // none | pubsub
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CATALOGD")
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
	v.SetDefault("server.port", 8090)
	v.SetDefault("logging.development", true)
	v.SetDefault("catalog.base_url", "https://www.abyat.com")
	v.SetDefault("catalog.category_path", "/sa/ar/category/wall_art_and_mirrors")
	v.SetDefault("catalog.marker", ".impression")
	v.SetDefault("catalog.user_agent", "abyat-catalog-bot/0.1")
	v.SetDefault("crawl.start_page", 1)
	v.SetDefault("crawl.page_load_timeout_seconds", 300)
	v.SetDefault("crawl.page_delay_seconds", 2)
	v.SetDefault("fetcher.kind", "headless")
	v.SetDefault("store.kind", "memory")
	v.SetDefault("store.mongo.database", "abyat")
	v.SetDefault("store.postgres.max_conns", 4)
	v.SetDefault("archive.kind", "none")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("publisher.kind", "none")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawl.StartPage <= 0 {
		return fmt.Errorf("crawl.start_page must be > 0")
	}
	if c.Crawl.PageLoadTimeoutSecs <= 0 {
		return fmt.Errorf("crawl.page_load_timeout_seconds must be > 0")
	}
	if c.Crawl.PageDelaySecs < 0 {
		return fmt.Errorf("crawl.page_delay_seconds must be >= 0")
	}
	switch c.Fetcher.Kind {
	case "headless", "static":
	default:
		return fmt.Errorf("unknown fetcher.kind %q", c.Fetcher.Kind)
	}
	switch c.Store.Kind {
	case "memory":
	case "mongo":
		if c.Store.Mongo.URI == "" {
			return fmt.Errorf("store.kind is 'mongo' but store.mongo.uri is not set")
		}
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.kind is 'postgres' but store.postgres.dsn is not set")
		}
	default:
		return fmt.Errorf("unknown store.kind %q", c.Store.Kind)
	}
	switch c.Archive.Kind {
	case "none":
	case "local":
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.kind is 'local' but archive.base_dir is not set")
		}
	case "gcs":
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.kind is 'gcs' but archive.gcs_bucket is not set")
		}
	default:
		return fmt.Errorf("unknown archive.kind %q", c.Archive.Kind)
	}
	switch c.Publisher.Kind {
	case "none":
	case "pubsub":
		if c.Publisher.ProjectID == "" || c.Publisher.TopicID == "" {
			return fmt.Errorf("publisher.kind is 'pubsub' but project_id or topic_id is not set")
		}
	default:
		return fmt.Errorf("unknown publisher.kind %q", c.Publisher.Kind)
	}
	return nil
}
