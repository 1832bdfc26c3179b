package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8090 {
		t.Errorf("server port = %d, want 8090", cfg.Server.Port)
	}
	if cfg.Store.Kind != "memory" || cfg.Fetcher.Kind != "headless" {
		t.Errorf("unexpected provider defaults: store=%q fetcher=%q", cfg.Store.Kind, cfg.Fetcher.Kind)
	}
	if cfg.Catalog.Marker != ".impression" {
		t.Errorf("marker = %q", cfg.Catalog.Marker)
	}
	if got := cfg.Crawl.PageLoadTimeout().Seconds(); got != 300 {
		t.Errorf("page load timeout = %vs, want 300s", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalogd.yaml")
	body := []byte(`
server:
  port: 9000
store:
  kind: mongo
  mongo:
    uri: mongodb://localhost:27017
crawl:
  start_page: 3
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9000 || cfg.Store.Kind != "mongo" || cfg.Crawl.StartPage != 3 {
		t.Fatalf("config not applied: %+v", cfg)
	}
	if cfg.Store.Mongo.Database != "abyat" {
		t.Fatalf("default database lost: %q", cfg.Store.Mongo.Database)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	base := func() Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"zero start page", func(c *Config) { c.Crawl.StartPage = 0 }},
		{"unknown fetcher", func(c *Config) { c.Fetcher.Kind = "puppeteer" }},
		{"mongo without uri", func(c *Config) { c.Store.Kind = "mongo" }},
		{"postgres without dsn", func(c *Config) { c.Store.Kind = "postgres" }},
		{"gcs without bucket", func(c *Config) { c.Archive.Kind = "gcs" }},
		{"pubsub without topic", func(c *Config) { c.Publisher.Kind = "pubsub" }},
		{"unknown store", func(c *Config) { c.Store.Kind = "dynamo" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestPageURL(t *testing.T) {
	t.Parallel()

	c := CatalogConfig{BaseURL: "https://www.abyat.com", CategoryPath: "/sa/ar/category/wall_art_and_mirrors"}
	want := "https://www.abyat.com/sa/ar/category/wall_art_and_mirrors?page=4"
	if got := c.PageURL(4); got != want {
		t.Fatalf("PageURL(4) = %q, want %q", got, want)
	}
}
