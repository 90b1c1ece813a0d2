package config

import (
	"os"
	"testing"
	"time"
)

const sampleConfig = `
llm:
  base_url: https://api.example.com
  api_key: dummy
  model: gpt-4o
server:
  host: 127.0.0.1
  port: "8080"
store:
  backend: pebble
  path: /tmp/summaries
feed:
  cache_ttl: 90s
`

// TestLoad verifies that Load unmarshals a config file and keeps
// defaults for keys the file omits.
func TestLoad(t *testing.T) {
	tmp, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	if _, err := tmp.WriteString(sampleConfig); err != nil {
		t.Fatalf("write: %v", err)
	}
	tmp.Close()

	t.Setenv("CONFIG_PATH", tmp.Name())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.BaseURL != "https://api.example.com" {
		t.Fatalf("unexpected base url: %s", cfg.LLM.BaseURL)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Fatalf("unexpected model: %s", cfg.LLM.Model)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("unexpected port: %s", cfg.Server.Port)
	}
	if cfg.Store.Backend != "pebble" || cfg.Store.Path != "/tmp/summaries" {
		t.Fatalf("store not parsed: %+v", cfg.Store)
	}
	if cfg.Feed.CacheTTL != 90*time.Second {
		t.Fatalf("unexpected cache ttl: %s", cfg.Feed.CacheTTL)
	}

	// Keys absent from the file keep their defaults.
	if cfg.Hub.PollInterval != 5*time.Second {
		t.Fatalf("unexpected poll interval: %s", cfg.Hub.PollInterval)
	}
	if cfg.Hub.BatchSize != 50 {
		t.Fatalf("unexpected batch size: %d", cfg.Hub.BatchSize)
	}
	if cfg.Rate.RPS != 10 || cfg.Rate.Burst != 20 {
		t.Fatalf("unexpected rate limit: %+v", cfg.Rate)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("unexpected log level: %s", cfg.Log.Level)
	}
}
