package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AGENT_CONFIG_FILE", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.Depth != 4 || !cfg.Search.MoveOrdering || !cfg.Search.Quiescence || cfg.Search.QuiescenceChecks {
		t.Fatalf("unexpected search defaults: %+v", cfg.Search)
	}
	if cfg.Search.MaxQuiescencePly != 32 || !cfg.Search.MopUp {
		t.Fatalf("unexpected quiescence defaults: %+v", cfg.Search)
	}
	opts := cfg.Search.EngineOptions()
	if !opts.Eval.MopUp || opts.MaxQuiescencePly != 32 {
		t.Fatalf("engine options = %+v", opts)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	body := []byte(`
search:
  depth: 3
  quiescence_checks: true
cache:
  redis_url: redis://file:6379/0
  ttl_sec: 60
match:
  opponent: remote
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("AGENT_CONFIG_FILE", path)
	t.Setenv("AGENT_DEPTH", "5")
	t.Setenv("REDIS_URL", "  redis://env:6379/1 ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.Depth != 5 {
		t.Fatalf("env should override file depth, got %d", cfg.Search.Depth)
	}
	if !cfg.Search.QuiescenceChecks || !cfg.Search.MoveOrdering {
		t.Fatalf("file values lost: %+v", cfg.Search)
	}
	if cfg.Cache.RedisURL != "redis://env:6379/1" {
		t.Fatalf("redis url = %q", cfg.Cache.RedisURL)
	}
	if cfg.Cache.TTL() != time.Minute {
		t.Fatalf("ttl = %v", cfg.Cache.TTL())
	}
	if cfg.Match.Opponent != "remote" {
		t.Fatalf("opponent = %q", cfg.Match.Opponent)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"zero depth", func(c *AppConfig) { c.Search.Depth = 0 }},
		{"negative qply", func(c *AppConfig) { c.Search.MaxQuiescencePly = -1 }},
		{"unbounded checks", func(c *AppConfig) { c.Search.QuiescenceChecks = true; c.Search.MaxQuiescencePly = 0 }},
		{"opponent", func(c *AppConfig) { c.Match.Opponent = "stockfish" }},
		{"color", func(c *AppConfig) { c.Match.AgentColor = "green" }},
		{"uci without path", func(c *AppConfig) { c.Match.Opponent = "uci" }},
		{"uci without limits", func(c *AppConfig) {
			c.Match.Opponent = "uci"
			c.UCI.Path = "/usr/bin/stockfish"
			c.UCI.MoveTimeMS = 0
		}},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestBadFile(t *testing.T) {
	t.Setenv("AGENT_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidateUCI(t *testing.T) {
	cfg := Default()
	cfg.Match.Opponent = "uci"
	cfg.UCI.Path = "/usr/bin/stockfish"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
