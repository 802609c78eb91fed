package server

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 15466 {
		t.Fatalf("expected default port 15466, got %d", cfg.Port)
	}
	if cfg.DBPath != "data/vine.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.RateLimit != 60 {
		t.Fatalf("expected default rate limit 60, got %v", cfg.RateLimit)
	}
	if got := cfg.ListenAddr(); got != ":15466" {
		t.Fatalf("listen addr = %q", got)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("PHOTOTROPIC_SERVER_DB_PATH", "-")
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-port", "9001", "-addr", "127.0.0.1:9999", "-rate-limit", "0"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9001 {
		t.Fatalf("expected port 9001, got %d", cfg.Port)
	}
	if cfg.DBPath != "-" {
		t.Fatalf("expected db path from env, got %q", cfg.DBPath)
	}
	if cfg.RateLimit != 0 {
		t.Fatalf("expected rate limit 0, got %v", cfg.RateLimit)
	}
	if got := cfg.ListenAddr(); got != "127.0.0.1:9999" {
		t.Fatalf("listen addr = %q", got)
	}
}

func TestParseConfigRejectsNegativeRateLimit(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	if _, err := ParseConfig(fs, []string{"-rate-limit", "-1"}); err == nil {
		t.Fatal("expected error")
	}
}
