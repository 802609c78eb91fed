// Package server parses vine server flags and starts the authoritative
// session runtime.
package server

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/louisbranch/phototropic/internal/platform/cmd"
	"github.com/louisbranch/phototropic/internal/services/vine/app"
)

// Config holds server command configuration.
type Config struct {
	Port      int     `env:"SERVER_PORT" envDefault:"15466"`
	Addr      string  `env:"SERVER_ADDR"`
	DBPath    string  `env:"SERVER_DB_PATH" envDefault:"data/vine.db"`
	RateLimit float64 `env:"SERVER_RATE_LIMIT" envDefault:"60"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The vine server port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The vine server listen address (overrides -port)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Match journal SQLite path, or - to disable it")
	fs.Float64Var(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "Inbound frames per second per peer, 0 for unlimited")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit < 0 {
		return Config{}, fmt.Errorf("rate limit must not be negative, got %v", cfg.RateLimit)
	}
	return cfg, nil
}

// ListenAddr resolves the address to listen on.
func (c Config) ListenAddr() string {
	if c.Addr != "" {
		return c.Addr
	}
	return fmt.Sprintf(":%d", c.Port)
}

// Run starts the vine server.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(ctx context.Context) error {
		return app.Run(ctx, app.Config{
			Addr:      cfg.ListenAddr(),
			DBPath:    cfg.DBPath,
			RateLimit: cfg.RateLimit,
		})
	})
}
