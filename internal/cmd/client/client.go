// Package client parses vine client flags, connects to a server and runs the
// chosen renderer.
package client

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	entrypoint "github.com/louisbranch/phototropic/internal/platform/cmd"
	vineclient "github.com/louisbranch/phototropic/internal/services/vine/client"
	"github.com/louisbranch/phototropic/internal/services/vine/i18n"
	"github.com/louisbranch/phototropic/internal/services/vine/render/ebitenview"
	"github.com/louisbranch/phototropic/internal/services/vine/render/termview"
)

// Renderer names accepted by -renderer.
const (
	RendererWindow = "window"
	RendererTerm   = "term"
)

// Config holds client command configuration.
type Config struct {
	Server   string `env:"CLIENT_SERVER" envDefault:"localhost:15466"`
	Renderer string `env:"CLIENT_RENDERER" envDefault:"window"`
	Locale   string `env:"CLIENT_LOCALE" envDefault:"en-US"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Server, "server", cfg.Server, "The vine server address")
	fs.StringVar(&cfg.Renderer, "renderer", cfg.Renderer, "Renderer: window or term")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "Locale for status text, e.g. en-US or pt-BR")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	cfg.Server = strings.TrimSpace(cfg.Server)
	cfg.Renderer = strings.ToLower(strings.TrimSpace(cfg.Renderer))
	if cfg.Server == "" {
		return Config{}, fmt.Errorf("server address is required")
	}
	switch cfg.Renderer {
	case RendererWindow, RendererTerm:
	default:
		return Config{}, fmt.Errorf("unknown renderer %q (want %s or %s)", cfg.Renderer, RendererWindow, RendererTerm)
	}
	return cfg, nil
}

// Run connects to the server and plays until the player quits or ctx ends.
// A lost connection is returned as a PEER_DISCONNECTED error.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceClient, func(ctx context.Context) error {
		printer := i18n.NewPrinter(cfg.Locale)
		log.Printf("connecting to %s (locale %s)", cfg.Server, printer.Tag())
		intents := vineclient.NewIntentQueue(0)

		switch cfg.Renderer {
		case RendererTerm:
			view := termview.New(printer)
			c, err := vineclient.Dial(ctx, cfg.Server, view, intents)
			if err != nil {
				return err
			}
			defer c.Close()
			return termview.Run(ctx, c, intents, view)
		default:
			game := ebitenview.New(printer, intents)
			c, err := vineclient.Dial(ctx, cfg.Server, game, intents)
			if err != nil {
				return err
			}
			defer c.Close()
			return game.Run(ctx, c)
		}
	})
}
