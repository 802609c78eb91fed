// Package cmd holds the startup plumbing shared by the vine race binaries.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/louisbranch/phototropic/internal/platform/config"
	"github.com/louisbranch/phototropic/internal/platform/otel"
	"github.com/louisbranch/phototropic/internal/platform/timeouts"
)

// Service names a binary for telemetry and its log prefix.
type Service struct {
	Name      string
	LogPrefix string
}

var (
	ServiceServer = Service{Name: "vine-server", LogPrefix: "[SERVER] "}
	ServiceClient = Service{Name: "vine-client", LogPrefix: "[CLIENT] "}
)

// ParseConfig loads environment defaults into cfg.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses command-line flags.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// RunWithTelemetry sets up tracing for svc, runs run and flushes pending
// spans before returning run's error.
func RunWithTelemetry(ctx context.Context, svc Service, run func(context.Context) error) error {
	name := strings.TrimSpace(svc.Name)
	if name == "" {
		return fmt.Errorf("service name is required")
	}
	if run == nil {
		return fmt.Errorf("run function is required")
	}

	shutdown, err := otel.Setup(ctx, name)
	if err != nil {
		return fmt.Errorf("set up telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Shutdown)
		defer cancel()
		if flushErr := shutdown(flushCtx); flushErr != nil {
			log.Printf("%s telemetry shutdown: %v", name, flushErr)
		}
	}()
	return run(ctx)
}
