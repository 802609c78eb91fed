// Package config loads service configuration from the process environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix namespaces every variable read by ParseEnv.
const EnvPrefix = "PHOTOTROPIC_"

// ParseEnv loads configuration from environment variables. Struct tags name
// variables without EnvPrefix; `env:"SERVER_PORT"` reads PHOTOTROPIC_SERVER_PORT.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
