package config

import (
	"fmt"
	"os"
)

// Process exit statuses used by the vine binaries.
const (
	ExitFailure = 1
	// ExitDisconnected means the client lost its server connection.
	ExitDisconnected = 3
)

// Exitf writes a formatted message to stderr and exits with status.
func Exitf(status int, format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(status)
}
