// Package grpc holds gRPC client helpers shared by the vine race binaries.
package grpc

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DialStage names the step of DialWithHealth that failed.
type DialStage string

const (
	// DialStageTarget means the client could not be built for the address.
	DialStageTarget DialStage = "target"
	// DialStageHealth means the server never reported SERVING in time.
	DialStageHealth DialStage = "health"
)

// DialError reports which dial step failed.
type DialError struct {
	Addr  string
	Stage DialStage
	Err   error
}

func (e *DialError) Error() string {
	if e == nil {
		return "dial error"
	}
	return fmt.Sprintf("dial %s (%s): %v", e.Addr, e.Stage, e.Err)
}

func (e *DialError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DefaultClientDialOptions returns plaintext dial options with the OTel stats
// handler so stream traffic carries trace context when a provider is set.
func DefaultClientDialOptions() []gogrpc.DialOption {
	return []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
}

// DialWithHealth creates a client for addr and waits until service reports
// SERVING. timeout bounds the wait; the connection is closed on failure.
func DialWithHealth(ctx context.Context, addr, service string, timeout time.Duration, logf func(string, ...any), opts ...gogrpc.DialOption) (*gogrpc.ClientConn, error) {
	conn, err := gogrpc.NewClient(addr, opts...)
	if err != nil {
		return nil, &DialError{Addr: addr, Stage: DialStageTarget, Err: err}
	}

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := WaitForHealth(waitCtx, conn, service, logf); err != nil {
		_ = conn.Close()
		return nil, &DialError{Addr: addr, Stage: DialStageHealth, Err: err}
	}
	return conn, nil
}
