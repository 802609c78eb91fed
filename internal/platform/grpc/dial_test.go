package grpc

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func TestDialWithHealthSuccess(t *testing.T) {
	addr, _, stop := startHealthServer(t, grpc_health_v1.HealthCheckResponse_SERVING)
	defer stop()

	conn, err := DialWithHealth(context.Background(), addr, "", time.Second, nil, DefaultClientDialOptions()...)
	if err != nil {
		t.Fatalf("dial with health: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close conn: %v", err)
	}
}

func TestDialWithHealthErrorStages(t *testing.T) {
	t.Run("target", func(t *testing.T) {
		// No transport credentials: the client cannot be built.
		_, err := DialWithHealth(context.Background(), "127.0.0.1:1", "", time.Second, nil)
		var dialErr *DialError
		if !errors.As(err, &dialErr) {
			t.Fatalf("expected DialError, got %T", err)
		}
		if dialErr.Stage != DialStageTarget {
			t.Fatalf("stage = %q, want %q", dialErr.Stage, DialStageTarget)
		}
	})

	t.Run("health", func(t *testing.T) {
		addr, _, stop := startHealthServer(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		defer stop()

		conn, err := DialWithHealth(context.Background(), addr, "", 300*time.Millisecond, nil, DefaultClientDialOptions()...)
		if conn != nil {
			_ = conn.Close()
			t.Fatal("expected nil connection on error")
		}
		var dialErr *DialError
		if !errors.As(err, &dialErr) {
			t.Fatalf("expected DialError, got %T", err)
		}
		if dialErr.Stage != DialStageHealth {
			t.Fatalf("stage = %q, want %q", dialErr.Stage, DialStageHealth)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline in chain, got %v", err)
		}
	})
}

func TestDialErrorFormatting(t *testing.T) {
	err := &DialError{Addr: "localhost:15466", Stage: DialStageHealth, Err: errors.New("boom")}
	if got := err.Error(); !strings.Contains(got, "localhost:15466 (health)") {
		t.Fatalf("error = %q", got)
	}

	var nilErr *DialError
	if nilErr.Error() == "" || nilErr.Unwrap() != nil {
		t.Fatal("nil DialError should format and unwrap to nil")
	}
}
