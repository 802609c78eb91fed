// Package app wires the vine race server runtime and gRPC lifecycle.
//
// One goroutine owns the authoritative session. Once per tick it drains the
// transport's pending events with a deadline bounded by the next tick,
// decodes whole protocol frames, feeds the session and queues its replies.
// gRPC stream goroutines and the journal worker never touch session state.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/phototropic/internal/platform/timeouts"
	"github.com/louisbranch/phototropic/internal/random"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/match"
	"github.com/louisbranch/phototropic/internal/services/vine/session"
	"github.com/louisbranch/phototropic/internal/services/vine/storage"
	vinesqlite "github.com/louisbranch/phototropic/internal/services/vine/storage/sqlite"
	"github.com/louisbranch/phototropic/internal/services/vine/transport"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// JournalDisabled as the DB path turns the match journal off.
const JournalDisabled = "-"

const tracerName = "github.com/louisbranch/phototropic/internal/services/vine/app"

// Config describes a server instance.
type Config struct {
	// Addr is the listen address, e.g. ":15466".
	Addr string
	// DBPath is the journal location; JournalDisabled turns it off.
	DBPath string
	// RateLimit caps inbound frames per second per peer; zero disables it.
	RateLimit float64
	// Tick overrides timeouts.Tick.
	Tick time.Duration
}

// Option customizes a Server beyond Config.
type Option func(*options)

type options struct {
	picker         match.Picker
	tracerProvider trace.TracerProvider
	journal        storage.Journal
}

// WithPicker replaces the seeded random target picker.
func WithPicker(p match.Picker) Option {
	return func(o *options) { o.picker = p }
}

// WithTracerProvider replaces the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithJournal writes the match journal to j instead of opening Config.DBPath.
// The caller keeps ownership of j.
func WithJournal(j storage.Journal) Option {
	return func(o *options) { o.journal = j }
}

// Server hosts the vine transport and the authoritative session loop.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	hub        *transport.Hub
	loop       *loop
	journal    *journal
	store      *vinesqlite.Store
}

// New creates a configured server listening on cfg.Addr.
func New(cfg Config, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.picker == nil {
		rng, err := random.NewRand(nil)
		if err != nil {
			return nil, fmt.Errorf("seed target picker: %w", err)
		}
		o.picker = match.NewRandomPicker(rng)
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}

	srv := &Server{listener: listener}
	var recorder session.Recorder
	switch {
	case o.journal != nil:
		srv.journal = newJournal(o.journal, 0)
	case strings.TrimSpace(cfg.DBPath) != JournalDisabled:
		store, err := openJournalStore(cfg.DBPath)
		if err != nil {
			_ = listener.Close()
			return nil, err
		}
		srv.store = store
		srv.journal = newJournal(store, 0)
	}
	if h, ok := journalHistory(srv.store, o.journal); ok {
		reportHistory(h)
	}
	if srv.journal != nil {
		recorder = srv.journal
	}

	srv.hub = transport.NewHub(transport.HubConfig{RateLimit: cfg.RateLimit})
	srv.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	srv.hub.Register(srv.grpcServer)
	srv.health = health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv.grpcServer, srv.health)
	srv.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	srv.health.SetServingStatus(transport.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	tick := cfg.Tick
	if tick <= 0 {
		tick = timeouts.Tick
	}
	sess := session.New(o.picker, session.WithRecorder(recorder))
	srv.loop = newLoop(srv.hub, sess, tick, o.tracerProvider.Tracer(tracerName))
	return srv, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a server until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve runs the gRPC server and the session loop until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("vine server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()
	if s.journal != nil {
		s.journal.start()
	}

	loopCtx, stopLoop := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		s.loop.run(loopCtx)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}
	stopLoop()
	<-loopDone

	if s.health != nil {
		s.health.Shutdown()
	}
	s.hub.Shutdown()
	if err == nil {
		s.gracefulStop()
		err = <-serveErr
	}
	if err == nil || errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return fmt.Errorf("serve gRPC: %w", err)
}

// gracefulStop waits for open streams up to timeouts.Shutdown.
func (s *Server) gracefulStop() {
	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeouts.Shutdown):
		log.Printf("graceful stop timed out after %v; forcing", timeouts.Shutdown)
		s.grpcServer.Stop()
	}
}

// Close releases server resources. Queued journal records are written first.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.hub != nil {
		s.hub.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.journal != nil {
		s.journal.close()
		s.journal = nil
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close journal store: %v", err)
		}
		s.store = nil
	}
}

// journalHistory returns the store startup reads back, if it can be read.
func journalHistory(store *vinesqlite.Store, injected storage.Journal) (journalStore, bool) {
	if store != nil {
		return store, true
	}
	h, ok := injected.(journalStore)
	return h, ok
}

func reportHistory(h journalStore) {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.JournalWrite)
	defer cancel()
	closed, summary, err := recoverHistory(ctx, h, time.Now())
	if err != nil {
		log.Printf("read match journal: %v", err)
		return
	}
	if closed > 0 {
		log.Printf("closed %d match(es) left active by a previous run", closed)
	}
	if summary != "" {
		log.Printf("%s", summary)
	}
}

func openJournalStore(path string) (*vinesqlite.Store, error) {
	if strings.TrimSpace(path) == "" {
		path = filepath.Join("data", "vine.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := vinesqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal sqlite store: %w", err)
	}
	return store, nil
}
