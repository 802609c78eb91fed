package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	apperrors "github.com/louisbranch/phototropic/internal/platform/errors"
	"golang.org/x/time/rate"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ConnID identifies one accepted stream for the hub's lifetime.
type ConnID uint64

// EventKind classifies a hub event.
type EventKind uint8

const (
	// EventOpen reports a new peer stream.
	EventOpen EventKind = iota + 1
	// EventRecv carries bytes received from a peer.
	EventRecv
	// EventClose reports that a peer stream ended. It is the last event for
	// that connection.
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventRecv:
		return "recv"
	case EventClose:
		return "close"
	default:
		return fmt.Sprintf("event(%d)", uint8(k))
	}
}

// Event is one transport occurrence delivered by Poll.
type Event struct {
	Kind EventKind
	Conn ConnID
	Data []byte
	// Err is the reason for EventClose; nil for an orderly client close.
	Err error
}

// HubConfig tunes a Hub.
type HubConfig struct {
	// RateLimit caps inbound frames per second per peer; zero disables it.
	RateLimit float64
	// Burst is the limiter bucket size; defaults to RateLimit rounded up.
	Burst int
	// SendQueue bounds queued outbound chunks per peer.
	SendQueue int
	// EventQueue bounds events waiting for Poll.
	EventQueue int
}

const (
	defaultSendQueue  = 64
	defaultEventQueue = 256
)

// Hub is the server side of the transport. Stream goroutines only move bytes
// between gRPC and channels; all interpretation happens in the goroutine that
// calls Poll.
type Hub struct {
	cfg      HubConfig
	events   chan Event
	stop     chan struct{}
	stopOnce sync.Once

	mu    sync.Mutex
	next  ConnID
	peers map[ConnID]*peer
}

type peer struct {
	id      ConnID
	out     chan []byte
	done    chan struct{}
	once    sync.Once
	reason  error
	limiter *rate.Limiter
}

// NewHub returns a hub ready to be registered on a gRPC server.
func NewHub(cfg HubConfig) *Hub {
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = defaultSendQueue
	}
	if cfg.EventQueue <= 0 {
		cfg.EventQueue = defaultEventQueue
	}
	if cfg.RateLimit > 0 && cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RateLimit + 0.5)
		if cfg.Burst < 1 {
			cfg.Burst = 1
		}
	}
	return &Hub{
		cfg:    cfg,
		events: make(chan Event, cfg.EventQueue),
		stop:   make(chan struct{}),
		peers:  make(map[ConnID]*peer),
	}
}

// Register installs the hub's stream service on server.
func (h *Hub) Register(server gogrpc.ServiceRegistrar) {
	server.RegisterService(&serviceDesc, h)
}

// Poll waits up to timeout for the first event, then hands it and every
// already queued event to handle. Bytes from a stream that has already gone
// are dropped. It returns the number of events handled.
func (h *Hub) Poll(timeout time.Duration, handle func(Event)) int {
	if timeout < 0 {
		timeout = 0
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	n := 0
	select {
	case ev := <-h.events:
		n += h.dispatch(ev, handle)
	case <-timer.C:
		return 0
	}
	for {
		select {
		case ev := <-h.events:
			n += h.dispatch(ev, handle)
		default:
			return n
		}
	}
}

func (h *Hub) dispatch(ev Event, handle func(Event)) int {
	if ev.Kind == EventRecv {
		if _, ok := h.lookup(ev.Conn); !ok {
			return 0
		}
	}
	handle(ev)
	return 1
}

// Shutdown closes every stream and stops queuing events. Streams opened
// afterwards are refused.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() { close(h.stop) })
	h.mu.Lock()
	peers := make([]*peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()
	for _, p := range peers {
		p.close(nil)
	}
}

// Send queues data for conn. It never blocks: a peer whose queue is full is
// closed, since it can no longer be kept in sync.
func (h *Hub) Send(conn ConnID, data []byte) error {
	p, ok := h.lookup(conn)
	if !ok {
		return ErrClosed
	}
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	chunk := append([]byte(nil), data...)
	select {
	case p.out <- chunk:
		return nil
	default:
		err := apperrors.New(apperrors.CodePeerDisconnected, fmt.Sprintf("send queue full for connection %d", conn))
		h.Close(conn, err)
		return err
	}
}

// Close ends conn's stream. A domain error is reported to the peer as its
// gRPC status.
func (h *Hub) Close(conn ConnID, reason error) {
	p, ok := h.lookup(conn)
	if !ok {
		return
	}
	p.close(reason)
}

// Conns returns the number of open streams.
func (h *Hub) Conns() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *Hub) lookup(conn ConnID) (*peer, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.peers[conn]
	return p, ok
}

func (h *Hub) register() *peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	p := &peer{
		id:   h.next,
		out:  make(chan []byte, h.cfg.SendQueue),
		done: make(chan struct{}),
	}
	if h.cfg.RateLimit > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(h.cfg.RateLimit), h.cfg.Burst)
	}
	h.peers[p.id] = p
	return p
}

func (h *Hub) unregister(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, p.id)
}

func (h *Hub) emit(ctx context.Context, ev Event) bool {
	select {
	case h.events <- ev:
		return true
	case <-ctx.Done():
		return false
	case <-h.stop:
		return false
	}
}

func (h *Hub) serveStream(stream gogrpc.ServerStream) error {
	ctx := stream.Context()
	select {
	case <-h.stop:
		return apperrors.New(apperrors.CodePeerDisconnected, "server shutting down").ToGRPCStatus()
	default:
	}
	p := h.register()

	if !h.emit(ctx, Event{Kind: EventOpen, Conn: p.id}) {
		h.unregister(p)
		return ctx.Err()
	}

	recvErr := make(chan error, 1)
	go func() {
		recvErr <- h.recvLoop(ctx, stream, p)
	}()

	var closeErr error
	sending := true
	for sending {
		select {
		case chunk := <-p.out:
			if err := stream.SendMsg(wrapperspb.Bytes(chunk)); err != nil {
				closeErr = err
				sending = false
			}
		case <-p.done:
			h.flush(stream, p)
			closeErr = p.reason
			sending = false
		case err := <-recvErr:
			closeErr = err
			sending = false
		case <-ctx.Done():
			closeErr = ctx.Err()
			sending = false
		}
	}
	p.close(closeErr)
	h.unregister(p)
	h.emit(context.Background(), Event{Kind: EventClose, Conn: p.id, Err: closeErr})

	var domainErr *apperrors.Error
	if errors.As(closeErr, &domainErr) {
		return domainErr.ToGRPCStatus()
	}
	return nil
}

func (h *Hub) recvLoop(ctx context.Context, stream gogrpc.ServerStream, p *peer) error {
	for {
		frame := new(wrapperspb.BytesValue)
		if err := stream.RecvMsg(frame); err != nil {
			return orderlyClose(err)
		}
		if p.limiter != nil && !p.limiter.Allow() {
			err := apperrors.New(apperrors.CodeRateLimited, fmt.Sprintf("connection %d exceeded %.0f frames/s", p.id, h.cfg.RateLimit))
			p.close(err)
			return err
		}
		if len(frame.GetValue()) == 0 {
			continue
		}
		if !h.emit(ctx, Event{Kind: EventRecv, Conn: p.id, Data: frame.GetValue()}) {
			return ctx.Err()
		}
	}
}

// flush writes chunks queued before a server-side close, so a final
// rejection or Waiting reaches the peer ahead of the status.
func (h *Hub) flush(stream gogrpc.ServerStream, p *peer) {
	for {
		select {
		case chunk := <-p.out:
			if err := stream.SendMsg(wrapperspb.Bytes(chunk)); err != nil {
				return
			}
		default:
			return
		}
	}
}

// orderlyClose maps the client's half-close to a nil reason.
func orderlyClose(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (p *peer) close(reason error) {
	p.once.Do(func() {
		p.reason = reason
		close(p.done)
	})
}
