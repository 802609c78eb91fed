package app

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/louisbranch/phototropic/internal/platform/errors"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/grid"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/match"
	"github.com/louisbranch/phototropic/internal/services/vine/protocol"
	"github.com/louisbranch/phototropic/internal/services/vine/session"
	"github.com/louisbranch/phototropic/internal/services/vine/transport"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// Second-mover target (0,2,0) is two Left moves from the origin.
var testTargets = match.Targets{
	{Lateral: 2, Height: 4},
	{Lateral: 2, Height: 0},
}

type fixedPicker struct {
	targets match.Targets
}

func (p fixedPicker) Pick(role match.Role) match.Target { return p.targets[role] }

type fakeHub struct {
	sent   map[transport.ConnID][]byte
	closed map[transport.ConnID]error
}

func newFakeHub() *fakeHub {
	return &fakeHub{
		sent:   make(map[transport.ConnID][]byte),
		closed: make(map[transport.ConnID]error),
	}
}

func (h *fakeHub) Poll(time.Duration, func(transport.Event)) int { return 0 }

func (h *fakeHub) Send(conn transport.ConnID, data []byte) error {
	if _, ok := h.closed[conn]; ok {
		return transport.ErrClosed
	}
	h.sent[conn] = append(h.sent[conn], data...)
	return nil
}

func (h *fakeHub) Close(conn transport.ConnID, reason error) {
	h.closed[conn] = reason
}

// take decodes and clears everything sent to conn.
func (h *fakeHub) take(t *testing.T, conn transport.ConnID) []protocol.Message {
	t.Helper()
	msgs, err := protocol.DecodeAll(protocol.ToClient, h.sent[conn])
	if err != nil {
		t.Fatalf("decode output for %d: %v", conn, err)
	}
	delete(h.sent, conn)
	return msgs
}

type loopFixture struct {
	loop  *loop
	hub   *fakeHub
	spans *tracetest.SpanRecorder
}

func newLoopFixture(t *testing.T) *loopFixture {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	hub := newFakeHub()
	sess := session.New(fixedPicker{targets: testTargets})
	return &loopFixture{
		loop:  newLoop(hub, sess, time.Millisecond, tp.Tracer("test")),
		hub:   hub,
		spans: spans,
	}
}

func (f *loopFixture) open(conn transport.ConnID) {
	f.loop.handle(context.Background(), transport.Event{Kind: transport.EventOpen, Conn: conn})
}

func (f *loopFixture) recv(conn transport.ConnID, data string) {
	f.loop.handle(context.Background(), transport.Event{Kind: transport.EventRecv, Conn: conn, Data: []byte(data)})
}

func (f *loopFixture) closeConn(conn transport.ConnID) {
	f.loop.handle(context.Background(), transport.Event{Kind: transport.EventClose, Conn: conn})
}

// started connects conns 1 and 2 and discards their opening messages.
func (f *loopFixture) started(t *testing.T) {
	t.Helper()
	f.open(1)
	f.open(2)
	f.hub.take(t, 1)
	f.hub.take(t, 2)
}

func assertMessages(t *testing.T, got []protocol.Message, want ...protocol.Message) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("messages = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("message %d = %#v, want %#v", i, got[i], want[i])
		}
	}
}

func TestLoopStartsMatchOnSecondConnect(t *testing.T) {
	t.Parallel()

	f := newLoopFixture(t)
	f.open(1)
	assertMessages(t, f.hub.take(t, 1), protocol.Handshake{Role: match.RoleFirst})

	f.open(2)
	assertMessages(t, f.hub.take(t, 1), protocol.Go{Targets: testTargets})
	assertMessages(t, f.hub.take(t, 2), protocol.Handshake{Role: match.RoleSecond}, protocol.Go{Targets: testTargets})
	if got := f.loop.session.Phase(); got != match.PhaseActive {
		t.Fatalf("phase = %v, want active", got)
	}
}

func TestLoopRefusesThirdConnection(t *testing.T) {
	t.Parallel()

	f := newLoopFixture(t)
	f.started(t)
	f.open(3)

	if code := apperrors.CodeOf(f.hub.closed[3]); code != apperrors.CodeSessionFull {
		t.Fatalf("close reason = %v, want %s", f.hub.closed[3], apperrors.CodeSessionFull)
	}
	if len(f.hub.sent[3]) != 0 {
		t.Fatalf("refused connection was sent %q", f.hub.sent[3])
	}
	assertMessages(t, f.hub.take(t, 1))
}

func TestLoopRelaysMovesAndRejections(t *testing.T) {
	t.Parallel()

	f := newLoopFixture(t)
	f.started(t)

	f.recv(2, "ML")
	assertMessages(t, f.hub.take(t, 2), protocol.Rejected{Reason: protocol.ReasonNotYourTurn})
	assertMessages(t, f.hub.take(t, 1))

	f.recv(1, "ML")
	f.recv(2, "ML")
	want := []protocol.Message{
		protocol.Placed{Direction: grid.Left},
		protocol.Placed{Direction: grid.Left},
		protocol.Finished{Winner: match.RoleSecond, HasWinner: true},
	}
	assertMessages(t, f.hub.take(t, 1), want...)
	assertMessages(t, f.hub.take(t, 2), want...)

	f.recv(2, "R")
	assertMessages(t, f.hub.take(t, 1), protocol.Restarted{Targets: testTargets})
	assertMessages(t, f.hub.take(t, 2), protocol.Restarted{Targets: testTargets})
}

func TestLoopReassemblesSplitFrames(t *testing.T) {
	t.Parallel()

	f := newLoopFixture(t)
	f.started(t)

	f.recv(1, "M")
	assertMessages(t, f.hub.take(t, 1))
	f.recv(1, "UM")
	assertMessages(t, f.hub.take(t, 1), protocol.Placed{Direction: grid.Up})
	assertMessages(t, f.hub.take(t, 2), protocol.Placed{Direction: grid.Up})

	// The trailing M from conn 1 waits for its payload; conn 2 has its own
	// buffer.
	f.recv(2, "MF")
	assertMessages(t, f.hub.take(t, 1), protocol.Placed{Direction: grid.Forward})
	assertMessages(t, f.hub.take(t, 2), protocol.Placed{Direction: grid.Forward})
	if got := f.loop.peers[1].reader.Buffered(); got != 1 {
		t.Fatalf("conn 1 buffered = %d, want 1", got)
	}
}

func TestLoopDropsMalformedPeer(t *testing.T) {
	t.Parallel()

	f := newLoopFixture(t)
	f.started(t)

	// The valid frame ahead of the garbage is still applied.
	f.recv(1, "MLZML")
	assertMessages(t, f.hub.take(t, 1), protocol.Placed{Direction: grid.Left})
	assertMessages(t, f.hub.take(t, 2), protocol.Placed{Direction: grid.Left}, protocol.Waiting{})
	if code := apperrors.CodeOf(f.hub.closed[1]); code != apperrors.CodeMalformedMessage {
		t.Fatalf("close reason = %v, want %s", f.hub.closed[1], apperrors.CodeMalformedMessage)
	}
	if got := f.loop.session.Phase(); got != match.PhaseWaiting {
		t.Fatalf("phase = %v, want waiting", got)
	}

	// Late traffic and the stream's own close event are ignored.
	f.recv(1, "ML")
	f.closeConn(1)
	assertMessages(t, f.hub.take(t, 2))

	f.open(3)
	assertMessages(t, f.hub.take(t, 3), protocol.Handshake{Role: match.RoleFirst}, protocol.Go{Targets: testTargets})
	assertMessages(t, f.hub.take(t, 2), protocol.Go{Targets: testTargets})
}

func TestLoopDisconnectNotifiesRemainingPeer(t *testing.T) {
	t.Parallel()

	f := newLoopFixture(t)
	f.started(t)

	f.closeConn(2)
	assertMessages(t, f.hub.take(t, 1), protocol.Waiting{})
	if got := f.loop.session.Connected(); got != 1 {
		t.Fatalf("connected = %d, want 1", got)
	}

	f.open(4)
	assertMessages(t, f.hub.take(t, 4), protocol.Handshake{Role: match.RoleSecond}, protocol.Go{Targets: testTargets})
}

func TestLoopTracesRequests(t *testing.T) {
	t.Parallel()

	f := newLoopFixture(t)
	f.started(t)
	f.recv(2, "ML")
	f.recv(1, "MU")

	var handled []sdktrace.ReadOnlySpan
	for _, span := range f.spans.Ended() {
		if span.Name() == "vine.handle M" {
			handled = append(handled, span)
		}
	}
	if len(handled) != 2 {
		t.Fatalf("handle spans = %d, want 2", len(handled))
	}
	if status := handled[0].Status(); status.Code != otelcodes.Error || status.Description != string(apperrors.CodeNotYourTurn) {
		t.Fatalf("rejected span status = %+v", status)
	}
	if status := handled[1].Status(); status.Code == otelcodes.Error {
		t.Fatalf("accepted span status = %+v", status)
	}

	attrs := map[string]string{}
	for _, kv := range handled[1].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["vine.role"] != match.RoleFirst.String() || attrs["vine.direction"] != grid.Up.String() || attrs["vine.moves"] != "1" {
		t.Fatalf("accepted span attributes = %v", attrs)
	}
}

func TestLoopRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	f := newLoopFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.loop.run(ctx)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}
