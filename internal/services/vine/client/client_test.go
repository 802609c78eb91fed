package client

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/louisbranch/phototropic/internal/platform/errors"
	"github.com/louisbranch/phototropic/internal/services/vine/app"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/grid"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/match"
	"github.com/louisbranch/phototropic/internal/services/vine/mirror"
	"github.com/louisbranch/phototropic/internal/services/vine/transport"
)

// Second-mover target (0,2,0) is two Left moves from the origin.
var testTargets = match.Targets{
	{Lateral: 2, Height: 4},
	{Lateral: 2, Height: 0},
}

type fakeConn struct {
	inbound [][]byte
	sent    []string
	err     error
	closed  bool
}

func (c *fakeConn) Send(data []byte) error {
	if c.closed {
		return transport.ErrClosed
	}
	c.sent = append(c.sent, string(data))
	return nil
}

func (c *fakeConn) Poll(_ time.Duration, handle func([]byte)) error {
	for _, chunk := range c.inbound {
		handle(chunk)
	}
	c.inbound = nil
	return c.err
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConn) push(raw string) {
	c.inbound = append(c.inbound, []byte(raw))
}

func TestKeyIntent(t *testing.T) {
	tests := []struct {
		key  rune
		want Intent
	}{
		{'a', Move(grid.Left)},
		{'D', Move(grid.Right)},
		{'w', Move(grid.Up)},
		{'s', Move(grid.Down)},
		{'e', Move(grid.Forward)},
		{'q', Move(grid.Back)},
		{'r', Restart()},
		{KeyEscape, Quit()},
	}
	for _, tt := range tests {
		got, ok := KeyIntent(tt.key)
		if !ok || got != tt.want {
			t.Errorf("KeyIntent(%q) = %+v, %v; want %+v", tt.key, got, ok, tt.want)
		}
	}
	if _, ok := KeyIntent('x'); ok {
		t.Fatal("unbound key produced an intent")
	}
}

func TestIntentQueueDropsWhenFull(t *testing.T) {
	q := NewIntentQueue(1)
	if !q.Push(Restart()) {
		t.Fatal("first push dropped")
	}
	if q.Push(Quit()) {
		t.Fatal("push into full queue accepted")
	}
	if got, ok := q.NextIntent(); !ok || got != Restart() {
		t.Fatalf("next = %+v, %v", got, ok)
	}
	if _, ok := q.NextIntent(); ok {
		t.Fatal("queue not empty")
	}
}

func TestStepAppliesServerMessagesThenIntents(t *testing.T) {
	conn := &fakeConn{}
	intents := NewIntentQueue(0)
	c := New(conn, nil, intents)

	// Handshake and Go split across chunks.
	conn.push("H0G24")
	conn.push("0200")
	intents.Push(Move(grid.Down))
	intents.Push(Move(grid.Left))
	if err := c.Step(0); err != nil {
		t.Fatalf("step: %v", err)
	}

	v := c.Snapshot()
	if !v.HasRole || v.Role != match.RoleFirst || v.Phase != match.PhaseActive || v.Targets != testTargets {
		t.Fatalf("view = %+v", v)
	}
	// Down from z=0 fails the local pre-check and is never sent.
	if len(conn.sent) != 1 || conn.sent[0] != "ML" {
		t.Fatalf("sent = %q, want [ML]", conn.sent)
	}

	conn.push("P")
	if err := c.Step(0); err != nil {
		t.Fatalf("step: %v", err)
	}
	conn.push("L")
	if err := c.Step(0); err != nil {
		t.Fatalf("step: %v", err)
	}
	if v := c.Snapshot(); len(v.Segments) != 1 || v.MyTurn {
		t.Fatalf("view after P = %+v", v)
	}
}

func TestStepQuit(t *testing.T) {
	intents := NewIntentQueue(0)
	intents.Push(Quit())
	c := New(&fakeConn{}, nil, intents)
	if err := c.Step(0); !errors.Is(err, ErrQuit) {
		t.Fatalf("err = %v, want ErrQuit", err)
	}
}

func TestStepReportsLostConnection(t *testing.T) {
	conn := &fakeConn{err: transport.ErrClosed}
	conn.push("H1")
	c := New(conn, nil, nil)

	err := c.Step(0)
	if code := apperrors.CodeOf(err); code != apperrors.CodePeerDisconnected {
		t.Fatalf("err = %v, want %s", err, apperrors.CodePeerDisconnected)
	}
	if !errors.Is(err, transport.ErrClosed) {
		t.Fatalf("err = %v, want it to wrap ErrClosed", err)
	}
	// Bytes that arrived before the close are still applied.
	if v := c.Snapshot(); !v.HasRole || v.Role != match.RoleSecond {
		t.Fatalf("view = %+v", v)
	}
}

func TestStepRejectsMalformedStream(t *testing.T) {
	conn := &fakeConn{}
	conn.push("M")
	c := New(conn, nil, nil)
	if code := apperrors.CodeOf(c.Step(0)); code != apperrors.CodeMalformedMessage {
		t.Fatalf("code = %s, want %s", code, apperrors.CodeMalformedMessage)
	}
}

func TestStepRejectsDivergentPlacement(t *testing.T) {
	conn := &fakeConn{}
	// P before G cannot be applied to a waiting replica.
	conn.push("H0PL")
	c := New(conn, nil, nil)
	if code := apperrors.CodeOf(c.Step(0)); code != apperrors.CodeMalformedMessage {
		t.Fatalf("code = %s, want %s", code, apperrors.CodeMalformedMessage)
	}
}

func TestRunReturnsNilOnQuit(t *testing.T) {
	intents := NewIntentQueue(0)
	c := New(&fakeConn{}, nil, intents)
	frames := 0
	err := c.Run(context.Background(), time.Millisecond, func(mirror.View) {
		frames++
		if frames == 3 {
			intents.Push(Quit())
		}
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if frames != 3 {
		t.Fatalf("frames = %d, want 3", frames)
	}
}

func TestClientsPlayAgainstServer(t *testing.T) {
	srv, err := app.New(app.Config{Addr: "127.0.0.1:0", DBPath: app.JournalDisabled, Tick: 5 * time.Millisecond},
		app.WithPicker(fixedPicker{targets: testTargets}))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-serveErr
	})

	first, firstIntents := dialClient(t, srv.Addr())
	waitFor(t, func(v mirror.View) bool { return v.HasRole }, first)
	second, secondIntents := dialClient(t, srv.Addr())
	waitFor(t, func(v mirror.View) bool { return v.Phase == match.PhaseActive }, first, second)

	firstIntents.Push(Move(grid.Left))
	waitFor(t, func(v mirror.View) bool { return len(v.Segments) == 1 }, first, second)
	secondIntents.Push(Move(grid.Left))
	waitFor(t, func(v mirror.View) bool { return v.Phase == match.PhaseFinished }, first, second)

	if v := second.Snapshot(); !v.Won() {
		t.Fatalf("second view = %+v, want a win", v)
	}
	if v := first.Snapshot(); v.Won() || !v.HasWinner {
		t.Fatalf("first view = %+v, want a loss", v)
	}

	firstIntents.Push(Restart())
	waitFor(t, func(v mirror.View) bool { return v.Phase == match.PhaseActive && len(v.Segments) == 0 }, first, second)

	_ = second.Close()
	waitFor(t, func(v mirror.View) bool { return v.Phase == match.PhaseWaiting }, first)
}

type fixedPicker struct {
	targets match.Targets
}

func (p fixedPicker) Pick(role match.Role) match.Target { return p.targets[role] }

func dialClient(t *testing.T, addr string) (*Client, *IntentQueue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	intents := NewIntentQueue(0)
	c, err := Dial(ctx, addr, nil, intents)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, intents
}

// waitFor steps every client until cond holds for all of them.
func waitFor(t *testing.T, cond func(mirror.View) bool, clients ...*Client) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		met := true
		for _, c := range clients {
			if err := c.Step(10 * time.Millisecond); err != nil {
				t.Fatalf("step: %v", err)
			}
			if !cond(c.Snapshot()) {
				met = false
			}
		}
		if met {
			return
		}
	}
	for i, c := range clients {
		t.Logf("client %d view = %+v", i, c.Snapshot())
	}
	t.Fatal("condition not met")
}
