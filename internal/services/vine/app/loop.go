package app

import (
	"context"
	"errors"
	"log"
	"time"

	apperrors "github.com/louisbranch/phototropic/internal/platform/errors"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/match"
	"github.com/louisbranch/phototropic/internal/services/vine/protocol"
	"github.com/louisbranch/phototropic/internal/services/vine/session"
	"github.com/louisbranch/phototropic/internal/services/vine/transport"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// hub is the slice of transport.Hub the loop drives.
type hub interface {
	Poll(timeout time.Duration, handle func(transport.Event)) int
	Send(conn transport.ConnID, data []byte) error
	Close(conn transport.ConnID, reason error)
}

type peerState struct {
	role   match.Role
	reader *protocol.Reader
}

// loop is the single owner of the session and every per-peer decoder.
type loop struct {
	hub     hub
	session *session.Session
	tick    time.Duration
	tracer  trace.Tracer

	peers map[transport.ConnID]*peerState
	conns [2]transport.ConnID
}

func newLoop(h hub, sess *session.Session, tick time.Duration, tracer trace.Tracer) *loop {
	return &loop{
		hub:     h,
		session: sess,
		tick:    tick,
		tracer:  tracer,
		peers:   make(map[transport.ConnID]*peerState),
	}
}

func (l *loop) run(ctx context.Context) {
	next := time.Now().Add(l.tick)
	for ctx.Err() == nil {
		l.hub.Poll(time.Until(next), func(ev transport.Event) { l.handle(ctx, ev) })
		if now := time.Now(); !now.Before(next) {
			next = next.Add(l.tick)
			if next.Before(now) {
				next = now.Add(l.tick)
			}
		}
	}
}

func (l *loop) handle(ctx context.Context, ev transport.Event) {
	switch ev.Kind {
	case transport.EventOpen:
		l.onOpen(ctx, ev.Conn)
	case transport.EventRecv:
		l.onRecv(ctx, ev.Conn, ev.Data)
	case transport.EventClose:
		l.onClose(ctx, ev.Conn, ev.Err)
	}
}

func (l *loop) onOpen(ctx context.Context, conn transport.ConnID) {
	_, span := l.tracer.Start(ctx, "vine.connect", trace.WithAttributes(attribute.Int64("vine.conn", int64(conn))))
	defer span.End()

	role, out, err := l.session.OnConnect()
	if err != nil {
		log.Printf("refuse connection %d: %v", conn, err)
		recordError(span, err)
		l.hub.Close(conn, err)
		return
	}
	span.SetAttributes(attribute.String("vine.role", role.String()))
	l.peers[conn] = &peerState{role: role, reader: protocol.NewReader(protocol.ToServer)}
	l.conns[role] = conn
	log.Printf("connection %d joined as %s (%s)", conn, role, role.Color())
	l.deliver(out)
}

func (l *loop) onRecv(ctx context.Context, conn transport.ConnID, data []byte) {
	peer, ok := l.peers[conn]
	if !ok {
		return
	}
	_, _ = peer.reader.Write(data)
	for {
		msg, err := peer.reader.Next()
		if errors.Is(err, protocol.ErrIncomplete) {
			return
		}
		if err != nil {
			log.Printf("malformed input from %s: %v", peer.role, err)
			l.drop(ctx, conn, err)
			return
		}
		l.dispatch(ctx, peer.role, msg)
		if _, still := l.peers[conn]; !still {
			return
		}
	}
}

func (l *loop) dispatch(ctx context.Context, role match.Role, msg protocol.Message) {
	_, span := l.tracer.Start(ctx, "vine.handle "+msg.Tag().String(), trace.WithAttributes(
		attribute.String("vine.role", role.String()),
		attribute.String("vine.tag", msg.Tag().String()),
	))
	defer span.End()

	var (
		out []session.Outbound
		err error
	)
	switch msg := msg.(type) {
	case protocol.MoveRequest:
		span.SetAttributes(attribute.String("vine.direction", msg.Direction.String()))
		out, err = l.session.OnMoveRequest(role, msg.Direction)
	case protocol.RestartRequest:
		out, err = l.session.OnRestartRequest(role)
	default:
		err = apperrors.New(apperrors.CodeMalformedMessage, "unexpected "+msg.Tag().String()+" from peer")
	}
	if err != nil {
		recordError(span, err)
		log.Printf("%s request from %s rejected: %v", msg.Tag(), role, err)
	}
	span.SetAttributes(
		attribute.String("vine.phase", l.session.Phase().String()),
		attribute.Int("vine.moves", l.session.Moves()),
	)
	l.deliver(out)
}

func (l *loop) onClose(ctx context.Context, conn transport.ConnID, reason error) {
	peer, ok := l.peers[conn]
	if !ok {
		return
	}
	if reason != nil {
		log.Printf("%s disconnected: %v", peer.role, reason)
	} else {
		log.Printf("%s disconnected", peer.role)
	}
	l.leave(ctx, conn, peer)
}

// drop closes a misbehaving peer and frees its slot right away, so bytes
// still in flight from it are never acted on.
func (l *loop) drop(ctx context.Context, conn transport.ConnID, reason error) {
	peer, ok := l.peers[conn]
	if !ok {
		return
	}
	l.hub.Close(conn, reason)
	l.leave(ctx, conn, peer)
}

func (l *loop) leave(ctx context.Context, conn transport.ConnID, peer *peerState) {
	_, span := l.tracer.Start(ctx, "vine.disconnect", trace.WithAttributes(attribute.String("vine.role", peer.role.String())))
	defer span.End()

	delete(l.peers, conn)
	l.conns[peer.role] = 0
	l.deliver(l.session.OnDisconnect(peer.role))
}

func (l *loop) deliver(out []session.Outbound) {
	for _, o := range out {
		data := protocol.Encode(o.Message)
		if role, ok := o.To.Role(); ok {
			l.send(role, data)
			continue
		}
		for _, role := range match.Roles {
			l.send(role, data)
		}
	}
}

func (l *loop) send(role match.Role, data []byte) {
	conn := l.conns[role]
	if conn == 0 {
		return
	}
	if err := l.hub.Send(conn, data); err != nil {
		log.Printf("send to %s: %v", role, err)
	}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, string(apperrors.CodeOf(err)))
}
