// Package mirror keeps a client's replica of the authoritative game.
//
// The Mirror only changes state in response to server messages. Local
// requests are pre-checked against the replica and sent to the server, which
// answers with a confirmation or a rejection; the replica waits for that
// answer. Render goroutines read through Snapshot.
package mirror

import (
	"fmt"
	"log"
	"sync"

	apperrors "github.com/louisbranch/phototropic/internal/platform/errors"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/grid"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/match"
	"github.com/louisbranch/phototropic/internal/services/vine/protocol"
)

// Sender delivers a request to the server.
type Sender interface {
	Send(msg protocol.Message) error
}

// Segment is one confirmed vine segment.
type Segment struct {
	// Index is 1-based; segment N is the Nth accepted move of the game.
	Index     int
	Role      match.Role
	Direction grid.Direction
	Cell      grid.Cell
	Rotation  grid.Rotation
}

// Scene receives visual instructions for confirmed state. Calls are made
// without the mirror lock held.
type Scene interface {
	PlaceSegment(seg Segment)
	PlaceTargets(targets match.Targets)
	ClearSegments()
}

// Mirror is the client-side replica.
type Mirror struct {
	mu      sync.Mutex
	sender  Sender
	scene   Scene
	machine *match.Machine

	role     match.Role
	hasRole  bool
	segments []Segment

	rejection    protocol.Reason
	hasRejection bool
}

// New returns a mirror with no role that sends through sender. scene may be
// nil.
func New(sender Sender, scene Scene) *Mirror {
	if scene == nil {
		scene = nopScene{}
	}
	return &Mirror{
		sender:  sender,
		scene:   scene,
		machine: match.New(),
	}
}

// OnServerMessage applies one server message to the replica. It returns a
// MALFORMED_MESSAGE error when the message cannot be applied, which means the
// replica has diverged from the server.
func (m *Mirror) OnServerMessage(msg protocol.Message) error {
	m.mu.Lock()
	effects, err := m.apply(msg)
	m.mu.Unlock()

	for _, effect := range effects {
		effect(m.scene)
	}
	return err
}

func (m *Mirror) apply(msg protocol.Message) ([]func(Scene), error) {
	switch msg := msg.(type) {
	case protocol.Handshake:
		if !msg.Role.Valid() {
			return nil, diverged("handshake with invalid role %v", msg.Role)
		}
		m.role, m.hasRole = msg.Role, true
		return nil, nil

	case protocol.Go:
		return m.begin(msg.Targets), nil

	case protocol.Restarted:
		return m.begin(msg.Targets), nil

	case protocol.Placed:
		mover := m.machine.Turn()
		result, err := m.machine.Move(mover, msg.Direction)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeMalformedMessage,
				fmt.Sprintf("placement %s by %s diverges from replica", msg.Direction, mover), err)
		}
		m.hasRejection = false
		seg := Segment{
			Index:     result.Segment,
			Role:      mover,
			Direction: msg.Direction,
			Cell:      result.Cell,
			Rotation:  msg.Direction.Rotation(),
		}
		m.segments = append(m.segments, seg)
		return []func(Scene){func(s Scene) { s.PlaceSegment(seg) }}, nil

	case protocol.Finished:
		if local, ok := m.machine.Winner(); m.machine.Phase() == match.PhaseFinished &&
			(ok != msg.HasWinner || (ok && local != msg.Winner)) {
			log.Printf("replica verdict %v/%v replaced by server verdict %v/%v", local, ok, msg.Winner, msg.HasWinner)
		}
		m.machine.Finish(msg.Winner, msg.HasWinner)
		return nil, nil

	case protocol.Waiting:
		m.machine.Halt()
		m.segments = nil
		m.hasRejection = false
		return []func(Scene){func(s Scene) { s.ClearSegments() }}, nil

	case protocol.Rejected:
		m.rejection, m.hasRejection = msg.Reason, true
		return nil, nil

	default:
		return nil, diverged("unexpected %T from server", msg)
	}
}

func (m *Mirror) begin(targets match.Targets) []func(Scene) {
	m.machine.Restart(targets)
	m.segments = nil
	m.hasRejection = false
	return []func(Scene){
		func(s Scene) { s.ClearSegments() },
		func(s Scene) { s.PlaceTargets(targets) },
	}
}

// RequestMove sends a move request when the replica allows it. It returns
// false without sending when the role is unknown, the game is not active, it
// is not this peer's turn, or the destination is out of bounds or occupied.
func (m *Mirror) RequestMove(dir grid.Direction) bool {
	m.mu.Lock()
	ok := m.hasRole && m.machine.IsTurn(m.role)
	if ok {
		_, err := m.machine.Grid().Check(dir)
		ok = err == nil
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	return m.send(protocol.MoveRequest{Direction: dir})
}

// RequestRestart asks for a new game. It returns false without sending
// unless the replica's game has finished.
func (m *Mirror) RequestRestart() bool {
	m.mu.Lock()
	ok := m.hasRole && m.machine.Phase() == match.PhaseFinished
	m.mu.Unlock()
	if !ok {
		return false
	}
	return m.send(protocol.RestartRequest{})
}

func (m *Mirror) send(msg protocol.Message) bool {
	if err := m.sender.Send(msg); err != nil {
		log.Printf("send %s: %v", msg.Tag(), err)
		return false
	}
	return true
}

func diverged(format string, args ...any) error {
	return apperrors.New(apperrors.CodeMalformedMessage, fmt.Sprintf(format, args...))
}

type nopScene struct{}

func (nopScene) PlaceSegment(Segment)       {}
func (nopScene) PlaceTargets(match.Targets) {}
func (nopScene) ClearSegments()             {}
