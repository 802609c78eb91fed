// Package session implements the authoritative vine race session.
//
// A Session validates peer requests against its match.Machine and answers
// with addressed protocol messages. It performs no I/O: the server loop owns
// the Session, calls it once per decoded request and delivers the returned
// Outbound messages in order.
package session

import (
	"fmt"
	"log"

	apperrors "github.com/louisbranch/phototropic/internal/platform/errors"
	"github.com/louisbranch/phototropic/internal/platform/id"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/grid"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/match"
	"github.com/louisbranch/phototropic/internal/services/vine/protocol"
)

// Recipient addresses an outbound message to one role or to every peer.
type Recipient int8

// Broadcast addresses every connected peer.
const Broadcast Recipient = -1

// To addresses the peer holding role.
func To(role match.Role) Recipient {
	return Recipient(role)
}

// Role returns the addressed role, false for Broadcast.
func (r Recipient) Role() (match.Role, bool) {
	if r == Broadcast {
		return 0, false
	}
	return match.Role(r), true
}

func (r Recipient) String() string {
	if role, ok := r.Role(); ok {
		return role.String()
	}
	return "broadcast"
}

// Outbound is one message the caller must deliver.
type Outbound struct {
	To      Recipient
	Message protocol.Message
}

// Session is the server's single source of truth for one two-slot game. It is
// not safe for concurrent use.
type Session struct {
	machine  *match.Machine
	picker   match.Picker
	recorder Recorder
	newID    func() (string, error)
	matchID  string
	games    int
}

// Option configures a Session.
type Option func(*Session)

// WithRecorder reports game lifecycle events to r.
func WithRecorder(r Recorder) Option {
	return func(s *Session) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithIDGenerator overrides the match ID source.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(s *Session) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New returns an empty waiting session that draws targets from picker.
func New(picker match.Picker, opts ...Option) *Session {
	s := &Session{
		machine:  match.New(),
		picker:   picker,
		recorder: nopRecorder{},
		newID:    id.NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnConnect assigns the lowest free role slot. The new peer receives its
// Handshake; when it fills the second slot both targets are drawn and every
// peer receives Go.
func (s *Session) OnConnect() (match.Role, []Outbound, error) {
	role, ok := s.freeSlot()
	if !ok {
		return 0, nil, apperrors.New(apperrors.CodeSessionFull, "both role slots are taken")
	}
	ready, err := s.machine.Join(role)
	if err != nil {
		return 0, nil, err
	}
	out := []Outbound{{To: To(role), Message: protocol.Handshake{Role: role}}}
	if !ready {
		return role, out, nil
	}

	targets := match.PickTargets(s.picker)
	if err := s.machine.Start(targets); err != nil {
		return role, out, err
	}
	s.beginMatch(targets)
	out = append(out, Outbound{To: Broadcast, Message: protocol.Go{Targets: targets}})
	return role, out, nil
}

// OnMoveRequest applies role's move. An accepted move is broadcast as Placed,
// followed by Finished when it ends the game. A refused move leaves the state
// untouched and returns a Rejected addressed to role together with the domain
// error; the caller must still deliver the returned messages.
func (s *Session) OnMoveRequest(role match.Role, dir grid.Direction) ([]Outbound, error) {
	if !s.machine.Joined(role) {
		return nil, apperrors.New(apperrors.CodePeerDisconnected, "move from unregistered role "+role.String())
	}
	result, err := s.machine.Move(role, dir)
	if err != nil {
		return reject(role, err)
	}
	s.recorder.MoveAccepted(s.matchID, result)

	out := []Outbound{{To: Broadcast, Message: protocol.Placed{Direction: dir}}}
	if result.Finished {
		out = append(out, Outbound{To: Broadcast, Message: protocol.Finished{
			Winner:    result.Winner,
			HasWinner: result.HasWinner,
		}})
		s.recorder.GameEnded(s.matchID, Outcome{Winner: result.Winner, HasWinner: result.HasWinner})
	}
	return out, nil
}

// OnRestartRequest starts a new game with fresh targets. It is only accepted
// once the current game has finished.
func (s *Session) OnRestartRequest(role match.Role) ([]Outbound, error) {
	if !s.machine.Joined(role) {
		return nil, apperrors.New(apperrors.CodePeerDisconnected, "restart from unregistered role "+role.String())
	}
	if phase := s.machine.Phase(); phase != match.PhaseFinished {
		return reject(role, apperrors.New(apperrors.CodeGameNotFinished, "restart refused while "+phase.String()))
	}
	targets := match.PickTargets(s.picker)
	s.machine.Restart(targets)
	s.beginMatch(targets)
	return []Outbound{{To: Broadcast, Message: protocol.Restarted{Targets: targets}}}, nil
}

// OnDisconnect frees role's slot. The session drops back to waiting with a
// cleared board and the remaining peer, if any, is told so.
func (s *Session) OnDisconnect(role match.Role) []Outbound {
	if !s.machine.Joined(role) {
		return nil
	}
	if s.machine.Phase() == match.PhaseActive {
		s.recorder.GameEnded(s.matchID, Outcome{Abandoned: true})
	}
	s.machine.Leave(role)
	s.matchID = ""

	other := role.Other()
	if !s.machine.Joined(other) {
		return nil
	}
	return []Outbound{{To: To(other), Message: protocol.Waiting{}}}
}

// MatchID identifies the current game; empty while waiting.
func (s *Session) MatchID() string { return s.matchID }

// Phase returns the current phase.
func (s *Session) Phase() match.Phase { return s.machine.Phase() }

// Turn returns the role holding the turn.
func (s *Session) Turn() match.Role { return s.machine.Turn() }

// Targets returns the current targets.
func (s *Session) Targets() match.Targets { return s.machine.Targets() }

// Frontier returns the last placed cell.
func (s *Session) Frontier() grid.Cell { return s.machine.Grid().Frontier() }

// Moves returns the number of accepted moves in the current game.
func (s *Session) Moves() int { return s.machine.Grid().Moves() }

// Connected returns how many role slots are filled.
func (s *Session) Connected() int {
	n := 0
	for _, role := range match.Roles {
		if s.machine.Joined(role) {
			n++
		}
	}
	return n
}

func (s *Session) freeSlot() (match.Role, bool) {
	for _, role := range match.Roles {
		if !s.machine.Joined(role) {
			return role, true
		}
	}
	return 0, false
}

func (s *Session) beginMatch(targets match.Targets) {
	s.games++
	matchID, err := s.newID()
	if err != nil {
		log.Printf("generate match id: %v", err)
		matchID = fmt.Sprintf("game-%d", s.games)
	}
	s.matchID = matchID
	s.recorder.GameStarted(matchID, targets)
}

// reject maps a domain error onto a unicast Rejected. Errors without a wire
// reason are returned with no message.
func reject(role match.Role, err error) ([]Outbound, error) {
	reason, ok := protocol.ReasonFor(apperrors.CodeOf(err))
	if !ok {
		return nil, err
	}
	return []Outbound{{To: To(role), Message: protocol.Rejected{Reason: reason}}}, err
}
