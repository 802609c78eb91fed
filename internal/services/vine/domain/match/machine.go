package match

import (
	apperrors "github.com/louisbranch/phototropic/internal/platform/errors"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/grid"
)

// MoveResult describes one accepted move.
type MoveResult struct {
	Role      Role
	Direction grid.Direction
	Cell      grid.Cell
	// Segment is the 1-based index of the placed vine segment.
	Segment int
	// Finished is set when this move ended the game.
	Finished bool
	// HasWinner is false when the game ended because the vine boxed itself in.
	HasWinner bool
	Winner    Role
}

// Machine is the turn/phase state machine for one game. It is not safe for
// concurrent use; the owner serializes every call.
type Machine struct {
	grid      *grid.Grid
	phase     Phase
	joined    [2]bool
	turn      Role
	targets   Targets
	winner    Role
	hasWinner bool
}

// New returns a machine in PhaseWaiting with an origin-only grid.
func New() *Machine {
	return &Machine{grid: grid.New()}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// Turn returns the role holding the turn. Only meaningful in PhaseActive.
func (m *Machine) Turn() Role { return m.turn }

// IsTurn reports whether role may move right now.
func (m *Machine) IsTurn(role Role) bool {
	return m.phase == PhaseActive && m.turn == role
}

// Targets returns both roles' targets.
func (m *Machine) Targets() Targets { return m.targets }

// Winner returns the winning role, if the last game had one.
func (m *Machine) Winner() (Role, bool) { return m.winner, m.hasWinner }

// Joined reports whether role's slot is registered.
func (m *Machine) Joined(role Role) bool { return role.Valid() && m.joined[role] }

// Grid exposes the occupancy grid for read-only queries.
func (m *Machine) Grid() *grid.Grid { return m.grid }

// Join registers role while waiting. ready is true once both roles are in;
// the caller then draws targets and calls Start.
func (m *Machine) Join(role Role) (ready bool, err error) {
	if !role.Valid() {
		return false, apperrors.New(apperrors.CodeSessionFull, "no such role slot")
	}
	if m.phase != PhaseWaiting {
		return false, apperrors.New(apperrors.CodeSessionFull, "game already in progress")
	}
	if m.joined[role] {
		return false, apperrors.New(apperrors.CodeSessionFull, "role "+role.String()+" already joined")
	}
	m.joined[role] = true
	return m.joined[RoleFirst] && m.joined[RoleSecond], nil
}

// Start moves a waiting game to PhaseActive with the first mover on turn.
func (m *Machine) Start(targets Targets) error {
	if m.phase != PhaseWaiting {
		return apperrors.New(apperrors.CodeSessionNotActive, "game cannot start from "+m.phase.String())
	}
	m.begin(targets)
	return nil
}

// Move applies role's move. Any error leaves the machine unchanged. A move
// leaving the lattice is OUT_OF_BOUNDS whoever holds the turn.
func (m *Machine) Move(role Role, dir grid.Direction) (MoveResult, error) {
	if m.phase != PhaseActive {
		return MoveResult{}, apperrors.New(apperrors.CodeSessionNotActive, "game is "+m.phase.String())
	}
	if _, err := m.grid.Check(dir); apperrors.CodeOf(err) == apperrors.CodeOutOfBounds {
		return MoveResult{}, err
	}
	if role != m.turn {
		return MoveResult{}, apperrors.New(apperrors.CodeNotYourTurn, "it is the "+m.turn.String()+" role's turn")
	}
	cell, err := m.grid.TryAdvance(dir)
	if err != nil {
		return MoveResult{}, err
	}

	result := MoveResult{
		Role:      role,
		Direction: dir,
		Cell:      cell,
		Segment:   m.grid.Moves(),
	}
	switch {
	case cell == m.targets[role].Cell(role):
		m.phase = PhaseFinished
		m.winner, m.hasWinner = role, true
		result.Finished, result.HasWinner, result.Winner = true, true, role
	case m.grid.Stuck():
		m.phase = PhaseFinished
		result.Finished = true
	default:
		m.turn = role.Other()
	}
	return result, nil
}

// Finish ends the game with the given verdict. Replicas use it to install the
// authority's result; the authority itself finishes games through Move.
func (m *Machine) Finish(winner Role, hasWinner bool) {
	m.phase = PhaseFinished
	m.winner, m.hasWinner = winner, hasWinner
}

// Restart clears the board and begins a new game with targets. It is accepted
// in any phase so duplicate restart requests are harmless.
func (m *Machine) Restart(targets Targets) {
	m.begin(targets)
}

// Leave frees role's slot. A game in progress drops back to PhaseWaiting with
// a cleared board.
func (m *Machine) Leave(role Role) {
	if role.Valid() {
		m.joined[role] = false
	}
	m.Halt()
}

// Halt returns the machine to PhaseWaiting with a cleared board, keeping
// registrations.
func (m *Machine) Halt() {
	m.grid.Reset()
	m.phase = PhaseWaiting
	m.turn = RoleFirst
	m.targets = Targets{}
	m.winner, m.hasWinner = RoleFirst, false
}

func (m *Machine) begin(targets Targets) {
	m.grid.Reset()
	m.targets = targets
	m.turn = RoleFirst
	m.winner, m.hasWinner = RoleFirst, false
	m.phase = PhaseActive
}
