package mirror

import (
	"github.com/louisbranch/phototropic/internal/services/vine/domain/grid"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/match"
	"github.com/louisbranch/phototropic/internal/services/vine/protocol"
)

// View is a consistent copy of the replica for rendering.
type View struct {
	Role    match.Role
	HasRole bool
	Phase   match.Phase
	Turn    match.Role
	MyTurn  bool

	Targets match.Targets
	// TargetCells holds each role's target cell, indexed by role.
	TargetCells [2]grid.Cell
	Segments    []Segment
	Frontier    grid.Cell

	Winner    match.Role
	HasWinner bool

	Rejection    protocol.Reason
	HasRejection bool
}

// Snapshot copies the replica under the mirror lock.
func (m *Mirror) Snapshot() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := View{
		Role:         m.role,
		HasRole:      m.hasRole,
		Phase:        m.machine.Phase(),
		Turn:         m.machine.Turn(),
		MyTurn:       m.hasRole && m.machine.IsTurn(m.role),
		Targets:      m.machine.Targets(),
		Segments:     append([]Segment(nil), m.segments...),
		Frontier:     m.machine.Grid().Frontier(),
		Rejection:    m.rejection,
		HasRejection: m.hasRejection,
	}
	v.Winner, v.HasWinner = m.machine.Winner()
	for _, role := range match.Roles {
		v.TargetCells[role] = v.Targets[role].Cell(role)
	}
	return v
}

// Won reports whether this peer won the finished game.
func (v View) Won() bool {
	return v.Phase == match.PhaseFinished && v.HasRole && v.HasWinner && v.Winner == v.Role
}
