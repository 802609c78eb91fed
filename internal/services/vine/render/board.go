// Package render holds what the renderers share: the board model built from
// a mirror snapshot. Renderers draw the lattice as Size horizontal layers,
// lowest first, with x growing right and y growing up.
package render

import (
	"github.com/louisbranch/phototropic/internal/services/vine/domain/grid"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/match"
	"github.com/louisbranch/phototropic/internal/services/vine/mirror"
)

// MarkKind is what occupies a board cell.
type MarkKind uint8

const (
	MarkEmpty MarkKind = iota
	MarkOrigin
	MarkVine
	MarkTarget
)

// Mark is one cell of the board.
type Mark struct {
	Kind MarkKind
	// Role placed the segment for MarkVine and owns the flower for MarkTarget.
	Role match.Role
	// Frontier marks the most recent segment.
	Frontier bool
	// Rotation is the placing move's hint for MarkVine.
	Rotation grid.Rotation
}

// Board is indexed [z][y][x].
type Board [grid.Size][grid.Size][grid.Size]Mark

// At returns the mark at c.
func (b *Board) At(c grid.Cell) Mark {
	return b[c.Z][c.Y][c.X]
}

func (b *Board) set(c grid.Cell, m Mark) {
	if c.InBounds() {
		b[c.Z][c.Y][c.X] = m
	}
}

// BoardFrom lays out v. Targets are shown once a game has started and stay
// visible under the vine only until a segment covers them.
func BoardFrom(v mirror.View) Board {
	var b Board
	if v.Phase != match.PhaseWaiting {
		for _, role := range match.Roles {
			b.set(v.TargetCells[role], Mark{Kind: MarkTarget, Role: role})
		}
	}
	b.set(grid.Origin, Mark{Kind: MarkOrigin, Frontier: len(v.Segments) == 0})
	for i, seg := range v.Segments {
		b.set(seg.Cell, Mark{
			Kind:     MarkVine,
			Role:     seg.Role,
			Rotation: seg.Rotation,
			Frontier: i == len(v.Segments)-1,
		})
	}
	return b
}

// Rows returns layer z as rows from the top (y = Size-1) down, the order
// both renderers draw in.
func (b *Board) Rows(z int) [grid.Size][grid.Size]Mark {
	var rows [grid.Size][grid.Size]Mark
	for y := 0; y < grid.Size; y++ {
		rows[grid.Size-1-y] = b[z][y]
	}
	return rows
}
