package grid

import (
	apperrors "github.com/louisbranch/phototropic/internal/platform/errors"
)

// Grid is the occupancy lattice plus the shared frontier.
//
// The zero value is not ready; use New.
type Grid struct {
	occupied [Size][Size][Size]bool
	// path holds occupied cells in placement order; path[0] is Origin and the
	// last element is the frontier.
	path []Cell
}

// New returns a grid holding only the origin.
func New() *Grid {
	g := &Grid{path: make([]Cell, 0, CellCount)}
	g.Reset()
	return g
}

// Reset clears every cell except the origin and moves the frontier back to it.
func (g *Grid) Reset() {
	g.occupied = [Size][Size][Size]bool{}
	g.path = append(g.path[:0], Origin)
	g.occupied[Origin.X][Origin.Y][Origin.Z] = true
}

// IsInBounds reports whether c lies inside the lattice.
func (g *Grid) IsInBounds(c Cell) bool {
	return c.InBounds()
}

// IsOccupied reports whether c holds a vine segment. Out-of-bounds cells are
// never occupied.
func (g *Grid) IsOccupied(c Cell) bool {
	if !c.InBounds() {
		return false
	}
	return g.occupied[c.X][c.Y][c.Z]
}

// Frontier returns the cell the next move extends from.
func (g *Grid) Frontier() Cell {
	return g.path[len(g.path)-1]
}

// Moves returns the number of segments placed since the last reset.
func (g *Grid) Moves() int {
	return len(g.path) - 1
}

// Path returns a copy of the occupied cells in placement order.
func (g *Grid) Path() []Cell {
	out := make([]Cell, len(g.path))
	copy(out, g.path)
	return out
}

// Check returns the cell a move in dir would occupy, or the legality error
// TryAdvance would report. It never mutates the grid.
func (g *Grid) Check(dir Direction) (Cell, error) {
	if !dir.Valid() {
		return Cell{}, apperrors.New(apperrors.CodeMalformedMessage, "unknown direction "+dir.String())
	}
	candidate := g.Frontier().Add(dir.Vector())
	if !candidate.InBounds() {
		return candidate, apperrors.WithMetadata(apperrors.CodeOutOfBounds,
			"move "+dir.String()+" leaves the lattice at "+candidate.String(),
			map[string]string{"cell": candidate.String(), "direction": dir.String()})
	}
	if g.occupied[candidate.X][candidate.Y][candidate.Z] {
		return candidate, apperrors.WithMetadata(apperrors.CodeCellOccupied,
			"cell "+candidate.String()+" is occupied",
			map[string]string{"cell": candidate.String(), "direction": dir.String()})
	}
	return candidate, nil
}

// TryAdvance extends the vine one cell in dir. On success the new cell becomes
// the frontier and is returned; on failure the grid is unchanged.
func (g *Grid) TryAdvance(dir Direction) (Cell, error) {
	candidate, err := g.Check(dir)
	if err != nil {
		return Cell{}, err
	}
	g.occupied[candidate.X][candidate.Y][candidate.Z] = true
	g.path = append(g.path, candidate)
	return candidate, nil
}

// Stuck reports whether no direction can extend the vine from the frontier.
func (g *Grid) Stuck() bool {
	for _, dir := range Directions {
		if _, err := g.Check(dir); err == nil {
			return false
		}
	}
	return true
}
