package grid

import "fmt"

// Size is the edge length of the lattice on every axis.
const Size = 5

// CellCount is the number of cells in the lattice.
const CellCount = Size * Size * Size

// MaxMoves is the most moves one game can hold: every cell but the origin.
const MaxMoves = CellCount - 1

// Cell is an integer lattice coordinate. Z is height.
type Cell struct {
	X, Y, Z int
}

// Origin is where every vine starts.
var Origin = Cell{X: 2, Y: 2, Z: 0}

// InBounds reports whether every axis lies in [0, Size-1].
func (c Cell) InBounds() bool {
	return inRange(c.X) && inRange(c.Y) && inRange(c.Z)
}

// Add returns c translated by v.
func (c Cell) Add(v Cell) Cell {
	return Cell{X: c.X + v.X, Y: c.Y + v.Y, Z: c.Z + v.Z}
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

func inRange(v int) bool {
	return v >= 0 && v < Size
}
