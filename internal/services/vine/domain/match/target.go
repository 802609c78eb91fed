package match

import (
	"fmt"
	"math/rand"

	"github.com/louisbranch/phototropic/internal/services/vine/domain/grid"
)

// Target is the wire form of a role's goal: a position on one of the role's
// two side faces.
type Target struct {
	// Lateral is the horizontal position along the chosen face, 0-4.
	Lateral int
	// Height is the z coordinate, 0-4.
	Height int
	// Front selects which of the role's two faces holds the target.
	Front bool
}

// Targets holds one target per role, indexed by Role.
type Targets [2]Target

// Valid reports whether every component is in range.
func (t Target) Valid() bool {
	return t.Lateral >= 0 && t.Lateral < grid.Size && t.Height >= 0 && t.Height < grid.Size
}

// Cell resolves the target to a lattice cell for role. The first mover's
// faces are x=4 (front) and y=4; the second mover's are y=0 (front) and x=0.
func (t Target) Cell(role Role) grid.Cell {
	const far = grid.Size - 1
	if role == RoleFirst {
		if t.Front {
			return grid.Cell{X: far, Y: t.Lateral, Z: t.Height}
		}
		return grid.Cell{X: t.Lateral, Y: far, Z: t.Height}
	}
	if t.Front {
		return grid.Cell{X: t.Lateral, Y: 0, Z: t.Height}
	}
	return grid.Cell{X: 0, Y: t.Lateral, Z: t.Height}
}

func (t Target) String() string {
	return fmt.Sprintf("lateral=%d height=%d front=%t", t.Lateral, t.Height, t.Front)
}

// Picker draws targets for a new game.
type Picker interface {
	Pick(role Role) Target
}

// RandomPicker draws each target uniformly over the 45 distinct cells of the
// role's two faces. The column both faces share is drawn from the front face
// only.
type RandomPicker struct {
	rng *rand.Rand
}

// NewRandomPicker returns a picker drawing from rng.
func NewRandomPicker(rng *rand.Rand) *RandomPicker {
	return &RandomPicker{rng: rng}
}

// Pick implements Picker.
func (p *RandomPicker) Pick(role Role) Target {
	for {
		t := Target{
			Lateral: p.rng.Intn(grid.Size),
			Height:  p.rng.Intn(grid.Size),
			Front:   p.rng.Intn(2) == 1,
		}
		if !t.Front && t.Lateral == sharedColumn(role) {
			continue
		}
		return t
	}
}

// sharedColumn is the side-face lateral whose cells duplicate the front face.
func sharedColumn(role Role) int {
	if role == RoleFirst {
		return grid.Size - 1
	}
	return 0
}

// PickTargets draws an independent target for each role.
func PickTargets(p Picker) Targets {
	var out Targets
	for _, role := range Roles {
		out[role] = p.Pick(role)
	}
	return out
}
