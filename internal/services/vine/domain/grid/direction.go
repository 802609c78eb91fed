package grid

import "fmt"

// Direction is one of the six unit moves. Its value is the wire symbol.
type Direction byte

const (
	Left    Direction = 'L'
	Right   Direction = 'R'
	Up      Direction = 'U'
	Down    Direction = 'D'
	Forward Direction = 'F'
	Back    Direction = 'B'
)

// Directions lists every direction in wire-alphabet order.
var Directions = [...]Direction{Left, Right, Up, Down, Forward, Back}

// Rotation is a renderer hint carried with each direction. The grid never
// interprets it.
type Rotation uint8

const (
	RotationNone Rotation = iota
	RotationYawLeft
	RotationYawRight
	RotationPitchForward
	RotationPitchBack
)

type directionInfo struct {
	vector   Cell
	rotation Rotation
}

var directionTable = map[Direction]directionInfo{
	Left:    {vector: Cell{X: -1}, rotation: RotationYawLeft},
	Right:   {vector: Cell{X: 1}, rotation: RotationYawRight},
	Up:      {vector: Cell{Z: 1}, rotation: RotationNone},
	Down:    {vector: Cell{Z: -1}, rotation: RotationNone},
	Forward: {vector: Cell{Y: 1}, rotation: RotationPitchForward},
	Back:    {vector: Cell{Y: -1}, rotation: RotationPitchBack},
}

// ParseDirection maps a wire symbol to a Direction.
func ParseDirection(symbol byte) (Direction, error) {
	d := Direction(symbol)
	if !d.Valid() {
		return 0, fmt.Errorf("unknown direction symbol %q", symbol)
	}
	return d, nil
}

// Valid reports whether d is one of the six directions.
func (d Direction) Valid() bool {
	_, ok := directionTable[d]
	return ok
}

// Vector returns the unit step for d; the zero Cell for an invalid direction.
func (d Direction) Vector() Cell {
	return directionTable[d].vector
}

// Rotation returns the renderer hint for d.
func (d Direction) Rotation() Rotation {
	return directionTable[d].rotation
}

func (d Direction) String() string {
	return string(rune(d))
}
