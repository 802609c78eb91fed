// Package match models the turn and phase state machine for one vine race.
//
// A Machine owns the shared Grid for its game. It tracks which roles have
// joined, the phase, whose turn it is, each role's target and the winner.
// The server drives it as the source of truth; the client mirror drives an
// identical Machine from confirmed server messages only.
package match

import "fmt"

// Role is a player slot, assigned in connection order.
type Role uint8

const (
	// RoleFirst moves first and races toward the x=4 / y=4 faces.
	RoleFirst Role = 0
	// RoleSecond moves second and races toward the x=0 / y=0 faces.
	RoleSecond Role = 1
)

// Roles lists both roles in slot order.
var Roles = [...]Role{RoleFirst, RoleSecond}

// Valid reports whether r names one of the two slots.
func (r Role) Valid() bool {
	return r == RoleFirst || r == RoleSecond
}

// Other returns the opposing role.
func (r Role) Other() Role {
	if r == RoleFirst {
		return RoleSecond
	}
	return RoleFirst
}

// Index returns the slot index used on the wire and for array lookups.
func (r Role) Index() int {
	return int(r)
}

// Color is the display name players know the role by.
func (r Role) Color() string {
	if r == RoleFirst {
		return "purple"
	}
	return "green"
}

func (r Role) String() string {
	switch r {
	case RoleFirst:
		return "first"
	case RoleSecond:
		return "second"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Phase is the game lifecycle stage.
type Phase uint8

const (
	// PhaseWaiting means fewer than two players are connected.
	PhaseWaiting Phase = iota
	// PhaseActive means both players are connected and someone holds the turn.
	PhaseActive
	// PhaseFinished means the game ended; only a restart moves it on.
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseActive:
		return "active"
	case PhaseFinished:
		return "finished"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}
