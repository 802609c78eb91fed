package session

import "github.com/louisbranch/phototropic/internal/services/vine/domain/match"

// Outcome describes how a game ended.
type Outcome struct {
	Winner    match.Role
	HasWinner bool
	// Abandoned is set when a peer left mid-game.
	Abandoned bool
}

// Recorder observes game lifecycle events. Calls happen on the session
// owner's goroutine and must not block.
type Recorder interface {
	GameStarted(matchID string, targets match.Targets)
	MoveAccepted(matchID string, move match.MoveResult)
	GameEnded(matchID string, outcome Outcome)
}

type nopRecorder struct{}

func (nopRecorder) GameStarted(string, match.Targets)     {}
func (nopRecorder) MoveAccepted(string, match.MoveResult) {}
func (nopRecorder) GameEnded(string, Outcome)             {}
