// Package storage defines persistence contracts for the vine match journal.
//
// The journal is an append-only audit trail of games and accepted moves. It
// is never read back into a live session; History is only consulted when a
// server starts.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/phototropic/internal/services/vine/domain/grid"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/match"
)

var (
	// ErrNotFound indicates a requested match record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a match ID or move sequence was reused.
	ErrAlreadyExists = errors.New("record already exists")
)

// MatchStatus is the lifecycle state of a journaled match.
type MatchStatus string

const (
	MatchStatusActive    MatchStatus = "active"
	MatchStatusWon       MatchStatus = "won"
	MatchStatusStalemate MatchStatus = "stalemate"
	MatchStatusAbandoned MatchStatus = "abandoned"
)

// Match stores one game.
type Match struct {
	ID        string
	Targets   match.Targets
	Status    MatchStatus
	Winner    match.Role
	HasWinner bool
	Moves     int
	StartedAt time.Time
	EndedAt   time.Time
}

// Move stores one accepted move.
type Move struct {
	MatchID   string
	Seq       int
	Role      match.Role
	Direction grid.Direction
	Cell      grid.Cell
	At        time.Time
}

// MatchEnd describes how a match ended.
type MatchEnd struct {
	Status    MatchStatus
	Winner    match.Role
	HasWinner bool
	At        time.Time
}

// Journal persists match history.
type Journal interface {
	RecordMatchStarted(ctx context.Context, m Match) error
	RecordMove(ctx context.Context, mv Move) error
	RecordMatchEnded(ctx context.Context, matchID string, end MatchEnd) error
}

// History reads the journal back. The server uses it at startup to close
// matches a previous run left active and to report the latest one.
type History interface {
	GetMatch(ctx context.Context, matchID string) (Match, error)
	ListMatches(ctx context.Context, limit int) ([]Match, error)
	ListMoves(ctx context.Context, matchID string) ([]Move, error)
}
