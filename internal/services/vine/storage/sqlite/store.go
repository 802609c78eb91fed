// Package sqlite provides a SQLite-backed match journal.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/phototropic/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/grid"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/match"
	"github.com/louisbranch/phototropic/internal/services/vine/storage"
	"github.com/louisbranch/phototropic/internal/services/vine/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists the match journal in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite journal and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyFS(context.Background(), sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// RecordMatchStarted inserts a new active match.
func (s *Store) RecordMatchStarted(ctx context.Context, m storage.Match) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	matchID := strings.TrimSpace(m.ID)
	if matchID == "" {
		return fmt.Errorf("match id is required")
	}
	for _, role := range match.Roles {
		if !m.Targets[role].Valid() {
			return fmt.Errorf("target for %s role is out of range: %v", role, m.Targets[role])
		}
	}
	startedAt := m.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	first, second := m.Targets[match.RoleFirst], m.Targets[match.RoleSecond]

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO matches (
		   id,
		   first_lateral, first_height, first_front,
		   second_lateral, second_height, second_front,
		   status,
		   started_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		matchID,
		first.Lateral, first.Height, boolToInt(first.Front),
		second.Lateral, second.Height, boolToInt(second.Front),
		string(storage.MatchStatusActive),
		toMillis(startedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("record match started: %w", err)
	}
	return nil
}

// RecordMove appends one accepted move.
func (s *Store) RecordMove(ctx context.Context, mv storage.Move) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	matchID := strings.TrimSpace(mv.MatchID)
	if matchID == "" {
		return fmt.Errorf("match id is required")
	}
	if mv.Seq <= 0 || mv.Seq > grid.MaxMoves {
		return fmt.Errorf("move sequence %d is out of range", mv.Seq)
	}
	if !mv.Direction.Valid() {
		return fmt.Errorf("direction %q is invalid", byte(mv.Direction))
	}
	if !mv.Cell.InBounds() {
		return fmt.Errorf("cell %v is out of bounds", mv.Cell)
	}
	at := mv.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO moves (match_id, seq, role, direction, x, y, z, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		matchID,
		mv.Seq,
		int(mv.Role),
		mv.Direction.String(),
		mv.Cell.X, mv.Cell.Y, mv.Cell.Z,
		toMillis(at),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("record move: %w", err)
	}
	return nil
}

// RecordMatchEnded closes an active match. Ending a match twice reports
// ErrNotFound.
func (s *Store) RecordMatchEnded(ctx context.Context, matchID string, end storage.MatchEnd) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return fmt.Errorf("match id is required")
	}
	switch end.Status {
	case storage.MatchStatusWon, storage.MatchStatusStalemate, storage.MatchStatusAbandoned:
	default:
		return fmt.Errorf("end status %q is invalid", end.Status)
	}
	var winner sql.NullInt64
	if end.HasWinner {
		winner = sql.NullInt64{Int64: int64(end.Winner), Valid: true}
	}
	at := end.At
	if at.IsZero() {
		at = time.Now()
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE matches
		    SET status = ?, winner = ?, ended_at = ?
		  WHERE id = ? AND status = ?`,
		string(end.Status),
		winner,
		toMillis(at),
		matchID,
		string(storage.MatchStatusActive),
	)
	if err != nil {
		return fmt.Errorf("record match ended: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("record match ended: %w", err)
	}
	if rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const matchColumns = `m.id,
        m.first_lateral, m.first_height, m.first_front,
        m.second_lateral, m.second_height, m.second_front,
        m.status, m.winner, m.started_at, m.ended_at,
        (SELECT COUNT(*) FROM moves mv WHERE mv.match_id = m.id)`

// GetMatch returns one match by ID.
func (s *Store) GetMatch(ctx context.Context, matchID string) (storage.Match, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Match{}, err
	}
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return storage.Match{}, fmt.Errorf("match id is required")
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches m WHERE m.id = ?`, matchID)
	m, err := scanMatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Match{}, storage.ErrNotFound
		}
		return storage.Match{}, fmt.Errorf("get match: %w", err)
	}
	return m, nil
}

// ListMatches returns up to limit matches, newest first.
func (s *Store) ListMatches(ctx context.Context, limit int) ([]storage.Match, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+matchColumns+` FROM matches m ORDER BY m.started_at DESC, m.id ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	out := make([]storage.Match, 0, limit)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("list matches: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return out, nil
}

// ListMoves returns a match's moves in sequence order.
func (s *Store) ListMoves(ctx context.Context, matchID string) ([]storage.Move, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return nil, fmt.Errorf("match id is required")
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT match_id, seq, role, direction, x, y, z, created_at
		   FROM moves
		  WHERE match_id = ?
		  ORDER BY seq ASC`,
		matchID,
	)
	if err != nil {
		return nil, fmt.Errorf("list moves: %w", err)
	}
	defer rows.Close()

	var out []storage.Move
	for rows.Next() {
		var (
			mv        storage.Move
			role      int
			direction string
			createdAt int64
		)
		if err := rows.Scan(&mv.MatchID, &mv.Seq, &role, &direction, &mv.Cell.X, &mv.Cell.Y, &mv.Cell.Z, &createdAt); err != nil {
			return nil, fmt.Errorf("list moves: %w", err)
		}
		if len(direction) != 1 {
			return nil, fmt.Errorf("list moves: direction %q is invalid", direction)
		}
		dir, err := grid.ParseDirection(direction[0])
		if err != nil {
			return nil, fmt.Errorf("list moves: %w", err)
		}
		mv.Role = match.Role(role)
		mv.Direction = dir
		mv.At = fromMillis(createdAt)
		out = append(out, mv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list moves: %w", err)
	}
	return out, nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (storage.Match, error) {
	var (
		m                       storage.Match
		firstFront, secondFront int
		status                  string
		winner                  sql.NullInt64
		startedAt               int64
		endedAt                 sql.NullInt64
	)
	err := row.Scan(
		&m.ID,
		&m.Targets[match.RoleFirst].Lateral, &m.Targets[match.RoleFirst].Height, &firstFront,
		&m.Targets[match.RoleSecond].Lateral, &m.Targets[match.RoleSecond].Height, &secondFront,
		&status,
		&winner,
		&startedAt,
		&endedAt,
		&m.Moves,
	)
	if err != nil {
		return storage.Match{}, err
	}
	m.Targets[match.RoleFirst].Front = firstFront != 0
	m.Targets[match.RoleSecond].Front = secondFront != 0
	m.Status = storage.MatchStatus(status)
	if winner.Valid {
		m.Winner, m.HasWinner = match.Role(winner.Int64), true
	}
	m.StartedAt = fromMillis(startedAt)
	if endedAt.Valid {
		m.EndedAt = fromMillis(endedAt.Int64)
	}
	return m, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

var _ storage.Journal = (*Store)(nil)
