package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/phototropic/internal/services/vine/domain/grid"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/match"
	"github.com/louisbranch/phototropic/internal/services/vine/storage"
)

var testTargets = match.Targets{
	{Lateral: 1, Height: 3, Front: true},
	{Lateral: 4, Height: 0},
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vine.db")
	for i := 0; i < 2; i++ {
		store, err := Open(path)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		if err := store.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
}

func TestMatchLifecycleRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	started := time.Date(2026, time.March, 3, 9, 30, 0, 0, time.UTC)

	if err := store.RecordMatchStarted(ctx, storage.Match{ID: "m1", Targets: testTargets, StartedAt: started}); err != nil {
		t.Fatalf("record started: %v", err)
	}
	moves := []storage.Move{
		{MatchID: "m1", Seq: 1, Role: match.RoleFirst, Direction: grid.Left, Cell: grid.Cell{X: 1, Y: 2, Z: 0}, At: started.Add(time.Second)},
		{MatchID: "m1", Seq: 2, Role: match.RoleSecond, Direction: grid.Left, Cell: grid.Cell{X: 0, Y: 2, Z: 0}, At: started.Add(2 * time.Second)},
	}
	for _, mv := range moves {
		if err := store.RecordMove(ctx, mv); err != nil {
			t.Fatalf("record move %d: %v", mv.Seq, err)
		}
	}

	got, err := store.GetMatch(ctx, "m1")
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if got.Status != storage.MatchStatusActive || got.HasWinner || !got.EndedAt.IsZero() {
		t.Fatalf("active match = %+v", got)
	}
	if got.Targets != testTargets {
		t.Fatalf("targets = %v, want %v", got.Targets, testTargets)
	}
	if got.Moves != 2 {
		t.Fatalf("moves = %d, want 2", got.Moves)
	}
	if !got.StartedAt.Equal(started) {
		t.Fatalf("started_at = %v, want %v", got.StartedAt, started)
	}

	ended := started.Add(time.Minute)
	if err := store.RecordMatchEnded(ctx, "m1", storage.MatchEnd{
		Status:    storage.MatchStatusWon,
		Winner:    match.RoleSecond,
		HasWinner: true,
		At:        ended,
	}); err != nil {
		t.Fatalf("record ended: %v", err)
	}
	got, err = store.GetMatch(ctx, "m1")
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if got.Status != storage.MatchStatusWon || !got.HasWinner || got.Winner != match.RoleSecond {
		t.Fatalf("ended match = %+v", got)
	}
	if !got.EndedAt.Equal(ended) {
		t.Fatalf("ended_at = %v, want %v", got.EndedAt, ended)
	}

	listed, err := store.ListMoves(ctx, "m1")
	if err != nil {
		t.Fatalf("list moves: %v", err)
	}
	if len(listed) != len(moves) {
		t.Fatalf("moves = %d, want %d", len(listed), len(moves))
	}
	for i := range moves {
		if listed[i].Seq != moves[i].Seq || listed[i].Direction != moves[i].Direction ||
			listed[i].Cell != moves[i].Cell || listed[i].Role != moves[i].Role || !listed[i].At.Equal(moves[i].At) {
			t.Fatalf("move %d = %+v, want %+v", i, listed[i], moves[i])
		}
	}
}

func TestRecordMatchStartedDuplicate(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if err := store.RecordMatchStarted(ctx, storage.Match{ID: "m1", Targets: testTargets}); err != nil {
		t.Fatalf("record started: %v", err)
	}
	err := store.RecordMatchStarted(ctx, storage.Match{ID: "m1", Targets: testTargets})
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestRecordMoveErrors(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if err := store.RecordMatchStarted(ctx, storage.Match{ID: "m1", Targets: testTargets}); err != nil {
		t.Fatalf("record started: %v", err)
	}
	valid := storage.Move{MatchID: "m1", Seq: 1, Direction: grid.Up, Cell: grid.Cell{X: 2, Y: 2, Z: 1}}
	if err := store.RecordMove(ctx, valid); err != nil {
		t.Fatalf("record move: %v", err)
	}
	if err := store.RecordMove(ctx, valid); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate seq err = %v, want ErrAlreadyExists", err)
	}

	orphan := valid
	orphan.MatchID = "missing"
	if err := store.RecordMove(ctx, orphan); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("orphan err = %v, want ErrNotFound", err)
	}

	tests := []struct {
		name string
		mv   storage.Move
	}{
		{"empty match", storage.Move{Seq: 1, Direction: grid.Up, Cell: grid.Origin}},
		{"zero seq", storage.Move{MatchID: "m1", Direction: grid.Up, Cell: grid.Origin}},
		{"bad direction", storage.Move{MatchID: "m1", Seq: 2, Direction: 'Q', Cell: grid.Origin}},
		{"out of bounds", storage.Move{MatchID: "m1", Seq: 2, Direction: grid.Up, Cell: grid.Cell{Z: 5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.RecordMove(ctx, tt.mv); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestRecordMatchEndedOnlyOnce(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if err := store.RecordMatchStarted(ctx, storage.Match{ID: "m1", Targets: testTargets}); err != nil {
		t.Fatalf("record started: %v", err)
	}
	end := storage.MatchEnd{Status: storage.MatchStatusStalemate}
	if err := store.RecordMatchEnded(ctx, "m1", end); err != nil {
		t.Fatalf("record ended: %v", err)
	}
	if err := store.RecordMatchEnded(ctx, "m1", end); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second end err = %v, want ErrNotFound", err)
	}
	if err := store.RecordMatchEnded(ctx, "m1", storage.MatchEnd{Status: storage.MatchStatusActive}); err == nil {
		t.Fatal("expected invalid status error")
	}

	got, err := store.GetMatch(ctx, "m1")
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if got.Status != storage.MatchStatusStalemate || got.HasWinner {
		t.Fatalf("match = %+v", got)
	}
}

func TestGetMatchNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if _, err := store.GetMatch(context.Background(), "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListMatchesNewestFirst(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := store.RecordMatchStarted(ctx, storage.Match{ID: id, Targets: testTargets, StartedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("record %s: %v", id, err)
		}
	}

	got, err := store.ListMatches(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "b" {
		t.Fatalf("matches = %+v", got)
	}
	if _, err := store.ListMatches(ctx, 0); err == nil {
		t.Fatal("expected limit error")
	}
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.RecordMatchStarted(ctx, storage.Match{ID: "m1", Targets: testTargets}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "vine.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
