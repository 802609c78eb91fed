package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/phototropic/internal/services/vine/storage"
)

// staleScan bounds how many recent matches startup inspects.
const staleScan = 20

type journalStore interface {
	storage.Journal
	storage.History
}

// recoverHistory closes matches a previous run left active as abandoned at
// now and describes the most recent match. The summary is empty when the
// journal holds no matches.
func recoverHistory(ctx context.Context, store journalStore, now time.Time) (closed int, summary string, err error) {
	recent, err := store.ListMatches(ctx, staleScan)
	if err != nil {
		return 0, "", err
	}
	if len(recent) == 0 {
		return 0, "", nil
	}
	for _, m := range recent {
		if m.Status != storage.MatchStatusActive {
			continue
		}
		end := storage.MatchEnd{Status: storage.MatchStatusAbandoned, At: now}
		if err := store.RecordMatchEnded(ctx, m.ID, end); err != nil {
			return closed, "", fmt.Errorf("close stale match %s: %w", m.ID, err)
		}
		closed++
	}

	latest, err := store.GetMatch(ctx, recent[0].ID)
	if err != nil {
		return closed, "", err
	}
	moves, err := store.ListMoves(ctx, latest.ID)
	if err != nil {
		return closed, "", err
	}
	return closed, describeMatch(latest, moves), nil
}

func describeMatch(m storage.Match, moves []storage.Move) string {
	var path strings.Builder
	for _, mv := range moves {
		path.WriteString(mv.Direction.String())
	}
	verdict := string(m.Status)
	if m.HasWinner {
		verdict = "won by " + m.Winner.String()
	}
	return fmt.Sprintf("last match %s %s after %d moves [%s]", m.ID, verdict, len(moves), path.String())
}
