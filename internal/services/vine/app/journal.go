package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/louisbranch/phototropic/internal/platform/timeouts"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/match"
	"github.com/louisbranch/phototropic/internal/services/vine/session"
	"github.com/louisbranch/phototropic/internal/services/vine/storage"
)

const defaultJournalQueue = 256

type journalKind uint8

const (
	journalStarted journalKind = iota + 1
	journalMove
	journalEnded
)

type journalRecord struct {
	kind  journalKind
	match storage.Match
	move  storage.Move
	id    string
	end   storage.MatchEnd
}

// journal adapts session lifecycle events to storage writes. The session
// side only enqueues; one worker goroutine performs every write. A full
// queue drops the record.
type journal struct {
	store   storage.Journal
	records chan journalRecord
	now     func() time.Time
	done    chan struct{}
	started bool

	closeOnce sync.Once
}

func newJournal(store storage.Journal, queue int) *journal {
	if queue <= 0 {
		queue = defaultJournalQueue
	}
	return &journal{
		store:   store,
		records: make(chan journalRecord, queue),
		now:     time.Now,
		done:    make(chan struct{}),
	}
}

func (j *journal) GameStarted(matchID string, targets match.Targets) {
	j.enqueue(journalRecord{
		kind:  journalStarted,
		match: storage.Match{ID: matchID, Targets: targets, StartedAt: j.now()},
	})
}

func (j *journal) MoveAccepted(matchID string, move match.MoveResult) {
	j.enqueue(journalRecord{
		kind: journalMove,
		move: storage.Move{
			MatchID:   matchID,
			Seq:       move.Segment,
			Role:      move.Role,
			Direction: move.Direction,
			Cell:      move.Cell,
			At:        j.now(),
		},
	})
}

func (j *journal) GameEnded(matchID string, outcome session.Outcome) {
	end := storage.MatchEnd{Winner: outcome.Winner, HasWinner: outcome.HasWinner, At: j.now()}
	switch {
	case outcome.Abandoned:
		end.Status = storage.MatchStatusAbandoned
	case outcome.HasWinner:
		end.Status = storage.MatchStatusWon
	default:
		end.Status = storage.MatchStatusStalemate
	}
	j.enqueue(journalRecord{kind: journalEnded, id: matchID, end: end})
}

func (j *journal) enqueue(rec journalRecord) {
	select {
	case j.records <- rec:
	default:
		log.Printf("journal queue full; dropping %s record", rec.kind)
	}
}

// start launches the writer goroutine.
func (j *journal) start() {
	j.started = true
	go j.run()
}

// run writes records until close is called and the queue is drained.
func (j *journal) run() {
	defer close(j.done)
	for rec := range j.records {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.JournalWrite)
		err := j.write(ctx, rec)
		cancel()
		if err != nil {
			log.Printf("journal %s: %v", rec.kind, err)
		}
	}
}

func (j *journal) write(ctx context.Context, rec journalRecord) error {
	switch rec.kind {
	case journalStarted:
		return j.store.RecordMatchStarted(ctx, rec.match)
	case journalMove:
		return j.store.RecordMove(ctx, rec.move)
	case journalEnded:
		return j.store.RecordMatchEnded(ctx, rec.id, rec.end)
	default:
		return errors.New("unknown journal record")
	}
}

// close stops accepting records and waits for queued writes.
func (j *journal) close() {
	j.closeOnce.Do(func() { close(j.records) })
	if j.started {
		<-j.done
	}
}

func (k journalKind) String() string {
	switch k {
	case journalStarted:
		return "match started"
	case journalMove:
		return "move"
	case journalEnded:
		return "match ended"
	default:
		return "unknown"
	}
}
