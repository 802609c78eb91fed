package client

import (
	"github.com/louisbranch/phototropic/internal/services/vine/domain/grid"
)

// IntentKind names a local player action.
type IntentKind uint8

const (
	IntentMove IntentKind = iota + 1
	IntentRestart
	IntentQuit
)

// Intent is one local action produced by an input device.
type Intent struct {
	Kind      IntentKind
	Direction grid.Direction
}

// Move returns a move intent.
func Move(dir grid.Direction) Intent { return Intent{Kind: IntentMove, Direction: dir} }

// Restart returns a restart intent.
func Restart() Intent { return Intent{Kind: IntentRestart} }

// Quit returns a quit intent.
func Quit() Intent { return Intent{Kind: IntentQuit} }

// IntentSource yields pending intents without blocking.
type IntentSource interface {
	NextIntent() (Intent, bool)
}

const defaultIntentQueue = 32

// IntentQueue is a bounded FIFO filled by an input goroutine and drained by
// the client step. Pushing into a full queue drops the intent.
type IntentQueue struct {
	ch chan Intent
}

// NewIntentQueue returns a queue holding up to size intents.
func NewIntentQueue(size int) *IntentQueue {
	if size <= 0 {
		size = defaultIntentQueue
	}
	return &IntentQueue{ch: make(chan Intent, size)}
}

// Push enqueues intent, reporting false when it was dropped.
func (q *IntentQueue) Push(intent Intent) bool {
	select {
	case q.ch <- intent:
		return true
	default:
		return false
	}
}

// NextIntent implements IntentSource.
func (q *IntentQueue) NextIntent() (Intent, bool) {
	select {
	case intent := <-q.ch:
		return intent, true
	default:
		return Intent{}, false
	}
}

// KeyIntent maps the game's key bindings to intents: A/D left/right, W/S
// up/down, E/Q forward/back, R restart, Esc quit.
func KeyIntent(key rune) (Intent, bool) {
	switch key {
	case 'a', 'A':
		return Move(grid.Left), true
	case 'd', 'D':
		return Move(grid.Right), true
	case 'w', 'W':
		return Move(grid.Up), true
	case 's', 'S':
		return Move(grid.Down), true
	case 'e', 'E':
		return Move(grid.Forward), true
	case 'q', 'Q':
		return Move(grid.Back), true
	case 'r', 'R':
		return Restart(), true
	case KeyEscape:
		return Quit(), true
	default:
		return Intent{}, false
	}
}

// KeyEscape is the rune renderers pass to KeyIntent for the escape key.
const KeyEscape rune = 0x1b
