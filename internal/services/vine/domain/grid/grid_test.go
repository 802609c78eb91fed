package grid

import (
	"errors"
	"math/rand"
	"testing"

	apperrors "github.com/louisbranch/phototropic/internal/platform/errors"
)

func TestNewGridHoldsOnlyOrigin(t *testing.T) {
	g := New()
	if got := g.Frontier(); got != Origin {
		t.Fatalf("frontier = %v, want %v", got, Origin)
	}
	if g.Moves() != 0 {
		t.Fatalf("moves = %d, want 0", g.Moves())
	}
	occupied := 0
	for x := 0; x < Size; x++ {
		for y := 0; y < Size; y++ {
			for z := 0; z < Size; z++ {
				if g.IsOccupied(Cell{x, y, z}) {
					occupied++
				}
			}
		}
	}
	if occupied != 1 || !g.IsOccupied(Origin) {
		t.Fatalf("occupied cells = %d, want only origin", occupied)
	}
}

func TestIsInBounds(t *testing.T) {
	tests := []struct {
		cell Cell
		want bool
	}{
		{Cell{0, 0, 0}, true},
		{Cell{4, 4, 4}, true},
		{Cell{-1, 2, 0}, false},
		{Cell{2, 5, 0}, false},
		{Cell{2, 2, -1}, false},
	}
	g := New()
	for _, tt := range tests {
		if got := g.IsInBounds(tt.cell); got != tt.want {
			t.Fatalf("IsInBounds(%v) = %v, want %v", tt.cell, got, tt.want)
		}
	}
}

func TestTryAdvanceMovesFrontier(t *testing.T) {
	tests := []struct {
		dir  Direction
		want Cell
	}{
		{Left, Cell{1, 2, 0}},
		{Right, Cell{3, 2, 0}},
		{Up, Cell{2, 2, 1}},
		{Forward, Cell{2, 3, 0}},
		{Back, Cell{2, 1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.dir.String(), func(t *testing.T) {
			g := New()
			got, err := g.TryAdvance(tt.dir)
			if err != nil {
				t.Fatalf("try advance: %v", err)
			}
			if got != tt.want {
				t.Fatalf("cell = %v, want %v", got, tt.want)
			}
			if g.Frontier() != tt.want {
				t.Fatalf("frontier = %v, want %v", g.Frontier(), tt.want)
			}
			if !g.IsOccupied(tt.want) {
				t.Fatalf("expected %v to be occupied", tt.want)
			}
			if g.Moves() != 1 {
				t.Fatalf("moves = %d, want 1", g.Moves())
			}
		})
	}
}

func TestTryAdvanceOutOfBounds(t *testing.T) {
	g := New()
	// The origin sits on the floor, so down leaves the lattice immediately.
	_, err := g.TryAdvance(Down)
	if !errors.Is(err, apperrors.New(apperrors.CodeOutOfBounds, "")) {
		t.Fatalf("error = %v, want %s", err, apperrors.CodeOutOfBounds)
	}
	if g.Moves() != 0 || g.Frontier() != Origin {
		t.Fatal("expected grid to be unchanged")
	}

	for i := 0; i < 2; i++ {
		if _, err := g.TryAdvance(Left); err != nil {
			t.Fatalf("advance left: %v", err)
		}
	}
	if _, err := g.TryAdvance(Left); apperrors.CodeOf(err) != apperrors.CodeOutOfBounds {
		t.Fatalf("error code = %s, want %s", apperrors.CodeOf(err), apperrors.CodeOutOfBounds)
	}
	if g.Frontier() != (Cell{0, 2, 0}) {
		t.Fatalf("frontier = %v, want (0,2,0)", g.Frontier())
	}
}

func TestTryAdvanceCellOccupied(t *testing.T) {
	g := New()
	for _, dir := range []Direction{Right, Forward, Left} {
		if _, err := g.TryAdvance(dir); err != nil {
			t.Fatalf("advance %s: %v", dir, err)
		}
	}
	// Back from (2,3,0) lands on the origin.
	_, err := g.TryAdvance(Back)
	if apperrors.CodeOf(err) != apperrors.CodeCellOccupied {
		t.Fatalf("error code = %s, want %s", apperrors.CodeOf(err), apperrors.CodeCellOccupied)
	}
	if g.Moves() != 3 {
		t.Fatalf("moves = %d, want 3", g.Moves())
	}
}

func TestTryAdvanceRejectsUnknownDirection(t *testing.T) {
	g := New()
	if _, err := g.TryAdvance(Direction('Q')); apperrors.CodeOf(err) != apperrors.CodeMalformedMessage {
		t.Fatalf("error code = %s, want %s", apperrors.CodeOf(err), apperrors.CodeMalformedMessage)
	}
}

func TestResetRestoresOrigin(t *testing.T) {
	g := New()
	for _, dir := range []Direction{Up, Up, Right} {
		if _, err := g.TryAdvance(dir); err != nil {
			t.Fatalf("advance %s: %v", dir, err)
		}
	}
	g.Reset()
	if g.Frontier() != Origin || g.Moves() != 0 {
		t.Fatalf("after reset frontier=%v moves=%d", g.Frontier(), g.Moves())
	}
	if g.IsOccupied(Cell{2, 2, 1}) {
		t.Fatal("expected placed cell to be cleared")
	}
	if !g.IsOccupied(Origin) {
		t.Fatal("expected origin to stay occupied")
	}
}

func TestStuck(t *testing.T) {
	g := New()
	if g.Stuck() {
		t.Fatal("fresh grid should not be stuck")
	}
	// Walk into the (0,0,0) corner after occupying its three neighbours.
	for _, dir := range []Direction{Back, Back, Left, Up, Left, Forward, Down} {
		if _, err := g.TryAdvance(dir); err != nil {
			t.Fatalf("advance %s: %v", dir, err)
		}
	}
	if g.Stuck() {
		t.Fatal("expected the corner to still be free")
	}
	if _, err := g.TryAdvance(Back); err != nil {
		t.Fatalf("advance into corner: %v", err)
	}
	if g.Frontier() != (Cell{0, 0, 0}) {
		t.Fatalf("frontier = %v, want (0,0,0)", g.Frontier())
	}
	if !g.Stuck() {
		t.Fatal("expected boxed-in corner to be stuck")
	}
}

func TestRandomWalkKeepsPathInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for game := 0; game < 50; game++ {
		g := New()
		for step := 0; step < 400 && !g.Stuck(); step++ {
			dir := Directions[rng.Intn(len(Directions))]
			before := g.Moves()
			cell, err := g.TryAdvance(dir)
			if err != nil {
				if g.Moves() != before {
					t.Fatalf("rejected move changed move count")
				}
				continue
			}
			if cell != g.Frontier() {
				t.Fatalf("returned cell %v != frontier %v", cell, g.Frontier())
			}
		}
		path := g.Path()
		seen := make(map[Cell]struct{}, len(path))
		for _, c := range path {
			if _, dup := seen[c]; dup {
				t.Fatalf("duplicate cell %v in path", c)
			}
			if !g.IsOccupied(c) {
				t.Fatalf("path cell %v not occupied", c)
			}
			seen[c] = struct{}{}
		}
		if !g.IsOccupied(g.Frontier()) {
			t.Fatal("frontier must be occupied")
		}
		if g.Moves() > MaxMoves {
			t.Fatalf("moves = %d exceeds %d", g.Moves(), MaxMoves)
		}
	}
}
