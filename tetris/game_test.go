package tetris

import (
	"math/rand"
	"testing"
)

func testRules() Rules {
	return Rules{
		BaseGravity:   50,
		GravityDecay:  0.85,
		BaseLockDelay: 30,
		LockDecay:     0.92,
		MinLockDelay:  8,
		MultiplierCap: 5,
		GravityScale:  1,
	}
}

// clearOneLine readies a board whose bottom row is completed by a flat I.
func clearOneLine(g *Game) {
	g.Board = Board{}
	fillRow(&g.Board, Height-1, 3, 4, 5, 6)
	g.Current = Spawn(I)
	g.Over = false
}

func TestLevelProgression(t *testing.T) {
	g := NewGame(1, testRules())

	tests := []struct {
		lines     int
		wantLevel int
	}{
		{10, 2},
		{19, 2},
		{20, 3},
	}
	for _, tt := range tests {
		for g.Lines < tt.lines {
			clearOneLine(g)
			if n := g.HardDrop(); n != 1 {
				t.Fatalf("expected a single clear, got %d", n)
			}
		}
		if g.Level != tt.wantLevel {
			t.Errorf("after %d lines: level %d, want %d", g.Lines, g.Level, tt.wantLevel)
		}
	}
}

func TestLockScoring(t *testing.T) {
	g := NewGame(1, testRules())
	clearOneLine(g)
	g.HardDrop()

	// 100 points x level 1 x multiplier 1, plus the piece bonus.
	if g.Score != 101 {
		t.Errorf("score: got %v, want 101", g.Score)
	}
	if g.Pieces != 1 || g.Clears[1] != 1 {
		t.Errorf("counters: pieces=%d singles=%d", g.Pieces, g.Clears[1])
	}

	// A lock without a clear adds only the piece bonus.
	g.Board = Board{}
	g.Current = Spawn(O)
	before := g.Score
	g.HardDrop()
	if g.Score-before != 1 {
		t.Errorf("no-clear lock: got %v points, want 1", g.Score-before)
	}
}

func TestMultiplierCapped(t *testing.T) {
	r := testRules()
	r.MultiplierCap = 1.5
	g := NewGame(1, r)
	g.Lines = 500
	g.Score = 1e6
	g.Ticks = 1e6
	if m := g.multiplier(); m != 1.5 {
		t.Errorf("multiplier: got %v, want cap 1.5", m)
	}
}

func TestSpawnDeath(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(b *Board)
		wantOver bool
	}{
		{
			// Single-cell gap in column 4 below row 2; spawn rows stay free.
			name: "gap below open spawn",
			setup: func(b *Board) {
				for y := 2; y < Height; y++ {
					fillRow(b, y, 4)
				}
			},
			wantOver: false,
		},
		{
			name: "spawn cells occupied",
			setup: func(b *Board) {
				for y := 0; y < Height; y++ {
					fillRow(b, y, 4)
				}
			},
			wantOver: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGame(1, testRules())
			g.Board = Board{}
			tt.setup(&g.Board)
			g.Next = O
			g.Over = false
			g.Spawn()
			if g.Over != tt.wantOver {
				t.Errorf("over: got %v, want %v", g.Over, tt.wantOver)
			}
			if !tt.wantOver && len(Reachable(&g.Board, g.Current)) == 0 {
				t.Error("open spawn should have at least one placement")
			}
		})
	}
}

func TestMoveAndRotate(t *testing.T) {
	g := NewGame(3, testRules())
	g.Current = Spawn(T)

	if !g.Move(-1, 0) || g.Current.X != 2 {
		t.Errorf("move left: x=%d", g.Current.X)
	}
	for g.Move(-1, 0) {
	}
	if g.Current.X != 0 {
		t.Errorf("wall stop: x=%d, want 0", g.Current.X)
	}
	if !g.Rotate() {
		t.Error("rotate at the wall should succeed")
	}
	if !g.Board.Fits(g.Current) {
		t.Error("rotated piece collides")
	}
}

func TestGarbageShiftsPieceUp(t *testing.T) {
	g := NewGame(5, testRules())
	g.Board = Board{}
	g.Current = Piece{Kind: O, X: 4, Y: 18}
	g.AddGarbageLine(rand.New(rand.NewSource(42)))

	if g.Over {
		t.Fatal("piece should shift up, not die")
	}
	if g.Current.Y != 17 {
		t.Errorf("piece y: got %d, want 17", g.Current.Y)
	}
}

func TestGarbageKillsBlockedPiece(t *testing.T) {
	g := NewGame(5, testRules())
	g.Board = Board{}
	g.Current = Piece{Kind: O, X: 4, Y: 0}
	for y := 2; y < Height; y++ {
		fillRow(&g.Board, y, 0)
	}
	g.AddGarbageLine(rand.New(rand.NewSource(42)))
	if !g.Over {
		t.Error("piece pinned at the top should die")
	}
}

func TestTimersShrinkWithLevel(t *testing.T) {
	g := NewGame(1, testRules())
	if got := g.GravityInterval(); got != 50 {
		t.Errorf("level 1 gravity: got %d, want 50", got)
	}
	if got := g.LockDelay(); got != 30 {
		t.Errorf("level 1 lock delay: got %d, want 30", got)
	}
	g.Level = 40
	if got := g.GravityInterval(); got != 1 {
		t.Errorf("level 40 gravity: got %d, want floor 1", got)
	}
	if got := g.LockDelay(); got != 8 {
		t.Errorf("level 40 lock delay: got %d, want floor 8", got)
	}

	fast := testRules()
	fast.GravityScale = 2
	g = NewGame(1, fast)
	if got := g.GravityInterval(); got != 25 {
		t.Errorf("scaled gravity: got %d, want 25", got)
	}
}
