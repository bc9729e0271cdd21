package tetris

import (
	"math"
	"math/rand"
)

// Rules holds the timing and scoring constants of one run.
type Rules struct {
	BaseGravity   int     // ticks per gravity step at level 1
	GravityDecay  float64 // per-level multiplier on the gravity interval
	BaseLockDelay int
	LockDecay     float64
	MinLockDelay  int
	MultiplierCap float64
	GravityScale  float64 // curriculum speed factor, >1 is faster
}

// linePoints is the base award indexed by lines cleared in one lock.
var linePoints = [5]float64{0, 100, 400, 900, 2500}

// Game is a single Tetris run: board, active piece, preview and counters.
type Game struct {
	Board      Board
	Current    Piece
	Next       Kind
	Score      float64
	Lines      int
	Level      int
	Pieces     int
	Ticks      int
	Multiplier float64
	Clears     [5]int // locks by lines cleared, index 0 = no clear
	LastLines  int
	Over       bool

	rules Rules
	bag   *Bag
}

// NewGame starts a run dealing pieces from a bag seeded with seed.
// The first piece is spawned immediately.
func NewGame(seed int64, rules Rules) *Game {
	if rules.GravityScale <= 0 {
		rules.GravityScale = 1
	}
	g := &Game{
		Level:      1,
		Multiplier: 1,
		rules:      rules,
		bag:        NewBag(seed),
	}
	g.Next = g.bag.Next()
	g.Spawn()
	return g
}

// Rules returns the run's constants.
func (g *Game) Rules() Rules {
	return g.rules
}

// Spawn promotes the preview piece to the active piece. It returns false and
// ends the run when the spawn position is blocked.
func (g *Game) Spawn() bool {
	g.Current = Spawn(g.Next)
	g.Next = g.bag.Next()
	if !g.Board.Fits(g.Current) {
		g.Over = true
		return false
	}
	return true
}

// Move shifts the active piece by (dx, dy) if the target is free.
func (g *Game) Move(dx, dy int) bool {
	if g.Over {
		return false
	}
	p := g.Current
	if g.Board.Collides(p.Shape(), p.X+dx, p.Y+dy) {
		return false
	}
	g.Current.X += dx
	g.Current.Y += dy
	return true
}

// Rotate turns the active piece clockwise using the kick table.
func (g *Game) Rotate() bool {
	if g.Over {
		return false
	}
	p, ok := g.Board.RotateKick(g.Current)
	if ok {
		g.Current = p
	}
	return ok
}

// Grounded reports whether the active piece rests on the stack or floor.
func (g *Game) Grounded() bool {
	return g.Board.Grounded(g.Current)
}

// HardDrop drops the active piece and locks it, returning lines cleared.
func (g *Game) HardDrop() int {
	if g.Over {
		return 0
	}
	g.Current = g.Board.Drop(g.Current)
	return g.Lock()
}

// Lock writes the active piece, clears lines, scores and spawns the next
// piece. It returns the number of lines cleared.
func (g *Game) Lock() int {
	if g.Over {
		return 0
	}
	g.Board.Place(g.Current)
	lines := g.Board.ClearLines()

	g.Multiplier = g.multiplier()
	g.Score += linePoints[lines]*float64(g.Level)*g.Multiplier + 1
	g.Lines += lines
	g.Level = g.Lines/10 + 1
	g.Pieces++
	g.Clears[lines]++
	g.LastLines = lines

	g.Spawn()
	return lines
}

// multiplier is the run bonus from lines, score and survival time.
func (g *Game) multiplier() float64 {
	m := 1 + 0.02*float64(g.Lines) + 0.001*math.Sqrt(g.Score) + 0.05*float64(g.Ticks)/3600
	return math.Min(g.rules.MultiplierCap, m)
}

// AddGarbageLine pushes a garbage row under the stack. If the active piece is
// displaced it moves up one row, or the run ends when that is blocked too.
func (g *Game) AddGarbageLine(rng *rand.Rand) {
	if g.Over {
		return
	}
	g.Board.AddGarbage(rng)
	if g.Board.Fits(g.Current) {
		return
	}
	up := g.Current
	up.Y--
	if g.Board.Fits(up) {
		g.Current = up
		return
	}
	g.Over = true
}

// GravityInterval returns ticks per gravity step at the current level.
func (g *Game) GravityInterval() int {
	v := float64(g.rules.BaseGravity) * math.Pow(g.rules.GravityDecay, float64(g.Level-1)) / g.rules.GravityScale
	return max(1, int(math.Floor(v)))
}

// LockDelay returns ticks a grounded piece waits before locking.
func (g *Game) LockDelay() int {
	v := float64(g.rules.BaseLockDelay) * math.Pow(g.rules.LockDecay, float64(g.Level-1)) / g.rules.GravityScale
	return max(g.rules.MinLockDelay, 1, int(math.Floor(v)))
}
