// Package game drives Tetris runs for a genome: timers, planning with a
// two-ply lookahead, queued inputs and multi-run bookkeeping.
package game

import (
	"math"
	"math/rand"
	"sort"

	"github.com/pthm-cable/tetrevo/config"
	"github.com/pthm-cable/tetrevo/fitness"
	"github.com/pthm-cable/tetrevo/neural"
	"github.com/pthm-cable/tetrevo/telemetry"
	"github.com/pthm-cable/tetrevo/tetris"
)

// step is one queued input. Y is the row the piece is expected on when the
// input fires.
type step struct {
	Action tetris.Action
	Y      int
}

// totals sums per-run counters over finished runs.
type totals struct {
	pieces, lines, ticks int
	tetrises, singles    int
}

func (t *totals) add(g *tetris.Game) {
	t.pieces += g.Pieces
	t.lines += g.Lines
	t.ticks += g.Ticks
	t.tetrises += g.Clears[4]
	t.singles += g.Clears[1]
}

// stackStats sums board metrics sampled after every lock.
type stackStats struct {
	locks                       int
	holes, bumpiness, maxHeight float64
	wells, rowTrans, colTrans   float64
}

func (s *stackStats) add(m tetris.Metrics) {
	s.locks++
	s.holes += float64(m.Holes)
	s.bumpiness += float64(m.Bumpiness)
	s.maxHeight += float64(m.MaxHeight)
	s.wells += float64(m.Wells)
	s.rowTrans += float64(m.RowTransitions)
	s.colTrans += float64(m.ColTransitions)
}

// Runner plays every run of one genome.
type Runner struct {
	Genome *neural.Genome

	net   *neural.FFNN
	cfg   config.GameConfig
	stage config.StageConfig
	rules tetris.Rules
	seeds []int64
	rng   *rand.Rand // garbage rolls

	game      *tetris.Game
	run       int
	runScores []float64
	alive     bool
	toppedOut bool
	done      totals
	board     stackStats

	queue       []step
	planned     bool
	speed       float64
	reaction    int
	actionDelay int
	actionTimer int
	gravity     int
	lockTimer   int
	lockResets  int
	controlled  bool

	ghost      *telemetry.GhostRecorder
	bestScore  float64
	bestFrames []telemetry.GhostFrame

	inputs [neural.NumInputs]float64
}

// NewRunner builds a runner for genome. Every run i deals pieces from seeds[i];
// garbage rolls come from garbageSeed. Invalid params are replaced by the
// caller before this point; NewRunner returns an error for them.
func NewRunner(genome *neural.Genome, cfg config.GameConfig, stage config.StageConfig, seeds []int64, garbageSeed int64) (*Runner, error) {
	net, err := neural.NewFFNN(genome.Params)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		seeds = []int64{0}
	}
	r := &Runner{
		Genome: genome,
		net:    net,
		cfg:    cfg,
		stage:  stage,
		rules:  Rules(cfg, stage),
		seeds:  seeds,
		rng:    rand.New(rand.NewSource(garbageSeed)),
		alive:  true,
		speed:  0.5,
		ghost:  telemetry.NewGhostRecorder(cfg.GhostMaxFrames),
	}
	r.startRun()
	return r, nil
}

// Rules maps config onto the rules of one run.
func Rules(cfg config.GameConfig, stage config.StageConfig) tetris.Rules {
	return tetris.Rules{
		BaseGravity:   cfg.BaseGravity,
		GravityDecay:  cfg.GravityDecay,
		BaseLockDelay: cfg.BaseLockDelay,
		LockDecay:     cfg.LockDecay,
		MinLockDelay:  cfg.MinLockDelay,
		MultiplierCap: cfg.MultiplierCap,
		GravityScale:  stage.GravityScale,
	}
}

func (r *Runner) startRun() {
	r.game = tetris.NewGame(r.seeds[r.run], r.rules)
	r.resetPiece()
	if r.game.Over {
		r.endRun(true)
	}
}

// resetPiece clears per-piece state after a spawn.
func (r *Runner) resetPiece() {
	r.queue = r.queue[:0]
	r.planned = false
	r.gravity = 0
	r.lockTimer = 0
	r.lockResets = 0
	r.actionTimer = 0

	adrenaline := math.Min(8, float64(r.game.Level-1)*0.5)
	r.reaction = max(0, int(math.Floor((float64(r.cfg.BaseReaction)-adrenaline)*(1-r.speed))))
}

// Tick advances the runner by one simulated frame.
func (r *Runner) Tick() {
	if !r.alive {
		return
	}
	g := r.game
	g.Ticks++

	if g.Grounded() {
		r.lockTimer++
		if r.lockTimer >= g.LockDelay() {
			g.Lock()
			r.afterLock()
			return
		}
	} else {
		r.gravity++
		if r.gravity >= g.GravityInterval() {
			r.gravity = 0
			g.Move(0, 1)
			r.lockTimer = 0
		}
	}

	if !r.controlled {
		r.think()
	}
	if r.alive && !r.controlled {
		r.maybeGarbage()
	}
}

// think runs the AI half of a tick: reaction delay, planning, one input.
func (r *Runner) think() {
	if r.reaction > 0 {
		r.reaction--
		return
	}
	if !r.planned {
		r.plan()
		r.planned = true
	}
	if r.actionTimer > 0 {
		r.actionTimer--
		return
	}
	r.execute()
}

func (r *Runner) maybeGarbage() {
	if r.cfg.GarbageChance <= 0 {
		return
	}
	g := r.game
	if r.rng.Float64() >= r.cfg.GarbageChance*float64(g.Level) {
		return
	}
	g.AddGarbageLine(r.rng)
	r.planned = false
	r.queue = r.queue[:0]
	if g.Over {
		r.endRun(true)
	}
}

// candidate is a scored placement of the current piece.
type candidate struct {
	placement tetris.Placement
	outcome   tetris.Outcome
	score     float64
	speed     float64
}

// plan picks a placement for the active piece and queues its inputs.
func (r *Runner) plan() {
	g := r.game
	placements := tetris.Reachable(&g.Board, g.Current)
	if len(placements) == 0 {
		r.queue = append(r.queue[:0], step{Action: tetris.HardDrop, Y: g.Current.Y})
		return
	}

	cands := make([]candidate, len(placements))
	for i, pl := range placements {
		out := tetris.Simulate(&g.Board, pl.Piece)
		neural.Extract(&out, pl.Piece, g.Next, &r.inputs)
		score, speed := r.net.Forward(&r.inputs)
		cands[i] = candidate{placement: pl, outcome: out, score: score, speed: speed}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })

	best := 0
	bestScore := math.Inf(-1)
	k := min(r.cfg.LookaheadTopK, len(cands))
	for i := 0; i < k; i++ {
		final := r.lookahead(&cands[i], g.Next)
		if final > bestScore {
			bestScore = final
			best = i
		}
	}

	win := &cands[best]
	r.speed = win.speed
	r.actionDelay = max(0, int(math.Floor(float64(r.cfg.MaxActionDelay)*(1-win.speed))))
	r.queue = buildQueue(r.queue[:0], &g.Board, g.Current, win.placement.Path)
}

// lookahead blends a candidate's score with the best reply of the next piece.
func (r *Runner) lookahead(c *candidate, next tetris.Kind) float64 {
	replies := tetris.Reachable(&c.outcome.Board, tetris.Spawn(next))
	if len(replies) == 0 {
		return c.score - r.cfg.DeadEndPenalty
	}

	bestNext := math.Inf(-1)
	for _, pl := range replies {
		out := tetris.Simulate(&c.outcome.Board, pl.Piece)
		// The piece after next is unknown, so no preview one-hot.
		neural.Extract(&out, pl.Piece, tetris.Kind(tetris.NumKinds), &r.inputs)
		s, _ := r.net.Forward(&r.inputs)
		if s > bestNext {
			bestNext = s
		}
	}
	w := r.cfg.LookaheadBlend
	return c.score*(1-w) + bestNext*w
}

// buildQueue replays a search path from p and tags each input with the row
// it is planned on. Trailing soft drops collapse into the final hard drop.
func buildQueue(dst []step, b *tetris.Board, p tetris.Piece, path []tetris.Action) []step {
	end := len(path)
	for end > 0 && path[end-1] == tetris.SoftDrop {
		end--
	}
	for _, a := range path[:end] {
		dst = append(dst, step{Action: a, Y: p.Y})
		switch a {
		case tetris.Left:
			p.X--
		case tetris.Right:
			p.X++
		case tetris.SoftDrop:
			p.Y++
		case tetris.Rotate:
			p, _ = b.RotateKick(p)
		}
	}
	return append(dst, step{Action: tetris.HardDrop, Y: p.Y})
}

// execute fires the next queued input.
func (r *Runner) execute() {
	g := r.game
	// Soft drops already covered by gravity are skipped.
	for len(r.queue) > 0 && r.queue[0].Action == tetris.SoftDrop && g.Current.Y > r.queue[0].Y {
		r.queue = r.queue[1:]
	}
	if len(r.queue) == 0 {
		return
	}
	st := r.queue[0]
	r.queue = r.queue[1:]
	r.actionTimer = r.actionDelay

	if !r.apply(st.Action) {
		// Gravity moved the piece off the planned path.
		r.planned = false
		r.queue = r.queue[:0]
	}
}

// apply performs one input and handles lock resets and locking.
func (r *Runner) apply(a tetris.Action) bool {
	g := r.game
	var ok bool
	switch a {
	case tetris.Left:
		ok = g.Move(-1, 0)
	case tetris.Right:
		ok = g.Move(1, 0)
	case tetris.SoftDrop:
		ok = g.Move(0, 1)
		if ok {
			r.gravity = 0
		}
	case tetris.Rotate:
		ok = g.Rotate()
	case tetris.HardDrop:
		g.HardDrop()
		r.afterLock()
		return true
	}

	if ok && r.lockResets < r.cfg.MaxLockResets && g.Grounded() {
		r.lockTimer = 0
		r.lockResets++
	}
	return ok
}

// afterLock records the locked board and starts the next piece or run.
func (r *Runner) afterLock() {
	g := r.game
	r.board.add(g.Board.Metrics())
	if g.Over {
		r.ghost.Capture(&g.Board, nil)
		r.endRun(true)
		return
	}
	r.ghost.Capture(&g.Board, &g.Current)
	if r.stage.PieceCap > 0 && g.Pieces >= r.stage.PieceCap {
		r.endRun(false)
		return
	}
	r.resetPiece()
}

// endRun closes the current run. Death by cap is not a top-out.
func (r *Runner) endRun(toppedOut bool) {
	g := r.game
	r.runScores = append(r.runScores, g.Score)
	r.done.add(g)
	if toppedOut {
		r.toppedOut = true
	}

	frames := r.ghost.Take()
	if len(r.runScores) == 1 || g.Score > r.bestScore {
		r.bestScore = g.Score
		r.bestFrames = frames
	}

	r.run++
	if r.run >= len(r.seeds) {
		r.alive = false
		return
	}
	r.startRun()
}

// Kill ends the runner. The current run counts as a top-out.
func (r *Runner) Kill() {
	if !r.alive {
		return
	}
	r.run = len(r.seeds) - 1
	r.endRun(true)
}

// TakeControl suspends the AI; inputs then come from Control.
func (r *Runner) TakeControl() {
	r.controlled = true
	r.queue = r.queue[:0]
}

// Release hands the runner back to the AI, which replans.
func (r *Runner) Release() {
	r.controlled = false
	r.planned = false
	r.queue = r.queue[:0]
}

// Controlled reports whether the AI is suspended.
func (r *Runner) Controlled() bool {
	return r.controlled
}

// Control applies a manual input. It reports whether the input took effect.
func (r *Runner) Control(a tetris.Action) bool {
	if !r.alive || !r.controlled {
		return false
	}
	return r.apply(a)
}

// Alive reports whether runs remain.
func (r *Runner) Alive() bool {
	return r.alive
}

// Game returns the current run. After death it is the last run played.
func (r *Runner) Game() *tetris.Game {
	return r.game
}

// Run returns the zero-based index of the current run.
func (r *Runner) Run() int {
	return r.run
}

// Score is the median of finished runs, or the live score before any run
// has finished.
func (r *Runner) Score() float64 {
	if len(r.runScores) == 0 {
		return r.game.Score
	}
	return telemetry.Median(r.runScores)
}

// BestRun returns the best finished run score and its recorded frames.
func (r *Runner) BestRun() (float64, []telemetry.GhostFrame) {
	return r.bestScore, r.bestFrames
}

// liveTotals adds the live run to the finished totals and returns the run
// count to average over.
func (r *Runner) liveTotals() (totals, float64) {
	t := r.done
	n := len(r.runScores)
	if r.alive {
		t.add(r.game)
		n++
	}
	return t, float64(max(1, n))
}

// Tetrises counts four-line clears over all runs played so far.
func (r *Runner) Tetrises() int {
	t, _ := r.liveTotals()
	return t.tetrises
}

// Stats summarizes all runs played so far.
func (r *Runner) Stats() fitness.Stats {
	t, n := r.liveTotals()
	s := fitness.Stats{
		Score:    r.Score(),
		Pieces:   float64(t.pieces) / n,
		Lines:    float64(t.lines) / n,
		Ticks:    float64(t.ticks) / n,
		Tetrises: float64(t.tetrises) / n,
		Singles:  float64(t.singles) / n,
		Dead:     r.toppedOut,
	}
	if l := float64(r.board.locks); l > 0 {
		s.AvgHoles = r.board.holes / l
		s.AvgBumpiness = r.board.bumpiness / l
		s.AvgMaxHeight = r.board.maxHeight / l
		s.AvgWells = r.board.wells / l
	}
	return s
}

// Metrics returns the per-lock average board shape.
func (r *Runner) Metrics() telemetry.BoardMetrics {
	l := float64(r.board.locks)
	if l == 0 {
		return telemetry.BoardMetrics{}
	}
	return telemetry.BoardMetrics{
		Holes:          r.board.holes / l,
		Bumpiness:      r.board.bumpiness / l,
		MaxHeight:      r.board.maxHeight / l,
		Wells:          r.board.wells / l,
		RowTransitions: r.board.rowTrans / l,
		ColTransitions: r.board.colTrans / l,
	}
}
