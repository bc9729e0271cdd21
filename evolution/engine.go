// Package evolution runs the evolution strategy over a population of
// Tetris-playing policies.
package evolution

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/pthm-cable/tetrevo/config"
	"github.com/pthm-cable/tetrevo/fitness"
	"github.com/pthm-cable/tetrevo/game"
	"github.com/pthm-cable/tetrevo/neural"
	"github.com/pthm-cable/tetrevo/telemetry"
)

// Report summarizes one finished generation.
type Report struct {
	Stats        GenerationStats          `json:"stats"`
	Frame        telemetry.TelemetryFrame `json:"frame"`
	Lineage      []telemetry.LineageNode  `json:"lineage"`
	Insights     Insights                 `json:"insights"`
	NewGhost     bool                     `json:"newGhost"`
	StageChanged bool                     `json:"stageChanged"`
	Extinction   bool                     `json:"extinction"` // next population carries extra immigrants
}

// Engine owns the generation loop: build a population, tick it until every
// runner is dead, then evolve the search distribution and build the next.
// It is not safe for concurrent use.
type Engine struct {
	cfg  *config.Config
	rng  *rand.Rand
	pool *game.Pool

	// Search distribution
	generation int
	mean       neural.Params
	sigma      float64
	stepSize   float64
	stage      int

	// Schedule state
	bestEver        *neural.Genome
	bestEverFitness float64
	bestEverScore   float64
	hasBest         bool
	stagnation      int
	window          *telemetry.Ring[float64] // recent max fitness
	extinction      bool

	// Carried into the next build
	elites     []*neural.Genome
	seedParams []neural.Params
	insights   Insights

	// Current generation
	pop         *Population
	runSeeds    []int64
	garbageSeed int64
	diversity   float64

	// Records
	archive     *Archive
	leaderboard *telemetry.Leaderboard
	lineage     *telemetry.Ring[[]telemetry.LineageNode]
	frames      *telemetry.Ring[telemetry.TelemetryFrame]
	history     *telemetry.Ring[telemetry.HistoryPoint]
	timeline    *telemetry.Ring[telemetry.TimelineEvent]
	ghost       *telemetry.Ghost
	last        *Report
}

// NewEngine creates an engine with a fresh generation-1 population. All
// randomness, genome ids included, derives from seed.
func NewEngine(cfg *config.Config, seed int64) *Engine {
	e := &Engine{
		cfg:         cfg,
		rng:         rand.New(rand.NewSource(seed)),
		pool:        game.NewPool(cfg.Derived.Workers),
		window:      telemetry.NewRing[float64](max(1, cfg.Evolution.StagnationWindow)),
		archive:     NewArchive(cfg.Novelty.ArchiveSize),
		leaderboard: telemetry.NewLeaderboard(cfg.Telemetry.LeaderboardSize),
		lineage:     telemetry.NewRing[[]telemetry.LineageNode](cfg.Telemetry.LineageHistory),
		frames:      telemetry.NewRing[telemetry.TelemetryFrame](cfg.Telemetry.TelemetryHistory),
		history:     telemetry.NewRing[telemetry.HistoryPoint](cfg.Telemetry.FitnessHistory),
		timeline:    telemetry.NewRing[telemetry.TimelineEvent](cfg.Telemetry.FitnessHistory),
	}
	e.Reset()
	return e
}

// Reset discards all progress and starts again from the seed policy.
func (e *Engine) Reset() {
	e.clearProgress()
	e.mean = neural.SeedParams(e.rng)
	e.seedParams = []neural.Params{e.mean.Clone()}
	e.build()
	slog.Info("population reset", "size", e.pop.Len(), "stage", e.Stage().Name)
}

func (e *Engine) clearProgress() {
	ev := e.cfg.Evolution
	e.generation = 1
	e.sigma = ev.Sigma
	e.stepSize = ev.StepSize
	e.stage = 0

	e.bestEver = nil
	e.bestEverFitness = 0
	e.bestEverScore = 0
	e.hasBest = false
	e.stagnation = 0
	e.window.Reset()
	e.extinction = false

	e.elites = nil
	e.seedParams = nil
	e.insights = Insights{}

	e.archive.Reset()
	e.leaderboard.Reset()
	e.lineage.Reset()
	e.frames.Reset()
	e.history.Reset()
	e.timeline.Reset()
	e.ghost = nil
	e.last = nil
}

// Tick advances every live runner once. At the generation boundary it
// evolves and builds the next population, then returns true.
func (e *Engine) Tick() bool {
	if e.TickRunners() > 0 {
		return false
	}
	e.NextGeneration()
	return true
}

// TickRunners advances every live runner once and returns how many are
// still alive.
func (e *Engine) TickRunners() int {
	alive := e.pool.Tick(e.pop.Runners())
	e.noteFirstTetris()
	return alive
}

// noteFirstTetris records the first runner, in slot order, to clear four
// lines this generation.
func (e *Engine) noteFirstTetris() {
	if last, ok := e.timeline.Last(); ok && last.Generation == e.generation {
		return
	}
	for _, r := range e.pop.Runners() {
		if r.Tetrises() > 0 {
			e.timeline.Push(telemetry.TimelineEvent{
				Generation:    e.generation,
				FirstTetrisAt: time.Now().UnixMilli(),
				FirstTetrisBy: r.Genome.ID,
			})
			slog.Debug("first tetris", "generation", e.generation, "genome", r.Genome.ID)
			return
		}
	}
}

// NextGeneration evolves the finished population and builds the next one.
func (e *Engine) NextGeneration() *Report {
	e.last = e.evolve()
	e.generation++
	e.build()
	return e.last
}

// Close stops the tick workers.
func (e *Engine) Close() {
	e.pool.Close()
}

// Generation returns the generation being played.
func (e *Engine) Generation() int {
	return e.generation
}

// Runners returns the current population in slot order.
func (e *Engine) Runners() []*game.Runner {
	return e.pop.Runners()
}

// Runner finds a current runner by genome id.
func (e *Engine) Runner(id string) *game.Runner {
	r, _ := e.pop.Find(id)
	return r
}

// Kill ends the runner with the given genome id. It reports whether one
// was found.
func (e *Engine) Kill(id string) bool {
	r := e.Runner(id)
	if r == nil {
		return false
	}
	r.Kill()
	return true
}

// Mean returns a copy of the search distribution mean.
func (e *Engine) Mean() neural.Params {
	return e.mean.Clone()
}

// Sigma returns the exploration noise scale.
func (e *Engine) Sigma() float64 {
	return e.sigma
}

// Stage returns the active curriculum stage.
func (e *Engine) Stage() config.StageConfig {
	return e.cfg.Curriculum.Stages[e.stage]
}

// LastReport returns the most recent generation report, or nil before the
// first generation finishes.
func (e *Engine) LastReport() *Report {
	return e.last
}

// Leaderboard returns the best genomes seen, best first.
func (e *Engine) Leaderboard() []telemetry.LeaderboardEntry {
	return e.leaderboard.Entries()
}

// Lineage returns recent generations' lineage, oldest first.
func (e *Engine) Lineage() [][]telemetry.LineageNode {
	return e.lineage.Items()
}

// TelemetryHistory returns recent telemetry frames, oldest first.
func (e *Engine) TelemetryHistory() []telemetry.TelemetryFrame {
	return e.frames.Items()
}

// History returns the best-fitness history, oldest first.
func (e *Engine) History() []telemetry.HistoryPoint {
	return e.history.Items()
}

// Timeline returns the first-tetris events, oldest first.
func (e *Engine) Timeline() []telemetry.TimelineEvent {
	return e.timeline.Items()
}

// Ghost returns the best recorded run, or nil.
func (e *Engine) Ghost() *telemetry.Ghost {
	return e.ghost
}

// Stats summarizes the live population.
func (e *Engine) Stats() GenerationStats {
	runners := e.pop.Runners()
	fits := make([]float64, len(runners))
	alive := 0
	for i, r := range runners {
		fits[i] = fitness.Evaluate(r.Stats(), e.cfg.Fitness)
		if r.Alive() {
			alive++
		}
	}
	sum := summarize(fits)
	return GenerationStats{
		Generation:      e.generation,
		MaxFitness:      sum.max,
		AvgFitness:      sum.mean,
		MedianFitness:   sum.median,
		BestEverFitness: e.bestEverFitness,
		BestEverScore:   e.bestEverScore,
		Diversity:       e.diversity,
		Sigma:           e.sigma,
		StepSize:        e.stepSize,
		Stagnation:      e.stagnation,
		PopulationSize:  len(runners),
		Alive:           alive,
		Stage:           e.Stage().Name,
	}
}
