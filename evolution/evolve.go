package evolution

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/tetrevo/fitness"
	"github.com/pthm-cable/tetrevo/neural"
	"github.com/pthm-cable/tetrevo/telemetry"
)

// scored is one member's end-of-generation evaluation.
type scored struct {
	Member
	stats   fitness.Stats
	fitness float64
	sig     fitness.Signature
	novelty float64
}

// evolve scores the finished generation, moves the search distribution and
// updates every record. It does not build the next population.
func (e *Engine) evolve() *Report {
	members := e.pop.Members()
	ss := make([]scored, len(members))
	fits := make([]float64, len(members))
	for i, m := range members {
		s := m.Runner.Stats()
		sig := s.Signature()
		ss[i] = scored{
			Member:  m,
			stats:   s,
			fitness: fitness.Evaluate(s, e.cfg.Fitness),
			sig:     sig,
			novelty: e.archive.Novelty(sig, e.cfg.Novelty.K),
		}
		fits[i] = ss[i].fitness
	}
	sum := summarize(fits)

	e.updateMean(ss)
	e.learnCollectively(ss)

	ev := e.cfg.Evolution
	spike := e.hasBest && sum.max-e.bestEverFitness > math.Abs(e.bestEverFitness)*(ev.SpikeMultiplier-1)
	e.updateStagnation(sum.max)
	e.sigma = e.nextSigma(spike)
	e.stepSize = math.Max(ev.StepSizeMin, ev.StepSize*math.Pow(ev.StepSizeDecay, float64(e.generation)))

	if !e.hasBest || sum.max > e.bestEverFitness {
		e.bestEverFitness = sum.max
		e.bestEver = ss[sum.best].Runner.Genome.Clone()
		e.hasBest = true
	}
	for _, s := range ss {
		e.bestEverScore = math.Max(e.bestEverScore, s.stats.Score)
	}
	stageChanged := e.advanceCurriculum()

	e.extinction = e.diversity < ev.DiversityFloor
	e.elites = topGenomes(ss, ev.EliteCount)

	sigs := make([]fitness.Signature, len(ss))
	nov := make([]float64, len(ss))
	for i, s := range ss {
		sigs[i], nov[i] = s.sig, s.novelty
	}
	e.archive.AddMostNovel(sigs, nov, e.cfg.Novelty.AddPerGen)

	rep := &Report{
		Lineage:      e.recordLineage(ss),
		Insights:     e.insights,
		NewGhost:     e.recordGhost(),
		StageChanged: stageChanged,
		Extinction:   e.extinction,
	}
	e.recordLeaderboard(ss)
	e.history.Push(telemetry.HistoryPoint{Gen: e.generation, Fitness: sum.max})

	rep.Stats = e.Stats()
	rep.Frame = e.recordFrame(ss, sum)
	if stageChanged {
		slog.Info("curriculum advanced", "generation", e.generation, "stage", e.Stage().Name)
	}
	return rep
}

// updateMean applies the blended rank-utility gradient of the ES samples.
func (e *Engine) updateMean(ss []scored) {
	var noise [][]float64
	var fits, nov []float64
	for _, s := range ss {
		if s.Noise == nil {
			continue
		}
		noise = append(noise, s.Noise)
		fits = append(fits, s.fitness)
		nov = append(nov, s.novelty)
	}
	if len(noise) == 0 {
		return
	}

	w := e.cfg.Novelty.Weight
	fu, nu := Utilities(fits), Utilities(nov)
	utils := make([]float64, len(fu))
	for i := range utils {
		utils[i] = (1-w)*fu[i] + w*nu[i]
	}

	next := neural.Params(UpdateMean(e.mean, noise, utils, e.stepSize, e.sigma))
	if !next.Valid() {
		slog.Warn("discarding non-finite mean update", "generation", e.generation)
		return
	}
	e.mean = next
}

// learnCollectively nudges the mean with this generation's archetypes and
// queues cultural seeds for the next build.
func (e *Engine) learnCollectively(ss []scored) {
	e.insights = Insights{}
	c := e.cfg.Collective
	if !c.Enabled {
		return
	}

	agents := make([]Agent, len(ss))
	for i, s := range ss {
		agents[i] = Agent{Params: s.Runner.Genome.Params, Stats: s.stats}
	}
	e.insights = ExtractInsights(agents, c)
	if e.insights.Empty() {
		return
	}

	next := neural.Params(Nudge(e.mean, e.insights, CollectiveRate(c, e.generation), c.RepelRatio))
	if next.Valid() {
		e.mean = next
	}
	for _, a := range e.insights.ByDominance()[:min(max(0, c.CulturalSeeds), len(e.insights.Success))] {
		e.seedParams = append(e.seedParams, neural.Params(a.Centroid).Clone())
	}
}

// updateStagnation resets the counter when maxFit beats the recent window.
func (e *Engine) updateStagnation(maxFit float64) {
	recent := e.window.Items()
	improved := len(recent) == 0
	if !improved {
		best := recent[0]
		for _, v := range recent[1:] {
			best = math.Max(best, v)
		}
		improved = maxFit > best
	}
	if improved {
		e.stagnation = 0
	} else {
		e.stagnation++
	}
	e.window.Push(maxFit)
}

// nextSigma is the exploration schedule. A spike in a diverse population
// exploits; a spike in a converged one keeps exploring.
func (e *Engine) nextSigma(spike bool) float64 {
	ev := e.cfg.Evolution
	switch {
	case spike && e.diversity >= ev.LowDiversity:
		return ev.SigmaMin
	case spike:
		return math.Max(e.sigma, ev.Sigma)
	case e.stagnation >= ev.LongStagnation:
		return math.Min(ev.SigmaMax, e.sigma*ev.SigmaBoost)
	case e.stagnation > 0:
		return math.Max(ev.SigmaMin, e.sigma*ev.SigmaFineTune)
	default:
		return math.Max(ev.SigmaMin, e.sigma*ev.SigmaDecay)
	}
}

// advanceCurriculum moves to the last stage whose threshold the best raw
// score has reached. Stages never regress.
func (e *Engine) advanceCurriculum() bool {
	target := e.stage
	for i, s := range e.cfg.Curriculum.Stages {
		if s.MinBestScore <= e.bestEverScore {
			target = max(target, i)
		}
	}
	changed := target != e.stage
	e.stage = target
	return changed
}

func topGenomes(ss []scored, n int) []*neural.Genome {
	idx := make([]int, len(ss))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return ss[idx[a]].fitness > ss[idx[b]].fitness })

	out := make([]*neural.Genome, 0, n)
	for _, i := range idx[:min(max(0, n), len(idx))] {
		out = append(out, ss[i].Runner.Genome.Clone())
	}
	return out
}

func (e *Engine) recordLineage(ss []scored) []telemetry.LineageNode {
	nodes := make([]telemetry.LineageNode, len(ss))
	for i, s := range ss {
		g := s.Runner.Genome
		nodes[i] = telemetry.LineageNode{
			ID:         g.ID,
			Generation: e.generation,
			Parents:    g.Parents,
			Fitness:    s.fitness,
			Novelty:    s.novelty,
			Score:      s.stats.Score,
			Lines:      s.stats.Lines,
			Level:      float64(s.Runner.Game().Level),
			Pieces:     s.stats.Pieces,
			Metrics:    s.Runner.Metrics(),
			Signature:  append([]float64(nil), s.sig[:]...),
			BornMethod: string(g.Provenance),
		}
	}
	e.lineage.Push(nodes)
	return nodes
}

func (e *Engine) recordLeaderboard(ss []scored) {
	now := time.Now().UnixMilli()
	for _, s := range ss {
		g := s.Runner.Genome
		e.leaderboard.Consider(telemetry.LeaderboardEntry{
			ID:         g.ID,
			Score:      s.stats.Score,
			Level:      float64(s.Runner.Game().Level),
			Lines:      s.stats.Lines,
			Generation: g.Generation,
			BornMethod: string(g.Provenance),
			Timestamp:  now,
		})
	}
}

// recordGhost keeps the best single run seen so far. It reports whether
// the ghost was replaced.
func (e *Engine) recordGhost() bool {
	var best *telemetry.Ghost
	for _, r := range e.pop.Runners() {
		score, frames := r.BestRun()
		if len(frames) == 0 {
			continue
		}
		if best == nil || score > best.Score {
			best = &telemetry.Ghost{ID: r.Genome.ID, Generation: e.generation, Score: score, Frames: frames}
		}
	}
	if best == nil || (e.ghost != nil && best.Score <= e.ghost.Score) {
		return false
	}
	best.CreatedAt = time.Now().UnixMilli()
	e.ghost = best
	return true
}

func (e *Engine) recordFrame(ss []scored, sum summary) telemetry.TelemetryFrame {
	n := len(ss)
	score := make([]float64, n)
	lines := make([]float64, n)
	level := make([]float64, n)
	holes := make([]float64, n)
	bump := make([]float64, n)
	height := make([]float64, n)
	wells := make([]float64, n)
	rowT := make([]float64, n)
	colT := make([]float64, n)
	var finalHoles, filled int
	for i, s := range ss {
		m := s.Runner.Metrics()
		score[i] = s.stats.Score
		lines[i] = s.stats.Lines
		level[i] = float64(s.Runner.Game().Level)
		holes[i] = s.stats.AvgHoles
		bump[i] = s.stats.AvgBumpiness
		height[i] = s.stats.AvgMaxHeight
		wells[i] = s.stats.AvgWells
		rowT[i] = m.RowTransitions
		colT[i] = m.ColTransitions

		b := &s.Runner.Game().Board
		finalHoles += b.Metrics().Holes
		filled += b.Filled()
	}

	f := telemetry.TelemetryFrame{
		Generation:        e.generation,
		AvgScore:          stat.Mean(score, nil),
		AvgLines:          stat.Mean(lines, nil),
		AvgLevel:          stat.Mean(level, nil),
		MaxScore:          maxOf(score),
		MaxLines:          maxOf(lines),
		AvgHoles:          stat.Mean(holes, nil),
		AvgBumpiness:      stat.Mean(bump, nil),
		AvgMaxHeight:      stat.Mean(height, nil),
		AvgWells:          stat.Mean(wells, nil),
		AvgRowTransitions: stat.Mean(rowT, nil),
		AvgColTransitions: stat.Mean(colT, nil),
		MaxFitness:        sum.max,
		AvgFitness:        sum.mean,
		FitnessStd:        sum.std,
		Diversity:         e.diversity,
		Sigma:             e.sigma,
		StepSize:          e.stepSize,
		Stage:             e.Stage().Name,
		Timestamp:         time.Now().UnixMilli(),
	}
	if filled > 0 {
		f.HoleDensity = float64(finalHoles) / float64(filled)
	}
	e.frames.Push(f)
	return f
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		m = math.Max(m, v)
	}
	return m
}
