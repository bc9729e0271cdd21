package main

import (
	"math"
	"slices"
	"sync"

	"github.com/pthm-cable/tetrevo/config"
	"github.com/pthm-cable/tetrevo/evolution"
)

// FitnessEvaluator runs headless evolution runs and scores hyperparameters.
type FitnessEvaluator struct {
	params      *ParamVector
	generations int
	maxTicks    int
	seeds       []int64
	baseConfig  *config.Config

	// Best run tracking
	mu          sync.Mutex
	bestFitness float64
	bestState   *evolution.State
	lastStage   string // furthest stage reached by the most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, generations, maxTicks int, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		generations: generations,
		maxTicks:    maxTicks,
		seeds:       seeds,
		baseConfig:  baseCfg,
		bestFitness: math.Inf(1),
	}
}

// BestState returns the final engine state of the best evaluation.
func (fe *FitnessEvaluator) BestState() *evolution.State {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestState
}

// LastStage returns the furthest curriculum stage of the most recent evaluation.
func (fe *FitnessEvaluator) LastStage() string {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastStage
}

// runResult holds the results from a single evolution run.
type runResult struct {
	bestScore   float64
	generations int
	stage       int
	stageName   string
	state       *evolution.State
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Fitness is the negated mean best-ever score across seeds.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)
	// Seeds already run in parallel
	cfg.Sim.Workers = 1
	if err := cfg.Finalize(); err != nil {
		return math.Inf(1)
	}

	results := make([]runResult, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runEvolution(cfg, s)
		}(i, seed)
	}
	wg.Wait()

	var total float64
	best := results[0]
	for _, r := range results {
		total += r.bestScore
		if r.stage > best.stage {
			best.stage, best.stageName = r.stage, r.stageName
		}
		if r.bestScore > best.bestScore {
			best.bestScore, best.state = r.bestScore, r.state
		}
	}
	fitness := -total / float64(len(results))

	fe.mu.Lock()
	if fitness < fe.bestFitness {
		fe.bestFitness = fitness
		fe.bestState = best.state
	}
	fe.lastStage = best.stageName
	fe.mu.Unlock()

	return fitness
}

// runEvolution plays generations until the budget or the tick cap runs out.
// The engine reads cfg without writing it, so seeds share one copy.
func (fe *FitnessEvaluator) runEvolution(cfg *config.Config, seed int64) runResult {
	e := evolution.NewEngine(cfg, seed)
	defer e.Close()

	for ticks := 0; e.Generation() <= fe.generations && ticks < fe.maxTicks; ticks++ {
		e.Tick()
	}

	r := runResult{generations: e.Generation() - 1}
	if rep := e.LastReport(); rep != nil {
		r.bestScore = rep.Stats.BestEverScore
		r.stageName = rep.Stats.Stage
		r.stage = slices.IndexFunc(cfg.Curriculum.Stages, func(s config.StageConfig) bool {
			return s.Name == r.stageName
		})
	}
	r.state = e.Export()
	return r
}

// copyConfig creates a deep copy of the base config.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	cfg.Curriculum.Stages = slices.Clone(fe.baseConfig.Curriculum.Stages)
	return &cfg
}
