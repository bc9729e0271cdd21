package evolution

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/tetrevo/game"
	"github.com/pthm-cable/tetrevo/neural"
)

// build fills a new population for the current generation in slot order:
// hall of fame, elites, cultural seeds, antithetic ES samples, immigrants.
func (e *Engine) build() {
	ev := e.cfg.Evolution
	n := ev.PopulationSize
	e.newSeeds()

	var fixed []*neural.Genome
	if ev.HallOfFame && e.bestEver != nil {
		fixed = append(fixed, e.copyOf(e.bestEver, neural.ProvHallOfFame))
	}
	for _, g := range e.elites {
		fixed = append(fixed, e.copyOf(g, neural.ProvElite))
	}
	for _, p := range e.seedParams {
		fixed = append(fixed, neural.NewGenome(e.rng, e.generation, p.Clone(), e.sigma, neural.ProvSeed))
	}
	if len(fixed) > n {
		fixed = fixed[:n]
	}

	immigrants := 0
	if e.generation > 1 {
		immigrants = ev.Immigrants
		if e.extinction {
			extra := int(math.Ceil(ev.ExtinctionFraction * float64(n)))
			immigrants += extra
			slog.Warn("mass extinction", "generation", e.generation, "immigrants", immigrants)
		}
	}
	immigrants = min(immigrants, n-len(fixed))
	samples := n - len(fixed) - immigrants

	e.pop = NewPopulation()
	for _, g := range fixed {
		e.pop.Add(e.newRunner(g), nil)
	}
	e.addSamples(samples)
	for i := 0; i < immigrants; i++ {
		g := neural.NewGenome(e.rng, e.generation, neural.RandomParams(e.rng), e.sigma, neural.ProvImmigrant)
		e.pop.Add(e.newRunner(g), nil)
	}

	e.extinction = false
	e.elites = nil
	e.seedParams = nil
	e.diversity = e.measureDiversity()
}

// newSeeds draws the piece sequences shared by the whole generation.
func (e *Engine) newSeeds() {
	e.runSeeds = make([]int64, e.cfg.Game.RunsPerGenome)
	for i := range e.runSeeds {
		e.runSeeds[i] = e.rng.Int63()
	}
	e.garbageSeed = e.rng.Int63()
}

// addSamples appends count ES members in antithetic pairs. An odd count
// leaves the last sample unpaired.
func (e *Engine) addSamples(count int) {
	for k := 0; k < count; k += 2 {
		eps := make([]float64, len(e.mean))
		for j := range eps {
			eps[j] = e.rng.NormFloat64()
		}
		e.pop.Add(e.newRunner(e.sample(eps)), eps)

		if k+1 < count {
			neg := make([]float64, len(eps))
			floats.ScaleTo(neg, -1, eps)
			e.pop.Add(e.newRunner(e.sample(neg)), neg)
		}
	}
}

// sample returns an ES genome at mean + sigma*eps.
func (e *Engine) sample(eps []float64) *neural.Genome {
	p := make(neural.Params, len(e.mean))
	floats.AddScaledTo(p, e.mean, e.sigma, eps)
	return neural.NewGenome(e.rng, e.generation, p, e.sigma, neural.ProvESSample)
}

// copyOf re-enters src unchanged under a new id.
func (e *Engine) copyOf(src *neural.Genome, prov neural.Provenance) *neural.Genome {
	g := src.Clone()
	g.ID = neural.NewID(e.rng)
	g.Generation = e.generation
	g.Parents = []string{src.ID}
	g.Provenance = prov
	return g
}

// newRunner starts a runner for g on this generation's seeds. Malformed
// params are replaced with random ones first.
func (e *Engine) newRunner(g *neural.Genome) *game.Runner {
	if !g.Params.Valid() {
		slog.Warn("replacing invalid genome params", "id", g.ID, "len", len(g.Params))
		e.randomize(g)
	}
	r, err := game.NewRunner(g, e.cfg.Game, e.Stage(), e.runSeeds, e.garbageSeed)
	if err == nil {
		return r
	}
	slog.Error("runner rejected genome, using random params", "id", g.ID, "error", err)
	e.randomize(g)
	r, err = game.NewRunner(g, e.cfg.Game, e.Stage(), e.runSeeds, e.garbageSeed)
	if err != nil {
		panic(fmt.Sprintf("evolution: random params rejected: %v", err))
	}
	return r
}

func (e *Engine) randomize(g *neural.Genome) {
	g.Params = neural.RandomParams(e.rng)
	g.Summary = neural.Summarize(g.Params, e.sigma)
}

func (e *Engine) measureDiversity() float64 {
	runners := e.pop.Runners()
	vecs := make([][]float64, len(runners))
	for i, r := range runners {
		vecs[i] = r.Genome.Params
	}
	return Diversity(vecs, e.cfg.Evolution.DiversityScale)
}
