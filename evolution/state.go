package evolution

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pthm-cable/tetrevo/neural"
	"github.com/pthm-cable/tetrevo/telemetry"
)

// State is the persisted snapshot of an engine.
type State struct {
	Population       []*neural.Genome             `json:"population"`
	Stats            GenerationStats              `json:"stats"`
	Leaderboard      []telemetry.LeaderboardEntry `json:"leaderboard"`
	Lineage          [][]telemetry.LineageNode    `json:"lineage"`
	TelemetryHistory []telemetry.TelemetryFrame   `json:"telemetryHistory"`
	Ghost            *telemetry.Ghost             `json:"ghost,omitempty"`
	BestEver         *neural.Genome               `json:"bestEver,omitempty"` // hall-of-fame genome
	History          []telemetry.HistoryPoint     `json:"history"`
	Timeline         []telemetry.TimelineEvent    `json:"timeline,omitempty"`
	MutationRate     float64                      `json:"mutationRate"` // exploration sigma
	StagnationCount  int                          `json:"stagnationCount"`
	Mean             []float64                    `json:"mean,omitempty"` // informational; Import re-derives it
	Timestamp        int64                        `json:"timestamp"`      // unix millis
}

// EncodeState serializes a state to JSON.
func EncodeState(s *State) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return data, nil
}

// DecodeState parses a JSON state.
func DecodeState(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &s, nil
}

// Export snapshots the current population and records.
func (e *Engine) Export() *State {
	runners := e.pop.Runners()
	pop := make([]*neural.Genome, len(runners))
	for i, r := range runners {
		pop[i] = r.Genome.Clone()
	}
	var bestEver *neural.Genome
	if e.bestEver != nil {
		bestEver = e.bestEver.Clone()
	}
	return &State{
		Population:       pop,
		Stats:            e.Stats(),
		Leaderboard:      e.Leaderboard(),
		Lineage:          e.Lineage(),
		TelemetryHistory: e.TelemetryHistory(),
		Ghost:            e.ghost,
		BestEver:         bestEver,
		History:          e.History(),
		Timeline:         e.Timeline(),
		MutationRate:     e.sigma,
		StagnationCount:  e.stagnation,
		Mean:             e.mean.Clone(),
		Timestamp:        time.Now().UnixMilli(),
	}
}

// Import replaces the engine with a persisted state. Genomes with malformed
// params get random params and the imported tag. A short population is
// padded with ES samples; a long one is truncated.
func (e *Engine) Import(s *State) error {
	if s == nil || len(s.Population) == 0 {
		return errors.New("import state: empty population")
	}

	n := e.cfg.Evolution.PopulationSize
	var genomes []*neural.Genome
	var valid [][]float64
	for _, src := range s.Population {
		if src == nil {
			continue
		}
		if len(genomes) == n {
			break
		}
		g := src.Clone()
		if g.ID == "" {
			g.ID = neural.NewID(e.rng)
		}
		if !g.Provenance.Valid() {
			g.Provenance = neural.ProvImported
		}
		if g.Params.Valid() {
			valid = append(valid, g.Params)
		} else {
			g.Params = neural.RandomParams(e.rng)
			g.Provenance = neural.ProvImported
			g.Summary = neural.Summary{}
		}
		if g.Summary.Sensitivities == nil {
			g.Summary = neural.Summarize(g.Params, s.MutationRate)
		}
		genomes = append(genomes, g)
	}
	if len(genomes) == 0 {
		return errors.New("import state: no genomes")
	}

	e.clearProgress()
	e.generation = max(1, s.Stats.Generation)
	if s.MutationRate > 0 {
		e.sigma = s.MutationRate
	}
	if s.Stats.StepSize > 0 {
		e.stepSize = s.Stats.StepSize
	}
	e.stagnation = max(0, s.StagnationCount)
	e.bestEverFitness = s.Stats.BestEverFitness
	e.bestEverScore = s.Stats.BestEverScore
	e.hasBest = e.generation > 1
	e.restoreStage(s.Stats.Stage)

	e.leaderboard.Load(s.Leaderboard)
	e.lineage.Load(s.Lineage)
	e.frames.Load(s.TelemetryHistory)
	e.history.Load(s.History)
	e.timeline.Load(s.Timeline)
	e.ghost = s.Ghost

	if len(valid) > 0 {
		e.mean = Centroid(valid)
	} else {
		e.mean = neural.SeedParams(e.rng)
	}
	e.bestEver = restoreBestEver(s, genomes)

	e.newSeeds()
	e.pop = NewPopulation()
	for _, g := range genomes {
		e.pop.Add(e.newRunner(g), nil)
	}
	e.addSamples(n - len(genomes))
	e.diversity = e.measureDiversity()

	slog.Info("state imported",
		"generation", e.generation,
		"genomes", len(genomes),
		"padded", n-len(genomes),
		"sigma", e.sigma,
		"stage", e.Stage().Name,
	)
	return nil
}

// restoreBestEver returns the persisted hall-of-fame genome. Older states
// without one fall back to the imported genome topping the leaderboard.
func restoreBestEver(s *State, genomes []*neural.Genome) *neural.Genome {
	if s.BestEver != nil && s.BestEver.Params.Valid() {
		return s.BestEver.Clone()
	}
	for _, entry := range s.Leaderboard {
		for _, g := range genomes {
			if g.ID == entry.ID {
				return g.Clone()
			}
		}
	}
	return nil
}

// restoreStage selects the stage by name, falling back to the best score.
func (e *Engine) restoreStage(name string) {
	for i, st := range e.cfg.Curriculum.Stages {
		if st.Name == name {
			e.stage = i
			return
		}
	}
	e.advanceCurriculum()
}

// Inject replaces the lowest-scoring member with a copy of g tagged as
// imported. It returns the id the copy plays under.
func (e *Engine) Inject(g *neural.Genome) (string, error) {
	if g == nil {
		return "", errors.New("inject: nil genome")
	}
	c := g.Clone()
	c.Generation = e.generation
	c.Provenance = neural.ProvImported
	if r, _ := e.pop.Find(c.ID); c.ID == "" || r != nil {
		c.ID = neural.NewID(e.rng)
	}
	if !c.Params.Valid() {
		c.Params = neural.RandomParams(e.rng)
	}
	c.Summary = neural.Summarize(c.Params, e.sigma)

	worst := 0
	runners := e.pop.Runners()
	for i, r := range runners {
		if r.Score() < runners[worst].Score() {
			worst = i
		}
	}
	e.pop.Replace(worst, e.newRunner(c))
	slog.Info("genome injected", "id", c.ID, "slot", worst)
	return c.ID, nil
}
