package evolution

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/tetrevo/config"
	"github.com/pthm-cable/tetrevo/fitness"
	"github.com/pthm-cable/tetrevo/neural"
)

// Agent is the collective-learning view of one member.
type Agent struct {
	Params neural.Params
	Stats  fitness.Stats
}

// Archetype is the parameter centroid of the members that best fit one
// objective.
type Archetype struct {
	Name      string    `json:"name"`
	Centroid  []float64 `json:"-"`
	Dominance float64   `json:"dominance"`
	Size      int       `json:"size"`
}

// objective ranks agents; a higher key is more representative.
type objective struct {
	name string
	key  func(s fitness.Stats) float64
}

var successObjectives = []objective{
	{"architect", func(s fitness.Stats) float64 { return s.Lines / math.Max(1, s.Pieces) }},
	{"scorer", func(s fitness.Stats) float64 { return s.Score }},
	{"intellect", func(s fitness.Stats) float64 { return -(s.AvgHoles + s.AvgBumpiness/5) }},
}

var failureObjectives = []objective{
	{"clutterer", func(s fitness.Stats) float64 { return s.AvgHoles }},
	{"topper", func(s fitness.Stats) float64 { return s.AvgMaxHeight }},
}

// Insights holds one generation's archetypes.
type Insights struct {
	Success []Archetype `json:"success"`
	Failure []Archetype `json:"failure"`
}

// Empty reports whether there was too little data to build archetypes.
func (in Insights) Empty() bool {
	return len(in.Success) == 0
}

// ByDominance returns the success archetypes, most dominant first.
func (in Insights) ByDominance() []Archetype {
	out := make([]Archetype, len(in.Success))
	copy(out, in.Success)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Dominance > out[j].Dominance })
	return out
}

// ExtractInsights builds success and failure archetypes from agents that
// placed more than cfg.MinPieces pieces per run.
func ExtractInsights(agents []Agent, cfg config.CollectiveConfig) Insights {
	var eligible []Agent
	var popScore float64
	for _, a := range agents {
		popScore += a.Stats.Score
		if a.Stats.Pieces > float64(cfg.MinPieces) {
			eligible = append(eligible, a)
		}
	}
	if len(eligible) < max(1, cfg.MinAgents) {
		return Insights{}
	}
	popScore /= float64(len(agents))

	var in Insights
	for _, obj := range successObjectives {
		in.Success = append(in.Success, buildArchetype(obj, eligible, cfg.SuccessFraction, popScore))
	}
	for _, obj := range failureObjectives {
		in.Failure = append(in.Failure, buildArchetype(obj, eligible, cfg.FailureFraction, popScore))
	}
	return in
}

func buildArchetype(obj objective, agents []Agent, fraction, popScore float64) Archetype {
	sorted := make([]Agent, len(agents))
	copy(sorted, agents)
	sort.SliceStable(sorted, func(i, j int) bool { return obj.key(sorted[i].Stats) > obj.key(sorted[j].Stats) })

	count := min(len(sorted), max(2, int(math.Floor(float64(len(sorted))*fraction))))
	top := sorted[:count]

	vecs := make([][]float64, count)
	var score float64
	for i, a := range top {
		vecs[i] = a.Params
		score += a.Stats.Score
	}
	score /= float64(count)

	dominance := 1.0
	if popScore > 0 {
		dominance = math.Max(0.1, math.Min(3, score/popScore))
	}
	return Archetype{
		Name:      obj.name,
		Centroid:  Centroid(vecs),
		Dominance: dominance,
		Size:      count,
	}
}

// CollectiveRate is the nudge learning rate at generation gen.
func CollectiveRate(cfg config.CollectiveConfig, gen int) float64 {
	return cfg.LearningRate * math.Pow(cfg.Decay, float64(max(0, gen-1)))
}

// Nudge moves mean toward each success centroid, weighted by dominance, and
// away from each failure centroid.
func Nudge(mean []float64, in Insights, lr, repelRatio float64) []float64 {
	out := make([]float64, len(mean))
	copy(out, mean)
	if in.Empty() {
		return out
	}

	delta := make([]float64, len(mean))
	for _, a := range in.Success {
		alpha := lr * a.Dominance / float64(len(in.Success))
		floats.SubTo(delta, a.Centroid, mean)
		floats.AddScaled(out, alpha, delta)
	}
	if len(in.Failure) > 0 {
		beta := repelRatio * lr / float64(len(in.Failure))
		for _, f := range in.Failure {
			floats.SubTo(delta, mean, f.Centroid)
			floats.AddScaled(out, beta, delta)
		}
	}
	return out
}
