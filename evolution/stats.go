package evolution

import (
	"log/slog"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/tetrevo/telemetry"
)

// GenerationStats is the population summary reported to observers.
type GenerationStats struct {
	Generation      int     `json:"generation"`
	MaxFitness      float64 `json:"maxFitness"`
	AvgFitness      float64 `json:"avgFitness"`
	MedianFitness   float64 `json:"medianFitness"`
	BestEverFitness float64 `json:"bestEverFitness"`
	BestEverScore   float64 `json:"bestEverScore"`
	Diversity       float64 `json:"diversity"`
	Sigma           float64 `json:"explorationSigma"`
	StepSize        float64 `json:"stepSize"`
	Stagnation      int     `json:"stagnationCount"`
	PopulationSize  int     `json:"populationSize"`
	Alive           int     `json:"alive"`
	Stage           string  `json:"stage"`
}

// LogValue implements slog.LogValuer for structured logging.
func (s GenerationStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("generation", s.Generation),
		slog.Float64("max_fitness", s.MaxFitness),
		slog.Float64("avg_fitness", s.AvgFitness),
		slog.Float64("best_ever_score", s.BestEverScore),
		slog.Float64("diversity", s.Diversity),
		slog.Float64("sigma", s.Sigma),
		slog.Int("alive", s.Alive),
		slog.String("stage", s.Stage),
	)
}

// summary holds fitness moments over one population.
type summary struct {
	max, mean, median, std float64
	best                   int
}

func summarize(values []float64) summary {
	if len(values) == 0 {
		return summary{best: -1}
	}
	s := summary{max: values[0]}
	for i, v := range values {
		if v > s.max {
			s.max, s.best = v, i
		}
	}
	s.mean, s.std = stat.MeanStdDev(values, nil)
	if len(values) < 2 {
		s.std = 0
	}

	s.median = telemetry.Median(values)
	return s
}
