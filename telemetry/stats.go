// Package telemetry records generation statistics, lineage and replays,
// and writes them to CSV and JSON files.
package telemetry

import (
	"log/slog"
	"sort"
)

// TelemetryFrame aggregates one generation's play statistics.
type TelemetryFrame struct {
	Generation        int     `csv:"generation" json:"generation"`
	AvgScore          float64 `csv:"avg_score" json:"avgScore"`
	AvgLines          float64 `csv:"avg_lines" json:"avgLines"`
	AvgLevel          float64 `csv:"avg_level" json:"avgLevel"`
	MaxScore          float64 `csv:"max_score" json:"maxScore"`
	MaxLines          float64 `csv:"max_lines" json:"maxLines"`
	AvgHoles          float64 `csv:"avg_holes" json:"avgHoles"`
	AvgBumpiness      float64 `csv:"avg_bumpiness" json:"avgBumpiness"`
	AvgMaxHeight      float64 `csv:"avg_max_height" json:"avgMaxHeight"`
	AvgWells          float64 `csv:"avg_wells" json:"avgWells"`
	AvgRowTransitions float64 `csv:"avg_row_transitions" json:"avgRowTransitions"`
	AvgColTransitions float64 `csv:"avg_col_transitions" json:"avgColTransitions"`
	HoleDensity       float64 `csv:"hole_density" json:"holeDensity"` // holes per filled cell

	// Evolution state at the end of the generation
	MaxFitness float64 `csv:"max_fitness" json:"maxFitness"`
	AvgFitness float64 `csv:"avg_fitness" json:"avgFitness"`
	FitnessStd float64 `csv:"fitness_std" json:"fitnessStd"`
	Diversity  float64 `csv:"diversity" json:"diversity"`
	Sigma      float64 `csv:"sigma" json:"sigma"`
	StepSize   float64 `csv:"step_size" json:"stepSize"`
	Stage      string  `csv:"stage" json:"stage"`

	Timestamp int64 `csv:"timestamp" json:"timestamp"` // unix millis
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Median returns the median of values without modifying them.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return Percentile(sorted, 0.5)
}

// LogValue implements slog.LogValuer for structured logging.
func (f TelemetryFrame) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("generation", f.Generation),
		slog.Float64("avg_score", f.AvgScore),
		slog.Float64("max_score", f.MaxScore),
		slog.Float64("avg_lines", f.AvgLines),
		slog.Float64("avg_holes", f.AvgHoles),
		slog.Float64("avg_max_height", f.AvgMaxHeight),
		slog.Float64("max_fitness", f.MaxFitness),
		slog.Float64("avg_fitness", f.AvgFitness),
		slog.Float64("diversity", f.Diversity),
		slog.Float64("sigma", f.Sigma),
		slog.String("stage", f.Stage),
	)
}

// LogStats logs the frame using slog.
func (f TelemetryFrame) LogStats() {
	slog.Info("generation", "frame", f)
}
