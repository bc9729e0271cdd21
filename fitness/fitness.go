// Package fitness turns run statistics into a shaped fitness and a behavior
// signature for novelty search.
package fitness

import (
	"math"

	"github.com/pthm-cable/tetrevo/config"
	"github.com/pthm-cable/tetrevo/tetris"
)

// Stats aggregates a genome's runs. Counters are per-run averages; Score is
// the median run score.
type Stats struct {
	Score        float64 `json:"score"`
	Pieces       float64 `json:"pieces"`
	Lines        float64 `json:"lines"`
	Ticks        float64 `json:"ticks"`
	Tetrises     float64 `json:"tetrises"`
	Singles      float64 `json:"singles"`
	AvgHoles     float64 `json:"avgHoles"`     // per-lock average
	AvgBumpiness float64 `json:"avgBumpiness"` // per-lock average
	AvgMaxHeight float64 `json:"avgMaxHeight"` // per-lock average, in rows
	AvgWells     float64 `json:"avgWells"`     // per-lock average
	Dead         bool    `json:"dead"`         // any run topped out
}

// Evaluate computes the shaped fitness of s.
func Evaluate(s Stats, w config.FitnessConfig) float64 {
	f := 0.0
	if s.Pieces > 0 {
		f += s.Score / s.Pieces
		f += w.DensityWeight * s.Lines / s.Pieces
	}

	cleanliness := 1 / (1 + math.Max(0, s.AvgHoles))
	f += w.TetrisWeight * s.Tetrises * cleanliness

	if s.Ticks > 0 && w.TicksPerSecond > 0 {
		seconds := s.Ticks / w.TicksPerSecond
		f += w.ThroughputWeight * s.Pieces / seconds
	}

	heightRatio := clamp01(s.AvgMaxHeight / tetris.Height)
	f -= w.HoleWeight * s.AvgHoles * s.AvgHoles * (1 + w.HeightFactor*heightRatio)
	f -= w.BurnWeight * s.Singles

	if s.Dead {
		f -= w.DeathPenalty
	}
	return f
}

// SignatureDims is the behavior signature length.
const SignatureDims = 5

// Signature is a normalized behavior fingerprint:
// [holes, bumpiness, max height, wells, tetris rate], each in [0,1].
type Signature [SignatureDims]float64

// Normalization scales for the signature.
const (
	holesScale     = 20.0
	bumpinessScale = 50.0
	wellsScale     = 30.0
)

// Signature computes the behavior fingerprint of s. Fitness records and the
// novelty archive both use this function.
func (s Stats) Signature() Signature {
	rate := 0.0
	if s.Lines > 0 {
		rate = 4 * s.Tetrises / s.Lines
	}
	return Signature{
		clamp01(s.AvgHoles / holesScale),
		clamp01(s.AvgBumpiness / bumpinessScale),
		clamp01(s.AvgMaxHeight / tetris.Height),
		clamp01(s.AvgWells / wellsScale),
		clamp01(rate),
	}
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
