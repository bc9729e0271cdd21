package neural

import (
	"math"

	"github.com/pthm-cable/tetrevo/tetris"
)

// Input indices.
//
// Layout: heights (10) + column holes (10) + stack (7) + move (4) +
// next piece (7) + derived (4) = 42 total
const (
	FeatHeight0         = 0  // [0-9] column height / board height
	FeatHoles0          = 10 // [10-19] column holes / board height
	FeatMaxHeight       = 20
	FeatAggregateHeight = 21
	FeatBumpiness       = 22
	FeatHoles           = 23
	FeatWells           = 24
	FeatRowTransitions  = 25
	FeatColTransitions  = 26
	FeatLandingHeight   = 27
	FeatLinesCleared    = 28
	FeatErodedCells     = 29
	FeatCenterDev       = 30
	FeatNext0           = 31 // [31-37] one-hot of the next piece
	FeatGreed           = 38
	FeatRiskAversion    = 39
	FeatAggression      = 40
	FeatStability       = 41
)

// FeatureNames labels each input, used for sensitivity reports.
var FeatureNames = func() [NumInputs]string {
	var n [NumInputs]string
	for i := 0; i < tetris.Width; i++ {
		n[FeatHeight0+i] = "height_" + string(rune('0'+i))
		n[FeatHoles0+i] = "holes_" + string(rune('0'+i))
	}
	n[FeatMaxHeight] = "maxHeight"
	n[FeatAggregateHeight] = "aggregateHeight"
	n[FeatBumpiness] = "bumpiness"
	n[FeatHoles] = "holes"
	n[FeatWells] = "wells"
	n[FeatRowTransitions] = "rowTransitions"
	n[FeatColTransitions] = "colTransitions"
	n[FeatLandingHeight] = "landingHeight"
	n[FeatLinesCleared] = "linesCleared"
	n[FeatErodedCells] = "erodedCells"
	n[FeatCenterDev] = "centerDev"
	for k := tetris.Kind(0); k < tetris.NumKinds; k++ {
		n[FeatNext0+int(k)] = "next_" + k.String()
	}
	n[FeatGreed] = "greed"
	n[FeatRiskAversion] = "riskAversion"
	n[FeatAggression] = "aggression"
	n[FeatStability] = "stability"
	return n
}()

// Normalization scales, roughly the largest value seen on a live board.
const (
	aggregateScale  = tetris.Width * tetris.Height
	bumpinessScale  = 90
	holesScale      = 40
	wellsScale      = 60
	transitionScale = 200
	erodedScale     = 16
)

// Extract fills dst with normalized features for a candidate placement p
// whose locked result is out, given the upcoming piece kind.
func Extract(out *tetris.Outcome, p tetris.Piece, next tetris.Kind, dst *[NumInputs]float64) {
	m := out.Board.Metrics()
	h := float64(tetris.Height)

	for x := 0; x < tetris.Width; x++ {
		dst[FeatHeight0+x] = clamp01(float64(m.Heights[x]) / h)
		dst[FeatHoles0+x] = clamp01(float64(m.ColumnHoles[x]) / h)
	}

	maxH := clamp01(float64(m.MaxHeight) / h)
	aggH := clamp01(float64(m.AggregateHeight) / aggregateScale)
	bump := clamp01(float64(m.Bumpiness) / bumpinessScale)
	holes := clamp01(float64(m.Holes) / holesScale)
	wells := clamp01(float64(m.Wells) / wellsScale)
	lines := clamp01(float64(out.Lines) / 4)
	eroded := clamp01(float64(out.Eroded) / erodedScale)
	landing := clamp01(float64(out.LandingHeight) / h)

	dst[FeatMaxHeight] = maxH
	dst[FeatAggregateHeight] = aggH
	dst[FeatBumpiness] = bump
	dst[FeatHoles] = holes
	dst[FeatWells] = wells
	dst[FeatRowTransitions] = clamp01(float64(m.RowTransitions) / transitionScale)
	dst[FeatColTransitions] = clamp01(float64(m.ColTransitions) / transitionScale)
	dst[FeatLandingHeight] = landing
	dst[FeatLinesCleared] = lines
	dst[FeatErodedCells] = eroded
	dst[FeatCenterDev] = clamp01(centerDeviation(p) / (tetris.Width / 2))

	for k := 0; k < tetris.NumKinds; k++ {
		dst[FeatNext0+k] = 0
	}
	if int(next) < tetris.NumKinds {
		dst[FeatNext0+int(next)] = 1
	}

	// Derived heuristics
	dst[FeatGreed] = clamp01((lines + wells) / 2)
	dst[FeatRiskAversion] = clamp01(1 - maxH)
	dst[FeatAggression] = clamp01((aggH + eroded) / 2)
	dst[FeatStability] = clamp01(1 / (1 + float64(m.Holes) + float64(m.Bumpiness)/10))
}

// centerDeviation is the column distance between the piece's bounding-box
// center and the board center.
func centerDeviation(p tetris.Piece) float64 {
	s := p.Shape()
	return math.Abs(float64(p.X) + float64(s.Size)/2 - tetris.Width/2)
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	return x
}
