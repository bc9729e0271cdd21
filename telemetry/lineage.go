package telemetry

import "strings"

// BoardMetrics is the per-lock average stack shape of a genome's runs.
type BoardMetrics struct {
	Holes          float64 `json:"holes"`
	Bumpiness      float64 `json:"bumpiness"`
	MaxHeight      float64 `json:"maxHeight"`
	Wells          float64 `json:"wells"`
	RowTransitions float64 `json:"rowTransitions"`
	ColTransitions float64 `json:"colTransitions"`
}

// LineageNode records one genome's result in one generation.
type LineageNode struct {
	ID         string       `json:"id"`
	Generation int          `json:"generation"`
	Parents    []string     `json:"parents"`
	Fitness    float64      `json:"fitness"`
	Novelty    float64      `json:"novelty"`
	Score      float64      `json:"score"`
	Lines      float64      `json:"lines"`
	Level      float64      `json:"level"`
	Pieces     float64      `json:"pieces"`
	Metrics    BoardMetrics `json:"metrics"`
	Signature  []float64    `json:"signature"`
	BornMethod string       `json:"bornMethod"`
}

// LineageCSV is a flat struct for CSV export of lineage nodes.
type LineageCSV struct {
	Generation int     `csv:"generation"`
	ID         string  `csv:"id"`
	Parents    string  `csv:"parents"`
	BornMethod string  `csv:"born_method"`
	Fitness    float64 `csv:"fitness"`
	Novelty    float64 `csv:"novelty"`
	Score      float64 `csv:"score"`
	Lines      float64 `csv:"lines"`
	Pieces     float64 `csv:"pieces"`
	Holes      float64 `csv:"holes"`
	MaxHeight  float64 `csv:"max_height"`
}

// ToCSV converts a LineageNode to a flat CSV-friendly struct.
func (n LineageNode) ToCSV() LineageCSV {
	return LineageCSV{
		Generation: n.Generation,
		ID:         n.ID,
		Parents:    strings.Join(n.Parents, ";"),
		BornMethod: n.BornMethod,
		Fitness:    n.Fitness,
		Novelty:    n.Novelty,
		Score:      n.Score,
		Lines:      n.Lines,
		Pieces:     n.Pieces,
		Holes:      n.Metrics.Holes,
		MaxHeight:  n.Metrics.MaxHeight,
	}
}

// HistoryPoint is one (generation, best fitness) sample.
type HistoryPoint struct {
	Gen     int     `json:"gen"`
	Fitness float64 `json:"fitness"`
}
