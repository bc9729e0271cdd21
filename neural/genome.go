package neural

import (
	"io"
	"math"

	"github.com/google/uuid"
)

// Provenance records how a genome entered the population.
type Provenance string

// Provenance tags.
const (
	ProvSeed       Provenance = "seed"
	ProvESSample   Provenance = "es-sample"
	ProvElite      Provenance = "elite"
	ProvImported   Provenance = "imported"
	ProvImmigrant  Provenance = "immigrant"
	ProvHallOfFame Provenance = "hall-of-fame"
)

// Valid reports whether p is one of the known tags.
func (p Provenance) Valid() bool {
	switch p {
	case ProvSeed, ProvESSample, ProvElite, ProvImported, ProvImmigrant, ProvHallOfFame:
		return true
	}
	return false
}

// Summary is a human-readable view of a policy. It is never read back by
// gameplay.
type Summary struct {
	Sensitivities map[string]float64 `json:"sensitivities"`
	Exploration   float64            `json:"exploration"`
}

// Genome is a policy parameter vector plus lineage metadata.
type Genome struct {
	ID         string     `json:"id"`
	Generation int        `json:"generation"`
	Params     Params     `json:"params"`
	Summary    Summary    `json:"summary"`
	Parents    []string   `json:"parents,omitempty"`
	Provenance Provenance `json:"bornMethod"`
}

// NewGenome builds a genome with a fresh id and a computed summary.
func NewGenome(idSource io.Reader, gen int, params Params, sigma float64, prov Provenance, parents ...string) *Genome {
	g := &Genome{
		ID:         NewID(idSource),
		Generation: gen,
		Params:     params,
		Summary:    Summarize(params, sigma),
		Provenance: prov,
	}
	if len(parents) > 0 {
		g.Parents = append([]string(nil), parents...)
	}
	return g
}

// Clone creates a deep copy of the genome.
func (g *Genome) Clone() *Genome {
	c := *g
	c.Params = g.Params.Clone()
	if g.Parents != nil {
		c.Parents = append([]string(nil), g.Parents...)
	}
	if g.Summary.Sensitivities != nil {
		c.Summary.Sensitivities = make(map[string]float64, len(g.Summary.Sensitivities))
		for k, v := range g.Summary.Sensitivities {
			c.Summary.Sensitivities[k] = v
		}
	}
	return &c
}

// NewID returns a random UUID string drawn from r so seeded runs produce
// reproducible ids. A nil reader uses crypto randomness.
func NewID(r io.Reader) string {
	if r == nil {
		return uuid.NewString()
	}
	id, err := uuid.NewRandomFromReader(r)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Summarize computes per-feature sensitivity of the score head: the sum over
// hidden units of W2[score][h] * W1[h][i], scaled into [-1, 1].
func Summarize(p Params, sigma float64) Summary {
	s := Summary{
		Sensitivities: make(map[string]float64, NumInputs),
		Exploration:   sigma,
	}
	if len(p) != ParamCount {
		return s
	}

	var imp [NumInputs]float64
	maxAbs := 1e-6
	for i := 0; i < NumInputs; i++ {
		v := 0.0
		for h := 0; h < NumHidden; h++ {
			v += p[w2Offset+h] * p[w1Offset+h*NumInputs+i]
		}
		imp[i] = v
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}
	for i, name := range FeatureNames {
		s.Sensitivities[name] = math.Max(-1, math.Min(1, imp[i]/maxAbs))
	}
	return s
}
