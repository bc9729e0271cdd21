// Package neural provides the placement policy network and genomes.
package neural

import (
	"fmt"
	"math"
	"math/rand"
)

// Network dimensions (compile-time constants for array sizing).
const (
	NumInputs  = 42 // see FeatureNames
	NumHidden  = 16
	NumOutputs = 2 // placement score, execution speed

	// ParamCount is the flat parameter vector length.
	ParamCount = NumInputs*NumHidden + NumHidden + NumHidden*NumOutputs + NumOutputs
)

// Offsets into the flat parameter vector.
const (
	w1Offset = 0
	b1Offset = w1Offset + NumInputs*NumHidden
	w2Offset = b1Offset + NumHidden
	b2Offset = w2Offset + NumHidden*NumOutputs
)

// Params is a flat policy parameter vector of length ParamCount.
type Params []float64

// Clone returns an independent copy.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	copy(out, p)
	return out
}

// Valid reports whether p has the expected length and finite values.
func (p Params) Valid() bool {
	if len(p) != ParamCount {
		return false
	}
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// FFNN is the single-hidden-layer policy network.
type FFNN struct {
	W1 [NumHidden][NumInputs]float64  // input -> hidden weights
	B1 [NumHidden]float64             // hidden biases
	W2 [NumOutputs][NumHidden]float64 // hidden -> output weights
	B2 [NumOutputs]float64            // output biases
}

// NewFFNN unpacks a flat parameter vector into a network.
func NewFFNN(p Params) (*FFNN, error) {
	if len(p) != ParamCount {
		return nil, fmt.Errorf("policy params: got %d values, want %d", len(p), ParamCount)
	}
	nn := &FFNN{}
	for h := 0; h < NumHidden; h++ {
		copy(nn.W1[h][:], p[w1Offset+h*NumInputs:w1Offset+(h+1)*NumInputs])
	}
	copy(nn.B1[:], p[b1Offset:b1Offset+NumHidden])
	for o := 0; o < NumOutputs; o++ {
		copy(nn.W2[o][:], p[w2Offset+o*NumHidden:w2Offset+(o+1)*NumHidden])
	}
	copy(nn.B2[:], p[b2Offset:b2Offset+NumOutputs])
	return nn, nil
}

// Params flattens the network weights back into a parameter vector.
func (nn *FFNN) Params() Params {
	p := make(Params, ParamCount)
	for h := 0; h < NumHidden; h++ {
		copy(p[w1Offset+h*NumInputs:], nn.W1[h][:])
	}
	copy(p[b1Offset:], nn.B1[:])
	for o := 0; o < NumOutputs; o++ {
		copy(p[w2Offset+o*NumHidden:], nn.W2[o][:])
	}
	copy(p[b2Offset:], nn.B2[:])
	return p
}

// Forward computes the network output.
// Returns: score (unbounded), speed [0,1]
func (nn *FFNN) Forward(inputs *[NumInputs]float64) (score, speed float64) {
	// Hidden layer with fast tanh activation
	var hidden [NumHidden]float64
	for i := 0; i < NumHidden; i++ {
		sum := nn.B1[i]
		for j := 0; j < NumInputs; j++ {
			sum += nn.W1[i][j] * inputs[j]
		}
		hidden[i] = tanh(sum)
	}

	// Output layer
	var outputs [NumOutputs]float64
	for i := 0; i < NumOutputs; i++ {
		sum := nn.B2[i]
		for j := 0; j < NumHidden; j++ {
			sum += nn.W2[i][j] * hidden[j]
		}
		outputs[i] = sum
	}

	// linear score, tanh remapped to [0,1] for speed
	return outputs[0], (tanh(outputs[1]) + 1) / 2
}

// tanh uses a fast rational approximation.
func tanh(x float64) float64 {
	if x > 4 {
		return 1
	}
	if x < -4 {
		return -1
	}
	x2 := x * x
	return x * (27 + x2) / (27 + 9*x2)
}

// baselineWeights is a hand-tuned linear heuristic over the input features.
var baselineWeights = func() [NumInputs]float64 {
	var w [NumInputs]float64
	for i := 0; i < 10; i++ {
		w[FeatHeight0+i] = -0.8
		w[FeatHoles0+i] = -1.0
	}
	w[FeatMaxHeight] = -1.0
	w[FeatAggregateHeight] = -0.7
	w[FeatBumpiness] = -0.5
	w[FeatHoles] = -1.1
	w[FeatWells] = 0.15 // small reward for keeping a tetris well
	w[FeatRowTransitions] = -0.35
	w[FeatColTransitions] = -0.35
	w[FeatLandingHeight] = -0.5
	w[FeatLinesCleared] = 1.0
	w[FeatErodedCells] = 0.6
	w[FeatCenterDev] = -0.2
	w[FeatGreed] = 0.2
	w[FeatRiskAversion] = 0.3
	w[FeatStability] = 0.4
	return w
}()

// SeedParams returns parameters whose hidden unit 0 carries the baseline
// heuristic and whose remaining weights are small noise.
func SeedParams(rng *rand.Rand) Params {
	nn := &FFNN{}
	for h := 0; h < NumHidden; h++ {
		for i := 0; i < NumInputs; i++ {
			nn.W1[h][i] = (rng.Float64() - 0.5) * 0.2
		}
		nn.B1[h] = (rng.Float64() - 0.5) * 0.1
		nn.W2[0][h] = (rng.Float64() - 0.5) * 0.2
		nn.W2[1][h] = (rng.Float64() - 0.5) * 0.2
	}
	nn.W1[0] = baselineWeights
	nn.W2[0][0] = 1.0
	return nn.Params()
}

// RandomParams returns uniform parameters in [-0.25, 0.25).
func RandomParams(rng *rand.Rand) Params {
	p := make(Params, ParamCount)
	for i := range p {
		p[i] = (rng.Float64() - 0.5) * 0.5
	}
	return p
}
