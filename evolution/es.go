package evolution

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Utilities maps values to centered rank utilities in [-0.5, 0.5], lowest
// value first. Tied values share their mean rank.
func Utilities(values []float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n < 2 {
		return out
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	for i := 0; i < n; {
		j := i
		for j+1 < n && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		u := float64(i+j)/2/float64(n-1) - 0.5
		for k := i; k <= j; k++ {
			out[idx[k]] = u
		}
		i = j + 1
	}
	return out
}

// UpdateMean returns mean + stepSize/(N*sigma) * sum(utils[i]*noise[i]).
// It has no hidden state: equal inputs give bit-identical output.
func UpdateMean(mean []float64, noise [][]float64, utils []float64, stepSize, sigma float64) []float64 {
	out := make([]float64, len(mean))
	copy(out, mean)
	if len(noise) == 0 || sigma == 0 {
		return out
	}

	grad := make([]float64, len(mean))
	for i, eps := range noise {
		floats.AddScaled(grad, utils[i], eps)
	}
	floats.AddScaled(out, stepSize/(float64(len(noise))*sigma), grad)
	return out
}

// MeanPairwiseDistance is the mean Euclidean distance over all pairs.
func MeanPairwiseDistance(vecs [][]float64) float64 {
	n := len(vecs)
	if n < 2 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += floats.Distance(vecs[i], vecs[j], 2)
		}
	}
	return sum / float64(n*(n-1)/2)
}

// Diversity maps the mean pairwise distance into [0, 100).
func Diversity(vecs [][]float64, scale float64) float64 {
	if scale <= 0 {
		scale = 1
	}
	return 100 * (1 - math.Exp(-MeanPairwiseDistance(vecs)/scale))
}

// Centroid averages vecs element-wise. It returns nil for no input.
func Centroid(vecs [][]float64) []float64 {
	if len(vecs) == 0 {
		return nil
	}
	out := make([]float64, len(vecs[0]))
	for _, v := range vecs {
		floats.Add(out, v)
	}
	floats.Scale(1/float64(len(vecs)), out)
	return out
}
