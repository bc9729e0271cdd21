package evolution

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/tetrevo/fitness"
	"github.com/pthm-cable/tetrevo/telemetry"
)

// Archive is a bounded FIFO of behavior signatures.
type Archive struct {
	items *telemetry.Ring[fitness.Signature]
}

// NewArchive creates an archive holding at most size signatures.
func NewArchive(size int) *Archive {
	return &Archive{items: telemetry.NewRing[fitness.Signature](size)}
}

// Novelty is the mean distance from sig to its k nearest archived
// signatures. An empty archive gives 0.
func (a *Archive) Novelty(sig fitness.Signature, k int) float64 {
	items := a.items.Items()
	if len(items) == 0 {
		return 0
	}
	dists := make([]float64, len(items))
	for i := range items {
		dists[i] = floats.Distance(sig[:], items[i][:], 2)
	}
	sort.Float64s(dists)

	k = min(max(1, k), len(dists))
	return floats.Sum(dists[:k]) / float64(k)
}

// AddMostNovel archives the n signatures with the highest novelty.
func (a *Archive) AddMostNovel(sigs []fitness.Signature, novelty []float64, n int) {
	idx := make([]int, len(sigs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(x, y int) bool { return novelty[idx[x]] > novelty[idx[y]] })
	for _, i := range idx[:min(n, len(idx))] {
		a.items.Push(sigs[i])
	}
}

// Len returns the number of archived signatures.
func (a *Archive) Len() int {
	return a.items.Len()
}

// Reset empties the archive.
func (a *Archive) Reset() {
	a.items.Reset()
}
