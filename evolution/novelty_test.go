package evolution

import (
	"math"
	"testing"

	"github.com/pthm-cable/tetrevo/fitness"
)

func TestNoveltyEmptyArchive(t *testing.T) {
	a := NewArchive(10)
	if got := a.Novelty(fitness.Signature{0.5}, 5); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}

func TestNoveltyNearestNeighbours(t *testing.T) {
	a := NewArchive(10)
	a.AddMostNovel([]fitness.Signature{{0.1}, {0.2}, {0.9}}, []float64{1, 1, 1}, 3)

	// Distances from 0: 0.1, 0.2, 0.9
	if got, want := a.Novelty(fitness.Signature{}, 2), 0.15; math.Abs(got-want) > 1e-12 {
		t.Errorf("k=2: got %v, want %v", got, want)
	}
	if got, want := a.Novelty(fitness.Signature{}, 10), 0.4; math.Abs(got-want) > 1e-12 {
		t.Errorf("k beyond archive: got %v, want %v", got, want)
	}
}

func TestArchiveAddsMostNovel(t *testing.T) {
	a := NewArchive(10)
	sigs := []fitness.Signature{{0.1}, {0.2}, {0.3}}
	a.AddMostNovel(sigs, []float64{0.5, 2, 1}, 2)

	if a.Len() != 2 {
		t.Fatalf("len: got %d, want 2", a.Len())
	}
	// Only 0.2 and 0.3 were archived; the nearest to 0.1 is 0.2.
	if got := a.Novelty(fitness.Signature{0.1}, 1); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("nearest distance: got %v, want 0.1", got)
	}
}

func TestArchiveIsFIFO(t *testing.T) {
	a := NewArchive(2)
	for i := 1; i <= 3; i++ {
		a.AddMostNovel([]fitness.Signature{{float64(i)}}, []float64{1}, 1)
	}
	if a.Len() != 2 {
		t.Fatalf("len: got %d, want 2", a.Len())
	}
	// 1 was evicted: nearest to 1 is now 2.
	if got := a.Novelty(fitness.Signature{1}, 1); got != 1 {
		t.Errorf("nearest distance: got %v, want 1", got)
	}

	a.Reset()
	if a.Len() != 0 {
		t.Errorf("len after reset: got %d, want 0", a.Len())
	}
}
