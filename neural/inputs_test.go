package neural

import (
	"testing"

	"github.com/pthm-cable/tetrevo/tetris"
)

func TestExtractRange(t *testing.T) {
	var b tetris.Board
	for y := 5; y < tetris.Height; y++ {
		for x := 0; x < tetris.Width; x++ {
			if (x+y)%3 != 0 {
				b[y][x] = tetris.Garbage
			}
		}
	}
	out := tetris.Outcome{Board: b, Lines: 4, Eroded: 16, LandingHeight: 15}

	var f [NumInputs]float64
	Extract(&out, tetris.Piece{Kind: tetris.I, Rot: 1, X: -2}, tetris.Z, &f)
	for i, v := range f {
		if v < 0 || v > 1 {
			t.Errorf("feature %s = %v, outside [0,1]", FeatureNames[i], v)
		}
	}
}

func TestExtractNextOneHot(t *testing.T) {
	var out tetris.Outcome
	for k := tetris.Kind(0); k < tetris.NumKinds; k++ {
		var f [NumInputs]float64
		Extract(&out, tetris.Spawn(tetris.T), k, &f)
		for j := 0; j < tetris.NumKinds; j++ {
			want := 0.0
			if j == int(k) {
				want = 1
			}
			if f[FeatNext0+j] != want {
				t.Errorf("next=%s: one-hot[%d] = %v, want %v", k, j, f[FeatNext0+j], want)
			}
		}
	}
}

func TestExtractEmptyBoard(t *testing.T) {
	var out tetris.Outcome
	var f [NumInputs]float64
	Extract(&out, tetris.Spawn(tetris.O), tetris.I, &f)

	if f[FeatHoles] != 0 || f[FeatMaxHeight] != 0 {
		t.Errorf("empty board: holes=%v maxHeight=%v", f[FeatHoles], f[FeatMaxHeight])
	}
	if f[FeatRiskAversion] != 1 {
		t.Errorf("risk aversion on empty board: got %v, want 1", f[FeatRiskAversion])
	}
	if f[FeatStability] != 1 {
		t.Errorf("stability on empty board: got %v, want 1", f[FeatStability])
	}
	if f[FeatCenterDev] != 0 {
		t.Errorf("centered O deviation: got %v, want 0", f[FeatCenterDev])
	}
}

func TestFeatureNamesUnique(t *testing.T) {
	seen := map[string]bool{}
	for i, n := range FeatureNames {
		if n == "" {
			t.Errorf("feature %d has no name", i)
		}
		if seen[n] {
			t.Errorf("duplicate feature name %q", n)
		}
		seen[n] = true
	}
}
