package fitness

import (
	"math"
	"testing"

	"github.com/pthm-cable/tetrevo/config"
)

func baseStats() Stats {
	return Stats{
		Score:        4000,
		Pieces:       120,
		Lines:        40,
		Ticks:        3600,
		Tetrises:     5,
		Singles:      8,
		AvgHoles:     1.5,
		AvgBumpiness: 6,
		AvgMaxHeight: 7,
		AvgWells:     3,
	}
}

func TestEvaluateHoleMonotonic(t *testing.T) {
	w := config.Default().Fitness
	prev := Evaluate(baseStats(), w)
	for _, holes := range []float64{2, 3, 5, 10, 40} {
		s := baseStats()
		s.AvgHoles = holes
		got := Evaluate(s, w)
		if got > prev {
			t.Errorf("holes=%v: fitness rose from %v to %v", holes, prev, got)
		}
		prev = got
	}
}

func TestEvaluateTetrisMonotonic(t *testing.T) {
	w := config.Default().Fitness
	s := baseStats()
	s.AvgHoles = 0.2
	prev := Evaluate(s, w)
	for _, n := range []float64{6, 8, 12} {
		s.Tetrises = n
		got := Evaluate(s, w)
		if got < prev {
			t.Errorf("tetrises=%v: fitness fell from %v to %v", n, prev, got)
		}
		prev = got
	}
}

func TestEvaluateDeathPenalty(t *testing.T) {
	w := config.Default().Fitness
	alive := baseStats()
	dead := alive
	dead.Dead = true
	if diff := Evaluate(alive, w) - Evaluate(dead, w); math.Abs(diff-w.DeathPenalty) > 1e-9 {
		t.Errorf("death penalty: got %v, want %v", diff, w.DeathPenalty)
	}
}

func TestEvaluateEmptyRun(t *testing.T) {
	w := config.Default().Fitness
	if got := Evaluate(Stats{}, w); got != 0 {
		t.Errorf("empty run: got %v, want 0", got)
	}
}

func TestSignature(t *testing.T) {
	tests := []struct {
		name  string
		stats Stats
		want  Signature
	}{
		{"empty", Stats{}, Signature{}},
		{
			"all tetrises",
			Stats{Lines: 8, Tetrises: 2, AvgMaxHeight: 10},
			Signature{0, 0, 0.5, 0, 1},
		},
		{
			"clamped",
			Stats{AvgHoles: 100, AvgBumpiness: 100, AvgMaxHeight: 40, AvgWells: 100},
			Signature{1, 1, 1, 1, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.stats.Signature(); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
