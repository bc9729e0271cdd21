// Package main provides CMA-ES tuning of the evolution engine's hyperparameters.
package main

import (
	"github.com/pthm-cable/tetrevo/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Exploration noise
			{Name: "sigma", Path: "evolution.sigma", Min: 0.02, Max: 0.5, Default: 0.1},
			{Name: "sigma_decay", Path: "evolution.sigma_decay", Min: 0.9, Max: 1.0, Default: 0.98},
			{Name: "sigma_boost", Path: "evolution.sigma_boost", Min: 1.0, Max: 3.0, Default: 1.5},
			// Mean update
			{Name: "step_size", Path: "evolution.step_size", Min: 0.005, Max: 0.3, Default: 0.05},
			{Name: "step_size_decay", Path: "evolution.step_size_decay", Min: 0.9, Max: 1.0, Default: 0.99},
			// Novelty
			{Name: "novelty_weight", Path: "novelty.weight", Min: 0, Max: 0.6, Default: 0.15},
			// Collective learning
			{Name: "collective_lr", Path: "collective.learning_rate", Min: 0, Max: 0.3, Default: 0.05},
			{Name: "collective_decay", Path: "collective.decay", Min: 0.9, Max: 1.0, Default: 0.98},
			{Name: "repel_ratio", Path: "collective.repel_ratio", Min: 0, Max: 1.0, Default: 0.4},
			// Fitness shaping (the objective is raw score, so shaping is fair game)
			{Name: "hole_weight", Path: "fitness.hole_weight", Min: 0, Max: 3.0, Default: 0.6},
			{Name: "tetris_weight", Path: "fitness.tetris_weight", Min: 0, Max: 150, Default: 40},
			{Name: "death_penalty", Path: "fitness.death_penalty", Min: 0, Max: 100, Default: 20},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)
	i := 0

	cfg.Evolution.Sigma = clamped[i]; i++
	cfg.Evolution.SigmaDecay = clamped[i]; i++
	cfg.Evolution.SigmaBoost = clamped[i]; i++
	cfg.Evolution.StepSize = clamped[i]; i++
	cfg.Evolution.StepSizeDecay = clamped[i]; i++

	cfg.Novelty.Weight = clamped[i]; i++

	cfg.Collective.LearningRate = clamped[i]; i++
	cfg.Collective.Decay = clamped[i]; i++
	cfg.Collective.RepelRatio = clamped[i]; i++

	cfg.Fitness.HoleWeight = clamped[i]; i++
	cfg.Fitness.TetrisWeight = clamped[i]; i++
	cfg.Fitness.DeathPenalty = clamped[i]

	// Sigma bounds follow the tuned initial value
	cfg.Evolution.SigmaMin = min(cfg.Evolution.SigmaMin, cfg.Evolution.Sigma)
	cfg.Evolution.SigmaMax = max(cfg.Evolution.SigmaMax, cfg.Evolution.Sigma)
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Evolution.Sigma,
		cfg.Evolution.SigmaDecay,
		cfg.Evolution.SigmaBoost,
		cfg.Evolution.StepSize,
		cfg.Evolution.StepSizeDecay,
		cfg.Novelty.Weight,
		cfg.Collective.LearningRate,
		cfg.Collective.Decay,
		cfg.Collective.RepelRatio,
		cfg.Fitness.HoleWeight,
		cfg.Fitness.TetrisWeight,
		cfg.Fitness.DeathPenalty,
	}
}
