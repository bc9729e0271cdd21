// Package config provides configuration loading and access for the engine.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"runtime"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all engine configuration parameters.
type Config struct {
	Game       GameConfig       `yaml:"game"`
	Fitness    FitnessConfig    `yaml:"fitness"`
	Evolution  EvolutionConfig  `yaml:"evolution"`
	Novelty    NoveltyConfig    `yaml:"novelty"`
	Collective CollectiveConfig `yaml:"collective"`
	Curriculum CurriculumConfig `yaml:"curriculum"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Sim        SimConfig        `yaml:"sim"`
	Storage    StorageConfig    `yaml:"storage"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// GameConfig holds per-run Tetris rules and runner pacing.
type GameConfig struct {
	RunsPerGenome  int     `yaml:"runs_per_genome"`  // Runs per genome; fitness uses the median score
	BaseGravity    int     `yaml:"base_gravity"`     // Ticks per gravity step at level 1
	GravityDecay   float64 `yaml:"gravity_decay"`    // Per-level multiplier on the gravity interval
	BaseLockDelay  int     `yaml:"base_lock_delay"`  // Ticks a grounded piece waits before locking
	LockDecay      float64 `yaml:"lock_decay"`       // Per-level multiplier on the lock delay
	MinLockDelay   int     `yaml:"min_lock_delay"`   // Floor for the lock delay
	MaxLockResets  int     `yaml:"max_lock_resets"`  // Lock timer resets allowed per piece
	BaseReaction   int     `yaml:"base_reaction"`    // Spawn reaction delay in ticks before speed scaling
	MaxActionDelay int     `yaml:"max_action_delay"` // Ticks between inputs at speed 0
	MultiplierCap  float64 `yaml:"multiplier_cap"`   // Ceiling for the run point multiplier
	LookaheadTopK  int     `yaml:"lookahead_top_k"`  // Candidates expanded with the next piece
	LookaheadBlend float64 `yaml:"lookahead_blend"`  // Weight of the best next-ply score
	DeadEndPenalty float64 `yaml:"dead_end_penalty"` // Subtracted when the next piece has no placement
	GarbageChance  float64 `yaml:"garbage_chance"`   // Per-tick garbage probability, scaled by level
	GhostMaxFrames int     `yaml:"ghost_max_frames"` // Frames recorded per run for ghost replay
}

// FitnessConfig holds fitness shaping weights.
type FitnessConfig struct {
	HoleWeight       float64 `yaml:"hole_weight"`       // Quadratic hole penalty
	HeightFactor     float64 `yaml:"height_factor"`     // Hole penalty growth with stack height
	TetrisWeight     float64 `yaml:"tetris_weight"`     // Bonus per 4-line clear, scaled by cleanliness
	BurnWeight       float64 `yaml:"burn_weight"`       // Penalty per single-line clear
	ThroughputWeight float64 `yaml:"throughput_weight"` // Bonus per piece per simulated second
	DensityWeight    float64 `yaml:"density_weight"`    // Bonus per line per piece
	DeathPenalty     float64 `yaml:"death_penalty"`     // Flat penalty for topping out
	TicksPerSecond   float64 `yaml:"ticks_per_second"`  // Simulated tick rate
}

// EvolutionConfig holds ES sampling and schedule parameters.
type EvolutionConfig struct {
	PopulationSize     int     `yaml:"population_size"`
	Sigma              float64 `yaml:"sigma"` // Initial exploration noise
	SigmaMin           float64 `yaml:"sigma_min"`
	SigmaMax           float64 `yaml:"sigma_max"`
	SigmaDecay         float64 `yaml:"sigma_decay"`     // Default per-generation annealing
	SigmaBoost         float64 `yaml:"sigma_boost"`     // Multiplier on prolonged stagnation
	SigmaFineTune      float64 `yaml:"sigma_fine_tune"` // Multiplier on brief stagnation
	StepSize           float64 `yaml:"step_size"`       // Initial learning rate
	StepSizeDecay      float64 `yaml:"step_size_decay"`
	StepSizeMin        float64 `yaml:"step_size_min"`
	EliteCount         int     `yaml:"elite_count"`         // Previous-generation elites copied unchanged
	HallOfFame         bool    `yaml:"hall_of_fame"`        // Re-insert the best-ever genome
	Immigrants         int     `yaml:"immigrants"`          // Random genomes per generation
	StagnationWindow   int     `yaml:"stagnation_window"`   // Generations of best-fitness history
	LongStagnation     int     `yaml:"long_stagnation"`     // Stagnant generations before a sigma boost
	SpikeMultiplier    float64 `yaml:"spike_multiplier"`    // Max fitness / best-ever ratio counted as a spike
	DiversityScale     float64 `yaml:"diversity_scale"`     // Distance scale of the diversity transform
	LowDiversity       float64 `yaml:"low_diversity"`       // Diversity (0-100) considered unhealthy
	DiversityFloor     float64 `yaml:"diversity_floor"`     // Diversity (0-100) triggering mass extinction
	ExtinctionFraction float64 `yaml:"extinction_fraction"` // Population share replaced on extinction
}

// NoveltyConfig holds novelty search parameters.
type NoveltyConfig struct {
	Weight      float64 `yaml:"weight"`       // Blend weight of novelty utility
	K           int     `yaml:"k"`            // Nearest neighbours averaged
	ArchiveSize int     `yaml:"archive_size"` // FIFO capacity
	AddPerGen   int     `yaml:"add_per_gen"`  // Most novel signatures archived each generation
}

// CollectiveConfig holds archetype nudge parameters.
type CollectiveConfig struct {
	Enabled         bool    `yaml:"enabled"`
	LearningRate    float64 `yaml:"learning_rate"`
	Decay           float64 `yaml:"decay"`            // Per-generation learning rate decay
	SuccessFraction float64 `yaml:"success_fraction"` // Top share averaged for success archetypes
	FailureFraction float64 `yaml:"failure_fraction"` // Top share averaged for failure archetypes
	MinAgents       int     `yaml:"min_agents"`
	MinPieces       int     `yaml:"min_pieces"`
	RepelRatio      float64 `yaml:"repel_ratio"` // Failure repulsion relative to attraction
	CulturalSeeds   int     `yaml:"cultural_seeds"`
}

// CurriculumConfig holds difficulty stages.
type CurriculumConfig struct {
	Stages []StageConfig `yaml:"stages"`
}

// StageConfig is one curriculum stage, active once the best raw score reaches MinBestScore.
type StageConfig struct {
	Name         string  `yaml:"name"`
	MinBestScore float64 `yaml:"min_best_score"`
	GravityScale float64 `yaml:"gravity_scale"` // >1 speeds gravity up, <1 slows it down
	PieceCap     int     `yaml:"piece_cap"`     // Pieces per run before death by cap
}

// TelemetryConfig holds bounded history sizes.
type TelemetryConfig struct {
	LineageHistory   int `yaml:"lineage_history"`   // Generations of lineage kept
	TelemetryHistory int `yaml:"telemetry_history"` // Telemetry frames kept
	FitnessHistory   int `yaml:"fitness_history"`   // (generation, fitness) points kept
	LeaderboardSize  int `yaml:"leaderboard_size"`
}

// SimConfig holds simulation actor pacing.
type SimConfig struct {
	TicksPerBatch int           `yaml:"ticks_per_batch"`
	BatchInterval time.Duration `yaml:"batch_interval"`
	EmitInterval  time.Duration `yaml:"emit_interval"`
	HeavyInterval time.Duration `yaml:"heavy_interval"`
	CommandBuffer int           `yaml:"command_buffer"`
	Workers       int           `yaml:"workers"` // Runner tick workers (0 = GOMAXPROCS, 1 = inline)
}

// StorageConfig holds persistence adapter settings.
type StorageConfig struct {
	Kind      string        `yaml:"kind"` // memory | sqlite | http
	Path      string        `yaml:"path"` // sqlite database path
	URL       string        `yaml:"url"`  // base URL of the KV service
	Key       string        `yaml:"key"`  // state key
	Timeout   time.Duration `yaml:"timeout"`
	SaveEvery int           `yaml:"save_every"` // Generations between saves (0 = never)
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	TicksPerGenerationHint int // Rough tick budget of one generation at stage 0
	Workers                int // Resolved runner tick workers
}

// Default returns the embedded default configuration.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize validates the config and recomputes derived values. Call it
// after changing fields of an already loaded config.
func (c *Config) Finalize() error {
	if err := c.validate(); err != nil {
		return err
	}
	c.computeDerived()
	return nil
}

// validate rejects values the engine cannot run with.
func (c *Config) validate() error {
	if c.Evolution.PopulationSize < 2 {
		return fmt.Errorf("evolution.population_size must be >= 2, got %d", c.Evolution.PopulationSize)
	}
	if c.Evolution.Sigma <= 0 || c.Evolution.SigmaMin <= 0 {
		return fmt.Errorf("evolution.sigma and sigma_min must be positive")
	}
	if c.Evolution.SigmaMax < c.Evolution.SigmaMin {
		return fmt.Errorf("evolution.sigma_max (%g) below sigma_min (%g)", c.Evolution.SigmaMax, c.Evolution.SigmaMin)
	}
	if c.Game.RunsPerGenome < 1 {
		return fmt.Errorf("game.runs_per_genome must be >= 1, got %d", c.Game.RunsPerGenome)
	}
	if len(c.Curriculum.Stages) == 0 {
		return fmt.Errorf("curriculum.stages must not be empty")
	}
	for i, s := range c.Curriculum.Stages {
		if s.GravityScale <= 0 || s.PieceCap <= 0 {
			return fmt.Errorf("curriculum stage %d (%s): gravity_scale and piece_cap must be positive", i, s.Name)
		}
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	// Stages are consulted in ascending threshold order
	sort.SliceStable(c.Curriculum.Stages, func(i, j int) bool {
		return c.Curriculum.Stages[i].MinBestScore < c.Curriculum.Stages[j].MinBestScore
	})

	if c.Game.LookaheadTopK < 1 {
		c.Game.LookaheadTopK = 1
	}
	if c.Novelty.K < 1 {
		c.Novelty.K = 1
	}
	if c.Sim.TicksPerBatch < 1 {
		c.Sim.TicksPerBatch = 1
	}
	if c.Sim.BatchInterval <= 0 {
		c.Sim.BatchInterval = 16 * time.Millisecond
	}
	if c.Storage.Timeout <= 0 {
		c.Storage.Timeout = 5 * time.Second
	}

	c.Derived.Workers = c.Sim.Workers
	if c.Derived.Workers <= 0 {
		c.Derived.Workers = runtime.GOMAXPROCS(0)
	}

	first := c.Curriculum.Stages[0]
	c.Derived.TicksPerGenerationHint = first.PieceCap * c.Game.RunsPerGenome * c.Game.BaseGravity
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
