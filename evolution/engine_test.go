package evolution

import (
	"math"
	"testing"

	"github.com/pthm-cable/tetrevo/config"
	"github.com/pthm-cable/tetrevo/neural"
)

const generationBudget = 100000

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Evolution.PopulationSize = 8
	cfg.Evolution.Immigrants = 1
	cfg.Game.RunsPerGenome = 1
	cfg.Game.GarbageChance = 0
	cfg.Game.GhostMaxFrames = 50
	cfg.Curriculum.Stages = []config.StageConfig{
		{Name: "warmup", MinBestScore: 0, GravityScale: 2, PieceCap: 8},
		{Name: "unreachable", MinBestScore: 1e12, GravityScale: 2, PieceCap: 8},
	}
	cfg.Collective.MinAgents = 3
	cfg.Collective.MinPieces = 2
	cfg.Derived.Workers = 1
	return cfg
}

func runGeneration(t *testing.T, e *Engine) *Report {
	t.Helper()
	for i := 0; i < generationBudget; i++ {
		if e.Tick() {
			return e.LastReport()
		}
	}
	t.Fatalf("generation %d did not finish in %d ticks", e.Generation(), generationBudget)
	return nil
}

func TestFirstGeneration(t *testing.T) {
	e := NewEngine(testConfig(), 42)
	defer e.Close()

	members := e.pop.Members()
	if len(members) != 8 {
		t.Fatalf("population: got %d, want 8", len(members))
	}
	if p := members[0].Runner.Genome.Provenance; p != neural.ProvSeed || members[0].Noise != nil {
		t.Errorf("slot 0: got %s with noise %v, want the seed genome outside the gradient", p, members[0].Noise != nil)
	}
	for i, m := range members[1:] {
		if m.Runner.Genome.Provenance != neural.ProvESSample {
			t.Errorf("slot %d: got %s, want es-sample", i+1, m.Runner.Genome.Provenance)
		}
	}

	// Samples come in antithetic pairs.
	a, b := members[1].Noise, members[2].Noise
	for j := range a {
		if a[j] != -b[j] {
			t.Fatalf("noise %d not mirrored: %v vs %v", j, a[j], b[j])
		}
	}
	if e.Stats().Alive != 8 {
		t.Errorf("alive: got %d, want 8", e.Stats().Alive)
	}
}

func TestGenerationAdvances(t *testing.T) {
	cfg := testConfig()
	e := NewEngine(cfg, 42)
	defer e.Close()

	mean := e.Mean()
	rep := runGeneration(t, e)

	if e.Generation() != 2 {
		t.Errorf("generation: got %d, want 2", e.Generation())
	}
	if rep.Stats.Generation != 1 || rep.Frame.Generation != 1 {
		t.Errorf("report generation: got %d/%d, want 1", rep.Stats.Generation, rep.Frame.Generation)
	}
	if len(rep.Lineage) != 8 {
		t.Errorf("lineage nodes: got %d, want 8", len(rep.Lineage))
	}
	if got := len(e.Lineage()); got != 1 {
		t.Errorf("lineage history: got %d generations, want 1", got)
	}
	if len(e.Leaderboard()) == 0 || len(e.History()) != 1 || len(e.TelemetryHistory()) != 1 {
		t.Error("records not updated after a generation")
	}
	if e.Ghost() == nil || !rep.NewGhost {
		t.Error("first generation should record a ghost")
	}

	moved := false
	for i, v := range e.Mean() {
		if v != mean[i] {
			moved = true
			break
		}
	}
	if !moved {
		t.Error("mean unchanged after a generation")
	}

	if e.Sigma() < cfg.Evolution.SigmaMin || e.Sigma() > cfg.Evolution.SigmaMax {
		t.Errorf("sigma %v outside [%v, %v]", e.Sigma(), cfg.Evolution.SigmaMin, cfg.Evolution.SigmaMax)
	}
}

func TestSecondGenerationComposition(t *testing.T) {
	cfg := testConfig()
	e := NewEngine(cfg, 42)
	defer e.Close()
	runGeneration(t, e)

	counts := map[neural.Provenance]int{}
	for _, m := range e.pop.Members() {
		g := m.Runner.Genome
		counts[g.Provenance]++
		if g.Generation != 2 {
			t.Errorf("genome %s generation: got %d, want 2", g.ID, g.Generation)
		}
		isSample := g.Provenance == neural.ProvESSample
		if isSample != (m.Noise != nil) {
			t.Errorf("%s member noise presence %v", g.Provenance, m.Noise != nil)
		}
	}

	if counts[neural.ProvHallOfFame] != 1 {
		t.Errorf("hall of fame: got %d, want 1", counts[neural.ProvHallOfFame])
	}
	if counts[neural.ProvElite] != cfg.Evolution.EliteCount {
		t.Errorf("elites: got %d, want %d", counts[neural.ProvElite], cfg.Evolution.EliteCount)
	}
	if counts[neural.ProvImmigrant] < cfg.Evolution.Immigrants {
		t.Errorf("immigrants: got %d, want at least %d", counts[neural.ProvImmigrant], cfg.Evolution.Immigrants)
	}
	if e.pop.Len() != cfg.Evolution.PopulationSize {
		t.Errorf("population: got %d, want %d", e.pop.Len(), cfg.Evolution.PopulationSize)
	}

	// Copies keep params but play under a new id.
	hof := e.pop.Members()[0].Runner.Genome
	if len(hof.Parents) != 1 || hof.Parents[0] == hof.ID {
		t.Errorf("hall of fame parents: got %v", hof.Parents)
	}
}

func TestEngineDeterministic(t *testing.T) {
	run := func(workers int) *Engine {
		cfg := testConfig()
		cfg.Derived.Workers = workers
		e := NewEngine(cfg, 7)
		runGeneration(t, e)
		runGeneration(t, e)
		return e
	}
	a, b := run(1), run(4)
	defer a.Close()
	defer b.Close()

	ma, mb := a.Mean(), b.Mean()
	for i := range ma {
		if math.Float64bits(ma[i]) != math.Float64bits(mb[i]) {
			t.Fatalf("mean[%d] differs: %v vs %v", i, ma[i], mb[i])
		}
	}
	ra, rb := a.Runners(), b.Runners()
	for i := range ra {
		if ra[i].Genome.ID != rb[i].Genome.ID {
			t.Errorf("slot %d id differs: %s vs %s", i, ra[i].Genome.ID, rb[i].Genome.ID)
		}
	}
}

func TestNextSigma(t *testing.T) {
	cfg := testConfig()
	ev := cfg.Evolution
	tests := []struct {
		name       string
		spike      bool
		diversity  float64
		stagnation int
		sigma      float64
		want       float64
	}{
		{"spike in diverse population", true, ev.LowDiversity + 1, 0, 0.2, ev.SigmaMin},
		{"spike in converged population", true, ev.LowDiversity - 1, 0, 0.05, ev.Sigma},
		{"long stagnation boosts", false, 50, ev.LongStagnation, 0.1, 0.1 * ev.SigmaBoost},
		{"boost is capped", false, 50, ev.LongStagnation, ev.SigmaMax, ev.SigmaMax},
		{"brief stagnation fine-tunes", false, 50, 1, 0.1, 0.1 * ev.SigmaFineTune},
		{"default decay", false, 50, 0, 0.1, 0.1 * ev.SigmaDecay},
		{"decay floors at min", false, 50, 0, ev.SigmaMin, ev.SigmaMin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Engine{cfg: cfg, sigma: tt.sigma, diversity: tt.diversity, stagnation: tt.stagnation}
			if got := e.nextSigma(tt.spike); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCurriculumNeverRegresses(t *testing.T) {
	cfg := testConfig()
	cfg.Curriculum.Stages = []config.StageConfig{
		{Name: "a", MinBestScore: 0, GravityScale: 1, PieceCap: 10},
		{Name: "b", MinBestScore: 100, GravityScale: 1, PieceCap: 10},
		{Name: "c", MinBestScore: 1000, GravityScale: 1, PieceCap: 10},
	}
	e := &Engine{cfg: cfg}

	e.bestEverScore = 500
	if !e.advanceCurriculum() || e.Stage().Name != "b" {
		t.Errorf("score 500: got stage %s, want b", e.Stage().Name)
	}
	e.bestEverScore = 50
	if e.advanceCurriculum() || e.Stage().Name != "b" {
		t.Errorf("stage regressed to %s", e.Stage().Name)
	}
	e.bestEverScore = 5000
	if !e.advanceCurriculum() || e.Stage().Name != "c" {
		t.Errorf("score 5000: got stage %s, want c", e.Stage().Name)
	}
}

func TestStagnationWindow(t *testing.T) {
	cfg := testConfig()
	e := NewEngine(cfg, 42)
	defer e.Close()

	steps := []struct {
		maxFit float64
		want   int
	}{
		{10, 0},
		{9, 1},
		{10, 2},
		{11, 0},
	}
	for i, s := range steps {
		e.updateStagnation(s.maxFit)
		if e.stagnation != s.want {
			t.Errorf("step %d: stagnation %d, want %d", i, e.stagnation, s.want)
		}
	}
}

func TestMassExtinctionAddsImmigrants(t *testing.T) {
	cfg := testConfig()
	cfg.Evolution.HallOfFame = false
	cfg.Evolution.EliteCount = 0
	cfg.Collective.Enabled = false
	e := NewEngine(cfg, 42)
	defer e.Close()

	e.generation = 2
	e.extinction = true
	e.build()

	want := cfg.Evolution.Immigrants + int(math.Ceil(cfg.Evolution.ExtinctionFraction*float64(cfg.Evolution.PopulationSize)))
	got := 0
	for _, r := range e.Runners() {
		if r.Genome.Provenance == neural.ProvImmigrant {
			got++
		}
	}
	if got != want {
		t.Errorf("immigrants: got %d, want %d", got, want)
	}
	if e.extinction {
		t.Error("extinction flag should clear after the build")
	}
}

func TestNewRunnerReplacesBadParams(t *testing.T) {
	e := NewEngine(testConfig(), 42)
	defer e.Close()

	nan := make(neural.Params, neural.ParamCount)
	nan[3] = math.NaN()
	tests := []struct {
		name   string
		params neural.Params
	}{
		{"short", neural.Params{1, 2, 3}},
		{"non-finite", nan},
		{"missing", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &neural.Genome{ID: tt.name, Params: tt.params}
			r := e.newRunner(g)
			if r == nil {
				t.Fatal("no runner")
			}
			if !r.Genome.Params.Valid() {
				t.Errorf("runner plays invalid params (len %d)", len(r.Genome.Params))
			}
			if r.Genome.Summary.Sensitivities == nil {
				t.Error("summary not rebuilt for the replacement params")
			}
		})
	}
}

func TestFirstTetrisTimeline(t *testing.T) {
	e := NewEngine(testConfig(), 42)
	defer e.Close()

	runners := e.Runners()
	runners[5].Game().Clears[4] = 1
	runners[2].Game().Clears[4] = 1
	e.TickRunners()
	e.TickRunners()

	got := e.Timeline()
	if len(got) != 1 {
		t.Fatalf("events: got %d, want 1 per generation", len(got))
	}
	if got[0].Generation != 1 || got[0].FirstTetrisBy != runners[2].Genome.ID || got[0].FirstTetrisAt <= 0 {
		t.Errorf("event: got %+v, want generation 1 by %s", got[0], runners[2].Genome.ID)
	}

	runGeneration(t, e)
	if n := len(e.Timeline()); n != 1 {
		t.Fatalf("after generation 1: got %d events, want 1", n)
	}
	r := e.Runners()[0]
	r.Game().Clears[4] = 2
	e.TickRunners()
	got = e.Timeline()
	if len(got) != 2 || got[1].Generation != 2 || got[1].FirstTetrisBy != r.Genome.ID {
		t.Fatalf("generation 2: got %+v", got)
	}

	restored := NewEngine(testConfig(), 7)
	defer restored.Close()
	if err := restored.Import(e.Export()); err != nil {
		t.Fatal(err)
	}
	if n := len(restored.Timeline()); n != 2 {
		t.Errorf("imported timeline: got %d events, want 2", n)
	}
}
