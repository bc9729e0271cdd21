package sim

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pthm-cable/tetrevo/config"
	"github.com/pthm-cable/tetrevo/evolution"
	"github.com/pthm-cable/tetrevo/tetris"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Evolution.PopulationSize = 6
	cfg.Game.RunsPerGenome = 1
	cfg.Game.GarbageChance = 0
	cfg.Curriculum.Stages = []config.StageConfig{{Name: "test", GravityScale: 2, PieceCap: 6}}
	cfg.Derived.Workers = 1
	cfg.Sim.BatchInterval = time.Millisecond
	cfg.Sim.EmitInterval = 100 * time.Millisecond
	cfg.Sim.HeavyInterval = time.Second
	cfg.Storage.SaveEvery = 0
	return cfg
}

// fakeClock is a settable time source.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestSim(t *testing.T, cfg *config.Config, opts ...Option) (*Simulator, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Unix(1000, 0)}
	e := evolution.NewEngine(cfg, 42)
	t.Cleanup(e.Close)
	return New(cfg, e, append([]Option{WithClock(clock.now)}, opts...)...), clock
}

func lastUpdate(t *testing.T, out chan Update) Update {
	t.Helper()
	var u Update
	got := false
	for {
		select {
		case u = <-out:
			got = true
		default:
			if !got {
				t.Fatal("no update emitted")
			}
			return u
		}
	}
}

func TestPauseStopsTicking(t *testing.T) {
	s, _ := newTestSim(t, testConfig())
	out := make(chan Update, 8)

	s.handle(Pause{}, out)
	if u := lastUpdate(t, out); !u.Paused {
		t.Error("pause update should report paused")
	}

	before := s.engine.Runners()[0].Game().Ticks
	s.batch(context.Background(), out)
	if got := s.engine.Runners()[0].Game().Ticks; got != before {
		t.Errorf("paused batch ticked: %d -> %d", before, got)
	}

	s.handle(Resume{}, out)
	s.batch(context.Background(), out)
	if got := s.engine.Runners()[0].Game().Ticks; got == before {
		t.Error("resumed batch did not tick")
	}
}

func TestBatchStopsAtGenerationBoundary(t *testing.T) {
	s, _ := newTestSim(t, testConfig())
	out := make(chan Update, 8)
	s.handle(SetSpeed{TicksPerBatch: 1_000_000}, out)

	s.batch(context.Background(), out)
	if g := s.engine.Generation(); g != 2 {
		t.Fatalf("generation: got %d, want 2", g)
	}

	u := lastUpdate(t, out)
	if u.EndOfGeneration == nil || u.EndOfGeneration.Stats.Generation != 1 {
		t.Fatal("boundary update should carry the generation 1 report")
	}
	if !u.Heavy() || u.Perf == nil {
		t.Error("boundary update should be heavy")
	}
	for _, a := range u.Agents {
		if !a.Alive || a.Generation != 2 {
			t.Errorf("agent %s: alive %v gen %d, want a fresh generation 2 agent", a.ID, a.Alive, a.Generation)
		}
	}
}

func TestEmitThrottle(t *testing.T) {
	cfg := testConfig()
	s, clock := newTestSim(t, cfg)
	out := make(chan Update, 8)

	s.emit(out, nil, true)
	lastUpdate(t, out)

	s.emit(out, nil, false)
	if len(out) != 0 {
		t.Fatal("update emitted before the emit interval")
	}

	clock.advance(cfg.Sim.EmitInterval)
	s.emit(out, nil, false)
	if u := lastUpdate(t, out); u.Heavy() {
		t.Error("update inside the heavy interval should be light")
	}

	clock.advance(cfg.Sim.HeavyInterval)
	s.emit(out, nil, false)
	if u := lastUpdate(t, out); !u.Heavy() {
		t.Error("update after the heavy interval should be heavy")
	}
}

func TestEmitNeverBlocks(t *testing.T) {
	s, _ := newTestSim(t, testConfig())
	out := make(chan Update) // nobody reads

	done := make(chan struct{})
	go func() {
		s.emit(out, nil, true)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit blocked on a full channel")
	}
	if s.dropped != 1 {
		t.Errorf("dropped: got %d, want 1", s.dropped)
	}
}

func TestImportState(t *testing.T) {
	cfg := testConfig()
	src := evolution.NewEngine(cfg, 7)
	defer src.Close()
	data, err := evolution.EncodeState(src.Export())
	if err != nil {
		t.Fatalf("EncodeState: %v", err)
	}

	s, _ := newTestSim(t, cfg)
	out := make(chan Update, 8)
	s.handle(ImportState{Data: data}, out)

	want := src.Runners()
	for i, r := range s.engine.Runners() {
		if r.Genome.ID != want[i].Genome.ID {
			t.Errorf("slot %d: got %s, want %s", i, r.Genome.ID, want[i].Genome.ID)
		}
	}
	if !lastUpdate(t, out).Heavy() {
		t.Error("import should emit a heavy update")
	}
}

func TestUndecodableImportResets(t *testing.T) {
	s, _ := newTestSim(t, testConfig())
	out := make(chan Update, 8)
	s.handle(SetSpeed{TicksPerBatch: 1_000_000}, out)
	s.batch(context.Background(), out)
	if s.engine.Generation() != 2 {
		t.Fatal("setup: first generation did not finish")
	}

	s.handle(ImportState{Data: []byte("not json")}, out)
	if g := s.engine.Generation(); g != 1 {
		t.Errorf("generation after bad import: got %d, want 1", g)
	}
	if len(s.engine.Leaderboard()) != 0 {
		t.Error("bad import should reset the records")
	}
}

func TestControlRouting(t *testing.T) {
	s, _ := newTestSim(t, testConfig())
	out := make(chan Update, 8)
	r := s.engine.Runners()[2]

	s.handle(TakeControl{AgentID: r.Genome.ID}, out)
	if !r.Controlled() {
		t.Fatal("runner not under control")
	}

	x := r.Game().Current.X
	s.handle(ControlInput{Action: tetris.Left}, out)
	if got := r.Game().Current.X; got != x-1 {
		t.Errorf("x after left: got %d, want %d", got, x-1)
	}

	s.handle(TakeControl{}, out)
	if r.Controlled() {
		t.Error("empty id should release control")
	}
	s.handle(ControlInput{Action: tetris.Left}, out)
	if got := r.Game().Current.X; got != x-1 {
		t.Error("input applied after release")
	}
}

func TestKillAgent(t *testing.T) {
	s, _ := newTestSim(t, testConfig())
	out := make(chan Update, 8)
	r := s.engine.Runners()[0]

	s.handle(KillAgent{AgentID: r.Genome.ID}, out)
	if r.Alive() {
		t.Error("killed agent still alive")
	}
	s.handle(KillAgent{AgentID: "missing"}, out) // logged, not fatal
}

// recordingSaver captures saves.
type recordingSaver struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (r *recordingSaver) Save(_ context.Context, key string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := evolution.DecodeState(data); err != nil {
		return err
	}
	r.keys = append(r.keys, key)
	return r.err
}

func TestSavesEveryGeneration(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.SaveEvery = 1
	cfg.Storage.Key = "pop"
	saver := &recordingSaver{}
	s, _ := newTestSim(t, cfg, WithSaver(saver))
	out := make(chan Update, 8)
	s.handle(SetSpeed{TicksPerBatch: 1_000_000}, out)

	s.batch(context.Background(), out)
	if len(saver.keys) != 1 || saver.keys[0] != "pop" {
		t.Errorf("saves: got %v, want [pop]", saver.keys)
	}

	// A failing store does not stop the simulation.
	saver.err = errors.New("disk full")
	s.batch(context.Background(), out)
	if s.engine.Generation() != 3 {
		t.Errorf("generation: got %d, want 3", s.engine.Generation())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	e := evolution.NewEngine(cfg, 42)
	defer e.Close()
	s := New(cfg, e)

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan Command, 4)
	out := make(chan Update, 64)
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx, in, out) }()

	in <- Pause{}
	select {
	case <-out:
	case <-time.After(5 * time.Second):
		t.Fatal("no update from Run")
	}
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestUpdateWireKeys(t *testing.T) {
	s, _ := newTestSim(t, testConfig())
	data, err := json.Marshal(Update{Agents: s.agents(), Stats: s.engine.Stats()})
	if err != nil {
		t.Fatal(err)
	}
	var msg struct {
		Agents []map[string]json.RawMessage `json:"agents"`
		Stats  map[string]json.RawMessage   `json:"stats"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if len(msg.Agents) == 0 {
		t.Fatal("no agents")
	}
	for _, key := range []string{"multiplier", "genome", "isAlive", "currentPiece"} {
		if _, ok := msg.Agents[0][key]; !ok {
			t.Errorf("agent view missing %q", key)
		}
	}
	var g struct {
		ID     string    `json:"id"`
		Params []float64 `json:"params"`
	}
	if err := json.Unmarshal(msg.Agents[0]["genome"], &g); err != nil {
		t.Fatal(err)
	}
	if g.ID != s.agents()[0].ID || len(g.Params) == 0 {
		t.Errorf("genome: got id %q with %d params, want id %q with params", g.ID, len(g.Params), s.agents()[0].ID)
	}
	if _, ok := msg.Stats["explorationSigma"]; !ok {
		t.Error("stats missing explorationSigma")
	}
	if _, ok := msg.Stats["mutationRate"]; ok {
		t.Error("stats still carry mutationRate")
	}
}
