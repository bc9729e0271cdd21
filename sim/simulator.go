// Package sim runs the engine as a single actor: commands in, throttled
// updates out.
package sim

import (
	"context"
	"log/slog"
	"time"

	"github.com/pthm-cable/tetrevo/config"
	"github.com/pthm-cable/tetrevo/evolution"
	"github.com/pthm-cable/tetrevo/game"
	"github.com/pthm-cable/tetrevo/neural"
	"github.com/pthm-cable/tetrevo/telemetry"
	"github.com/pthm-cable/tetrevo/tetris"
)

// Saver persists encoded engine state.
type Saver interface {
	Save(ctx context.Context, key string, data []byte) error
}

// AgentView is the observable state of one runner.
type AgentView struct {
	ID         string         `json:"id"`
	Generation int            `json:"generation"`
	BornMethod string         `json:"bornMethod"`
	Grid       tetris.Board   `json:"grid"`
	Piece      *tetris.Piece  `json:"currentPiece,omitempty"`
	Next       string         `json:"nextPiece"`
	Score      float64        `json:"score"`
	Lines      int            `json:"lines"`
	Level      int            `json:"level"`
	Pieces     int            `json:"piecesPlaced"`
	Run        int            `json:"run"`
	Alive      bool           `json:"isAlive"`
	Controlled bool           `json:"controlled"`
	Multiplier float64        `json:"multiplier"`
	Genome     *neural.Genome `json:"genome"`
}

// Update is one message to observers. Heavy fields are only set on heavy
// updates.
type Update struct {
	Agents []AgentView               `json:"agents"`
	Stats  evolution.GenerationStats `json:"stats"`
	Paused bool                      `json:"paused"`

	Lineage          [][]telemetry.LineageNode    `json:"lineage,omitempty"`
	Leaderboard      []telemetry.LeaderboardEntry `json:"leaderboard,omitempty"`
	Ghost            *telemetry.Ghost             `json:"ghost,omitempty"`
	TelemetryHistory []telemetry.TelemetryFrame   `json:"telemetryHistory,omitempty"`
	Timeline         []telemetry.TimelineEvent    `json:"timeline,omitempty"`
	Perf             *telemetry.PerfStats         `json:"-"`

	EndOfGeneration *evolution.Report `json:"endOfGenerationSnapshot,omitempty"`
}

// Heavy reports whether the update carries the heavy payloads.
func (u Update) Heavy() bool {
	return u.Leaderboard != nil
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithSaver saves engine state every cfg.Storage.SaveEvery generations.
func WithSaver(s Saver) Option {
	return func(sim *Simulator) { sim.saver = s }
}

// WithClock replaces time.Now for emit throttling.
func WithClock(now func() time.Time) Option {
	return func(sim *Simulator) { sim.now = now }
}

// Simulator owns an engine and is its only caller.
type Simulator struct {
	cfg    *config.Config
	engine *evolution.Engine
	perf   *telemetry.PerfCollector
	saver  Saver
	now    func() time.Time

	paused        bool
	ticksPerBatch int
	controlled    *game.Runner

	lastEmit  time.Time
	lastHeavy time.Time
	dropped   int
}

// New creates a simulator driving engine.
func New(cfg *config.Config, engine *evolution.Engine, opts ...Option) *Simulator {
	s := &Simulator{
		cfg:           cfg,
		engine:        engine,
		perf:          telemetry.NewPerfCollector(60),
		now:           time.Now,
		ticksPerBatch: cfg.Sim.TicksPerBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run processes commands and ticks the engine until ctx is done. Updates
// are sent without blocking; a lagging consumer misses them.
func (s *Simulator) Run(ctx context.Context, in <-chan Command, out chan<- Update) error {
	ticker := time.NewTicker(s.cfg.Sim.BatchInterval)
	defer ticker.Stop()

	s.emit(out, nil, true)
	for {
		select {
		case <-ctx.Done():
			if s.dropped > 0 {
				slog.Info("simulator stopped", "dropped_updates", s.dropped)
			}
			return ctx.Err()
		case <-ticker.C:
			s.perf.StartTick()
			s.perf.StartPhase(telemetry.PhaseCommands)
			in = s.drain(in, out)
			s.batch(ctx, out)
			s.perf.EndTick()
		}
	}
}

// drain handles every pending command. It returns nil once in is closed.
func (s *Simulator) drain(in <-chan Command, out chan<- Update) <-chan Command {
	for {
		select {
		case cmd, ok := <-in:
			if !ok {
				return nil
			}
			s.handle(cmd, out)
		default:
			return in
		}
	}
}

// batch runs up to ticksPerBatch engine ticks, stopping at a generation
// boundary, then saves and emits as due.
func (s *Simulator) batch(ctx context.Context, out chan<- Update) {
	var rep *evolution.Report
	if !s.paused {
		s.perf.StartPhase(telemetry.PhaseAgents)
		for i := 0; i < s.ticksPerBatch; i++ {
			if s.engine.TickRunners() > 0 {
				continue
			}
			s.perf.StartPhase(telemetry.PhaseEvolve)
			rep = s.engine.NextGeneration()
			s.controlled = nil
			break
		}
	}

	if rep != nil {
		s.perf.StartPhase(telemetry.PhaseStorage)
		s.maybeSave(ctx, rep.Stats.Generation)
	}

	s.perf.StartPhase(telemetry.PhaseEmit)
	s.emit(out, rep, rep != nil)
}

func (s *Simulator) handle(cmd Command, out chan<- Update) {
	switch c := cmd.(type) {
	case Pause:
		s.paused = true
		s.emit(out, nil, true)
	case Resume:
		s.paused = false
	case Reset:
		s.release()
		s.engine.Reset()
		s.emit(out, nil, true)
	case ImportState:
		s.release()
		s.importState(c.Data)
		s.emit(out, nil, true)
	case InjectGenome:
		if _, err := s.engine.Inject(c.Genome); err != nil {
			slog.Warn("inject failed", "error", err)
		}
		// The injected genome may have taken the controlled runner's slot
		if s.controlled != nil && s.engine.Runner(s.controlled.Genome.ID) != s.controlled {
			s.controlled = nil
		}
	case SetSpeed:
		s.ticksPerBatch = max(1, c.TicksPerBatch)
	case TakeControl:
		s.release()
		if c.AgentID == "" {
			return
		}
		r := s.engine.Runner(c.AgentID)
		if r == nil || !r.Alive() {
			slog.Warn("take control: no live agent", "id", c.AgentID)
			return
		}
		r.TakeControl()
		s.controlled = r
	case ControlInput:
		if s.controlled != nil {
			s.controlled.Control(c.Action)
		}
	case KillAgent:
		if !s.engine.Kill(c.AgentID) {
			slog.Warn("kill: unknown agent", "id", c.AgentID)
		}
	}
}

func (s *Simulator) release() {
	if s.controlled != nil {
		s.controlled.Release()
		s.controlled = nil
	}
}

func (s *Simulator) importState(data []byte) {
	st, err := evolution.DecodeState(data)
	if err == nil {
		err = s.engine.Import(st)
	}
	if err != nil {
		slog.Warn("state not imported, resetting", "error", err)
		s.engine.Reset()
	}
}

func (s *Simulator) maybeSave(ctx context.Context, generation int) {
	every := s.cfg.Storage.SaveEvery
	if s.saver == nil || every <= 0 || generation%every != 0 {
		return
	}
	data, err := evolution.EncodeState(s.engine.Export())
	if err != nil {
		slog.Error("encode state", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Storage.Timeout)
	defer cancel()
	if err := s.saver.Save(ctx, s.cfg.Storage.Key, data); err != nil {
		slog.Warn("save state failed", "generation", generation, "error", err)
		return
	}
	slog.Debug("state saved", "generation", generation, "bytes", len(data))
}

// emit sends a light update every EmitInterval and a heavy one every
// HeavyInterval. Forced and end-of-generation updates are always heavy.
func (s *Simulator) emit(out chan<- Update, rep *evolution.Report, force bool) {
	now := s.now()
	heavy := force || now.Sub(s.lastHeavy) >= s.cfg.Sim.HeavyInterval
	if !heavy && now.Sub(s.lastEmit) < s.cfg.Sim.EmitInterval {
		return
	}

	u := Update{
		Agents:          s.agents(),
		Stats:           s.engine.Stats(),
		Paused:          s.paused,
		EndOfGeneration: rep,
	}
	if heavy {
		u.Lineage = s.engine.Lineage()
		u.Leaderboard = s.engine.Leaderboard()
		u.Ghost = s.engine.Ghost()
		u.TelemetryHistory = s.engine.TelemetryHistory()
		u.Timeline = s.engine.Timeline()
		perf := s.perf.Stats()
		u.Perf = &perf
		s.lastHeavy = now
	}
	s.lastEmit = now

	select {
	case out <- u:
	default:
		s.dropped++
	}
}

func (s *Simulator) agents() []AgentView {
	runners := s.engine.Runners()
	views := make([]AgentView, len(runners))
	for i, r := range runners {
		g := r.Game()
		v := AgentView{
			ID:         r.Genome.ID,
			Generation: r.Genome.Generation,
			BornMethod: string(r.Genome.Provenance),
			Grid:       g.Board,
			Next:       g.Next.String(),
			Score:      g.Score,
			Lines:      g.Lines,
			Level:      g.Level,
			Pieces:     g.Pieces,
			Run:        r.Run(),
			Alive:      r.Alive(),
			Controlled: r.Controlled(),
			Multiplier: g.Multiplier,
			Genome:     r.Genome.Clone(),
		}
		if r.Alive() {
			p := g.Current
			v.Piece = &p
		}
		views[i] = v
	}
	return views
}
