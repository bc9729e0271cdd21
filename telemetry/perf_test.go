package telemetry

import (
	"testing"
	"time"
)

func TestPerfCollector_BasicTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseAgents)
		time.Sleep(100 * time.Microsecond)
		pc.StartPhase(PhaseEvolve)
		time.Sleep(200 * time.Microsecond)
		pc.EndTick()
	}

	stats := pc.Stats()

	if stats.AvgTickDuration <= 0 {
		t.Error("expected positive average tick duration")
	}
	if _, ok := stats.PhaseAvg[PhaseAgents]; !ok {
		t.Error("expected agents phase to be tracked")
	}
	if _, ok := stats.PhaseAvg[PhaseEvolve]; !ok {
		t.Error("expected evolve phase to be tracked")
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc := NewPerfCollector(5)

	for i := 0; i < 10; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseAgents)
		time.Sleep(10 * time.Microsecond)
		pc.EndTick()
	}

	stats := pc.Stats()
	if stats.AvgTickDuration <= 0 {
		t.Error("expected positive average tick duration after window filled")
	}
	if stats.TicksPerSecond <= 0 {
		t.Error("expected positive ticks per second")
	}
}

func TestPerfCollector_PhasePercentages(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseEmit)
		time.Sleep(10 * time.Microsecond)
		pc.StartPhase(PhaseAgents)
		time.Sleep(500 * time.Microsecond)
		pc.EndTick()
	}

	stats := pc.Stats()
	fastPct := stats.PhasePct[PhaseEmit]
	slowPct := stats.PhasePct[PhaseAgents]
	if slowPct <= fastPct {
		t.Errorf("expected agents phase (%v%%) > emit phase (%v%%)", slowPct, fastPct)
	}

	row := stats.ToCSV(7)
	if row.Generation != 7 {
		t.Errorf("generation: got %d, want 7", row.Generation)
	}
	if row.AgentsPct != slowPct {
		t.Errorf("agents_pct: got %v, want %v", row.AgentsPct, slowPct)
	}
}

func TestPerfCollector_EmptyStats(t *testing.T) {
	pc := NewPerfCollector(10)

	stats := pc.Stats()
	if stats.AvgTickDuration != 0 {
		t.Error("expected zero avg tick duration for empty collector")
	}
	if stats.PhaseAvg == nil {
		t.Error("expected non-nil PhaseAvg map")
	}
	if stats.PhasePct == nil {
		t.Error("expected non-nil PhasePct map")
	}
}
