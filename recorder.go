package main

import (
	"log/slog"

	"github.com/pthm-cable/tetrevo/sim"
	"github.com/pthm-cable/tetrevo/telemetry"
)

// recorder writes end-of-generation updates to the output directory.
type recorder struct {
	om          *telemetry.OutputManager
	bookmarks   *telemetry.BookmarkDetector
	leaderboard *telemetry.Leaderboard
	logStats    bool
}

func newRecorder(om *telemetry.OutputManager, leaderboardSize int, logStats bool) *recorder {
	return &recorder{
		om:          om,
		bookmarks:   telemetry.NewBookmarkDetector(10),
		leaderboard: telemetry.NewLeaderboard(leaderboardSize),
		logStats:    logStats,
	}
}

func (r *recorder) record(u sim.Update) {
	rep := u.EndOfGeneration
	gen := rep.Stats.Generation

	if r.logStats {
		rep.Frame.LogStats()
	}
	if err := r.om.WriteTelemetry(rep.Frame); err != nil {
		slog.Warn("write telemetry", "error", err)
	}
	if err := r.om.WriteLineage(rep.Lineage); err != nil {
		slog.Warn("write lineage", "error", err)
	}
	if u.Perf != nil {
		if r.logStats {
			u.Perf.LogStats()
		}
		if err := r.om.WritePerf(*u.Perf, gen); err != nil {
			slog.Warn("write perf", "error", err)
		}
	}

	for _, b := range r.bookmarks.Check(rep.Frame) {
		b.LogBookmark()
		if err := r.om.WriteBookmark(b); err != nil {
			slog.Warn("write bookmark", "error", err)
		}
	}

	r.leaderboard.Load(u.Leaderboard)
	if err := r.om.WriteLeaderboard(r.leaderboard); err != nil {
		slog.Warn("write leaderboard", "error", err)
	}
	if rep.NewGhost && u.Ghost != nil {
		if err := r.om.WriteGhost(u.Ghost); err != nil {
			slog.Warn("write ghost", "error", err)
		}
	}
	if err := r.om.WriteTimeline(u.Timeline); err != nil {
		slog.Warn("write timeline", "error", err)
	}
	if rep.Extinction {
		slog.Warn("diversity below floor", "generation", gen, "diversity", rep.Stats.Diversity)
	}
}
