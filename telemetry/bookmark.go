package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkScoreBreakthrough BookmarkType = "score_breakthrough"
	BookmarkCleanStacking     BookmarkType = "clean_stacking"
	BookmarkDiversityCollapse BookmarkType = "diversity_collapse"
	BookmarkStageAdvance      BookmarkType = "stage_advance"
	BookmarkPlateau           BookmarkType = "plateau"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Generation  int          `csv:"generation"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"generation", b.Generation,
		"description", b.Description,
	)
}

// BookmarkDetector detects notable generations from telemetry frames.
type BookmarkDetector struct {
	history *Ring[TelemetryFrame]

	recentDiversityPeak float64
	plateauGens         int // consecutive generations with flat max fitness
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for plateau detection
	}
	return &BookmarkDetector{history: NewRing[TelemetryFrame](historySize)}
}

// Check analyzes the latest frame and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(f TelemetryFrame) []Bookmark {
	var bookmarks []Bookmark

	if bd.history.Len() > 0 {
		for _, check := range []func(TelemetryFrame) *Bookmark{
			bd.checkScoreBreakthrough,
			bd.checkCleanStacking,
			bd.checkDiversityCollapse,
			bd.checkStageAdvance,
			bd.checkPlateau,
		} {
			if b := check(f); b != nil {
				bookmarks = append(bookmarks, *b)
			}
		}
	}

	bd.history.Push(f)
	if f.Diversity > bd.recentDiversityPeak {
		bd.recentDiversityPeak = f.Diversity
	}

	return bookmarks
}

func (bd *BookmarkDetector) checkScoreBreakthrough(f TelemetryFrame) *Bookmark {
	history := bd.history.Items()
	if len(history) < 3 {
		return nil
	}

	var total float64
	for _, h := range history {
		total += h.MaxScore
	}
	avg := total / float64(len(history))
	if avg <= 0 {
		return nil
	}

	if f.MaxScore > avg*2.0 && f.MaxScore >= 1000 {
		return &Bookmark{
			Type:        BookmarkScoreBreakthrough,
			Generation:  f.Generation,
			Description: fmt.Sprintf("Max score %.0f is %.1fx average (%.0f)", f.MaxScore, f.MaxScore/avg, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkCleanStacking(f TelemetryFrame) *Bookmark {
	history := bd.history.Items()
	if len(history) < 3 {
		return nil
	}

	var total float64
	for _, h := range history {
		total += h.AvgHoles
	}
	avg := total / float64(len(history))

	if avg >= 1 && f.AvgHoles < avg*0.5 {
		return &Bookmark{
			Type:        BookmarkCleanStacking,
			Generation:  f.Generation,
			Description: fmt.Sprintf("Average holes %.2f fell below half the recent %.2f", f.AvgHoles, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkDiversityCollapse(f TelemetryFrame) *Bookmark {
	if bd.recentDiversityPeak < 10 {
		return nil
	}

	drop := 1.0 - f.Diversity/bd.recentDiversityPeak
	if drop > 0.5 {
		// Reset peak after collapse
		oldPeak := bd.recentDiversityPeak
		bd.recentDiversityPeak = f.Diversity

		return &Bookmark{
			Type:        BookmarkDiversityCollapse,
			Generation:  f.Generation,
			Description: fmt.Sprintf("Diversity fell %.0f%% from peak %.1f to %.1f", drop*100, oldPeak, f.Diversity),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkStageAdvance(f TelemetryFrame) *Bookmark {
	prev, ok := bd.history.Last()
	if !ok || prev.Stage == f.Stage || f.Stage == "" {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkStageAdvance,
		Generation:  f.Generation,
		Description: fmt.Sprintf("Curriculum advanced from %s to %s", prev.Stage, f.Stage),
	}
}

func (bd *BookmarkDetector) checkPlateau(f TelemetryFrame) *Bookmark {
	prev, _ := bd.history.Last()
	flat := prev.MaxFitness != 0 &&
		abs(f.MaxFitness-prev.MaxFitness) <= 0.01*abs(prev.MaxFitness)
	if !flat {
		bd.plateauGens = 0
		return nil
	}

	bd.plateauGens++
	if bd.plateauGens != 5 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkPlateau,
		Generation:  f.Generation,
		Description: fmt.Sprintf("Max fitness flat near %.2f for 5 generations", f.MaxFitness),
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
