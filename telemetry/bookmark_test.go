package telemetry

import "testing"

func hasBookmark(bms []Bookmark, typ BookmarkType) bool {
	for _, bm := range bms {
		if bm.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_ScoreBreakthrough(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(TelemetryFrame{Generation: i, MaxScore: 1000})
	}

	bookmarks := bd.Check(TelemetryFrame{Generation: 5, MaxScore: 3000})
	if !hasBookmark(bookmarks, BookmarkScoreBreakthrough) {
		t.Error("expected score_breakthrough bookmark")
	}
}

func TestBookmarkDetector_CleanStacking(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(TelemetryFrame{Generation: i, AvgHoles: 4})
	}

	bookmarks := bd.Check(TelemetryFrame{Generation: 5, AvgHoles: 1})
	if !hasBookmark(bookmarks, BookmarkCleanStacking) {
		t.Error("expected clean_stacking bookmark")
	}
}

func TestBookmarkDetector_DiversityCollapse(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 3; i++ {
		bd.Check(TelemetryFrame{Generation: i, Diversity: 20})
	}

	bookmarks := bd.Check(TelemetryFrame{Generation: 3, Diversity: 5})
	if !hasBookmark(bookmarks, BookmarkDiversityCollapse) {
		t.Error("expected diversity_collapse bookmark")
	}

	// Peak resets after a collapse, so the same level does not fire again.
	bookmarks = bd.Check(TelemetryFrame{Generation: 4, Diversity: 5})
	if hasBookmark(bookmarks, BookmarkDiversityCollapse) {
		t.Error("collapse should not repeat at the new baseline")
	}
}

func TestBookmarkDetector_StageAdvance(t *testing.T) {
	bd := NewBookmarkDetector(10)
	bd.Check(TelemetryFrame{Generation: 0, Stage: "sprint"})

	bookmarks := bd.Check(TelemetryFrame{Generation: 1, Stage: "club"})
	if !hasBookmark(bookmarks, BookmarkStageAdvance) {
		t.Error("expected stage_advance bookmark")
	}
}

func TestBookmarkDetector_PlateauFiresOnce(t *testing.T) {
	bd := NewBookmarkDetector(10)

	fired := 0
	for i := 0; i < 10; i++ {
		if hasBookmark(bd.Check(TelemetryFrame{Generation: i, MaxFitness: 100}), BookmarkPlateau) {
			fired++
			if i != 5 {
				t.Errorf("plateau fired at generation %d, want 5", i)
			}
		}
	}
	if fired != 1 {
		t.Errorf("plateau fired %d times, want 1", fired)
	}
}

func TestBookmarkDetector_SteadyProgress(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 10; i++ {
		f := TelemetryFrame{
			Generation: i,
			MaxScore:   1000 + float64(i)*100,
			MaxFitness: 50 + float64(i)*10,
			AvgHoles:   3,
			Diversity:  15,
			Stage:      "sprint",
		}
		if bms := bd.Check(f); len(bms) != 0 {
			t.Errorf("generation %d: unexpected bookmarks %v", i, bms)
		}
	}
}
