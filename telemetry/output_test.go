package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/tetrevo/config"
)

func TestOutputManagerNilIsNoop(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("empty dir: got (%v, %v), want (nil, nil)", om, err)
	}
	if err := om.WriteTelemetry(TelemetryFrame{}); err != nil {
		t.Errorf("nil WriteTelemetry: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
}

func TestOutputManagerWritesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}

	for gen := 0; gen < 3; gen++ {
		if err := om.WriteTelemetry(TelemetryFrame{Generation: gen, Stage: "sprint"}); err != nil {
			t.Fatalf("WriteTelemetry: %v", err)
		}
	}
	if err := om.WriteLineage([]LineageNode{{ID: "a", Parents: []string{"p"}}, {ID: "b"}}); err != nil {
		t.Fatalf("WriteLineage: %v", err)
	}
	if err := om.WriteBookmark(Bookmark{Type: BookmarkPlateau, Generation: 2}); err != nil {
		t.Fatalf("WriteBookmark: %v", err)
	}
	if err := om.WriteConfig(config.Default()); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}
	lb := NewLeaderboard(5)
	lb.Consider(LeaderboardEntry{ID: "a", Score: 10})
	if err := om.WriteLeaderboard(lb); err != nil {
		t.Fatalf("WriteLeaderboard: %v", err)
	}
	if err := om.WriteTimeline([]TimelineEvent{{Generation: 3, FirstTetrisAt: 1700, FirstTetrisBy: "a"}}); err != nil {
		t.Fatalf("WriteTimeline: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "telemetry.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("telemetry.csv: got %d lines, want 4 (header + 3)", len(lines))
	}
	if !strings.HasPrefix(lines[0], "generation,") {
		t.Errorf("header: got %q", lines[0])
	}

	data, err = os.ReadFile(filepath.Join(dir, "lineage.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if n := len(strings.Split(strings.TrimSpace(string(data)), "\n")); n != 3 {
		t.Errorf("lineage.csv: got %d lines, want 3", n)
	}

	data, err = os.ReadFile(filepath.Join(dir, "leaderboard.json"))
	if err != nil {
		t.Fatal(err)
	}
	var entries []LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil || len(entries) != 1 {
		t.Errorf("leaderboard.json: got %v (%v)", entries, err)
	}

	data, err = os.ReadFile(filepath.Join(dir, "timeline.json"))
	if err != nil {
		t.Fatal(err)
	}
	var events []TimelineEvent
	if err := json.Unmarshal(data, &events); err != nil || len(events) != 1 || events[0].FirstTetrisBy != "a" {
		t.Errorf("timeline.json: got %v (%v)", events, err)
	}

	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("config.yaml: %v", err)
	}
}
