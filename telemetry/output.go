package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/pthm-cable/tetrevo/config"
)

// csvLog is an append-only CSV file whose header is written with the first row.
type csvLog struct {
	f             *os.File
	headerWritten bool
}

func (c *csvLog) write(records any) error {
	if !c.headerWritten {
		if err := gocsv.Marshal(records, c.f); err != nil {
			return err
		}
		c.headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, c.f)
}

// OutputManager handles structured experiment output with CSV logging.
type OutputManager struct {
	dir       string
	telemetry csvLog
	lineage   csvLog
	perf      csvLog
	bookmarks csvLog
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	files := []struct {
		name string
		log  *csvLog
	}{
		{"telemetry.csv", &om.telemetry},
		{"lineage.csv", &om.lineage},
		{"perf.csv", &om.perf},
		{"bookmarks.csv", &om.bookmarks},
	}
	for _, spec := range files {
		f, err := os.Create(filepath.Join(dir, spec.name))
		if err != nil {
			om.Close()
			return nil, fmt.Errorf("creating %s: %w", spec.name, err)
		}
		spec.log.f = f
	}

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteTelemetry appends a generation frame to telemetry.csv.
func (om *OutputManager) WriteTelemetry(f TelemetryFrame) error {
	if om == nil {
		return nil
	}
	if err := om.telemetry.write([]TelemetryFrame{f}); err != nil {
		return fmt.Errorf("writing telemetry: %w", err)
	}
	return nil
}

// WriteLineage appends one generation's lineage nodes to lineage.csv.
func (om *OutputManager) WriteLineage(nodes []LineageNode) error {
	if om == nil || len(nodes) == 0 {
		return nil
	}
	rows := make([]LineageCSV, len(nodes))
	for i, n := range nodes {
		rows[i] = n.ToCSV()
	}
	if err := om.lineage.write(rows); err != nil {
		return fmt.Errorf("writing lineage: %w", err)
	}
	return nil
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, generation int) error {
	if om == nil {
		return nil
	}
	if err := om.perf.write([]PerfStatsCSV{stats.ToCSV(generation)}); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteBookmark writes a bookmark record to bookmarks.csv.
func (om *OutputManager) WriteBookmark(b Bookmark) error {
	if om == nil {
		return nil
	}
	if err := om.bookmarks.write([]Bookmark{b}); err != nil {
		return fmt.Errorf("writing bookmark: %w", err)
	}
	return nil
}

// WriteLeaderboard saves the leaderboard as JSON.
func (om *OutputManager) WriteLeaderboard(lb *Leaderboard) error {
	if om == nil || lb == nil {
		return nil
	}
	return om.writeJSON("leaderboard.json", lb)
}

// WriteGhost saves the best-run replay as JSON.
func (om *OutputManager) WriteGhost(g *Ghost) error {
	if om == nil || g == nil {
		return nil
	}
	return om.writeJSON("ghost.json", g)
}

// WriteTimeline saves the first-tetris events as JSON.
func (om *OutputManager) WriteTimeline(events []TimelineEvent) error {
	if om == nil || events == nil {
		return nil
	}
	return om.writeJSON("timeline.json", events)
}

func (om *OutputManager) writeJSON(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(om.dir, name), data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, f := range []*os.File{om.telemetry.f, om.lineage.f, om.perf.f, om.bookmarks.f} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
