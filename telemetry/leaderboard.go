package telemetry

import (
	"encoding/json"
	"sort"
)

// LeaderboardEntry is one high-scoring genome.
type LeaderboardEntry struct {
	ID         string  `json:"id"`
	Score      float64 `json:"score"`
	Level      float64 `json:"level"`
	Lines      float64 `json:"lines"`
	Generation int     `json:"generation"`
	BornMethod string  `json:"bornMethod"`
	Timestamp  int64   `json:"timestamp"`
}

// Leaderboard keeps the top genomes by score, one entry per id.
type Leaderboard struct {
	entries []LeaderboardEntry
	maxSize int
}

// NewLeaderboard creates a leaderboard with the given capacity.
func NewLeaderboard(maxSize int) *Leaderboard {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Leaderboard{
		entries: make([]LeaderboardEntry, 0, maxSize),
		maxSize: maxSize,
	}
}

// Consider offers an entry. An existing entry with the same id is replaced
// only by a higher score. Returns true if the board changed.
func (lb *Leaderboard) Consider(entry LeaderboardEntry) bool {
	for i, e := range lb.entries {
		if e.ID != entry.ID {
			continue
		}
		if entry.Score <= e.Score {
			return false
		}
		lb.entries = append(lb.entries[:i], lb.entries[i+1:]...)
		break
	}

	// Find insertion point (sorted descending by score)
	idx := sort.Search(len(lb.entries), func(i int) bool {
		return lb.entries[i].Score < entry.Score
	})

	// If full and entry would be last (lowest), skip it
	if len(lb.entries) >= lb.maxSize && idx >= lb.maxSize {
		return false
	}

	lb.entries = append(lb.entries, LeaderboardEntry{})
	copy(lb.entries[idx+1:], lb.entries[idx:])
	lb.entries[idx] = entry

	// Trim if over capacity
	if len(lb.entries) > lb.maxSize {
		lb.entries = lb.entries[:lb.maxSize]
	}
	return true
}

// Entries returns a copy of the board, best first.
func (lb *Leaderboard) Entries() []LeaderboardEntry {
	out := make([]LeaderboardEntry, len(lb.entries))
	copy(out, lb.entries)
	return out
}

// Top returns the best entry.
func (lb *Leaderboard) Top() (LeaderboardEntry, bool) {
	if len(lb.entries) == 0 {
		return LeaderboardEntry{}, false
	}
	return lb.entries[0], true
}

// Len returns the number of entries.
func (lb *Leaderboard) Len() int {
	return len(lb.entries)
}

// Load replaces the board with entries, re-sorting and deduplicating.
func (lb *Leaderboard) Load(entries []LeaderboardEntry) {
	lb.entries = lb.entries[:0]
	for _, e := range entries {
		lb.Consider(e)
	}
}

// Reset empties the board.
func (lb *Leaderboard) Reset() {
	lb.entries = lb.entries[:0]
}

// MarshalJSON serializes the entries as a JSON array.
func (lb *Leaderboard) MarshalJSON() ([]byte, error) {
	return json.Marshal(lb.entries)
}
