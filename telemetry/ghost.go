package telemetry

import "github.com/pthm-cable/tetrevo/tetris"

// GhostFrame is the board and active piece right after one lock.
type GhostFrame struct {
	Grid  tetris.Board  `json:"grid"`
	Piece *tetris.Piece `json:"currentPiece,omitempty"`
}

// Ghost is a recorded replay of the best run seen so far.
type Ghost struct {
	ID         string       `json:"id"`
	Generation int          `json:"generation"`
	Score      float64      `json:"score"`
	Frames     []GhostFrame `json:"frames"`
	CreatedAt  int64        `json:"createdAt"` // unix millis
}

// GhostRecorder captures up to a fixed number of frames per run.
type GhostRecorder struct {
	frames    []GhostFrame
	maxFrames int
}

// NewGhostRecorder creates a recorder bounded at maxFrames. A non-positive
// bound disables recording.
func NewGhostRecorder(maxFrames int) *GhostRecorder {
	return &GhostRecorder{maxFrames: maxFrames}
}

// Capture appends a frame unless the bound is reached.
func (gr *GhostRecorder) Capture(board *tetris.Board, piece *tetris.Piece) {
	if len(gr.frames) >= gr.maxFrames {
		return
	}
	f := GhostFrame{Grid: *board}
	if piece != nil {
		p := *piece
		f.Piece = &p
	}
	gr.frames = append(gr.frames, f)
}

// Take returns the recorded frames and starts a new recording.
func (gr *GhostRecorder) Take() []GhostFrame {
	out := gr.frames
	gr.frames = nil
	return out
}

// Len returns the number of frames recorded so far.
func (gr *GhostRecorder) Len() int {
	return len(gr.frames)
}
