package telemetry

// TimelineEvent marks the first four-line clear of a generation.
type TimelineEvent struct {
	Generation    int    `csv:"generation" json:"generation"`
	FirstTetrisAt int64  `csv:"first_tetris_at" json:"firstTetrisAt"` // unix millis
	FirstTetrisBy string `csv:"first_tetris_by" json:"firstTetrisBy"`
}
