package tetris

// Metrics summarizes the shape of a board stack.
type Metrics struct {
	Heights         [Width]int
	ColumnHoles     [Width]int
	AggregateHeight int
	MaxHeight       int
	Bumpiness       int
	Holes           int
	HoleDepth       int // filled cells above each hole, summed
	Wells           int // triangular sum of well depths
	RowTransitions  int
	ColTransitions  int
	CompleteLines   int
}

// Metrics computes stack statistics. Walls count as filled for transitions
// and as full-height neighbours for wells.
func (b *Board) Metrics() Metrics {
	var m Metrics

	for x := 0; x < Width; x++ {
		above := 0
		for y := 0; y < Height; y++ {
			if b[y][x] != 0 {
				if above == 0 {
					m.Heights[x] = Height - y
				}
				above++
			} else if above > 0 {
				m.ColumnHoles[x]++
				m.HoleDepth += above
			}
		}
		m.Holes += m.ColumnHoles[x]
		m.AggregateHeight += m.Heights[x]
		if m.Heights[x] > m.MaxHeight {
			m.MaxHeight = m.Heights[x]
		}
	}

	for x := 0; x < Width-1; x++ {
		m.Bumpiness += abs(m.Heights[x] - m.Heights[x+1])
	}

	for y := 0; y < Height; y++ {
		if b.rowFull(y) {
			m.CompleteLines++
		}
		last := true
		for x := 0; x < Width; x++ {
			filled := b[y][x] != 0
			if filled != last {
				m.RowTransitions++
			}
			last = filled
		}
		if !last {
			m.RowTransitions++
		}
	}

	for x := 0; x < Width; x++ {
		for y := 0; y < Height-1; y++ {
			if (b[y][x] != 0) != (b[y+1][x] != 0) {
				m.ColTransitions++
			}
		}
		if b[0][x] != 0 {
			m.ColTransitions++
		}
		if b[Height-1][x] == 0 {
			m.ColTransitions++
		}
	}

	for x := 0; x < Width; x++ {
		left, right := Height, Height
		if x > 0 {
			left = m.Heights[x-1]
		}
		if x < Width-1 {
			right = m.Heights[x+1]
		}
		h := m.Heights[x]
		if h < left && h < right {
			d := min(left, right) - h
			m.Wells += d * (d + 1) / 2
		}
	}

	return m
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
