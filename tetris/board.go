// Package tetris implements the board, piece mechanics and placement search.
package tetris

import "math/rand"

// Board dimensions.
const (
	Width  = 10
	Height = 20
)

// Garbage is the cell value of injected garbage rows.
const Garbage uint8 = 8

// Board is the playfield, indexed [row][col] with row 0 at the top.
// 0 is empty, 1-7 are piece colors and 8 is garbage.
type Board [Height][Width]uint8

// Collides reports whether shape placed at (x, y) overlaps a filled cell or
// leaves the grid. Cells above row 0 count as outside.
func (b *Board) Collides(s *Shape, x, y int) bool {
	for _, c := range s.Cells {
		cx, cy := x+int(c.X), y+int(c.Y)
		if cx < 0 || cx >= Width || cy < 0 || cy >= Height {
			return true
		}
		if b[cy][cx] != 0 {
			return true
		}
	}
	return false
}

// Fits reports whether p can occupy its current position.
func (b *Board) Fits(p Piece) bool {
	return !b.Collides(p.Shape(), p.X, p.Y)
}

// Grounded reports whether p cannot move down one row.
func (b *Board) Grounded(p Piece) bool {
	return b.Collides(p.Shape(), p.X, p.Y+1)
}

// Drop returns p moved down until it rests on the stack or the floor.
func (b *Board) Drop(p Piece) Piece {
	s := p.Shape()
	for !b.Collides(s, p.X, p.Y+1) {
		p.Y++
	}
	return p
}

// RotateKick rotates p clockwise, trying each kick offset in order.
// It returns the rotated piece and true on success.
func (b *Board) RotateKick(p Piece) (Piece, bool) {
	next := p
	next.Rot = (p.Rot + 1) & 3
	s := next.Shape()
	for _, k := range Kicks {
		if !b.Collides(s, p.X+k[0], p.Y+k[1]) {
			next.X += k[0]
			next.Y += k[1]
			return next, true
		}
	}
	return p, false
}

// Place writes p's cells into the board without clearing lines.
func (b *Board) Place(p Piece) {
	color := p.Kind.Color()
	for _, c := range p.Cells() {
		if c.Y >= 0 && int(c.Y) < Height && c.X >= 0 && int(c.X) < Width {
			b[c.Y][c.X] = color
		}
	}
}

// rowFull reports whether every cell in row y is filled.
func (b *Board) rowFull(y int) bool {
	for x := 0; x < Width; x++ {
		if b[y][x] == 0 {
			return false
		}
	}
	return true
}

// removeRow deletes row y and shifts everything above it down by one.
func (b *Board) removeRow(y int) {
	for r := y; r > 0; r-- {
		b[r] = b[r-1]
	}
	b[0] = [Width]uint8{}
}

// ClearLines removes full rows scanning bottom to top, re-checking the same
// row after each removal. It returns the number of rows removed.
func (b *Board) ClearLines() int {
	cleared := 0
	for y := Height - 1; y >= 0; {
		if b.rowFull(y) {
			b.removeRow(y)
			cleared++
			continue
		}
		y--
	}
	return cleared
}

// Filled counts non-empty cells.
func (b *Board) Filled() int {
	n := 0
	for y := range b {
		for x := range b[y] {
			if b[y][x] != 0 {
				n++
			}
		}
	}
	return n
}

// AddGarbage removes the top row and appends a garbage row at the bottom with
// a single empty cell at a random column.
func (b *Board) AddGarbage(rng *rand.Rand) {
	for r := 0; r < Height-1; r++ {
		b[r] = b[r+1]
	}
	hole := rng.Intn(Width)
	for x := 0; x < Width; x++ {
		b[Height-1][x] = Garbage
	}
	b[Height-1][hole] = 0
}

// Outcome is the result of locking a piece on a copy of a board.
type Outcome struct {
	Board         Board
	Lines         int
	Eroded        int // lines cleared x piece cells removed by the clear
	LandingHeight int // rows between the floor and the piece's lowest cell
}

// Simulate locks p onto a copy of b and clears lines.
func Simulate(b *Board, p Piece) Outcome {
	out := Outcome{Board: *b}
	out.Board.Place(p)

	// Count piece cells sitting in rows that will clear before shifting.
	own := 0
	for _, c := range p.Cells() {
		if out.Board.rowFull(int(c.Y)) {
			own++
		}
	}
	out.Lines = out.Board.ClearLines()
	out.Eroded = out.Lines * own
	out.LandingHeight = Height - 1 - (p.Y + p.Shape().Bottom)
	return out
}
