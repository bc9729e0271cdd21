package tetris

// Kind identifies a tetromino.
type Kind uint8

// Tetromino kinds in color-id order (color = kind + 1).
const (
	I Kind = iota
	J
	L
	O
	S
	T
	Z
	NumKinds = 7
)

var kindNames = [NumKinds]string{"I", "J", "L", "O", "S", "T", "Z"}

// String returns the single-letter piece name.
func (k Kind) String() string {
	if int(k) >= NumKinds {
		return "?"
	}
	return kindNames[k]
}

// Color returns the cell value written to the board when the piece locks.
func (k Kind) Color() uint8 {
	return uint8(k) + 1
}

// Cell is a column/row offset inside a piece bounding box.
type Cell struct {
	X, Y int8
}

// Shape is one rotation of a tetromino.
type Shape struct {
	Size   int     // bounding box edge length
	Cells  [4]Cell // occupied offsets
	Bottom int     // largest occupied row offset
}

// Base matrices in rotation state 0.
var baseShapes = [NumKinds][][]uint8{
	I: {
		{0, 0, 0, 0},
		{1, 1, 1, 1},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	},
	J: {
		{1, 0, 0},
		{1, 1, 1},
		{0, 0, 0},
	},
	L: {
		{0, 0, 1},
		{1, 1, 1},
		{0, 0, 0},
	},
	O: {
		{1, 1},
		{1, 1},
	},
	S: {
		{0, 1, 1},
		{1, 1, 0},
		{0, 0, 0},
	},
	T: {
		{0, 1, 0},
		{1, 1, 1},
		{0, 0, 0},
	},
	Z: {
		{1, 1, 0},
		{0, 1, 1},
		{0, 0, 0},
	},
}

// shapes is the precomputed rotation table, indexed [kind][rot].
var shapes [NumKinds][4]Shape

func init() {
	for k := range baseShapes {
		m := baseShapes[k]
		for r := 0; r < 4; r++ {
			shapes[k][r] = shapeFromMatrix(m)
			m = rotateCW(m)
		}
	}
}

// rotateCW rotates a square matrix clockwise: (col,row) -> (N-1-row, col).
func rotateCW(m [][]uint8) [][]uint8 {
	n := len(m)
	out := make([][]uint8, n)
	for i := range out {
		out[i] = make([]uint8, n)
	}
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			out[x][n-1-y] = m[y][x]
		}
	}
	return out
}

func shapeFromMatrix(m [][]uint8) Shape {
	s := Shape{Size: len(m)}
	i := 0
	for y := range m {
		for x := range m[y] {
			if m[y][x] == 0 {
				continue
			}
			s.Cells[i] = Cell{X: int8(x), Y: int8(y)}
			if y > s.Bottom {
				s.Bottom = y
			}
			i++
		}
	}
	return s
}

// ShapeOf returns the geometry of kind k in rotation rot (mod 4).
func ShapeOf(k Kind, rot int) *Shape {
	return &shapes[k][rot&3]
}

// Piece is a tetromino at a position on the board.
type Piece struct {
	Kind Kind `json:"kind"`
	Rot  int  `json:"rot"`
	X    int  `json:"x"`
	Y    int  `json:"y"`
}

// Spawn returns kind k in rotation 0, horizontally centered at row 0.
func Spawn(k Kind) Piece {
	return Piece{Kind: k, X: (Width - shapes[k][0].Size) / 2}
}

// Shape returns the piece's current geometry.
func (p Piece) Shape() *Shape {
	return ShapeOf(p.Kind, p.Rot)
}

// Cells returns the absolute board coordinates the piece occupies.
func (p Piece) Cells() [4]Cell {
	s := p.Shape()
	var out [4]Cell
	for i, c := range s.Cells {
		out[i] = Cell{X: c.X + int8(p.X), Y: c.Y + int8(p.Y)}
	}
	return out
}

// Kicks lists the offsets tried, in order, when a rotation collides.
var Kicks = [...][2]int{{0, 0}, {-1, 0}, {1, 0}, {0, -1}, {-2, 0}, {2, 0}}
