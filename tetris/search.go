package tetris

// Action is a single player input.
type Action uint8

// Inputs available to a player.
const (
	Left Action = iota
	Right
	SoftDrop
	Rotate
	HardDrop
)

var actionNames = [...]string{"left", "right", "soft-drop", "rotate", "hard-drop"}

func (a Action) String() string {
	if int(a) >= len(actionNames) {
		return "unknown"
	}
	return actionNames[a]
}

// Placement is a final resting pose and the inputs that reach it from spawn.
type Placement struct {
	Piece Piece
	Path  []Action
}

// Search bounds. Piece origins range over x in [-2,10] and y in [-2,20].
const (
	originPad  = 2
	searchCols = Width + 3
	searchRows = Height + 3
)

type searchNode struct {
	p      Piece
	parent int32
	act    Action
}

// Reachable enumerates every resting pose reachable from start using left,
// right, soft-drop and kicked rotation. It returns nil when start itself
// collides.
func Reachable(b *Board, start Piece) []Placement {
	if !b.Fits(start) {
		return nil
	}

	var visited [4][searchRows][searchCols]bool
	mark := func(p Piece) bool {
		x, y := p.X+originPad, p.Y+originPad
		if x < 0 || x >= searchCols || y < 0 || y >= searchRows {
			return false
		}
		if visited[p.Rot][y][x] {
			return false
		}
		visited[p.Rot][y][x] = true
		return true
	}

	nodes := make([]searchNode, 0, 256)
	nodes = append(nodes, searchNode{p: start, parent: -1})
	mark(start)

	var out []Placement
	for head := 0; head < len(nodes); head++ {
		cur := nodes[head].p
		s := cur.Shape()

		for _, mv := range [...]struct {
			dx, dy int
			act    Action
		}{{-1, 0, Left}, {1, 0, Right}, {0, 1, SoftDrop}} {
			if b.Collides(s, cur.X+mv.dx, cur.Y+mv.dy) {
				continue
			}
			next := cur
			next.X += mv.dx
			next.Y += mv.dy
			if mark(next) {
				nodes = append(nodes, searchNode{p: next, parent: int32(head), act: mv.act})
			}
		}

		if rotated, ok := b.RotateKick(cur); ok && mark(rotated) {
			nodes = append(nodes, searchNode{p: rotated, parent: int32(head), act: Rotate})
		}

		if b.Collides(s, cur.X, cur.Y+1) {
			out = append(out, Placement{Piece: cur, Path: tracePath(nodes, head)})
		}
	}
	return out
}

// tracePath follows parent links from node i back to the root.
func tracePath(nodes []searchNode, i int) []Action {
	n := 0
	for j := i; nodes[j].parent >= 0; j = int(nodes[j].parent) {
		n++
	}
	path := make([]Action, n)
	for j := i; nodes[j].parent >= 0; j = int(nodes[j].parent) {
		n--
		path[n] = nodes[j].act
	}
	return path
}
