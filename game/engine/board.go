package engine

import (
	"fmt"
	"strings"
)

// Board geometry. Cells are addressed (X,Y) with X growing right and Y growing
// away from the hero. Wall intersections form an 8x8 lattice between cells.
const (
	BoardSize     = 9
	WallGridSize  = BoardSize - 1
	WallsPerSide  = 10
	heroGoalRow   = BoardSize - 1
	villainGoalRow = 0
)

// Seat identifies one of the two players. Hero moves first and races toward
// the far row; villain races back toward row 0.
type Seat int

const (
	Hero Seat = iota
	Villain
)

// Opponent returns the other seat.
func (s Seat) Opponent() Seat {
	if s == Hero {
		return Villain
	}
	return Hero
}

// Cell is a pawn position on the 9x9 grid.
type Cell struct {
	X, Y int
}

func (c Cell) inBounds() bool {
	return c.X >= 0 && c.X < BoardSize && c.Y >= 0 && c.Y < BoardSize
}

// Board holds the full rules state: pawn positions, remaining walls, placed
// walls, and the seat to move.
type Board struct {
	pawns     [2]Cell
	wallsLeft [2]int
	horiz     [WallGridSize][WallGridSize]bool
	vert      [WallGridSize][WallGridSize]bool
	turn      Seat
}

// NewBoard returns the initial position: both pawns on their home rows,
// ten walls each, hero to move.
func NewBoard() Board {
	return Board{
		pawns:     [2]Cell{{X: 4, Y: 0}, {X: 4, Y: BoardSize - 1}},
		wallsLeft: [2]int{WallsPerSide, WallsPerSide},
		turn:      Hero,
	}
}

// Turn returns the seat to move.
func (b *Board) Turn() Seat { return b.turn }

// Pawn returns the pawn cell for the given seat.
func (b *Board) Pawn(s Seat) Cell { return b.pawns[s] }

// WallsLeft returns the number of unplaced walls for the given seat.
func (b *Board) WallsLeft(s Seat) int { return b.wallsLeft[s] }

// IsTerminal reports whether either pawn stands on its goal row.
func (b *Board) IsTerminal() bool {
	return b.pawns[Hero].Y == heroGoalRow || b.pawns[Villain].Y == villainGoalRow
}

// Winner returns the seat that reached its goal row. Only meaningful when
// IsTerminal is true.
func (b *Board) Winner() Seat {
	if b.pawns[Hero].Y == heroGoalRow {
		return Hero
	}
	return Villain
}

// canStep reports whether a pawn may move between two orthogonally adjacent
// cells, considering only walls (not the opposing pawn).
func (b *Board) canStep(from, to Cell) bool {
	if !to.inBounds() {
		return false
	}
	dx, dy := to.X-from.X, to.Y-from.Y
	switch {
	case dx == 0 && dy == 1: // up
		return !b.hWallAt(from.X-1, from.Y) && !b.hWallAt(from.X, from.Y)
	case dx == 0 && dy == -1: // down
		return !b.hWallAt(from.X-1, to.Y) && !b.hWallAt(from.X, to.Y)
	case dx == 1 && dy == 0: // right
		return !b.vWallAt(from.X, from.Y-1) && !b.vWallAt(from.X, from.Y)
	case dx == -1 && dy == 0: // left
		return !b.vWallAt(to.X, from.Y-1) && !b.vWallAt(to.X, from.Y)
	}
	return false
}

func (b *Board) hWallAt(x, y int) bool {
	if x < 0 || x >= WallGridSize || y < 0 || y >= WallGridSize {
		return false
	}
	return b.horiz[x][y]
}

func (b *Board) vWallAt(x, y int) bool {
	if x < 0 || x >= WallGridSize || y < 0 || y >= WallGridSize {
		return false
	}
	return b.vert[x][y]
}

var directions = [4]Cell{{0, 1}, {0, -1}, {1, 0}, {-1, 0}}

// pawnDestinations returns every cell the seat-to-move pawn may legally reach,
// including straight and diagonal jumps over the facing pawn.
func (b *Board) pawnDestinations(s Seat) []Cell {
	from := b.pawns[s]
	opp := b.pawns[s.Opponent()]
	var out []Cell
	for _, d := range directions {
		next := Cell{from.X + d.X, from.Y + d.Y}
		if !b.canStep(from, next) {
			continue
		}
		if next != opp {
			out = append(out, next)
			continue
		}
		// Facing pawn: try the straight jump, else the diagonals.
		over := Cell{next.X + d.X, next.Y + d.Y}
		if b.canStep(next, over) {
			out = append(out, over)
			continue
		}
		for _, p := range directions {
			// perpendicular sidesteps only
			if p.X*d.X+p.Y*d.Y != 0 {
				continue
			}
			diag := Cell{next.X + p.X, next.Y + p.Y}
			if diag != from && b.canStep(next, diag) {
				out = append(out, diag)
			}
		}
	}
	return out
}

// wallPlaceable checks overlap and crossing rules for a wall at intersection
// (x,y). It does not check the path invariant.
func (b *Board) wallPlaceable(horizontal bool, x, y int) error {
	if x < 0 || x >= WallGridSize || y < 0 || y >= WallGridSize {
		return fmt.Errorf("wall intersection (%d,%d) out of range", x, y)
	}
	if horizontal {
		if b.horiz[x][y] || b.vert[x][y] {
			return fmt.Errorf("wall at (%d,%d) conflicts with an existing wall", x, y)
		}
		if b.hWallAt(x-1, y) || b.hWallAt(x+1, y) {
			return fmt.Errorf("horizontal wall at (%d,%d) overlaps an existing wall", x, y)
		}
		return nil
	}
	if b.vert[x][y] || b.horiz[x][y] {
		return fmt.Errorf("wall at (%d,%d) conflicts with an existing wall", x, y)
	}
	if b.vWallAt(x, y-1) || b.vWallAt(x, y+1) {
		return fmt.Errorf("vertical wall at (%d,%d) overlaps an existing wall", x, y)
	}
	return nil
}

// pathExists reports whether the seat's pawn can still reach its goal row.
// Pawns are ignored for the reachability check.
func (b *Board) pathExists(s Seat) bool {
	goal := heroGoalRow
	if s == Villain {
		goal = villainGoalRow
	}
	var seen [BoardSize][BoardSize]bool
	queue := []Cell{b.pawns[s]}
	seen[b.pawns[s].X][b.pawns[s].Y] = true
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.Y == goal {
			return true
		}
		for _, d := range directions {
			next := Cell{cur.X + d.X, cur.Y + d.Y}
			if !next.inBounds() || seen[next.X][next.Y] {
				continue
			}
			if b.canStep(cur, next) {
				seen[next.X][next.Y] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// Apply validates and applies an action for the seat to move, then passes the
// turn. The action uses the wire syntax *(X,Y), H(X,Y) or V(X,Y).
func (b *Board) Apply(action string) error {
	kind, x, y, err := ParseAction(action)
	if err != nil {
		return err
	}
	s := b.turn
	switch kind {
	case ActionMove:
		target := Cell{x, y}
		if !target.inBounds() {
			return fmt.Errorf("cell (%d,%d) out of range", x, y)
		}
		ok := false
		for _, dest := range b.pawnDestinations(s) {
			if dest == target {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("(%d,%d) is not a legal pawn destination", x, y)
		}
		b.pawns[s] = target
	case ActionHorizontalWall, ActionVerticalWall:
		if b.wallsLeft[s] == 0 {
			return fmt.Errorf("no walls remaining")
		}
		horizontal := kind == ActionHorizontalWall
		if err := b.wallPlaceable(horizontal, x, y); err != nil {
			return err
		}
		if horizontal {
			b.horiz[x][y] = true
		} else {
			b.vert[x][y] = true
		}
		if !b.pathExists(Hero) || !b.pathExists(Villain) {
			if horizontal {
				b.horiz[x][y] = false
			} else {
				b.vert[x][y] = false
			}
			return fmt.Errorf("wall at (%d,%d) would trap a player", x, y)
		}
		b.wallsLeft[s]--
	}
	b.turn = s.Opponent()
	return nil
}

// LegalActions returns every legal action string for the seat to move:
// pawn destinations followed by wall placements.
func (b *Board) LegalActions() []string {
	var out []string
	for _, dest := range b.pawnDestinations(b.turn) {
		out = append(out, fmt.Sprintf("*(%d,%d)", dest.X, dest.Y))
	}
	if b.wallsLeft[b.turn] > 0 {
		for x := 0; x < WallGridSize; x++ {
			for y := 0; y < WallGridSize; y++ {
				if b.wallPlaceable(true, x, y) == nil && b.wallKeepsPaths(true, x, y) {
					out = append(out, fmt.Sprintf("H(%d,%d)", x, y))
				}
				if b.wallPlaceable(false, x, y) == nil && b.wallKeepsPaths(false, x, y) {
					out = append(out, fmt.Sprintf("V(%d,%d)", x, y))
				}
			}
		}
	}
	return out
}

// pawnActions returns only the pawn-move subset of legal actions. Used by the
// rollout policy, which never places walls.
func (b *Board) pawnActions() []string {
	dests := b.pawnDestinations(b.turn)
	out := make([]string, 0, len(dests))
	for _, dest := range dests {
		out = append(out, fmt.Sprintf("*(%d,%d)", dest.X, dest.Y))
	}
	return out
}

func (b *Board) wallKeepsPaths(horizontal bool, x, y int) bool {
	if horizontal {
		b.horiz[x][y] = true
	} else {
		b.vert[x][y] = true
	}
	ok := b.pathExists(Hero) && b.pathExists(Villain)
	if horizontal {
		b.horiz[x][y] = false
	} else {
		b.vert[x][y] = false
	}
	return ok
}

// shortestPath returns the BFS distance from the seat's pawn to its goal row,
// or BoardSize*BoardSize when no path exists.
func (b *Board) shortestPath(s Seat) int {
	goal := heroGoalRow
	if s == Villain {
		goal = villainGoalRow
	}
	var dist [BoardSize][BoardSize]int
	for x := range dist {
		for y := range dist[x] {
			dist[x][y] = -1
		}
	}
	queue := []Cell{b.pawns[s]}
	dist[b.pawns[s].X][b.pawns[s].Y] = 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.Y == goal {
			return dist[cur.X][cur.Y]
		}
		for _, d := range directions {
			next := Cell{cur.X + d.X, cur.Y + d.Y}
			if !next.inBounds() || dist[next.X][next.Y] >= 0 {
				continue
			}
			if b.canStep(cur, next) {
				dist[next.X][next.Y] = dist[cur.X][cur.Y] + 1
				queue = append(queue, next)
			}
		}
	}
	return BoardSize * BoardSize
}

// heuristic scores the position in [-1,1] from the given seat's point of
// view, based on the shortest-path race.
func (b *Board) heuristic(s Seat) float64 {
	mine := b.shortestPath(s)
	theirs := b.shortestPath(s.Opponent())
	diff := float64(theirs - mine)
	return diff / float64(BoardSize*2)
}

// Display renders the position as ASCII. When flip is true the board is
// rotated 180 degrees so the villain reads it from its own side.
func (b *Board) Display(flip bool) string {
	var sb strings.Builder
	cellRune := func(c Cell) rune {
		hero, villain := b.pawns[Hero], b.pawns[Villain]
		if flip {
			c = Cell{BoardSize - 1 - c.X, BoardSize - 1 - c.Y}
		}
		switch c {
		case hero:
			return 'H'
		case villain:
			return 'V'
		}
		return '.'
	}
	wallAt := func(grid *[WallGridSize][WallGridSize]bool, x, y int) bool {
		if flip {
			x, y = WallGridSize-1-x, WallGridSize-1-y
		}
		if x < 0 || x >= WallGridSize || y < 0 || y >= WallGridSize {
			return false
		}
		return grid[x][y]
	}
	for row := BoardSize - 1; row >= 0; row-- {
		for col := 0; col < BoardSize; col++ {
			sb.WriteRune(cellRune(Cell{col, row}))
			if col < BoardSize-1 {
				if wallAt(&b.vert, col, row-1) || wallAt(&b.vert, col, row) {
					sb.WriteRune('|')
				} else {
					sb.WriteRune(' ')
				}
			}
		}
		sb.WriteRune('\n')
		if row > 0 {
			for col := 0; col < BoardSize; col++ {
				if wallAt(&b.horiz, col-1, row-1) || wallAt(&b.horiz, col, row-1) {
					sb.WriteRune('-')
				} else {
					sb.WriteRune(' ')
				}
				if col < BoardSize-1 {
					sb.WriteRune(' ')
				}
			}
			sb.WriteRune('\n')
		}
	}
	return sb.String()
}
