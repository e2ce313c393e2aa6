package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// ActionKind discriminates the three wire forms of an action.
type ActionKind byte

const (
	ActionMove           ActionKind = '*'
	ActionHorizontalWall ActionKind = 'H'
	ActionVerticalWall   ActionKind = 'V'
)

// ParseAction decodes the wire syntax *(X,Y), H(X,Y) or V(X,Y).
func ParseAction(action string) (ActionKind, int, int, error) {
	if len(action) < 6 {
		return 0, 0, 0, fmt.Errorf("malformed action %q", action)
	}
	kind := ActionKind(action[0])
	if kind != ActionMove && kind != ActionHorizontalWall && kind != ActionVerticalWall {
		return 0, 0, 0, fmt.Errorf("unknown action kind %q", action)
	}
	body := action[1:]
	if !strings.HasPrefix(body, "(") || !strings.HasSuffix(body, ")") {
		return 0, 0, 0, fmt.Errorf("malformed action %q", action)
	}
	parts := strings.Split(body[1:len(body)-1], ",")
	if len(parts) != 2 {
		return 0, 0, 0, fmt.Errorf("malformed action %q", action)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("malformed action %q", action)
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("malformed action %q", action)
	}
	if x < 0 || y < 0 {
		return 0, 0, 0, fmt.Errorf("negative coordinates in %q", action)
	}
	return kind, x, y, nil
}

// FlipAction rewrites an action into the opposite player's coordinate frame:
// pawn cells rotate within the 9x9 grid, wall intersections within the 8x8
// lattice. Orientation is preserved by the 180-degree rotation.
func FlipAction(action string) (string, error) {
	kind, x, y, err := ParseAction(action)
	if err != nil {
		return "", err
	}
	switch kind {
	case ActionMove:
		return fmt.Sprintf("*(%d,%d)", BoardSize-1-x, BoardSize-1-y), nil
	case ActionHorizontalWall:
		return fmt.Sprintf("H(%d,%d)", WallGridSize-1-x, WallGridSize-1-y), nil
	default:
		return fmt.Sprintf("V(%d,%d)", WallGridSize-1-x, WallGridSize-1-y), nil
	}
}
