package engine

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Config is the immutable per-game search configuration. It is snapshotted at
// session creation and passed to the kernel constructor.
type Config struct {
	Exploration    float64 `json:"exploration"`
	Seed           int64   `json:"seed"`
	MinSimulations int     `json:"min_simulations"`
	MaxSimulations int     `json:"max_simulations"`
	UseRollout     bool    `json:"use_rollout"`
	DecideByVisits bool    `json:"decide_by_visits"`
}

// DefaultConfig returns the stock search configuration.
func DefaultConfig() Config {
	return Config{
		Exploration:    0.158,
		Seed:           42,
		MinSimulations: 1000,
		MaxSimulations: 10000,
		UseRollout:     true,
		DecideByVisits: true,
	}
}

// ScoredAction is one root action with its accumulated search statistics.
// Equity is in [-1,1] from the point of view of the side to move.
type ScoredAction struct {
	Visits int     `json:"visits"`
	Equity float64 `json:"equity"`
	Action string  `json:"action"`
}

// maxRolloutPlies bounds random playouts; positions that wander past it are
// scored with the shortest-path heuristic instead.
const maxRolloutPlies = 200

type node struct {
	action   string
	mover    Seat // seat that played action to reach this node
	parent   *node
	children []*node
	untried  []string
	visits   int
	value    float64 // accumulated reward for mover
}

// MCTS is the search kernel: a UCB1 tree over Board states with random
// playouts. Instances are single-threaded; the search adapter serialises
// access.
type MCTS struct {
	cfg   Config
	rng   *rand.Rand
	board Board
	root  *node
}

// NewMCTS creates a kernel at the initial position.
func NewMCTS(cfg Config) *MCTS {
	m := &MCTS{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
	m.reset()
	return m
}

func (m *MCTS) reset() {
	m.board = NewBoard()
	// The root has no action; give it the mover that would have produced the
	// position so backprop stays perspective-consistent across reroots.
	m.root = &node{mover: m.board.Turn().Opponent(), untried: m.board.LegalActions()}
}

// RunSimulations performs up to n playouts from the current root.
func (m *MCTS) RunSimulations(n int) {
	for i := 0; i < n; i++ {
		if m.board.IsTerminal() {
			return
		}
		m.simulate()
	}
}

func (m *MCTS) simulate() {
	board := m.board
	n := m.root

	for len(n.untried) == 0 && len(n.children) > 0 && !board.IsTerminal() {
		n = m.selectChild(n)
		_ = board.Apply(n.action)
	}

	if !board.IsTerminal() && len(n.untried) > 0 {
		i := m.rng.Intn(len(n.untried))
		action := n.untried[i]
		n.untried[i] = n.untried[len(n.untried)-1]
		n.untried = n.untried[:len(n.untried)-1]
		mover := board.Turn()
		_ = board.Apply(action)
		child := &node{action: action, mover: mover, parent: n, untried: board.LegalActions()}
		n.children = append(n.children, child)
		n = child
	}

	heroScore := m.evaluate(board)
	for ; n != nil; n = n.parent {
		n.visits++
		if n.mover == Hero {
			n.value += heroScore
		} else {
			n.value += 1 - heroScore
		}
	}
}

func (m *MCTS) selectChild(n *node) *node {
	var best *node
	bestScore := math.Inf(-1)
	for _, c := range n.children {
		score := c.value/float64(c.visits) +
			m.cfg.Exploration*math.Sqrt(math.Log(float64(n.visits))/float64(c.visits))
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	return best
}

// evaluate scores a position in [0,1] for the hero: random pawn playout when
// rollouts are enabled, shortest-path heuristic otherwise (and as a fallback
// when a playout exceeds the ply bound).
func (m *MCTS) evaluate(board Board) float64 {
	if m.cfg.UseRollout {
		for ply := 0; ply < maxRolloutPlies && !board.IsTerminal(); ply++ {
			acts := board.pawnActions()
			if len(acts) == 0 {
				break
			}
			_ = board.Apply(acts[m.rng.Intn(len(acts))])
		}
		if board.IsTerminal() {
			if board.Winner() == Hero {
				return 1
			}
			return 0
		}
	}
	return (board.heuristic(Hero) + 1) / 2
}

// ApplyMove commits an action to the kernel state. When flip is set, the
// action is given in the opposite player's coordinate frame. The search tree
// below the chosen child is retained.
func (m *MCTS) ApplyMove(action string, flip bool) error {
	if flip {
		unflipped, err := FlipAction(action)
		if err != nil {
			return err
		}
		action = unflipped
	}
	if m.board.IsTerminal() {
		return fmt.Errorf("game is over")
	}
	if err := m.board.Apply(action); err != nil {
		return err
	}
	for _, c := range m.root.children {
		if c.action == action {
			c.parent = nil
			m.root = c
			return nil
		}
	}
	m.root = &node{mover: m.board.Turn().Opponent(), untried: m.board.LegalActions()}
	return nil
}

// SortedActions returns every legal root action ordered by visit count
// descending. Unexplored actions appear last with zero visits. When flip is
// set, action strings are rewritten into the opposite coordinate frame.
func (m *MCTS) SortedActions(flip bool) []ScoredAction {
	out := make([]ScoredAction, 0, len(m.root.children)+len(m.root.untried))
	for _, c := range m.root.children {
		out = append(out, ScoredAction{
			Visits: c.visits,
			Equity: 2*(c.value/float64(c.visits)) - 1,
			Action: c.action,
		})
	}
	for _, a := range m.root.untried {
		out = append(out, ScoredAction{Action: a})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Visits > out[j].Visits })
	if flip {
		for i := range out {
			if flipped, err := FlipAction(out[i].Action); err == nil {
				out[i].Action = flipped
			}
		}
	}
	return out
}

// BestAction returns the kernel's chosen action, with probability epsilon a
// uniformly random legal action instead. Returns "" on a terminal position.
func (m *MCTS) BestAction(epsilon float64) string {
	if m.board.IsTerminal() {
		return ""
	}
	legal := m.board.LegalActions()
	if len(legal) == 0 {
		return ""
	}
	if epsilon > 0 && m.rng.Float64() < epsilon {
		return legal[m.rng.Intn(len(legal))]
	}
	if len(m.root.children) == 0 {
		return legal[0]
	}
	best := m.root.children[0]
	for _, c := range m.root.children[1:] {
		if m.cfg.DecideByVisits {
			if c.visits > best.visits {
				best = c
			}
		} else if c.value/float64(c.visits) > best.value/float64(best.visits) {
			best = c
		}
	}
	return best.action
}

// Evaluation returns the root evaluation in [-1,1], positive favouring the
// hero. The second return is false before any simulation has run.
func (m *MCTS) Evaluation() (float64, bool) {
	if m.root.visits == 0 {
		return 0, false
	}
	// The root accumulates reward for its mover; rebase onto the hero.
	avg := m.root.value / float64(m.root.visits)
	if m.root.mover != Hero {
		avg = 1 - avg
	}
	return 2*avg - 1, true
}

// VisitCount returns the simulations accumulated at the root since the last
// committed move.
func (m *MCTS) VisitCount() int {
	return m.root.visits
}

// Display renders the board. The flip flag rotates the point of view.
func (m *MCTS) Display(flip bool) string {
	return m.board.Display(flip)
}

// IsTerminal reports end-of-game.
func (m *MCTS) IsTerminal() bool {
	return m.board.IsTerminal()
}

// Reset returns the kernel to the initial position, discarding the tree.
func (m *MCTS) Reset() {
	m.reset()
}

// LegalActions lists the legal actions at the root.
func (m *MCTS) LegalActions() []string {
	return m.board.LegalActions()
}
