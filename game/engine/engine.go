package engine

// Kernel is the synchronous search kernel contract the rest of the server
// programs against. Implementations are single-threaded per instance; callers
// must serialise access (the search adapter does).
type Kernel interface {
	// RunSimulations performs up to n playouts from the current root.
	RunSimulations(n int)
	// ApplyMove commits a move, interpreting the action in the flipped
	// coordinate frame when flip is set. It returns an error when the kernel
	// rejects the action.
	ApplyMove(action string, flip bool) error
	// SortedActions returns (visits, equity, action) triples for the root,
	// highest-visited first.
	SortedActions(flip bool) []ScoredAction
	// BestAction returns the chosen action with optional epsilon-greedy noise.
	BestAction(epsilon float64) string
	// Evaluation returns the root evaluation in [-1,1]; ok is false when no
	// evaluation exists yet.
	Evaluation() (value float64, ok bool)
	// VisitCount returns simulations accumulated at the root since the last
	// move.
	VisitCount() int
	// Display renders the board as text.
	Display(flip bool) string
	// IsTerminal reports end-of-game.
	IsTerminal() bool
	// Reset returns the kernel to the initial position.
	Reset()
	// LegalActions lists legal actions for the side to move.
	LegalActions() []string
}

// New constructs the stock kernel for the given configuration.
func New(cfg Config) Kernel {
	return NewMCTS(cfg)
}
