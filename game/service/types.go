package service

import (
	"sync"
	"time"

	"github.com/corridors/gameserver/game/engine"
	"github.com/corridors/gameserver/game/search"
)

// MachinePlayer is the sentinel player ID occupying a machine seat.
const MachinePlayer = "machine"

// PlayerKind distinguishes human seats from machine seats.
type PlayerKind string

const (
	KindHuman   PlayerKind = "human"
	KindMachine PlayerKind = "machine"
)

// GameMode is the seat configuration chosen at game creation.
type GameMode string

const (
	ModeHumanVsHuman     GameMode = "pvp"
	ModeHumanVsMachine   GameMode = "pvm"
	ModeMachineVsMachine GameMode = "mvm"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// EndReason records why a finished game ended.
type EndReason string

const (
	EndReasonNone        EndReason = ""
	EndReasonGoalReached EndReason = "goal_reached"
	EndReasonResignation EndReason = "resignation"
	EndReasonCancelled   EndReason = "cancelled"
	EndReasonStale       EndReason = "stale"
)

// PlayerSlot is one seat in a game.
type PlayerSlot struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Kind PlayerKind `json:"kind"`
}

// IsMachine reports whether the seat is occupied by the engine.
func (p PlayerSlot) IsMachine() bool {
	return p.Kind == KindMachine
}

// Move is one committed move in a game's history. Actions are stored in the
// canonical (hero) coordinate frame. Evaluation is the engine's view of the
// position after the move, when the search tree had one.
type Move struct {
	Seq        int       `json:"seq"`
	PlayerID   string    `json:"player_id"`
	Action     string    `json:"action"`
	Evaluation *float64  `json:"evaluation,omitempty"`
	PlayedAt   time.Time `json:"played_at"`
}

// Session is the per-game state record: seats, status, move history and the
// owning search adapter. All mutable fields are protected by the session
// guard; callers take the guard, mutate, snapshot, release, and only then
// broadcast.
type Session struct {
	mu sync.Mutex

	GameID       string
	Mode         GameMode
	Players      [2]PlayerSlot // index matches engine.Seat
	Status       Status
	Moves        []Move
	Winner       string // player ID, empty until decided
	EndReason    EndReason
	CreatedAt    time.Time
	LastActivity time.Time
	Config       engine.Config
	Adapter      *search.Adapter
}

// Guard returns the session's mutex. The guard serialises the full
// read-validate-commit sequence of a move against concurrent submissions.
func (s *Session) Guard() *sync.Mutex {
	return &s.mu
}

// Touch refreshes the activity timestamp. Callers hold the guard.
func (s *Session) Touch() {
	s.LastActivity = time.Now()
}

// SeatOf resolves a player ID to its seat. The second return is false when
// the player is not part of this game. When the same ID holds both seats
// (machine vs machine) it resolves to the seat currently to move, so a
// scheduler turn always acts for the right side.
func (s *Session) SeatOf(playerID string) (engine.Seat, bool) {
	heroID := s.Players[engine.Hero].ID
	villainID := s.Players[engine.Villain].ID
	switch {
	case playerID == heroID && playerID == villainID:
		return s.seatToMove(), true
	case playerID == heroID:
		return engine.Hero, true
	case playerID == villainID:
		return engine.Villain, true
	}
	return engine.Hero, false
}

// seatToMove derives the side to move from the move count; hero always moves
// first.
func (s *Session) seatToMove() engine.Seat {
	if len(s.Moves)%2 == 0 {
		return engine.Hero
	}
	return engine.Villain
}

// PlayerToMove returns the seat record whose turn it is.
func (s *Session) PlayerToMove() PlayerSlot {
	return s.Players[s.seatToMove()]
}

// Snapshot captures the session state for responses and broadcasts. Callers
// hold the guard.
func (s *Session) Snapshot() Snapshot {
	moves := make([]Move, len(s.Moves))
	copy(moves, s.Moves)
	return Snapshot{
		GameID:       s.GameID,
		Mode:         s.Mode,
		Status:       s.Status,
		Players:      s.Players,
		CurrentTurn:  s.PlayerToMove().ID,
		Moves:        moves,
		MoveCount:    len(moves),
		Winner:       s.Winner,
		EndReason:    s.EndReason,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
	}
}

// Snapshot is an immutable copy of a session's externally visible state.
type Snapshot struct {
	GameID       string        `json:"game_id"`
	Mode         GameMode      `json:"mode"`
	Status       Status        `json:"status"`
	Players      [2]PlayerSlot `json:"players"`
	CurrentTurn  string        `json:"current_turn"`
	Moves        []Move        `json:"moves,omitempty"`
	MoveCount    int           `json:"move_count"`
	Winner       string        `json:"winner,omitempty"`
	EndReason    EndReason     `json:"end_reason,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	LastActivity time.Time     `json:"last_activity"`
}

// Registry is the session store the service programs against. The concrete
// implementation lives in game/session.
type Registry interface {
	// Add registers a new session under its game ID.
	Add(s *Session) error
	// Get returns the session for id or ErrNotFound.
	Get(id string) (*Session, error)
	// List returns sessions matching the status and player filters,
	// unordered. Pagination happens in the service over the sorted
	// snapshots.
	List(f ListFilter) []*Session
	// Remove deletes the session and closes its adapter. Removing an absent
	// id returns ErrNotFound.
	Remove(id string) error
	// Count returns the number of registered sessions.
	Count() int
}

// DefaultListLimit caps a listing when the caller does not set one.
const DefaultListLimit = 100

// ListFilter narrows and pages a session listing. Zero-valued filters match
// everything; Limit zero or negative falls back to DefaultListLimit, Offset
// counts from the newest session.
type ListFilter struct {
	Status   Status
	PlayerID string
	Limit    int
	Offset   int
}

// Broadcaster delivers room-scoped and global events. The websocket hub
// implements it; the service never imports the transport package.
type Broadcaster interface {
	// BroadcastToGame fans an event out to every subscriber of a game room.
	BroadcastToGame(gameID, msgType string, data any)
	// BroadcastAll fans an event out to every connected client.
	BroadcastAll(msgType string, data any)
}
