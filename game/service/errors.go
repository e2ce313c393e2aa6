package service

import "errors"

// Sentinel errors for the game service. Handlers map these onto transport
// status codes with errors.Is; everything else is reported as internal.
var (
	// ErrNotFound means the referenced game does not exist (or was reaped).
	ErrNotFound = errors.New("game not found")
	// ErrNotInProgress means the game exists but is finished or cancelled.
	ErrNotInProgress = errors.New("game is not in progress")
	// ErrNotYourTurn means the acting player is not the player to move.
	ErrNotYourTurn = errors.New("not your turn")
	// ErrIllegalMove means the engine rejected the proposed action.
	ErrIllegalMove = errors.New("illegal move")
	// ErrAlreadyQueued means the player already holds a matchmaking ticket.
	ErrAlreadyQueued = errors.New("already in matchmaking queue")
	// ErrQueueFull means the AI scheduler queue rejected new work.
	ErrQueueFull = errors.New("engine queue is full")
	// ErrEngineTimeout means a search run exceeded its deadline.
	ErrEngineTimeout = errors.New("engine computation timed out")
	// ErrAdapterClosed means the game's search adapter was already released.
	ErrAdapterClosed = errors.New("engine adapter is closed")
	// ErrInternal covers failures with no more specific classification.
	ErrInternal = errors.New("internal error")
)
