package service

import (
	"context"

	"github.com/corridors/gameserver/game/engine"
)

// GameService is the application-facing API of the server core. Both the
// HTTP/websocket layer and the MCP ingress program against it.
type GameService interface {
	// CreateGame builds a session for the requested mode, registers it and
	// announces it. Machine-opening games get their first engine turn queued.
	CreateGame(ctx context.Context, req CreateGameRequest) (Snapshot, error)

	// GetGame returns a snapshot of the session.
	GetGame(ctx context.Context, gameID string) (Snapshot, error)

	// ListGames returns snapshots of sessions matching the filter.
	ListGames(ctx context.Context, f ListFilter) ([]Snapshot, error)

	// CancelGame force-ends a session and releases its engine resources.
	CancelGame(ctx context.Context, gameID string) error

	// ApplyMove validates and commits a move by playerID, then triggers the
	// machine reply when the next seat is a machine.
	ApplyMove(ctx context.Context, gameID, playerID, action string) (*MoveResult, error)

	// Resign ends the game in the opponent's favour.
	Resign(ctx context.Context, gameID, playerID string) (Snapshot, error)

	// LegalMoves lists the actions available to playerID, in that player's
	// coordinate frame.
	LegalMoves(ctx context.Context, gameID, playerID string) ([]string, error)

	// RenderBoard returns the text board from playerID's point of view.
	RenderBoard(ctx context.Context, gameID, playerID string) (string, error)

	// Analyse runs the engine up to the given simulation budget and returns
	// the scored root actions with the position evaluation.
	Analyse(ctx context.Context, gameID string, budget int) (*AnalysisResult, error)

	// Hint suggests a move for playerID with a confidence score.
	Hint(ctx context.Context, gameID, playerID string) (*HintResult, error)

	// JoinQueue enters a player into matchmaking; when an opponent is
	// waiting, the pair is matched into a new game immediately.
	JoinQueue(ctx context.Context, playerID, playerName string) (*QueueResult, error)

	// LeaveQueue withdraws a matchmaking ticket. Leaving without one is a
	// no-op.
	LeaveQueue(ctx context.Context, playerID string) error

	// Stats aggregates per-player results across live sessions.
	Stats(ctx context.Context) (*StatsResult, error)

	// Health reports liveness details for monitoring.
	Health(ctx context.Context) *HealthStatus
}

// CreateGameRequest describes the game to create. Per-slot kinds pick the
// machine seats explicitly; when both are empty the mode decides, seating the
// machine in slot 2 for human-vs-machine games. Config nil means the server
// default.
type CreateGameRequest struct {
	Mode        GameMode       `json:"mode"`
	HeroID      string         `json:"hero_id"`
	HeroName    string         `json:"hero_name"`
	HeroKind    PlayerKind     `json:"hero_kind,omitempty"`
	VillainID   string         `json:"villain_id"`
	VillainName string         `json:"villain_name"`
	VillainKind PlayerKind     `json:"villain_kind,omitempty"`
	Config      *engine.Config `json:"config,omitempty"`
}

// MoveResult is the outcome of a committed move.
type MoveResult struct {
	Move     Move     `json:"move"`
	Snapshot Snapshot `json:"game"`
	GameOver bool     `json:"game_over"`
	Winner   string   `json:"winner,omitempty"`
}

// AnalysisResult carries the engine's view of the current position.
type AnalysisResult struct {
	Actions    []engine.ScoredAction `json:"actions"`
	Evaluation *float64              `json:"evaluation,omitempty"`
	Visits     int                   `json:"visits"`
}

// HintResult is a suggested move. Confidence is the share of root visits the
// suggestion received, in [0,1].
type HintResult struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Visits     int     `json:"visits"`
}

// QueueResult reports the outcome of a matchmaking join: either a waiting
// ticket or the game the player was matched into.
type QueueResult struct {
	Matched  bool      `json:"matched"`
	Position int       `json:"position,omitempty"`
	Game     *Snapshot `json:"game,omitempty"`
}

// PlayerStats is one leaderboard row.
type PlayerStats struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Games    int    `json:"games"`
}

// StatsResult aggregates results across sessions currently held in memory.
type StatsResult struct {
	TotalGames     int           `json:"total_games"`
	ActiveGames    int           `json:"active_games"`
	CompletedGames int           `json:"completed_games"`
	Leaderboard    []PlayerStats `json:"leaderboard"`
}

// HealthStatus is the health endpoint payload.
type HealthStatus struct {
	Status        string  `json:"status"`
	ActiveGames   int     `json:"active_games"`
	QueueDepth    int     `json:"queue_depth"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}
