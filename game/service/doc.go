// Package service is the business logic layer of the Corridors server.
//
// It owns the session model (seats, status, move history), the turn router
// that validates and commits moves, the matchmaking queue, and the machine
// turn driver the AI scheduler calls into.
//
// Concurrency model:
//
// Each Session carries a guard mutex serialising the read-validate-commit
// sequence of a move. Broadcasts always happen after the guard is released,
// so a slow subscriber can never hold up game state. Machine turns validate
// under the guard, run the search outside it, and re-validate before
// committing, which makes stale scheduler triggers harmless.
//
// The package defines the Registry and Broadcaster contracts it programs
// against; game/session and transport/websocket provide the implementations.
package service
