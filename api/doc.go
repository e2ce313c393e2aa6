// Package api provides the HTTP front end of the Corridors server.
//
// Endpoints:
//
// Game lifecycle:
//   - POST   /api/games            create a game (pvp, pvm, mvm)
//   - GET    /api/games            list games (status, player_id filters)
//   - GET    /api/games/{id}       get one game
//   - DELETE /api/games/{id}       cancel a game
//
// Play:
//   - POST /api/games/{id}/moves        submit an action
//   - POST /api/games/{id}/resign       concede
//   - GET  /api/games/{id}/legal-moves  list actions for a player
//   - GET  /api/games/{id}/board        text board from a player's seat
//
// Engine:
//   - GET /api/games/{id}/analysis  scored candidate actions and evaluation
//   - GET /api/games/{id}/hint      suggested action with confidence
//
// Matchmaking:
//   - POST /api/matchmaking/join
//   - POST /api/matchmaking/leave
//
// Monitoring:
//   - GET /api/stats, GET /api/health, GET /metrics
//
// Real-time updates are served on /ws. Errors come back as JSON objects with
// an "error" field; service sentinels map onto HTTP status codes (404 for
// unknown games, 409 for turn and status conflicts, 422 for illegal moves,
// 503 for scheduler backpressure, 504 for engine timeouts).
package api
