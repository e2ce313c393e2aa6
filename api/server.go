package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/corridors/gameserver/game/service"
	"github.com/corridors/gameserver/transport/websocket"
)

// Server is the REST and websocket front end over the game service.
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	router  *mux.Router
	log     zerolog.Logger
}

// NewServer wires the routes over the game service and hub.
func NewServer(gameService service.GameService, hub *websocket.Hub, log zerolog.Logger) *Server {
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
		log:     log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Game lifecycle
	api.HandleFunc("/games", s.handleCreateGame).Methods("POST")
	api.HandleFunc("/games", s.handleListGames).Methods("GET")
	api.HandleFunc("/games/{id}", s.handleGetGame).Methods("GET")
	api.HandleFunc("/games/{id}", s.handleCancelGame).Methods("DELETE")

	// Play
	api.HandleFunc("/games/{id}/moves", s.handleMove).Methods("POST")
	api.HandleFunc("/games/{id}/resign", s.handleResign).Methods("POST")
	api.HandleFunc("/games/{id}/legal-moves", s.handleLegalMoves).Methods("GET")
	api.HandleFunc("/games/{id}/board", s.handleBoard).Methods("GET")

	// Engine
	api.HandleFunc("/games/{id}/analysis", s.handleAnalysis).Methods("GET")
	api.HandleFunc("/games/{id}/hint", s.handleHint).Methods("GET")

	// Matchmaking
	api.HandleFunc("/matchmaking/join", s.handleJoinQueue).Methods("POST")
	api.HandleFunc("/matchmaking/leave", s.handleLeaveQueue).Methods("POST")

	// Monitoring
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.Handle("/metrics", promhttp.Handler())
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps service sentinels onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotInProgress),
		errors.Is(err, service.ErrNotYourTurn),
		errors.Is(err, service.ErrAlreadyQueued):
		return http.StatusConflict
	case errors.Is(err, service.ErrIllegalMove):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrEngineTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, service.ErrAdapterClosed):
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

// Game lifecycle handlers

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req service.CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Mode == "" && req.HeroKind == "" && req.VillainKind == "" {
		req.Mode = service.ModeHumanVsMachine
	}

	snap, err := s.service.CreateGame(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := service.ListFilter{
		Status:   service.Status(query.Get("status")),
		PlayerID: query.Get("player_id"),
	}
	if v := query.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	if v := query.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	games, err := s.service.ListGames(r.Context(), filter)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(games),
		"games": games,
	})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.GetGame(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCancelGame(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]
	if err := s.service.CancelGame(r.Context(), gameID); err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "game cancelled"})
}

// Play handlers

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
		Action   string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PlayerID == "" || req.Action == "" {
		respondError(w, http.StatusBadRequest, "player_id and action are required")
		return
	}

	result, err := s.service.ApplyMove(r.Context(), mux.Vars(r)["id"], req.PlayerID, req.Action)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleResign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, err := s.service.Resign(r.Context(), mux.Vars(r)["id"], req.PlayerID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleLegalMoves(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("player_id")
	moves, err := s.service.LegalMoves(r.Context(), mux.Vars(r)["id"], playerID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(moves),
		"moves": moves,
	})
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("player_id")
	board, err := s.service.RenderBoard(r.Context(), mux.Vars(r)["id"], playerID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"board": board})
}

// Engine handlers

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	budget := 0
	if v := r.URL.Query().Get("budget"); v != "" {
		b, err := strconv.Atoi(v)
		if err != nil || b < 0 {
			respondError(w, http.StatusBadRequest, "budget must be a non-negative integer")
			return
		}
		budget = b
	}

	analysis, err := s.service.Analyse(r.Context(), mux.Vars(r)["id"], budget)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("player_id")
	hint, err := s.service.Hint(r.Context(), mux.Vars(r)["id"], playerID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, hint)
}

// Matchmaking handlers

func (s *Server) handleJoinQueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID   string `json:"player_id"`
		PlayerName string `json:"player_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PlayerID == "" {
		respondError(w, http.StatusBadRequest, "player_id is required")
		return
	}

	result, err := s.service.JoinQueue(r.Context(), req.PlayerID, req.PlayerName)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleLeaveQueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.service.LeaveQueue(r.Context(), req.PlayerID); err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "left matchmaking"})
}

// Monitoring handlers

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.service.Health(r.Context()))
}

// WebSocket handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if gameID := r.URL.Query().Get("game_id"); gameID != "" {
		if _, err := s.service.GetGame(r.Context(), gameID); err != nil {
			s.respondServiceError(w, err)
			return
		}
	}
	s.hub.ServeWS(w, r)
}
