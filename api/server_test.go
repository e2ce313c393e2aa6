package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corridors/gameserver/game/engine"
	"github.com/corridors/gameserver/game/service"
	"github.com/corridors/gameserver/game/session"
	"github.com/corridors/gameserver/transport/websocket"
)

type noopScheduler struct {
	mu  sync.Mutex
	ids []string
}

func (s *noopScheduler) Enqueue(gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, gameID)
	return nil
}

func (s *noopScheduler) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	registry := session.NewRegistry(zerolog.Nop())
	hub := websocket.NewHub(websocket.Options{}, zerolog.Nop())
	opts := service.Options{
		Engine: engine.Config{
			Exploration:    0.158,
			Seed:           42,
			MinSimulations: 50,
			MaxSimulations: 500,
			UseRollout:     true,
			DecideByVisits: true,
		},
		MoveTimeout: 5 * time.Second,
		AITimeout:   5 * time.Second,
	}
	svc := service.NewService(registry, hub, &noopScheduler{}, opts, zerolog.Nop())
	srv := httptest.NewServer(NewServer(svc, hub, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp, decodeObject(t, resp)
}

func getJSON(t *testing.T, srv *httptest.Server, path string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	return resp, decodeObject(t, resp)
}

func decodeObject(t *testing.T, resp *http.Response) map[string]json.RawMessage {
	t.Helper()
	defer resp.Body.Close()
	var obj map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&obj))
	return obj
}

func rawString(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(raw, &s))
	return s
}

func createPvpGame(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, obj := postJSON(t, srv, "/api/games", map[string]string{
		"mode":       "pvp",
		"hero_id":    "alice",
		"villain_id": "bob",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return rawString(t, obj["game_id"])
}

func TestCreateGameEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, obj := postJSON(t, srv, "/api/games", map[string]string{"hero_id": "alice"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	// Mode defaults to human vs machine.
	assert.Equal(t, "pvm", rawString(t, obj["mode"]))
	assert.Equal(t, "in_progress", rawString(t, obj["status"]))
	assert.NotEmpty(t, rawString(t, obj["game_id"]))
}

func TestCreateGameBadBody(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/games", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetGameEndpoint(t *testing.T) {
	srv := newTestServer(t)
	gameID := createPvpGame(t, srv)

	resp, obj := getJSON(t, srv, "/api/games/"+gameID)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, gameID, rawString(t, obj["game_id"]))

	resp, _ = getJSON(t, srv, "/api/games/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListGamesEndpoint(t *testing.T) {
	srv := newTestServer(t)
	createPvpGame(t, srv)
	createPvpGame(t, srv)

	resp, obj := getJSON(t, srv, "/api/games?player_id=alice")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var count int
	require.NoError(t, json.Unmarshal(obj["count"], &count))
	assert.Equal(t, 2, count)

	resp, obj = getJSON(t, srv, "/api/games?limit=1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(obj["count"], &count))
	assert.Equal(t, 1, count)

	resp, obj = getJSON(t, srv, "/api/games?offset=1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(obj["count"], &count))
	assert.Equal(t, 1, count)

	resp, _ = getJSON(t, srv, "/api/games?limit=lots")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMoveEndpoint(t *testing.T) {
	srv := newTestServer(t)
	gameID := createPvpGame(t, srv)

	resp, obj := postJSON(t, srv, fmt.Sprintf("/api/games/%s/moves", gameID), map[string]string{
		"player_id": "alice",
		"action":    "*(4,1)",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var move service.Move
	require.NoError(t, json.Unmarshal(obj["move"], &move))
	assert.Equal(t, 1, move.Seq)
	assert.Equal(t, "*(4,1)", move.Action)
}

func TestMoveEndpointErrors(t *testing.T) {
	srv := newTestServer(t)
	gameID := createPvpGame(t, srv)
	movesPath := fmt.Sprintf("/api/games/%s/moves", gameID)

	// Missing fields.
	resp, _ := postJSON(t, srv, movesPath, map[string]string{"player_id": "alice"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Out of turn.
	resp, _ = postJSON(t, srv, movesPath, map[string]string{"player_id": "bob", "action": "*(4,1)"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Illegal action.
	resp, obj := postJSON(t, srv, movesPath, map[string]string{"player_id": "alice", "action": "*(0,8)"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.NotEmpty(t, rawString(t, obj["error"]))

	// Unknown game.
	resp, _ = postJSON(t, srv, "/api/games/missing/moves", map[string]string{"player_id": "alice", "action": "*(4,1)"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLegalMovesEndpoint(t *testing.T) {
	srv := newTestServer(t)
	gameID := createPvpGame(t, srv)

	resp, obj := getJSON(t, srv, fmt.Sprintf("/api/games/%s/legal-moves?player_id=alice", gameID))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var count int
	require.NoError(t, json.Unmarshal(obj["count"], &count))
	assert.Equal(t, 131, count)
}

func TestBoardEndpoint(t *testing.T) {
	srv := newTestServer(t)
	gameID := createPvpGame(t, srv)

	resp, obj := getJSON(t, srv, fmt.Sprintf("/api/games/%s/board?player_id=bob", gameID))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, rawString(t, obj["board"]))
}

func TestResignEndpoint(t *testing.T) {
	srv := newTestServer(t)
	gameID := createPvpGame(t, srv)

	resp, obj := postJSON(t, srv, fmt.Sprintf("/api/games/%s/resign", gameID), map[string]string{"player_id": "alice"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", rawString(t, obj["status"]))
	assert.Equal(t, "bob", rawString(t, obj["winner"]))

	// A second resignation conflicts.
	resp, _ = postJSON(t, srv, fmt.Sprintf("/api/games/%s/resign", gameID), map[string]string{"player_id": "bob"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCancelGameEndpoint(t *testing.T) {
	srv := newTestServer(t)
	gameID := createPvpGame(t, srv)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/games/"+gameID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = getJSON(t, srv, "/api/games/"+gameID)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAnalysisEndpoint(t *testing.T) {
	srv := newTestServer(t)
	gameID := createPvpGame(t, srv)

	resp, obj := getJSON(t, srv, fmt.Sprintf("/api/games/%s/analysis?budget=100", gameID))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var visits int
	require.NoError(t, json.Unmarshal(obj["visits"], &visits))
	assert.Equal(t, 100, visits)

	resp, _ = getJSON(t, srv, fmt.Sprintf("/api/games/%s/analysis?budget=lots", gameID))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHintEndpoint(t *testing.T) {
	srv := newTestServer(t)
	gameID := createPvpGame(t, srv)

	resp, obj := getJSON(t, srv, fmt.Sprintf("/api/games/%s/hint?player_id=alice", gameID))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, rawString(t, obj["action"]))
}

func TestMatchmakingEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, obj := postJSON(t, srv, "/api/matchmaking/join", map[string]string{"player_id": "alice"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var matched bool
	require.NoError(t, json.Unmarshal(obj["matched"], &matched))
	assert.False(t, matched)

	// Double join conflicts.
	resp, _ = postJSON(t, srv, "/api/matchmaking/join", map[string]string{"player_id": "alice"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, obj = postJSON(t, srv, "/api/matchmaking/join", map[string]string{"player_id": "bob"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(obj["matched"], &matched))
	assert.True(t, matched)

	// Both players were matched out of the queue; leaving is now a no-op.
	resp, _ = postJSON(t, srv, "/api/matchmaking/leave", map[string]string{"player_id": "alice"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatsAndHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)
	createPvpGame(t, srv)

	resp, obj := getJSON(t, srv, "/api/stats")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var total int
	require.NoError(t, json.Unmarshal(obj["total_games"], &total))
	assert.Equal(t, 1, total)

	resp, obj = getJSON(t, srv, "/api/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", rawString(t, obj["status"]))
	var active int
	require.NoError(t, json.Unmarshal(obj["active_games"], &active))
	assert.Equal(t, 1, active)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebSocketRejectsUnknownGame(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/ws?game_id=missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
