package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corridors/gameserver/api"
	"github.com/corridors/gameserver/game/engine"
	"github.com/corridors/gameserver/game/service"
	"github.com/corridors/gameserver/game/session"
	"github.com/corridors/gameserver/transport/websocket"
)

type idleScheduler struct{}

func (idleScheduler) Enqueue(string) error { return nil }
func (idleScheduler) Depth() int           { return 0 }

// newBackend stands up the real REST stack for the proxy to talk to.
func newBackend(t *testing.T) (*Client, *httptest.Server) {
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
	svc := service.NewService(registry, hub, idleScheduler{}, opts, zerolog.Nop())
	srv := httptest.NewServer(api.NewServer(svc, hub, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL), srv
}

func createBackendGame(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"mode":       "pvp",
		"hero_id":    "alice",
		"villain_id": "bob",
	})
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/api/games", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var snap service.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	return snap.GameID
}

func toolReq(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestGetMCPServer(t *testing.T) {
	client, _ := newBackend(t)
	assert.NotNil(t, client.GetMCPServer())
}

func TestCreateGameTool(t *testing.T) {
	client, _ := newBackend(t)

	result, err := client.handleCreateGame(context.Background(), toolReq(map[string]interface{}{
		"mode":      "pvm",
		"player_id": "alice",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Game: ")
	assert.Contains(t, text, "Mode: pvm | Status: in_progress")
	assert.Contains(t, text, "To move: alice")
}

func TestMakeMoveTool(t *testing.T) {
	client, srv := newBackend(t)
	gameID := createBackendGame(t, srv)

	result, err := client.handleMakeMove(context.Background(), toolReq(map[string]interface{}{
		"game_id":   gameID,
		"player_id": "alice",
		"action":    "*(4,1)",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "Played *(4,1) (move 1)")
	assert.Contains(t, text, "Next to move: bob")

	// Out of turn surfaces the API error as a tool error.
	result, err = client.handleMakeMove(context.Background(), toolReq(map[string]interface{}{
		"game_id":   gameID,
		"player_id": "alice",
		"action":    "*(4,2)",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestLegalMovesTool(t *testing.T) {
	client, srv := newBackend(t)
	gameID := createBackendGame(t, srv)

	result, err := client.handleLegalMoves(context.Background(), toolReq(map[string]interface{}{
		"game_id":   gameID,
		"player_id": "alice",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "Legal actions (131)")
	assert.Contains(t, text, "*(4,1)")
}

func TestBoardTool(t *testing.T) {
	client, srv := newBackend(t)
	gameID := createBackendGame(t, srv)

	result, err := client.handleBoard(context.Background(), toolReq(map[string]interface{}{
		"game_id":   gameID,
		"player_id": "bob",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.NotEmpty(t, resultText(t, result))
}

func TestAnalysisTool(t *testing.T) {
	client, srv := newBackend(t)
	gameID := createBackendGame(t, srv)

	result, err := client.handleAnalysis(context.Background(), toolReq(map[string]interface{}{
		"game_id": gameID,
		"budget":  float64(100),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "Analysis after 100 simulations")
	assert.Contains(t, text, "Top actions")
}

func TestHintTool(t *testing.T) {
	client, srv := newBackend(t)
	gameID := createBackendGame(t, srv)

	result, err := client.handleHint(context.Background(), toolReq(map[string]interface{}{
		"game_id":   gameID,
		"player_id": "alice",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Suggested action: ")
}

func TestResignTool(t *testing.T) {
	client, srv := newBackend(t)
	gameID := createBackendGame(t, srv)

	result, err := client.handleResign(context.Background(), toolReq(map[string]interface{}{
		"game_id":   gameID,
		"player_id": "alice",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Resigned. Winner: bob")
}

func TestListGamesTool(t *testing.T) {
	client, srv := newBackend(t)
	createBackendGame(t, srv)

	result, err := client.handleListGames(context.Background(), toolReq(map[string]interface{}{}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "Games (1)")
	assert.Contains(t, text, "alice vs bob")
}

func TestGetGameToolUnknownID(t *testing.T) {
	client, _ := newBackend(t)

	result, err := client.handleGetGame(context.Background(), toolReq(map[string]interface{}{
		"game_id": "missing",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestGameRulesTool(t *testing.T) {
	client, _ := newBackend(t)

	result, err := client.handleGameRules(context.Background(), toolReq(nil))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "Corridors Rules")
	assert.Contains(t, text, "10 walls")
}

func TestFormatSnapshot(t *testing.T) {
	snap := &service.Snapshot{
		GameID: "g1",
		Mode:   service.ModeHumanVsHuman,
		Status: service.StatusCompleted,
		Players: [2]service.PlayerSlot{
			{ID: "alice", Name: "Alice", Kind: service.KindHuman},
			{ID: "bob", Name: "Bob", Kind: service.KindHuman},
		},
		Winner:    "alice",
		EndReason: service.EndReasonResignation,
		MoveCount: 7,
	}

	out := formatSnapshot(snap)
	assert.Contains(t, out, "Game: g1")
	assert.Contains(t, out, "Mode: pvp | Status: completed | Moves: 7")
	assert.Contains(t, out, "Alice (human) vs Bob (human)")
	assert.Contains(t, out, "Winner: alice (resignation)")
}
