package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/corridors/gameserver/game/service"
)

// Client is a thin MCP ingress that proxies tool calls to the REST API, so
// agent traffic goes through the same validation path as every other client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates an MCP client pointed at the REST API base URL.
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	c.initMCPServer()
	return c
}

func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Corridors Game Server",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Corridors Game Server - MCP Interface

Corridors is a 9x9 wall-placement race: first pawn to reach the far side
wins. Each player holds 10 walls; a wall may never seal a player off from
their goal row.

ACTION SYNTAX (coordinates are always from YOUR point of view):
- *(X,Y)  move your pawn to cell (X,Y); X is the column, Y the row.
  You start at (4,0) and win by reaching row 8.
- H(X,Y)  place a horizontal wall anchored at intersection (X,Y).
- V(X,Y)  place a vertical wall anchored at intersection (X,Y).

AVAILABLE TOOLS:
- create_game: start a game (pvp, pvm, or mvm)
- get_game / list_games: inspect sessions
- make_move: submit an action
- legal_moves: list your available actions
- board: render the board from your seat
- analysis: engine evaluation of the position
- hint: engine move suggestion with confidence
- resign: concede the game
- game_rules: full rules reference`),
	)
	c.registerTools()
}

func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_game",
		Description: "Create a new Corridors game",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"mode": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"pvp", "pvm", "mvm"},
					"description": "Seat configuration: human vs human, human vs machine, machine vs machine",
				},
				"player_id": map[string]interface{}{
					"type":        "string",
					"description": "Your player ID (hero seat, moves first)",
				},
				"player_name": map[string]interface{}{
					"type":        "string",
					"description": "Display name (optional)",
				},
			},
			Required: []string{"mode"},
		},
	}, c.handleCreateGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_games",
		Description: "List games currently held by the server",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListGames)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_game",
		Description: "Get the state of one game",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"game_id": map[string]interface{}{
					"type":        "string",
					"description": "Game ID",
				},
			},
			Required: []string{"game_id"},
		},
	}, c.handleGetGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "make_move",
		Description: "Submit an action: *(X,Y) pawn move, H(X,Y) or V(X,Y) wall placement, in your coordinate frame",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"game_id": map[string]interface{}{
					"type":        "string",
					"description": "Game ID",
				},
				"player_id": map[string]interface{}{
					"type":        "string",
					"description": "Your player ID",
				},
				"action": map[string]interface{}{
					"type":        "string",
					"description": "Action string, e.g. *(4,1) or H(3,0)",
				},
			},
			Required: []string{"game_id", "player_id", "action"},
		},
	}, c.handleMakeMove)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "legal_moves",
		Description: "List the legal actions from your seat",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"game_id": map[string]interface{}{
					"type":        "string",
					"description": "Game ID",
				},
				"player_id": map[string]interface{}{
					"type":        "string",
					"description": "Your player ID",
				},
			},
			Required: []string{"game_id", "player_id"},
		},
	}, c.handleLegalMoves)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "board",
		Description: "Render the board from your seat's point of view",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"game_id": map[string]interface{}{
					"type":        "string",
					"description": "Game ID",
				},
				"player_id": map[string]interface{}{
					"type":        "string",
					"description": "Your player ID",
				},
			},
			Required: []string{"game_id", "player_id"},
		},
	}, c.handleBoard)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "analysis",
		Description: "Engine analysis of the current position: scored candidate actions and an evaluation",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"game_id": map[string]interface{}{
					"type":        "string",
					"description": "Game ID",
				},
				"budget": map[string]interface{}{
					"type":        "integer",
					"description": "Simulation budget (optional, server default otherwise)",
				},
			},
			Required: []string{"game_id"},
		},
	}, c.handleAnalysis)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "hint",
		Description: "Ask the engine to suggest a move for your seat",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"game_id": map[string]interface{}{
					"type":        "string",
					"description": "Game ID",
				},
				"player_id": map[string]interface{}{
					"type":        "string",
					"description": "Your player ID",
				},
			},
			Required: []string{"game_id", "player_id"},
		},
	}, c.handleHint)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "resign",
		Description: "Concede the game",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"game_id": map[string]interface{}{
					"type":        "string",
					"description": "Game ID",
				},
				"player_id": map[string]interface{}{
					"type":        "string",
					"description": "Your player ID",
				},
			},
			Required: []string{"game_id", "player_id"},
		},
	}, c.handleResign)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_rules",
		Description: "Full Corridors rules reference",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameRules)
}

// GetMCPServer returns the underlying MCP server for serving.
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

func (c *Client) apiCall(method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

// Tool handlers

func (c *Client) handleCreateGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	mode, _ := args["mode"].(string)
	playerID, _ := args["player_id"].(string)
	playerName, _ := args["player_name"].(string)

	body := map[string]string{
		"mode":      mode,
		"hero_id":   playerID,
		"hero_name": playerName,
	}

	var snap service.Snapshot
	if err := c.apiCall("POST", "/api/games", body, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSnapshot(&snap)), nil
}

func (c *Client) handleListGames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count int                `json:"count"`
		Games []service.Snapshot `json:"games"`
	}
	if err := c.apiCall("GET", "/api/games", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Games (%d):\n\n", response.Count)
	for _, g := range response.Games {
		fmt.Fprintf(&b, "- %s [%s/%s] %s vs %s, %d moves\n",
			g.GameID, g.Mode, g.Status,
			g.Players[0].Name, g.Players[1].Name, g.MoveCount)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	gameID, _ := args["game_id"].(string)

	var snap service.Snapshot
	if err := c.apiCall("GET", "/api/games/"+gameID, nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSnapshot(&snap)), nil
}

func (c *Client) handleMakeMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	gameID, _ := args["game_id"].(string)
	playerID, _ := args["player_id"].(string)
	action, _ := args["action"].(string)

	body := map[string]string{
		"player_id": playerID,
		"action":    action,
	}

	var result service.MoveResult
	if err := c.apiCall("POST", fmt.Sprintf("/api/games/%s/moves", gameID), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Played %s (move %d)\n", result.Move.Action, result.Move.Seq)
	if result.GameOver {
		fmt.Fprintf(&b, "Game over, winner: %s\n", result.Winner)
	} else {
		fmt.Fprintf(&b, "Next to move: %s\n", result.Snapshot.CurrentTurn)
	}
	b.WriteString("\n" + formatSnapshot(&result.Snapshot))
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleLegalMoves(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	gameID, _ := args["game_id"].(string)
	playerID, _ := args["player_id"].(string)

	var response struct {
		Count int      `json:"count"`
		Moves []string `json:"moves"`
	}
	path := fmt.Sprintf("/api/games/%s/legal-moves?player_id=%s", gameID, playerID)
	if err := c.apiCall("GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Legal actions (%d):\n%s\n", response.Count, strings.Join(response.Moves, " "))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleBoard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	gameID, _ := args["game_id"].(string)
	playerID, _ := args["player_id"].(string)

	var response struct {
		Board string `json:"board"`
	}
	path := fmt.Sprintf("/api/games/%s/board?player_id=%s", gameID, playerID)
	if err := c.apiCall("GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(response.Board), nil
}

func (c *Client) handleAnalysis(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	gameID, _ := args["game_id"].(string)

	path := fmt.Sprintf("/api/games/%s/analysis", gameID)
	if budget, ok := args["budget"].(float64); ok && budget > 0 {
		path += fmt.Sprintf("?budget=%d", int(budget))
	}

	var analysis service.AnalysisResult
	if err := c.apiCall("GET", path, nil, &analysis); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analysis after %d simulations\n", analysis.Visits)
	if analysis.Evaluation != nil {
		fmt.Fprintf(&b, "Evaluation: %+.3f (positive favours the first player)\n", *analysis.Evaluation)
	}
	b.WriteString("\nTop actions (visits, equity):\n")
	limit := len(analysis.Actions)
	if limit > 10 {
		limit = 10
	}
	for _, a := range analysis.Actions[:limit] {
		fmt.Fprintf(&b, "  %-8s visits=%-6d equity=%+.3f\n", a.Action, a.Visits, a.Equity)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleHint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	gameID, _ := args["game_id"].(string)
	playerID, _ := args["player_id"].(string)

	var hint service.HintResult
	path := fmt.Sprintf("/api/games/%s/hint?player_id=%s", gameID, playerID)
	if err := c.apiCall("GET", path, nil, &hint); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Suggested action: %s (confidence %.0f%%, %d simulations)",
		hint.Action, hint.Confidence*100, hint.Visits)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleResign(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	gameID, _ := args["game_id"].(string)
	playerID, _ := args["player_id"].(string)

	body := map[string]string{"player_id": playerID}
	var snap service.Snapshot
	if err := c.apiCall("POST", fmt.Sprintf("/api/games/%s/resign", gameID), body, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Resigned. Winner: %s\n\n%s", snap.Winner, formatSnapshot(&snap))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGameRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rules := `Corridors Rules

BOARD:
A 9x9 grid of cells. You start on cell (4,0), the middle of your back row,
and win by moving your pawn to any cell on row 8. Your opponent races the
other way. Coordinates are always given from your own point of view; the
server translates between seats.

TURNS:
Players alternate, one action per turn. The first player moves first. An
action is either a pawn move or a wall placement.

PAWN MOVES *(X,Y):
Move one cell orthogonally (never diagonally through open space). Walls
block movement. When the two pawns are adjacent you may jump straight over
the opponent; if a wall or the board edge blocks the straight jump, you may
step diagonally around them instead.

WALLS H(X,Y) and V(X,Y):
Each player has 10 walls. A wall is two cells long and sits between cells,
anchored at an intersection (X in 0..7, Y in 0..7). H walls run horizontally
and block vertical movement; V walls run vertically and block horizontal
movement. Walls may not overlap another wall of the same orientation, may
not cross the opposite orientation at the same anchor, and may never leave
either player without any path to their goal row. Walls are permanent.

WINNING:
First pawn to reach its goal row wins immediately. There are no draws; a
player may also resign.`
	return mcp.NewToolResultText(rules), nil
}

// Formatting helpers

func formatSnapshot(snap *service.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Game: %s\n", snap.GameID)
	fmt.Fprintf(&b, "Mode: %s | Status: %s | Moves: %d\n", snap.Mode, snap.Status, snap.MoveCount)
	fmt.Fprintf(&b, "Players: %s (%s) vs %s (%s)\n",
		snap.Players[0].Name, snap.Players[0].Kind,
		snap.Players[1].Name, snap.Players[1].Kind)
	switch snap.Status {
	case service.StatusInProgress:
		fmt.Fprintf(&b, "To move: %s\n", snap.CurrentTurn)
	case service.StatusCompleted:
		fmt.Fprintf(&b, "Winner: %s (%s)\n", snap.Winner, snap.EndReason)
	case service.StatusCancelled:
		b.WriteString("Cancelled\n")
	}
	return b.String()
}
