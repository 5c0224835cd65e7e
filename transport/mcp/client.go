package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mafia-game/game/engine"
	"github.com/wricardo/mafia-game/game/service"
)

// Client is a thin MCP client that proxies to the REST API as one player
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer

	mu       sync.Mutex
	name     string
	playerID string
	token    string
}

// NewClient creates a new MCP client that calls the REST API, playing as name
func NewClient(baseURL, name string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		name: name,
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Mafia Game",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Mafia Game - MCP Interface

This is a thin client that proxies all requests to the REST API server.
You play as one seat at the table.

GAME OBJECTIVE:
Citizens (with the doctor and the police) win by executing every mafia
member. The mafia win when no one else is left alive.

AVAILABLE TOOLS:
- login: Choose your display name (and optionally reuse a player id)
- create_room / join_room / leave_room / room_state: Lobby management
- create_game: Start a game in your room (host only)
- game_state: Your view of the current game
- vote / final_vote / night_action / send_chat: Play your turn
- adjust_time: Extend or shorten the discussion once per day
- suggestions: Canned lines for your role and the current phase
- list_rules: Available rules presets
- game_result: Result of a finished game
- game_instructions: Full rules

NOTE: Phases are timed on the server. Call game_state to see how much time is left.`),
	)

	// Register all tools
	c.registerTools()
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Identity
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "login",
		Description: "Set your display name and get a player identity",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name":      stringProp("Display name"),
				"player_id": stringProp("Your current player id, to rename without losing your seat (optional)"),
			},
			Required: []string{"name"},
		},
	}, c.handleLogin)

	// Rooms
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_room",
		Description: "Create a room; you become its host",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleCreateRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "join_room",
		Description: "Join a room by its code",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": stringProp("Room code"),
			},
			Required: []string{"room_id"},
		},
	}, c.handleJoinRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "leave_room",
		Description: "Leave a room. Leaving during a game forfeits your seat.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": stringProp("Room code"),
			},
			Required: []string{"room_id"},
		},
	}, c.handleLeaveRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List open rooms and whether a game is running in them",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListRooms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "room_state",
		Description: "Show a room roster",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": stringProp("Room code"),
			},
			Required: []string{"room_id"},
		},
	}, c.handleRoomState)

	// Games
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_game",
		Description: "Start a game with everyone in the room (host only)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": stringProp("Room code"),
				"rules":   stringProp("Rules preset id (optional, see list_rules)"),
			},
			Required: []string{"room_id"},
		},
	}, c.handleCreateGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Get the current game as you can see it",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"game_id": stringProp("Game id (optional, defaults to your game)"),
			},
		},
	}, c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "vote",
		Description: "Vote for the player you want to put on trial (DAY_VOTING)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"target_id": stringProp("Player id to vote for"),
				"game_id":   stringProp("Game id (optional)"),
			},
			Required: []string{"target_id"},
		},
	}, c.actionHandler(engine.ActionVote))

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "final_vote",
		Description: "Decide whether the accused is executed (DAY_FINAL_VOTING)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"choice": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"AGREE", "DISAGREE"},
					"description": "AGREE to execute, DISAGREE to spare",
				},
				"game_id": stringProp("Game id (optional)"),
			},
			Required: []string{"choice"},
		},
	}, c.actionHandler(engine.ActionFinalVote))

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "night_action",
		Description: "Choose your night target: mafia kill, doctor protect, police investigate (NIGHT_ACTION)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"target_id": stringProp("Player id to target"),
				"game_id":   stringProp("Game id (optional)"),
			},
			Required: []string{"target_id"},
		},
	}, c.actionHandler(engine.ActionNightAction))

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "send_chat",
		Description: "Post a chat line to your room (mafia chat at night, dead chat once dead)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": stringProp("Room code"),
				"content": stringProp("Message"),
			},
			Required: []string{"room_id", "content"},
		},
	}, c.handleSendChat)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "adjust_time",
		Description: "Extend (positive) or shorten (negative) the discussion, once per day",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"seconds": map[string]interface{}{
					"type":        "integer",
					"description": "Seconds to add or remove",
				},
				"game_id": stringProp("Game id (optional)"),
			},
			Required: []string{"seconds"},
		},
	}, c.handleAdjustTime)

	// Lookups
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "suggestions",
		Description: "Get canned chat lines for a role in a phase",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"role":  stringProp("MAFIA, DOCTOR, POLICE or CITIZEN"),
				"phase": stringProp("DAY_DISCUSSION, DAY_VOTING, NIGHT_ACTION, ..."),
			},
			Required: []string{"role", "phase"},
		},
	}, c.handleSuggestions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rules",
		Description: "List available rules presets",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListRules)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_result",
		Description: "Get the result of a finished game with every role revealed",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"game_id": stringProp("Game id"),
			},
			Required: []string{"game_id"},
		},
	}, c.handleGameResult)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "recent_results",
		Description: "List the most recently finished games",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "How many games to list (optional, default 20)",
				},
			},
		},
	}, c.handleRecentResults)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get the full rules of the game",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

// login obtains a bearer token for name. Keeping a player id requires the
// token already issued for it.
func (c *Client) login(playerID, name string) error {
	var resp struct {
		Token    string `json:"token"`
		PlayerID string `json:"player_id"`
		Name     string `json:"name"`
	}

	c.mu.Lock()
	token := ""
	if playerID != "" && playerID == c.playerID {
		token = c.token
	}
	c.mu.Unlock()

	body := map[string]string{"name": name, "player_id": playerID}
	if err := c.do("POST", "/api/auth/token", token, body, &resp); err != nil {
		return err
	}

	c.mu.Lock()
	c.token, c.playerID, c.name = resp.Token, resp.PlayerID, resp.Name
	c.mu.Unlock()
	return nil
}

func (c *Client) currentToken() (string, error) {
	c.mu.Lock()
	token, name, playerID := c.token, c.name, c.playerID
	c.mu.Unlock()
	if token != "" {
		return token, nil
	}
	if name == "" {
		return "", fmt.Errorf("not logged in: call the login tool first")
	}
	if err := c.login(playerID, name); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, nil
}

// apiCall performs an authenticated request
func (c *Client) apiCall(method, path string, body interface{}, result interface{}) error {
	token, err := c.currentToken()
	if err != nil {
		return err
	}
	return c.do(method, path, token, body, result)
}

func (c *Client) do(method, path, token string, body interface{}, result interface{}) error {
	endpoint := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, endpoint, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
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
			if reason := errResp["reason"]; reason != "" {
				return fmt.Errorf("%s (%s)", msg, reason)
			}
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		args = map[string]interface{}{}
	}
	return args
}

// gamePath resolves the optional game_id argument to an API path
func gamePath(args map[string]interface{}) string {
	if gameID, _ := args["game_id"].(string); gameID != "" {
		return "/api/games/" + url.PathEscape(gameID)
	}
	return "/api/games/mine"
}

// Tool handlers

func (c *Client) handleLogin(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	name, _ := args["name"].(string)
	playerID, _ := args["player_id"].(string)

	if err := c.login(playerID, name); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return mcp.NewToolResultText(fmt.Sprintf("Logged in as %s (player id %s)", c.name, c.playerID)), nil
}

func (c *Client) handleCreateRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var room service.RoomInfo
	if err := c.apiCall("POST", "/api/rooms", nil, &room); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Created room\n" + formatRoom(&room)), nil
}

func (c *Client) handleJoinRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roomID, _ := arguments(request)["room_id"].(string)

	var room service.RoomInfo
	if err := c.apiCall("POST", "/api/rooms/"+url.PathEscape(roomID)+"/join", nil, &room); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Joined room\n" + formatRoom(&room)), nil
}

func (c *Client) handleLeaveRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roomID, _ := arguments(request)["room_id"].(string)

	if err := c.apiCall("POST", "/api/rooms/"+url.PathEscape(roomID)+"/leave", nil, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Left room %s", roomID)), nil
}

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp struct {
		Rooms []*service.RoomInfo `json:"rooms"`
	}
	if err := c.apiCall("GET", "/api/rooms", nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(resp.Rooms) == 0 {
		return mcp.NewToolResultText("No open rooms. Create one with create_room."), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Open rooms (%d):\n", len(resp.Rooms)))
	for _, r := range resp.Rooms {
		status := "waiting"
		if r.GameID != "" {
			status = "in game " + r.GameID
		}
		sb.WriteString(fmt.Sprintf("- %s: %d players, %s\n", r.ID, len(r.Members), status))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleRoomState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roomID, _ := arguments(request)["room_id"].(string)

	var room service.RoomInfo
	if err := c.apiCall("GET", "/api/rooms/"+url.PathEscape(roomID), nil, &room); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatRoom(&room)), nil
}

func (c *Client) handleCreateGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	roomID, _ := args["room_id"].(string)
	rules, _ := args["rules"].(string)

	body := map[string]string{"room_id": roomID}
	if rules != "" {
		body["rules"] = rules
	}

	var game service.GameInfo
	if err := c.apiCall("POST", "/api/games", body, &game); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Started game %s\n", game.GameID) + formatGameInfo(&game)), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var game service.GameInfo
	if err := c.apiCall("GET", gamePath(arguments(request)), nil, &game); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatGameInfo(&game)), nil
}

// actionHandler builds the handler of a vote, final vote or night action tool
func (c *Client) actionHandler(actionType engine.ActionType) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := arguments(request)
		targetID, _ := args["target_id"].(string)
		choice, _ := args["choice"].(string)

		var game service.GameInfo
		if err := c.apiCall("GET", gamePath(args), nil, &game); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		action := engine.Action{
			Type:     actionType,
			TargetID: targetID,
			Choice:   engine.FinalChoice(strings.ToUpper(choice)),
		}
		path := "/api/games/" + url.PathEscape(game.GameID) + "/actions"
		if err := c.apiCall("POST", path, action, nil); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		switch actionType {
		case engine.ActionFinalVote:
			return mcp.NewToolResultText(fmt.Sprintf("Final vote %s recorded", action.Choice)), nil
		case engine.ActionNightAction:
			return mcp.NewToolResultText(fmt.Sprintf("Night target %s recorded", nameOf(game.State.Players, targetID))), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Vote for %s recorded", nameOf(game.State.Players, targetID))), nil
	}
}

func (c *Client) handleSendChat(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	roomID, _ := args["room_id"].(string)
	content, _ := args["content"].(string)

	path := "/api/rooms/" + url.PathEscape(roomID) + "/chat"
	if err := c.apiCall("POST", path, map[string]string{"content": content}, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Message sent"), nil
}

func (c *Client) handleAdjustTime(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	seconds, _ := args["seconds"].(float64)

	var game service.GameInfo
	if err := c.apiCall("GET", gamePath(args), nil, &game); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	path := "/api/games/" + url.PathEscape(game.GameID) + "/time"
	if err := c.apiCall("POST", path, map[string]int{"seconds": int(seconds)}, &game); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Discussion now ends in %d seconds", game.RemainingSeconds)), nil
}

func (c *Client) handleSuggestions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	role, _ := args["role"].(string)
	phase, _ := args["phase"].(string)

	var resp struct {
		Suggestions []string `json:"suggestions"`
	}
	query := url.Values{"role": {role}, "phase": {phase}}
	if err := c.do("GET", "/api/suggestions?"+query.Encode(), "", nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(resp.Suggestions) == 0 {
		return mcp.NewToolResultText("No suggestions for this role and phase"), nil
	}

	var sb strings.Builder
	for _, line := range resp.Suggestions {
		sb.WriteString("- " + line + "\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleListRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp struct {
		Rules []*service.RulesInfo `json:"rules"`
	}
	if err := c.do("GET", "/api/rules", "", nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Available rules (%d):\n", len(resp.Rules)))
	for _, r := range resp.Rules {
		sb.WriteString(fmt.Sprintf("- %s: %s (min %d players; discussion %ds, night %ds)\n",
			r.RulesID, r.Description, r.MinPlayers, r.Durations.DayDiscussion, r.Durations.NightAction))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleGameResult(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gameID, _ := arguments(request)["game_id"].(string)

	var record service.GameRecord
	if err := c.apiCall("GET", "/api/games/"+url.PathEscape(gameID)+"/result", nil, &record); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatRecord(&record)), nil
}

func (c *Client) handleRecentResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := "/api/results"
	if limit, ok := arguments(request)["limit"].(float64); ok && limit > 0 {
		path += "?limit=" + strconv.Itoa(int(limit))
	}

	var resp struct {
		Results []*service.GameRecord `json:"results"`
	}
	if err := c.apiCall("GET", path, nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(resp.Results) == 0 {
		return mcp.NewToolResultText("No finished games yet"), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Recent games (%d):\n", len(resp.Results)))
	for _, r := range resp.Results {
		outcome := fmt.Sprintf("%s won after %d days", r.Winner, r.Rounds)
		if r.Aborted {
			outcome = "aborted"
		}
		sb.WriteString(fmt.Sprintf("- %s (%s): %s, ended %s\n", r.GameID, r.RulesName, outcome, r.EndedAt.Format(time.RFC3339)))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(instructions), nil
}

const instructions = `MAFIA - RULES

ROLES
- MAFIA: one per four players. Know each other. Kill one player each night.
- DOCTOR: protects one player each night (may protect themselves).
- POLICE: investigates one player each night and learns whether they are mafia.
- CITIZEN: no night action. Finds the mafia by talking and voting.

DAY
1. DAY_DISCUSSION: talk. Any living player may extend or shorten the
   discussion once per day with adjust_time.
2. DAY_VOTING: every living player votes for a suspect. The player with the
   most votes goes on trial. A tie or no votes means no trial and night falls.
3. DAY_FINAL_DEFENSE: only the accused may speak.
4. DAY_FINAL_VOTING: everyone except the accused votes AGREE or DISAGREE.
   The accused is executed only with strictly more AGREE than DISAGREE.

NIGHT
- NIGHT_ACTION: mafia choose a victim (most mafia votes wins, ties go to the
  earliest seat), the doctor protects, the police investigate. If the doctor
  protected the victim, nobody dies.

WINNING
- Citizens win when every mafia member is dead.
- Mafia win when no one else is alive (some presets: when they equal the rest).

TIPS
- Dead players can only talk to other dead players.
- At night only the mafia can chat, and only among themselves.
- Actions sent after their phase ended are ignored.`

// Formatting helpers

func formatRoom(room *service.RoomInfo) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Room: %s\n", room.ID))
	if room.GameID != "" {
		sb.WriteString(fmt.Sprintf("Game in progress: %s\n", room.GameID))
	}
	sb.WriteString(fmt.Sprintf("Players (%d):\n", len(room.Members)))
	for _, m := range room.Members {
		host := ""
		if m.IsHost {
			host = " [host]"
		}
		sb.WriteString(fmt.Sprintf("- %s (%s)%s\n", m.Name, m.ID, host))
	}
	return sb.String()
}

func formatGameInfo(game *service.GameInfo) string {
	s := game.State
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Game: %s (room %s, rules %s)\n", game.GameID, game.RoomID, game.RulesName))
	sb.WriteString(fmt.Sprintf("Phase: %s, day %d\n", s.Phase, s.CurrentPhase))
	if s.Phase == engine.PhaseGameEnded {
		winner := string(s.Winner)
		if winner == "" {
			winner = "nobody (aborted)"
		}
		sb.WriteString(fmt.Sprintf("Winner: %s\n", winner))
	} else if game.RemainingSeconds > 0 {
		sb.WriteString(fmt.Sprintf("Time left: %ds\n", game.RemainingSeconds))
	}
	if s.MyRole != "" {
		sb.WriteString(fmt.Sprintf("Your role: %s - %s\n", s.MyRole, s.MyRole.Description()))
	}
	if s.VotedPlayerID != "" {
		sb.WriteString(fmt.Sprintf("On trial: %s\n", s.VotedPlayerName))
	}

	sb.WriteString("\nPlayers:\n")
	for _, p := range s.Players {
		status := "alive"
		if !p.Alive {
			status = "dead"
		}
		line := fmt.Sprintf("- %s (%s) %s", p.Name, p.ID, status)
		if p.Role != "" {
			line += " " + string(p.Role)
		}
		if n, ok := s.VoteCounts[p.ID]; ok {
			line += fmt.Sprintf(" votes:%d", n)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

func formatRecord(record *service.GameRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Game: %s (rules %s)\n", record.GameID, record.RulesName))
	if record.Aborted {
		sb.WriteString("Result: aborted\n")
	} else {
		sb.WriteString(fmt.Sprintf("Winner: %s after %d days\n", record.Winner, record.Rounds))
	}

	players := append([]engine.Player(nil), record.Players...)
	sort.SliceStable(players, func(i, j int) bool { return players[i].Role < players[j].Role })
	for _, p := range players {
		status := "survived"
		if !p.Alive {
			status = "died"
		}
		sb.WriteString(fmt.Sprintf("- %s: %s, %s\n", p.Name, p.Role, status))
	}
	return sb.String()
}

func nameOf(players []engine.PlayerView, id string) string {
	for _, p := range players {
		if p.ID == id {
			return p.Name
		}
	}
	return id
}
