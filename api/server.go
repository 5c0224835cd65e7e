package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/wricardo/mafia-game/auth"
	"github.com/wricardo/mafia-game/game/config"
	"github.com/wricardo/mafia-game/game/engine"
	"github.com/wricardo/mafia-game/game/service"
	"github.com/wricardo/mafia-game/game/session"
	"github.com/wricardo/mafia-game/router"
	"github.com/wricardo/mafia-game/transport/websocket"
)

// Hub is the WebSocket side the server upgrades players into
type Hub interface {
	ServeWS(w http.ResponseWriter, r *http.Request, playerID string)
	Subscribe(playerID, topic string)
}

// Authenticator issues and verifies player bearer tokens
type Authenticator interface {
	Issue(id auth.Identity) (string, error)
	Verify(token string) (auth.Identity, error)
}

type contextKey struct{}

const (
	defaultResultsLimit = 20
	maxResultsLimit     = 100
)

// Server represents the REST API server. It also handles the inbound
// WebSocket frames of authenticated players.
type Server struct {
	service   service.GameService
	hub       Hub
	auth      Authenticator
	router    *mux.Router
	publicURL string
	stats     func() map[string]int

	// display names of players seen on an authenticated request
	names sync.Map
}

// NewServer creates a new API server
func NewServer(gameService service.GameService, hub Hub, authn Authenticator) *Server {
	s := &Server{
		service: gameService,
		hub:     hub,
		auth:    authn,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// SetPublicURL sets the base URL used in room invites, e.g. a tunnel address
func (s *Server) SetPublicURL(url string) {
	s.publicURL = strings.TrimSuffix(url, "/")
}

// SetStats adds the counters fn reports to the health response
func (s *Server) SetStats(fn func() map[string]int) {
	s.stats = fn
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Public
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/auth/token", s.handleIssueToken).Methods("POST")
	api.HandleFunc("/rules", s.handleListRules).Methods("GET")
	api.HandleFunc("/suggestions", s.handleSuggestions).Methods("GET")
	api.HandleFunc("/rooms/{roomId}/invite.png", s.handleInvite).Methods("GET")

	// Rooms
	api.HandleFunc("/rooms", s.authenticated(s.handleCreateRoom)).Methods("POST")
	api.HandleFunc("/rooms", s.authenticated(s.handleListRooms)).Methods("GET")
	api.HandleFunc("/rooms/{roomId}", s.authenticated(s.handleGetRoom)).Methods("GET")
	api.HandleFunc("/rooms/{roomId}/join", s.authenticated(s.handleJoinRoom)).Methods("POST")
	api.HandleFunc("/rooms/{roomId}/leave", s.authenticated(s.handleLeaveRoom)).Methods("POST")
	api.HandleFunc("/rooms/{roomId}/chat", s.authenticated(s.handleChat)).Methods("POST")
	api.HandleFunc("/rooms/{roomId}/game", s.authenticated(s.handleGetRoomGame)).Methods("GET")

	// Games (mine must be before {id} pattern)
	api.HandleFunc("/games", s.authenticated(s.handleCreateGame)).Methods("POST")
	api.HandleFunc("/games", s.authenticated(s.handleListGames)).Methods("GET")
	api.HandleFunc("/games/mine", s.authenticated(s.handleMyGame)).Methods("GET")
	api.HandleFunc("/games/{id}", s.authenticated(s.handleGetGame)).Methods("GET")
	api.HandleFunc("/games/{id}/actions", s.authenticated(s.handleSubmitAction)).Methods("POST")
	api.HandleFunc("/games/{id}/time", s.authenticated(s.handleAdjustTime)).Methods("POST")
	api.HandleFunc("/games/{id}/result", s.authenticated(s.handleGetResult)).Methods("GET")
	api.HandleFunc("/results", s.authenticated(s.handleListResults)).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, reason engine.Reason) {
	respondJSON(w, status, map[string]string{"error": message, "reason": string(reason)})
}

// respondErr maps an error from the service to its HTTP status
func respondErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	respondError(w, status, err.Error(), reasonFor(err))
}

func statusFor(err error) int {
	var (
		validation *engine.ValidationError
		authz      *engine.AuthorizationError
		phase      *engine.PhaseMismatchError
		conflict   *engine.ConcurrencyConflict
		notFound   *engine.NotFoundError
	)
	switch {
	case errors.As(err, &validation), errors.Is(err, config.ErrInvalidRules), errors.Is(err, session.ErrInvalidRoomID):
		return http.StatusBadRequest
	case errors.As(err, &authz):
		return http.StatusForbidden
	case errors.As(err, &phase), errors.As(err, &conflict), errors.Is(err, session.ErrGameInProgress),
		errors.Is(err, engine.ErrAlreadyStarted), errors.Is(err, engine.ErrGameEnded), errors.Is(err, engine.ErrNotStarted):
		return http.StatusConflict
	case errors.As(err, &notFound), errors.Is(err, config.ErrRulesNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func reasonFor(err error) engine.Reason {
	switch {
	case errors.Is(err, config.ErrRulesNotFound):
		return engine.ReasonNotFound
	case errors.Is(err, session.ErrGameInProgress):
		return engine.ReasonConflict
	}
	return engine.ReasonOf(err)
}

func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &engine.ValidationError{Reason: engine.ReasonMalformed, Message: "invalid JSON body"}
	}
	return nil
}

// Authentication

// authenticated resolves the bearer token (or ?token= for clients that cannot
// set headers) into an identity
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.identify(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error(), engine.ReasonNotAuthorized)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, id)))
	}
}

func (s *Server) identify(r *http.Request) (auth.Identity, error) {
	token := r.URL.Query().Get("token")
	if header := r.Header.Get("Authorization"); header != "" {
		token = strings.TrimPrefix(header, "Bearer ")
	}
	if token == "" {
		return auth.Identity{}, fmt.Errorf("missing bearer token")
	}
	id, err := s.auth.Verify(token)
	if err != nil {
		return auth.Identity{}, err
	}
	s.names.Store(id.PlayerID, id.Name)
	return id, nil
}

// identityFrom returns the identity stored by authenticated
func identityFrom(ctx context.Context) auth.Identity {
	id, _ := ctx.Value(contextKey{}).(auth.Identity)
	return id
}

func (s *Server) seat(playerID string) engine.PlayerSeat {
	name, _ := s.names.Load(playerID)
	seat := engine.PlayerSeat{ID: playerID}
	seat.Name, _ = name.(string)
	if seat.Name == "" {
		seat.Name = playerID
	}
	return seat
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
		Name     string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required", engine.ReasonMalformed)
		return
	}

	// A supplied player id is only honoured for the holder of that id's token
	id := auth.Identity{PlayerID: uuid.NewString(), Name: req.Name}
	if req.PlayerID != "" {
		current, err := s.identify(r)
		if err != nil || current.PlayerID != req.PlayerID {
			respondError(w, http.StatusForbidden, "player_id can only be renewed with its own token", engine.ReasonNotAuthorized)
			return
		}
		id.PlayerID = current.PlayerID
	}
	s.names.Store(id.PlayerID, id.Name)

	token, err := s.auth.Issue(id)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"token":     token,
		"player_id": id.PlayerID,
		"name":      id.Name,
	})
}

// Room Handlers

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	room, err := s.service.CreateRoom(r.Context(), s.seat(id.PlayerID))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, room)
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.service.GetRoom(r.Context(), mux.Vars(r)["roomId"])
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, room)
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	room, err := s.service.JoinRoom(r.Context(), mux.Vars(r)["roomId"], s.seat(id.PlayerID))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, room)
}

func (s *Server) handleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	room, err := s.service.LeaveRoom(r.Context(), mux.Vars(r)["roomId"], id.PlayerID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, room)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	id := identityFrom(r.Context())
	if err := s.service.SendChat(r.Context(), mux.Vars(r)["roomId"], id.PlayerID, req.Content); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (s *Server) handleGetRoomGame(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	game, err := s.service.GetGameByRoom(r.Context(), mux.Vars(r)["roomId"], id.PlayerID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, game)
}

// handleInvite renders a QR code pointing at the room join page
func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	room, err := s.service.GetRoom(r.Context(), roomID)
	if err != nil {
		respondErr(w, err)
		return
	}

	base := s.publicURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	png, err := qrcode.Encode(fmt.Sprintf("%s/?room=%s", base, room.ID), qrcode.Medium, 256)
	if err != nil {
		respondErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// Game Handlers

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoomID string `json:"room_id"`
		Rules  string `json:"rules,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondErr(w, err)
		return
	}
	if req.RoomID == "" {
		respondError(w, http.StatusBadRequest, "room_id is required", engine.ReasonMalformed)
		return
	}

	id := identityFrom(r.Context())
	game, err := s.service.CreateGame(r.Context(), req.RoomID, id.PlayerID, req.Rules)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, game)
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.service.ListRooms(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"rooms": rooms,
		"total": len(rooms),
	})
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.service.ListGames(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"games": games,
		"total": len(games),
	})
}

func (s *Server) handleMyGame(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	game, err := s.service.GetGameByPlayer(r.Context(), id.PlayerID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, game)
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	game, err := s.service.GetGameState(r.Context(), mux.Vars(r)["id"], id.PlayerID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, game)
}

func (s *Server) handleSubmitAction(w http.ResponseWriter, r *http.Request) {
	var action engine.Action
	if err := decodeBody(r, &action); err != nil {
		respondErr(w, err)
		return
	}
	action.Choice = engine.FinalChoice(strings.ToUpper(string(action.Choice)))

	id := identityFrom(r.Context())
	if err := s.service.SubmitAction(r.Context(), mux.Vars(r)["id"], id.PlayerID, action); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleAdjustTime(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id,omitempty"`
		Seconds  int    `json:"seconds"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondErr(w, err)
		return
	}

	id := identityFrom(r.Context())
	if req.PlayerID != "" && req.PlayerID != id.PlayerID {
		respondError(w, http.StatusForbidden, "player_id does not match the token", engine.ReasonNotAuthorized)
		return
	}

	game, err := s.service.AdjustTime(r.Context(), mux.Vars(r)["id"], id.PlayerID, req.Seconds)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, game)
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	record, err := s.service.GetResult(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	limit := defaultResultsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer", engine.ReasonMalformed)
			return
		}
		limit = min(n, maxResultsLimit)
	}
	records, err := s.service.ListResults(r.Context(), limit)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": records,
		"count":   len(records),
	})
}

// Lookup Handlers

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	role, ok := engine.ParseRole(r.URL.Query().Get("role"))
	if !ok {
		respondError(w, http.StatusBadRequest, "unknown role", engine.ReasonMalformed)
		return
	}
	phase, ok := engine.ParsePhase(r.URL.Query().Get("phase"))
	if !ok {
		respondError(w, http.StatusBadRequest, "unknown phase", engine.ReasonMalformed)
		return
	}

	lines, err := s.service.Suggestions(r.Context(), role, phase)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"role":        role,
		"phase":       phase,
		"suggestions": lines,
	})
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.service.ListRules(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"total": len(rules),
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id, err := s.identify(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error(), engine.ReasonNotAuthorized)
		return
	}

	s.hub.ServeWS(w, r, id.PlayerID)

	// Reconnecting players resume their room feed
	if game, err := s.service.GetGameByPlayer(r.Context(), id.PlayerID); err == nil {
		s.hub.Subscribe(id.PlayerID, router.RoomTopic(game.RoomID))
	}
}

// HandleFrame implements websocket.Dispatcher
func (s *Server) HandleFrame(ctx context.Context, playerID string, frame websocket.Frame) error {
	switch frame.Action {
	case websocket.FrameJoinRoom:
		_, err := s.service.JoinRoom(ctx, frame.RoomID, s.seat(playerID))
		return err

	case websocket.FrameSubscribe:
		room, err := s.service.GetRoom(ctx, frame.RoomID)
		if err != nil {
			return err
		}
		if !room.Member(playerID) {
			return &engine.AuthorizationError{Reason: engine.ReasonNotAuthorized, Message: "not a member of this room"}
		}
		return nil

	case websocket.FrameLeaveRoom:
		_, err := s.service.LeaveRoom(ctx, frame.RoomID, playerID)
		return err

	case websocket.FrameChat:
		return s.service.SendChat(ctx, frame.RoomID, playerID, frame.Content)

	case websocket.FrameAdjustTime:
		gameID, err := s.gameFor(ctx, playerID, frame.GameID)
		if err != nil {
			return err
		}
		_, err = s.service.AdjustTime(ctx, gameID, playerID, frame.Seconds)
		return err

	case websocket.FrameVote, websocket.FrameFinalVote, websocket.FrameNightAction:
		gameID, err := s.gameFor(ctx, playerID, frame.GameID)
		if err != nil {
			return err
		}
		return s.service.SubmitAction(ctx, gameID, playerID, engine.Action{
			Type:     engine.ActionType(frame.Action),
			TargetID: frame.TargetID,
			Choice:   engine.FinalChoice(strings.ToUpper(frame.Choice)),
			Phase:    engine.Phase(frame.Phase),
		})
	}
	return &engine.ValidationError{Reason: engine.ReasonMalformed, Message: fmt.Sprintf("unknown action %q", frame.Action)}
}

// gameFor resolves the game a frame targets, defaulting to the player's own
func (s *Server) gameFor(ctx context.Context, playerID, gameID string) (string, error) {
	if gameID != "" {
		return gameID, nil
	}
	game, err := s.service.GetGameByPlayer(ctx, playerID)
	if err != nil {
		return "", err
	}
	return game.GameID, nil
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "healthy",
	}
	if s.stats != nil {
		for name, n := range s.stats() {
			health[name] = n
		}
	}
	respondJSON(w, http.StatusOK, health)
}
