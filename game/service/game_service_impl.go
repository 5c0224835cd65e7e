package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wricardo/mafia-game/game/engine"
)

// resultSaveTimeout bounds the background write of a finished game
const resultSaveTimeout = 5 * time.Second

// Dependencies are the collaborators of the game service. Results and
// Suggestions are optional.
type Dependencies struct {
	Games       GameRegistry
	Rooms       RoomDirectory
	Configs     ConfigManager
	Timers      TimerScheduler
	Events      EventDispatcher
	Results     ResultStore
	Suggestions SuggestionSource
	Now         func() time.Time
}

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	games       GameRegistry
	rooms       RoomDirectory
	configs     ConfigManager
	timers      TimerScheduler
	events      EventDispatcher
	results     ResultStore
	suggestions SuggestionSource
	now         func() time.Time
}

// NewGameService creates a new game service instance
func NewGameService(deps Dependencies) GameService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &gameServiceImpl{
		games:       deps.Games,
		rooms:       deps.Rooms,
		configs:     deps.Configs,
		timers:      deps.Timers,
		events:      deps.Events,
		results:     deps.Results,
		suggestions: deps.Suggestions,
		now:         now,
	}
}

// CreateRoom opens a room with the caller as host
func (s *gameServiceImpl) CreateRoom(ctx context.Context, host engine.PlayerSeat) (*RoomInfo, error) {
	room, joined, err := s.rooms.Create(host)
	if err != nil {
		return nil, err
	}
	s.events.Dispatch([]engine.Event{joined})

	log.Info().Str("room_id", room.ID).Str("host_id", room.HostID).Msg("room created")
	return &RoomInfo{Room: room}, nil
}

// GetRoom returns a roster and the game running in it, if any
func (s *gameServiceImpl) GetRoom(ctx context.Context, roomID string) (*RoomInfo, error) {
	room, err := s.rooms.Get(roomID)
	if err != nil {
		return nil, err
	}
	return s.roomInfo(room), nil
}

// JoinRoom adds a player to a room roster
func (s *gameServiceImpl) JoinRoom(ctx context.Context, roomID string, player engine.PlayerSeat) (*RoomInfo, error) {
	room, joined, err := s.rooms.Join(roomID, player)
	if err != nil {
		return nil, err
	}
	s.events.Dispatch([]engine.Event{joined})
	return s.roomInfo(room), nil
}

// LeaveRoom removes a player from a room. A player leaving a running game
// forfeits and the game follows the room's new host. The last player
// leaving closes the room and aborts its game.
func (s *gameServiceImpl) LeaveRoom(ctx context.Context, roomID, playerID string) (*RoomInfo, error) {
	room, left, err := s.rooms.Leave(roomID, playerID)
	if err != nil {
		return nil, err
	}
	s.events.Dispatch([]engine.Event{left})

	if g, err := s.games.GetByRoom(room.ID); err == nil {
		g.Lock()
		if g.Machine.HasPlayer(playerID) {
			out, err := g.Machine.HandleLeave(playerID)
			if err != nil {
				log.Warn().Err(err).Str("game_id", g.ID).Str("player_id", playerID).Msg("leave not applied")
			} else {
				s.apply(g, out)
			}
		}
		g.Machine.TransferHost(room.HostID)
		g.Unlock()
	}

	if len(room.Members) == 0 {
		if err := s.AbortRoom(ctx, room.ID, "room closed"); err != nil && engine.ReasonOf(err) != engine.ReasonNotFound {
			return nil, err
		}
	}
	return s.roomInfo(room), nil
}

// SendChat posts a chat line. While a game runs the machine decides the
// channel; in the lobby and after the end it goes to the whole room.
func (s *gameServiceImpl) SendChat(ctx context.Context, roomID, playerID, content string) error {
	if g, err := s.games.GetByRoom(roomID); err == nil {
		g.Lock()
		defer g.Unlock()
		if g.Machine.HasPlayer(playerID) && !g.Machine.Ended() {
			return s.act(g, playerID, engine.Action{Type: engine.ActionChat, Content: content})
		}
	}

	room, err := s.rooms.Get(roomID)
	if err != nil {
		return err
	}
	var sender *engine.PlayerSeat
	for i := range room.Members {
		if room.Members[i].ID == playerID {
			sender = &room.Members[i]
		}
	}
	if sender == nil {
		return &engine.AuthorizationError{Reason: engine.ReasonNotAuthorized, Message: "not a member of this room"}
	}

	content = strings.TrimSpace(content)
	if content == "" || len(content) > engine.MaxChatLength {
		return &engine.ValidationError{Reason: engine.ReasonMalformed, Message: fmt.Sprintf("message must be 1-%d characters", engine.MaxChatLength)}
	}

	s.events.Dispatch([]engine.Event{engine.ChatMessage{
		EventMeta:  engine.EventMeta{RoomID: room.ID, Timestamp: s.now().UnixMilli()},
		Channel:    engine.ChannelPublic,
		SenderID:   sender.ID,
		SenderName: sender.Name,
		Content:    content,
	}})
	return nil
}

// CreateGame deals roles to the room roster and starts the first day. Only
// the room host may start a game.
func (s *gameServiceImpl) CreateGame(ctx context.Context, roomID, requesterID, rulesName string) (*GameInfo, error) {
	room, err := s.rooms.Get(roomID)
	if err != nil {
		return nil, err
	}
	if room.HostID != requesterID {
		return nil, &engine.AuthorizationError{Reason: engine.ReasonNotAuthorized, Message: "only the host can start the game"}
	}

	rules := s.configs.GetDefault()
	if rulesName != "" {
		rules, err = s.configs.LoadRules(rulesName)
		if err != nil {
			return nil, fmt.Errorf("rules '%s': %w", rulesName, err)
		}
	}

	g, err := s.games.Create(room.ID, room.Members, rules)
	if err != nil {
		return nil, err
	}

	g.Lock()
	defer g.Unlock()

	out, err := g.Machine.Start()
	if err != nil {
		_ = s.games.Remove(g.ID)
		return nil, fmt.Errorf("failed to start game: %w", err)
	}
	s.apply(g, out)

	log.Info().
		Str("game_id", g.ID).
		Str("room_id", g.RoomID).
		Str("rules", g.RulesName).
		Int("players", len(room.Members)).
		Msg("game started")

	return s.info(g, requesterID), nil
}

// GetGameState returns the game as viewerID may see it
func (s *gameServiceImpl) GetGameState(ctx context.Context, gameID, viewerID string) (*GameInfo, error) {
	g, err := s.games.Get(gameID)
	if err != nil {
		return nil, err
	}
	g.Lock()
	defer g.Unlock()
	return s.info(g, viewerID), nil
}

// GetGameByRoom returns the game running in a room
func (s *gameServiceImpl) GetGameByRoom(ctx context.Context, roomID, viewerID string) (*GameInfo, error) {
	g, err := s.games.GetByRoom(roomID)
	if err != nil {
		return nil, err
	}
	g.Lock()
	defer g.Unlock()
	return s.info(g, viewerID), nil
}

// GetGameByPlayer finds the game a player is seated in, for reconnects
func (s *gameServiceImpl) GetGameByPlayer(ctx context.Context, playerID string) (*GameInfo, error) {
	g, err := s.games.GetByPlayer(playerID)
	if err != nil {
		return nil, err
	}
	g.Lock()
	defer g.Unlock()
	return s.info(g, playerID), nil
}

// ListRooms returns every open room with the game running in it, if any
func (s *gameServiceImpl) ListRooms(ctx context.Context) ([]*RoomInfo, error) {
	rooms := s.rooms.List()
	result := make([]*RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		result = append(result, s.roomInfo(room))
	}
	return result, nil
}

// ListGames returns all registered games
func (s *gameServiceImpl) ListGames(ctx context.Context) ([]*GameSummary, error) {
	games := s.games.List()
	result := make([]*GameSummary, 0, len(games))

	for _, g := range games {
		g.Lock()
		state := g.Machine.State()
		g.Unlock()

		alive := 0
		for _, p := range state.Players {
			if p.Alive {
				alive++
			}
		}
		result = append(result, &GameSummary{
			GameID:       g.ID,
			RoomID:       g.RoomID,
			RulesName:    g.RulesName,
			Phase:        state.Phase,
			CurrentPhase: state.CurrentPhase,
			Players:      len(state.Players),
			Alive:        alive,
			CreatedAt:    g.CreatedAt,
		})
	}
	return result, nil
}

// SubmitAction applies a vote, final vote, night action or chat. Rejections
// are sent privately to the actor and returned; late actions for a finished
// phase are dropped without error.
func (s *gameServiceImpl) SubmitAction(ctx context.Context, gameID, actorID string, action engine.Action) error {
	g, err := s.games.Get(gameID)
	if err != nil {
		return err
	}
	g.Lock()
	defer g.Unlock()
	return s.act(g, actorID, action)
}

// AdjustTime extends or shortens the current discussion
func (s *gameServiceImpl) AdjustTime(ctx context.Context, gameID, playerID string, seconds int) (*GameInfo, error) {
	g, err := s.games.Get(gameID)
	if err != nil {
		return nil, err
	}
	g.Lock()
	defer g.Unlock()

	out, err := g.Machine.HandleTimeAdjust(playerID, seconds)
	if err != nil {
		return nil, err
	}
	s.apply(g, out)

	log.Info().Str("game_id", g.ID).Str("player_id", playerID).Int("seconds", seconds).Msg("phase time adjusted")
	return s.info(g, playerID), nil
}

// AbortRoom ends the game running in a room without a winner
func (s *gameServiceImpl) AbortRoom(ctx context.Context, roomID, reason string) error {
	g, err := s.games.GetByRoom(roomID)
	if err != nil {
		return err
	}
	g.Lock()
	defer g.Unlock()

	out := g.Machine.Abort(reason)
	s.apply(g, out)
	if out.Ended {
		log.Warn().Str("game_id", g.ID).Str("room_id", roomID).Str("reason", reason).Msg("game aborted")
	}
	return nil
}

// Suggestions returns canned chat lines for a role in a phase
func (s *gameServiceImpl) Suggestions(ctx context.Context, role engine.Role, phase engine.Phase) ([]string, error) {
	if s.suggestions == nil {
		return []string{}, nil
	}
	return s.suggestions.Suggestions(ctx, role, phase)
}

// ListRules returns the available rules presets
func (s *gameServiceImpl) ListRules(ctx context.Context) ([]*RulesInfo, error) {
	return s.configs.ListRules()
}

// GetResult returns the persisted result of a finished game
func (s *gameServiceImpl) GetResult(ctx context.Context, gameID string) (*GameRecord, error) {
	if s.results == nil {
		return nil, &engine.NotFoundError{Kind: "result", ID: gameID}
	}
	return s.results.GetResult(ctx, gameID)
}

// ListResults returns the most recent finished games, newest first
func (s *gameServiceImpl) ListResults(ctx context.Context, limit int) ([]*GameRecord, error) {
	if s.results == nil {
		return []*GameRecord{}, nil
	}
	return s.results.ListResults(ctx, limit)
}

// BroadcastTimers publishes the remaining time of every running phase
func (s *gameServiceImpl) BroadcastTimers(ctx context.Context) {
	for _, g := range s.games.List() {
		g.Lock()
		if g.Machine.Phase().Timed() {
			s.events.Dispatch([]engine.Event{g.Machine.TimerUpdate("")})
		}
		g.Unlock()
	}
}

// CleanupEnded removes finished games whose end grace period has passed
func (s *gameServiceImpl) CleanupEnded(ctx context.Context) int {
	now := s.now()
	removed := 0

	for _, g := range s.games.List() {
		g.Lock()
		expired := false
		if g.Machine.Ended() {
			endedAt := time.UnixMilli(g.Machine.State().EndedAt)
			expired = !now.Before(endedAt.Add(g.Machine.Rules().EndGrace()))
		}
		g.Unlock()

		if !expired {
			continue
		}
		s.timers.Cancel(g.ID)
		if err := s.games.Remove(g.ID); err != nil {
			log.Warn().Err(err).Str("game_id", g.ID).Msg("failed to remove ended game")
			continue
		}
		removed++
		log.Info().Str("game_id", g.ID).Msg("ended game removed")
	}
	return removed
}

// act runs one player action; the caller holds g's lock
func (s *gameServiceImpl) act(g *Game, actorID string, action engine.Action) error {
	out, err := g.Machine.HandlePlayerAction(actorID, action)
	if err != nil {
		if engine.IsStale(err) {
			log.Debug().Str("game_id", g.ID).Str("player_id", actorID).Err(err).Msg("stale action dropped")
			return nil
		}
		s.events.Dispatch([]engine.Event{engine.ActionRejected{
			EventMeta: engine.EventMeta{GameID: g.ID, RoomID: g.RoomID, Timestamp: s.now().UnixMilli()},
			PlayerID:  actorID,
			Action:    action.Type,
			Reason:    engine.ReasonOf(err),
			Message:   err.Error(),
		}})
		return err
	}
	s.apply(g, out)
	return nil
}

// onTimer is the TimerScheduler callback
func (s *gameServiceImpl) onTimer(token engine.TimerToken) {
	g, err := s.games.Get(token.GameID)
	if err != nil {
		return
	}
	g.Lock()
	defer g.Unlock()

	out, err := g.Machine.HandleTimerExpired(token)
	if err != nil {
		if engine.IsStale(err) {
			log.Debug().Str("game_id", g.ID).Str("phase", string(token.Phase)).Msg("stale timer ignored")
			return
		}
		log.Error().Err(err).Str("game_id", g.ID).Msg("timer expiry failed")
		return
	}
	s.apply(g, out)
}

// apply arms the next deadline, persists a finished game and routes the
// events. The caller holds g's lock.
func (s *gameServiceImpl) apply(g *Game, out engine.Outcome) {
	if out.Timer != nil {
		s.timers.Schedule(*out.Timer, s.onTimer)
	}
	if out.Ended {
		s.timers.Cancel(g.ID)
		s.saveResult(NewGameRecord(g, g.Machine.State()))
	}
	if len(out.Events) > 0 {
		s.events.Dispatch(out.Events)
	}
}

func (s *gameServiceImpl) saveResult(record *GameRecord) {
	log.Info().
		Str("game_id", record.GameID).
		Str("winner", string(record.Winner)).
		Bool("aborted", record.Aborted).
		Int("rounds", record.Rounds).
		Msg("game ended")

	if s.results == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), resultSaveTimeout)
		defer cancel()
		if err := s.results.SaveResult(ctx, record); err != nil {
			log.Error().Err(err).Str("game_id", record.GameID).Msg("failed to save game result")
		}
	}()
}

func (s *gameServiceImpl) info(g *Game, viewerID string) *GameInfo {
	return &GameInfo{
		GameID:           g.ID,
		RoomID:           g.RoomID,
		RulesName:        g.RulesName,
		CreatedAt:        g.CreatedAt,
		RemainingSeconds: g.Machine.TimerUpdate("").RemainingSeconds,
		State:            g.Machine.Snapshot(viewerID),
	}
}

func (s *gameServiceImpl) roomInfo(room Room) *RoomInfo {
	info := &RoomInfo{Room: room}
	if g, err := s.games.GetByRoom(room.ID); err == nil {
		info.GameID = g.ID
	}
	return info
}
