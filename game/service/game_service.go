package service

import (
	"context"
	"sync"
	"time"

	"github.com/wricardo/mafia-game/game/engine"
	"github.com/wricardo/mafia-game/game/timer"
)

// GameService defines all room and game operations
type GameService interface {
	// Rooms
	CreateRoom(ctx context.Context, host engine.PlayerSeat) (*RoomInfo, error)
	GetRoom(ctx context.Context, roomID string) (*RoomInfo, error)
	ListRooms(ctx context.Context) ([]*RoomInfo, error)
	JoinRoom(ctx context.Context, roomID string, player engine.PlayerSeat) (*RoomInfo, error)
	LeaveRoom(ctx context.Context, roomID, playerID string) (*RoomInfo, error)
	SendChat(ctx context.Context, roomID, playerID, content string) error

	// Games
	CreateGame(ctx context.Context, roomID, requesterID, rulesName string) (*GameInfo, error)
	GetGameState(ctx context.Context, gameID, viewerID string) (*GameInfo, error)
	GetGameByRoom(ctx context.Context, roomID, viewerID string) (*GameInfo, error)
	GetGameByPlayer(ctx context.Context, playerID string) (*GameInfo, error)
	ListGames(ctx context.Context) ([]*GameSummary, error)
	SubmitAction(ctx context.Context, gameID, actorID string, action engine.Action) error
	AdjustTime(ctx context.Context, gameID, playerID string, seconds int) (*GameInfo, error)
	AbortRoom(ctx context.Context, roomID, reason string) error

	// Lookups
	Suggestions(ctx context.Context, role engine.Role, phase engine.Phase) ([]string, error)
	ListRules(ctx context.Context) ([]*RulesInfo, error)
	GetResult(ctx context.Context, gameID string) (*GameRecord, error)
	ListResults(ctx context.Context, limit int) ([]*GameRecord, error)

	// Housekeeping
	BroadcastTimers(ctx context.Context)
	CleanupEnded(ctx context.Context) int
}

// GameRegistry owns the running games
type GameRegistry interface {
	Create(roomID string, seats []engine.PlayerSeat, rules *engine.Rules) (*Game, error)
	Get(gameID string) (*Game, error)
	GetByRoom(roomID string) (*Game, error)
	GetByPlayer(playerID string) (*Game, error)
	List() []*Game
	Remove(gameID string) error
}

// RoomDirectory keeps the pre-game rosters. Every roster change is returned
// as an event for the caller to route.
type RoomDirectory interface {
	Create(host engine.PlayerSeat) (Room, engine.RosterChanged, error)
	Get(roomID string) (Room, error)
	Join(roomID string, player engine.PlayerSeat) (Room, engine.RosterChanged, error)
	Leave(roomID, playerID string) (Room, engine.RosterChanged, error)
	List() []Room
}

// ConfigManager handles rules preset loading
type ConfigManager interface {
	LoadRules(name string) (*engine.Rules, error)
	ListRules() ([]*RulesInfo, error)
	GetDefault() *engine.Rules
}

// TimerScheduler arms one phase deadline per game
type TimerScheduler interface {
	Schedule(token engine.TimerToken, onExpire timer.ExpireFunc)
	Cancel(gameID string)
}

// EventDispatcher addresses and publishes events. It must not block on I/O.
type EventDispatcher interface {
	Dispatch(events []engine.Event)
}

// ResultStore persists finished games
type ResultStore interface {
	SaveResult(ctx context.Context, record *GameRecord) error
	GetResult(ctx context.Context, gameID string) (*GameRecord, error)
	ListResults(ctx context.Context, limit int) ([]*GameRecord, error)
}

// SuggestionSource supplies canned chat lines per role and phase
type SuggestionSource interface {
	Suggestions(ctx context.Context, role engine.Role, phase engine.Phase) ([]string, error)
}

// Game is a registry entry. Every access to Machine must hold the embedded
// mutex.
type Game struct {
	sync.Mutex

	ID        string
	RoomID    string
	RulesName string
	Machine   *engine.Machine
	CreatedAt time.Time
}

// Room is a roster snapshot
type Room struct {
	ID        string              `json:"room_id"`
	HostID    string              `json:"host_id"`
	Members   []engine.PlayerSeat `json:"members"`
	CreatedAt time.Time           `json:"created_at"`
}

// Member reports whether playerID is in the room
func (r Room) Member(playerID string) bool {
	for _, m := range r.Members {
		if m.ID == playerID {
			return true
		}
	}
	return false
}
