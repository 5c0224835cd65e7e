package service

import (
	"time"

	"github.com/wricardo/mafia-game/game/engine"
)

// GameInfo is a game as seen by one viewer
type GameInfo struct {
	GameID           string          `json:"game_id"`
	RoomID           string          `json:"room_id"`
	RulesName        string          `json:"rules"`
	CreatedAt        time.Time       `json:"created_at"`
	RemainingSeconds int             `json:"remaining_time"`
	State            engine.Snapshot `json:"state"`
}

// GameSummary is the public listing entry of a running game
type GameSummary struct {
	GameID       string       `json:"game_id"`
	RoomID       string       `json:"room_id"`
	RulesName    string       `json:"rules"`
	Phase        engine.Phase `json:"game_phase"`
	CurrentPhase int          `json:"current_phase"`
	Players      int          `json:"players"`
	Alive        int          `json:"alive"`
	CreatedAt    time.Time    `json:"created_at"`
}

// RoomInfo is a room roster plus the game currently running in it
type RoomInfo struct {
	Room
	GameID string `json:"game_id,omitempty"`
}

// RulesInfo describes an available rules preset
type RulesInfo struct {
	Filename    string                `json:"filename"`
	RulesID     string                `json:"rules_id"` // identifier to pass to game creation
	Name        string                `json:"name"`
	Description string                `json:"description"`
	MinPlayers  int                   `json:"min_players"`
	Durations   engine.PhaseDurations `json:"durations"`
}

// GameRecord is the persisted result of a finished game, roles revealed
type GameRecord struct {
	GameID    string          `json:"game_id"`
	RoomID    string          `json:"room_id"`
	RulesName string          `json:"rules"`
	Winner    engine.Faction  `json:"winner,omitempty"`
	Aborted   bool            `json:"aborted"`
	Rounds    int             `json:"rounds"`
	Players   []engine.Player `json:"players"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   time.Time       `json:"ended_at"`
}

// NewGameRecord captures a finished game's state
func NewGameRecord(g *Game, state engine.State) *GameRecord {
	return &GameRecord{
		GameID:    g.ID,
		RoomID:    g.RoomID,
		RulesName: g.RulesName,
		Winner:    state.Winner,
		Aborted:   state.Winner == "",
		Rounds:    state.CurrentPhase,
		Players:   state.Players,
		StartedAt: time.UnixMilli(state.StartedAt),
		EndedAt:   time.UnixMilli(state.EndedAt),
	}
}
