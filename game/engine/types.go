package engine

import "strings"

// Role is the hidden identity dealt to a player at game start
type Role string

const (
	RoleMafia   Role = "MAFIA"
	RoleDoctor  Role = "DOCTOR"
	RolePolice  Role = "POLICE"
	RoleCitizen Role = "CITIZEN"
)

// Faction is the team a role plays for; it is also the winner value
type Faction string

const (
	FactionMafia    Faction = "MAFIA"
	FactionCitizens Faction = "CITIZENS"
)

// Phase is one state of the day/night cycle
type Phase string

const (
	PhaseStarting        Phase = "STARTING"
	PhaseDayDiscussion   Phase = "DAY_DISCUSSION"
	PhaseDayVoting       Phase = "DAY_VOTING"
	PhaseDayFinalDefense Phase = "DAY_FINAL_DEFENSE"
	PhaseDayFinalVoting  Phase = "DAY_FINAL_VOTING"
	PhaseNightAction     Phase = "NIGHT_ACTION"
	PhaseGameEnded       Phase = "GAME_ENDED"

	// Validation constants
	MinPlayers      = 4
	MaxPlayers      = 20
	MaxChatLength   = 500
	MinPhaseSeconds = 5
	MaxPhaseSeconds = 600
)

// Roles lists every role in deal order
var Roles = []Role{RoleMafia, RoleDoctor, RolePolice, RoleCitizen}

// Phases lists every phase in cycle order
var Phases = []Phase{
	PhaseStarting,
	PhaseDayDiscussion,
	PhaseDayVoting,
	PhaseDayFinalDefense,
	PhaseDayFinalVoting,
	PhaseNightAction,
	PhaseGameEnded,
}

// ParseRole converts a case-insensitive role name
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Roles {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// ParsePhase converts a case-insensitive phase name
func ParsePhase(s string) (Phase, bool) {
	p := Phase(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Phases {
		if p == known {
			return p, true
		}
	}
	return "", false
}

// Faction returns the team the role wins with
func (r Role) Faction() Faction {
	if r == RoleMafia {
		return FactionMafia
	}
	return FactionCitizens
}

// Description is the text delivered with a private role assignment
func (r Role) Description() string {
	switch r {
	case RoleMafia:
		return "Each night, agree with the other mafia on one player to eliminate. Win when the town is gone."
	case RoleDoctor:
		return "Each night, protect one player (yourself included) from the mafia."
	case RolePolice:
		return "Each night, investigate one player to learn whether they are mafia."
	case RoleCitizen:
		return "Find the mafia during the day and vote them out."
	default:
		return ""
	}
}

// HasNightAction reports whether the role acts during NIGHT_ACTION
func (r Role) HasNightAction() bool {
	return r == RoleMafia || r == RoleDoctor || r == RolePolice
}

// IsDay reports whether the phase belongs to the day half of the cycle
func (p Phase) IsDay() bool {
	switch p {
	case PhaseDayDiscussion, PhaseDayVoting, PhaseDayFinalDefense, PhaseDayFinalVoting:
		return true
	}
	return false
}

// order is the position of the phase in the cycle
func (p Phase) order() int {
	for i, known := range Phases {
		if p == known {
			return i
		}
	}
	return -1
}

// Timed reports whether the phase ends on a deadline
func (p Phase) Timed() bool {
	return p != PhaseStarting && p != PhaseGameEnded
}

// FinalChoice is a ballot in the final (execution) vote
type FinalChoice string

const (
	ChoiceAgree    FinalChoice = "AGREE"
	ChoiceDisagree FinalChoice = "DISAGREE"
)

// ActionType names a player-initiated action against a running game
type ActionType string

const (
	ActionVote        ActionType = "cast-vote"
	ActionFinalVote   ActionType = "cast-final-vote"
	ActionNightAction ActionType = "submit-night-action"
	ActionChat        ActionType = "send-chat"
)

// ChatChannel is where an accepted chat line is delivered
type ChatChannel string

const (
	ChannelPublic ChatChannel = "PUBLIC"
	ChannelMafia  ChatChannel = "MAFIA"
	ChannelDead   ChatChannel = "DEAD"
)

// PlayerSeat is a roster entry handed to the machine before roles exist
type PlayerSeat struct {
	ID     string `json:"player_id"`
	Name   string `json:"player_name"`
	IsHost bool   `json:"is_host"`
}

// Player is a participant in a running game
type Player struct {
	ID     string `json:"player_id"`
	Name   string `json:"player_name"`
	Role   Role   `json:"role"`
	Alive  bool   `json:"alive"`
	IsHost bool   `json:"is_host"`
}

// PlayerView is a player as seen by a particular viewer; Role is blank when hidden
type PlayerView struct {
	ID     string `json:"player_id"`
	Name   string `json:"player_name"`
	Role   Role   `json:"role,omitempty"`
	Alive  bool   `json:"alive"`
	IsHost bool   `json:"is_host"`
}

// Action is an inbound player action. Phase, when set, is the phase the
// client believed was current and is used to drop late arrivals.
type Action struct {
	Type     ActionType  `json:"type"`
	TargetID string      `json:"target_id,omitempty"`
	Choice   FinalChoice `json:"choice,omitempty"`
	Content  string      `json:"content,omitempty"`
	Phase    Phase       `json:"phase,omitempty"`
}

// State is the authoritative state of one game
type State struct {
	GameID            string                 `json:"game_id"`
	RoomID            string                 `json:"room_id"`
	Players           []Player               `json:"players"`
	Phase             Phase                  `json:"game_phase"`
	CurrentPhase      int                    `json:"current_phase"`
	PhaseEndTime      int64                  `json:"phase_end_time"`
	Votes             map[string]string      `json:"votes"`
	FinalVotes        map[string]FinalChoice `json:"final_votes"`
	NightActions      map[string]string      `json:"night_actions"`
	VotedPlayerID     string                 `json:"voted_player_id,omitempty"`
	VotedPlayerName   string                 `json:"voted_player_name,omitempty"`
	TimeExtensionUsed bool                   `json:"time_extension_used"`
	Winner            Faction                `json:"winner,omitempty"`
	StartedAt         int64                  `json:"started_at"`
	EndedAt           int64                  `json:"ended_at,omitempty"`
}

// Snapshot is a viewer-filtered copy of State safe to send to a client
type Snapshot struct {
	GameID            string         `json:"game_id"`
	RoomID            string         `json:"room_id"`
	Phase             Phase          `json:"game_phase"`
	CurrentPhase      int            `json:"current_phase"`
	PhaseEndTime      int64          `json:"phase_end_time"`
	Players           []PlayerView   `json:"players"`
	VoteCounts        map[string]int `json:"vote_counts,omitempty"`
	VotedPlayerID     string         `json:"voted_player_id,omitempty"`
	VotedPlayerName   string         `json:"voted_player_name,omitempty"`
	TimeExtensionUsed bool           `json:"time_extension_used"`
	Winner            Faction        `json:"winner,omitempty"`
	MyRole            Role           `json:"my_role,omitempty"`
}

// TimerToken identifies one phase instance. A timer firing with a token that
// no longer matches the machine is stale and ignored.
type TimerToken struct {
	GameID   string `json:"game_id"`
	Phase    Phase  `json:"phase"`
	Round    int    `json:"round"`
	Deadline int64  `json:"deadline"`
}
