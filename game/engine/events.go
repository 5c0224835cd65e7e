package engine

// EventType is the wire name of an outbound event
type EventType string

const (
	EventGameStart        EventType = "GAME_START"
	EventRoleAssigned     EventType = "ROLE_ASSIGNED"
	EventPhaseSwitched    EventType = "PHASE_SWITCHED"
	EventTimerUpdate      EventType = "TIMER_UPDATE"
	EventVoteResultUpdate EventType = "VOTE_RESULT_UPDATE"
	EventFinalVoteResult  EventType = "FINAL_VOTE_RESULT"
	EventNightResult      EventType = "NIGHT_RESULT"
	EventPoliceResult     EventType = "POLICE_RESULT"
	EventNightActionAck   EventType = "NIGHT_ACTION_ACK"
	EventActionRejected   EventType = "ACTION_REJECTED"
	EventSystem           EventType = "SYSTEM"
	EventChat             EventType = "CHAT"
	EventMafiaChat        EventType = "MAFIA_CHAT"
	EventDeadChat         EventType = "DEAD_CHAT"
	EventGameEnded        EventType = "GAME_ENDED"
	EventGameAborted      EventType = "GAME_ABORTED"
	EventUserJoined       EventType = "USER_JOINED"
	EventUserLeft         EventType = "USER_LEFT"
)

// Event is an output of the machine (or the room directory) waiting to be
// addressed and published
type Event interface {
	Type() EventType
	Meta() EventMeta
}

// EventMeta is carried by every event
type EventMeta struct {
	GameID    string `json:"game_id,omitempty"`
	RoomID    string `json:"room_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func (m EventMeta) Meta() EventMeta { return m }

type GameStarted struct {
	EventMeta
	Snapshot Snapshot `json:"snapshot"`
}

// RoleAssigned is private to PlayerID. Teammates is only filled for MAFIA.
type RoleAssigned struct {
	EventMeta
	PlayerID        string   `json:"player_id"`
	Role            Role     `json:"role"`
	RoleDescription string   `json:"role_description"`
	Teammates       []string `json:"teammates,omitempty"`
}

type PhaseSwitched struct {
	EventMeta
	Phase        Phase        `json:"game_phase"`
	CurrentPhase int          `json:"current_phase"`
	PhaseEndTime int64        `json:"phase_end_time"`
	Players      []PlayerView `json:"players"`
}

type TimerUpdated struct {
	EventMeta
	Phase            Phase  `json:"game_phase"`
	CurrentPhase     int    `json:"current_phase"`
	PhaseEndTime     int64  `json:"phase_end_time"`
	RemainingSeconds int    `json:"remaining_time"`
	SystemMessage    string `json:"system_message,omitempty"`
}

type VoteResultUpdated struct {
	EventMeta
	Players         []PlayerView   `json:"players"`
	VoteCounts      map[string]int `json:"vote_counts"`
	VotedPlayerID   string         `json:"voted_player_id,omitempty"`
	VotedPlayerName string         `json:"voted_player_name,omitempty"`
	TieCandidates   []string       `json:"tie_breaker_candidates,omitempty"`
}

type FinalVoteResult struct {
	EventMeta
	AccusedID   string       `json:"accused_id"`
	AccusedName string       `json:"accused_name"`
	Agree       int          `json:"agree"`
	Disagree    int          `json:"disagree"`
	Executed    bool         `json:"executed"`
	Players     []PlayerView `json:"players"`
}

// NightResult is the public morning announcement; it never names who was protected
type NightResult struct {
	EventMeta
	KilledPlayerID   string       `json:"killed_player_id,omitempty"`
	KilledPlayerName string       `json:"killed_player_name,omitempty"`
	Message          string       `json:"message"`
	Players          []PlayerView `json:"players"`
}

type PoliceResult struct {
	EventMeta
	Investigation
}

type NightActionAck struct {
	EventMeta
	PlayerID   string `json:"player_id"`
	TargetID   string `json:"target_id"`
	TargetName string `json:"target_name"`
}

type ActionRejected struct {
	EventMeta
	PlayerID string     `json:"player_id"`
	Action   ActionType `json:"action"`
	Reason   Reason     `json:"reason"`
	Message  string     `json:"message"`
}

type SystemMessage struct {
	EventMeta
	Content string `json:"content"`
}

// ChatMessage carries its own recipient list for the MAFIA and DEAD channels
type ChatMessage struct {
	EventMeta
	Channel    ChatChannel `json:"channel"`
	SenderID   string      `json:"sender_id"`
	SenderName string      `json:"sender_name"`
	Content    string      `json:"content"`
	Recipients []string    `json:"-"`
}

type GameEnded struct {
	EventMeta
	Winner  Faction      `json:"winner"`
	Message string       `json:"message"`
	Players []PlayerView `json:"players"`
}

type GameAborted struct {
	EventMeta
	Reason string `json:"reason"`
}

type RosterChanged struct {
	EventMeta
	Joined     bool         `json:"-"`
	PlayerID   string       `json:"player_id"`
	PlayerName string       `json:"player_name"`
	HostID     string       `json:"host_id"`
	Roster     []PlayerSeat `json:"roster"`
}

func (GameStarted) Type() EventType       { return EventGameStart }
func (RoleAssigned) Type() EventType      { return EventRoleAssigned }
func (PhaseSwitched) Type() EventType     { return EventPhaseSwitched }
func (TimerUpdated) Type() EventType      { return EventTimerUpdate }
func (VoteResultUpdated) Type() EventType { return EventVoteResultUpdate }
func (FinalVoteResult) Type() EventType   { return EventFinalVoteResult }
func (NightResult) Type() EventType       { return EventNightResult }
func (PoliceResult) Type() EventType      { return EventPoliceResult }
func (NightActionAck) Type() EventType    { return EventNightActionAck }
func (ActionRejected) Type() EventType    { return EventActionRejected }
func (SystemMessage) Type() EventType     { return EventSystem }
func (GameEnded) Type() EventType         { return EventGameEnded }
func (GameAborted) Type() EventType       { return EventGameAborted }

func (c ChatMessage) Type() EventType {
	switch c.Channel {
	case ChannelMafia:
		return EventMafiaChat
	case ChannelDead:
		return EventDeadChat
	}
	return EventChat
}

func (r RosterChanged) Type() EventType {
	if r.Joined {
		return EventUserJoined
	}
	return EventUserLeft
}
