// Package router addresses machine events and hands them to a publisher.
//
// Route is pure: it turns events into envelopes, each bound for exactly one
// destination. Public events go to the room topic; role assignments, police
// results, night acknowledgements and rejections go to a single player's
// queue; mafia and dead chat is fanned out to the recipients the machine
// listed. Nothing private is ever addressed to a topic.
package router

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/wricardo/mafia-game/game/engine"
)

//go:generate go tool mockgen -destination=./mocks/publisher_mock.go -package=mocks . Publisher

// Publisher delivers encoded envelopes. Implementations must not block on
// network I/O.
type Publisher interface {
	PublishTopic(topic string, payload []byte)
	PublishUser(userID string, payload []byte)
}

// Envelope is the outbound wire format. Exactly one of Topic and UserID is set.
type Envelope struct {
	Type      engine.EventType `json:"type"`
	GameID    string           `json:"game_id,omitempty"`
	RoomID    string           `json:"room_id,omitempty"`
	Timestamp int64            `json:"timestamp"`
	Data      engine.Event     `json:"data"`

	Topic  string `json:"-"`
	UserID string `json:"-"`
}

// Private reports whether the envelope goes to a single player
func (e Envelope) Private() bool {
	return e.UserID != ""
}

// RoomTopic names the public topic of a room
func RoomTopic(roomID string) string {
	return "room:" + roomID
}

// Router routes events to a Publisher
type Router struct {
	pub Publisher
}

// New creates a router publishing through pub
func New(pub Publisher) *Router {
	return &Router{pub: pub}
}

// Dispatch routes and publishes events in order
func (r *Router) Dispatch(events []engine.Event) {
	for _, env := range Route(events) {
		payload, err := json.Marshal(env)
		if err != nil {
			log.Error().Err(err).Str("type", string(env.Type)).Msg("failed to encode envelope")
			continue
		}
		if env.Private() {
			r.pub.PublishUser(env.UserID, payload)
		} else {
			r.pub.PublishTopic(env.Topic, payload)
		}
	}
}

// Route addresses every event. Unknown event kinds are dropped.
func Route(events []engine.Event) []Envelope {
	var out []Envelope
	for _, ev := range events {
		envs, err := route(ev)
		if err != nil {
			log.Warn().Err(err).Msg("event dropped")
			continue
		}
		out = append(out, envs...)
	}
	return out
}

func route(ev engine.Event) ([]Envelope, error) {
	switch e := ev.(type) {
	case engine.GameStarted, engine.PhaseSwitched, engine.TimerUpdated,
		engine.VoteResultUpdated, engine.FinalVoteResult, engine.NightResult,
		engine.SystemMessage, engine.GameEnded, engine.GameAborted, engine.RosterChanged:
		return []Envelope{public(ev)}, nil

	case engine.RoleAssigned:
		return []Envelope{private(ev, e.PlayerID)}, nil
	case engine.PoliceResult:
		return []Envelope{private(ev, e.PoliceID)}, nil
	case engine.NightActionAck:
		return []Envelope{private(ev, e.PlayerID)}, nil
	case engine.ActionRejected:
		return []Envelope{private(ev, e.PlayerID)}, nil

	case engine.ChatMessage:
		if e.Channel == engine.ChannelPublic {
			return []Envelope{public(ev)}, nil
		}
		envs := make([]Envelope, 0, len(e.Recipients))
		for _, id := range e.Recipients {
			envs = append(envs, private(ev, id))
		}
		return envs, nil
	}
	return nil, fmt.Errorf("no route for %T", ev)
}

func envelope(ev engine.Event) Envelope {
	meta := ev.Meta()
	return Envelope{
		Type:      ev.Type(),
		GameID:    meta.GameID,
		RoomID:    meta.RoomID,
		Timestamp: meta.Timestamp,
		Data:      ev,
	}
}

func public(ev engine.Event) Envelope {
	env := envelope(ev)
	env.Topic = RoomTopic(env.RoomID)
	return env
}

func private(ev engine.Event, userID string) Envelope {
	env := envelope(ev)
	env.UserID = userID
	return env
}
