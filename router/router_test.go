package router_test

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/wricardo/mafia-game/game/engine"
	"github.com/wricardo/mafia-game/router"
	"github.com/wricardo/mafia-game/router/mocks"
)

var meta = engine.EventMeta{GameID: "g1", RoomID: "AB12", Timestamp: 1700000000000}

func TestRoute(t *testing.T) {
	tests := []struct {
		name   string
		event  engine.Event
		topics int
		users  []string
	}{
		{"game start", engine.GameStarted{EventMeta: meta}, 1, nil},
		{"phase switch", engine.PhaseSwitched{EventMeta: meta, Phase: engine.PhaseNightAction}, 1, nil},
		{"timer", engine.TimerUpdated{EventMeta: meta}, 1, nil},
		{"vote update", engine.VoteResultUpdated{EventMeta: meta}, 1, nil},
		{"final vote", engine.FinalVoteResult{EventMeta: meta}, 1, nil},
		{"night result", engine.NightResult{EventMeta: meta}, 1, nil},
		{"system", engine.SystemMessage{EventMeta: meta, Content: "hi"}, 1, nil},
		{"game ended", engine.GameEnded{EventMeta: meta}, 1, nil},
		{"game aborted", engine.GameAborted{EventMeta: meta}, 1, nil},
		{"user joined", engine.RosterChanged{EventMeta: meta, Joined: true, PlayerID: "p9"}, 1, nil},
		{"public chat", engine.ChatMessage{EventMeta: meta, Channel: engine.ChannelPublic}, 1, nil},
		{"role assigned", engine.RoleAssigned{EventMeta: meta, PlayerID: "p1", Role: engine.RoleMafia}, 0, []string{"p1"}},
		{"police result", engine.PoliceResult{EventMeta: meta, Investigation: engine.Investigation{PoliceID: "p3", TargetID: "p1", IsMafia: true}}, 0, []string{"p3"}},
		{"night ack", engine.NightActionAck{EventMeta: meta, PlayerID: "p2", TargetID: "p4"}, 0, []string{"p2"}},
		{"rejection", engine.ActionRejected{EventMeta: meta, PlayerID: "p5", Reason: engine.ReasonNotAlive}, 0, []string{"p5"}},
		{"mafia chat", engine.ChatMessage{EventMeta: meta, Channel: engine.ChannelMafia, Recipients: []string{"p1", "p6"}}, 0, []string{"p1", "p6"}},
		{"dead chat", engine.ChatMessage{EventMeta: meta, Channel: engine.ChannelDead, Recipients: []string{"p2"}}, 0, []string{"p2"}},
		{"dead chat with nobody to hear", engine.ChatMessage{EventMeta: meta, Channel: engine.ChannelDead}, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs := router.Route([]engine.Event{tt.event})

			topics := 0
			var users []string
			for _, env := range envs {
				if env.Type != tt.event.Type() {
					t.Errorf("Expected type %s, got %s", tt.event.Type(), env.Type)
				}
				if env.Private() {
					users = append(users, env.UserID)
					continue
				}
				topics++
				if env.Topic != "room:AB12" {
					t.Errorf("Expected topic room:AB12, got %s", env.Topic)
				}
			}
			if topics != tt.topics {
				t.Errorf("Expected %d topic envelopes, got %d", tt.topics, topics)
			}
			if fmt.Sprint(users) != fmt.Sprint(tt.users) {
				t.Errorf("Expected users %v, got %v", tt.users, users)
			}
		})
	}
}

func TestRoute_EnvelopeFormat(t *testing.T) {
	envs := router.Route([]engine.Event{engine.NightActionAck{EventMeta: meta, PlayerID: "p2", TargetID: "p4", TargetName: "Dee"}})
	if len(envs) != 1 {
		t.Fatalf("Expected 1 envelope, got %d", len(envs))
	}

	raw, err := json.Marshal(envs[0])
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if decoded["type"] != "NIGHT_ACTION_ACK" || decoded["game_id"] != "g1" || decoded["room_id"] != "AB12" {
		t.Errorf("Unexpected envelope header: %s", raw)
	}
	if decoded["timestamp"].(float64) != 1700000000000 {
		t.Errorf("Expected timestamp to be carried, got %v", decoded["timestamp"])
	}
	data, ok := decoded["data"].(map[string]any)
	if !ok || data["target_name"] != "Dee" {
		t.Errorf("Expected data to carry the event, got %s", raw)
	}
	if _, leaked := decoded["Topic"]; leaked {
		t.Error("Routing fields must not be serialized")
	}
}

func TestDispatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockPublisher(ctrl)

	gomock.InOrder(
		pub.EXPECT().PublishTopic("room:AB12", gomock.Any()),
		pub.EXPECT().PublishUser("p1", gomock.Any()),
		pub.EXPECT().PublishUser("p6", gomock.Any()),
	)

	router.New(pub).Dispatch([]engine.Event{
		engine.SystemMessage{EventMeta: meta, Content: "Night falls"},
		engine.ChatMessage{EventMeta: meta, Channel: engine.ChannelMafia, Recipients: []string{"p1", "p6"}, Content: "p3?"},
	})
}

func TestDispatch_NoRoleLeaksToTopics(t *testing.T) {
	seats := make([]engine.PlayerSeat, 8)
	for i := range seats {
		seats[i] = engine.PlayerSeat{ID: fmt.Sprintf("p%d", i+1), Name: fmt.Sprintf("Player %d", i+1)}
	}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m, err := engine.NewMachine("g1", "AB12", seats, nil,
		engine.WithClock(func() time.Time { return now }),
		engine.WithRand(rand.New(rand.NewSource(3))))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var events []engine.Event
	out, err := m.Start()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	events = append(events, out.Events...)
	for i := 0; i < 2; i++ {
		out, err := m.HandleTimerExpired(m.Token())
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		events = append(events, out.Events...)
	}
	if m.Phase() != engine.PhaseNightAction {
		t.Fatalf("Expected NIGHT_ACTION, got %s", m.Phase())
	}

	ctrl := gomock.NewController(t)
	pub := mocks.NewMockPublisher(ctrl)
	private := 0
	pub.EXPECT().PublishUser(gomock.Any(), gomock.Any()).Do(func(string, []byte) { private++ }).AnyTimes()
	pub.EXPECT().PublishTopic("room:AB12", gomock.Any()).Do(func(_ string, payload []byte) {
		if strings.Contains(string(payload), `"role":`) {
			t.Errorf("Role leaked to room topic: %s", payload)
		}
	}).AnyTimes()

	router.New(pub).Dispatch(events)

	if private != len(seats) {
		t.Errorf("Expected %d private role deliveries, got %d", len(seats), private)
	}
}
