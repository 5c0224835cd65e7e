package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/mafia-game/game/engine"
)

// recordingDispatcher records frames and fails the ones listed in errs
type recordingDispatcher struct {
	mu     sync.Mutex
	frames []Frame
	errs   map[string]error
	seen   chan Frame
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{errs: make(map[string]error), seen: make(chan Frame, 16)}
}

func (d *recordingDispatcher) HandleFrame(ctx context.Context, playerID string, frame Frame) error {
	d.mu.Lock()
	d.frames = append(d.frames, frame)
	err := d.errs[frame.Action]
	d.mu.Unlock()
	d.seen <- frame
	return err
}

func newTestClient(hub *Hub, playerID string, buffer int) *Client {
	return &Client{
		hub:      hub,
		playerID: playerID,
		send:     make(chan []byte, buffer),
		topics:   make(map[string]bool),
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nil)

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.topics == nil || hub.users == nil {
		t.Error("Hub maps are nil")
	}
	if hub.register == nil || hub.unregister == nil || hub.subscribe == nil {
		t.Error("Hub channels are nil")
	}
	if cap(hub.outbound) != outboundBuffer {
		t.Errorf("Expected outbound buffer %d, got %d", outboundBuffer, cap(hub.outbound))
	}
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub(nil)
	client := newTestClient(hub, "p1", 4)

	hub.registerClient(client)
	if !hub.users["p1"][client] {
		t.Error("Client was not registered for its player")
	}

	hub.applySubscription(subscription{playerID: "p1", topic: "room:AB12"})
	if !hub.topics["room:AB12"][client] {
		t.Error("Client was not subscribed to topic")
	}

	hub.unregisterClient(client)
	if _, exists := hub.users["p1"]; exists {
		t.Error("Player should have been cleaned up after last client unregistered")
	}
	if _, exists := hub.topics["room:AB12"]; exists {
		t.Error("Topic should have been cleaned up after last subscriber left")
	}
	if _, ok := <-client.send; ok {
		t.Error("Expected send channel to be closed")
	}

	// Unregistering twice is a no-op
	hub.unregisterClient(client)
}

func TestHubDeliver(t *testing.T) {
	hub := NewHub(nil)
	phone := newTestClient(hub, "p1", 4)
	laptop := newTestClient(hub, "p1", 4)
	other := newTestClient(hub, "p2", 4)
	outsider := newTestClient(hub, "p3", 4)

	for _, c := range []*Client{phone, laptop, other, outsider} {
		hub.registerClient(c)
	}
	hub.applySubscription(subscription{playerID: "p1", topic: "room:AB12"})
	hub.applySubscription(subscription{playerID: "p2", topic: "room:AB12"})

	t.Run("topic reaches every subscribed connection", func(t *testing.T) {
		hub.deliver(delivery{topic: "room:AB12", payload: []byte(`{"type":"SYSTEM"}`)})
		for name, c := range map[string]*Client{"phone": phone, "laptop": laptop, "other": other} {
			if len(c.send) != 1 {
				t.Errorf("Expected %s to receive 1 message, got %d", name, len(c.send))
			}
			<-c.send
		}
		if len(outsider.send) != 0 {
			t.Error("Outsider should not receive room messages")
		}
	})

	t.Run("user queue reaches only that player", func(t *testing.T) {
		hub.deliver(delivery{userID: "p2", payload: []byte(`{"type":"ROLE_ASSIGNED"}`)})
		if len(other.send) != 1 {
			t.Errorf("Expected p2 to receive 1 message, got %d", len(other.send))
		}
		if len(phone.send)+len(laptop.send)+len(outsider.send) != 0 {
			t.Error("Private message reached another player")
		}
		<-other.send
	})

	t.Run("unsubscribe", func(t *testing.T) {
		hub.applySubscription(subscription{playerID: "p1", topic: "room:AB12", leave: true})
		hub.deliver(delivery{topic: "room:AB12", payload: []byte(`{}`)})
		if len(phone.send)+len(laptop.send) != 0 {
			t.Error("Unsubscribed player still receives room messages")
		}
		if len(other.send) != 1 {
			t.Error("Remaining subscriber should still receive room messages")
		}
	})
}

func TestHubSlowClientDisconnected(t *testing.T) {
	hub := NewHub(nil)
	slow := newTestClient(hub, "p1", 0)
	hub.registerClient(slow)

	hub.deliver(delivery{userID: "p1", payload: []byte(`{}`)})

	if _, exists := hub.users["p1"]; exists {
		t.Error("Slow client should have been unregistered")
	}
}

func TestHubPublishNeverBlocks(t *testing.T) {
	hub := NewHub(nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < outboundBuffer+10; i++ {
			hub.PublishTopic("room:AB12", []byte(`{}`))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked without a running hub")
	}
}

func startHub(t *testing.T, d Dispatcher) (*Hub, string) {
	t.Helper()
	hub := NewHub(d)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("player"))
	}))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url, playerID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url+"?player="+playerID, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read WebSocket message: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

func waitFrame(t *testing.T, d *recordingDispatcher) Frame {
	t.Helper()
	select {
	case f := <-d.seen:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("Frame never reached the dispatcher")
	}
	return Frame{}
}

func TestWebSocketJoinAndReceive(t *testing.T) {
	d := newRecordingDispatcher()
	hub, url := startHub(t, d)
	conn := dial(t, url, "p1")

	if err := conn.WriteJSON(Frame{Action: FrameJoinRoom, RoomID: "AB12"}); err != nil {
		t.Fatalf("Failed to write frame: %v", err)
	}
	if f := waitFrame(t, d); f.Action != FrameJoinRoom || f.RoomID != "AB12" {
		t.Errorf("Unexpected frame: %+v", f)
	}

	hub.PublishTopic("room:AB12", []byte(`{"type":"USER_JOINED"}`))
	if msg := readJSON(t, conn); msg["type"] != "USER_JOINED" {
		t.Errorf("Expected USER_JOINED, got %v", msg)
	}

	hub.PublishUser("p1", []byte(`{"type":"ROLE_ASSIGNED"}`))
	if msg := readJSON(t, conn); msg["type"] != "ROLE_ASSIGNED" {
		t.Errorf("Expected ROLE_ASSIGNED, got %v", msg)
	}
}

func TestWebSocketRejectedFrame(t *testing.T) {
	d := newRecordingDispatcher()
	d.errs[FrameVote] = &engine.PhaseMismatchError{Current: engine.PhaseNightAction, Message: "votes are only accepted during DAY_VOTING"}
	_, url := startHub(t, d)
	conn := dial(t, url, "p1")

	if err := conn.WriteJSON(Frame{Action: FrameVote, GameID: "g1", TargetID: "p2"}); err != nil {
		t.Fatalf("Failed to write frame: %v", err)
	}
	waitFrame(t, d)

	msg := readJSON(t, conn)
	if msg["type"] != "ERROR" {
		t.Fatalf("Expected ERROR frame, got %v", msg)
	}
	data := msg["data"].(map[string]any)
	if data["reason"] != string(engine.ReasonInvalidPhase) || data["action"] != FrameVote {
		t.Errorf("Unexpected error data: %v", data)
	}
}

func TestWebSocketMalformedFrame(t *testing.T) {
	d := newRecordingDispatcher()
	_, url := startHub(t, d)
	conn := dial(t, url, "p1")

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("Failed to write frame: %v", err)
	}

	msg := readJSON(t, conn)
	data := msg["data"].(map[string]any)
	if msg["type"] != "ERROR" || data["reason"] != string(engine.ReasonMalformed) {
		t.Errorf("Expected MALFORMED error, got %v", msg)
	}
}
