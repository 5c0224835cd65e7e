package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/wricardo/mafia-game/game/engine"
	"github.com/wricardo/mafia-game/router"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Outbound deliveries buffered between publishers and the hub loop.
	outboundBuffer = 1024

	// Time allowed for one inbound frame to be handled.
	frameTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Players connect from any origin; identity comes from the bearer token
		return true
	},
}

// Inbound frame actions
const (
	FrameJoinRoom    = "join-room"
	FrameLeaveRoom   = "leave-room"
	FrameSubscribe   = "subscribe"
	FrameChat        = "send-chat"
	FrameVote        = "cast-vote"
	FrameFinalVote   = "cast-final-vote"
	FrameNightAction = "submit-night-action"
	FrameAdjustTime  = "adjust-time"
)

// Frame is an inbound message from a player
type Frame struct {
	Action   string `json:"action"`
	RoomID   string `json:"room_id,omitempty"`
	GameID   string `json:"game_id,omitempty"`
	TargetID string `json:"target_id,omitempty"`
	Choice   string `json:"choice,omitempty"`
	Content  string `json:"content,omitempty"`
	Seconds  int    `json:"seconds,omitempty"`
	Phase    string `json:"phase,omitempty"`
}

// Dispatcher handles inbound frames on behalf of an authenticated player
type Dispatcher interface {
	HandleFrame(ctx context.Context, playerID string, frame Frame) error
}

// errorFrame is written back to the sender when a frame fails
type errorFrame struct {
	Type      string    `json:"type"`
	Timestamp int64     `json:"timestamp"`
	Data      errorData `json:"data"`
}

type errorData struct {
	Action string        `json:"action"`
	Error  string        `json:"error"`
	Reason engine.Reason `json:"reason"`
}

// Client is one WebSocket connection of a player
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	playerID string
	topics   map[string]bool
}

type subscription struct {
	playerID string
	topic    string
	leave    bool
}

type delivery struct {
	topic   string
	userID  string
	payload []byte
}

// Hub maintains the set of active clients, their topic subscriptions and
// delivers published envelopes
type Hub struct {
	// Registered clients by topic and by player
	topics map[string]map[*Client]bool
	users  map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	subscribe  chan subscription
	outbound   chan delivery
	done       chan struct{}
	dispatcher Dispatcher
}

// NewHub creates a new WebSocket hub; inbound frames go to dispatcher
func NewHub(dispatcher Dispatcher) *Hub {
	return &Hub{
		topics:     make(map[string]map[*Client]bool),
		users:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		subscribe:  make(chan subscription),
		outbound:   make(chan delivery, outboundBuffer),
		done:       make(chan struct{}),
		dispatcher: dispatcher,
	}
}

// SetDispatcher sets the inbound frame handler. It must be called before Run.
func (h *Hub) SetDispatcher(d Dispatcher) {
	h.dispatcher = d
}

// Run starts the hub's event loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.users {
				for client := range clients {
					h.unregisterClient(client)
				}
			}
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case sub := <-h.subscribe:
			h.applySubscription(sub)

		case d := <-h.outbound:
			h.deliver(d)
		}
	}
}

// ServeWS upgrades an authenticated request into a player connection
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, playerID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 256),
		playerID: playerID,
		topics:   make(map[string]bool),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// PublishTopic queues payload for every subscriber of topic. It never blocks;
// when the hub is saturated the payload is dropped.
func (h *Hub) PublishTopic(topic string, payload []byte) {
	h.enqueue(delivery{topic: topic, payload: payload})
}

// PublishUser queues payload for every connection of a player
func (h *Hub) PublishUser(userID string, payload []byte) {
	h.enqueue(delivery{userID: userID, payload: payload})
}

// Subscribe adds every connection of playerID to topic
func (h *Hub) Subscribe(playerID, topic string) {
	h.changeSubscription(subscription{playerID: playerID, topic: topic})
}

// Unsubscribe removes every connection of playerID from topic
func (h *Hub) Unsubscribe(playerID, topic string) {
	h.changeSubscription(subscription{playerID: playerID, topic: topic, leave: true})
}

func (h *Hub) enqueue(d delivery) {
	select {
	case h.outbound <- d:
	default:
		log.Warn().Str("topic", d.topic).Str("user_id", d.userID).Msg("outbound queue full, message dropped")
	}
}

func (h *Hub) changeSubscription(sub subscription) {
	select {
	case h.subscribe <- sub:
	case <-h.done:
	}
}

// registerClient adds a client to its player's queue
func (h *Hub) registerClient(client *Client) {
	if h.users[client.playerID] == nil {
		h.users[client.playerID] = make(map[*Client]bool)
	}
	h.users[client.playerID][client] = true

	log.Debug().
		Str("player_id", client.playerID).
		Int("connections", len(h.users[client.playerID])).
		Msg("client registered")
}

// unregisterClient removes a client from its player and every topic
func (h *Hub) unregisterClient(client *Client) {
	clients, ok := h.users[client.playerID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.users, client.playerID)
	}

	for topic := range client.topics {
		h.removeFromTopic(client, topic)
	}
	close(client.send)

	log.Debug().Str("player_id", client.playerID).Msg("client unregistered")
}

func (h *Hub) applySubscription(sub subscription) {
	for client := range h.users[sub.playerID] {
		if sub.leave {
			h.removeFromTopic(client, sub.topic)
			delete(client.topics, sub.topic)
			continue
		}
		if h.topics[sub.topic] == nil {
			h.topics[sub.topic] = make(map[*Client]bool)
		}
		h.topics[sub.topic][client] = true
		client.topics[sub.topic] = true
	}
}

func (h *Hub) removeFromTopic(client *Client, topic string) {
	if subs, ok := h.topics[topic]; ok {
		delete(subs, client)
		// Clean up empty topics
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

// deliver writes a payload to every matching client. A client whose send
// buffer is full is disconnected.
func (h *Hub) deliver(d delivery) {
	targets := h.topics[d.topic]
	if d.userID != "" {
		targets = h.users[d.userID]
	}
	for client := range targets {
		select {
		case client.send <- d.payload:
		default:
			log.Warn().Str("player_id", client.playerID).Msg("client too slow, disconnecting")
			h.unregisterClient(client)
		}
	}
}

// handleFrame runs one inbound frame and keeps subscriptions in step with
// room membership. A joiner is subscribed first so it sees its own
// USER_JOINED.
func (c *Client) handleFrame(frame Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), frameTimeout)
	defer cancel()

	topic := router.RoomTopic(frame.RoomID)
	joining := frame.Action == FrameJoinRoom || frame.Action == FrameSubscribe
	if joining && frame.RoomID != "" {
		c.hub.Subscribe(c.playerID, topic)
	}

	var err error
	if c.hub.dispatcher == nil {
		err = &engine.ValidationError{Reason: engine.ReasonMalformed, Message: "frames are not accepted"}
	} else {
		err = c.hub.dispatcher.HandleFrame(ctx, c.playerID, frame)
	}
	if err != nil {
		if joining {
			c.hub.Unsubscribe(c.playerID, topic)
		}
		c.reject(frame.Action, err)
		return
	}

	if frame.Action == FrameLeaveRoom {
		c.hub.Unsubscribe(c.playerID, topic)
	}
}

func (c *Client) reject(action string, err error) {
	payload, _ := json.Marshal(errorFrame{
		Type:      "ERROR",
		Timestamp: time.Now().UnixMilli(),
		Data:      errorData{Action: action, Error: err.Error(), Reason: engine.ReasonOf(err)},
	})
	c.hub.PublishUser(c.playerID, payload)
}

// readPump pumps frames from the WebSocket connection to the dispatcher
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("player_id", c.playerID).Msg("websocket read failed")
			}
			break
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.reject("", &engine.ValidationError{Reason: engine.ReasonMalformed, Message: "invalid JSON frame"})
			continue
		}
		c.handleFrame(frame)
	}
}

// writePump pumps messages from the hub to the WebSocket connection, one
// envelope per WebSocket message
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
