// Package websocket provides the WebSocket transport of the Mafia server.
//
// The package implements:
//   - Authenticated player connections (several per player are allowed)
//   - Room topics and per-player queues
//   - Non-blocking publishing for the router
//   - Inbound action frames handed to a Dispatcher
//
// Architecture:
//
// A central Hub owns every connection and subscription. Its event loop is
// the only goroutine that touches them, so registration, subscription and
// delivery never race. Each connection has a read pump that decodes frames
// and a write pump that writes one envelope per WebSocket message.
//
// Message Protocol:
//
//   - Incoming: {"action": "cast-vote", "game_id": "...", "target_id": "p3"}
//   - Outgoing: router envelopes {"type", "game_id", "room_id", "timestamp", "data"}
//   - Failed frames: {"type": "ERROR", "data": {"action", "error", "reason"}}
//
// A successful join-room (or subscribe, used after a reconnect) subscribes
// every connection of the player to the room topic; leave-room removes it.
//
// Usage:
//
//	hub := websocket.NewHub(dispatcher)
//	go hub.Run(ctx)
//	events := router.New(hub)
//
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, playerIDFromToken(r))
//	})
//
// Backpressure:
//
// Publishing never blocks: deliveries are buffered and dropped with a
// warning when the buffer is full. A connection that cannot keep up with its
// own send buffer is disconnected; the client reconnects and fetches the
// game state over REST.
package websocket
