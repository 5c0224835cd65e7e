// Package api provides the HTTP REST API of the Mafia server.
//
// Endpoints:
//
// Public:
//   - GET  /api/health - Health check
//   - POST /api/auth/token - Issue a bearer token for {player_id?, name}
//   - GET  /api/rules - List rules presets
//   - GET  /api/suggestions?role=&phase= - Canned chat lines
//   - GET  /api/rooms/{roomId}/invite.png - QR code of the join link
//
// Rooms (bearer token required):
//   - POST /api/rooms - Create a room, caller becomes host
//   - GET  /api/rooms/{roomId} - Roster
//   - POST /api/rooms/{roomId}/join, /leave, /chat
//   - GET  /api/rooms/{roomId}/game - Current game of the room (reconnect)
//
// Games (bearer token required):
//   - POST /api/games - Start a game {room_id, rules?} (host only)
//   - GET  /api/games - List running games
//   - GET  /api/games/mine - The caller's game
//   - GET  /api/games/{id} - Game state as the caller may see it
//   - POST /api/games/{id}/actions - Vote, final vote, night action or chat
//   - POST /api/games/{id}/time - Extend or shorten the discussion {seconds}
//   - GET  /api/games/{id}/result - Persisted result of a finished game
//
// WebSocket:
//   - GET /ws?token= - Event stream and inbound action frames
//
// The player is always taken from the token; request bodies never choose
// who acts.
//
// Error Handling:
//
// Errors are returned as JSON with a machine-readable reason:
//
//	{
//	  "error": "not authorized: only the host can start the game",
//	  "reason": "NOT_AUTHORIZED"
//	}
//
// Validation errors map to 400, authorization to 403, phase mismatches and
// conflicts to 409 and unknown ids to 404.
package api
