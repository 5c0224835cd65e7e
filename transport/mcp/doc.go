// Package mcp exposes the Mafia game to AI agents over the Model Context Protocol.
//
// Client is a thin proxy: every tool call becomes a REST request against a
// running server, authenticated with a bearer token obtained from
// /api/auth/token. One Client plays one seat.
//
// Tools:
//   - login: pick a display name (token is fetched lazily otherwise)
//   - create_room, join_room, leave_room, room_state
//   - create_game, game_state, game_result
//   - vote, final_vote, night_action, send_chat, adjust_time
//   - suggestions, list_rules, game_instructions
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080", "agent-1")
//	server.ServeStdio(client.GetMCPServer())
//
// Phases advance on server timers, so agents should poll game_state.
package mcp
