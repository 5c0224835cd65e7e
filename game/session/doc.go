// Package session keeps the in-memory state of the server: running games,
// room rosters and, on disk, the results of finished games.
//
// Registry implements service.GameRegistry. Each game gets a uuid and is
// indexed by id, by room (at most one running game per room) and by player so
// a reconnecting client can find its game. Rooms implements
// service.RoomDirectory with short 4-character codes. FilePersistence
// implements service.ResultStore.
//
// Concurrency:
//
// Registry and Rooms are safe for concurrent use. The registry only guards its
// indexes; access to a game's machine goes through the game's own mutex so
// separate games never contend.
//
// Usage:
//
//	registry := session.NewRegistry()
//	rooms := session.NewRooms()
//
//	room, joined, err := rooms.Create(engine.PlayerSeat{ID: "p1", Name: "Ana"})
//	...
//	game, err := registry.Create(room.ID, room.Members, engine.DefaultRules())
package session
