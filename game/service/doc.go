// Package service provides the business logic layer of the Mafia server.
//
// GameService sits between the transports (HTTP, WebSocket, MCP) and the
// engine. It owns the mutation path of every game:
//
//	lock entry -> engine.Machine -> arm timer -> dispatch events -> unlock
//
// so a player action and a timer expiry for the same game are applied one
// after the other, never interleaved, while different games run in parallel.
// Dispatch only enqueues; network writes happen outside the lock.
//
// Collaborators are interfaces declared here and implemented elsewhere:
// GameRegistry and RoomDirectory by game/session, ConfigManager by
// game/config, TimerScheduler by game/timer, EventDispatcher by router and
// ResultStore by game/session or store/postgres.
//
// Usage:
//
//	svc := service.NewGameService(service.Dependencies{
//		Games:   session.NewRegistry(),
//		Rooms:   session.NewRooms(),
//		Configs: config.NewManager("configs"),
//		Timers:  timer.NewScheduler(),
//		Events:  router.New(hub),
//	})
//
//	room, _ := svc.CreateRoom(ctx, engine.PlayerSeat{ID: "p1", Name: "Ana"})
//	game, err := svc.CreateGame(ctx, room.ID, "p1", "classic")
//
// Finished games are written to the ResultStore in the background and
// removed from the registry once the rules' end grace period has passed.
package service
