package session

import (
	"crypto/rand"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wricardo/mafia-game/game/engine"
	"github.com/wricardo/mafia-game/game/service"
)

// Rooms is the in-memory room directory. The first member is host; when the
// host leaves the longest-standing member takes over, and an empty room is
// closed.
type Rooms struct {
	rooms map[string]*service.Room
	now   func() time.Time
	mu    sync.Mutex
}

// NewRooms creates an empty directory
func NewRooms() *Rooms {
	return &Rooms{
		rooms: make(map[string]*service.Room),
		now:   time.Now,
	}
}

// Create opens a room with host as its only member
func (d *Rooms) Create(host engine.PlayerSeat) (service.Room, engine.RosterChanged, error) {
	if err := validSeat(host); err != nil {
		return service.Room{}, engine.RosterChanged{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.generateRoomID()
	for d.rooms[id] != nil {
		id = d.generateRoomID()
	}

	host.IsHost = true
	room := &service.Room{
		ID:        id,
		HostID:    host.ID,
		Members:   []engine.PlayerSeat{host},
		CreatedAt: d.now(),
	}
	d.rooms[id] = room
	return copyRoom(room), d.roster(room, host, true), nil
}

// Get returns a roster snapshot (case-insensitive id)
func (d *Rooms) Get(roomID string) (service.Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[strings.ToLower(roomID)]
	if !ok {
		return service.Room{}, &engine.NotFoundError{Kind: "room", ID: roomID}
	}
	return copyRoom(room), nil
}

// Join adds a player. Joining twice is harmless.
func (d *Rooms) Join(roomID string, player engine.PlayerSeat) (service.Room, engine.RosterChanged, error) {
	if err := validSeat(player); err != nil {
		return service.Room{}, engine.RosterChanged{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[strings.ToLower(roomID)]
	if !ok {
		return service.Room{}, engine.RosterChanged{}, &engine.NotFoundError{Kind: "room", ID: roomID}
	}

	for _, m := range room.Members {
		if m.ID == player.ID {
			return copyRoom(room), d.roster(room, m, true), nil
		}
	}
	if len(room.Members) >= engine.MaxPlayers {
		return service.Room{}, engine.RosterChanged{}, &engine.ValidationError{
			Reason:  engine.ReasonMalformed,
			Message: "room is full",
		}
	}

	player.IsHost = false
	room.Members = append(room.Members, player)
	return copyRoom(room), d.roster(room, player, true), nil
}

// Leave removes a player, re-electing the host and closing an empty room
func (d *Rooms) Leave(roomID, playerID string) (service.Room, engine.RosterChanged, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := strings.ToLower(roomID)
	room, ok := d.rooms[key]
	if !ok {
		return service.Room{}, engine.RosterChanged{}, &engine.NotFoundError{Kind: "room", ID: roomID}
	}

	idx := -1
	for i, m := range room.Members {
		if m.ID == playerID {
			idx = i
		}
	}
	if idx < 0 {
		return service.Room{}, engine.RosterChanged{}, &engine.NotFoundError{Kind: "room member", ID: playerID}
	}

	leaver := room.Members[idx]
	room.Members = append(room.Members[:idx], room.Members[idx+1:]...)

	if leaver.IsHost && len(room.Members) > 0 {
		room.Members[0].IsHost = true
		room.HostID = room.Members[0].ID
	}
	if len(room.Members) == 0 {
		room.HostID = ""
		delete(d.rooms, key)
	}
	return copyRoom(room), d.roster(room, leaver, false), nil
}

// List returns the open rooms, oldest first
func (d *Rooms) List() []service.Room {
	d.mu.Lock()
	result := make([]service.Room, 0, len(d.rooms))
	for _, room := range d.rooms {
		result = append(result, copyRoom(room))
	}
	d.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Count returns the number of open rooms
func (d *Rooms) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rooms)
}

func (d *Rooms) roster(room *service.Room, who engine.PlayerSeat, joined bool) engine.RosterChanged {
	return engine.RosterChanged{
		EventMeta:  engine.EventMeta{RoomID: room.ID, Timestamp: d.now().UnixMilli()},
		Joined:     joined,
		PlayerID:   who.ID,
		PlayerName: who.Name,
		HostID:     room.HostID,
		Roster:     append([]engine.PlayerSeat(nil), room.Members...),
	}
}

// generateRoomID generates a random 4-character room code
func (d *Rooms) generateRoomID() string {
	bytes := make([]byte, 2)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

func copyRoom(room *service.Room) service.Room {
	c := *room
	c.Members = append([]engine.PlayerSeat(nil), room.Members...)
	return c
}

func validSeat(seat engine.PlayerSeat) error {
	if strings.TrimSpace(seat.ID) == "" {
		return &engine.ValidationError{Reason: engine.ReasonMalformed, Message: "player id is required"}
	}
	return nil
}
