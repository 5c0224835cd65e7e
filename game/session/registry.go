package session

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wricardo/mafia-game/game/engine"
	"github.com/wricardo/mafia-game/game/service"
)

var (
	ErrGameInProgress = errors.New("room already has an active game")
	ErrInvalidRoomID  = errors.New("invalid room ID")
)

// Registry owns the running games, indexed by id, room and player
type Registry struct {
	games    map[string]*service.Game
	byRoom   map[string]string
	byPlayer map[string]string
	opts     []engine.Option
	now      func() time.Time
	mu       sync.RWMutex
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithMachineOptions passes options to every machine the registry creates
func WithMachineOptions(opts ...engine.Option) RegistryOption {
	return func(r *Registry) { r.opts = append(r.opts, opts...) }
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		games:    make(map[string]*service.Game),
		byRoom:   make(map[string]string),
		byPlayer: make(map[string]string),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create deals a new game for a room. It fails while the room's previous game
// is still running.
func (r *Registry) Create(roomID string, seats []engine.PlayerSeat, rules *engine.Rules) (*service.Game, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, ErrInvalidRoomID
	}
	key := strings.ToLower(roomID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if prevID, ok := r.byRoom[key]; ok {
		if prev := r.games[prevID]; prev != nil {
			prev.Lock()
			running := !prev.Machine.Ended()
			prev.Unlock()
			if running {
				return nil, ErrGameInProgress
			}
		}
	}

	id := uuid.NewString()
	m, err := engine.NewMachine(id, roomID, seats, rules, r.opts...)
	if err != nil {
		return nil, err
	}

	g := &service.Game{
		ID:        id,
		RoomID:    roomID,
		RulesName: m.Rules().Name,
		Machine:   m,
		CreatedAt: r.now(),
	}
	r.games[id] = g
	r.byRoom[key] = id
	for _, seat := range seats {
		r.byPlayer[seat.ID] = id
	}
	return g, nil
}

// Get returns a game by id
func (r *Registry) Get(gameID string) (*service.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if g, ok := r.games[gameID]; ok {
		return g, nil
	}
	return nil, &engine.NotFoundError{Kind: "game", ID: gameID}
}

// GetByRoom returns the latest game of a room (case-insensitive)
func (r *Registry) GetByRoom(roomID string) (*service.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, ok := r.byRoom[strings.ToLower(roomID)]; ok {
		return r.games[id], nil
	}
	return nil, &engine.NotFoundError{Kind: "game for room", ID: roomID}
}

// GetByPlayer returns the latest game a player was dealt into
func (r *Registry) GetByPlayer(playerID string) (*service.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, ok := r.byPlayer[playerID]; ok {
		return r.games[id], nil
	}
	return nil, &engine.NotFoundError{Kind: "game for player", ID: playerID}
}

// List returns all games, oldest first
func (r *Registry) List() []*service.Game {
	r.mu.RLock()
	result := make([]*service.Game, 0, len(r.games))
	for _, g := range r.games {
		result = append(result, g)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Remove drops a game and every index pointing at it
func (r *Registry) Remove(gameID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.games[gameID]
	if !ok {
		return &engine.NotFoundError{Kind: "game", ID: gameID}
	}
	delete(r.games, gameID)

	key := strings.ToLower(g.RoomID)
	if r.byRoom[key] == gameID {
		delete(r.byRoom, key)
	}
	for playerID, id := range r.byPlayer {
		if id == gameID {
			delete(r.byPlayer, playerID)
		}
	}
	return nil
}

// Count returns the number of registered games
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}
