package service_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/mafia-game/game/engine"
	"github.com/wricardo/mafia-game/game/service"
	"github.com/wricardo/mafia-game/game/timer"
)

// testClock is a settable clock shared by the service and its machines
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// MockRegistry implements service.GameRegistry for testing
type MockRegistry struct {
	games map[string]*service.Game
	clock *testClock
}

func NewMockRegistry(clock *testClock) *MockRegistry {
	return &MockRegistry{games: make(map[string]*service.Game), clock: clock}
}

func (m *MockRegistry) Create(roomID string, seats []engine.PlayerSeat, rules *engine.Rules) (*service.Game, error) {
	id := fmt.Sprintf("game_%d", len(m.games)+1)
	machine, err := engine.NewMachine(id, roomID, seats, rules,
		engine.WithClock(m.clock.Now), engine.WithRand(rand.New(rand.NewSource(7))))
	if err != nil {
		return nil, err
	}
	g := &service.Game{ID: id, RoomID: roomID, RulesName: rules.Name, Machine: machine, CreatedAt: m.clock.Now()}
	m.games[id] = g
	return g, nil
}

func (m *MockRegistry) Get(gameID string) (*service.Game, error) {
	g, ok := m.games[gameID]
	if !ok {
		return nil, &engine.NotFoundError{Kind: "game", ID: gameID}
	}
	return g, nil
}

func (m *MockRegistry) GetByRoom(roomID string) (*service.Game, error) {
	for _, g := range m.games {
		if g.RoomID == roomID {
			return g, nil
		}
	}
	return nil, &engine.NotFoundError{Kind: "room", ID: roomID}
}

func (m *MockRegistry) GetByPlayer(playerID string) (*service.Game, error) {
	for _, g := range m.games {
		if g.Machine.HasPlayer(playerID) {
			return g, nil
		}
	}
	return nil, &engine.NotFoundError{Kind: "player", ID: playerID}
}

func (m *MockRegistry) List() []*service.Game {
	result := make([]*service.Game, 0, len(m.games))
	for _, g := range m.games {
		result = append(result, g)
	}
	return result
}

func (m *MockRegistry) Remove(gameID string) error {
	if _, ok := m.games[gameID]; !ok {
		return &engine.NotFoundError{Kind: "game", ID: gameID}
	}
	delete(m.games, gameID)
	return nil
}

// MockRooms implements service.RoomDirectory for testing
type MockRooms struct {
	rooms map[string]*service.Room
}

func NewMockRooms() *MockRooms {
	return &MockRooms{rooms: make(map[string]*service.Room)}
}

func (m *MockRooms) Create(host engine.PlayerSeat) (service.Room, engine.RosterChanged, error) {
	host.IsHost = true
	room := &service.Room{ID: fmt.Sprintf("R%03d", len(m.rooms)+1), HostID: host.ID, Members: []engine.PlayerSeat{host}}
	m.rooms[room.ID] = room
	return *room, m.roster(room, host, true), nil
}

func (m *MockRooms) Get(roomID string) (service.Room, error) {
	room, ok := m.rooms[roomID]
	if !ok {
		return service.Room{}, &engine.NotFoundError{Kind: "room", ID: roomID}
	}
	return *room, nil
}

func (m *MockRooms) Join(roomID string, player engine.PlayerSeat) (service.Room, engine.RosterChanged, error) {
	room, ok := m.rooms[roomID]
	if !ok {
		return service.Room{}, engine.RosterChanged{}, &engine.NotFoundError{Kind: "room", ID: roomID}
	}
	player.IsHost = false
	room.Members = append(room.Members, player)
	return *room, m.roster(room, player, true), nil
}

func (m *MockRooms) Leave(roomID, playerID string) (service.Room, engine.RosterChanged, error) {
	room, ok := m.rooms[roomID]
	if !ok {
		return service.Room{}, engine.RosterChanged{}, &engine.NotFoundError{Kind: "room", ID: roomID}
	}
	var left engine.PlayerSeat
	kept := room.Members[:0]
	for _, p := range room.Members {
		if p.ID == playerID {
			left = p
			continue
		}
		kept = append(kept, p)
	}
	room.Members = kept
	if left.IsHost && len(kept) > 0 {
		kept[0].IsHost = true
		room.HostID = kept[0].ID
	}
	if len(kept) == 0 {
		delete(m.rooms, roomID)
	}
	return *room, m.roster(room, left, false), nil
}

func (m *MockRooms) List() []service.Room {
	result := make([]service.Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		result = append(result, *room)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *MockRooms) roster(room *service.Room, p engine.PlayerSeat, joined bool) engine.RosterChanged {
	return engine.RosterChanged{
		EventMeta:  engine.EventMeta{RoomID: room.ID},
		Joined:     joined,
		PlayerID:   p.ID,
		PlayerName: p.Name,
		HostID:     room.HostID,
		Roster:     append([]engine.PlayerSeat(nil), room.Members...),
	}
}

// MockConfigManager implements service.ConfigManager for testing
type MockConfigManager struct {
	rules map[string]*engine.Rules
}

func NewMockConfigManager() *MockConfigManager {
	quick := engine.DefaultRules()
	quick.Name = "quick"
	quick.Durations.DayDiscussion = 30
	hostOnly := engine.DefaultRules()
	hostOnly.Name = "host-only"
	hostOnly.TimeAdjustPolicy = engine.TimeAdjustHostOnly
	return &MockConfigManager{rules: map[string]*engine.Rules{
		"classic":   engine.DefaultRules(),
		"quick":     quick,
		"host-only": hostOnly,
	}}
}

func (m *MockConfigManager) LoadRules(name string) (*engine.Rules, error) {
	rules, ok := m.rules[name]
	if !ok {
		return nil, errors.New("rules not found")
	}
	return rules, nil
}

func (m *MockConfigManager) ListRules() ([]*service.RulesInfo, error) {
	var result []*service.RulesInfo
	for id, r := range m.rules {
		result = append(result, &service.RulesInfo{RulesID: id, Name: r.Name})
	}
	return result, nil
}

func (m *MockConfigManager) GetDefault() *engine.Rules {
	return m.rules["classic"]
}

// MockTimers implements service.TimerScheduler and lets tests fire deadlines by hand
type MockTimers struct {
	tokens    map[string]engine.TimerToken
	callbacks map[string]timer.ExpireFunc
	cancelled []string
}

func NewMockTimers() *MockTimers {
	return &MockTimers{tokens: make(map[string]engine.TimerToken), callbacks: make(map[string]timer.ExpireFunc)}
}

func (m *MockTimers) Schedule(token engine.TimerToken, onExpire timer.ExpireFunc) {
	m.tokens[token.GameID] = token
	m.callbacks[token.GameID] = onExpire
}

func (m *MockTimers) Cancel(gameID string) {
	delete(m.tokens, gameID)
	delete(m.callbacks, gameID)
	m.cancelled = append(m.cancelled, gameID)
}

// Fire runs the armed callback for gameID as the scheduler would
func (m *MockTimers) Fire(t *testing.T, gameID string) engine.TimerToken {
	t.Helper()
	token, ok := m.tokens[gameID]
	if !ok {
		t.Fatalf("No timer armed for %s", gameID)
	}
	m.callbacks[gameID](token)
	return token
}

// CaptureDispatcher implements service.EventDispatcher by recording events
type CaptureDispatcher struct {
	mu     sync.Mutex
	events []engine.Event
}

func (d *CaptureDispatcher) Dispatch(events []engine.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, events...)
}

func (d *CaptureDispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = nil
}

func (d *CaptureDispatcher) OfType(t engine.EventType) []engine.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []engine.Event
	for _, e := range d.events {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out
}

// MockResultStore implements service.ResultStore for testing
type MockResultStore struct {
	mu      sync.Mutex
	records map[string]*service.GameRecord
	saved   chan string
}

func NewMockResultStore() *MockResultStore {
	return &MockResultStore{records: make(map[string]*service.GameRecord), saved: make(chan string, 10)}
}

func (m *MockResultStore) SaveResult(ctx context.Context, record *service.GameRecord) error {
	m.mu.Lock()
	m.records[record.GameID] = record
	m.mu.Unlock()
	m.saved <- record.GameID
	return nil
}

func (m *MockResultStore) GetResult(ctx context.Context, gameID string) (*service.GameRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[gameID]
	if !ok {
		return nil, &engine.NotFoundError{Kind: "result", ID: gameID}
	}
	return record, nil
}

func (m *MockResultStore) ListResults(ctx context.Context, limit int) ([]*service.GameRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := make([]*service.GameRecord, 0, len(m.records))
	for _, r := range m.records {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].EndedAt.After(records[j].EndedAt) })
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

type testEnv struct {
	svc     service.GameService
	clock   *testClock
	games   *MockRegistry
	rooms   *MockRooms
	timers  *MockTimers
	events  *CaptureDispatcher
	results *MockResultStore
}

func newTestEnv() *testEnv {
	clock := &testClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	env := &testEnv{
		clock:   clock,
		games:   NewMockRegistry(clock),
		rooms:   NewMockRooms(),
		timers:  NewMockTimers(),
		events:  &CaptureDispatcher{},
		results: NewMockResultStore(),
	}
	env.svc = service.NewGameService(service.Dependencies{
		Games:   env.games,
		Rooms:   env.rooms,
		Configs: NewMockConfigManager(),
		Timers:  env.timers,
		Events:  env.events,
		Results: env.results,
		Now:     clock.Now,
	})
	return env
}

// startGame seats n players in a new room and starts a game hosted by p1
func (e *testEnv) startGame(t *testing.T, n int) *service.GameInfo {
	t.Helper()
	ctx := context.Background()
	room, err := e.svc.CreateRoom(ctx, engine.PlayerSeat{ID: "p1", Name: "Player 1"})
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	for i := 2; i <= n; i++ {
		if _, err := e.svc.JoinRoom(ctx, room.ID, engine.PlayerSeat{ID: fmt.Sprintf("p%d", i), Name: fmt.Sprintf("Player %d", i)}); err != nil {
			t.Fatalf("JoinRoom failed: %v", err)
		}
	}
	game, err := e.svc.CreateGame(ctx, room.ID, "p1", "")
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	return game
}

func (e *testEnv) phase(t *testing.T, gameID string) engine.Phase {
	t.Helper()
	info, err := e.svc.GetGameState(context.Background(), gameID, "")
	if err != nil {
		t.Fatalf("GetGameState failed: %v", err)
	}
	return info.State.Phase
}

func TestGameService_Rooms(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	room, err := env.svc.CreateRoom(ctx, engine.PlayerSeat{ID: "p1", Name: "Ana"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if room.HostID != "p1" {
		t.Errorf("Expected host p1, got %s", room.HostID)
	}

	if _, err := env.svc.JoinRoom(ctx, room.ID, engine.PlayerSeat{ID: "p2", Name: "Bo"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := len(env.events.OfType(engine.EventUserJoined)); got != 2 {
		t.Errorf("Expected 2 USER_JOINED events, got %d", got)
	}

	info, err := env.svc.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(info.Members) != 2 || info.GameID != "" {
		t.Errorf("Expected 2 members and no game, got %+v", info)
	}

	env.svc.CreateRoom(ctx, engine.PlayerSeat{ID: "p3", Name: "Cy"})
	rooms, err := env.svc.ListRooms(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(rooms) != 2 || rooms[0].ID != room.ID || len(rooms[0].Members) != 2 {
		t.Errorf("Expected both open rooms listed, got %+v", rooms)
	}

	if _, err := env.svc.GetRoom(ctx, "nope"); engine.ReasonOf(err) != engine.ReasonNotFound {
		t.Errorf("Expected NOT_FOUND, got %v", err)
	}
}

func TestGameService_CreateGame(t *testing.T) {
	t.Run("host starts the game", func(t *testing.T) {
		env := newTestEnv()
		game := env.startGame(t, 5)

		if game.State.Phase != engine.PhaseDayDiscussion {
			t.Errorf("Expected DAY_DISCUSSION, got %s", game.State.Phase)
		}
		if game.RulesName != "classic" {
			t.Errorf("Expected default rules classic, got %s", game.RulesName)
		}
		if game.State.MyRole == "" {
			t.Error("Expected the requester to see their own role")
		}
		if rooms, _ := env.svc.ListRooms(context.Background()); len(rooms) != 1 || rooms[0].GameID != game.GameID {
			t.Errorf("Expected the room to list its running game, got %+v", rooms)
		}
		if got := len(env.events.OfType(engine.EventRoleAssigned)); got != 5 {
			t.Errorf("Expected 5 ROLE_ASSIGNED events, got %d", got)
		}
		token, ok := env.timers.tokens[game.GameID]
		if !ok || token.Phase != engine.PhaseDayDiscussion {
			t.Errorf("Expected DAY_DISCUSSION timer, got %+v", token)
		}
		if game.RemainingSeconds != 60 {
			t.Errorf("Expected 60 seconds remaining, got %d", game.RemainingSeconds)
		}
	})

	t.Run("named rules", func(t *testing.T) {
		env := newTestEnv()
		ctx := context.Background()
		room, _ := env.svc.CreateRoom(ctx, engine.PlayerSeat{ID: "p1", Name: "Player 1"})
		for i := 2; i <= 4; i++ {
			env.svc.JoinRoom(ctx, room.ID, engine.PlayerSeat{ID: fmt.Sprintf("p%d", i), Name: "x"})
		}
		game, err := env.svc.CreateGame(ctx, room.ID, "p1", "quick")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if game.RemainingSeconds != 30 {
			t.Errorf("Expected quick discussion of 30 seconds, got %d", game.RemainingSeconds)
		}
	})

	t.Run("only the host", func(t *testing.T) {
		env := newTestEnv()
		ctx := context.Background()
		room, _ := env.svc.CreateRoom(ctx, engine.PlayerSeat{ID: "p1", Name: "Player 1"})
		env.svc.JoinRoom(ctx, room.ID, engine.PlayerSeat{ID: "p2", Name: "Player 2"})

		_, err := env.svc.CreateGame(ctx, room.ID, "p2", "")
		var authErr *engine.AuthorizationError
		if !errors.As(err, &authErr) {
			t.Errorf("Expected AuthorizationError, got %v", err)
		}
	})

	t.Run("too few players", func(t *testing.T) {
		env := newTestEnv()
		ctx := context.Background()
		room, _ := env.svc.CreateRoom(ctx, engine.PlayerSeat{ID: "p1", Name: "Player 1"})
		if _, err := env.svc.CreateGame(ctx, room.ID, "p1", ""); err == nil {
			t.Error("Expected error for a single-player game")
		}
	})

	t.Run("unknown rules", func(t *testing.T) {
		env := newTestEnv()
		ctx := context.Background()
		room, _ := env.svc.CreateRoom(ctx, engine.PlayerSeat{ID: "p1", Name: "Player 1"})
		if _, err := env.svc.CreateGame(ctx, room.ID, "p1", "nope"); err == nil {
			t.Error("Expected error for unknown rules")
		}
	})
}

func TestGameService_SubmitAction(t *testing.T) {
	t.Run("rejection is sent privately and returned", func(t *testing.T) {
		env := newTestEnv()
		game := env.startGame(t, 5)
		env.events.Reset()

		err := env.svc.SubmitAction(context.Background(), game.GameID, "p2", engine.Action{Type: engine.ActionVote, TargetID: "p3"})
		if err == nil {
			t.Fatal("Expected error voting during discussion")
		}
		rejected := env.events.OfType(engine.EventActionRejected)
		if len(rejected) != 1 {
			t.Fatalf("Expected 1 ACTION_REJECTED, got %d", len(rejected))
		}
		if r := rejected[0].(engine.ActionRejected); r.PlayerID != "p2" || r.Reason != engine.ReasonInvalidPhase {
			t.Errorf("Unexpected rejection: %+v", r)
		}
	})

	t.Run("stale action dropped", func(t *testing.T) {
		env := newTestEnv()
		game := env.startGame(t, 5)
		env.events.Reset()

		err := env.svc.SubmitAction(context.Background(), game.GameID, "p2", engine.Action{
			Type: engine.ActionNightAction, TargetID: "p3", Phase: engine.PhaseNightAction,
		})
		if err != nil {
			t.Errorf("Expected stale action to be dropped, got %v", err)
		}
		if got := len(env.events.OfType(engine.EventActionRejected)); got != 0 {
			t.Errorf("Expected no rejection for a stale action, got %d", got)
		}
	})

	t.Run("vote accepted", func(t *testing.T) {
		env := newTestEnv()
		game := env.startGame(t, 5)
		env.timers.Fire(t, game.GameID)
		env.events.Reset()

		err := env.svc.SubmitAction(context.Background(), game.GameID, "p2", engine.Action{Type: engine.ActionVote, TargetID: "p3"})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got := len(env.events.OfType(engine.EventVoteResultUpdate)); got != 1 {
			t.Errorf("Expected 1 VOTE_RESULT_UPDATE, got %d", got)
		}
	})

	t.Run("unknown game", func(t *testing.T) {
		env := newTestEnv()
		err := env.svc.SubmitAction(context.Background(), "missing", "p1", engine.Action{Type: engine.ActionVote})
		if engine.ReasonOf(err) != engine.ReasonNotFound {
			t.Errorf("Expected NOT_FOUND, got %v", err)
		}
	})
}

func TestGameService_Timers(t *testing.T) {
	env := newTestEnv()
	game := env.startGame(t, 5)

	old := env.timers.Fire(t, game.GameID)
	if got := env.phase(t, game.GameID); got != engine.PhaseDayVoting {
		t.Fatalf("Expected DAY_VOTING after discussion timer, got %s", got)
	}
	if next := env.timers.tokens[game.GameID]; next.Phase != engine.PhaseDayVoting {
		t.Errorf("Expected DAY_VOTING timer armed, got %+v", next)
	}

	// A late delivery of the finished phase's timer must not advance again
	env.timers.callbacks[game.GameID](old)
	if got := env.phase(t, game.GameID); got != engine.PhaseDayVoting {
		t.Errorf("Expected stale timer to be ignored, got %s", got)
	}

	// Nobody votes: the day skips to night
	env.timers.Fire(t, game.GameID)
	if got := env.phase(t, game.GameID); got != engine.PhaseNightAction {
		t.Errorf("Expected NIGHT_ACTION after empty vote, got %s", got)
	}
}

func TestGameService_AdjustTime(t *testing.T) {
	env := newTestEnv()
	game := env.startGame(t, 5)
	ctx := context.Background()
	before := env.timers.tokens[game.GameID].Deadline

	info, err := env.svc.AdjustTime(ctx, game.GameID, "p2", 15)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if info.RemainingSeconds != 75 {
		t.Errorf("Expected 75 seconds remaining, got %d", info.RemainingSeconds)
	}
	if after := env.timers.tokens[game.GameID].Deadline; after != before+15000 {
		t.Errorf("Expected timer rescheduled to %d, got %d", before+15000, after)
	}

	updates := env.events.OfType(engine.EventTimerUpdate)
	if len(updates) == 0 || !strings.Contains(updates[len(updates)-1].(engine.TimerUpdated).SystemMessage, "extended") {
		t.Error("Expected a TIMER_UPDATE announcing the extension")
	}

	_, err = env.svc.AdjustTime(ctx, game.GameID, "p3", 10)
	if engine.ReasonOf(err) != engine.ReasonAlreadyAdjusted {
		t.Errorf("Expected TIME_ALREADY_ADJUSTED, got %v", err)
	}
}

func TestGameService_AbortAndCleanup(t *testing.T) {
	env := newTestEnv()
	game := env.startGame(t, 5)
	ctx := context.Background()

	if err := env.svc.AbortRoom(ctx, game.RoomID, "host closed the room"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := len(env.events.OfType(engine.EventGameAborted)); got != 1 {
		t.Errorf("Expected 1 GAME_ABORTED, got %d", got)
	}
	if _, armed := env.timers.tokens[game.GameID]; armed {
		t.Error("Expected timer to be cancelled")
	}

	select {
	case id := <-env.results.saved:
		if id != game.GameID {
			t.Errorf("Expected result for %s, got %s", game.GameID, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for result to be saved")
	}
	record, err := env.svc.GetResult(ctx, game.GameID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !record.Aborted {
		t.Error("Expected aborted record")
	}
	recent, err := env.svc.ListResults(ctx, 5)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(recent) != 1 || recent[0].GameID != game.GameID {
		t.Errorf("Expected recent results to hold %s, got %+v", game.GameID, recent)
	}

	if removed := env.svc.CleanupEnded(ctx); removed != 0 {
		t.Errorf("Expected game kept during end grace, removed %d", removed)
	}
	env.clock.Advance(11 * time.Second)
	if removed := env.svc.CleanupEnded(ctx); removed != 1 {
		t.Errorf("Expected 1 game removed, got %d", removed)
	}
	if _, err := env.svc.GetGameState(ctx, game.GameID, ""); err == nil {
		t.Error("Expected game to be gone after cleanup")
	}
}

func TestGameService_LeaveRoom(t *testing.T) {
	t.Run("leaving forfeits", func(t *testing.T) {
		env := newTestEnv()
		game := env.startGame(t, 6)
		ctx := context.Background()

		if _, err := env.svc.LeaveRoom(ctx, game.RoomID, "p6"); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		state, _ := env.svc.GetGameState(ctx, game.GameID, "")
		for _, p := range state.State.Players {
			if p.ID == "p6" && p.Alive {
				t.Error("Expected p6 to be dead after leaving")
			}
		}
		if got := len(env.events.OfType(engine.EventUserLeft)); got != 1 {
			t.Errorf("Expected 1 USER_LEFT, got %d", got)
		}
	})

	t.Run("last player out aborts", func(t *testing.T) {
		env := newTestEnv()
		game := env.startGame(t, 4)
		ctx := context.Background()

		for i := 1; i <= 4; i++ {
			if _, err := env.svc.LeaveRoom(ctx, game.RoomID, fmt.Sprintf("p%d", i)); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
		}
		info, err := env.svc.GetGameState(ctx, game.GameID, "")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if info.State.Phase != engine.PhaseGameEnded {
			t.Errorf("Expected GAME_ENDED, got %s", info.State.Phase)
		}
	})

	t.Run("host seat follows the room", func(t *testing.T) {
		env := newTestEnv()
		ctx := context.Background()
		room, _ := env.svc.CreateRoom(ctx, engine.PlayerSeat{ID: "p1", Name: "Player 1"})
		for i := 2; i <= 8; i++ {
			env.svc.JoinRoom(ctx, room.ID, engine.PlayerSeat{ID: fmt.Sprintf("p%d", i), Name: fmt.Sprintf("Player %d", i)})
		}
		game, err := env.svc.CreateGame(ctx, room.ID, "p1", "host-only")
		if err != nil {
			t.Fatalf("CreateGame failed: %v", err)
		}

		if _, err := env.svc.AdjustTime(ctx, game.GameID, "p2", 10); engine.ReasonOf(err) != engine.ReasonNotAuthorized {
			t.Fatalf("Expected NOT_AUTHORIZED before the host leaves, got %v", err)
		}
		left, err := env.svc.LeaveRoom(ctx, room.ID, "p1")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if left.HostID != "p2" {
			t.Fatalf("Expected p2 to be elected host, got %s", left.HostID)
		}

		info, err := env.svc.AdjustTime(ctx, game.GameID, "p2", 10)
		if err != nil {
			t.Fatalf("Expected the new host to adjust time, got %v", err)
		}
		for _, p := range info.State.Players {
			if p.IsHost != (p.ID == "p2") {
				t.Errorf("Unexpected host flag on %s: %v", p.ID, p.IsHost)
			}
		}
	})
}

func TestGameService_SendChat(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	room, _ := env.svc.CreateRoom(ctx, engine.PlayerSeat{ID: "p1", Name: "Ana"})

	if err := env.svc.SendChat(ctx, room.ID, "p1", "  hello  "); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	chats := env.events.OfType(engine.EventChat)
	if len(chats) != 1 || chats[0].(engine.ChatMessage).Content != "hello" {
		t.Errorf("Expected trimmed lobby chat, got %+v", chats)
	}

	err := env.svc.SendChat(ctx, room.ID, "stranger", "hi")
	var authErr *engine.AuthorizationError
	if !errors.As(err, &authErr) {
		t.Errorf("Expected AuthorizationError for non-member, got %v", err)
	}

	if err := env.svc.SendChat(ctx, room.ID, "p1", "   "); engine.ReasonOf(err) != engine.ReasonMalformed {
		t.Errorf("Expected MALFORMED for blank chat, got %v", err)
	}
}

func TestGameService_Lookups(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	game := env.startGame(t, 5)

	byPlayer, err := env.svc.GetGameByPlayer(ctx, "p3")
	if err != nil || byPlayer.GameID != game.GameID {
		t.Errorf("Expected game %s for p3, got %+v (err %v)", game.GameID, byPlayer, err)
	}
	byRoom, err := env.svc.GetGameByRoom(ctx, game.RoomID, "p3")
	if err != nil || byRoom.State.MyRole == "" {
		t.Errorf("Expected p3 to see their role, got %+v (err %v)", byRoom, err)
	}

	list, _ := env.svc.ListGames(ctx)
	if len(list) != 1 || list[0].Alive != 5 {
		t.Errorf("Expected one game with 5 alive, got %+v", list)
	}

	lines, err := env.svc.Suggestions(ctx, engine.RoleMafia, engine.PhaseNightAction)
	if err != nil || len(lines) != 0 {
		t.Errorf("Expected no suggestions without a source, got %v", lines)
	}

	rules, _ := env.svc.ListRules(ctx)
	if len(rules) != 2 {
		t.Errorf("Expected 2 rules presets, got %d", len(rules))
	}

	env.events.Reset()
	env.svc.BroadcastTimers(ctx)
	if got := len(env.events.OfType(engine.EventTimerUpdate)); got != 1 {
		t.Errorf("Expected 1 TIMER_UPDATE, got %d", got)
	}
}
