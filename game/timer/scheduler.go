// Package timer arms one phase deadline per game and calls back when it
// passes. Scheduling again for a game replaces its previous deadline, and a
// cancelled or replaced deadline never fires.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wricardo/mafia-game/game/engine"
)

// ExpireFunc receives the token of the deadline that passed
type ExpireFunc func(token engine.TimerToken)

type phaseTimer struct {
	token  engine.TimerToken
	ctx    context.Context
	cancel context.CancelFunc
}

// Scheduler keeps at most one armed deadline per game id
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*phaseTimer
	now    func() time.Time
}

// NewScheduler creates an empty scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{
		timers: make(map[string]*phaseTimer),
		now:    time.Now,
	}
}

// Schedule arms token.Deadline (epoch millis) for token.GameID, replacing
// whatever was armed for that game. onExpire runs on its own goroutine.
func (s *Scheduler) Schedule(token engine.TimerToken, onExpire ExpireFunc) {
	wait := max(time.UnixMilli(token.Deadline).Sub(s.now()), 0)

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	t := &phaseTimer{token: token, ctx: ctx, cancel: cancel}

	s.mu.Lock()
	if prev, ok := s.timers[token.GameID]; ok {
		prev.cancel()
	}
	s.timers[token.GameID] = t
	s.mu.Unlock()

	log.Debug().
		Str("game_id", token.GameID).
		Str("phase", string(token.Phase)).
		Int("round", token.Round).
		Dur("wait", wait).
		Msg("phase timer armed")

	go s.wait(t, onExpire)
}

func (s *Scheduler) wait(t *phaseTimer, onExpire ExpireFunc) {
	<-t.ctx.Done()

	s.mu.Lock()
	current := s.timers[t.token.GameID] == t
	if current {
		delete(s.timers, t.token.GameID)
	}
	s.mu.Unlock()

	if !current || t.ctx.Err() != context.DeadlineExceeded {
		return
	}

	log.Debug().
		Str("game_id", t.token.GameID).
		Str("phase", string(t.token.Phase)).
		Msg("phase timer expired")
	onExpire(t.token)
}

// Cancel disarms the deadline of a game, if any
func (s *Scheduler) Cancel(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[gameID]; ok {
		t.cancel()
		delete(s.timers, gameID)
	}
}

// Active returns the number of armed deadlines
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop disarms everything
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.cancel()
		delete(s.timers, id)
	}
}
