package engine

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Outcome is what one input produced: events to route and, when Timer is
// set, the phase deadline that must be (re)armed.
type Outcome struct {
	Events []Event
	Timer  *TimerToken
	Ended  bool
}

func (o *Outcome) emit(events ...Event) {
	o.Events = append(o.Events, events...)
}

func (o *Outcome) merge(next Outcome) {
	o.Events = append(o.Events, next.Events...)
	if next.Timer != nil {
		o.Timer = next.Timer
	}
	o.Ended = o.Ended || next.Ended
}

// Option configures a Machine
type Option func(*Machine)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithRand sets the source used to shuffle roles
func WithRand(rng *rand.Rand) Option {
	return func(m *Machine) { m.rng = rng }
}

// Machine is the authoritative state machine of one game. It is not safe for
// concurrent use; the owner serializes every call.
type Machine struct {
	state State
	rules *Rules
	now   func() time.Time
	rng   *rand.Rand
}

// NewMachine deals roles to seats and returns a machine in STARTING
func NewMachine(gameID, roomID string, seats []PlayerSeat, rules *Rules, opts ...Option) (*Machine, error) {
	if rules == nil {
		rules = DefaultRules()
	}
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}

	m := &Machine{
		rules: rules.Clone(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(m.now().UnixNano()))
	}

	players, err := AssignRoles(seats, m.rules, m.rng)
	if err != nil {
		return nil, err
	}

	m.state = State{
		GameID:       gameID,
		RoomID:       roomID,
		Players:      players,
		Phase:        PhaseStarting,
		CurrentPhase: 1,
		Votes:        make(map[string]string),
		FinalVotes:   make(map[string]FinalChoice),
		NightActions: make(map[string]string),
	}
	return m, nil
}

// Rules returns the rules the game runs under
func (m *Machine) Rules() *Rules {
	return m.rules
}

// Phase returns the current phase
func (m *Machine) Phase() Phase {
	return m.state.Phase
}

// Ended reports whether the game reached GAME_ENDED
func (m *Machine) Ended() bool {
	return m.state.Phase == PhaseGameEnded
}

// Token identifies the current phase instance
func (m *Machine) Token() TimerToken {
	return TimerToken{
		GameID:   m.state.GameID,
		Phase:    m.state.Phase,
		Round:    m.state.CurrentPhase,
		Deadline: m.state.PhaseEndTime,
	}
}

// HasPlayer reports whether id is seated in this game
func (m *Machine) HasPlayer(id string) bool {
	return m.player(id) != nil
}

// State returns a deep copy of the full, unfiltered state
func (m *Machine) State() State {
	s := m.state
	s.Players = append([]Player(nil), m.state.Players...)
	s.Votes = copyMap(m.state.Votes)
	s.FinalVotes = copyMap(m.state.FinalVotes)
	s.NightActions = copyMap(m.state.NightActions)
	return s
}

// Start delivers roles privately and opens the first DAY_DISCUSSION
func (m *Machine) Start() (Outcome, error) {
	if m.state.Phase != PhaseStarting {
		return Outcome{}, ErrAlreadyStarted
	}

	var out Outcome
	m.state.StartedAt = m.now().UnixMilli()
	out.emit(GameStarted{EventMeta: m.meta(), Snapshot: m.Snapshot("")})

	var mafia []string
	for _, p := range m.state.Players {
		if p.Role == RoleMafia {
			mafia = append(mafia, p.ID)
		}
	}
	for _, p := range m.state.Players {
		assigned := RoleAssigned{
			EventMeta:       m.meta(),
			PlayerID:        p.ID,
			Role:            p.Role,
			RoleDescription: p.Role.Description(),
		}
		if p.Role == RoleMafia {
			assigned.Teammates = without(mafia, p.ID)
		}
		out.emit(assigned)
	}

	out.merge(m.enter(PhaseDayDiscussion))
	return out, nil
}

// HandlePlayerAction validates and applies one player action. Rejections
// leave state untouched.
func (m *Machine) HandlePlayerAction(actorID string, action Action) (Outcome, error) {
	switch action.Type {
	case ActionVote, ActionFinalVote, ActionNightAction, ActionChat:
	default:
		return Outcome{}, invalid(ReasonMalformed, "unknown action type %q", action.Type)
	}

	actor := m.player(actorID)
	if actor == nil {
		return Outcome{}, denied(ReasonNotAuthorized, "%s is not playing in this game", actorID)
	}

	if action.Type == ActionChat {
		return m.chat(actor, action.Content)
	}

	if !actor.Alive {
		return Outcome{}, denied(ReasonNotAlive, "dead players cannot act")
	}
	if err := m.running(); err != nil {
		return Outcome{}, err
	}
	if action.Phase != "" && action.Phase != m.state.Phase {
		if m.passed(action.Phase) {
			return Outcome{}, &PhaseMismatchError{
				Current: m.state.Phase,
				Stale:   true,
				Message: fmt.Sprintf("%s arrived after %s ended", action.Type, action.Phase),
			}
		}
		return Outcome{}, &PhaseMismatchError{
			Current: m.state.Phase,
			Message: fmt.Sprintf("%s tagged %s is not accepted during %s", action.Type, action.Phase, m.state.Phase),
		}
	}

	switch action.Type {
	case ActionVote:
		return m.castVote(actor, action.TargetID)
	case ActionFinalVote:
		return m.castFinalVote(actor, action.Choice)
	default:
		return m.nightAction(actor, action.TargetID)
	}
}

// HandleTimerExpired advances the phase the token names. A token that no
// longer matches the current phase instance is stale and changes nothing.
func (m *Machine) HandleTimerExpired(token TimerToken) (Outcome, error) {
	if !m.state.Phase.Timed() || token != m.Token() {
		return Outcome{}, &PhaseMismatchError{
			Current: m.state.Phase,
			Stale:   true,
			Message: fmt.Sprintf("timer for %s round %d is stale", token.Phase, token.Round),
		}
	}
	return m.advance(), nil
}

// HandleTimeAdjust moves the DAY_DISCUSSION deadline by deltaSeconds, once per phase
func (m *Machine) HandleTimeAdjust(playerID string, deltaSeconds int) (Outcome, error) {
	if err := m.running(); err != nil {
		return Outcome{}, err
	}
	if m.state.Phase != PhaseDayDiscussion {
		return Outcome{}, &PhaseMismatchError{Current: m.state.Phase, Message: "time can only be adjusted during DAY_DISCUSSION"}
	}

	p := m.player(playerID)
	switch m.rules.TimeAdjustPolicy {
	case TimeAdjustAnyone:
		if p == nil {
			return Outcome{}, denied(ReasonNotAuthorized, "%s is not playing in this game", playerID)
		}
	case TimeAdjustHostOnly:
		if p == nil || !p.IsHost {
			return Outcome{}, denied(ReasonNotAuthorized, "only the host can adjust time")
		}
	default:
		if p == nil {
			return Outcome{}, denied(ReasonNotAuthorized, "%s is not playing in this game", playerID)
		}
		if !p.Alive {
			return Outcome{}, denied(ReasonNotAlive, "dead players cannot adjust time")
		}
	}

	if m.state.TimeExtensionUsed {
		return Outcome{}, invalid(ReasonAlreadyAdjusted, "time was already adjusted this phase")
	}
	if deltaSeconds == 0 {
		return Outcome{}, invalid(ReasonMalformed, "seconds must not be zero")
	}
	if abs(deltaSeconds) > m.rules.MaxTimeAdjustSeconds {
		return Outcome{}, invalid(ReasonMalformed, "seconds must be within ±%d", m.rules.MaxTimeAdjustSeconds)
	}

	floor := m.now().Add(time.Second).UnixMilli()
	m.state.PhaseEndTime = max(m.state.PhaseEndTime+int64(deltaSeconds)*1000, floor)
	m.state.TimeExtensionUsed = true

	verb := "extended"
	if deltaSeconds < 0 {
		verb = "reduced"
	}
	var out Outcome
	out.emit(m.TimerUpdate(fmt.Sprintf("%s %s the discussion by %d seconds", p.Name, verb, abs(deltaSeconds))))
	token := m.Token()
	out.Timer = &token
	return out, nil
}

// EvaluateWinCondition ends the game when a faction has been wiped out
// (or, under mafia_parity_wins, when mafia reach parity)
func (m *Machine) EvaluateWinCondition() Outcome {
	if m.state.Phase == PhaseGameEnded || m.state.Phase == PhaseStarting {
		return Outcome{}
	}
	winner, ok := m.winner()
	if !ok {
		return Outcome{}
	}
	return m.end(winner)
}

// HandleLeave forfeits a player who left the room mid-game
func (m *Machine) HandleLeave(playerID string) (Outcome, error) {
	p := m.player(playerID)
	if p == nil {
		return Outcome{}, &NotFoundError{Kind: "player", ID: playerID}
	}
	if !m.state.Phase.Timed() || !p.Alive {
		return Outcome{}, nil
	}

	p.Alive = false
	delete(m.state.Votes, p.ID)
	delete(m.state.FinalVotes, p.ID)
	delete(m.state.NightActions, p.ID)

	var out Outcome
	out.emit(m.system(fmt.Sprintf("%s left the game", p.Name)))
	out.merge(m.EvaluateWinCondition())
	return out, nil
}

// TransferHost hands the host seat to playerID after the room re-elects one.
// Nobody is host when playerID is not seated in the game.
func (m *Machine) TransferHost(playerID string) {
	for i := range m.state.Players {
		m.state.Players[i].IsHost = m.state.Players[i].ID == playerID
	}
}

// Abort ends the game without a winner
func (m *Machine) Abort(reason string) Outcome {
	if m.state.Phase == PhaseGameEnded {
		return Outcome{}
	}
	m.state.Phase = PhaseGameEnded
	m.state.PhaseEndTime = 0
	m.state.EndedAt = m.now().UnixMilli()

	var out Outcome
	out.emit(GameAborted{EventMeta: m.meta(), Reason: reason})
	out.Ended = true
	return out
}

// TimerUpdate reports the remaining time of the current phase
func (m *Machine) TimerUpdate(systemMessage string) TimerUpdated {
	remaining := 0
	if m.state.PhaseEndTime > 0 {
		ms := m.state.PhaseEndTime - m.now().UnixMilli()
		if ms > 0 {
			remaining = int((ms + 999) / 1000)
		}
	}
	return TimerUpdated{
		EventMeta:        m.meta(),
		Phase:            m.state.Phase,
		CurrentPhase:     m.state.CurrentPhase,
		PhaseEndTime:     m.state.PhaseEndTime,
		RemainingSeconds: remaining,
		SystemMessage:    systemMessage,
	}
}

// CanChat returns the channel a player's chat goes to right now
func (m *Machine) CanChat(playerID string) (ChatChannel, error) {
	p := m.player(playerID)
	if p == nil {
		return "", denied(ReasonNotAuthorized, "%s is not playing in this game", playerID)
	}
	if m.state.Phase == PhaseGameEnded || m.state.Phase == PhaseStarting {
		return ChannelPublic, nil
	}
	if !p.Alive {
		return ChannelDead, nil
	}

	if !m.state.Phase.IsDay() {
		if p.Role != RoleMafia {
			return "", denied(ReasonNotAuthorized, "only the mafia may speak at night")
		}
		return ChannelMafia, nil
	}
	if m.state.Phase == PhaseDayFinalDefense && p.ID != m.state.VotedPlayerID {
		return "", denied(ReasonNotAuthorized, "only the accused may speak during the final defense")
	}
	return ChannelPublic, nil
}

// Snapshot returns the state as viewerID may see it. Roles are visible to
// their owner, mafia see each other, and everything is revealed at the end.
func (m *Machine) Snapshot(viewerID string) Snapshot {
	snap := Snapshot{
		GameID:            m.state.GameID,
		RoomID:            m.state.RoomID,
		Phase:             m.state.Phase,
		CurrentPhase:      m.state.CurrentPhase,
		PhaseEndTime:      m.state.PhaseEndTime,
		Players:           m.views(viewerID),
		VotedPlayerID:     m.state.VotedPlayerID,
		VotedPlayerName:   m.state.VotedPlayerName,
		TimeExtensionUsed: m.state.TimeExtensionUsed,
		Winner:            m.state.Winner,
	}
	if viewer := m.player(viewerID); viewer != nil {
		snap.MyRole = viewer.Role
	}
	if m.state.Phase == PhaseDayVoting {
		snap.VoteCounts = Tally(m.state.Votes, nil).Counts
	}
	return snap
}

func (m *Machine) castVote(actor *Player, targetID string) (Outcome, error) {
	if m.state.Phase != PhaseDayVoting {
		return Outcome{}, &PhaseMismatchError{Current: m.state.Phase, Message: "votes are only accepted during DAY_VOTING"}
	}
	target, err := m.target(actor, targetID, false)
	if err != nil {
		return Outcome{}, err
	}

	m.state.Votes[actor.ID] = target.ID

	var out Outcome
	out.emit(VoteResultUpdated{
		EventMeta:  m.meta(),
		Players:    m.views(""),
		VoteCounts: Tally(m.state.Votes, m.aliveSet()).Counts,
	})
	if m.rules.EarlyVoteClose && m.allVoted(len(m.state.Votes), "") {
		out.merge(m.advance())
	}
	return out, nil
}

func (m *Machine) castFinalVote(actor *Player, choice FinalChoice) (Outcome, error) {
	if m.state.Phase != PhaseDayFinalVoting {
		return Outcome{}, &PhaseMismatchError{Current: m.state.Phase, Message: "final votes are only accepted during DAY_FINAL_VOTING"}
	}
	if actor.ID == m.state.VotedPlayerID {
		return Outcome{}, denied(ReasonNotAuthorized, "the accused cannot vote on their own execution")
	}
	choice = FinalChoice(strings.ToUpper(string(choice)))
	if choice != ChoiceAgree && choice != ChoiceDisagree {
		return Outcome{}, invalid(ReasonMalformed, "choice must be AGREE or DISAGREE")
	}

	m.state.FinalVotes[actor.ID] = choice

	var out Outcome
	if m.rules.EarlyVoteClose && m.allVoted(len(m.state.FinalVotes), m.state.VotedPlayerID) {
		out.merge(m.advance())
	}
	return out, nil
}

func (m *Machine) nightAction(actor *Player, targetID string) (Outcome, error) {
	if m.state.Phase != PhaseNightAction {
		return Outcome{}, &PhaseMismatchError{Current: m.state.Phase, Message: "night actions are only accepted during NIGHT_ACTION"}
	}
	if !actor.Role.HasNightAction() {
		return Outcome{}, denied(ReasonNotAuthorized, "citizens have no night action")
	}
	if _, done := m.state.NightActions[actor.ID]; done && actor.Role == RolePolice && m.rules.PoliceResultOnSubmit {
		return Outcome{}, denied(ReasonNotAuthorized, "you already investigated tonight")
	}
	target, err := m.target(actor, targetID, actor.Role == RoleDoctor)
	if err != nil {
		return Outcome{}, err
	}

	m.state.NightActions[actor.ID] = target.ID

	var out Outcome
	out.emit(NightActionAck{
		EventMeta:  m.meta(),
		PlayerID:   actor.ID,
		TargetID:   target.ID,
		TargetName: target.Name,
	})
	if actor.Role == RolePolice && m.rules.PoliceResultOnSubmit {
		if inv, ok := Investigate(m.state.Players, actor.ID, target.ID); ok {
			out.emit(PoliceResult{EventMeta: m.meta(), Investigation: inv})
		}
	}
	return out, nil
}

func (m *Machine) chat(actor *Player, content string) (Outcome, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Outcome{}, invalid(ReasonMalformed, "message is empty")
	}
	if len(content) > MaxChatLength {
		return Outcome{}, invalid(ReasonMalformed, "message is longer than %d characters", MaxChatLength)
	}

	channel, err := m.CanChat(actor.ID)
	if err != nil {
		return Outcome{}, err
	}

	msg := ChatMessage{
		EventMeta:  m.meta(),
		Channel:    channel,
		SenderID:   actor.ID,
		SenderName: actor.Name,
		Content:    content,
	}
	switch channel {
	case ChannelMafia:
		msg.Recipients = m.idsWhere(func(p Player) bool { return p.Alive && p.Role == RoleMafia })
	case ChannelDead:
		msg.Recipients = m.idsWhere(func(p Player) bool { return !p.Alive })
	}

	var out Outcome
	out.emit(msg)
	return out, nil
}

// advance performs the transition out of the current timed phase
func (m *Machine) advance() Outcome {
	switch m.state.Phase {
	case PhaseDayDiscussion:
		return m.enter(PhaseDayVoting)
	case PhaseDayVoting:
		return m.closeDayVoting()
	case PhaseDayFinalDefense:
		return m.enter(PhaseDayFinalVoting)
	case PhaseDayFinalVoting:
		return m.closeFinalVoting()
	case PhaseNightAction:
		return m.closeNight()
	}
	return Outcome{}
}

func (m *Machine) closeDayVoting() Outcome {
	var out Outcome
	result := Tally(m.state.Votes, m.aliveSet())
	m.state.Votes = make(map[string]string)

	if !result.HasLeader() {
		out.emit(VoteResultUpdated{
			EventMeta:     m.meta(),
			Players:       m.views(""),
			VoteCounts:    result.Counts,
			TieCandidates: result.Candidates,
		})
		out.emit(m.system("The vote was inconclusive. Night falls with no accusation."))
		out.merge(m.enter(PhaseNightAction))
		return out
	}

	accused := m.player(result.Leader)
	m.state.VotedPlayerID = accused.ID
	m.state.VotedPlayerName = accused.Name
	out.emit(VoteResultUpdated{
		EventMeta:       m.meta(),
		Players:         m.views(""),
		VoteCounts:      result.Counts,
		VotedPlayerID:   accused.ID,
		VotedPlayerName: accused.Name,
	})
	out.emit(m.system(fmt.Sprintf("%s received the most votes and may now make a final defense.", accused.Name)))
	out.merge(m.enter(PhaseDayFinalDefense))
	return out
}

func (m *Machine) closeFinalVoting() Outcome {
	var out Outcome

	ballots := make(map[string]FinalChoice, len(m.state.FinalVotes))
	for voter, choice := range m.state.FinalVotes {
		if p := m.player(voter); p != nil && p.Alive {
			ballots[voter] = choice
		}
	}
	result := TallyFinal(ballots, m.state.VotedPlayerID)
	accused := m.player(m.state.VotedPlayerID)
	if accused == nil || !accused.Alive {
		result.Executed = false
	}

	if result.Executed {
		accused.Alive = false
	}
	if accused != nil {
		out.emit(FinalVoteResult{
			EventMeta:   m.meta(),
			AccusedID:   accused.ID,
			AccusedName: accused.Name,
			Agree:       result.Agree,
			Disagree:    result.Disagree,
			Executed:    result.Executed,
			Players:     m.views(""),
		})
		if result.Executed {
			out.emit(m.system(fmt.Sprintf("%s was executed by the town.", accused.Name)))
		} else {
			out.emit(m.system(fmt.Sprintf("%s was spared.", accused.Name)))
		}
	}

	m.state.FinalVotes = make(map[string]FinalChoice)
	m.state.VotedPlayerID = ""
	m.state.VotedPlayerName = ""

	if end := m.EvaluateWinCondition(); end.Ended {
		out.merge(end)
		return out
	}
	out.merge(m.enter(PhaseNightAction))
	return out
}

func (m *Machine) closeNight() Outcome {
	var out Outcome

	result := ResolveNight(m.state.Players, m.state.NightActions)
	m.state.NightActions = make(map[string]string)

	if !m.rules.PoliceResultOnSubmit {
		for _, inv := range result.Investigations {
			out.emit(PoliceResult{EventMeta: m.meta(), Investigation: inv})
		}
	}

	announcement := NightResult{EventMeta: m.meta(), Message: "The night passed quietly. Nobody died."}
	if result.DeathID != "" {
		victim := m.player(result.DeathID)
		victim.Alive = false
		announcement.KilledPlayerID = victim.ID
		announcement.KilledPlayerName = victim.Name
		announcement.Message = fmt.Sprintf("%s was killed during the night.", victim.Name)
	}
	announcement.Players = m.views("")
	out.emit(announcement)

	if end := m.EvaluateWinCondition(); end.Ended {
		out.merge(end)
		return out
	}

	m.state.CurrentPhase++
	out.merge(m.enter(PhaseDayDiscussion))
	return out
}

// running rejects play before Start and after the game ended
func (m *Machine) running() error {
	switch m.state.Phase {
	case PhaseStarting:
		return ErrNotStarted
	case PhaseGameEnded:
		return ErrGameEnded
	}
	return nil
}

// passed reports whether the game already went through phase p. Without a
// round on the action, any timed phase other than the current one has
// happened once the first night is over.
func (m *Machine) passed(p Phase) bool {
	if !p.Timed() || p.order() < 0 {
		return false
	}
	at, current := p.order(), m.state.Phase.order()
	return at < current || (at > current && m.state.CurrentPhase > 1)
}

// enter switches to a timed phase and arms its deadline
func (m *Machine) enter(phase Phase) Outcome {
	switch phase {
	case PhaseDayDiscussion:
		m.state.VotedPlayerID = ""
		m.state.VotedPlayerName = ""
	case PhaseDayVoting:
		m.state.Votes = make(map[string]string)
	case PhaseDayFinalVoting:
		m.state.FinalVotes = make(map[string]FinalChoice)
	case PhaseNightAction:
		m.state.NightActions = make(map[string]string)
	}

	m.state.Phase = phase
	m.state.TimeExtensionUsed = false
	m.state.PhaseEndTime = m.now().Add(m.rules.PhaseDuration(phase)).UnixMilli()

	var out Outcome
	out.emit(PhaseSwitched{
		EventMeta:    m.meta(),
		Phase:        phase,
		CurrentPhase: m.state.CurrentPhase,
		PhaseEndTime: m.state.PhaseEndTime,
		Players:      m.views(""),
	})
	token := m.Token()
	out.Timer = &token
	return out
}

func (m *Machine) end(winner Faction) Outcome {
	m.state.Phase = PhaseGameEnded
	m.state.Winner = winner
	m.state.PhaseEndTime = 0
	m.state.EndedAt = m.now().UnixMilli()

	message := "The town wins! Every mafia member is gone."
	if winner == FactionMafia {
		message = "The mafia wins!"
	}

	var out Outcome
	out.emit(PhaseSwitched{
		EventMeta:    m.meta(),
		Phase:        PhaseGameEnded,
		CurrentPhase: m.state.CurrentPhase,
		Players:      m.views(""),
	})
	out.emit(GameEnded{
		EventMeta: m.meta(),
		Winner:    winner,
		Message:   message,
		Players:   m.views(""),
	})
	out.Ended = true
	return out
}

func (m *Machine) winner() (Faction, bool) {
	mafia, others := 0, 0
	for _, p := range m.state.Players {
		if !p.Alive {
			continue
		}
		if p.Role.Faction() == FactionMafia {
			mafia++
		} else {
			others++
		}
	}

	switch {
	case mafia == 0:
		return FactionCitizens, true
	case others == 0:
		return FactionMafia, true
	case m.rules.MafiaParityWins && mafia >= others:
		return FactionMafia, true
	}
	return "", false
}

// target resolves and checks the target of a vote or night action
func (m *Machine) target(actor *Player, targetID string, allowSelf bool) (*Player, error) {
	if targetID == "" {
		return nil, invalid(ReasonMalformed, "target is required")
	}
	target := m.player(targetID)
	if target == nil {
		return nil, invalid(ReasonUnknownTarget, "%s is not playing in this game", targetID)
	}
	if target.ID == actor.ID && !allowSelf {
		return nil, invalid(ReasonSelfTarget, "you cannot target yourself")
	}
	if !target.Alive {
		return nil, invalid(ReasonDeadTarget, "%s is already dead", target.Name)
	}
	return target, nil
}

// allVoted reports whether every alive player except skip has a ballot in
func (m *Machine) allVoted(ballots int, skip string) bool {
	eligible := 0
	for _, p := range m.state.Players {
		if p.Alive && p.ID != skip {
			eligible++
		}
	}
	return eligible > 0 && ballots >= eligible
}

func (m *Machine) player(id string) *Player {
	if id == "" {
		return nil
	}
	for i := range m.state.Players {
		if m.state.Players[i].ID == id {
			return &m.state.Players[i]
		}
	}
	return nil
}

func (m *Machine) aliveSet() map[string]bool {
	alive := make(map[string]bool, len(m.state.Players))
	for _, p := range m.state.Players {
		if p.Alive {
			alive[p.ID] = true
		}
	}
	return alive
}

func (m *Machine) idsWhere(keep func(Player) bool) []string {
	var ids []string
	for _, p := range m.state.Players {
		if keep(p) {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (m *Machine) views(viewerID string) []PlayerView {
	viewer := m.player(viewerID)
	revealAll := m.state.Phase == PhaseGameEnded

	views := make([]PlayerView, len(m.state.Players))
	for i, p := range m.state.Players {
		v := PlayerView{ID: p.ID, Name: p.Name, Alive: p.Alive, IsHost: p.IsHost}
		switch {
		case revealAll:
			v.Role = p.Role
		case viewer == nil:
		case viewer.ID == p.ID:
			v.Role = p.Role
		case viewer.Role == RoleMafia && p.Role == RoleMafia:
			v.Role = p.Role
		}
		views[i] = v
	}
	return views
}

func (m *Machine) meta() EventMeta {
	return EventMeta{
		GameID:    m.state.GameID,
		RoomID:    m.state.RoomID,
		Timestamp: m.now().UnixMilli(),
	}
}

func (m *Machine) system(content string) SystemMessage {
	return SystemMessage{EventMeta: m.meta(), Content: content}
}
