package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// TimeAdjustPolicy decides who may move the DAY_DISCUSSION deadline
type TimeAdjustPolicy string

const (
	TimeAdjustAnyAlive TimeAdjustPolicy = "any_alive"
	TimeAdjustHostOnly TimeAdjustPolicy = "host_only"
	TimeAdjustAnyone   TimeAdjustPolicy = "anyone"
)

// TiePolicy decides what happens when DAY_VOTING has no strict leader
type TiePolicy string

const (
	TieSkip   TiePolicy = "skip"
	TieRevote TiePolicy = "revote" // reserved; rejected by ValidateRules
)

// PhaseDurations holds the length of each timed phase in seconds
type PhaseDurations struct {
	DayDiscussion   int `json:"day_discussion"`
	DayVoting       int `json:"day_voting"`
	DayFinalDefense int `json:"day_final_defense"`
	DayFinalVoting  int `json:"day_final_voting"`
	NightAction     int `json:"night_action"`
}

// Rules is a game rules preset, loaded from JSON
type Rules struct {
	Name                 string           `json:"name"`
	Description          string           `json:"description"`
	MinPlayers           int              `json:"min_players"`
	MafiaDivisor         int              `json:"mafia_divisor"`
	Doctor               bool             `json:"doctor"`
	Police               bool             `json:"police"`
	Durations            PhaseDurations   `json:"durations"`
	EarlyVoteClose       bool             `json:"early_vote_close"`
	MafiaParityWins      bool             `json:"mafia_parity_wins"`
	PoliceResultOnSubmit bool             `json:"police_result_on_submit"`
	TimeAdjustPolicy     TimeAdjustPolicy `json:"time_adjust_policy"`
	MaxTimeAdjustSeconds int              `json:"max_time_adjust_seconds"`
	TiePolicy            TiePolicy        `json:"tie_policy"`
	EndGraceSeconds      int              `json:"end_grace_seconds"`
}

// DefaultRules returns the classic preset
func DefaultRules() *Rules {
	return &Rules{
		Name:         "classic",
		Description:  "Classic rules: one mafia per four players, a doctor and a police officer",
		MinPlayers:   MinPlayers,
		MafiaDivisor: 4,
		Doctor:       true,
		Police:       true,
		Durations: PhaseDurations{
			DayDiscussion:   60,
			DayVoting:       30,
			DayFinalDefense: 20,
			DayFinalVoting:  20,
			NightAction:     30,
		},
		EarlyVoteClose:       true,
		MafiaParityWins:      false,
		PoliceResultOnSubmit: true,
		TimeAdjustPolicy:     TimeAdjustAnyAlive,
		MaxTimeAdjustSeconds: 30,
		TiePolicy:            TieSkip,
		EndGraceSeconds:      10,
	}
}

// PhaseDuration returns the configured length of a timed phase
func (r *Rules) PhaseDuration(p Phase) time.Duration {
	var seconds int
	switch p {
	case PhaseDayDiscussion:
		seconds = r.Durations.DayDiscussion
	case PhaseDayVoting:
		seconds = r.Durations.DayVoting
	case PhaseDayFinalDefense:
		seconds = r.Durations.DayFinalDefense
	case PhaseDayFinalVoting:
		seconds = r.Durations.DayFinalVoting
	case PhaseNightAction:
		seconds = r.Durations.NightAction
	}
	return time.Duration(seconds) * time.Second
}

// EndGrace is how long a finished game stays addressable for final broadcasts
func (r *Rules) EndGrace() time.Duration {
	return time.Duration(r.EndGraceSeconds) * time.Second
}

// Clone returns a copy so a shared preset is never mutated through a game
func (r *Rules) Clone() *Rules {
	c := *r
	return &c
}

// ValidateRules checks a preset for consistency and playability
func ValidateRules(rules *Rules) error {
	if rules == nil {
		return fmt.Errorf("rules validation: rules are required")
	}
	if rules.Name == "" {
		return fmt.Errorf("rules validation: name is required")
	}
	if rules.MinPlayers < MinPlayers || rules.MinPlayers > MaxPlayers {
		return fmt.Errorf("rules validation: min_players must be between %d and %d, got %d", MinPlayers, MaxPlayers, rules.MinPlayers)
	}
	if rules.MafiaDivisor < 2 {
		return fmt.Errorf("rules validation: mafia_divisor must be at least 2, got %d", rules.MafiaDivisor)
	}

	durations := []struct {
		name    string
		seconds int
	}{
		{"day_discussion", rules.Durations.DayDiscussion},
		{"day_voting", rules.Durations.DayVoting},
		{"day_final_defense", rules.Durations.DayFinalDefense},
		{"day_final_voting", rules.Durations.DayFinalVoting},
		{"night_action", rules.Durations.NightAction},
	}
	for _, d := range durations {
		if d.seconds < MinPhaseSeconds || d.seconds > MaxPhaseSeconds {
			return fmt.Errorf("rules validation: durations.%s must be between %d and %d seconds, got %d",
				d.name, MinPhaseSeconds, MaxPhaseSeconds, d.seconds)
		}
	}

	switch rules.TimeAdjustPolicy {
	case TimeAdjustAnyAlive, TimeAdjustHostOnly, TimeAdjustAnyone:
	default:
		return fmt.Errorf("rules validation: unknown time_adjust_policy %q", rules.TimeAdjustPolicy)
	}
	if rules.MaxTimeAdjustSeconds < 1 || rules.MaxTimeAdjustSeconds > MaxPhaseSeconds {
		return fmt.Errorf("rules validation: max_time_adjust_seconds must be between 1 and %d, got %d",
			MaxPhaseSeconds, rules.MaxTimeAdjustSeconds)
	}

	switch rules.TiePolicy {
	case TieSkip:
	case TieRevote:
		return fmt.Errorf("rules validation: tie_policy %q is not supported yet", rules.TiePolicy)
	default:
		return fmt.Errorf("rules validation: unknown tie_policy %q", rules.TiePolicy)
	}

	if rules.EndGraceSeconds < 0 {
		return fmt.Errorf("rules validation: end_grace_seconds cannot be negative")
	}

	// The smallest legal table must still seat every special role plus one citizen
	specials := RoleCountsFor(rules.MinPlayers, rules)
	if specials[RoleCitizen] < 1 {
		return fmt.Errorf("rules validation: min_players %d leaves no citizens", rules.MinPlayers)
	}

	return nil
}

// ParseRules decodes a preset on top of DefaultRules so omitted fields keep
// their defaults, then validates it.
func ParseRules(data []byte) (*Rules, error) {
	rules := DefaultRules()
	if err := json.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// LoadRulesFile reads and validates a preset file
func LoadRulesFile(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(data)
}
