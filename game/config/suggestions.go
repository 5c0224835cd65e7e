package config

import (
	"context"
	"sort"

	"github.com/wricardo/mafia-game/game/engine"
)

// Suggestion is one canned chat line offered to a role in a phase
type Suggestion struct {
	Role  engine.Role
	Phase engine.Phase
	Text  string
}

// DefaultSuggestions is the built-in suggestion library. Mafia get night
// lines; everyone gets the same day lines.
func DefaultSuggestions() []Suggestion {
	var out []Suggestion
	add := func(role engine.Role, phase engine.Phase, lines ...string) {
		for _, text := range lines {
			out = append(out, Suggestion{Role: role, Phase: phase, Text: text})
		}
	}

	add(engine.RoleMafia, engine.PhaseNightAction,
		"Who do we take out?",
		"How about player 1?",
		"Let's get player 2",
		"Player 3 looks suspicious",
		"Go after whoever seems like the doctor",
		"Take out the police first",
		"Pick someone quiet",
		"Pick whoever talks the most",
	)

	for _, role := range engine.Roles {
		add(role, engine.PhaseDayDiscussion,
			"Police, who did you check?",
			"Who seems suspicious?",
			"What did everyone do last night?",
			"I'm a citizen",
			"Let's talk before we vote",
		)
		add(role, engine.PhaseDayVoting,
			"I'm voting for player 1",
			"Player 2 is suspicious",
			"Let's pick player 3",
			"Should we skip?",
		)
	}
	return out
}

// SuggestionBook serves suggestions from memory
type SuggestionBook struct {
	lines map[string][]string
}

// NewSuggestionBook indexes entries by role and phase, keeping their order
func NewSuggestionBook(entries []Suggestion) *SuggestionBook {
	b := &SuggestionBook{lines: make(map[string][]string)}
	for _, e := range entries {
		key := suggestionKey(e.Role, e.Phase)
		b.lines[key] = append(b.lines[key], e.Text)
	}
	return b
}

// Suggestions returns the lines for role in phase, empty when none
func (b *SuggestionBook) Suggestions(ctx context.Context, role engine.Role, phase engine.Phase) ([]string, error) {
	lines := b.lines[suggestionKey(role, phase)]
	return append([]string{}, lines...), nil
}

// Keys lists the role:phase combinations that have lines
func (b *SuggestionBook) Keys() []string {
	keys := make([]string, 0, len(b.lines))
	for k := range b.lines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func suggestionKey(role engine.Role, phase engine.Phase) string {
	return string(role) + ":" + string(phase)
}
