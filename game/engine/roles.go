package engine

import (
	"fmt"
	"math/rand"
)

// RoleCountsFor returns how many of each role a table of n players receives
func RoleCountsFor(n int, rules *Rules) map[Role]int {
	divisor := rules.MafiaDivisor
	if divisor < 2 {
		divisor = 4
	}

	counts := map[Role]int{
		RoleMafia: max(1, n/divisor),
	}
	if rules.Doctor {
		counts[RoleDoctor] = 1
	}
	if rules.Police {
		counts[RolePolice] = 1
	}
	counts[RoleCitizen] = n - counts[RoleMafia] - counts[RoleDoctor] - counts[RolePolice]
	return counts
}

// AssignRoles deals one role to every seat. The deck is built from
// RoleCountsFor and shuffled with rng, so a seeded rng gives a repeatable deal.
// Seat order is preserved in the returned players.
func AssignRoles(seats []PlayerSeat, rules *Rules, rng *rand.Rand) ([]Player, error) {
	if len(seats) < rules.MinPlayers {
		return nil, invalid(ReasonMalformed, "at least %d players are required, got %d", rules.MinPlayers, len(seats))
	}
	if len(seats) > MaxPlayers {
		return nil, invalid(ReasonMalformed, "at most %d players are allowed, got %d", MaxPlayers, len(seats))
	}

	seen := make(map[string]bool, len(seats))
	for _, seat := range seats {
		if seat.ID == "" {
			return nil, invalid(ReasonMalformed, "player id is required")
		}
		if seen[seat.ID] {
			return nil, invalid(ReasonMalformed, "duplicate player id %s", seat.ID)
		}
		seen[seat.ID] = true
	}

	counts := RoleCountsFor(len(seats), rules)
	if counts[RoleCitizen] < 0 {
		return nil, invalid(ReasonMalformed, "not enough players for the special roles")
	}

	deck := make([]Role, 0, len(seats))
	for _, role := range Roles {
		for i := 0; i < counts[role]; i++ {
			deck = append(deck, role)
		}
	}
	if len(deck) != len(seats) {
		return nil, fmt.Errorf("role deck has %d cards for %d players", len(deck), len(seats))
	}

	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })

	players := make([]Player, len(seats))
	for i, seat := range seats {
		name := seat.Name
		if name == "" {
			name = seat.ID
		}
		players[i] = Player{
			ID:     seat.ID,
			Name:   name,
			Role:   deck[i],
			Alive:  true,
			IsHost: seat.IsHost,
		}
	}
	return players, nil
}
