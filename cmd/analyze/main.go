// Command analyze plays simulated games for every rules preset in the configs
// directory and prints how often each side wins. Town players vote at random,
// while the mafia coordinate their night kill and never vote for each other,
// which makes the numbers a rough upper bound on mafia strength.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/mafia-game/game/config"
	"github.com/wricardo/mafia-game/game/engine"
)

// maxSteps bounds one simulated game; a game needs at most five phases per day
const maxSteps = 5 * 4 * engine.MaxPlayers

var errStalled = errors.New("game did not finish")

// Stats aggregates simulated games of one preset at one table size
type Stats struct {
	Rules       string
	Players     int
	Games       int
	MafiaWins   int
	CitizenWins int
	Stalled     int
	TotalDays   int
}

// MafiaRate is the share of finished games won by the mafia
func (s Stats) MafiaRate() float64 {
	finished := s.MafiaWins + s.CitizenWins
	if finished == 0 {
		return 0
	}
	return float64(s.MafiaWins) / float64(finished)
}

// AverageDays is the mean length of a finished game
func (s Stats) AverageDays() float64 {
	finished := s.MafiaWins + s.CitizenWins
	if finished == 0 {
		return 0
	}
	return float64(s.TotalDays) / float64(finished)
}

func main() {
	cmd := &cli.Command{
		Name:  "analyze",
		Usage: "Simulate games for each rules preset and report win rates",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "Directory containing rules presets"},
			&cli.IntFlag{Name: "games", Value: 1000, Usage: "Games per preset and table size"},
			&cli.IntFlag{Name: "min", Value: engine.MinPlayers, Usage: "Smallest table to simulate"},
			&cli.IntFlag{Name: "max", Value: 12, Usage: "Largest table to simulate"},
			&cli.IntFlag{Name: "seed", Value: 1, Usage: "Random seed"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(os.Stdout, cmd.String("config-dir"),
				int(cmd.Int("games")), int(cmd.Int("min")), int(cmd.Int("max")), int64(cmd.Int("seed")))
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer, configDir string, games, minPlayers, maxPlayers int, seed int64) error {
	manager, err := config.NewManager(configDir)
	if err != nil {
		return err
	}
	presets, err := manager.ListRules()
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(seed))
	for _, preset := range presets {
		rules, err := manager.LoadRules(preset.RulesID)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "\n=== Analyzing %s ===\n", preset.RulesID)
		fmt.Fprintf(w, "%s\n", rules.Description)

		var results []Stats
		for n := max(minPlayers, rules.MinPlayers); n <= min(maxPlayers, engine.MaxPlayers); n++ {
			results = append(results, analyzeRules(preset.RulesID, rules, n, games, rng))
		}
		printStats(w, results)
	}
	return nil
}

// analyzeRules plays the given number of simulated games at a table of n players
func analyzeRules(name string, rules *engine.Rules, n, games int, rng *rand.Rand) Stats {
	stats := Stats{Rules: name, Players: n, Games: games}
	for i := 0; i < games; i++ {
		winner, days, err := simulate(rules, n, rng)
		switch {
		case err != nil:
			stats.Stalled++
			continue
		case winner == engine.FactionMafia:
			stats.MafiaWins++
		default:
			stats.CitizenWins++
		}
		stats.TotalDays += days
	}
	return stats
}

func printStats(w io.Writer, results []Stats) {
	fmt.Fprintf(w, "%-8s %-8s %-10s %-8s\n", "Players", "Mafia%", "Avg days", "Stalled")
	for _, s := range results {
		fmt.Fprintf(w, "%-8d %-8.1f %-10.1f %-8d\n", s.Players, 100*s.MafiaRate(), s.AverageDays(), s.Stalled)
		if s.Stalled > 0 {
			fmt.Fprintf(w, "⚠️  WARNING: %d games at %d players did not finish\n", s.Stalled, s.Players)
		}
	}
}

// simulate plays one game to the end and returns the winner and day count
func simulate(rules *engine.Rules, n int, rng *rand.Rand) (engine.Faction, int, error) {
	seats := make([]engine.PlayerSeat, n)
	for i := range seats {
		seats[i] = engine.PlayerSeat{ID: fmt.Sprintf("p%d", i+1), Name: fmt.Sprintf("Player %d", i+1), IsHost: i == 0}
	}

	epoch := time.Unix(0, 0)
	m, err := engine.NewMachine("sim", "SIM", seats, rules,
		engine.WithRand(rng),
		engine.WithClock(func() time.Time { return epoch }))
	if err != nil {
		return "", 0, err
	}
	if _, err := m.Start(); err != nil {
		return "", 0, err
	}

	for step := 0; !m.Ended(); step++ {
		if step > maxSteps {
			return "", m.State().CurrentPhase, errStalled
		}
		token := m.Token()
		play(m, rng)
		if !m.Ended() && m.Token() == token {
			m.HandleTimerExpired(token)
		}
	}

	state := m.State()
	return state.Winner, state.CurrentPhase, nil
}

// play submits every living player's action for the current phase.
// Rejected actions are ignored.
func play(m *engine.Machine, rng *rand.Rand) {
	state := m.State()

	var alive, town []engine.Player
	for _, p := range state.Players {
		if !p.Alive {
			continue
		}
		alive = append(alive, p)
		if p.Role != engine.RoleMafia {
			town = append(town, p)
		}
	}
	pick := func(from []engine.Player, exclude string) string {
		candidates := make([]string, 0, len(from))
		for _, p := range from {
			if p.ID != exclude {
				candidates = append(candidates, p.ID)
			}
		}
		if len(candidates) == 0 {
			return ""
		}
		return candidates[rng.Intn(len(candidates))]
	}
	act := func(playerID string, action engine.Action) {
		action.Phase = state.Phase
		m.HandlePlayerAction(playerID, action)
	}

	switch state.Phase {
	case engine.PhaseDayVoting:
		for _, p := range alive {
			from := alive
			if p.Role == engine.RoleMafia {
				from = town
			}
			act(p.ID, engine.Action{Type: engine.ActionVote, TargetID: pick(from, p.ID)})
		}

	case engine.PhaseDayFinalVoting:
		accused := m.Snapshot("").VotedPlayerID
		accusedMafia := false
		for _, p := range alive {
			if p.ID == accused {
				accusedMafia = p.Role == engine.RoleMafia
			}
		}
		for _, p := range alive {
			if p.ID == accused {
				continue
			}
			choice := engine.ChoiceAgree
			if (p.Role == engine.RoleMafia && accusedMafia) || (p.Role != engine.RoleMafia && rng.Intn(3) == 0) {
				choice = engine.ChoiceDisagree
			}
			act(p.ID, engine.Action{Type: engine.ActionFinalVote, Choice: choice})
		}

	case engine.PhaseNightAction:
		victim := pick(town, "")
		for _, p := range alive {
			switch p.Role {
			case engine.RoleMafia:
				act(p.ID, engine.Action{Type: engine.ActionNightAction, TargetID: victim})
			case engine.RoleDoctor:
				act(p.ID, engine.Action{Type: engine.ActionNightAction, TargetID: pick(alive, "")})
			case engine.RolePolice:
				act(p.ID, engine.Action{Type: engine.ActionNightAction, TargetID: pick(alive, p.ID)})
			}
		}
	}
}
