// Command validate provides a small CLI that validates rules preset JSON
// files in the ../configs directory (or the directory given as the first
// argument). It checks:
//   - JSON structure, rejecting unknown fields
//   - Everything the engine enforces when a preset is loaded
//   - Role distribution at every table size the preset allows
//   - Balance: the mafia must start as a strict minority at every table size
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/mafia-game/game/engine"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...interface{}) {
	r.Errors = append(r.Errors, "✓ "+fmt.Sprintf(format, args...))
}

// validateRules loads and validates a single preset file.
func validateRules(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	// Typos in field names would silently fall back to defaults
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var strict engine.Rules
	if err := dec.Decode(&strict); err != nil {
		result.fail("Invalid JSON: %v", err)
		return result
	}

	rules, err := engine.ParseRules(data)
	if err != nil {
		result.fail("%v", err)
		return result
	}
	result.info("Rules: %s (min %d players)", rules.Name, rules.MinPlayers)

	checkDistribution(&result, rules)

	day := rules.Durations.DayDiscussion + rules.Durations.DayVoting +
		rules.Durations.DayFinalDefense + rules.Durations.DayFinalVoting
	result.info("Timing: day up to %ds, night %ds", day, rules.Durations.NightAction)

	return result
}

// checkDistribution walks every legal table size and checks the mafia start
// as a strict minority with a citizen left over.
func checkDistribution(result *ValidationResult, rules *engine.Rules) {
	unbalanced := []string{}
	for n := rules.MinPlayers; n <= engine.MaxPlayers; n++ {
		counts := engine.RoleCountsFor(n, rules)
		mafia := counts[engine.RoleMafia]
		town := n - mafia

		switch {
		case mafia < 1:
			unbalanced = append(unbalanced, fmt.Sprintf("%d players: no mafia", n))
		case counts[engine.RoleCitizen] < 1:
			unbalanced = append(unbalanced, fmt.Sprintf("%d players: no citizens", n))
		case mafia >= town:
			unbalanced = append(unbalanced, fmt.Sprintf("%d players: %d mafia against %d", n, mafia, town))
		}
	}

	if len(unbalanced) > 0 {
		result.fail("Balance failure: %d table sizes are unplayable", len(unbalanced))
		for _, u := range unbalanced {
			result.Errors = append(result.Errors, "Unplayable: "+u)
		}
		return
	}

	lo := engine.RoleCountsFor(rules.MinPlayers, rules)
	hi := engine.RoleCountsFor(engine.MaxPlayers, rules)
	result.info("Roles: %s at %d players, %s at %d players",
		formatCounts(lo), rules.MinPlayers, formatCounts(hi), engine.MaxPlayers)
}

func formatCounts(counts map[engine.Role]int) string {
	parts := []string{}
	for _, role := range engine.Roles {
		if counts[role] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[role], strings.ToLower(string(role))))
		}
	}
	return strings.Join(parts, ", ")
}

// main scans the presets directory for *.json files and validates each one,
// printing a concise report and exiting with non-zero status if any are invalid.
func main() {
	configDir := "../configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(configDir, "*.json"))
	if err != nil {
		fmt.Printf("Error finding rules files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No rules files found in %s\n", configDir)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateRules(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All rules presets are valid!")
	} else {
		fmt.Println("❌ Some rules presets have errors")
		os.Exit(1)
	}
}
