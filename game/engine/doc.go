// Package engine holds the rules of a Mafia game.
//
// A Machine owns the authoritative State of one game and is driven by three
// kinds of input: player actions, phase timer expiries and time adjustments.
// Every input returns an Outcome listing the events it produced and, when the
// phase changed, the TimerToken of the new deadline. The machine never touches
// the network or the clock scheduler itself; callers serialize access, arm
// timers from Outcome.Timer and route Outcome.Events.
//
// Phases cycle
//
//	STARTING -> DAY_DISCUSSION -> DAY_VOTING -> DAY_FINAL_DEFENSE ->
//	DAY_FINAL_VOTING -> NIGHT_ACTION -> DAY_DISCUSSION ...
//
// with DAY_VOTING skipping straight to NIGHT_ACTION on a tie, and any
// resolution step ending in GAME_ENDED once a faction wins.
//
// The pure pieces (AssignRoles, Tally, TallyFinal, ResolveNight) are exported
// so tools like cmd/analyze can simulate games without a Machine.
//
// Usage:
//
//	m, err := engine.NewMachine(gameID, roomID, seats, engine.DefaultRules())
//	if err != nil {
//		return err
//	}
//	out, err := m.Start()
//	// route out.Events, arm out.Timer
package engine
