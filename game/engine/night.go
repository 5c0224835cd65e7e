package engine

// Investigation is a POLICE result; it is only ever delivered to PoliceID
type Investigation struct {
	PoliceID   string `json:"police_id"`
	TargetID   string `json:"target_id"`
	TargetName string `json:"target_name"`
	IsMafia    bool   `json:"is_mafia"`
}

// NightOutcome is the resolved result of one night
type NightOutcome struct {
	MafiaTarget    string          `json:"mafia_target,omitempty"`
	DoctorTarget   string          `json:"doctor_target,omitempty"`
	DeathID        string          `json:"death_id,omitempty"`
	Protected      bool            `json:"protected"`
	Investigations []Investigation `json:"investigations,omitempty"`
}

// ResolveNight applies the submitted night actions (actor -> target) in fixed
// precedence: investigations, protection, then the mafia kill. Only actions
// from alive actors holding a night role count. The mafia target is the
// plurality of mafia picks, ties going to the target seated first. The death
// is cancelled when the doctor protected the mafia target.
func ResolveNight(players []Player, actions map[string]string) NightOutcome {
	var outcome NightOutcome

	seat := make(map[string]int, len(players))
	byID := make(map[string]Player, len(players))
	for i, p := range players {
		seat[p.ID] = i
		byID[p.ID] = p
	}

	mafiaVotes := make(map[string]int)
	for _, actor := range players {
		if !actor.Alive {
			continue
		}
		targetID, ok := actions[actor.ID]
		if !ok {
			continue
		}
		target, known := byID[targetID]
		if !known {
			continue
		}

		switch actor.Role {
		case RolePolice:
			outcome.Investigations = append(outcome.Investigations, Investigation{
				PoliceID:   actor.ID,
				TargetID:   target.ID,
				TargetName: target.Name,
				IsMafia:    target.Role == RoleMafia,
			})
		case RoleDoctor:
			if outcome.DoctorTarget == "" {
				outcome.DoctorTarget = target.ID
			}
		case RoleMafia:
			mafiaVotes[target.ID]++
		}
	}

	best := 0
	for targetID, n := range mafiaVotes {
		if n > best || (n == best && seat[targetID] < seat[outcome.MafiaTarget]) {
			best = n
			outcome.MafiaTarget = targetID
		}
	}

	if outcome.MafiaTarget == "" {
		return outcome
	}
	if outcome.MafiaTarget == outcome.DoctorTarget {
		outcome.Protected = true
		return outcome
	}
	if byID[outcome.MafiaTarget].Alive {
		outcome.DeathID = outcome.MafiaTarget
	}
	return outcome
}

// Investigate answers a single POLICE query immediately
func Investigate(players []Player, policeID, targetID string) (Investigation, bool) {
	for _, p := range players {
		if p.ID == targetID {
			return Investigation{
				PoliceID:   policeID,
				TargetID:   p.ID,
				TargetName: p.Name,
				IsMafia:    p.Role.Faction() == FactionMafia,
			}, true
		}
	}
	return Investigation{}, false
}
