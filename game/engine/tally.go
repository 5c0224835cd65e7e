package engine

import "sort"

// TallyResult is the outcome of a plurality vote
type TallyResult struct {
	Leader          string         `json:"leader,omitempty"`
	LeaderVoteCount int            `json:"leader_vote_count"`
	Tie             bool           `json:"tie"`
	Candidates      []string       `json:"candidates,omitempty"`
	Counts          map[string]int `json:"counts"`
}

// HasLeader reports whether a single target has strictly the most votes
func (r TallyResult) HasLeader() bool {
	return r.Leader != "" && !r.Tie
}

// Tally counts votes (voter -> target) over the eligible targets. Votes for
// targets outside eligible are ignored. When several targets share the top
// count, Tie is set, Leader is empty and Candidates lists them sorted.
func Tally(votes map[string]string, eligible map[string]bool) TallyResult {
	result := TallyResult{Counts: make(map[string]int)}

	for _, target := range votes {
		if target == "" || (eligible != nil && !eligible[target]) {
			continue
		}
		result.Counts[target]++
	}

	for target, n := range result.Counts {
		switch {
		case n > result.LeaderVoteCount:
			result.LeaderVoteCount = n
			result.Candidates = []string{target}
		case n == result.LeaderVoteCount:
			result.Candidates = append(result.Candidates, target)
		}
	}
	sort.Strings(result.Candidates)

	switch len(result.Candidates) {
	case 0:
	case 1:
		result.Leader = result.Candidates[0]
	default:
		result.Tie = true
	}
	return result
}

// FinalTallyResult is the outcome of the AGREE/DISAGREE execution vote
type FinalTallyResult struct {
	AccusedID string `json:"accused_id"`
	Agree     int    `json:"agree"`
	Disagree  int    `json:"disagree"`
	Executed  bool   `json:"executed"`
}

// TallyFinal counts final ballots. The accused's own ballot never counts and
// execution needs AGREE strictly above DISAGREE.
func TallyFinal(votes map[string]FinalChoice, accusedID string) FinalTallyResult {
	result := FinalTallyResult{AccusedID: accusedID}
	for voter, choice := range votes {
		if voter == accusedID {
			continue
		}
		switch choice {
		case ChoiceAgree:
			result.Agree++
		case ChoiceDisagree:
			result.Disagree++
		}
	}
	result.Executed = accusedID != "" && result.Agree > result.Disagree
	return result
}
