package pairing

import (
	"github.com/AdamBeresnev/box-league-engine/internal/competition"
	"github.com/google/uuid"
)

// EliminationRound pairs the slots of one bracket round. Slots 2p and 2p+1 meet in the
// match at position p. When only one side is present the match is a walkover won by that
// side. When neither is present no match is produced and the next slot stays empty.
// Withdrawn occupants count as absent.
func EliminationRound(slots []competition.BracketSlot, bracketRound int, withdrawn map[uuid.UUID]bool) []competition.Match {
	byPosition := make(map[int]competition.BracketSlot)
	count := 0
	for _, s := range slots {
		if s.BracketRound != bracketRound {
			continue
		}
		byPosition[s.Position] = s
		count++
	}

	present := func(s competition.BracketSlot) bool {
		return s.ParticipantID != nil && !withdrawn[*s.ParticipantID]
	}

	var matches []competition.Match
	for p := 0; p < count/2; p++ {
		home, away := byPosition[2*p], byPosition[2*p+1]
		homeIn, awayIn := present(home), present(away)
		if !homeIn && !awayIn {
			continue
		}

		round, position := bracketRound, p
		m := competition.Match{
			BracketRound:    &round,
			BracketPosition: &position,
			MatchOrder:      p + 1,
			HomeID:          home.ParticipantID,
			AwayID:          away.ParticipantID,
			Status:          competition.MatchScheduled,
		}

		switch {
		case homeIn && !awayIn:
			m.Status = competition.MatchWalkover
			m.WinnerID = home.ParticipantID
		case awayIn && !homeIn:
			m.Status = competition.MatchWalkover
			m.WinnerID = away.ParticipantID
		}
		matches = append(matches, m)
	}
	return matches
}
