package bracket

import (
	"github.com/AdamBeresnev/box-league-engine/internal/competition"
	"github.com/google/uuid"
)

// Advance moves the winner of a resolved bracket match into the slot it feeds and returns
// that slot. It returns nil for unresolved or non-bracket matches and for missing slots.
func Advance(slots []competition.BracketSlot, m competition.Match) *competition.BracketSlot {
	if m.BracketRound == nil || m.BracketPosition == nil || m.WinnerID == nil {
		return nil
	}

	next := Slot(slots, *m.BracketRound+1, *m.BracketPosition)
	if next == nil {
		return nil
	}
	winner := *m.WinnerID
	next.ParticipantID = &winner
	return next
}

// Slot finds a slot by round and position.
func Slot(slots []competition.BracketSlot, bracketRound, position int) *competition.BracketSlot {
	for i := range slots {
		if slots[i].BracketRound == bracketRound && slots[i].Position == position {
			return &slots[i]
		}
	}
	return nil
}

// Rounds is the number of match rounds in a stored bracket.
func Rounds(slots []competition.BracketSlot) int {
	highest := 0
	for _, s := range slots {
		highest = max(highest, s.BracketRound)
	}
	return max(highest-1, 0)
}

// Champion is whoever occupies the root slot.
func Champion(slots []competition.BracketSlot) *uuid.UUID {
	root := Slot(slots, Rounds(slots)+1, 0)
	if root == nil {
		return nil
	}
	return root.ParticipantID
}
