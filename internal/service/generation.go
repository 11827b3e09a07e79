package service

import (
	"context"
	"errors"
	"sort"

	"github.com/AdamBeresnev/box-league-engine/internal/bracket"
	"github.com/AdamBeresnev/box-league-engine/internal/competition"
	"github.com/AdamBeresnev/box-league-engine/internal/pairing"
	"github.com/AdamBeresnev/box-league-engine/internal/store"
	"github.com/google/uuid"
)

// membersOf returns the participants seated in a box, ordered by position.
func membersOf(boxID uuid.UUID, participants []competition.Participant) []competition.Participant {
	var members []competition.Participant
	for _, p := range participants {
		if p.BoxID != nil && *p.BoxID == boxID {
			members = append(members, p)
		}
	}
	sort.SliceStable(members, func(i, j int) bool {
		return positionOf(members[i]) < positionOf(members[j])
	})
	return members
}

func positionOf(p competition.Participant) int {
	if p.BoxPosition == nil {
		return -1
	}
	return *p.BoxPosition
}

func boxMatches(boxID uuid.UUID, matches []competition.Match) []competition.Match {
	var out []competition.Match
	for _, m := range matches {
		if m.BoxID != nil && *m.BoxID == boxID {
			out = append(out, m)
		}
	}
	return out
}

// createRound persists a round and its matches, numbering matches across the whole round.
func createRound(ctx context.Context, tx store.Tx, c *competition.Competition, number int, stage competition.Stage, matches []competition.Match) (*competition.Round, []competition.Match, error) {
	round := &competition.Round{
		ID:            uuid.New(),
		CompetitionID: c.ID,
		Number:        number,
		Stage:         stage,
		Status:        competition.RoundStatusOf(matches),
	}

	for i := range matches {
		matches[i].ID = uuid.New()
		matches[i].CompetitionID = c.ID
		matches[i].RoundID = round.ID
		matches[i].RoundNumber = number
		matches[i].MatchOrder = i + 1
	}

	if err := tx.CreateRound(ctx, round); err != nil {
		return nil, nil, err
	}
	if err := tx.CreateMatches(ctx, matches); err != nil {
		return nil, nil, err
	}
	return round, matches, nil
}

// generateRegularRound pairs every box for the given round. Boxes that no longer have two
// active participants sit the round out. A round without any match is created complete.
func generateRegularRound(ctx context.Context, tx store.Tx, c *competition.Competition, number int) (*competition.Round, []competition.Match, error) {
	boxes, err := tx.ListBoxes(ctx, c.ID)
	if err != nil {
		return nil, nil, err
	}
	participants, err := tx.ListParticipants(ctx, c.ID)
	if err != nil {
		return nil, nil, err
	}
	previous, err := tx.ListMatches(ctx, c.ID)
	if err != nil {
		return nil, nil, err
	}

	var matches []competition.Match
	for _, box := range boxes {
		pool := pairing.Pool{BoxID: box.ID, Seats: membersOf(box.ID, participants)}
		generated, err := pairing.RoundRobinRound(pool, number, c.RegularRounds, boxMatches(box.ID, previous))
		if errors.Is(err, competition.ErrInsufficientParticipants) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		matches = append(matches, generated...)
	}

	return createRound(ctx, tx, c, number, competition.StageRegular, matches)
}

// playoffOffset is the number of regular rounds played before the bracket started.
func playoffOffset(rounds []competition.Round) int {
	offset := 0
	for _, r := range rounds {
		if r.Stage == competition.StageRegular {
			offset++
		}
	}
	return offset
}

// withdrawnSet lists participants that count as absent in the bracket.
func withdrawnSet(participants []competition.Participant) map[uuid.UUID]bool {
	out := make(map[uuid.UUID]bool)
	for _, p := range participants {
		if p.Withdrawn {
			out[p.ID] = true
		}
	}
	return out
}

// generatePlayoffRound creates the matches of the given bracket round. Walkovers are
// resolved on the spot and their winners moved into the following round.
func generatePlayoffRound(ctx context.Context, tx store.Tx, c *competition.Competition, number, bracketRound int) (*competition.Round, []competition.Match, error) {
	slots, err := tx.ListBracketSlots(ctx, c.ID)
	if err != nil {
		return nil, nil, err
	}
	participants, err := tx.ListParticipants(ctx, c.ID)
	if err != nil {
		return nil, nil, err
	}

	matches := pairing.EliminationRound(slots, bracketRound, withdrawnSet(participants))
	round, matches, err := createRound(ctx, tx, c, number, competition.StagePlayoff, matches)
	if err != nil {
		return nil, nil, err
	}

	for _, m := range matches {
		if m.Status != competition.MatchWalkover {
			continue
		}
		if err := advanceWinner(ctx, tx, slots, m); err != nil {
			return nil, nil, err
		}
	}
	return round, matches, nil
}

// seedBracket stores a fresh bracket and its first round.
func seedBracket(ctx context.Context, tx store.Tx, c *competition.Competition, number int, ordered []uuid.UUID) (*competition.Round, []competition.Match, error) {
	seeding, err := bracket.Seed(c.ID, ordered)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.CreateBracketSlots(ctx, seeding.Slots); err != nil {
		return nil, nil, err
	}
	return createRound(ctx, tx, c, number, competition.StagePlayoff, seeding.Matches)
}

// advanceWinner moves a resolved bracket match's winner into the slot it feeds.
func advanceWinner(ctx context.Context, tx store.Tx, slots []competition.BracketSlot, m competition.Match) error {
	next := bracket.Advance(slots, m)
	if next == nil {
		return nil
	}
	return tx.UpdateBracketSlot(ctx, next)
}
