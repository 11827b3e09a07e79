package bracket

import (
	"math"

	"github.com/AdamBeresnev/box-league-engine/internal/competition"
	"github.com/AdamBeresnev/box-league-engine/internal/pairing"
	"github.com/google/uuid"
)

// Seeding is a freshly built elimination tree: every slot of every round, plus the
// first-round matches with byes already resolved as walkovers.
type Seeding struct {
	Size    int
	Rounds  int
	Slots   []competition.BracketSlot
	Matches []competition.Match
}

// Gets the nearest power of 2 while rounding up, so with input 5 it returns 8 and so on
func calcBracketSize(count int) int {
	if count <= 0 {
		return 0
	}

	// Log2 -> Ceil -> 2^^log2 to round up
	log2 := math.Ceil(math.Log2(float64(count)))
	return int(math.Pow(2, log2))
}

// generateRound1Pairs spreads seeds so the top ones can only meet late.
// For 8 entries that is {0,7},{3,4},{1,6},{2,5}.
func generateRound1Pairs(bracketSize int) [][2]int {
	if bracketSize < 2 {
		return [][2]int{}
	}

	rounds := []int{0}
	for len(rounds) < bracketSize {
		var nextRound []int
		currentCount := len(rounds) * 2

		for _, seed := range rounds {
			nextRound = append(nextRound, seed)
			nextRound = append(nextRound, (currentCount-1)-seed)
		}
		rounds = nextRound
	}

	pairs := make([][2]int, 0, bracketSize/2)
	for i := 0; i < len(rounds); i += 2 {
		matchup := [2]int{rounds[i], rounds[i+1]}
		pairs = append(pairs, matchup)
	}

	return pairs
}

// Seed builds a single-elimination bracket from participants ordered best first.
// Entrants short of the next power of two become byes, which always land against the
// top seeds, and those byes are resolved immediately.
func Seed(competitionID uuid.UUID, ordered []uuid.UUID) (*Seeding, error) {
	if len(ordered) == 0 {
		return nil, competition.Validation(competition.CodeEmptySeedList, "cannot seed a bracket without participants")
	}

	seen := make(map[uuid.UUID]bool, len(ordered))
	for _, id := range ordered {
		if seen[id] {
			return nil, competition.Validation(competition.CodeDuplicateParticipant, "participant %s is seeded twice", id)
		}
		seen[id] = true
	}

	size := calcBracketSize(len(ordered))
	totalRounds := int(math.Log2(float64(size)))

	// Rounds 1..totalRounds hold entrants of each match round, the extra round holds the champion
	var slots []competition.BracketSlot
	for r := 1; r <= totalRounds+1; r++ {
		count := size >> (r - 1)
		for p := 0; p < count; p++ {
			slots = append(slots, competition.BracketSlot{
				ID:            uuid.New(),
				CompetitionID: competitionID,
				BracketRound:  r,
				Position:      p,
			})
		}
	}

	seeding := &Seeding{Size: size, Rounds: totalRounds, Slots: slots}

	if size == 1 {
		slots[0].ParticipantID = &ordered[0]
		return seeding, nil
	}

	for i, pair := range generateRound1Pairs(size) {
		for side, seed := range pair {
			slot := &slots[2*i+side]
			if seed < len(ordered) {
				slot.ParticipantID = &ordered[seed]
			} else {
				slot.IsBye = true
			}
		}
	}

	matches := pairing.EliminationRound(slots, 1, nil)
	for i := range matches {
		matches[i].CompetitionID = competitionID
		if matches[i].Status == competition.MatchWalkover {
			Advance(slots, matches[i])
		}
	}
	seeding.Matches = matches

	return seeding, nil
}
