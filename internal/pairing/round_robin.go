package pairing

import (
	"sort"

	"github.com/AdamBeresnev/box-league-engine/internal/competition"
	"github.com/google/uuid"
)

// Pool is one box as seen by the generator. Seats are ordered by box position and keep
// withdrawn participants so that everyone else keeps their place in the rotation.
type Pool struct {
	BoxID uuid.UUID
	Seats []competition.Participant
}

// CycleLength is the number of rounds it takes every pair in a box of n to meet once.
func CycleLength(n int) int {
	switch {
	case n < 2:
		return 0
	case n%2 == 0:
		return n - 1
	default:
		return n
	}
}

// CircleRound returns the pairs of a 1-based round using the circle method: seat 0 stays
// put and the remaining seats rotate one step clockwise each round. An odd box gets a
// phantom seat and whoever faces it sits the round out.
func CircleRound(seats []uuid.UUID, round int) [][2]uuid.UUID {
	if len(seats) < 2 || round < 1 {
		return nil
	}

	ring := make([]uuid.UUID, len(seats), len(seats)+1)
	copy(ring, seats)
	if len(ring)%2 != 0 {
		ring = append(ring, uuid.Nil)
	}

	m := len(ring)
	others := ring[1:]
	shift := (round - 1) % (m - 1)

	arranged := make([]uuid.UUID, m)
	arranged[0] = ring[0]
	for i := range others {
		arranged[i+1] = others[(i-shift+len(others))%len(others)]
	}

	pairs := make([][2]uuid.UUID, 0, m/2)
	for i := 0; i < m/2; i++ {
		home, away := arranged[i], arranged[m-1-i]
		if home == uuid.Nil || away == uuid.Nil {
			continue
		}
		pairs = append(pairs, [2]uuid.UUID{home, away})
	}
	return pairs
}

// RoundRobinRound produces the matches of one box for a 1-based regular round.
//
// A full cycle (scheduled == 0 or at least the cycle length) follows the circle method.
// Shorter schedules pick pairings greedily so match counts stay within one of each other.
// Withdrawn participants never get paired. A box whose cycle is exhausted returns no matches.
func RoundRobinRound(pool Pool, round, scheduled int, previous []competition.Match) ([]competition.Match, error) {
	active := competition.Active(pool.Seats)
	if len(active) < 2 {
		return nil, competition.Validation(competition.CodeInsufficientParticipants,
			"box %s has %d active participants, at least 2 required", pool.BoxID, len(active))
	}

	cycle := CycleLength(len(pool.Seats))
	if round < 1 || round > cycle {
		return nil, nil
	}

	met := metPairs(previous)

	var pairs [][2]uuid.UUID
	if scheduled > 0 && scheduled < cycle {
		pairs = Balanced(active, previous)
	} else {
		seats := make([]uuid.UUID, len(pool.Seats))
		withdrawn := make(map[uuid.UUID]bool)
		for i, p := range pool.Seats {
			seats[i] = p.ID
			if p.Withdrawn {
				withdrawn[p.ID] = true
			}
		}

		for _, pair := range CircleRound(seats, round) {
			if withdrawn[pair[0]] || withdrawn[pair[1]] || met[keyOf(pair[0], pair[1])] {
				continue
			}
			pairs = append(pairs, pair)
		}
	}

	boxID := pool.BoxID
	matches := make([]competition.Match, 0, len(pairs))
	for i, pair := range pairs {
		home, away := pair[0], pair[1]
		matches = append(matches, competition.Match{
			BoxID:      &boxID,
			MatchOrder: i + 1,
			HomeID:     &home,
			AwayID:     &away,
			Status:     competition.MatchScheduled,
		})
	}
	return matches, nil
}

// searchBudget bounds the nodes Balanced visits. When no full pairing exists the search
// would otherwise enumerate every matching of the remaining players.
const searchBudget = 50000

// Balanced pairs as many active participants as possible among those who have not met
// yet, serving the ones with the fewest counted matches first. Ties fall back to the
// given order.
func Balanced(active []competition.Participant, previous []competition.Match) [][2]uuid.UUID {
	played := make(map[uuid.UUID]int)
	for _, m := range previous {
		if !m.Status.Counts() {
			continue
		}
		if m.HomeID != nil {
			played[*m.HomeID]++
		}
		if m.AwayID != nil {
			played[*m.AwayID]++
		}
	}
	met := metPairs(previous)

	order := make([]uuid.UUID, len(active))
	for i, p := range active {
		order[i] = p.ID
	}
	sort.SliceStable(order, func(i, j int) bool {
		return played[order[i]] < played[order[j]]
	})

	target := len(order) / 2
	used := make(map[uuid.UUID]bool)
	var best, current [][2]uuid.UUID

	// Depth-first over the preference order, stopping at the first full pairing or once
	// the step budget is spent. The first descent always reaches a leaf, so best is a
	// maximal pairing even when the budget cuts the search short.
	steps := 0
	var search func(i int) bool
	search = func(i int) bool {
		steps++
		if steps > searchBudget {
			return true
		}
		for i < len(order) && used[order[i]] {
			i++
		}
		free := 0
		for _, id := range order[i:] {
			if !used[id] {
				free++
			}
		}
		if len(current)+free/2 <= len(best) {
			return false
		}
		if i >= len(order) {
			best = append([][2]uuid.UUID(nil), current...)
			return len(best) == target
		}

		p := order[i]
		used[p] = true
		for _, q := range order[i+1:] {
			if used[q] || met[keyOf(p, q)] {
				continue
			}
			used[q] = true
			current = append(current, [2]uuid.UUID{p, q})
			if search(i + 1) {
				return true
			}
			current = current[:len(current)-1]
			used[q] = false
		}

		// p sits this round out
		if search(i + 1) {
			return true
		}
		used[p] = false
		return false
	}
	search(0)

	return best
}

type pairKey struct {
	low, high uuid.UUID
}

func keyOf(a, b uuid.UUID) pairKey {
	if competition.IDLess(b, a) {
		a, b = b, a
	}
	return pairKey{low: a, high: b}
}

// metPairs collects every pair that already has a non-cancelled match.
func metPairs(matches []competition.Match) map[pairKey]bool {
	met := make(map[pairKey]bool)
	for _, m := range matches {
		if m.Status == competition.MatchCancelled || m.HomeID == nil || m.AwayID == nil {
			continue
		}
		met[keyOf(*m.HomeID, *m.AwayID)] = true
	}
	return met
}

// AssignBoxes cuts a ranked list into boxes of size, best first. The last box may be
// smaller than size but never larger.
func AssignBoxes(ranked []competition.Participant, size int) [][]competition.Participant {
	if size < 1 || len(ranked) == 0 {
		return nil
	}

	boxes := make([][]competition.Participant, 0, (len(ranked)+size-1)/size)
	for start := 0; start < len(ranked); start += size {
		end := min(start+size, len(ranked))
		boxes = append(boxes, ranked[start:end])
	}
	return boxes
}
