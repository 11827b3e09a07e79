// Package standings derives rankings from match results. Nothing here touches storage,
// so the same inputs always give the same table.
package standings

import (
	"sort"

	"github.com/AdamBeresnev/box-league-engine/internal/competition"
	"github.com/AdamBeresnev/box-league-engine/internal/utils"
	"github.com/google/uuid"
)

// Compute builds the ranked table of one box. Only completed and walkover matches between
// two listed participants count. A walkover without a score counts as 0-0 with a win.
func Compute(participants []competition.Participant, matches []competition.Match) []competition.Standing {
	rows := make(map[uuid.UUID]*competition.Standing, len(participants))
	table := make([]competition.Standing, len(participants))
	for i, p := range participants {
		table[i] = competition.Standing{
			ParticipantID: p.ID,
			Name:          p.Name,
			Withdrawn:     p.Withdrawn,
			HeadToHead:    make(map[uuid.UUID]competition.HeadToHead),
		}
		rows[p.ID] = &table[i]
	}

	for _, m := range matches {
		if !m.Status.Counts() || m.HomeID == nil || m.AwayID == nil || m.WinnerID == nil {
			continue
		}
		home, away := rows[*m.HomeID], rows[*m.AwayID]
		if home == nil || away == nil {
			continue
		}

		homeScore, awayScore := utils.OrZero(m.HomeScore), utils.OrZero(m.AwayScore)
		record(home, away.ParticipantID, homeScore, awayScore, *m.WinnerID == home.ParticipantID)
		record(away, home.ParticipantID, awayScore, homeScore, *m.WinnerID == away.ParticipantID)
	}

	return Rank(table)
}

func record(row *competition.Standing, opponent uuid.UUID, scored, conceded int, won bool) {
	row.Played++
	row.PointsFor += scored
	row.PointsAgainst += conceded
	row.PointsDiff = row.PointsFor - row.PointsAgainst

	h2h := row.HeadToHead[opponent]
	if won {
		row.Wins++
		h2h.Wins++
	} else {
		row.Losses++
		h2h.Losses++
	}
	row.HeadToHead[opponent] = h2h
}

// Rank orders rows by wins, point difference and points scored. Rows still level on all
// three are split by wins against each other, then by identifier. Ranks start at 1.
func Rank(rows []competition.Standing) []competition.Standing {
	ranked := make([]competition.Standing, len(rows))
	copy(ranked, rows)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if !level(a, b) {
			return ahead(a, b)
		}
		return competition.IDLess(a.ParticipantID, b.ParticipantID)
	})

	for start := 0; start < len(ranked); {
		end := start + 1
		for end < len(ranked) && level(ranked[start], ranked[end]) {
			end++
		}
		if end-start > 1 {
			breakTie(ranked[start:end])
		}
		start = end
	}

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

func level(a, b competition.Standing) bool {
	return a.Wins == b.Wins && a.PointsDiff == b.PointsDiff && a.PointsFor == b.PointsFor
}

func ahead(a, b competition.Standing) bool {
	if a.Wins != b.Wins {
		return a.Wins > b.Wins
	}
	if a.PointsDiff != b.PointsDiff {
		return a.PointsDiff > b.PointsDiff
	}
	return a.PointsFor > b.PointsFor
}

// breakTie reorders a level group by a mini-league of the games among its members.
func breakTie(group []competition.Standing) {
	members := make(map[uuid.UUID]bool, len(group))
	for _, row := range group {
		members[row.ParticipantID] = true
	}

	mini := make(map[uuid.UUID]int, len(group))
	for _, row := range group {
		for opponent, h2h := range row.HeadToHead {
			if members[opponent] {
				mini[row.ParticipantID] += h2h.Wins
			}
		}
	}

	sort.SliceStable(group, func(i, j int) bool {
		a, b := group[i].ParticipantID, group[j].ParticipantID
		if mini[a] != mini[b] {
			return mini[a] > mini[b]
		}
		return competition.IDLess(a, b)
	})
}
