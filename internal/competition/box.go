package competition

import "github.com/google/uuid"

type Box struct {
	ID            uuid.UUID `db:"id" json:"id"`
	CompetitionID uuid.UUID `db:"competition_id" json:"competition_id"`
	// 1 is the top tier.
	Level int `db:"level" json:"level"`

	Members []Participant `db:"-" json:"members,omitempty"`
}

// BracketSlot is a position in the elimination tree. Round-1 slots hold a seed or a bye.
// Slot (r, p) stays empty until the round r-1 match at position p, which pairs slots
// (r-1, 2p) and (r-1, 2p+1), resolves. The single slot of the last bracket round holds the champion.
type BracketSlot struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	CompetitionID uuid.UUID  `db:"competition_id" json:"competition_id"`
	BracketRound  int        `db:"bracket_round" json:"bracket_round"`
	Position      int        `db:"position" json:"position"`
	ParticipantID *uuid.UUID `db:"participant_id" json:"participant_id,omitempty"`
	IsBye         bool       `db:"is_bye" json:"is_bye"`
}

type HeadToHead struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

// Standing is derived from completed matches and never persisted.
type Standing struct {
	Rank          int       `json:"rank"`
	ParticipantID uuid.UUID `json:"participant_id"`
	Name          string    `json:"name"`
	Withdrawn     bool      `json:"withdrawn"`

	Played        int `json:"played"`
	Wins          int `json:"wins"`
	Losses        int `json:"losses"`
	PointsFor     int `json:"points_for"`
	PointsAgainst int `json:"points_against"`
	PointsDiff    int `json:"points_diff"`

	HeadToHead map[uuid.UUID]HeadToHead `json:"head_to_head"`
}

type BoxStandings struct {
	Box       Box        `json:"box"`
	Standings []Standing `json:"standings"`
}

type Bracket struct {
	Slots   []BracketSlot `json:"slots"`
	Matches []Match       `json:"matches"`
}

// Snapshot is the full read model of a competition.
type Snapshot struct {
	Competition Competition    `json:"competition"`
	Boxes       []BoxStandings `json:"boxes"`
	Rounds      []Round        `json:"rounds"`
	Bracket     Bracket        `json:"bracket"`
}
