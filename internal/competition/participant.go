package competition

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type Participant struct {
	ID            uuid.UUID `db:"id" json:"id"`
	CompetitionID uuid.UUID `db:"competition_id" json:"competition_id"`
	Name          string    `db:"name" json:"name"`
	AccountRef    *string   `db:"account_ref" json:"account_ref,omitempty"`
	// Prior rating used for seeding; nil when unrated.
	Rating *int `db:"rating" json:"rating,omitempty"`
	// Join order, 1-based.
	Seed      int  `db:"seed" json:"seed"`
	Withdrawn bool `db:"withdrawn" json:"withdrawn"`

	BoxID       *uuid.UUID `db:"box_id" json:"box_id,omitempty"`
	BoxPosition *int       `db:"box_position" json:"box_position,omitempty"`

	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// RankForSeeding orders participants best first: rated before unrated, higher rating first,
// then join order, then identifier.
func RankForSeeding(participants []Participant) []Participant {
	ranked := make([]Participant, len(participants))
	copy(ranked, participants)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if (a.Rating == nil) != (b.Rating == nil) {
			return a.Rating != nil
		}
		if a.Rating != nil && *a.Rating != *b.Rating {
			return *a.Rating > *b.Rating
		}
		if a.Seed != b.Seed {
			return a.Seed < b.Seed
		}
		return IDLess(a.ID, b.ID)
	})

	return ranked
}

// Active drops withdrawn participants, keeping order.
func Active(participants []Participant) []Participant {
	active := make([]Participant, 0, len(participants))
	for _, p := range participants {
		if !p.Withdrawn {
			active = append(active, p)
		}
	}
	return active
}

// IDLess is the deterministic identifier ordering used for final tie-breaks.
func IDLess(a, b uuid.UUID) bool {
	return a.String() < b.String()
}
