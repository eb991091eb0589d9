package models

import (
	"time"

	"github.com/google/uuid"
)

// Player is a rated ladder participant. Players are shared across
// tournaments and are never deleted while a match references them.
type Player struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"` // unique
	Rating       int       `json:"rating"`
	CasualPoints int       `json:"casual_points"`
	Country      *string   `json:"country,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// RatingChange is one applied rating step, recorded per match during real
// finalization and rewritten wholesale by a recalculation replay.
type RatingChange struct {
	ID           uuid.UUID `json:"id"`
	PlayerID     uuid.UUID `json:"player_id"`
	TournamentID uuid.UUID `json:"tournament_id"`
	MatchID      uuid.UUID `json:"match_id"`
	Round        int       `json:"round"`
	OldRating    int       `json:"old_rating"`
	NewRating    int       `json:"new_rating"`
}

// CasualAward records secondary-ladder points handed out when a casual
// tournament finalizes, keyed by the player's final rank.
type CasualAward struct {
	PlayerID     uuid.UUID  `json:"player_id"`
	TournamentID uuid.UUID  `json:"tournament_id"`
	StoreID      *uuid.UUID `json:"store_id,omitempty"`
	Points       int        `json:"points"`
	Rank         int        `json:"rank"`
	AwardedAt    time.Time  `json:"awarded_at"`
}
