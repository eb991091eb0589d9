package models

import (
	"time"

	"github.com/google/uuid"
)

// Store is a venue with a monthly allotment of scheduling tokens. The first
// finalization of a store-bound tournament consumes one token: premium
// tournaments draw from PremiumTokens, everything else from
// CompetitiveTokens. Counters refill to the per-store defaults when a new
// calendar month starts.
type Store struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Premium bool      `json:"premium"`

	CompetitiveTokens int       `json:"competitive_tokens"`
	PremiumTokens     int       `json:"premium_tokens"`
	LastTokenReset    time.Time `json:"last_token_reset"`

	DefaultCompetitiveTokens int `json:"default_competitive_tokens"`
	DefaultPremiumTokens     int `json:"default_premium_tokens"`
}

// NeedsTokenReset reports whether the monthly allotment should refill
// before spending, i.e. now is in a later calendar month than the last
// reset.
func (s *Store) NeedsTokenReset(now time.Time) bool {
	y1, m1, _ := s.LastTokenReset.Date()
	y2, m2, _ := now.Date()
	return y2 > y1 || (y2 == y1 && m2 > m1)
}
