package models

import "github.com/google/uuid"

// Match is one reported pairing. Player2ID is nil exactly when the outcome
// is the bye sentinel. Matches are immutable once created except during an
// authorized edit session, which deletes and reinserts a whole round.
type Match struct {
	ID           uuid.UUID  `json:"id"`
	TournamentID uuid.UUID  `json:"tournament_id"`
	Round        int        `json:"round"`
	Player1ID    uuid.UUID  `json:"player1_id"`
	Player2ID    *uuid.UUID `json:"player2_id,omitempty"`
	Outcome      Outcome    `json:"outcome"`
}

// IsBye reports whether the match is a bye for player 1.
func (m Match) IsBye() bool {
	return m.Player2ID == nil || m.Outcome == OutcomeBye
}
