// internal/models/tournament.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// LifecycleState is the tournament's position in the import/finalize/edit
// state machine. Discarding a pending import deletes the row outright, so
// there is no terminal "discarded" state to represent.
type LifecycleState string

const (
	StatePendingImport LifecycleState = "pending"
	StateFinalized     LifecycleState = "finalized"
	StateEditing       LifecycleState = "editing"
)

// TokenKind names which lifecycle token a transition requires.
type TokenKind string

const (
	TokenConfirm TokenKind = "confirm"
	TokenEdit    TokenKind = "edit"
)

// Tournament is one reported event. Seq is a monotonic submission sequence
// and is the total order key for recalculation replays; SubmittedAt is kept
// for display only and is never used for ordering.
type Tournament struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Date        time.Time      `json:"date"`
	Rounds      int            `json:"rounds"`
	PlayerCount int            `json:"player_count"`
	Imported    bool           `json:"imported_from_text"`
	Casual      bool           `json:"casual"`
	Premium     bool           `json:"premium"`
	State       LifecycleState `json:"state"`
	TopCut      *int           `json:"top_cut,omitempty"`
	StoreID     *uuid.UUID     `json:"store_id,omitempty"`
	OwnerID     uuid.UUID      `json:"owner_id"`
	Seq         int64          `json:"seq"`
	SubmittedAt time.Time      `json:"submitted_at"`

	// Active lifecycle tokens. Exactly one may be live at a time: the
	// confirm token while pending, the edit token while editing. Both are
	// nil for a finalized tournament.
	ConfirmToken *string `json:"-"`
	EditToken    *string `json:"-"`
}

// ActiveToken returns the token currently required for mutations in the
// tournament's present state, or nil when no mutation is permitted.
func (t *Tournament) ActiveToken(kind TokenKind) *string {
	switch kind {
	case TokenConfirm:
		if t.State == StatePendingImport {
			return t.ConfirmToken
		}
	case TokenEdit:
		if t.State == StateEditing {
			return t.EditToken
		}
	}
	return nil
}

// TournamentPlayer is the membership edge between a tournament and a
// player, unique per pair and never mutated once created.
type TournamentPlayer struct {
	TournamentID uuid.UUID `json:"tournament_id"`
	PlayerID     uuid.UUID `json:"player_id"`
}

// Deck is a decklist entry owned by a tournament; it exists so that
// discarding a pending import has real dependent rows to cascade over.
// Archetype classification itself lives outside this service.
type Deck struct {
	ID           uuid.UUID `json:"id"`
	TournamentID uuid.UUID `json:"tournament_id"`
	PlayerID     uuid.UUID `json:"player_id"`
	Archetype    string    `json:"archetype"`
}
