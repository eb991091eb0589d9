package lifecycle

import (
	"context"

	"github.com/google/uuid"

	"github.com/danverac/swissladder/internal/models"
)

// Storage is the persistence surface the lifecycle service consumes. The
// pgx-backed store implements it in production; tests use an in-memory
// fake. Multi-row operations commit atomically: one transaction per
// finalize, one per discard, one per round replacement.
type Storage interface {
	GetTournament(ctx context.Context, id uuid.UUID) (*models.Tournament, error)
	GetStore(ctx context.Context, id uuid.UUID) (*models.Store, error)
	TournamentPlayers(ctx context.Context, tournamentID uuid.UUID) ([]models.Player, error)
	TournamentMatches(ctx context.Context, tournamentID uuid.UUID) ([]models.Match, error)

	// PriorFinalizedCounts returns, per player, how many tournaments with a
	// submission sequence strictly below seq that player has already had
	// finalized. Feeds the provisional k multiplier.
	PriorFinalizedCounts(ctx context.Context, seq int64, playerIDs []uuid.UUID) (map[uuid.UUID]int, error)

	// CommitFinalize applies the whole pending→finalized transition in one
	// transaction, guarded by a compare-and-set on the lifecycle state.
	// A CAS miss returns ErrAlreadyFinalized so a concurrent second
	// finalizer fails cleanly instead of double-applying ratings.
	CommitFinalize(ctx context.Context, c FinalizeCommit) error

	// DiscardPending cascade-deletes a pending tournament and its matches,
	// membership edges and decks, CAS-guarded the same way. Never touches
	// rating state.
	DiscardPending(ctx context.Context, id uuid.UUID) error

	// BeginEdit CAS-transitions finalized→editing and stores the freshly
	// minted edit token. A miss returns ErrNotFinalized.
	BeginEdit(ctx context.Context, id uuid.UUID, editToken string) error

	// ReplaceRound deletes and reinserts one round's matches in a single
	// transaction. Only legal while the tournament is editing.
	ReplaceRound(ctx context.Context, id uuid.UUID, round int, matches []models.Match) error
}

// FinalizeCommit is everything CommitFinalize writes atomically: the state
// flip with cleared confirm token, the resolved top cut, every player's new
// rating with its per-match history rows, casual awards, and the store
// token spend if the tournament is store-bound.
type FinalizeCommit struct {
	TournamentID uuid.UUID
	TopCut       *int
	Ratings      map[uuid.UUID]int
	History      []models.RatingChange
	CasualAwards []models.CasualAward
	StoreSpend   *StoreSpend
}

// StoreSpend asks CommitFinalize to consume one scheduling token from the
// store's allotment inside the finalize transaction. The decrement is
// guarded on the current counter value, so two concurrent finalizations at
// the same store can never both spend the last token; a refused spend
// fails the whole transaction with ErrNoStoreTokens. The monthly refill
// from the per-store defaults happens in the same transaction when the
// calendar month has rolled over.
type StoreSpend struct {
	StoreID uuid.UUID
	Premium bool
}

// Recalculator re-derives ratings after a retroactive edit. Implemented by
// the recalc orchestrator; declared here so the service stays mockable.
type Recalculator interface {
	// Replay rebuilds every affected player's rating from the edited
	// tournament's position in the submission order. When finishEdit is
	// set the same transaction also CAS-transitions editing→finalized and
	// clears the edit token, making the whole edit completion atomic.
	Replay(ctx context.Context, editedTournament uuid.UUID, finishEdit bool) error
}

// TokenMirror is the session-equivalent side channel for active lifecycle
// tokens, backed by redis in production. Entries are keyed by the user who
// minted the token as well as the tournament, so a cached token is only
// ever readable by the session it belongs to. It is best-effort: the
// column on the tournament row stays authoritative, and verification
// always happens against the row.
type TokenMirror interface {
	SetActiveToken(ctx context.Context, tournamentID uuid.UUID, kind models.TokenKind, userID uuid.UUID, token string) error
	GetActiveToken(ctx context.Context, tournamentID uuid.UUID, kind models.TokenKind, userID uuid.UUID) (string, error)
	DeleteActiveToken(ctx context.Context, tournamentID uuid.UUID, kind models.TokenKind, userID uuid.UUID) error
}
