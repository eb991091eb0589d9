// internal/lifecycle/service.go
package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/danverac/swissladder/internal/models"
	"github.com/danverac/swissladder/internal/rating"
	"github.com/danverac/swissladder/internal/standings"
)

// Caller is the authenticated identity attempting a transition, extracted
// from the session JWT by the HTTP layer.
type Caller struct {
	UserID    uuid.UUID
	Admin     bool
	Organizer bool
	StoreID   *uuid.UUID
}

// Service owns every tournament lifecycle transition. It is the single
// place that issues, verifies and consumes lifecycle tokens, and the only
// component besides the recalculation orchestrator allowed to abort a
// transaction.
type Service struct {
	store         Storage
	recalc        Recalculator
	mirror        TokenMirror // optional
	eng           rating.Engine
	defaultRating int
	log           *logrus.Logger
}

// NewService wires a lifecycle service. mirror may be nil when no redis is
// configured; the tournament row remains the source of truth either way.
func NewService(store Storage, recalc Recalculator, mirror TokenMirror, eng rating.Engine, defaultRating int, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
	}
	return &Service{
		store:         store,
		recalc:        recalc,
		mirror:        mirror,
		eng:           eng,
		defaultRating: defaultRating,
		log:           log,
	}
}

// FinalizeResult reports what a finalization committed.
type FinalizeResult struct {
	TopCut   *int     `json:"top_cut,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// authorize enforces the role/ownership half of the access control
// invariant: admins always pass, owners pass, organizers pass for their own
// store's tournaments.
func (s *Service) authorize(c Caller, t *models.Tournament) error {
	if c.Admin || c.UserID == t.OwnerID {
		return nil
	}
	if c.Organizer && c.StoreID != nil && t.StoreID != nil && *c.StoreID == *t.StoreID {
		return nil
	}
	return ErrForbidden
}

// Finalize applies the pending→finalized transition: validates the confirm
// token, resolves the top cut, spends one store scheduling token on this
// first finalization, and applies the rating engine for real, match by
// match in round order, all in one transaction.
func (s *Service) Finalize(ctx context.Context, tournamentID uuid.UUID, caller Caller, confirmToken string, requestedTopCut *int) (*FinalizeResult, error) {
	t, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(caller, t); err != nil {
		return nil, err
	}
	if t.State != models.StatePendingImport {
		return nil, ErrAlreadyFinalized
	}
	if err := verifyToken(t, models.TokenConfirm, confirmToken); err != nil {
		return nil, err
	}

	players, err := s.store.TournamentPlayers(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	matches, err := s.store.TournamentMatches(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	topCut, warnings := resolveTopCut(requestedTopCut, len(players))

	var spend *StoreSpend
	if t.StoreID != nil {
		// existence check up front; the guarded decrement itself happens
		// inside the finalize transaction
		if _, err := s.store.GetStore(ctx, *t.StoreID); err != nil {
			return nil, err
		}
		spend = &StoreSpend{StoreID: *t.StoreID, Premium: t.Premium}
	}

	prior, err := s.priorCounts(ctx, t, players)
	if err != nil {
		return nil, err
	}

	ratings, history := s.applyMatches(t, players, matches, prior)

	commit := FinalizeCommit{
		TournamentID: t.ID,
		TopCut:       topCut,
		Ratings:      ratings,
		History:      history,
		CasualAwards: s.casualAwards(t, players, matches, prior),
		StoreSpend:   spend,
	}
	if err := s.store.CommitFinalize(ctx, commit); err != nil {
		return nil, err
	}
	s.dropMirror(ctx, t.ID, models.TokenConfirm, caller.UserID)

	s.log.WithFields(logrus.Fields{
		"tournament": t.ID,
		"players":    len(players),
		"matches":    len(matches),
	}).Info("tournament finalized")
	return &FinalizeResult{TopCut: topCut, Warnings: warnings}, nil
}

// Discard deletes a pending import and everything it owns. Only legal
// while still pending; nothing was ever committed, so rating state is
// untouched.
func (s *Service) Discard(ctx context.Context, tournamentID uuid.UUID, caller Caller, confirmToken string) error {
	t, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	if err := s.authorize(caller, t); err != nil {
		return err
	}
	if t.State != models.StatePendingImport {
		return ErrNotPending
	}
	if err := verifyToken(t, models.TokenConfirm, confirmToken); err != nil {
		return err
	}
	if err := s.store.DiscardPending(ctx, t.ID); err != nil {
		return err
	}
	s.dropMirror(ctx, t.ID, models.TokenConfirm, caller.UserID)
	s.log.WithField("tournament", t.ID).Info("pending tournament discarded")
	return nil
}

// BeginEdit reopens a finalized tournament, minting a fresh single-use edit
// token distinct from the consumed confirm token. The token is returned to
// the caller and mirrored into the session-equivalent cache.
func (s *Service) BeginEdit(ctx context.Context, tournamentID uuid.UUID, caller Caller) (string, error) {
	t, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return "", err
	}
	if err := s.authorize(caller, t); err != nil {
		return "", err
	}
	if t.State != models.StateFinalized {
		return "", ErrNotFinalized
	}

	token := MintToken()
	if err := s.store.BeginEdit(ctx, t.ID, token); err != nil {
		return "", err
	}
	if s.mirror != nil {
		if merr := s.mirror.SetActiveToken(ctx, t.ID, models.TokenEdit, caller.UserID, token); merr != nil {
			s.log.WithError(merr).Warn("failed to mirror edit token")
		}
	}
	s.log.WithField("tournament", t.ID).Info("tournament reopened for edit")
	return token, nil
}

// SubmitRound replaces one round's matches during an edit session. The
// round's previous matches are deleted and the new set inserted in one
// transaction.
func (s *Service) SubmitRound(ctx context.Context, tournamentID uuid.UUID, caller Caller, editToken string, round int, matches []models.Match) error {
	t, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	if err := s.authorize(caller, t); err != nil {
		return err
	}
	if t.State != models.StateEditing {
		return ErrNotEditing
	}
	if err := verifyToken(t, models.TokenEdit, editToken); err != nil {
		return err
	}
	if round < 1 || round > t.Rounds {
		return ErrInvalidRound
	}

	clean := make([]models.Match, 0, len(matches))
	for _, m := range matches {
		m.TournamentID = t.ID
		m.Round = round
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		if m.Player2ID != nil && *m.Player2ID == m.Player1ID {
			return ErrSelfPairing
		}
		if (m.Player2ID == nil) != (m.Outcome == models.OutcomeBye) {
			return ErrBadBye
		}
		if !m.Outcome.Valid() {
			// normalizer fallback policy: unknown result scores as a draw
			m.Outcome = models.OutcomeDraw
		}
		clean = append(clean, m)
	}
	return s.store.ReplaceRound(ctx, t.ID, round, clean)
}

// FinishEdit completes an edit session: the edit token is consumed and the
// recalculation orchestrator rebuilds every affected player's rating. The
// state flip, token clear and full replay commit in one transaction.
func (s *Service) FinishEdit(ctx context.Context, tournamentID uuid.UUID, caller Caller, editToken string) error {
	t, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	if err := s.authorize(caller, t); err != nil {
		return err
	}
	if t.State != models.StateEditing {
		return ErrNotEditing
	}
	if err := verifyToken(t, models.TokenEdit, editToken); err != nil {
		return err
	}

	if err := s.recalc.Replay(ctx, t.ID, true); err != nil {
		return fmt.Errorf("recalculation replay: %w", err)
	}
	s.dropMirror(ctx, t.ID, models.TokenEdit, caller.UserID)
	s.log.WithField("tournament", t.ID).Info("edit finalized, ratings recalculated")
	return nil
}

// applyMatches runs the rating engine over the tournament's matches in
// round order against a snapshot Book and returns the final ratings plus
// one history row per rated player per match.
func (s *Service) applyMatches(t *models.Tournament, players []models.Player, matches []models.Match, prior map[uuid.UUID]int) (map[uuid.UUID]int, []models.RatingChange) {
	roster := make(map[uuid.UUID]bool, len(players))
	book := rating.NewBook(s.defaultRating)
	for _, p := range players {
		roster[p.ID] = true
		book.Seed(p.ID, p.Rating)
	}

	ordered := make([]models.Match, len(matches))
	copy(ordered, matches)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Round < ordered[j].Round })

	var history []models.RatingChange
	for _, m := range ordered {
		if m.IsBye() || !roster[m.Player1ID] {
			continue // byes carry zero rating effect
		}
		if !roster[*m.Player2ID] {
			continue // stale roster reference: skip, don't abort
		}
		oldA, oldB := book.Get(m.Player1ID), book.Get(*m.Player2ID)
		ka := rating.KFactor(t.Casual, t.Premium, prior[m.Player1ID])
		kb := rating.KFactor(t.Casual, t.Premium, prior[*m.Player2ID])
		newA, newB := s.eng.Apply(oldA, oldB, m.Outcome, ka, kb)
		book.Set(m.Player1ID, newA)
		book.Set(*m.Player2ID, newB)
		history = append(history,
			models.RatingChange{ID: uuid.New(), PlayerID: m.Player1ID, TournamentID: t.ID, MatchID: m.ID, Round: m.Round, OldRating: oldA, NewRating: newA},
			models.RatingChange{ID: uuid.New(), PlayerID: *m.Player2ID, TournamentID: t.ID, MatchID: m.ID, Round: m.Round, OldRating: oldB, NewRating: newB},
		)
	}
	return book.Ratings(), history
}

// casualPointsForRank is the secondary-ladder award table.
func casualPointsForRank(rank int) int {
	switch {
	case rank == 1:
		return 5
	case rank == 2:
		return 3
	case rank <= 4:
		return 2
	default:
		return 1
	}
}

// casualAwards computes secondary-ladder points for casual tournaments from
// the final standings order.
func (s *Service) casualAwards(t *models.Tournament, players []models.Player, matches []models.Match, prior map[uuid.UUID]int) []models.CasualAward {
	if !t.Casual {
		return nil
	}
	rows := standings.Compute(t, players, matches, prior, s.eng)
	now := time.Now().UTC()
	awards := make([]models.CasualAward, 0, len(rows))
	for i, row := range rows {
		awards = append(awards, models.CasualAward{
			PlayerID:     row.PlayerID,
			TournamentID: t.ID,
			StoreID:      t.StoreID,
			Points:       casualPointsForRank(i + 1),
			Rank:         i + 1,
			AwardedAt:    now,
		})
	}
	return awards
}

func (s *Service) priorCounts(ctx context.Context, t *models.Tournament, players []models.Player) (map[uuid.UUID]int, error) {
	ids := make([]uuid.UUID, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}
	return s.store.PriorFinalizedCounts(ctx, t.Seq, ids)
}

func (s *Service) dropMirror(ctx context.Context, id uuid.UUID, kind models.TokenKind, userID uuid.UUID) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.DeleteActiveToken(ctx, id, kind, userID); err != nil {
		s.log.WithError(err).Warn("failed to clear mirrored lifecycle token")
	}
}
