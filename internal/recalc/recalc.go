// internal/recalc/recalc.go
package recalc

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/danverac/swissladder/internal/models"
	"github.com/danverac/swissladder/internal/rating"
)

// Storage is the persistence surface the orchestrator consumes. The
// pgx-backed store implements it; tests use the shared in-memory fake.
type Storage interface {
	GetTournament(ctx context.Context, id uuid.UUID) (*models.Tournament, error)

	// RatedTournaments returns every tournament whose ratings are applied
	// (finalized, plus the one currently editing, whose pre-edit ratings
	// are applied too) in ascending submission-sequence order.
	RatedTournaments(ctx context.Context) ([]models.Tournament, error)

	TournamentPlayerIDs(ctx context.Context, tournamentID uuid.UUID) ([]uuid.UUID, error)
	TournamentMatches(ctx context.Context, tournamentID uuid.UUID) ([]models.Match, error)
	PlayerRatings(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error)

	// ApplyReplay commits the whole replay in one transaction: affected
	// players' final ratings, rewritten history for the replayed
	// tournaments, and optionally the editing→finalized flip with its edit
	// token cleared. A mid-replay failure leaves prior ratings untouched.
	ApplyReplay(ctx context.Context, c Commit) error
}

// Commit is the atomic output of a replay.
type Commit struct {
	Ratings            map[uuid.UUID]int
	History            []models.RatingChange
	RewriteTournaments []uuid.UUID
	FinishEdit         *uuid.UUID
}

// Orchestrator rebuilds rating history after a retroactive match edit.
// Rating is path-dependent, so an edit to a past tournament invalidates
// every later rating that shares a player with it; the orchestrator resets
// those players and replays the engine over the fixed total order of
// tournament submissions.
type Orchestrator struct {
	store         Storage
	eng           rating.Engine
	defaultRating int
	log           *logrus.Logger
}

// NewOrchestrator wires a replay orchestrator.
func NewOrchestrator(store Storage, eng rating.Engine, defaultRating int, log *logrus.Logger) *Orchestrator {
	if log == nil {
		log = logrus.New()
	}
	return &Orchestrator{store: store, eng: eng, defaultRating: defaultRating, log: log}
}

// Replay implements the deterministic recalculation:
//
//  1. Find the edited tournament's submission sequence S.
//  2. Collect every distinct player of any rated tournament with seq >= S.
//  3. Reset those players to the default starting rating in a snapshot
//     Book.
//  4. Walk rated tournaments with seq < S in ascending order; those
//     involving an affected player are re-applied inside the Book to
//     reconstruct each affected player's starting-point rating.
//  5. Walk rated tournaments with seq >= S (the edited one now carries its
//     corrected matches) and re-apply them all.
//
// Only affected players' ratings are committed; rating history is
// rewritten for the seq >= S tournaments, whose recorded steps the edit
// invalidated. Given the fixed sequence order the result is deterministic:
// running Replay twice in a row produces identical ratings.
func (o *Orchestrator) Replay(ctx context.Context, editedTournament uuid.UUID, finishEdit bool) error {
	edited, err := o.store.GetTournament(ctx, editedTournament)
	if err != nil {
		return err
	}
	cutoff := edited.Seq

	all, err := o.store.RatedTournaments(ctx)
	if err != nil {
		return err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Seq < all[j].Seq })

	rosters := make(map[uuid.UUID][]uuid.UUID, len(all))
	affected := make(map[uuid.UUID]bool)
	var everyone []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, t := range all {
		ids, err := o.store.TournamentPlayerIDs(ctx, t.ID)
		if err != nil {
			return err
		}
		rosters[t.ID] = ids
		for _, id := range ids {
			if t.Seq >= cutoff {
				affected[id] = true
			}
			if !seen[id] {
				seen[id] = true
				everyone = append(everyone, id)
			}
		}
	}

	stored, err := o.store.PlayerRatings(ctx, everyone)
	if err != nil {
		return err
	}

	book := rating.NewBook(o.defaultRating)
	for _, id := range everyone {
		if affected[id] {
			book.Seed(id, o.defaultRating)
		} else {
			// unaffected players keep their committed rating; they only
			// serve as opponents while reconstructing starting points
			book.Seed(id, stored[id])
		}
	}

	counts := make(map[uuid.UUID]int) // finalized tournaments completed so far, per player
	var history []models.RatingChange
	var rewrite []uuid.UUID

	for _, t := range all {
		roster := rosters[t.ID]
		if t.Seq < cutoff && !touchesAffected(roster, affected) {
			bump(counts, roster)
			continue
		}

		matches, err := o.store.TournamentMatches(ctx, t.ID)
		if err != nil {
			return err
		}
		sort.SliceStable(matches, func(i, j int) bool { return matches[i].Round < matches[j].Round })

		inRoster := make(map[uuid.UUID]bool, len(roster))
		for _, id := range roster {
			inRoster[id] = true
		}

		record := t.Seq >= cutoff
		if record {
			rewrite = append(rewrite, t.ID)
		}

		for _, m := range matches {
			if m.IsBye() || !inRoster[m.Player1ID] || !inRoster[*m.Player2ID] {
				continue
			}
			oldA, oldB := book.Get(m.Player1ID), book.Get(*m.Player2ID)
			ka := rating.KFactor(t.Casual, t.Premium, counts[m.Player1ID])
			kb := rating.KFactor(t.Casual, t.Premium, counts[*m.Player2ID])
			newA, newB := o.eng.Apply(oldA, oldB, m.Outcome, ka, kb)
			book.Set(m.Player1ID, newA)
			book.Set(*m.Player2ID, newB)
			if record {
				history = append(history,
					models.RatingChange{ID: uuid.New(), PlayerID: m.Player1ID, TournamentID: t.ID, MatchID: m.ID, Round: m.Round, OldRating: oldA, NewRating: newA},
					models.RatingChange{ID: uuid.New(), PlayerID: *m.Player2ID, TournamentID: t.ID, MatchID: m.ID, Round: m.Round, OldRating: oldB, NewRating: newB},
				)
			}
		}
		bump(counts, roster)
	}

	final := make(map[uuid.UUID]int, len(affected))
	for id := range affected {
		final[id] = book.Get(id)
	}

	commit := Commit{
		Ratings:            final,
		History:            history,
		RewriteTournaments: rewrite,
	}
	if finishEdit {
		commit.FinishEdit = &edited.ID
	}
	if err := o.store.ApplyReplay(ctx, commit); err != nil {
		return err
	}

	o.log.WithFields(logrus.Fields{
		"edited":      edited.ID,
		"cutoff_seq":  cutoff,
		"affected":    len(final),
		"tournaments": len(rewrite),
	}).Info("rating recalculation committed")
	return nil
}

func touchesAffected(roster []uuid.UUID, affected map[uuid.UUID]bool) bool {
	for _, id := range roster {
		if affected[id] {
			return true
		}
	}
	return false
}

func bump(counts map[uuid.UUID]int, roster []uuid.UUID) {
	for _, id := range roster {
		counts[id]++
	}
}
