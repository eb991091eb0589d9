// internal/database/store.go
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/danverac/swissladder/internal/lifecycle"
	"github.com/danverac/swissladder/internal/models"
	"github.com/danverac/swissladder/internal/recalc"
)

// Store implements the lifecycle and recalc storage surfaces on postgres.
// Every multi-row write runs inside pgx.BeginTxFunc, and the lifecycle
// state flips are compare-and-set UPDATEs so concurrent transitions
// serialize on the row without a separate locking layer.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps a pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const tournamentCols = `id, name, date, rounds, player_count, imported_from_text, casual,
	premium, state, top_cut, store_id, owner_id, seq, submitted_at, confirm_token, edit_token`

func scanTournament(row pgx.Row) (*models.Tournament, error) {
	var t models.Tournament
	err := row.Scan(&t.ID, &t.Name, &t.Date, &t.Rounds, &t.PlayerCount, &t.Imported, &t.Casual,
		&t.Premium, &t.State, &t.TopCut, &t.StoreID, &t.OwnerID, &t.Seq, &t.SubmittedAt,
		&t.ConfirmToken, &t.EditToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, lifecycle.ErrTournamentNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *Store) GetTournament(ctx context.Context, id uuid.UUID) (*models.Tournament, error) {
	q := `SELECT ` + tournamentCols + ` FROM tournaments WHERE id = $1`
	return scanTournament(s.pool.QueryRow(ctx, q, id))
}

func (s *Store) GetStore(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	q := `
		SELECT id, name, premium, competitive_tokens, premium_tokens, last_token_reset,
		       default_competitive_tokens, default_premium_tokens
		FROM stores WHERE id = $1
	`
	var st models.Store
	err := s.pool.QueryRow(ctx, q, id).Scan(&st.ID, &st.Name, &st.Premium,
		&st.CompetitiveTokens, &st.PremiumTokens, &st.LastTokenReset,
		&st.DefaultCompetitiveTokens, &st.DefaultPremiumTokens)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, lifecycle.ErrStoreNotFound
		}
		return nil, err
	}
	return &st, nil
}

func (s *Store) TournamentPlayers(ctx context.Context, tournamentID uuid.UUID) ([]models.Player, error) {
	q := `
		SELECT p.id, p.name, p.rating, p.casual_points, p.country, p.created_at
		FROM tournament_players tp
		JOIN players p ON p.id = tp.player_id
		WHERE tp.tournament_id = $1
		ORDER BY p.name
	`
	rows, err := s.pool.Query(ctx, q, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Player
	for rows.Next() {
		var p models.Player
		if err := rows.Scan(&p.ID, &p.Name, &p.Rating, &p.CasualPoints, &p.Country, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) TournamentMatches(ctx context.Context, tournamentID uuid.UUID) ([]models.Match, error) {
	q := `
		SELECT id, tournament_id, round, player1_id, player2_id, outcome
		FROM matches WHERE tournament_id = $1 ORDER BY round, id
	`
	rows, err := s.pool.Query(ctx, q, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Match
	for rows.Next() {
		var m models.Match
		if err := rows.Scan(&m.ID, &m.TournamentID, &m.Round, &m.Player1ID, &m.Player2ID, &m.Outcome); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) TournamentPlayerIDs(ctx context.Context, tournamentID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT player_id FROM tournament_players WHERE tournament_id = $1`, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) PlayerRatings(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, rating FROM players WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID]int, len(ids))
	for rows.Next() {
		var id uuid.UUID
		var r int
		if err := rows.Scan(&id, &r); err != nil {
			return nil, err
		}
		out[id] = r
	}
	return out, rows.Err()
}

func (s *Store) PriorFinalizedCounts(ctx context.Context, seq int64, playerIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	q := `
		SELECT tp.player_id, COUNT(*)
		FROM tournament_players tp
		JOIN tournaments t ON t.id = tp.tournament_id
		WHERE t.seq < $1 AND t.state IN ('finalized', 'editing') AND tp.player_id = ANY($2)
		GROUP BY tp.player_id
	`
	rows, err := s.pool.Query(ctx, q, seq, playerIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID]int, len(playerIDs))
	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

func (s *Store) RatedTournaments(ctx context.Context) ([]models.Tournament, error) {
	q := `SELECT ` + tournamentCols + ` FROM tournaments WHERE state IN ('finalized', 'editing') ORDER BY seq`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Tournament
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// CommitFinalize flips pending→finalized and writes ratings, history,
// casual awards and the store token spend in one transaction. The UPDATE's
// state predicate is the compare-and-set: zero rows means another caller
// already moved the tournament out of pending.
func (s *Store) CommitFinalize(ctx context.Context, c lifecycle.FinalizeCommit) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE tournaments
			SET state = 'finalized', confirm_token = NULL, top_cut = $2
			WHERE id = $1 AND state = 'pending'
		`, c.TournamentID, c.TopCut)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return lifecycle.ErrAlreadyFinalized
		}

		for pid, r := range c.Ratings {
			if _, err := tx.Exec(ctx, `UPDATE players SET rating = $1 WHERE id = $2`, r, pid); err != nil {
				return err
			}
		}
		if err := insertHistory(ctx, tx, c.History); err != nil {
			return err
		}
		for _, a := range c.CasualAwards {
			if _, err := tx.Exec(ctx, `
				INSERT INTO casual_awards (player_id, tournament_id, store_id, points, rank, awarded_at)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, a.PlayerID, a.TournamentID, a.StoreID, a.Points, a.Rank, a.AwardedAt); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`UPDATE players SET casual_points = casual_points + $1 WHERE id = $2`,
				a.Points, a.PlayerID); err != nil {
				return err
			}
		}
		if c.StoreSpend != nil {
			return spendStoreToken(ctx, tx, c.StoreSpend)
		}
		return nil
	})
}

// spendStoreToken refills the monthly allotment if the calendar month has
// rolled over, then decrements the right pool guarded on its current
// value. Zero rows means the pool hit zero first, concurrent finalizers
// included, and the whole finalize transaction rolls back.
func spendStoreToken(ctx context.Context, tx pgx.Tx, sp *lifecycle.StoreSpend) error {
	if _, err := tx.Exec(ctx, `
		UPDATE stores
		SET competitive_tokens = default_competitive_tokens,
		    premium_tokens = default_premium_tokens,
		    last_token_reset = now()
		WHERE id = $1 AND date_trunc('month', last_token_reset) < date_trunc('month', now())
	`, sp.StoreID); err != nil {
		return err
	}

	col := "competitive_tokens"
	if sp.Premium {
		col = "premium_tokens"
	}
	tag, err := tx.Exec(ctx, fmt.Sprintf(
		`UPDATE stores SET %[1]s = %[1]s - 1 WHERE id = $1 AND %[1]s > 0`, col), sp.StoreID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return lifecycle.ErrNoStoreTokens
	}
	return nil
}

func (s *Store) DiscardPending(ctx context.Context, id uuid.UUID) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		// dependent rows cascade via FK
		tag, err := tx.Exec(ctx, `DELETE FROM tournaments WHERE id = $1 AND state = 'pending'`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return lifecycle.ErrNotPending
		}
		return nil
	})
}

func (s *Store) BeginEdit(ctx context.Context, id uuid.UUID, editToken string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tournaments SET state = 'editing', edit_token = $2
		WHERE id = $1 AND state = 'finalized'
	`, id, editToken)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return lifecycle.ErrNotFinalized
	}
	return nil
}

func (s *Store) ReplaceRound(ctx context.Context, id uuid.UUID, round int, matches []models.Match) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM matches WHERE tournament_id = $1 AND round = $2`, id, round); err != nil {
			return err
		}
		for _, m := range matches {
			if _, err := tx.Exec(ctx, `
				INSERT INTO matches (id, tournament_id, round, player1_id, player2_id, outcome)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, m.ID, m.TournamentID, m.Round, m.Player1ID, m.Player2ID, m.Outcome); err != nil {
				return err
			}
		}
		return nil
	})
}

// ApplyReplay commits a full recalculation: affected ratings, rewritten
// history for the replayed tournaments, and optionally the edit completion
// flip, all or nothing.
func (s *Store) ApplyReplay(ctx context.Context, c recalc.Commit) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if c.FinishEdit != nil {
			tag, err := tx.Exec(ctx, `
				UPDATE tournaments SET state = 'finalized', edit_token = NULL
				WHERE id = $1 AND state = 'editing'
			`, *c.FinishEdit)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return lifecycle.ErrNotEditing
			}
		}
		for pid, r := range c.Ratings {
			if _, err := tx.Exec(ctx, `UPDATE players SET rating = $1 WHERE id = $2`, r, pid); err != nil {
				return err
			}
		}
		if len(c.RewriteTournaments) > 0 {
			if _, err := tx.Exec(ctx,
				`DELETE FROM rating_changes WHERE tournament_id = ANY($1)`, c.RewriteTournaments); err != nil {
				return err
			}
		}
		return insertHistory(ctx, tx, c.History)
	})
}

func insertHistory(ctx context.Context, tx pgx.Tx, history []models.RatingChange) error {
	for _, h := range history {
		if _, err := tx.Exec(ctx, `
			INSERT INTO rating_changes (id, player_id, tournament_id, match_id, round, old_rating, new_rating)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, h.ID, h.PlayerID, h.TournamentID, h.MatchID, h.Round, h.OldRating, h.NewRating); err != nil {
			return err
		}
	}
	return nil
}

// EnsurePlayers resolves player names to rows, creating missing players at
// the default starting rating.
func (s *Store) EnsurePlayers(ctx context.Context, names []string, defaultRating int) (map[string]models.Player, error) {
	out := make(map[string]models.Player, len(names))
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, name := range names {
			var p models.Player
			err := tx.QueryRow(ctx, `
				SELECT id, name, rating, casual_points, country, created_at
				FROM players WHERE name = $1
			`, name).Scan(&p.ID, &p.Name, &p.Rating, &p.CasualPoints, &p.Country, &p.CreatedAt)
			if errors.Is(err, pgx.ErrNoRows) {
				p = models.Player{ID: uuid.New(), Name: name, Rating: defaultRating, CreatedAt: time.Now().UTC()}
				if _, err := tx.Exec(ctx, `
					INSERT INTO players (id, name, rating, casual_points, created_at)
					VALUES ($1, $2, $3, 0, $4)
				`, p.ID, p.Name, p.Rating, p.CreatedAt); err != nil {
					return err
				}
			} else if err != nil {
				return err
			}
			out[name] = p
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ensure players: %w", err)
	}
	return out, nil
}

// CreateImport persists a freshly parsed tournament in pending state, with
// its membership edges and matches, in one transaction. The submission
// sequence comes from the tournament_seq sequence.
func (s *Store) CreateImport(ctx context.Context, t *models.Tournament, playerIDs []uuid.UUID, matches []models.Match) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO tournaments (id, name, date, rounds, player_count, imported_from_text,
				casual, premium, state, store_id, owner_id, confirm_token)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', $9, $10, $11)
			RETURNING seq, submitted_at
		`, t.ID, t.Name, t.Date, t.Rounds, len(playerIDs), t.Imported,
			t.Casual, t.Premium, t.StoreID, t.OwnerID, t.ConfirmToken).Scan(&t.Seq, &t.SubmittedAt)
		if err != nil {
			return err
		}
		for _, pid := range playerIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO tournament_players (tournament_id, player_id) VALUES ($1, $2)
				ON CONFLICT DO NOTHING
			`, t.ID, pid); err != nil {
				return err
			}
		}
		for _, m := range matches {
			if _, err := tx.Exec(ctx, `
				INSERT INTO matches (id, tournament_id, round, player1_id, player2_id, outcome)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, m.ID, t.ID, m.Round, m.Player1ID, m.Player2ID, m.Outcome); err != nil {
				return err
			}
		}
		return nil
	})
}
