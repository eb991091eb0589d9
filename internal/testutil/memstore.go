// internal/testutil/memstore.go
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danverac/swissladder/internal/lifecycle"
	"github.com/danverac/swissladder/internal/models"
	"github.com/danverac/swissladder/internal/recalc"
)

// MemStore is an in-memory implementation of the lifecycle and recalc
// storage surfaces, used by package tests in place of postgres. Writes are
// applied under one mutex, which gives tests the same all-or-nothing
// visibility the pgx transactions give production.
type MemStore struct {
	mu sync.Mutex

	Players     map[uuid.UUID]*models.Player
	Tournaments map[uuid.UUID]*models.Tournament
	Members     map[uuid.UUID][]uuid.UUID // tournament -> player ids
	Matches     map[uuid.UUID][]models.Match
	Decks       map[uuid.UUID][]models.Deck
	Stores      map[uuid.UUID]*models.Store
	History     map[uuid.UUID][]models.RatingChange // tournament -> rows
	Awards      []models.CasualAward

	nextSeq int64
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		Players:     make(map[uuid.UUID]*models.Player),
		Tournaments: make(map[uuid.UUID]*models.Tournament),
		Members:     make(map[uuid.UUID][]uuid.UUID),
		Matches:     make(map[uuid.UUID][]models.Match),
		Decks:       make(map[uuid.UUID][]models.Deck),
		Stores:      make(map[uuid.UUID]*models.Store),
		History:     make(map[uuid.UUID][]models.RatingChange),
	}
}

// AddPlayer registers a player and returns it.
func (s *MemStore) AddPlayer(name string, ratingValue int) *models.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &models.Player{ID: uuid.New(), Name: name, Rating: ratingValue, CreatedAt: time.Now()}
	s.Players[p.ID] = p
	return p
}

// AddTournament registers a tournament with the next submission sequence
// and the given members, and returns it.
func (s *MemStore) AddTournament(t *models.Tournament, memberIDs []uuid.UUID, matches []models.Match) *models.Tournament {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	s.nextSeq++
	t.Seq = s.nextSeq
	if t.SubmittedAt.IsZero() {
		t.SubmittedAt = time.Now()
	}
	t.PlayerCount = len(memberIDs)
	s.Tournaments[t.ID] = t
	s.Members[t.ID] = append([]uuid.UUID(nil), memberIDs...)
	for i := range matches {
		if matches[i].ID == uuid.Nil {
			matches[i].ID = uuid.New()
		}
		matches[i].TournamentID = t.ID
	}
	s.Matches[t.ID] = append([]models.Match(nil), matches...)
	return t
}

func (s *MemStore) GetTournament(ctx context.Context, id uuid.UUID) (*models.Tournament, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.Tournaments[id]
	if !ok {
		return nil, lifecycle.ErrTournamentNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemStore) GetStore(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.Stores[id]
	if !ok {
		return nil, lifecycle.ErrStoreNotFound
	}
	cp := *st
	return &cp, nil
}

func (s *MemStore) TournamentPlayers(ctx context.Context, id uuid.UUID) ([]models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Player
	for _, pid := range s.Members[id] {
		if p, ok := s.Players[pid]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *MemStore) TournamentMatches(ctx context.Context, id uuid.UUID) ([]models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Match(nil), s.Matches[id]...), nil
}

func (s *MemStore) TournamentPlayerIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uuid.UUID(nil), s.Members[id]...), nil
}

func (s *MemStore) PlayerRatings(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID]int, len(ids))
	for _, id := range ids {
		if p, ok := s.Players[id]; ok {
			out[id] = p.Rating
		}
	}
	return out, nil
}

func (s *MemStore) PriorFinalizedCounts(ctx context.Context, seq int64, playerIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(playerIDs))
	for _, id := range playerIDs {
		want[id] = true
	}
	out := make(map[uuid.UUID]int, len(playerIDs))
	for tid, t := range s.Tournaments {
		if t.Seq >= seq || (t.State != models.StateFinalized && t.State != models.StateEditing) {
			continue
		}
		for _, pid := range s.Members[tid] {
			if want[pid] {
				out[pid]++
			}
		}
	}
	return out, nil
}

func (s *MemStore) RatedTournaments(ctx context.Context) ([]models.Tournament, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Tournament
	for _, t := range s.Tournaments {
		if t.State == models.StateFinalized || t.State == models.StateEditing {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *MemStore) CommitFinalize(ctx context.Context, c lifecycle.FinalizeCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.Tournaments[c.TournamentID]
	if !ok {
		return lifecycle.ErrTournamentNotFound
	}
	if t.State != models.StatePendingImport {
		// compare-and-set miss: someone else finalized or discarded first
		return lifecycle.ErrAlreadyFinalized
	}

	// the spend guard runs before any other mutation so a refused spend
	// leaves the commit untouched, like the SQL transaction's rollback
	if c.StoreSpend != nil {
		st, ok := s.Stores[c.StoreSpend.StoreID]
		if !ok {
			return lifecycle.ErrStoreNotFound
		}
		comp, prem, reset := st.CompetitiveTokens, st.PremiumTokens, st.LastTokenReset
		now := time.Now().UTC()
		if st.NeedsTokenReset(now) {
			comp, prem, reset = st.DefaultCompetitiveTokens, st.DefaultPremiumTokens, now
		}
		if c.StoreSpend.Premium {
			if prem <= 0 {
				return lifecycle.ErrNoStoreTokens
			}
			prem--
		} else {
			if comp <= 0 {
				return lifecycle.ErrNoStoreTokens
			}
			comp--
		}
		st.CompetitiveTokens, st.PremiumTokens, st.LastTokenReset = comp, prem, reset
	}

	t.State = models.StateFinalized
	t.ConfirmToken = nil
	t.TopCut = c.TopCut
	for pid, r := range c.Ratings {
		if p, ok := s.Players[pid]; ok {
			p.Rating = r
		}
	}
	s.History[t.ID] = append([]models.RatingChange(nil), c.History...)
	for _, a := range c.CasualAwards {
		if p, ok := s.Players[a.PlayerID]; ok {
			p.CasualPoints += a.Points
		}
	}
	s.Awards = append(s.Awards, c.CasualAwards...)
	return nil
}

func (s *MemStore) DiscardPending(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.Tournaments[id]
	if !ok {
		return lifecycle.ErrTournamentNotFound
	}
	if t.State != models.StatePendingImport {
		return lifecycle.ErrNotPending
	}
	delete(s.Tournaments, id)
	delete(s.Members, id)
	delete(s.Matches, id)
	delete(s.Decks, id)
	delete(s.History, id)
	return nil
}

func (s *MemStore) BeginEdit(ctx context.Context, id uuid.UUID, editToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.Tournaments[id]
	if !ok {
		return lifecycle.ErrTournamentNotFound
	}
	if t.State != models.StateFinalized {
		return lifecycle.ErrNotFinalized
	}
	t.State = models.StateEditing
	t.EditToken = &editToken
	return nil
}

func (s *MemStore) ReplaceRound(ctx context.Context, id uuid.UUID, round int, matches []models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Tournaments[id]; !ok {
		return lifecycle.ErrTournamentNotFound
	}
	var kept []models.Match
	for _, m := range s.Matches[id] {
		if m.Round != round {
			kept = append(kept, m)
		}
	}
	s.Matches[id] = append(kept, matches...)
	return nil
}

func (s *MemStore) ApplyReplay(ctx context.Context, c recalc.Commit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.FinishEdit != nil {
		t, ok := s.Tournaments[*c.FinishEdit]
		if !ok {
			return lifecycle.ErrTournamentNotFound
		}
		if t.State != models.StateEditing {
			return lifecycle.ErrNotEditing
		}
		t.State = models.StateFinalized
		t.EditToken = nil
	}
	for pid, r := range c.Ratings {
		if p, ok := s.Players[pid]; ok {
			p.Rating = r
		}
	}
	for _, tid := range c.RewriteTournaments {
		s.History[tid] = nil
	}
	for _, h := range c.History {
		s.History[h.TournamentID] = append(s.History[h.TournamentID], h)
	}
	return nil
}

// EnsurePlayers returns players by name, creating missing ones at the
// given default rating.
func (s *MemStore) EnsurePlayers(ctx context.Context, names []string, defaultRating int) (map[string]models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.Player, len(names))
	for _, name := range names {
		var found *models.Player
		for _, p := range s.Players {
			if p.Name == name {
				found = p
				break
			}
		}
		if found == nil {
			found = &models.Player{ID: uuid.New(), Name: name, Rating: defaultRating, CreatedAt: time.Now()}
			s.Players[found.ID] = found
		}
		out[name] = *found
	}
	return out, nil
}

// CreateImport persists a freshly parsed tournament in pending state with
// the next submission sequence.
func (s *MemStore) CreateImport(ctx context.Context, t *models.Tournament, playerIDs []uuid.UUID, matches []models.Match) error {
	s.AddTournament(t, playerIDs, matches)
	return nil
}
