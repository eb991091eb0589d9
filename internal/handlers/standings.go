package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/danverac/swissladder/internal/standings"
)

// StandingsHandler serves a side-effect-free standings preview for any
// tournament state. No auth: previews mutate nothing and are safe for
// concurrent readers.
func (a *API) StandingsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "invalid tournament id", http.StatusBadRequest)
		return
	}
	rows, err := a.previewStandings(r.Context(), id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// previewStandings assembles a standings preview from storage.
func (a *API) previewStandings(ctx context.Context, tournamentID uuid.UUID) ([]standings.Row, error) {
	t, err := a.DB.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	players, err := a.DB.TournamentPlayers(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	matches, err := a.DB.TournamentMatches(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}
	prior, err := a.DB.PriorFinalizedCounts(ctx, t.Seq, ids)
	if err != nil {
		return nil, err
	}
	return standings.Compute(t, players, matches, prior, a.Eng), nil
}

// publishStandings recomputes standings after a committed mutation and
// pushes them to live feed subscribers. Failures only cost the push.
func (a *API) publishStandings(ctx context.Context, tournamentID uuid.UUID) {
	if a.Feed == nil {
		return
	}
	rows, err := a.previewStandings(ctx, tournamentID)
	if err != nil {
		a.Log.WithError(err).Warn("failed to compute standings for feed")
		return
	}
	a.Feed.Publish(tournamentID, rows)
}
