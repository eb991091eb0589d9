// internal/handlers/tournament.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danverac/swissladder/internal/importer"
	"github.com/danverac/swissladder/internal/lifecycle"
	"github.com/danverac/swissladder/internal/models"
	"github.com/danverac/swissladder/internal/standings"
)

type importRequest struct {
	Name    string     `json:"name"`
	Date    string     `json:"date"` // YYYY-MM-DD
	Rounds  int        `json:"rounds"`
	Casual  bool       `json:"casual"`
	Premium bool       `json:"premium"`
	StoreID *uuid.UUID `json:"store_id,omitempty"`
	Text    string     `json:"text"`
}

type importResponse struct {
	TournamentID uuid.UUID       `json:"tournament_id"`
	ConfirmToken string          `json:"confirm_token"`
	Rounds       int             `json:"rounds"`
	Players      int             `json:"players"`
	Standings    []standings.Row `json:"standings"`
}

// ImportTournamentHandler parses a pairing-software export into a pending
// tournament and returns the single-use confirm token the organizer needs
// to finalize or discard it.
func (a *API) ImportTournamentHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	caller, err := a.callerFromRequest(r)
	if err != nil {
		a.writeError(w, err)
		return
	}

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	raw, err := importer.ParseExport(strings.NewReader(req.Text))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	players, err := a.DB.EnsurePlayers(r.Context(), importer.PlayerNames(raw), a.DefaultRating)
	if err != nil {
		a.writeError(w, err)
		return
	}

	rounds := req.Rounds
	if rounds < importer.MaxRound(raw) {
		rounds = importer.MaxRound(raw)
	}

	token := lifecycle.MintToken()
	t := &models.Tournament{
		ID:           uuid.New(),
		Name:         req.Name,
		Date:         date,
		Rounds:       rounds,
		Imported:     true,
		Casual:       req.Casual,
		Premium:      req.Premium,
		State:        models.StatePendingImport,
		StoreID:      req.StoreID,
		OwnerID:      caller.UserID,
		ConfirmToken: &token,
	}

	ids := make([]uuid.UUID, 0, len(players))
	for _, p := range players {
		ids = append(ids, p.ID)
	}
	matches := buildMatches(t.ID, raw, players)

	if err := a.DB.CreateImport(r.Context(), t, ids, matches); err != nil {
		a.writeError(w, err)
		return
	}
	if a.Mirror != nil {
		if merr := a.Mirror.SetActiveToken(r.Context(), t.ID, models.TokenConfirm, caller.UserID, token); merr != nil {
			a.Log.WithError(merr).Warn("failed to mirror confirm token")
		}
	}

	rows, err := a.previewStandings(r.Context(), t.ID)
	if err != nil {
		// the import itself committed; a broken preview only costs the
		// response's standings block
		a.Log.WithError(err).Warn("failed to compute standings preview for import response")
	}
	writeJSON(w, http.StatusOK, importResponse{
		TournamentID: t.ID,
		ConfirmToken: token,
		Rounds:       rounds,
		Players:      len(ids),
		Standings:    rows,
	})
}

// buildMatches resolves parsed name tuples into match rows. Rows naming a
// player the import did not register are dropped rather than failing the
// whole upload.
func buildMatches(tournamentID uuid.UUID, raw []importer.RawMatch, players map[string]models.Player) []models.Match {
	out := make([]models.Match, 0, len(raw))
	for _, rm := range raw {
		p1, ok := players[rm.Player]
		if !ok {
			continue
		}
		m := models.Match{
			ID:           uuid.New(),
			TournamentID: tournamentID,
			Round:        rm.Round,
			Player1ID:    p1.ID,
			Outcome:      rm.Outcome,
		}
		if rm.Outcome != models.OutcomeBye {
			if rm.Opponent == nil {
				continue
			}
			p2, ok := players[*rm.Opponent]
			if !ok || p2.ID == p1.ID {
				continue
			}
			id := p2.ID
			m.Player2ID = &id
		}
		out = append(out, m)
	}
	return out
}

type tokenRequest struct {
	TournamentID uuid.UUID `json:"tournament_id"`
	Token        string    `json:"token"`
	TopCut       *int      `json:"top_cut,omitempty"`
}

// FinalizeTournamentHandler applies the pending→finalized transition with
// an optional explicit top-cut override.
func (a *API) FinalizeTournamentHandler(w http.ResponseWriter, r *http.Request) {
	caller, req, ok := a.decodeTokenRequest(w, r)
	if !ok {
		return
	}
	res, err := a.Life.Finalize(r.Context(), req.TournamentID, caller, req.Token, req.TopCut)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.publishStandings(r.Context(), req.TournamentID)
	writeJSON(w, http.StatusOK, res)
}

// DiscardTournamentHandler drops a pending import entirely.
func (a *API) DiscardTournamentHandler(w http.ResponseWriter, r *http.Request) {
	caller, req, ok := a.decodeTokenRequest(w, r)
	if !ok {
		return
	}
	if err := a.Life.Discard(r.Context(), req.TournamentID, caller, req.Token); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "discarded"})
}

// BeginEditHandler reopens a finalized tournament and hands back the fresh
// single-use edit token.
func (a *API) BeginEditHandler(w http.ResponseWriter, r *http.Request) {
	caller, req, ok := a.decodeTokenRequest(w, r)
	if !ok {
		return
	}
	token, err := a.Life.BeginEdit(r.Context(), req.TournamentID, caller)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"edit_token": token})
}

type editRoundRequest struct {
	TournamentID uuid.UUID   `json:"tournament_id"`
	Token        string      `json:"token"`
	Round        int         `json:"round"`
	Matches      []matchEdit `json:"matches"`
}

type matchEdit struct {
	Player1ID uuid.UUID      `json:"player1_id"`
	Player2ID *uuid.UUID     `json:"player2_id,omitempty"`
	Outcome   models.Outcome `json:"outcome"`
}

// EditRoundHandler replaces one round's matches during an edit session.
func (a *API) EditRoundHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	caller, err := a.callerFromRequest(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	var req editRoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Token = a.resolveEditToken(r.Context(), req.TournamentID, caller, req.Token)

	matches := make([]models.Match, 0, len(req.Matches))
	for _, me := range req.Matches {
		matches = append(matches, models.Match{
			Player1ID: me.Player1ID,
			Player2ID: me.Player2ID,
			Outcome:   me.Outcome,
		})
	}
	if err := a.Life.SubmitRound(r.Context(), req.TournamentID, caller, req.Token, req.Round, matches); err != nil {
		a.writeError(w, err)
		return
	}
	a.publishStandings(r.Context(), req.TournamentID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "round updated"})
}

// FinishEditHandler completes an edit session, consuming the edit token
// and triggering the recalculation replay.
func (a *API) FinishEditHandler(w http.ResponseWriter, r *http.Request) {
	caller, req, ok := a.decodeTokenRequest(w, r)
	if !ok {
		return
	}
	req.Token = a.resolveEditToken(r.Context(), req.TournamentID, caller, req.Token)
	if err := a.Life.FinishEdit(r.Context(), req.TournamentID, caller, req.Token); err != nil {
		a.writeError(w, err)
		return
	}
	a.publishStandings(r.Context(), req.TournamentID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "finalized"})
}

func (a *API) decodeTokenRequest(w http.ResponseWriter, r *http.Request) (lifecycle.Caller, tokenRequest, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return lifecycle.Caller{}, tokenRequest{}, false
	}
	caller, err := a.callerFromRequest(r)
	if err != nil {
		a.writeError(w, err)
		return lifecycle.Caller{}, tokenRequest{}, false
	}
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return lifecycle.Caller{}, tokenRequest{}, false
	}
	return caller, req, true
}

// resolveEditToken falls back to the caller's own mirrored session token
// when the request body omits one, matching the original UI flow where the
// edit token lives in the organizer's session after BeginEdit. The mirror
// is keyed by user, so the fallback can only ever produce a token the
// caller minted themselves; any other role-authorized caller must present
// the token explicitly.
func (a *API) resolveEditToken(ctx context.Context, tournamentID uuid.UUID, caller lifecycle.Caller, presented string) string {
	if presented != "" || a.Mirror == nil {
		return presented
	}
	cached, err := a.Mirror.GetActiveToken(ctx, tournamentID, models.TokenEdit, caller.UserID)
	if err != nil {
		a.Log.WithError(err).Warn("failed to read mirrored edit token")
		return presented
	}
	return cached
}
