// internal/handlers/api.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/danverac/swissladder/internal/auth"
	"github.com/danverac/swissladder/internal/database"
	"github.com/danverac/swissladder/internal/lifecycle"
	"github.com/danverac/swissladder/internal/models"
	"github.com/danverac/swissladder/internal/rating"
)

// Datastore is what the HTTP layer needs from persistence beyond the
// lifecycle service itself: the read side for standings previews and the
// import write path.
type Datastore interface {
	lifecycle.Storage
	EnsurePlayers(ctx context.Context, names []string, defaultRating int) (map[string]models.Player, error)
	CreateImport(ctx context.Context, t *models.Tournament, playerIDs []uuid.UUID, matches []models.Match) error
}

// UserStore is the account surface for create/login.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// API bundles the handler dependencies.
type API struct {
	DB            Datastore
	Users         UserStore
	Life          *lifecycle.Service
	Eng           rating.Engine
	DefaultRating int
	Feed          *StandingsFeed
	Mirror        lifecycle.TokenMirror // optional session-equivalent token fallback
	Log           *logrus.Logger
}

// callerFromRequest authenticates the session cookie and builds the
// lifecycle caller identity.
func (a *API) callerFromRequest(r *http.Request) (lifecycle.Caller, error) {
	token := extractCookieToken(r.Header.Get("Cookie"), "auth_token")
	if token == "" {
		return lifecycle.Caller{}, lifecycle.ErrForbidden
	}
	claims, err := auth.AuthenticateJWT(token)
	if err != nil {
		return lifecycle.Caller{}, lifecycle.ErrForbidden
	}
	return lifecycle.Caller{
		UserID:    claims.UserID,
		Admin:     claims.Role == models.RoleAdmin,
		Organizer: claims.Role == models.RoleOrganizer,
		StoreID:   claims.StoreID,
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps lifecycle sentinels onto HTTP status codes.
func (a *API) writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, lifecycle.ErrTournamentNotFound),
		errors.Is(err, lifecycle.ErrStoreNotFound),
		errors.Is(err, database.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, lifecycle.ErrForbidden),
		errors.Is(err, lifecycle.ErrStaleToken):
		status = http.StatusForbidden
	case errors.Is(err, lifecycle.ErrAlreadyFinalized),
		errors.Is(err, lifecycle.ErrNotPending),
		errors.Is(err, lifecycle.ErrNotFinalized),
		errors.Is(err, lifecycle.ErrNotEditing):
		status = http.StatusConflict
	case errors.Is(err, lifecycle.ErrNoStoreTokens),
		errors.Is(err, lifecycle.ErrSelfPairing),
		errors.Is(err, lifecycle.ErrBadBye),
		errors.Is(err, lifecycle.ErrInvalidRound):
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
		a.Log.WithError(err).Error("internal error")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
