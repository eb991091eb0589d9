package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/danverac/swissladder/internal/auth"
	"github.com/danverac/swissladder/internal/models"
)

type createUserRequest struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     string     `json:"role,omitempty"`
	StoreID  *uuid.UUID `json:"store_id,omitempty"`
}

// CreateUserHandler registers an organizer account. Role defaults to
// organizer; only an authenticated admin may create another admin.
func (a *API) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || len(req.Password) < 8 {
		http.Error(w, "email and a password of at least 8 characters are required", http.StatusBadRequest)
		return
	}
	role := req.Role
	if role != models.RoleAdmin {
		role = models.RoleOrganizer
	} else if caller, err := a.callerFromRequest(r); err != nil || !caller.Admin {
		http.Error(w, "only admins may create admin accounts", http.StatusForbidden)
		return
	}

	hash, err := auth.CreateHash(req.Password, auth.Params)
	if err != nil {
		a.writeError(w, err)
		return
	}
	u := &models.User{
		Email:    req.Email,
		Password: hash,
		Role:     role,
		StoreID:  req.StoreID,
	}
	if err := a.Users.CreateUser(r.Context(), u); err != nil {
		a.writeError(w, err)
		return
	}

	u.Password = ""
	writeJSON(w, http.StatusOK, u)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginHandler verifies credentials and sets the session cookie.
func (a *API) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	u, err := a.Users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		http.Error(w, "invalid email or password", http.StatusForbidden)
		return
	}
	ok, err := auth.ComparePasswordAndHash(req.Password, u.Password)
	if err != nil || !ok {
		http.Error(w, "invalid email or password", http.StatusForbidden)
		return
	}

	token, err := auth.CreateJWT(u.ID, u.Role, u.StoreID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		HttpOnly: true,
		Path:     "/",
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
