package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/danverac/swissladder/internal/models"
)

// ErrUserNotFound is returned when no account matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// CreateUser inserts an organizer/admin account. The password field must
// already be hashed.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = models.RoleOrganizer
	}
	q := `
		INSERT INTO users (id, email, password, role, store_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	return s.pool.QueryRow(ctx, q, u.ID, u.Email, u.Password, u.Role, u.StoreID).Scan(&u.CreatedAt)
}

// GetUserByEmail fetches an account for login.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	q := `SELECT id, email, password, role, store_id, created_at FROM users WHERE email = $1`
	var u models.User
	err := s.pool.QueryRow(ctx, q, email).Scan(&u.ID, &u.Email, &u.Password, &u.Role, &u.StoreID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}
