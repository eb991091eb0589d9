package models

import (
	"time"

	"github.com/google/uuid"
)

// Roles an account can hold. Organizers run their store's tournaments;
// admins can touch anything.
const (
	RoleOrganizer = "organizer"
	RoleAdmin     = "admin"
)

// User is an organizer or admin account. Players are not users; they are
// roster entries discovered through imports.
type User struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	Password  string     `json:"password,omitempty"` // argon2id hash
	Role      string     `json:"role"`
	StoreID   *uuid.UUID `json:"store_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
