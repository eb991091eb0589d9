package lifecycle

import (
	"crypto/subtle"
	"strings"

	"github.com/google/uuid"

	"github.com/danverac/swissladder/internal/models"
)

// MintToken returns a fresh single-use lifecycle token. Tokens are bound to
// one tournament and one transition; they are nulled the instant their
// transition completes, so a replayed token can never match again.
func MintToken() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

// verifyToken checks the presented token against the tournament's active
// token for the requested transition. Every call site shares this one
// policy; nothing else in the repo compares token strings.
func verifyToken(t *models.Tournament, kind models.TokenKind, presented string) error {
	active := t.ActiveToken(kind)
	if active == nil || *active == "" || presented == "" {
		return ErrStaleToken
	}
	if subtle.ConstantTimeCompare([]byte(*active), []byte(presented)) != 1 {
		return ErrStaleToken
	}
	return nil
}
