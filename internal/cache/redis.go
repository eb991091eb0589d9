// internal/cache/redis.go
package cache

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/danverac/swissladder/internal/models"
)

// tokenTTL bounds how long a mirrored lifecycle token outlives an
// abandoned session. The tournament row stays authoritative; an expired
// mirror entry only means the organizer re-presents the token explicitly.
const tokenTTL = 24 * time.Hour

// Mirror is the redis-backed session-equivalent store for active lifecycle
// tokens, keyed by tournament id, token kind and the user who minted the
// token. The user binding keeps a cached token private to its session;
// other callers must present the token explicitly.
type Mirror struct {
	rdb *redis.Client
}

// ConnectMirror initializes a Mirror from environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func ConnectMirror(ctx context.Context) (*Mirror, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &Mirror{rdb: rdb}, nil
}

func tokenKey(tournamentID uuid.UUID, kind models.TokenKind, userID uuid.UUID) string {
	return fmt.Sprintf("ladder:token:%s:%s:%s", kind, tournamentID, userID)
}

// SetActiveToken mirrors a freshly minted lifecycle token for one session.
func (m *Mirror) SetActiveToken(ctx context.Context, tournamentID uuid.UUID, kind models.TokenKind, userID uuid.UUID, token string) error {
	return m.rdb.Set(ctx, tokenKey(tournamentID, kind, userID), token, tokenTTL).Err()
}

// GetActiveToken returns the caller's mirrored token, or "" when none is
// cached for this user.
func (m *Mirror) GetActiveToken(ctx context.Context, tournamentID uuid.UUID, kind models.TokenKind, userID uuid.UUID) (string, error) {
	val, err := m.rdb.Get(ctx, tokenKey(tournamentID, kind, userID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

// DeleteActiveToken clears a consumed token from the mirror.
func (m *Mirror) DeleteActiveToken(ctx context.Context, tournamentID uuid.UUID, kind models.TokenKind, userID uuid.UUID) error {
	return m.rdb.Del(ctx, tokenKey(tournamentID, kind, userID)).Err()
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
