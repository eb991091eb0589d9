package database

import "context"

// schema is the full DDL, applied idempotently at startup. tournaments.seq
// comes from a sequence so submission order is a strict, collision-free
// total order even when two imports land in the same instant.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	email TEXT UNIQUE NOT NULL,
	password TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'organizer',
	store_id UUID,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS stores (
	id UUID PRIMARY KEY,
	name TEXT UNIQUE NOT NULL,
	premium BOOLEAN NOT NULL DEFAULT FALSE,
	competitive_tokens INT NOT NULL DEFAULT 5,
	premium_tokens INT NOT NULL DEFAULT 1,
	last_token_reset TIMESTAMPTZ NOT NULL DEFAULT now(),
	default_competitive_tokens INT NOT NULL DEFAULT 5,
	default_premium_tokens INT NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS players (
	id UUID PRIMARY KEY,
	name TEXT UNIQUE NOT NULL,
	rating INT NOT NULL,
	casual_points INT NOT NULL DEFAULT 0,
	country TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE SEQUENCE IF NOT EXISTS tournament_seq;

CREATE TABLE IF NOT EXISTS tournaments (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	date DATE NOT NULL,
	rounds INT NOT NULL,
	player_count INT NOT NULL DEFAULT 0,
	imported_from_text BOOLEAN NOT NULL DEFAULT FALSE,
	casual BOOLEAN NOT NULL DEFAULT FALSE,
	premium BOOLEAN NOT NULL DEFAULT FALSE,
	state TEXT NOT NULL DEFAULT 'pending',
	top_cut INT,
	store_id UUID REFERENCES stores(id),
	owner_id UUID NOT NULL,
	seq BIGINT NOT NULL DEFAULT nextval('tournament_seq'),
	submitted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	confirm_token TEXT,
	edit_token TEXT
);

CREATE TABLE IF NOT EXISTS tournament_players (
	tournament_id UUID NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
	player_id UUID NOT NULL REFERENCES players(id),
	PRIMARY KEY (tournament_id, player_id)
);

CREATE TABLE IF NOT EXISTS matches (
	id UUID PRIMARY KEY,
	tournament_id UUID NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
	round INT NOT NULL,
	player1_id UUID NOT NULL REFERENCES players(id),
	player2_id UUID REFERENCES players(id),
	outcome TEXT NOT NULL,
	CHECK (player1_id IS DISTINCT FROM player2_id)
);

CREATE TABLE IF NOT EXISTS decks (
	id UUID PRIMARY KEY,
	tournament_id UUID NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
	player_id UUID NOT NULL REFERENCES players(id),
	archetype TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS rating_changes (
	id UUID PRIMARY KEY,
	player_id UUID NOT NULL REFERENCES players(id),
	tournament_id UUID NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
	match_id UUID NOT NULL,
	round INT NOT NULL,
	old_rating INT NOT NULL,
	new_rating INT NOT NULL
);

CREATE TABLE IF NOT EXISTS casual_awards (
	player_id UUID NOT NULL REFERENCES players(id),
	tournament_id UUID NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
	store_id UUID,
	points INT NOT NULL,
	rank INT NOT NULL,
	awarded_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (player_id, tournament_id)
);

CREATE INDEX IF NOT EXISTS idx_matches_tournament ON matches (tournament_id, round);
CREATE INDEX IF NOT EXISTS idx_rating_changes_player ON rating_changes (player_id);
CREATE INDEX IF NOT EXISTS idx_tournaments_seq ON tournaments (seq);
`

// Migrate applies the schema.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}
