package rating

import "github.com/google/uuid"

// Book is an explicit rating snapshot used by previews and recalculation
// replays. All speculative rating movement happens inside a Book; persisted
// ratings are only ever written from a Book's final contents during a real
// commit. This replaces the mutate-then-revert trick against live shared
// state, which is unsafe under concurrent readers.
type Book struct {
	defaultRating int
	base          map[uuid.UUID]int
	current       map[uuid.UUID]int
}

// NewBook returns an empty Book; players first seen through Get are seeded
// at defaultRating.
func NewBook(defaultRating int) *Book {
	return &Book{
		defaultRating: defaultRating,
		base:          make(map[uuid.UUID]int),
		current:       make(map[uuid.UUID]int),
	}
}

// Seed records a player's baseline rating if they are not already present.
func (b *Book) Seed(id uuid.UUID, rating int) {
	if _, ok := b.current[id]; ok {
		return
	}
	b.base[id] = rating
	b.current[id] = rating
}

// Get returns the player's current rating, seeding the default for players
// never seen before.
func (b *Book) Get(id uuid.UUID) int {
	if r, ok := b.current[id]; ok {
		return r
	}
	b.base[id] = b.defaultRating
	b.current[id] = b.defaultRating
	return b.defaultRating
}

// Set records a new current rating for the player.
func (b *Book) Set(id uuid.UUID, rating int) {
	if _, ok := b.current[id]; !ok {
		b.base[id] = b.defaultRating
	}
	b.current[id] = rating
}

// Delta returns the net movement from the player's baseline.
func (b *Book) Delta(id uuid.UUID) int {
	return b.current[id] - b.base[id]
}

// Ratings returns a copy of every tracked player's current rating.
func (b *Book) Ratings() map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(b.current))
	for id, r := range b.current {
		out[id] = r
	}
	return out
}
