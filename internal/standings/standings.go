// internal/standings/standings.go
package standings

import (
	"sort"

	"github.com/google/uuid"

	"github.com/danverac/swissladder/internal/models"
	"github.com/danverac/swissladder/internal/rating"
)

// Row is one ranked standings line for a single tournament.
type Row struct {
	PlayerID    uuid.UUID `json:"player_id"`
	Name        string    `json:"name"`
	Wins        int       `json:"wins"`
	Draws       int       `json:"draws"`
	Losses      int       `json:"losses"`
	Points      int       `json:"points"`
	RatingDelta int       `json:"rating_delta"`
}

// Compute aggregates a tournament's matches into ranked rows. Rating deltas
// come from a preview replay against a snapshot Book seeded from the
// supplied players, so persisted ratings are never touched and the function
// is safe to call repeatedly and concurrently.
//
// priorFinalized carries each player's count of previously finalized
// tournaments, feeding the provisional k multiplier; missing entries mean
// zero. Matches referencing a player outside the supplied set are skipped,
// and unknown outcomes score as draws, so Compute never fails.
//
// Ordering is points desc, wins desc, then player name asc as a documented
// deterministic tertiary key.
func Compute(t *models.Tournament, players []models.Player, matches []models.Match, priorFinalized map[uuid.UUID]int, eng rating.Engine) []Row {
	known := make(map[uuid.UUID]*Row, len(players))
	book := rating.NewBook(0)
	for _, p := range players {
		known[p.ID] = &Row{PlayerID: p.ID, Name: p.Name}
		book.Seed(p.ID, p.Rating)
	}

	ordered := make([]models.Match, len(matches))
	copy(ordered, matches)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Round < ordered[j].Round
	})

	for _, m := range ordered {
		p1, ok := known[m.Player1ID]
		if !ok {
			continue
		}
		if m.IsBye() {
			p1.Wins++
			p1.Points += 3
			continue
		}
		p2, ok := known[*m.Player2ID]
		if !ok {
			continue
		}

		pa, pb := m.Outcome.Points()
		p1.Points += pa
		p2.Points += pb
		tally(p1, p2, pa, pb)

		ka := kFor(t, priorFinalized[p1.PlayerID])
		kb := kFor(t, priorFinalized[p2.PlayerID])
		ra, rb := eng.Apply(book.Get(p1.PlayerID), book.Get(p2.PlayerID), m.Outcome, ka, kb)
		book.Set(p1.PlayerID, ra)
		book.Set(p2.PlayerID, rb)
	}

	rows := make([]Row, 0, len(known))
	for _, p := range players {
		r := known[p.ID]
		r.RatingDelta = book.Delta(p.ID)
		rows = append(rows, *r)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Points != rows[j].Points {
			return rows[i].Points > rows[j].Points
		}
		if rows[i].Wins != rows[j].Wins {
			return rows[i].Wins > rows[j].Wins
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

func tally(p1, p2 *Row, pa, pb int) {
	switch {
	case pa > pb:
		p1.Wins++
		p2.Losses++
	case pa < pb:
		p1.Losses++
		p2.Wins++
	default:
		p1.Draws++
		p2.Draws++
	}
}

func kFor(t *models.Tournament, prior int) float64 {
	return rating.KFactor(t.Casual, t.Premium, prior)
}
