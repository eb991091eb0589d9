// internal/handlers/standings_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/danverac/swissladder/internal/standings"
)

// StandingsFeed fans committed standings updates out to websocket
// subscribers, one subscriber set per tournament.
type StandingsFeed struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[chan []byte]struct{}
}

// NewStandingsFeed returns an empty feed.
func NewStandingsFeed() *StandingsFeed {
	return &StandingsFeed{subs: make(map[uuid.UUID]map[chan []byte]struct{})}
}

func (f *StandingsFeed) subscribe(id uuid.UUID) chan []byte {
	ch := make(chan []byte, 8)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs[id] == nil {
		f.subs[id] = make(map[chan []byte]struct{})
	}
	f.subs[id][ch] = struct{}{}
	return ch
}

func (f *StandingsFeed) unsubscribe(id uuid.UUID, ch chan []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if set, ok := f.subs[id]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(f.subs, id)
		}
	}
}

// Publish pushes freshly computed standings to every subscriber of the
// tournament. Slow subscribers drop the update instead of blocking the
// committing request.
func (f *StandingsFeed) Publish(tournamentID uuid.UUID, rows []standings.Row) {
	payload, err := json.Marshal(map[string]interface{}{
		"type":       "standings",
		"tournament": tournamentID.String(),
		"rows":       rows,
	})
	if err != nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs[tournamentID] {
		select {
		case ch <- payload:
		default:
		}
	}
}

// StandingsWSHandler streams live standings for one tournament at
// /standings/ws/{id}. The subscriber gets the current standings on connect
// and every recomputation after a committed mutation.
func StandingsWSHandler(logger *logrus.Logger, feed *StandingsFeed, api *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := strings.TrimPrefix(r.URL.Path, "/standings/ws/")
		id, err := uuid.Parse(strings.TrimSuffix(idStr, "/"))
		if err != nil {
			http.Error(w, "invalid tournament id", http.StatusBadRequest)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			logger.WithError(err).Warn("websocket accept failed")
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "bye")

		// the feed is publish-only; CloseRead pumps control frames and
		// cancels the context when the subscriber goes away, so the
		// goroutine and its subscription never outlive the connection
		ctx := c.CloseRead(r.Context())

		// initial snapshot
		if rows, err := api.previewStandings(ctx, id); err == nil {
			payload, _ := json.Marshal(map[string]interface{}{
				"type":       "standings",
				"tournament": id.String(),
				"rows":       rows,
			})
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_ = c.Write(writeCtx, websocket.MessageText, payload)
			cancel()
		}

		ch := feed.subscribe(id)
		defer feed.unsubscribe(id, ch)

		for {
			select {
			case <-ctx.Done():
				return
			case payload := <-ch:
				writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				err := c.Write(writeCtx, websocket.MessageText, payload)
				cancel()
				if err != nil {
					return
				}
			}
		}
	}
}
