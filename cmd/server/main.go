// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"strconv"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/danverac/swissladder/internal/auth"
	"github.com/danverac/swissladder/internal/cache"
	"github.com/danverac/swissladder/internal/database"
	"github.com/danverac/swissladder/internal/handlers"
	"github.com/danverac/swissladder/internal/lifecycle"
	"github.com/danverac/swissladder/internal/middleware"
	"github.com/danverac/swissladder/internal/rating"
	"github.com/danverac/swissladder/internal/recalc"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	auth.Init()
	ctx := context.Background()

	pool, err := database.Connect(ctx)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer pool.Close()

	store := database.NewStore(pool)
	if err := store.Migrate(ctx); err != nil {
		logger.Fatalf("migrate: %v", err)
	}

	var mirror lifecycle.TokenMirror
	if m, err := cache.ConnectMirror(ctx); err != nil {
		logger.WithError(err).Warn("redis unavailable, lifecycle tokens will not be mirrored")
	} else {
		mirror = m
	}

	defaultRating := getEnvInt("LADDER_BASE_RATING", 1000)
	divisor := float64(getEnvInt("LADDER_ELO_DIVISOR", int(rating.DefaultDivisor)))
	eng := rating.NewEngine(divisor)

	orch := recalc.NewOrchestrator(store, eng, defaultRating, logger)
	life := lifecycle.NewService(store, orch, mirror, eng, defaultRating, logger)

	feed := handlers.NewStandingsFeed()
	api := &handlers.API{
		DB:            store,
		Users:         store,
		Life:          life,
		Eng:           eng,
		DefaultRating: defaultRating,
		Feed:          feed,
		Mirror:        mirror,
		Log:           logger,
	}

	mux := http.NewServeMux()

	// user endpoints
	mux.HandleFunc("/user/create", api.CreateUserHandler)
	mux.HandleFunc("/user/login", api.LoginHandler)

	logged := middleware.LogMiddleware(logger)

	// tournament lifecycle endpoints
	mux.Handle("/tournament/import", logged(http.HandlerFunc(api.ImportTournamentHandler)))
	mux.Handle("/tournament/finalize", logged(http.HandlerFunc(api.FinalizeTournamentHandler)))
	mux.Handle("/tournament/discard", logged(http.HandlerFunc(api.DiscardTournamentHandler)))
	mux.Handle("/tournament/edit/begin", logged(http.HandlerFunc(api.BeginEditHandler)))
	mux.Handle("/tournament/edit/round", logged(http.HandlerFunc(api.EditRoundHandler)))
	mux.Handle("/tournament/edit/finish", logged(http.HandlerFunc(api.FinishEditHandler)))

	// standings preview + live feed
	mux.Handle("/tournament/standings", logged(http.HandlerFunc(api.StandingsHandler)))
	mux.Handle("/standings/ws/", logged(http.HandlerFunc(
		handlers.StandingsWSHandler(logger, feed, api),
	)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}

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
