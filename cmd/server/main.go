package main // Entry point package

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/fitgrid/gym-session-engine/internal/booking"
	"github.com/fitgrid/gym-session-engine/internal/checkin"
	"github.com/fitgrid/gym-session-engine/internal/clock"
	"github.com/fitgrid/gym-session-engine/internal/config"
	"github.com/fitgrid/gym-session-engine/internal/database"
	"github.com/fitgrid/gym-session-engine/internal/handler"
	"github.com/fitgrid/gym-session-engine/internal/queue"
	"github.com/fitgrid/gym-session-engine/internal/repository"
	"github.com/fitgrid/gym-session-engine/internal/router"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load()
	clk := clock.System{}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional: a nil client disables rate limiting and the
	// pricing cache.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting and pricing cache disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	sessions := repository.NewSessionRepo(db, clk)
	wallets := repository.NewLedgerRepo(db, clk, cfg.MaxBalanceCents)
	locations := repository.NewLocationRepo(db, rdb, time.Minute)

	coord := booking.New(wallets, sessions, locations, clk, nil)
	validator := checkin.NewValidator(sessions, clk, nil)

	// Consume lifecycle events in the background; the loop reconnects on
	// broker failures and never brings the server down.
	go func() {
		if err := queue.StartSessionConsumer(); err != nil {
			log.Printf("session consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterLocations(e, handler.NewLocationHandler(locations))
	router.RegisterEngine(e,
		handler.NewSessionHandler(coord, locations, clk, true),
		handler.NewCheckInHandler(validator, clk, true),
		handler.NewWalletHandler(coord),
		cfg.JWTSecret, rdb, config.LoadRateLimitConfig())

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
