package main

import (
	"context"
	"log"
	"time"

	_ "github.com/joho/godotenv/autoload" // load .env before config.Load runs
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-checkin/internal/config"
	"github.com/iliyamo/event-checkin/internal/database"
	"github.com/iliyamo/event-checkin/internal/handler"
	"github.com/iliyamo/event-checkin/internal/ledger"
	"github.com/iliyamo/event-checkin/internal/queue"
	"github.com/iliyamo/event-checkin/internal/repository"
	"github.com/iliyamo/event-checkin/internal/router"
	queue_publisher "github.com/iliyamo/event-checkin/internal/service"
	"github.com/iliyamo/event-checkin/migrations"
)

func main() {
	cfg := config.Load()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	if err := migrations.Apply(ctx, db); err != nil {
		cancel()
		log.Fatalf("migrations failed: %v", err)
	}
	cancel()

	// Optional Redis: rate limiting and dashboard caching degrade to
	// no-ops without it.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and response cache disabled")
	}

	store := repository.NewStore(db)
	engine := ledger.NewService(store, ledger.SystemClock())
	regs := repository.NewRegistrationRepo(db)
	checkins := repository.NewCheckinRepo(db)
	events := queue_publisher.New()

	// The consumer tails checkin.recorded into the on-site log file. It
	// reconnects on broker failures and never takes the API down.
	go func() {
		if err := queue.StartCheckinConsumer(); err != nil {
			log.Printf("checkin consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAPI(e, router.Handlers{
		Auth:       handler.NewAuthHandler(cfg),
		Checkin:    handler.NewCheckinHandler(engine, regs, events),
		Attendance: handler.NewAttendanceHandler(regs, checkins),
		Dashboard:  handler.NewDashboardHandler(checkins),
	}, cfg.JWTSecret, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
