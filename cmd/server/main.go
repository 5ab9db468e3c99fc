package main // Entry point package

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/trailpass/experience-booking/internal/config"
	"github.com/trailpass/experience-booking/internal/database"
	"github.com/trailpass/experience-booking/internal/handler"
	"github.com/trailpass/experience-booking/internal/middleware"
	"github.com/trailpass/experience-booking/internal/queue"
	"github.com/trailpass/experience-booking/internal/repository"
	"github.com/trailpass/experience-booking/internal/router"
	"github.com/trailpass/experience-booking/internal/scheduler"
	"github.com/trailpass/experience-booking/internal/service"
)

func main() {
	// .env is optional; real deployments inject variables directly.
	_ = godotenv.Load()

	cfg := config.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "experience-booking").Logger()
	if cfg.Env == "dev" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := repository.InitializeDBSchema(ctx, db); err != nil {
		cancel()
		log.Fatalf("schema init: %v", err)
	}
	cancel()

	// Repositories
	slotRepo := repository.NewSlotRepo(db)
	holdRepo := repository.NewHoldRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	waitlistRepo := repository.NewWaitlistRepo(db)
	productRepo := repository.NewProductRepo(db)

	// Services.  The waitlist service doubles as the promoter the
	// reservation and booking services call after releasing capacity.
	publisher := queue.NewPublisher()
	waitlistSvc := service.NewWaitlistService(slotRepo, waitlistRepo, productRepo, publisher, cfg.ClaimWindow, logger)
	slotSvc := service.NewSlotService(slotRepo, productRepo, logger)
	reservationSvc := service.NewReservationService(slotRepo, holdRepo, waitlistSvc, cfg.HoldTTL, logger)
	bookingSvc := service.NewBookingService(slotRepo, holdRepo, bookingRepo, waitlistRepo, waitlistSvc, productRepo, logger)

	// Background workers: notification consumer and periodic sweeps.
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			logger.Error().Err(err).Msg("notification consumer stopped")
		}
	}()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	sweeper := scheduler.NewSweeper(
		asynq.RedisClientOpt{Addr: redisAddr, Password: os.Getenv("REDIS_PASSWORD")},
		cfg.SweepInterval,
		reservationSvc,
		waitlistSvc,
		logger,
	)
	go func() {
		if err := sweeper.Run(); err != nil {
			logger.Error().Err(err).Msg("sweeper stopped")
		}
	}()

	e := echo.New()
	e.HideBanner = true

	// Redis-backed rate limiting and response caching; both degrade to
	// no-ops when Redis is unreachable at startup.
	if rdb := config.NewRedisClient(); rdb != nil {
		e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
		e.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	} else {
		logger.Warn().Msg("redis unavailable; rate limiting and caching disabled")
	}

	router.RegisterRoutes(e)
	router.RegisterPublic(e, handler.NewPublicSlotHandler(slotSvc))
	bookingHandler := handler.NewBookingHandler(reservationSvc, bookingSvc)
	waitlistHandler := handler.NewWaitlistHandler(waitlistSvc)
	router.RegisterCustomer(e, bookingHandler, waitlistHandler, cfg.JWTSecret)
	router.RegisterAdmin(e, handler.NewAdminSlotHandler(slotSvc), bookingHandler, waitlistHandler, cfg.JWTSecret)

	addr := ":" + cfg.Port
	logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
