package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/config"
	"github.com/iliyamo/cinema-ticketing/internal/database"
	"github.com/iliyamo/cinema-ticketing/internal/handler"
	"github.com/iliyamo/cinema-ticketing/internal/logger"
	"github.com/iliyamo/cinema-ticketing/internal/middleware"
	"github.com/iliyamo/cinema-ticketing/internal/queue"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
	"github.com/iliyamo/cinema-ticketing/internal/router"
	"github.com/iliyamo/cinema-ticketing/internal/service"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	log := logger.Init(cfg.Env)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		log.Info("schema applied")
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable; rate limiting, caching and idempotent replay disabled")
	} else {
		defer rdb.Close()
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	movies := repository.NewMovieRepo(db)
	screens := repository.NewScreenRepo(db)
	seats := repository.NewSeatRepo(db)
	screenings := repository.NewScreeningRepo(db)
	screeningSeats := repository.NewScreeningSeatRepo(db)
	holds := repository.NewSeatHoldRepo(db)
	bookings := repository.NewBookingRepo(db)
	payments := repository.NewPaymentRepo(db)
	rules := repository.NewPricingRuleRepo(db)
	stats := repository.NewStatsRepo(db)

	bookingSvc := service.NewBookingService(db, screenings, rules, screeningSeats, holds, bookings, cfg.Hold.TTL, log)

	var gateway service.PaymentGateway = service.DevGateway{}
	if cfg.Payment.SecretKey != "" {
		gateway = service.NewStripeGateway(cfg.Payment.SecretKey, cfg.Payment.Currency, nil)
	} else {
		log.Warn("PAYMENT_SECRET_KEY not set; payments are approved without a gateway")
	}
	paymentSvc := service.NewPaymentService(service.PaymentDeps{
		DB:         db,
		Bookings:   bookings,
		Holds:      holds,
		Seats:      screeningSeats,
		Payments:   payments,
		Screenings: screenings,
		Movies:     movies,
		Gateway:    gateway,
		Events:     service.NewAMQPPublisher(cfg.AMQPURL, log),
	}, service.PaymentURLs{Success: cfg.Payment.SuccessURL, Fail: cfg.Payment.FailURL}, log)

	cacheCfg := config.LoadCacheConfig()
	catalog := handler.NewCatalogHandler(movies, screens, seats, screenings, stats, log)
	pricingHandler := handler.NewPricingHandler(rules, log)
	if rdb != nil {
		purge := func(ctx context.Context) {
			if err := middleware.PurgeCache(ctx, rdb, cacheCfg.Prefix); err != nil {
				log.Warn("cache purge failed", "err", err)
			}
		}
		catalog.Changed = purge
		pricingHandler.Changed = purge
	}

	e := router.New(router.Deps{
		DB:               db,
		Redis:            rdb,
		Log:              log,
		JWTSecret:        cfg.JWTSecret,
		RateLimit:        config.LoadRateLimitConfig(),
		BookingRateLimit: config.LoadBookingRateLimitConfig(),
		Cache:            cacheCfg,
		Idempotency:      config.LoadIdempotencyConfig(),
		Auth:             handler.NewAuthHandler(cfg, users, tokens, log),
		Catalog:          catalog,
		Bookings:         handler.NewBookingHandler(bookingSvc, log),
		Payments:         handler.NewPaymentHandler(paymentSvc, log),
		Pricing:          pricingHandler,
	})

	sweeper, err := service.NewHoldSweeper(bookingSvc, cfg.Hold.SweepSpec, log)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer sweeper.Stop()

	if cfg.RunConsumer {
		consumer := &queue.Consumer{URL: cfg.AMQPURL, LogPath: cfg.BookingLogPath, Log: log}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("booking consumer stopped", "err", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
