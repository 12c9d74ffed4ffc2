package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/ticket-booking/internal/broker"
	"github.com/iliyamo/ticket-booking/internal/config"
	"github.com/iliyamo/ticket-booking/internal/database"
	"github.com/iliyamo/ticket-booking/internal/handler"
	"github.com/iliyamo/ticket-booking/internal/infra"
	"github.com/iliyamo/ticket-booking/internal/middleware"
	"github.com/iliyamo/ticket-booking/internal/queue"
	"github.com/iliyamo/ticket-booking/internal/repository"
	"github.com/iliyamo/ticket-booking/internal/router"
	"github.com/iliyamo/ticket-booking/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional

	cfg := config.Load()
	qcfg := config.LoadQueueConfig()
	rlcfg := config.LoadRateLimitConfig()

	loggers := infra.ProvideLoggerFactory(cfg.LogLevel)
	defer loggers.Sync()
	logger := loggers.Create("server").Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer closeStore()

	execOpts := []service.ExecutorOption{
		service.WithBookingTTL(qcfg.BookingTTL),
		service.WithReapInterval(qcfg.ReapInterval),
		service.WithLogger(loggers.Create("executor")),
	}
	if cfg.RabbitMQURL != "" {
		pub := broker.NewPublisher(cfg.RabbitMQURL, loggers.Create("publisher"))
		defer pub.Close()
		execOpts = append(execOpts, service.WithNotifier(pub))
	} else {
		logger.Warn("RABBITMQ_URL not set; booking events are not published")
	}

	alloc := service.NewAllocator(store)
	exec := service.NewExecutor(store, alloc, execOpts...)
	n, err := exec.RestoreExpiries(ctx)
	if err != nil {
		logger.Fatalf("restore expiries: %v", err)
	}
	logger.Infof("re-armed %d pending booking expiries", n)

	tracker := queue.NewTracker(
		queue.WithStatusTTL(qcfg.StatusTTL),
		queue.WithTrackerLogger(loggers.Create("tracker")),
	)
	q := queue.NewAdmissionQueue(exec, tracker, qcfg, loggers.Create("queue"))

	var limiter echo.MiddlewareFunc
	if rdb := config.NewRedisClient(); rdb != nil {
		defer rdb.Close()
		limiter = middleware.RateLimit(middleware.NewTokenBucket(rlcfg, rdb))
	} else {
		logger.Warn("redis unavailable; booking admission is not rate limited")
	}

	e := echo.New()
	e.HideBanner = true
	router.RegisterBookings(e, router.Deps{
		Bookings:     handler.NewBookingHandler(q, exec, loggers.Create("http")),
		Events:       handler.NewEventHandler(service.NewEventService(store, alloc), loggers.Create("http")),
		Queue:        q,
		JWTSecret:    cfg.JWTSecret,
		ConfirmRoles: cfg.ConfirmRoles,
		AdminRoles:   cfg.AdminRoles,
		Limiter:      limiter,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return q.Run(gctx) })
	g.Go(func() error { return tracker.Run(gctx) })
	g.Go(func() error { return exec.RunExpiry(gctx) })
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Infof("listening on %s (env=%s, store=%s)", addr, cfg.Env, cfg.StoreDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Errorf("server stopped: %v", err)
		loggers.Sync()
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// openStore returns the store selected by STORE_DRIVER and a function
// that releases it.
func openStore(ctx context.Context, cfg config.Config) (repository.Store, func(), error) {
	if cfg.StoreDriver == "memory" {
		return repository.NewMemoryStore(), func() {}, nil
	}
	db, err := database.Open(database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName))
	if err != nil {
		return nil, nil, err
	}
	if err := database.InitializeSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return repository.NewMySQLStore(db), func() { _ = db.Close() }, nil
}

