package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/apptreserve/libs/db"
	"github.com/md-rashed-zaman/apptreserve/libs/httpx"
	"github.com/md-rashed-zaman/apptreserve/libs/kafkax"
	otelx "github.com/md-rashed-zaman/apptreserve/libs/otel"
	"github.com/md-rashed-zaman/apptreserve/libs/redisx"
	"github.com/md-rashed-zaman/apptreserve/libs/runtime"
	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/availability"
	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/booking"
	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/calendar"
	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/handlers"
	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/notify"
	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/slotlock"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	s, err := loadSettings()
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(s.Service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(s.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var checks []runtime.ReadyCheck
	var rdb *redis.Client
	if s.Redis.Addr != "" {
		rdb, err = redisx.Open(ctx, s.Redis)
		if err != nil {
			logger.Error("redis connection failed", "err", err)
			panic(err)
		}
		defer func() { _ = rdb.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)})
	}

	cal, calCheck, closeCal, err := openCalendar(ctx, s)
	if err != nil {
		logger.Error("calendar init failed", "backend", s.CalendarBackend, "err", err)
		panic(err)
	}
	defer closeCal()
	if calCheck != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "calendar", Check: calCheck})
	}

	var snapshots availability.SnapshotStore = availability.NewMemoryStore()
	var lockStore slotlock.Store = slotlock.NewMemoryStore(nil)
	if rdb != nil {
		snapshots = availability.NewRedisStore(rdb, "busy:")
		lockStore = slotlock.NewRedisStore(rdb, "")
	}
	logger.Info("engine configured",
		"calendar", s.CalendarBackend,
		"shared_state", rdb != nil,
		"cache_ttl", s.CacheTTL.String(),
		"lock_ttl", s.LockTTL.String(),
	)

	var dispatcher notify.Dispatcher = notify.NewLogDispatcher(logger)
	if s.KafkaBrokers != "" {
		kd, err := notify.NewKafkaDispatcher(notify.KafkaConfig{Brokers: s.KafkaBrokers, Topic: s.KafkaTopic})
		if err != nil {
			logger.Error("kafka dispatcher init failed; confirmations are logged only", "err", err)
		} else {
			defer func() { _ = kd.Close() }()
			dispatcher = kd
			checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(s.KafkaBrokers)})
		}
	}

	cache := availability.NewCache(cal, logger, availability.Config{Grid: s.Grid, TTL: s.CacheTTL, Store: snapshots})
	orch := booking.NewOrchestrator(cache, slotlock.NewManager(lockStore, s.LockTTL), cal, dispatcher, logger, booking.Config{
		Grid:   s.Grid,
		Limits: s.Limits,
	})
	machine := booking.NewMachine(orch, booking.NewSessions(), logger)
	reservationHandler := handlers.NewReservationHandler(machine, orch, s.Grid, logger)

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.HandleFunc("/api/v1/conversations/input", reservationHandler.Input)
	mux.HandleFunc("/api/v1/availability", reservationHandler.Availability)
	mux.HandleFunc("/api/v1/bookings", reservationHandler.ListBookings)
	mux.HandleFunc("/api/v1/bookings/cancel", reservationHandler.CancelBooking)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(s.BodyLimitBytes),
		httpx.WithTimeout(s.RequestTimeout),
		rateLimiter(logger, rdb, s.RateLimitPerMinute),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "reservation")
	srv := &http.Server{
		Addr:              ":" + s.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	grpcSrv, healthSrv := newGrpcServer()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return serveGrpc(gctx, logger, grpcSrv, s.GRPCPort)
	})
	g.Go(func() error {
		watchHealth(gctx, logger, healthSrv, 15*time.Second, checks...)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := runtime.ShutdownContext(10 * time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
	}
	orch.Wait()
	logger.Info("reservation service stopped")
}

// openCalendar builds the configured calendar backend with its readiness
// check (nil when there is nothing to check) and a close func.
func openCalendar(ctx context.Context, s settings) (calendar.Client, func(context.Context) error, func(), error) {
	switch s.CalendarBackend {
	case "postgres":
		pool, err := db.Open(ctx, s.DatabaseURL, db.PoolOptions{})
		if err != nil {
			return nil, nil, nil, err
		}
		pg := calendar.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		return pg, db.ReadyCheck(pool), pool.Close, nil
	case "google":
		g, err := calendar.NewGoogle(ctx, calendar.GoogleConfig{
			CalendarID:      s.GoogleCalendar,
			CredentialsFile: s.GoogleCreds,
			Location:        s.Grid.Location,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return g, g.Ping, func() {}, nil
	default:
		return calendar.NewMemory(), nil, func() {}, nil
	}
}

func rateLimiter(logger *slog.Logger, rdb *redis.Client, perMinute int) httpx.Middleware {
	if rdb != nil {
		logger.Info("rate limiting enabled (redis)", "per_minute", perMinute)
		return httpx.NewRedisRateLimiter(rdb, perMinute, time.Minute, "rl:reservation").Middleware(logger, true)
	}
	logger.Info("rate limiting enabled (in-memory)", "per_minute", perMinute)
	return httpx.NewRateLimiter(perMinute, time.Minute).Middleware()
}
