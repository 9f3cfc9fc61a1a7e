package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/apptreserve/libs/config"
	"github.com/md-rashed-zaman/apptreserve/libs/db"
	"github.com/md-rashed-zaman/apptreserve/libs/httpx"
	"github.com/md-rashed-zaman/apptreserve/libs/kafkax"
	otelx "github.com/md-rashed-zaman/apptreserve/libs/otel"
	"github.com/md-rashed-zaman/apptreserve/libs/redisx"
	"github.com/md-rashed-zaman/apptreserve/libs/runtime"
	"github.com/md-rashed-zaman/apptreserve/services/notification-service/internal/consumer"
	"github.com/md-rashed-zaman/apptreserve/services/notification-service/internal/delivery"
	"github.com/md-rashed-zaman/apptreserve/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/apptreserve/services/notification-service/internal/inbox"
	"github.com/md-rashed-zaman/apptreserve/services/notification-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8087")
	if err != nil {
		panic(err)
	}
	brokers, err := config.RequiredString("KAFKA_BROKERS")
	if err != nil {
		panic(err)
	}
	loc, err := time.LoadLocation(config.String("BOOKING_TIMEZONE", "America/Sao_Paulo"))
	if err != nil {
		panic(fmt.Errorf("BOOKING_TIMEZONE: %w", err))
	}
	retention, err := config.Seconds("INBOX_RETENTION_SECONDS", inbox.DefaultRetention)
	if err != nil {
		panic(err)
	}
	maxAttempts, err := config.Int("NOTIFY_MAX_ATTEMPTS", consumer.DefaultMaxAttempts)
	if err != nil {
		panic(err)
	}
	retryBackoff, err := config.Seconds("NOTIFY_RETRY_BACKOFF_SECONDS", consumer.DefaultRetryBackoff)
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	checks := []runtime.ReadyCheck{{Name: "kafka", Check: kafkax.ReadyCheck(brokers)}}

	var dedupe consumer.Inbox = inbox.NewMemory()
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		redisDB, err := config.Int("REDIS_DB", 0)
		if err != nil {
			panic(err)
		}
		rdb, err := redisx.Open(ctx, redisx.Options{Addr: addr, Password: config.String("REDIS_PASSWORD", ""), DB: redisDB})
		if err != nil {
			logger.Error("redis connection failed", "err", err)
			panic(err)
		}
		defer func() { _ = rdb.Close() }()
		dedupe = inbox.NewRedis(rdb, "inbox:notification:", retention)
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)})
	}

	var recorder storage.Recorder = storage.Discard{}
	if dbURL := config.String("DATABASE_URL", ""); dbURL != "" {
		pool, err := db.Open(ctx, dbURL, db.PoolOptions{MaxConns: 4})
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()
		repo := storage.NewRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Error("schema setup failed", "err", err)
			panic(err)
		}
		recorder = repo
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	}

	sender := email.NewSMTPSender(email.SMTPConfig{
		Host:     config.String("SMTP_HOST", "mailpit"),
		Port:     config.String("SMTP_PORT", "1025"),
		From:     config.String("SMTP_FROM", "no-reply@apptreserve.local"),
		Username: config.String("SMTP_USERNAME", ""),
		Password: config.String("SMTP_PASSWORD", ""),
	})
	handler := delivery.NewHandler(sender, recorder, loc, logger)

	eventConsumer := consumer.New(logger, dedupe, consumer.Config{
		Brokers:      brokers,
		GroupID:      config.String("KAFKA_GROUP_ID", "notification-service"),
		Topic:        config.String("KAFKA_CONSUME_TOPIC", "booking.appointment.confirmed.v1"),
		MaxAttempts:  maxAttempts,
		RetryBackoff: retryBackoff,
	}, handler.Handle)
	done := make(chan struct{})
	go func() {
		defer close(done)
		eventConsumer.Run(ctx)
	}()

	mux := runtime.NewBaseMuxWithReady(checks...)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := runtime.ShutdownContext(10 * time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	<-done
	logger.Info("notification service stopped")
}
