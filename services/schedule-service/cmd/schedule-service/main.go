package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/iCoderabhishek/clandr-schedule-service/libs/config"
	"github.com/iCoderabhishek/clandr-schedule-service/libs/db"
	"github.com/iCoderabhishek/clandr-schedule-service/libs/httpx"
	"github.com/iCoderabhishek/clandr-schedule-service/libs/kafkax"
	otelx "github.com/iCoderabhishek/clandr-schedule-service/libs/otel"
	"github.com/iCoderabhishek/clandr-schedule-service/libs/runtime"
	"github.com/iCoderabhishek/clandr-schedule-service/services/schedule-service/internal/cache"
	"github.com/iCoderabhishek/clandr-schedule-service/services/schedule-service/internal/consumer"
	"github.com/iCoderabhishek/clandr-schedule-service/services/schedule-service/internal/handlers"
	"github.com/iCoderabhishek/clandr-schedule-service/services/schedule-service/internal/inbox"
	"github.com/iCoderabhishek/clandr-schedule-service/services/schedule-service/internal/outbox"
	"github.com/iCoderabhishek/clandr-schedule-service/services/schedule-service/internal/schedule"
	"github.com/iCoderabhishek/clandr-schedule-service/services/schedule-service/internal/storage"
)

func slotBounds() schedule.Bounds {
	b := schedule.Bounds{
		StartHour:   config.Int("SLOT_START_HOUR", 6),
		EndHour:     config.Int("SLOT_END_HOUR", 22),
		StepMinutes: config.Int("SLOT_STEP_MINUTES", 30),
	}
	if len(b.Labels()) == 0 {
		return schedule.DefaultBounds
	}
	return b
}

func main() {
	service := config.String("SERVICE_NAME", "schedule-service")
	port, err := config.Port("PORT", "8084")
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

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	var rdb *redis.Client
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer rdb.Close()
	}

	repo := storage.NewScheduleRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	scheduleCache := cache.New(rdb, logger, time.Duration(config.Int("SCHEDULE_CACHE_TTL_SECONDS", 30))*time.Second)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	startBookingConsumer := func(topic string, booked bool) {
		if strings.TrimSpace(topic) == "" {
			return
		}
		c := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "schedule-service"),
			Topic:   topic,
		}, func(ctx context.Context, msg kafka.Message) error {
			// Booked cells are owned by the booking system; this feed is the
			// only writer of schedule_slot_bookings.
			var payload struct {
				UserID    string `json:"user_id"`
				DayOfWeek string `json:"day_of_week"`
				Slot      string `json:"slot"`
			}
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
				return nil
			}
			day, err := schedule.ParseDay(payload.DayOfWeek)
			if err != nil || payload.UserID == "" || payload.Slot == "" {
				logger.Error("missing required event fields", "topic", msg.Topic)
				return nil
			}

			tx, err := pool.Begin(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = tx.Rollback(ctx) }()

			slot := storage.BookedSlot{Day: day, Slot: payload.Slot}
			if booked {
				err = repo.UpsertBookedSlot(ctx, tx, payload.UserID, slot)
			} else {
				err = repo.DeleteBookedSlot(ctx, tx, payload.UserID, slot)
			}
			if err != nil {
				return err
			}
			if err := tx.Commit(ctx); err != nil {
				return err
			}
			scheduleCache.Invalidate(ctx, payload.UserID)
			return nil
		})
		go c.Run(ctx)
	}
	startBookingConsumer(config.String("KAFKA_BOOKED_TOPIC", "booking.slot.booked.v1"), true)
	startBookingConsumer(config.String("KAFKA_CANCELLED_TOPIC", "booking.slot.cancelled.v1"), false)

	scheduleHandler := handlers.NewScheduleHandler(repo, outboxRepo, scheduleCache, logger, slotBounds())

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	}
	if rdb != nil {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: cache.ReadyCheck(rdb)})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("/api/schedule", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			scheduleHandler.Get(w, r)
		case http.MethodPut:
			scheduleHandler.Save(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/schedule/grid", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			scheduleHandler.GetGrid(w, r)
		case http.MethodPut:
			scheduleHandler.SaveGrid(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/schedule/stats", scheduleHandler.Stats)

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(10 * time.Second),
	}
	if origins := config.String("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		middlewares = append(middlewares, httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(origins, ","),
			AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "X-User-Id", "X-Timezone", "Authorization"},
			MaxAge:         10 * time.Minute,
		}))
	}
	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 0)
	if limitPerMinute > 0 {
		if rdb != nil {
			limiter := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, "rl:schedule")
			middlewares = append(middlewares, limiter.Middleware(logger, true))
			logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute)
		} else {
			limiter := httpx.NewRateLimiter(limitPerMinute, time.Minute)
			middlewares = append(middlewares, limiter.Middleware())
			logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
		}
	}

	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, "schedule")
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
