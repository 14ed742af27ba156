package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ms-event-tickets/internal/auth"
	"ms-event-tickets/internal/config"
	"ms-event-tickets/internal/database"
	"ms-event-tickets/internal/database/migrations"
	event_db "ms-event-tickets/internal/events/db"
	"ms-event-tickets/internal/events/event_api"
	events "ms-event-tickets/internal/events/service"
	"ms-event-tickets/internal/kafka"
	"ms-event-tickets/internal/logger"
	rediswrap "ms-event-tickets/internal/redis"
	"ms-event-tickets/internal/sse"
	"ms-event-tickets/internal/tickets/audit"
	ticket_db "ms-event-tickets/internal/tickets/db"
	"ms-event-tickets/internal/tickets/qr"
	tickets "ms-event-tickets/internal/tickets/service"
	"ms-event-tickets/internal/tickets/ticket_api"
	"ms-event-tickets/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
)

func prepareSchema(ctx context.Context, bunDB *bun.DB, cfg config.DatabaseConfig, logger *logger.Logger) error {
	if !cfg.AutoMigrate {
		logger.Info("MIGRATE", "Auto-migration disabled")
		return nil
	}

	if cfg.Driver == database.DriverSQLite {
		if err := database.CreateSchema(ctx, bunDB); err != nil {
			return err
		}
		logger.LogDatabase("CREATE", "events,tickets", "sqlite schema ready")
		return nil
	}

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
		MigrationsDir: cfg.MigrationsDir,
		AutoMigrate:   cfg.AutoMigrate,
	}, logger)
	defer runner.Close()
	return runner.MigrateUp()
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, logger *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection error: %w", err)
	}
	logger.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Addr, client.Options().DB))
	return client, nil
}

func protectMiddleware(ctx context.Context, cfg config.AuthConfig, logger *logger.Logger) (func(http.Handler) http.Handler, error) {
	if cfg.OIDCIssuer == "" {
		logger.LogSecurity("AUTH_DISABLED", "OIDC_ISSUER not set, mutating routes are not authenticated")
		return auth.Identify, nil
	}
	mw, err := auth.Middleware(ctx, cfg.OIDCIssuer)
	if err != nil {
		return nil, err
	}
	logger.Info("AUTH", fmt.Sprintf("JWT middleware verifying tokens from %s", cfg.OIDCIssuer))
	return mw, nil
}

func HealthHandler(bunDB *bun.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := bunDB.PingContext(ctx); err != nil {
			utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Database unavailable", err.Error()))
			return
		}
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("OK", nil))
	}
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Ticket Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	log.Info("APP", "Verifying database connections")
	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if err := prepareSchema(ctx, bunDB, cfg.Database, log); err != nil {
		log.Fatal("MIGRATE", fmt.Sprintf("Failed to prepare schema: %v", err))
	}

	var opts []tickets.Option
	opts = append(opts, tickets.WithLogger(log))

	if cfg.Redis.Enabled {
		redisClient, err := connectRedis(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal("DATABASE", err.Error())
		}
		defer redisClient.Close()
		opts = append(opts, tickets.WithIdempotencyStore(rediswrap.NewIdempotencyStore(redisClient, cfg.Redis.IdempotencyTTL)))
	} else {
		log.Warn("REDIS", "Redis disabled, Idempotency-Key header is ignored")
	}

	emitter := sse.NewTicketEventEmitter()
	publishers := tickets.Publishers{emitter}

	if cfg.Kafka.Enabled {
		log.Info("KAFKA", fmt.Sprintf("Using Kafka brokers: %v", cfg.Kafka.Brokers))
		kafkaProducer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, log)
		defer kafkaProducer.Close()

		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
		publishers = append(publishers, kafkaProducer)
	} else {
		log.Warn("KAFKA", "Kafka disabled, ticket lifecycle events are not published")
	}

	opts = append(opts, tickets.WithPublisher(publishers))

	protect, err := protectMiddleware(ctx, cfg.Auth, log)
	if err != nil {
		log.Fatal("AUTH", err.Error())
	}

	ticketStore := &ticket_db.DB{Bun: bunDB}
	ticketService := tickets.NewTicketService(ticketStore, opts...)
	eventService := events.NewEventService(&event_db.DB{Bun: bunDB})

	ticketHandler := ticket_api.NewHandler(ticketService, qr.NewQRGenerator(cfg.QR.SecretKey), log)
	eventHandler := event_api.NewHandler(eventService, log)
	eventHandler.Stream = sse.NewHandler(log, emitter).StreamEventTickets

	if cfg.Audit.Enabled {
		auditor := audit.NewAuditor(ticketStore, log)
		if err := auditor.Start(cfg.Audit.Interval); err != nil {
			log.Error("AUDIT", err.Error())
		} else {
			defer auditor.Stop()
		}
	}

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.Middleware(log))

	r.Get("/health", HealthHandler(bunDB))

	r.Route("/api", func(r chi.Router) {
		eventHandler.RegisterRoutes(r, protect)
		log.Info("ROUTER", "Event routes registered under /api/events")

		ticketHandler.RegisterRoutes(r, protect)
		log.Info("ROUTER", "Ticket routes registered under /api/tickets")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Ticket Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Ticket Service shutdown complete")
	}
}
