package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-guestlist/internal/accounts"
	"ms-guestlist/internal/accounts/account_api"
	accountdb "ms-guestlist/internal/accounts/db"
	"ms-guestlist/internal/auth"
	"ms-guestlist/internal/config"
	"ms-guestlist/internal/doorprize"
	prizedb "ms-guestlist/internal/doorprize/db"
	"ms-guestlist/internal/doorprize/prize_api"
	"ms-guestlist/internal/guests"
	guestdb "ms-guestlist/internal/guests/db"
	"ms-guestlist/internal/guests/guest_api"
	guestredis "ms-guestlist/internal/guests/redis"
	"ms-guestlist/internal/kafka"
	"ms-guestlist/internal/logger"
	"ms-guestlist/internal/sse"
)

func main() {
	_ = godotenv.Load() // Loads .env file if present

	cfg := config.Load()
	appLogger := logger.NewLogger()
	defer appLogger.Close()

	ctx := context.Background()

	// --- PostgreSQL Setup ---
	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN))
	sqldb := sql.OpenDB(connector)
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	defer sqldb.Close()

	if err := sqldb.Ping(); err != nil {
		appLogger.Fatal("DATABASE", "Failed to connect to Postgres: "+err.Error())
	}
	appLogger.Info("DATABASE", "Postgres connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	// --- Redis Setup ---
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		appLogger.Fatal("REDIS", "Failed to connect to Redis: "+err.Error())
	}
	appLogger.Info("REDIS", "Redis connection successful")

	// --- Kafka Setup ---
	var producer *kafka.Producer
	if cfg.Kafka.Enabled && !cfg.Kafka.MockMode {
		topics := []string{cfg.Kafka.Topics.GuestEvents, cfg.Kafka.Topics.PrizeEvents}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics); err != nil {
			appLogger.Warn("KAFKA", "Failed to ensure topics exist: "+err.Error())
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.GuestEvents, cfg.Kafka.Topics.PrizeEvents, appLogger)
		defer producer.Close()
	} else {
		appLogger.Warn("KAFKA", "Kafka disabled, guest changes will not be streamed")
	}

	// --- Auth Setup ---
	tokenIssuer, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		appLogger.Fatal("AUTH", "Token issuer setup failed: "+err.Error())
	}
	sessions := auth.NewSessionCache(redisClient)

	// --- Initialize Services ---
	events := sse.NewGuestEventEmitter()
	dedupLock := guestredis.NewDedupLock(redisClient, cfg.Guest.DedupLockTTL)

	guestLayer := &guestdb.DB{Bun: bunDB}
	guestService := guests.NewGuestService(guestLayer, dedupLock, kafkaPublisher(producer), events, appLogger, cfg.Guest.DefaultPhoneRegion)

	prizeLayer := &prizedb.DB{Bun: bunDB}
	doorprizeService := doorprize.NewDoorprizeService(guestService, prizeLayer, drawPublisher(producer), appLogger)

	accountLayer := &accountdb.DB{Bun: bunDB}
	accountService := accounts.NewAccountService(accountLayer, appLogger)

	guestHandler := guest_api.NewHandler(guestService, events, appLogger)
	prizeHandler := prize_api.NewHandler(doorprizeService, appLogger)
	accountHandler := account_api.NewHandler(accountService, tokenIssuer, appLogger)

	// --- Setup Router ---
	r := chi.NewRouter()

	r.Post("/api/v1/accounts", accountHandler.ProvisionAccount)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenIssuer, sessions))

		r.Get("/api/v1/account", accountHandler.GetAccount)
		r.Put("/api/v1/account", accountHandler.UpdateAccount)
		r.Delete("/api/v1/account", accountHandler.DeleteAccount)

		r.Post("/api/v1/guests", guestHandler.RegisterGuest)
		r.Get("/api/v1/guests", guestHandler.ListGuests)
		r.Get("/api/v1/guests/checked-in", guestHandler.ListCheckedIn)
		r.Get("/api/v1/guests/{guestID}", guestHandler.GetGuest)
		r.Delete("/api/v1/guests/{guestID}", guestHandler.DeleteGuest)
		r.Post("/api/v1/guests/{guestID}/check-in", guestHandler.CheckIn)
		r.Delete("/api/v1/guests/{guestID}/check-in", guestHandler.ClearCheckIn)
		r.Post("/api/v1/guests/{guestID}/gift", guestHandler.AssignGift)
		r.Delete("/api/v1/guests/{guestID}/gift", guestHandler.ClearGift)
		r.Post("/api/v1/guests/{guestID}/souvenir", guestHandler.AssignSouvenir)

		r.Post("/api/v1/walk-ins", guestHandler.FindOrStageWalkIn)
		r.Post("/api/v1/walk-ins/confirm", guestHandler.ConfirmCreateWalkIn)
		r.Post("/api/v1/walk-ins/gift", guestHandler.SubmitWalkInGift)
		r.Post("/api/v1/walk-ins/souvenir", guestHandler.SubmitWalkInSouvenir)

		r.Post("/api/v1/doorprize/draw", prizeHandler.Draw)
		r.Post("/api/v1/prizes", prizeHandler.CreatePrize)
		r.Get("/api/v1/prizes", prizeHandler.ListPrizes)
		r.Get("/api/v1/prizes/{prizeID}", prizeHandler.GetPrize)
		r.Post("/api/v1/prizes/{prizeID}/winner", prizeHandler.RecordWinner)

		r.Get("/api/v1/events/guests", guestHandler.StreamGuestEvents)
	})

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		appLogger.Info("SERVER", "Guest service running on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("SERVER", "Shutdown signal received, cleaning up")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctxShutdown)
	appLogger.Info("SERVER", "Guest service shutdown complete")
}

// kafkaPublisher avoids handing the services a typed nil when Kafka is
// disabled.
func kafkaPublisher(p *kafka.Producer) guests.ChangePublisher {
	if p == nil {
		return nil
	}
	return p
}

func drawPublisher(p *kafka.Producer) doorprize.DrawPublisher {
	if p == nil {
		return nil
	}
	return p
}
