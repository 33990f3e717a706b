package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/turfbook/ground-reservations/internal/adapters/crdb"
	mongoadapter "github.com/turfbook/ground-reservations/internal/adapters/mongo"
	"github.com/turfbook/ground-reservations/internal/adapters/rabbit"
	redisadapter "github.com/turfbook/ground-reservations/internal/adapters/redis"
	"github.com/turfbook/ground-reservations/internal/booking"
	"github.com/turfbook/ground-reservations/internal/config"
	"github.com/turfbook/ground-reservations/internal/gateway"
	"github.com/turfbook/ground-reservations/internal/grounds"
	httphandler "github.com/turfbook/ground-reservations/internal/http"
	"github.com/turfbook/ground-reservations/internal/idempotency"
	"github.com/turfbook/ground-reservations/internal/notify"
	"github.com/turfbook/ground-reservations/internal/observability"
	"github.com/turfbook/ground-reservations/internal/rateLimit"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PGDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("grounds")
	groundRepo := mongoadapter.NewGroundRepository(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, time.Hour)
	rl := rateLimit.NewRateLimiter(redisCache)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	rabbitPub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	resolver := grounds.NewResolver(groundRepo, logger)
	dispatcher := notify.NewDispatcher(rabbitPub, resolver, logger)
	gw := gateway.NewHTTPClient(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewaySecret, logger)

	sched := booking.NewScheduler()
	holds := booking.NewHoldManager(repo, redisCache, sched, dispatcher, audit, cfg.HoldTTL, cfg.ReleaseBackoff, logger)
	rec := booking.NewReconciler(repo, gw, redisCache, sched, dispatcher, audit, logger)

	handlers := httphandler.NewHandlers(cfg, repo, holds, rec, resolver, idemp, logger)

	r := httphandler.SetupRouter(handlers, logger, rl, idemp)

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
