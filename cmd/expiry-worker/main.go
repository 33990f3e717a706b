package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/turfbook/ground-reservations/internal/adapters/crdb"
	"github.com/turfbook/ground-reservations/internal/adapters/rabbit"
	redisadapter "github.com/turfbook/ground-reservations/internal/adapters/redis"
	"github.com/turfbook/ground-reservations/internal/booking"
	"github.com/turfbook/ground-reservations/internal/config"
	"github.com/turfbook/ground-reservations/internal/grounds"
	"github.com/turfbook/ground-reservations/internal/notify"
	"github.com/turfbook/ground-reservations/internal/observability"
	"golang.org/x/sync/errgroup"
)

// The API process expires holds with in-process timers; this worker is the
// backstop that catches holds whose timers were lost to a restart.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PGDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	rabbitPub, err := rabbit.NewPublisher(conn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	resolver := grounds.NewResolver(nil, logger)
	dispatcher := notify.NewDispatcher(rabbitPub, resolver, logger)
	sched := booking.NewScheduler()
	holds := booking.NewHoldManager(repo, redisCache, sched, dispatcher, nil, cfg.HoldTTL, cfg.ReleaseBackoff, logger)

	worker := NewExpiryWorker(repo, holds, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx, time.Minute)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown expiry worker")
}

type ExpiryWorker struct {
	repo   *crdb.Repository
	holds  *booking.HoldManager
	logger observability.Logger
}

func NewExpiryWorker(repo *crdb.Repository, holds *booking.HoldManager, logger observability.Logger) *ExpiryWorker {
	return &ExpiryWorker{repo: repo, holds: holds, logger: logger}
}

func (w *ExpiryWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			overdue, err := w.repo.GetExpiredHolds(ctx, now)
			if err != nil {
				w.logger.Error("failed to get expired holds", err)
				continue
			}
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(4)
			for _, b := range overdue {
				b := b
				g.Go(func() error {
					if err := w.releaseWithRetry(gctx, b.BookingID); err != nil {
						w.logger.WithField("booking_id", b.BookingID).Error("failed to release expired hold", err)
					}
					return nil
				})
			}
			g.Wait()
		}
	}
}

func (w *ExpiryWorker) releaseWithRetry(ctx context.Context, bookingID string) error {
	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		err := w.holds.ReleaseHold(ctx, bookingID)
		if err == nil {
			return nil
		}
		backoff := time.Duration(1<<i) * time.Second
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("failed after %d retries", maxRetries)
}
