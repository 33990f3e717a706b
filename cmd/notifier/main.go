package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/turfbook/ground-reservations/internal/adapters/rabbit"
	"github.com/turfbook/ground-reservations/internal/config"
	"github.com/turfbook/ground-reservations/internal/observability"
)

// Consumes booking events and hands them to the delivery channel. Delivery
// here is structured logging; a real SMS/email sender slots in behind the
// same consumer.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := observability.NewLogger()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	consumer, err := rabbit.NewConsumer(conn, "notifications.q", []string{"booking.*"})
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to start consuming: %v", err)
	}

	go func() {
		for d := range deliveries {
			var msg struct {
				BookingID        string  `json:"booking_id"`
				Kind             string  `json:"kind"`
				GroundName       string  `json:"ground_name"`
				Date             string  `json:"date"`
				Slot             string  `json:"slot"`
				Total            float64 `json:"total"`
				ConfirmationCode string  `json:"confirmation_code"`
			}
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				logger.WithField("routing_key", d.RoutingKey).Error("bad notification payload", err)
				d.Nack(false, false)
				continue
			}
			logger.
				WithField("booking_id", msg.BookingID).
				WithField("event", d.RoutingKey).
				WithField("ground", msg.GroundName).
				WithField("confirmation_code", msg.ConfirmationCode).
				Info("notification dispatched")
			d.Ack(false)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown notifier")
}
