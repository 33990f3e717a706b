package notify

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/turfbook/ground-reservations/internal/adapters/rabbit"
	"github.com/turfbook/ground-reservations/internal/domain"
	"github.com/turfbook/ground-reservations/internal/grounds"
	"github.com/turfbook/ground-reservations/internal/observability"
)

// Dispatcher enqueues user-facing booking messages. It is fire-and-forget:
// a publish failure is logged, never propagated, because a booking outcome
// must not depend on the notification pipeline.
type Dispatcher struct {
	pub      *rabbit.Publisher
	resolver *grounds.Resolver
	logger   observability.Logger
}

func NewDispatcher(pub *rabbit.Publisher, resolver *grounds.Resolver, logger observability.Logger) *Dispatcher {
	return &Dispatcher{pub: pub, resolver: resolver, logger: logger}
}

func (d *Dispatcher) Notify(ctx context.Context, b domain.Booking, kind string) {
	ground := d.resolver.Resolve(ctx, b.GroundRef)

	payload, _ := json.Marshal(map[string]interface{}{
		"booking_id":        b.BookingID,
		"user_id":           b.UserID,
		"kind":              kind,
		"ground_name":       ground.Name,
		"ground_address":    ground.Address,
		"date":              b.Date,
		"slot":              b.Slot.StartTime + "-" + b.Slot.EndTime,
		"total":             b.Pricing.TotalAmount,
		"confirmation_code": b.Confirmation.ConfirmationCode,
	})
	msg := amqp.Publishing{
		MessageId:   uuid.New().String(),
		ContentType: "application/json",
		Body:        payload,
	}
	if err := d.pub.Publish(ctx, "booking."+kind, msg); err != nil {
		d.logger.WithField("booking_id", b.BookingID).Error("notification publish failed", err)
	}
}
