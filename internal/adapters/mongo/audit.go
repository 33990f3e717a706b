package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/turfbook/ground-reservations/internal/domain"
	"github.com/turfbook/ground-reservations/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// AuditLogger keeps a trail of booking lifecycle events, including the raw
// gateway payload of every reconciliation attempt.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	BookingID string    `bson:"booking_id"`
	UserID    uuid.UUID `bson:"user_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action, bookingID string, userID uuid.UUID, data map[string]interface{}) error {
	log := AuditLog{
		ID:        uuid.New(),
		Action:    action,
		BookingID: bookingID,
		UserID:    userID,
		Timestamp: time.Now(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, log)
	if err != nil {
		a.logger.Error("failed to insert audit log", err)
		return err
	}
	return nil
}

func (a *AuditLogger) LogHold(ctx context.Context, b domain.Booking) error {
	data := map[string]interface{}{
		"ground_ref": b.GroundRef,
		"date":       b.Date,
		"slot":       b.Slot.StartTime + "-" + b.Slot.EndTime,
		"total":      b.Pricing.TotalAmount,
		"expires_at": b.ExpiresAt.Format(time.RFC3339),
	}
	return a.LogEvent(ctx, "hold.created", b.BookingID, b.UserID, data)
}

func (a *AuditLogger) LogReconciliation(ctx context.Context, b domain.Booking, gatewayStatus string, raw []byte) error {
	data := map[string]interface{}{
		"gateway_order_id": b.Payment.GatewayOrderID,
		"gateway_status":   gatewayStatus,
		"status":           string(b.Status),
		"raw_payload":      string(raw),
	}
	return a.LogEvent(ctx, "booking.reconciled", b.BookingID, b.UserID, data)
}
