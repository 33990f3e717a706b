package booking

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/turfbook/ground-reservations/internal/adapters/crdb"
	"github.com/turfbook/ground-reservations/internal/domain"
)

// Store is the persistence surface the booking core needs. *crdb.Repository
// satisfies it; tests plug in an in-memory fake.
type Store interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	CreateBooking(ctx context.Context, tx pgx.Tx, b domain.Booking) error
	GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error)
	GetByGatewayOrder(ctx context.Context, orderID string) (*domain.Booking, error)
	AttachGatewayOrder(ctx context.Context, bookingID, orderID, sessionID string) error
	UpdateStatusCAS(ctx context.Context, tx pgx.Tx, b *domain.Booking, from domain.Status) (bool, error)
	InsertOutbox(ctx context.Context, tx pgx.Tx, record crdb.OutboxRecord) error
	GetExpiredHolds(ctx context.Context, now time.Time) ([]domain.Booking, error)
}

// SlotLocker sheds duplicate hold attempts before they reach the database.
type SlotLocker interface {
	SetSlotLock(ctx context.Context, key domain.SlotKey, bookingID string, ttl time.Duration) (bool, error)
	ReleaseSlotLock(ctx context.Context, key domain.SlotKey) error
}

// Notifier is the fire-and-forget notification dispatcher. Failures are the
// dispatcher's to log; the core never rolls back on them.
type Notifier interface {
	Notify(ctx context.Context, b domain.Booking, kind string)
}

// AuditTrail records lifecycle events with raw gateway payloads.
type AuditTrail interface {
	LogHold(ctx context.Context, b domain.Booking) error
	LogReconciliation(ctx context.Context, b domain.Booking, gatewayStatus string, raw []byte) error
}

const (
	NotifyConfirmed = "confirmed"
	NotifyCancelled = "cancelled"
	NotifyExpired   = "expired"
)
