package crdb

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/turfbook/ground-reservations/internal/domain"
	"github.com/turfbook/ground-reservations/internal/observability"
)

const (
	SerializationFailureCode = "40001"
	UniqueViolationCode      = "23505"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	defer func() {
		observability.DBTxDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == SerializationFailureCode {
			return domain.ErrSerializationFailure
		}
		return err
	}

	return tx.Commit(ctx)
}

const bookingColumns = `
	id, booking_id, user_id, ground_ref, date, start_time, end_time, duration,
	base_amount, discount, taxes, total_amount,
	status, payment_status, gateway_order_id, gateway_session_id, paid_at, raw_payload,
	confirmed_at, confirmation_code, confirmed_by,
	contact_name, contact_phone, contact_email,
	expires_at, created_at, updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.BookingID, &b.UserID, &b.GroundRef, &b.Date,
		&b.Slot.StartTime, &b.Slot.EndTime, &b.Slot.Duration,
		&b.Pricing.BaseAmount, &b.Pricing.Discount, &b.Pricing.Taxes, &b.Pricing.TotalAmount,
		&b.Status, &b.Payment.Status, &b.Payment.GatewayOrderID, &b.Payment.GatewaySessionID,
		&b.Payment.PaidAt, &b.Payment.RawPayload,
		&b.Confirmation.ConfirmedAt, &b.Confirmation.ConfirmationCode, &b.Confirmation.ConfirmedBy,
		&b.Contact.Name, &b.Contact.Phone, &b.Contact.Email,
		&b.ExpiresAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBooking inserts a pending booking. The partial unique index over
// slot-holding statuses enforces the exclusivity key; a conflicting insert
// comes back as domain.ErrSlotConflict.
func (r *Repository) CreateBooking(ctx context.Context, tx pgx.Tx, b domain.Booking) error {
	result, err := tx.Exec(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
		ON CONFLICT (ground_ref, date, start_time, end_time) WHERE status IN ('pending', 'confirmed') DO NOTHING
	`,
		b.ID, b.BookingID, b.UserID, b.GroundRef, b.Date,
		b.Slot.StartTime, b.Slot.EndTime, b.Slot.Duration,
		b.Pricing.BaseAmount, b.Pricing.Discount, b.Pricing.Taxes, b.Pricing.TotalAmount,
		b.Status, b.Payment.Status, b.Payment.GatewayOrderID, b.Payment.GatewaySessionID,
		b.Payment.PaidAt, b.Payment.RawPayload,
		b.Confirmation.ConfirmedAt, b.Confirmation.ConfirmationCode, b.Confirmation.ConfirmedBy,
		b.Contact.Name, b.Contact.Phone, b.Contact.Email,
		b.ExpiresAt, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == UniqueViolationCode {
			return domain.ErrSlotConflict
		}
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrSlotConflict
	}
	return nil
}

// GetBooking looks a booking up by its public id.
func (r *Repository) GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+` FROM bookings WHERE booking_id = $1
	`, bookingID))
}

func (r *Repository) GetByGatewayOrder(ctx context.Context, orderID string) (*domain.Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+` FROM bookings WHERE gateway_order_id = $1
	`, orderID))
}

// AttachGatewayOrder ties a freshly created gateway order to a pending
// booking and moves payment to pending. Conditional on the booking still
// being pending without an order already attached.
func (r *Repository) AttachGatewayOrder(ctx context.Context, bookingID, orderID, sessionID string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET gateway_order_id = $2, gateway_session_id = $3, payment_status = 'pending', updated_at = now()
		WHERE booking_id = $1 AND status = 'pending' AND gateway_order_id = ''
	`, bookingID, orderID, sessionID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

// UpdateStatusCAS persists a transitioned booking with a single conditional
// write keyed on the previous status. When the guard fails the booking has
// already been moved by a concurrent writer; the current row is returned and
// applied is false. The loser must treat that as a no-op success.
func (r *Repository) UpdateStatusCAS(ctx context.Context, tx pgx.Tx, b *domain.Booking, from domain.Status) (applied bool, err error) {
	var result pgconn.CommandTag
	result, err = tx.Exec(ctx, `
		UPDATE bookings
		SET status = $2, payment_status = $3, paid_at = $4, raw_payload = $5,
		    confirmed_at = $6, confirmation_code = $7, confirmed_by = $8, updated_at = $9
		WHERE id = $1 AND status = $10
	`,
		b.ID, b.Status, b.Payment.Status, b.Payment.PaidAt, b.Payment.RawPayload,
		b.Confirmation.ConfirmedAt, b.Confirmation.ConfirmationCode, b.Confirmation.ConfirmedBy,
		b.UpdatedAt, from,
	)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

// GetExpiredHolds returns pending bookings whose hold window has lapsed.
// Used by the sweep worker as a backstop for in-process timers lost to a
// restart.
func (r *Repository) GetExpiredHolds(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings WHERE status = 'pending' AND expires_at <= $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// ListUserBookings returns a user's bookings, newest first.
func (r *Repository) ListUserBookings(ctx context.Context, userID string, limit int) ([]domain.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}
