package booking

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/turfbook/ground-reservations/internal/domain"
	"github.com/turfbook/ground-reservations/internal/observability"
)

// HoldManager creates time-boxed exclusive holds and guarantees their
// release when payment does not complete inside the hold window.
type HoldManager struct {
	store  Store
	locks  SlotLocker
	sched  *Scheduler
	notify Notifier
	audit  AuditTrail

	ttl     time.Duration
	backoff time.Duration
	logger  observability.Logger
}

func NewHoldManager(store Store, locks SlotLocker, sched *Scheduler, notify Notifier, audit AuditTrail, ttl, backoff time.Duration, logger observability.Logger) *HoldManager {
	return &HoldManager{
		store:   store,
		locks:   locks,
		sched:   sched,
		notify:  notify,
		audit:   audit,
		ttl:     ttl,
		backoff: backoff,
		logger:  logger,
	}
}

type CreateHoldRequest struct {
	GroundRef string
	Date      string
	Slot      domain.TimeSlot
	Pricing   domain.Pricing
	UserID    uuid.UUID
	Contact   domain.Contact
}

func (req CreateHoldRequest) validate() error {
	if req.GroundRef == "" {
		return errors.Wrap(domain.ErrInvalidInput, "ground reference required")
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return errors.Wrap(domain.ErrInvalidInput, "bad date")
	}
	if req.Slot.StartTime == "" || req.Slot.EndTime == "" {
		return errors.Wrap(domain.ErrInvalidInput, "time slot required")
	}
	if req.Pricing.TotalAmount <= 0 {
		return errors.Wrap(domain.ErrInvalidInput, "total amount must be positive")
	}
	return nil
}

// CreateHold reserves the slot for the hold window. The redis lock rejects
// obvious double-submits cheaply; the partial unique index in the booking
// table is what actually enforces the exclusivity key.
func (m *HoldManager) CreateHold(ctx context.Context, req CreateHoldRequest) (*domain.Booking, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	b := domain.NewBooking(req.GroundRef, req.Date, req.Slot, req.Pricing, req.UserID, req.Contact, m.ttl)
	key := b.SlotKey()

	ok, err := m.locks.SetSlotLock(ctx, key, b.BookingID, m.ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		observability.HoldConflicts.Inc()
		return nil, domain.ErrSlotConflict
	}

	err = m.store.WithTx(ctx, func(tx pgx.Tx) error {
		return m.store.CreateBooking(ctx, tx, b)
	})
	if err != nil {
		m.locks.ReleaseSlotLock(ctx, key)
		if errors.Is(err, domain.ErrSlotConflict) {
			observability.HoldConflicts.Inc()
		}
		return nil, err
	}

	if m.audit != nil {
		if aerr := m.audit.LogHold(ctx, b); aerr != nil {
			m.logger.WithField("booking_id", b.BookingID).Warn("audit log failed", aerr)
		}
	}

	m.sched.Schedule(b.BookingID, m.ttl, func() {
		m.expireHold(b.BookingID)
	})

	observability.HoldsCreated.Inc()
	return &b, nil
}

// ReleaseHold moves a pending hold to expired unless payment already
// completed. Booking already terminal is a no-op, not an error, so the
// timer path and any manual retry can call it redundantly.
func (m *HoldManager) ReleaseHold(ctx context.Context, bookingID string) error {
	b, err := m.store.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.Status.IsTerminal() {
		return nil
	}

	nb := *b
	if err := nb.Transition(domain.Event{Kind: domain.EventHoldExpired, At: time.Now().UTC()}); err != nil {
		// Payment landed in the meantime; reconciliation owns this booking now.
		return nil
	}

	var applied bool
	err = m.store.WithTx(ctx, func(tx pgx.Tx) error {
		var txErr error
		applied, txErr = m.store.UpdateStatusCAS(ctx, tx, &nb, domain.StatusPending)
		return txErr
	})
	if err != nil {
		return err
	}
	if !applied {
		// Lost the race to a reconciliation write. That is the correct outcome.
		return nil
	}

	m.sched.Cancel(bookingID)
	m.locks.ReleaseSlotLock(ctx, nb.SlotKey())
	if m.notify != nil {
		m.notify.Notify(ctx, nb, NotifyExpired)
	}
	observability.HoldsExpired.Inc()
	return nil
}

// expireHold is the timer callback. Release is best-effort cleanup: one
// retry after a fixed backoff, then log and abandon. The sweep worker will
// catch anything abandoned here.
func (m *HoldManager) expireHold(bookingID string) {
	ctx := context.Background()
	err := m.ReleaseHold(ctx, bookingID)
	if err == nil {
		return
	}
	m.logger.WithField("booking_id", bookingID).Warn("hold release failed, retrying", err)

	time.Sleep(m.backoff)
	if err := m.ReleaseHold(ctx, bookingID); err != nil {
		m.logger.WithField("booking_id", bookingID).Error("hold release abandoned", err)
	}
}
