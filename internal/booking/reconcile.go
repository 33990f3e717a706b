package booking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/turfbook/ground-reservations/internal/adapters/crdb"
	"github.com/turfbook/ground-reservations/internal/domain"
	"github.com/turfbook/ground-reservations/internal/gateway"
	"github.com/turfbook/ground-reservations/internal/observability"
)

// Reconciler settles a booking against the gateway's authoritative order
// record. Webhooks and manual polls both funnel into Reconcile; neither is
// trusted as a status source by itself.
type Reconciler struct {
	store  Store
	gw     gateway.Client
	locks  SlotLocker
	sched  *Scheduler
	notify Notifier
	audit  AuditTrail
	logger observability.Logger
}

func NewReconciler(store Store, gw gateway.Client, locks SlotLocker, sched *Scheduler, notify Notifier, audit AuditTrail, logger observability.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		gw:     gw,
		locks:  locks,
		sched:  sched,
		notify: notify,
		audit:  audit,
		logger: logger,
	}
}

// CreateOrder asks the gateway for a payment order and ties it to the
// pending booking.
func (r *Reconciler) CreateOrder(ctx context.Context, bookingID string) (*domain.Booking, error) {
	b, err := r.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != domain.StatusPending {
		return nil, domain.ErrInvalidTransition
	}
	if b.Payment.GatewayOrderID != "" {
		return b, nil // order already attached; client can reuse it
	}

	orderID, sessionID, err := r.gw.CreateOrder(ctx, b.Pricing.TotalAmount, "INR", b.BookingID)
	if err != nil {
		return nil, err
	}
	if err := r.store.AttachGatewayOrder(ctx, bookingID, orderID, sessionID); err != nil {
		return nil, err
	}
	return r.store.GetBooking(ctx, bookingID)
}

// Reconcile loads the booking, re-verifies the order against the gateway
// and applies at most one state transition through a conditional write.
// Terminal bookings come back unchanged; so does the loser of a concurrent
// reconciliation race.
func (r *Reconciler) Reconcile(ctx context.Context, bookingID, gatewayOrderID string) (*domain.Booking, error) {
	b, err := r.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status.IsTerminal() {
		return b, nil
	}

	if gatewayOrderID == "" {
		gatewayOrderID = b.Payment.GatewayOrderID
	}
	if gatewayOrderID == "" {
		return nil, errors.Wrap(domain.ErrInvalidInput, "no gateway order to reconcile against")
	}
	if b.Payment.GatewayOrderID != "" && b.Payment.GatewayOrderID != gatewayOrderID {
		return nil, errors.Wrap(domain.ErrInvalidInput, "gateway order does not belong to booking")
	}

	state, err := r.gw.FetchOrderStatus(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}

	ev, final := mapOrderStatus(state)
	if r.audit != nil {
		if aerr := r.audit.LogReconciliation(ctx, *b, string(state.Status), state.Raw); aerr != nil {
			r.logger.WithField("booking_id", bookingID).Warn("audit log failed", aerr)
		}
	}
	if !final {
		// Gateway has not settled yet; leave the booking pending and let the
		// caller retry, bounded by the hold window.
		observability.Reconciliations.WithLabelValues("pending").Inc()
		return b, nil
	}

	nb := *b
	if err := nb.Transition(ev); err != nil {
		r.logger.WithField("booking_id", bookingID).Warn("ignoring event with no matching transition", err)
		return b, nil
	}

	var applied bool
	err = r.store.WithTx(ctx, func(tx pgx.Tx) error {
		var txErr error
		applied, txErr = r.store.UpdateStatusCAS(ctx, tx, &nb, b.Status)
		if txErr != nil || !applied {
			return txErr
		}
		if nb.Status == domain.StatusConfirmed {
			// Written with the transition so confirmation is announced
			// exactly once even when two reconciles race.
			return r.store.InsertOutbox(ctx, tx, confirmationOutbox(nb))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost the race; surface whatever the winner wrote.
		current, err := r.store.GetBooking(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		return current, nil
	}

	r.sched.Cancel(bookingID)
	switch nb.Status {
	case domain.StatusConfirmed:
		observability.Reconciliations.WithLabelValues("confirmed").Inc()
	case domain.StatusFailed, domain.StatusCancelled:
		r.locks.ReleaseSlotLock(ctx, nb.SlotKey())
		if r.notify != nil {
			r.notify.Notify(ctx, nb, NotifyCancelled)
		}
		observability.Reconciliations.WithLabelValues(string(nb.Status)).Inc()
	}

	return &nb, nil
}

// mapOrderStatus turns a gateway order state into a state machine event.
// Non-terminal gateway statuses map to no event at all.
func mapOrderStatus(state gateway.OrderState) (domain.Event, bool) {
	now := time.Now().UTC()
	switch state.Status {
	case gateway.OrderPaid:
		return domain.Event{
			Kind:        domain.EventPaymentPaid,
			At:          now,
			PaidAt:      state.PaidAt,
			ConfirmedBy: "gateway",
			RawPayload:  json.RawMessage(state.Raw),
		}, true
	case gateway.OrderFailed:
		return domain.Event{Kind: domain.EventPaymentFailed, At: now, RawPayload: json.RawMessage(state.Raw)}, true
	case gateway.OrderCancelled:
		return domain.Event{Kind: domain.EventPaymentCancelled, At: now, RawPayload: json.RawMessage(state.Raw)}, true
	default:
		return domain.Event{}, false
	}
}

func confirmationOutbox(b domain.Booking) crdb.OutboxRecord {
	payload, _ := json.Marshal(map[string]interface{}{
		"booking_id":        b.BookingID,
		"user_id":           b.UserID,
		"ground_ref":        b.GroundRef,
		"date":              b.Date,
		"slot":              b.Slot.StartTime + "-" + b.Slot.EndTime,
		"total":             b.Pricing.TotalAmount,
		"confirmation_code": b.Confirmation.ConfirmationCode,
	})
	return crdb.OutboxRecord{
		ID:            uuid.New(),
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     "booking.confirmed",
		Payload:       payload,
		DedupeKey:     b.BookingID + ":confirmed",
	}
}
