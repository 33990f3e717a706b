package domain

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

// IsTerminal reports whether no further transition may leave the status.
func (s Status) IsTerminal() bool {
	return s != StatusPending
}

// HoldsSlot reports whether a booking in this status occupies its exclusivity
// key. Confirmed bookings keep the slot; cancelled, failed and expired ones
// release it.
func (s Status) HoldsSlot() bool {
	return s == StatusPending || s == StatusConfirmed
}

type PaymentStatus string

const (
	PaymentNone      PaymentStatus = "none"
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type EventKind string

const (
	EventPaymentPaid      EventKind = "payment.paid"
	EventPaymentFailed    EventKind = "payment.failed"
	EventPaymentCancelled EventKind = "payment.cancelled"
	EventHoldExpired      EventKind = "hold.expired"
)

// Event is an input to the booking state machine.
type Event struct {
	Kind        EventKind
	At          time.Time
	PaidAt      *time.Time // optional upstream timestamp; defaults to At
	ConfirmedBy string
	RawPayload  json.RawMessage
}

// Transition applies ev to the booking per the lifecycle table. It is the
// only place booking status, payment status and confirmation fields change
// together, which keeps the three consistent by construction.
//
// A duplicate paid event against an already confirmed booking is a no-op.
// Every other event against a terminal booking is ErrInvalidTransition.
func (b *Booking) Transition(ev Event) error {
	if b.Status != StatusPending {
		if b.Status == StatusConfirmed && ev.Kind == EventPaymentPaid {
			return nil // idempotent re-confirmation
		}
		return ErrInvalidTransition
	}

	switch ev.Kind {
	case EventPaymentPaid:
		b.Status = StatusConfirmed
		b.Payment.Status = PaymentCompleted
		paidAt := ev.At
		if ev.PaidAt != nil {
			paidAt = *ev.PaidAt
		}
		b.Payment.PaidAt = &paidAt
		if len(ev.RawPayload) > 0 {
			b.Payment.RawPayload = ev.RawPayload
		}
		if b.Confirmation.ConfirmationCode == "" {
			b.Confirmation.ConfirmationCode = NewConfirmationCode()
		}
		if b.Confirmation.ConfirmedAt == nil {
			at := ev.At
			b.Confirmation.ConfirmedAt = &at
			b.Confirmation.ConfirmedBy = ev.ConfirmedBy
		}
	case EventPaymentFailed:
		b.Status = StatusFailed
		b.Payment.Status = PaymentFailed
		if len(ev.RawPayload) > 0 {
			b.Payment.RawPayload = ev.RawPayload
		}
	case EventPaymentCancelled:
		b.Status = StatusCancelled
		b.Payment.Status = PaymentFailed
		if len(ev.RawPayload) > 0 {
			b.Payment.RawPayload = ev.RawPayload
		}
	case EventHoldExpired:
		// A hold with a recorded payment must never be expired away.
		if b.Payment.Status == PaymentCompleted || b.Payment.PaidAt != nil {
			return ErrInvalidTransition
		}
		b.Status = StatusExpired
	default:
		return ErrInvalidTransition
	}

	b.UpdatedAt = ev.At
	return nil
}
