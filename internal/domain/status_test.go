package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func pendingBooking() Booking {
	return NewBooking("greenfield-arena", "2025-08-19",
		TimeSlot{StartTime: "18:00", EndTime: "21:00", Duration: 3},
		Pricing{BaseAmount: 5000, Taxes: 310, TotalAmount: 5310},
		uuid.New(), Contact{Name: "A. Player"}, 15*time.Minute)
}

func TestTransition_PaidConfirms(t *testing.T) {
	b := pendingBooking()
	now := time.Now().UTC()

	if err := b.Transition(Event{Kind: EventPaymentPaid, At: now, ConfirmedBy: "gateway"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if b.Status != StatusConfirmed {
		t.Errorf("expected confirmed, got %s", b.Status)
	}
	if b.Payment.Status != PaymentCompleted {
		t.Errorf("expected payment completed, got %s", b.Payment.Status)
	}
	if b.Payment.PaidAt == nil || !b.Payment.PaidAt.Equal(now) {
		t.Errorf("expected paid_at defaulted to event time, got %v", b.Payment.PaidAt)
	}
	if b.Confirmation.ConfirmationCode == "" {
		t.Error("expected confirmation code to be generated")
	}
	if b.Confirmation.ConfirmedAt == nil {
		t.Error("expected confirmed_at to be set")
	}
}

func TestTransition_PaidUsesUpstreamTimestamp(t *testing.T) {
	b := pendingBooking()
	upstream := time.Now().UTC().Add(-2 * time.Minute)

	if err := b.Transition(Event{Kind: EventPaymentPaid, At: time.Now().UTC(), PaidAt: &upstream}); err != nil {
		t.Fatal(err)
	}
	if !b.Payment.PaidAt.Equal(upstream) {
		t.Errorf("expected upstream paid_at %v, got %v", upstream, b.Payment.PaidAt)
	}
}

func TestTransition_DuplicatePaidIsNoop(t *testing.T) {
	b := pendingBooking()
	if err := b.Transition(Event{Kind: EventPaymentPaid, At: time.Now().UTC()}); err != nil {
		t.Fatal(err)
	}
	code := b.Confirmation.ConfirmationCode
	paidAt := *b.Payment.PaidAt

	if err := b.Transition(Event{Kind: EventPaymentPaid, At: time.Now().UTC()}); err != nil {
		t.Fatalf("duplicate paid should be a no-op, got %v", err)
	}
	if b.Confirmation.ConfirmationCode != code {
		t.Error("confirmation code must not be regenerated")
	}
	if !b.Payment.PaidAt.Equal(paidAt) {
		t.Error("paid_at must not change on re-confirmation")
	}
}

func TestTransition_FailedAndCancelled(t *testing.T) {
	b := pendingBooking()
	if err := b.Transition(Event{Kind: EventPaymentFailed, At: time.Now().UTC()}); err != nil {
		t.Fatal(err)
	}
	if b.Status != StatusFailed || b.Payment.Status != PaymentFailed {
		t.Errorf("expected failed/failed, got %s/%s", b.Status, b.Payment.Status)
	}

	c := pendingBooking()
	if err := c.Transition(Event{Kind: EventPaymentCancelled, At: time.Now().UTC()}); err != nil {
		t.Fatal(err)
	}
	if c.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", c.Status)
	}
}

func TestTransition_ExpiryGuardedByPayment(t *testing.T) {
	b := pendingBooking()
	paidAt := time.Now().UTC()
	b.Payment.PaidAt = &paidAt

	err := b.Transition(Event{Kind: EventHoldExpired, At: time.Now().UTC()})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expiry with a recorded payment must be rejected, got %v", err)
	}
	if b.Status != StatusPending {
		t.Errorf("booking must stay pending, got %s", b.Status)
	}
}

func TestTransition_Expiry(t *testing.T) {
	b := pendingBooking()
	if err := b.Transition(Event{Kind: EventHoldExpired, At: time.Now().UTC()}); err != nil {
		t.Fatal(err)
	}
	if b.Status != StatusExpired {
		t.Errorf("expected expired, got %s", b.Status)
	}
	if b.Status.HoldsSlot() {
		t.Error("expired booking must release the slot")
	}
}

func TestTransition_TerminalStatesAreFinal(t *testing.T) {
	for _, terminal := range []EventKind{EventPaymentFailed, EventPaymentCancelled, EventHoldExpired} {
		b := pendingBooking()
		if err := b.Transition(Event{Kind: terminal, At: time.Now().UTC()}); err != nil {
			t.Fatal(err)
		}
		for _, ev := range []EventKind{EventPaymentPaid, EventPaymentFailed, EventPaymentCancelled, EventHoldExpired} {
			if err := b.Transition(Event{Kind: ev, At: time.Now().UTC()}); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("after %s, event %s should be rejected, got %v", terminal, ev, err)
			}
		}
	}
}

func TestSlotHolding(t *testing.T) {
	if !StatusPending.HoldsSlot() || !StatusConfirmed.HoldsSlot() {
		t.Error("pending and confirmed must hold the slot")
	}
	for _, s := range []Status{StatusCancelled, StatusFailed, StatusExpired} {
		if s.HoldsSlot() {
			t.Errorf("%s must not hold the slot", s)
		}
	}
	if StatusPending.IsTerminal() {
		t.Error("pending is not terminal")
	}
}

func TestIdentifiers(t *testing.T) {
	id := NewBookingID()
	if !strings.HasPrefix(id, "GB-") || len(id) != len("GB-")+8 {
		t.Errorf("unexpected booking id %q", id)
	}
	code := NewConfirmationCode()
	if !strings.HasPrefix(code, "CNF-") || len(code) != len("CNF-")+10 {
		t.Errorf("unexpected confirmation code %q", code)
	}
	if NewBookingID() == NewBookingID() {
		t.Error("booking ids should not collide")
	}
}
