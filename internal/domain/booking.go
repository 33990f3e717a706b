package domain

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Booking is the aggregate for a single reservation attempt. It is created
// once by the hold manager and afterwards mutated only through Transition.
type Booking struct {
	ID        uuid.UUID // storage key
	BookingID string    // public, shareable id (GB-xxxxxxxx)
	UserID    uuid.UUID
	GroundRef string // may be a live store id or an opaque legacy reference

	Date string // YYYY-MM-DD
	Slot TimeSlot

	Pricing      Pricing
	Status       Status
	Payment      Payment
	Confirmation Confirmation
	Contact      Contact

	// ExpiresAt bounds the pending hold; meaningless once terminal.
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

type TimeSlot struct {
	StartTime string // HH:MM
	EndTime   string // HH:MM
	Duration  int    // hours
}

type Pricing struct {
	BaseAmount  float64
	Discount    float64
	Taxes       float64
	TotalAmount float64
}

type Payment struct {
	Status           PaymentStatus
	GatewayOrderID   string
	GatewaySessionID string
	PaidAt           *time.Time
	RawPayload       json.RawMessage
}

type Confirmation struct {
	ConfirmedAt      *time.Time
	ConfirmationCode string
	ConfirmedBy      string
}

// Contact holds free-form player metadata, not involved in the state machine.
type Contact struct {
	Name  string
	Phone string
	Email string
}

// SlotKey is the exclusivity key: at most one booking in a slot-holding
// status may exist per key at any time.
type SlotKey struct {
	GroundRef string
	Date      string
	StartTime string
	EndTime   string
}

func (k SlotKey) String() string {
	return k.GroundRef + ":" + k.Date + ":" + k.StartTime + "-" + k.EndTime
}

func (b *Booking) SlotKey() SlotKey {
	return SlotKey{GroundRef: b.GroundRef, Date: b.Date, StartTime: b.Slot.StartTime, EndTime: b.Slot.EndTime}
}

func NewBooking(groundRef, date string, slot TimeSlot, pricing Pricing, userID uuid.UUID, contact Contact, holdTTL time.Duration) Booking {
	now := time.Now().UTC()
	return Booking{
		ExpiresAt: now.Add(holdTTL),
		ID:        uuid.New(),
		BookingID: NewBookingID(),
		UserID:    userID,
		GroundRef: groundRef,
		Date:      date,
		Slot:      slot,
		Pricing:   pricing,
		Status:    StatusPending,
		Payment:   Payment{Status: PaymentNone},
		Contact:   contact,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Unambiguous alphabet: no 0/O, 1/I/L.
const codeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

func randomCode(n int) string {
	buf := make([]byte, n)
	rand.Read(buf)
	for i := range buf {
		buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return string(buf)
}

func NewBookingID() string {
	return fmt.Sprintf("GB-%s", randomCode(8))
}

func NewConfirmationCode() string {
	return fmt.Sprintf("CNF-%s", randomCode(10))
}
