package booking

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/turfbook/ground-reservations/internal/adapters/crdb"
	"github.com/turfbook/ground-reservations/internal/domain"
	"github.com/turfbook/ground-reservations/internal/gateway"
	"github.com/turfbook/ground-reservations/internal/observability"
)

type fakeStore struct {
	mu       sync.Mutex
	bookings map[string]*domain.Booking
	outbox   []crdb.OutboxRecord
	failTx   int // fail this many upcoming transactions
}

func newFakeStore() *fakeStore {
	return &fakeStore{bookings: make(map[string]*domain.Booking)}
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	s.mu.Lock()
	if s.failTx > 0 {
		s.failTx--
		s.mu.Unlock()
		return errors.New("storage unavailable")
	}
	defer s.mu.Unlock()
	return fn(nil)
}

func (s *fakeStore) CreateBooking(ctx context.Context, tx pgx.Tx, b domain.Booking) error {
	key := b.SlotKey()
	for _, existing := range s.bookings {
		if existing.SlotKey() == key && existing.Status.HoldsSlot() {
			return domain.ErrSlotConflict
		}
	}
	cp := b
	s.bookings[b.BookingID] = &cp
	return nil
}

func (s *fakeStore) GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *fakeStore) GetByGatewayOrder(ctx context.Context, orderID string) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.Payment.GatewayOrderID == orderID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeStore) AttachGatewayOrder(ctx context.Context, bookingID, orderID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return domain.ErrNotFound
	}
	if b.Status != domain.StatusPending || b.Payment.GatewayOrderID != "" {
		return domain.ErrInvalidTransition
	}
	b.Payment.GatewayOrderID = orderID
	b.Payment.GatewaySessionID = sessionID
	b.Payment.Status = domain.PaymentPending
	return nil
}

func (s *fakeStore) UpdateStatusCAS(ctx context.Context, tx pgx.Tx, b *domain.Booking, from domain.Status) (bool, error) {
	cur, ok := s.bookings[b.BookingID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if cur.Status != from {
		return false, nil
	}
	cp := *b
	s.bookings[b.BookingID] = &cp
	return true, nil
}

func (s *fakeStore) InsertOutbox(ctx context.Context, tx pgx.Tx, record crdb.OutboxRecord) error {
	s.outbox = append(s.outbox, record)
	return nil
}

func (s *fakeStore) GetExpiredHolds(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Booking
	for _, b := range s.bookings {
		if b.Status == domain.StatusPending && !b.ExpiresAt.After(now) {
			out = append(out, *b)
		}
	}
	return out, nil
}

type fakeLocker struct {
	mu    sync.Mutex
	locks map[string]string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{locks: make(map[string]string)}
}

func (l *fakeLocker) SetSlotLock(ctx context.Context, key domain.SlotKey, bookingID string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.locks[key.String()]; held {
		return false, nil
	}
	l.locks[key.String()] = bookingID
	return true, nil
}

func (l *fakeLocker) ReleaseSlotLock(ctx context.Context, key domain.SlotKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, key.String())
	return nil
}

type fakeGateway struct {
	mu     sync.Mutex
	state  gateway.OrderState
	err    error
	orders int
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amount float64, currency, receipt string) (string, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", "", g.err
	}
	g.orders++
	return "order123", "sess123", nil
}

func (g *fakeGateway) FetchOrderStatus(ctx context.Context, orderID string) (gateway.OrderState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return gateway.OrderState{}, g.err
	}
	return g.state, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	kinds map[string]int
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{kinds: make(map[string]int)}
}

func (n *fakeNotifier) Notify(ctx context.Context, b domain.Booking, kind string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds[kind]++
}

func (n *fakeNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.kinds[kind]
}

type fixture struct {
	store    *fakeStore
	locks    *fakeLocker
	gw       *fakeGateway
	notifier *fakeNotifier
	sched    *Scheduler
	holds    *HoldManager
	rec      *Reconciler
}

func newFixture(ttl time.Duration) *fixture {
	store := newFakeStore()
	locks := newFakeLocker()
	gw := &fakeGateway{}
	notifier := newFakeNotifier()
	sched := NewScheduler()
	logger := observability.NewLogger()
	return &fixture{
		store:    store,
		locks:    locks,
		gw:       gw,
		notifier: notifier,
		sched:    sched,
		holds:    NewHoldManager(store, locks, sched, notifier, nil, ttl, 10*time.Millisecond, logger),
		rec:      NewReconciler(store, gw, locks, sched, notifier, nil, logger),
	}
}

func holdRequest() CreateHoldRequest {
	return CreateHoldRequest{
		GroundRef: "G1",
		Date:      "2025-08-19",
		Slot:      domain.TimeSlot{StartTime: "18:00", EndTime: "21:00", Duration: 3},
		Pricing:   domain.Pricing{BaseAmount: 5000, Taxes: 310, TotalAmount: 5310},
		UserID:    uuid.New(),
		Contact:   domain.Contact{Name: "A. Player", Phone: "+91 90000 00001"},
	}
}

func TestCreateHold(t *testing.T) {
	f := newFixture(time.Hour)

	b, err := f.holds.CreateHold(context.Background(), holdRequest())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if b.Status != domain.StatusPending {
		t.Errorf("expected pending, got %s", b.Status)
	}
	if b.Payment.Status != domain.PaymentNone {
		t.Errorf("expected payment none, got %s", b.Payment.Status)
	}
	if b.BookingID == "" {
		t.Error("expected a public booking id")
	}
	if f.sched.Pending() != 1 {
		t.Errorf("expected one scheduled expiry timer, got %d", f.sched.Pending())
	}
}

func TestCreateHold_SlotConflict(t *testing.T) {
	f := newFixture(time.Hour)

	if _, err := f.holds.CreateHold(context.Background(), holdRequest()); err != nil {
		t.Fatal(err)
	}
	_, err := f.holds.CreateHold(context.Background(), holdRequest())
	if !errors.Is(err, domain.ErrSlotConflict) {
		t.Fatalf("expected slot conflict, got %v", err)
	}
}

func TestCreateHold_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(time.Hour)

	const attempts = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.holds.CreateHold(context.Background(), holdRequest()); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if successes != 1 {
		t.Fatalf("expected exactly one winning hold, got %d", successes)
	}
}

func TestCreateHold_Validation(t *testing.T) {
	f := newFixture(time.Hour)

	req := holdRequest()
	req.Date = "19-08-2025"
	if _, err := f.holds.CreateHold(context.Background(), req); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("bad date should be rejected, got %v", err)
	}

	req = holdRequest()
	req.Pricing.TotalAmount = 0
	if _, err := f.holds.CreateHold(context.Background(), req); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("zero total should be rejected, got %v", err)
	}
}

func TestReconcile_PaidConfirmsOnce(t *testing.T) {
	f := newFixture(time.Hour)
	ctx := context.Background()

	b, err := f.holds.CreateHold(ctx, holdRequest())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.rec.CreateOrder(ctx, b.BookingID); err != nil {
		t.Fatal(err)
	}
	f.gw.state = gateway.OrderState{Status: gateway.OrderPaid, Raw: json.RawMessage(`{"status":"PAID"}`)}

	got, err := f.rec.Reconcile(ctx, b.BookingID, "order123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Status != domain.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", got.Status)
	}
	if got.Confirmation.ConfirmationCode == "" {
		t.Error("expected a confirmation code")
	}
	if got.Payment.PaidAt == nil {
		t.Error("expected paid_at to be set")
	}
	code := got.Confirmation.ConfirmationCode

	// Duplicate webhook delivery.
	again, err := f.rec.Reconcile(ctx, b.BookingID, "order123")
	if err != nil {
		t.Fatalf("repeat reconcile must not error, got %v", err)
	}
	if again.Status != domain.StatusConfirmed || again.Confirmation.ConfirmationCode != code {
		t.Error("repeat reconcile must leave the booking unchanged")
	}
	if len(f.store.outbox) != 1 {
		t.Fatalf("confirmation must be announced exactly once, got %d outbox records", len(f.store.outbox))
	}
	if f.sched.Pending() != 0 {
		t.Error("expiry timer should be cancelled on confirmation")
	}
}

func TestReconcile_ConcurrentRacers(t *testing.T) {
	f := newFixture(time.Hour)
	ctx := context.Background()

	b, err := f.holds.CreateHold(ctx, holdRequest())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.rec.CreateOrder(ctx, b.BookingID); err != nil {
		t.Fatal(err)
	}
	f.gw.state = gateway.OrderState{Status: gateway.OrderPaid}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.rec.Reconcile(ctx, b.BookingID, "order123"); err != nil {
				t.Errorf("racing reconcile errored: %v", err)
			}
		}()
	}
	wg.Wait()

	final, _ := f.store.GetBooking(ctx, b.BookingID)
	if final.Status != domain.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", final.Status)
	}
	if len(f.store.outbox) != 1 {
		t.Fatalf("expected one outbox record, got %d", len(f.store.outbox))
	}
}

func TestReconcile_PendingGatewayLeavesBookingAlone(t *testing.T) {
	f := newFixture(time.Hour)
	ctx := context.Background()

	b, _ := f.holds.CreateHold(ctx, holdRequest())
	f.rec.CreateOrder(ctx, b.BookingID)
	f.gw.state = gateway.OrderState{Status: gateway.OrderPending}

	got, err := f.rec.Reconcile(ctx, b.BookingID, "order123")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusPending {
		t.Errorf("expected still pending, got %s", got.Status)
	}
	if len(f.store.outbox) != 0 {
		t.Error("no outbox record for an unsettled order")
	}
}

func TestReconcile_FailedReleasesSlot(t *testing.T) {
	f := newFixture(time.Hour)
	ctx := context.Background()

	b, _ := f.holds.CreateHold(ctx, holdRequest())
	f.rec.CreateOrder(ctx, b.BookingID)
	f.gw.state = gateway.OrderState{Status: gateway.OrderFailed, Raw: json.RawMessage(`{"status":"FAILED","reason":"declined"}`)}

	got, err := f.rec.Reconcile(ctx, b.BookingID, "order123")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if f.notifier.count(NotifyCancelled) != 1 {
		t.Error("expected one cancellation notification")
	}

	// Slot must be bookable again.
	if _, err := f.holds.CreateHold(ctx, holdRequest()); err != nil {
		t.Fatalf("slot should be free after failure, got %v", err)
	}
}

func TestReconcile_GatewayUnavailable(t *testing.T) {
	f := newFixture(time.Hour)
	ctx := context.Background()

	b, _ := f.holds.CreateHold(ctx, holdRequest())
	f.rec.CreateOrder(ctx, b.BookingID)
	f.gw.err = domain.ErrGatewayUnavailable

	if _, err := f.rec.Reconcile(ctx, b.BookingID, "order123"); !errors.Is(err, domain.ErrGatewayUnavailable) {
		t.Fatalf("expected gateway unavailable, got %v", err)
	}
	got, _ := f.store.GetBooking(ctx, b.BookingID)
	if got.Status != domain.StatusPending {
		t.Error("booking must be left pending for a later retry")
	}
}

func TestReconcile_OrderMismatch(t *testing.T) {
	f := newFixture(time.Hour)
	ctx := context.Background()

	b, _ := f.holds.CreateHold(ctx, holdRequest())
	f.rec.CreateOrder(ctx, b.BookingID)

	if _, err := f.rec.Reconcile(ctx, b.BookingID, "someone-elses-order"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestReleaseHold(t *testing.T) {
	f := newFixture(time.Hour)
	ctx := context.Background()

	b, _ := f.holds.CreateHold(ctx, holdRequest())
	if err := f.holds.ReleaseHold(ctx, b.BookingID); err != nil {
		t.Fatal(err)
	}
	got, _ := f.store.GetBooking(ctx, b.BookingID)
	if got.Status != domain.StatusExpired {
		t.Fatalf("expected expired, got %s", got.Status)
	}
	if f.notifier.count(NotifyExpired) != 1 {
		t.Error("expected one expiry notification")
	}

	// Redundant release from a second path is a no-op.
	if err := f.holds.ReleaseHold(ctx, b.BookingID); err != nil {
		t.Fatalf("redundant release must be a no-op, got %v", err)
	}
	if f.notifier.count(NotifyExpired) != 1 {
		t.Error("redundant release must not re-notify")
	}

	// Slot free again.
	if _, err := f.holds.CreateHold(ctx, holdRequest()); err != nil {
		t.Fatalf("slot should be free after expiry, got %v", err)
	}
}

func TestReleaseHold_LosesToPaidReconciliation(t *testing.T) {
	f := newFixture(time.Hour)
	ctx := context.Background()

	b, _ := f.holds.CreateHold(ctx, holdRequest())
	f.rec.CreateOrder(ctx, b.BookingID)
	f.gw.state = gateway.OrderState{Status: gateway.OrderPaid}

	// Payment lands just before the expiry path runs.
	if _, err := f.rec.Reconcile(ctx, b.BookingID, "order123"); err != nil {
		t.Fatal(err)
	}
	if err := f.holds.ReleaseHold(ctx, b.BookingID); err != nil {
		t.Fatalf("late expiry must lose gracefully, got %v", err)
	}

	got, _ := f.store.GetBooking(ctx, b.BookingID)
	if got.Status != domain.StatusConfirmed {
		t.Fatalf("a paid booking must never end expired, got %s", got.Status)
	}
	if f.notifier.count(NotifyExpired) != 0 {
		t.Error("losing expiry must not notify")
	}
}

func TestExpiryTimer_FiresAndRetries(t *testing.T) {
	f := newFixture(30 * time.Millisecond)
	ctx := context.Background()

	b, err := f.holds.CreateHold(ctx, holdRequest())
	if err != nil {
		t.Fatal(err)
	}
	// First release transaction fails; the retry after backoff must land.
	f.store.mu.Lock()
	f.store.failTx = 1
	f.store.mu.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, _ := f.store.GetBooking(ctx, b.BookingID)
		if got != nil && got.Status == domain.StatusExpired {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("hold was not expired by the timer")
}

func TestScenario_HoldPayConfirm(t *testing.T) {
	f := newFixture(time.Hour)
	ctx := context.Background()

	b1, err := f.holds.CreateHold(ctx, holdRequest())
	if err != nil {
		t.Fatal(err)
	}
	if b1.Status != domain.StatusPending || b1.Pricing.TotalAmount != 5310 {
		t.Fatalf("unexpected hold %+v", b1)
	}

	if _, err := f.holds.CreateHold(ctx, holdRequest()); !errors.Is(err, domain.ErrSlotConflict) {
		t.Fatalf("second hold on G1/2025-08-19/18:00-21:00 must conflict, got %v", err)
	}

	if _, err := f.rec.CreateOrder(ctx, b1.BookingID); err != nil {
		t.Fatal(err)
	}
	f.gw.state = gateway.OrderState{Status: gateway.OrderPaid}

	got, err := f.rec.Reconcile(ctx, b1.BookingID, "order123")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusConfirmed || got.Confirmation.ConfirmationCode == "" || got.Payment.PaidAt == nil {
		t.Fatalf("unexpected confirmed booking %+v", got)
	}
	code := got.Confirmation.ConfirmationCode

	again, err := f.rec.Reconcile(ctx, b1.BookingID, "order123")
	if err != nil {
		t.Fatal(err)
	}
	if again.Confirmation.ConfirmationCode != code {
		t.Error("repeat reconcile generated a second confirmation code")
	}
}
