package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/turfbook/ground-reservations/internal/adapters/crdb"
	"github.com/turfbook/ground-reservations/internal/booking"
	"github.com/turfbook/ground-reservations/internal/config"
	"github.com/turfbook/ground-reservations/internal/domain"
	"github.com/turfbook/ground-reservations/internal/gateway"
	"github.com/turfbook/ground-reservations/internal/grounds"
	"github.com/turfbook/ground-reservations/internal/idempotency"
	"github.com/turfbook/ground-reservations/internal/observability"
)

type Handlers struct {
	cfg      *config.Config
	repo     *crdb.Repository
	holds    *booking.HoldManager
	rec      *booking.Reconciler
	resolver *grounds.Resolver
	idemp    *idempotency.Idempotency
	logger   observability.Logger
}

func NewHandlers(cfg *config.Config, repo *crdb.Repository, holds *booking.HoldManager, rec *booking.Reconciler, resolver *grounds.Resolver, idemp *idempotency.Idempotency, logger observability.Logger) *Handlers {
	return &Handlers{
		cfg:      cfg,
		repo:     repo,
		holds:    holds,
		rec:      rec,
		resolver: resolver,
		idemp:    idemp,
		logger:   logger,
	}
}

type slotPayload struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Duration  int    `json:"duration"`
}

type pricingPayload struct {
	BaseAmount  float64 `json:"base_amount"`
	Discount    float64 `json:"discount"`
	Taxes       float64 `json:"taxes"`
	TotalAmount float64 `json:"total_amount"`
}

func (h *Handlers) CreateHold(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing != nil {
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	var req struct {
		GroundRef string         `json:"ground_ref"`
		Date      string         `json:"date"`
		Slot      slotPayload    `json:"slot"`
		Pricing   pricingPayload `json:"pricing"`
		UserID    uuid.UUID      `json:"user_id"`
		Contact   struct {
			Name  string `json:"name"`
			Phone string `json:"phone"`
			Email string `json:"email"`
		} `json:"contact"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b, err := h.holds.CreateHold(r.Context(), booking.CreateHoldRequest{
		GroundRef: req.GroundRef,
		Date:      req.Date,
		Slot:      domain.TimeSlot{StartTime: req.Slot.StartTime, EndTime: req.Slot.EndTime, Duration: req.Slot.Duration},
		Pricing:   domain.Pricing(req.Pricing),
		UserID:    req.UserID,
		Contact:   domain.Contact{Name: req.Contact.Name, Phone: req.Contact.Phone, Email: req.Contact.Email},
	})
	if errors.Is(err, domain.ErrSlotConflict) || errors.Is(err, domain.ErrSerializationFailure) {
		http.Error(w, "slot already held", http.StatusConflict)
		return
	}
	if errors.Is(err, domain.ErrInvalidInput) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := map[string]interface{}{
		"booking_id": b.BookingID,
		"status":     b.Status,
		"expires_at": b.ExpiresAt.Format(time.RFC3339),
		"total":      b.Pricing.TotalAmount,
	}
	data, _ := json.Marshal(resp)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(data)

	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data})
}

func (h *Handlers) ReleaseHold(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "id")
	err := h.holds.ReleaseHold(r.Context(), bookingID)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "booking not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) CreatePaymentOrder(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "id")
	b, err := h.rec.CreateOrder(r.Context(), bookingID)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "booking not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, domain.ErrInvalidTransition) {
		http.Error(w, "booking is no longer pending", http.StatusConflict)
		return
	}
	if errors.Is(err, domain.ErrGatewayUnavailable) {
		http.Error(w, "payment gateway unavailable", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := map[string]interface{}{
		"booking_id": b.BookingID,
		"order_id":   b.Payment.GatewayOrderID,
		"session_id": b.Payment.GatewaySessionID,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *Handlers) Reconcile(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "id")

	var req struct {
		GatewayOrderID string `json:"gateway_order_id"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) // body is optional
	}

	b, err := h.rec.Reconcile(r.Context(), bookingID, req.GatewayOrderID)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "booking not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, domain.ErrGatewayUnavailable) {
		http.Error(w, "payment gateway unavailable, retry later", http.StatusServiceUnavailable)
		return
	}
	if errors.Is(err, domain.ErrInvalidInput) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeBookingView(w, r, b)
}

// PaymentWebhook treats the gateway callback as a trigger only: after the
// signature checks out, the order is re-verified through Reconcile. Returns
// 200 even when the event applies no transition, so the gateway stops
// redelivering.
func (h *Handlers) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	sig := r.Header.Get("X-Gateway-Signature")
	if !gateway.VerifyWebhookSignature(body, sig, h.cfg.GatewaySecret) {
		http.Error(w, "bad signature", http.StatusUnauthorized)
		return
	}

	var evt struct {
		OrderID   string `json:"order_id"`
		BookingID string `json:"booking_id"`
	}
	if err := json.Unmarshal(body, &evt); err != nil || evt.OrderID == "" {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	bookingID := evt.BookingID
	if bookingID == "" {
		b, err := h.repo.GetByGatewayOrder(r.Context(), evt.OrderID)
		if err != nil {
			// Unknown order: acknowledge so the gateway does not retry forever.
			h.logger.WithField("order_id", evt.OrderID).Warn("webhook for unknown order", err)
			w.WriteHeader(http.StatusOK)
			return
		}
		bookingID = b.BookingID
	}

	if _, err := h.rec.Reconcile(r.Context(), bookingID, evt.OrderID); err != nil {
		if errors.Is(err, domain.ErrGatewayUnavailable) {
			// Let the gateway redeliver; we could not verify yet.
			http.Error(w, "retry later", http.StatusServiceUnavailable)
			return
		}
		h.logger.WithField("booking_id", bookingID).Error("webhook reconcile failed", err)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "id")
	b, err := h.repo.GetBooking(r.Context(), bookingID)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "booking not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeBookingView(w, r, b)
}

func (h *Handlers) ListUserBookings(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	list, err := h.repo.ListUserBookings(r.Context(), userID, 50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]map[string]interface{}, 0, len(list))
	for i := range list {
		out = append(out, h.bookingView(r, &list[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"bookings": out})
}

func (h *Handlers) GetGround(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	view := h.resolver.Resolve(r.Context(), ref)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(groundViewJSON(view))
}

func (h *Handlers) bookingView(r *http.Request, b *domain.Booking) map[string]interface{} {
	ground := h.resolver.Resolve(r.Context(), b.GroundRef)
	view := map[string]interface{}{
		"booking_id":     b.BookingID,
		"user_id":        b.UserID,
		"ground":         groundViewJSON(ground),
		"date":           b.Date,
		"slot":           slotPayload{StartTime: b.Slot.StartTime, EndTime: b.Slot.EndTime, Duration: b.Slot.Duration},
		"pricing":        pricingPayload(b.Pricing),
		"status":         b.Status,
		"payment_status": b.Payment.Status,
		"expires_at":     b.ExpiresAt.Format(time.RFC3339),
	}
	if b.Payment.PaidAt != nil {
		view["paid_at"] = b.Payment.PaidAt.Format(time.RFC3339)
	}
	if b.Confirmation.ConfirmationCode != "" {
		view["confirmation_code"] = b.Confirmation.ConfirmationCode
	}
	return view
}

func (h *Handlers) writeBookingView(w http.ResponseWriter, r *http.Request, b *domain.Booking) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.bookingView(r, b))
}

func groundViewJSON(v domain.GroundView) map[string]interface{} {
	return map[string]interface{}{
		"ref":            v.Ref,
		"name":           v.Name,
		"address":        v.Address,
		"city":           v.CityName,
		"state":          v.State,
		"owner_name":     v.OwnerName,
		"owner_contact":  v.OwnerContact,
		"owner_email":    v.OwnerEmail,
		"price_per_hour": v.PricePerHour,
		"features":       v.Features,
		"placeholder":    v.Placeholder,
	}
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
