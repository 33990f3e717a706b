package http

import (
	"crypto/rsa"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/turfbook/ground-reservations/internal/idempotency"
	"github.com/turfbook/ground-reservations/internal/observability"
	"github.com/turfbook/ground-reservations/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter, idemp *idempotency.Idempotency) *chi.Mux {
	var pubKey *rsa.PublicKey
	if h.cfg.JWTPublicKey != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(h.cfg.JWTPublicKey))
		if err != nil {
			logger.Error("bad JWT public key, auth disabled", err)
		} else {
			pubKey = key
		}
	}

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)

	// Gateway callbacks authenticate by signature, not session token.
	r.Post("/v1/payments/webhook", h.PaymentWebhook)

	r.Group(func(r chi.Router) {
		r.Use(JWTMiddleware(pubKey))
		r.Use(RateLimitMiddleware(rl))
		r.Use(IdempotencyMiddleware(idemp))

		r.Post("/v1/holds", h.CreateHold)
		r.Delete("/v1/holds/{id}", h.ReleaseHold)
		r.Post("/v1/bookings/{id}/payment", h.CreatePaymentOrder)
		r.Post("/v1/bookings/{id}/reconcile", h.Reconcile)
		r.Get("/v1/bookings/{id}", h.GetBooking)
		r.Get("/v1/users/{id}/bookings", h.ListUserBookings)
		r.Get("/v1/grounds/{ref}", h.GetGround)
	})

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
