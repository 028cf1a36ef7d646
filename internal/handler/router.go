package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/slot-booking/internal/metrics"
	"github.com/Shivanand-hulikatti/slot-booking/internal/ratelimit"
	"github.com/Shivanand-hulikatti/slot-booking/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Deps are the collaborators the router serves.
type Deps struct {
	Events       *service.EventService
	Reservations *service.ReservationService
	Logger       zerolog.Logger
	Metrics      *metrics.Metrics
	// Gatherer backs GET /metrics; nil leaves the route unmounted.
	Gatherer    prometheus.Gatherer
	Limiter     ratelimit.Limiter
	CORSOrigins []string
	Ping        Pinger
}

// NewRouter builds the HTTP API.
func NewRouter(d Deps) http.Handler {
	events := NewEventHandler(d.Events)
	bookings := NewBookingHandler(d.Reservations)
	throttle := RateLimit(d.Limiter, d.Metrics)

	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(d.Logger, d.Metrics))
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(d.CORSOrigins))

	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	r.Get("/health", HealthCheck(d.Ping))
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/events", func(r chi.Router) {
		r.Post("/", events.CreateEvent)
		r.Get("/", events.ListEvents)
		r.Get("/{id}", events.GetEvent)
		r.Get("/{id}/slots", events.ListSlots)
	})

	r.Route("/slots", func(r chi.Router) {
		r.Get("/{id}/availability", bookings.Availability)
		r.Get("/{id}/audit", bookings.Audit)
	})

	r.Route("/bookings", func(r chi.Router) {
		r.With(throttle).Post("/", bookings.CreateBooking)
		r.Get("/{token}", bookings.GetBooking)
		r.With(throttle).Put("/{token}", bookings.Rebook)
		r.With(throttle).Delete("/{token}", bookings.CancelBooking)
	})

	return r
}
