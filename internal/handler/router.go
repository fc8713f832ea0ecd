package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/efreitasn/stockhold/internal/domain"
	"github.com/efreitasn/stockhold/internal/service"
	"github.com/go-chi/chi/v5"
)

// healthResponse is the JSON response for GET /health.
type healthResponse struct {
	Status        string      `json:"status"`
	Service       string      `json:"service"`
	Timestamp     string      `json:"timestamp"`
	UptimeSeconds float64     `json:"uptime_seconds"`
	Stats         healthStats `json:"stats"`
}

type healthStats struct {
	Products     int                     `json:"products"`
	Reservations healthReservationCounts `json:"reservations"`
}

type healthReservationCounts struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Confirmed int `json:"confirmed"`
	Expired   int `json:"expired"`
	Released  int `json:"released"`
}

// NewRouter creates a chi router with all routes registered, request logging,
// and Content-Type validation middleware.
func NewRouter(
	productSvc *service.ProductService,
	reservationSvc *service.ReservationService,
	webhookSvc *service.WebhookService,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()
	started := time.Now()

	// Global middleware.
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "not_found", "Route not found")
	})

	productH := NewProductHandler(productSvc)
	reservationH := NewReservationHandler(reservationSvc)
	webhookH := NewWebhookHandler(webhookSvc)

	// Health checks.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := reservationSvc.Stats()
		WriteJSON(w, http.StatusOK, healthResponse{
			Status:        "healthy",
			Service:       "stockhold",
			Timestamp:     formatTimestamp(time.Now()),
			UptimeSeconds: time.Since(started).Seconds(),
			Stats: healthStats{
				Products: stats.Products,
				Reservations: healthReservationCounts{
					Total:     stats.Reservations,
					Active:    stats.ByStatus[domain.ReservationStatusActive],
					Confirmed: stats.ByStatus[domain.ReservationStatusConfirmed],
					Expired:   stats.ByStatus[domain.ReservationStatusExpired],
					Released:  stats.ByStatus[domain.ReservationStatusReleased],
				},
			},
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", productH.List)
		r.Get("/products/search", productH.Search)
		r.Get("/products/{product_id}", productH.Get)
		r.Get("/products/{product_id}/availability", productH.Availability)

		r.Post("/reservations", reservationH.Create)
		r.Get("/reservations", reservationH.List)
		r.Get("/reservations/{reservation_id}", reservationH.Get)
		r.Post("/reservations/{reservation_id}/confirm", reservationH.Confirm)
		r.Delete("/reservations/{reservation_id}", reservationH.Release)
	})

	// Webhook routes.
	r.Post("/webhooks", webhookH.Upsert)
	r.Get("/webhooks", webhookH.List)
	r.Delete("/webhooks/{webhook_id}", webhookH.Delete)

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests. If the Content-Type header doesn't start with
// "application/json", it returns 400 Bad Request before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
