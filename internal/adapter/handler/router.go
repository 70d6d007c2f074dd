package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rl1809/storefront-checkout/internal/metrics"
)

func NewRouter(h *HTTPHandler, m *metrics.ServerMetrics, metricsHandler http.Handler, logger *zap.Logger) chi.Router {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	if m != nil {
		r.Use(instrument(m))
	}

	r.Get("/health", h.HealthCheck)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/payment-methods", h.PaymentMethods)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Post("/items", h.AddItem)
			r.Delete("/items/{itemID}", h.RemoveItem)
		})

		r.Route("/checkout/sessions", func(r chi.Router) {
			r.Post("/", h.StartSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Delete("/", h.AbandonSession)
				r.Put("/user-data", h.UpdateUserData)
				r.Patch("/user-data", h.SetUserField)
				r.Put("/shipping-address", h.UpdateShippingAddress)
				r.Patch("/shipping-address", h.SetShippingField)
				r.Put("/payment", h.SelectPayment)
				r.Post("/next", h.Next)
				r.Post("/back", h.Back)
			})
		})
	})
	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// instrument records request counts and latency per route pattern.
func instrument(m *metrics.ServerMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
			m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
		})
	}
}
