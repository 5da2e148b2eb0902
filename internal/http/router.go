package http

import (
	"net/http"
	"time"

	"github.com/axel-fz/echostore/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Events   *EventsHandler
	Products *ProductHandler
	Metrics  *metrics.ServerMetrics
	Logger   *zap.Logger

	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

const defaultRequestTimeout = 30 * time.Second

func NewRouter(cfg RouterConfig) chi.Router {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Compress(5))
			r.Get("/products", cfg.Products.List)
			r.Get("/products/{id}", cfg.Products.Get)
			r.Get("/products/slug/{slug}", cfg.Products.GetBySlug)
		})

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware)

			// long lived, outside the request timeout
			r.Get("/cart/events", cfg.Events.Stream)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(cfg.RequestTimeout))
				r.Use(middleware.Compress(5))

				r.Get("/cart", cfg.Cart.GetCart)
				r.Delete("/cart", cfg.Cart.ClearCart)
				r.Post("/cart/items", cfg.Cart.AddItem)
				r.Patch("/cart/items", cfg.Cart.UpdateQuantity)
				r.Delete("/cart/items", cfg.Cart.RemoveItem)
				r.Post("/checkout", cfg.Checkout.Checkout)
			})
		})
	})

	return r
}

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", getRequestID(r.Context())))
		})
	}
}
