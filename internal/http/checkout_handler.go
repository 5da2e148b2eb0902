package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/axel-fz/echostore/internal/catalog"
	"github.com/axel-fz/echostore/internal/checkout"
	"github.com/axel-fz/echostore/internal/metrics"
	"github.com/axel-fz/echostore/internal/session"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	registry  *session.Registry
	localizer *catalog.Localizer
	metrics   *metrics.ServerMetrics
	logger    *zap.Logger
}

func NewCheckoutHandler(registry *session.Registry, localizer *catalog.Localizer, m *metrics.ServerMetrics, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		registry:  registry,
		localizer: localizer,
		metrics:   m,
		logger:    logger,
	}
}

type CheckoutRequestDTO struct {
	Locale string `json:"locale"`
}

type CheckoutResponseDTO struct {
	URL string `json:"url"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	locale := req.Locale
	if locale == "" {
		locale = localeFrom(r)
	}

	// the provider wait is bounded by the checkout client
	sess, ok := resolveSession(r.Context(), w, h.registry, h.logger)
	if !ok {
		return
	}

	url, err := sess.Checkout(r.Context(), h.localizer.For(locale))
	h.record(err)
	if err != nil {
		h.handleCheckoutError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, CheckoutResponseDTO{URL: url})
}

func (h *CheckoutHandler) handleCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *checkout.ValidationError
		svcErr     *checkout.ServiceError
		netErr     *checkout.NetworkError
	)

	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.As(err, &validation):
		respondError(w, http.StatusBadRequest, "invalid_cart", validation.Error())
	case errors.Is(err, checkout.ErrSubmissionInFlight):
		respondError(w, http.StatusConflict, "checkout_in_progress", err.Error())
	case errors.As(err, &svcErr):
		respondError(w, http.StatusBadGateway, "checkout_failed", svcErr.Message)
	case errors.As(err, &netErr):
		code := "provider_unreachable"
		if netErr.Timeout() {
			code = "timeout"
		}
		respondError(w, http.StatusGatewayTimeout, code, netErr.Error())
	default:
		h.logger.Error("checkout failed", zap.String("request_id", getRequestID(r.Context())), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (h *CheckoutHandler) record(err error) {
	if h.metrics == nil {
		return
	}
	h.metrics.CheckoutOutcomes.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	var (
		validation *checkout.ValidationError
		svcErr     *checkout.ServiceError
		netErr     *checkout.NetworkError
	)
	switch {
	case err == nil:
		return "succeeded"
	case errors.As(err, &validation):
		return "rejected"
	case errors.Is(err, checkout.ErrSubmissionInFlight):
		return "in_flight"
	case errors.As(err, &svcErr):
		return "service_error"
	case errors.As(err, &netErr):
		return "network_error"
	default:
		return "error"
	}
}
