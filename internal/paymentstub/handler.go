// Package paymentstub is a development stand-in for the hosted payment
// provider: it creates payment sessions and reports completed payments.
package paymentstub

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"strings"
	"sync"

	"github.com/axel-fz/echostore/internal/checkout"
	"github.com/axel-fz/echostore/internal/poller"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Outcome decides whether a session request fails.
type Outcome interface {
	Fail() bool
}

// RandomOutcome fails a request with probability FailureRate.
type RandomOutcome struct {
	FailureRate float64
}

func (o RandomOutcome) Fail() bool {
	return rand.Float64() < o.FailureRate
}

// Publisher announces a completed payment.
type Publisher interface {
	Publish(ctx context.Context, c poller.Completion) error
}

type sessionRequest struct {
	Items []checkout.LineItem `json:"items"`
}

type sessionResponse struct {
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
}

type payment struct {
	Reference string `json:"reference"`
	Items     int    `json:"items"`
	Status    string `json:"status"`
}

type Handler struct {
	baseURL   string
	outcome   Outcome
	publisher Publisher
	logger    *zap.Logger

	mu       sync.Mutex
	payments map[string]*payment
}

func NewHandler(baseURL string, outcome Outcome, publisher Publisher, logger *zap.Logger) *Handler {
	return &Handler{
		baseURL:   strings.TrimRight(baseURL, "/"),
		outcome:   outcome,
		publisher: publisher,
		logger:    logger,
		payments:  make(map[string]*payment),
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/checkout-sessions", h.CreateSession)
	r.Get("/pay/{id}", h.GetPayment)
	r.Post("/pay/{id}/complete", h.CompletePayment)
	return r
}

// POST /checkout-sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, sessionResponse{Error: "invalid request body"})
		return
	}
	if len(req.Items) == 0 {
		respond(w, http.StatusBadRequest, sessionResponse{Error: "no items"})
		return
	}
	if h.outcome != nil && h.outcome.Fail() {
		respond(w, http.StatusInternalServerError, sessionResponse{Error: "payment provider unavailable"})
		return
	}

	id := uuid.NewString()
	h.mu.Lock()
	h.payments[id] = &payment{
		Reference: r.Header.Get(checkout.ReferenceHeader),
		Items:     len(req.Items),
		Status:    "pending",
	}
	h.mu.Unlock()

	h.logger.Info("payment session created",
		zap.String("checkout_id", id),
		zap.String("idempotency_key", r.Header.Get(checkout.IdempotencyHeader)),
		zap.Int("items", len(req.Items)))
	respond(w, http.StatusCreated, sessionResponse{URL: h.baseURL + "/pay/" + id})
}

// GET /pay/{id}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.mu.Lock()
	p, ok := h.payments[id]
	if !ok {
		h.mu.Unlock()
		respond(w, http.StatusNotFound, sessionResponse{Error: "payment not found"})
		return
	}
	view := *p
	h.mu.Unlock()

	respond(w, http.StatusOK, view)
}

// POST /pay/{id}/complete
func (h *Handler) CompletePayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.mu.Lock()
	p, ok := h.payments[id]
	if !ok {
		h.mu.Unlock()
		respond(w, http.StatusNotFound, sessionResponse{Error: "payment not found"})
		return
	}
	alreadyPaid := p.Status == "paid"
	p.Status = "paid"
	view := *p
	h.mu.Unlock()

	if alreadyPaid || view.Reference == "" || h.publisher == nil {
		respond(w, http.StatusOK, view)
		return
	}

	if err := h.publisher.Publish(r.Context(), poller.Completion{SessionID: view.Reference, CheckoutID: id}); err != nil {
		h.logger.Error("failed to publish completion", zap.String("checkout_id", id), zap.Error(err))
		h.mu.Lock()
		p.Status = "pending"
		h.mu.Unlock()
		respond(w, http.StatusBadGateway, sessionResponse{Error: "failed to publish completion"})
		return
	}
	respond(w, http.StatusOK, view)
}

func respond(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
