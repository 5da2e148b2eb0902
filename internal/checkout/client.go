package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	// ReferenceHeader carries the caller's reference, echoed back by the
	// provider when it reports the payment.
	ReferenceHeader = "X-Client-Reference"
	DefaultTimeout  = 15 * time.Second

	maxResponseBytes = 1 << 20
)

type checkoutRequest struct {
	Items []LineItem `json:"items"`
}

type checkoutResponse struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

type reply struct {
	status int
	body   []byte
}

type Option func(*Client)

// WithHTTPClient sets the transport. The client is copied, so the timeout
// never leaks back into the caller's instance.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.base = hc }
}

// WithTimeout bounds the wait for the provider's answer.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithBreaker(b *Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithReference(ref string) Option {
	return func(c *Client) { c.reference = ref }
}

// Client hands a cart off to the hosted payment provider. It tracks one
// attempt at a time and never touches the cart itself.
type Client struct {
	endpoint  string
	reference string
	base      *http.Client
	timeout   time.Duration
	http      *http.Client
	breaker   *Breaker
	logger    *zap.Logger

	mu          sync.Mutex
	state       State
	redirectURL string
	lastErr     error
}

func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		timeout:  DefaultTimeout,
		logger:   zap.NewNop(),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := http.Client{}
	if c.base != nil {
		hc = *c.base
	}
	hc.Timeout = c.timeout
	c.http = &hc
	return c
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RedirectURL is the provider URL of the last successful attempt.
func (c *Client) RedirectURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.redirectURL
}

// Err is the failure of the last attempt, nil unless State is StateFailed.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Submit posts items to the provider and returns the redirect URL. Only one
// attempt may be in flight; a concurrent call gets ErrSubmissionInFlight.
func (c *Client) Submit(ctx context.Context, items []LineItem) (string, error) {
	if err := ValidateLineItems(items); err != nil {
		return "", err
	}

	c.mu.Lock()
	if !CanTransitionTo(c.state, StateSubmitting) {
		c.mu.Unlock()
		return "", ErrSubmissionInFlight
	}
	c.state = StateSubmitting
	c.redirectURL = ""
	c.lastErr = nil
	c.mu.Unlock()

	redirectURL, err := c.post(ctx, items)

	c.mu.Lock()
	if err != nil {
		c.state = StateFailed
		c.lastErr = err
	} else {
		c.state = StateSucceeded
		c.redirectURL = redirectURL
	}
	c.mu.Unlock()

	return redirectURL, err
}

func (c *Client) post(ctx context.Context, items []LineItem) (string, error) {
	body, err := json.Marshal(checkoutRequest{Items: items})
	if err != nil {
		return "", fmt.Errorf("marshal checkout request failed: %w", err)
	}

	key := uuid.NewString()
	rep, err := c.breaker.execute(func() (*reply, error) {
		return c.send(ctx, key, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.Warn("checkout rejected, provider circuit open", zap.String("idempotency_key", key))
		return "", &ServiceError{StatusCode: http.StatusServiceUnavailable, Message: msgCheckoutFailed}
	}
	if err != nil {
		c.logger.Warn("checkout request failed", zap.String("idempotency_key", key), zap.Error(err))
		return "", err
	}

	redirectURL, err := interpret(rep)
	if err != nil {
		c.logger.Warn("checkout rejected by provider",
			zap.String("idempotency_key", key), zap.Int("status", rep.status), zap.Error(err))
		return "", err
	}

	c.logger.Info("checkout session created", zap.String("idempotency_key", key), zap.Int("items", len(items)))
	return redirectURL, nil
}

// send performs one POST. Transport failures and 5xx answers are returned as
// errors so the breaker counts them.
func (c *Client) send(ctx context.Context, key string, body []byte) (*reply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build checkout request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(IdempotencyHeader, key)
	if c.reference != "" {
		req.Header.Set(ReferenceHeader, c.reference)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, networkError(err)
	}

	rep := &reply{status: resp.StatusCode, body: data}
	if resp.StatusCode >= http.StatusInternalServerError {
		_, err := interpret(rep)
		return nil, err
	}
	return rep, nil
}

func interpret(rep *reply) (string, error) {
	var parsed checkoutResponse
	decodeErr := json.Unmarshal(rep.body, &parsed)

	if rep.status < 200 || rep.status > 299 {
		message := msgCheckoutFailed
		if decodeErr == nil && parsed.Error != "" {
			message = parsed.Error
		}
		return "", &ServiceError{StatusCode: rep.status, Message: message}
	}

	if decodeErr != nil || parsed.URL == "" {
		return "", &ServiceError{StatusCode: rep.status, Message: msgNoCheckoutURL}
	}
	return parsed.URL, nil
}

func networkError(err error) *NetworkError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &NetworkError{Reason: reasonTimeout, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &NetworkError{Reason: "canceled", Err: err}
	}
	return &NetworkError{Reason: "unreachable", Err: err}
}
