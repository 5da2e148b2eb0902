// Package session keeps one cart store and checkout client per visitor session.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/axel-fz/echostore/internal/checkout"
	"github.com/axel-fz/echostore/internal/domain"
	"github.com/axel-fz/echostore/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultIdleTTL is how long an untouched session stays resident.
	DefaultIdleTTL = 30 * time.Minute

	// DefaultCleanupInterval is how often idle sessions are evicted.
	DefaultCleanupInterval = time.Minute
)

var (
	ErrMissingSessionID = errors.New("session id is required")
	ErrRegistryClosed   = errors.New("session registry closed")
)

// Persistence is the snapshot side of a session: the store saves through it,
// the registry hydrates and deletes through it.
type Persistence interface {
	store.Saver
	Load(ctx context.Context, sessionID string) domain.Cart
	Delete(ctx context.Context, sessionID string)
}

type Session struct {
	id       string
	store    *store.Store
	client   *checkout.Client
	lastSeen atomic.Int64
	watchers atomic.Int32
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Store() *store.Store {
	return s.store
}

// Checkout builds line items from the current cart and hands them to the
// provider. The cart is left untouched.
func (s *Session) Checkout(ctx context.Context, translator checkout.Translator) (string, error) {
	items, err := checkout.BuildLineItems(s.store.Cart(), translator)
	if err != nil {
		return "", err
	}
	return s.client.Submit(ctx, items)
}

func (s *Session) CheckoutState() checkout.State {
	return s.client.State()
}

// Watch subscribes fn to cart events. A watched session is never evicted.
func (s *Session) Watch(fn func(store.Event)) (stop func()) {
	s.watchers.Add(1)
	unsubscribe := s.store.Subscribe(fn)

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			s.watchers.Add(-1)
		})
	}
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastSeen.Load()))
}

type Option func(*Registry)

func WithIdleTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.idleTTL = ttl }
}

func WithCleanupInterval(d time.Duration) Option {
	return func(r *Registry) { r.cleanupInterval = d }
}

// WithEventHook subscribes fn to the events of every session store.
func WithEventHook(fn func(sessionID string, e store.Event)) Option {
	return func(r *Registry) { r.hooks = append(r.hooks, fn) }
}

func withClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// Registry owns every resident session. Sessions are hydrated lazily from
// persistence on first access and evicted after staying idle.
type Registry struct {
	persistence Persistence
	newClient   func(sessionID string) *checkout.Client
	logger      *zap.Logger

	idleTTL         time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
	hooks           []func(sessionID string, e store.Event)

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
	sfg      singleflight.Group

	stopCleanup chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
}

func NewRegistry(persistence Persistence, newClient func(sessionID string) *checkout.Client, logger *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		persistence:     persistence,
		newClient:       newClient,
		logger:          logger,
		idleTTL:         DefaultIdleTTL,
		cleanupInterval: DefaultCleanupInterval,
		now:             time.Now,
		sessions:        make(map[string]*Session),
		stopCleanup:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.wg.Add(1)
	go r.cleanupLoop()

	return r
}

// Get returns the resident session or hydrates it from persistence.
// Concurrent first requests for one session hydrate once.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}

	if s, ok := r.lookup(sessionID); ok {
		return s, nil
	}

	v, err, _ := r.sfg.Do(sessionID, func() (interface{}, error) {
		if s, ok := r.lookup(sessionID); ok {
			return s, nil
		}

		// hydration outlives a cancelled first caller
		cart := r.persistence.Load(context.WithoutCancel(ctx), sessionID)
		s := &Session{
			id:     sessionID,
			store:  store.New(sessionID, cart, r.persistence, r.logger),
			client: r.newClient(sessionID),
		}
		s.touch(r.now())
		for _, hook := range r.hooks {
			s.store.Subscribe(func(e store.Event) { hook(sessionID, e) })
		}

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			s.store.Close()
			return nil, ErrRegistryClosed
		}
		r.sessions[sessionID] = s
		r.mu.Unlock()

		r.logger.Debug("session hydrated",
			zap.String("session_id", sessionID), zap.Int("lines", len(cart.Items)))
		return s, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Session), nil
}

// Clear empties the cart of a session. A non-resident session only has its
// stored snapshot deleted.
func (r *Registry) Clear(ctx context.Context, sessionID string) {
	if s, ok := r.lookup(sessionID); ok {
		s.store.Clear()
		return
	}
	r.persistence.Delete(ctx, sessionID)
}

// Len reports the number of resident sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close flushes every resident store and stops the eviction loop.
func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		close(r.stopCleanup)
		r.wg.Wait()

		r.mu.Lock()
		r.closed = true
		sessions := r.sessions
		r.sessions = make(map[string]*Session)
		r.mu.Unlock()

		for _, s := range sessions {
			s.store.Close()
		}
		r.logger.Info("session registry closed", zap.Int("flushed", len(sessions)))
	})
	return nil
}

func (r *Registry) lookup(sessionID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	if ok {
		s.touch(r.now())
	}
	return s, ok
}

func (r *Registry) cleanupLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle()
		case <-r.stopCleanup:
			return
		}
	}
}

// evictIdle drops sessions idle longer than the TTL that are neither watched
// nor mid-checkout. Their stores are flushed on the way out.
func (r *Registry) evictIdle() int {
	now := r.now()

	r.mu.Lock()
	var evicted []*Session
	for id, s := range r.sessions {
		if s.idleSince(now) < r.idleTTL || s.watchers.Load() > 0 || s.client.State() == checkout.StateSubmitting {
			continue
		}
		delete(r.sessions, id)
		evicted = append(evicted, s)
	}
	r.mu.Unlock()

	for _, s := range evicted {
		s.store.Close()
	}
	if len(evicted) > 0 {
		r.logger.Debug("idle sessions evicted", zap.Int("count", len(evicted)))
	}
	return len(evicted)
}
