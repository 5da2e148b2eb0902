// Package store holds the authoritative in-memory cart of one session.
package store

import (
	"context"
	"sync"

	"github.com/axel-fz/echostore/internal/domain"
	"github.com/axel-fz/echostore/internal/pricing"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Saver persists cart snapshots. Save must not report failures back; the
// in-memory cart stays authoritative either way.
type Saver interface {
	Save(ctx context.Context, sessionID string, cart domain.Cart)
}

type EventKind string

const (
	EventItemAdded       EventKind = "item_added"
	EventQuantityUpdated EventKind = "quantity_updated"
	EventItemRemoved     EventKind = "item_removed"
	EventCleared         EventKind = "cleared"
)

// Event is emitted after every effective mutation. Items is a private copy.
type Event struct {
	Kind   EventKind
	Items  []domain.CartItem
	Totals pricing.Totals
}

// Store serializes all cart mutations. Each effective mutation notifies
// subscribers and hands a snapshot to the write-behind persistence loop.
type Store struct {
	sessionID string
	logger    *zap.Logger

	mu   sync.Mutex
	cart domain.Cart

	// events are delivered in mutation order: seq is assigned under mu,
	// delivered advances under notifyMu.
	seq         uint64
	delivered   uint64
	notifyMu    sync.Mutex
	turn        *sync.Cond
	subMu       sync.Mutex
	subscribers map[int]func(Event)
	nextSubID   int

	saver     Saver
	pendingMu sync.Mutex
	pending   *domain.Cart
	wake      chan struct{}
	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a store seeded with initial, usually the hydrated snapshot.
func New(sessionID string, initial domain.Cart, saver Saver, logger *zap.Logger) *Store {
	s := &Store{
		sessionID:   sessionID,
		logger:      logger,
		cart:        initial.Clone(),
		subscribers: make(map[int]func(Event)),
		saver:       saver,
		wake:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
	}
	s.turn = sync.NewCond(&s.notifyMu)

	s.wg.Add(1)
	go s.persistLoop()

	return s
}

// AddItem merges quantity into the line identified by (product, color, size),
// appending a new line when none exists. The line quantity is clamped to the
// product's stock ceiling, cumulatively across calls. A non-positive quantity
// is ignored.
func (s *Store) AddItem(product domain.Product, color, size *string, quantity int) pricing.Totals {
	s.mu.Lock()
	if quantity <= 0 {
		defer s.mu.Unlock()
		return pricing.Compute(s.cart)
	}

	key := domain.ResolveKey(product.ID, color, size)
	if i := s.cart.IndexOf(key); i >= 0 {
		line := &s.cart.Items[i]
		line.Quantity = domain.Clamp(line.Quantity+quantity, line.Product.MaxQuantity())
	} else {
		s.cart.Items = append(s.cart.Items, domain.CartItem{
			Product:       product,
			SelectedColor: copyString(color),
			SelectedSize:  copyString(size),
			Quantity:      domain.Clamp(quantity, product.MaxQuantity()),
		})
	}
	return s.commit(EventItemAdded)
}

// UpdateQuantity replaces the quantity of a line, removing it when quantity is
// not positive. Unknown lines are ignored.
func (s *Store) UpdateQuantity(productID string, quantity int, color, size *string) pricing.Totals {
	s.mu.Lock()
	i := s.cart.IndexOf(domain.ResolveKey(productID, color, size))
	if i < 0 {
		defer s.mu.Unlock()
		return pricing.Compute(s.cart)
	}

	if quantity <= 0 {
		s.removeAt(i)
		return s.commit(EventItemRemoved)
	}

	line := &s.cart.Items[i]
	line.Quantity = domain.Clamp(quantity, line.Product.MaxQuantity())
	return s.commit(EventQuantityUpdated)
}

// RemoveItem drops a line if present.
func (s *Store) RemoveItem(productID string, color, size *string) pricing.Totals {
	s.mu.Lock()
	i := s.cart.IndexOf(domain.ResolveKey(productID, color, size))
	if i < 0 {
		defer s.mu.Unlock()
		return pricing.Compute(s.cart)
	}

	s.removeAt(i)
	return s.commit(EventItemRemoved)
}

// Clear empties the cart unconditionally.
func (s *Store) Clear() pricing.Totals {
	s.mu.Lock()
	s.cart = domain.Cart{}
	return s.commit(EventCleared)
}

// Items returns a copy of the cart lines in insertion order.
func (s *Store) Items() []domain.CartItem {
	return s.Cart().Items
}

// Cart returns a copy of the current cart.
func (s *Store) Cart() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

func (s *Store) Totals() pricing.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.Compute(s.cart)
}

func (s *Store) TotalItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.ItemCount(s.cart)
}

func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.Total(s.cart)
}

// Subscribe registers fn for change events and returns its cancel function.
// fn runs on the mutating goroutine and must not mutate the store itself.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

// Close flushes the last pending snapshot and stops the persistence loop.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
	})
	return nil
}

func (s *Store) removeAt(i int) {
	s.cart.Items = append(s.cart.Items[:i], s.cart.Items[i+1:]...)
}

// commit must be called with mu held; it releases mu.
func (s *Store) commit(kind EventKind) pricing.Totals {
	snapshot := s.cart.Clone()
	totals := pricing.Compute(snapshot)
	s.schedule(snapshot)
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	s.notifyMu.Lock()
	for s.delivered != seq-1 {
		s.turn.Wait()
	}
	s.notifyMu.Unlock()

	s.notify(Event{Kind: kind, Items: snapshot.Clone().Items, Totals: totals})

	s.notifyMu.Lock()
	s.delivered = seq
	s.turn.Broadcast()
	s.notifyMu.Unlock()
	return totals
}

func (s *Store) notify(event Event) {
	s.subMu.Lock()
	subs := make([]func(Event), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	for _, fn := range subs {
		fn(event)
	}
}

// schedule replaces the pending snapshot; intermediate states may be skipped.
func (s *Store) schedule(snapshot domain.Cart) {
	s.pendingMu.Lock()
	s.pending = &snapshot
	s.pendingMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Store) persistLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.wake:
			s.flush()
		case <-s.stop:
			s.flush()
			return
		}
	}
}

func (s *Store) flush() {
	s.pendingMu.Lock()
	snapshot := s.pending
	s.pending = nil
	s.pendingMu.Unlock()

	if snapshot == nil || s.saver == nil {
		return
	}
	s.saver.Save(context.Background(), s.sessionID, *snapshot)
	s.logger.Debug("cart snapshot persisted",
		zap.String("session_id", s.sessionID), zap.Int("lines", len(snapshot.Items)))
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
