package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/axel-fz/echostore/internal/cache"
	"github.com/axel-fz/echostore/internal/catalog"
	"github.com/axel-fz/echostore/internal/checkout"
	"github.com/axel-fz/echostore/internal/domain"
	"github.com/axel-fz/echostore/internal/persistence"
	"github.com/axel-fz/echostore/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	tee = domain.Product{ID: "p1", NameKey: "products.tee.name", Price: decimal.RequireFromString("29.99"), Currency: "USD", Colors: []string{"Black"}, Stock: 25}
	mug = domain.Product{ID: "p2", NameKey: "products.mug.name", Price: decimal.RequireFromString("49.50"), Currency: "USD"}
)

func ptr(s string) *string { return &s }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupRegistry(t *testing.T, opts ...Option) (*Registry, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	adapter := persistence.NewAdapter(cache.NewRedisStore(client, 0), catalog.NewStatic(tee, mug), zap.NewNop())
	newClient := func(string) *checkout.Client { return checkout.NewClient("http://127.0.0.1:0/unused") }

	r := NewRegistry(adapter, newClient, zap.NewNop(), opts...)
	t.Cleanup(func() { r.Close() })
	return r, mr
}

func TestGet_MissingSessionID(t *testing.T) {
	r, _ := setupRegistry(t)

	_, err := r.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingSessionID)
}

func TestGet_HydratesFromSnapshot(t *testing.T) {
	r, mr := setupRegistry(t)
	mr.Set("cart:s1", `[{"productId":"p1","selectedColor":"Black","quantity":2},{"productId":"retired","quantity":1}]`)

	s, err := r.Get(context.Background(), "s1")
	require.NoError(t, err)

	items := s.Store().Items()
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].Product.ID)
	assert.Equal(t, "Black", *items[0].SelectedColor)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestGet_ReturnsResidentSession(t *testing.T) {
	r, _ := setupRegistry(t)

	first, err := r.Get(context.Background(), "s1")
	require.NoError(t, err)
	second, err := r.Get(context.Background(), "s1")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, r.Len())
}

type countingPersistence struct {
	loads atomic.Int32
}

func (p *countingPersistence) Load(context.Context, string) domain.Cart {
	p.loads.Add(1)
	time.Sleep(20 * time.Millisecond)
	return domain.Cart{}
}

func (p *countingPersistence) Save(context.Context, string, domain.Cart) {}

func (p *countingPersistence) Delete(context.Context, string) {}

func TestGet_ConcurrentFirstAccessHydratesOnce(t *testing.T) {
	p := &countingPersistence{}
	r := NewRegistry(p, func(string) *checkout.Client { return checkout.NewClient("") }, zap.NewNop())
	defer r.Close()

	var wg sync.WaitGroup
	sessions := make([]*Session, 20)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := r.Get(context.Background(), "s1")
			assert.NoError(t, err)
			sessions[i] = s
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), p.loads.Load())
	for _, s := range sessions {
		assert.Same(t, sessions[0], s)
	}
}

func TestGet_CancelledContextStillHydrates(t *testing.T) {
	r, mr := setupRegistry(t)
	mr.Set("cart:s1", `[{"productId":"p2","quantity":3}]`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := r.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, s.Store().TotalItemCount())
}

func TestMutationsArePersisted(t *testing.T) {
	r, mr := setupRegistry(t)

	s, err := r.Get(context.Background(), "s1")
	require.NoError(t, err)
	s.Store().AddItem(mug, nil, nil, 2)

	require.Eventually(t, func() bool {
		v, err := mr.Get("cart:s1")
		return err == nil && v == `[{"productId":"p2","quantity":2}]`
	}, time.Second, 10*time.Millisecond)
}

func TestClear_ResidentSession(t *testing.T) {
	r, mr := setupRegistry(t)
	s, err := r.Get(context.Background(), "s1")
	require.NoError(t, err)
	s.Store().AddItem(mug, nil, nil, 2)

	var events []store.EventKind
	stop := s.Watch(func(e store.Event) { events = append(events, e.Kind) })
	defer stop()

	r.Clear(context.Background(), "s1")

	assert.Zero(t, s.Store().TotalItemCount())
	assert.Equal(t, []store.EventKind{store.EventCleared}, events)
	require.Eventually(t, func() bool {
		v, err := mr.Get("cart:s1")
		return err == nil && v == "[]"
	}, time.Second, 10*time.Millisecond)
}

func TestClear_NonResidentDeletesSnapshot(t *testing.T) {
	r, mr := setupRegistry(t)
	mr.Set("cart:s9", `[{"productId":"p2","quantity":1}]`)

	r.Clear(context.Background(), "s9")

	assert.False(t, mr.Exists("cart:s9"))
	assert.Equal(t, 0, r.Len())
}

func TestCheckout_EmptyCartIsRejected(t *testing.T) {
	r, _ := setupRegistry(t)
	s, err := r.Get(context.Background(), "s1")
	require.NoError(t, err)

	_, err = s.Checkout(context.Background(), checkout.TranslatorFunc(func(k string) string { return k }))

	assert.ErrorIs(t, err, checkout.ErrEmptyCart)
	assert.Equal(t, checkout.StateIdle, s.CheckoutState())
}

func TestCheckout_LeavesCartUntouched(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "s1", r.Header.Get(checkout.ReferenceHeader))
		w.Write([]byte(`{"url":"https://pay.example/s/1"}`))
	}))
	defer provider.Close()

	adapter := &countingPersistence{}
	r := NewRegistry(adapter, func(id string) *checkout.Client { return checkout.NewClient(provider.URL, checkout.WithReference(id)) }, zap.NewNop())
	defer r.Close()

	s, err := r.Get(context.Background(), "s1")
	require.NoError(t, err)
	s.Store().AddItem(tee, ptr("Black"), nil, 2)

	url, err := s.Checkout(context.Background(), checkout.TranslatorFunc(func(k string) string { return "Essential Tee" }))
	require.NoError(t, err)

	assert.Equal(t, "https://pay.example/s/1", url)
	assert.Equal(t, checkout.StateSucceeded, s.CheckoutState())
	assert.Equal(t, 2, s.Store().TotalItemCount())
}

func TestEvictIdle(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r, mr := setupRegistry(t, WithIdleTTL(time.Minute), withClock(clock.Now))

	s, err := r.Get(context.Background(), "s1")
	require.NoError(t, err)
	s.Store().AddItem(mug, nil, nil, 4)

	clock.Advance(30 * time.Second)
	assert.Zero(t, r.evictIdle(), "not idle long enough")

	clock.Advance(time.Minute)
	assert.Equal(t, 1, r.evictIdle())
	assert.Equal(t, 0, r.Len())

	v, err := mr.Get("cart:s1")
	require.NoError(t, err)
	assert.Equal(t, `[{"productId":"p2","quantity":4}]`, v, "eviction flushes the store")

	again, err := r.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.NotSame(t, s, again)
	assert.Equal(t, 4, again.Store().TotalItemCount())
}

func TestEvictIdle_SkipsWatchedSessions(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r, _ := setupRegistry(t, WithIdleTTL(time.Minute), withClock(clock.Now))

	s, err := r.Get(context.Background(), "s1")
	require.NoError(t, err)
	stop := s.Watch(func(store.Event) {})

	clock.Advance(time.Hour)
	assert.Zero(t, r.evictIdle())

	stop()
	stop()
	assert.Equal(t, 1, r.evictIdle())
}

func TestClose_RejectsNewSessions(t *testing.T) {
	r, mr := setupRegistry(t)
	s, err := r.Get(context.Background(), "s1")
	require.NoError(t, err)
	s.Store().AddItem(mug, nil, nil, 1)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	v, err := mr.Get("cart:s1")
	require.NoError(t, err)
	assert.Equal(t, `[{"productId":"p2","quantity":1}]`, v)

	_, err = r.Get(context.Background(), "s2")
	assert.ErrorIs(t, err, ErrRegistryClosed)
}

func TestEventHookSeesEverySession(t *testing.T) {
	var mu sync.Mutex
	seen := map[string][]store.EventKind{}
	hook := func(sessionID string, e store.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen[sessionID] = append(seen[sessionID], e.Kind)
	}
	r, _ := setupRegistry(t, WithEventHook(hook))

	a, err := r.Get(context.Background(), "a")
	require.NoError(t, err)
	b, err := r.Get(context.Background(), "b")
	require.NoError(t, err)
	a.Store().AddItem(mug, nil, nil, 1)
	b.Store().AddItem(mug, nil, nil, 1)
	b.Store().Clear()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []store.EventKind{store.EventItemAdded}, seen["a"])
	assert.Equal(t, []store.EventKind{store.EventItemAdded, store.EventCleared}, seen["b"])
}
