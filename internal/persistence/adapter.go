package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/axel-fz/echostore/internal/catalog"
	"github.com/axel-fz/echostore/internal/domain"
	"go.uber.org/zap"
)

const defaultTimeout = 2 * time.Second

// Adapter loads and saves carts through a SnapshotStore, joining stored
// identities back to the catalog on load.
type Adapter struct {
	store   SnapshotStore
	catalog catalog.Catalog
	logger  *zap.Logger
	timeout time.Duration
}

func NewAdapter(store SnapshotStore, cat catalog.Catalog, logger *zap.Logger) *Adapter {
	return &Adapter{
		store:   store,
		catalog: cat,
		logger:  logger,
		timeout: defaultTimeout,
	}
}

// Load returns the stored cart of a session. A missing, unreadable or corrupt
// snapshot yields an empty cart.
func (a *Adapter) Load(ctx context.Context, sessionID string) domain.Cart {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	data, err := a.store.Get(ctx, sessionID)
	if errors.Is(err, ErrSnapshotNotFound) {
		return domain.Cart{}
	}
	if err != nil {
		a.logger.Warn("snapshot read failed, starting with empty cart",
			zap.String("session_id", sessionID), zap.Error(err))
		return domain.Cart{}
	}

	items, err := Decode(data)
	if err != nil {
		a.logger.Warn("corrupt snapshot discarded",
			zap.String("session_id", sessionID), zap.Error(err))
		if errDelete := a.store.Delete(ctx, sessionID); errDelete != nil && !errors.Is(errDelete, ErrSnapshotNotFound) {
			a.logger.Warn("corrupt snapshot delete failed",
				zap.String("session_id", sessionID), zap.Error(errDelete))
		}
		return domain.Cart{}
	}

	cart, dropped := Hydrate(items, a.catalog)
	if dropped > 0 {
		a.logger.Info("snapshot items no longer in catalog",
			zap.String("session_id", sessionID), zap.Int("dropped", dropped))
	}
	return cart
}

// Save stores the cart of a session. Failures are logged and swallowed.
func (a *Adapter) Save(ctx context.Context, sessionID string, cart domain.Cart) {
	data, err := Encode(cart)
	if err != nil {
		a.logger.Error("snapshot encode failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := a.store.Set(ctx, sessionID, data); err != nil {
		a.logger.Warn("snapshot write failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// Delete drops the stored cart of a session, best effort.
func (a *Adapter) Delete(ctx context.Context, sessionID string) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := a.store.Delete(ctx, sessionID); err != nil && !errors.Is(err, ErrSnapshotNotFound) {
		a.logger.Warn("snapshot delete failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func Encode(cart domain.Cart) ([]byte, error) {
	data, err := json.Marshal(cart.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot failed: %w", err)
	}
	return data, nil
}

func Decode(data []byte) ([]domain.SnapshotItem, error) {
	var items []domain.SnapshotItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot failed: %w", err)
	}
	return items, nil
}

// Hydrate rebuilds a cart from stored items. Items whose product left the
// catalog or whose quantity is not positive are dropped; the count of dropped
// items is returned. Quantities are re-clamped to the current stock ceiling and
// repeated keys are merged.
func Hydrate(items []domain.SnapshotItem, cat catalog.Catalog) (domain.Cart, int) {
	var (
		cart    domain.Cart
		dropped int
	)
	for _, stored := range items {
		if stored.Quantity <= 0 {
			dropped++
			continue
		}
		product, ok := cat.Product(stored.ProductID)
		if !ok {
			dropped++
			continue
		}

		item := domain.CartItem{
			Product:       product,
			SelectedColor: stored.SelectedColor,
			SelectedSize:  stored.SelectedSize,
		}
		if i := cart.IndexOf(item.Key()); i >= 0 {
			cart.Items[i].Quantity = domain.Clamp(cart.Items[i].Quantity+stored.Quantity, product.MaxQuantity())
			continue
		}
		item.Quantity = domain.Clamp(stored.Quantity, product.MaxQuantity())
		cart.Items = append(cart.Items, item)
	}
	return cart, dropped
}
