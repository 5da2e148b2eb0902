// Package catalog serves the read-only product catalog and the display strings
// product names and descriptions resolve to.
package catalog

import (
	"context"
	"fmt"

	"github.com/axel-fz/echostore/internal/domain"
)

// DefaultLocale is used when a request names no locale or an unsupported one.
const DefaultLocale = "en"

var supportedLocales = map[string]bool{"en": true, "fr": true}

// Catalog looks products up by id or slug. Implementations never mutate products.
type Catalog interface {
	Product(id string) (domain.Product, bool)
	ProductBySlug(slug string) (domain.Product, bool)
	Products() []domain.Product
}

// Static is an immutable in-memory catalog.
type Static struct {
	order  []string
	byID   map[string]domain.Product
	bySlug map[string]string
}

func NewStatic(products ...domain.Product) *Static {
	s := &Static{
		byID:   make(map[string]domain.Product, len(products)),
		bySlug: make(map[string]string, len(products)),
	}
	for _, p := range products {
		if _, dup := s.byID[p.ID]; !dup {
			s.order = append(s.order, p.ID)
		}
		s.byID[p.ID] = p
		if p.Slug != "" {
			s.bySlug[p.Slug] = p.ID
		}
	}
	return s
}

// Load snapshots every product of the repository.
func Load(ctx context.Context, repo *Repository) (*Static, error) {
	products, err := repo.GetAllProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return NewStatic(products...), nil
}

func (s *Static) Product(id string) (domain.Product, bool) {
	p, ok := s.byID[id]
	return p, ok
}

func (s *Static) ProductBySlug(slug string) (domain.Product, bool) {
	id, ok := s.bySlug[slug]
	if !ok {
		return domain.Product{}, false
	}
	return s.byID[id], true
}

func (s *Static) Products() []domain.Product {
	out := make([]domain.Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Messages resolves translation keys for one locale. Unknown keys resolve to
// themselves so a missing string never blocks checkout.
type Messages struct {
	Locale string
	texts  map[string]string
}

func NewMessages(locale string, texts map[string]string) *Messages {
	return &Messages{Locale: locale, texts: texts}
}

func (m *Messages) Translate(key string) string {
	if text, ok := m.texts[key]; ok && text != "" {
		return text
	}
	return key
}

// Localizer keeps the messages of every supported locale.
type Localizer struct {
	locales map[string]*Messages
}

// LoadLocalizer reads the translations of every supported locale.
func LoadLocalizer(ctx context.Context, repo *Repository) (*Localizer, error) {
	l := &Localizer{locales: make(map[string]*Messages, len(supportedLocales))}
	for locale := range supportedLocales {
		texts, err := repo.GetTranslations(ctx, locale)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s translations: %w", locale, err)
		}
		l.locales[locale] = NewMessages(locale, texts)
	}
	return l, nil
}

func NewLocalizer(messages ...*Messages) *Localizer {
	l := &Localizer{locales: make(map[string]*Messages, len(messages))}
	for _, m := range messages {
		l.locales[m.Locale] = m
	}
	return l
}

// For returns the messages of locale, falling back to DefaultLocale.
func (l *Localizer) For(locale string) *Messages {
	if m, ok := l.locales[locale]; ok {
		return m
	}
	if m, ok := l.locales[DefaultLocale]; ok {
		return m
	}
	return NewMessages(DefaultLocale, nil)
}
