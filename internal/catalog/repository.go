package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/axel-fz/echostore/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// one connection keeps ":memory:" databases alive across queries
	db.SetMaxOpenConns(1)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *Repository) GetAllProducts(ctx context.Context) ([]domain.Product, error) {
	query := `
		SELECT id, name_key, description_key, price, currency, image, category_key, slug, stock
		FROM products
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	if err := r.attachAttributes(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetTranslations returns every message of a locale keyed by translation key.
func (r *Repository) GetTranslations(ctx context.Context, locale string) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, text FROM translations WHERE locale = ?`, locale)
	if err != nil {
		return nil, fmt.Errorf("failed to query translations: %w", err)
	}
	defer rows.Close()

	messages := make(map[string]string)
	for rows.Next() {
		var key, text string
		if err := rows.Scan(&key, &text); err != nil {
			return nil, fmt.Errorf("failed to scan translation: %w", err)
		}
		messages[key] = text
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return messages, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (domain.Product, error) {
	var (
		p     domain.Product
		price string
	)
	err := row.Scan(
		&p.ID,
		&p.NameKey,
		&p.DescriptionKey,
		&price,
		&p.Currency,
		&p.Image,
		&p.CategoryKey,
		&p.Slug,
		&p.Stock,
	)
	if err != nil {
		return p, fmt.Errorf("failed to scan product: %w", err)
	}

	p.Price, err = decimal.NewFromString(price)
	if err != nil {
		return p, fmt.Errorf("invalid price %q for product %s: %w", price, p.ID, err)
	}
	p.Colors = []string{}
	return p, nil
}

// attachAttributes fills images, colors and sizes, preserving their stored order.
func (r *Repository) attachAttributes(ctx context.Context, products []domain.Product) error {
	index := make(map[string]int, len(products))
	for i, p := range products {
		index[p.ID] = i
	}

	images, err := r.queryOrdered(ctx, `SELECT product_id, url FROM product_images ORDER BY product_id, position`)
	if err != nil {
		return err
	}
	colors, err := r.queryOrdered(ctx, `SELECT product_id, color FROM product_colors ORDER BY product_id, position`)
	if err != nil {
		return err
	}
	sizes, err := r.queryOrdered(ctx, `SELECT product_id, size FROM product_sizes ORDER BY product_id, position`)
	if err != nil {
		return err
	}

	for id, i := range index {
		products[i].Images = images[id]
		if c, ok := colors[id]; ok {
			products[i].Colors = c
		}
		products[i].Sizes = sizes[id]
	}
	return nil
}

func (r *Repository) queryOrdered(ctx context.Context, query string) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query product attributes: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var id, value string
		if err := rows.Scan(&id, &value); err != nil {
			return nil, fmt.Errorf("failed to scan product attribute: %w", err)
		}
		out[id] = append(out[id], value)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}
