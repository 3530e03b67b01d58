package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool used by the store. Transactions satisfy
// it too, so the same queries run inside and outside a tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Item is a catalog row. Services carry dual price and duration tiers;
// products carry a tax rate and are priced per order by the operator.
type Item struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Kind                 string `json:"kind"`
	StandardPrice        int64  `json:"standardPrice"`
	UrgentPrice          int64  `json:"urgentPrice"`
	StandardDurationDays int    `json:"standardDurationDays"`
	UrgentDurationDays   int    `json:"urgentDurationDays"`
	TaxRateBps           int    `json:"taxRateBps"`
	Active               bool   `json:"active"`
}

// Store executes catalog queries against Postgres.
type Store struct {
	db DBTX
}

// NewStore constructs a Store.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// ListQuery filters the catalog listing.
type ListQuery struct {
	Kind   string
	Search string
	Limit  int
	Offset int
}

const itemColumns = `id, name, kind, standard_price, urgent_price,
	standard_duration_days, urgent_duration_days, tax_rate_bps, active`

// CountItems returns the number of active rows matching the filters.
func (s *Store) CountItems(ctx context.Context, q ListQuery) (int64, error) {
	const query = `
		SELECT count(*) FROM catalog_items
		WHERE active
		  AND ($1::text = '' OR kind = $1)
		  AND ($2::text = '' OR name ILIKE '%' || $2 || '%')`
	var total int64
	if err := s.db.QueryRow(ctx, query, q.Kind, q.Search).Scan(&total); err != nil {
		return 0, fmt.Errorf("count catalog items: %w", err)
	}
	return total, nil
}

// ListItems returns a page of active rows matching the filters, sorted by name.
func (s *Store) ListItems(ctx context.Context, q ListQuery) ([]Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM catalog_items
		WHERE active
		  AND ($1::text = '' OR kind = $1)
		  AND ($2::text = '' OR name ILIKE '%' || $2 || '%')
		ORDER BY name
		LIMIT $3 OFFSET $4`
	rows, err := s.db.Query(ctx, query, q.Kind, q.Search, q.Limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("list catalog items: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0, q.Limit)
	for rows.Next() {
		var it Item
		if err := scanItem(rows, &it); err != nil {
			return nil, fmt.Errorf("scan catalog item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list catalog items: %w", err)
	}
	return items, nil
}

// GetItem returns one active row by ID. pgx.ErrNoRows passes through so
// callers can map it to a not-found response.
func (s *Store) GetItem(ctx context.Context, id string) (Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM catalog_items
		WHERE id = $1 AND active`
	var it Item
	if err := scanItem(s.db.QueryRow(ctx, query, id), &it); err != nil {
		return Item{}, err
	}
	return it, nil
}

// InsertItem upserts a row keyed by ID. Used by the seeder.
func (s *Store) InsertItem(ctx context.Context, it Item) error {
	const query = `
		INSERT INTO catalog_items (
			id, name, kind, standard_price, urgent_price,
			standard_duration_days, urgent_duration_days, tax_rate_bps, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			kind = EXCLUDED.kind,
			standard_price = EXCLUDED.standard_price,
			urgent_price = EXCLUDED.urgent_price,
			standard_duration_days = EXCLUDED.standard_duration_days,
			urgent_duration_days = EXCLUDED.urgent_duration_days,
			tax_rate_bps = EXCLUDED.tax_rate_bps,
			active = EXCLUDED.active`
	_, err := s.db.Exec(ctx, query,
		it.ID, it.Name, it.Kind, it.StandardPrice, it.UrgentPrice,
		it.StandardDurationDays, it.UrgentDurationDays, it.TaxRateBps, it.Active,
	)
	if err != nil {
		return fmt.Errorf("insert catalog item: %w", err)
	}
	return nil
}

func scanItem(row pgx.Row, it *Item) error {
	return row.Scan(
		&it.ID, &it.Name, &it.Kind,
		&it.StandardPrice, &it.UrgentPrice,
		&it.StandardDurationDays, &it.UrgentDurationDays,
		&it.TaxRateBps, &it.Active,
	)
}
