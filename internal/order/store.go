package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/salusa-dev/backend-klinik/internal/ledger"
)

// DBTX is the subset of pgxpool.Pool used by the store. pgx.Tx satisfies it
// too, so order and item inserts share one transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner opens transactions. Satisfied by pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Order is a submitted order with its frozen line set.
type Order struct {
	ID                    string       `json:"id"`
	Flow                  string       `json:"flow"`
	PaymentMode           string       `json:"paymentMode"`
	Payer                 string       `json:"payer"`
	AmountPaid            ledger.Money `json:"amountPaid"`
	Notes                 string       `json:"notes,omitempty"`
	Currency              string       `json:"currency"`
	GrandTotal            ledger.Money `json:"grandTotal"`
	EstimatedDurationDays int          `json:"estimatedDurationDays"`
	CreatedAt             time.Time    `json:"createdAt"`
	Items                 []Item       `json:"items,omitempty"`
}

// Item is one persisted order line. The pricing snapshot and the computed
// line total are stored so the order renders identically forever, whatever
// happens to the catalog afterwards.
type Item struct {
	CatalogItemID string          `json:"catalogItemId"`
	Name          string          `json:"name"`
	Kind          string          `json:"kind"`
	Quantity      int             `json:"quantity"`
	Urgent        bool            `json:"urgent"`
	LineTotal     ledger.Money    `json:"lineTotal"`
	Snapshot      json.RawMessage `json:"snapshot,omitempty"`
}

// Store persists and reads orders in Postgres.
type Store struct {
	db DBTX
	tx TxBeginner
}

// NewStore constructs a Store over a pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool, tx: pool}
}

// NewStoreWith constructs a Store from explicit interfaces. Used by tests.
func NewStoreWith(db DBTX, tx TxBeginner) *Store {
	return &Store{db: db, tx: tx}
}

// CreateOrder writes the order and all its lines in one transaction.
func (s *Store) CreateOrder(ctx context.Context, o Order) error {
	tx, err := s.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin order tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const insertOrder = `
		INSERT INTO orders (
			id, flow, payment_mode, payer, amount_paid, notes,
			currency, grand_total, estimated_duration_days, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = tx.Exec(ctx, insertOrder,
		o.ID, o.Flow, o.PaymentMode, o.Payer, o.AmountPaid, o.Notes,
		o.Currency, o.GrandTotal, o.EstimatedDurationDays, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	const insertItem = `
		INSERT INTO order_items (
			order_id, catalog_item_id, name, kind, quantity, urgent, line_total, snapshot
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for _, it := range o.Items {
		snapshot := it.Snapshot
		if len(snapshot) == 0 {
			snapshot = json.RawMessage("{}")
		}
		_, err = tx.Exec(ctx, insertItem,
			o.ID, it.CatalogItemID, it.Name, it.Kind, it.Quantity, it.Urgent, it.LineTotal, snapshot,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit order tx: %w", err)
	}
	return nil
}

// CountOrders returns the total number of orders.
func (s *Store) CountOrders(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return total, nil
}

// ListOrders returns a page of orders without their lines, newest first.
func (s *Store) ListOrders(ctx context.Context, limit, offset int) ([]Order, error) {
	const query = `
		SELECT id, flow, payment_mode, payer, amount_paid, notes,
		       currency, grand_total, estimated_duration_days, created_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`
	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0, limit)
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// GetOrder returns one order with its lines. pgx.ErrNoRows passes through.
func (s *Store) GetOrder(ctx context.Context, id string) (Order, error) {
	const query = `
		SELECT id, flow, payment_mode, payer, amount_paid, notes,
		       currency, grand_total, estimated_duration_days, created_at
		FROM orders
		WHERE id = $1`
	var o Order
	if err := scanOrder(s.db.QueryRow(ctx, query, id), &o); err != nil {
		return Order{}, err
	}

	const itemsQuery = `
		SELECT catalog_item_id, name, kind, quantity, urgent, line_total, snapshot
		FROM order_items
		WHERE order_id = $1
		ORDER BY name`
	rows, err := s.db.Query(ctx, itemsQuery, id)
	if err != nil {
		return Order{}, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.CatalogItemID, &it.Name, &it.Kind, &it.Quantity, &it.Urgent, &it.LineTotal, &it.Snapshot); err != nil {
			return Order{}, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return Order{}, fmt.Errorf("list order items: %w", err)
	}
	return o, nil
}

func scanOrder(row pgx.Row, o *Order) error {
	return row.Scan(
		&o.ID, &o.Flow, &o.PaymentMode, &o.Payer, &o.AmountPaid, &o.Notes,
		&o.Currency, &o.GrandTotal, &o.EstimatedDurationDays, &o.CreatedAt,
	)
}
