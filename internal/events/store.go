package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool used by the store.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists domain events in Postgres.
type Store struct {
	db DBTX
}

// NewStore constructs a Store.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// InsertDomainEvent appends an event row and returns the stored record.
func (s *Store) InsertDomainEvent(ctx context.Context, topic, aggregateID string, payload []byte) (Event, error) {
	const query = `
		INSERT INTO domain_events (id, topic, aggregate_id, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, topic, aggregate_id, payload, occurred_at`
	var ev Event
	err := s.db.QueryRow(ctx, query, uuid.NewString(), topic, aggregateID, payload).
		Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt)
	if err != nil {
		return Event{}, fmt.Errorf("insert domain event: %w", err)
	}
	return ev, nil
}

// ListByAggregate returns events for one aggregate, oldest first.
func (s *Store) ListByAggregate(ctx context.Context, aggregateID string) ([]Event, error) {
	const query = `
		SELECT id, topic, aggregate_id, payload, occurred_at
		FROM domain_events
		WHERE aggregate_id = $1
		ORDER BY occurred_at`
	rows, err := s.db.Query(ctx, query, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("list domain events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan domain event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list domain events: %w", err)
	}
	return out, nil
}
