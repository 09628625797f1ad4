package webhooks

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const subColumns = `id, url, events, secret, active, created_at`

// PostgresStore keeps subscriptions and deliveries in Postgres. See
// migrations/002_webhooks.up.sql for the schema.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create implements Store.
func (r *PostgresStore) Create(ctx context.Context, sub *Subscription) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO webhook_subscriptions (`+subColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		sub.ID, sub.URL, sub.Events, sub.Secret, sub.Active, sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook subscription: %w", err)
	}
	return nil
}

// Get implements Store.
func (r *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	row := r.db.QueryRow(ctx, `SELECT `+subColumns+` FROM webhook_subscriptions WHERE id = $1`, id)
	var sub Subscription
	if err := row.Scan(&sub.ID, &sub.URL, &sub.Events, &sub.Secret, &sub.Active, &sub.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get webhook subscription: %w", err)
	}
	return &sub, nil
}

// Delete implements Store.
func (r *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM webhook_subscriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete webhook subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List implements Store.
func (r *PostgresStore) List(ctx context.Context) ([]*Subscription, error) {
	return r.query(ctx, `SELECT `+subColumns+` FROM webhook_subscriptions ORDER BY created_at DESC`)
}

// ListByEvent implements Store.
func (r *PostgresStore) ListByEvent(ctx context.Context, eventType string) ([]*Subscription, error) {
	return r.query(ctx, `SELECT `+subColumns+`
	          FROM webhook_subscriptions
	          WHERE active = true AND $1 = ANY(events)
	          ORDER BY created_at`, eventType)
}

func (r *PostgresStore) query(ctx context.Context, sql string, args ...any) ([]*Subscription, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list webhook subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.ID, &sub.URL, &sub.Events, &sub.Secret, &sub.Active, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook subscription: %w", err)
		}
		subs = append(subs, &sub)
	}
	return subs, rows.Err()
}

// RecordDelivery implements Store.
func (r *PostgresStore) RecordDelivery(ctx context.Context, d *Delivery) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO webhook_deliveries (subscription_id, event_id, event_type, status_code, attempt, success, error_message, delivered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.SubscriptionID, d.EventID, d.EventType, d.StatusCode, d.Attempt, d.Success, d.ErrorMessage, d.DeliveredAt,
	)
	if err != nil {
		return fmt.Errorf("record webhook delivery: %w", err)
	}
	return nil
}

// Deliveries implements Store.
func (r *PostgresStore) Deliveries(ctx context.Context, limit int) ([]*Delivery, error) {
	if limit <= 0 {
		limit = maxDeliveries
	}
	rows, err := r.db.Query(ctx,
		`SELECT subscription_id, event_id, event_type, status_code, attempt, success, error_message, delivered_at
		 FROM webhook_deliveries ORDER BY delivered_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list webhook deliveries: %w", err)
	}
	defer rows.Close()

	var out []*Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.SubscriptionID, &d.EventID, &d.EventType, &d.StatusCode,
			&d.Attempt, &d.Success, &d.ErrorMessage, &d.DeliveredAt); err != nil {
			return nil, fmt.Errorf("scan webhook delivery: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}
