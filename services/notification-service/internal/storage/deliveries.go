package storage

import (
	"context"

	"github.com/md-rashed-zaman/apptreserve/libs/db"
)

const Schema = `
CREATE TABLE IF NOT EXISTS notification_deliveries (
	id          BIGSERIAL PRIMARY KEY,
	event_id    TEXT NOT NULL,
	booking_id  TEXT NOT NULL,
	channel     TEXT NOT NULL,
	recipient   TEXT NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

type Delivery struct {
	EventID   string
	BookingID string
	Channel   string
	Recipient string
	Status    string
	Error     string
}

// Recorder keeps an audit trail of delivery attempts.
type Recorder interface {
	Record(ctx context.Context, d Delivery) error
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	return r.pool.EnsureSchema(ctx, Schema)
}

func (r *Repository) Record(ctx context.Context, d Delivery) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notification_deliveries (event_id, booking_id, channel, recipient, status, error)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, d.EventID, d.BookingID, d.Channel, d.Recipient, d.Status, d.Error)
	return err
}

// Discard is used when no database is configured.
type Discard struct{}

func (Discard) Record(context.Context, Delivery) error { return nil }
