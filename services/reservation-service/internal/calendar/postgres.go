package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/apptreserve/libs/db"
)

var Schema = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
	`CREATE TABLE IF NOT EXISTS calendar_events (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		summary TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		attendee_email TEXT NOT NULL DEFAULT '',
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK (end_time > start_time)
	)`,
	`CREATE INDEX IF NOT EXISTS calendar_events_start_idx ON calendar_events (start_time)`,
}

// Postgres keeps the calendar in a local table for deployments without Google.
type Postgres struct {
	pool *db.Pool
}

func NewPostgres(pool *db.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	return p.pool.EnsureSchema(ctx, Schema...)
}

func (p *Postgres) ListEvents(ctx context.Context, w Window) ([]Event, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id::text, summary, description, start_time, end_time
		FROM calendar_events
		WHERE start_time < $2
			AND end_time > $1
		ORDER BY start_time ASC
	`, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Summary, &e.Description, &e.Start, &e.End); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("list events: %w", rows.Err())
	}
	return events, nil
}

func (p *Postgres) CreateEvent(ctx context.Context, summary string, start, end time.Time, attendee Attendee) (string, error) {
	var id string
	err := p.pool.QueryRow(ctx, `
		INSERT INTO calendar_events (summary, description, attendee_email, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text
	`, summary, Description(attendee), attendee.Email, start, end).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return id, nil
}

func (p *Postgres) DeleteEvent(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM calendar_events WHERE id::text = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
