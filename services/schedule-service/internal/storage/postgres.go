package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/workhours/libs/db"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/model"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/outbox"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/schedule"
)

type Postgres struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewPostgres(pool *db.Pool, outboxRepo *outbox.Repository) *Postgres {
	return &Postgres{pool: pool, outbox: outboxRepo}
}

func pgDate(d schedule.Date) time.Time { return d.Midnight(time.UTC) }

func (r *Postgres) ListOpenSlots(ctx context.Context, since time.Time) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.starts_at
		FROM slots s
		WHERE s.starts_at >= $1
			AND NOT EXISTS (SELECT 1 FROM reservations r WHERE r.slot_id = s.id)
		ORDER BY s.starts_at ASC
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t.UTC())
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// ScheduledDates returns the dates from from onwards that have any slot, booked or not.
func (r *Postgres) ScheduledDates(ctx context.Context, from schedule.Date) ([]schedule.Date, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT local_date
		FROM slots
		WHERE local_date >= $1
		ORDER BY local_date ASC
	`, pgDate(from))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Date
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, schedule.DateOf(d.UTC()))
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// ReplaceDaySlots deletes the date's unbooked slots and inserts slots in one transaction.
// Slots that survived because they are booked are skipped, which makes re-saving idempotent.
func (r *Postgres) ReplaceDaySlots(ctx context.Context, date schedule.Date, slots []time.Time, evt outbox.Event) (DayResult, error) {
	var res DayResult
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		deleted, err := deleteUnbookedOn(ctx, tx, date)
		if err != nil {
			return err
		}
		res.Deleted = int(deleted)

		batch := &pgx.Batch{}
		for _, s := range slots {
			batch.Queue(`
				INSERT INTO slots (starts_at, local_date)
				VALUES ($1, $2)
				ON CONFLICT (starts_at) DO NOTHING
			`, s.UTC(), pgDate(date))
		}
		br := tx.SendBatch(ctx, batch)
		for range slots {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return err
			}
			if tag.RowsAffected() == 1 {
				res.Inserted++
			} else {
				res.Skipped++
			}
		}
		if err := br.Close(); err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
	if err != nil {
		if IsConflict(err) {
			return DayResult{}, fmt.Errorf("%w: %s: %v", ErrConflict, date, err)
		}
		return DayResult{}, err
	}
	return res, nil
}

// DeleteSlotsNotBooked removes the date's unbooked slots.
func (r *Postgres) DeleteSlotsNotBooked(ctx context.Context, date schedule.Date, evt outbox.Event) (int64, error) {
	var deleted int64
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		n, err := deleteUnbookedOn(ctx, tx, date)
		if err != nil {
			return err
		}
		deleted = n
		return r.outbox.Insert(ctx, tx, evt)
	})
	if err != nil && IsConflict(err) {
		return 0, fmt.Errorf("%w: %s: %v", ErrConflict, date, err)
	}
	return deleted, err
}

func deleteUnbookedOn(ctx context.Context, tx pgx.Tx, date schedule.Date) (int64, error) {
	tag, err := tx.Exec(ctx, `
		DELETE FROM slots s
		WHERE s.local_date = $1
			AND NOT EXISTS (SELECT 1 FROM reservations r WHERE r.slot_id = s.id)
	`, pgDate(date))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteSlotsNotBookedBefore removes unbooked slots that start before t.
func (r *Postgres) DeleteSlotsNotBookedBefore(ctx context.Context, t time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM slots s
		WHERE s.starts_at < $1
			AND NOT EXISTS (SELECT 1 FROM reservations r WHERE r.slot_id = s.id)
	`, t)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ReserveSlots creates appt and claims every slot for it, or nothing. A slot that is missing
// or already reserved yields ErrConflict.
func (r *Postgres) ReserveSlots(ctx context.Context, appt model.Appointment, slots []time.Time, evt outbox.Event) error {
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO appointments (id, client_id, client_name, service_id, start_time, end_time)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, appt.ID, appt.ClientID, appt.ClientName, appt.ServiceID, appt.StartTime, appt.EndTime)
		if err != nil {
			return err
		}

		for _, s := range slots {
			tag, err := tx.Exec(ctx, `
				INSERT INTO reservations (slot_id, appointment_id)
				SELECT id, $2 FROM slots WHERE starts_at = $1
			`, s.UTC(), appt.ID)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("%w: slot %s does not exist", ErrConflict, s.UTC().Format(time.RFC3339))
			}
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
	if err != nil && IsConflict(err) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func (r *Postgres) CreateService(ctx context.Context, svc model.Service) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO services (id, name, duration_minutes, price_cents, description)
		VALUES ($1, $2, $3, $4, $5)
	`, svc.ID, svc.Name, svc.DurationMinutes(), svc.PriceCents, svc.Description)
	if IsConflict(err) {
		return fmt.Errorf("%w: service %q already exists", ErrConflict, svc.Name)
	}
	return err
}

func (r *Postgres) GetService(ctx context.Context, id string) (model.Service, error) {
	svc, err := scanService(r.pool.QueryRow(ctx, `
		SELECT id::text, name, duration_minutes, price_cents, description, created_at
		FROM services
		WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Service{}, ErrNotFound
	}
	return svc, err
}

func (r *Postgres) ListServices(ctx context.Context) ([]model.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name, duration_minutes, price_cents, description, created_at
		FROM services
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func scanService(row pgx.Row) (model.Service, error) {
	var svc model.Service
	var minutes int
	if err := row.Scan(&svc.ID, &svc.Name, &minutes, &svc.PriceCents, &svc.Description, &svc.CreatedAt); err != nil {
		return model.Service{}, err
	}
	svc.Duration = time.Duration(minutes) * time.Minute
	return svc, nil
}

func (r *Postgres) ListAppointments(ctx context.Context, since time.Time, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, client_id, client_name, service_id::text, start_time, end_time, created_at
		FROM appointments
		WHERE start_time >= $1
		ORDER BY start_time ASC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		var appt model.Appointment
		if err := rows.Scan(
			&appt.ID,
			&appt.ClientID,
			&appt.ClientName,
			&appt.ServiceID,
			&appt.StartTime,
			&appt.EndTime,
			&appt.CreatedAt,
		); err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}
