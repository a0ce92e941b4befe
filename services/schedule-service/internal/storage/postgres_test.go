package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/workhours/libs/db"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/model"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/outbox"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openPostgres connects to TEST_DATABASE_URL, applies the schema and empties every
// table. Tests that need it are skipped when the variable is unset.
func openPostgres(t *testing.T) *Postgres {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE reservations, appointments, slots, services, outbox_events RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return NewPostgres(pool, outbox.NewRepository())
}

func pgService(t *testing.T, r *Postgres) model.Service {
	t.Helper()
	svc := model.Service{ID: uuid.NewString(), Name: "Haircut", Duration: 30 * time.Minute, PriceCents: 2500}
	require.NoError(t, r.CreateService(context.Background(), svc))
	return svc
}

func pgAppointment(svc model.Service, start time.Time) model.Appointment {
	return model.Appointment{
		ID:        uuid.NewString(),
		ClientID:  "client-1",
		ServiceID: svc.ID,
		StartTime: start,
		EndTime:   start.Add(svc.Duration),
	}
}

func bookedEvent() outbox.Event {
	return outbox.Event{AggregateType: "appointment", AggregateID: "a", EventType: outbox.EventAppointmentBooked, Payload: []byte(`{}`)}
}

func TestPostgresReplaceDaySlotsKeepsBooked(t *testing.T) {
	r := openPostgres(t)
	ctx := context.Background()

	res, err := r.ReplaceDaySlots(ctx, day, []time.Time{slot(9, 0), slot(9, 30), slot(10, 0)}, savedEvent())
	require.NoError(t, err)
	assert.Equal(t, DayResult{Inserted: 3}, res)

	svc := pgService(t, r)
	require.NoError(t, r.ReserveSlots(ctx, pgAppointment(svc, slot(9, 30)), []time.Time{slot(9, 30)}, bookedEvent()))

	res, err = r.ReplaceDaySlots(ctx, day, []time.Time{slot(9, 30), slot(14, 0)}, savedEvent())
	require.NoError(t, err)
	assert.Equal(t, DayResult{Deleted: 2, Inserted: 1, Skipped: 1}, res)

	open, err := r.ListOpenSlots(ctx, day.Midnight(time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{slot(14, 0)}, open)

	dates, err := r.ScheduledDates(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, []schedule.Date{day}, dates)
}

func TestPostgresReserveSlotsConflict(t *testing.T) {
	r := openPostgres(t)
	ctx := context.Background()

	_, err := r.ReplaceDaySlots(ctx, day, []time.Time{slot(9, 0), slot(9, 30)}, savedEvent())
	require.NoError(t, err)
	svc := pgService(t, r)

	require.NoError(t, r.ReserveSlots(ctx, pgAppointment(svc, slot(9, 0)), []time.Time{slot(9, 0)}, bookedEvent()))

	err = r.ReserveSlots(ctx, pgAppointment(svc, slot(9, 0)), []time.Time{slot(9, 0), slot(9, 30)}, bookedEvent())
	require.ErrorIs(t, err, ErrConflict)

	err = r.ReserveSlots(ctx, pgAppointment(svc, slot(11, 0)), []time.Time{slot(11, 0)}, bookedEvent())
	require.ErrorIs(t, err, ErrConflict, "a slot that was never offered")

	// The failed attempts rolled back, so 9:30 is still open.
	open, err := r.ListOpenSlots(ctx, day.Midnight(time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{slot(9, 30)}, open)

	appts, err := r.ListAppointments(ctx, day.Midnight(time.UTC), 10)
	require.NoError(t, err)
	assert.Len(t, appts, 1)
}

func TestPostgresDeleteSlotsNotBooked(t *testing.T) {
	r := openPostgres(t)
	ctx := context.Background()

	_, err := r.ReplaceDaySlots(ctx, day, []time.Time{slot(9, 0), slot(9, 30)}, savedEvent())
	require.NoError(t, err)
	svc := pgService(t, r)
	require.NoError(t, r.ReserveSlots(ctx, pgAppointment(svc, slot(9, 0)), []time.Time{slot(9, 0)}, bookedEvent()))

	n, err := r.DeleteSlotsNotBooked(ctx, day, savedEvent())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	dates, err := r.ScheduledDates(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, []schedule.Date{day}, dates, "the booked slot keeps the day scheduled")
}
