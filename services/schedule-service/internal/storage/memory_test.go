package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/model"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/outbox"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = schedule.Date{Year: 2026, Month: time.October, Day: 20}

func slot(hour, minute int) time.Time {
	return time.Date(2026, 10, 20, hour, minute, 0, 0, time.UTC)
}

func savedEvent() outbox.Event {
	return outbox.Event{AggregateType: "schedule_day", AggregateID: day.String(), EventType: outbox.EventSlotsSaved, Payload: []byte(`{}`)}
}

func seed(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.CreateService(ctx, model.Service{ID: "svc-1", Name: "Haircut", Duration: time.Hour}))
	_, err := m.ReplaceDaySlots(ctx, day, []time.Time{slot(9, 0), slot(9, 30), slot(10, 0)}, savedEvent())
	require.NoError(t, err)
	return m
}

func TestMemoryReplaceDaySlotsKeepsBookedSlots(t *testing.T) {
	ctx := context.Background()
	m := seed(t)

	appt := model.Appointment{ID: "appt-1", ServiceID: "svc-1", StartTime: slot(9, 0), EndTime: slot(10, 0)}
	require.NoError(t, m.ReserveSlots(ctx, appt, []time.Time{slot(9, 0), slot(9, 30)}, outbox.Event{}))

	res, err := m.ReplaceDaySlots(ctx, day, []time.Time{slot(9, 0), slot(14, 0), slot(14, 30)}, savedEvent())
	require.NoError(t, err)
	assert.Equal(t, DayResult{Deleted: 1, Inserted: 2, Skipped: 1}, res)

	open, err := m.ListOpenSlots(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{slot(14, 0), slot(14, 30)}, open)

	dates, err := m.ScheduledDates(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, []schedule.Date{day}, dates)
}

func TestMemoryReserveSlotsIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	m := seed(t)

	first := model.Appointment{ID: "appt-1", ServiceID: "svc-1", StartTime: slot(9, 30), EndTime: slot(10, 30)}
	require.NoError(t, m.ReserveSlots(ctx, first, []time.Time{slot(9, 30), slot(10, 0)}, outbox.Event{}))

	second := model.Appointment{ID: "appt-2", ServiceID: "svc-1", StartTime: slot(9, 0), EndTime: slot(10, 0)}
	err := m.ReserveSlots(ctx, second, []time.Time{slot(9, 0), slot(9, 30)}, outbox.Event{})
	require.ErrorIs(t, err, ErrConflict)

	// 09:00 must not have been claimed by the failed attempt.
	open, err := m.ListOpenSlots(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{slot(9, 0)}, open)

	appts, err := m.ListAppointments(ctx, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, "appt-1", appts[0].ID)

	missing := model.Appointment{ID: "appt-3", ServiceID: "svc-1", StartTime: slot(18, 0)}
	assert.ErrorIs(t, m.ReserveSlots(ctx, missing, []time.Time{slot(18, 0)}, outbox.Event{}), ErrConflict)
}

func TestMemoryDeleteSlotsNotBooked(t *testing.T) {
	ctx := context.Background()
	m := seed(t)
	appt := model.Appointment{ID: "appt-1", ServiceID: "svc-1", StartTime: slot(10, 0)}
	require.NoError(t, m.ReserveSlots(ctx, appt, []time.Time{slot(10, 0)}, outbox.Event{}))

	n, err := m.DeleteSlotsNotBookedBefore(ctx, slot(9, 30))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = m.DeleteSlotsNotBooked(ctx, day, savedEvent())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	open, err := m.ListOpenSlots(ctx, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, open)
	dates, err := m.ScheduledDates(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, []schedule.Date{day}, dates, "booked slot keeps the date scheduled")
}

func TestMemoryServices(t *testing.T) {
	ctx := context.Background()
	m := seed(t)

	err := m.CreateService(ctx, model.Service{ID: "svc-2", Name: "Haircut"})
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, m.CreateService(ctx, model.Service{ID: "svc-2", Name: "Beard trim", Duration: 30 * time.Minute}))

	list, err := m.ListServices(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Beard trim", list[0].Name)

	_, err = m.GetService(ctx, "nope")
	assert.True(t, IsNotFound(err))
}

func TestMemoryDrainMarksPublishedOnlyOnSuccess(t *testing.T) {
	ctx := context.Background()
	m := seed(t)
	require.Len(t, m.Events(), 1)

	err := m.Drain(ctx, 10, func([]outbox.Record) error { return errors.New("broker down") })
	require.Error(t, err)

	var got []outbox.Record
	require.NoError(t, m.Drain(ctx, 10, func(rs []outbox.Record) error { got = rs; return nil }))
	require.Len(t, got, 1)
	assert.Equal(t, outbox.EventSlotsSaved, got[0].EventType)

	called := false
	require.NoError(t, m.Drain(ctx, 10, func([]outbox.Record) error { called = true; return nil }))
	assert.False(t, called)
}

func TestIsConflict(t *testing.T) {
	assert.False(t, IsConflict(nil))
	assert.False(t, IsConflict(errors.New("boom")))
	assert.True(t, IsConflict(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.True(t, IsConflict(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsConflict(&pgconn.PgError{Code: "42P01"}))
}
