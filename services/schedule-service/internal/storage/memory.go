package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	otelx "github.com/md-rashed-zaman/workhours/libs/otel"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/model"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/outbox"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/schedule"
)

type memSlot struct {
	date        schedule.Date
	appointment string
}

// Memory is a process-local store. One mutex makes every method a transaction.
type Memory struct {
	mu           sync.Mutex
	now          func() time.Time
	slots        map[time.Time]*memSlot
	services     map[string]model.Service
	appointments map[string]model.Appointment
	events       []outbox.Record
	published    map[int64]bool
}

func NewMemory() *Memory {
	return &Memory{
		now:          time.Now,
		slots:        make(map[time.Time]*memSlot),
		services:     make(map[string]model.Service),
		appointments: make(map[string]model.Appointment),
		published:    make(map[int64]bool),
	}
}

func (m *Memory) ListOpenSlots(_ context.Context, since time.Time) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []time.Time
	for t, s := range m.slots {
		if s.appointment == "" && !t.Before(since) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (m *Memory) ScheduledDates(_ context.Context, from schedule.Date) ([]schedule.Date, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := schedule.NewDateSet()
	for _, s := range m.slots {
		if !s.date.Before(from) {
			set.Add(s.date)
		}
	}
	return set.Sorted(), nil
}

func (m *Memory) ReplaceDaySlots(ctx context.Context, date schedule.Date, slots []time.Time, evt outbox.Event) (DayResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := DayResult{Deleted: int(m.deleteUnbooked(func(_ time.Time, s *memSlot) bool { return s.date == date }))}
	for _, t := range slots {
		key := t.UTC()
		if _, ok := m.slots[key]; ok {
			res.Skipped++
			continue
		}
		m.slots[key] = &memSlot{date: date}
		res.Inserted++
	}
	m.appendEvent(ctx, evt)
	return res, nil
}

func (m *Memory) DeleteSlotsNotBooked(ctx context.Context, date schedule.Date, evt outbox.Event) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.deleteUnbooked(func(_ time.Time, s *memSlot) bool { return s.date == date })
	m.appendEvent(ctx, evt)
	return n, nil
}

func (m *Memory) DeleteSlotsNotBookedBefore(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.deleteUnbooked(func(t time.Time, _ *memSlot) bool { return t.Before(before) }), nil
}

func (m *Memory) deleteUnbooked(match func(time.Time, *memSlot) bool) int64 {
	var n int64
	for t, s := range m.slots {
		if s.appointment == "" && match(t, s) {
			delete(m.slots, t)
			n++
		}
	}
	return n
}

func (m *Memory) ReserveSlots(ctx context.Context, appt model.Appointment, slots []time.Time, evt outbox.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.appointments[appt.ID]; ok {
		return fmt.Errorf("%w: appointment %s exists", ErrConflict, appt.ID)
	}
	if _, ok := m.services[appt.ServiceID]; !ok {
		return fmt.Errorf("%w: unknown service %s", ErrConflict, appt.ServiceID)
	}
	for _, t := range slots {
		s, ok := m.slots[t.UTC()]
		if !ok {
			return fmt.Errorf("%w: slot %s does not exist", ErrConflict, t.UTC().Format(time.RFC3339))
		}
		if s.appointment != "" {
			return fmt.Errorf("%w: slot %s is reserved", ErrConflict, t.UTC().Format(time.RFC3339))
		}
	}
	for _, t := range slots {
		m.slots[t.UTC()].appointment = appt.ID
	}
	appt.CreatedAt = m.now().UTC()
	m.appointments[appt.ID] = appt
	m.appendEvent(ctx, evt)
	return nil
}

func (m *Memory) CreateService(_ context.Context, svc model.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.services {
		if existing.Name == svc.Name {
			return fmt.Errorf("%w: service %q already exists", ErrConflict, svc.Name)
		}
	}
	if _, ok := m.services[svc.ID]; ok {
		return fmt.Errorf("%w: service %s exists", ErrConflict, svc.ID)
	}
	svc.CreatedAt = m.now().UTC()
	m.services[svc.ID] = svc
	return nil
}

func (m *Memory) GetService(_ context.Context, id string) (model.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	svc, ok := m.services[id]
	if !ok {
		return model.Service{}, ErrNotFound
	}
	return svc, nil
}

func (m *Memory) ListServices(_ context.Context) ([]model.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Service, 0, len(m.services))
	for _, svc := range m.services {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) ListAppointments(_ context.Context, since time.Time, limit int) ([]model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	var out []model.Appointment
	for _, a := range m.appointments {
		if !a.StartTime.Before(since) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) appendEvent(ctx context.Context, evt outbox.Event) {
	if evt.EventType == "" {
		return
	}
	span := otelx.CaptureSpan(ctx)
	m.events = append(m.events, outbox.Record{
		ID:            int64(len(m.events) + 1),
		EventID:       uuid.NewString(),
		AggregateType: evt.AggregateType,
		AggregateID:   evt.AggregateID,
		EventType:     evt.EventType,
		Payload:       evt.Payload,
		Traceparent:   span.Traceparent,
		Tracestate:    span.Tracestate,
		CreatedAt:     m.now().UTC(),
	})
}

// Events returns every event written so far, published or not.
func (m *Memory) Events() []outbox.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]outbox.Record, len(m.events))
	copy(out, m.events)
	return out
}

// Drain implements outbox.Source.
func (m *Memory) Drain(_ context.Context, limit int, fn func([]outbox.Record) error) error {
	m.mu.Lock()
	var batch []outbox.Record
	for _, r := range m.events {
		if len(batch) == limit {
			break
		}
		if !m.published[r.ID] {
			batch = append(batch, r)
		}
	}
	m.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if err := fn(batch); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range batch {
		m.published[r.ID] = true
	}
	return nil
}
