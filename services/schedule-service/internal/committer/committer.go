// Package committer writes the operator's schedule as slot rows and turns a client's
// confirmation into an all-or-nothing slot reservation.
package committer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	otelx "github.com/md-rashed-zaman/workhours/libs/otel"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/availability"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/model"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/outbox"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/schedule"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/storage"
)

type Store interface {
	ListOpenSlots(ctx context.Context, since time.Time) ([]time.Time, error)
	ScheduledDates(ctx context.Context, from schedule.Date) ([]schedule.Date, error)
	ReplaceDaySlots(ctx context.Context, date schedule.Date, slots []time.Time, evt outbox.Event) (storage.DayResult, error)
	DeleteSlotsNotBooked(ctx context.Context, date schedule.Date, evt outbox.Event) (int64, error)
	ReserveSlots(ctx context.Context, appt model.Appointment, slots []time.Time, evt outbox.Event) error
}

const defaultAttempts = 3

type Committer struct {
	cfg      schedule.Config
	store    Store
	logger   *slog.Logger
	now      func() time.Time
	attempts int
}

func New(cfg schedule.Config, store Store, logger *slog.Logger) *Committer {
	return &Committer{cfg: cfg, store: store, logger: logger, now: time.Now, attempts: defaultAttempts}
}

// Today is the current date in the business timezone.
func (c *Committer) Today() schedule.Date {
	return schedule.DateOf(c.now().In(c.cfg.Loc()))
}

// Scheduled lists the dates from from onwards that have at least one slot.
func (c *Committer) Scheduled(ctx context.Context, from schedule.Date) ([]schedule.Date, error) {
	return c.store.ScheduledDates(ctx, from)
}

// SaveReport is keyed by ISO date.
type SaveReport struct {
	Saved   map[string]storage.DayResult `json:"saved"`
	Cleared map[string]int64             `json:"cleared"`
}

// Save replaces the slots of every date in selected with the points covered by ranges, and
// deletes the unbooked slots of every date in cleared. Each date is its own transaction; a
// failing date does not stop the others.
func (c *Committer) Save(ctx context.Context, selected, cleared []schedule.Date, ranges []schedule.PointRange) (SaveReport, error) {
	ctx, span := otelx.Tracer().Start(ctx, "committer.Save")
	defer span.End()

	report := SaveReport{Saved: make(map[string]storage.DayResult), Cleared: make(map[string]int64)}
	var errs []error

	for _, d := range selected {
		slots := c.cfg.SlotsFor(d, ranges)
		evt, err := daySavedEvent(d, len(slots), ranges)
		if err != nil {
			return report, err
		}
		res, err := c.store.ReplaceDaySlots(ctx, d, slots, evt)
		if err != nil {
			c.logger.Error("save day failed", "date", d.String(), "err", err)
			errs = append(errs, fmt.Errorf("save %s: %w", d, err))
			continue
		}
		report.Saved[d.String()] = res
	}
	for _, d := range cleared {
		evt, err := daySavedEvent(d, 0, nil)
		if err != nil {
			return report, err
		}
		n, err := c.store.DeleteSlotsNotBooked(ctx, d, evt)
		if err != nil {
			c.logger.Error("clear day failed", "date", d.String(), "err", err)
			errs = append(errs, fmt.Errorf("clear %s: %w", d, err))
			continue
		}
		report.Cleared[d.String()] = n
	}

	c.logger.Info("schedule saved", "saved_dates", len(report.Saved), "cleared_dates", len(report.Cleared), "failed", len(errs))
	return report, errors.Join(errs...)
}

func daySavedEvent(d schedule.Date, slots int, ranges []schedule.PointRange) (outbox.Event, error) {
	if ranges == nil {
		ranges = []schedule.PointRange{}
	}
	payload, err := json.Marshal(map[string]any{
		"date":      d.String(),
		"slots":     slots,
		"intervals": ranges,
	})
	if err != nil {
		return outbox.Event{}, err
	}
	return outbox.Event{
		AggregateType: "schedule_day",
		AggregateID:   d.String(),
		EventType:     outbox.EventSlotsSaved,
		Payload:       payload,
	}, nil
}

// Availability builds the navigation tree of start times for svc from the open slots that
// have not started yet.
func (c *Committer) Availability(ctx context.Context, svc model.Service) (availability.Tree, error) {
	open, err := c.store.ListOpenSlots(ctx, c.now())
	if err != nil {
		return availability.Tree{}, err
	}
	return availability.BuildTree(c.cfg, open, svc.Duration)
}
