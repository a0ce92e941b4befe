package committer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	otelx "github.com/md-rashed-zaman/workhours/libs/otel"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/availability"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/model"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/outbox"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/storage"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// ReasonExpired: the offered time was no longer available when the client confirmed.
	ReasonExpired = "expired"
	// ReasonTaken: another booking claimed a needed slot first.
	ReasonTaken = "taken"
)

// ConflictError is returned when a booking cannot be made. Tree is the freshly computed
// availability and Verdict the level the client should continue from.
type ConflictError struct {
	Reason  string
	Start   time.Time
	Verdict availability.Verdict
	Tree    availability.Tree
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("booking at %s not possible: %s (%s)", e.Start.UTC().Format(time.RFC3339), e.Reason, e.Verdict)
}

// Options lists what the client can choose from at the verdict's level.
func (e *ConflictError) Options() []string {
	return availability.Options(e.Tree, e.Start, e.Verdict)
}

type Booking struct {
	ClientID   string
	ClientName string
	Service    model.Service
	Start      time.Time
}

// Book claims every slot the service needs from b.Start, or none of them.
func (c *Committer) Book(ctx context.Context, b Booking) (model.Appointment, error) {
	ctx, span := otelx.Tracer().Start(ctx, "committer.Book")
	defer span.End()

	slots, err := availability.Covering(c.cfg, b.Start, b.Service.Duration)
	if err != nil {
		return model.Appointment{}, err
	}

	tree, err := c.Availability(ctx, b.Service)
	if err != nil {
		return model.Appointment{}, err
	}
	if v := availability.Check(tree, b.Start); v != availability.OK {
		return model.Appointment{}, &ConflictError{Reason: ReasonExpired, Start: b.Start, Verdict: v, Tree: tree}
	}

	for attempt := 1; ; attempt++ {
		appt := model.Appointment{
			ID:         uuid.NewString(),
			ClientID:   b.ClientID,
			ClientName: b.ClientName,
			ServiceID:  b.Service.ID,
			StartTime:  b.Start.UTC(),
			EndTime:    b.Start.Add(b.Service.Duration).UTC(),
		}
		evt, err := bookedEvent(appt)
		if err != nil {
			return model.Appointment{}, err
		}

		err = c.store.ReserveSlots(ctx, appt, slots, evt)
		if err == nil {
			c.logger.Info("appointment booked",
				"appointment_id", appt.ID,
				"service_id", appt.ServiceID,
				"client_id", appt.ClientID,
				"start_time", appt.StartTime.Format(time.RFC3339),
			)
			return appt, nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return model.Appointment{}, err
		}

		tree, err = c.Availability(ctx, b.Service)
		if err != nil {
			return model.Appointment{}, err
		}
		v := availability.Check(tree, b.Start)
		c.logger.Warn("booking conflict", "start_time", b.Start.UTC().Format(time.RFC3339), "verdict", v.String(), "attempt", attempt)
		// Still offered means the competing attempt rolled back; try again.
		if v != availability.OK || attempt >= c.attempts {
			span.SetAttributes(attribute.String("booking.verdict", v.String()))
			return model.Appointment{}, &ConflictError{Reason: ReasonTaken, Start: b.Start, Verdict: v, Tree: tree}
		}
	}
}

func bookedEvent(appt model.Appointment) (outbox.Event, error) {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"client_id":      appt.ClientID,
		"client_name":    appt.ClientName,
		"service_id":     appt.ServiceID,
		"start_time":     appt.StartTime.Format(time.RFC3339),
		"end_time":       appt.EndTime.Format(time.RFC3339),
	})
	if err != nil {
		return outbox.Event{}, err
	}
	return outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentBooked,
		Payload:       payload,
	}, nil
}
