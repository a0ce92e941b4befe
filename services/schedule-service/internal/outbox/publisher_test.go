package outbox_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/workhours/libs/kafkax"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/outbox"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/schedule"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/storage"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestPublishBatch(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	d := schedule.Date{Year: 2026, Month: time.October, Day: 20}
	_, err := store.ReplaceDaySlots(ctx, d, nil, outbox.Event{
		AggregateType: "schedule_day",
		AggregateID:   d.String(),
		EventType:     outbox.EventSlotsSaved,
		Payload:       []byte(`{"date":"2026-10-20"}`),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	pub := outbox.NewPublisher(store, slog.New(slog.NewTextHandler(io.Discard, nil)), outbox.PublisherConfig{})

	failing := &recordingWriter{err: errors.New("broker down")}
	if _, err := pub.PublishBatch(ctx, failing); err == nil {
		t.Fatalf("expected error from failing writer")
	}

	w := &recordingWriter{}
	n, err := pub.PublishBatch(ctx, w)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if n != 1 || len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if msg.Topic != outbox.EventSlotsSaved || string(msg.Key) != "2026-10-20" {
		t.Fatalf("unexpected message %s/%s", msg.Topic, msg.Key)
	}
	meta := kafkax.ExtractEventMeta(msg)
	if meta.EventType != outbox.EventSlotsSaved || meta.EventID == "" {
		t.Fatalf("unexpected headers %+v", meta)
	}

	n, err = pub.PublishBatch(ctx, w)
	if err != nil || n != 0 {
		t.Fatalf("expected nothing left to publish, got %d (%v)", n, err)
	}
}

func TestPublishBatchCarriesTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator()) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	store := storage.NewMemory()
	d := schedule.Date{Year: 2026, Month: time.October, Day: 21}
	if _, err := store.DeleteSlotsNotBooked(ctx, d, outbox.Event{
		AggregateType: "schedule_day",
		AggregateID:   d.String(),
		EventType:     outbox.EventSlotsSaved,
		Payload:       []byte(`{"date":"2026-10-21","slots":0}`),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if tp := store.Events()[0].Traceparent; tp == "" {
		t.Fatalf("expected traceparent on the stored event")
	}

	pub := outbox.NewPublisher(store, slog.New(slog.NewTextHandler(io.Discard, nil)), outbox.PublisherConfig{})
	w := &recordingWriter{}
	if _, err := pub.PublishBatch(context.Background(), w); err != nil {
		t.Fatalf("publish: %v", err)
	}
	got := trace.SpanContextFromContext(kafkax.ExtractTraceContext(context.Background(), w.msgs[0]))
	if got.TraceID() != traceID || got.SpanID() != spanID {
		t.Fatalf("trace context not propagated: %s/%s", got.TraceID(), got.SpanID())
	}
}
