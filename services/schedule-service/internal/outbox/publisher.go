package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/workhours/libs/db"
	"github.com/md-rashed-zaman/workhours/libs/kafkax"
	otelx "github.com/md-rashed-zaman/workhours/libs/otel"
	"github.com/segmentio/kafka-go"
)

// Source hands unpublished records to fn and marks them published only if fn succeeds.
type Source interface {
	Drain(ctx context.Context, limit int, fn func([]Record) error) error
}

// Writer is the part of *kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// PostgresSource locks a batch with FOR UPDATE SKIP LOCKED so several publishers can run.
type PostgresSource struct {
	pool *db.Pool
	repo *Repository
}

func NewPostgresSource(pool *db.Pool, repo *Repository) *PostgresSource {
	return &PostgresSource{pool: pool, repo: repo}
}

func (s *PostgresSource) Drain(ctx context.Context, limit int, fn func([]Record) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	records, err := s.repo.FetchUnpublished(ctx, tx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return tx.Commit(ctx)
	}
	if err := fn(records); err != nil {
		return err
	}

	ids := make([]int64, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	if err := s.repo.MarkPublished(ctx, tx, ids); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type Publisher struct {
	source    Source
	logger    *slog.Logger
	brokers   []string
	pollEvery time.Duration
	batchSize int
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
}

func NewPublisher(source Source, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		source:    source,
		logger:    logger,
		brokers:   kafkax.SplitBrokers(cfg.Brokers),
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(p.brokers...),
		Balancer: &kafka.Hash{},
	}
	defer writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PublishBatch(ctx, writer); err != nil {
				p.logger.Error("outbox publish failed", "err", err)
			}
		}
	}
}

// PublishBatch writes one batch of pending events and returns how many were sent.
func (p *Publisher) PublishBatch(ctx context.Context, w Writer) (int, error) {
	sent := 0
	err := p.source.Drain(ctx, p.batchSize, func(records []Record) error {
		msgs := make([]kafka.Message, 0, len(records))
		for _, r := range records {
			msgCtx := otelx.StoredSpan{Traceparent: r.Traceparent, Tracestate: r.Tracestate}.Resume(ctx)
			meta := kafkax.EventMeta{EventID: r.EventID, EventType: r.EventType}
			msgs = append(msgs, kafka.Message{
				Topic:   r.EventType,
				Key:     []byte(r.AggregateID),
				Value:   r.Payload,
				Headers: kafkax.InjectTraceHeaders(msgCtx, meta.Headers()),
			})
		}
		if err := w.WriteMessages(ctx, msgs...); err != nil {
			return err
		}
		sent = len(msgs)
		return nil
	})
	return sent, err
}
