package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// Store deletes slots nobody booked once they have started.
type Store interface {
	DeleteSlotsNotBookedBefore(ctx context.Context, t time.Time) (int64, error)
}

type Worker struct {
	store    Store
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
}

type WorkerConfig struct {
	Interval time.Duration
}

func NewWorker(store Store, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	return &Worker{
		store:    store,
		logger:   logger,
		interval: cfg.Interval,
		now:      time.Now,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("slot cleanup failed", "err", err)
			}
		}
	}
}

// RunOnce deletes expired unbooked slots and returns how many went.
func (w *Worker) RunOnce(ctx context.Context) (int64, error) {
	n, err := w.store.DeleteSlotsNotBookedBefore(ctx, w.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		w.logger.Info("expired slots deleted", "count", n)
	}
	return n, nil
}
