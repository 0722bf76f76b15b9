package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"bisub/internal/logging"
	"bisub/internal/queue"
)

// heartbeats stamps jobs while a worker holds them and rolls back jobs whose
// stamp went stale, which means their worker died mid-stage.
type heartbeats struct {
	store    *queue.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

func newHeartbeats(store *queue.Store, logger *slog.Logger, interval, timeout time.Duration) *heartbeats {
	return &heartbeats{
		store:    store,
		logger:   logging.NewComponentLogger(logger, "workflow-heartbeat"),
		interval: interval,
		timeout:  timeout,
	}
}

// reclaimStale returns expired in-progress jobs to their resume status.
func (h *heartbeats) reclaimStale(ctx context.Context, logger *slog.Logger) error {
	if h.timeout <= 0 {
		return nil
	}
	n, err := h.store.ReclaimStaleProcessing(ctx, time.Now().Add(-h.timeout))
	if err != nil || n == 0 {
		return err
	}
	logger.Info("reclaimed stale jobs",
		logging.Int64("count", n),
		logging.String(logging.FieldEventType, "heartbeat_reclaim"),
	)
	return nil
}

// keepAlive stamps jobID every interval until the returned stop is called.
// stop blocks until the stamping goroutine has exited.
func (h *heartbeats) keepAlive(ctx context.Context, jobID int64) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if h.interval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.beat(ctx, jobID)
		}()
	}
	return func() {
		cancel()
		wg.Wait()
	}
}

func (h *heartbeats) beat(ctx context.Context, jobID int64) {
	logger := logging.WithContext(ctx, h.logger)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		err := h.store.UpdateHeartbeat(ctx, jobID)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			logger.Debug("heartbeat update cancelled")
		default:
			logger.Warn("heartbeat update failed", logging.Error(err))
		}
	}
}
