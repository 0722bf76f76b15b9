package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"bisub/internal/logging"
	"bisub/internal/queue"
)

// Purger removes terminal jobs older than the retention window on a cron
// schedule.
type Purger struct {
	store     *queue.Store
	logger    *slog.Logger
	retention time.Duration
	schedule  string
	now       func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// NewPurger builds a purger. A non-positive retentionDays disables purging.
func NewPurger(store *queue.Store, logger *slog.Logger, retentionDays int, schedule string) *Purger {
	return &Purger{
		store:     store,
		logger:    logging.NewComponentLogger(logger, "workflow-purge"),
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		schedule:  strings.TrimSpace(schedule),
		now:       time.Now,
	}
}

// Start registers the purge job and starts the scheduler.
func (p *Purger) Start() error {
	if p == nil || p.retention <= 0 || p.schedule == "" {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(p.schedule, func() {
		if _, err := p.PurgeOnce(context.Background()); err != nil {
			p.logger.Warn("purge failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "purge_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}
	}); err != nil {
		return fmt.Errorf("parse purge schedule %q: %w", p.schedule, err)
	}
	c.Start()
	p.cron = c
	return nil
}

// Stop halts the scheduler and waits for a running purge to finish.
func (p *Purger) Stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// PurgeOnce deletes completed and failed jobs last updated before the
// retention window.
func (p *Purger) PurgeOnce(ctx context.Context) (int64, error) {
	if p.retention <= 0 {
		return 0, nil
	}
	cutoff := p.now().Add(-p.retention)
	removed, err := p.store.PurgeTerminal(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		p.logger.Info("purged expired jobs",
			logging.Int64("count", removed),
			logging.String("cutoff", cutoff.UTC().Format(time.RFC3339)),
			logging.String(logging.FieldEventType, "jobs_purged"),
		)
	}
	return removed, nil
}
