package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"
)

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health buckets the job counts into waiting, processing, failed, and
// completed.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	var health HealthSummary
	for status, count := range stats {
		health.Total += count
		switch {
		case status == StatusFailed:
			health.Failed += count
		case status == StatusCompleted:
			health.Completed += count
		case IsProcessingStatus(status):
			health.Processing += count
		default:
			health.Waiting += count
		}
	}
	return health, nil
}

// CheckHealth inspects the database file, its jobs table, and SQLite's
// integrity check. Problems found after the file is opened are reported in
// DatabaseHealth.Error as well as the returned error.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path, SchemaVersion: schemaVersion}
	if s.path == "" {
		return health, errors.New("job database path is unknown")
	}

	info, err := os.Stat(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return health, nil
	case err != nil:
		return health, fmt.Errorf("stat job database: %w", err)
	case info.IsDir():
		return health, fmt.Errorf("job database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	ctx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	fail := func(op string, err error) (DatabaseHealth, error) {
		health.Error = err.Error()
		return health, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.db.PingContext(ctx); err != nil {
		return fail("ping job database", err)
	}
	health.DatabaseReadable = true

	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&health.SchemaVersion); err != nil {
		return fail("read schema version", err)
	}

	columns, err := s.jobColumnsPresent(ctx)
	if err != nil {
		return fail("table info", err)
	}
	health.TableExists = len(columns) > 0
	health.ColumnsPresent = columns
	if health.TableExists {
		for _, col := range strings.Split(jobColumns, ", ") {
			if !slices.Contains(columns, col) {
				health.MissingColumns = append(health.MissingColumns, col)
			}
		}
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs").Scan(&health.TotalJobs); err != nil {
			return fail("count jobs", err)
		}
	}

	var integrity string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		return fail("integrity check", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrity, "ok")
	return health, nil
}

// jobColumnsPresent lists the jobs table's columns; it is empty when the
// table does not exist.
func (s *Store) jobColumnsPresent(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM pragma_table_info('jobs')")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}
