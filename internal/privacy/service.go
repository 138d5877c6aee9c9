package privacy

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ScanPurger deletes scan history older than a cutoff.
type ScanPurger interface {
	PurgeScansBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionService enforces the scan history retention policy
type RetentionService struct {
	purger        ScanPurger
	retentionDays int
	now           func() time.Time
}

// NewRetentionService creates a retention service. retentionDays <= 0
// disables purging.
func NewRetentionService(purger ScanPurger, retentionDays int) *RetentionService {
	return &RetentionService{
		purger:        purger,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// Enabled reports whether old scans are purged.
func (rs *RetentionService) Enabled() bool {
	return rs.retentionDays > 0
}

// Cutoff is the oldest scan time kept.
func (rs *RetentionService) Cutoff() time.Time {
	return rs.now().AddDate(0, 0, -rs.retentionDays)
}

// PurgeExpired deletes scans older than the retention period.
func (rs *RetentionService) PurgeExpired(ctx context.Context) (int64, error) {
	if !rs.Enabled() {
		return 0, nil
	}

	cutoff := rs.Cutoff()
	deleted, err := rs.purger.PurgeScansBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired scans: %w", err)
	}

	slog.Info("Scan history cleanup completed", "cutoff_date", cutoff.Format(time.RFC3339), "scans_deleted", deleted)
	return deleted, nil
}

// Run purges immediately and then every interval until ctx is done.
func (rs *RetentionService) Run(ctx context.Context, interval time.Duration) {
	if !rs.Enabled() {
		slog.Info("Scan history retention disabled")
		return
	}

	slog.Info("Scheduling scan history cleanup", "retention_days", rs.retentionDays, "interval", interval.String())

	purge := func() {
		if _, err := rs.PurgeExpired(ctx); err != nil && ctx.Err() == nil {
			slog.Error("Scan history cleanup failed", "error", err)
		}
	}

	purge()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purge()
		}
	}
}

// RetentionInfo describes the data retention policy.
func (rs *RetentionService) RetentionInfo() map[string]interface{} {
	return map[string]interface{}{
		"scan_history_retention_days": rs.retentionDays,
		"retention_enabled":           rs.Enabled(),
		"impact_metrics":              "cumulative, reset only on request",
	}
}
