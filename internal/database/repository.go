package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/ecoscan/internal/history"
)

// ErrScanNotFound is returned when no scan has the requested id.
var ErrScanNotFound = errors.New("scan not found")

// Repository handles database operations
type Repository struct {
	db  *DB
	now func() time.Time
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// SaveScan stores a scan and folds its decision into the impact metrics in
// one transaction.
func (r *Repository) SaveScan(ctx context.Context, scan history.ScanHistory, region string) (history.ImpactMetrics, error) {
	if err := scan.Validate(); err != nil {
		return history.ImpactMetrics{}, err
	}

	args, err := scanArgs(scan, region)
	if err != nil {
		return history.ImpactMetrics{}, err
	}

	insert, err := r.db.GetPreparedStatement(stmtInsertScan)
	if err != nil {
		return history.ImpactMetrics{}, err
	}
	getImpact, err := r.db.GetPreparedStatement(stmtGetImpact)
	if err != nil {
		return history.ImpactMetrics{}, err
	}
	updateImpact, err := r.db.GetPreparedStatement(stmtUpdateImpact)
	if err != nil {
		return history.ImpactMetrics{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return history.ImpactMetrics{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.StmtContext(ctx, insert).ExecContext(ctx, args...); err != nil {
		return history.ImpactMetrics{}, fmt.Errorf("failed to insert scan: %w", err)
	}

	metrics, err := readImpact(tx.StmtContext(ctx, getImpact).QueryRowContext(ctx))
	if err != nil {
		return history.ImpactMetrics{}, err
	}
	metrics.Record(scan.Decision, scan.EcoScore)

	if _, err := tx.StmtContext(ctx, updateImpact).ExecContext(ctx,
		metrics.CO2Saved, metrics.PlasticSaved, metrics.TotalScans, metrics.GoodDecisions, r.now().UTC(),
	); err != nil {
		return history.ImpactMetrics{}, fmt.Errorf("failed to update impact metrics: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return history.ImpactMetrics{}, fmt.Errorf("failed to commit scan: %w", err)
	}

	return metrics, nil
}

// GetScan returns one scan by id.
func (r *Repository) GetScan(ctx context.Context, id string) (StoredScan, error) {
	stmt, err := r.db.GetPreparedStatement(stmtGetScan)
	if err != nil {
		return StoredScan{}, err
	}

	scan, err := scanRow(stmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return StoredScan{}, ErrScanNotFound
	}
	if err != nil {
		return StoredScan{}, fmt.Errorf("failed to get scan: %w", err)
	}
	return scan, nil
}

// ListScans returns the scans matching q. The decision filter runs in SQL;
// search and ordering follow history.Query.
func (r *Repository) ListScans(ctx context.Context, q history.Query) ([]history.ScanHistory, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if q.Decision != "" {
		stmt, stmtErr := r.db.GetPreparedStatement(stmtListScansByDecision)
		if stmtErr != nil {
			return nil, stmtErr
		}
		rows, err = stmt.QueryContext(ctx, string(q.Decision))
	} else {
		stmt, stmtErr := r.db.GetPreparedStatement(stmtListScans)
		if stmtErr != nil {
			return nil, stmtErr
		}
		rows, err = stmt.QueryContext(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}

	stored, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read scans: %w", err)
	}

	scans := make([]history.ScanHistory, len(stored))
	for i, s := range stored {
		scans[i] = s.ScanHistory
	}
	return q.Apply(scans), nil
}

// DeleteScan removes one scan. Impact metrics are cumulative and are not
// reduced.
func (r *Repository) DeleteScan(ctx context.Context, id string) error {
	stmt, err := r.db.GetPreparedStatement(stmtDeleteScan)
	if err != nil {
		return err
	}

	result, err := stmt.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete scan: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrScanNotFound
	}
	return nil
}

// ResetHistory deletes every scan and zeroes the impact metrics.
func (r *Repository) ResetHistory(ctx context.Context) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM scan_history`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete scans: %w", err)
	}
	deleted, _ := result.RowsAffected()

	if _, err := tx.ExecContext(ctx, `UPDATE impact_metrics
		SET co2_saved = 0, plastic_saved = 0, total_scans = 0, good_decisions = 0, updated_at = ?
		WHERE id = 1`, r.now().UTC()); err != nil {
		return 0, fmt.Errorf("failed to reset impact metrics: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit reset: %w", err)
	}
	return deleted, nil
}

// GetImpact returns the accumulated impact metrics.
func (r *Repository) GetImpact(ctx context.Context) (history.ImpactMetrics, error) {
	stmt, err := r.db.GetPreparedStatement(stmtGetImpact)
	if err != nil {
		return history.ImpactMetrics{}, err
	}
	return readImpact(stmt.QueryRowContext(ctx))
}

// PurgeScansBefore deletes scans taken before cutoff and returns how many
// were removed.
func (r *Repository) PurgeScansBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM scan_history WHERE scan_date < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to purge scans: %w", err)
	}
	deleted, _ := result.RowsAffected()
	return deleted, nil
}

func readImpact(row *sql.Row) (history.ImpactMetrics, error) {
	var m history.ImpactMetrics
	if err := row.Scan(&m.CO2Saved, &m.PlasticSaved, &m.TotalScans, &m.GoodDecisions); err != nil {
		return history.ImpactMetrics{}, fmt.Errorf("failed to read impact metrics: %w", err)
	}
	return m, nil
}
