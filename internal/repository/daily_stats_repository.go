package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jengzang/vehicle-status-backend/internal/models"
)

// DailyStatsRepository handles the daily rollup table
type DailyStatsRepository struct {
	db DBTX
}

// NewDailyStatsRepository creates a new daily stats repository
func NewDailyStatsRepository(db DBTX) *DailyStatsRepository {
	return &DailyStatsRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *DailyStatsRepository) WithTx(tx *sql.Tx) *DailyStatsRepository {
	return &DailyStatsRepository{db: tx}
}

// ListRange retrieves a vehicle's rollup rows with fromDate <= date <= toDate, newest first
func (r *DailyStatsRepository) ListRange(ctx context.Context, vehicleID, fromDate, toDate string) ([]models.DailyStat, error) {
	query := `SELECT id, vehicle_id, date, working_seconds, waiting_seconds, maintenance_seconds, fault_seconds
		FROM daily_vehicle_stats
		WHERE vehicle_id = ?
		AND date >= ?
		AND date <= ?
		ORDER BY date DESC`

	rows, err := r.db.QueryContext(ctx, query, vehicleID, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	stats := []models.DailyStat{}
	for rows.Next() {
		var d models.DailyStat
		err := rows.Scan(&d.ID, &d.VehicleID, &d.Date,
			&d.WorkingSeconds, &d.WaitingSeconds, &d.MaintenanceSeconds, &d.FaultSeconds)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily stat: %w", err)
		}
		stats = append(stats, d)
	}

	return stats, rows.Err()
}

// DeleteDate removes every rollup row of date
func (r *DailyStatsRepository) DeleteDate(ctx context.Context, date string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM daily_vehicle_stats WHERE date = ?`, date)
	if err != nil {
		return 0, fmt.Errorf("failed to delete daily stats: %w", err)
	}
	return result.RowsAffected()
}

// Insert adds one rollup row
func (r *DailyStatsRepository) Insert(ctx context.Context, d *models.DailyStat) error {
	query := `
		INSERT INTO daily_vehicle_stats
		(vehicle_id, date, working_seconds, waiting_seconds, maintenance_seconds, fault_seconds)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		d.VehicleID, d.Date,
		d.WorkingSeconds, d.WaitingSeconds, d.MaintenanceSeconds, d.FaultSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to insert daily stat: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	d.ID = id
	return nil
}

// DeleteByVehicle removes all rollup rows of a vehicle
func (r *DailyStatsRepository) DeleteByVehicle(ctx context.Context, vehicleID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM daily_vehicle_stats WHERE vehicle_id = ?`, vehicleID)
	if err != nil {
		return fmt.Errorf("failed to delete daily stats: %w", err)
	}
	return nil
}

// LatestDate returns the newest rolled-up date, or "" when the table is empty
func (r *DailyStatsRepository) LatestDate(ctx context.Context) (string, error) {
	var date sql.NullString
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(date) FROM daily_vehicle_stats`).Scan(&date); err != nil {
		return "", fmt.Errorf("failed to query latest rollup date: %w", err)
	}
	return date.String, nil
}
