package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jengzang/vehicle-status-backend/internal/models"
	"github.com/jengzang/vehicle-status-backend/internal/timeutil"
)

// HistoryRepository handles the append-only status audit log
type HistoryRepository struct {
	db DBTX
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db DBTX) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *HistoryRepository) WithTx(tx *sql.Tx) *HistoryRepository {
	return &HistoryRepository{db: tx}
}

// Append records a reported status
func (r *HistoryRepository) Append(ctx context.Context, vehicleID, status string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO vehicle_status_history (vehicle_id, status, timestamp) VALUES (?, ?, ?)`,
		vehicleID, status, at.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}

// ListSince retrieves a vehicle's history entries at or after since, newest first
func (r *HistoryRepository) ListSince(ctx context.Context, vehicleID string, since time.Time) ([]models.StatusHistoryEntry, error) {
	query := `SELECT id, vehicle_id, status, timestamp
		FROM vehicle_status_history
		WHERE vehicle_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, vehicleID, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	entries := []models.StatusHistoryEntry{}
	for rows.Next() {
		var e models.StatusHistoryEntry
		var ts int64
		if err := rows.Scan(&e.ID, &e.VehicleID, &e.Status, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		e.Timestamp = timeutil.FromUnix(ts)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Count returns the number of history entries of a vehicle
func (r *HistoryRepository) Count(ctx context.Context, vehicleID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vehicle_status_history WHERE vehicle_id = ?`, vehicleID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count status history: %w", err)
	}
	return count, nil
}

// DeleteByVehicle removes all history entries of a vehicle
func (r *HistoryRepository) DeleteByVehicle(ctx context.Context, vehicleID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM vehicle_status_history WHERE vehicle_id = ?`, vehicleID)
	if err != nil {
		return fmt.Errorf("failed to delete status history: %w", err)
	}
	return nil
}
