package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jengzang/vehicle-status-backend/internal/models"
	"github.com/jengzang/vehicle-status-backend/internal/timeutil"
)

const segmentColumns = `id, vehicle_id, status, start_time, end_time, duration_seconds`

// SegmentRepository handles database operations for status segments
type SegmentRepository struct {
	db DBTX
}

// NewSegmentRepository creates a new segment repository
func NewSegmentRepository(db DBTX) *SegmentRepository {
	return &SegmentRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *SegmentRepository) WithTx(tx *sql.Tx) *SegmentRepository {
	return &SegmentRepository{db: tx}
}

// CloseOpen closes the vehicle's open segment at now. Zero rows affected is
// valid for a vehicle reporting for the first time.
func (r *SegmentRepository) CloseOpen(ctx context.Context, vehicleID string, now time.Time) (int64, error) {
	query := `
		UPDATE vehicle_status_segments
		SET end_time = ?, duration_seconds = ? - start_time
		WHERE vehicle_id = ? AND end_time IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, now.Unix(), now.Unix(), vehicleID)
	if err != nil {
		return 0, fmt.Errorf("failed to close open segment: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected > 1 {
		return affected, fmt.Errorf("closed %d open segments for vehicle %s", affected, vehicleID)
	}

	return affected, nil
}

// Open inserts a new open segment starting at start
func (r *SegmentRepository) Open(ctx context.Context, vehicleID, status string, start time.Time) (int64, error) {
	query := `INSERT INTO vehicle_status_segments (vehicle_id, status, start_time) VALUES (?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query, vehicleID, status, start.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to open segment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return id, nil
}

// GetOpen returns the vehicle's open segment, or nil
func (r *SegmentRepository) GetOpen(ctx context.Context, vehicleID string) (*models.StatusSegment, error) {
	query := `SELECT ` + segmentColumns + ` FROM vehicle_status_segments WHERE vehicle_id = ? AND end_time IS NULL`

	s, err := scanSegment(r.db.QueryRowContext(ctx, query, vehicleID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// ListInRange retrieves the segments overlapping [from, to], newest first
func (r *SegmentRepository) ListInRange(ctx context.Context, vehicleID string, from, to time.Time) ([]models.StatusSegment, error) {
	query := `SELECT ` + segmentColumns + `
		FROM vehicle_status_segments
		WHERE vehicle_id = ?
		AND start_time <= ?
		AND (end_time IS NULL OR end_time >= ?)
		ORDER BY start_time DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, vehicleID, to.Unix(), from.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	segments := []models.StatusSegment{}
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, *s)
	}

	return segments, rows.Err()
}

// ListByVehicle retrieves every segment of a vehicle in chronological order
func (r *SegmentRepository) ListByVehicle(ctx context.Context, vehicleID string) ([]models.StatusSegment, error) {
	query := `SELECT ` + segmentColumns + `
		FROM vehicle_status_segments
		WHERE vehicle_id = ?
		ORDER BY start_time, id`

	rows, err := r.db.QueryContext(ctx, query, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	segments := []models.StatusSegment{}
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, *s)
	}

	return segments, rows.Err()
}

// SumOverlapByStatus sums, per status, the seconds each qualifying segment
// overlaps [from, to]. Open segments run until now. to is truncated to whole
// seconds, so a range ending at EndOfDay counts 86399 seconds per full day.
func (r *SegmentRepository) SumOverlapByStatus(ctx context.Context, vehicleID string, from, to, now time.Time) (map[string]int64, error) {
	query := `SELECT
		status,
		SUM(MAX(0, MIN(COALESCE(end_time, ?), ?) - MAX(start_time, ?))) AS total_seconds
		FROM vehicle_status_segments
		WHERE vehicle_id = ?
		AND start_time <= ?
		AND (end_time IS NULL OR end_time >= ?)
		GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query,
		now.Unix(), to.Unix(), from.Unix(),
		vehicleID, to.Unix(), from.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query status durations: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var status string
		var seconds int64
		if err := rows.Scan(&status, &seconds); err != nil {
			return nil, fmt.Errorf("failed to scan status duration: %w", err)
		}
		totals[status] = seconds
	}

	return totals, rows.Err()
}

// VehicleStatusOverlap is the overlap of one vehicle's segments in one status with a window
type VehicleStatusOverlap struct {
	VehicleID string
	Status    string
	Seconds   int64
}

// SumOverlapAllVehicles computes per-vehicle per-status overlap with [from, to).
// Open segments are counted up to now when now falls inside the window.
func (r *SegmentRepository) SumOverlapAllVehicles(ctx context.Context, from, to, now time.Time) ([]VehicleStatusOverlap, error) {
	query := `SELECT
		vehicle_id,
		status,
		SUM(MAX(0, MIN(COALESCE(end_time, ?), ?) - MAX(start_time, ?))) AS total_seconds
		FROM vehicle_status_segments
		WHERE start_time < ?
		AND (end_time IS NULL OR end_time > ?)
		GROUP BY vehicle_id, status
		ORDER BY vehicle_id`

	rows, err := r.db.QueryContext(ctx, query,
		now.Unix(), to.Unix(), from.Unix(),
		to.Unix(), from.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily overlap: %w", err)
	}
	defer rows.Close()

	var overlaps []VehicleStatusOverlap
	for rows.Next() {
		var o VehicleStatusOverlap
		if err := rows.Scan(&o.VehicleID, &o.Status, &o.Seconds); err != nil {
			return nil, fmt.Errorf("failed to scan daily overlap: %w", err)
		}
		overlaps = append(overlaps, o)
	}

	return overlaps, rows.Err()
}

// CountOpen returns the number of open segments of a vehicle
func (r *SegmentRepository) CountOpen(ctx context.Context, vehicleID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vehicle_status_segments WHERE vehicle_id = ? AND end_time IS NULL`,
		vehicleID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count open segments: %w", err)
	}
	return count, nil
}

// DeleteByVehicle removes all segments of a vehicle
func (r *SegmentRepository) DeleteByVehicle(ctx context.Context, vehicleID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM vehicle_status_segments WHERE vehicle_id = ?`, vehicleID)
	if err != nil {
		return fmt.Errorf("failed to delete segments: %w", err)
	}
	return nil
}

func scanSegment(row rowScanner) (*models.StatusSegment, error) {
	var s models.StatusSegment
	var start int64
	var end, duration sql.NullInt64

	err := row.Scan(&s.ID, &s.VehicleID, &s.Status, &start, &end, &duration)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan segment: %w", err)
	}

	s.StartTime = timeutil.FromUnix(start)
	if end.Valid {
		t := timeutil.FromUnix(end.Int64)
		s.EndTime = &t
	}
	if duration.Valid {
		d := duration.Int64
		s.DurationSeconds = &d
	}
	return &s, nil
}

// EarliestStart returns the start of the oldest segment of any vehicle, or nil
func (r *SegmentRepository) EarliestStart(ctx context.Context) (*time.Time, error) {
	var start sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT MIN(start_time) FROM vehicle_status_segments`).Scan(&start); err != nil {
		return nil, fmt.Errorf("failed to query earliest segment: %w", err)
	}
	if !start.Valid {
		return nil, nil
	}
	t := timeutil.FromUnix(start.Int64)
	return &t, nil
}
