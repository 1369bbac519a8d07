package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jengzang/vehicle-status-backend/internal/models"
	"github.com/jengzang/vehicle-status-backend/internal/timeutil"
)

const vehicleColumns = `id, vehicle_id, name, status, location_x, location_y, last_updated`

// VehicleRepository handles database operations for the vehicle registry
type VehicleRepository struct {
	db DBTX
}

// NewVehicleRepository creates a new vehicle repository
func NewVehicleRepository(db DBTX) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *VehicleRepository) WithTx(tx *sql.Tx) *VehicleRepository {
	return &VehicleRepository{db: tx}
}

// GetAll retrieves all vehicles, most recently updated first
func (r *VehicleRepository) GetAll(ctx context.Context) ([]models.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles ORDER BY last_updated DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer rows.Close()

	vehicles := []models.Vehicle{}
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, *v)
	}

	return vehicles, rows.Err()
}

// GetByID retrieves a vehicle by its external id. Returns nil if not found.
func (r *VehicleRepository) GetByID(ctx context.Context, vehicleID string) (*models.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE vehicle_id = ?`

	v, err := scanVehicle(r.db.QueryRowContext(ctx, query, vehicleID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return v, nil
}

// Insert creates a new vehicle row
func (r *VehicleRepository) Insert(ctx context.Context, v *models.Vehicle) error {
	query := `
		INSERT INTO vehicles (vehicle_id, name, status, location_x, location_y, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		v.VehicleID,
		v.Name,
		v.Status,
		nullFloat(v.LocationX),
		nullFloat(v.LocationY),
		v.LastUpdated.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert vehicle: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	v.ID = id
	return nil
}

// Update overwrites name, status, location and last_updated of an existing vehicle
func (r *VehicleRepository) Update(ctx context.Context, v *models.Vehicle) error {
	query := `
		UPDATE vehicles
		SET name = ?, status = ?, location_x = ?, location_y = ?, last_updated = ?
		WHERE vehicle_id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		v.Name,
		v.Status,
		nullFloat(v.LocationX),
		nullFloat(v.LocationY),
		v.LastUpdated.Unix(),
		v.VehicleID,
	)
	if err != nil {
		return fmt.Errorf("failed to update vehicle: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected != 1 {
		return fmt.Errorf("failed to update vehicle %s: %d rows affected", v.VehicleID, affected)
	}

	return nil
}

// Delete removes the vehicle row and reports whether it existed
func (r *VehicleRepository) Delete(ctx context.Context, vehicleID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM vehicles WHERE vehicle_id = ?`, vehicleID)
	if err != nil {
		return false, fmt.Errorf("failed to delete vehicle: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

func scanVehicle(row rowScanner) (*models.Vehicle, error) {
	var v models.Vehicle
	var x, y sql.NullFloat64
	var lastUpdated int64

	err := row.Scan(&v.ID, &v.VehicleID, &v.Name, &v.Status, &x, &y, &lastUpdated)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan vehicle: %w", err)
	}

	v.LocationX = floatPtr(x)
	v.LocationY = floatPtr(y)
	v.LastUpdated = timeutil.FromUnix(lastUpdated)
	return &v, nil
}
