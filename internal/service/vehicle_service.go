package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/golang/geo/r2"
	"github.com/rs/zerolog/log"

	"github.com/jengzang/vehicle-status-backend/internal/database"
	"github.com/jengzang/vehicle-status-backend/internal/models"
	"github.com/jengzang/vehicle-status-backend/internal/repository"
	"github.com/jengzang/vehicle-status-backend/internal/spatial"
)

const defaultHistoryHours = 24

// VehicleService handles reads and deletes on the vehicle registry
type VehicleService struct {
	db       *sql.DB
	vehicles *repository.VehicleRepository
	segments *repository.SegmentRepository
	history  *repository.HistoryRepository
	daily    *repository.DailyStatsRepository
	now      func() time.Time
}

// NewVehicleService creates a new vehicle service. A nil clock uses time.Now.
func NewVehicleService(db *sql.DB, now func() time.Time) *VehicleService {
	if now == nil {
		now = time.Now
	}
	return &VehicleService{
		db:       db,
		vehicles: repository.NewVehicleRepository(db),
		segments: repository.NewSegmentRepository(db),
		history:  repository.NewHistoryRepository(db),
		daily:    repository.NewDailyStatsRepository(db),
		now:      now,
	}
}

// GetAll returns every vehicle, most recently updated first
func (s *VehicleService) GetAll(ctx context.Context) ([]models.Vehicle, error) {
	vehicles, err := s.vehicles.GetAll(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list vehicles")
	}
	return vehicles, nil
}

// GetByID returns one vehicle or ErrNotFound
func (s *VehicleService) GetByID(ctx context.Context, vehicleID string) (*models.Vehicle, error) {
	vehicleID = strings.TrimSpace(vehicleID)
	if vehicleID == "" {
		return nil, validationError("vehicle_id is required")
	}

	vehicle, err := s.vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		return nil, internalError(err, "failed to get vehicle %s", vehicleID)
	}
	if vehicle == nil {
		return nil, notFoundError("vehicle %s", vehicleID)
	}
	return vehicle, nil
}

// Delete removes a vehicle together with its segments, history and daily
// stats in one transaction and returns the deleted snapshot
func (s *VehicleService) Delete(ctx context.Context, vehicleID string) (*models.Vehicle, error) {
	vehicleID = strings.TrimSpace(vehicleID)
	if vehicleID == "" {
		return nil, validationError("vehicle_id is required")
	}

	var deleted *models.Vehicle
	err := database.Transaction(ctx, s.db, func(tx *sql.Tx) error {
		vehicles := s.vehicles.WithTx(tx)

		existing, err := vehicles.GetByID(ctx, vehicleID)
		if err != nil || existing == nil {
			return err
		}

		if err := s.segments.WithTx(tx).DeleteByVehicle(ctx, vehicleID); err != nil {
			return err
		}
		if err := s.history.WithTx(tx).DeleteByVehicle(ctx, vehicleID); err != nil {
			return err
		}
		if err := s.daily.WithTx(tx).DeleteByVehicle(ctx, vehicleID); err != nil {
			return err
		}
		if _, err := vehicles.Delete(ctx, vehicleID); err != nil {
			return err
		}

		deleted = existing
		return nil
	})
	if err != nil {
		return nil, internalError(err, "failed to delete vehicle %s", vehicleID)
	}
	if deleted == nil {
		return nil, notFoundError("vehicle %s", vehicleID)
	}

	log.Info().Str("vehicle_id", vehicleID).Msg("Vehicle deleted")
	return deleted, nil
}

// History returns the reported statuses of the last hours, newest first
func (s *VehicleService) History(ctx context.Context, vehicleID string, filter models.HistoryFilter) ([]models.StatusHistoryEntry, error) {
	if filter.Hours < 0 {
		return nil, validationError("hours must be positive")
	}
	if filter.Hours == 0 {
		filter.Hours = defaultHistoryHours
	}

	if _, err := s.GetByID(ctx, vehicleID); err != nil {
		return nil, err
	}

	since := s.now().Add(-time.Duration(filter.Hours) * time.Hour)
	entries, err := s.history.ListSince(ctx, vehicleID, since)
	if err != nil {
		return nil, internalError(err, "failed to get history for vehicle %s", vehicleID)
	}
	return entries, nil
}

// Nearby returns vehicles with a known location within the radius, closest first
func (s *VehicleService) Nearby(ctx context.Context, filter models.NearbyFilter) ([]models.VehicleWithDistance, error) {
	if filter.Radius <= 0 {
		return nil, validationError("radius must be positive")
	}

	status := ""
	if strings.TrimSpace(filter.Status) != "" {
		status, _ = models.NormalizeStatus(strings.TrimSpace(filter.Status))
	}

	vehicles, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []models.Vehicle
	var points []r2.Point
	for _, v := range vehicles {
		if status != "" && v.Status != status {
			continue
		}
		if p, ok := v.Location(); ok {
			candidates = append(candidates, v)
			points = append(points, p)
		}
	}

	center := r2.Point{X: filter.X, Y: filter.Y}
	results := []models.VehicleWithDistance{}
	for _, r := range spatial.Nearest(center, filter.Radius, points) {
		results = append(results, models.VehicleWithDistance{
			Vehicle:  candidates[r.Index],
			Distance: r.Distance,
		})
	}
	return results, nil
}

// Extent returns the bounding box of every located vehicle
func (s *VehicleService) Extent(ctx context.Context) (*models.FleetExtent, error) {
	vehicles, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var points []r2.Point
	for _, v := range vehicles {
		if p, ok := v.Location(); ok {
			points = append(points, p)
		}
	}

	extent := &models.FleetExtent{Count: len(points)}
	if len(points) == 0 {
		return extent, nil
	}

	rect := spatial.Bounds(points)
	center := rect.Center()
	extent.MinX, extent.MaxX = rect.X.Lo, rect.X.Hi
	extent.MinY, extent.MaxY = rect.Y.Lo, rect.Y.Hi
	extent.CenterX, extent.CenterY = center.X, center.Y
	return extent, nil
}
