package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jengzang/vehicle-status-backend/internal/database"
	"github.com/jengzang/vehicle-status-backend/internal/metrics"
	"github.com/jengzang/vehicle-status-backend/internal/models"
	"github.com/jengzang/vehicle-status-backend/internal/notify"
	"github.com/jengzang/vehicle-status-backend/internal/repository"
	"github.com/jengzang/vehicle-status-backend/internal/timeutil"
)

// placeholderNamePrefix names vehicles first seen without a name
const placeholderNamePrefix = "车辆-"

// defaultPublishTimeout bounds how long a report waits on its sinks
const defaultPublishTimeout = time.Second

// StatusService records status transitions as non-overlapping segments
type StatusService struct {
	db        *sql.DB
	vehicles  *repository.VehicleRepository
	segments  *repository.SegmentRepository
	history   *repository.HistoryRepository
	publisher notify.Publisher
	timeout   time.Duration
	strict    bool
	now       func() time.Time
}

// StatusOption configures a StatusService
type StatusOption func(*StatusService)

// WithPublisher sets the sink that receives committed snapshots
func WithPublisher(p notify.Publisher) StatusOption {
	return func(s *StatusService) { s.publisher = p }
}

// WithPublishTimeout bounds each publish call. Non-positive values keep the default.
func WithPublishTimeout(d time.Duration) StatusOption {
	return func(s *StatusService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithStrictStatus rejects status tokens outside the fixed mapping
func WithStrictStatus(strict bool) StatusOption {
	return func(s *StatusService) { s.strict = strict }
}

// WithClock replaces the wall clock
func WithClock(now func() time.Time) StatusOption {
	return func(s *StatusService) { s.now = now }
}

// NewStatusService creates a new status service
func NewStatusService(db *sql.DB, opts ...StatusOption) *StatusService {
	s := &StatusService{
		db:        db,
		vehicles:  repository.NewVehicleRepository(db),
		segments:  repository.NewSegmentRepository(db),
		history:   repository.NewHistoryRepository(db),
		publisher: notify.Nop{},
		timeout:   defaultPublishTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeStatus resolves a reported token to the status that will be stored
func (s *StatusService) NormalizeStatus(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", validationError("status is required")
	}
	status, known := models.NormalizeStatus(token)
	if !known && s.strict {
		return "", validationError("unknown status %q", token)
	}
	return status, nil
}

// ReportStatus records one status report for a vehicle.
//
// The vehicle upsert, the close of the open segment, the new open segment and
// the history entry are written in one transaction. The committed snapshot is
// then handed to the publisher; publish failures are logged and never returned.
func (s *StatusService) ReportStatus(ctx context.Context, report models.StatusReport) (*models.Vehicle, error) {
	vehicleID := strings.TrimSpace(report.VehicleID)
	if vehicleID == "" {
		metrics.StatusReportsTotal.WithLabelValues("rejected").Inc()
		return nil, validationError("vehicle_id is required")
	}
	status, err := s.NormalizeStatus(report.Status)
	if err != nil {
		metrics.StatusReportsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	start := time.Now()
	var snapshot *models.Vehicle

	err = database.Transaction(ctx, s.db, func(tx *sql.Tx) error {
		vehicles := s.vehicles.WithTx(tx)
		segments := s.segments.WithTx(tx)

		// The write lock is held from BEGIN, so reading the clock here orders
		// transition times the same way the transactions commit
		now := timeutil.In(s.now()).Truncate(time.Second)

		existing, err := vehicles.GetByID(ctx, vehicleID)
		if err != nil {
			return err
		}

		open, err := segments.GetOpen(ctx, vehicleID)
		if err != nil {
			return err
		}
		if open != nil && now.Before(open.StartTime) {
			now = open.StartTime
		}

		vehicle := resolveVehicle(existing, vehicleID, status, report, now)
		if existing == nil {
			err = vehicles.Insert(ctx, vehicle)
		} else {
			err = vehicles.Update(ctx, vehicle)
		}
		if err != nil {
			return err
		}

		if _, err := segments.CloseOpen(ctx, vehicleID, now); err != nil {
			return err
		}
		if _, err := segments.Open(ctx, vehicleID, status, now); err != nil {
			return err
		}
		if err := s.history.WithTx(tx).Append(ctx, vehicleID, status, now); err != nil {
			return err
		}

		snapshot = vehicle
		return nil
	})
	metrics.TransitionLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.StatusReportsTotal.WithLabelValues("failed").Inc()
		log.Error().Err(err).Str("vehicle_id", vehicleID).Str("status", status).Msg("Status transition rolled back")
		return nil, internalError(err, "failed to record status for vehicle %s", vehicleID)
	}

	metrics.StatusReportsTotal.WithLabelValues("success").Inc()
	metrics.StatusTransitionsTotal.WithLabelValues(status).Inc()
	log.Debug().Str("vehicle_id", vehicleID).Str("status", status).Msg("Status recorded")

	s.publish(ctx, snapshot)
	return snapshot, nil
}

func (s *StatusService) publish(ctx context.Context, vehicle *models.Vehicle) {
	published := *vehicle
	// Delivery continues even if the reporting request has gone away
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, &published); err != nil {
		metrics.PublishFailuresTotal.Inc()
		log.Warn().Err(err).Str("vehicle_id", vehicle.VehicleID).Msg("Failed to publish vehicle snapshot")
	}
}

// resolveVehicle builds the row to upsert: explicit values win, then the
// existing row's values, then defaults
func resolveVehicle(existing *models.Vehicle, vehicleID, status string, report models.StatusReport, now time.Time) *models.Vehicle {
	v := &models.Vehicle{
		VehicleID:   vehicleID,
		Status:      status,
		LastUpdated: now,
	}
	if existing != nil {
		v.ID = existing.ID
		v.Name = existing.Name
		v.LocationX = existing.LocationX
		v.LocationY = existing.LocationY
	}

	if report.Name != nil && strings.TrimSpace(*report.Name) != "" {
		v.Name = strings.TrimSpace(*report.Name)
	}
	if v.Name == "" {
		v.Name = placeholderNamePrefix + vehicleID
	}

	if report.LocationX != nil {
		x := *report.LocationX
		v.LocationX = &x
	}
	if report.LocationY != nil {
		y := *report.LocationY
		v.LocationY = &y
	}
	return v
}
