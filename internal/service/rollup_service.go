package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jengzang/vehicle-status-backend/internal/database"
	"github.com/jengzang/vehicle-status-backend/internal/metrics"
	"github.com/jengzang/vehicle-status-backend/internal/models"
	"github.com/jengzang/vehicle-status-backend/internal/repository"
	"github.com/jengzang/vehicle-status-backend/internal/timeutil"
)

// RollupResult reports what a daily stats rebuild did
type RollupResult struct {
	Date     string `json:"date"`
	Deleted  int64  `json:"deleted"`
	Inserted int    `json:"inserted"`
}

// RollupService rebuilds the daily_vehicle_stats table one day at a time
type RollupService struct {
	db       *sql.DB
	segments *repository.SegmentRepository
	daily    *repository.DailyStatsRepository
	now      func() time.Time
}

// NewRollupService creates a new rollup service. A nil clock uses time.Now.
func NewRollupService(db *sql.DB, now func() time.Time) *RollupService {
	if now == nil {
		now = time.Now
	}
	return &RollupService{
		db:       db,
		segments: repository.NewSegmentRepository(db),
		daily:    repository.NewDailyStatsRepository(db),
		now:      now,
	}
}

// DefaultDate is the date a scheduled run rebuilds: yesterday in the canonical zone
func (s *RollupService) DefaultDate() string {
	return timeutil.DateString(timeutil.Yesterday(s.now()))
}

// RebuildDailyStats replaces the rollup rows of one date. Every vehicle with
// segment time inside [startOfDay, startOfDay+24h) gets one row with all four
// status columns. Open segments count up to now.
func (s *RollupService) RebuildDailyStats(ctx context.Context, date string) (*RollupResult, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		date = s.DefaultDate()
	}
	day, err := timeutil.ParseDate(date)
	if err != nil {
		return nil, validationError("invalid date %q", date)
	}

	from := day
	to := timeutil.NextDay(day)
	result := &RollupResult{Date: date}

	err = database.Transaction(ctx, s.db, func(tx *sql.Tx) error {
		daily := s.daily.WithTx(tx)

		deleted, err := daily.DeleteDate(ctx, date)
		if err != nil {
			return err
		}
		result.Deleted = deleted

		overlaps, err := s.segments.WithTx(tx).SumOverlapAllVehicles(ctx, from, to, s.now())
		if err != nil {
			return err
		}

		for _, row := range groupDailyStats(date, overlaps) {
			if err := daily.Insert(ctx, row); err != nil {
				return err
			}
			result.Inserted++
		}
		return nil
	})
	if err != nil {
		return nil, internalError(err, "failed to rebuild daily stats for %s", date)
	}

	metrics.RollupRowsWritten.Set(float64(result.Inserted))
	log.Info().
		Str("date", date).
		Int64("deleted", result.Deleted).
		Int("inserted", result.Inserted).
		Msg("Daily stats rebuilt")

	return result, nil
}

// groupDailyStats folds per-(vehicle, status) sums into one row per vehicle,
// ordered by vehicle id
func groupDailyStats(date string, overlaps []repository.VehicleStatusOverlap) []*models.DailyStat {
	rows := make(map[string]*models.DailyStat)
	for _, o := range overlaps {
		row, ok := rows[o.VehicleID]
		if !ok {
			row = &models.DailyStat{VehicleID: o.VehicleID, Date: date}
			rows[o.VehicleID] = row
		}
		row.Add(o.Status, o.Seconds)
	}

	result := make([]*models.DailyStat, 0, len(rows))
	for _, row := range rows {
		result = append(result, row)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].VehicleID < result[j].VehicleID
	})
	return result
}

// maxRebuildDays bounds one range rebuild
const maxRebuildDays = 366

// RebuildRange rebuilds every date from startDate through endDate, one
// transaction per day. A failed day stops the run; days already rebuilt stay.
func (s *RollupService) RebuildRange(ctx context.Context, startDate, endDate string) ([]*RollupResult, error) {
	start, err := timeutil.ParseDate(strings.TrimSpace(startDate))
	if err != nil {
		return nil, validationError("invalid start date %q", startDate)
	}
	end, err := timeutil.ParseDate(strings.TrimSpace(endDate))
	if err != nil {
		return nil, validationError("invalid end date %q", endDate)
	}
	if start.After(end) {
		return nil, validationError("start date %s is after end date %s", startDate, endDate)
	}

	var days []string
	for day := start; !day.After(end); day = timeutil.NextDay(day) {
		days = append(days, timeutil.DateString(day))
		if len(days) > maxRebuildDays {
			return nil, validationError("range exceeds %d days", maxRebuildDays)
		}
	}

	results := make([]*RollupResult, 0, len(days))
	for i, date := range days {
		if err := ctx.Err(); err != nil {
			return results, internalError(err, "rebuild interrupted before %s", date)
		}

		result, err := s.RebuildDailyStats(ctx, date)
		if err != nil {
			return results, err
		}
		results = append(results, result)

		log.Debug().Int("done", i+1).Int("total", len(days)).Str("date", date).Msg("Rollup progress")
	}
	return results, nil
}

// Backfill rebuilds every day after the newest rolled-up date through
// yesterday. With no rollup rows yet it starts at the day of the oldest segment.
func (s *RollupService) Backfill(ctx context.Context) ([]*RollupResult, error) {
	latest, err := s.daily.LatestDate(ctx)
	if err != nil {
		return nil, internalError(err, "failed to find the last rollup")
	}

	var start time.Time
	if latest != "" {
		day, err := timeutil.ParseDate(latest)
		if err != nil {
			return nil, internalError(err, "stored rollup date %q is invalid", latest)
		}
		start = timeutil.NextDay(day)
	} else {
		earliest, err := s.segments.EarliestStart(ctx)
		if err != nil {
			return nil, internalError(err, "failed to find the oldest segment")
		}
		if earliest == nil {
			return []*RollupResult{}, nil
		}
		start = timeutil.StartOfDay(*earliest)
	}

	yesterday := timeutil.Yesterday(s.now())
	if start.After(yesterday) {
		log.Info().Str("latest", latest).Msg("Daily stats are up to date")
		return []*RollupResult{}, nil
	}
	return s.RebuildRange(ctx, timeutil.DateString(start), timeutil.DateString(yesterday))
}
