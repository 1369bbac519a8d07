package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/jengzang/vehicle-status-backend/internal/models"
	"github.com/jengzang/vehicle-status-backend/internal/repository"
	"github.com/jengzang/vehicle-status-backend/internal/stats"
	"github.com/jengzang/vehicle-status-backend/internal/timeutil"
)

// StatsService computes duration analytics over status segments (live tier)
// and serves the precomputed daily rollup (cached tier)
type StatsService struct {
	segments *repository.SegmentRepository
	daily    *repository.DailyStatsRepository
	now      func() time.Time
}

// NewStatsService creates a new stats service. A nil clock uses time.Now.
func NewStatsService(db *sql.DB, now func() time.Time) *StatsService {
	if now == nil {
		now = time.Now
	}
	return &StatsService{
		segments: repository.NewSegmentRepository(db),
		daily:    repository.NewDailyStatsRepository(db),
		now:      now,
	}
}

// DateRange is a validated query range aligned to canonical day boundaries
type DateRange struct {
	StartDate string
	EndDate   string
	From      time.Time // StartOfDay(StartDate)
	To        time.Time // EndOfDay(EndDate)
}

// ResolveRange parses and validates a date range. Empty dates default to the
// last 7 days through today.
func (s *StatsService) ResolveRange(startDate, endDate string) (DateRange, error) {
	defaultFrom, defaultTo := timeutil.DefaultRange(s.now())

	startDate = strings.TrimSpace(startDate)
	if startDate == "" {
		startDate = timeutil.DateString(defaultFrom)
	}
	endDate = strings.TrimSpace(endDate)
	if endDate == "" {
		endDate = timeutil.DateString(defaultTo)
	}

	from, err := timeutil.StartOfDayString(startDate)
	if err != nil {
		return DateRange{}, validationError("invalid start_date %q", startDate)
	}
	to, err := timeutil.EndOfDayString(endDate)
	if err != nil {
		return DateRange{}, validationError("invalid end_date %q", endDate)
	}
	if from.After(to) {
		return DateRange{}, validationError("start_date %s is after end_date %s", startDate, endDate)
	}

	return DateRange{StartDate: startDate, EndDate: endDate, From: from, To: to}, nil
}

func checkRange(vehicleID string, from, to time.Time) error {
	if strings.TrimSpace(vehicleID) == "" {
		return validationError("vehicle_id is required")
	}
	if from.After(to) {
		return validationError("range start is after range end")
	}
	return nil
}

// GetDurationStats sums, per status, the seconds each segment overlaps
// [from, to]. Open segments run until now. Every canonical status is present.
func (s *StatsService) GetDurationStats(ctx context.Context, vehicleID string, from, to time.Time) (models.DurationStats, error) {
	if err := checkRange(vehicleID, from, to); err != nil {
		return nil, err
	}

	totals, err := s.segments.SumOverlapByStatus(ctx, vehicleID, from, to, s.now())
	if err != nil {
		return nil, internalError(err, "failed to compute duration stats for vehicle %s", vehicleID)
	}

	result := models.NewDurationStats()
	for status, seconds := range totals {
		result[status] += seconds
	}
	return result, nil
}

// GetSegments returns the segments overlapping [from, to], newest first.
// Open segments carry their duration up to now.
func (s *StatsService) GetSegments(ctx context.Context, vehicleID string, from, to time.Time) ([]models.StatusSegment, error) {
	if err := checkRange(vehicleID, from, to); err != nil {
		return nil, err
	}

	segments, err := s.segments.ListInRange(ctx, vehicleID, from, to)
	if err != nil {
		return nil, internalError(err, "failed to list segments for vehicle %s", vehicleID)
	}

	now := s.now()
	for i := range segments {
		if segments[i].IsOpen() {
			elapsed := int64(now.Sub(segments[i].StartTime) / time.Second)
			if elapsed < 0 {
				elapsed = 0
			}
			segments[i].DurationSeconds = &elapsed
		}
	}
	return segments, nil
}

// GetDailyStats returns the rollup rows with date in [startDate, endDate],
// newest first. Days that have not been rolled up yet are simply absent.
func (s *StatsService) GetDailyStats(ctx context.Context, vehicleID, startDate, endDate string) ([]models.DailyStat, error) {
	r, err := s.ResolveRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(vehicleID) == "" {
		return nil, validationError("vehicle_id is required")
	}

	rows, err := s.daily.ListRange(ctx, vehicleID, r.StartDate, r.EndDate)
	if err != nil {
		return nil, internalError(err, "failed to list daily stats for vehicle %s", vehicleID)
	}
	return rows, nil
}

// GetSegmentSummary describes, per status, the distribution of segment time
// inside [from, to]. Each segment contributes its clipped overlap.
func (s *StatsService) GetSegmentSummary(ctx context.Context, vehicleID string, from, to time.Time) ([]models.SegmentSummary, error) {
	segments, err := s.GetSegments(ctx, vehicleID, from, to)
	if err != nil {
		return nil, err
	}

	now := s.now()
	byStatus := make(map[string][]int64)
	var tracked int64
	for i := range segments {
		overlap := segments[i].Overlap(from, to, now)
		byStatus[segments[i].Status] = append(byStatus[segments[i].Status], overlap)
		tracked += overlap
	}

	summaries := make([]models.SegmentSummary, 0, len(byStatus))
	for _, status := range summaryOrder(byStatus) {
		d := stats.SummarizeDurations(byStatus[status])
		summary := models.SegmentSummary{
			Status:         status,
			Count:          d.Count,
			TotalSeconds:   d.Total,
			MeanSeconds:    d.Mean,
			MedianSeconds:  d.Median,
			P90Seconds:     d.P90,
			LongestSeconds: d.Longest,
		}
		if tracked > 0 {
			summary.Share = float64(d.Total) / float64(tracked)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// summaryOrder lists the canonical statuses first, then any others sorted
func summaryOrder(byStatus map[string][]int64) []string {
	order := append([]string{}, models.Statuses...)
	var extra []string
	for status := range byStatus {
		if !models.IsCanonicalStatus(status) {
			extra = append(extra, status)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}

// Query runs one stats view. Type defaults to duration.
func (s *StatsService) Query(ctx context.Context, q models.StatsQuery) (*models.StatsResult, error) {
	if strings.TrimSpace(q.VehicleID) == "" {
		return nil, validationError("vehicle_id is required")
	}
	r, err := s.ResolveRange(q.StartDate, q.EndDate)
	if err != nil {
		return nil, err
	}

	if q.Type == "" {
		q.Type = models.StatsTypeDuration
	}

	result := &models.StatsResult{
		VehicleID: q.VehicleID,
		Type:      q.Type,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
	}

	switch q.Type {
	case models.StatsTypeDuration:
		result.Data, err = s.GetDurationStats(ctx, q.VehicleID, r.From, r.To)
	case models.StatsTypeSegments:
		result.Data, err = s.GetSegments(ctx, q.VehicleID, r.From, r.To)
	case models.StatsTypeDaily:
		result.Data, err = s.GetDailyStats(ctx, q.VehicleID, r.StartDate, r.EndDate)
	case models.StatsTypeSummary:
		result.Data, err = s.GetSegmentSummary(ctx, q.VehicleID, r.From, r.To)
	default:
		return nil, validationError("unknown stats type %q", q.Type)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
