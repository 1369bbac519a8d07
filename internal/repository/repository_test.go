package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/vehicle-status-backend/internal/database"
	"github.com/jengzang/vehicle-status-backend/internal/models"
	"github.com/jengzang/vehicle-status-backend/internal/timeutil"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, timeutil.Location)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := database.Open(context.Background(), database.Config{Path: filepath.Join(t.TempDir(), "repo.db")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestVehicleRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewVehicleRepository(openTestDB(t))

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	x := 10.5
	v := &models.Vehicle{VehicleID: "V1", Name: "Sweeper", Status: models.StatusWorking, LocationX: &x, LastUpdated: t0}
	require.NoError(t, repo.Insert(ctx, v))
	assert.NotZero(t, v.ID)

	got, err := repo.GetByID(ctx, "V1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Sweeper", got.Name)
	require.NotNil(t, got.LocationX)
	assert.Equal(t, 10.5, *got.LocationX)
	assert.Nil(t, got.LocationY)
	assert.True(t, t0.Equal(got.LastUpdated))

	got.Status = models.StatusFault
	got.LastUpdated = t0.Add(time.Hour)
	require.NoError(t, repo.Update(ctx, got))

	require.NoError(t, repo.Insert(ctx, &models.Vehicle{VehicleID: "V2", Name: "Crane", Status: models.StatusWaiting, LastUpdated: t0}))

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "V1", all[0].VehicleID, "most recently updated first")
	assert.Equal(t, models.StatusFault, all[0].Status)

	assert.Error(t, repo.Insert(ctx, &models.Vehicle{VehicleID: "V2", Name: "dup", Status: models.StatusWaiting, LastUpdated: t0}))

	deleted, err := repo.Delete(ctx, "V2")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = repo.Delete(ctx, "V2")
	require.NoError(t, err)
	assert.False(t, deleted)

	assert.Error(t, repo.Update(ctx, &models.Vehicle{VehicleID: "V2", LastUpdated: t0}))
}

func TestSegmentRepositoryCloseAndOpen(t *testing.T) {
	ctx := context.Background()
	repo := NewSegmentRepository(openTestDB(t))

	closed, err := repo.CloseOpen(ctx, "V1", t0)
	require.NoError(t, err)
	assert.Zero(t, closed)

	_, err = repo.Open(ctx, "V1", models.StatusWorking, t0)
	require.NoError(t, err)

	closed, err = repo.CloseOpen(ctx, "V1", t0.Add(90*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), closed)

	_, err = repo.Open(ctx, "V1", models.StatusWaiting, t0.Add(90*time.Second))
	require.NoError(t, err)

	open, err := repo.GetOpen(ctx, "V1")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, models.StatusWaiting, open.Status)
	assert.Nil(t, open.DurationSeconds)

	all, err := repo.ListByVehicle(ctx, "V1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.NotNil(t, all[0].DurationSeconds)
	assert.Equal(t, int64(90), *all[0].DurationSeconds)
	assert.Equal(t, all[0].EndTime.Unix(), all[1].StartTime.Unix())

	count, err := repo.CountOpen(ctx, "V1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSegmentRepositorySumOverlap(t *testing.T) {
	ctx := context.Background()
	repo := NewSegmentRepository(openTestDB(t))

	_, err := repo.Open(ctx, "V1", models.StatusWorking, t0)
	require.NoError(t, err)
	_, err = repo.CloseOpen(ctx, "V1", t0.Add(time.Hour))
	require.NoError(t, err)
	_, err = repo.Open(ctx, "V1", models.StatusFault, t0.Add(time.Hour))
	require.NoError(t, err)

	now := t0.Add(5 * time.Hour)

	totals, err := repo.SumOverlapByStatus(ctx, "V1", t0.AddDate(0, 0, -1), t0.Add(2*time.Hour), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3600), totals[models.StatusWorking])
	assert.Equal(t, int64(3600), totals[models.StatusFault])

	totals, err = repo.SumOverlapByStatus(ctx, "V1", t0.Add(30*time.Minute), t0.Add(10*time.Hour), now)
	require.NoError(t, err)
	assert.Equal(t, int64(1800), totals[models.StatusWorking])
	assert.Equal(t, int64(4*3600), totals[models.StatusFault], "open segment counts up to now")

	segments, err := repo.ListInRange(ctx, "V1", t0.Add(2*time.Hour), t0.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.True(t, segments[0].IsOpen())

	segments, err = repo.ListInRange(ctx, "V1", t0.AddDate(0, 0, -1), t0.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, models.StatusFault, segments[0].Status, "newest first")
}

func TestSegmentRepositorySumOverlapAllVehicles(t *testing.T) {
	ctx := context.Background()
	repo := NewSegmentRepository(openTestDB(t))

	day := timeutil.StartOfDay(t0)
	next := timeutil.NextDay(day)

	// V1 starts the previous evening and works through 02:00
	_, err := repo.Open(ctx, "V1", models.StatusWorking, day.Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = repo.CloseOpen(ctx, "V1", day.Add(2*time.Hour))
	require.NoError(t, err)
	_, err = repo.Open(ctx, "V1", models.StatusWaiting, day.Add(2*time.Hour))
	require.NoError(t, err)

	// V2 only has activity the following day
	_, err = repo.Open(ctx, "V2", models.StatusFault, next.Add(time.Hour))
	require.NoError(t, err)

	overlaps, err := repo.SumOverlapAllVehicles(ctx, day, next, next.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, overlaps, 2)
	assert.Equal(t, VehicleStatusOverlap{VehicleID: "V1", Status: models.StatusWaiting, Seconds: 22 * 3600}, findOverlap(overlaps, "V1", models.StatusWaiting))
	assert.Equal(t, VehicleStatusOverlap{VehicleID: "V1", Status: models.StatusWorking, Seconds: 2 * 3600}, findOverlap(overlaps, "V1", models.StatusWorking))
}

func findOverlap(overlaps []VehicleStatusOverlap, vehicleID, status string) VehicleStatusOverlap {
	for _, o := range overlaps {
		if o.VehicleID == vehicleID && o.Status == status {
			return o
		}
	}
	return VehicleStatusOverlap{}
}

func TestHistoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewHistoryRepository(openTestDB(t))

	require.NoError(t, repo.Append(ctx, "V1", models.StatusWorking, t0))
	require.NoError(t, repo.Append(ctx, "V1", models.StatusFault, t0.Add(time.Hour)))
	require.NoError(t, repo.Append(ctx, "V2", models.StatusWaiting, t0))

	entries, err := repo.ListSince(ctx, "V1", t0.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.StatusFault, entries[0].Status)

	count, err := repo.Count(ctx, "V1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, repo.DeleteByVehicle(ctx, "V1"))
	count, err = repo.Count(ctx, "V1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDailyStatsRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewDailyStatsRepository(openTestDB(t))

	for _, date := range []string{"2024-03-01", "2024-03-02", "2024-03-03"} {
		require.NoError(t, repo.Insert(ctx, &models.DailyStat{VehicleID: "V1", Date: date, WorkingSeconds: 60}))
	}
	assert.Error(t, repo.Insert(ctx, &models.DailyStat{VehicleID: "V1", Date: "2024-03-01"}), "unique per vehicle and date")

	stats, err := repo.ListRange(ctx, "V1", "2024-03-02", "2024-03-03")
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "2024-03-03", stats[0].Date)

	deleted, err := repo.DeleteDate(ctx, "2024-03-02")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestRollupWatermarks(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	segments := NewSegmentRepository(conn)
	daily := NewDailyStatsRepository(conn)

	earliest, err := segments.EarliestStart(ctx)
	require.NoError(t, err)
	assert.Nil(t, earliest)

	latest, err := daily.LatestDate(ctx)
	require.NoError(t, err)
	assert.Empty(t, latest)

	_, err = segments.Open(ctx, "V2", models.StatusWaiting, t0.Add(time.Hour))
	require.NoError(t, err)
	_, err = segments.Open(ctx, "V1", models.StatusWorking, t0)
	require.NoError(t, err)

	earliest, err = segments.EarliestStart(ctx)
	require.NoError(t, err)
	require.NotNil(t, earliest)
	assert.True(t, t0.Equal(*earliest))

	require.NoError(t, daily.Insert(ctx, &models.DailyStat{VehicleID: "V1", Date: "2024-03-02"}))
	require.NoError(t, daily.Insert(ctx, &models.DailyStat{VehicleID: "V1", Date: "2024-02-28"}))
	latest, err = daily.LatestDate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-02", latest)
}
