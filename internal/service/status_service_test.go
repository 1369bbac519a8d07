package service

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/vehicle-status-backend/internal/database"
	"github.com/jengzang/vehicle-status-backend/internal/models"
	"github.com/jengzang/vehicle-status-backend/internal/notify"
	"github.com/jengzang/vehicle-status-backend/internal/repository"
	"github.com/jengzang/vehicle-status-backend/internal/timeutil"
)

// T0 is 2024-03-01 09:00:00 in the canonical zone
var T0 = time.Date(2024, 3, 1, 9, 0, 0, 0, timeutil.Location)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := database.Open(context.Background(), database.Config{Path: filepath.Join(t.TempDir(), "service.db")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func countRows(t *testing.T, conn *sql.DB, query string, args ...interface{}) int {
	t.Helper()
	var n int
	require.NoError(t, conn.QueryRow(query, args...).Scan(&n))
	return n
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func report(id, status string) models.StatusReport {
	return models.StatusReport{VehicleID: id, Status: status}
}

func TestReportStatusFirstReport(t *testing.T) {
	conn := openTestDB(t)
	clock := newClock(T0)
	svc := NewStatusService(conn, WithClock(clock.Now))

	v, err := svc.ReportStatus(context.Background(), report("V1", "working"))
	require.NoError(t, err)

	assert.Equal(t, "V1", v.VehicleID)
	assert.Equal(t, "车辆-V1", v.Name)
	assert.Equal(t, models.StatusWorking, v.Status)
	assert.Nil(t, v.LocationX)
	assert.Nil(t, v.LocationY)
	assert.True(t, T0.Equal(v.LastUpdated))

	assert.Equal(t, 1, countRows(t, conn, "SELECT COUNT(*) FROM vehicles"))
	assert.Equal(t, 1, countRows(t, conn, "SELECT COUNT(*) FROM vehicle_status_segments WHERE end_time IS NULL"))
	assert.Equal(t, 1, countRows(t, conn, "SELECT COUNT(*) FROM vehicle_status_segments"))
	assert.Equal(t, 1, countRows(t, conn, "SELECT COUNT(*) FROM vehicle_status_history"))
}

func TestReportStatusSecondReportClosesSegment(t *testing.T) {
	conn := openTestDB(t)
	clock := newClock(T0)
	svc := NewStatusService(conn, WithClock(clock.Now))
	ctx := context.Background()

	first := models.StatusReport{VehicleID: "V1", Name: strPtr("Sweeper 1"), Status: "working", LocationX: floatPtr(10), LocationY: floatPtr(20)}
	_, err := svc.ReportStatus(ctx, first)
	require.NoError(t, err)

	clock.Advance(90 * time.Second)
	v, err := svc.ReportStatus(ctx, models.StatusReport{VehicleID: "V1", Status: "waiting", LocationX: floatPtr(11)})
	require.NoError(t, err)

	assert.Equal(t, "Sweeper 1", v.Name, "name carried forward")
	assert.Equal(t, models.StatusWaiting, v.Status)
	require.NotNil(t, v.LocationX)
	require.NotNil(t, v.LocationY)
	assert.Equal(t, 11.0, *v.LocationX, "explicit coordinate wins")
	assert.Equal(t, 20.0, *v.LocationY, "missing coordinate carried forward")

	segments, err := repository.NewSegmentRepository(conn).ListByVehicle(ctx, "V1")
	require.NoError(t, err)
	require.Len(t, segments, 2)
	require.NotNil(t, segments[0].DurationSeconds)
	assert.Equal(t, int64(90), *segments[0].DurationSeconds)
	assert.Equal(t, segments[0].EndTime.Unix(), segments[1].StartTime.Unix())
	assert.True(t, segments[1].IsOpen())

	assert.Equal(t, 1, countRows(t, conn, "SELECT COUNT(*) FROM vehicles"))
	assert.Equal(t, 1, countRows(t, conn, "SELECT COUNT(*) FROM vehicle_status_segments WHERE end_time IS NULL"))
	assert.Equal(t, 2, countRows(t, conn, "SELECT COUNT(*) FROM vehicle_status_history"))
}

func TestReportStatusRoundTrip(t *testing.T) {
	conn := openTestDB(t)
	status := NewStatusService(conn, WithClock(newClock(T0).Now))
	vehicles := NewVehicleService(conn, nil)
	ctx := context.Background()

	_, err := status.ReportStatus(ctx, models.StatusReport{VehicleID: "V9", Name: strPtr("Crane"), Status: "working", LocationX: floatPtr(1.5), LocationY: floatPtr(-2.5)})
	require.NoError(t, err)

	got, err := vehicles.GetByID(ctx, "V9")
	require.NoError(t, err)
	assert.Equal(t, models.StatusWorking, got.Status)
	p, ok := got.Location()
	require.True(t, ok)
	assert.Equal(t, 1.5, p.X)
	assert.Equal(t, -2.5, p.Y)
}

func TestReportStatusValidation(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	permissive := NewStatusService(conn)
	strict := NewStatusService(conn, WithStrictStatus(true))

	_, err := permissive.ReportStatus(ctx, report("", "working"))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = permissive.ReportStatus(ctx, report("V1", "  "))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = strict.ReportStatus(ctx, report("V1", "parked"))
	assert.ErrorIs(t, err, ErrValidation)

	assert.Zero(t, countRows(t, conn, "SELECT COUNT(*) FROM vehicles"), "rejected before touching storage")

	v, err := permissive.ReportStatus(ctx, report("V1", "parked"))
	require.NoError(t, err)
	assert.Equal(t, "parked", v.Status, "unknown tokens pass through in permissive mode")

	v, err = strict.ReportStatus(ctx, report("V1", models.StatusFault))
	require.NoError(t, err)
	assert.Equal(t, models.StatusFault, v.Status)
}

func TestReportStatusRollsBackOnFailure(t *testing.T) {
	conn := openTestDB(t)
	svc := NewStatusService(conn, WithClock(newClock(T0).Now))
	ctx := context.Background()

	_, err := conn.Exec("DROP TABLE vehicle_status_history")
	require.NoError(t, err)

	_, err = svc.ReportStatus(ctx, report("V1", "working"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInternal)

	assert.Zero(t, countRows(t, conn, "SELECT COUNT(*) FROM vehicles"))
	assert.Zero(t, countRows(t, conn, "SELECT COUNT(*) FROM vehicle_status_segments"))
}

func TestReportStatusCancelledContext(t *testing.T) {
	conn := openTestDB(t)
	svc := NewStatusService(conn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ReportStatus(ctx, report("V1", "working"))
	assert.ErrorIs(t, err, ErrInternal)
	assert.Zero(t, countRows(t, conn, "SELECT COUNT(*) FROM vehicles"))
}

type recordingPublisher struct {
	mu       sync.Mutex
	received []models.Vehicle
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, v *models.Vehicle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received = append(p.received, *v)
	return p.err
}

func TestReportStatusPublishes(t *testing.T) {
	conn := openTestDB(t)
	hub := notify.NewHub(4)
	sub := hub.Subscribe()
	failing := &recordingPublisher{err: errors.New("sink down")}

	svc := NewStatusService(conn, WithPublisher(notify.Multi{hub, failing}))

	v, err := svc.ReportStatus(context.Background(), report("V1", "maintenance"))
	require.NoError(t, err, "publish failures never reach the caller")

	select {
	case got := <-sub.Events:
		assert.Equal(t, *v, got)
	case <-time.After(time.Second):
		t.Fatal("snapshot not published")
	}
	assert.Len(t, failing.received, 1)
}

func TestReportStatusPublishesNothingOnFailure(t *testing.T) {
	conn := openTestDB(t)
	rec := &recordingPublisher{}
	svc := NewStatusService(conn, WithPublisher(rec))

	_, err := svc.ReportStatus(context.Background(), report("", "working"))
	require.Error(t, err)
	assert.Empty(t, rec.received)
}

func TestConcurrentReportsSameVehicle(t *testing.T) {
	conn := openTestDB(t)

	// Every read of the clock moves one second forward
	var tick int64
	clock := func() time.Time {
		return T0.Add(time.Duration(atomic.AddInt64(&tick, 1)) * time.Second)
	}
	svc := NewStatusService(conn, WithClock(clock))

	const n = 25
	statuses := []string{"working", "waiting", "maintenance", "fault"}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.ReportStatus(context.Background(), report("V1", statuses[i%len(statuses)]))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	segments, err := repository.NewSegmentRepository(conn).ListByVehicle(context.Background(), "V1")
	require.NoError(t, err)
	require.Len(t, segments, n)

	open := 0
	for i, seg := range segments {
		if seg.IsOpen() {
			open++
			assert.Equal(t, n-1, i, "only the newest segment is open")
			continue
		}
		require.NotNil(t, seg.DurationSeconds)
		assert.Equal(t, seg.EndTime.Unix()-seg.StartTime.Unix(), *seg.DurationSeconds)
		assert.Equal(t, seg.EndTime.Unix(), segments[i+1].StartTime.Unix(), "segments partition the timeline")
	}
	assert.Equal(t, 1, open)
	assert.Equal(t, n, countRows(t, conn, "SELECT COUNT(*) FROM vehicle_status_history WHERE vehicle_id = 'V1'"))
}

func TestConcurrentReportsDifferentVehicles(t *testing.T) {
	conn := openTestDB(t)
	svc := NewStatusService(conn)

	ids := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
	var wg sync.WaitGroup
	for _, id := range ids {
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := svc.ReportStatus(context.Background(), report(id, "working"))
				assert.NoError(t, err)
			}(id)
		}
	}
	wg.Wait()

	assert.Equal(t, len(ids), countRows(t, conn, "SELECT COUNT(*) FROM vehicles"))
	assert.Equal(t, len(ids), countRows(t, conn, "SELECT COUNT(*) FROM vehicle_status_segments WHERE end_time IS NULL"))
	assert.Equal(t, 3*len(ids), countRows(t, conn, "SELECT COUNT(*) FROM vehicle_status_segments"))
}

func TestReportStatusClockSkew(t *testing.T) {
	conn := openTestDB(t)
	clock := newClock(T0)
	svc := NewStatusService(conn, WithClock(clock.Now))
	ctx := context.Background()

	_, err := svc.ReportStatus(ctx, report("V1", "working"))
	require.NoError(t, err)

	clock.Set(T0.Add(-time.Minute))
	_, err = svc.ReportStatus(ctx, report("V1", "fault"))
	require.NoError(t, err)

	segments, err := repository.NewSegmentRepository(conn).ListByVehicle(ctx, "V1")
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, int64(0), *segments[0].DurationSeconds, "a clock step backwards never yields a negative duration")
}

// silentListener accepts connections and never answers
func silentListener(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	return ln.Addr().String()
}

func TestReportStatusHungRedisDoesNotBlock(t *testing.T) {
	conn := openTestDB(t)
	client := redis.NewClient(&redis.Options{
		Addr:                  silentListener(t),
		ContextTimeoutEnabled: true,
		MaxRetries:            -1,
	})
	t.Cleanup(func() { client.Close() })

	hub := notify.NewHub(1)
	sub := hub.Subscribe()
	publisher := notify.NewRedisPublisherWithClient(client, "")
	svc := NewStatusService(conn,
		WithPublisher(notify.Multi{hub, publisher}),
		WithPublishTimeout(200*time.Millisecond),
	)

	start := time.Now()
	v, err := svc.ReportStatus(context.Background(), report("V1", "working"))
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, models.StatusWorking, v.Status)
	assert.Less(t, elapsed, time.Second, "report waited on the sink for %s", elapsed)
	assert.Equal(t, 1, countRows(t, conn, "SELECT COUNT(*) FROM vehicle_status_segments"))

	select {
	case got := <-sub.Events:
		assert.Equal(t, "V1", got.VehicleID)
	default:
		t.Fatal("in-process listeners still receive the snapshot")
	}
}
