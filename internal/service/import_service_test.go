package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/vehicle-status-backend/internal/models"
	"github.com/jengzang/vehicle-status-backend/internal/repository"
)

const presetJSON = `[
	{"vehicle_id": "SW-01", "name": "清扫车1号", "status": "working", "location_x": 120.5, "location_y": 88},
	{"vehicle_id": "CR-02", "name": "吊车2号", "status": "待命"}
]`

const presetCSV = `vehicle_id,name,status,location_x,location_y
SW-01,清扫车1号,working,120.5,88
CR-02,,waiting,,
FT-03,消防车3号,fault
`

func TestParsePresetsJSON(t *testing.T) {
	presets, err := ParsePresetsJSON(strings.NewReader(presetJSON))
	require.NoError(t, err)
	require.Len(t, presets, 2)

	assert.Equal(t, "SW-01", presets[0].VehicleID)
	require.NotNil(t, presets[0].Name)
	assert.Equal(t, "清扫车1号", *presets[0].Name)
	require.NotNil(t, presets[0].LocationX)
	assert.Equal(t, 120.5, *presets[0].LocationX)
	assert.Nil(t, presets[1].LocationX)

	_, err = ParsePresetsJSON(strings.NewReader(`{"vehicle_id": 1`))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParsePresetsCSV(t *testing.T) {
	presets, err := ParsePresetsCSV(strings.NewReader(presetCSV))
	require.NoError(t, err)
	require.Len(t, presets, 3)

	assert.Equal(t, "SW-01", presets[0].VehicleID)
	require.NotNil(t, presets[0].LocationY)
	assert.Equal(t, 88.0, *presets[0].LocationY)

	assert.Nil(t, presets[1].Name)
	assert.Nil(t, presets[1].LocationX)
	assert.Equal(t, "waiting", presets[1].Status)

	assert.Equal(t, "fault", presets[2].Status)
	assert.Nil(t, presets[2].LocationX)

	_, err = ParsePresetsCSV(strings.NewReader("vehicle_id,status,location_x\nV1,working,abc\n"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestImportReplaysPresets(t *testing.T) {
	conn := openTestDB(t)
	clock := newClock(T0)
	status := NewStatusService(conn, WithClock(func() time.Time {
		// each transition one minute after the previous
		clock.Advance(time.Minute)
		return clock.Now()
	}))
	importer := NewImportService(status, 2)
	ctx := context.Background()

	presets := []models.StatusReport{
		{VehicleID: "V1", Status: "working"},
		{VehicleID: "V2", Status: "waiting"},
		{VehicleID: "V1", Status: "fault"},
		{VehicleID: "V3", Status: ""},
	}

	result := importer.Import(ctx, presets)
	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 3, result.Imported)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "V3", result.Failed[0].VehicleID)

	v1, err := NewVehicleService(conn, nil).GetByID(ctx, "V1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFault, v1.Status, "presets of one vehicle replay in order")

	segments, err := repository.NewSegmentRepository(conn).ListByVehicle(ctx, "V1")
	require.NoError(t, err)
	assert.Len(t, segments, 2)
}

func TestImportFile(t *testing.T) {
	conn := openTestDB(t)
	importer := NewImportService(NewStatusService(conn), 0)
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "presets.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(presetJSON), 0o644))
	csvPath := filepath.Join(dir, "presets.CSV")
	require.NoError(t, os.WriteFile(csvPath, []byte(presetCSV), 0o644))

	result, err := importer.ImportFile(context.Background(), jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)

	result, err = importer.ImportFile(context.Background(), csvPath)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Imported)
	assert.Empty(t, result.Failed)

	assert.Equal(t, 3, countRows(t, conn, "SELECT COUNT(*) FROM vehicles"))
	var name string
	require.NoError(t, conn.QueryRow("SELECT name FROM vehicles WHERE vehicle_id = 'CR-02'").Scan(&name))
	assert.Equal(t, "吊车2号", name, "blank CSV name keeps the stored one")

	_, err = importer.ImportFile(context.Background(), filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
