package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/jengzang/vehicle-status-backend/internal/models"
)

const defaultImportWorkers = 4

// presetRow is one line of a preset CSV file
type presetRow struct {
	VehicleID string `csv:"vehicle_id"`
	Name      string `csv:"name"`
	Status    string `csv:"status"`
	LocationX string `csv:"location_x"`
	LocationY string `csv:"location_y"`
}

// ImportFailure is a preset that could not be recorded
type ImportFailure struct {
	VehicleID string `json:"vehicle_id"`
	Error     string `json:"error"`
}

// ImportResult summarises a preset import
type ImportResult struct {
	Total    int             `json:"total"`
	Imported int             `json:"imported"`
	Failed   []ImportFailure `json:"failed"`
}

// ImportService replays preset vehicles through the status transition engine
type ImportService struct {
	status  *StatusService
	workers int
}

// NewImportService creates a new import service
func NewImportService(status *StatusService, workers int) *ImportService {
	if workers <= 0 {
		workers = defaultImportWorkers
	}
	return &ImportService{status: status, workers: workers}
}

// LoadPresets reads a preset file. Files ending in .csv are CSV, anything else JSON.
func LoadPresets(path string) ([]models.StatusReport, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open preset file: %w", err)
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ParsePresetsCSV(file)
	}
	return ParsePresetsJSON(file)
}

// ParsePresetsJSON decodes a JSON array of presets
func ParsePresetsJSON(r io.Reader) ([]models.StatusReport, error) {
	var presets []models.StatusReport
	if err := json.NewDecoder(r).Decode(&presets); err != nil {
		return nil, validationError("invalid preset JSON: %v", err)
	}
	return presets, nil
}

// ParsePresetsCSV decodes presets from a CSV file with a header row.
// Empty name or coordinate cells mean "not provided".
func ParsePresetsCSV(r io.Reader) ([]models.StatusReport, error) {
	var rows []*presetRow
	if err := gocsv.UnmarshalCSV(lenientReader(r), &rows); err != nil {
		return nil, validationError("invalid preset CSV: %v", err)
	}

	presets := make([]models.StatusReport, 0, len(rows))
	for i, row := range rows {
		preset := models.StatusReport{
			VehicleID: strings.TrimSpace(row.VehicleID),
			Status:    strings.TrimSpace(row.Status),
		}
		if name := strings.TrimSpace(row.Name); name != "" {
			preset.Name = &name
		}

		var err error
		if preset.LocationX, err = parseCoordinate(row.LocationX); err != nil {
			return nil, validationError("row %d: invalid location_x %q", i+1, row.LocationX)
		}
		if preset.LocationY, err = parseCoordinate(row.LocationY); err != nil {
			return nil, validationError("row %d: invalid location_y %q", i+1, row.LocationY)
		}
		presets = append(presets, preset)
	}
	return presets, nil
}

// lenientReader tolerates rows with missing trailing columns
func lenientReader(in io.Reader) gocsv.CSVReader {
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return r
}

func parseCoordinate(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Import records every preset. Presets of the same vehicle are replayed in
// file order; different vehicles run concurrently on a bounded pool.
// A failed preset is reported in the result and does not stop the others.
func (s *ImportService) Import(ctx context.Context, presets []models.StatusReport) *ImportResult {
	var order []string
	groups := make(map[string][]models.StatusReport)
	for _, preset := range presets {
		id := strings.TrimSpace(preset.VehicleID)
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], preset)
	}

	p := pool.NewWithResults[[]ImportFailure]().WithMaxGoroutines(s.workers)
	for _, id := range order {
		group := groups[id]
		p.Go(func() []ImportFailure {
			var failures []ImportFailure
			for _, preset := range group {
				if _, err := s.status.ReportStatus(ctx, preset); err != nil {
					failures = append(failures, ImportFailure{VehicleID: preset.VehicleID, Error: err.Error()})
					continue
				}
				log.Debug().Str("vehicle_id", preset.VehicleID).Msg("Imported preset vehicle")
			}
			return failures
		})
	}

	result := &ImportResult{Total: len(presets), Failed: []ImportFailure{}}
	for _, failures := range p.Wait() {
		result.Failed = append(result.Failed, failures...)
	}
	result.Imported = result.Total - len(result.Failed)

	log.Info().
		Int("total", result.Total).
		Int("imported", result.Imported).
		Int("failed", len(result.Failed)).
		Msg("Preset import finished")
	return result
}

// ImportFile loads a preset file and imports it
func (s *ImportService) ImportFile(ctx context.Context, path string) (*ImportResult, error) {
	presets, err := LoadPresets(path)
	if err != nil {
		return nil, err
	}
	return s.Import(ctx, presets), nil
}
