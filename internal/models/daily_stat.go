package models

// DailyStat is the precomputed per-day rollup for one vehicle
type DailyStat struct {
	ID                 int64  `json:"id" db:"id"`
	VehicleID          string `json:"vehicle_id" db:"vehicle_id"`
	Date               string `json:"date" db:"date"` // YYYY-MM-DD, canonical zone
	WorkingSeconds     int64  `json:"working_seconds" db:"working_seconds"`
	WaitingSeconds     int64  `json:"waiting_seconds" db:"waiting_seconds"`
	MaintenanceSeconds int64  `json:"maintenance_seconds" db:"maintenance_seconds"`
	FaultSeconds       int64  `json:"fault_seconds" db:"fault_seconds"`
}

// Add accumulates seconds into the column for status. Unknown statuses are ignored.
func (d *DailyStat) Add(status string, seconds int64) {
	switch status {
	case StatusWorking:
		d.WorkingSeconds += seconds
	case StatusWaiting:
		d.WaitingSeconds += seconds
	case StatusMaintenance:
		d.MaintenanceSeconds += seconds
	case StatusFault:
		d.FaultSeconds += seconds
	}
}

// DurationStats maps each canonical status to seconds spent in it
type DurationStats map[string]int64

// NewDurationStats returns stats with every canonical status set to zero
func NewDurationStats() DurationStats {
	stats := make(DurationStats, len(Statuses))
	for _, s := range Statuses {
		stats[s] = 0
	}
	return stats
}

// Total sums all statuses
func (d DurationStats) Total() int64 {
	var total int64
	for _, v := range d {
		total += v
	}
	return total
}

// SegmentSummary describes the distribution of segment durations for one status
type SegmentSummary struct {
	Status         string  `json:"status"`
	Count          int     `json:"count"`
	TotalSeconds   int64   `json:"total_seconds"`
	MeanSeconds    float64 `json:"mean_seconds"`
	MedianSeconds  float64 `json:"median_seconds"`
	P90Seconds     float64 `json:"p90_seconds"`
	LongestSeconds int64   `json:"longest_seconds"`
	Share          float64 `json:"share"` // Fraction of the tracked time in range, 0~1
}
