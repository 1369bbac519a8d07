package models

import "time"

// StatusSegment is one contiguous interval during which a vehicle held one status
type StatusSegment struct {
	ID        int64  `json:"id" db:"id"`
	VehicleID string `json:"vehicle_id" db:"vehicle_id"`
	Status    string `json:"status" db:"status"`

	StartTime time.Time  `json:"start_time" db:"start_time"`
	EndTime   *time.Time `json:"end_time" db:"end_time"` // nil while open

	// Stored once the segment closes; for open segments it is filled at read time
	DurationSeconds *int64 `json:"duration_seconds" db:"duration_seconds"`
}

// IsOpen reports whether the segment is the vehicle's current status
func (s *StatusSegment) IsOpen() bool {
	return s.EndTime == nil
}

// Overlap returns the seconds this segment overlaps [from, to], treating an
// open segment as ending at now
func (s *StatusSegment) Overlap(from, to, now time.Time) int64 {
	end := now
	if s.EndTime != nil {
		end = *s.EndTime
	}
	if to.Before(end) {
		end = to
	}
	start := s.StartTime
	if from.After(start) {
		start = from
	}
	if !end.After(start) {
		return 0
	}
	return int64(end.Sub(start) / time.Second)
}

// StatusHistoryEntry is an append-only audit record of a reported status
type StatusHistoryEntry struct {
	ID        int64     `json:"id" db:"id"`
	VehicleID string    `json:"vehicle_id" db:"vehicle_id"`
	Status    string    `json:"status" db:"status"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}
