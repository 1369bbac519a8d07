package models

// Stats view types accepted by the stats endpoint
const (
	StatsTypeDuration = "duration"
	StatsTypeSegments = "segments"
	StatsTypeDaily    = "daily"
	StatsTypeSummary  = "summary"
)

// StatsQuery represents the parameters of a vehicle stats query
type StatsQuery struct {
	VehicleID string `form:"vehicle_id"`
	StartDate string `form:"start_date"` // YYYY-MM-DD, defaults to 7 days ago
	EndDate   string `form:"end_date"`   // YYYY-MM-DD, defaults to today
	Type      string `form:"type"`       // duration, segments, daily, summary
}

// HistoryFilter represents filter parameters for status history
type HistoryFilter struct {
	Hours int `form:"hours"` // Look-back window, defaults to 24
}

// NearbyFilter represents a radius query on the map plane
type NearbyFilter struct {
	X      float64 `form:"x"`
	Y      float64 `form:"y"`
	Radius float64 `form:"radius"`
	Status string  `form:"status"` // Optional status token
}

// StatsResult wraps the result of one stats view
type StatsResult struct {
	VehicleID string      `json:"vehicle_id"`
	Type      string      `json:"type"`
	StartDate string      `json:"start_date"`
	EndDate   string      `json:"end_date"`
	Data      interface{} `json:"data"`
}
