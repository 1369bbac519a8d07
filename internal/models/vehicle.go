package models

import (
	"time"

	"github.com/golang/geo/r2"
)

// Vehicle is the current-state snapshot of one vehicle
type Vehicle struct {
	ID        int64  `json:"id" db:"id"`
	VehicleID string `json:"vehicle_id" db:"vehicle_id"` // Externally assigned, unique
	Name      string `json:"name" db:"name"`
	Status    string `json:"status" db:"status"` // Mirrors the newest segment

	// Map-plane coordinates, nil when unknown
	LocationX *float64 `json:"location_x" db:"location_x"`
	LocationY *float64 `json:"location_y" db:"location_y"`

	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}

// Location returns the vehicle position when both coordinates are known
func (v *Vehicle) Location() (r2.Point, bool) {
	if v.LocationX == nil || v.LocationY == nil {
		return r2.Point{}, false
	}
	return r2.Point{X: *v.LocationX, Y: *v.LocationY}, true
}

// StatusReport is one inbound status update, from a scanned code, a form or an import
type StatusReport struct {
	VehicleID string   `form:"vehicle_id" json:"vehicle_id"`
	Name      *string  `form:"name" json:"name"`
	Status    string   `form:"status" json:"status"`
	LocationX *float64 `form:"location_x" json:"location_x"`
	LocationY *float64 `form:"location_y" json:"location_y"`
}

// VehicleWithDistance is a nearby-query result
type VehicleWithDistance struct {
	Vehicle
	Distance float64 `json:"distance"`
}

// FleetExtent is the bounding box of every vehicle with a known location
type FleetExtent struct {
	Count   int     `json:"count"`
	MinX    float64 `json:"min_x"`
	MinY    float64 `json:"min_y"`
	MaxX    float64 `json:"max_x"`
	MaxY    float64 `json:"max_y"`
	CenterX float64 `json:"center_x"`
	CenterY float64 `json:"center_y"`
}
