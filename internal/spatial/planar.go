package spatial

import (
	"sort"

	"github.com/golang/geo/r2"
)

// Distance returns the euclidean distance between two points on the map plane
func Distance(a, b r2.Point) float64 {
	return a.Sub(b).Norm()
}

// WithinRadius reports whether p lies inside the closed disc around center
func WithinRadius(center r2.Point, radius float64, p r2.Point) bool {
	return Distance(center, p) <= radius
}

// Bounds returns the smallest rectangle containing every point.
// An empty input yields an empty rectangle.
func Bounds(points []r2.Point) r2.Rect {
	if len(points) == 0 {
		return r2.EmptyRect()
	}
	return r2.RectFromPoints(points...)
}

// Ranked is a point with its distance to a query center
type Ranked struct {
	Index    int
	Distance float64
}

// Nearest returns the indices of points within radius of center, closest first
func Nearest(center r2.Point, radius float64, points []r2.Point) []Ranked {
	var ranked []Ranked
	for i, p := range points {
		d := Distance(center, p)
		if d <= radius {
			ranked = append(ranked, Ranked{Index: i, Distance: d})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Distance < ranked[j].Distance
	})
	return ranked
}
