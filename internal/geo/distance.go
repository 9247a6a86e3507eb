// Package geo provides the great-circle, planar ring, and bounding-region
// helpers shared by the zone and overlay stages.
package geo

import (
	"math"

	"github.com/golang/geo/s2"
)

// Earth and degree constants.
const (
	EarthRadiusMeters = 6371000.0
	MetersPerDegree   = 111320.0
)

// HaversineMeters returns the great-circle distance between two lng/lat points.
func HaversineMeters(lng1, lat1, lng2, lat2 float64) float64 {
	a := s2.LatLngFromDegrees(lat1, lng1)
	b := s2.LatLngFromDegrees(lat2, lng2)
	return a.Distance(b).Radians() * EarthRadiusMeters
}

// MetersToRadians converts a ground distance to a central angle.
func MetersToRadians(m float64) float64 {
	return m / EarthRadiusMeters
}

// MetersToDegrees converts a ground distance at the given latitude into
// longitude and latitude degree offsets.
func MetersToDegrees(m, lat float64) (dLng, dLat float64) {
	dLat = m / MetersPerDegree
	c := math.Cos(lat * math.Pi / 180)
	if c < 1e-6 {
		c = 1e-6
	}
	return dLat / c, dLat
}

// SquareDegreesToKM2 converts a planar area in square degrees, centered near
// lat, into square kilometres.
func SquareDegreesToKM2(area, lat float64) float64 {
	km := MetersPerDegree / 1000
	return area * km * km * math.Cos(lat*math.Pi/180)
}
