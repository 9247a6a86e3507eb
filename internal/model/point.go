// Package model defines the data types that flow through the hotspot pipeline.
package model

import (
	"math"
	"time"
)

// Coord is a longitude/latitude pair in degrees.
type Coord struct {
	Lng float64 `json:"lng" yaml:"lng"`
	Lat float64 `json:"lat" yaml:"lat"`
}

// RawPoint is a point as delivered by a point supply. Restaurants carry no
// timestamp; taxi drop-offs do.
type RawPoint struct {
	Longitude float64   `json:"longitude"`
	Latitude  float64   `json:"latitude"`
	Timestamp time.Time `json:"timestamp,omitzero"`
	Name      string    `json:"name,omitempty"`
}

// HasTimestamp reports whether the point carries a temporal signal.
func (p RawPoint) HasTimestamp() bool {
	return !p.Timestamp.IsZero()
}

// Valid reports whether the coordinates are finite and within WGS84 ranges.
func (p RawPoint) Valid() bool {
	return validCoord(p.Longitude, p.Latitude)
}

// WeightedPoint is a RawPoint after temporal weighting. Weight is in [0, 1].
type WeightedPoint struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Weight    float64 `json:"weight"`
	Name      string  `json:"name,omitempty"`
}

// Coord returns the point's location.
func (p WeightedPoint) Coord() Coord {
	return Coord{Lng: p.Longitude, Lat: p.Latitude}
}

// Cluster is one dense group of points found by the clustering engine.
// Noise is never materialized as a Cluster.
type Cluster struct {
	Label   int
	Members []Coord
	Names   []string
}

func validCoord(lng, lat float64) bool {
	if math.IsNaN(lng) || math.IsNaN(lat) || math.IsInf(lng, 0) || math.IsInf(lat, 0) {
		return false
	}
	return lng >= -180 && lng <= 180 && lat >= -90 && lat <= 90
}
