package geo

import (
	"github.com/paulmach/orb"
)

// Region decides whether a point belongs to the city being analysed.
type Region interface {
	Contains(lng, lat float64) bool
}

// BBoxRegion is a rectangular region.
type BBoxRegion struct {
	bound orb.Bound
}

// NewBBoxRegion builds a region from its corners.
func NewBBoxRegion(minLng, minLat, maxLng, maxLat float64) BBoxRegion {
	return BBoxRegion{bound: orb.Bound{
		Min: orb.Point{minLng, minLat},
		Max: orb.Point{maxLng, maxLat},
	}}
}

// Contains reports whether the point lies inside the box, edges included.
func (r BBoxRegion) Contains(lng, lat float64) bool {
	return r.bound.Contains(orb.Point{lng, lat})
}

// Bound returns the underlying box.
func (r BBoxRegion) Bound() orb.Bound {
	return r.bound
}
