package model

import (
	"time"

	"github.com/twpayne/go-geom"
)

// ZoneKind distinguishes the two polygon collections.
type ZoneKind string

// Zone kinds.
const (
	KindDining  ZoneKind = "dining"
	KindArrival ZoneKind = "arrival"
)

// ZonePolygon is the buffered hull of one cluster. It owns its geometry and
// keeps no reference to the cluster it came from.
type ZonePolygon struct {
	ID          int           `json:"id"`
	Kind        ZoneKind      `json:"kind"`
	Geometry    *geom.Polygon `json:"-"`
	SourceCount int           `json:"source_count"`
	Centroid    Coord         `json:"centroid"`
	SampleNames []string      `json:"sample_names,omitempty"`
}

// Hotspot is the overlap of one dining zone with one arrival area.
type Hotspot struct {
	Geometry        *geom.Polygon `json:"-"`
	RestaurantCount int           `json:"restaurant_count"`
	PopularityScore float64       `json:"popularity_score"`
	CombinedScore   float64       `json:"combined_score"`
	Rank            int           `json:"rank"`
	DiningZoneID    int           `json:"dining_zone_id"`
	ArrivalAreaID   int           `json:"arrival_area_id"`
}

// Summary holds run-level statistics emitted alongside the ranked hotspots.
type Summary struct {
	TotalHotspots            int     `json:"total_hotspots" yaml:"total_hotspots"`
	MinCombinedScore         float64 `json:"min_combined_score" yaml:"min_combined_score"`
	MaxCombinedScore         float64 `json:"max_combined_score" yaml:"max_combined_score"`
	MeanCombinedScore        float64 `json:"avg_combined_score" yaml:"avg_combined_score"`
	AvgRestaurantCount       float64 `json:"avg_restaurant_count" yaml:"avg_restaurant_count"`
	AvgPopularityScore       float64 `json:"avg_popularity_score" yaml:"avg_popularity_score"`
	TotalAreaKM2             float64 `json:"total_area_km2" yaml:"total_area_km2"`
	DiningZones              int     `json:"dining_zones" yaml:"dining_zones"`
	ArrivalAreas             int     `json:"arrival_areas" yaml:"arrival_areas"`
	ContributingDiningZones  int     `json:"contributing_dining_zones" yaml:"contributing_dining_zones"`
	ContributingArrivalAreas int     `json:"contributing_arrival_areas" yaml:"contributing_arrival_areas"`
}

// Run is one persisted pipeline execution.
type Run struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Summary   Summary   `json:"summary"`
	Hotspots  []Hotspot `json:"hotspots,omitempty"`
}
