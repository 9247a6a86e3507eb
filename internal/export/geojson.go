// Package export writes hotspots, zones, and run summaries for map and
// spreadsheet consumers.
package export

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/dining-hotspots/internal/model"
	"github.com/sells-group/dining-hotspots/internal/scorer"
)

// HotspotFeatures converts ranked hotspots into polygon features.
func HotspotFeatures(hotspots []model.Hotspot) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(hotspots))}
	for _, h := range hotspots {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       strconv.Itoa(h.Rank),
			Geometry: h.Geometry,
			Properties: map[string]any{
				"rank":             h.Rank,
				"name":             scorer.Name(h.Rank),
				"restaurant_count": h.RestaurantCount,
				"popularity_score": h.PopularityScore,
				"combined_score":   h.CombinedScore,
				"dining_zone_id":   h.DiningZoneID,
				"arrival_area_id":  h.ArrivalAreaID,
			},
		})
	}
	return fc
}

// ZoneFeatures converts one zone collection into polygon features. Arrival
// areas also carry their popularity score.
func ZoneFeatures(zones []model.ZonePolygon) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(zones))}
	for _, z := range zones {
		props := map[string]any{
			"cluster_id":   z.ID,
			"kind":         string(z.Kind),
			"centroid_lng": z.Centroid.Lng,
			"centroid_lat": z.Centroid.Lat,
		}
		switch z.Kind {
		case model.KindArrival:
			props["dropoff_count"] = z.SourceCount
			props["popularity_score"] = scorer.Popularity(z.SourceCount)
		default:
			props["restaurant_count"] = z.SourceCount
		}
		if len(z.SampleNames) > 0 {
			props["sample_names"] = z.SampleNames
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         string(z.Kind) + "-" + strconv.Itoa(z.ID),
			Geometry:   z.Geometry,
			Properties: props,
		})
	}
	return fc
}

// WriteGeoJSON writes ranked hotspots as a feature collection.
func WriteGeoJSON(w io.Writer, hotspots []model.Hotspot) error {
	return encode(w, HotspotFeatures(hotspots))
}

// WriteZonesGeoJSON writes a zone collection as a feature collection.
func WriteZonesGeoJSON(w io.Writer, zones []model.ZonePolygon) error {
	return encode(w, ZoneFeatures(zones))
}

func encode(w io.Writer, fc *geojson.FeatureCollection) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fc); err != nil {
		return eris.Wrap(err, "export: encode geojson")
	}
	return nil
}
