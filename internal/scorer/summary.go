package scorer

import (
	"github.com/twpayne/go-geom/xy"

	"github.com/sells-group/dining-hotspots/internal/geo"
	"github.com/sells-group/dining-hotspots/internal/model"
)

// Summarize computes run statistics over ranked hotspots. diningZones and
// arrivalAreas are the sizes of the two input collections.
func Summarize(hotspots []model.Hotspot, diningZones, arrivalAreas int) model.Summary {
	s := model.Summary{
		TotalHotspots: len(hotspots),
		DiningZones:   diningZones,
		ArrivalAreas:  arrivalAreas,
	}
	if len(hotspots) == 0 {
		return s
	}

	dining := make(map[int]struct{})
	arrival := make(map[int]struct{})
	var sumScore, sumRC, sumPop float64
	s.MinCombinedScore = hotspots[0].CombinedScore
	s.MaxCombinedScore = hotspots[0].CombinedScore
	for _, h := range hotspots {
		s.MinCombinedScore = min(s.MinCombinedScore, h.CombinedScore)
		s.MaxCombinedScore = max(s.MaxCombinedScore, h.CombinedScore)
		sumScore += h.CombinedScore
		sumRC += float64(h.RestaurantCount)
		sumPop += h.PopularityScore
		s.TotalAreaKM2 += AreaKM2(h)
		dining[h.DiningZoneID] = struct{}{}
		arrival[h.ArrivalAreaID] = struct{}{}
	}

	n := float64(len(hotspots))
	s.MeanCombinedScore = sumScore / n
	s.AvgRestaurantCount = sumRC / n
	s.AvgPopularityScore = sumPop / n
	s.ContributingDiningZones = len(dining)
	s.ContributingArrivalAreas = len(arrival)
	return s
}

// AreaKM2 is the approximate ground area of a hotspot.
func AreaKM2(h model.Hotspot) float64 {
	if h.Geometry == nil {
		return 0
	}
	lat := 0.0
	if c, err := xy.Centroid(h.Geometry); err == nil {
		lat = c[1]
	}
	return geo.SquareDegreesToKM2(h.Geometry.Area(), lat)
}
