// Package scorer scores, ranks, and summarizes dining hotspots.
package scorer

import (
	"cmp"
	"math"
	"slices"
	"strconv"

	"github.com/sells-group/dining-hotspots/internal/model"
)

// Score weights.
const (
	// RestaurantWeight is the share of the combined score earned by the
	// run's densest dining zone.
	RestaurantWeight = 50.0
	// MaxPopularity caps the popularity score.
	MaxPopularity = 100.0
	// DropoffsPerPoint is how many drop-offs make one popularity point.
	DropoffsPerPoint = 10.0
)

// Popularity maps an arrival area's drop-off count onto 0..100.
func Popularity(dropoffs int) float64 {
	if dropoffs <= 0 {
		return 0
	}
	return math.Min(MaxPopularity, float64(dropoffs)/DropoffsPerPoint)
}

// Combined returns the combined score of one hotspot given the largest
// restaurant count in its run.
func Combined(restaurantCount int, popularity float64, maxRestaurantCount int) float64 {
	var density float64
	if maxRestaurantCount > 0 {
		density = float64(restaurantCount) / float64(maxRestaurantCount) * RestaurantWeight
	}
	return math.Max(0, density+popularity)
}

// Rank scores every hotspot and returns them sorted best first with ranks
// 1..N. Ties fall back to popularity, then restaurant count, then input
// order. The input slice is not modified.
func Rank(hotspots []model.Hotspot) []model.Hotspot {
	maxRC := 0
	for _, h := range hotspots {
		maxRC = max(maxRC, h.RestaurantCount)
	}

	out := make([]model.Hotspot, len(hotspots))
	for i, h := range hotspots {
		h.PopularityScore = math.Max(0, h.PopularityScore)
		h.RestaurantCount = max(0, h.RestaurantCount)
		h.CombinedScore = Combined(h.RestaurantCount, h.PopularityScore, maxRC)
		out[i] = h
	}

	slices.SortStableFunc(out, func(a, b model.Hotspot) int {
		if c := cmp.Compare(b.CombinedScore, a.CombinedScore); c != 0 {
			return c
		}
		if c := cmp.Compare(b.PopularityScore, a.PopularityScore); c != 0 {
			return c
		}
		return cmp.Compare(b.RestaurantCount, a.RestaurantCount)
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// TopK returns the first k ranked hotspots, or all of them when k <= 0.
func TopK(ranked []model.Hotspot, k int) []model.Hotspot {
	if k <= 0 || k >= len(ranked) {
		return ranked
	}
	return ranked[:k]
}

// Name is the display name of a ranked hotspot.
func Name(rank int) string {
	return "Dining Hotspot #" + strconv.Itoa(rank)
}
