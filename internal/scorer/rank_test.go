package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/dining-hotspots/internal/model"
)

func TestPopularity(t *testing.T) {
	tests := []struct {
		name     string
		dropoffs int
		want     float64
	}{
		{"none", 0, 0},
		{"negative", -5, 0},
		{"small", 25, 2.5},
		{"at cap", 1000, 100},
		{"above cap", 5000, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Popularity(tt.dropoffs), 1e-9)
		})
	}
}

func TestRank_SingleContainedHotspot(t *testing.T) {
	ranked := Rank([]model.Hotspot{{RestaurantCount: 40, PopularityScore: 90}})
	require.Len(t, ranked, 1)
	assert.InDelta(t, 140, ranked[0].CombinedScore, 1e-9)
	assert.Equal(t, 1, ranked[0].Rank)
}

func TestRank_OrderAndScores(t *testing.T) {
	in := []model.Hotspot{
		{RestaurantCount: 10, PopularityScore: 20, DiningZoneID: 0},
		{RestaurantCount: 40, PopularityScore: 5, DiningZoneID: 1},
		{RestaurantCount: 20, PopularityScore: 60, DiningZoneID: 2},
	}
	ranked := Rank(in)
	require.Len(t, ranked, 3)

	assert.Equal(t, 2, ranked[0].DiningZoneID)
	assert.InDelta(t, 85, ranked[0].CombinedScore, 1e-9)
	assert.Equal(t, 1, ranked[1].DiningZoneID)
	assert.InDelta(t, 55, ranked[1].CombinedScore, 1e-9)
	assert.Equal(t, 0, ranked[2].DiningZoneID)
	assert.InDelta(t, 32.5, ranked[2].CombinedScore, 1e-9)
	for i, h := range ranked {
		assert.Equal(t, i+1, h.Rank)
	}

	assert.Zero(t, in[0].CombinedScore, "input is left untouched")
}

func TestRank_TieBreaks(t *testing.T) {
	// All four score 60; popularity then restaurant count then input order
	// decide.
	in := []model.Hotspot{
		{RestaurantCount: 20, PopularityScore: 35, ArrivalAreaID: 0},
		{RestaurantCount: 40, PopularityScore: 10, ArrivalAreaID: 1},
		{RestaurantCount: 20, PopularityScore: 35, ArrivalAreaID: 2},
		{RestaurantCount: 20, PopularityScore: 35, ArrivalAreaID: 3},
	}
	ranked := Rank(in)

	var got []int
	for _, h := range ranked {
		got = append(got, h.ArrivalAreaID)
	}
	assert.Equal(t, []int{0, 2, 3, 1}, got)
}

func TestRank_ZeroRestaurantCounts(t *testing.T) {
	ranked := Rank([]model.Hotspot{
		{RestaurantCount: 0, PopularityScore: 3},
		{RestaurantCount: 0, PopularityScore: 7},
	})
	require.Len(t, ranked, 2)
	assert.InDelta(t, 7, ranked[0].CombinedScore, 1e-9)
	assert.InDelta(t, 3, ranked[1].CombinedScore, 1e-9)
}

func TestRank_ClampsNegatives(t *testing.T) {
	ranked := Rank([]model.Hotspot{{RestaurantCount: -3, PopularityScore: -10}})
	require.Len(t, ranked, 1)
	assert.Zero(t, ranked[0].CombinedScore)
	assert.Zero(t, ranked[0].RestaurantCount)
	assert.Zero(t, ranked[0].PopularityScore)
}

func TestRank_Empty(t *testing.T) {
	assert.Empty(t, Rank(nil))
}

func TestTopK(t *testing.T) {
	ranked := Rank([]model.Hotspot{
		{RestaurantCount: 1, PopularityScore: 1},
		{RestaurantCount: 2, PopularityScore: 2},
		{RestaurantCount: 3, PopularityScore: 3},
	})
	assert.Len(t, TopK(ranked, 2), 2)
	assert.Equal(t, 1, TopK(ranked, 2)[0].Rank)
	assert.Len(t, TopK(ranked, 0), 3)
	assert.Len(t, TopK(ranked, 10), 3)
}

func TestName(t *testing.T) {
	assert.Equal(t, "Dining Hotspot #3", Name(3))
}

func square(x, y, side float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{x, y, x + side, y, x + side, y + side, x, y + side, x, y}, []int{10})
}

func TestSummarize(t *testing.T) {
	ranked := Rank([]model.Hotspot{
		{Geometry: square(0, 0, 0.01), RestaurantCount: 40, PopularityScore: 90, DiningZoneID: 0, ArrivalAreaID: 0},
		{Geometry: square(1, 0, 0.01), RestaurantCount: 20, PopularityScore: 10, DiningZoneID: 0, ArrivalAreaID: 1},
	})
	s := Summarize(ranked, 3, 4)

	assert.Equal(t, 2, s.TotalHotspots)
	assert.InDelta(t, 35, s.MinCombinedScore, 1e-9)
	assert.InDelta(t, 140, s.MaxCombinedScore, 1e-9)
	assert.InDelta(t, 87.5, s.MeanCombinedScore, 1e-9)
	assert.InDelta(t, 30, s.AvgRestaurantCount, 1e-9)
	assert.InDelta(t, 50, s.AvgPopularityScore, 1e-9)
	assert.InDelta(t, 2*1.11320*1.11320, s.TotalAreaKM2, 1e-3)
	assert.Equal(t, 3, s.DiningZones)
	assert.Equal(t, 4, s.ArrivalAreas)
	assert.Equal(t, 1, s.ContributingDiningZones)
	assert.Equal(t, 2, s.ContributingArrivalAreas)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, 2, 5)
	assert.Equal(t, model.Summary{DiningZones: 2, ArrivalAreas: 5}, s)
}
