package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/dining-hotspots/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			CreatedAt: now,
			Summary:   model.Summary{TotalHotspots: 4, MaxCombinedScore: 140, DiningZones: 6, ArrivalAreas: 3},
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			CreatedAt: now.Add(-time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "HOTSPOTS")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "140.0")
	assert.Contains(t, output, "def12345")
}

func TestFormatRun(t *testing.T) {
	sq := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{0, 0}, {0.01, 0}, {0.01, 0.01}, {0, 0.01}, {0, 0},
	}})
	run := &model.Run{
		ID:        "run-1",
		CreatedAt: time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC),
		Summary: model.Summary{
			TotalHotspots: 2, MinCombinedScore: 35, MaxCombinedScore: 140, MeanCombinedScore: 87.5,
			DiningZones: 3, ArrivalAreas: 2, ContributingDiningZones: 2, ContributingArrivalAreas: 1,
		},
		Hotspots: []model.Hotspot{
			{Rank: 1, CombinedScore: 140, RestaurantCount: 12, PopularityScore: 90, Geometry: sq},
			{Rank: 2, CombinedScore: 35, RestaurantCount: 3, PopularityScore: 22.5, Geometry: sq},
		},
	}

	var buf bytes.Buffer
	formatRun(&buf, run, 1)

	output := buf.String()
	assert.Contains(t, output, "run-1")
	assert.Contains(t, output, "3 (2 contributing)")
	assert.Contains(t, output, "35.0 - 140.0")
	assert.Contains(t, output, "Dining Hotspot #1")
	assert.NotContains(t, output, "Dining Hotspot #2")
}

func TestFormatRun_NoHotspots(t *testing.T) {
	var buf bytes.Buffer
	formatRun(&buf, &model.Run{ID: "empty"}, 10)

	output := buf.String()
	assert.Contains(t, output, "Hotspots:")
	assert.NotContains(t, output, "Score range")
	assert.NotContains(t, output, "NAME")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}
