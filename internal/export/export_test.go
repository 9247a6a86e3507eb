package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"github.com/twpayne/go-geom"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dining-hotspots/internal/model"
)

func square(x, y float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{x, y, x + 0.01, y, x + 0.01, y + 0.01, x, y + 0.01, x, y}, []int{10})
}

func sampleBundle() Bundle {
	return Bundle{
		Hotspots: []model.Hotspot{
			{Geometry: square(-73.98, 40.75), RestaurantCount: 40, PopularityScore: 90, CombinedScore: 140, Rank: 1, DiningZoneID: 0, ArrivalAreaID: 2},
			{Geometry: square(-73.95, 40.78), RestaurantCount: 10, PopularityScore: 5, CombinedScore: 17.5, Rank: 2, DiningZoneID: 1, ArrivalAreaID: 0},
		},
		DiningZones: []model.ZonePolygon{
			{ID: 0, Kind: model.KindDining, Geometry: square(-73.99, 40.74), SourceCount: 40, SampleNames: []string{"Joe's"}},
		},
		ArrivalAreas: []model.ZonePolygon{
			{ID: 2, Kind: model.KindArrival, Geometry: square(-73.98, 40.75), SourceCount: 900},
		},
		Summary: model.Summary{TotalHotspots: 2, MaxCombinedScore: 140, MinCombinedScore: 17.5, MeanCombinedScore: 78.75},
	}
}

type featureCollection struct {
	Type     string `json:"type"`
	Features []struct {
		ID       string         `json:"id"`
		Geometry map[string]any `json:"geometry"`
		Props    map[string]any `json:"properties"`
	} `json:"features"`
}

func TestWriteGeoJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, sampleBundle().Hotspots))

	var fc featureCollection
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)

	f := fc.Features[0]
	assert.Equal(t, "1", f.ID)
	assert.Equal(t, "Polygon", f.Geometry["type"])
	assert.Equal(t, "Dining Hotspot #1", f.Props["name"])
	assert.InDelta(t, 1, f.Props["rank"], 0)
	assert.InDelta(t, 40, f.Props["restaurant_count"], 0)
	assert.InDelta(t, 90, f.Props["popularity_score"], 0)
	assert.InDelta(t, 140, f.Props["combined_score"], 0)
}

func TestWriteGeoJSON_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, nil))

	var fc featureCollection
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Empty(t, fc.Features)
}

func TestWriteZonesGeoJSON(t *testing.T) {
	b := sampleBundle()
	var buf bytes.Buffer
	require.NoError(t, WriteZonesGeoJSON(&buf, append(b.DiningZones, b.ArrivalAreas...)))

	var fc featureCollection
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fc))
	require.Len(t, fc.Features, 2)

	assert.Equal(t, "dining-0", fc.Features[0].ID)
	assert.InDelta(t, 40, fc.Features[0].Props["restaurant_count"], 0)
	assert.Equal(t, []any{"Joe's"}, fc.Features[0].Props["sample_names"])

	assert.Equal(t, "arrival-2", fc.Features[1].ID)
	assert.InDelta(t, 900, fc.Features[1].Props["dropoff_count"], 0)
	assert.InDelta(t, 90, fc.Features[1].Props["popularity_score"], 0)
}

func TestWriteSummary(t *testing.T) {
	s := sampleBundle().Summary

	var js bytes.Buffer
	require.NoError(t, WriteSummary(&js, s, FormatJSON))
	var fromJSON map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &fromJSON))
	assert.InDelta(t, 78.75, fromJSON["avg_combined_score"], 1e-9)
	assert.InDelta(t, 2, fromJSON["total_hotspots"], 0)

	var ym bytes.Buffer
	require.NoError(t, WriteSummary(&ym, s, FormatYAML))
	var fromYAML model.Summary
	require.NoError(t, yaml.Unmarshal(ym.Bytes(), &fromYAML))
	assert.Equal(t, s, fromYAML)

	require.Error(t, WriteSummary(&ym, s, "toml"))
}

func TestWriteAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "processed")
	written, err := WriteAll(dir, sampleBundle())
	require.NoError(t, err)
	assert.Len(t, written, 6)

	for _, name := range []string{HotspotsFile, SummaryFile, SummaryYAML, DiningFile, ArrivalFile, WorkbookFile} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}

	wb, err := xlsx.OpenFile(filepath.Join(dir, WorkbookFile))
	require.NoError(t, err)
	sheet, ok := wb.Sheet["Hotspots"]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "Rank", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "Dining Hotspot #1", sheet.Rows[1].Cells[1].String())
	assert.Equal(t, "40", sheet.Rows[1].Cells[2].String())

	_, ok = wb.Sheet["Summary"]
	assert.True(t, ok)
}
