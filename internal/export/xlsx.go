package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/dining-hotspots/internal/model"
	"github.com/sells-group/dining-hotspots/internal/scorer"
)

var hotspotColumns = []string{
	"Rank",
	"Name",
	"Restaurant Count",
	"Popularity Score",
	"Combined Score",
	"Dining Zone",
	"Arrival Area",
	"Area (km2)",
}

// WriteXLSX writes the ranked hotspot table and the run summary to a
// workbook at path.
func WriteXLSX(path string, hotspots []model.Hotspot, summary model.Summary) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet("Hotspots")
	if err != nil {
		return eris.Wrap(err, "export: add hotspots sheet")
	}
	header := sheet.AddRow()
	for _, col := range hotspotColumns {
		header.AddCell().SetString(col)
	}
	for _, h := range hotspots {
		row := sheet.AddRow()
		row.AddCell().SetInt(h.Rank)
		row.AddCell().SetString(scorer.Name(h.Rank))
		row.AddCell().SetInt(h.RestaurantCount)
		row.AddCell().SetFloat(h.PopularityScore)
		row.AddCell().SetFloat(h.CombinedScore)
		row.AddCell().SetInt(h.DiningZoneID)
		row.AddCell().SetInt(h.ArrivalAreaID)
		row.AddCell().SetFloat(scorer.AreaKM2(h))
	}

	stats, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	for _, kv := range summaryRows(summary) {
		row := stats.AddRow()
		row.AddCell().SetString(kv.key)
		row.AddCell().SetFloat(kv.value)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

type summaryRow struct {
	key   string
	value float64
}

func summaryRows(s model.Summary) []summaryRow {
	return []summaryRow{
		{"total_hotspots", float64(s.TotalHotspots)},
		{"min_combined_score", s.MinCombinedScore},
		{"max_combined_score", s.MaxCombinedScore},
		{"avg_combined_score", s.MeanCombinedScore},
		{"avg_restaurant_count", s.AvgRestaurantCount},
		{"avg_popularity_score", s.AvgPopularityScore},
		{"total_area_km2", s.TotalAreaKM2},
		{"dining_zones", float64(s.DiningZones)},
		{"arrival_areas", float64(s.ArrivalAreas)},
		{"contributing_dining_zones", float64(s.ContributingDiningZones)},
		{"contributing_arrival_areas", float64(s.ContributingArrivalAreas)},
	}
}
