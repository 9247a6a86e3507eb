package source

import (
	"slices"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dining-hotspots/internal/model"
)

// ReadShapefile reads point records from a shapefile. Attribute columns are
// resolved with the schema's name and time entries; coordinates come from
// the geometry, so the schema's coordinate names are ignored.
func ReadShapefile(path string, s Schema) ([]model.RawPoint, Stats, error) {
	var stats Stats
	reader, err := shp.Open(path)
	if err != nil {
		return nil, stats, eris.Wrapf(err, "source: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = strings.TrimRight(f.String(), "\x00")
	}
	cols := columns{lng: -1, lat: -1, name: -1, ts: -1}
	for i, h := range header {
		h = strings.ToLower(h)
		if cols.name < 0 && slices.Contains(s.Name, h) {
			cols.name = i
		}
		if cols.ts < 0 && slices.Contains(s.Time, h) {
			cols.ts = i
		}
	}
	if s.TimeRequired && cols.ts < 0 {
		return nil, stats, eris.Errorf("source: shapefile %s has no time field (want one of %v)", path, s.Time)
	}

	var points []model.RawPoint
	for reader.Next() {
		stats.Rows++
		_, shape := reader.Shape()
		pt, ok := shape.(*shp.Point)
		if !ok || pt == nil {
			stats.Skipped++
			continue
		}

		p := model.RawPoint{Longitude: pt.X, Latitude: pt.Y}
		if cols.name >= 0 {
			p.Name = attribute(reader, cols.name)
		}
		if cols.ts >= 0 {
			if raw := attribute(reader, cols.ts); raw != "" {
				p.Timestamp = ParseTime(raw)
			}
		}
		points = append(points, p)
	}
	if err := reader.Err(); err != nil {
		return nil, stats, eris.Wrapf(err, "source: read shapefile %s", path)
	}
	return points, stats, nil
}

func attribute(r *shp.Reader, i int) string {
	return strings.TrimSpace(strings.TrimRight(r.Attribute(i), "\x00"))
}
