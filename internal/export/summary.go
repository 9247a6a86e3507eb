package export

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dining-hotspots/internal/model"
)

// Output file names inside the output directory.
const (
	HotspotsFile = "final_hotspot_dining_areas.geojson"
	SummaryFile  = "hotspot_statistics.json"
	SummaryYAML  = "hotspot_statistics.yaml"
	DiningFile   = "dining_zones.geojson"
	ArrivalFile  = "hotspot_arrival_areas.geojson"
	WorkbookFile = "hotspots.xlsx"
)

// Summary formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// WriteSummary writes run statistics as json or yaml.
func WriteSummary(w io.Writer, s model.Summary, format string) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return eris.Wrap(err, "export: encode summary json")
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return eris.Wrap(err, "export: encode summary yaml")
		}
		if err := enc.Close(); err != nil {
			return eris.Wrap(err, "export: flush summary yaml")
		}
	default:
		return eris.Errorf("export: unknown summary format %q", format)
	}
	return nil
}

// Bundle is everything WriteAll persists.
type Bundle struct {
	Hotspots     []model.Hotspot
	DiningZones  []model.ZonePolygon
	ArrivalAreas []model.ZonePolygon
	Summary      model.Summary
}

// WriteAll writes every output file into dir, creating it if needed, and
// returns the paths written.
func WriteAll(dir string, b Bundle) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "export: create %s", dir)
	}

	var written []string
	writeFile := func(name string, fn func(io.Writer) error) error {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "export: create %s", path)
		}
		if err := fn(f); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrapf(err, "export: close %s", path)
		}
		written = append(written, path)
		return nil
	}

	steps := []struct {
		name string
		fn   func(io.Writer) error
	}{
		{HotspotsFile, func(w io.Writer) error { return WriteGeoJSON(w, b.Hotspots) }},
		{DiningFile, func(w io.Writer) error { return WriteZonesGeoJSON(w, b.DiningZones) }},
		{ArrivalFile, func(w io.Writer) error { return WriteZonesGeoJSON(w, b.ArrivalAreas) }},
		{SummaryFile, func(w io.Writer) error { return WriteSummary(w, b.Summary, FormatJSON) }},
		{SummaryYAML, func(w io.Writer) error { return WriteSummary(w, b.Summary, FormatYAML) }},
	}
	for _, s := range steps {
		if err := writeFile(s.name, s.fn); err != nil {
			return written, err
		}
	}

	workbook := filepath.Join(dir, WorkbookFile)
	if err := WriteXLSX(workbook, b.Hotspots, b.Summary); err != nil {
		return written, err
	}
	written = append(written, workbook)

	zap.L().Info("export: outputs written", zap.String("dir", dir), zap.Int("files", len(written)))
	return written, nil
}
