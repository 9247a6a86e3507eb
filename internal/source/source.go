// Package source reads restaurant and drop-off points from CSV, XLSX, and
// point shapefiles.
package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dining-hotspots/internal/model"
)

// Schema names the columns holding each field. Each entry lists accepted
// header names, matched case-insensitively; the first present wins.
type Schema struct {
	Longitude []string
	Latitude  []string
	Name      []string
	Time      []string
	// TimeRequired makes a missing time column an error.
	TimeRequired bool
	// Charset is the encoding of CSV input; empty means UTF-8.
	Charset string
}

// WithCharset returns a copy of s that decodes CSV input from charset.
func (s Schema) WithCharset(charset string) Schema {
	s.Charset = charset
	return s
}

// RestaurantSchema matches restaurant extracts.
var RestaurantSchema = Schema{
	Longitude: []string{"longitude", "lng", "lon"},
	Latitude:  []string{"latitude", "lat"},
	Name:      []string{"name", "dba"},
}

// DropoffSchema matches taxi trip records.
var DropoffSchema = Schema{
	Longitude:    []string{"dropoff_longitude", "longitude", "lng", "lon"},
	Latitude:     []string{"dropoff_latitude", "latitude", "lat"},
	Time:         []string{"dropoff_datetime", "tpep_dropoff_datetime", "lpep_dropoff_datetime", "timestamp"},
	TimeRequired: true,
}

// timeLayouts are tried in order. Times without a zone are read as UTC.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"01/02/2006 03:04:05 PM",
	"01/02/2006 15:04",
}

// Stats counts rows read and rows skipped for unusable coordinates.
type Stats struct {
	Rows    int `json:"rows"`
	Skipped int `json:"skipped"`
}

// columns resolves a Schema against one header row.
type columns struct {
	lng, lat, name, ts int
}

func (s Schema) resolve(header []string) (columns, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimRight(h, "\x00")))
		if _, ok := idx[h]; !ok {
			idx[h] = i
		}
	}
	find := func(names []string) int {
		for _, n := range names {
			if i, ok := idx[n]; ok {
				return i
			}
		}
		return -1
	}

	c := columns{lng: find(s.Longitude), lat: find(s.Latitude), name: find(s.Name), ts: find(s.Time)}
	if c.lng < 0 || c.lat < 0 {
		return c, eris.Errorf("source: missing coordinate columns (want one of %v and %v)", s.Longitude, s.Latitude)
	}
	if s.TimeRequired && c.ts < 0 {
		return c, eris.Errorf("source: missing time column (want one of %v)", s.Time)
	}
	return c, nil
}

// decode turns one record into a point. Rows with blank or non-numeric
// coordinates are skipped; out-of-range values pass through for the zone
// producer to reject. Unparseable times are left zero.
func (c columns) decode(record []string) (model.RawPoint, bool) {
	field := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return record[i]
	}

	lng, err := strconv.ParseFloat(field(c.lng), 64)
	if err != nil {
		return model.RawPoint{}, false
	}
	lat, err := strconv.ParseFloat(field(c.lat), 64)
	if err != nil {
		return model.RawPoint{}, false
	}
	p := model.RawPoint{Longitude: lng, Latitude: lat, Name: field(c.name)}
	if raw := field(c.ts); raw != "" {
		p.Timestamp = ParseTime(raw)
	}
	return p, true
}

// ParseTime parses a trip timestamp, returning the zero time when no known
// layout matches.
func ParseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ReadCSV reads points from CSV with a header row.
func ReadCSV(ctx context.Context, r io.Reader, s Schema) ([]model.RawPoint, Stats, error) {
	r, err := decodeCharset(r, s.Charset)
	if err != nil {
		return nil, Stats{}, err
	}
	rowCh, errCh := streamCSV(ctx, r)

	var (
		cols   columns
		points []model.RawPoint
		stats  Stats
		header = true
		resErr error
	)
	for record := range rowCh {
		if resErr != nil {
			continue
		}
		if header {
			header = false
			cols, resErr = s.resolve(record)
			continue
		}
		stats.Rows++
		p, ok := cols.decode(record)
		if !ok {
			stats.Skipped++
			continue
		}
		points = append(points, p)
	}
	for err := range errCh {
		if err != nil {
			return nil, stats, err
		}
	}
	if resErr != nil {
		return nil, stats, resErr
	}
	if header {
		return nil, stats, eris.New("source: csv has no header row")
	}
	return points, stats, nil
}

// ReadXLSX reads points from the first sheet of a workbook whose first row
// is a header.
func ReadXLSX(path string, s Schema) ([]model.RawPoint, Stats, error) {
	var stats Stats
	rows, err := readXLSX(path)
	if err != nil {
		return nil, stats, err
	}
	if len(rows) == 0 {
		return nil, stats, eris.Errorf("source: %s has no header row", path)
	}
	cols, err := s.resolve(rows[0])
	if err != nil {
		return nil, stats, err
	}

	points := make([]model.RawPoint, 0, len(rows)-1)
	for _, record := range rows[1:] {
		stats.Rows++
		p, ok := cols.decode(record)
		if !ok {
			stats.Skipped++
			continue
		}
		points = append(points, p)
	}
	return points, stats, nil
}

// Open reads a point file, choosing the reader by extension.
func Open(ctx context.Context, path string, s Schema) ([]model.RawPoint, error) {
	var (
		points []model.RawPoint
		stats  Stats
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, eris.Wrapf(openErr, "source: open %s", path)
		}
		defer func() { _ = f.Close() }()
		points, stats, err = ReadCSV(ctx, f, s)
	case ".xlsx":
		points, stats, err = ReadXLSX(path, s)
	case ".shp":
		points, stats, err = ReadShapefile(path, s)
	default:
		return nil, eris.Errorf("source: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, eris.Wrapf(err, "source: read %s", path)
	}

	log := zap.L().With(zap.String("path", path))
	if stats.Skipped > 0 {
		log.Warn("source: skipped rows without usable coordinates",
			zap.Int("skipped", stats.Skipped),
			zap.Int("rows", stats.Rows),
		)
	}
	log.Info("source: points loaded", zap.Int("points", len(points)))
	return points, nil
}
