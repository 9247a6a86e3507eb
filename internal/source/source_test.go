package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func TestReadCSV_Restaurants(t *testing.T) {
	input := "name,cuisine,latitude,longitude,borough\n" +
		"Joe's Pizza,Pizza,40.7306,-73.9895,Manhattan\n" +
		"\"Katz's, Deli\",Deli,40.7223,-73.9874,Manhattan\n" +
		"No Coords,Thai,,,Queens\n" +
		"Bad,Thai,abc,-73.9,Queens\n"

	points, stats, err := ReadCSV(context.Background(), strings.NewReader(input), RestaurantSchema)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, Stats{Rows: 4, Skipped: 2}, stats)

	assert.Equal(t, "Joe's Pizza", points[0].Name)
	assert.InDelta(t, -73.9895, points[0].Longitude, 1e-9)
	assert.InDelta(t, 40.7306, points[0].Latitude, 1e-9)
	assert.Equal(t, "Katz's, Deli", points[1].Name)
	assert.False(t, points[0].HasTimestamp())
}

func TestReadCSV_Dropoffs(t *testing.T) {
	input := "VendorID,tpep_dropoff_datetime,dropoff_longitude,dropoff_latitude\n" +
		"1,2016-03-05 19:15:00,-73.98,40.75\n" +
		"2,2016-03-07T12:00:00Z,-73.97,40.76\n" +
		"2,not a time,-73.96,40.77\n"

	points, stats, err := ReadCSV(context.Background(), strings.NewReader(input), DropoffSchema)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Zero(t, stats.Skipped)

	assert.Equal(t, time.Date(2016, 3, 5, 19, 15, 0, 0, time.UTC), points[0].Timestamp)
	assert.Equal(t, time.Date(2016, 3, 7, 12, 0, 0, 0, time.UTC), points[1].Timestamp.UTC())
	assert.False(t, points[2].HasTimestamp(), "unparseable times are left for the builder to reject")
}

func TestReadCSV_MissingColumns(t *testing.T) {
	_, _, err := ReadCSV(context.Background(), strings.NewReader("name,borough\nx,y\n"), RestaurantSchema)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing coordinate columns")

	_, _, err = ReadCSV(context.Background(), strings.NewReader("longitude,latitude\n1,2\n"), DropoffSchema)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing time column")

	_, _, err = ReadCSV(context.Background(), strings.NewReader(""), RestaurantSchema)
	require.Error(t, err)
}

func TestReadCSV_Charset(t *testing.T) {
	input := "name,latitude,longitude\n" + "Caf\xe9 Habana,40.7229,-73.9942\n"

	points, _, err := ReadCSV(context.Background(), strings.NewReader(input), RestaurantSchema.WithCharset("windows-1252"))
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "Café Habana", points[0].Name)

	_, _, err = ReadCSV(context.Background(), strings.NewReader(input), RestaurantSchema.WithCharset("klingon"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported charset")
}

func TestValidateCharset(t *testing.T) {
	assert.NoError(t, ValidateCharset(""))
	assert.NoError(t, ValidateCharset("latin1"))
	assert.Error(t, ValidateCharset("nope"))
}

func TestReadCSV_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := ReadCSV(ctx, strings.NewReader("longitude,latitude\n1,2\n"), RestaurantSchema)
	require.Error(t, err)
}

func TestParseTime(t *testing.T) {
	assert.Equal(t, time.Date(2024, 1, 2, 15, 4, 0, 0, time.UTC), ParseTime("2024-01-02 15:04"))
	assert.Equal(t, time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC), ParseTime("01/02/2024 03:04:05 PM"))
	assert.True(t, ParseTime("yesterday").IsZero())
}

func TestReadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restaurants.xlsx")
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, rec := range [][]string{
		{"Name", "Latitude", "Longitude"},
		{"Le Bernardin", "40.7615", "-73.9818"},
		{"Nowhere", "n/a", "n/a"},
	} {
		row := sheet.AddRow()
		for _, v := range rec {
			row.AddCell().SetString(v)
		}
	}
	require.NoError(t, f.Save(path))

	points, stats, err := ReadXLSX(path, RestaurantSchema)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "Le Bernardin", points[0].Name)
	assert.InDelta(t, -73.9818, points[0].Longitude, 1e-9)
	assert.Equal(t, Stats{Rows: 2, Skipped: 1}, stats)
}

func writeShapefile(t *testing.T, path string) {
	t.Helper()
	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("NAME", 32),
		shp.StringField("DATETIME", 32),
	}))
	rows := []struct {
		x, y     float64
		name, ts string
	}{
		{-73.98, 40.75, "Cafe One", "2024-03-06 19:00:00"},
		{-73.97, 40.76, "Cafe Two", "2024-03-09 12:30:00"},
	}
	for _, r := range rows {
		n := w.Write(&shp.Point{X: r.x, Y: r.y})
		require.NoError(t, w.WriteAttribute(int(n), 0, r.name))
		require.NoError(t, w.WriteAttribute(int(n), 1, r.ts))
	}
	w.Close()

	// The writer names the attribute table "<base>dbf"; the reader opens
	// "<base>.dbf".
	base := strings.TrimSuffix(path, ".shp")
	require.NoError(t, os.Rename(base+"dbf", base+".dbf"))

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer r.Close() //nolint:errcheck
	require.Len(t, r.Fields(), 2)
}

func TestReadShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.shp")
	writeShapefile(t, path)

	schema := DropoffSchema
	schema.Name = []string{"name"}
	schema.Time = []string{"datetime"}
	points, stats, err := ReadShapefile(path, schema)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 2, stats.Rows)

	assert.Equal(t, "Cafe One", points[0].Name)
	assert.InDelta(t, -73.98, points[0].Longitude, 1e-9)
	assert.InDelta(t, 40.75, points[0].Latitude, 1e-9)
	assert.Equal(t, time.Date(2024, 3, 9, 12, 30, 0, 0, time.UTC), points[1].Timestamp)
}

func TestReadShapefile_RequiresTimeField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.shp")
	writeShapefile(t, path)

	schema := DropoffSchema
	schema.Time = []string{"dropoff_datetime"}
	_, _, err := ReadShapefile(path, schema)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no time field")

	// Without a time requirement the same file reads fine.
	schema.TimeRequired = false
	points, _, err := ReadShapefile(path, schema)
	require.NoError(t, err)
	assert.Len(t, points, 2)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "restaurants.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("name,latitude,longitude\nA,40.7,-73.9\n"), 0o600))

	points, err := Open(context.Background(), csvPath, RestaurantSchema)
	require.NoError(t, err)
	require.Len(t, points, 1)

	shpPath := filepath.Join(dir, "points.shp")
	writeShapefile(t, shpPath)
	points, err = Open(context.Background(), shpPath, RestaurantSchema)
	require.NoError(t, err)
	assert.Len(t, points, 2)

	_, err = Open(context.Background(), filepath.Join(dir, "trips.parquet"), DropoffSchema)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")

	_, err = Open(context.Background(), filepath.Join(dir, "missing.csv"), RestaurantSchema)
	require.Error(t, err)
}
