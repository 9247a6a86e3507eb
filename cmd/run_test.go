package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dining-hotspots/internal/config"
	"github.com/sells-group/dining-hotspots/internal/export"
	"github.com/sells-group/dining-hotspots/internal/model"
	"github.com/sells-group/dining-hotspots/internal/store"
)

// setupConfig loads defaults from an empty directory and loosens the
// clustering thresholds to fit the small fixtures.
func setupConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })

	c, err := config.Load()
	require.NoError(t, err)
	c.Restaurants.MinClusterSize = 5
	c.Restaurants.MinSamples = 3
	c.Dropoffs.MinClusterSize = 5
	c.Dropoffs.MinSamples = 5
	c.Dropoffs.SampleFraction = 1
	c.Store.DatabaseURL = filepath.Join(dir, "hotspots.db")

	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
	return dir
}

func writeGrid(t *testing.T, path, header string, row func(lng, lat float64, i int) string) {
	t.Helper()
	var b strings.Builder
	b.WriteString(header + "\n")
	n := 0
	for i := range 3 {
		for j := range 3 {
			b.WriteString(row(-73.98+float64(i)*0.0001, 40.75+float64(j)*0.0001, n) + "\n")
			n++
		}
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}

func writeFixtures(t *testing.T, dir string) (restaurants, dropoffs string) {
	t.Helper()
	restaurants = filepath.Join(dir, "restaurants.csv")
	dropoffs = filepath.Join(dir, "dropoffs.csv")
	writeGrid(t, restaurants, "name,latitude,longitude", func(lng, lat float64, i int) string {
		return fmt.Sprintf("Diner %d,%f,%f", i, lat, lng)
	})
	// Wednesday 19:00 falls in the weekday dinner window.
	writeGrid(t, dropoffs, "tpep_dropoff_datetime,dropoff_longitude,dropoff_latitude", func(lng, lat float64, _ int) string {
		return fmt.Sprintf("2024-03-06 19:00:00,%f,%f", lng, lat)
	})
	return restaurants, dropoffs
}

func TestExecuteRun_EndToEnd(t *testing.T) {
	dir := setupConfig(t)
	restaurants, dropoffs := writeFixtures(t, dir)
	ctx := context.Background()

	st, err := initStore(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	outDir := filepath.Join(dir, "out")
	result, err := executeRun(ctx, runOptions{
		Restaurants: restaurants,
		Dropoffs:    dropoffs,
		OutputDir:   outDir,
	}, st)
	require.NoError(t, err)

	assert.NoError(t, result.DiningErr)
	assert.NoError(t, result.ArrivalErr)
	require.Len(t, result.DiningZones, 1)
	require.Len(t, result.ArrivalAreas, 1)
	require.Len(t, result.Hotspots, 1)
	assert.Equal(t, 9, result.Hotspots[0].RestaurantCount)
	assert.InDelta(t, 50.9, result.Hotspots[0].CombinedScore, 1e-9)

	for _, name := range []string{
		export.HotspotsFile, export.DiningFile, export.ArrivalFile,
		export.SummaryFile, export.SummaryYAML, export.WorkbookFile,
	} {
		assert.FileExists(t, filepath.Join(outDir, name))
	}

	saved, err := st.GetRun(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Summary.TotalHotspots)
	require.Len(t, saved.Hotspots, 1)
	assert.NotNil(t, saved.Hotspots[0].Geometry)

	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, result))
	var rep runReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rep))
	assert.Equal(t, result.RunID, rep.RunID)
	require.Len(t, rep.Top, 1)
	assert.Equal(t, "Dining Hotspot #1", rep.Top[0].Name)
	assert.Positive(t, rep.Top[0].AreaKM2)
	assert.Len(t, rep.Phases, 3)
}

func TestExecuteRun_WithoutStore(t *testing.T) {
	dir := setupConfig(t)
	restaurants, dropoffs := writeFixtures(t, dir)

	result, err := executeRun(context.Background(), runOptions{
		Restaurants: restaurants,
		Dropoffs:    dropoffs,
		OutputDir:   filepath.Join(dir, "out"),
	}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
}

func TestExecuteRun_DropoffsWithoutTimestamps(t *testing.T) {
	dir := setupConfig(t)
	restaurants, _ := writeFixtures(t, dir)
	dropoffs := filepath.Join(dir, "untimed.csv")
	writeGrid(t, dropoffs, "dropoff_longitude,dropoff_latitude,dropoff_datetime", func(lng, lat float64, _ int) string {
		return fmt.Sprintf("%f,%f,", lng, lat)
	})

	result, err := executeRun(context.Background(), runOptions{
		Restaurants: restaurants,
		Dropoffs:    dropoffs,
		OutputDir:   filepath.Join(dir, "out"),
	}, nil)
	require.NoError(t, err)

	var ie *model.InputError
	require.ErrorAs(t, result.ArrivalErr, &ie)
	assert.Equal(t, model.KindArrival, ie.Collection)
	assert.Len(t, result.DiningZones, 1)
	assert.Empty(t, result.Hotspots)
}

func TestExecuteRun_DropoffsMissingCoordinateColumn(t *testing.T) {
	dir := setupConfig(t)
	restaurants, _ := writeFixtures(t, dir)
	dropoffs := filepath.Join(dir, "no_latitude.csv")
	writeGrid(t, dropoffs, "tpep_dropoff_datetime,dropoff_longitude", func(lng, _ float64, _ int) string {
		return fmt.Sprintf("2024-03-06 19:00:00,%f", lng)
	})

	outDir := filepath.Join(dir, "out")
	result, err := executeRun(context.Background(), runOptions{
		Restaurants: restaurants,
		Dropoffs:    dropoffs,
		OutputDir:   outDir,
	}, nil)
	require.NoError(t, err)

	var ie *model.InputError
	require.ErrorAs(t, result.ArrivalErr, &ie)
	assert.Equal(t, model.KindArrival, ie.Collection)
	assert.Contains(t, ie.Reason, "missing coordinate columns")

	assert.NoError(t, result.DiningErr)
	assert.Len(t, result.DiningZones, 1)
	assert.Empty(t, result.ArrivalAreas)
	assert.Empty(t, result.Hotspots)
	assert.FileExists(t, filepath.Join(outDir, export.DiningFile))
	assert.FileExists(t, filepath.Join(outDir, export.SummaryFile))
}

func TestExecuteRun_RestaurantsFileMissing(t *testing.T) {
	dir := setupConfig(t)
	_, dropoffs := writeFixtures(t, dir)

	result, err := executeRun(context.Background(), runOptions{
		Restaurants: filepath.Join(dir, "nope.csv"),
		Dropoffs:    dropoffs,
		OutputDir:   filepath.Join(dir, "out"),
	}, nil)
	require.NoError(t, err)

	var ie *model.InputError
	require.ErrorAs(t, result.DiningErr, &ie)
	assert.Equal(t, model.KindDining, ie.Collection)
	assert.Len(t, result.ArrivalAreas, 1)
}

func TestExecuteRun_MissingFile(t *testing.T) {
	dir := setupConfig(t)
	_, err := executeRun(context.Background(), runOptions{
		Restaurants: filepath.Join(dir, "nope.csv"),
		Dropoffs:    filepath.Join(dir, "nope.csv"),
		OutputDir:   dir,
	}, nil)
	require.Error(t, err)
	var ie *model.InputError
	assert.ErrorAs(t, err, &ie)
}

func TestExecuteRun_InvalidConfig(t *testing.T) {
	dir := setupConfig(t)
	restaurants, dropoffs := writeFixtures(t, dir)
	cfg.Restaurants.BufferMeters = 0

	_, err := executeRun(context.Background(), runOptions{
		Restaurants: restaurants,
		Dropoffs:    dropoffs,
		OutputDir:   dir,
	}, nil)
	var pe *model.ParameterError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "dining.buffer_meters", pe.Field)
}

func TestZoneParamsFor(t *testing.T) {
	setupConfig(t)

	p, schema, err := zoneParamsFor(model.KindArrival)
	require.NoError(t, err)
	assert.Equal(t, model.KindArrival, p.Kind)
	assert.NotNil(t, p.Weighting)
	assert.True(t, schema.TimeRequired)

	p, _, err = zoneParamsFor(model.KindDining)
	require.NoError(t, err)
	assert.Nil(t, p.Weighting)

	_, _, err = zoneParamsFor("parking")
	assert.Error(t, err)
}

func TestInitStore_UnknownDriver(t *testing.T) {
	setupConfig(t)
	cfg.Store.Driver = "mysql"
	_, err := initStore(context.Background())
	assert.Error(t, err)
}

var _ store.Store = (*store.SQLiteStore)(nil)
