package weighting

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dining-hotspots/internal/model"
)

func TestMultiplicity_RoundHalfUp(t *testing.T) {
	tests := []struct {
		weight float64
		scale  int
		want   int
	}{
		{0.05, 10, 1}, // 0.5 rounds up
		{0.04, 10, 0},
		{0.8, 10, 8},
		{0.9, 10, 9},
		{1.0, 10, 10},
		{0.25, 10, 3}, // 2.5 rounds up
		{0, 10, 0},
		{1.0, 0, 0},
		{-0.5, 10, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Multiplicity(tt.weight, tt.scale), "weight=%g scale=%d", tt.weight, tt.scale)
	}
}

func TestBuilder_Build_DropsZeroWeight(t *testing.T) {
	points := []model.RawPoint{
		{Longitude: -73.98, Latitude: 40.75, Timestamp: weekdayAt(12, 0)}, // lunch
		{Longitude: -73.97, Latitude: 40.76, Timestamp: weekdayAt(16, 0)}, // gap
		{Longitude: -73.96, Latitude: 40.77, Timestamp: weekendAt(19, 0)}, // dinner
		{Longitude: -73.95, Latitude: 40.78, Timestamp: weekendAt(4, 0)},  // night
	}

	out, stats, err := NewBuilder(DefaultTable()).Build(points)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.InDelta(t, 0.8, out[0].Weight, 1e-9)
	assert.InDelta(t, -73.98, out[0].Longitude, 1e-9)
	assert.InDelta(t, 1.0, out[1].Weight, 1e-9)
	assert.Equal(t, BuildStats{Input: 4, Sampled: 4, Kept: 2}, stats)
}

func TestBuilder_Build_MissingTimestamp(t *testing.T) {
	points := []model.RawPoint{
		{Longitude: -73.98, Latitude: 40.75, Timestamp: weekdayAt(12, 0)},
		{Longitude: -73.97, Latitude: 40.76},
	}

	_, _, err := NewBuilder(DefaultTable()).Build(points)
	require.Error(t, err)
	var ie *model.InputError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, model.KindArrival, ie.Collection)
	assert.Contains(t, ie.Reason, "point 1")
}

func TestBuilder_CustomClassifier(t *testing.T) {
	points := []model.RawPoint{{Longitude: 1, Latitude: 1, Timestamp: weekdayAt(12, 30)}}
	alwaysWeekend := func(time.Time) DayType { return Weekend }

	out, _, err := NewBuilder(DefaultTable(), WithClassifier(alwaysWeekend)).Build(points)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.InDelta(t, 0.9, out[0].Weight, 1e-9)
}

func TestSample_DeterministicAndOrdered(t *testing.T) {
	points := make([]model.RawPoint, 100)
	for i := range points {
		points[i] = model.RawPoint{Longitude: float64(i), Latitude: 0}
	}

	a := Sample(points, 0.1, 42)
	b := Sample(points, 0.1, 42)
	require.Len(t, a, 10)
	assert.Equal(t, a, b)
	for i := 1; i < len(a); i++ {
		assert.Less(t, a[i-1].Longitude, a[i].Longitude, "sample keeps input order")
	}

	c := Sample(points, 0.1, 7)
	assert.NotEqual(t, a, c)
}

func TestSample_FullFractionIsIdentity(t *testing.T) {
	points := []model.RawPoint{{Longitude: 1}, {Longitude: 2}}
	assert.Equal(t, points, Sample(points, 1.0, 1))
	assert.Equal(t, points, Sample(points, 0, 1))
}

func TestBuilder_SamplesBeforeWeighting(t *testing.T) {
	points := make([]model.RawPoint, 50)
	for i := range points {
		points[i] = model.RawPoint{Longitude: float64(i), Latitude: 0, Timestamp: weekdayAt(19, 0)}
	}

	out, stats, err := NewBuilder(DefaultTable(), WithSampleFraction(0.5), WithSeed(3)).Build(points)
	require.NoError(t, err)
	assert.Equal(t, 25, stats.Sampled)
	assert.Len(t, out, 25)
}

func TestPassthrough(t *testing.T) {
	out := Passthrough([]model.RawPoint{{Longitude: 1, Latitude: 2, Name: "Joe's"}})
	require.Len(t, out, 1)
	assert.Equal(t, model.WeightedPoint{Longitude: 1, Latitude: 2, Weight: 1, Name: "Joe's"}, out[0])
}
