package weighting

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/sells-group/dining-hotspots/internal/model"
)

// Builder turns raw drop-off points into weighted points. Sampling happens
// before weighting so the weight distribution of the sample is unbiased.
type Builder struct {
	table    Table
	classify Classifier
	fraction float64
	seed     uint64
}

// Option configures a Builder.
type Option func(*Builder)

// WithClassifier overrides the weekday/weekend classifier.
func WithClassifier(c Classifier) Option {
	return func(b *Builder) {
		if c != nil {
			b.classify = c
		}
	}
}

// WithSampleFraction keeps a uniform random fraction of the input. Values
// outside (0, 1) keep everything.
func WithSampleFraction(f float64) Option {
	return func(b *Builder) {
		b.fraction = f
	}
}

// WithSeed sets the sampling seed.
func WithSeed(seed uint64) Option {
	return func(b *Builder) {
		b.seed = seed
	}
}

// NewBuilder creates a Builder for the given table.
func NewBuilder(table Table, opts ...Option) *Builder {
	b := &Builder{table: table, classify: ClassifyWeekend, fraction: 1}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildStats counts points at each step of Build.
type BuildStats struct {
	Input   int `json:"input"`
	Sampled int `json:"sampled"`
	Kept    int `json:"kept"`
}

// Build samples, weighs, and drops zero-weight points. Every input point must
// carry a timestamp.
func (b *Builder) Build(points []model.RawPoint) ([]model.WeightedPoint, BuildStats, error) {
	stats := BuildStats{Input: len(points)}
	for i, p := range points {
		if !p.HasTimestamp() {
			return nil, stats, model.NewInputError(model.KindArrival, "point %d has no timestamp", i)
		}
	}

	sampled := Sample(points, b.fraction, b.seed)
	stats.Sampled = len(sampled)

	out := make([]model.WeightedPoint, 0, len(sampled))
	for _, p := range sampled {
		w := b.table.Weight(p.Timestamp, b.classify(p.Timestamp))
		if w <= 0 {
			continue
		}
		out = append(out, model.WeightedPoint{
			Longitude: p.Longitude,
			Latitude:  p.Latitude,
			Weight:    w,
			Name:      p.Name,
		})
	}
	stats.Kept = len(out)
	return out, stats, nil
}

// Passthrough weighs every point 1. Used for inputs without a temporal signal.
func Passthrough(points []model.RawPoint) []model.WeightedPoint {
	out := make([]model.WeightedPoint, len(points))
	for i, p := range points {
		out[i] = model.WeightedPoint{Longitude: p.Longitude, Latitude: p.Latitude, Weight: 1, Name: p.Name}
	}
	return out
}

// Sample returns round(fraction*len(points)) points drawn uniformly without
// replacement, in their original order. A fraction outside (0, 1) returns the
// input unchanged. The same seed always yields the same sample.
func Sample(points []model.RawPoint, fraction float64, seed uint64) []model.RawPoint {
	if fraction <= 0 || fraction >= 1 || len(points) == 0 {
		return points
	}
	k := int(math.Round(fraction * float64(len(points))))
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	idx := r.Perm(len(points))[:k]
	slices.Sort(idx)

	out := make([]model.RawPoint, k)
	for i, j := range idx {
		out[i] = points[j]
	}
	return out
}

// Multiplicity is the number of coincident copies a point of the given weight
// contributes to clustering at scale K: round-half-up of weight*K, so 0.05 at
// K=10 gives 1 and 0.04 gives 0.
func Multiplicity(weight float64, scale int) int {
	if weight <= 0 || scale <= 0 {
		return 0
	}
	return int(math.Floor(weight*float64(scale) + 0.5))
}
