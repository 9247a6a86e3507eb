// Package zone turns point collections into buffered cluster polygons.
package zone

import (
	"math"
	"runtime"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dining-hotspots/internal/geo"
	"github.com/sells-group/dining-hotspots/internal/hdbscan"
	"github.com/sells-group/dining-hotspots/internal/model"
	"github.com/sells-group/dining-hotspots/internal/weighting"
)

// MaxSampleNames caps the names carried on a zone.
const MaxSampleNames = 10

// Params configures one BuildZones call.
type Params struct {
	Kind           model.ZoneKind
	MinClusterSize int
	MinSamples     int
	EpsilonMeters  float64
	BufferMeters   float64
	// Region, when set, drops points outside it before clustering.
	Region geo.Region
	// Weighting, when set, samples and weighs the points by timestamp and
	// expands each into Scale-proportional copies. Unweighted points count
	// once each.
	Weighting *WeightingParams
	Workers   int
}

// WeightingParams configures time-of-day weighting.
type WeightingParams struct {
	Table          weighting.Table
	Classifier     weighting.Classifier
	SampleFraction float64
	Seed           uint64
	Scale          int
}

// Validate checks every tunable before any clustering work starts.
func (p Params) Validate() error {
	prefix := string(p.Kind) + "."
	if p.MinClusterSize <= 0 {
		return model.NewParameterError(prefix+"min_cluster_size", "must be positive, got %d", p.MinClusterSize)
	}
	if p.MinSamples <= 0 {
		return model.NewParameterError(prefix+"min_samples", "must be positive, got %d", p.MinSamples)
	}
	if p.EpsilonMeters < 0 || math.IsNaN(p.EpsilonMeters) {
		return model.NewParameterError(prefix+"epsilon_meters", "must be >= 0, got %g", p.EpsilonMeters)
	}
	if p.BufferMeters <= 0 || math.IsNaN(p.BufferMeters) {
		return model.NewParameterError(prefix+"buffer_meters", "must be positive, got %g", p.BufferMeters)
	}
	if w := p.Weighting; w != nil {
		if w.Scale <= 0 {
			return model.NewParameterError(prefix+"weight_scale", "must be positive, got %d", w.Scale)
		}
		if w.SampleFraction <= 0 || w.SampleFraction > 1 || math.IsNaN(w.SampleFraction) {
			return model.NewParameterError(prefix+"sample_fraction", "must be in (0, 1], got %g", w.SampleFraction)
		}
		if err := w.Table.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Stats counts points through each BuildZones step.
type Stats struct {
	Input    int `json:"input"`
	InRegion int `json:"in_region"`
	Sampled  int `json:"sampled"`
	Weighted int `json:"weighted"`
	Expanded int `json:"expanded"`
	Clusters int `json:"clusters"`
	Noise    int `json:"noise"`
}

// BuildZones clusters points and returns one polygon per cluster, ordered by
// cluster id. No clusters is a valid, empty result.
func BuildZones(points []model.RawPoint, p Params) ([]model.ZonePolygon, Stats, error) {
	log := zap.L().With(zap.String("component", "zone.producer"), zap.String("kind", string(p.Kind)))
	stats := Stats{Input: len(points)}

	if err := p.Validate(); err != nil {
		return nil, stats, err
	}
	if len(points) == 0 {
		return nil, stats, model.NewInputError(p.Kind, "no points")
	}
	for i, pt := range points {
		if !pt.Valid() {
			return nil, stats, model.NewInputError(p.Kind, "point %d has invalid coordinates (%g, %g)", i, pt.Longitude, pt.Latitude)
		}
	}

	inRegion := points
	if p.Region != nil {
		inRegion = make([]model.RawPoint, 0, len(points))
		for _, pt := range points {
			if p.Region.Contains(pt.Longitude, pt.Latitude) {
				inRegion = append(inRegion, pt)
			}
		}
		if len(inRegion) == 0 {
			return nil, stats, model.NewInputError(p.Kind, "all %d points fall outside the region", len(points))
		}
	}
	stats.InRegion = len(inRegion)

	weighted, mult, err := p.weigh(inRegion, &stats)
	if err != nil {
		return nil, stats, err
	}

	hp := make([]hdbscan.Point, len(weighted))
	for i, w := range weighted {
		hp[i] = hdbscan.Point{Lng: w.Longitude, Lat: w.Latitude, Multiplicity: mult[i]}
		stats.Expanded += mult[i]
	}
	labels, err := hdbscan.Cluster(hp, hdbscan.Params{
		MinClusterSize: p.MinClusterSize,
		MinSamples:     p.MinSamples,
		Epsilon:        geo.MetersToRadians(p.EpsilonMeters),
		Workers:        p.Workers,
	})
	if err != nil {
		return nil, stats, eris.Wrap(err, "zone: cluster")
	}

	clusters := group(weighted, labels)
	stats.Clusters = len(clusters)
	for _, l := range labels {
		if l == hdbscan.Noise {
			stats.Noise++
		}
	}

	zones := make([]model.ZonePolygon, len(clusters))
	g := new(errgroup.Group)
	g.SetLimit(p.workers())
	for i, c := range clusters {
		g.Go(func() error {
			poly, err := Synthesize(c.Members, p.BufferMeters)
			if err != nil {
				return eris.Wrapf(err, "zone: synthesize %s cluster %d", p.Kind, c.Label)
			}
			centroid, err := Centroid(poly)
			if err != nil {
				return err
			}
			zones[i] = model.ZonePolygon{
				ID:          c.Label,
				Kind:        p.Kind,
				Geometry:    poly,
				SourceCount: len(c.Members),
				Centroid:    centroid,
				SampleNames: c.Names,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	log.Info("zones built",
		zap.Int("input", stats.Input),
		zap.Int("in_region", stats.InRegion),
		zap.Int("weighted", stats.Weighted),
		zap.Int("expanded", stats.Expanded),
		zap.Int("clusters", stats.Clusters),
		zap.Int("noise", stats.Noise),
	)
	return zones, stats, nil
}

// weigh applies the optional weighting step and returns each kept point's
// multiplicity.
func (p Params) weigh(points []model.RawPoint, stats *Stats) ([]model.WeightedPoint, []int, error) {
	if p.Weighting == nil {
		weighted := weighting.Passthrough(points)
		mult := make([]int, len(weighted))
		for i := range mult {
			mult[i] = 1
		}
		stats.Sampled = len(points)
		stats.Weighted = len(weighted)
		return weighted, mult, nil
	}

	w := p.Weighting
	b := weighting.NewBuilder(w.Table,
		weighting.WithClassifier(w.Classifier),
		weighting.WithSampleFraction(w.SampleFraction),
		weighting.WithSeed(w.Seed),
	)
	weighted, bs, err := b.Build(points)
	if err != nil {
		return nil, nil, eris.Wrap(err, "zone: weigh")
	}
	stats.Sampled = bs.Sampled
	stats.Weighted = bs.Kept

	mult := make([]int, len(weighted))
	for i, wp := range weighted {
		mult[i] = weighting.Multiplicity(wp.Weight, w.Scale)
	}
	return weighted, mult, nil
}

func (p Params) workers() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// group collects the members of each labelled cluster in label order, along
// with up to MaxSampleNames distinct non-empty names.
func group(points []model.WeightedPoint, labels []int) []model.Cluster {
	k := 0
	for _, l := range labels {
		k = max(k, l+1)
	}
	clusters := make([]model.Cluster, k)
	seen := make([]map[string]bool, k)
	for i := range clusters {
		clusters[i].Label = i
		seen[i] = make(map[string]bool)
	}
	for i, l := range labels {
		if l == hdbscan.Noise {
			continue
		}
		pt := points[i]
		c := &clusters[l]
		c.Members = append(c.Members, pt.Coord())
		if pt.Name != "" && !seen[l][pt.Name] && len(c.Names) < MaxSampleNames {
			seen[l][pt.Name] = true
			c.Names = append(c.Names, pt.Name)
		}
	}
	return clusters
}
