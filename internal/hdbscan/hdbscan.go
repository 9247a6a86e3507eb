// Package hdbscan clusters geographic points by hierarchical density.
//
// Distances are great-circle angles in radians. Each input point may stand
// for several coincident copies (its multiplicity); coincident copies are
// collapsed into a single weighted leaf so that weighting by duplication
// costs nothing beyond the distinct locations. Clusters are extracted from
// the condensed tree by excess of mass, then merged upward until every
// selected cluster was born above the epsilon distance.
package hdbscan

import (
	"math"
	"runtime"

	"github.com/golang/geo/s2"

	"github.com/sells-group/dining-hotspots/internal/model"
)

// Noise labels points that belong to no cluster.
const Noise = -1

// minDistance floors distances before inverting them into lambdas so that
// fully coincident leaves get a large but finite density.
const minDistance = 1e-10

// Point is one input location in degrees.
type Point struct {
	Lng          float64
	Lat          float64
	Multiplicity int
}

// Params tunes the clustering.
type Params struct {
	// MinClusterSize is the minimum number of input points in a cluster.
	// Multiplicity adds density, not size, so one heavy location can never
	// form a cluster on its own.
	MinClusterSize int
	// MinSamples is the neighbourhood mass, multiplicity counted and self
	// included, that defines a point's core distance.
	MinSamples int
	// Epsilon is the cluster selection distance in radians. Selected
	// clusters born below it are merged into their nearest ancestor born
	// above it.
	Epsilon float64
	// Workers bounds core-distance parallelism; 0 means GOMAXPROCS.
	Workers int
}

// Validate rejects non-positive sizes and a negative epsilon.
func (p Params) Validate() error {
	if p.MinClusterSize <= 0 {
		return model.NewParameterError("min_cluster_size", "must be positive, got %d", p.MinClusterSize)
	}
	if p.MinSamples <= 0 {
		return model.NewParameterError("min_samples", "must be positive, got %d", p.MinSamples)
	}
	if p.Epsilon < 0 || math.IsNaN(p.Epsilon) {
		return model.NewParameterError("epsilon", "must be >= 0, got %g", p.Epsilon)
	}
	return nil
}

func (p Params) workers() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// atom is a distinct location: all input points that share it exactly.
type atom struct {
	ll      s2.LatLng
	v       s2.Point
	mass    int
	members []int
}

// Cluster labels every input point with a cluster id or Noise. Points with a
// multiplicity of zero or less never influence the result and are always
// Noise. Cluster ids are dense from 0, numbered by each cluster's lowest
// input index; only membership is meaningful.
func Cluster(points []Point, p Params) ([]int, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = Noise
	}

	atoms := collapse(points)
	mass, size := 0, 0
	for _, a := range atoms {
		mass += a.mass
		size += len(a.members)
	}
	if len(atoms) == 0 || size < p.MinClusterSize || mass < p.MinSamples {
		return labels, nil
	}

	chords := coreChords(atoms, p.MinSamples, p.workers())
	edges := primMST(atoms, chords, p.workers())
	core := make([]float64, len(chords))
	for i, c := range chords {
		core[i] = chordAngle(c)
	}
	tree := buildLinkage(atoms, edges)
	ct := condense(tree, atoms, core, p.MinClusterSize)
	selected := ct.selectEOM()
	selected = ct.applyEpsilon(selected, p.Epsilon)

	atomLabels := ct.label(selected, len(atoms), p.Epsilon)
	for ai, l := range atomLabels {
		if l == Noise {
			continue
		}
		for _, idx := range atoms[ai].members {
			labels[idx] = l
		}
	}
	return relabel(labels, p.MinClusterSize), nil
}

// collapse groups points with identical coordinates, in first-seen order.
func collapse(points []Point) []atom {
	index := make(map[[2]float64]int, len(points))
	var atoms []atom
	for i, pt := range points {
		if pt.Multiplicity <= 0 {
			continue
		}
		key := [2]float64{pt.Lng, pt.Lat}
		ai, ok := index[key]
		if !ok {
			ai = len(atoms)
			index[key] = ai
			ll := s2.LatLngFromDegrees(pt.Lat, pt.Lng)
			atoms = append(atoms, atom{ll: ll, v: s2.PointFromLatLng(ll)})
		}
		atoms[ai].mass += pt.Multiplicity
		atoms[ai].members = append(atoms[ai].members, i)
	}
	return atoms
}

// relabel renumbers clusters by their first member. Clusters left with fewer
// than minSize points, which the root can produce when epsilon trims it,
// become noise.
func relabel(labels []int, minSize int) []int {
	counts := make(map[int]int)
	for _, l := range labels {
		if l != Noise {
			counts[l]++
		}
	}
	next := 0
	mapping := make(map[int]int)
	for i, l := range labels {
		if l == Noise {
			continue
		}
		if counts[l] < minSize {
			labels[i] = Noise
			continue
		}
		m, ok := mapping[l]
		if !ok {
			m = next
			mapping[l] = m
			next++
		}
		labels[i] = m
	}
	return labels
}

func lambda(d float64) float64 {
	if d < minDistance {
		d = minDistance
	}
	return 1 / d
}
