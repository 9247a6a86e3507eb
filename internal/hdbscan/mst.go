package hdbscan

import (
	"cmp"
	"math"
	"slices"

	"github.com/dhconnelly/rtreego"
	"github.com/golang/geo/s2"
	"golang.org/x/sync/errgroup"
)

// parallelPrimMin is the atom count from which each Prim step scans the
// frontier on several workers.
const parallelPrimMin = 2048

// chord is the straight-line distance between two points on the unit
// sphere. It is monotonic in the great-circle angle, so neighbour order and
// minimum spanning trees are the same in either metric.
func chord(a, b s2.Point) float64 {
	return a.Sub(b.Vector).Norm()
}

// chordAngle converts a unit-sphere chord into radians.
func chordAngle(c float64) float64 {
	return 2 * math.Asin(min(1, c/2))
}

// indexedAtom places an atom in a 3-D R-tree over its unit vector.
type indexedAtom struct {
	id   int
	rect rtreego.Rect
}

func (a *indexedAtom) Bounds() rtreego.Rect { return a.rect }

func newAtomIndex(atoms []atom) *rtreego.Rtree {
	objs := make([]rtreego.Spatial, len(atoms))
	for i, a := range atoms {
		objs[i] = &indexedAtom{id: i, rect: vectorPoint(a.v).ToRect(0)}
	}
	return rtreego.NewTree(3, 25, 50, objs...)
}

func vectorPoint(v s2.Point) rtreego.Point {
	return rtreego.Point{v.X, v.Y, v.Z}
}

type neighbour struct {
	id   int
	dist float64
}

// coreDistances returns, for every atom, the angle in radians at which its
// neighbourhood (itself included) first holds minSamples of mass.
func coreDistances(atoms []atom, minSamples, workers int) []float64 {
	core := coreChords(atoms, minSamples, workers)
	for i, c := range core {
		core[i] = chordAngle(c)
	}
	return core
}

// coreChords is coreDistances measured in unit-sphere chords. Every atom
// weighs at least 1, so the minSamples nearest atoms always suffice and
// each lookup is a k-nearest query on the index.
func coreChords(atoms []atom, minSamples, workers int) []float64 {
	core := make([]float64, len(atoms))
	if workers > len(atoms) {
		workers = len(atoms)
	}
	index := newAtomIndex(atoms)
	k := min(minSamples, len(atoms))

	var g errgroup.Group
	for w := range workers {
		g.Go(func() error {
			buf := make([]neighbour, 0, k)
			for i := w; i < len(atoms); i += workers {
				core[i] = coreChord(atoms, index, i, k, minSamples, buf[:0])
			}
			return nil
		})
	}
	_ = g.Wait()
	return core
}

func coreChord(atoms []atom, index *rtreego.Rtree, i, k, minSamples int, buf []neighbour) float64 {
	if atoms[i].mass >= minSamples {
		return 0
	}
	for _, obj := range index.NearestNeighbors(k, vectorPoint(atoms[i].v)) {
		j := obj.(*indexedAtom).id
		if j == i {
			continue
		}
		buf = append(buf, neighbour{id: j, dist: chord(atoms[i].v, atoms[j].v)})
	}
	slices.SortFunc(buf, func(a, b neighbour) int {
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	acc := atoms[i].mass
	for _, n := range buf {
		acc += atoms[n.id].mass
		if acc >= minSamples {
			return n.dist
		}
	}
	// Unreachable once the caller has checked total mass.
	return math.Inf(1)
}

type edge struct {
	a, b int
	dist float64
}

// primMST builds the minimum spanning tree of the mutual reachability graph
// without materializing the distance matrix. core holds chord core
// distances; edge weights are returned in radians.
func primMST(atoms []atom, core []float64, workers int) []edge {
	n := len(atoms)
	if n < 2 {
		return nil
	}
	inTree := make([]bool, n)
	best := make([]float64, n)
	from := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
	}

	// relax updates the frontier in [lo, hi) from current and returns the
	// closest outside atom there, lowest index first on ties.
	relax := func(current, lo, hi int) (int, float64) {
		next, nextDist := -1, math.Inf(1)
		for j := lo; j < hi; j++ {
			if inTree[j] {
				continue
			}
			d := max(chord(atoms[current].v, atoms[j].v), core[current], core[j])
			if d < best[j] {
				best[j] = d
				from[j] = current
			}
			if best[j] < nextDist {
				next, nextDist = j, best[j]
			}
		}
		return next, nextDist
	}

	if n < parallelPrimMin || workers < 2 {
		workers = 1
	}
	span := (n + workers - 1) / workers
	nexts := make([]int, workers)
	dists := make([]float64, workers)

	edges := make([]edge, 0, n-1)
	current := 0
	inTree[0] = true
	for len(edges) < n-1 {
		if workers == 1 {
			nexts[0], dists[0] = relax(current, 0, n)
		} else {
			var g errgroup.Group
			for w := range workers {
				g.Go(func() error {
					nexts[w], dists[w] = relax(current, w*span, min(n, (w+1)*span))
					return nil
				})
			}
			_ = g.Wait()
		}

		next, nextDist := -1, math.Inf(1)
		for w := range workers {
			if nexts[w] >= 0 && dists[w] < nextDist {
				next, nextDist = nexts[w], dists[w]
			}
		}
		inTree[next] = true
		edges = append(edges, edge{a: from[next], b: next, dist: chordAngle(nextDist)})
		current = next
	}
	return edges
}

// linkage is a single-linkage dendrogram. Ids below n are atoms; id n+k is
// nodes[k].
type linkage struct {
	n     int
	nodes []linkNode
	mass  []int
	size  []int
}

type linkNode struct {
	left, right int
	dist        float64
}

func (l *linkage) root() int {
	if len(l.nodes) == 0 {
		return 0
	}
	return l.n + len(l.nodes) - 1
}

func (l *linkage) isLeaf(id int) bool { return id < l.n }

func (l *linkage) node(id int) linkNode { return l.nodes[id-l.n] }

// buildLinkage merges MST edges in ascending order with a union-find.
func buildLinkage(atoms []atom, edges []edge) *linkage {
	n := len(atoms)
	sorted := slices.Clone(edges)
	slices.SortStableFunc(sorted, func(a, b edge) int { return cmp.Compare(a.dist, b.dist) })

	l := &linkage{
		n:     n,
		nodes: make([]linkNode, 0, len(sorted)),
		mass:  make([]int, n, 2*n),
		size:  make([]int, n, 2*n),
	}
	for i, a := range atoms {
		l.mass[i] = a.mass
		l.size[i] = len(a.members)
	}

	parent := make([]int, n, 2*n)
	for i := range parent {
		parent[i] = i
	}
	find := func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	for _, e := range sorted {
		ra, rb := find(e.a), find(e.b)
		id := n + len(l.nodes)
		l.nodes = append(l.nodes, linkNode{left: ra, right: rb, dist: e.dist})
		l.mass = append(l.mass, l.mass[ra]+l.mass[rb])
		l.size = append(l.size, l.size[ra]+l.size[rb])
		parent = append(parent, id)
		parent[ra] = id
		parent[rb] = id
	}
	return l
}
