package hdbscan

// condensed is the cluster tree that remains after every split producing a
// side with fewer input points than the minimum cluster size is treated as
// points falling out of the parent. Cluster 0 is the root; parents precede their children.
type condensed struct {
	clusters []ctCluster
	// fallCluster and fallLambda record, per atom, the cluster it left and
	// the density at which it left.
	fallCluster []int
	fallLambda  []float64
	mass        []int
}

type ctCluster struct {
	parent   int
	birth    float64
	mass     int
	children []int
	// fallen is the sum of (lambda - birth) * mass over atoms leaving directly.
	fallen float64
}

type frame struct {
	node    int
	cluster int
}

func condense(l *linkage, atoms []atom, core []float64, minSize int) *condensed {
	ct := &condensed{
		fallCluster: make([]int, len(atoms)),
		fallLambda:  make([]float64, len(atoms)),
		mass:        make([]int, len(atoms)),
	}
	for i, a := range atoms {
		ct.mass[i] = a.mass
	}

	root := l.root()
	ct.clusters = append(ct.clusters, ctCluster{parent: -1, mass: l.mass[root]})

	stack := []frame{{node: root, cluster: 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if l.isLeaf(f.node) {
			ct.fall(f.node, f.cluster, lambda(core[f.node]))
			continue
		}

		n := l.node(f.node)
		lam := lambda(n.dist)
		bigLeft := l.size[n.left] >= minSize
		bigRight := l.size[n.right] >= minSize

		switch {
		case bigLeft && bigRight:
			left := ct.birth(f.cluster, lam, l.mass[n.left])
			right := ct.birth(f.cluster, lam, l.mass[n.right])
			stack = append(stack, frame{n.right, right}, frame{n.left, left})
		case bigLeft:
			ct.fallSubtree(l, n.right, f.cluster, lam)
			stack = append(stack, frame{n.left, f.cluster})
		case bigRight:
			ct.fallSubtree(l, n.left, f.cluster, lam)
			stack = append(stack, frame{n.right, f.cluster})
		default:
			ct.fallSubtree(l, n.left, f.cluster, lam)
			ct.fallSubtree(l, n.right, f.cluster, lam)
		}
	}
	return ct
}

func (ct *condensed) birth(parent int, lam float64, mass int) int {
	id := len(ct.clusters)
	ct.clusters = append(ct.clusters, ctCluster{parent: parent, birth: lam, mass: mass})
	ct.clusters[parent].children = append(ct.clusters[parent].children, id)
	return id
}

func (ct *condensed) fall(a, cluster int, lam float64) {
	c := &ct.clusters[cluster]
	if lam < c.birth {
		lam = c.birth
	}
	ct.fallCluster[a] = cluster
	ct.fallLambda[a] = lam
	c.fallen += (lam - c.birth) * float64(ct.mass[a])
}

func (ct *condensed) fallSubtree(l *linkage, node, cluster int, lam float64) {
	stack := []int{node}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if l.isLeaf(id) {
			ct.fall(id, cluster, lam)
			continue
		}
		n := l.node(id)
		stack = append(stack, n.left, n.right)
	}
}

func (ct *condensed) stability(c int) float64 {
	cl := ct.clusters[c]
	s := cl.fallen
	for _, ch := range cl.children {
		child := ct.clusters[ch]
		s += (child.birth - cl.birth) * float64(child.mass)
	}
	return s
}

// selectEOM picks the set of clusters maximizing total stability with no
// selected cluster nested in another. The root competes only when it never
// split.
func (ct *condensed) selectEOM() map[int]bool {
	selected := make(map[int]bool)
	if len(ct.clusters[0].children) == 0 {
		selected[0] = true
		return selected
	}

	best := make([]float64, len(ct.clusters))
	for c := len(ct.clusters) - 1; c > 0; c-- {
		own := ct.stability(c)
		children := ct.clusters[c].children
		if len(children) == 0 {
			selected[c] = true
			best[c] = own
			continue
		}
		var sum float64
		for _, ch := range children {
			sum += best[ch]
		}
		if own >= sum {
			selected[c] = true
			best[c] = own
			ct.deselectBelow(c, selected)
		} else {
			best[c] = sum
		}
	}
	return selected
}

func (ct *condensed) deselectBelow(c int, selected map[int]bool) {
	stack := append([]int(nil), ct.clusters[c].children...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		delete(selected, id)
		stack = append(stack, ct.clusters[id].children...)
	}
}

// birthDistance is the distance at which a cluster split off its parent.
func (ct *condensed) birthDistance(c int) float64 {
	b := ct.clusters[c].birth
	if b <= 0 {
		return maxDistance
	}
	return 1 / b
}

// maxDistance stands in for the root's infinite birth distance.
const maxDistance = 1e300

// applyEpsilon replaces every selected cluster born closer than eps with its
// nearest ancestor born farther than eps, stopping below the root.
func (ct *condensed) applyEpsilon(selected map[int]bool, eps float64) map[int]bool {
	if eps <= 0 || selected[0] {
		return selected
	}

	out := make(map[int]bool, len(selected))
	for c := range selected {
		if ct.birthDistance(c) >= eps {
			out[c] = true
			continue
		}
		cur := c
		for {
			parent := ct.clusters[cur].parent
			if parent <= 0 {
				break
			}
			cur = parent
			if ct.birthDistance(cur) > eps {
				break
			}
		}
		out[cur] = true
	}

	for c := range out {
		for p := ct.clusters[c].parent; p > 0; p = ct.clusters[p].parent {
			if out[p] {
				delete(out, c)
				break
			}
		}
	}
	return out
}

// label maps each atom to the id of the selected cluster it belongs to, or
// Noise. Ids here are internal cluster indexes.
func (ct *condensed) label(selected map[int]bool, n int, eps float64) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = Noise
	}

	if selected[0] {
		ct.labelRoot(out, eps)
		return out
	}

	for a := range n {
		for c := ct.fallCluster[a]; c > 0; c = ct.clusters[c].parent {
			if selected[c] {
				out[a] = c
				break
			}
		}
	}
	return out
}

// labelRoot keeps the atoms that are dense enough when the whole input is a
// single cluster: those falling within eps, or, without an epsilon, those
// at the peak density.
func (ct *condensed) labelRoot(out []int, eps float64) {
	if eps > 0 {
		for a, lam := range ct.fallLambda {
			if 1/lam <= eps {
				out[a] = 0
			}
		}
		return
	}
	var peak float64
	for _, lam := range ct.fallLambda {
		peak = max(peak, lam)
	}
	for a, lam := range ct.fallLambda {
		if lam >= peak {
			out[a] = 0
		}
	}
}
