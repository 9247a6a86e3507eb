package overlay

import (
	"github.com/twpayne/go-geom"
)

// clipConvex intersects subject with a convex counter-clockwise clip ring
// (Sutherland-Hodgman). Both rings are open. The result may be degenerate;
// callers check its area.
func clipConvex(subject, clip []geom.Coord) []geom.Coord {
	out := subject
	for i := range clip {
		if len(out) == 0 {
			return nil
		}
		a, b := clip[i], clip[(i+1)%len(clip)]
		in := out
		out = make([]geom.Coord, 0, len(in)+1)
		for j := range in {
			cur, prev := in[j], in[(j+len(in)-1)%len(in)]
			curIn, prevIn := inside(a, b, cur), inside(a, b, prev)
			switch {
			case curIn && prevIn:
				out = append(out, cur)
			case curIn:
				out = append(out, crossing(a, b, prev, cur), cur)
			case prevIn:
				out = append(out, crossing(a, b, prev, cur))
			}
		}
	}
	return out
}

// inside reports whether p is on or left of the directed edge a->b.
func inside(a, b, p geom.Coord) bool {
	return (b[0]-a[0])*(p[1]-a[1])-(b[1]-a[1])*(p[0]-a[0]) >= 0
}

// crossing returns where segment p->q crosses the line through a and b.
func crossing(a, b, p, q geom.Coord) geom.Coord {
	ex, ey := b[0]-a[0], b[1]-a[1]
	dx, dy := q[0]-p[0], q[1]-p[1]
	den := ex*dy - ey*dx
	if den == 0 {
		return p
	}
	t := (ex*(a[1]-p[1]) - ey*(a[0]-p[0])) / den
	return geom.Coord{p[0] + t*dx, p[1] + t*dy}
}
