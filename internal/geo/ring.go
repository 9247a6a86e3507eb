package geo

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// coordEps is the tolerance, in degrees, under which two vertices are
// considered the same.
const coordEps = 1e-12

// Vertices returns the distinct vertices of a flat XY coordinate list,
// dropping consecutive duplicates and the closing vertex of a ring.
func Vertices(flat []float64) []geom.Coord {
	out := make([]geom.Coord, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		c := geom.Coord{flat[i], flat[i+1]}
		if n := len(out); n > 0 && samePoint(out[n-1], c) {
			continue
		}
		out = append(out, c)
	}
	if n := len(out); n > 1 && samePoint(out[0], out[n-1]) {
		out = out[:n-1]
	}
	return out
}

// ExteriorRing returns the distinct vertices of a polygon's outer ring.
func ExteriorRing(p *geom.Polygon) []geom.Coord {
	if p == nil || p.NumLinearRings() == 0 {
		return nil
	}
	return Vertices(p.LinearRing(0).FlatCoords())
}

// SignedArea returns the shoelace area of an open ring; positive when the
// ring is counter-clockwise.
func SignedArea(ring []geom.Coord) float64 {
	var sum float64
	for i := range ring {
		j := (i + 1) % len(ring)
		sum += ring[i][0]*ring[j][1] - ring[j][0]*ring[i][1]
	}
	return sum / 2
}

// NewPolygon builds a closed counter-clockwise polygon from an open ring.
func NewPolygon(ring []geom.Coord) (*geom.Polygon, error) {
	if len(ring) < 3 {
		return nil, eris.Errorf("geo: ring needs at least 3 vertices, got %d", len(ring))
	}
	area := SignedArea(ring)
	if math.Abs(area) < coordEps*coordEps {
		return nil, eris.New("geo: ring has zero area")
	}

	ordered := make([]geom.Coord, len(ring))
	copy(ordered, ring)
	if area < 0 {
		for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		}
	}

	flat := make([]float64, 0, 2*len(ordered)+2)
	for _, c := range ordered {
		flat = append(flat, c[0], c[1])
	}
	flat = append(flat, ordered[0][0], ordered[0][1])
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}), nil
}

// IsConvex reports whether an open ring turns the same way at every vertex.
func IsConvex(ring []geom.Coord) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	var sign float64
	for i := range ring {
		a, b, c := ring[i], ring[(i+1)%n], ring[(i+2)%n]
		cross := (b[0]-a[0])*(c[1]-b[1]) - (b[1]-a[1])*(c[0]-b[0])
		if math.Abs(cross) < coordEps*coordEps {
			continue
		}
		if sign == 0 {
			sign = cross
			continue
		}
		if (cross > 0) != (sign > 0) {
			return false
		}
	}
	return sign != 0
}

func samePoint(a, b geom.Coord) bool {
	return math.Abs(a[0]-b[0]) <= coordEps && math.Abs(a[1]-b[1]) <= coordEps
}
