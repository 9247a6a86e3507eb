package zone

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/sells-group/dining-hotspots/internal/geo"
	"github.com/sells-group/dining-hotspots/internal/model"
)

// bufferSegments is the number of vertices approximating each buffer circle.
const bufferSegments = 32

// Synthesize builds the polygon covering a cluster: the convex hull of its
// members grown outward by bufferMeters. Clusters with one or two distinct
// locations still produce a polygon as long as the buffer is positive.
func Synthesize(members []model.Coord, bufferMeters float64) (*geom.Polygon, error) {
	if len(members) == 0 {
		return nil, eris.New("zone: cluster has no members")
	}
	if bufferMeters < 0 || math.IsNaN(bufferMeters) {
		return nil, eris.Errorf("zone: invalid buffer %g", bufferMeters)
	}

	var meanLat float64
	flat := make([]float64, 0, 2*len(members))
	for _, m := range members {
		flat = append(flat, m.Lng, m.Lat)
		meanLat += m.Lat
	}
	meanLat /= float64(len(members))

	core := hull(flat)
	if bufferMeters == 0 {
		return geo.NewPolygon(core)
	}

	dLng, dLat := geo.MetersToDegrees(bufferMeters, meanLat)
	grown := make([]float64, 0, 2*bufferSegments*len(core))
	for _, c := range core {
		for k := range bufferSegments {
			theta := 2 * math.Pi * float64(k) / bufferSegments
			grown = append(grown, c[0]+dLng*math.Cos(theta), c[1]+dLat*math.Sin(theta))
		}
	}
	poly, err := geo.NewPolygon(hull(grown))
	if err != nil {
		return nil, eris.Wrap(err, "zone: buffer hull")
	}
	return poly, nil
}

// hull returns the open vertex ring of the convex hull of flat XY points.
// Fewer than three non-collinear points yield the distinct extreme points.
func hull(flat []float64) []geom.Coord {
	h := xy.ConvexHull(geom.NewMultiPointFlat(geom.XY, flat))
	if h == nil {
		return geo.Vertices(flat)
	}
	return geo.Vertices(h.FlatCoords())
}

// Centroid returns the area centroid of a polygon.
func Centroid(p *geom.Polygon) (model.Coord, error) {
	c, err := xy.Centroid(p)
	if err != nil {
		return model.Coord{}, eris.Wrap(err, "zone: centroid")
	}
	return model.Coord{Lng: c[0], Lat: c[1]}, nil
}
