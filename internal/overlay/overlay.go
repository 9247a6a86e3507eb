// Package overlay intersects dining zones with arrival areas.
package overlay

import (
	"cmp"
	"runtime"
	"slices"

	"github.com/dhconnelly/rtreego"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dining-hotspots/internal/geo"
	"github.com/sells-group/dining-hotspots/internal/model"
	"github.com/sells-group/dining-hotspots/internal/scorer"
)

// minArea is the smallest intersection, in square degrees, kept as a
// hotspot. Shared edges and touching corners fall below it.
const minArea = 1e-14

// Options tunes Intersect.
type Options struct {
	Workers int
}

type indexed struct {
	rect  rtreego.Rect
	index int
	ring  []geom.Coord
}

func (i *indexed) Bounds() rtreego.Rect { return i.rect }

// Intersect returns one unscored hotspot per overlapping dining zone and
// arrival area pair, ordered by dining zone then arrival area. Both
// collections must hold convex polygons, which is what zone synthesis
// produces.
func Intersect(dining, arrival []model.ZonePolygon, opts Options) ([]model.Hotspot, error) {
	if len(dining) == 0 || len(arrival) == 0 {
		return nil, nil
	}

	tree := rtreego.NewTree(2, 25, 50)
	for i, a := range arrival {
		ring := geo.ExteriorRing(a.Geometry)
		if !geo.IsConvex(ring) {
			return nil, eris.Errorf("overlay: arrival area %d is not convex", a.ID)
		}
		rect, err := bounds(a.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "overlay: arrival area %d", a.ID)
		}
		tree.Insert(&indexed{rect: rect, index: i, ring: ring})
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	perZone := make([][]model.Hotspot, len(dining))
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for zi, z := range dining {
		g.Go(func() error {
			rect, err := bounds(z.Geometry)
			if err != nil {
				return eris.Wrapf(err, "overlay: dining zone %d", z.ID)
			}
			subject := geo.ExteriorRing(z.Geometry)

			hits := tree.SearchIntersect(rect)
			slices.SortFunc(hits, func(a, b rtreego.Spatial) int {
				return cmp.Compare(a.(*indexed).index, b.(*indexed).index)
			})
			for _, hit := range hits {
				cand := hit.(*indexed)
				ring := clipConvex(subject, cand.ring)
				ring = geo.Vertices(flatten(ring))
				if len(ring) < 3 || geo.SignedArea(ring) < minArea {
					continue
				}
				poly, err := geo.NewPolygon(ring)
				if err != nil {
					continue
				}
				area := arrival[cand.index]
				perZone[zi] = append(perZone[zi], model.Hotspot{
					Geometry:        poly,
					RestaurantCount: z.SourceCount,
					PopularityScore: scorer.Popularity(area.SourceCount),
					DiningZoneID:    z.ID,
					ArrivalAreaID:   area.ID,
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []model.Hotspot
	for _, hs := range perZone {
		out = append(out, hs...)
	}
	zap.L().Debug("overlay: intersected",
		zap.Int("dining_zones", len(dining)),
		zap.Int("arrival_areas", len(arrival)),
		zap.Int("hotspots", len(out)),
	)
	return out, nil
}

func bounds(p *geom.Polygon) (rtreego.Rect, error) {
	if p == nil || p.Empty() {
		return rtreego.Rect{}, eris.New("empty geometry")
	}
	b := p.Bounds()
	lengths := []float64{b.Max(0) - b.Min(0), b.Max(1) - b.Min(1)}
	for i := range lengths {
		// rtreego rejects zero-length sides.
		if lengths[i] <= 0 {
			lengths[i] = minArea
		}
	}
	return rtreego.NewRect(rtreego.Point{b.Min(0), b.Min(1)}, lengths)
}

func flatten(ring []geom.Coord) []float64 {
	flat := make([]float64, 0, 2*len(ring))
	for _, c := range ring {
		flat = append(flat, c[0], c[1])
	}
	return flat
}
