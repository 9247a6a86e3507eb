// Package store persists pipeline runs and their ranked hotspots.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/sells-group/dining-hotspots/internal/model"
)

// SRID is the spatial reference of every stored geometry.
const SRID = 4326

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Since  time.Time `json:"since,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return 100
	}
	return f.Limit
}

// Store defines run persistence.
type Store interface {
	// SaveRun stores a run with its hotspots. Saving an existing id fails.
	SaveRun(ctx context.Context, run model.Run) error
	// GetRun returns a run with its hotspots in rank order.
	GetRun(ctx context.Context, id string) (*model.Run, error)
	// ListRuns returns runs newest first, without hotspots.
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

func encodeWKB(p *geom.Polygon) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	data, err := wkb.Marshal(p, wkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode wkb")
	}
	return data, nil
}

func encodeEWKB(p *geom.Polygon) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	data, err := ewkb.Marshal(p.Clone().SetSRID(SRID), ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode ewkb")
	}
	return data, nil
}

// decodePolygon reads WKB or EWKB bytes. ewkb accepts plain WKB as well.
func decodePolygon(data []byte) (*geom.Polygon, error) {
	if len(data) == 0 {
		return nil, nil
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "store: decode geometry")
	}
	p, ok := g.(*geom.Polygon)
	if !ok {
		return nil, eris.Errorf("store: expected polygon, got %T", g)
	}
	return p, nil
}
