// Package pipeline runs the full dining hotspot analysis: zones for both
// point collections, their overlay, and the ranking.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dining-hotspots/internal/model"
	"github.com/sells-group/dining-hotspots/internal/zone"
)

// Phase statuses.
const (
	PhaseComplete = "complete"
	PhaseFailed   = "failed"
)

// Input is the fully materialized point supply for one run. A non-nil
// RestaurantsErr or DropoffsErr marks a collection whose supply failed; it
// is recorded on the result and that collection is not built.
type Input struct {
	Restaurants    []model.RawPoint
	Dropoffs       []model.RawPoint
	RestaurantsErr error
	DropoffsErr    error
}

// Params holds the zone parameters for both collections. Kinds are forced
// to dining and arrival respectively.
type Params struct {
	Dining  zone.Params
	Arrival zone.Params
	Workers int
}

// Validate checks both parameter sets.
func (p *Params) Validate() error {
	p.Dining.Kind = model.KindDining
	p.Arrival.Kind = model.KindArrival
	if p.Workers > 0 {
		p.Dining.Workers = p.Workers
		p.Arrival.Workers = p.Workers
	}
	if err := p.Dining.Validate(); err != nil {
		return err
	}
	return p.Arrival.Validate()
}

// PhaseResult records the outcome of one pipeline phase.
type PhaseResult struct {
	Name       string         `json:"name"`
	Status     string         `json:"status"`
	DurationMS int64          `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Result is everything one run produced. A collection that failed has a
// non-nil error and no zones; the overlay still ran on what succeeded.
type Result struct {
	RunID        string
	CreatedAt    time.Time
	DiningZones  []model.ZonePolygon
	ArrivalAreas []model.ZonePolygon
	DiningStats  zone.Stats
	ArrivalStats zone.Stats
	DiningErr    error
	ArrivalErr   error
	Hotspots     []model.Hotspot
	Summary      model.Summary
	Phases       []PhaseResult
}

// ToRun converts the result into its persisted form.
func (r *Result) ToRun() model.Run {
	return model.Run{
		ID:        r.RunID,
		CreatedAt: r.CreatedAt,
		Summary:   r.Summary,
		Hotspots:  r.Hotspots,
	}
}

// Run executes one full pass. Only invalid parameters or a cancelled context
// return an error; per-collection input problems are recorded on the
// result.
func Run(ctx context.Context, in Input, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	result := &Result{RunID: uuid.NewString(), CreatedAt: time.Now().UTC()}
	log := zap.L().With(zap.String("run_id", result.RunID))
	log.Info("pipeline: starting run",
		zap.Int("restaurants", len(in.Restaurants)),
		zap.Int("dropoffs", len(in.Dropoffs)),
	)

	var phasesMu sync.Mutex
	trackPhase := func(name string, fn func() (map[string]any, error)) error {
		start := time.Now()
		meta, err := fn()
		pr := PhaseResult{
			Name:       name,
			Status:     PhaseComplete,
			DurationMS: time.Since(start).Milliseconds(),
			Metadata:   meta,
		}
		if err != nil {
			pr.Status = PhaseFailed
			pr.Error = err.Error()
			log.Warn("pipeline: phase failed", zap.String("phase", name), zap.Int64("duration_ms", pr.DurationMS), zap.Error(err))
		} else {
			log.Info("pipeline: phase complete", zap.String("phase", name), zap.Int64("duration_ms", pr.DurationMS))
		}
		phasesMu.Lock()
		result.Phases = append(result.Phases, pr)
		phasesMu.Unlock()
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result.DiningErr = trackPhase("1a_dining_zones", func() (map[string]any, error) {
			if in.RestaurantsErr != nil {
				return nil, in.RestaurantsErr
			}
			zones, stats, err := zone.BuildZones(in.Restaurants, p.Dining)
			result.DiningZones, result.DiningStats = zones, stats
			return statsMeta(stats), err
		})
		return gCtx.Err()
	})
	g.Go(func() error {
		result.ArrivalErr = trackPhase("1b_arrival_areas", func() (map[string]any, error) {
			if in.DropoffsErr != nil {
				return nil, in.DropoffsErr
			}
			zones, stats, err := zone.BuildZones(in.Dropoffs, p.Arrival)
			result.ArrivalAreas, result.ArrivalStats = zones, stats
			return statsMeta(stats), err
		})
		return gCtx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: build zones")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: run cancelled")
	}

	err := trackPhase("2_intersect_and_score", func() (map[string]any, error) {
		hotspots, summary, err := IntersectAndScore(result.DiningZones, result.ArrivalAreas, p.Workers)
		result.Hotspots, result.Summary = hotspots, summary
		return map[string]any{"hotspots": len(hotspots)}, err
	})
	if err != nil {
		return nil, err
	}

	log.Info("pipeline: run complete",
		zap.Int("dining_zones", len(result.DiningZones)),
		zap.Int("arrival_areas", len(result.ArrivalAreas)),
		zap.Int("hotspots", result.Summary.TotalHotspots),
		zap.Bool("dining_failed", result.DiningErr != nil),
		zap.Bool("arrival_failed", result.ArrivalErr != nil),
	)
	return result, nil
}

func statsMeta(s zone.Stats) map[string]any {
	return map[string]any{
		"input":     s.Input,
		"in_region": s.InRegion,
		"weighted":  s.Weighted,
		"clusters":  s.Clusters,
		"noise":     s.Noise,
	}
}
