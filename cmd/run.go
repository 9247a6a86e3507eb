package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dining-hotspots/internal/export"
	"github.com/sells-group/dining-hotspots/internal/model"
	"github.com/sells-group/dining-hotspots/internal/pipeline"
	"github.com/sells-group/dining-hotspots/internal/scorer"
	"github.com/sells-group/dining-hotspots/internal/source"
	"github.com/sells-group/dining-hotspots/internal/store"
)

var (
	runRestaurants string
	runDropoffs    string
	runOutput      string
	runTop         int
	runNoStore     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full hotspot analysis",
	Long: `Builds dining zones from restaurants and arrival areas from taxi drop-offs,
intersects them, ranks the overlaps, writes GeoJSON, XLSX and summary files to
the output directory, and records the run in the store.

Input files may be CSV, XLSX or point shapefiles.

Examples:
  hotspot-cli run --restaurants restaurants.csv --dropoffs yellow_tripdata.csv
  hotspot-cli run --restaurants r.shp --dropoffs d.csv --top 20 --no-store`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		var st store.Store
		if !runNoStore {
			var err error
			st, err = initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		opts := runOptions{
			Restaurants: runRestaurants,
			Dropoffs:    runDropoffs,
			OutputDir:   cfg.Output.Dir,
			TopK:        cfg.Output.TopK,
		}
		if runOutput != "" {
			opts.OutputDir = runOutput
		}
		if cmd.Flags().Changed("top") {
			opts.TopK = runTop
		}

		result, err := executeRun(ctx, opts, st)
		if err != nil {
			return err
		}
		return printSummary(os.Stdout, result)
	},
}

type runOptions struct {
	Restaurants string
	Dropoffs    string
	OutputDir   string
	TopK        int
}

// executeRun loads both point files, runs the pipeline, writes the output
// files, and saves the run when st is non-nil.
func executeRun(ctx context.Context, opts runOptions, st store.Store) (*pipeline.Result, error) {
	params, err := cfg.PipelineParams()
	if err != nil {
		return nil, err
	}

	in, err := loadInputs(ctx, opts)
	if err != nil {
		return nil, err
	}

	result, err := pipeline.Run(ctx, in, params)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline run")
	}
	reportCollectionErrors(result)

	hotspots := scorer.TopK(result.Hotspots, opts.TopK)
	paths, err := export.WriteAll(opts.OutputDir, export.Bundle{
		Hotspots:     hotspots,
		DiningZones:  result.DiningZones,
		ArrivalAreas: result.ArrivalAreas,
		Summary:      result.Summary,
	})
	if err != nil {
		return nil, eris.Wrap(err, "write outputs")
	}
	zap.L().Info("outputs written", zap.String("dir", opts.OutputDir), zap.Int("files", len(paths)))

	if st != nil {
		if err := st.SaveRun(ctx, result.ToRun()); err != nil {
			return nil, eris.Wrap(err, "save run")
		}
		zap.L().Info("run saved", zap.String("run_id", result.RunID))
	}
	return result, nil
}

// loadInputs reads both point files concurrently. A file that cannot be
// read becomes an InputError for its collection only; the run fails when
// neither collection loaded or the context is done.
func loadInputs(ctx context.Context, opts runOptions) (pipeline.Input, error) {
	var in pipeline.Input
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		in.Restaurants, in.RestaurantsErr = loadCollection(gCtx, opts.Restaurants, source.RestaurantSchema, model.KindDining)
		return gCtx.Err()
	})
	g.Go(func() error {
		in.Dropoffs, in.DropoffsErr = loadCollection(gCtx, opts.Dropoffs, source.DropoffSchema, model.KindArrival)
		return gCtx.Err()
	})
	if err := g.Wait(); err != nil {
		return in, eris.Wrap(err, "load inputs")
	}
	if in.RestaurantsErr != nil && in.DropoffsErr != nil {
		return in, eris.Wrap(errors.Join(in.RestaurantsErr, in.DropoffsErr), "load inputs")
	}
	return in, nil
}

func loadCollection(ctx context.Context, path string, schema source.Schema, kind model.ZoneKind) ([]model.RawPoint, error) {
	points, err := source.Open(ctx, path, schema.WithCharset(cfg.Source.Charset))
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, model.NewInputError(kind, "load %s: %v", path, err)
	}
	return points, nil
}

func reportCollectionErrors(r *pipeline.Result) {
	for _, err := range []error{r.DiningErr, r.ArrivalErr} {
		if err == nil {
			continue
		}
		var ie *model.InputError
		if errors.As(err, &ie) {
			zap.L().Warn("collection skipped",
				zap.String("collection", string(ie.Collection)),
				zap.String("reason", ie.Reason),
			)
			continue
		}
		zap.L().Warn("collection failed", zap.Error(err))
	}
}

type runReport struct {
	RunID   string                 `json:"run_id"`
	Summary model.Summary          `json:"summary"`
	Phases  []pipeline.PhaseResult `json:"phases"`
	Top     []hotspotLine          `json:"top,omitempty"`
}

type hotspotLine struct {
	Name            string  `json:"name"`
	CombinedScore   float64 `json:"combined_score"`
	RestaurantCount int     `json:"restaurant_count"`
	PopularityScore float64 `json:"popularity_score"`
	AreaKM2         float64 `json:"area_km2"`
}

// printSummary writes the run summary and the five best hotspots as JSON.
func printSummary(w io.Writer, r *pipeline.Result) error {
	rep := runReport{RunID: r.RunID, Summary: r.Summary, Phases: r.Phases}
	for _, h := range scorer.TopK(r.Hotspots, 5) {
		rep.Top = append(rep.Top, hotspotLine{
			Name:            scorer.Name(h.Rank),
			CombinedScore:   h.CombinedScore,
			RestaurantCount: h.RestaurantCount,
			PopularityScore: h.PopularityScore,
			AreaKM2:         scorer.AreaKM2(h),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func init() {
	runCmd.Flags().StringVar(&runRestaurants, "restaurants", "", "restaurant points file (required)")
	runCmd.Flags().StringVar(&runDropoffs, "dropoffs", "", "taxi drop-off points file (required)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "output directory (default from config)")
	runCmd.Flags().IntVar(&runTop, "top", 0, "keep only the K best hotspots in the outputs (0 keeps all)")
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "do not record the run in the store")
	_ = runCmd.MarkFlagRequired("restaurants")
	_ = runCmd.MarkFlagRequired("dropoffs")
	rootCmd.AddCommand(runCmd)
}
