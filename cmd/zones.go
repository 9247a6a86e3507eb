package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dining-hotspots/internal/export"
	"github.com/sells-group/dining-hotspots/internal/model"
	"github.com/sells-group/dining-hotspots/internal/source"
	"github.com/sells-group/dining-hotspots/internal/zone"
)

var (
	zonesKind   string
	zonesInput  string
	zonesOutput string
)

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Build the zone polygons of one point collection",
	Long: `Clusters one point file and writes its buffered cluster polygons as GeoJSON.
--kind dining reads restaurants; --kind arrival reads taxi drop-offs and
weighs them by time of day.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("zones"); err != nil {
			return err
		}
		params, schema, err := zoneParamsFor(model.ZoneKind(zonesKind))
		if err != nil {
			return err
		}

		points, err := source.Open(cmd.Context(), zonesInput, schema.WithCharset(cfg.Source.Charset))
		if err != nil {
			return err
		}
		zones, stats, err := zone.BuildZones(points, params)
		if err != nil {
			return eris.Wrapf(err, "build %s zones", zonesKind)
		}
		zap.L().Info("zones built",
			zap.String("kind", zonesKind),
			zap.Int("zones", len(zones)),
			zap.Int("noise", stats.Noise),
		)

		var w io.Writer = os.Stdout
		if zonesOutput != "" {
			f, err := os.Create(zonesOutput)
			if err != nil {
				return eris.Wrapf(err, "create %s", zonesOutput)
			}
			defer f.Close() //nolint:errcheck
			w = f
		}
		return export.WriteZonesGeoJSON(w, zones)
	},
}

// zoneParamsFor returns the configured parameters and input schema of one
// collection.
func zoneParamsFor(kind model.ZoneKind) (zone.Params, source.Schema, error) {
	p, err := cfg.PipelineParams()
	if err != nil {
		return zone.Params{}, source.Schema{}, err
	}
	switch kind {
	case model.KindDining:
		return p.Dining, source.RestaurantSchema, nil
	case model.KindArrival:
		return p.Arrival, source.DropoffSchema, nil
	default:
		return zone.Params{}, source.Schema{}, model.NewParameterError("kind", "must be dining or arrival, got %q", kind)
	}
}

func init() {
	zonesCmd.Flags().StringVar(&zonesKind, "kind", string(model.KindDining), "collection kind: dining or arrival")
	zonesCmd.Flags().StringVar(&zonesInput, "input", "", "points file (required)")
	zonesCmd.Flags().StringVarP(&zonesOutput, "output", "o", "", "GeoJSON output file (default stdout)")
	_ = zonesCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(zonesCmd)
}
