package pipeline

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/dining-hotspots/internal/model"
	"github.com/sells-group/dining-hotspots/internal/overlay"
	"github.com/sells-group/dining-hotspots/internal/scorer"
)

// IntersectAndScore overlays the two zone collections and returns the
// ranked hotspots with their run summary. Either collection may be empty.
func IntersectAndScore(dining, arrival []model.ZonePolygon, workers int) ([]model.Hotspot, model.Summary, error) {
	raw, err := overlay.Intersect(dining, arrival, overlay.Options{Workers: workers})
	if err != nil {
		return nil, model.Summary{}, eris.Wrap(err, "pipeline: intersect")
	}
	ranked := scorer.Rank(raw)
	return ranked, scorer.Summarize(ranked, len(dining), len(arrival)), nil
}
