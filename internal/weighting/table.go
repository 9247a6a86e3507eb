// Package weighting converts timestamped drop-off points into weighted points
// using a day-type and time-of-day table.
package weighting

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dining-hotspots/internal/model"
)

// DayType classifies a calendar day for weighting purposes.
type DayType int

// Day types.
const (
	Weekday DayType = iota
	Weekend
)

func (d DayType) String() string {
	if d == Weekend {
		return "weekend"
	}
	return "weekday"
}

// ParseDayType parses "weekday" or "weekend" (case-insensitive).
func ParseDayType(s string) (DayType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weekday":
		return Weekday, nil
	case "weekend":
		return Weekend, nil
	default:
		return Weekday, eris.Errorf("weighting: unknown day type %q", s)
	}
}

// Classifier maps a timestamp to its day type.
type Classifier func(time.Time) DayType

// ClassifyWeekend treats Saturday and Sunday, in the timestamp's own
// location, as weekend days.
func ClassifyWeekend(t time.Time) DayType {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return Weekend
	default:
		return Weekday
	}
}

// Window assigns Weight to timestamps of the given day type whose clock time
// falls in [Start, End]. Start and End are minutes past midnight and both
// bounds are inclusive.
type Window struct {
	Day    DayType
	Start  int
	End    int
	Weight float64
}

// Table is an ordered list of windows. The first matching window wins;
// timestamps matching no window weigh 0.
type Table []Window

// DefaultTable returns the dining-hours table.
func DefaultTable() Table {
	return Table{
		{Day: Weekday, Start: 11*60 + 30, End: 14 * 60, Weight: 0.8},
		{Day: Weekday, Start: 18 * 60, End: 21*60 + 30, Weight: 1.0},
		{Day: Weekend, Start: 12 * 60, End: 15 * 60, Weight: 0.9},
		{Day: Weekend, Start: 18 * 60, End: 22*60 + 30, Weight: 1.0},
	}
}

// Weight returns the weight for ts on a day of the given type. Clock time is
// taken at minute resolution, so 21:30:59 still matches a window ending 21:30.
func (t Table) Weight(ts time.Time, day DayType) float64 {
	m := ts.Hour()*60 + ts.Minute()
	for _, w := range t {
		if w.Day == day && m >= w.Start && m <= w.End {
			return w.Weight
		}
	}
	return 0
}

// Validate checks every window's bounds and weight.
func (t Table) Validate() error {
	for i, w := range t {
		field := fmt.Sprintf("weighting.windows[%d]", i)
		if w.Start < 0 || w.End >= 24*60 {
			return model.NewParameterError(field, "clock bounds must lie within the day")
		}
		if w.Start > w.End {
			return model.NewParameterError(field, "start %s is after end %s", FormatClock(w.Start), FormatClock(w.End))
		}
		if w.Weight < 0 || w.Weight > 1 {
			return model.NewParameterError(field, "weight must be in [0, 1], got %g", w.Weight)
		}
	}
	return nil
}

// ParseClock parses "HH:MM" into minutes past midnight.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, eris.Errorf("weighting: clock %q is not HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, eris.Wrapf(err, "weighting: clock %q hour", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, eris.Wrapf(err, "weighting: clock %q minute", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, eris.Errorf("weighting: clock %q out of range", s)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes past midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
