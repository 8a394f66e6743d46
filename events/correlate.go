package events

import (
	"time"

	"github.com/sartorproj/gochangepoint/changepoint"
)

// Correlation links an event to its nearest detected change point.
type Correlation struct {
	Event Event
	// Nearest is nil when no change points were detected.
	Nearest *changepoint.ChangePoint
	// LagDays is the change point date minus the event date, in whole days.
	LagDays int
	Matched bool
}

// Correlate finds, for each event, the closest change point by calendar
// distance. A correlation is Matched when |LagDays| <= toleranceDays.
// When two change points are equally close the earlier one is used.
func Correlate(events []Event, points []changepoint.ChangePoint, toleranceDays int) []Correlation {
	out := make([]Correlation, 0, len(events))
	for _, e := range events {
		c := Correlation{Event: e}
		best := -1
		for i := range points {
			d := absDays(points[i].Time.Sub(e.Date))
			if best < 0 || d < absDays(points[best].Time.Sub(e.Date)) {
				best = i
			}
		}
		if best >= 0 {
			p := points[best]
			c.Nearest = &p
			c.LagDays = days(p.Time.Sub(e.Date))
			c.Matched = absDays(p.Time.Sub(e.Date)) <= toleranceDays
		}
		out = append(out, c)
	}
	return out
}

// Matched counts matched correlations.
func Matched(correlations []Correlation) int {
	n := 0
	for _, c := range correlations {
		if c.Matched {
			n++
		}
	}
	return n
}

func days(d time.Duration) int {
	return int(d.Round(24*time.Hour) / (24 * time.Hour))
}

func absDays(d time.Duration) int {
	n := days(d)
	if n < 0 {
		return -n
	}
	return n
}
