package timeseries

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateLayout is the wire format for dates.
const DateLayout = "2006-01-02"

// ErrInvalidDateRange is returned for malformed dates or a start after the end.
var ErrInvalidDateRange = errors.New("invalid date range")

// ParseDate parses a YYYY-MM-DD date into a UTC midnight timestamp.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: malformed date %q", ErrInvalidDateRange, s)
	}
	return t, nil
}

// FormatDate formats t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateRange is an inclusive range with optional bounds.
// A zero Start or End leaves that side open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange builds a range from boundary strings. Empty strings are open bounds.
func ParseDateRange(start, end string) (DateRange, error) {
	var r DateRange
	var err error
	if strings.TrimSpace(start) != "" {
		if r.Start, err = ParseDate(start); err != nil {
			return DateRange{}, err
		}
	}
	if strings.TrimSpace(end) != "" {
		if r.End, err = ParseDate(end); err != nil {
			return DateRange{}, err
		}
	}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// Validate checks that Start is not after End.
func (r DateRange) Validate() error {
	if !r.Start.IsZero() && !r.End.IsZero() && r.Start.After(r.End) {
		return fmt.Errorf("%w: start %s is after end %s",
			ErrInvalidDateRange, FormatDate(r.Start), FormatDate(r.End))
	}
	return nil
}

// IsOpen reports whether the range imposes no constraint.
func (r DateRange) IsOpen() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Contains reports whether t lies inside the range. End covers its whole
// calendar day, so intraday timestamps on the end date are included.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && !t.Before(r.endExclusive()) {
		return false
	}
	return true
}

// endExclusive is midnight after End.
func (r DateRange) endExclusive() time.Time {
	return r.End.AddDate(0, 0, 1)
}

// Intersect returns the tightest range satisfying both r and other.
// The result may be empty (Start after End); Filter then yields an empty series.
func (r DateRange) Intersect(other DateRange) DateRange {
	out := r
	if !other.Start.IsZero() && (out.Start.IsZero() || other.Start.After(out.Start)) {
		out.Start = other.Start
	}
	if !other.End.IsZero() && (out.End.IsZero() || other.End.Before(out.End)) {
		out.End = other.End
	}
	return out
}

func (r DateRange) String() string {
	start, end := "*", "*"
	if !r.Start.IsZero() {
		start = FormatDate(r.Start)
	}
	if !r.End.IsZero() {
		end = FormatDate(r.End)
	}
	return start + ".." + end
}

// Filter returns the contiguous sub-series whose timestamps fall inside r.
// Because timestamps are strictly increasing, the bounds are found by binary search.
func Filter(s *Series, r DateRange) *Series {
	n := s.Len()
	lo := 0
	if !r.Start.IsZero() {
		lo = sort.Search(n, func(i int) bool { return !s.timestamps[i].Before(r.Start) })
	}
	hi := n
	if !r.End.IsZero() {
		end := r.endExclusive()
		hi = sort.Search(n, func(i int) bool { return !s.timestamps[i].Before(end) })
	}
	return s.Slice(lo, hi)
}
