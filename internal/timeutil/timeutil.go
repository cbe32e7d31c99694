// Package timeutil holds the calendar helpers shared by every
// analytics rollup: day-key sequences, timezone-aware day bounds,
// and the previous-period window used for period-over-period
// comparisons.
package timeutil

import (
	"math"
	"time"
)

// DateLayout is the day-key format used on every chart axis.
const DateLayout = "2006-01-02"

// LoadLocation resolves an IANA zone name, falling back to UTC
// for "" or unknown names.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DayKey formats t as the YYYY-MM-DD key of its day in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// DaySequence enumerates the calendar days in [start, end],
// inclusive of both ends, in ascending order. Both instants are
// interpreted in their own location. An inverted range yields an
// empty, non-nil slice.
func DaySequence(start, end time.Time) []string {
	loc := start.Location()
	first := StartOfDay(start, loc)
	last := StartOfDay(end, loc)
	days := []string{}
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days
}

// DayKeys is DaySequence for YYYY-MM-DD strings. Unparseable
// input yields an empty slice.
func DayKeys(from, to string) []string {
	start, err := time.Parse(DateLayout, from)
	if err != nil {
		return []string{}
	}
	end, err := time.Parse(DateLayout, to)
	if err != nil {
		return []string{}
	}
	return DaySequence(start, end)
}

// DayBounds returns the half-open instant range [from 00:00,
// to+1 00:00) for two inclusive day keys in loc.
func DayBounds(
	from, to string, loc *time.Location,
) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(DateLayout, from, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.ParseInLocation(DateLayout, to, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end.AddDate(0, 0, 1), nil
}

// PreviousPeriod returns the window of equal length immediately
// preceding [start, end]. The length is the elapsed time rounded
// up to whole days, so a window ending at 23:59:59 of its last
// day shifts back by its full day count.
func PreviousPeriod(start, end time.Time) (time.Time, time.Time) {
	days := int(math.Ceil(end.Sub(start).Hours() / 24))
	return start.AddDate(0, 0, -days), end.AddDate(0, 0, -days)
}

// ChangePercent is the magnitude of the change from previous to
// current as a percentage of previous, rounded to one decimal.
// A zero or negative previous value yields 0.
func ChangePercent(current, previous float64) float64 {
	return math.Abs(SignedChangePercent(current, previous))
}

// SignedChangePercent is ChangePercent keeping the sign of the
// change.
func SignedChangePercent(current, previous float64) float64 {
	return Round1(RawChangePercent(current, previous))
}

// RawChangePercent is the signed, unrounded percentage change.
// Threshold comparisons use this value so rounding cannot move
// a result across a boundary.
func RawChangePercent(current, previous float64) float64 {
	if previous <= 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

// Round1 rounds v to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Trend classifies a change as "up", "down" or "flat".
func Trend(current, previous float64) string {
	switch {
	case current > previous:
		return "up"
	case current < previous:
		return "down"
	default:
		return "flat"
	}
}
