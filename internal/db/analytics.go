package db

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/coachlead/leadview/internal/timeutil"
)

// ErrWorkspaceRequired is returned when an analytics query is
// issued without a tenant.
var ErrWorkspaceRequired = errors.New("workspace id is required")

// inPlaceholders returns a "(?,?,...)" string and []any args for
// a slice of string values.
func inPlaceholders(values []string) (string, []any) {
	ph := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		ph[i] = "?"
		args[i] = v
	}
	return "(" + strings.Join(ph, ",") + ")", args
}

// AnalyticsFilter is the shared filter for all analytics queries.
type AnalyticsFilter struct {
	WorkspaceID string
	From        string // ISO date YYYY-MM-DD, inclusive
	To          string // ISO date YYYY-MM-DD, inclusive
	Timezone    string // IANA timezone for day bucketing
}

// window is a half-open [Start, End) instant range.
type window struct {
	Start time.Time
	End   time.Time
}

// args returns the bounds in UTC for binding.
func (w window) args() []any {
	return []any{w.Start.UTC(), w.End.UTC()}
}

// scope is an AnalyticsFilter resolved against the calendar:
// its zone, current and previous windows, and day buckets.
type scope struct {
	workspace string
	loc       *time.Location
	current   window
	previous  window
	days      []string
}

// resolve validates f and computes its windows.
func (f AnalyticsFilter) resolve() (scope, error) {
	if f.WorkspaceID == "" {
		return scope{}, ErrWorkspaceRequired
	}
	loc := timeutil.LoadLocation(f.Timezone)
	start, end, err := timeutil.DayBounds(f.From, f.To, loc)
	if err != nil {
		return scope{}, fmt.Errorf("parsing date range: %w", err)
	}
	prevStart, prevEnd := timeutil.PreviousPeriod(start, end)
	return scope{
		workspace: f.WorkspaceID,
		loc:       loc,
		current:   window{Start: start, End: end},
		previous:  window{Start: prevStart, End: prevEnd},
		days:      timeutil.DayKeys(f.From, f.To),
	}, nil
}

// whereArgs prepends the workspace to the window bounds.
func (s scope) whereArgs(w window, extra ...any) []any {
	args := append([]any{s.workspace}, w.args()...)
	return append(args, extra...)
}

// dayOf returns the local day key of t.
func (s scope) dayOf(t time.Time) string {
	return timeutil.DayKey(t, s.loc)
}

// countByDay folds timestamps into counts keyed by local day.
func (s scope) countByDay(ts []time.Time) map[string]int {
	counts := make(map[string]int, len(s.days))
	for _, t := range ts {
		counts[s.dayOf(t)]++
	}
	return counts
}

// percentOf returns part/total as a one-decimal percentage, 0
// when total is zero.
func percentOf(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return timeutil.Round1(float64(part) / float64(total) * 100)
}

// rateString formats part/total as a one-decimal percentage
// string, "0.0" when total is zero.
func rateString(part, total int) string {
	if total == 0 {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", float64(part)/float64(total)*100)
}

// roundedRatio returns round(num/den), 0 when den is zero.
func roundedRatio(num, den int) int {
	if den == 0 {
		return 0
	}
	return int(math.Round(float64(num) / float64(den)))
}

// round2 rounds currency amounts to cents.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// orDefault returns s, or fallback if s is empty.
func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
