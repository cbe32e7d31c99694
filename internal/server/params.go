package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/coachlead/leadview/internal/db"
	"github.com/coachlead/leadview/internal/timeutil"
)

// defaultRangeDays is how far back start defaults from end.
const defaultRangeDays = 30

// maxRangeDays caps the span of a requested date range so the
// per-day series stay bounded.
const maxRangeDays = 731

// isValidDate checks that s is a well-formed YYYY-MM-DD string.
func isValidDate(s string) bool {
	_, err := time.Parse(timeutil.DateLayout, s)
	return err == nil
}

// rangeDays returns the number of days from start to end for
// two valid day keys. Inverted ranges are negative.
func rangeDays(start, end string) int {
	s, _ := time.Parse(timeutil.DateLayout, start)
	e, _ := time.Parse(timeutil.DateLayout, end)
	return int(e.Sub(s).Hours() / 24)
}

// defaultDateRange returns (start, end) defaulting to the last
// 30 days if not provided.
func defaultDateRange(
	start, end string, now time.Time,
) (string, string) {
	if end == "" {
		end = now.Format(timeutil.DateLayout)
	}
	if start == "" {
		t, err := time.Parse(timeutil.DateLayout, end)
		if err != nil {
			t = now
		}
		start = t.AddDate(0, 0, -defaultRangeDays).
			Format(timeutil.DateLayout)
	}
	return start, end
}

// parseIntParam reads an optional integer query parameter. It
// returns 0 when absent and writes a 400 when malformed.
func parseIntParam(
	w http.ResponseWriter, r *http.Request, name string,
) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		writeError(w, http.StatusBadRequest,
			"invalid "+name+": must be an integer")
		return 0, false
	}
	return n, true
}

// parseAnalyticsFilter extracts the common analytics filter
// params from a request. The workspace comes from the request
// context, never from the query string.
//
// An end date before the start date is not rejected; such a
// range yields empty per-day series.
func parseAnalyticsFilter(
	w http.ResponseWriter, r *http.Request,
) (db.AnalyticsFilter, bool) {
	q := r.URL.Query()
	tz := q.Get("timezone")
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		writeError(w, http.StatusBadRequest,
			"invalid timezone: "+tz)
		return db.AnalyticsFilter{}, false
	}

	start, end := defaultDateRange(
		q.Get("start"), q.Get("end"), time.Now().In(loc),
	)
	if !isValidDate(start) || !isValidDate(end) {
		writeError(w, http.StatusBadRequest,
			"invalid date format: use YYYY-MM-DD")
		return db.AnalyticsFilter{}, false
	}
	if rangeDays(start, end) > maxRangeDays {
		writeError(w, http.StatusBadRequest,
			"invalid date range: span exceeds "+
				strconv.Itoa(maxRangeDays)+" days")
		return db.AnalyticsFilter{}, false
	}

	return db.AnalyticsFilter{
		WorkspaceID: WorkspaceFrom(r.Context()),
		From:        start,
		To:          end,
		Timezone:    tz,
	}, true
}
