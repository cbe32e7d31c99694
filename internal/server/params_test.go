package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/coachlead/leadview/internal/db"
)

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		param      string
		wantVal    int
		wantOK     bool
		wantStatus int
	}{
		{
			name:       "absent param returns zero",
			query:      "",
			param:      "limit",
			wantVal:    0,
			wantOK:     true,
			wantStatus: http.StatusOK,
		},
		{
			name:       "valid integer",
			query:      "limit=42",
			param:      "limit",
			wantVal:    42,
			wantOK:     true,
			wantStatus: http.StatusOK,
		},
		{
			name:       "negative integer",
			query:      "limit=-5",
			param:      "limit",
			wantVal:    -5,
			wantOK:     true,
			wantStatus: http.StatusOK,
		},
		{
			name:       "non-numeric returns 400",
			query:      "limit=abc",
			param:      "limit",
			wantVal:    0,
			wantOK:     false,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "float returns 400",
			query:      "limit=3.5",
			param:      "limit",
			wantVal:    0,
			wantOK:     false,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, r := newTestRequest(t, tt.query)

			val, ok := parseIntParam(w, r, tt.param)
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if val != tt.wantVal {
				t.Errorf("val = %d, want %d", val, tt.wantVal)
			}
			if w.Code != tt.wantStatus {
				t.Errorf(
					"status = %d, want %d", w.Code, tt.wantStatus,
				)
			}
		})
	}
}

func TestDefaultDateRange(t *testing.T) {
	now := time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		start, end string
		wantStart  string
		wantEnd    string
	}{
		{"both empty", "", "", "2024-02-14", "2024-03-15"},
		{"end only", "", "2024-01-31", "2024-01-01", "2024-01-31"},
		{"start only", "2024-03-01", "", "2024-03-01", "2024-03-15"},
		{"both set", "2024-01-01", "2024-01-03", "2024-01-01", "2024-01-03"},
		{"bad end falls back to now", "", "garbage", "2024-02-14", "garbage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := defaultDateRange(tt.start, tt.end, now)
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("defaultDateRange(%q, %q) = (%q, %q), want (%q, %q)",
					tt.start, tt.end, start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestRangeDays(t *testing.T) {
	tests := []struct {
		start, end string
		want       int
	}{
		{"2024-01-01", "2024-01-01", 0},
		{"2024-01-01", "2024-01-03", 2},
		{"2024-01-03", "2024-01-01", -2},
		{"2023-01-01", "2025-01-01", 731},
	}
	for _, tt := range tests {
		if got := rangeDays(tt.start, tt.end); got != tt.want {
			t.Errorf("rangeDays(%s, %s) = %d, want %d",
				tt.start, tt.end, got, tt.want)
		}
	}
}

func TestParseAnalyticsFilter(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantOK     bool
		wantStatus int
		wantFilter db.AnalyticsFilter
	}{
		{
			name:   "explicit range",
			query:  "start=2024-01-01&end=2024-01-03&timezone=Asia/Kolkata",
			wantOK: true,
			wantFilter: db.AnalyticsFilter{
				WorkspaceID: testWorkspace,
				From:        "2024-01-01",
				To:          "2024-01-03",
				Timezone:    "Asia/Kolkata",
			},
		},
		{
			name:   "inverted range is accepted",
			query:  "start=2024-01-03&end=2024-01-01",
			wantOK: true,
			wantFilter: db.AnalyticsFilter{
				WorkspaceID: testWorkspace,
				From:        "2024-01-03",
				To:          "2024-01-01",
				Timezone:    "UTC",
			},
		},
		{
			name:       "bad date",
			query:      "start=2024-1-1&end=2024-01-03",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad timezone",
			query:      "start=2024-01-01&end=2024-01-03&timezone=Mars/Olympus",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "longest allowed span",
			query:  "start=2023-01-01&end=2025-01-01",
			wantOK: true,
			wantFilter: db.AnalyticsFilter{
				WorkspaceID: testWorkspace,
				From:        "2023-01-01",
				To:          "2025-01-01",
				Timezone:    "UTC",
			},
		},
		{
			name:       "span too long",
			query:      "start=2023-01-01&end=2025-01-02",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "extreme span",
			query:      "start=0001-01-01&end=9999-12-31",
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, r := newTestRequest(t, tt.query)
			r = r.WithContext(WithWorkspace(r.Context(), testWorkspace))

			f, ok := parseAnalyticsFilter(w, r)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v (body %s)", ok, tt.wantOK, w.Body.String())
			}
			if !ok {
				assertRecorderStatus(t, w, tt.wantStatus)
				assertContentType(t, w, "application/json")
				return
			}
			if f != tt.wantFilter {
				t.Errorf("filter = %+v, want %+v", f, tt.wantFilter)
			}
		})
	}
}
