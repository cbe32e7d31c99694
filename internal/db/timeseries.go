package db

import (
	"context"
	"fmt"
	"time"
)

// TimeSeriesPoint is one day on the leads/conversions chart.
type TimeSeriesPoint struct {
	Date        string `json:"date"`
	Leads       int    `json:"leads"`
	Conversions int    `json:"conversions"`
}

// GetTimeSeries returns per-day lead and conversion counts for
// every day in the filter range, zero-filled.
//
// A conversion is dated by the lead's updated_at, so a lead
// edited after converting moves to the later day.
func (db *DB) GetTimeSeries(
	ctx context.Context, f AnalyticsFilter,
) ([]TimeSeriesPoint, error) {
	s, err := f.resolve()
	if err != nil {
		return nil, err
	}

	var created []time.Time
	if err := db.selectRows(ctx, &created,
		`SELECT created_at FROM leads
		WHERE workspace_id = ?
		AND created_at >= ? AND created_at < ?`,
		s.whereArgs(s.current)...,
	); err != nil {
		return nil, fmt.Errorf("querying leads created: %w", err)
	}

	ph, statusArgs := inPlaceholders(convertedStatuses)
	var converted []time.Time
	if err := db.selectRows(ctx, &converted,
		`SELECT updated_at FROM leads
		WHERE workspace_id = ?
		AND updated_at >= ? AND updated_at < ?
		AND status IN `+ph,
		s.whereArgs(s.current, statusArgs...)...,
	); err != nil {
		return nil, fmt.Errorf("querying conversions: %w", err)
	}

	leads := s.countByDay(created)
	conversions := s.countByDay(converted)

	series := make([]TimeSeriesPoint, 0, len(s.days))
	for _, day := range s.days {
		series = append(series, TimeSeriesPoint{
			Date:        day,
			Leads:       leads[day],
			Conversions: conversions[day],
		})
	}
	return series, nil
}
