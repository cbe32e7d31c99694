package db

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coachlead/leadview/internal/timeutil"
)

// activityWindow is the trailing span for the "recent activity"
// counter on the key-metrics card.
const activityWindow = 48 * time.Hour

// MetricDelta is one key metric compared against the previous
// period. ChangePercent is the magnitude; Trend carries the
// direction.
type MetricDelta struct {
	Current       float64 `json:"current"`
	Previous      float64 `json:"previous"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Trend         string  `json:"trend"`
}

func newMetricDelta(current, previous float64) MetricDelta {
	return MetricDelta{
		Current:       current,
		Previous:      previous,
		Change:        current - previous,
		ChangePercent: timeutil.ChangePercent(current, previous),
		Trend:         timeutil.Trend(current, previous),
	}
}

// KeyMetrics is the response for the key-metrics card.
type KeyMetrics struct {
	TotalLeads       int     `json:"totalLeads"`
	TotalConversions int     `json:"totalConversions"`
	ActiveLeads      int     `json:"activeLeads"`
	EstimatedRevenue float64 `json:"estimatedRevenue"`

	PreviousLeads       int     `json:"previousLeads"`
	PreviousConversions int     `json:"previousConversions"`
	PreviousActiveLeads int     `json:"previousActiveLeads"`
	PreviousRevenue     float64 `json:"previousRevenue"`

	LeadsChangePercent       float64 `json:"leadsChangePercent"`
	ConversionsChangePercent float64 `json:"conversionsChangePercent"`
	ActiveLeadsChangePercent float64 `json:"activeLeadsChangePercent"`
	RevenueChangePercent     float64 `json:"revenueChangePercent"`

	Leads       MetricDelta `json:"leads"`
	Conversions MetricDelta `json:"conversions"`
	Active      MetricDelta `json:"active"`
	Revenue     MetricDelta `json:"revenue"`

	// ExpectedLeads is the midpoint of the two periods, a
	// baseline rather than a forecast.
	ExpectedLeads float64    `json:"expectedLeads"`
	GrowthTier    GrowthTier `json:"growthTier"`
	GrowthMessage string     `json:"growthMessage"`

	ActiveLeadsNow int `json:"activeLeadsNow"`
	Views48h       int `json:"views48h"`
}

// periodTotals are the four counters computed per window.
type periodTotals struct {
	leads       int
	conversions int
	active      int
	revenue     float64
}

// GetKeyMetrics computes the headline counters for the current
// and previous windows. The eight window queries and the two
// real-time counters run concurrently; they are not read from
// one snapshot.
func (db *DB) GetKeyMetrics(
	ctx context.Context, f AnalyticsFilter,
) (KeyMetrics, error) {
	s, err := f.resolve()
	if err != nil {
		return KeyMetrics{}, err
	}

	var cur, prev periodTotals
	var activeNow, recent int
	now := db.now()

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range []struct {
		w   window
		out *periodTotals
	}{
		{s.current, &cur},
		{s.previous, &prev},
	} {
		g.Go(func() error {
			return db.countLeadsCreated(gctx, s, p.w, &p.out.leads)
		})
		g.Go(func() error {
			return db.countConversions(gctx, s, p.w, &p.out.conversions)
		})
		g.Go(func() error {
			return db.countActiveCreated(gctx, s, p.w, &p.out.active)
		})
		g.Go(func() error {
			return db.sumConvertedRevenue(gctx, s, p.w, &p.out.revenue)
		})
	}
	g.Go(func() error {
		err := db.scalar(gctx, &activeNow,
			`SELECT COUNT(*) FROM leads
			WHERE workspace_id = ? AND category = ?`,
			s.workspace, CategoryActive,
		)
		if err != nil {
			return fmt.Errorf("counting active leads: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := db.scalar(gctx, &recent,
			`SELECT COUNT(*) FROM leads
			WHERE workspace_id = ?
			AND updated_at >= ? AND updated_at <= ?`,
			s.workspace,
			now.Add(-activityWindow).UTC(), now.UTC(),
		)
		if err != nil {
			return fmt.Errorf("counting recent activity: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return KeyMetrics{}, err
	}

	leads := newMetricDelta(float64(cur.leads), float64(prev.leads))
	conversions := newMetricDelta(
		float64(cur.conversions), float64(prev.conversions),
	)
	active := newMetricDelta(float64(cur.active), float64(prev.active))
	revenue := newMetricDelta(round2(cur.revenue), round2(prev.revenue))
	revenue.Change = round2(revenue.Change)

	tier, msg := GrowthMessage(timeutil.RawChangePercent(
		float64(cur.leads), float64(prev.leads),
	))

	return KeyMetrics{
		TotalLeads:       cur.leads,
		TotalConversions: cur.conversions,
		ActiveLeads:      cur.active,
		EstimatedRevenue: round2(cur.revenue),

		PreviousLeads:       prev.leads,
		PreviousConversions: prev.conversions,
		PreviousActiveLeads: prev.active,
		PreviousRevenue:     round2(prev.revenue),

		LeadsChangePercent:       leads.ChangePercent,
		ConversionsChangePercent: conversions.ChangePercent,
		ActiveLeadsChangePercent: active.ChangePercent,
		RevenueChangePercent:     revenue.ChangePercent,

		Leads:       leads,
		Conversions: conversions,
		Active:      active,
		Revenue:     revenue,

		ExpectedLeads: float64(prev.leads+cur.leads) / 2,
		GrowthTier:    tier,
		GrowthMessage: msg,

		ActiveLeadsNow: activeNow,
		Views48h:       recent,
	}, nil
}

func (db *DB) countLeadsCreated(
	ctx context.Context, s scope, w window, out *int,
) error {
	err := db.scalar(ctx, out,
		`SELECT COUNT(*) FROM leads
		WHERE workspace_id = ?
		AND created_at >= ? AND created_at < ?`,
		s.whereArgs(w)...,
	)
	if err != nil {
		return fmt.Errorf("counting leads: %w", err)
	}
	return nil
}

func (db *DB) countConversions(
	ctx context.Context, s scope, w window, out *int,
) error {
	ph, statusArgs := inPlaceholders(convertedStatuses)
	err := db.scalar(ctx, out,
		`SELECT COUNT(*) FROM leads
		WHERE workspace_id = ?
		AND updated_at >= ? AND updated_at < ?
		AND status IN `+ph,
		s.whereArgs(w, statusArgs...)...,
	)
	if err != nil {
		return fmt.Errorf("counting conversions: %w", err)
	}
	return nil
}

func (db *DB) countActiveCreated(
	ctx context.Context, s scope, w window, out *int,
) error {
	err := db.scalar(ctx, out,
		`SELECT COUNT(*) FROM leads
		WHERE workspace_id = ?
		AND created_at >= ? AND created_at < ?
		AND category = ?`,
		s.whereArgs(w, CategoryActive)...,
	)
	if err != nil {
		return fmt.Errorf("counting active leads: %w", err)
	}
	return nil
}

func (db *DB) sumConvertedRevenue(
	ctx context.Context, s scope, w window, out *float64,
) error {
	ph, statusArgs := inPlaceholders(convertedStatuses)
	err := db.scalar(ctx, out,
		`SELECT COALESCE(SUM(revenue), 0) FROM leads
		WHERE workspace_id = ?
		AND updated_at >= ? AND updated_at < ?
		AND status IN `+ph,
		s.whereArgs(w, statusArgs...)...,
	)
	if err != nil {
		return fmt.Errorf("summing revenue: %w", err)
	}
	return nil
}
