package db

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/coachlead/leadview/internal/timeutil"
)

// RevenuePoint is one day on the revenue trend chart.
type RevenuePoint struct {
	Date    string  `json:"date"`
	Revenue float64 `json:"revenue"`
}

// CampaignRevenue is one campaign in the revenue breakdown.
type CampaignRevenue struct {
	Campaign string  `json:"campaign"`
	Revenue  float64 `json:"revenue"`
	Leads    int     `json:"leads"`
}

// RevenueAnalytics is the response for the revenue dashboard.
type RevenueAnalytics struct {
	TotalRevenue    float64           `json:"totalRevenue"`
	PreviousRevenue float64           `json:"previousRevenue"`
	Change          float64           `json:"change"`
	ChangePercent   float64           `json:"changePercent"`
	Trend           string            `json:"trend"`
	ChartData       []RevenuePoint    `json:"chartData"`
	ByCampaign      []CampaignRevenue `json:"byCampaign"`
}

type revenueRow struct {
	Campaign  string    `db:"campaign"`
	Revenue   float64   `db:"revenue"`
	UpdatedAt time.Time `db:"updated_at"`
}

// GetRevenueAnalytics sums converted-lead revenue per day and per
// campaign, and compares the total with the previous period.
func (db *DB) GetRevenueAnalytics(
	ctx context.Context, f AnalyticsFilter,
) (RevenueAnalytics, error) {
	s, err := f.resolve()
	if err != nil {
		return RevenueAnalytics{}, err
	}

	ph, statusArgs := inPlaceholders(convertedStatuses)
	var rows []revenueRow
	err = db.selectRows(ctx, &rows,
		`SELECT COALESCE(campaign, '') AS campaign,
			revenue, updated_at
		FROM leads
		WHERE workspace_id = ?
		AND updated_at >= ? AND updated_at < ?
		AND status IN `+ph+`
		ORDER BY updated_at, id`,
		s.whereArgs(s.current, statusArgs...)...,
	)
	if err != nil {
		return RevenueAnalytics{},
			fmt.Errorf("querying revenue: %w", err)
	}

	var previous float64
	if err := db.sumConvertedRevenue(
		ctx, s, s.previous, &previous,
	); err != nil {
		return RevenueAnalytics{}, err
	}

	var total float64
	perDay := make(map[string]float64)
	perCampaign := make(map[string]*CampaignRevenue)
	for _, r := range rows {
		total += r.Revenue
		perDay[s.dayOf(r.UpdatedAt)] += r.Revenue
		if r.Revenue <= 0 {
			continue
		}
		name := orDefault(r.Campaign, DirectCampaignLabel)
		c, ok := perCampaign[name]
		if !ok {
			c = &CampaignRevenue{Campaign: name}
			perCampaign[name] = c
		}
		c.Revenue += r.Revenue
		c.Leads++
	}

	chart := make([]RevenuePoint, 0, len(s.days))
	for _, day := range s.days {
		chart = append(chart, RevenuePoint{
			Date: day, Revenue: round2(perDay[day]),
		})
	}

	byCampaign := make([]CampaignRevenue, 0, len(perCampaign))
	for _, c := range perCampaign {
		c.Revenue = round2(c.Revenue)
		byCampaign = append(byCampaign, *c)
	}
	sort.Slice(byCampaign, func(i, j int) bool {
		if byCampaign[i].Revenue != byCampaign[j].Revenue {
			return byCampaign[i].Revenue > byCampaign[j].Revenue
		}
		return byCampaign[i].Campaign < byCampaign[j].Campaign
	})

	total = round2(total)
	previous = round2(previous)
	return RevenueAnalytics{
		TotalRevenue:    total,
		PreviousRevenue: previous,
		Change:          round2(total - previous),
		ChangePercent:   timeutil.ChangePercent(total, previous),
		Trend:           timeutil.Trend(total, previous),
		ChartData:       chart,
		ByCampaign:      byCampaign,
	}, nil
}
