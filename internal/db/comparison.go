package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// BreakdownType selects the dimension for the comparison view.
type BreakdownType string

const (
	BreakdownCampaigns BreakdownType = "campaigns"
	BreakdownSources   BreakdownType = "sources"
	BreakdownOwners    BreakdownType = "owners"
	BreakdownStatuses  BreakdownType = "statuses"
)

// ErrInvalidBreakdown is returned for an unknown breakdown type.
var ErrInvalidBreakdown = errors.New("invalid breakdown type")

// UnassignedLabel is used for leads with no owner.
const UnassignedLabel = "Unassigned"

// ParseBreakdownType validates a breakdown name.
func ParseBreakdownType(s string) (BreakdownType, error) {
	switch b := BreakdownType(s); b {
	case BreakdownCampaigns, BreakdownSources,
		BreakdownOwners, BreakdownStatuses:
		return b, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidBreakdown, s)
}

// TimelinePoint is one day of a dimension value's lead count.
type TimelinePoint struct {
	Date  string `json:"date"`
	Leads int    `json:"leads"`
}

// ComparisonItem is one dimension value in the comparison view.
type ComparisonItem struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Leads           int             `json:"leads"`
	LeadsPercentage float64         `json:"leadsPercentage"`
	Timeline        []TimelinePoint `json:"timeline"`
}

// dimensionRow is one lead tagged with its dimension value.
type dimensionRow struct {
	Key  string    `db:"dim_key"`
	Name string    `db:"dim_name"`
	At   time.Time `db:"event_at"`
}

// dimensionQueries select (key, display name, timestamp) per
// lead for each breakdown. Empty keys are labelled in Go.
var dimensionQueries = map[BreakdownType]string{
	BreakdownCampaigns: `SELECT c.id AS dim_key, c.name AS dim_name,
			cl.created_at AS event_at
		FROM campaign_leads cl
		JOIN campaigns c
			ON c.id = cl.campaign_id
			AND c.workspace_id = cl.workspace_id
		WHERE cl.workspace_id = ?
		AND cl.created_at >= ? AND cl.created_at < ?`,
	BreakdownSources: `SELECT COALESCE(l.source, '') AS dim_key,
			COALESCE(l.source, '') AS dim_name,
			l.created_at AS event_at
		FROM leads l
		WHERE l.workspace_id = ?
		AND l.created_at >= ? AND l.created_at < ?`,
	BreakdownOwners: `SELECT COALESCE(l.owner_id, '') AS dim_key,
			COALESCE(u.name, '') AS dim_name,
			l.created_at AS event_at
		FROM leads l
		LEFT JOIN users u
			ON u.id = l.owner_id
			AND u.workspace_id = l.workspace_id
		WHERE l.workspace_id = ?
		AND l.created_at >= ? AND l.created_at < ?`,
	BreakdownStatuses: `SELECT COALESCE(l.status, '') AS dim_key,
			COALESCE(l.status, '') AS dim_name,
			l.created_at AS event_at
		FROM leads l
		WHERE l.workspace_id = ?
		AND l.created_at >= ? AND l.created_at < ?`,
}

// missingLabel returns the id and name used for rows with no
// dimension value.
func missingLabel(b BreakdownType) (string, string) {
	if b == BreakdownOwners {
		return "unassigned", UnassignedLabel
	}
	return "unknown", UnknownLabel
}

// GetComparisonData breaks the range's leads down by the chosen
// dimension, with each value's share of the total and a daily
// timeline over the full bucket sequence.
func (db *DB) GetComparisonData(
	ctx context.Context, f AnalyticsFilter, b BreakdownType,
) ([]ComparisonItem, error) {
	query, ok := dimensionQueries[b]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBreakdown, b)
	}
	s, err := f.resolve()
	if err != nil {
		return nil, err
	}

	var rows []dimensionRow
	if err := db.selectRows(
		ctx, &rows, query, s.whereArgs(s.current)...,
	); err != nil {
		return nil, fmt.Errorf("querying %s comparison: %w", b, err)
	}

	type group struct {
		name  string
		total int
		days  map[string]int
	}
	groups := make(map[string]*group)
	total := 0
	for _, r := range rows {
		key, name := r.Key, r.Name
		if key == "" {
			key, name = missingLabel(b)
		}
		if name == "" {
			name = key
		}
		g, ok := groups[key]
		if !ok {
			g = &group{name: name, days: make(map[string]int)}
			groups[key] = g
		}
		g.total++
		g.days[s.dayOf(r.At)]++
		total++
	}

	items := make([]ComparisonItem, 0, len(groups))
	for key, g := range groups {
		timeline := make([]TimelinePoint, 0, len(s.days))
		for _, day := range s.days {
			timeline = append(timeline, TimelinePoint{
				Date: day, Leads: g.days[day],
			})
		}
		items = append(items, ComparisonItem{
			ID:              key,
			Name:            g.name,
			Leads:           g.total,
			LeadsPercentage: percentOf(g.total, total),
			Timeline:        timeline,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Leads != items[j].Leads {
			return items[i].Leads > items[j].Leads
		}
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}
