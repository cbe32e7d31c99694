package db

import (
	"context"
	"fmt"
	"sort"
)

// Top-content limits.
const (
	DefaultTopContentLimit = 5
	MaxTopContentLimit     = 50
)

// UnknownLabel is used for leads with no source or status.
const UnknownLabel = "Unknown"

// ContentItem is one campaign on the top-content list.
type ContentItem struct {
	ID    string `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Leads int    `db:"leads" json:"leads"`
}

// ClampTopContentLimit maps a requested limit into the supported
// range, using the default for non-positive values.
func ClampTopContentLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultTopContentLimit
	case limit > MaxTopContentLimit:
		return MaxTopContentLimit
	default:
		return limit
	}
}

// GetTopContent ranks campaigns by leads that joined them within
// the range.
func (db *DB) GetTopContent(
	ctx context.Context, f AnalyticsFilter, limit int,
) ([]ContentItem, error) {
	s, err := f.resolve()
	if err != nil {
		return nil, err
	}
	limit = ClampTopContentLimit(limit)

	items := []ContentItem{}
	err = db.selectRows(ctx, &items,
		`SELECT c.id AS id, c.name AS name, COUNT(*) AS leads
		FROM campaign_leads cl
		JOIN campaigns c
			ON c.id = cl.campaign_id
			AND c.workspace_id = cl.workspace_id
		WHERE cl.workspace_id = ?
		AND cl.created_at >= ? AND cl.created_at < ?
		GROUP BY c.id, c.name
		ORDER BY leads DESC, c.name ASC, c.id ASC
		LIMIT ?`,
		s.whereArgs(s.current, limit)...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying top content: %w", err)
	}
	return items, nil
}

// SourceShare is one lead source with its share of the range.
type SourceShare struct {
	Source     string  `json:"source"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// GetLeadSourceBreakdown groups leads created in the range by
// source. Empty sources are reported as "Unknown".
func (db *DB) GetLeadSourceBreakdown(
	ctx context.Context, f AnalyticsFilter,
) ([]SourceShare, error) {
	s, err := f.resolve()
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Source string `db:"source"`
		Count  int    `db:"n"`
	}
	err = db.selectRows(ctx, &rows,
		`SELECT COALESCE(source, '') AS source, COUNT(*) AS n
		FROM leads
		WHERE workspace_id = ?
		AND created_at >= ? AND created_at < ?
		GROUP BY COALESCE(source, '')`,
		s.whereArgs(s.current)...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying lead sources: %w", err)
	}

	// NULL and '' both land on Unknown.
	counts := make(map[string]int)
	total := 0
	for _, r := range rows {
		counts[orDefault(r.Source, UnknownLabel)] += r.Count
		total += r.Count
	}

	shares := make([]SourceShare, 0, len(counts))
	for source, n := range counts {
		shares = append(shares, SourceShare{
			Source:     source,
			Count:      n,
			Percentage: percentOf(n, total),
		})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Count != shares[j].Count {
			return shares[i].Count > shares[j].Count
		}
		return shares[i].Source < shares[j].Source
	})
	return shares, nil
}
