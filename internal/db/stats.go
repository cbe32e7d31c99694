package db

import (
	"context"
	"fmt"
)

// Stats holds record counts for one workspace.
type Stats struct {
	LeadCount     int `json:"leadCount"`
	CampaignCount int `json:"campaignCount"`
	CallCount     int `json:"callCount"`
	TaskCount     int `json:"taskCount"`
	UserCount     int `json:"userCount"`
}

// GetStats returns per-table record counts for a workspace.
func (db *DB) GetStats(
	ctx context.Context, workspaceID string,
) (Stats, error) {
	if workspaceID == "" {
		return Stats{}, ErrWorkspaceRequired
	}
	const query = `
		SELECT
			(SELECT COUNT(*) FROM leads WHERE workspace_id = ?),
			(SELECT COUNT(*) FROM campaigns WHERE workspace_id = ?),
			(SELECT COUNT(*) FROM calls WHERE workspace_id = ?),
			(SELECT COUNT(*) FROM tasks WHERE workspace_id = ?),
			(SELECT COUNT(*) FROM users WHERE workspace_id = ?)`

	var s Stats
	err := db.reader.QueryRowxContext(ctx, db.reader.Rebind(query),
		workspaceID, workspaceID, workspaceID,
		workspaceID, workspaceID,
	).Scan(
		&s.LeadCount,
		&s.CampaignCount,
		&s.CallCount,
		&s.TaskCount,
		&s.UserCount,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("fetching stats: %w", err)
	}
	return s, nil
}
