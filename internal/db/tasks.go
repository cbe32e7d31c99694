package db

import (
	"context"
	"fmt"
	"sort"
)

const topAssigneeLimit = 5

// LabelCount is a histogram bucket.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// AssigneeStats is one row of the task leaderboard.
type AssigneeStats struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Tasks     int    `json:"tasks"`
	Completed int    `json:"completed"`
}

// TaskAnalytics is the response for the task dashboard.
type TaskAnalytics struct {
	TotalTasks     int             `json:"totalTasks"`
	CompletedTasks int             `json:"completedTasks"`
	CompletionRate float64         `json:"completionRate"`
	ByStatus       []LabelCount    `json:"byStatus"`
	ByPriority     []LabelCount    `json:"byPriority"`
	TopAssignees   []AssigneeStats `json:"topAssignees"`
}

// GetTaskAnalytics summarizes tasks created within the range.
// There is no previous-period comparison.
func (db *DB) GetTaskAnalytics(
	ctx context.Context, f AnalyticsFilter,
) (TaskAnalytics, error) {
	s, err := f.resolve()
	if err != nil {
		return TaskAnalytics{}, err
	}

	var rows []struct {
		AssigneeID   string `db:"assignee_id"`
		AssigneeName string `db:"assignee_name"`
		Status       string `db:"status"`
		Priority     string `db:"priority"`
	}
	err = db.selectRows(ctx, &rows,
		`SELECT COALESCE(t.assignee_id, '') AS assignee_id,
			COALESCE(u.name, '') AS assignee_name,
			t.status AS status, t.priority AS priority
		FROM tasks t
		LEFT JOIN users u
			ON u.id = t.assignee_id AND u.workspace_id = t.workspace_id
		WHERE t.workspace_id = ?
		AND t.created_at >= ? AND t.created_at < ?`,
		s.whereArgs(s.current)...,
	)
	if err != nil {
		return TaskAnalytics{}, fmt.Errorf("querying tasks: %w", err)
	}

	var out TaskAnalytics
	statuses := make(map[string]int)
	priorities := make(map[string]int)
	assignees := make(map[string]*AssigneeStats)
	for _, r := range rows {
		done := r.Status == TaskCompleted
		out.TotalTasks++
		if done {
			out.CompletedTasks++
		}
		statuses[r.Status]++
		priorities[r.Priority]++

		id, name := r.AssigneeID, r.AssigneeName
		if id == "" {
			id, name = "unassigned", UnassignedLabel
		}
		a, ok := assignees[id]
		if !ok {
			a = &AssigneeStats{UserID: id, Name: orDefault(name, id)}
			assignees[id] = a
		}
		a.Tasks++
		if done {
			a.Completed++
		}
	}
	out.CompletionRate = percentOf(out.CompletedTasks, out.TotalTasks)
	out.ByStatus = histogram(statuses)
	out.ByPriority = histogram(priorities)

	top := make([]AssigneeStats, 0, len(assignees))
	for _, a := range assignees {
		top = append(top, *a)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Tasks != top[j].Tasks {
			return top[i].Tasks > top[j].Tasks
		}
		if top[i].Name != top[j].Name {
			return top[i].Name < top[j].Name
		}
		return top[i].UserID < top[j].UserID
	})
	if len(top) > topAssigneeLimit {
		top = top[:topAssigneeLimit]
	}
	out.TopAssignees = top
	return out, nil
}

// histogram orders counts by size, then label.
func histogram(counts map[string]int) []LabelCount {
	out := make([]LabelCount, 0, len(counts))
	for label, n := range counts {
		out = append(out, LabelCount{Label: label, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}
