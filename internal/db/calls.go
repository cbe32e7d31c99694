package db

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// DirectCampaignLabel groups calls whose lead has no campaign.
const DirectCampaignLabel = "Direct / Other"

// topAgentLimit caps the agent leaderboard.
const topAgentLimit = 10

// CallOverall is the workspace-wide call summary.
type CallOverall struct {
	TotalCalls       int    `json:"totalCalls"`
	AnsweredCalls    int    `json:"answeredCalls"`
	AnswerRate       string `json:"answerRate"`
	ActiveAgents     int    `json:"activeAgents"`
	AvgCallsPerAgent int    `json:"avgCallsPerAgent"`
	Conversions      int    `json:"conversions"`
	ConversionRate   string `json:"conversionRate"`
}

// CallTimelineEntry is one day of call activity.
type CallTimelineEntry struct {
	Date             string `json:"date"`
	ActiveAgents     int    `json:"activeAgents"`
	TotalCalls       int    `json:"totalCalls"`
	AvgCallsPerAgent int    `json:"avgCallsPerAgent"`
}

// CampaignCallStats groups calls by the lead's campaign.
type CampaignCallStats struct {
	Campaign       string `json:"campaign"`
	Agents         int    `json:"agents"`
	Calls          int    `json:"calls"`
	Conversions    int    `json:"conversions"`
	CallsPerAgent  int    `json:"callsPerAgent"`
	ConversionRate string `json:"conversionRate"`
}

// AgentCallStats is one row of the agent leaderboard.
type AgentCallStats struct {
	UserID        string `json:"userId"`
	Name          string `json:"name"`
	TotalCalls    int    `json:"totalCalls"`
	AnsweredCalls int    `json:"answeredCalls"`
	AnswerRate    string `json:"answerRate"`
	Conversions   int    `json:"conversions"`
}

// CallAnalytics is the response for the agent call dashboard.
type CallAnalytics struct {
	Overall       CallOverall         `json:"overall"`
	Timeline      []CallTimelineEntry `json:"timeline"`
	CampaignStats []CampaignCallStats `json:"campaignStats"`
	TopAgents     []AgentCallStats    `json:"topAgents"`
}

type callRow struct {
	UserID    string    `db:"user_id"`
	UserName  string    `db:"user_name"`
	Status    string    `db:"status"`
	Outcome   string    `db:"outcome"`
	Campaign  string    `db:"campaign"`
	StartedAt time.Time `db:"started_at"`
}

// GetAgentCallAnalytics folds the range's calls into a daily
// agent timeline, overall rates, a per-campaign table and the
// agent leaderboard.
func (db *DB) GetAgentCallAnalytics(
	ctx context.Context, f AnalyticsFilter,
) (CallAnalytics, error) {
	s, err := f.resolve()
	if err != nil {
		return CallAnalytics{}, err
	}

	var rows []callRow
	err = db.selectRows(ctx, &rows,
		`SELECT c.user_id AS user_id,
			COALESCE(u.name, '') AS user_name,
			c.status AS status,
			COALESCE(c.outcome, '') AS outcome,
			COALESCE(l.campaign, '') AS campaign,
			c.started_at AS started_at
		FROM calls c
		LEFT JOIN users u
			ON u.id = c.user_id AND u.workspace_id = c.workspace_id
		LEFT JOIN leads l
			ON l.id = c.lead_id AND l.workspace_id = c.workspace_id
		WHERE c.workspace_id = ?
		AND c.started_at >= ? AND c.started_at < ?`,
		s.whereArgs(s.current)...,
	)
	if err != nil {
		return CallAnalytics{}, fmt.Errorf("querying calls: %w", err)
	}

	type dayAgg struct {
		calls  int
		agents map[string]bool
	}
	type campaignAgg struct {
		calls       int
		conversions int
		agents      map[string]bool
	}
	days := make(map[string]*dayAgg)
	campaigns := make(map[string]*campaignAgg)
	agents := make(map[string]*AgentCallStats)

	var overall CallOverall
	for _, r := range rows {
		answered := r.Status == CallCompleted
		converted := r.Outcome == OutcomeConverted

		overall.TotalCalls++
		if answered {
			overall.AnsweredCalls++
		}
		if converted {
			overall.Conversions++
		}

		day := s.dayOf(r.StartedAt)
		d, ok := days[day]
		if !ok {
			d = &dayAgg{agents: make(map[string]bool)}
			days[day] = d
		}
		d.calls++
		d.agents[r.UserID] = true

		name := orDefault(r.Campaign, DirectCampaignLabel)
		c, ok := campaigns[name]
		if !ok {
			c = &campaignAgg{agents: make(map[string]bool)}
			campaigns[name] = c
		}
		c.calls++
		c.agents[r.UserID] = true
		if converted {
			c.conversions++
		}

		a, ok := agents[r.UserID]
		if !ok {
			a = &AgentCallStats{
				UserID: r.UserID,
				Name:   orDefault(r.UserName, r.UserID),
			}
			agents[r.UserID] = a
		}
		a.TotalCalls++
		if answered {
			a.AnsweredCalls++
		}
		if converted {
			a.Conversions++
		}
	}

	overall.ActiveAgents = len(agents)
	overall.AvgCallsPerAgent = roundedRatio(
		overall.TotalCalls, overall.ActiveAgents,
	)
	overall.AnswerRate = rateString(
		overall.AnsweredCalls, overall.TotalCalls,
	)
	overall.ConversionRate = rateString(
		overall.Conversions, overall.TotalCalls,
	)

	timeline := make([]CallTimelineEntry, 0, len(s.days))
	for _, day := range s.days {
		e := CallTimelineEntry{Date: day}
		if d, ok := days[day]; ok {
			e.TotalCalls = d.calls
			e.ActiveAgents = len(d.agents)
			e.AvgCallsPerAgent = roundedRatio(d.calls, len(d.agents))
		}
		timeline = append(timeline, e)
	}

	campaignStats := make([]CampaignCallStats, 0, len(campaigns))
	for name, c := range campaigns {
		campaignStats = append(campaignStats, CampaignCallStats{
			Campaign:       name,
			Agents:         len(c.agents),
			Calls:          c.calls,
			Conversions:    c.conversions,
			CallsPerAgent:  roundedRatio(c.calls, len(c.agents)),
			ConversionRate: rateString(c.conversions, c.calls),
		})
	}
	sort.Slice(campaignStats, func(i, j int) bool {
		if campaignStats[i].Calls != campaignStats[j].Calls {
			return campaignStats[i].Calls > campaignStats[j].Calls
		}
		return campaignStats[i].Campaign < campaignStats[j].Campaign
	})

	topAgents := make([]AgentCallStats, 0, len(agents))
	for _, a := range agents {
		a.AnswerRate = rateString(a.AnsweredCalls, a.TotalCalls)
		topAgents = append(topAgents, *a)
	}
	sort.Slice(topAgents, func(i, j int) bool {
		if topAgents[i].TotalCalls != topAgents[j].TotalCalls {
			return topAgents[i].TotalCalls > topAgents[j].TotalCalls
		}
		if topAgents[i].Name != topAgents[j].Name {
			return topAgents[i].Name < topAgents[j].Name
		}
		return topAgents[i].UserID < topAgents[j].UserID
	})
	if len(topAgents) > topAgentLimit {
		topAgents = topAgents[:topAgentLimit]
	}

	return CallAnalytics{
		Overall:       overall,
		Timeline:      timeline,
		CampaignStats: campaignStats,
		TopAgents:     topAgents,
	}, nil
}
