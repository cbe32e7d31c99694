package server

import (
	"net/http"

	"github.com/coachlead/leadview/internal/db"
)

func (s *Server) handleTimeSeries(
	w http.ResponseWriter, r *http.Request,
) {
	f, ok := parseAnalyticsFilter(w, r)
	if !ok {
		return
	}
	result, err := s.db.GetTimeSeries(r.Context(), f)
	s.writeResult(w, r, "timeseries", result, err)
}

func (s *Server) handleKeyMetrics(
	w http.ResponseWriter, r *http.Request,
) {
	f, ok := parseAnalyticsFilter(w, r)
	if !ok {
		return
	}
	result, err := s.db.GetKeyMetrics(r.Context(), f)
	s.writeResult(w, r, "key-metrics", result, err)
}

func (s *Server) handleTopContent(
	w http.ResponseWriter, r *http.Request,
) {
	f, ok := parseAnalyticsFilter(w, r)
	if !ok {
		return
	}
	limit, ok := parseIntParam(w, r, "limit")
	if !ok {
		return
	}
	if limit < 0 || limit > db.MaxTopContentLimit {
		writeError(w, http.StatusBadRequest,
			"invalid limit: must be between 1 and 50")
		return
	}
	result, err := s.db.GetTopContent(r.Context(), f, limit)
	s.writeResult(w, r, "top-content", result, err)
}

func (s *Server) handleSources(
	w http.ResponseWriter, r *http.Request,
) {
	f, ok := parseAnalyticsFilter(w, r)
	if !ok {
		return
	}
	result, err := s.db.GetLeadSourceBreakdown(r.Context(), f)
	s.writeResult(w, r, "sources", result, err)
}

func (s *Server) handleComparison(
	w http.ResponseWriter, r *http.Request,
) {
	f, ok := parseAnalyticsFilter(w, r)
	if !ok {
		return
	}
	name := r.URL.Query().Get("breakdown")
	if name == "" {
		name = string(db.BreakdownCampaigns)
	}
	breakdown, err := db.ParseBreakdownType(name)
	if err != nil {
		writeError(w, http.StatusBadRequest,
			"invalid breakdown: must be campaigns, sources, owners, or statuses")
		return
	}
	result, err := s.db.GetComparisonData(r.Context(), f, breakdown)
	s.writeResult(w, r, "comparison", result, err)
}

func (s *Server) handleCalls(
	w http.ResponseWriter, r *http.Request,
) {
	f, ok := parseAnalyticsFilter(w, r)
	if !ok {
		return
	}
	result, err := s.db.GetAgentCallAnalytics(r.Context(), f)
	s.writeResult(w, r, "calls", result, err)
}

func (s *Server) handleRevenue(
	w http.ResponseWriter, r *http.Request,
) {
	f, ok := parseAnalyticsFilter(w, r)
	if !ok {
		return
	}
	result, err := s.db.GetRevenueAnalytics(r.Context(), f)
	s.writeResult(w, r, "revenue", result, err)
}

func (s *Server) handleTasks(
	w http.ResponseWriter, r *http.Request,
) {
	f, ok := parseAnalyticsFilter(w, r)
	if !ok {
		return
	}
	result, err := s.db.GetTaskAnalytics(r.Context(), f)
	s.writeResult(w, r, "tasks", result, err)
}

func (s *Server) handleGetStats(
	w http.ResponseWriter, r *http.Request,
) {
	result, err := s.db.GetStats(r.Context(), WorkspaceFrom(r.Context()))
	s.writeResult(w, r, "stats", result, err)
}
