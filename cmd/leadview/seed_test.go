package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachlead/leadview/internal/db"
)

func TestParseSeedFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
		want    SeedConfig
	}{
		{
			name:    "missing workspace",
			args:    []string{},
			wantErr: "-workspace is required",
		},
		{
			name: "defaults",
			args: []string{"-workspace", "ws-demo"},
			want: SeedConfig{
				Workspace: "ws-demo", Name: "ws-demo",
				Days: 30, LeadsPerDay: 8, Seed: 1,
			},
		},
		{
			name: "all flags",
			args: []string{
				"-workspace", "ws-demo",
				"-name", "Demo Institute",
				"-days", "7",
				"-leads-per-day", "3",
				"-seed", "42",
			},
			want: SeedConfig{
				Workspace: "ws-demo", Name: "Demo Institute",
				Days: 7, LeadsPerDay: 3, Seed: 42,
			},
		},
		{
			name:    "zero days",
			args:    []string{"-workspace", "w", "-days", "0"},
			wantErr: "days must be between",
		},
		{
			name:    "too many days",
			args:    []string{"-workspace", "w", "-days", "366"},
			wantErr: "days must be between",
		},
		{
			name:    "negative leads",
			args:    []string{"-workspace", "w", "-leads-per-day", "-1"},
			wantErr: "leads-per-day must be >= 0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSeedFlags(tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSeedFlagsHelp(t *testing.T) {
	_, err := parseSeedFlags([]string{"-h"})
	assert.True(t, errors.Is(err, flag.ErrHelp))
}

func openSeedDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "seed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestSeederSeed(t *testing.T) {
	database := openSeedDB(t)
	now := time.Date(2024, 5, 20, 15, 0, 0, 0, time.UTC)
	var out bytes.Buffer
	s := &Seeder{DB: database, Out: &out, Now: func() time.Time { return now }}

	cfg := SeedConfig{
		Workspace: "ws-demo", Name: "Demo", Days: 14,
		LeadsPerDay: 5, Seed: 7,
	}
	sum, err := s.Seed(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, len(seedAgents), sum.Users)
	assert.Equal(t, len(seedCampaigns), sum.Campaigns)
	assert.Positive(t, sum.Leads)
	assert.LessOrEqual(t, sum.CampaignLeads, sum.Leads)

	stats, err := database.GetStats(context.Background(), "ws-demo")
	require.NoError(t, err)
	assert.Equal(t, sum.Leads, stats.LeadCount)
	assert.Equal(t, sum.Campaigns, stats.CampaignCount)
	assert.Equal(t, sum.Calls, stats.CallCount)
	assert.Equal(t, sum.Tasks, stats.TaskCount)
	assert.Equal(t, sum.Users, stats.UserCount)

	series, err := database.GetTimeSeries(context.Background(), db.AnalyticsFilter{
		WorkspaceID: "ws-demo", From: "2024-05-07", To: "2024-05-20",
	})
	require.NoError(t, err)
	total := 0
	for _, p := range series {
		total += p.Leads
	}
	assert.Equal(t, sum.Leads, total, "every seeded lead falls in the window")

	assert.True(t, strings.HasPrefix(out.String(),
		"Seeded workspace ws-demo with 14 days of history"))
	assert.Contains(t, out.String(), "campaign joins")
}

func TestSeederSeedExistingWorkspace(t *testing.T) {
	database := openSeedDB(t)
	s := &Seeder{DB: database}
	cfg := SeedConfig{Workspace: "ws-demo", Days: 2, LeadsPerDay: 2, Seed: 1}

	first, err := s.Seed(context.Background(), cfg)
	require.NoError(t, err)
	second, err := s.Seed(context.Background(), cfg)
	require.NoError(t, err)

	stats, err := database.GetStats(context.Background(), "ws-demo")
	require.NoError(t, err)
	assert.Equal(t, first.Leads+second.Leads, stats.LeadCount)
	assert.Equal(t, 2*len(seedAgents), stats.UserCount)
}

func TestSeederSeedCanceled(t *testing.T) {
	database := openSeedDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &Seeder{DB: database}
	_, err := s.Seed(ctx, SeedConfig{
		Workspace: "ws-demo", Days: 3, LeadsPerDay: 1, Seed: 1,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPick(t *testing.T) {
	choices := []weighted{{"a", 0}, {"b", 1}}
	rng := rand.New(rand.NewPCG(1, 2))
	for range 20 {
		assert.Equal(t, "b", pick(rng, choices))
	}
}

func TestCategoryFor(t *testing.T) {
	assert.Equal(t, db.CategoryFresh, categoryFor(db.StatusNew))
	assert.Equal(t, db.CategoryClosed, categoryFor(db.StatusWon))
	assert.Equal(t, db.CategoryClosed, categoryFor(db.StatusLost))
	assert.Equal(t, db.CategoryActive, categoryFor(db.StatusInterested))
}
