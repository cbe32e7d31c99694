package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/coachlead/leadview/internal/config"
	"github.com/coachlead/leadview/internal/db"
	"github.com/coachlead/leadview/internal/timeutil"
)

const maxSeedDays = 365

// SeedConfig holds parsed CLI options for the seed command.
type SeedConfig struct {
	Workspace   string
	Name        string
	Days        int
	LeadsPerDay int
	Seed        uint64
}

func parseSeedFlags(args []string) (SeedConfig, error) {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	workspace := fs.String("workspace", "", "Workspace to seed")
	name := fs.String("name", "", "Workspace display name")
	days := fs.Int("days", 30, "Days of history to generate")
	perDay := fs.Int("leads-per-day", 8, "Average new leads per day")
	seed := fs.Uint64("seed", 1, "Random seed")

	if err := fs.Parse(args); err != nil {
		return SeedConfig{}, err
	}
	if *workspace == "" {
		return SeedConfig{}, fmt.Errorf("-workspace is required")
	}
	if *days < 1 || *days > maxSeedDays {
		return SeedConfig{}, fmt.Errorf(
			"days must be between 1 and %d", maxSeedDays,
		)
	}
	if *perDay < 0 {
		return SeedConfig{}, fmt.Errorf("leads-per-day must be >= 0")
	}
	if *name == "" {
		*name = *workspace
	}
	return SeedConfig{
		Workspace:   *workspace,
		Name:        *name,
		Days:        *days,
		LeadsPerDay: *perDay,
		Seed:        *seed,
	}, nil
}

// SeedSummary counts the records written by one seed run.
type SeedSummary struct {
	Users         int
	Campaigns     int
	Leads         int
	CampaignLeads int
	Calls         int
	Tasks         int
}

// Seeder writes demo data into a workspace.
type Seeder struct {
	DB  *db.DB
	Out io.Writer
	Now func() time.Time
}

type weighted struct {
	value  string
	weight int
}

var (
	seedAgents = []string{
		"Asha Rao", "Vikram Singh", "Neha Kulkarni",
		"Rohan Mehta", "Fatima Shaikh",
	}
	seedCampaigns = []string{
		"JEE Crash Course", "NEET Foundation", "Weekend Batch",
	}
	seedSources = []weighted{
		{"Facebook", 30}, {"Google Ads", 20}, {"Walk-in", 15},
		{"Referral", 15}, {"Website", 10}, {"", 10},
	}
	seedStatuses = []weighted{
		{db.StatusNew, 35}, {db.StatusContacted, 20},
		{db.StatusInterested, 15}, {db.StatusQualified, 10},
		{db.StatusConverted, 10}, {db.StatusWon, 5}, {db.StatusLost, 5},
	}
	seedCallStatuses = []weighted{
		{db.CallCompleted, 60}, {db.CallNoAnswer, 25},
		{db.CallBusy, 10}, {db.CallFailed, 5},
	}
	seedOutcomes = []weighted{
		{db.OutcomeInterested, 40}, {db.OutcomeCallback, 35},
		{db.OutcomeNotNow, 25},
	}
	seedTaskStatuses = []weighted{
		{db.TaskPending, 40}, {db.TaskInProgress, 20},
		{db.TaskCompleted, 35}, {db.TaskCancelled, 5},
	}
	seedPriorities = []weighted{
		{db.PriorityLow, 25}, {db.PriorityMedium, 45},
		{db.PriorityHigh, 20}, {db.PriorityUrgent, 10},
	}
)

func pick(rng *rand.Rand, choices []weighted) string {
	total := 0
	for _, c := range choices {
		total += c.weight
	}
	n := rng.IntN(total)
	for _, c := range choices {
		if n < c.weight {
			return c.value
		}
		n -= c.weight
	}
	return choices[len(choices)-1].value
}

func categoryFor(status string) string {
	switch status {
	case db.StatusNew:
		return db.CategoryFresh
	case db.StatusConverted, db.StatusWon, db.StatusLost:
		return db.CategoryClosed
	default:
		return db.CategoryActive
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Seed creates the workspace if needed and fills the last
// cfg.Days days with leads, campaign joins, calls and tasks.
func (s *Seeder) Seed(
	ctx context.Context, cfg SeedConfig,
) (SeedSummary, error) {
	var sum SeedSummary
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	end := now().UTC()
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed>>1|1))

	exists, err := s.DB.WorkspaceExists(ctx, cfg.Workspace)
	if err != nil {
		return sum, err
	}
	if !exists {
		if err := s.DB.InsertWorkspace(db.Workspace{
			ID: cfg.Workspace, Name: cfg.Name, CreatedAt: end,
		}); err != nil {
			return sum, err
		}
	}

	agents := make([]string, len(seedAgents))
	for i, name := range seedAgents {
		agents[i] = uuid.NewString()
		if err := s.DB.InsertUser(db.User{
			ID: agents[i], WorkspaceID: cfg.Workspace, Name: name,
		}); err != nil {
			return sum, err
		}
		sum.Users++
	}

	campaignIDs := make(map[string]string, len(seedCampaigns))
	for _, name := range seedCampaigns {
		id := uuid.NewString()
		if err := s.DB.InsertCampaign(db.Campaign{
			ID: id, WorkspaceID: cfg.Workspace, Name: name,
			CreatedAt: end.AddDate(0, 0, -cfg.Days),
		}); err != nil {
			return sum, err
		}
		campaignIDs[name] = id
		sum.Campaigns++
	}

	clamp := func(t time.Time) time.Time {
		if t.After(end) {
			return end
		}
		return t
	}
	today := timeutil.StartOfDay(end, time.UTC)

	for d := cfg.Days - 1; d >= 0; d-- {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		day := today.AddDate(0, 0, -d)
		n := 0
		if cfg.LeadsPerDay > 0 {
			n = rng.IntN(2*cfg.LeadsPerDay + 1)
		}
		for range n {
			created := clamp(day.Add(
				time.Duration(rng.IntN(86400)) * time.Second,
			))
			status := pick(rng, seedStatuses)
			converted := status == db.StatusConverted ||
				status == db.StatusWon

			lead := db.Lead{
				ID:          uuid.NewString(),
				WorkspaceID: cfg.Workspace,
				Name:        fmt.Sprintf("Student %d", sum.Leads+1),
				Status:      status,
				Category:    categoryFor(status),
				Source:      strPtr(pick(rng, seedSources)),
				CreatedAt:   created,
				UpdatedAt: clamp(created.Add(
					time.Duration(rng.IntN(72)) * time.Hour,
				)),
			}
			if converted {
				lead.Revenue = float64(5000 + rng.IntN(20)*1000)
			}
			var owner string
			if rng.IntN(10) < 8 {
				owner = agents[rng.IntN(len(agents))]
				lead.OwnerID = &owner
			}
			var campaign string
			if rng.IntN(10) < 6 {
				campaign = seedCampaigns[rng.IntN(len(seedCampaigns))]
				lead.Campaign = &campaign
			}
			if err := s.DB.InsertLead(lead); err != nil {
				return sum, err
			}
			sum.Leads++

			if campaign != "" {
				if err := s.DB.AddCampaignLead(db.CampaignLead{
					CampaignID:  campaignIDs[campaign],
					LeadID:      lead.ID,
					WorkspaceID: cfg.Workspace,
					CreatedAt:   created,
				}); err != nil {
					return sum, err
				}
				sum.CampaignLeads++
			}

			calls, err := s.seedCalls(rng, cfg.Workspace, lead, owner, agents, clamp)
			sum.Calls += calls
			if err != nil {
				return sum, err
			}

			if rng.IntN(10) < 4 {
				if err := s.DB.InsertTask(db.Task{
					ID:          uuid.NewString(),
					WorkspaceID: cfg.Workspace,
					AssigneeID:  strPtr(owner),
					Status:      pick(rng, seedTaskStatuses),
					Priority:    pick(rng, seedPriorities),
					CreatedAt:   created,
				}); err != nil {
					return sum, err
				}
				sum.Tasks++
			}
		}
	}

	s.writeSummary(cfg, sum)
	return sum, nil
}

// seedCalls places up to two calls against lead. A converting
// call is only recorded for leads that converted.
func (s *Seeder) seedCalls(
	rng *rand.Rand, workspace string, lead db.Lead,
	owner string, agents []string, clamp func(time.Time) time.Time,
) (int, error) {
	converted := lead.Status == db.StatusConverted ||
		lead.Status == db.StatusWon
	n := rng.IntN(3)
	for i := range n {
		agent := owner
		if agent == "" {
			agent = agents[rng.IntN(len(agents))]
		}
		status := pick(rng, seedCallStatuses)
		var outcome *string
		if status == db.CallCompleted {
			o := pick(rng, seedOutcomes)
			if converted && i == n-1 {
				o = db.OutcomeConverted
			}
			outcome = &o
		}
		leadID := lead.ID
		if err := s.DB.InsertCall(db.Call{
			ID:          uuid.NewString(),
			WorkspaceID: workspace,
			UserID:      agent,
			LeadID:      &leadID,
			Status:      status,
			Outcome:     outcome,
			StartedAt: clamp(lead.CreatedAt.Add(
				time.Duration(i+1) * time.Duration(1+rng.IntN(12)) * time.Hour,
			)),
		}); err != nil {
			return i, err
		}
	}
	return n, nil
}

func (s *Seeder) writeSummary(cfg SeedConfig, sum SeedSummary) {
	if s.Out == nil {
		return
	}
	fmt.Fprintf(s.Out,
		"Seeded workspace %s with %d days of history\n",
		cfg.Workspace, cfg.Days,
	)
	for _, row := range []struct {
		label string
		n     int
	}{
		{"users", sum.Users},
		{"campaigns", sum.Campaigns},
		{"leads", sum.Leads},
		{"campaign joins", sum.CampaignLeads},
		{"calls", sum.Calls},
		{"tasks", sum.Tasks},
	} {
		fmt.Fprintf(s.Out, "  %-16s %d\n", row.label, row.n)
	}
}

func runSeed(args []string) {
	cfg, err := parseSeedFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	appCfg, err := config.LoadMinimal()
	if err != nil {
		logrus.Fatalf("loading config: %v", err)
	}
	mustConfigureLogger(appCfg)

	database := mustOpenDB(appCfg)
	defer database.Close()

	seeder := &Seeder{DB: database, Out: os.Stdout}
	if _, err := seeder.Seed(context.Background(), cfg); err != nil {
		logrus.WithError(err).Fatal("seed failed")
	}
}
