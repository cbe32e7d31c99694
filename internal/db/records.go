package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Lead statuses.
const (
	StatusNew        = "NEW"
	StatusContacted  = "CONTACTED"
	StatusQualified  = "QUALIFIED"
	StatusInterested = "INTERESTED"
	StatusConverted  = "CONVERTED"
	StatusWon        = "WON"
	StatusLost       = "LOST"
)

// Lead categories.
const (
	CategoryFresh  = "FRESH"
	CategoryActive = "ACTIVE"
	CategoryClosed = "CLOSED"
)

// Call statuses and outcomes.
const (
	CallCompleted = "COMPLETED"
	CallNoAnswer  = "NO_ANSWER"
	CallBusy      = "BUSY"
	CallFailed    = "FAILED"

	OutcomeConverted  = "CONVERTED"
	OutcomeInterested = "INTERESTED"
	OutcomeCallback   = "CALLBACK"
	OutcomeNotNow     = "NOT_INTERESTED"
)

// Task statuses and priorities.
const (
	TaskPending    = "PENDING"
	TaskInProgress = "IN_PROGRESS"
	TaskCompleted  = "COMPLETED"
	TaskCancelled  = "CANCELLED"

	PriorityLow    = "LOW"
	PriorityMedium = "MEDIUM"
	PriorityHigh   = "HIGH"
	PriorityUrgent = "URGENT"
)

// convertedStatuses are the terminal statuses counted as a
// conversion.
var convertedStatuses = []string{StatusConverted, StatusWon}

// Workspace is a tenant.
type Workspace struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// User is a workspace member, referenced by name in leaderboards.
type User struct {
	ID          string `db:"id" json:"id"`
	WorkspaceID string `db:"workspace_id" json:"workspaceId"`
	Name        string `db:"name" json:"name"`
}

// Lead is a prospective student record.
type Lead struct {
	ID          string    `db:"id"`
	WorkspaceID string    `db:"workspace_id"`
	Name        string    `db:"name"`
	Status      string    `db:"status"`
	Category    string    `db:"category"`
	Source      *string   `db:"source"`
	Campaign    *string   `db:"campaign"`
	OwnerID     *string   `db:"owner_id"`
	Revenue     float64   `db:"revenue"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Campaign carries counters maintained by the ingestion side.
type Campaign struct {
	ID             string    `db:"id"`
	WorkspaceID    string    `db:"workspace_id"`
	Name           string    `db:"name"`
	TotalLeads     int       `db:"total_leads"`
	ConvertedLeads int       `db:"converted_leads"`
	CreatedAt      time.Time `db:"created_at"`
}

// CampaignLead links a lead to a campaign at a point in time.
type CampaignLead struct {
	CampaignID  string    `db:"campaign_id"`
	LeadID      string    `db:"lead_id"`
	WorkspaceID string    `db:"workspace_id"`
	CreatedAt   time.Time `db:"created_at"`
}

// Call is one outbound call placed by an agent.
type Call struct {
	ID          string    `db:"id"`
	WorkspaceID string    `db:"workspace_id"`
	UserID      string    `db:"user_id"`
	LeadID      *string   `db:"lead_id"`
	Status      string    `db:"status"`
	Outcome     *string   `db:"outcome"`
	StartedAt   time.Time `db:"started_at"`
}

// Task is a follow-up assigned to a workspace member.
type Task struct {
	ID          string    `db:"id"`
	WorkspaceID string    `db:"workspace_id"`
	AssigneeID  *string   `db:"assignee_id"`
	Status      string    `db:"status"`
	Priority    string    `db:"priority"`
	CreatedAt   time.Time `db:"created_at"`
}

// utc normalizes timestamps before they are stored so that
// range comparisons behave the same on every driver.
func utc(t time.Time) time.Time {
	return t.UTC()
}

func (db *DB) insert(query string, arg any) error {
	return db.Update(func(tx *sqlx.Tx) error {
		_, err := tx.NamedExec(query, arg)
		return err
	})
}

// InsertWorkspace creates a tenant.
func (db *DB) InsertWorkspace(w Workspace) error {
	w.CreatedAt = utc(w.CreatedAt)
	if err := db.insert(`INSERT INTO workspaces (id, name, created_at)
		VALUES (:id, :name, :created_at)`, w); err != nil {
		return fmt.Errorf("inserting workspace %s: %w", w.ID, err)
	}
	return nil
}

// WorkspaceExists reports whether a tenant with id is stored.
func (db *DB) WorkspaceExists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := db.scalar(ctx, &n,
		`SELECT COUNT(*) FROM workspaces WHERE id = ?`, id,
	); err != nil {
		return false, fmt.Errorf("looking up workspace %s: %w", id, err)
	}
	return n > 0, nil
}

// InsertUser adds a workspace member.
func (db *DB) InsertUser(u User) error {
	if err := db.insert(`INSERT INTO users (id, workspace_id, name)
		VALUES (:id, :workspace_id, :name)`, u); err != nil {
		return fmt.Errorf("inserting user %s: %w", u.ID, err)
	}
	return nil
}

// InsertLead stores a lead. Missing status, category and
// updated_at are defaulted.
func (db *DB) InsertLead(l Lead) error {
	if l.Status == "" {
		l.Status = StatusNew
	}
	if l.Category == "" {
		l.Category = CategoryFresh
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = l.CreatedAt
	}
	l.CreatedAt = utc(l.CreatedAt)
	l.UpdatedAt = utc(l.UpdatedAt)
	if err := db.insert(`INSERT INTO leads
		(id, workspace_id, name, status, category, source,
		 campaign, owner_id, revenue, created_at, updated_at)
		VALUES
		(:id, :workspace_id, :name, :status, :category, :source,
		 :campaign, :owner_id, :revenue, :created_at, :updated_at)`,
		l); err != nil {
		return fmt.Errorf("inserting lead %s: %w", l.ID, err)
	}
	return nil
}

// InsertCampaign stores a campaign.
func (db *DB) InsertCampaign(c Campaign) error {
	c.CreatedAt = utc(c.CreatedAt)
	if err := db.insert(`INSERT INTO campaigns
		(id, workspace_id, name, total_leads, converted_leads, created_at)
		VALUES
		(:id, :workspace_id, :name, :total_leads, :converted_leads, :created_at)`,
		c); err != nil {
		return fmt.Errorf("inserting campaign %s: %w", c.ID, err)
	}
	return nil
}

// AddCampaignLead records a lead joining a campaign.
func (db *DB) AddCampaignLead(cl CampaignLead) error {
	cl.CreatedAt = utc(cl.CreatedAt)
	if err := db.insert(`INSERT INTO campaign_leads
		(campaign_id, lead_id, workspace_id, created_at)
		VALUES (:campaign_id, :lead_id, :workspace_id, :created_at)`,
		cl); err != nil {
		return fmt.Errorf(
			"linking lead %s to campaign %s: %w",
			cl.LeadID, cl.CampaignID, err,
		)
	}
	return nil
}

// InsertCall stores a call record.
func (db *DB) InsertCall(c Call) error {
	c.StartedAt = utc(c.StartedAt)
	if err := db.insert(`INSERT INTO calls
		(id, workspace_id, user_id, lead_id, status, outcome, started_at)
		VALUES
		(:id, :workspace_id, :user_id, :lead_id, :status, :outcome, :started_at)`,
		c); err != nil {
		return fmt.Errorf("inserting call %s: %w", c.ID, err)
	}
	return nil
}

// InsertTask stores a task. Missing status and priority are
// defaulted.
func (db *DB) InsertTask(t Task) error {
	if t.Status == "" {
		t.Status = TaskPending
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	t.CreatedAt = utc(t.CreatedAt)
	if err := db.insert(`INSERT INTO tasks
		(id, workspace_id, assignee_id, status, priority, created_at)
		VALUES
		(:id, :workspace_id, :assignee_id, :status, :priority, :created_at)`,
		t); err != nil {
		return fmt.Errorf("inserting task %s: %w", t.ID, err)
	}
	return nil
}
