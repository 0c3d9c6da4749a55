package repository

import (
	"context"
	"errors"

	"donation_portal_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown record ids. Callers decide whether
// that is a soft miss (lead lookups) or a configuration bug (pipeline and
// stage lookups).
var ErrNotFound = errors.New("record not found")

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// LeadReader provides read-only access to lead records.
type LeadReader interface {
	GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	ListLeads(ctx context.Context, workspaceID uuid.UUID) ([]domain.Lead, error)
	// ListLeadsPage supports cursor pagination for batch re-scoring. The
	// cursor is the last seen lead id; uuid.Nil starts from the beginning.
	ListLeadsPage(ctx context.Context, workspaceID uuid.UUID, cursor uuid.UUID, limit int) ([]domain.Lead, error)
	// ListFollowUpsDue returns non-archived leads whose follow-up date falls
	// on the given UTC day.
	ListFollowUpsDue(ctx context.Context, day string) ([]domain.Lead, error)
}

// LeadWriter persists whole lead documents. SaveLead is an upsert with
// last-writer-wins semantics; there is no per-record version stamp.
type LeadWriter interface {
	SaveLead(ctx context.Context, lead domain.Lead) error
}

// PipelineReader provides access to pipeline and stage definitions.
type PipelineReader interface {
	GetPipeline(ctx context.Context, id uuid.UUID) (domain.Pipeline, error)
	ListPipelines(ctx context.Context, workspaceID uuid.UUID) ([]domain.Pipeline, error)
}

// PipelineWriter persists pipeline definitions with their stages.
type PipelineWriter interface {
	SavePipeline(ctx context.Context, pipeline domain.Pipeline) error
}

// AutomationReader lists automation rules in listing order.
type AutomationReader interface {
	ListAutomations(ctx context.Context, workspaceID uuid.UUID) ([]domain.Automation, error)
}

// AutomationWriter persists automation rules.
type AutomationWriter interface {
	SaveAutomation(ctx context.Context, automation domain.Automation) error
}

// ExecutionStore records and reads automation evaluation outcomes.
type ExecutionStore interface {
	RecordExecution(ctx context.Context, execution domain.AutomationExecution) error
	ListExecutions(ctx context.Context, workspaceID uuid.UUID, limit int) ([]domain.AutomationExecution, error)
}

// TaskStore manages follow-up work items.
type TaskStore interface {
	CreateTask(ctx context.Context, task domain.Task) error
	CountOpenTasks(ctx context.Context, leadID uuid.UUID) (int, error)
	ListOpenTasks(ctx context.Context, workspaceID uuid.UUID) ([]domain.Task, error)
}

// DirectoryStore holds deduplicated contacts and organizations.
type DirectoryStore interface {
	ListContacts(ctx context.Context, workspaceID uuid.UUID) ([]domain.Contact, error)
	SaveContact(ctx context.Context, contact domain.Contact) error
	DeleteContact(ctx context.Context, id uuid.UUID) error
	ListOrganizations(ctx context.Context, workspaceID uuid.UUID) ([]domain.Organization, error)
	SaveOrganization(ctx context.Context, org domain.Organization) error
}

// TimelineStore appends and reads the operator-visible activity trail.
type TimelineStore interface {
	RecordActivity(ctx context.Context, event domain.TimelineEvent) error
	ListActivity(ctx context.Context, leadID uuid.UUID, limit int) ([]domain.TimelineEvent, error)
}

// SettingsReader returns the workspace configuration snapshot.
type SettingsReader interface {
	GetSettings(ctx context.Context, workspaceID uuid.UUID) (domain.Settings, error)
}

// UserReader resolves owners and actors.
type UserReader interface {
	GetUser(ctx context.Context, id uuid.UUID) (domain.User, error)
}

// MetricsReader computes workspace KPI aggregates.
type MetricsReader interface {
	GetLeadMetrics(ctx context.Context, workspaceID uuid.UUID) (LeadMetrics, error)
}

// LeadMetrics are the workspace KPI aggregates backing dashboards.
type LeadMetrics struct {
	Total         int            `json:"total"`
	Active        int            `json:"active"`
	Closed        int            `json:"closed"`
	HighPriority  int            `json:"highPriority"`
	ByStatus      map[string]int `json:"byStatus"`
	ForecastUnits float64        `json:"forecastUnits"`
}

// Store is the full persistence surface the lead module wires together.
// Production uses the Postgres implementation; tests use Memory.
type Store interface {
	LeadReader
	LeadWriter
	PipelineReader
	PipelineWriter
	AutomationReader
	AutomationWriter
	ExecutionStore
	TaskStore
	DirectoryStore
	TimelineStore
	SettingsReader
	UserReader
	MetricsReader
}
