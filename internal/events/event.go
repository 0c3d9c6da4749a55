// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"donation_portal_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event     = events.Event
	Bus       = events.Bus
	Handler   = events.Handler
	BaseEvent = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCreated is published after a new donation lead has been persisted.
type LeadCreated struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	WorkspaceID uuid.UUID `json:"workspaceId"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Persona     string    `json:"persona"`
	Priority    int       `json:"priority"`
	Source      string    `json:"source,omitempty"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadUpdated is published after an existing lead write has been persisted.
type LeadUpdated struct {
	BaseEvent
	LeadID        uuid.UUID `json:"leadId"`
	WorkspaceID   uuid.UUID `json:"workspaceId"`
	ActorID       uuid.UUID `json:"actorId"`
	ChangedFields []string  `json:"changedFields"`
}

func (e LeadUpdated) EventName() string { return "leads.lead.updated" }

// PipelineStageChanged is published when a lead moves to a different stage,
// whether by an explicit caller change or an automation patch.
type PipelineStageChanged struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	WorkspaceID uuid.UUID `json:"workspaceId"`
	PipelineID  uuid.UUID `json:"pipelineId"`
	OldStageID  uuid.UUID `json:"oldStageId"`
	NewStageID  uuid.UUID `json:"newStageId"`
	Probability float64   `json:"probability"`
}

func (e PipelineStageChanged) EventName() string { return "leads.pipeline.stage_changed" }

// HighPriorityLeadDetected is published when a bulk upsert first inserts a
// lead whose resolved priority reaches the high threshold. The notification
// module turns it into an outbox entry; delivery is decoupled from the write.
type HighPriorityLeadDetected struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	WorkspaceID uuid.UUID `json:"workspaceId"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Priority    int       `json:"priority"`
	OwnerID     uuid.UUID `json:"ownerId"`
}

func (e HighPriorityLeadDetected) EventName() string { return "leads.lead.high_priority" }

// FollowUpDue is published by the scheduler worker when a scheduled
// follow-up reaches its due time.
type FollowUpDue struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	WorkspaceID uuid.UUID `json:"workspaceId"`
	TaskID      uuid.UUID `json:"taskId"`
	DueAt       time.Time `json:"dueAt"`
}

func (e FollowUpDue) EventName() string { return "leads.followup.due" }

// NotificationOutboxDue is published by the scheduler worker when a queued
// outbox entry should be dispatched.
type NotificationOutboxDue struct {
	BaseEvent
	OutboxID    uuid.UUID `json:"outboxId"`
	WorkspaceID uuid.UUID `json:"workspaceId"`
}

func (e NotificationOutboxDue) EventName() string { return "notification.outbox.due" }
