// Package transport defines the request/response shapes of the lead module's
// entry points. The HTTP layer that carries them is a separate concern; the
// service validates these shapes directly.
package transport

import (
	"time"

	"donation_portal_backend/internal/leads/domain"
	"donation_portal_backend/internal/leads/pipeline"
	"donation_portal_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// CreateLeadRequest creates a lead. Title is the only required field; status
// defaults to "New", potential value to "Medium", and priority is computed
// when omitted.
type CreateLeadRequest struct {
	WorkspaceID       uuid.UUID  `json:"workspaceId"`
	Title             string     `json:"title" validate:"required,min=1,max=255"`
	Company           string     `json:"company" validate:"max=255"`
	ContactName       string     `json:"contactName" validate:"max=255"`
	ContactEmail      string     `json:"contactEmail" validate:"omitempty,email"`
	ContactPhone      string     `json:"contactPhone" validate:"max=32"`
	Source            string     `json:"source" validate:"max=255"`
	Location          string     `json:"location" validate:"max=255"`
	EquipmentType     string     `json:"equipmentType" validate:"max=255"`
	EstimatedQuantity int        `json:"estimatedQuantity" validate:"min=0"`
	Status            string     `json:"status" validate:"omitempty,max=32"`
	PotentialValue    string     `json:"potentialValue" validate:"omitempty,oneof=High Medium Low"`
	Priority          *int       `json:"priority" validate:"omitempty,min=10,max=100"`
	Timeline          string     `json:"timeline" validate:"max=500"`
	Notes             string     `json:"notes"`
	OnsitePickup      bool       `json:"onsitePickup"`
	FreightFriendly   bool       `json:"freightFriendly"`
	GrantFlag         bool       `json:"grantFlag"`
	GrantDeadline     *time.Time `json:"grantDeadline"`
	FollowUpDate      *time.Time `json:"followUpDate"`
	FollowUpReason    string     `json:"followUpReason" validate:"max=500"`
	PipelineID        *uuid.UUID `json:"pipelineId"`
	StageID           *uuid.UUID `json:"stageId"`
	OwnerID           *uuid.UUID `json:"ownerId"`
}

// UpdateLeadRequest is a partial lead update. Absent fields are untouched.
type UpdateLeadRequest struct {
	Title             Optional[string]    `json:"title"`
	Company           Optional[string]    `json:"company"`
	ContactName       Optional[string]    `json:"contactName"`
	ContactEmail      Optional[string]    `json:"contactEmail"`
	ContactPhone      Optional[string]    `json:"contactPhone"`
	Source            Optional[string]    `json:"source"`
	Location          Optional[string]    `json:"location"`
	EquipmentType     Optional[string]    `json:"equipmentType"`
	EstimatedQuantity Optional[int]       `json:"estimatedQuantity"`
	Status            Optional[string]    `json:"status"`
	PotentialValue    Optional[string]    `json:"potentialValue"`
	Priority          Optional[int]       `json:"priority"`
	Timeline          Optional[string]    `json:"timeline"`
	Notes             Optional[string]    `json:"notes"`
	OnsitePickup      Optional[bool]      `json:"onsitePickup"`
	FreightFriendly   Optional[bool]      `json:"freightFriendly"`
	GrantFlag         Optional[bool]      `json:"grantFlag"`
	GrantDeadline     Optional[time.Time] `json:"grantDeadline"`
	FollowUpDate      Optional[time.Time] `json:"followUpDate"`
	FollowUpReason    Optional[string]    `json:"followUpReason"`
	PipelineID        OptionalUUID        `json:"pipelineId"`
	StageID           OptionalUUID        `json:"stageId"`
	OwnerID           OptionalUUID        `json:"ownerId"`
}

// UpsertLeadRecord is one entry of a bulk upsert: create-shaped, with an
// optional id that switches the entry to update semantics when recognized.
type UpsertLeadRecord struct {
	ID *uuid.UUID `json:"id"`
	CreateLeadRequest
}

// BulkUpsertRequest carries already-shaped candidate records from an
// upstream producer.
type BulkUpsertRequest struct {
	WorkspaceID uuid.UUID          `json:"workspaceId"`
	Leads       []UpsertLeadRecord `json:"leads" validate:"required,min=1,dive"`
}

// BulkUpsertResult summarizes one bulk ingestion run.
type BulkUpsertResult struct {
	Created int         `json:"created"`
	Updated int         `json:"updated"`
	Failed  int         `json:"failed"`
	Errors  []string    `json:"errors,omitempty"`
	LeadIDs []uuid.UUID `json:"leadIds"`
}

// LeadResponse is the outward lead shape.
type LeadResponse struct {
	ID                uuid.UUID            `json:"id"`
	WorkspaceID       uuid.UUID            `json:"workspaceId"`
	Title             string               `json:"title"`
	Company           string               `json:"company,omitempty"`
	ContactName       string               `json:"contactName,omitempty"`
	ContactEmail      string               `json:"contactEmail,omitempty"`
	ContactPhone      string               `json:"contactPhone,omitempty"`
	Source            string               `json:"source,omitempty"`
	Location          string               `json:"location,omitempty"`
	EquipmentType     string               `json:"equipmentType,omitempty"`
	EstimatedQuantity int                  `json:"estimatedQuantity"`
	Status            string               `json:"status"`
	Persona           string               `json:"persona"`
	PersonaTags       []string             `json:"personaTags"`
	Priority          int                  `json:"priority"`
	PriorityLabel     string               `json:"priorityLabel"`
	PotentialValue    string               `json:"potentialValue"`
	Probability       float64              `json:"probability"`
	PipelineID        *uuid.UUID           `json:"pipelineId,omitempty"`
	StageID           *uuid.UUID           `json:"stageId,omitempty"`
	OwnerID           *uuid.UUID           `json:"ownerId,omitempty"`
	FollowUpDate      *time.Time           `json:"followUpDate,omitempty"`
	FollowUpReason    string               `json:"followUpReason,omitempty"`
	Timeline          string               `json:"timeline,omitempty"`
	Logistics         domain.Logistics     `json:"logistics"`
	GrantFlag         bool                 `json:"grantFlag"`
	GrantDeadline     *time.Time           `json:"grantDeadline,omitempty"`
	Notes             string               `json:"notes,omitempty"`
	Archived          bool                 `json:"archived"`
	ContactID         *uuid.UUID           `json:"contactId,omitempty"`
	OrganizationID    *uuid.UUID           `json:"organizationId,omitempty"`
	StageHistory      []domain.StageChange `json:"stageHistory"`
	AuditTrail        []domain.AuditEvent  `json:"auditTrail"`
	CreatedAt         time.Time            `json:"createdAt"`
	UpdatedAt         time.Time            `json:"updatedAt"`
}

// LeadFromDomain maps a domain lead onto the response shape.
func LeadFromDomain(lead domain.Lead) LeadResponse {
	return LeadResponse{
		ID:                lead.ID,
		WorkspaceID:       lead.WorkspaceID,
		Title:             lead.Title,
		Company:           lead.Company,
		ContactName:       lead.ContactName,
		ContactEmail:      lead.ContactEmail,
		ContactPhone:      lead.ContactPhone,
		Source:            lead.Source,
		Location:          lead.Location,
		EquipmentType:     lead.EquipmentType,
		EstimatedQuantity: lead.EstimatedQuantity,
		Status:            lead.Status,
		Persona:           lead.Persona,
		PersonaTags:       lead.PersonaTags,
		Priority:          lead.Priority,
		PriorityLabel:     lead.PriorityLabel,
		PotentialValue:    lead.PotentialValue,
		Probability:       lead.Probability,
		PipelineID:        optionalID(lead.PipelineID),
		StageID:           optionalID(lead.StageID),
		OwnerID:           optionalID(lead.OwnerID),
		FollowUpDate:      lead.FollowUpDate,
		FollowUpReason:    lead.FollowUpReason,
		Timeline:          lead.Timeline,
		Logistics:         lead.Logistics,
		GrantFlag:         lead.GrantFlag,
		GrantDeadline:     lead.GrantDeadline,
		Notes:             lead.Notes,
		Archived:          lead.Archived,
		ContactID:         lead.ContactID,
		OrganizationID:    lead.OrganizationID,
		StageHistory:      lead.StageHistory,
		AuditTrail:        lead.AuditTrail,
		CreatedAt:         lead.CreatedAt,
		UpdatedAt:         lead.UpdatedAt,
	}
}

func optionalID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

// BoardResponse is the pipeline board view: stages with their leads.
type BoardResponse struct {
	PipelineID uuid.UUID              `json:"pipelineId"`
	Name       string                 `json:"name"`
	Columns    []pipeline.BoardColumn `json:"columns"`
}

// AutomationSummary is the workspace-scoped automation overview.
type AutomationSummary struct {
	Total            int                          `json:"total"`
	Active           int                          `json:"active"`
	Inactive         int                          `json:"inactive"`
	RecentExecutions []domain.AutomationExecution `json:"recentExecutions"`
	ByTriggerKind    map[string]int               `json:"byTriggerKind"`
}

// MetricsResponse re-exposes workspace KPI aggregates.
type MetricsResponse struct {
	repository.LeadMetrics
}
