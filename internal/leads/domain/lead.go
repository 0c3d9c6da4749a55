package domain

import (
	"time"

	"github.com/google/uuid"
)

// Logistics captures how the donor can hand the equipment over.
type Logistics struct {
	OnsitePickup    bool `json:"onsitePickup"`
	FreightFriendly bool `json:"freightFriendly"`
}

// StageChange is one entry of a lead's stage history. History is append-only
// and monotonically ordered by ChangedAt.
type StageChange struct {
	PipelineID  uuid.UUID `json:"pipelineId"`
	StageID     uuid.UUID `json:"stageId"`
	Probability float64   `json:"probability"`
	ChangedAt   time.Time `json:"changedAt"`
	ChangedBy   uuid.UUID `json:"changedBy"`
}

// AuditEvent is one entry of a lead's audit trail.
type AuditEvent struct {
	Action        string    `json:"action"`
	ActorID       uuid.UUID `json:"actorId"`
	Timestamp     time.Time `json:"timestamp"`
	ChangedFields []string  `json:"changedFields,omitempty"`
}

// Lead is a prospective equipment-donation opportunity.
type Lead struct {
	ID                uuid.UUID
	WorkspaceID       uuid.UUID
	Title             string
	Company           string
	ContactName       string
	ContactEmail      string
	ContactPhone      string
	Source            string
	Location          string
	EquipmentType     string
	EstimatedQuantity int
	Status            string
	Persona           string
	PersonaTags       []string
	Priority          int
	PriorityLabel     string
	PotentialValue    string
	Probability       float64
	PipelineID        uuid.UUID
	StageID           uuid.UUID
	OwnerID           uuid.UUID
	FollowUpDate      *time.Time
	FollowUpReason    string
	Timeline          string
	Logistics         Logistics
	GrantFlag         bool
	GrantDeadline     *time.Time
	Notes             string
	Archived          bool
	ContactID         *uuid.UUID
	OrganizationID    *uuid.UUID
	StageHistory      []StageChange
	AuditTrail        []AuditEvent
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsClosed reports whether the lead's status is terminal.
func (l Lead) IsClosed() bool {
	return IsClosedStatus(l.Status)
}

// FollowUpDaysUntilDue returns the number of whole days until the follow-up
// date, and false when no follow-up is set. Overdue follow-ups yield
// negative values.
func (l Lead) FollowUpDaysUntilDue(now time.Time) (int, bool) {
	if l.FollowUpDate == nil {
		return 0, false
	}
	return WholeDaysBetween(now, *l.FollowUpDate), true
}

// WholeDaysBetween counts whole calendar days between two instants on
// UTC-truncated dates. A deadline later today counts as 0 days out.
func WholeDaysBetween(from, to time.Time) int {
	fromDay := from.UTC().Truncate(24 * time.Hour)
	toDay := to.UTC().Truncate(24 * time.Hour)
	return int(toDay.Sub(fromDay).Hours() / 24)
}

// AppendAudit records an action on the lead's audit trail.
func (l *Lead) AppendAudit(action string, actorID uuid.UUID, at time.Time, changedFields []string) {
	l.AuditTrail = append(l.AuditTrail, AuditEvent{
		Action:        action,
		ActorID:       actorID,
		Timestamp:     at,
		ChangedFields: changedFields,
	})
}
