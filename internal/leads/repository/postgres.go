package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"donation_portal_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the production Store backed by pgx. Lead documents are stored
// one row per lead with the derived collections (tags, stage history, audit
// trail) as jsonb columns, preserving whole-document save semantics.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

var _ Store = (*Postgres)(nil)

const leadColumns = `
	id, workspace_id, title, company, contact_name, contact_email, contact_phone,
	source, location, equipment_type, estimated_quantity, status, persona,
	persona_tags, priority, priority_label, potential_value, probability,
	pipeline_id, stage_id, owner_id, follow_up_date, follow_up_reason, timeline,
	onsite_pickup, freight_friendly, grant_flag, grant_deadline, notes, archived,
	contact_id, organization_id, stage_history, audit_trail, created_at, updated_at`

func (p *Postgres) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	row := p.pool.QueryRow(ctx, `SELECT`+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

func (p *Postgres) ListLeads(ctx context.Context, workspaceID uuid.UUID) ([]domain.Lead, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT`+leadColumns+`
		FROM leads
		WHERE workspace_id = $1
		ORDER BY created_at ASC, id ASC
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLeads(rows)
}

func (p *Postgres) ListLeadsPage(ctx context.Context, workspaceID uuid.UUID, cursor uuid.UUID, limit int) ([]domain.Lead, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.pool.Query(ctx, `
		SELECT`+leadColumns+`
		FROM leads
		WHERE workspace_id = $1 AND ($2::uuid IS NULL OR id > $2)
		ORDER BY id ASC
		LIMIT $3
	`, workspaceID, nullUUID(cursor), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLeads(rows)
}

func (p *Postgres) ListFollowUpsDue(ctx context.Context, day string) ([]domain.Lead, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT`+leadColumns+`
		FROM leads
		WHERE archived = false
		  AND follow_up_date IS NOT NULL
		  AND (follow_up_date AT TIME ZONE 'UTC')::date = $1::date
		ORDER BY follow_up_date ASC
	`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLeads(rows)
}

func (p *Postgres) SaveLead(ctx context.Context, lead domain.Lead) error {
	personaTags, err := json.Marshal(lead.PersonaTags)
	if err != nil {
		return fmt.Errorf("marshal persona tags: %w", err)
	}
	stageHistory, err := json.Marshal(lead.StageHistory)
	if err != nil {
		return fmt.Errorf("marshal stage history: %w", err)
	}
	auditTrail, err := json.Marshal(lead.AuditTrail)
	if err != nil {
		return fmt.Errorf("marshal audit trail: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO leads (
			id, workspace_id, title, company, contact_name, contact_email, contact_phone,
			source, location, equipment_type, estimated_quantity, status, persona,
			persona_tags, priority, priority_label, potential_value, probability,
			pipeline_id, stage_id, owner_id, follow_up_date, follow_up_reason, timeline,
			onsite_pickup, freight_friendly, grant_flag, grant_deadline, notes, archived,
			contact_id, organization_id, stage_history, audit_trail, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34, $35, $36
		)
		ON CONFLICT (id) DO UPDATE SET
			workspace_id = EXCLUDED.workspace_id,
			title = EXCLUDED.title,
			company = EXCLUDED.company,
			contact_name = EXCLUDED.contact_name,
			contact_email = EXCLUDED.contact_email,
			contact_phone = EXCLUDED.contact_phone,
			source = EXCLUDED.source,
			location = EXCLUDED.location,
			equipment_type = EXCLUDED.equipment_type,
			estimated_quantity = EXCLUDED.estimated_quantity,
			status = EXCLUDED.status,
			persona = EXCLUDED.persona,
			persona_tags = EXCLUDED.persona_tags,
			priority = EXCLUDED.priority,
			priority_label = EXCLUDED.priority_label,
			potential_value = EXCLUDED.potential_value,
			probability = EXCLUDED.probability,
			pipeline_id = EXCLUDED.pipeline_id,
			stage_id = EXCLUDED.stage_id,
			owner_id = EXCLUDED.owner_id,
			follow_up_date = EXCLUDED.follow_up_date,
			follow_up_reason = EXCLUDED.follow_up_reason,
			timeline = EXCLUDED.timeline,
			onsite_pickup = EXCLUDED.onsite_pickup,
			freight_friendly = EXCLUDED.freight_friendly,
			grant_flag = EXCLUDED.grant_flag,
			grant_deadline = EXCLUDED.grant_deadline,
			notes = EXCLUDED.notes,
			archived = EXCLUDED.archived,
			contact_id = EXCLUDED.contact_id,
			organization_id = EXCLUDED.organization_id,
			stage_history = EXCLUDED.stage_history,
			audit_trail = EXCLUDED.audit_trail,
			updated_at = EXCLUDED.updated_at
	`,
		lead.ID, lead.WorkspaceID, lead.Title, lead.Company, lead.ContactName, lead.ContactEmail, lead.ContactPhone,
		lead.Source, lead.Location, lead.EquipmentType, lead.EstimatedQuantity, lead.Status, lead.Persona,
		personaTags, lead.Priority, lead.PriorityLabel, lead.PotentialValue, lead.Probability,
		nullUUID(lead.PipelineID), nullUUID(lead.StageID), nullUUID(lead.OwnerID),
		lead.FollowUpDate, lead.FollowUpReason, lead.Timeline,
		lead.Logistics.OnsitePickup, lead.Logistics.FreightFriendly, lead.GrantFlag, lead.GrantDeadline,
		lead.Notes, lead.Archived, lead.ContactID, lead.OrganizationID,
		stageHistory, auditTrail, lead.CreatedAt, lead.UpdatedAt,
	)
	return err
}

func collectLeads(rows pgx.Rows) ([]domain.Lead, error) {
	leads := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return leads, nil
}

func scanLead(row pgx.Row) (domain.Lead, error) {
	var (
		lead         domain.Lead
		personaTags  []byte
		stageHistory []byte
		auditTrail   []byte
		pipelineID   *uuid.UUID
		stageID      *uuid.UUID
		ownerID      *uuid.UUID
	)
	err := row.Scan(
		&lead.ID, &lead.WorkspaceID, &lead.Title, &lead.Company, &lead.ContactName, &lead.ContactEmail, &lead.ContactPhone,
		&lead.Source, &lead.Location, &lead.EquipmentType, &lead.EstimatedQuantity, &lead.Status, &lead.Persona,
		&personaTags, &lead.Priority, &lead.PriorityLabel, &lead.PotentialValue, &lead.Probability,
		&pipelineID, &stageID, &ownerID, &lead.FollowUpDate, &lead.FollowUpReason, &lead.Timeline,
		&lead.Logistics.OnsitePickup, &lead.Logistics.FreightFriendly, &lead.GrantFlag, &lead.GrantDeadline,
		&lead.Notes, &lead.Archived, &lead.ContactID, &lead.OrganizationID,
		&stageHistory, &auditTrail, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return domain.Lead{}, err
	}
	lead.PipelineID = derefUUID(pipelineID)
	lead.StageID = derefUUID(stageID)
	lead.OwnerID = derefUUID(ownerID)
	if err := json.Unmarshal(personaTags, &lead.PersonaTags); err != nil {
		return domain.Lead{}, fmt.Errorf("unmarshal persona tags: %w", err)
	}
	if err := json.Unmarshal(stageHistory, &lead.StageHistory); err != nil {
		return domain.Lead{}, fmt.Errorf("unmarshal stage history: %w", err)
	}
	if err := json.Unmarshal(auditTrail, &lead.AuditTrail); err != nil {
		return domain.Lead{}, fmt.Errorf("unmarshal audit trail: %w", err)
	}
	return lead, nil
}

func nullUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func derefUUID(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}

// touch is shared by writers that stamp updated_at when the caller left it
// zero.
func touch(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
