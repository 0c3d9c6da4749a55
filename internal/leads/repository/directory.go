package repository

import (
	"context"

	"donation_portal_backend/internal/leads/domain"

	"github.com/google/uuid"
)

func (p *Postgres) ListContacts(ctx context.Context, workspaceID uuid.UUID) ([]domain.Contact, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, workspace_id, name, email, phone, emails, phones, sources, tags,
			organization_id, household_id, lead_ids, created_at, updated_at
		FROM contacts
		WHERE workspace_id = $1
		ORDER BY created_at ASC, id ASC
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := make([]domain.Contact, 0)
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.Email, &c.Phone,
			&c.Emails, &c.Phones, &c.Sources, &c.Tags,
			&c.OrganizationID, &c.HouseholdID, &c.LeadIDs, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (p *Postgres) SaveContact(ctx context.Context, contact domain.Contact) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO contacts (id, workspace_id, name, email, phone, emails, phones, sources, tags,
			organization_id, household_id, lead_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			emails = EXCLUDED.emails,
			phones = EXCLUDED.phones,
			sources = EXCLUDED.sources,
			tags = EXCLUDED.tags,
			organization_id = EXCLUDED.organization_id,
			household_id = EXCLUDED.household_id,
			lead_ids = EXCLUDED.lead_ids,
			updated_at = EXCLUDED.updated_at
	`, contact.ID, contact.WorkspaceID, contact.Name, contact.Email, contact.Phone,
		contact.Emails, contact.Phones, contact.Sources, contact.Tags,
		contact.OrganizationID, contact.HouseholdID, contact.LeadIDs,
		touch(contact.CreatedAt), touch(contact.UpdatedAt))
	return err
}

func (p *Postgres) DeleteContact(ctx context.Context, id uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	return err
}

func (p *Postgres) ListOrganizations(ctx context.Context, workspaceID uuid.UUID) ([]domain.Organization, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, workspace_id, name, normalized_key, tags, focus_areas, lead_ids, created_at, updated_at
		FROM organizations
		WHERE workspace_id = $1
		ORDER BY created_at ASC, id ASC
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orgs := make([]domain.Organization, 0)
	for rows.Next() {
		var o domain.Organization
		if err := rows.Scan(&o.ID, &o.WorkspaceID, &o.Name, &o.NormalizedKey,
			&o.Tags, &o.FocusAreas, &o.LeadIDs, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

func (p *Postgres) SaveOrganization(ctx context.Context, org domain.Organization) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO organizations (id, workspace_id, name, normalized_key, tags, focus_areas, lead_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			normalized_key = EXCLUDED.normalized_key,
			tags = EXCLUDED.tags,
			focus_areas = EXCLUDED.focus_areas,
			lead_ids = EXCLUDED.lead_ids,
			updated_at = EXCLUDED.updated_at
	`, org.ID, org.WorkspaceID, org.Name, org.NormalizedKey,
		org.Tags, org.FocusAreas, org.LeadIDs, touch(org.CreatedAt), touch(org.UpdatedAt))
	return err
}
