package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"donation_portal_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetSettings returns the workspace configuration snapshot. A workspace
// without a stored row runs on defaults rather than failing.
func (p *Postgres) GetSettings(ctx context.Context, workspaceID uuid.UUID) (domain.Settings, error) {
	var (
		settings       domain.Settings
		defaultOwnerID *uuid.UUID
		personaEnabled []byte
		personaWeights []byte
		personaOwners  []byte
	)
	err := p.pool.QueryRow(ctx, `
		SELECT workspace_id, default_owner_id, persona_enabled, persona_weights, persona_owners
		FROM workspace_settings
		WHERE workspace_id = $1
	`, workspaceID).Scan(&settings.WorkspaceID, &defaultOwnerID, &personaEnabled, &personaWeights, &personaOwners)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Settings{WorkspaceID: workspaceID}, nil
	}
	if err != nil {
		return domain.Settings{}, err
	}

	settings.DefaultOwnerID = derefUUID(defaultOwnerID)
	if len(personaEnabled) > 0 {
		if err := json.Unmarshal(personaEnabled, &settings.PersonaEnabled); err != nil {
			return domain.Settings{}, fmt.Errorf("persona enablement: %w", err)
		}
	}
	if len(personaWeights) > 0 {
		if err := json.Unmarshal(personaWeights, &settings.PersonaWeights); err != nil {
			return domain.Settings{}, fmt.Errorf("persona weights: %w", err)
		}
	}
	if len(personaOwners) > 0 {
		if err := json.Unmarshal(personaOwners, &settings.PersonaOwners); err != nil {
			return domain.Settings{}, fmt.Errorf("persona owners: %w", err)
		}
	}
	return settings, nil
}

// SaveSettings upserts the workspace configuration row.
func (p *Postgres) SaveSettings(ctx context.Context, settings domain.Settings) error {
	personaEnabled, err := json.Marshal(settings.PersonaEnabled)
	if err != nil {
		return fmt.Errorf("marshal persona enablement: %w", err)
	}
	personaWeights, err := json.Marshal(settings.PersonaWeights)
	if err != nil {
		return fmt.Errorf("marshal persona weights: %w", err)
	}
	personaOwners, err := json.Marshal(settings.PersonaOwners)
	if err != nil {
		return fmt.Errorf("marshal persona owners: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO workspace_settings (workspace_id, default_owner_id, persona_enabled, persona_weights, persona_owners)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (workspace_id) DO UPDATE SET
			default_owner_id = EXCLUDED.default_owner_id,
			persona_enabled = EXCLUDED.persona_enabled,
			persona_weights = EXCLUDED.persona_weights,
			persona_owners = EXCLUDED.persona_owners
	`, settings.WorkspaceID, nullUUID(settings.DefaultOwnerID), personaEnabled, personaWeights, personaOwners)
	return err
}

func (p *Postgres) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	var user domain.User
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, email FROM users WHERE id = $1
	`, id).Scan(&user.ID, &user.Name, &user.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	return user, err
}
