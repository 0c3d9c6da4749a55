package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"donation_portal_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// ListAutomations returns the workspace's automations in listing order.
// Trigger and action payloads are decoded from their {kind, params}
// envelopes; a row with an unknown kind fails the whole listing, since a
// corrupt automation definition is a configuration bug.
func (p *Postgres) ListAutomations(ctx context.Context, workspaceID uuid.UUID) ([]domain.Automation, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, workspace_id, name, status, trigger, conditions, actions, position, created_at
		FROM automations
		WHERE workspace_id = $1
		ORDER BY position ASC, created_at ASC
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	automations := make([]domain.Automation, 0)
	for rows.Next() {
		var (
			auto       domain.Automation
			trigger    []byte
			conditions []byte
			actions    []byte
		)
		if err := rows.Scan(&auto.ID, &auto.WorkspaceID, &auto.Name, &auto.Status, &trigger, &conditions, &actions, &auto.Position, &auto.CreatedAt); err != nil {
			return nil, err
		}
		if auto.Trigger, err = domain.UnmarshalTrigger(trigger); err != nil {
			return nil, fmt.Errorf("automation %s: %w", auto.ID, err)
		}
		if err := json.Unmarshal(conditions, &auto.Conditions); err != nil {
			return nil, fmt.Errorf("automation %s conditions: %w", auto.ID, err)
		}
		if auto.Actions, err = domain.UnmarshalActions(actions); err != nil {
			return nil, fmt.Errorf("automation %s: %w", auto.ID, err)
		}
		automations = append(automations, auto)
	}
	return automations, rows.Err()
}

func (p *Postgres) SaveAutomation(ctx context.Context, automation domain.Automation) error {
	trigger, err := domain.MarshalTrigger(automation.Trigger)
	if err != nil {
		return fmt.Errorf("marshal trigger: %w", err)
	}
	conditions, err := json.Marshal(automation.Conditions)
	if err != nil {
		return fmt.Errorf("marshal conditions: %w", err)
	}
	actions, err := domain.MarshalActions(automation.Actions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO automations (id, workspace_id, name, status, trigger, conditions, actions, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			trigger = EXCLUDED.trigger,
			conditions = EXCLUDED.conditions,
			actions = EXCLUDED.actions,
			position = EXCLUDED.position
	`, automation.ID, automation.WorkspaceID, automation.Name, automation.Status,
		trigger, conditions, actions, automation.Position, touch(automation.CreatedAt))
	return err
}

func (p *Postgres) RecordExecution(ctx context.Context, execution domain.AutomationExecution) error {
	result, err := json.Marshal(execution.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO automation_executions (id, automation_id, lead_id, workspace_id, status, result, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, execution.ID, execution.AutomationID, execution.LeadID, execution.WorkspaceID,
		execution.Status, result, execution.Error, touch(execution.CreatedAt))
	return err
}

func (p *Postgres) ListExecutions(ctx context.Context, workspaceID uuid.UUID, limit int) ([]domain.AutomationExecution, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id, automation_id, lead_id, workspace_id, status, result, error, created_at
		FROM automation_executions
		WHERE workspace_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, workspaceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	executions := make([]domain.AutomationExecution, 0)
	for rows.Next() {
		var (
			execution domain.AutomationExecution
			result    []byte
		)
		if err := rows.Scan(&execution.ID, &execution.AutomationID, &execution.LeadID, &execution.WorkspaceID,
			&execution.Status, &result, &execution.Error, &execution.CreatedAt); err != nil {
			return nil, err
		}
		if len(result) > 0 {
			if err := json.Unmarshal(result, &execution.Result); err != nil {
				return nil, fmt.Errorf("execution %s result: %w", execution.ID, err)
			}
		}
		executions = append(executions, execution)
	}
	return executions, rows.Err()
}
