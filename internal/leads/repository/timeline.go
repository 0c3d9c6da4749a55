package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"donation_portal_backend/internal/leads/domain"

	"github.com/google/uuid"
)

func (p *Postgres) RecordActivity(ctx context.Context, event domain.TimelineEvent) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO lead_timeline (id, workspace_id, lead_id, actor_type, actor_name, event_type, title, summary, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, event.ID, event.WorkspaceID, event.LeadID, event.ActorType, event.ActorName,
		event.EventType, event.Title, event.Summary, metadata, touch(event.CreatedAt))
	return err
}

func (p *Postgres) ListActivity(ctx context.Context, leadID uuid.UUID, limit int) ([]domain.TimelineEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id, workspace_id, lead_id, actor_type, actor_name, event_type, title, summary, metadata, created_at
		FROM lead_timeline
		WHERE lead_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, leadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.TimelineEvent, 0)
	for rows.Next() {
		var (
			event    domain.TimelineEvent
			metadata []byte
		)
		if err := rows.Scan(&event.ID, &event.WorkspaceID, &event.LeadID, &event.ActorType, &event.ActorName,
			&event.EventType, &event.Title, &event.Summary, &metadata, &event.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("timeline %s metadata: %w", event.ID, err)
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
