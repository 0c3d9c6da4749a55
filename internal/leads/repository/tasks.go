package repository

import (
	"context"

	"donation_portal_backend/internal/leads/domain"

	"github.com/google/uuid"
)

func (p *Postgres) CreateTask(ctx context.Context, task domain.Task) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO tasks (id, workspace_id, lead_id, title, description, due_date, priority, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, task.ID, task.WorkspaceID, task.LeadID, task.Title, task.Description,
		task.DueDate, task.Priority, task.Status, touch(task.CreatedAt), touch(task.UpdatedAt))
	return err
}

func (p *Postgres) CountOpenTasks(ctx context.Context, leadID uuid.UUID) (int, error) {
	var count int
	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM tasks WHERE lead_id = $1 AND status = 'open'
	`, leadID).Scan(&count)
	return count, err
}

func (p *Postgres) ListOpenTasks(ctx context.Context, workspaceID uuid.UUID) ([]domain.Task, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, workspace_id, lead_id, title, description, due_date, priority, status, created_at, updated_at
		FROM tasks
		WHERE workspace_id = $1 AND status = 'open'
		ORDER BY due_date ASC NULLS LAST, created_at ASC
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		var task domain.Task
		if err := rows.Scan(&task.ID, &task.WorkspaceID, &task.LeadID, &task.Title, &task.Description,
			&task.DueDate, &task.Priority, &task.Status, &task.CreatedAt, &task.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}
