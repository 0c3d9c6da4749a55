package repository

import (
	"context"
	"errors"

	"donation_portal_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (p *Postgres) GetPipeline(ctx context.Context, id uuid.UUID) (domain.Pipeline, error) {
	var pipeline domain.Pipeline
	err := p.pool.QueryRow(ctx, `
		SELECT id, workspace_id, name, created_at
		FROM pipelines
		WHERE id = $1
	`, id).Scan(&pipeline.ID, &pipeline.WorkspaceID, &pipeline.Name, &pipeline.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Pipeline{}, ErrNotFound
	}
	if err != nil {
		return domain.Pipeline{}, err
	}

	stages, err := p.listStages(ctx, pipeline.ID)
	if err != nil {
		return domain.Pipeline{}, err
	}
	pipeline.Stages = stages
	return pipeline, nil
}

func (p *Postgres) ListPipelines(ctx context.Context, workspaceID uuid.UUID) ([]domain.Pipeline, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, workspace_id, name, created_at
		FROM pipelines
		WHERE workspace_id = $1
		ORDER BY created_at ASC, id ASC
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pipelines := make([]domain.Pipeline, 0)
	for rows.Next() {
		var pipeline domain.Pipeline
		if err := rows.Scan(&pipeline.ID, &pipeline.WorkspaceID, &pipeline.Name, &pipeline.CreatedAt); err != nil {
			return nil, err
		}
		pipelines = append(pipelines, pipeline)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	for i := range pipelines {
		stages, err := p.listStages(ctx, pipelines[i].ID)
		if err != nil {
			return nil, err
		}
		pipelines[i].Stages = stages
	}
	return pipelines, nil
}

func (p *Postgres) listStages(ctx context.Context, pipelineID uuid.UUID) ([]domain.Stage, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, pipeline_id, name, probability, category, position
		FROM pipeline_stages
		WHERE pipeline_id = $1
		ORDER BY position ASC
	`, pipelineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := make([]domain.Stage, 0)
	for rows.Next() {
		var stage domain.Stage
		if err := rows.Scan(&stage.ID, &stage.PipelineID, &stage.Name, &stage.Probability, &stage.Category, &stage.Position); err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	return stages, rows.Err()
}

// SavePipeline upserts a pipeline and replaces its stage set. Stage rows are
// never deleted while history references them; replaced stages keep their
// ids through the upsert.
func (p *Postgres) SavePipeline(ctx context.Context, pipeline domain.Pipeline) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO pipelines (id, workspace_id, name, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, pipeline.ID, pipeline.WorkspaceID, pipeline.Name, touch(pipeline.CreatedAt))
	if err != nil {
		return err
	}

	for _, stage := range pipeline.Stages {
		_, err = tx.Exec(ctx, `
			INSERT INTO pipeline_stages (id, pipeline_id, name, probability, category, position)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				probability = EXCLUDED.probability,
				category = EXCLUDED.category,
				position = EXCLUDED.position
		`, stage.ID, pipeline.ID, stage.Name, stage.Probability, stage.Category, stage.Position)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
