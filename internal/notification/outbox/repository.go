// Package outbox persists deferred notifications so delivery survives
// process restarts and stays decoupled from the write that produced them.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusEnqueued       Status = "enqueued"
	StatusSucceeded      Status = "succeeded"
	StatusFailed         Status = "failed"
	errRepoNotConfigured        = "outbox repository not configured"
)

type Record struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Kind        string
	Payload     json.RawMessage
	RunAt       time.Time
	Status      Status
	Attempts    int
}

type InsertParams struct {
	WorkspaceID uuid.UUID
	Kind        string
	Payload     any
	RunAt       time.Time
	Status      Status // optional; defaults to pending
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, p InsertParams) (uuid.UUID, error) {
	if r == nil || r.pool == nil {
		return uuid.Nil, errors.New(errRepoNotConfigured)
	}
	if p.WorkspaceID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("workspaceId is required")
	}
	if p.Kind == "" {
		return uuid.Nil, fmt.Errorf("kind is required")
	}
	if p.RunAt.IsZero() {
		p.RunAt = time.Now().UTC()
	}
	status := p.Status
	if status == "" {
		status = StatusPending
	}

	payloadBytes, err := json.Marshal(p.Payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal payload: %w", err)
	}

	var id uuid.UUID
	err = r.pool.QueryRow(ctx,
		`INSERT INTO notification_outbox (workspace_id, kind, payload, run_at, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		p.WorkspaceID, p.Kind, payloadBytes, p.RunAt, string(status),
	).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}

	row := r.pool.QueryRow(ctx,
		`SELECT id, workspace_id, kind, payload, run_at, status, attempts
		 FROM notification_outbox WHERE id = $1`, id)

	var rec Record
	var status string
	if err := row.Scan(&rec.ID, &rec.WorkspaceID, &rec.Kind, &rec.Payload, &rec.RunAt, &status, &rec.Attempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rec.Status = Status(status)
	return &rec, nil
}

// ClaimPending flips due pending records to enqueued and returns them.
// The UPDATE ... RETURNING keeps concurrent dispatchers from claiming the
// same record twice.
func (r *Repository) ClaimPending(ctx context.Context, limit int) ([]Record, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx,
		`UPDATE notification_outbox
		 SET status = 'enqueued', attempts = attempts + 1, updated_at = now()
		 WHERE id IN (
		   SELECT id FROM notification_outbox
		   WHERE status = 'pending' AND run_at <= now()
		   ORDER BY run_at
		   LIMIT $1
		   FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, workspace_id, kind, payload, run_at, status, attempts`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var status string
		if err := rows.Scan(&rec.ID, &rec.WorkspaceID, &rec.Kind, &rec.Payload, &rec.RunAt, &status, &rec.Attempts); err != nil {
			return nil, err
		}
		rec.Status = Status(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// MarkPending returns a record to the pending state so a later dispatch
// cycle retries it.
func (r *Repository) MarkPending(ctx context.Context, id uuid.UUID, lastError *string) error {
	return r.setStatus(ctx, id, StatusPending, lastError)
}

func (r *Repository) MarkSucceeded(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(ctx, id, StatusSucceeded, nil)
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, lastError *string) error {
	return r.setStatus(ctx, id, StatusFailed, lastError)
}

func (r *Repository) setStatus(ctx context.Context, id uuid.UUID, status Status, lastError *string) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE notification_outbox
		 SET status = $2, last_error = $3, updated_at = now()
		 WHERE id = $1`,
		id, string(status), lastError,
	)
	return err
}
