package repository

import (
	"context"

	"github.com/google/uuid"
)

// GetLeadMetrics computes workspace KPI aggregates in one pass. Forecast
// units weight each active lead's estimated quantity by its stage
// probability.
func (p *Postgres) GetLeadMetrics(ctx context.Context, workspaceID uuid.UUID) (LeadMetrics, error) {
	metrics := LeadMetrics{ByStatus: map[string]int{}}

	err := p.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status NOT IN ('Committed', 'Donated', 'Not Interested', 'Invalid')),
			COUNT(*) FILTER (WHERE status IN ('Committed', 'Donated', 'Not Interested', 'Invalid')),
			COUNT(*) FILTER (WHERE priority >= 80),
			COALESCE(SUM(estimated_quantity * probability) FILTER (
				WHERE status NOT IN ('Committed', 'Donated', 'Not Interested', 'Invalid')), 0)
		FROM leads
		WHERE workspace_id = $1 AND archived = false
	`, workspaceID).Scan(&metrics.Total, &metrics.Active, &metrics.Closed, &metrics.HighPriority, &metrics.ForecastUnits)
	if err != nil {
		return LeadMetrics{}, err
	}

	rows, err := p.pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM leads
		WHERE workspace_id = $1 AND archived = false
		GROUP BY status
	`, workspaceID)
	if err != nil {
		return LeadMetrics{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return LeadMetrics{}, err
		}
		metrics.ByStatus[status] = count
	}
	return metrics, rows.Err()
}
