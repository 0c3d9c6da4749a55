// Package pipeline implements the stage state machine: default stage
// assignment, stage transitions with history recording, and the board view.
package pipeline

import (
	"fmt"
	"sort"
	"time"

	"donation_portal_backend/internal/leads/domain"
	"donation_portal_backend/platform/apperr"

	"github.com/google/uuid"
)

// AssignDefaultStage places a lead on the pipeline's default stage. Used on
// create when no explicit stage is given, and on update when a new pipeline
// is supplied without one.
func AssignDefaultStage(lead *domain.Lead, p domain.Pipeline, actorID uuid.UUID, now time.Time) error {
	stage, ok := p.DefaultStage()
	if !ok {
		return apperr.Internal(fmt.Sprintf("pipeline %s has no stages", p.ID))
	}
	return ChangeStage(lead, p, stage.ID, actorID, now)
}

// ChangeStage moves a lead to the given stage of the given pipeline. The
// stage must belong to the pipeline. A move to the stage the lead already
// occupies is a no-op and records nothing. On a real move the lead's
// probability is updated to the stage's weight and one history entry is
// appended.
func ChangeStage(lead *domain.Lead, p domain.Pipeline, stageID uuid.UUID, actorID uuid.UUID, now time.Time) error {
	stage, ok := p.StageByID(stageID)
	if !ok {
		return apperr.NotFound(fmt.Sprintf("stage %s does not belong to pipeline %s", stageID, p.ID))
	}
	if lead.PipelineID == p.ID && lead.StageID == stage.ID {
		return nil
	}
	lead.PipelineID = p.ID
	lead.StageID = stage.ID
	lead.Probability = stage.Probability
	lead.StageHistory = append(lead.StageHistory, domain.StageChange{
		PipelineID:  p.ID,
		StageID:     stage.ID,
		Probability: stage.Probability,
		ChangedAt:   now,
		ChangedBy:   actorID,
	})
	return nil
}

// ClearStage removes a lead's pipeline assignment. Used by archive. Stage
// history is retained.
func ClearStage(lead *domain.Lead) {
	lead.PipelineID = uuid.Nil
	lead.StageID = uuid.Nil
	lead.Probability = 0
}

// BoardColumn is one column of the board view: a stage and the leads
// occupying it.
type BoardColumn struct {
	Stage domain.Stage  `json:"stage"`
	Leads []domain.Lead `json:"leads"`
}

// Board groups leads by stage for the given pipeline, columns in position
// order. Leads assigned to other pipelines or to no stage are left out.
func Board(p domain.Pipeline, leads []domain.Lead) []BoardColumn {
	byStage := make(map[uuid.UUID][]domain.Lead)
	for _, lead := range leads {
		if lead.PipelineID != p.ID || lead.Archived {
			continue
		}
		byStage[lead.StageID] = append(byStage[lead.StageID], lead)
	}

	stages := make([]domain.Stage, len(p.Stages))
	copy(stages, p.Stages)
	sort.Slice(stages, func(i, j int) bool { return stages[i].Position < stages[j].Position })

	columns := make([]BoardColumn, 0, len(stages))
	for _, stage := range stages {
		group := byStage[stage.ID]
		sort.Slice(group, func(i, j int) bool { return group[i].Priority > group[j].Priority })
		columns = append(columns, BoardColumn{Stage: stage, Leads: group})
	}
	return columns
}
