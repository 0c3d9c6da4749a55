package domain

import (
	"time"

	"github.com/google/uuid"
)

// Stage is one step of a pipeline. Probability is the forecast weight
// applied to leads occupying the stage.
type Stage struct {
	ID          uuid.UUID
	PipelineID  uuid.UUID
	Name        string
	Probability float64
	Category    string
	Position    int
}

// Pipeline is an ordered set of stages. Stages are kept sorted by Position.
type Pipeline struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Name        string
	Stages      []Stage
	CreatedAt   time.Time
}

// DefaultStage returns the pipeline's default stage: the first stage by
// position. ok is false for a pipeline with no stages.
func (p Pipeline) DefaultStage() (Stage, bool) {
	if len(p.Stages) == 0 {
		return Stage{}, false
	}
	best := p.Stages[0]
	for _, s := range p.Stages[1:] {
		if s.Position < best.Position {
			best = s
		}
	}
	return best, true
}

// StageByID looks a stage up within this pipeline.
func (p Pipeline) StageByID(id uuid.UUID) (Stage, bool) {
	for _, s := range p.Stages {
		if s.ID == id {
			return s, true
		}
	}
	return Stage{}, false
}
