package pipeline

import (
	"testing"
	"time"

	"donation_portal_backend/internal/leads/domain"
	"donation_portal_backend/platform/apperr"

	"github.com/google/uuid"
)

var testNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func testPipeline() domain.Pipeline {
	id := uuid.New()
	return domain.Pipeline{
		ID:   id,
		Name: "Donation Pipeline",
		Stages: []domain.Stage{
			{ID: uuid.New(), PipelineID: id, Name: "Prospect", Probability: 0.1, Position: 0},
			{ID: uuid.New(), PipelineID: id, Name: "Contacted", Probability: 0.3, Position: 1},
			{ID: uuid.New(), PipelineID: id, Name: "Committed", Probability: 0.8, Position: 2},
		},
	}
}

func TestAssignDefaultStage(t *testing.T) {
	p := testPipeline()
	actor := uuid.New()
	lead := domain.Lead{ID: uuid.New()}

	if err := AssignDefaultStage(&lead, p, actor, testNow); err != nil {
		t.Fatalf("AssignDefaultStage: %v", err)
	}
	if lead.StageID != p.Stages[0].ID {
		t.Fatalf("stage = %s, want default %s", lead.StageID, p.Stages[0].ID)
	}
	if lead.Probability != 0.1 {
		t.Fatalf("probability = %v, want 0.1", lead.Probability)
	}
	if len(lead.StageHistory) != 1 {
		t.Fatalf("history length = %d, want 1", len(lead.StageHistory))
	}
	entry := lead.StageHistory[0]
	if entry.ChangedBy != actor || entry.StageID != p.Stages[0].ID || entry.Probability != 0.1 {
		t.Fatalf("unexpected history entry: %+v", entry)
	}
}

func TestAssignDefaultStageEmptyPipeline(t *testing.T) {
	lead := domain.Lead{ID: uuid.New()}
	err := AssignDefaultStage(&lead, domain.Pipeline{ID: uuid.New()}, uuid.New(), testNow)
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error for stageless pipeline, got %v", err)
	}
}

func TestChangeStageAppendsHistoryAndProbability(t *testing.T) {
	p := testPipeline()
	actor := uuid.New()
	lead := domain.Lead{ID: uuid.New()}

	if err := ChangeStage(&lead, p, p.Stages[1].ID, actor, testNow); err != nil {
		t.Fatalf("first change: %v", err)
	}
	if err := ChangeStage(&lead, p, p.Stages[2].ID, actor, testNow.Add(time.Hour)); err != nil {
		t.Fatalf("second change: %v", err)
	}

	if lead.Probability != 0.8 {
		t.Fatalf("probability = %v, want 0.8", lead.Probability)
	}
	if len(lead.StageHistory) != 2 {
		t.Fatalf("history length = %d, want 2", len(lead.StageHistory))
	}
	if lead.StageHistory[1].StageID != p.Stages[2].ID {
		t.Fatalf("last history entry stage = %s, want %s", lead.StageHistory[1].StageID, p.Stages[2].ID)
	}
	if !lead.StageHistory[0].ChangedAt.Before(lead.StageHistory[1].ChangedAt) {
		t.Fatalf("history not time ordered")
	}
}

func TestChangeStageSameStageIsNoOp(t *testing.T) {
	p := testPipeline()
	lead := domain.Lead{ID: uuid.New()}

	if err := ChangeStage(&lead, p, p.Stages[1].ID, uuid.New(), testNow); err != nil {
		t.Fatalf("change: %v", err)
	}
	if err := ChangeStage(&lead, p, p.Stages[1].ID, uuid.New(), testNow.Add(time.Hour)); err != nil {
		t.Fatalf("repeat change: %v", err)
	}
	if len(lead.StageHistory) != 1 {
		t.Fatalf("history length = %d, want 1 (no-op must not append)", len(lead.StageHistory))
	}
}

func TestChangeStageUnknownStage(t *testing.T) {
	p := testPipeline()
	lead := domain.Lead{ID: uuid.New()}
	err := ChangeStage(&lead, p, uuid.New(), uuid.New(), testNow)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for foreign stage, got %v", err)
	}
	if len(lead.StageHistory) != 0 {
		t.Fatalf("failed change must not touch history")
	}
}

func TestBoardGroupsAndOrders(t *testing.T) {
	p := testPipeline()
	other := testPipeline()

	low := domain.Lead{ID: uuid.New(), PipelineID: p.ID, StageID: p.Stages[0].ID, Priority: 40}
	high := domain.Lead{ID: uuid.New(), PipelineID: p.ID, StageID: p.Stages[0].ID, Priority: 90}
	committed := domain.Lead{ID: uuid.New(), PipelineID: p.ID, StageID: p.Stages[2].ID, Priority: 70}
	foreign := domain.Lead{ID: uuid.New(), PipelineID: other.ID, StageID: other.Stages[0].ID}
	archived := domain.Lead{ID: uuid.New(), PipelineID: p.ID, StageID: p.Stages[0].ID, Archived: true}

	columns := Board(p, []domain.Lead{low, high, committed, foreign, archived})
	if len(columns) != 3 {
		t.Fatalf("columns = %d, want 3", len(columns))
	}
	if got := columns[0].Leads; len(got) != 2 || got[0].ID != high.ID || got[1].ID != low.ID {
		t.Fatalf("first column not ordered by priority: %+v", got)
	}
	if len(columns[1].Leads) != 0 {
		t.Fatalf("middle column should be empty")
	}
	if len(columns[2].Leads) != 1 || columns[2].Leads[0].ID != committed.ID {
		t.Fatalf("last column wrong: %+v", columns[2].Leads)
	}
}
