package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"donation_portal_backend/internal/leads/domain"

	"github.com/google/uuid"
)

func TestMemoryLeadLastWriterWins(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	workspace := uuid.New()

	lead := domain.Lead{ID: uuid.New(), WorkspaceID: workspace, Title: "first", Priority: 40}
	if err := store.SaveLead(ctx, lead); err != nil {
		t.Fatalf("save: %v", err)
	}

	lead.Title = "second"
	lead.Priority = 70
	if err := store.SaveLead(ctx, lead); err != nil {
		t.Fatalf("resave: %v", err)
	}

	got, err := store.GetLead(ctx, lead.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "second" || got.Priority != 70 {
		t.Fatalf("last write did not win: %+v", got)
	}

	if _, err := store.GetLead(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryReadsAreCopies(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	lead := domain.Lead{
		ID:          uuid.New(),
		WorkspaceID: uuid.New(),
		PersonaTags: []string{"grant"},
		StageHistory: []domain.StageChange{
			{StageID: uuid.New(), ChangedAt: time.Now()},
		},
	}
	if err := store.SaveLead(ctx, lead); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, _ := store.GetLead(ctx, lead.ID)
	got.PersonaTags[0] = "mutated"
	got.StageHistory[0].Probability = 0.99

	again, _ := store.GetLead(ctx, lead.ID)
	if again.PersonaTags[0] != "grant" || again.StageHistory[0].Probability != 0 {
		t.Fatalf("stored record shares memory with a read copy: %+v", again)
	}
}

func TestMemoryListLeadsPageCursor(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	workspace := uuid.New()

	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = uuid.New()
		if err := store.SaveLead(ctx, domain.Lead{ID: ids[i], WorkspaceID: workspace}); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	first, err := store.ListLeadsPage(ctx, workspace, uuid.Nil, 2)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("first page size = %d, want 2", len(first))
	}

	second, err := store.ListLeadsPage(ctx, workspace, first[1].ID, 10)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second) != 3 {
		t.Fatalf("second page size = %d, want 3", len(second))
	}
	if second[0].ID == first[0].ID || second[0].ID == first[1].ID {
		t.Fatalf("pages overlap")
	}
}

func TestMemoryMetrics(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	workspace := uuid.New()

	leads := []domain.Lead{
		{ID: uuid.New(), WorkspaceID: workspace, Status: domain.StatusNew, Priority: 85, EstimatedQuantity: 100, Probability: 0.5},
		{ID: uuid.New(), WorkspaceID: workspace, Status: domain.StatusDonated, Priority: 90},
		{ID: uuid.New(), WorkspaceID: workspace, Status: domain.StatusResearching, Priority: 40, EstimatedQuantity: 200, Probability: 0.1},
		{ID: uuid.New(), WorkspaceID: workspace, Status: domain.StatusNew, Archived: true},
	}
	for _, lead := range leads {
		if err := store.SaveLead(ctx, lead); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	metrics, err := store.GetLeadMetrics(ctx, workspace)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if metrics.Total != 3 || metrics.Active != 2 || metrics.Closed != 1 || metrics.HighPriority != 2 {
		t.Fatalf("unexpected metrics: %+v", metrics)
	}
	if metrics.ForecastUnits != 70 {
		t.Fatalf("forecast units = %v, want 70", metrics.ForecastUnits)
	}
	if metrics.ByStatus[domain.StatusNew] != 1 {
		t.Fatalf("by status: %+v", metrics.ByStatus)
	}
}
