package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"donation_portal_backend/internal/events"
	"donation_portal_backend/internal/leads/automation"
	"donation_portal_backend/internal/leads/dedupe"
	"donation_portal_backend/internal/leads/domain"
	"donation_portal_backend/internal/leads/persona"
	"donation_portal_backend/internal/leads/repository"
	"donation_portal_backend/internal/leads/scoring"
	"donation_portal_backend/internal/leads/transport"
	"donation_portal_backend/platform/apperr"
	"donation_portal_backend/platform/config"
	"donation_portal_backend/platform/logger"
	"donation_portal_backend/platform/validator"

	"github.com/google/uuid"
)

var testNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	store     *repository.Memory
	workspace uuid.UUID
	pipeline  domain.Pipeline
	actor     uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, &config.Config{HighPriorityThreshold: 80, FollowUpLeadDays: 1})
}

func newFixtureWithConfig(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	log := logger.New("development")
	store := repository.NewMemory()
	workspace := uuid.New()

	pipelineID := uuid.New()
	p := domain.Pipeline{
		ID:          pipelineID,
		WorkspaceID: workspace,
		Name:        "Donation Pipeline",
		Stages: []domain.Stage{
			{ID: uuid.New(), PipelineID: pipelineID, Name: "Prospect", Probability: 0.3, Position: 0},
			{ID: uuid.New(), PipelineID: pipelineID, Name: "Qualified", Probability: 0.5, Position: 1},
			{ID: uuid.New(), PipelineID: pipelineID, Name: "Committed", Probability: 0.8, Position: 2},
		},
		CreatedAt: testNow,
	}
	if err := store.SavePipeline(context.Background(), p); err != nil {
		t.Fatalf("seed pipeline: %v", err)
	}

	resolver := dedupe.NewResolver(store)
	engine := automation.NewEngine(store, store, store, log)
	svc := New(store, resolver, engine, validator.New(), events.NewInMemoryBus(log), cfg, log)
	svc.now = func() time.Time { return testNow }

	return &fixture{
		svc:       svc,
		store:     store,
		workspace: workspace,
		pipeline:  p,
		actor:     uuid.New(),
	}
}

func TestCreateLeadRequiresTitle(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateLead(context.Background(), transport.CreateLeadRequest{WorkspaceID: f.workspace}, f.actor)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateLeadDefaultsAndStage(t *testing.T) {
	f := newFixture(t)
	resp, err := f.svc.CreateLead(context.Background(), transport.CreateLeadRequest{
		WorkspaceID: f.workspace,
		Title:       "Surplus laptops",
	}, f.actor)
	if err != nil {
		t.Fatalf("CreateLead: %v", err)
	}

	if resp.Status != domain.StatusNew || resp.PotentialValue != domain.PotentialValueMedium {
		t.Fatalf("defaults not applied: status=%q potentialValue=%q", resp.Status, resp.PotentialValue)
	}
	if resp.Priority < 10 || resp.Priority > 100 {
		t.Fatalf("priority %d outside [10,100]", resp.Priority)
	}
	if resp.StageID == nil || *resp.StageID != f.pipeline.Stages[0].ID {
		t.Fatalf("lead not on default stage: %v", resp.StageID)
	}
	if resp.Probability != 0.3 {
		t.Fatalf("probability = %v, want default stage weight 0.3", resp.Probability)
	}
	if len(resp.StageHistory) != 1 {
		t.Fatalf("stage history length = %d, want 1", len(resp.StageHistory))
	}
	if len(resp.AuditTrail) != 1 || resp.AuditTrail[0].Action != "created" {
		t.Fatalf("audit trail: %+v", resp.AuditTrail)
	}
}

// High-priority intake scenario: a bulk decommission from a strong source
// with urgency lands above the threshold and picks up logistics tags.
func TestBulkUpsertHighPriorityScenario(t *testing.T) {
	f := newFixture(t)
	result, err := f.svc.BulkUpsert(context.Background(), transport.BulkUpsertRequest{
		WorkspaceID: f.workspace,
		Leads: []transport.UpsertLeadRecord{{
			CreateLeadRequest: transport.CreateLeadRequest{
				Title:             "Office refresh at Meridian Logistics",
				Company:           "Meridian Logistics",
				EstimatedQuantity: 600,
				Source:            "Corporate Refresh Monitor",
				Timeline:          "Urgent relocation",
				Notes:             "covers three grant counties",
				OnsitePickup:      true,
				FreightFriendly:   true,
			},
		}},
	}, f.actor)
	if err != nil {
		t.Fatalf("BulkUpsert: %v", err)
	}
	if result.Created != 1 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	lead, err := f.store.GetLead(context.Background(), result.LeadIDs[0])
	if err != nil {
		t.Fatalf("get lead: %v", err)
	}
	if lead.Priority < 80 {
		t.Fatalf("priority = %d, want >= 80", lead.Priority)
	}
	if lead.PriorityLabel != domain.PriorityLabelHigh {
		t.Fatalf("label = %q, want High", lead.PriorityLabel)
	}
	if !hasTag(lead.PersonaTags, "onsite-pickup") || !hasTag(lead.PersonaTags, "freight-friendly") {
		t.Fatalf("logistics tags missing: %v", lead.PersonaTags)
	}

	tasks, err := f.store.ListOpenTasks(context.Background(), f.workspace)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 1 || !strings.Contains(tasks[0].Title, "high-priority") {
		t.Fatalf("expected one high-priority follow-up task, got %+v", tasks)
	}
}

// A bulk first insert classifies before it scores, so the automated scorer's
// persona bonus lands on top of the simple base.
func TestBulkUpsertAppliesPersonaBonus(t *testing.T) {
	f := newFixture(t)
	result, err := f.svc.BulkUpsert(context.Background(), transport.BulkUpsertRequest{
		WorkspaceID: f.workspace,
		Leads: []transport.UpsertLeadRecord{{
			CreateLeadRequest: transport.CreateLeadRequest{
				Title:         "Rack retirement",
				Company:       "Quiet Hollow Holdings",
				EquipmentType: "servers",
			},
		}},
	}, f.actor)
	if err != nil {
		t.Fatalf("BulkUpsert: %v", err)
	}
	if result.Created != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	lead, err := f.store.GetLead(context.Background(), result.LeadIDs[0])
	if err != nil {
		t.Fatalf("get lead: %v", err)
	}
	if lead.Persona != persona.PersonaDataCenter {
		t.Fatalf("persona = %q, want %q", lead.Persona, persona.PersonaDataCenter)
	}
	// Simple base 50 plus the data-center persona bonus of 8.
	if lead.Priority != 58 {
		t.Fatalf("priority = %d, want 58", lead.Priority)
	}
}

// An update that flips the persona re-scores with the new persona, not the
// one stored by the previous write.
func TestUpdateLeadRescoreUsesFreshPersona(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.CreateLead(context.Background(), transport.CreateLeadRequest{
		WorkspaceID: f.workspace,
		Title:       "Warehouse cleanout",
	}, f.actor)
	if err != nil {
		t.Fatalf("CreateLead: %v", err)
	}

	equipment := "servers"
	updated, err := f.svc.UpdateLead(context.Background(), created.ID, transport.UpdateLeadRequest{
		EquipmentType: transport.Optional[string]{Value: &equipment, Set: true},
	}, f.actor)
	if err != nil {
		t.Fatalf("UpdateLead: %v", err)
	}
	if updated.Persona != persona.PersonaDataCenter {
		t.Fatalf("persona = %q, want %q", updated.Persona, persona.PersonaDataCenter)
	}
	if updated.Priority != 58 {
		t.Fatalf("priority = %d, want 58", updated.Priority)
	}
}

// The engine config gates the first-insert hook: a threshold above the score
// band means no bulk insert ever gets a follow-up task.
func TestBulkUpsertHonorsConfiguredThreshold(t *testing.T) {
	f := newFixtureWithConfig(t, &config.Config{HighPriorityThreshold: 101, FollowUpLeadDays: 1})
	_, err := f.svc.BulkUpsert(context.Background(), transport.BulkUpsertRequest{
		WorkspaceID: f.workspace,
		Leads: []transport.UpsertLeadRecord{{
			CreateLeadRequest: transport.CreateLeadRequest{
				Title:             "Office refresh at Meridian Logistics",
				Company:           "Meridian Logistics",
				EstimatedQuantity: 600,
				Source:            "Corporate Refresh Monitor",
				Timeline:          "Urgent relocation",
				OnsitePickup:      true,
				FreightFriendly:   true,
			},
		}},
	}, f.actor)
	if err != nil {
		t.Fatalf("BulkUpsert: %v", err)
	}

	tasks, err := f.store.ListOpenTasks(context.Background(), f.workspace)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected no follow-up tasks, got %+v", tasks)
	}
}

// The configured lead days set the follow-up task's due date.
func TestBulkUpsertFollowUpLeadDays(t *testing.T) {
	f := newFixtureWithConfig(t, &config.Config{HighPriorityThreshold: 40, FollowUpLeadDays: 5})
	_, err := f.svc.BulkUpsert(context.Background(), transport.BulkUpsertRequest{
		WorkspaceID: f.workspace,
		Leads: []transport.UpsertLeadRecord{{
			CreateLeadRequest: transport.CreateLeadRequest{
				Title:         "Rack retirement",
				Company:       "Quiet Hollow Holdings",
				EquipmentType: "servers",
			},
		}},
	}, f.actor)
	if err != nil {
		t.Fatalf("BulkUpsert: %v", err)
	}

	tasks, err := f.store.ListOpenTasks(context.Background(), f.workspace)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].DueDate == nil {
		t.Fatalf("expected one follow-up task with a due date, got %+v", tasks)
	}
	if want := testNow.AddDate(0, 0, 5); !tasks[0].DueDate.Equal(want) {
		t.Fatalf("due date = %v, want %v", tasks[0].DueDate, want)
	}
}

// Persona scenario: company and notes text resolve the healthcare persona,
// and the owner falls to the persona's configured owner.
func TestCreateLeadHealthcarePersonaOwner(t *testing.T) {
	f := newFixture(t)
	healthcareOwner := uuid.New()
	f.store.PutSettings(domain.Settings{
		WorkspaceID:    f.workspace,
		DefaultOwnerID: uuid.New(),
		PersonaOwners:  map[string]uuid.UUID{persona.PersonaHealthcare: healthcareOwner},
	})

	resp, err := f.svc.CreateLead(context.Background(), transport.CreateLeadRequest{
		WorkspaceID: f.workspace,
		Title:       "Workstation donation",
		Company:     "Blue Harbor Health Alliance",
		Notes:       "replacing imaging workstations across health campuses",
	}, f.actor)
	if err != nil {
		t.Fatalf("CreateLead: %v", err)
	}
	if resp.Persona != persona.PersonaHealthcare {
		t.Fatalf("persona = %q, want %q", resp.Persona, persona.PersonaHealthcare)
	}
	if resp.OwnerID == nil || *resp.OwnerID != healthcareOwner {
		t.Fatalf("owner = %v, want healthcare persona owner", resp.OwnerID)
	}
}

func TestUpdateLeadUnknownIDReturnsNil(t *testing.T) {
	f := newFixture(t)
	resp, err := f.svc.UpdateLead(context.Background(), uuid.New(), transport.UpdateLeadRequest{}, f.actor)
	if err != nil {
		t.Fatalf("UpdateLead: %v", err)
	}
	if resp != nil {
		t.Fatalf("expected nil for unknown id, got %+v", resp)
	}
}

// Stage transition scenario: moving between stages updates probability and
// appends exactly one history entry.
func TestUpdateLeadStageTransition(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.CreateLead(context.Background(), transport.CreateLeadRequest{
		WorkspaceID: f.workspace,
		Title:       "Server rack pickup",
	}, f.actor)
	if err != nil {
		t.Fatalf("CreateLead: %v", err)
	}

	target := f.pipeline.Stages[2]
	updated, err := f.svc.UpdateLead(context.Background(), created.ID, transport.UpdateLeadRequest{
		StageID: transport.OptionalUUID{Value: &target.ID, Set: true},
	}, f.actor)
	if err != nil {
		t.Fatalf("UpdateLead: %v", err)
	}

	if updated.Probability != 0.8 {
		t.Fatalf("probability = %v, want 0.8", updated.Probability)
	}
	if len(updated.StageHistory) != len(created.StageHistory)+1 {
		t.Fatalf("history length = %d, want %d", len(updated.StageHistory), len(created.StageHistory)+1)
	}
	last := updated.StageHistory[len(updated.StageHistory)-1]
	if last.StageID != target.ID || last.Probability != 0.8 {
		t.Fatalf("last history entry: %+v", last)
	}
}

func TestUpdateLeadUnknownStageAborts(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.CreateLead(context.Background(), transport.CreateLeadRequest{
		WorkspaceID: f.workspace,
		Title:       "Printer fleet",
	}, f.actor)
	if err != nil {
		t.Fatalf("CreateLead: %v", err)
	}

	bogus := uuid.New()
	_, err = f.svc.UpdateLead(context.Background(), created.ID, transport.UpdateLeadRequest{
		StageID: transport.OptionalUUID{Value: &bogus, Set: true},
	}, f.actor)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for broken stage reference, got %v", err)
	}

	// Nothing persisted: the stored lead still has one history entry.
	lead, geterr := f.store.GetLead(context.Background(), created.ID)
	if geterr != nil {
		t.Fatalf("get lead: %v", geterr)
	}
	if len(lead.StageHistory) != 1 {
		t.Fatalf("aborted write mutated history: %+v", lead.StageHistory)
	}
}

// An automation moving the stage makes a single update append two history
// entries: the explicit change and the automation-driven one.
func TestUpdateLeadAutomationStagePatchAppendsSecondHistoryEntry(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.CreateLead(context.Background(), transport.CreateLeadRequest{
		WorkspaceID: f.workspace,
		Title:       "Data center teardown",
	}, f.actor)
	if err != nil {
		t.Fatalf("CreateLead: %v", err)
	}

	qualified := f.pipeline.Stages[1]
	committed := f.pipeline.Stages[2]
	err = f.store.SaveAutomation(context.Background(), domain.Automation{
		ID:          uuid.New(),
		WorkspaceID: f.workspace,
		Name:        "Escalate qualified leads",
		Status:      domain.AutomationActive,
		Trigger:     domain.StageChangeTrigger{ToStageIDs: []uuid.UUID{qualified.ID}},
		Actions:     []domain.Action{domain.MoveStageAction{StageID: committed.ID}},
	})
	if err != nil {
		t.Fatalf("seed automation: %v", err)
	}

	updated, err := f.svc.UpdateLead(context.Background(), created.ID, transport.UpdateLeadRequest{
		StageID: transport.OptionalUUID{Value: &qualified.ID, Set: true},
	}, f.actor)
	if err != nil {
		t.Fatalf("UpdateLead: %v", err)
	}

	if len(updated.StageHistory) != 3 {
		t.Fatalf("history length = %d, want 3 (create + explicit + automation)", len(updated.StageHistory))
	}
	if updated.StageHistory[1].StageID != qualified.ID || updated.StageHistory[2].StageID != committed.ID {
		t.Fatalf("history order wrong: %+v", updated.StageHistory)
	}
	if *updated.StageID != committed.ID || updated.Probability != 0.8 {
		t.Fatalf("final stage: %v prob %v", updated.StageID, updated.Probability)
	}
}

func TestCreateLeadResolvesEntities(t *testing.T) {
	f := newFixture(t)
	first, err := f.svc.CreateLead(context.Background(), transport.CreateLeadRequest{
		WorkspaceID:  f.workspace,
		Title:        "Laptop donation",
		Company:      "Acme Corp",
		ContactName:  "Dana Reyes",
		ContactEmail: "dana@acme.example",
	}, f.actor)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := f.svc.CreateLead(context.Background(), transport.CreateLeadRequest{
		WorkspaceID:  f.workspace,
		Title:        "Monitor donation",
		Company:      "ACME CORP",
		ContactName:  "Dana Reyes",
		ContactEmail: "DANA@acme.example",
	}, f.actor)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}

	if first.ContactID == nil || second.ContactID == nil || *first.ContactID != *second.ContactID {
		t.Fatalf("contacts not deduplicated: %v vs %v", first.ContactID, second.ContactID)
	}
	if first.OrganizationID == nil || second.OrganizationID == nil || *first.OrganizationID != *second.OrganizationID {
		t.Fatalf("organizations not deduplicated: %v vs %v", first.OrganizationID, second.OrganizationID)
	}

	orgs, err := f.store.ListOrganizations(context.Background(), f.workspace)
	if err != nil {
		t.Fatalf("list orgs: %v", err)
	}
	if len(orgs) != 1 || len(orgs[0].LeadIDs) != 2 {
		t.Fatalf("organization lead ids: %+v", orgs)
	}
}

func TestArchiveLeadClearsPipelineAssignment(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.CreateLead(context.Background(), transport.CreateLeadRequest{
		WorkspaceID: f.workspace,
		Title:       "Old inventory",
	}, f.actor)
	if err != nil {
		t.Fatalf("CreateLead: %v", err)
	}

	archived, err := f.svc.ArchiveLead(context.Background(), created.ID, f.actor)
	if err != nil {
		t.Fatalf("ArchiveLead: %v", err)
	}
	if !archived.Archived || archived.StageID != nil || archived.PipelineID != nil {
		t.Fatalf("archive did not clear assignment: %+v", archived)
	}
	if len(archived.StageHistory) != 1 {
		t.Fatalf("archive must retain history: %+v", archived.StageHistory)
	}
}

func TestBoardGroupsLeadsByStage(t *testing.T) {
	f := newFixture(t)
	for _, title := range []string{"one", "two"} {
		if _, err := f.svc.CreateLead(context.Background(), transport.CreateLeadRequest{
			WorkspaceID: f.workspace,
			Title:       title,
		}, f.actor); err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
	}

	board, err := f.svc.Board(context.Background(), f.workspace, f.pipeline.ID)
	if err != nil {
		t.Fatalf("Board: %v", err)
	}
	if len(board.Columns) != 3 {
		t.Fatalf("columns = %d, want 3", len(board.Columns))
	}
	if len(board.Columns[0].Leads) != 2 {
		t.Fatalf("default stage column has %d leads, want 2", len(board.Columns[0].Leads))
	}
}

func TestAutomationSummary(t *testing.T) {
	f := newFixture(t)
	if err := f.store.SaveAutomation(context.Background(), domain.Automation{
		ID: uuid.New(), WorkspaceID: f.workspace, Name: "a", Status: domain.AutomationActive,
		Trigger: domain.StageChangeTrigger{},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := f.store.SaveAutomation(context.Background(), domain.Automation{
		ID: uuid.New(), WorkspaceID: f.workspace, Name: "b", Status: domain.AutomationInactive,
		Trigger: domain.StatusChangeTrigger{}, Position: 1,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	summary, err := f.svc.AutomationSummary(context.Background(), f.workspace)
	if err != nil {
		t.Fatalf("AutomationSummary: %v", err)
	}
	if summary.Total != 2 || summary.Active != 1 || summary.Inactive != 1 {
		t.Fatalf("summary: %+v", summary)
	}
	if summary.ByTriggerKind[domain.TriggerKindStageChange] != 1 {
		t.Fatalf("by trigger kind: %+v", summary.ByTriggerKind)
	}
}

func TestQualifyLeadDisqualificationIsTerminal(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.CreateLead(context.Background(), transport.CreateLeadRequest{
		WorkspaceID: f.workspace,
		Title:       "Casino floor refresh",
	}, f.actor)
	if err != nil {
		t.Fatalf("CreateLead: %v", err)
	}

	resp, err := f.svc.QualifyLead(context.Background(), created.ID, scoring.QualificationInput{
		Industry: "Gambling",
	}, f.actor)
	if err != nil {
		t.Fatalf("QualifyLead: %v", err)
	}

	if resp.Status != domain.StatusInvalid {
		t.Fatalf("status = %q, want Invalid", resp.Status)
	}
	if resp.Priority != 0 {
		t.Fatalf("priority = %d, want 0", resp.Priority)
	}
	last := resp.AuditTrail[len(resp.AuditTrail)-1]
	if last.Action != "disqualified" {
		t.Fatalf("audit action = %q", last.Action)
	}
}

func TestQualifyLeadUnknownIDReturnsNil(t *testing.T) {
	f := newFixture(t)
	resp, err := f.svc.QualifyLead(context.Background(), uuid.New(), scoring.QualificationInput{}, f.actor)
	if err != nil {
		t.Fatalf("QualifyLead: %v", err)
	}
	if resp != nil {
		t.Fatalf("expected nil for unknown id, got %+v", resp)
	}
}

func hasTag(tags []string, want string) bool {
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}
