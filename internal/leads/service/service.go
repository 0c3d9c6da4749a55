// Package service hosts the lead lifecycle orchestrator: the entry points
// invoked on every lead create, update and bulk ingestion, sequencing
// classification, scoring, stage resolution, entity resolution and
// automation evaluation before persisting the record.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"donation_portal_backend/internal/events"
	"donation_portal_backend/internal/leads/automation"
	"donation_portal_backend/internal/leads/dedupe"
	"donation_portal_backend/internal/leads/domain"
	"donation_portal_backend/internal/leads/pipeline"
	"donation_portal_backend/internal/leads/repository"
	"donation_portal_backend/internal/leads/scoring"
	"donation_portal_backend/internal/leads/transport"
	"donation_portal_backend/platform/apperr"
	"donation_portal_backend/platform/config"
	"donation_portal_backend/platform/logger"
	"donation_portal_backend/platform/validator"

	"github.com/google/uuid"
)

// Engine defaults, used when the config carries no override.
const (
	// defaultHighPriorityThreshold marks the score at which a first-inserted
	// lead gets a follow-up task and a deferred notification.
	defaultHighPriorityThreshold = 80
	// defaultFollowUpLeadDays is how far out the follow-up task is due.
	defaultFollowUpLeadDays = 3
)

// FollowUpScheduler enqueues an exact-time reminder for a follow-up task.
// Optional; without it reminders fall back to the worker's daily scan.
type FollowUpScheduler interface {
	ScheduleFollowUp(ctx context.Context, leadID, workspaceID, taskID uuid.UUID, runAt time.Time) error
}

// Service is the lead lifecycle orchestrator.
type Service struct {
	store                 repository.Store
	resolver              *dedupe.Resolver
	engine                *automation.Engine
	validate              *validator.Validator
	bus                   events.Bus
	log                   *logger.Logger
	scheduler             FollowUpScheduler
	highPriorityThreshold int
	followUpLeadDays      int
	now                   func() time.Time
}

func New(store repository.Store, resolver *dedupe.Resolver, engine *automation.Engine, validate *validator.Validator, bus events.Bus, cfg config.EngineConfig, log *logger.Logger) *Service {
	threshold := defaultHighPriorityThreshold
	followUpDays := defaultFollowUpLeadDays
	if cfg != nil {
		if v := cfg.GetHighPriorityThreshold(); v > 0 {
			threshold = v
		}
		if v := cfg.GetFollowUpLeadDays(); v > 0 {
			followUpDays = v
		}
	}
	return &Service{
		store:                 store,
		resolver:              resolver,
		engine:                engine,
		validate:              validate,
		bus:                   bus,
		log:                   log,
		highPriorityThreshold: threshold,
		followUpLeadDays:      followUpDays,
		now:                   time.Now,
	}
}

// SetFollowUpScheduler attaches the reminder scheduler. Wired by the worker
// binary; nil is fine everywhere else.
func (s *Service) SetFollowUpScheduler(scheduler FollowUpScheduler) {
	s.scheduler = scheduler
}

// GetLead returns the lead, or nil when the id is unknown.
func (s *Service) GetLead(ctx context.Context, id uuid.UUID) (*transport.LeadResponse, error) {
	lead, err := s.store.GetLead(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	resp := transport.LeadFromDomain(lead)
	return &resp, nil
}

// Board returns the pipeline board view: stages in position order with
// their leads grouped by stage.
func (s *Service) Board(ctx context.Context, workspaceID, pipelineID uuid.UUID) (transport.BoardResponse, error) {
	p, err := s.store.GetPipeline(ctx, pipelineID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.BoardResponse{}, apperr.NotFound(fmt.Sprintf("pipeline %s not found", pipelineID))
		}
		return transport.BoardResponse{}, err
	}
	leads, err := s.store.ListLeads(ctx, workspaceID)
	if err != nil {
		return transport.BoardResponse{}, err
	}
	return transport.BoardResponse{
		PipelineID: p.ID,
		Name:       p.Name,
		Columns:    pipeline.Board(p, leads),
	}, nil
}

// AutomationSummary returns the workspace's automation overview with recent
// execution records.
func (s *Service) AutomationSummary(ctx context.Context, workspaceID uuid.UUID) (transport.AutomationSummary, error) {
	automations, err := s.store.ListAutomations(ctx, workspaceID)
	if err != nil {
		return transport.AutomationSummary{}, err
	}
	executions, err := s.store.ListExecutions(ctx, workspaceID, 20)
	if err != nil {
		return transport.AutomationSummary{}, err
	}

	summary := transport.AutomationSummary{
		Total:            len(automations),
		RecentExecutions: executions,
		ByTriggerKind:    map[string]int{},
	}
	for _, auto := range automations {
		if auto.IsActive() {
			summary.Active++
		} else {
			summary.Inactive++
		}
		if auto.Trigger != nil {
			summary.ByTriggerKind[auto.Trigger.TriggerKind()]++
		}
	}
	return summary, nil
}

// Metrics returns workspace KPI aggregates.
func (s *Service) Metrics(ctx context.Context, workspaceID uuid.UUID) (transport.MetricsResponse, error) {
	metrics, err := s.store.GetLeadMetrics(ctx, workspaceID)
	if err != nil {
		return transport.MetricsResponse{}, err
	}
	return transport.MetricsResponse{LeadMetrics: metrics}, nil
}

// Timeline returns the lead's activity trail, newest first.
func (s *Service) Timeline(ctx context.Context, leadID uuid.UUID, limit int) ([]domain.TimelineEvent, error) {
	return s.store.ListActivity(ctx, leadID, limit)
}

// QualifyLead runs the four-category qualification scorer over researcher
// enrichment data and persists the outcome. Returns nil for an unknown id.
// Disqualification is terminal: the lead closes as Invalid.
func (s *Service) QualifyLead(ctx context.Context, id uuid.UUID, input scoring.QualificationInput, actorID uuid.UUID) (*transport.LeadResponse, error) {
	lead, err := s.store.GetLead(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	result := scoring.Qualify(lead, input, s.now())

	action := "qualified"
	changed := []string{"priority"}
	if result.Disqualified {
		action = "disqualified"
		lead.Status = domain.StatusInvalid
		changed = append(changed, "status")
	}
	lead.Priority = result.Score
	lead.PriorityLabel = domain.PriorityLabelFor(result.Score)
	lead.UpdatedAt = s.now()
	lead.AppendAudit(action, actorID, s.now(), changed)

	if err := s.store.SaveLead(ctx, lead); err != nil {
		return nil, fmt.Errorf("save lead: %w", err)
	}

	summary := fmt.Sprintf("Qualification score %d (%s)", result.Score, lead.PriorityLabel)
	if result.Disqualified {
		summary = "Disqualified: " + result.Reason
	}
	s.recordTimeline(ctx, lead, actorID, action, "Lead "+action, summary)

	s.bus.Publish(ctx, events.LeadUpdated{
		BaseEvent:     events.NewBaseEvent(),
		LeadID:        lead.ID,
		WorkspaceID:   lead.WorkspaceID,
		ActorID:       actorID,
		ChangedFields: changed,
	})

	resp := transport.LeadFromDomain(lead)
	return &resp, nil
}

// DedupIndex computes the directory conflict report without mutating state.
func (s *Service) DedupIndex(ctx context.Context, workspaceID uuid.UUID) (dedupe.Index, error) {
	return s.resolver.DedupIndex(ctx, workspaceID)
}

// MergeContacts folds a duplicate contact into a primary. Idempotent.
func (s *Service) MergeContacts(ctx context.Context, workspaceID, primaryID, duplicateID uuid.UUID) (domain.Contact, error) {
	return s.resolver.MergeContacts(ctx, workspaceID, primaryID, duplicateID)
}
