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
	"donation_portal_backend/internal/leads/persona"
	"donation_portal_backend/internal/leads/pipeline"
	"donation_portal_backend/internal/leads/repository"
	"donation_portal_backend/internal/leads/scoring"
	"donation_portal_backend/internal/leads/transport"
	"donation_portal_backend/platform/apperr"

	"github.com/google/uuid"
)

// CreateLead runs the full lifecycle for a new lead: defaults, persona
// classification, scoring, stage assignment, entity resolution, automation
// evaluation, audit and persistence. Title is required; a validation failure
// aborts the write with nothing persisted.
func (s *Service) CreateLead(ctx context.Context, req transport.CreateLeadRequest, actorID uuid.UUID) (transport.LeadResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return transport.LeadResponse{}, apperr.Wrap(apperr.KindValidation, "invalid lead payload", err)
	}
	lead, err := s.createLead(ctx, req, actorID, false)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return transport.LeadFromDomain(lead), nil
}

// createLead is the shared create path. Bulk ingestion additionally applies
// the automated scorer and the high-priority first-insert hook.
func (s *Service) createLead(ctx context.Context, req transport.CreateLeadRequest, actorID uuid.UUID, bulk bool) (domain.Lead, error) {
	now := s.now()
	settings, err := s.store.GetSettings(ctx, req.WorkspaceID)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("load settings: %w", err)
	}

	lead := domain.Lead{
		ID:                uuid.New(),
		WorkspaceID:       req.WorkspaceID,
		Title:             req.Title,
		Company:           req.Company,
		ContactName:       req.ContactName,
		ContactEmail:      req.ContactEmail,
		ContactPhone:      req.ContactPhone,
		Source:            req.Source,
		Location:          req.Location,
		EquipmentType:     req.EquipmentType,
		EstimatedQuantity: req.EstimatedQuantity,
		Status:            req.Status,
		PotentialValue:    req.PotentialValue,
		Timeline:          req.Timeline,
		Notes:             req.Notes,
		Logistics:         domain.Logistics{OnsitePickup: req.OnsitePickup, FreightFriendly: req.FreightFriendly},
		GrantFlag:         req.GrantFlag,
		GrantDeadline:     req.GrantDeadline,
		FollowUpDate:      req.FollowUpDate,
		FollowUpReason:    req.FollowUpReason,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if lead.Status == "" {
		lead.Status = domain.StatusNew
	}
	if !domain.IsKnownStatus(lead.Status) {
		return domain.Lead{}, apperr.Validation(fmt.Sprintf("unknown status %q", lead.Status))
	}
	if lead.PotentialValue == "" {
		lead.PotentialValue = domain.PotentialValueMedium
	}

	// Persona before score: the automated scorer reads the persona bonus.
	classified := persona.Classify(lead, settings, now)
	lead.Persona = classified.Persona

	if req.Priority != nil {
		lead.Priority = *req.Priority
	} else {
		lead.Priority = scoring.Simple(lead).Score
	}
	if bulk {
		lead.Priority = scoring.Automated(lead, now).Score
	}
	lead.PriorityLabel = domain.PriorityLabelFor(lead.Priority)

	// Tags last: the high-priority tag reads the final score.
	lead.PersonaTags = persona.Tags(lead.Persona, lead, settings, now)

	if req.OwnerID != nil {
		lead.OwnerID = *req.OwnerID
	} else {
		lead.OwnerID = settings.OwnerFor(lead.Persona)
	}

	if err := s.assignInitialStage(ctx, &lead, req.PipelineID, req.StageID, actorID); err != nil {
		return domain.Lead{}, err
	}

	if err := s.resolveEntities(ctx, &lead); err != nil {
		return domain.Lead{}, err
	}

	// On create the previous snapshot is empty, so stage and status change
	// triggers see the initial assignment as a transition.
	previous := domain.Lead{ID: lead.ID, WorkspaceID: lead.WorkspaceID}
	if err := s.runAutomations(ctx, previous, &lead, actorID); err != nil {
		return domain.Lead{}, err
	}

	lead.AppendAudit("created", actorID, now, nil)
	if err := s.store.SaveLead(ctx, lead); err != nil {
		return domain.Lead{}, fmt.Errorf("save lead: %w", err)
	}
	s.recordTimeline(ctx, lead, actorID, "lead_created", "Lead created", lead.Title)

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      lead.ID,
		WorkspaceID: lead.WorkspaceID,
		Title:       lead.Title,
		Company:     lead.Company,
		Persona:     lead.Persona,
		Priority:    lead.Priority,
		Source:      lead.Source,
	})
	s.publishStageChange(ctx, previous, lead)

	return lead, nil
}

// UpdateLead merges a partial payload, re-derives persona, priority and
// stage, runs automations and persists. An unknown id returns nil with no
// error.
func (s *Service) UpdateLead(ctx context.Context, id uuid.UUID, req transport.UpdateLeadRequest, actorID uuid.UUID) (*transport.LeadResponse, error) {
	lead, err := s.store.GetLead(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	now := s.now()
	previous := lead

	changedFields := mergeUpdate(&lead, req)
	if lead.Title == "" {
		return nil, apperr.Validation("title cannot be cleared")
	}
	if !domain.IsKnownStatus(lead.Status) {
		return nil, apperr.Validation(fmt.Sprintf("unknown status %q", lead.Status))
	}

	settings, err := s.store.GetSettings(ctx, lead.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	// Persona before score, so the rescore sees this write's persona rather
	// than the previous one.
	classified := persona.Classify(lead, settings, now)
	lead.Persona = classified.Persona
	if lead.OwnerID == uuid.Nil {
		lead.OwnerID = settings.OwnerFor(lead.Persona)
	}

	// Re-score from scratch so repeated updates stay idempotent: the
	// automated scorer re-applies its bonuses on a fresh simple base.
	if req.Priority.Set && req.Priority.Value != nil {
		lead.Priority = *req.Priority.Value
	} else {
		rescore := lead
		rescore.Priority = 0
		lead.Priority = scoring.Automated(rescore, now).Score
	}
	lead.PriorityLabel = domain.PriorityLabelFor(lead.Priority)
	lead.PersonaTags = persona.Tags(lead.Persona, lead, settings, now)

	if err := s.applyStageUpdate(ctx, &lead, req, actorID); err != nil {
		return nil, err
	}

	if err := s.resolveEntities(ctx, &lead); err != nil {
		return nil, err
	}

	if err := s.runAutomations(ctx, previous, &lead, actorID); err != nil {
		return nil, err
	}

	lead.UpdatedAt = now
	lead.AppendAudit("updated", actorID, now, changedFields)
	if err := s.store.SaveLead(ctx, lead); err != nil {
		return nil, fmt.Errorf("save lead: %w", err)
	}
	s.recordTimeline(ctx, lead, actorID, "lead_updated", "Lead updated", fmt.Sprintf("%d field(s) changed", len(changedFields)))

	s.bus.Publish(ctx, events.LeadUpdated{
		BaseEvent:     events.NewBaseEvent(),
		LeadID:        lead.ID,
		WorkspaceID:   lead.WorkspaceID,
		ActorID:       actorID,
		ChangedFields: changedFields,
	})
	s.publishStageChange(ctx, previous, lead)

	resp := transport.LeadFromDomain(lead)
	return &resp, nil
}

// BulkUpsert ingests already-shaped candidate records. A recognized id gets
// update merge semantics; anything else is created with the automated
// scorer. First inserts at or above the high-priority threshold get a
// follow-up task and a deferred notification. Failures are per-record.
func (s *Service) BulkUpsert(ctx context.Context, req transport.BulkUpsertRequest, actorID uuid.UUID) (transport.BulkUpsertResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return transport.BulkUpsertResult{}, apperr.Wrap(apperr.KindValidation, "invalid bulk payload", err)
	}

	result := transport.BulkUpsertResult{LeadIDs: []uuid.UUID{}}
	for i, record := range req.Leads {
		record.WorkspaceID = req.WorkspaceID

		if record.ID != nil {
			if _, err := s.store.GetLead(ctx, *record.ID); err == nil {
				updated, err := s.UpdateLead(ctx, *record.ID, upsertToUpdate(record), actorID)
				if err != nil {
					result.Failed++
					result.Errors = append(result.Errors, fmt.Sprintf("record %d: %v", i, err))
					continue
				}
				result.Updated++
				result.LeadIDs = append(result.LeadIDs, updated.ID)
				continue
			}
		}

		lead, err := s.createLead(ctx, record.CreateLeadRequest, actorID, true)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("record %d: %v", i, err))
			continue
		}
		result.Created++
		result.LeadIDs = append(result.LeadIDs, lead.ID)

		if lead.Priority >= s.highPriorityThreshold {
			s.scheduleHighPriorityFollowUp(ctx, lead, actorID)
		}
	}
	return result, nil
}

// ArchiveLead marks a lead archived and removes its pipeline assignment.
// Stage history is retained.
func (s *Service) ArchiveLead(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*transport.LeadResponse, error) {
	lead, err := s.store.GetLead(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	now := s.now()
	lead.Archived = true
	pipeline.ClearStage(&lead)
	lead.UpdatedAt = now
	lead.AppendAudit("archived", actorID, now, nil)

	if err := s.store.SaveLead(ctx, lead); err != nil {
		return nil, fmt.Errorf("save lead: %w", err)
	}
	s.recordTimeline(ctx, lead, actorID, "lead_archived", "Lead archived", lead.Title)

	resp := transport.LeadFromDomain(lead)
	return &resp, nil
}

// ---- helpers ----

// assignInitialStage puts a new lead on a stage: the requested pipeline or
// the workspace's default one, and the requested stage or the pipeline's
// default. A workspace without pipelines leaves the lead unassigned.
func (s *Service) assignInitialStage(ctx context.Context, lead *domain.Lead, pipelineID, stageID *uuid.UUID, actorID uuid.UUID) error {
	var p domain.Pipeline
	if pipelineID != nil {
		found, err := s.resolvePipeline(ctx, *pipelineID)
		if err != nil {
			return err
		}
		p = found
	} else {
		pipelines, err := s.store.ListPipelines(ctx, lead.WorkspaceID)
		if err != nil {
			return fmt.Errorf("list pipelines: %w", err)
		}
		if len(pipelines) == 0 {
			return nil
		}
		p = pipelines[0]
	}

	if stageID != nil {
		return pipeline.ChangeStage(lead, p, *stageID, actorID, s.now())
	}
	return pipeline.AssignDefaultStage(lead, p, actorID, s.now())
}

// applyStageUpdate handles explicit pipeline/stage changes on update. A new
// pipeline without a stage lands on that pipeline's default stage.
func (s *Service) applyStageUpdate(ctx context.Context, lead *domain.Lead, req transport.UpdateLeadRequest, actorID uuid.UUID) error {
	switch {
	case req.PipelineID.Set && req.PipelineID.Value != nil:
		p, err := s.resolvePipeline(ctx, *req.PipelineID.Value)
		if err != nil {
			return err
		}
		if req.StageID.Set && req.StageID.Value != nil {
			return pipeline.ChangeStage(lead, p, *req.StageID.Value, actorID, s.now())
		}
		return pipeline.AssignDefaultStage(lead, p, actorID, s.now())

	case req.StageID.Set && req.StageID.Value != nil:
		if lead.PipelineID == uuid.Nil {
			return apperr.Validation("cannot set a stage on a lead without a pipeline")
		}
		p, err := s.resolvePipeline(ctx, lead.PipelineID)
		if err != nil {
			return err
		}
		return pipeline.ChangeStage(lead, p, *req.StageID.Value, actorID, s.now())
	}
	return nil
}

// resolvePipeline loads a pipeline definition. A missing pipeline is a
// configuration bug and aborts the write.
func (s *Service) resolvePipeline(ctx context.Context, id uuid.UUID) (domain.Pipeline, error) {
	p, err := s.store.GetPipeline(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Pipeline{}, apperr.NotFound(fmt.Sprintf("pipeline %s not found", id))
		}
		return domain.Pipeline{}, err
	}
	return p, nil
}

// resolveEntities links the lead to its deduplicated contact and
// organization. A lead with no identity fields skips resolution.
func (s *Service) resolveEntities(ctx context.Context, lead *domain.Lead) error {
	if lead.ContactName == "" && lead.ContactEmail == "" && lead.Company == "" {
		return nil
	}
	contact, org, err := s.resolver.UpsertContact(ctx, dedupe.ContactPayload{
		WorkspaceID: lead.WorkspaceID,
		Name:        lead.ContactName,
		Email:       lead.ContactEmail,
		Phone:       lead.ContactPhone,
		Company:     lead.Company,
		Source:      lead.Source,
		LeadID:      lead.ID,
	})
	if err != nil {
		return fmt.Errorf("resolve entities: %w", err)
	}
	if contact.ID != uuid.Nil {
		contactID := contact.ID
		lead.ContactID = &contactID
	}
	if org != nil {
		orgID := org.ID
		lead.OrganizationID = &orgID
	}
	return nil
}

// runAutomations evaluates the workspace's automations against the
// before/after snapshot, records executions and merges patches onto the
// lead. A patch that moves the stage re-runs the stage machine, so a single
// update can append two stage history entries.
func (s *Service) runAutomations(ctx context.Context, previous domain.Lead, lead *domain.Lead, actorID uuid.UUID) error {
	automations, err := s.store.ListAutomations(ctx, lead.WorkspaceID)
	if err != nil {
		return fmt.Errorf("list automations: %w", err)
	}

	out := s.engine.Run(ctx, automation.Input{
		Previous: previous,
		Next:     *lead,
		ActorID:  actorID,
		Now:      s.now(),
	}, automations)

	for _, execution := range out.Executions {
		if err := s.store.RecordExecution(ctx, execution); err != nil {
			s.log.StoreError("record_execution", err)
		}
	}

	for _, patch := range out.Patches {
		stagePatched := automation.ApplyPatch(lead, patch)
		if patch.FollowUpDate != nil && s.scheduler != nil {
			if err := s.scheduler.ScheduleFollowUp(ctx, lead.ID, lead.WorkspaceID, uuid.Nil, *patch.FollowUpDate); err != nil {
				s.log.Warn("follow-up reminder scheduling failed", "leadId", lead.ID, "error", err)
			}
		}
		if !stagePatched {
			continue
		}
		pipelineID := lead.PipelineID
		if patch.PipelineID != nil {
			pipelineID = *patch.PipelineID
		}
		p, err := s.resolvePipeline(ctx, pipelineID)
		if err != nil {
			return err
		}
		if err := pipeline.ChangeStage(lead, p, *patch.StageID, actorID, s.now()); err != nil {
			return err
		}
	}
	return nil
}

// scheduleHighPriorityFollowUp is the first-insert hook for leads at or
// above the threshold: an open follow-up task now, notification delivery
// deferred to the outbox. Failures here never fail the write.
func (s *Service) scheduleHighPriorityFollowUp(ctx context.Context, lead domain.Lead, actorID uuid.UUID) {
	now := s.now()
	due := now.AddDate(0, 0, s.followUpLeadDays)
	leadID := lead.ID
	task := domain.Task{
		ID:          uuid.New(),
		WorkspaceID: lead.WorkspaceID,
		LeadID:      &leadID,
		Title:       "Contact high-priority donor: " + lead.Title,
		Description: fmt.Sprintf("Priority %d (%s). Source: %s", lead.Priority, lead.PriorityLabel, lead.Source),
		DueDate:     &due,
		Priority:    "high",
		Status:      domain.TaskOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		s.log.StoreError("create_followup_task", err)
	} else if s.scheduler != nil {
		if err := s.scheduler.ScheduleFollowUp(ctx, lead.ID, lead.WorkspaceID, task.ID, due); err != nil {
			s.log.Warn("follow-up reminder scheduling failed", "leadId", lead.ID, "error", err)
		}
	}

	s.bus.Publish(ctx, events.HighPriorityLeadDetected{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      lead.ID,
		WorkspaceID: lead.WorkspaceID,
		Title:       lead.Title,
		Company:     lead.Company,
		Priority:    lead.Priority,
		OwnerID:     lead.OwnerID,
	})
}

func (s *Service) publishStageChange(ctx context.Context, previous, next domain.Lead) {
	if previous.StageID == next.StageID {
		return
	}
	s.bus.Publish(ctx, events.PipelineStageChanged{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      next.ID,
		WorkspaceID: next.WorkspaceID,
		PipelineID:  next.PipelineID,
		OldStageID:  previous.StageID,
		NewStageID:  next.StageID,
		Probability: next.Probability,
	})
}

// recordTimeline appends an operator-visible activity entry. Trail failures
// are logged, never propagated.
func (s *Service) recordTimeline(ctx context.Context, lead domain.Lead, actorID uuid.UUID, eventType, title, summary string) {
	event := domain.TimelineEvent{
		ID:          uuid.New(),
		WorkspaceID: lead.WorkspaceID,
		LeadID:      lead.ID,
		ActorType:   "User",
		ActorName:   actorID.String(),
		EventType:   eventType,
		Title:       title,
		Summary:     summary,
		CreatedAt:   s.now(),
	}
	if user, err := s.store.GetUser(ctx, actorID); err == nil {
		event.ActorName = user.Name
	}
	if err := s.store.RecordActivity(ctx, event); err != nil {
		s.log.StoreError("record_activity", err)
	}
}

// mergeUpdate folds a partial payload onto the lead and returns the names of
// the changed fields.
func mergeUpdate(lead *domain.Lead, req transport.UpdateLeadRequest) []string {
	changed := []string{}
	setString := func(name string, target *string, opt transport.Optional[string]) {
		if !opt.Set || opt.Value == nil || *opt.Value == *target {
			return
		}
		*target = *opt.Value
		changed = append(changed, name)
	}

	setString("title", &lead.Title, req.Title)
	setString("company", &lead.Company, req.Company)
	setString("contactName", &lead.ContactName, req.ContactName)
	setString("contactEmail", &lead.ContactEmail, req.ContactEmail)
	setString("contactPhone", &lead.ContactPhone, req.ContactPhone)
	setString("source", &lead.Source, req.Source)
	setString("location", &lead.Location, req.Location)
	setString("equipmentType", &lead.EquipmentType, req.EquipmentType)
	setString("status", &lead.Status, req.Status)
	setString("potentialValue", &lead.PotentialValue, req.PotentialValue)
	setString("timeline", &lead.Timeline, req.Timeline)
	setString("notes", &lead.Notes, req.Notes)
	setString("followUpReason", &lead.FollowUpReason, req.FollowUpReason)

	if req.EstimatedQuantity.Set && req.EstimatedQuantity.Value != nil && *req.EstimatedQuantity.Value != lead.EstimatedQuantity {
		lead.EstimatedQuantity = *req.EstimatedQuantity.Value
		changed = append(changed, "estimatedQuantity")
	}
	if req.OnsitePickup.Set && req.OnsitePickup.Value != nil && *req.OnsitePickup.Value != lead.Logistics.OnsitePickup {
		lead.Logistics.OnsitePickup = *req.OnsitePickup.Value
		changed = append(changed, "onsitePickup")
	}
	if req.FreightFriendly.Set && req.FreightFriendly.Value != nil && *req.FreightFriendly.Value != lead.Logistics.FreightFriendly {
		lead.Logistics.FreightFriendly = *req.FreightFriendly.Value
		changed = append(changed, "freightFriendly")
	}
	if req.GrantFlag.Set && req.GrantFlag.Value != nil && *req.GrantFlag.Value != lead.GrantFlag {
		lead.GrantFlag = *req.GrantFlag.Value
		changed = append(changed, "grantFlag")
	}
	if req.GrantDeadline.Set {
		lead.GrantDeadline = req.GrantDeadline.Value
		changed = append(changed, "grantDeadline")
	}
	if req.FollowUpDate.Set {
		lead.FollowUpDate = req.FollowUpDate.Value
		changed = append(changed, "followUpDate")
	}
	if req.OwnerID.Set {
		if req.OwnerID.Value != nil {
			lead.OwnerID = *req.OwnerID.Value
		} else {
			lead.OwnerID = uuid.Nil
		}
		changed = append(changed, "ownerId")
	}
	if req.Priority.Set && req.Priority.Value != nil {
		changed = append(changed, "priority")
	}
	if req.PipelineID.Set || (req.StageID.Set && req.StageID.Value != nil) {
		changed = append(changed, "stage")
	}
	return changed
}

// upsertToUpdate converts a bulk record into the partial update shape. Only
// fields the record actually carries are marked set.
func upsertToUpdate(record transport.UpsertLeadRecord) transport.UpdateLeadRequest {
	req := transport.UpdateLeadRequest{}
	setString := func(opt *transport.Optional[string], value string) {
		if value != "" {
			opt.Value = &value
			opt.Set = true
		}
	}

	setString(&req.Title, record.Title)
	setString(&req.Company, record.Company)
	setString(&req.ContactName, record.ContactName)
	setString(&req.ContactEmail, record.ContactEmail)
	setString(&req.ContactPhone, record.ContactPhone)
	setString(&req.Source, record.Source)
	setString(&req.Location, record.Location)
	setString(&req.EquipmentType, record.EquipmentType)
	setString(&req.Status, record.Status)
	setString(&req.PotentialValue, record.PotentialValue)
	setString(&req.Timeline, record.Timeline)
	setString(&req.Notes, record.Notes)
	setString(&req.FollowUpReason, record.FollowUpReason)

	if record.EstimatedQuantity > 0 {
		quantity := record.EstimatedQuantity
		req.EstimatedQuantity = transport.Optional[int]{Value: &quantity, Set: true}
	}
	if record.OnsitePickup {
		onsite := true
		req.OnsitePickup = transport.Optional[bool]{Value: &onsite, Set: true}
	}
	if record.FreightFriendly {
		freight := true
		req.FreightFriendly = transport.Optional[bool]{Value: &freight, Set: true}
	}
	if record.GrantFlag {
		grant := true
		req.GrantFlag = transport.Optional[bool]{Value: &grant, Set: true}
	}
	if record.GrantDeadline != nil {
		req.GrantDeadline = transport.Optional[time.Time]{Value: record.GrantDeadline, Set: true}
	}
	if record.FollowUpDate != nil {
		req.FollowUpDate = transport.Optional[time.Time]{Value: record.FollowUpDate, Set: true}
	}
	if record.Priority != nil {
		req.Priority = transport.Optional[int]{Value: record.Priority, Set: true}
	}
	if record.PipelineID != nil {
		req.PipelineID = transport.OptionalUUID{Value: record.PipelineID, Set: true}
	}
	if record.StageID != nil {
		req.StageID = transport.OptionalUUID{Value: record.StageID, Set: true}
	}
	if record.OwnerID != nil {
		req.OwnerID = transport.OptionalUUID{Value: record.OwnerID, Set: true}
	}
	return req
}
