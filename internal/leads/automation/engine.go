// Package automation evaluates trigger + condition + action rules against a
// lead's before/after snapshot. The engine is synchronous and performs no
// I/O of its own; side effects go through injected sinks and patches are
// applied by the caller after the engine returns.
package automation

import (
	"context"
	"fmt"
	"time"

	"donation_portal_backend/internal/leads/domain"
	"donation_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// Input is the before/after snapshot one evaluation pass runs against.
type Input struct {
	Previous domain.Lead
	Next     domain.Lead
	ActorID  uuid.UUID
	Now      time.Time
}

// Patch is the set of lead mutations a successful automation wants applied.
// Nil fields are untouched. The orchestrator merges patches onto the lead
// after the pass completes and re-runs stage history recording when a patch
// moves the stage.
type Patch struct {
	AutomationID   uuid.UUID
	FollowUpDate   *time.Time
	FollowUpReason *string
	GrantFlag      *bool
	GrantNote      *string
	PipelineID     *uuid.UUID
	StageID        *uuid.UUID
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return p.FollowUpDate == nil && p.FollowUpReason == nil &&
		p.GrantFlag == nil && p.GrantNote == nil &&
		p.PipelineID == nil && p.StageID == nil
}

// Output is the result of one evaluation pass. Executions carry one record
// per matched automation, error executions included.
type Output struct {
	Patches    []Patch
	Executions []domain.AutomationExecution
}

// TaskSink records tasks created by automation actions.
type TaskSink interface {
	CreateTask(ctx context.Context, task domain.Task) error
}

// ActivitySink records timeline entries emitted by automation actions.
type ActivitySink interface {
	RecordActivity(ctx context.Context, event domain.TimelineEvent) error
}

// OpenTaskCounter answers the "has open tasks" condition.
type OpenTaskCounter interface {
	CountOpenTasks(ctx context.Context, leadID uuid.UUID) (int, error)
}

// Engine runs automation passes. All dependencies are injected; the engine
// holds no mutable state and is safe for concurrent use.
type Engine struct {
	tasks      TaskSink
	activities ActivitySink
	openTasks  OpenTaskCounter
	log        *logger.Logger
}

func NewEngine(tasks TaskSink, activities ActivitySink, openTasks OpenTaskCounter, log *logger.Logger) *Engine {
	return &Engine{tasks: tasks, activities: activities, openTasks: openTasks, log: log}
}

// Run evaluates the given automations against the snapshot, in listing
// order. Inactive automations are skipped. A failure inside one automation
// is recorded as an error execution and never stops the rest of the pass.
func (e *Engine) Run(ctx context.Context, input Input, automations []domain.Automation) Output {
	out := Output{Patches: []Patch{}, Executions: []domain.AutomationExecution{}}

	for _, auto := range automations {
		if !auto.IsActive() || auto.WorkspaceID != input.Next.WorkspaceID {
			continue
		}
		if !matchTrigger(auto.Trigger, input) {
			continue
		}
		ok, err := e.checkConditions(ctx, auto.Conditions, input.Next)
		if err != nil {
			out.Executions = append(out.Executions, e.errorExecution(auto, input, err))
			continue
		}
		if !ok {
			out.Executions = append(out.Executions, domain.AutomationExecution{
				ID:           uuid.New(),
				AutomationID: auto.ID,
				LeadID:       input.Next.ID,
				WorkspaceID:  auto.WorkspaceID,
				Status:       domain.ExecutionSuccess,
				Result:       map[string]any{"skipped": "conditions"},
				CreatedAt:    input.Now,
			})
			continue
		}

		patch, result, err := e.executeActions(ctx, auto, input)
		if err != nil {
			out.Executions = append(out.Executions, e.errorExecution(auto, input, err))
			continue
		}

		if !patch.IsZero() {
			out.Patches = append(out.Patches, patch)
		}
		out.Executions = append(out.Executions, domain.AutomationExecution{
			ID:           uuid.New(),
			AutomationID: auto.ID,
			LeadID:       input.Next.ID,
			WorkspaceID:  auto.WorkspaceID,
			Status:       domain.ExecutionSuccess,
			Result:       result,
			CreatedAt:    input.Now,
		})
	}

	return out
}

func (e *Engine) errorExecution(auto domain.Automation, input Input, err error) domain.AutomationExecution {
	e.log.AutomationFailure(auto.ID.String(), input.Next.ID.String(), err)
	return domain.AutomationExecution{
		ID:           uuid.New(),
		AutomationID: auto.ID,
		LeadID:       input.Next.ID,
		WorkspaceID:  auto.WorkspaceID,
		Status:       domain.ExecutionError,
		Error:        err.Error(),
		CreatedAt:    input.Now,
	}
}

// matchTrigger decides whether an automation fires for this snapshot. The
// type switch is exhaustive over the closed trigger set.
func matchTrigger(trigger domain.Trigger, input Input) bool {
	switch t := trigger.(type) {
	case domain.StageChangeTrigger:
		if input.Next.StageID == input.Previous.StageID {
			return false
		}
		if t.PipelineID != nil && *t.PipelineID != input.Next.PipelineID {
			return false
		}
		if len(t.ToStageIDs) > 0 && !containsID(t.ToStageIDs, input.Next.StageID) {
			return false
		}
		if len(t.FromStageIDs) > 0 && !containsID(t.FromStageIDs, input.Previous.StageID) {
			return false
		}
		return true
	case domain.StatusChangeTrigger:
		if input.Next.Status == input.Previous.Status {
			return false
		}
		if len(t.ToStatuses) > 0 && !containsString(t.ToStatuses, input.Next.Status) {
			return false
		}
		if len(t.FromStatuses) > 0 && !containsString(t.FromStatuses, input.Previous.Status) {
			return false
		}
		return true
	case domain.GrantDeadlineTrigger:
		if input.Next.GrantDeadline == nil {
			return false
		}
		daysOut := t.DaysOut
		if daysOut == 0 {
			daysOut = domain.DefaultGrantDeadlineDaysOut
		}
		return domain.WholeDaysBetween(input.Now, *input.Next.GrantDeadline) == daysOut
	default:
		return false
	}
}

// checkConditions AND-s all configured thresholds against the next snapshot.
func (e *Engine) checkConditions(ctx context.Context, c domain.Conditions, next domain.Lead) (bool, error) {
	if c.MinPriority != nil && next.Priority < *c.MinPriority {
		return false, nil
	}
	if c.MinProbability != nil && next.Probability < *c.MinProbability {
		return false, nil
	}
	if c.RequireGrantFlag && !next.GrantFlag {
		return false, nil
	}
	if c.RequireOpenTasks {
		count, err := e.openTasks.CountOpenTasks(ctx, next.ID)
		if err != nil {
			return false, fmt.Errorf("count open tasks: %w", err)
		}
		if count == 0 {
			return false, nil
		}
	}
	return true, nil
}

// executeActions runs the automation's actions in declared order, folding
// their lead mutations into a single patch. The first failing action aborts
// the automation; nothing it patched is applied.
func (e *Engine) executeActions(ctx context.Context, auto domain.Automation, input Input) (Patch, map[string]any, error) {
	patch := Patch{AutomationID: auto.ID}
	tasksCreated := 0
	activities := 0

	for i, action := range auto.Actions {
		switch a := action.(type) {
		case domain.CreateTaskAction:
			task, err := e.createTask(ctx, a, auto, input)
			if err != nil {
				return Patch{}, nil, fmt.Errorf("action %d (%s): %w", i, a.ActionKind(), err)
			}
			tasksCreated++
			if err := e.recordActivity(ctx, auto, input, "task_created", "Task created",
				fmt.Sprintf("Automation %q created task %q", auto.Name, task.Title)); err != nil {
				return Patch{}, nil, err
			}
			activities++

		case domain.ScheduleFollowUpAction:
			due := followUpDate(a, input.Now)
			patch.FollowUpDate = &due
			reason := a.Reason
			if reason == "" {
				reason = "Scheduled by automation " + auto.Name
			}
			patch.FollowUpReason = &reason
			if err := e.recordActivity(ctx, auto, input, "follow_up_scheduled", "Follow-up scheduled",
				fmt.Sprintf("Follow-up on %s: %s", due.Format("2006-01-02"), reason)); err != nil {
				return Patch{}, nil, err
			}
			activities++

		case domain.RecordActivityAction:
			eventType := a.ActivityType
			if eventType == "" {
				eventType = "note"
			}
			if err := e.recordActivity(ctx, auto, input, eventType, "Automation note", a.Message); err != nil {
				return Patch{}, nil, fmt.Errorf("action %d (%s): %w", i, a.ActionKind(), err)
			}
			activities++

		case domain.FlagGrantAction:
			flag := true
			patch.GrantFlag = &flag
			if a.Note != "" {
				note := a.Note
				patch.GrantNote = &note
			}
			if err := e.recordActivity(ctx, auto, input, "grant_flagged", "Grant flagged", a.Note); err != nil {
				return Patch{}, nil, err
			}
			activities++

		case domain.MoveStageAction:
			stageID := a.StageID
			patch.StageID = &stageID
			patch.PipelineID = a.PipelineID
			if err := e.recordActivity(ctx, auto, input, "stage_moved", "Stage moved",
				fmt.Sprintf("Automation %q moved the lead to another stage", auto.Name)); err != nil {
				return Patch{}, nil, err
			}
			activities++

		default:
			return Patch{}, nil, fmt.Errorf("action %d: unknown action kind %T", i, action)
		}
	}

	result := map[string]any{
		"actions":       len(auto.Actions),
		"tasks_created": tasksCreated,
		"activities":    activities,
		"patched":       !patch.IsZero(),
	}
	return patch, result, nil
}

func (e *Engine) createTask(ctx context.Context, a domain.CreateTaskAction, auto domain.Automation, input Input) (domain.Task, error) {
	title := a.Title
	if title == "" {
		title = "Follow up on " + input.Next.Title
	}
	priority := a.Priority
	if priority == "" {
		priority = "medium"
	}
	due := input.Now.AddDate(0, 0, a.DueInDays)
	if a.DueDate != nil {
		due = *a.DueDate
	}
	leadID := input.Next.ID
	task := domain.Task{
		ID:          uuid.New(),
		WorkspaceID: auto.WorkspaceID,
		LeadID:      &leadID,
		Title:       title,
		Description: a.Description,
		DueDate:     &due,
		Priority:    priority,
		Status:      domain.TaskOpen,
		CreatedAt:   input.Now,
		UpdatedAt:   input.Now,
	}
	if err := e.tasks.CreateTask(ctx, task); err != nil {
		return domain.Task{}, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

func (e *Engine) recordActivity(ctx context.Context, auto domain.Automation, input Input, eventType, title, summary string) error {
	event := domain.TimelineEvent{
		ID:          uuid.New(),
		WorkspaceID: auto.WorkspaceID,
		LeadID:      input.Next.ID,
		ActorType:   "System",
		ActorName:   auto.Name,
		EventType:   eventType,
		Title:       title,
		Summary:     summary,
		Metadata:    map[string]any{"automationId": auto.ID.String()},
		CreatedAt:   input.Now,
	}
	if err := e.activities.RecordActivity(ctx, event); err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

func followUpDate(a domain.ScheduleFollowUpAction, now time.Time) time.Time {
	if a.Date != nil {
		return *a.Date
	}
	return now.AddDate(0, 0, a.InDays)
}

// ApplyPatch merges one patch onto the lead and reports whether it moved the
// stage. Stage moves set only the target ids; the caller must run the stage
// machine to validate the move and append history.
func ApplyPatch(lead *domain.Lead, p Patch) (stageChanged bool) {
	if p.FollowUpDate != nil {
		lead.FollowUpDate = p.FollowUpDate
	}
	if p.FollowUpReason != nil {
		lead.FollowUpReason = *p.FollowUpReason
	}
	if p.GrantFlag != nil {
		lead.GrantFlag = *p.GrantFlag
	}
	if p.GrantNote != nil {
		if lead.Notes != "" {
			lead.Notes += "\n"
		}
		lead.Notes += *p.GrantNote
	}
	if p.StageID != nil && *p.StageID != lead.StageID {
		stageChanged = true
	}
	return stageChanged
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func containsString(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}
