package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Automation statuses.
const (
	AutomationActive   = "active"
	AutomationInactive = "inactive"
)

// Trigger kinds. The set is closed: triggers are concrete types below, and
// decoding an unknown kind is an error rather than a silent no-op.
const (
	TriggerKindStageChange   = "stage_change"
	TriggerKindStatusChange  = "status_change"
	TriggerKindGrantDeadline = "grant_deadline"
)

// Action kinds.
const (
	ActionKindCreateTask       = "create_task"
	ActionKindScheduleFollowUp = "schedule_follow_up"
	ActionKindRecordActivity   = "record_activity"
	ActionKindFlagGrant        = "flag_grant"
	ActionKindMoveStage        = "move_stage"
)

// DefaultGrantDeadlineDaysOut applies when a grant_deadline trigger does not
// configure its own window.
const DefaultGrantDeadlineDaysOut = 14

// Trigger is the closed variant type for automation triggers.
type Trigger interface {
	TriggerKind() string
	isTrigger()
}

// StageChangeTrigger fires when the lead's stage id changes, optionally
// filtered by pipeline and by allowed destination/origin stages.
type StageChangeTrigger struct {
	PipelineID   *uuid.UUID  `json:"pipelineId,omitempty"`
	ToStageIDs   []uuid.UUID `json:"toStageIds,omitempty"`
	FromStageIDs []uuid.UUID `json:"fromStageIds,omitempty"`
}

func (StageChangeTrigger) TriggerKind() string { return TriggerKindStageChange }
func (StageChangeTrigger) isTrigger()          {}

// StatusChangeTrigger fires when the lead's status changes, optionally
// filtered by allowed destination/origin statuses.
type StatusChangeTrigger struct {
	ToStatuses   []string `json:"toStatuses,omitempty"`
	FromStatuses []string `json:"fromStatuses,omitempty"`
}

func (StatusChangeTrigger) TriggerKind() string { return TriggerKindStatusChange }
func (StatusChangeTrigger) isTrigger()          {}

// GrantDeadlineTrigger fires when the lead carries a grant deadline and the
// number of whole days until it exactly equals DaysOut.
type GrantDeadlineTrigger struct {
	DaysOut int `json:"daysOut,omitempty"`
}

func (GrantDeadlineTrigger) TriggerKind() string { return TriggerKindGrantDeadline }
func (GrantDeadlineTrigger) isTrigger()          {}

// Action is the closed variant type for automation actions.
type Action interface {
	ActionKind() string
	isAction()
}

// CreateTaskAction creates a follow-up work item linked to the lead, due in
// DueInDays days or on the explicit DueDate.
type CreateTaskAction struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueInDays   int        `json:"dueInDays,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Priority    string     `json:"priority,omitempty"`
}

func (CreateTaskAction) ActionKind() string { return ActionKindCreateTask }
func (CreateTaskAction) isAction()          {}

// ScheduleFollowUpAction patches the lead's follow-up date and reason.
type ScheduleFollowUpAction struct {
	InDays int        `json:"inDays,omitempty"`
	Date   *time.Time `json:"date,omitempty"`
	Reason string     `json:"reason,omitempty"`
}

func (ScheduleFollowUpAction) ActionKind() string { return ActionKindScheduleFollowUp }
func (ScheduleFollowUpAction) isAction()          {}

// RecordActivityAction emits a timeline entry with a caller-supplied message.
type RecordActivityAction struct {
	Message      string `json:"message"`
	ActivityType string `json:"activityType,omitempty"`
}

func (RecordActivityAction) ActionKind() string { return ActionKindRecordActivity }
func (RecordActivityAction) isAction()          {}

// FlagGrantAction patches the lead's grant flag and appends a note.
type FlagGrantAction struct {
	Note string `json:"note,omitempty"`
}

func (FlagGrantAction) ActionKind() string { return ActionKindFlagGrant }
func (FlagGrantAction) isAction()          {}

// MoveStageAction patches the lead onto another stage. A nil PipelineID means
// the lead's current pipeline. The orchestrator re-runs stage history
// recording when this patch lands.
type MoveStageAction struct {
	PipelineID *uuid.UUID `json:"pipelineId,omitempty"`
	StageID    uuid.UUID  `json:"stageId"`
}

func (MoveStageAction) ActionKind() string { return ActionKindMoveStage }
func (MoveStageAction) isAction()          {}

// Conditions are AND-ed thresholds checked after a trigger matches.
// Nil/false fields are unset and always pass.
type Conditions struct {
	MinPriority      *int     `json:"minPriority,omitempty"`
	MinProbability   *float64 `json:"minProbability,omitempty"`
	RequireGrantFlag bool     `json:"requireGrantFlag,omitempty"`
	RequireOpenTasks bool     `json:"requireOpenTasks,omitempty"`
}

// Automation is a trigger + conditions + ordered actions rule, scoped to a
// workspace. Automations are evaluated, never mutated, during a lead write.
type Automation struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Name        string
	Status      string
	Trigger     Trigger
	Conditions  Conditions
	Actions     []Action
	Position    int
	CreatedAt   time.Time
}

// IsActive reports whether the automation should be evaluated.
func (a Automation) IsActive() bool {
	return a.Status == AutomationActive
}

// AutomationExecution is the immutable record of one evaluation outcome.
type AutomationExecution struct {
	ID           uuid.UUID
	AutomationID uuid.UUID
	LeadID       uuid.UUID
	WorkspaceID  uuid.UUID
	Status       string // ExecutionSuccess or ExecutionError
	Result       map[string]any
	Error        string
	CreatedAt    time.Time
}

// Execution statuses.
const (
	ExecutionSuccess = "success"
	ExecutionError   = "error"
)

// =============================================================================
// Persistence envelopes
// =============================================================================

type triggerEnvelope struct {
	Kind   string          `json:"kind"`
	Params json.RawMessage `json:"params"`
}

type actionEnvelope struct {
	Kind   string          `json:"kind"`
	Params json.RawMessage `json:"params"`
}

// MarshalTrigger encodes a trigger as a {kind, params} envelope.
func MarshalTrigger(t Trigger) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("nil trigger")
	}
	params, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return json.Marshal(triggerEnvelope{Kind: t.TriggerKind(), Params: params})
}

// UnmarshalTrigger decodes a {kind, params} envelope into a concrete trigger.
func UnmarshalTrigger(data []byte) (Trigger, error) {
	var env triggerEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Kind {
	case TriggerKindStageChange:
		var t StageChangeTrigger
		if err := json.Unmarshal(env.Params, &t); err != nil {
			return nil, err
		}
		return t, nil
	case TriggerKindStatusChange:
		var t StatusChangeTrigger
		if err := json.Unmarshal(env.Params, &t); err != nil {
			return nil, err
		}
		return t, nil
	case TriggerKindGrantDeadline:
		var t GrantDeadlineTrigger
		if err := json.Unmarshal(env.Params, &t); err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown trigger kind %q", env.Kind)
	}
}

// MarshalActions encodes an ordered action list as envelope array.
func MarshalActions(actions []Action) ([]byte, error) {
	envs := make([]actionEnvelope, 0, len(actions))
	for _, a := range actions {
		params, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		envs = append(envs, actionEnvelope{Kind: a.ActionKind(), Params: params})
	}
	return json.Marshal(envs)
}

// UnmarshalActions decodes an envelope array into concrete actions,
// preserving order.
func UnmarshalActions(data []byte) ([]Action, error) {
	var envs []actionEnvelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return nil, err
	}
	actions := make([]Action, 0, len(envs))
	for _, env := range envs {
		var (
			action Action
			err    error
		)
		switch env.Kind {
		case ActionKindCreateTask:
			var a CreateTaskAction
			err = json.Unmarshal(env.Params, &a)
			action = a
		case ActionKindScheduleFollowUp:
			var a ScheduleFollowUpAction
			err = json.Unmarshal(env.Params, &a)
			action = a
		case ActionKindRecordActivity:
			var a RecordActivityAction
			err = json.Unmarshal(env.Params, &a)
			action = a
		case ActionKindFlagGrant:
			var a FlagGrantAction
			err = json.Unmarshal(env.Params, &a)
			action = a
		case ActionKindMoveStage:
			var a MoveStageAction
			err = json.Unmarshal(env.Params, &a)
			action = a
		default:
			return nil, fmt.Errorf("unknown action kind %q", env.Kind)
		}
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, nil
}
