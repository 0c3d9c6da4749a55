// Package notification turns domain events into operator-facing email.
// It subscribes to the event bus and inverts the dependency: the leads
// module never talks to SMTP or templates directly.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"donation_portal_backend/internal/email"
	"donation_portal_backend/internal/events"
	"donation_portal_backend/internal/leads/domain"
	"donation_portal_backend/internal/leads/repository"
	"donation_portal_backend/internal/notification/outbox"
	"donation_portal_backend/platform/config"
	"donation_portal_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// OutboxKindHighPriorityLead is the outbox record kind for deferred
// high-priority lead alerts.
const OutboxKindHighPriorityLead = "lead.high_priority"

// OutboxStore persists and resolves deferred notification records.
type OutboxStore interface {
	Insert(ctx context.Context, p outbox.InsertParams) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*outbox.Record, error)
	MarkSucceeded(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError *string) error
}

// LeadReader resolves leads referenced by events.
type LeadReader interface {
	GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)
}

// UserReader resolves owners for email delivery.
type UserReader interface {
	GetUser(ctx context.Context, id uuid.UUID) (domain.User, error)
}

// TimelineWriter records the reminder in the lead's activity trail.
type TimelineWriter interface {
	RecordActivity(ctx context.Context, event domain.TimelineEvent) error
}

// highPriorityPayload is the outbox payload for a high-priority lead alert.
type highPriorityPayload struct {
	LeadID      uuid.UUID `json:"leadId"`
	WorkspaceID uuid.UUID `json:"workspaceId"`
	OwnerID     uuid.UUID `json:"ownerId"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Priority    int       `json:"priority"`
}

// Module handles all notification-related event subscriptions.
type Module struct {
	outbox   OutboxStore
	sender   email.Sender
	leads    LeadReader
	users    UserReader
	timeline TimelineWriter
	limiter  *rate.Limiter
	log      *logger.Logger
}

// New creates a new notification module. Outbound sends share a limiter so
// a large bulk import cannot flood the SMTP relay.
func New(ob OutboxStore, sender email.Sender, leads LeadReader, users UserReader, timeline TimelineWriter, cfg config.EmailConfig, log *logger.Logger) *Module {
	perMinute := cfg.GetNotifyRatePerMinute()
	if perMinute < 1 {
		perMinute = 30
	}
	return &Module{
		outbox:   ob,
		sender:   sender,
		leads:    leads,
		users:    users,
		timeline: timeline,
		limiter:  rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 5),
		log:      log,
	}
}

// RegisterHandlers subscribes to all relevant domain events on the event bus.
func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.HighPriorityLeadDetected{}.EventName(), m)
	bus.Subscribe(events.NotificationOutboxDue{}.EventName(), m)
	bus.Subscribe(events.FollowUpDue{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.HighPriorityLeadDetected:
		return m.handleHighPriorityLead(ctx, e)
	case events.NotificationOutboxDue:
		return m.handleOutboxDue(ctx, e)
	case events.FollowUpDue:
		return m.handleFollowUpDue(ctx, e)
	default:
		return nil
	}
}

// handleHighPriorityLead queues the alert instead of sending inline. The
// publishing write has already committed; delivery happens from the worker.
func (m *Module) handleHighPriorityLead(ctx context.Context, e events.HighPriorityLeadDetected) error {
	if m.outbox == nil {
		return nil
	}

	_, err := m.outbox.Insert(ctx, outbox.InsertParams{
		WorkspaceID: e.WorkspaceID,
		Kind:        OutboxKindHighPriorityLead,
		Payload: highPriorityPayload{
			LeadID:      e.LeadID,
			WorkspaceID: e.WorkspaceID,
			OwnerID:     e.OwnerID,
			Title:       e.Title,
			Company:     e.Company,
			Priority:    e.Priority,
		},
		RunAt: time.Now().UTC(),
	})
	if err != nil {
		m.log.NotificationFailure(e.LeadID.String(), "outbox", err)
		return err
	}
	return nil
}

func (m *Module) handleOutboxDue(ctx context.Context, e events.NotificationOutboxDue) error {
	if m.outbox == nil {
		return nil
	}

	rec, err := m.outbox.Get(ctx, e.OutboxID)
	if err != nil {
		return err
	}
	if rec == nil {
		m.log.Warn("outbox record missing", "outboxId", e.OutboxID)
		return nil
	}
	if rec.Status == outbox.StatusSucceeded {
		return nil
	}

	if err := m.dispatch(ctx, rec); err != nil {
		msg := err.Error()
		_ = m.outbox.MarkFailed(ctx, rec.ID, &msg)
		return err
	}
	return m.outbox.MarkSucceeded(ctx, rec.ID)
}

func (m *Module) dispatch(ctx context.Context, rec *outbox.Record) error {
	switch rec.Kind {
	case OutboxKindHighPriorityLead:
		var payload highPriorityPayload
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			return fmt.Errorf("decode outbox payload: %w", err)
		}
		return m.sendHighPriorityLead(ctx, payload)
	default:
		return fmt.Errorf("unknown outbox kind %q", rec.Kind)
	}
}

func (m *Module) sendHighPriorityLead(ctx context.Context, payload highPriorityPayload) error {
	if payload.OwnerID == uuid.Nil {
		m.log.Warn("high-priority lead has no owner, skipping alert", "leadId", payload.LeadID)
		return nil
	}

	owner, err := m.users.GetUser(ctx, payload.OwnerID)
	if err != nil {
		return fmt.Errorf("resolve owner: %w", err)
	}
	if owner.Email == "" {
		m.log.Warn("owner has no email, skipping alert", "ownerId", payload.OwnerID)
		return nil
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}

	err = m.sender.SendHighPriorityLeadEmail(ctx, owner.Email, email.HighPriorityLeadData{
		LeadTitle: payload.Title,
		Company:   payload.Company,
		Priority:  payload.Priority,
	})
	if err != nil {
		m.log.NotificationFailure(payload.LeadID.String(), "email", err)
		return err
	}
	return nil
}

// handleFollowUpDue sends the reminder and records it in the lead timeline.
// Timeline failures are logged, not fatal: the reminder email already went
// out and requeueing would duplicate it.
func (m *Module) handleFollowUpDue(ctx context.Context, e events.FollowUpDue) error {
	lead, err := m.leads.GetLead(ctx, e.LeadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if lead.Archived {
		return nil
	}

	if lead.OwnerID != uuid.Nil {
		owner, err := m.users.GetUser(ctx, lead.OwnerID)
		if err == nil && owner.Email != "" {
			if err := m.limiter.Wait(ctx); err != nil {
				return err
			}
			err = m.sender.SendFollowUpReminderEmail(ctx, owner.Email, email.FollowUpReminderData{
				LeadTitle: lead.Title,
				Company:   lead.Company,
				Reason:    lead.FollowUpReason,
				DueDate:   e.DueAt.Format("2006-01-02"),
			})
			if err != nil {
				m.log.NotificationFailure(lead.ID.String(), "email", err)
			}
		}
	}

	if m.timeline == nil {
		return nil
	}
	activity := domain.TimelineEvent{
		ID:          uuid.New(),
		WorkspaceID: lead.WorkspaceID,
		LeadID:      lead.ID,
		ActorType:   "System",
		ActorName:   "Follow-up reminder",
		EventType:   "reminder",
		Title:       "Follow-up due",
		Summary:     lead.FollowUpReason,
		Metadata:    map[string]any{"taskId": e.TaskID.String()},
		CreatedAt:   time.Now().UTC(),
	}
	if err := m.timeline.RecordActivity(ctx, activity); err != nil {
		m.log.NotificationFailure(lead.ID.String(), "timeline", err)
	}
	return nil
}
