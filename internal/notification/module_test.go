package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"donation_portal_backend/internal/email"
	"donation_portal_backend/internal/events"
	"donation_portal_backend/internal/leads/domain"
	"donation_portal_backend/internal/leads/repository"
	"donation_portal_backend/internal/notification/outbox"
	"donation_portal_backend/platform/config"
	"donation_portal_backend/platform/logger"

	"github.com/google/uuid"
)

type memoryOutbox struct {
	records map[uuid.UUID]*outbox.Record
}

func newMemoryOutbox() *memoryOutbox {
	return &memoryOutbox{records: make(map[uuid.UUID]*outbox.Record)}
}

func (m *memoryOutbox) Insert(_ context.Context, p outbox.InsertParams) (uuid.UUID, error) {
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	m.records[id] = &outbox.Record{
		ID:          id,
		WorkspaceID: p.WorkspaceID,
		Kind:        p.Kind,
		Payload:     payload,
		RunAt:       p.RunAt,
		Status:      outbox.StatusPending,
	}
	return id, nil
}

func (m *memoryOutbox) Get(_ context.Context, id uuid.UUID) (*outbox.Record, error) {
	return m.records[id], nil
}

func (m *memoryOutbox) MarkSucceeded(_ context.Context, id uuid.UUID) error {
	m.records[id].Status = outbox.StatusSucceeded
	return nil
}

func (m *memoryOutbox) MarkFailed(_ context.Context, id uuid.UUID, _ *string) error {
	m.records[id].Status = outbox.StatusFailed
	return nil
}

type recordingSender struct {
	highPriority []string
	followUps    []string
	fail         bool
}

func (s *recordingSender) SendHighPriorityLeadEmail(_ context.Context, to string, _ email.HighPriorityLeadData) error {
	if s.fail {
		return errors.New("smtp down")
	}
	s.highPriority = append(s.highPriority, to)
	return nil
}

func (s *recordingSender) SendFollowUpReminderEmail(_ context.Context, to string, _ email.FollowUpReminderData) error {
	if s.fail {
		return errors.New("smtp down")
	}
	s.followUps = append(s.followUps, to)
	return nil
}

func newTestModule(t *testing.T) (*Module, *memoryOutbox, *recordingSender, *repository.Memory) {
	t.Helper()
	store := repository.NewMemory()
	ob := newMemoryOutbox()
	sender := &recordingSender{}
	cfg := &config.Config{NotifyRatePerMinute: 6000}
	m := New(ob, sender, store, store, store, cfg, logger.New("development"))
	return m, ob, sender, store
}

func TestHighPriorityLeadQueuesOutboxRecord(t *testing.T) {
	m, ob, sender, _ := newTestModule(t)

	event := events.HighPriorityLeadDetected{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      uuid.New(),
		WorkspaceID: uuid.New(),
		Title:       "Server decommission",
		Priority:    88,
		OwnerID:     uuid.New(),
	}
	if err := m.Handle(context.Background(), event); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(sender.highPriority) != 0 {
		t.Fatalf("alert sent inline, expected deferral through the outbox")
	}
	if len(ob.records) != 1 {
		t.Fatalf("outbox records = %d, want 1", len(ob.records))
	}
	for _, rec := range ob.records {
		if rec.Kind != OutboxKindHighPriorityLead {
			t.Fatalf("kind = %q", rec.Kind)
		}
		var payload highPriorityPayload
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if payload.LeadID != event.LeadID || payload.Priority != 88 {
			t.Fatalf("payload = %+v", payload)
		}
	}
}

func TestOutboxDueSendsToOwner(t *testing.T) {
	m, ob, sender, store := newTestModule(t)

	owner := domain.User{ID: uuid.New(), Name: "Sam Lee", Email: "sam@example.org"}
	store.PutUser(owner)

	id, err := ob.Insert(context.Background(), outbox.InsertParams{
		WorkspaceID: uuid.New(),
		Kind:        OutboxKindHighPriorityLead,
		Payload: highPriorityPayload{
			LeadID:   uuid.New(),
			OwnerID:  owner.ID,
			Title:    "Laptop fleet",
			Priority: 85,
		},
		RunAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	err = m.Handle(context.Background(), events.NotificationOutboxDue{
		BaseEvent: events.NewBaseEvent(),
		OutboxID:  id,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(sender.highPriority) != 1 || sender.highPriority[0] != "sam@example.org" {
		t.Fatalf("sends = %v", sender.highPriority)
	}
	if ob.records[id].Status != outbox.StatusSucceeded {
		t.Fatalf("status = %q, want succeeded", ob.records[id].Status)
	}
}

func TestOutboxDueSendFailureMarksFailed(t *testing.T) {
	m, ob, sender, store := newTestModule(t)
	sender.fail = true

	owner := domain.User{ID: uuid.New(), Email: "sam@example.org"}
	store.PutUser(owner)

	id, err := ob.Insert(context.Background(), outbox.InsertParams{
		WorkspaceID: uuid.New(),
		Kind:        OutboxKindHighPriorityLead,
		Payload:     highPriorityPayload{LeadID: uuid.New(), OwnerID: owner.ID},
		RunAt:       time.Now(),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	err = m.Handle(context.Background(), events.NotificationOutboxDue{
		BaseEvent: events.NewBaseEvent(),
		OutboxID:  id,
	})
	if err == nil {
		t.Fatalf("expected send error")
	}
	if ob.records[id].Status != outbox.StatusFailed {
		t.Fatalf("status = %q, want failed", ob.records[id].Status)
	}
}

func TestFollowUpDueSendsReminderAndRecordsActivity(t *testing.T) {
	m, _, sender, store := newTestModule(t)

	owner := domain.User{ID: uuid.New(), Email: "owner@example.org"}
	store.PutUser(owner)

	lead := domain.Lead{
		ID:             uuid.New(),
		WorkspaceID:    uuid.New(),
		Title:          "Monitor batch",
		OwnerID:        owner.ID,
		FollowUpReason: "check shipping quote",
	}
	if err := store.SaveLead(context.Background(), lead); err != nil {
		t.Fatalf("seed lead: %v", err)
	}

	err := m.Handle(context.Background(), events.FollowUpDue{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      lead.ID,
		WorkspaceID: lead.WorkspaceID,
		TaskID:      uuid.New(),
		DueAt:       time.Now(),
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(sender.followUps) != 1 || sender.followUps[0] != "owner@example.org" {
		t.Fatalf("sends = %v", sender.followUps)
	}
	activity, err := store.ListActivity(context.Background(), lead.ID, 10)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if len(activity) != 1 || activity[0].EventType != "reminder" {
		t.Fatalf("activity = %+v", activity)
	}
}

func TestFollowUpDueSkipsArchivedLead(t *testing.T) {
	m, _, sender, store := newTestModule(t)

	lead := domain.Lead{ID: uuid.New(), WorkspaceID: uuid.New(), Title: "stale", Archived: true}
	if err := store.SaveLead(context.Background(), lead); err != nil {
		t.Fatalf("seed lead: %v", err)
	}

	err := m.Handle(context.Background(), events.FollowUpDue{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(sender.followUps) != 0 {
		t.Fatalf("reminder sent for archived lead")
	}
}
