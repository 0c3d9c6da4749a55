package scheduler

import (
	"context"
	"testing"
	"time"

	"donation_portal_backend/platform/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *config.Config) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		RedisURL:         "redis://" + mr.Addr(),
		AsynqQueueName:   "default",
		AsynqConcurrency: 1,
	}
	return mr, cfg
}

func TestNewClientRequiresRedisURL(t *testing.T) {
	_, err := NewClient(&config.Config{})
	if err == nil {
		t.Fatalf("expected error for missing redis url")
	}
}

func TestScheduleFollowUpDueEnqueues(t *testing.T) {
	mr, cfg := newTestRedis(t)

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	payload := FollowUpDuePayload{
		LeadID:      uuid.New().String(),
		WorkspaceID: uuid.New().String(),
		TaskID:      uuid.New().String(),
		DueAt:       time.Now().Add(time.Hour).UTC(),
	}
	if err := client.ScheduleFollowUpDue(context.Background(), payload, payload.DueAt); err != nil {
		t.Fatalf("ScheduleFollowUpDue: %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer inspector.Close()

	tasks, err := inspector.ListScheduledTasks("default")
	if err != nil {
		t.Fatalf("ListScheduledTasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("scheduled tasks = %d, want 1", len(tasks))
	}
	if tasks[0].Type != TaskFollowUpDue {
		t.Fatalf("task type = %q", tasks[0].Type)
	}

	decoded, err := ParseFollowUpDuePayload(asynq.NewTask(tasks[0].Type, tasks[0].Payload))
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if decoded.LeadID != payload.LeadID || !decoded.DueAt.Equal(payload.DueAt) {
		t.Fatalf("payload = %+v, want %+v", decoded, payload)
	}
}

func TestEnqueueOutboxDue(t *testing.T) {
	mr, cfg := newTestRedis(t)

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	payload := NotificationOutboxDuePayload{
		OutboxID:    uuid.New().String(),
		WorkspaceID: uuid.New().String(),
	}
	if err := client.EnqueueOutboxDue(context.Background(), payload, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("EnqueueOutboxDue: %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer inspector.Close()

	tasks, err := inspector.ListScheduledTasks("default")
	if err != nil {
		t.Fatalf("ListScheduledTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Type != TaskNotificationOutboxDue {
		t.Fatalf("tasks = %+v", tasks)
	}
}
