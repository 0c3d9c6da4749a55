package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"donation_portal_backend/internal/leads/repository"
	"donation_portal_backend/platform/config"
	"donation_portal_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// FollowUpScanner periodically finds leads whose follow-up date falls on the
// current UTC day and enqueues a reminder task for each. The task id is
// derived from the lead and day, so rescanning the same day is a no-op.
type FollowUpScanner struct {
	client   *asynq.Client
	queue    string
	leads    repository.LeadReader
	log      *logger.Logger
	interval time.Duration
}

func NewFollowUpScanner(cfg config.SchedulerConfig, leads repository.LeadReader, log *logger.Logger, interval time.Duration) (*FollowUpScanner, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}
	if interval <= 0 {
		interval = time.Hour
	}

	return &FollowUpScanner{
		client:   asynq.NewClient(opt),
		queue:    queue,
		leads:    leads,
		log:      log,
		interval: interval,
	}, nil
}

func (s *FollowUpScanner) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *FollowUpScanner) Run(ctx context.Context) {
	if s == nil || s.client == nil || s.leads == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

func (s *FollowUpScanner) scan(ctx context.Context) {
	day := time.Now().UTC().Format("2006-01-02")

	leads, err := s.leads.ListFollowUpsDue(ctx, day)
	if err != nil {
		s.log.Warn("follow-up scan failed", "error", err)
		return
	}

	for _, lead := range leads {
		if lead.FollowUpDate == nil {
			continue
		}

		task, err := NewFollowUpDueTask(FollowUpDuePayload{
			LeadID:      lead.ID.String(),
			WorkspaceID: lead.WorkspaceID.String(),
			DueAt:       *lead.FollowUpDate,
		})
		if err != nil {
			s.log.Warn("follow-up task build failed", "leadId", lead.ID, "error", err)
			continue
		}

		_, err = s.client.EnqueueContext(ctx, task,
			asynq.ProcessAt(*lead.FollowUpDate),
			asynq.Queue(s.queue),
			asynq.TaskID(fmt.Sprintf("followup:%s:%s", lead.ID, day)),
		)
		if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
			s.log.Warn("follow-up enqueue failed", "leadId", lead.ID, "error", err)
		}
	}
}
