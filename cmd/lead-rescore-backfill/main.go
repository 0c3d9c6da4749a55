package main

import (
	"context"
	"sync/atomic"
	"time"

	"donation_portal_backend/internal/leads/domain"
	"donation_portal_backend/internal/leads/repository"
	"donation_portal_backend/internal/leads/scoring"
	"donation_portal_backend/platform/config"
	"donation_portal_backend/platform/db"
	"donation_portal_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const batchSize = 100

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting lead rescore backfill")

	workspaceID, err := uuid.Parse(cfg.GetDefaultWorkspaceID())
	if err != nil {
		log.Error("DEFAULT_WORKSPACE_ID is required", "error", err)
		panic("DEFAULT_WORKSPACE_ID is required")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	store := repository.NewPostgres(pool)
	now := time.Now().UTC()

	var processed, updated atomic.Int64
	cursor := uuid.Nil

	for {
		batch, err := store.ListLeadsPage(ctx, workspaceID, cursor, batchSize)
		if err != nil {
			log.Error("failed to list leads", "error", err)
			break
		}
		if len(batch) == 0 {
			break
		}
		cursor = batch[len(batch)-1].ID

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(8)
		for _, lead := range batch {
			group.Go(func() error {
				processed.Add(1)
				if lead.Archived {
					return nil
				}

				// Rescore from zero so repeated runs converge instead of
				// compounding the stored priority.
				rescore := lead
				rescore.Priority = 0
				result := scoring.Automated(rescore, now)
				if result.Score == lead.Priority {
					return nil
				}

				lead.Priority = result.Score
				lead.PriorityLabel = domain.PriorityLabelFor(result.Score)
				lead.UpdatedAt = now
				if err := store.SaveLead(groupCtx, lead); err != nil {
					log.Error("failed to save rescored lead", "leadId", lead.ID, "error", err)
					return nil
				}
				updated.Add(1)
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			log.Error("rescore batch failed", "error", err)
			break
		}
	}

	log.Info("lead rescore backfill completed", "processed", processed.Load(), "updated", updated.Load())
}
