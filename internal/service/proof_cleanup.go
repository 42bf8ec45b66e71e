package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/ukm-attendance-api/pkg/jobs"
)

// ProofCleanupJobType identifies deletions of superseded or orphaned proof objects.
const ProofCleanupJobType = "proof.delete"

type proofDeleter interface {
	Delete(ctx context.Context, reference string) error
}

type cleanupEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// ProofCleanupHandler deletes the object named by the job payload.
func ProofCleanupHandler(store proofDeleter) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		reference, ok := job.Payload.(string)
		if !ok || reference == "" {
			return fmt.Errorf("proof cleanup job %s has no reference", job.ID)
		}
		return store.Delete(ctx, reference)
	}
}

// ProofCleanupConfig sizes the cleanup worker pool.
type ProofCleanupConfig struct {
	Workers    int
	MaxRetries int
}

// NewProofCleanupQueue builds the background queue for best-effort proof deletion.
// Discarded jobs are counted and otherwise ignored.
func NewProofCleanupQueue(store proofDeleter, cfg ProofCleanupConfig, metrics *MetricsService, logger *zap.Logger) *jobs.Queue {
	return jobs.NewQueue("proof-cleanup", ProofCleanupHandler(store), jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logger,
		OnDiscard: func(jobs.Job, error) {
			metrics.RecordCleanupFailure()
		},
	})
}

func scheduleProofCleanup(queue cleanupEnqueuer, reference string, metrics *MetricsService, logger *zap.Logger) {
	if queue == nil || reference == "" {
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: ProofCleanupJobType, Payload: reference}
	if err := queue.Enqueue(job); err != nil {
		metrics.RecordCleanupFailure()
		logger.Warn("proof cleanup not scheduled", zap.String("reference", reference), zap.Error(err))
	}
}
