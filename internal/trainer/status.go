package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"selfie-backend/internal/database"

	"gorm.io/gorm"
)

// Remote training statuses.
const (
	remoteStatusSucceeded = "succeeded"
	remoteStatusFailed    = "failed"
	remoteStatusCanceled  = "canceled"
)

// expectedTrainingDuration is used to estimate progress while the remote job
// is still running; the API does not report a percentage.
const expectedTrainingDuration = 20 * time.Minute

// StatusChecker reconciles a user's training record with the remote job
// state. It is invoked by the completion-check worker when the deferred task
// scheduled at dispatch time fires.
type StatusChecker struct {
	db     *gorm.DB
	client *Client
}

func NewStatusChecker(db *gorm.DB, client *Client) *StatusChecker {
	return &StatusChecker{db: db, client: client}
}

func (c *StatusChecker) CheckCompletion(ctx context.Context, userId string) error {
	record, err := database.GetUserModel(ctx, c.db, userId)
	if err != nil {
		return fmt.Errorf("no training record for user %s: %w", userId, err)
	}
	if record.TrainingId == "" {
		return fmt.Errorf("training record for user %s has no remote job id", userId)
	}

	training, err := c.client.GetTraining(ctx, record.TrainingId)
	if err != nil {
		return fmt.Errorf("error fetching remote training %s: %w", record.TrainingId, err)
	}

	switch training.Status {
	case remoteStatusSucceeded:
		if err := database.UpdateTrainingStatus(ctx, c.db, userId, database.TrainingStatusCompleted, 100); err != nil {
			return err
		}
		slog.Info("training completed", "user_id", userId, "training_id", record.TrainingId)

	case remoteStatusFailed, remoteStatusCanceled:
		if err := database.UpdateTrainingStatus(ctx, c.db, userId, database.TrainingStatusFailed, record.Progress); err != nil {
			return err
		}
		slog.Warn("training failed", "user_id", userId, "training_id", record.TrainingId, "remote_error", training.Error)

	default:
		progress := estimateProgress(record.StartedAt, time.Now())
		if err := database.UpdateTrainingStatus(ctx, c.db, userId, database.TrainingStatusTraining, progress); err != nil {
			return err
		}
		slog.Info("training still running", "user_id", userId, "training_id", record.TrainingId, "remote_status", training.Status, "progress", progress)
	}

	return nil
}

func estimateProgress(startedAt, now time.Time) int {
	if startedAt.IsZero() || !now.After(startedAt) {
		return 0
	}
	progress := int(now.Sub(startedAt) * 100 / expectedTrainingDuration)
	if progress > 99 {
		progress = 99
	}
	return progress
}
