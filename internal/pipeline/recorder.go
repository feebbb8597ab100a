package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"selfie-backend/internal/database"
	"selfie-backend/internal/trainer"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TrainingJob holds the identifiers produced by a successful dispatch.
type TrainingJob struct {
	TrainingId  string
	ModelName   string
	TriggerWord string

	Hyperparameters trainer.Hyperparameters
}

type RecordResult struct {
	Success bool
	Errors  []StageError
}

// StateRecorder upserts the user's single training record and verifies the
// write took effect. At most one live record exists per user; a new run
// supersedes the previous one with no history kept.
type StateRecorder struct {
	db *gorm.DB
}

func NewStateRecorder(db *gorm.DB) *StateRecorder {
	return &StateRecorder{db: db}
}

func (r *StateRecorder) Record(ctx context.Context, userId string, job TrainingJob) RecordResult {
	result := RecordResult{}

	hyperparameters, err := json.Marshal(job.Hyperparameters)
	if err != nil {
		result.Errors = append(result.Errors, externalError("failed to encode hyperparameters", err))
		return result
	}

	now := time.Now().UTC()

	var record database.UserModel
	err = r.db.WithContext(ctx).Where("user_id = ?", userId).First(&record).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		record = database.UserModel{
			Id:              uuid.New(),
			UserId:          userId,
			TrainingId:      job.TrainingId,
			ModelName:       job.ModelName,
			TriggerWord:     job.TriggerWord,
			Status:          database.TrainingStatusTraining,
			Progress:        0,
			StartedAt:       now,
			Hyperparameters: hyperparameters,
		}
		if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
			result.Errors = append(result.Errors, externalError("failed to create training record", err))
			return result
		}

	case err != nil:
		result.Errors = append(result.Errors, externalError("failed to look up training record", err))
		return result

	default:
		updates := map[string]any{
			"training_id":     job.TrainingId,
			"model_name":      job.ModelName,
			"trigger_word":    job.TriggerWord,
			"status":          database.TrainingStatusTraining,
			"progress":        0,
			"started_at":      now,
			"completed_at":    nil,
			"hyperparameters": hyperparameters,
		}
		if err := r.db.WithContext(ctx).Model(&database.UserModel{}).Where("user_id = ?", userId).Updates(updates).Error; err != nil {
			result.Errors = append(result.Errors, externalError("failed to update training record", err))
			return result
		}
	}

	// Read the row back; a mismatch means the datastore and the reported
	// write outcome disagree, which is worse than a plain write error.
	stored, err := database.GetUserModel(ctx, r.db, userId)
	if err != nil {
		result.Errors = append(result.Errors, externalError("failed to read back training record", err))
		return result
	}
	if stored.TrainingId != job.TrainingId {
		result.Errors = append(result.Errors, verificationErrorf("training record read-back returned job %q, expected %q", stored.TrainingId, job.TrainingId))
		return result
	}

	result.Success = true
	return result
}
