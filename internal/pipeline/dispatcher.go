package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"selfie-backend/internal/trainer"
)

type DispatchResult struct {
	Success    bool
	Errors     []StageError
	TrainingId string
	ModelName  string
}

// TrainingDispatcher provisions (or reuses) a uniquely named remote model and
// submits the training job referencing the uploaded archive.
type TrainingDispatcher struct {
	client *trainer.Client
}

func NewTrainingDispatcher(client *trainer.Client) *TrainingDispatcher {
	return &TrainingDispatcher{client: client}
}

// modelName derives the remote model name from the user and creation time.
// The timestamp avoids collisions on retraining while keeping the name
// reusable if provisioning already succeeded for this run.
func modelName(userId string, now time.Time) string {
	return fmt.Sprintf("%s-selfie-lora-%d", userId, now.Unix())
}

func (d *TrainingDispatcher) Dispatch(ctx context.Context, userId, triggerWord string, archive StorageReference) DispatchResult {
	result := DispatchResult{ModelName: modelName(userId, time.Now())}

	if err := d.client.CreateModel(ctx, result.ModelName); err != nil {
		if !errors.Is(err, trainer.ErrModelExists) {
			result.Errors = append(result.Errors, externalError("failed to provision remote model", err))
			return result
		}
		slog.Info("remote model already exists, reusing it", "model", result.ModelName)
	}

	trainingId, err := d.client.SubmitTraining(ctx, result.ModelName, archive.URL, triggerWord)
	if err != nil {
		result.Errors = append(result.Errors, externalError("failed to submit training job", err))
		return result
	}

	result.TrainingId = trainingId
	result.Success = true
	return result
}
