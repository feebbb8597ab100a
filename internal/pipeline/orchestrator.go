package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"selfie-backend/internal/messaging"
	"selfie-backend/internal/scheduler"
	"selfie-backend/internal/storage"
	"selfie-backend/internal/trainer"

	"gorm.io/gorm"
)

type Stage string

const (
	StageValidating  Stage = "validating"
	StageUploading   Stage = "uploading"
	StageArchiving   Stage = "archiving"
	StageDispatching Stage = "dispatching"
	StageRecording   Stage = "recording"
	StageDone        Stage = "done"
)

// Result is the synchronous outcome of one pipeline run. RequiresRestart
// signals that no partial progress can be resumed: the caller must resubmit
// the whole batch from scratch.
type Result struct {
	Success         bool
	Stage           Stage
	Errors          []StageError
	Warnings        []string
	RequiresRestart bool

	TrainingId  string
	ModelName   string
	TriggerWord string
}

// ErrorMessages flattens the stage errors for transport to callers.
func (r Result) ErrorMessages() []string {
	return errorMessages(r.Errors)
}

// Orchestrator runs the five pipeline stages strictly in order, aborting on
// the first stage that reports failure. All external collaborators are
// injected; the orchestrator owns no global state.
type Orchestrator struct {
	validator  *ImageValidator
	uploader   *ImageUploader
	archiver   *ArchiveBuilder
	dispatcher *TrainingDispatcher
	recorder   *StateRecorder

	client    *trainer.Client
	scheduler *scheduler.Scheduler
	publisher messaging.Publisher
	locks     *UserLocks

	completionDelay time.Duration
}

func NewOrchestrator(
	store storage.ObjectStore,
	client *trainer.Client,
	db *gorm.DB,
	publisher messaging.Publisher,
	sched *scheduler.Scheduler,
	completionDelay time.Duration,
) *Orchestrator {
	return &Orchestrator{
		validator:       NewImageValidator(),
		uploader:        NewImageUploader(store),
		archiver:        NewArchiveBuilder(store),
		dispatcher:      NewTrainingDispatcher(client),
		recorder:        NewStateRecorder(db),
		client:          client,
		scheduler:       sched,
		publisher:       publisher,
		locks:           NewUserLocks(),
		completionDelay: completionDelay,
	}
}

var triggerWordSanitizer = regexp.MustCompile(`[^a-zA-Z0-9]`)

// DefaultTriggerWord derives a trigger word from the user id when the caller
// does not supply one.
func DefaultTriggerWord(userId string) string {
	return "user" + triggerWordSanitizer.ReplaceAllString(userId, "")
}

// Run executes the full pipeline for one user batch. Stages run strictly
// sequentially; the only asynchronous piece is the deferred completion check
// scheduled after a successful run.
func (o *Orchestrator) Run(ctx context.Context, userId, triggerWord string, images []string) Result {
	if triggerWord == "" {
		triggerWord = DefaultTriggerWord(userId)
	}

	release := o.locks.Acquire(userId)
	defer release()

	slog.Info("starting upload pipeline", "user_id", userId, "images", len(images))

	result := Result{Stage: StageValidating, TriggerWord: triggerWord}

	validation := o.validator.Validate(images)
	result.Warnings = validation.Warnings
	if !validation.Success {
		return o.abort(result, validation.Errors)
	}

	result.Stage = StageUploading
	upload := o.uploader.Upload(ctx, userId, validation.ValidImages)
	if !upload.Success {
		return o.abort(result, upload.Errors)
	}

	// The archive is built from the in-memory validated set, not the stored
	// copies, so an archiving failure cannot be resumed from upload state.
	result.Stage = StageArchiving
	archive := o.archiver.Build(ctx, userId, validation.ValidImages)
	if !archive.Success {
		return o.abort(result, archive.Errors)
	}

	result.Stage = StageDispatching
	dispatch := o.dispatcher.Dispatch(ctx, userId, triggerWord, *archive.Archive)
	if !dispatch.Success {
		return o.abort(result, dispatch.Errors)
	}
	result.TrainingId = dispatch.TrainingId
	result.ModelName = dispatch.ModelName

	result.Stage = StageRecording
	record := o.recorder.Record(ctx, userId, TrainingJob{
		TrainingId:      dispatch.TrainingId,
		ModelName:       dispatch.ModelName,
		TriggerWord:     triggerWord,
		Hyperparameters: o.client.Hyperparameters(),
	})
	if !record.Success {
		return o.abort(result, record.Errors)
	}

	result.Stage = StageDone
	result.Success = true

	o.scheduleCompletionCheck(userId, dispatch.TrainingId)

	slog.Info("upload pipeline completed", "user_id", userId, "training_id", dispatch.TrainingId, "model", dispatch.ModelName)

	return result
}

func (o *Orchestrator) abort(result Result, errs []StageError) Result {
	result.Success = false
	result.Errors = errs
	result.RequiresRestart = true
	slog.Warn("upload pipeline aborted", "stage", result.Stage, "errors", strings.Join(errorMessages(errs), "; "))
	return result
}

// scheduleCompletionCheck enqueues a one-shot deferred task that publishes a
// completion-check message for the worker. Fire-and-forget: a failure here is
// logged and never affects the result already returned to the caller.
func (o *Orchestrator) scheduleCompletionCheck(userId, trainingId string) {
	name := fmt.Sprintf("completion-check-%s", trainingId)

	o.scheduler.Schedule(name, o.completionDelay, func() error {
		payload := messaging.CompletionCheckPayload{UserId: userId, TrainingId: trainingId}
		if err := o.publisher.PublishCompletionCheck(context.Background(), payload); err != nil {
			return fmt.Errorf("failed to publish completion check for training %s: %w", trainingId, err)
		}
		return nil
	})
}
