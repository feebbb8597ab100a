package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
)

// CompletionChecker reconciles one user's training record with the remote
// job; implemented by trainer.StatusChecker.
type CompletionChecker interface {
	CheckCompletion(ctx context.Context, userId string) error
}

// CompletionWorker consumes completion-check tasks and runs the checker for
// each. Malformed payloads are rejected; transient checker failures are
// nacked so the broker can redeliver or dead-letter them.
type CompletionWorker struct {
	receiver Receiver
	checker  CompletionChecker
}

func NewCompletionWorker(receiver Receiver, checker CompletionChecker) *CompletionWorker {
	return &CompletionWorker{receiver: receiver, checker: checker}
}

func (w *CompletionWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("completion worker stopping", "reason", ctx.Err())
			return

		case task, ok := <-w.receiver.Tasks():
			if !ok {
				slog.Info("completion worker task channel closed")
				return
			}
			w.handle(ctx, task)
		}
	}
}

func (w *CompletionWorker) handle(ctx context.Context, task Task) {
	var payload CompletionCheckPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		slog.Error("invalid completion check payload, rejecting", "error", err)
		if err := task.Reject(); err != nil {
			slog.Error("failed to reject task", "error", err)
		}
		return
	}

	slog.Info("processing completion check", "user_id", payload.UserId, "training_id", payload.TrainingId)

	if err := w.checker.CheckCompletion(ctx, payload.UserId); err != nil {
		slog.Error("completion check failed", "user_id", payload.UserId, "training_id", payload.TrainingId, "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("failed to nack task", "error", err)
		}
		return
	}

	if err := task.Ack(); err != nil {
		slog.Error("failed to ack task", "error", err)
	}
}
