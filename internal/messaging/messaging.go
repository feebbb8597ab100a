package messaging

import (
	"context"
	"time"
)

const (
	CompletionCheckQueue = "completion_check_queue"
	RetryDelay           = 5 * time.Second
	MaxConnectRetry      = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

// CompletionCheckPayload asks the worker to reconcile a user's training
// record with the remote job state.
type CompletionCheckPayload struct {
	UserId     string
	TrainingId string
}

type Publisher interface {
	PublishCompletionCheck(ctx context.Context, payload CompletionCheckPayload) error

	Close()
}

type Receiver interface {
	Tasks() <-chan Task

	Close()
}
