package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"selfie-backend/internal/database"
	"selfie-backend/internal/messaging"
	"selfie-backend/internal/scheduler"
	"selfie-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type orchestratorEnv struct {
	store *fakeStore
	api   *fakeTrainerAPI
	db    *gorm.DB
	queue *messaging.InMemoryQueue
	sched *scheduler.Scheduler
}

func newOrchestratorEnv(t *testing.T) (*Orchestrator, *orchestratorEnv) {
	t.Helper()

	env := &orchestratorEnv{
		store: newFakeStore(),
		api:   newFakeTrainerAPI(),
		db:    createTestDB(t),
		queue: messaging.NewInMemoryQueue(),
		sched: scheduler.New(),
	}
	t.Cleanup(env.sched.Stop)

	orchestrator := NewOrchestrator(env.store, newTestTrainer(t, env.api), env.db, env.queue, env.sched, 10*time.Millisecond)
	return orchestrator, env
}

func (e *orchestratorEnv) waitForCompletionCheck(t *testing.T) messaging.CompletionCheckPayload {
	t.Helper()

	select {
	case task := <-e.queue.Tasks():
		var payload messaging.CompletionCheckPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &payload))
		return payload
	case <-time.After(2 * time.Second):
		t.Fatal("no completion check published")
		return messaging.CompletionCheckPayload{}
	}
}

func (e *orchestratorEnv) assertNoCompletionCheck(t *testing.T) {
	t.Helper()

	select {
	case task := <-e.queue.Tasks():
		t.Fatalf("unexpected completion check published: %s", task.Payload())
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPipelineHappyPath(t *testing.T) {
	orchestrator, env := newOrchestratorEnv(t)

	result := orchestrator.Run(context.Background(), "user-1", "", makeImages(15, 50*1024))

	assert.True(t, result.Success)
	assert.Equal(t, StageDone, result.Stage)
	assert.False(t, result.RequiresRestart)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, "train-abc123", result.TrainingId)
	assert.Equal(t, "useruser1", result.TriggerWord)
	assert.True(t, strings.HasPrefix(result.ModelName, "user-1-selfie-lora-"))

	// 15 stored images plus the archive, all under the user's prefix.
	assert.Len(t, env.store.keys("user-user-1/training-image-"), 15)
	zipKeys := env.store.keys("user-user-1/training_")
	require.Len(t, zipKeys, 1)
	assert.True(t, strings.HasSuffix(zipKeys[0], ".zip"))

	record, err := database.GetUserModel(context.Background(), env.db, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "train-abc123", record.TrainingId)
	assert.Equal(t, database.TrainingStatusTraining, record.Status)

	payload := env.waitForCompletionCheck(t)
	assert.Equal(t, "user-1", payload.UserId)
	assert.Equal(t, "train-abc123", payload.TrainingId)
}

func TestPipelineSmallBatchWarns(t *testing.T) {
	orchestrator, env := newOrchestratorEnv(t)

	result := orchestrator.Run(context.Background(), "user-1", "customword", makeImages(11, 50*1024))

	assert.True(t, result.Success)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "customword", result.TriggerWord)

	input := env.api.lastSubmit["input"].(map[string]any)
	assert.Equal(t, "customword", input["trigger_word"])
}

func TestPipelineAbortsOnValidation(t *testing.T) {
	orchestrator, env := newOrchestratorEnv(t)

	// 12 submitted but only 9 decodable.
	images := makeImages(9, 50*1024)
	images = append(images, "bad", "data:image/jpeg;base64,???", "worse")

	result := orchestrator.Run(context.Background(), "user-1", "", images)

	assert.False(t, result.Success)
	assert.True(t, result.RequiresRestart)
	assert.Equal(t, StageValidating, result.Stage)
	assert.NotEmpty(t, result.ErrorMessages())

	// Nothing downstream ran.
	assert.Empty(t, env.store.keys(""))
	assert.Equal(t, 0, env.api.createCalls)
	_, err := database.GetUserModel(context.Background(), env.db, "user-1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	env.assertNoCompletionCheck(t)
}

func TestPipelineAbortsOnUnconfiguredStorage(t *testing.T) {
	env := &orchestratorEnv{
		api:   newFakeTrainerAPI(),
		db:    createTestDB(t),
		queue: messaging.NewInMemoryQueue(),
		sched: scheduler.New(),
	}
	t.Cleanup(env.sched.Stop)

	var noStore storage.ObjectStore
	orchestrator := NewOrchestrator(noStore, newTestTrainer(t, env.api), env.db, env.queue, env.sched, 10*time.Millisecond)

	result := orchestrator.Run(context.Background(), "user-1", "", makeImages(15, 50*1024))

	assert.False(t, result.Success)
	assert.True(t, result.RequiresRestart)
	assert.Equal(t, StageUploading, result.Stage)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ErrorKindConfig, result.Errors[0].Kind)

	assert.Equal(t, 0, env.api.createCalls)
	env.assertNoCompletionCheck(t)
}

func TestPipelineAbortsOnDispatchFailure(t *testing.T) {
	orchestrator, env := newOrchestratorEnv(t)
	env.api.submitStatus = http.StatusServiceUnavailable

	result := orchestrator.Run(context.Background(), "user-1", "", makeImages(15, 50*1024))

	assert.False(t, result.Success)
	assert.True(t, result.RequiresRestart)
	assert.Equal(t, StageDispatching, result.Stage)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ErrorKindExternal, result.Errors[0].Kind)
	assert.Empty(t, result.TrainingId)

	// Uploads happened before the abort but no record or deferred check
	// exists; the caller must restart from scratch.
	assert.Len(t, env.store.keys("user-user-1/training-image-"), 15)
	_, err := database.GetUserModel(context.Background(), env.db, "user-1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	env.assertNoCompletionCheck(t)
}

func TestPipelineRetrainingSupersedes(t *testing.T) {
	orchestrator, env := newOrchestratorEnv(t)

	first := orchestrator.Run(context.Background(), "user-1", "", makeImages(15, 50*1024))
	require.True(t, first.Success)
	env.waitForCompletionCheck(t)

	env.api.trainingId = "train-def456"
	second := orchestrator.Run(context.Background(), "user-1", "", makeImages(15, 50*1024))
	require.True(t, second.Success)
	assert.Equal(t, "train-def456", second.TrainingId)

	var count int64
	require.NoError(t, env.db.Model(&database.UserModel{}).Where("user_id = ?", "user-1").Count(&count).Error)
	assert.EqualValues(t, 1, count)

	record, err := database.GetUserModel(context.Background(), env.db, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "train-def456", record.TrainingId)

	payload := env.waitForCompletionCheck(t)
	assert.Equal(t, "train-def456", payload.TrainingId)
}

func TestDefaultTriggerWord(t *testing.T) {
	assert.Equal(t, "useruser1", DefaultTriggerWord("user-1"))
	assert.Equal(t, "userabc123", DefaultTriggerWord("abc_123"))
	assert.Equal(t, "user", DefaultTriggerWord("---"))
}
