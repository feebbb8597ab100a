package integrationtests

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"selfie-backend/internal/database"
	"selfie-backend/internal/trainer"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseMigrationAndRecordLifecycle(t *testing.T) {
	db := createDB(t)

	hyperparameters, err := json.Marshal(trainer.DefaultHyperparameters())
	require.NoError(t, err)

	record := database.UserModel{
		Id:              uuid.New(),
		UserId:          "user-1",
		TrainingId:      "train-abc123",
		ModelName:       "user-1-selfie-lora-1",
		TriggerWord:     "useruser1",
		Status:          database.TrainingStatusTraining,
		Progress:        0,
		StartedAt:       time.Now().UTC(),
		Hyperparameters: hyperparameters,
	}
	require.NoError(t, db.Create(&record).Error)

	stored, err := database.GetUserModel(context.Background(), db, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "train-abc123", stored.TrainingId)
	assert.Equal(t, database.TrainingStatusTraining, stored.Status)

	var storedParams trainer.Hyperparameters
	require.NoError(t, json.Unmarshal(stored.Hyperparameters, &storedParams))
	assert.Equal(t, trainer.DefaultHyperparameters(), storedParams)

	require.NoError(t, database.UpdateTrainingStatus(context.Background(), db, "user-1", database.TrainingStatusCompleted, 100))

	stored, err = database.GetUserModel(context.Background(), db, "user-1")
	require.NoError(t, err)
	assert.Equal(t, database.TrainingStatusCompleted, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	assert.True(t, stored.CompletedAt.Valid)
}

func TestDatabaseEnforcesOneRecordPerUser(t *testing.T) {
	db := createDB(t)

	first := database.UserModel{
		Id:        uuid.New(),
		UserId:    "user-1",
		Status:    database.TrainingStatusTraining,
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Create(&first).Error)

	duplicate := database.UserModel{
		Id:        uuid.New(),
		UserId:    "user-1",
		Status:    database.TrainingStatusTraining,
		StartedAt: time.Now().UTC(),
	}
	assert.Error(t, db.Create(&duplicate).Error)
}
