package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	TrainingStatusTraining  string = "training"
	TrainingStatusCompleted string = "completed"
	TrainingStatusFailed    string = "failed"
)

// UserModel is the single persisted row per user describing the most recent
// training job. A new pipeline run for the same user overwrites it; there is
// no history of earlier trainings.
type UserModel struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	UserId string `gorm:"uniqueIndex;not null"`

	TrainingId  string
	ModelName   string
	TriggerWord string

	Status   string `gorm:"size:20;not null"`
	Progress int    `gorm:"default:0"`

	StartedAt   time.Time
	CompletedAt sql.NullTime

	// The training hyperparameters the job was dispatched with, kept for
	// operator diagnosis of bad trainings.
	Hyperparameters datatypes.JSON `gorm:"type:jsonb"`
}
