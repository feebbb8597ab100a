package migration_0

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Local copy of the schema at the time of this migration; the live schema in
// the database package may drift in later migrations.
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

	Hyperparameters datatypes.JSON `gorm:"type:jsonb"`
}

func Migration(txn *gorm.DB) error {
	return txn.AutoMigrate(&UserModel{})
}

func Rollback(txn *gorm.DB) error {
	return txn.Migrator().DropTable(&UserModel{})
}
