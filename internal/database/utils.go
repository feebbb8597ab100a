package database

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

func GetUserModel(ctx context.Context, db *gorm.DB, userId string) (*UserModel, error) {
	var record UserModel
	if err := db.WithContext(ctx).Where("user_id = ?", userId).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateTrainingStatus sets the status and progress of a user's training
// record. Terminal statuses also stamp the completion time.
func UpdateTrainingStatus(ctx context.Context, db *gorm.DB, userId, status string, progress int) error {
	updates := map[string]any{"status": status, "progress": progress}
	if status == TrainingStatusCompleted || status == TrainingStatusFailed {
		updates["completed_at"] = time.Now().UTC()
	}

	if err := db.WithContext(ctx).Model(&UserModel{}).Where("user_id = ?", userId).Updates(updates).Error; err != nil {
		slog.Error("error updating training status", "user_id", userId, "status", status, "error", err)
		return err
	}
	return nil
}
