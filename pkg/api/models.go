package api

import "time"

type StartTrainingRequest struct {
	UserId      string   `json:"user_id"`
	TriggerWord string   `json:"trigger_word,omitempty"`
	Images      []string `json:"images"`
}

type StartTrainingResponse struct {
	Success         bool     `json:"success"`
	Stage           string   `json:"stage"`
	Errors          []string `json:"errors,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
	RequiresRestart bool     `json:"requires_restart"`
	TrainingId      string   `json:"training_id,omitempty"`
	ModelName       string   `json:"model_name,omitempty"`
	TriggerWord     string   `json:"trigger_word,omitempty"`
}

type TrainingRecord struct {
	UserId      string     `json:"user_id"`
	TrainingId  string     `json:"training_id"`
	ModelName   string     `json:"model_name"`
	TriggerWord string     `json:"trigger_word"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type ListTrainingsResponse struct {
	Trainings []TrainingRecord `json:"trainings"`
}
