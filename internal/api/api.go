package api

import (
	"errors"
	"log/slog"
	"net/http"
	"selfie-backend/internal/database"
	"selfie-backend/internal/pipeline"
	"selfie-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type BackendService struct {
	db           *gorm.DB
	orchestrator *pipeline.Orchestrator
}

func NewBackendService(db *gorm.DB, orchestrator *pipeline.Orchestrator) *BackendService {
	return &BackendService{db: db, orchestrator: orchestrator}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Route("/trainings", func(r chi.Router) {
		r.Post("/", RestHandler(s.StartTraining))
		r.Get("/", RestHandler(s.ListTrainings))
		r.Get("/{user_id}", RestHandler(s.GetTraining))
	})
}

func (s *BackendService) StartTraining(r *http.Request) (any, error) {
	req, err := ParseRequest[api.StartTrainingRequest](r)
	if err != nil {
		return nil, err
	}

	if req.UserId == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "user_id is required")
	}

	triggerWord := req.TriggerWord
	if triggerWord == "" {
		triggerWord = pipeline.DefaultTriggerWord(req.UserId)
	}

	result := s.orchestrator.Run(r.Context(), req.UserId, triggerWord, req.Images)

	slog.Info("training run finished", "user_id", req.UserId, "success", result.Success, "stage", result.Stage, "requires_restart", result.RequiresRestart)

	return api.StartTrainingResponse{
		Success:         result.Success,
		Stage:           string(result.Stage),
		Errors:          result.ErrorMessages(),
		Warnings:        result.Warnings,
		RequiresRestart: result.RequiresRestart,
		TrainingId:      result.TrainingId,
		ModelName:       result.ModelName,
		TriggerWord:     result.TriggerWord,
	}, nil
}

func (s *BackendService) GetTraining(r *http.Request) (any, error) {
	userId, err := URLParamString(r, "user_id")
	if err != nil {
		return nil, err
	}

	record, err := database.GetUserModel(r.Context(), s.db, userId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "no training found for user '%s'", userId)
		}
		slog.Error("error getting training record", "user_id", userId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving training record")
	}

	return toTrainingRecord(record), nil
}

type listTrainingsQuery struct {
	Status string `schema:"status"`
	Limit  int    `schema:"limit"`
}

func (s *BackendService) ListTrainings(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[listTrainingsQuery](r)
	if err != nil {
		return nil, err
	}

	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 100
	}

	query := s.db.WithContext(r.Context()).Order("started_at desc").Limit(params.Limit)
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}

	var records []database.UserModel
	if err := query.Find(&records).Error; err != nil {
		slog.Error("error listing training records", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error listing training records")
	}

	trainings := make([]api.TrainingRecord, 0, len(records))
	for i := range records {
		trainings = append(trainings, toTrainingRecord(&records[i]))
	}

	return api.ListTrainingsResponse{Trainings: trainings}, nil
}

func toTrainingRecord(record *database.UserModel) api.TrainingRecord {
	out := api.TrainingRecord{
		UserId:      record.UserId,
		TrainingId:  record.TrainingId,
		ModelName:   record.ModelName,
		TriggerWord: record.TriggerWord,
		Status:      record.Status,
		Progress:    record.Progress,
		StartedAt:   record.StartedAt,
	}
	if record.CompletedAt.Valid {
		completed := record.CompletedAt.Time
		out.CompletedAt = &completed
	}
	return out
}
